package queue

import (
	"context"
	"encoding/json"
)

// Job handles one message type. Payload is the raw JSON that was enqueued.
type Job interface {
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

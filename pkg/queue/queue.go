package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue accepts work for a registered Job type and returns the message id.
type Queue interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)
	Start() error
	Stop(ctx context.Context) error
}

type QueueConfig struct {
	Workers    int
	RetryLimit int
	// RetryDelay is doubled on every attempt.
	RetryDelay time.Duration
}

func (c *QueueConfig) withDefaults() *QueueConfig {
	out := QueueConfig{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = 10 * time.Second
	}
	return &out
}

// retryAt is when attempt n (1-based) should run again.
func (c *QueueConfig) retryAt(now time.Time, attempt int) time.Time {
	return now.Add(c.RetryDelay * time.Duration(1<<uint(attempt-1)))
}

type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

func newMessage(jobType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Message{
		ID:        uuid.NewString(),
		Type:      jobType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals a job payload. An empty payload yields the zero T.
func Decode[T any](payload json.RawMessage) (T, error) {
	var out T
	if len(payload) == 0 || string(payload) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

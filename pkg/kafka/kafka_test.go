package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"PawnPrice/pkg/logger"
)

type countingHandler struct {
	failFor int
	calls   int
	panic   bool
}

func (h *countingHandler) Topic() string { return "pawn.offers.submitted" }

func (h *countingHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.panic {
		panic("bad payload")
	}
	if h.calls <= h.failFor {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T, retryMax int) *Consumer {
	t.Helper()
	c, err := NewConsumer(logger.Nop(),
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retryMax, time.Millisecond, 2*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestHandleWithRetry(t *testing.T) {
	c := newTestConsumer(t, 3)

	h := &countingHandler{failFor: 2}
	attempts, err := c.handleWithRetry(h, nil)
	if err != nil || attempts != 3 {
		t.Errorf("attempts=%d err=%v, want 3 nil", attempts, err)
	}

	h = &countingHandler{failFor: 10}
	attempts, err = c.handleWithRetry(h, nil)
	if err == nil || attempts != 4 {
		t.Errorf("attempts=%d err=%v, want 4 and an error", attempts, err)
	}
}

func TestHandleWithRetryRecoversPanic(t *testing.T) {
	c := newTestConsumer(t, 0)
	if _, err := c.handleWithRetry(&countingHandler{panic: true}, nil); err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(100*time.Millisecond, time.Second, attempt)
		if d <= 0 || d > time.Second {
			t.Errorf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(logger.Nop()); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewProducer(); err == nil {
		t.Fatal("expected error without brokers")
	}
}

type offerEvent struct {
	OfferID string  `json:"offer_id"`
	Amount  float64 `json:"amount"`
}

func TestDecodeEvent(t *testing.T) {
	data, _ := json.Marshal(offerEvent{OfferID: "o-1", Amount: 48})
	env, _ := json.Marshal(Event{ID: "e-1", Type: "offer.submitted", Data: data})

	got, ev, err := DecodeEvent[offerEvent](env)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != "offer.submitted" || ev.OfferID != "o-1" || ev.Amount != 48 {
		t.Errorf("got %+v %+v", got, ev)
	}

	_, ev, err = DecodeEvent[offerEvent](data)
	if err != nil || ev.OfferID != "o-1" {
		t.Errorf("bare payload: %+v %v", ev, err)
	}

	if _, _, err := DecodeEvent[offerEvent]([]byte("{")); err == nil {
		t.Error("expected error for malformed payload")
	}
}

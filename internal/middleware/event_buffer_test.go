package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type flakyPublisher struct {
	mu        sync.Mutex
	failures  int
	delivered []string
}

func (f *flakyPublisher) PublishEvent(_ context.Context, _, key, _ string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker unavailable")
	}
	f.delivered = append(f.delivered, key)
	return nil
}

func (f *flakyPublisher) Close() error { return nil }

func (f *flakyPublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func TestBufferedPublisherPassThrough(t *testing.T) {
	next := &flakyPublisher{}
	p := NewBufferedPublisher(next, nil, nil)

	if err := p.PublishEvent(context.Background(), "offers", "o-1", "offer.priced", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.count() != 1 || p.Pending() != 0 {
		t.Fatalf("delivered=%d pending=%d", next.count(), p.Pending())
	}
}

func TestBufferedPublisherRetries(t *testing.T) {
	next := &flakyPublisher{failures: 2}
	p := NewBufferedPublisher(next, nil, nil, WithBackoff(time.Millisecond, 5*time.Millisecond))

	if err := p.PublishEvent(context.Background(), "offers", "o-1", "offer.priced", nil); err == nil {
		t.Fatal("expected downstream error")
	}
	if p.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", p.Pending())
	}

	p.Start()
	defer p.Close()

	deadline := time.Now().Add(2 * time.Second)
	for next.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("buffered event never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBufferedPublisherFull(t *testing.T) {
	next := &flakyPublisher{failures: 10}
	p := NewBufferedPublisher(next, nil, nil, WithBufferSize(1))
	ctx := context.Background()

	if err := p.PublishEvent(ctx, "offers", "o-1", "offer.priced", nil); errors.Is(err, ErrBufferFull) {
		t.Fatalf("first failure should be buffered, got %v", err)
	}
	if err := p.PublishEvent(ctx, "offers", "o-2", "offer.priced", nil); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("expected ErrBufferFull, got %v", err)
	}
}

func TestBufferedPublisherRejectsIncompleteEvents(t *testing.T) {
	p := NewBufferedPublisher(&flakyPublisher{}, nil, nil)
	ctx := context.Background()

	if err := p.PublishEvent(ctx, "", "k", "offer.priced", nil); err == nil {
		t.Error("expected error for empty topic")
	}
	if err := p.PublishEvent(ctx, "offers", "k", "", nil); err == nil {
		t.Error("expected error for empty event type")
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d, want 0", p.Pending())
	}
}

func TestBufferedPublisherSingleUse(t *testing.T) {
	next := &flakyPublisher{failures: 1}
	p := NewBufferedPublisher(next, nil, nil, WithBackoff(time.Millisecond, time.Millisecond))

	p.Start()
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Restarting a closed publisher must not panic or resume flushing.
	p.Start()
	if err := p.PublishEvent(context.Background(), "offers", "o-1", "offer.priced", nil); err == nil {
		t.Fatal("expected downstream error")
	}
	time.Sleep(20 * time.Millisecond)
	if p.Pending() != 1 || next.count() != 0 {
		t.Errorf("pending=%d delivered=%d, want buffered event left alone", p.Pending(), next.count())
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBufferedPublisherCloseWithoutStart(t *testing.T) {
	p := NewBufferedPublisher(&flakyPublisher{}, nil, nil)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	p.Start()
	if err := p.Close(); err != nil {
		t.Fatalf("Close after Start: %v", err)
	}
}

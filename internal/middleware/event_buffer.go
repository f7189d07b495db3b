package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domrepo "PawnPrice/internal/domain/repository"
	"PawnPrice/pkg/logger"
)

var ErrBufferFull = errors.New("event buffer full")

type pendingEvent struct {
	topic     string
	key       string
	eventType string
	data      interface{}
}

// BufferedPublisher sits between the use cases and the event bus. Events
// the downstream rejects are parked in a bounded buffer and retried in
// the background with exponential backoff.
type BufferedPublisher struct {
	next    domrepo.EventPublisher
	metrics domrepo.Metrics
	log     *logger.Logger

	bufCh      chan pendingEvent
	minBackoff time.Duration
	maxBackoff time.Duration
	timeout    time.Duration

	mu      sync.Mutex
	started bool
	closed  bool
	stopCh  chan struct{}
	done    chan struct{}
}

type BufferOption func(*BufferedPublisher)

// WithBufferSize sets how many failed events are kept for retry.
func WithBufferSize(n int) BufferOption {
	return func(p *BufferedPublisher) {
		if n > 0 {
			p.bufCh = make(chan pendingEvent, n)
		}
	}
}

func WithBackoff(min, max time.Duration) BufferOption {
	return func(p *BufferedPublisher) {
		if min > 0 && max >= min {
			p.minBackoff, p.maxBackoff = min, max
		}
	}
}

func NewBufferedPublisher(next domrepo.EventPublisher, metrics domrepo.Metrics, log *logger.Logger, opts ...BufferOption) *BufferedPublisher {
	p := &BufferedPublisher{
		next:       next,
		metrics:    metrics,
		log:        log,
		bufCh:      make(chan pendingEvent, 1000),
		minBackoff: 50 * time.Millisecond,
		maxBackoff: 2 * time.Second,
		timeout:    10 * time.Second,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Nop()
	}
	return p
}

// Start launches background flushing of buffered events. A publisher is
// single use: Start after Close does nothing.
func (p *BufferedPublisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	go p.flushLoop()
}

func (p *BufferedPublisher) flushLoop() {
	defer close(p.done)
	backoff := p.minBackoff
	for {
		select {
		case <-p.stopCh:
			return
		case ev := <-p.bufCh:
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			err := p.next.PublishEvent(ctx, ev.topic, ev.key, ev.eventType, ev.data)
			cancel()
			if err == nil {
				backoff = p.minBackoff
				continue
			}
			p.recordError("event_buffer_flush")
			select {
			case <-p.stopCh:
				p.log.Warn("event dropped on shutdown",
					logger.String("topic", ev.topic), logger.String("event_type", ev.eventType))
				return
			case <-time.After(backoff):
			}
			if backoff < p.maxBackoff {
				backoff *= 2
				if backoff > p.maxBackoff {
					backoff = p.maxBackoff
				}
			}
			// requeue if space; drop otherwise
			select {
			case p.bufCh <- ev:
			default:
				p.recordError("event_buffer_drop")
			}
		}
	}
}

// PublishEvent forwards to the downstream publisher. On failure the
// event is buffered and the downstream error is still returned.
func (p *BufferedPublisher) PublishEvent(ctx context.Context, topic, key, eventType string, data interface{}) error {
	if topic == "" {
		return fmt.Errorf("publish %s: topic empty", eventType)
	}
	if eventType == "" {
		return fmt.Errorf("publish to %s: event type empty", topic)
	}

	err := p.next.PublishEvent(ctx, topic, key, eventType, data)
	if err == nil {
		return nil
	}
	p.recordError("event_publish")

	select {
	case p.bufCh <- pendingEvent{topic: topic, key: key, eventType: eventType, data: data}:
		return fmt.Errorf("publish deferred: %w", err)
	default:
		p.recordError("event_buffer_full")
		return fmt.Errorf("%w: %v", ErrBufferFull, err)
	}
}

// Pending reports how many events wait for retry.
func (p *BufferedPublisher) Pending() int { return len(p.bufCh) }

// Close stops the flush loop. The downstream publisher is owned by the
// caller and left open.
func (p *BufferedPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	running := p.started
	p.started = false
	p.mu.Unlock()

	if !running {
		return nil
	}

	close(p.stopCh)
	<-p.done
	if n := len(p.bufCh); n > 0 {
		p.log.Warn("closing with undelivered events", logger.Int("pending", n))
	}
	return nil
}

func (p *BufferedPublisher) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

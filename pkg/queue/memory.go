package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PawnPrice/pkg/logger"
)

// MemoryQueue runs jobs on in-process workers. It is used when Redis is
// disabled; retries are delayed in a goroutine and dead letters are logged.
type MemoryQueue struct {
	logger *logger.Logger
	config *QueueConfig
	jobs   map[string]Job
	ch     chan Message

	mu        sync.Mutex
	isRunning bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig, jobs []Job) *MemoryQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &MemoryQueue{
		logger: lgr,
		config: config.withDefaults(),
		jobs:   make(map[string]Job, len(jobs)),
		ch:     make(chan Message, 64),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, job := range jobs {
		q.jobs[job.Type()] = job
	}
	return q
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("memory queue started", logger.Int("workers", q.config.Workers))
	return nil
}

func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	if _, ok := q.jobs[jobType]; !ok {
		return "", fmt.Errorf("no job registered for type: %s", jobType)
	}
	msg, err := newMessage(jobType, payload)
	if err != nil {
		return "", err
	}
	select {
	case q.ch <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.ctx.Done():
		return "", fmt.Errorf("queue stopped")
	}
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.ch:
			q.process(msg)
		}
	}
}

func (q *MemoryQueue) process(msg Message) {
	job := q.jobs[msg.Type]
	err := job.Handle(q.ctx, msg.Payload)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	q.logger.Error("job failed",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		q.logger.Error("job dead-lettered", logger.String("id", msg.ID), logger.String("type", msg.Type))
		return
	}
	msg.Attempts++
	delay := time.Until(q.config.retryAt(time.Now(), msg.Attempts))

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-q.ctx.Done():
		case <-time.After(delay):
			select {
			case q.ch <- msg:
			case <-q.ctx.Done():
			}
		}
	}()
}

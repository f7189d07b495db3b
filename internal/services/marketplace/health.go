package marketplace

import (
	"math"
	"sync"
	"time"

	"PawnPrice/internal/domain/models"
)

// healthTracker counts request outcomes for one source.
type healthTracker struct {
	mu        sync.Mutex
	source    string
	total     int64
	success   int64
	failed    int64
	blocked   int64
	totalTime time.Duration
}

func newHealthTracker(source string) *healthTracker {
	return &healthTracker{source: source}
}

func (h *healthTracker) attempt() {
	h.mu.Lock()
	h.total++
	h.mu.Unlock()
}

func (h *healthTracker) succeeded(d time.Duration) {
	h.mu.Lock()
	h.success++
	h.totalTime += d
	h.mu.Unlock()
}

func (h *healthTracker) failedOnce() {
	h.mu.Lock()
	h.failed++
	h.mu.Unlock()
}

func (h *healthTracker) blockedOnce() {
	h.mu.Lock()
	h.blocked++
	h.mu.Unlock()
}

func (h *healthTracker) snapshot() models.SourceHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := models.SourceHealth{
		Source:             h.source,
		TotalRequests:      h.total,
		SuccessfulRequests: h.success,
		FailedRequests:     h.failed,
		BlockedCount:       h.blocked,
	}
	if h.total > 0 {
		out.SuccessRate = round2(float64(h.success) / float64(h.total) * 100)
	}
	if h.success > 0 {
		out.AvgResponseSeconds = round2(h.totalTime.Seconds() / float64(h.success))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

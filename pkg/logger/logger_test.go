package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingPublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]Digest
}

func (p *recordingPublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]Digest))
	return nil
}

func (p *recordingPublisher) snapshot() (string, [][]Digest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topic, append([][]Digest(nil), p.batches...)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path, Service: "pawnprice"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info("offer priced", String("offer_id", "o-1"), Float64("amount", 42.5))
	l.Debug("hidden")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	for _, want := range []string{`"message":"offer priced"`, `"offer_id":"o-1"`, `"service":"pawnprice"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}
}

func TestCollectorGroupsIdenticalErrors(t *testing.T) {
	pub := &recordingPublisher{}
	l := Nop()
	l.AttachCollector(&CollectorConfig{FlushInterval: time.Hour, Topic: "pawn.logs.errors", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("ebay search failed", Error(errors.New("timeout")))
	}
	l.Error("vision unavailable")
	l.Warn("not collected")

	if got := l.collector.Pending(); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	l.DetachCollector()

	deadline := time.Now().Add(2 * time.Second)
	for {
		topic, batches := pub.snapshot()
		if len(batches) == 1 {
			if topic != "pawn.logs.errors" {
				t.Errorf("topic = %s", topic)
			}
			counts := map[string]int{}
			for _, d := range batches[0] {
				counts[d.Message] = d.Count
			}
			if counts["ebay search failed"] != 3 || counts["vision unavailable"] != 1 {
				t.Errorf("counts = %v", counts)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("digests never published")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCollectorFlushesAtMaxDigests(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(&CollectorConfig{FlushInterval: time.Hour, MaxDigests: 2, Publisher: pub})
	defer c.Close()

	c.Add("error", "a", nil, "x.go:1")
	c.Add("error", "b", nil, "x.go:2")

	if got := c.Pending(); got != 0 {
		t.Fatalf("pending = %d, want 0 after early flush", got)
	}
}

package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

// Publisher ships a batch of digests to a topic. The Kafka producer
// satisfies it.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectorConfig struct {
	FlushInterval time.Duration
	MaxDigests    int // flush early once this many distinct records are held
	Topic         string
	Publisher     Publisher
}

// Digest groups identical error records seen between two flushes.
type Digest struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Collector aggregates error records and periodically publishes them.
type Collector struct {
	cfg     *CollectorConfig
	mu      sync.Mutex
	digests map[uint64]*Digest
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewCollector(cfg *CollectorConfig) *Collector {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.MaxDigests <= 0 {
		cfg.MaxDigests = 100
	}

	c := &Collector{
		cfg:     cfg,
		digests: make(map[uint64]*Digest),
		stop:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *Collector) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := fingerprint(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.digests[key]; ok {
		d.Count++
		d.LastSeen = now
	} else {
		c.digests[key] = &Digest{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.digests) >= c.cfg.MaxDigests {
		c.flushLocked()
	}
}

// Pending reports how many distinct records are waiting to be flushed.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.digests)
}

func fingerprint(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", level, message, caller)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b, _ := json.Marshal(fields[k])
		fmt.Fprintf(h, "|%s=%s", k, b)
	}
	return h.Sum64()
}

func (c *Collector) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
			return
		}
	}
}

func (c *Collector) flushLocked() {
	if len(c.digests) == 0 || c.cfg.Publisher == nil {
		return
	}

	batch := make([]Digest, 0, len(c.digests))
	for _, d := range c.digests {
		batch = append(batch, *d)
	}
	c.digests = make(map[uint64]*Digest)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			fmt.Printf("logger: failed to publish %d error digests: %v\n", len(batch), err)
		}
	}()
}

func (c *Collector) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
}

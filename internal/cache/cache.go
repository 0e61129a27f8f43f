package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// Targets caches the immutable shortId -> originalUrl mapping. A nil
// *Targets is a valid, always-missing cache.
type Targets struct {
	client *ristretto.Cache
	ttl    time.Duration
}

func New(maxItems int64, ttl time.Duration) (*Targets, error) {
	if maxItems <= 0 {
		maxItems = 10000
	}
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Targets{client: client, ttl: ttl}, nil
}

func (c *Targets) Get(shortID string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.client.Get(shortID)
	if !ok {
		return "", false
	}
	target, ok := v.(string)
	return target, ok
}

// Set is asynchronous; call Wait when a following Get must observe it.
func (c *Targets) Set(shortID, target string) {
	if c == nil {
		return
	}
	c.client.SetWithTTL(shortID, target, 1, c.ttl)
}

func (c *Targets) Wait() {
	if c == nil {
		return
	}
	c.client.Wait()
}

func (c *Targets) Close() {
	if c == nil {
		return
	}
	c.client.Close()
}

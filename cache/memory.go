package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero means no TTL
	touchedAt time.Time
}

// memoryCache is a capacity-bounded LRU store with per-entry TTL and an
// optional idle window. The LRU list front holds the most recently used
// entry; eviction removes from the back.
type memoryCache struct {
	ctx       context.Context
	cancel    context.CancelFunc
	mutex     sync.Mutex
	entries   map[string]*list.Element
	lru       *list.List
	cfg       config
	waitGroup sync.WaitGroup
	once      sync.Once

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

var _ Cache = (*memoryCache)(nil)
var _ StatsProvider = (*memoryCache)(nil)

// NewMemory returns an in-memory Cache. Expired entries are removed lazily
// on read and by a background goroutine at the WithExpiryCheck interval.
// Stored values are copied on Set; callers must not mutate slices returned
// by Get.
func NewMemory(parent context.Context, opts ...Option) Cache {
	cfg := applyOptions(opts)
	if cfg.name == "" {
		cfg.name = "memory"
	}
	ctx, cancel := context.WithCancel(parent)
	c := &memoryCache{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		cfg:     cfg,
	}
	c.waitGroup.Add(1)
	go c.run()
	return c
}

// expired reports whether the entry is past its TTL or idle window at now.
func (c *memoryCache) expired(e *memoryEntry, now time.Time) bool {
	if !e.expiresAt.IsZero() && e.expiresAt.Before(now) {
		return true
	}
	if c.cfg.idleTTL > 0 && now.Sub(e.touchedAt) > c.cfg.idleTTL {
		return true
	}
	return false
}

// getLocked looks up key, handling expiry and recency. Caller holds mutex.
func (c *memoryCache) getLocked(key string, now time.Time) ([]byte, bool) {
	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*memoryEntry)
	if c.expired(entry, now) {
		c.removeLocked(elem)
		return nil, false
	}
	entry.touchedAt = now
	c.lru.MoveToFront(elem)
	return entry.value, true
}

func (c *memoryCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	c.lru.Remove(elem)
	delete(c.entries, entry.key)
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	now := time.Now()
	c.mutex.Lock()
	value, ok := c.getLocked(key, now)
	c.mutex.Unlock()
	if !ok {
		c.misses.Add(1)
		return nil, ErrMiss
	}
	c.hits.Add(1)
	return value, nil
}

func (c *memoryCache) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	now := time.Now()
	result := make(map[string][]byte, len(keys))
	c.mutex.Lock()
	for _, key := range keys {
		if value, ok := c.getLocked(key, now); ok {
			result[key] = value
			c.hits.Add(1)
		} else {
			c.misses.Add(1)
		}
	}
	c.mutex.Unlock()
	return result, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.cfg.defaultTTL
	}
	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mutex.Lock()
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = stored
		entry.expiresAt = expiresAt
		entry.touchedAt = now
		c.lru.MoveToFront(elem)
		c.mutex.Unlock()
		return nil
	}
	if c.cfg.capacity > 0 {
		for len(c.entries) >= c.cfg.capacity {
			oldest := c.lru.Back()
			if oldest == nil {
				break
			}
			c.removeLocked(oldest)
			c.evictions.Add(1)
		}
	}
	elem := c.lru.PushFront(&memoryEntry{
		key:       key,
		value:     stored,
		expiresAt: expiresAt,
		touchedAt: now,
	})
	c.entries[key] = elem
	c.mutex.Unlock()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mutex.Lock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	c.mutex.Unlock()
	return nil
}

func (c *memoryCache) Clear(_ context.Context) error {
	c.mutex.Lock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	c.mutex.Unlock()
	return nil
}

func (c *memoryCache) Name() string {
	return c.cfg.name
}

func (c *memoryCache) Stats() Stats {
	c.mutex.Lock()
	size := len(c.entries)
	c.mutex.Unlock()
	return Stats{
		Size:      size,
		Capacity:  c.cfg.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *memoryCache) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

func (c *memoryCache) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			c.mutex.Lock()
			for elem := c.lru.Back(); elem != nil; {
				prev := elem.Prev()
				if c.expired(elem.Value.(*memoryEntry), now) {
					c.removeLocked(elem)
				}
				elem = prev
			}
			c.mutex.Unlock()
		}
	}
}

package barcache

import (
	"sort"
	"sync"
	"time"

	"PlanSentry/internal/domain/models"
)

const (
	DefaultCapacity  = 500
	DefaultMinWindow = 30
)

// series holds one symbol's bars ordered oldest first.
type series struct {
	mu   sync.RWMutex
	bars []models.Bar
}

// Cache is a rolling, capacity-bounded per-symbol bar buffer.
// Writers take the symbol's exclusive lock; readers get copies.
type Cache struct {
	capacity  int
	minWindow int
	now       func() time.Time

	mu     sync.RWMutex
	series map[string]*series
}

type Option func(*Cache)

func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

func WithMinWindow(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.minWindow = n
		}
	}
}

// WithClock overrides the time source for Age/IsStale.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		capacity:  DefaultCapacity,
		minWindow: DefaultMinWindow,
		now:       time.Now,
		series:    make(map[string]*series),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.minWindow > c.capacity {
		c.minWindow = c.capacity
	}
	return c
}

func (c *Cache) Capacity() int  { return c.capacity }
func (c *Cache) MinWindow() int { return c.minWindow }

func (c *Cache) get(symbol string) *series {
	c.mu.RLock()
	s := c.series[symbol]
	c.mu.RUnlock()
	return s
}

func (c *Cache) getOrCreate(symbol string) *series {
	if s := c.get(symbol); s != nil {
		return s
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.series[symbol]
	if !ok {
		s = &series{bars: make([]models.Bar, 0, c.capacity)}
		c.series[symbol] = s
	}
	return s
}

// Upsert inserts bar keyed by timestamp. A bar with an existing timestamp
// replaces the stored one; the oldest bar is evicted on overflow.
func (c *Cache) Upsert(symbol string, bar models.Bar) {
	s := c.getOrCreate(symbol)
	s.mu.Lock()
	s.upsert(bar, c.capacity)
	s.mu.Unlock()
}

// UpsertMany applies bars under a single lock acquisition.
func (c *Cache) UpsertMany(symbol string, bars []models.Bar) {
	if len(bars) == 0 {
		return
	}
	s := c.getOrCreate(symbol)
	s.mu.Lock()
	for _, b := range bars {
		s.upsert(b, c.capacity)
	}
	s.mu.Unlock()
}

func (s *series) upsert(bar models.Bar, capacity int) {
	n := len(s.bars)
	// fast path: newest bar
	if n == 0 || bar.Timestamp.After(s.bars[n-1].Timestamp) {
		s.bars = append(s.bars, bar)
	} else {
		i := sort.Search(n, func(i int) bool { return !s.bars[i].Timestamp.Before(bar.Timestamp) })
		if i < n && s.bars[i].Timestamp.Equal(bar.Timestamp) {
			s.bars[i] = bar
			return
		}
		if n >= capacity && i == 0 {
			// older than everything in a full buffer; it would be evicted immediately
			return
		}
		s.bars = append(s.bars, models.Bar{})
		copy(s.bars[i+1:], s.bars[i:])
		s.bars[i] = bar
	}
	if over := len(s.bars) - capacity; over > 0 {
		copy(s.bars, s.bars[over:])
		s.bars = s.bars[:capacity]
	}
}

// Window returns a copy of the last n bars ordered oldest first. It fails
// with ErrInsufficientData when fewer than the minimum window are cached.
// When n exceeds the cached count, every cached bar is returned.
func (c *Cache) Window(symbol string, n int) ([]models.Bar, error) {
	s := c.get(symbol)
	if s == nil {
		return nil, models.NewDataError(models.ErrInsufficientData, symbol, "no bars cached")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	have := len(s.bars)
	if have < c.minWindow {
		return nil, models.NewDataError(models.ErrInsufficientData, symbol, "have %d bars, need %d", have, c.minWindow)
	}
	if n <= 0 || n > have {
		n = have
	}
	out := make([]models.Bar, n)
	copy(out, s.bars[have-n:])
	return out, nil
}

// Len returns the number of cached bars for symbol.
func (c *Cache) Len(symbol string) int {
	s := c.get(symbol)
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

// Latest returns the newest bar.
func (c *Cache) Latest(symbol string) (models.Bar, bool) {
	s := c.get(symbol)
	if s == nil {
		return models.Bar{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.bars) == 0 {
		return models.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Age returns the time since the newest bar, and false if none is cached.
func (c *Cache) Age(symbol string) (time.Duration, bool) {
	b, ok := c.Latest(symbol)
	if !ok {
		return 0, false
	}
	age := c.now().Sub(b.Timestamp)
	if age < 0 {
		age = 0
	}
	return age, true
}

// IsStale reports whether the newest bar is older than maxAge. A symbol with
// no bars is stale.
func (c *Cache) IsStale(symbol string, maxAge time.Duration) bool {
	age, ok := c.Age(symbol)
	return !ok || age > maxAge
}

// Symbols lists cached symbols in sorted order.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.series))
	for sym := range c.series {
		out = append(out, sym)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of every cached bar for symbol.
func (c *Cache) Snapshot(symbol string) []models.Bar {
	s := c.get(symbol)
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Restore replaces a symbol's buffer, keeping the newest bars on overflow.
func (c *Cache) Restore(symbol string, bars []models.Bar) {
	sorted := make([]models.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	s := c.getOrCreate(symbol)
	s.mu.Lock()
	s.bars = s.bars[:0]
	for _, b := range sorted {
		s.upsert(b, c.capacity)
	}
	s.mu.Unlock()
}

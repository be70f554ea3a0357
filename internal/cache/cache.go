package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jgoulah/gridflex/internal/loader"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LoadFunc reads a table from a workbook sheet
type LoadFunc func(path, sheet string) (*loader.Table, error)

// Key identifies a cached table
type Key struct {
	Path  string
	Sheet string
}

func (k Key) String() string {
	return k.Path + "#" + k.Sheet
}

type entry struct {
	table    *loader.Table
	loadedAt time.Time
	modTime  time.Time
}

// Stats is a snapshot of cache counters
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Loads   uint64 `json:"loads"`
}

// TableCache memoizes loaded tables by (path, sheet).
// Tables handed out are shared and must be treated as read-only.
type TableCache struct {
	mu      sync.Mutex
	entries map[Key]entry
	group   singleflight.Group
	// epoch advances on every invalidation; loads started in an older
	// epoch are neither joined nor stored
	epoch uint64

	ttl          time.Duration
	watchModTime bool
	load         LoadFunc
	now          func() time.Time
	logger       *zap.Logger

	hits   uint64
	misses uint64
	loads  uint64
}

// Option configures a TableCache
type Option func(*TableCache)

// WithTTL expires entries after ttl; zero keeps them until invalidated
func WithTTL(ttl time.Duration) Option {
	return func(c *TableCache) { c.ttl = ttl }
}

// WithModTimeCheck reloads a table when its file modification time changes
func WithModTimeCheck(enabled bool) Option {
	return func(c *TableCache) { c.watchModTime = enabled }
}

// WithLoader replaces the workbook loader
func WithLoader(fn LoadFunc) Option {
	return func(c *TableCache) { c.load = fn }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *TableCache) { c.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *TableCache) { c.logger = logger }
}

// New creates a table cache
func New(opts ...Option) *TableCache {
	c := &TableCache{
		entries: make(map[Key]entry),
		load:    loader.Load,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("cache")
	return c
}

// Get returns the table for path and sheet, loading it on a miss
func (c *TableCache) Get(path, sheet string) (*loader.Table, error) {
	key, err := makeKey(path, sheet)
	if err != nil {
		return nil, err
	}

	modTime := c.modTime(key.Path)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && c.fresh(e, modTime) {
		c.hits++
		c.mu.Unlock()
		return e.table, nil
	}
	c.misses++
	if ok {
		delete(c.entries, key)
	}
	epoch := c.epoch
	c.mu.Unlock()

	flight := fmt.Sprintf("%s@%d", key, epoch)
	v, err, shared := c.group.Do(flight, func() (interface{}, error) {
		return c.fill(key, epoch)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("shared table load", zap.String("path", key.Path), zap.String("sheet", key.Sheet))
	}
	return v.(*loader.Table), nil
}

// Invalidate drops the entry for path and sheet
func (c *TableCache) Invalidate(path, sheet string) error {
	key, err := makeKey(path, sheet)
	if err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.entries, key)
	c.epoch++
	c.mu.Unlock()

	c.logger.Info("invalidated table", zap.String("path", key.Path), zap.String("sheet", key.Sheet))
	return nil
}

// Refresh invalidates and reloads the table for path and sheet
func (c *TableCache) Refresh(path, sheet string) (*loader.Table, error) {
	if err := c.Invalidate(path, sheet); err != nil {
		return nil, err
	}
	return c.Get(path, sheet)
}

// Purge drops every entry
func (c *TableCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[Key]entry)
	c.epoch++
	c.mu.Unlock()
}

// Stats returns the current counters
func (c *TableCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		Loads:   c.loads,
	}
}

func (c *TableCache) fill(key Key, epoch uint64) (*loader.Table, error) {
	// stat before reading so a write during the load forces a reload next time
	modTime := c.modTime(key.Path)

	start := c.now()
	table, err := c.load(key.Path, key.Sheet)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.loads++
	stale := c.epoch != epoch
	if !stale {
		c.entries[key] = entry{table: table, loadedAt: c.now(), modTime: modTime}
	}
	c.mu.Unlock()

	if stale {
		c.logger.Debug("discarding table invalidated during load",
			zap.String("path", key.Path), zap.String("sheet", key.Sheet))
		return table, nil
	}

	c.logger.Info("loaded table",
		zap.String("path", key.Path),
		zap.String("sheet", key.Sheet),
		zap.Int("records", len(table.Records)),
		zap.Duration("elapsed", c.now().Sub(start)),
	)
	return table, nil
}

// fresh must be called with c.mu held
func (c *TableCache) fresh(e entry, modTime time.Time) bool {
	if c.ttl > 0 && c.now().Sub(e.loadedAt) >= c.ttl {
		return false
	}
	if c.watchModTime && !modTime.Equal(e.modTime) {
		return false
	}
	return true
}

func (c *TableCache) modTime(path string) time.Time {
	if !c.watchModTime {
		return time.Time{}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func makeKey(path, sheet string) (Key, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Key{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	return Key{Path: abs, Sheet: sheet}, nil
}

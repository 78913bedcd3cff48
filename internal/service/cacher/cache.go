package cacher

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/metrics"
	"github.com/vertextoedge/frame-viewer/internal/port"
)

// Config contains asset cache configuration
type Config struct {
	MaxSizeBytes int64
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		MaxSizeBytes: 10 * 1000 * 1000 * 1000, // 10GB
	}
}

// Stats is a read-only snapshot for diagnostics and the overlay
type Stats struct {
	CurrentSize int64 `json:"current_size"`
	MaxSize     int64 `json:"max_size"`
	ItemCount   int   `json:"item_count"`
}

// entry is a tracked file; CacheEntry in the data model
type entry struct {
	key        domain.CacheKey
	path       string
	size       int64
	lastAccess time.Time
}

// Cache is a disk-backed, size-bounded LRU store of downloaded media files.
// The front of lru is the most recently used entry.
type Cache struct {
	config  *Config
	fs      port.FileSystem
	recency port.RecencyStore
	logger  *zap.Logger

	mu          sync.RWMutex
	index       map[domain.CacheKey]*list.Element
	lru         *list.List
	currentSize int64

	// recency changes not yet written to the store
	dirty   map[domain.CacheKey]time.Time
	removed map[domain.CacheKey]struct{}

	snapshotMu sync.Mutex
}

// New rebuilds the index from disk. recency may be nil, in which case scan
// order is the initial recency order.
func New(cfg *Config, fs port.FileSystem, recency port.RecencyStore, logger *zap.Logger) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultConfig().MaxSizeBytes
	}

	c := &Cache{
		config:  cfg,
		fs:      fs,
		recency: recency,
		logger:  logger,
		index:   make(map[domain.CacheKey]*list.Element),
		lru:     list.New(),
		dirty:   make(map[domain.CacheKey]time.Time),
		removed: make(map[domain.CacheKey]struct{}),
	}

	files, err := fs.Scan()
	if err != nil {
		return nil, err
	}

	var accessTimes map[domain.CacheKey]time.Time
	if recency != nil {
		accessTimes, err = recency.LoadAccessTimes()
		if err != nil {
			logger.Warn("failed to load access times, using scan order", zap.Error(err))
			accessTimes = nil
		}
	}

	entries := make([]*entry, 0, len(files))
	for _, f := range files {
		entries = append(entries, &entry{
			key:        f.Key,
			path:       f.Path,
			size:       f.Size,
			lastAccess: accessTimes[f.Key],
		})
	}
	if accessTimes != nil {
		// Unknown entries keep the zero time and so rank as least recent
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].lastAccess.Before(entries[j].lastAccess)
		})
	}

	for _, e := range entries {
		c.index[e.key] = c.lru.PushFront(e)
		c.currentSize += e.size
	}

	// Forget stored times for files that disappeared while we were down
	for key := range accessTimes {
		if _, ok := c.index[key]; !ok {
			c.removed[key] = struct{}{}
		}
	}

	c.updateGauges()

	logger.Info("asset cache initialized",
		zap.String("dir", fs.RootDir()),
		zap.Int("items", len(entries)),
		zap.String("size", humanize.Bytes(uint64(c.currentSize))),
		zap.String("max_size", humanize.Bytes(uint64(cfg.MaxSizeBytes))),
		zap.Bool("persisted_recency", recency != nil))

	return c, nil
}

// GetCachedPath returns the path of a cached asset
func (c *Cache) GetCachedPath(mediaID string, kind domain.AssetKind) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	el, ok := c.index[domain.CacheKey{MediaID: mediaID, Kind: kind}]
	if !ok {
		return "", false
	}
	return el.Value.(*entry).path, true
}

// Exists checks that a cached path is still present on disk
func (c *Cache) Exists(path string) bool {
	return c.fs.FileExists(path)
}

// Touch promotes an entry to most recently used; no-op if absent
func (c *Cache) Touch(mediaID string, kind domain.AssetKind) {
	key := domain.CacheKey{MediaID: mediaID, Kind: kind}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return
	}
	c.lru.MoveToFront(el)
	c.markAccessedLocked(el.Value.(*entry), time.Now())
}

// Stats returns the current accounting
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		CurrentSize: c.currentSize,
		MaxSize:     c.config.MaxSizeBytes,
		ItemCount:   len(c.index),
	}
}

// DiskUsage returns usage of the volume holding the cache
func (c *Cache) DiskUsage() (*port.DiskUsage, error) {
	return c.fs.GetDiskUsage()
}

// RootDir returns the cache directory
func (c *Cache) RootDir() string {
	return c.fs.RootDir()
}

func (c *Cache) markAccessedLocked(e *entry, at time.Time) {
	e.lastAccess = at
	c.dirty[e.key] = at
	delete(c.removed, e.key)
}

// removeLocked drops an entry from the index and accounting; the file is the
// caller's responsibility
func (c *Cache) removeLocked(el *list.Element) *entry {
	e := c.lru.Remove(el).(*entry)
	delete(c.index, e.key)
	c.currentSize -= e.size
	delete(c.dirty, e.key)
	c.removed[e.key] = struct{}{}
	return e
}

func (c *Cache) updateGauges() {
	metrics.CacheBytes.Set(float64(c.currentSize))
	metrics.CacheItems.Set(float64(len(c.index)))
}

package cacher

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/metrics"
)

// evictLocked removes least recently used entries until incoming bytes fit.
// It stops early when nothing is left or a delete fails; the write then
// proceeds over budget until a later pass succeeds.
func (c *Cache) evictLocked(incoming int64) {
	evictedCount := 0
	evictedBytes := int64(0)

	for c.currentSize+incoming > c.config.MaxSizeBytes {
		el := c.lru.Back()
		if el == nil {
			c.logger.Warn("cache over budget with nothing left to evict",
				zap.Int64("incoming_bytes", incoming),
				zap.Int64("max_bytes", c.config.MaxSizeBytes))
			break
		}

		victim := el.Value.(*entry)
		if err := c.fs.DeleteFile(victim.path); err != nil {
			c.logger.Warn("eviction failed, writing over budget",
				zap.String("path", victim.path),
				zap.Int64("current_bytes", c.currentSize),
				zap.Int64("incoming_bytes", incoming),
				zap.Error(err))
			break
		}

		c.removeLocked(el)
		c.fs.RemoveDirIfEmpty(filepath.Dir(victim.path))
		metrics.Evictions.Inc()

		evictedCount++
		evictedBytes += victim.size
		c.logger.Debug("asset evicted",
			zap.String("key", victim.key.String()),
			zap.Int64("size", victim.size))
	}

	if evictedCount > 0 {
		c.logger.Info("eviction completed",
			zap.Int("evicted_count", evictedCount),
			zap.Int64("evicted_bytes", evictedBytes))
	}
}

// CleanupOrphans removes every entry whose media id is not in playlist.
// Returns the number of entries removed.
func (c *Cache) CleanupOrphans(playlist domain.Playlist) int {
	ids := playlist.IDs()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, el := range c.index {
		if _, ok := ids[key.MediaID]; ok {
			continue
		}
		e := c.removeLocked(el)
		if err := c.fs.DeleteFile(e.path); err != nil {
			c.logger.Warn("failed to delete orphaned asset",
				zap.String("path", e.path),
				zap.Error(err))
		}
		c.fs.RemoveDirIfEmpty(filepath.Dir(e.path))
		removed++
	}

	if removed > 0 {
		c.updateGauges()
		c.logger.Info("removed orphaned assets",
			zap.Int("count", removed),
			zap.Int("playlist_size", len(playlist)))
	}
	return removed
}

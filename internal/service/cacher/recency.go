package cacher

import (
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/domain"
)

// FlushRecency writes pending access times and removals to the recency store.
// Failed batches are merged back and retried on the next flush.
func (c *Cache) FlushRecency() error {
	if c.recency == nil {
		return nil
	}

	c.mu.Lock()
	if len(c.dirty) == 0 && len(c.removed) == 0 {
		c.mu.Unlock()
		return nil
	}
	touched := c.dirty
	removedSet := c.removed
	c.dirty = make(map[domain.CacheKey]time.Time)
	c.removed = make(map[domain.CacheKey]struct{})
	c.mu.Unlock()

	removed := make([]domain.CacheKey, 0, len(removedSet))
	for key := range removedSet {
		removed = append(removed, key)
	}

	if err := c.recency.SaveAccessTimes(touched, removed); err != nil {
		c.mu.Lock()
		for key, at := range touched {
			if _, tracked := c.index[key]; !tracked {
				continue
			}
			if newer, ok := c.dirty[key]; !ok || newer.Before(at) {
				c.dirty[key] = at
			}
		}
		for _, key := range removed {
			if _, tracked := c.index[key]; !tracked {
				c.removed[key] = struct{}{}
			}
		}
		c.mu.Unlock()
		return err
	}

	c.logger.Debug("recency flushed",
		zap.Int("touched", len(touched)),
		zap.Int("removed", len(removed)))
	return nil
}

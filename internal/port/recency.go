package port

import (
	"time"

	"github.com/vertextoedge/frame-viewer/internal/domain"
)

// RecencyStore persists last-access timestamps so LRU order survives a restart
type RecencyStore interface {
	// LoadAccessTimes returns every stored timestamp
	LoadAccessTimes() (map[domain.CacheKey]time.Time, error)

	// SaveAccessTimes upserts touched keys and deletes removed keys in one batch
	SaveAccessTimes(touched map[domain.CacheKey]time.Time, removed []domain.CacheKey) error

	// Ping checks store connectivity
	Ping() error

	// Close closes the store
	Close() error
}

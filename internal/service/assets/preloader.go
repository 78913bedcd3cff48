package assets

import (
	"context"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/domain"
)

// Preloader fetches upcoming playlist entries ahead of display
type Preloader struct {
	manager *Manager
	logger  *zap.Logger
}

// NewPreloader creates a new preloader
func NewPreloader(manager *Manager, logger *zap.Logger) *Preloader {
	return &Preloader{
		manager: manager,
		logger:  logger,
	}
}

// PreloadNext sequentially preloads up to count entries after current,
// wrapping around and never revisiting current. Returns the ids visited.
func (p *Preloader) PreloadNext(ctx context.Context, playlist domain.Playlist, current, count int, token string) []string {
	n := len(playlist)
	if n == 0 || count <= 0 {
		return nil
	}

	visited := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		next := (current + i) % n
		if next == current {
			break
		}
		if ctx.Err() != nil {
			break
		}
		media := &playlist[next]
		p.manager.PreloadMedia(ctx, media, token)
		visited = append(visited, media.ID)
	}

	p.logger.Debug("preloaded upcoming media",
		zap.Int("from_index", current),
		zap.Int("count", len(visited)))
	return visited
}

// PreloadAll sequentially preloads every entry and returns when done
func (p *Preloader) PreloadAll(ctx context.Context, playlist domain.Playlist, token string) {
	p.logger.Info("full sync started", zap.Int("items", len(playlist)))

	for i := range playlist {
		if ctx.Err() != nil {
			p.logger.Warn("full sync interrupted",
				zap.Int("done", i),
				zap.Int("items", len(playlist)))
			return
		}
		p.manager.PreloadMedia(ctx, &playlist[i], token)
	}

	p.logger.Info("full sync completed", zap.Int("items", len(playlist)))
}

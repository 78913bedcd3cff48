package playback

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/adapter/pocketbase"
	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/metrics"
)

// RetryPolicy is the startup fetch backoff
type RetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultRetryPolicy starts at one second, doubles and caps at a minute
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: time.Second, Max: 60 * time.Second}
}

// Delay returns the wait after the given failed attempt (1-based)
func (r RetryPolicy) Delay(attempt int) time.Duration {
	d := r.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.Max {
			return r.Max
		}
	}
	if d > r.Max {
		return r.Max
	}
	return d
}

// FetchPlaylist lists the published media visible to this device. On
// failure it falls back to the persisted snapshot and marks playback offline.
func (o *Orchestrator) FetchPlaylist(ctx context.Context) (domain.Playlist, error) {
	p, _, err := o.fetchPlaylist(ctx)
	return p, err
}

// fetchPlaylist also reports whether the result came from the snapshot
func (o *Orchestrator) fetchPlaylist(ctx context.Context) (domain.Playlist, bool, error) {
	filter := pocketbase.ListFilter(o.config.DeviceID)

	playlist, err := o.listWithReauth(ctx, filter)
	if err == nil {
		o.setOffline(false)
		metrics.PlaylistFetches.WithLabelValues("ok").Inc()
		o.logger.Debug("playlist fetched", zap.Int("items", len(playlist)))
		return playlist, false, nil
	}

	o.logger.Warn("failed to fetch playlist", zap.Error(err))
	o.setOffline(true)

	cached, cacheErr := o.cache.LoadPlaylist()
	if cacheErr != nil {
		o.logger.Warn("failed to load playlist snapshot", zap.Error(cacheErr))
	} else if len(cached) > 0 {
		metrics.PlaylistFetches.WithLabelValues("snapshot").Inc()
		o.logger.Info("using cached playlist", zap.Int("items", len(cached)))
		return cached, true, nil
	}

	metrics.PlaylistFetches.WithLabelValues("error").Inc()
	return nil, false, err
}

// listWithReauth retries exactly once with a fresh token after a 401
func (o *Orchestrator) listWithReauth(ctx context.Context, filter string) (domain.Playlist, error) {
	playlist, err := o.remote.ListMedia(ctx, filter, o.tokens.Current())
	if err == nil || !domain.IsUnauthorized(err) || !o.tokens.CanRefresh() {
		return playlist, err
	}

	o.logger.Info("playlist request unauthorized, refreshing token")
	token, refreshErr := o.tokens.Refresh(ctx)
	if refreshErr != nil {
		o.logger.Warn("token refresh failed", zap.Error(refreshErr))
		return nil, err
	}
	return o.remote.ListMedia(ctx, filter, token)
}

// FetchPlaylistWithRetry wraps FetchPlaylist with exponential backoff. It is
// meant for startup; steady-state refreshes do not back off.
func (o *Orchestrator) FetchPlaylistWithRetry(ctx context.Context, maxAttempts int) (domain.Playlist, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		playlist, err := o.FetchPlaylist(ctx)
		if err == nil {
			return playlist, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}

		delay := o.retry.Delay(attempt)
		o.logger.Warn("playlist fetch failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

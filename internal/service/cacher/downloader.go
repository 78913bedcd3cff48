package cacher

import (
	"context"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/metrics"
	"github.com/vertextoedge/frame-viewer/internal/port"
)

// DownloadAndCache transfers url into the cache under (mediaID, kind).
//
// The body is streamed to a temp file without holding the index lock. Eviction,
// the final rename and registration then happen under the lock, so readers
// are only stalled for the bookkeeping and never for the network.
func (c *Cache) DownloadAndCache(ctx context.Context, fetcher port.AssetFetcher, url, mediaID string, kind domain.AssetKind, token string) (string, error) {
	key := domain.CacheKey{MediaID: mediaID, Kind: kind}
	start := time.Now()

	c.logger.Debug("downloading asset",
		zap.String("media_id", mediaID),
		zap.String("kind", kind.String()),
		zap.String("url", url))

	body, err := fetcher.Fetch(ctx, url, token)
	if err != nil {
		metrics.Downloads.WithLabelValues(kind.String(), "error").Inc()
		return "", err
	}
	defer body.Close()

	tr := &trackingReader{reader: body}
	tempPath, size, err := c.fs.WriteTemp(key, tr)
	if err != nil {
		metrics.Downloads.WithLabelValues(kind.String(), "error").Inc()
		if tr.err != nil {
			return "", domain.NewTransferError("download", url, tr.err)
		}
		if domain.IsStorage(err) {
			return "", err
		}
		return "", domain.NewStorageError("write", c.fs.CachePath(key), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A re-download replaces the previous file at the same path. The old
	// entry is kept out of eviction and only dropped once the rename lands.
	var previous *entry
	if el, ok := c.index[key]; ok {
		previous = c.lru.Remove(el).(*entry)
		delete(c.index, key)
		c.evictLocked(size - previous.size)
	} else {
		c.evictLocked(size)
	}

	path, err := c.fs.Commit(tempPath, key)
	if err != nil {
		metrics.Downloads.WithLabelValues(kind.String(), "error").Inc()
		if previous != nil {
			c.index[key] = c.lru.PushFront(previous)
		}
		c.updateGauges()
		return "", err
	}
	if previous != nil {
		c.currentSize -= previous.size
	}

	e := &entry{key: key, path: path, size: size}
	c.index[key] = c.lru.PushFront(e)
	c.currentSize += size
	c.markAccessedLocked(e, time.Now())
	c.updateGauges()

	metrics.Downloads.WithLabelValues(kind.String(), "ok").Inc()
	c.logger.Info("asset cached",
		zap.String("media_id", mediaID),
		zap.String("kind", kind.String()),
		zap.String("size", humanize.Bytes(uint64(size))),
		zap.Duration("took", time.Since(start)),
		zap.Int64("cache_bytes", c.currentSize))

	return path, nil
}

// trackingReader records read errors so transfer failures can be told apart
// from local write failures
type trackingReader struct {
	reader io.Reader
	err    error
}

func (r *trackingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}

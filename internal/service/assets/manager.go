package assets

import (
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/port"
)

// Cache is the subset of the asset cache the manager needs
type Cache interface {
	GetCachedPath(mediaID string, kind domain.AssetKind) (string, bool)
	Exists(path string) bool
	DownloadAndCache(ctx context.Context, fetcher port.AssetFetcher, url, mediaID string, kind domain.AssetKind, token string) (string, error)
}

// Manager resolves the asset variants of playlist entries into local files
type Manager struct {
	cache   Cache
	fetcher port.AssetFetcher
	baseURL string
	logger  *zap.Logger

	flights singleflight.Group
}

// NewManager creates a new asset manager. baseURL resolves relative asset URLs.
func NewManager(cache Cache, fetcher port.AssetFetcher, baseURL string, logger *zap.Logger) *Manager {
	return &Manager{
		cache:   cache,
		fetcher: fetcher,
		baseURL: baseURL,
		logger:  logger,
	}
}

// FullURL returns u unchanged when it is absolute, otherwise joined to base
func FullURL(base, u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return base + u
}

// EnsureCached returns the local path of one asset variant, downloading it
// when missing. A media entry without a URL for kind yields "" and no error.
// Concurrent callers for the same key share a single download.
func (m *Manager) EnsureCached(ctx context.Context, media *domain.Media, kind domain.AssetKind, token string) (string, error) {
	url := media.URLFor(kind)
	if url == "" {
		return "", nil
	}

	if path, ok := m.cachedPath(media.ID, kind); ok {
		return path, nil
	}

	key := domain.CacheKey{MediaID: media.ID, Kind: kind}.String()
	result, err, shared := m.flights.Do(key, func() (interface{}, error) {
		// Another flight may have finished between the check and Do
		if path, ok := m.cachedPath(media.ID, kind); ok {
			return path, nil
		}
		return m.cache.DownloadAndCache(ctx, m.fetcher, FullURL(m.baseURL, url), media.ID, kind, token)
	})
	if err != nil {
		return "", err
	}
	if shared {
		m.logger.Debug("joined in-flight download",
			zap.String("media_id", media.ID),
			zap.String("kind", kind.String()))
	}
	return result.(string), nil
}

func (m *Manager) cachedPath(mediaID string, kind domain.AssetKind) (string, bool) {
	path, ok := m.cache.GetCachedPath(mediaID, kind)
	if !ok || !m.cache.Exists(path) {
		return "", false
	}
	return path, true
}

// PreloadMedia makes every required variant of media local. Failures are
// logged per kind and never abort the remaining kinds.
func (m *Manager) PreloadMedia(ctx context.Context, media *domain.Media, token string) {
	for _, kind := range media.RequiredKinds() {
		if _, err := m.EnsureCached(ctx, media, kind, token); err != nil {
			m.logger.Warn("failed to cache asset",
				zap.String("media_id", media.ID),
				zap.String("kind", kind.String()),
				zap.Error(err))
		}
	}
}

// LoadTextures decodes the cached blur and main images of media. Slots whose
// file is missing or undecodable stay nil.
func (m *Manager) LoadTextures(media *domain.Media) *port.Textures {
	textures := &port.Textures{MediaID: media.ID}

	if img, _, err := m.loadImage(media.ID, domain.KindBlur); err == nil {
		textures.Blur = img
	} else if !errors.Is(err, domain.ErrNotFound) {
		m.logger.Warn("failed to load blur texture",
			zap.String("media_id", media.ID),
			zap.Error(err))
	}

	img, cfg, err := m.loadImage(media.ID, media.PrimaryKind())
	switch {
	case err == nil:
		textures.Main = img
		textures.Width = cfg.Width
		textures.Height = cfg.Height
	case !errors.Is(err, domain.ErrNotFound):
		m.logger.Warn("failed to load main texture",
			zap.String("media_id", media.ID),
			zap.String("kind", media.PrimaryKind().String()),
			zap.Error(err))
	}

	return textures
}

func (m *Manager) loadImage(mediaID string, kind domain.AssetKind) (image.Image, image.Config, error) {
	path, ok := m.cachedPath(mediaID, kind)
	if !ok {
		return nil, image.Config{}, domain.ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, image.Config{}, domain.NewStorageError("open", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, image.Config{}, domain.NewUnsupportedMediaError(path, err)
	}
	b := img.Bounds()
	return img, image.Config{Width: b.Dx(), Height: b.Dy()}, nil
}

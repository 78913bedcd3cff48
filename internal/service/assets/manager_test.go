package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/adapter/filesystem"
	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/service/cacher"
)

// mockFetcher serves bodies by URL and counts calls
type mockFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  map[string]int
	delay  time.Duration
	total  atomic.Int32
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		bodies: make(map[string][]byte),
		calls:  make(map[string]int),
	}
}

func (f *mockFetcher) Fetch(ctx context.Context, url, token string) (io.ReadCloser, error) {
	f.total.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return nil, domain.NewTransferError("download", url, errors.New("connection refused"))
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *mockFetcher) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestManager(t *testing.T, fetcher *mockFetcher) (*Manager, *cacher.Cache) {
	t.Helper()
	fs, err := filesystem.NewManager(t.TempDir())
	require.NoError(t, err)
	cache, err := cacher.New(&cacher.Config{MaxSizeBytes: 1 << 30}, fs, nil, zap.NewNop())
	require.NoError(t, err)
	return NewManager(cache, fetcher, "http://pb.local", zap.NewNop()), cache
}

func TestFullURL(t *testing.T) {
	tests := []struct {
		base string
		url  string
		want string
	}{
		{"http://pb.local", "/api/files/a.jpg", "http://pb.local/api/files/a.jpg"},
		{"http://pb.local/", "/api/files/a.jpg", "http://pb.local/api/files/a.jpg"},
		{"http://pb.local", "api/files/a.jpg", "http://pb.local/api/files/a.jpg"},
		{"http://pb.local", "https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"http://pb.local", "http://other/a.jpg", "http://other/a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := FullURL(tt.base, tt.url); got != tt.want {
				t.Errorf("FullURL(%q, %q) = %q, want %q", tt.base, tt.url, got, tt.want)
			}
		})
	}
}

func TestManager_EnsureCached(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.bodies["http://pb.local/a.jpg"] = []byte("display")
	m, _ := newTestManager(t, fetcher)
	media := &domain.Media{ID: "a", Type: domain.MediaTypeImage, DisplayURL: "/a.jpg"}

	t.Run("absent url is not an error", func(t *testing.T) {
		path, err := m.EnsureCached(context.Background(), media, domain.KindVideo, "")
		assert.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("downloads once then hits cache", func(t *testing.T) {
		first, err := m.EnsureCached(context.Background(), media, domain.KindDisplay, "tok")
		require.NoError(t, err)
		second, err := m.EnsureCached(context.Background(), media, domain.KindDisplay, "tok")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, fetcher.callsFor("http://pb.local/a.jpg"))
	})

	t.Run("redownloads when file vanished", func(t *testing.T) {
		path, err := m.EnsureCached(context.Background(), media, domain.KindDisplay, "")
		require.NoError(t, err)
		require.NoError(t, os.Remove(path))

		_, err = m.EnsureCached(context.Background(), media, domain.KindDisplay, "")
		require.NoError(t, err)
		assert.Equal(t, 2, fetcher.callsFor("http://pb.local/a.jpg"))
	})

	t.Run("transfer failure propagates", func(t *testing.T) {
		broken := &domain.Media{ID: "b", Type: domain.MediaTypeImage, DisplayURL: "/missing.jpg"}
		_, err := m.EnsureCached(context.Background(), broken, domain.KindDisplay, "")
		assert.True(t, domain.IsTransfer(err))
	})
}

func TestManager_EnsureCachedSharesConcurrentDownloads(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.delay = 20 * time.Millisecond
	fetcher.bodies["http://pb.local/v.mp4"] = []byte("video")
	m, _ := newTestManager(t, fetcher)
	media := &domain.Media{ID: "v", Type: domain.MediaTypeVideo, VideoURL: "/v.mp4"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.EnsureCached(context.Background(), media, domain.KindVideo, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fetcher.callsFor("http://pb.local/v.mp4"))
}

func TestManager_PreloadMedia(t *testing.T) {
	tests := []struct {
		name      string
		media     domain.Media
		available []string
		wantKinds []domain.AssetKind
		missing   []domain.AssetKind
	}{
		{
			name:      "image caches display and blur",
			media:     domain.Media{ID: "img", Type: domain.MediaTypeImage, DisplayURL: "/d.jpg", BlurURL: "/b.jpg"},
			available: []string{"/d.jpg", "/b.jpg"},
			wantKinds: []domain.AssetKind{domain.KindDisplay, domain.KindBlur},
		},
		{
			name: "video also caches poster and video",
			media: domain.Media{ID: "vid", Type: domain.MediaTypeVideo,
				DisplayURL: "/d.jpg", BlurURL: "/b.jpg", PosterURL: "/p.jpg", VideoURL: "/v.mp4"},
			available: []string{"/d.jpg", "/b.jpg", "/p.jpg", "/v.mp4"},
			wantKinds: []domain.AssetKind{domain.KindDisplay, domain.KindBlur, domain.KindPoster, domain.KindVideo},
		},
		{
			name: "one failing kind does not stop the rest",
			media: domain.Media{ID: "partial", Type: domain.MediaTypeVideo,
				DisplayURL: "/d.jpg", BlurURL: "/gone.jpg", PosterURL: "/p.jpg", VideoURL: "/v.mp4"},
			available: []string{"/d.jpg", "/p.jpg", "/v.mp4"},
			wantKinds: []domain.AssetKind{domain.KindDisplay, domain.KindPoster, domain.KindVideo},
			missing:   []domain.AssetKind{domain.KindBlur},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newMockFetcher()
			for _, u := range tt.available {
				fetcher.bodies["http://pb.local"+u] = []byte(u)
			}
			m, cache := newTestManager(t, fetcher)

			m.PreloadMedia(context.Background(), &tt.media, "")

			for _, kind := range tt.wantKinds {
				_, ok := cache.GetCachedPath(tt.media.ID, kind)
				assert.True(t, ok, "kind %s should be cached", kind)
			}
			for _, kind := range tt.missing {
				_, ok := cache.GetCachedPath(tt.media.ID, kind)
				assert.False(t, ok, "kind %s should be missing", kind)
			}
		})
	}
}

func TestManager_LoadTextures(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.bodies["http://pb.local/d.png"] = pngBytes(t, 64, 48)
	fetcher.bodies["http://pb.local/b.png"] = pngBytes(t, 8, 6)
	fetcher.bodies["http://pb.local/p.png"] = pngBytes(t, 32, 18)
	fetcher.bodies["http://pb.local/garbage"] = []byte("not an image")
	m, _ := newTestManager(t, fetcher)
	ctx := context.Background()

	t.Run("image uses display and blur", func(t *testing.T) {
		media := &domain.Media{ID: "img", Type: domain.MediaTypeImage, DisplayURL: "/d.png", BlurURL: "/b.png"}
		m.PreloadMedia(ctx, media, "")

		tex := m.LoadTextures(media)
		assert.Equal(t, "img", tex.MediaID)
		assert.NotNil(t, tex.Blur)
		require.NotNil(t, tex.Main)
		assert.Equal(t, 64, tex.Width)
		assert.Equal(t, 48, tex.Height)
	})

	t.Run("video uses poster", func(t *testing.T) {
		media := &domain.Media{ID: "vid", Type: domain.MediaTypeVideo, DisplayURL: "/d.png", PosterURL: "/p.png"}
		m.PreloadMedia(ctx, media, "")

		tex := m.LoadTextures(media)
		assert.Nil(t, tex.Blur)
		require.NotNil(t, tex.Main)
		assert.Equal(t, 32, tex.Width)
		assert.Equal(t, 18, tex.Height)
	})

	t.Run("undecodable and missing files leave slots empty", func(t *testing.T) {
		media := &domain.Media{ID: "bad", Type: domain.MediaTypeImage, DisplayURL: "/garbage"}
		m.PreloadMedia(ctx, media, "")

		tex := m.LoadTextures(media)
		assert.Nil(t, tex.Main)
		assert.Nil(t, tex.Blur)
		assert.Zero(t, tex.Width)
	})
}

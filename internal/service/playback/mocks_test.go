package playback

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/domain/event"
	"github.com/vertextoedge/frame-viewer/internal/port"
	"github.com/vertextoedge/frame-viewer/internal/util/taskpool"
)

// mockRemote returns scripted list results in order; the last one repeats
type mockRemote struct {
	mu      sync.Mutex
	results []listResult
	tokens  []string
	authErr error
	auth    string
	logins  int
}

type listResult struct {
	playlist domain.Playlist
	err      error
}

func (m *mockRemote) ListMedia(ctx context.Context, filter, token string) (domain.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	if len(m.results) == 0 {
		return domain.Playlist{}, nil
	}
	r := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	return r.playlist.Clone(), r.err
}

func (m *mockRemote) AuthWithPassword(ctx context.Context, identity, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins++
	return m.auth, m.authErr
}

func (m *mockRemote) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens...)
}

// mockCache keeps the snapshot in memory
type mockCache struct {
	mu       sync.Mutex
	snapshot domain.Playlist
	saveErr  error
	saves    int
	orphans  []domain.Playlist
	touched  map[domain.CacheKey]int
	paths    map[domain.CacheKey]string
}

func newMockCache() *mockCache {
	return &mockCache{
		touched: make(map[domain.CacheKey]int),
		paths:   make(map[domain.CacheKey]string),
	}
}

func (m *mockCache) LoadPlaylist() (domain.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return domain.Playlist{}, nil
	}
	return m.snapshot.Clone(), nil
}

func (m *mockCache) SavePlaylist(p domain.Playlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snapshot = p.Clone()
	return nil
}

func (m *mockCache) CleanupOrphans(p domain.Playlist) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orphans = append(m.orphans, p.Clone())
	return 0
}

func (m *mockCache) Touch(mediaID string, kind domain.AssetKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[domain.CacheKey{MediaID: mediaID, Kind: kind}]++
}

func (m *mockCache) GetCachedPath(mediaID string, kind domain.AssetKind) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paths[domain.CacheKey{MediaID: mediaID, Kind: kind}]
	return p, ok
}

func (m *mockCache) Exists(path string) bool {
	return path != ""
}

func (m *mockCache) saved() (domain.Playlist, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Clone(), m.saves
}

// mockAssets returns an empty texture bundle per media
type mockAssets struct {
	preloaded atomic.Int32
}

func (m *mockAssets) PreloadMedia(ctx context.Context, media *domain.Media, token string) {
	m.preloaded.Add(1)
}

func (m *mockAssets) LoadTextures(media *domain.Media) *port.Textures {
	return &port.Textures{MediaID: media.ID}
}

type mockPreloader struct {
	mu   sync.Mutex
	next [][2]int
	all  int

	// block holds every preload until closed or cancelled
	block chan struct{}
}

func (m *mockPreloader) wait(ctx context.Context) {
	if m.block == nil {
		return
	}
	select {
	case <-m.block:
	case <-ctx.Done():
	}
}

func (m *mockPreloader) PreloadNext(ctx context.Context, playlist domain.Playlist, current, count int, token string) []string {
	m.mu.Lock()
	m.next = append(m.next, [2]int{current, count})
	m.mu.Unlock()
	m.wait(ctx)
	return nil
}

func (m *mockPreloader) PreloadAll(ctx context.Context, playlist domain.Playlist, token string) {
	m.mu.Lock()
	m.all++
	m.mu.Unlock()
	m.wait(ctx)
}

// mockSurface records the last frame and returns queued commands once
type mockSurface struct {
	mu     sync.Mutex
	input  []port.Command
	last   port.Frame
	frames int
}

func (m *mockSurface) Size() (int, int) { return 1920, 1080 }

func (m *mockSurface) PollInput() []port.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmds := m.input
	m.input = nil
	return cmds
}

func (m *mockSurface) Render(frame port.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = frame
	m.frames++
	return nil
}

func (m *mockSurface) Close() error { return nil }

func (m *mockSurface) push(c port.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = append(m.input, c)
}

func (m *mockSurface) lastFrame() port.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type mockStream struct {
	ended  atomic.Bool
	closed atomic.Bool
}

func (s *mockStream) Frame() image.Image { return nil }
func (s *mockStream) Ended() bool        { return s.ended.Load() }
func (s *mockStream) Close() error {
	s.closed.Store(true)
	return nil
}

type mockDecoder struct {
	mu      sync.Mutex
	streams []*mockStream
	opts    []port.StreamOptions
	err     error
}

func (d *mockDecoder) Open(path string, opts port.StreamOptions) (port.VideoStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	s := &mockStream{}
	d.streams = append(d.streams, s)
	d.opts = append(d.opts, opts)
	return s, nil
}

func (d *mockDecoder) latest() *mockStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// fixture wires an orchestrator to mocks
type fixture struct {
	o         *Orchestrator
	remote    *mockRemote
	cache     *mockCache
	assets    *mockAssets
	preloader *mockPreloader
	surface   *mockSurface
	decoder   *mockDecoder
	pool      *taskpool.Pool
	events    chan event.DomainEvent
}

func newFixture(t *testing.T, cfg *Config, creds Credentials) *fixture {
	t.Helper()
	f := &fixture{
		remote:    &mockRemote{},
		cache:     newMockCache(),
		assets:    &mockAssets{},
		preloader: &mockPreloader{},
		surface:   &mockSurface{},
		decoder:   &mockDecoder{},
		pool:      taskpool.New(4, zap.NewNop()),
		events:    make(chan event.DomainEvent, 100),
	}
	t.Cleanup(func() { f.pool.Close() })

	f.o = New(cfg, Deps{
		Remote:    f.remote,
		Tokens:    NewTokenSource(creds, f.remote, zap.NewNop()),
		Cache:     f.cache,
		Assets:    f.assets,
		Preloader: f.preloader,
		Pool:      f.pool,
		Surface:   f.surface,
		Decoder:   f.decoder,
		Events:    f.events,
	}, zap.NewNop())
	f.o.retry = RetryPolicy{Base: time.Millisecond, Max: 4 * time.Millisecond}
	return f
}

// settle runs one tick, waits for background work and ticks again to
// apply its results
func (f *fixture) settle(t *testing.T, now time.Time) {
	t.Helper()
	if err := f.o.tick(now); err != nil {
		t.Fatalf("tick() error = %v", err)
	}
	f.pool.Wait()
	if err := f.o.tick(now); err != nil {
		t.Fatalf("tick() error = %v", err)
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Transition = TransitionCut
	cfg.Interval = 10 * time.Second
	cfg.RefreshInterval = 0
	cfg.MinRefreshInterval = 0
	return cfg
}

func images(ids ...string) domain.Playlist {
	p := make(domain.Playlist, 0, len(ids))
	for _, id := range ids {
		p = append(p, domain.Media{ID: id, Type: domain.MediaTypeImage, DisplayURL: "/" + id + ".jpg"})
	}
	return p
}

func ids(p domain.Playlist) []string {
	out := make([]string, 0, len(p))
	for _, m := range p {
		out = append(out, m.ID)
	}
	return out
}

var errNetwork = domain.NewTransferError("list", "http://pb.local", errors.New("connection refused"))

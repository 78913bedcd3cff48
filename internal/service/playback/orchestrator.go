package playback

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/domain/event"
	"github.com/vertextoedge/frame-viewer/internal/metrics"
	"github.com/vertextoedge/frame-viewer/internal/port"
	"github.com/vertextoedge/frame-viewer/internal/util/ratelimiter"
	"github.com/vertextoedge/frame-viewer/internal/util/taskpool"
)

// maxEventsPerTick bounds realtime work done in one loop iteration
const maxEventsPerTick = 64

var errQuit = errors.New("quit requested")

// Config contains playback configuration
type Config struct {
	DeviceID             string
	Interval             time.Duration
	Transition           TransitionKind
	TransitionDuration   time.Duration
	VideoLoopThreshold   time.Duration
	Shuffle              bool
	FullSyncOnStartup    bool
	PreloadAhead         int
	StartupPreload       int
	FrameInterval        time.Duration
	StartupFetchAttempts int

	// RefreshInterval triggers a periodic full refresh; zero disables it
	RefreshInterval time.Duration

	// MinRefreshInterval spaces triggered refreshes
	MinRefreshInterval time.Duration
}

// DefaultConfig returns default playback configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:             8 * time.Second,
		Transition:           TransitionFade,
		TransitionDuration:   time.Second,
		VideoLoopThreshold:   30 * time.Second,
		PreloadAhead:         2,
		StartupPreload:       3,
		FrameInterval:        16 * time.Millisecond,
		StartupFetchAttempts: 5,
		RefreshInterval:      10 * time.Minute,
		MinRefreshInterval:   2 * time.Second,
	}
}

// Cache is the subset of the asset cache playback needs
type Cache interface {
	LoadPlaylist() (domain.Playlist, error)
	SavePlaylist(playlist domain.Playlist) error
	CleanupOrphans(playlist domain.Playlist) int
	Touch(mediaID string, kind domain.AssetKind)
	GetCachedPath(mediaID string, kind domain.AssetKind) (string, bool)
	Exists(path string) bool
}

// Assets materializes and decodes one playlist entry
type Assets interface {
	PreloadMedia(ctx context.Context, media *domain.Media, token string)
	LoadTextures(media *domain.Media) *port.Textures
}

// Preloader fetches upcoming entries ahead of display
type Preloader interface {
	PreloadNext(ctx context.Context, playlist domain.Playlist, current, count int, token string) []string
	PreloadAll(ctx context.Context, playlist domain.Playlist, token string)
}

// Deps are the collaborators of the orchestrator. Events and Decoder may be nil.
type Deps struct {
	Remote    port.MediaLister
	Tokens    *TokenSource
	Cache     Cache
	Assets    Assets
	Preloader Preloader
	Pool      *taskpool.Pool
	Surface   port.Surface
	Decoder   port.VideoDecoder
	Events    <-chan event.DomainEvent
}

// Status is the diagnostics view of playback
type Status struct {
	PlaylistLength    int     `json:"playlist_length"`
	Index             int     `json:"index"`
	CurrentID         string  `json:"current_id"`
	ShownID           string  `json:"shown_id"`
	Offline           bool    `json:"offline"`
	Paused            bool    `json:"paused"`
	RealtimeConnected bool    `json:"realtime_connected"`
	IntervalSeconds   float64 `json:"interval_seconds"`
}

type preparedItem struct {
	seq      uint64
	media    domain.Media
	index    int
	textures *port.Textures
	cut      bool
}

type refreshResult struct {
	playlist     domain.Playlist
	fromSnapshot bool
	err          error
}

// Orchestrator owns the playlist and cursor and runs the render loop.
// Network and disk work runs in the task pool and reports back over
// channels that the loop drains without blocking.
type Orchestrator struct {
	config    *Config
	remote    port.MediaLister
	tokens    *TokenSource
	cache     Cache
	assets    Assets
	preloader Preloader
	pool      *taskpool.Pool
	surface   port.Surface
	events    <-chan event.DomainEvent
	logger    *zap.Logger
	retry     RetryPolicy

	state     playlistState
	offline   atomic.Bool
	paused    atomic.Bool
	connected atomic.Bool
	interval  atomic.Int64
	shownID   atomic.Value

	commands  chan port.Command
	prepared  chan preparedItem
	refreshed chan refreshResult
	refreshes *ratelimiter.Limiter

	persistSeq   atomic.Uint64
	persistMu    sync.Mutex
	persistedSeq uint64

	// Owned by the loop goroutine
	transition      *Transition
	video           *VideoManager
	current         *port.Textures
	next            *port.Textures
	nextMedia       domain.Media
	lastAdvance     time.Time
	lastRefresh     time.Time
	seq             uint64
	advancePending  bool
	refreshInFlight bool
}

// New creates a new Orchestrator
func New(cfg *Config, deps Deps, logger *zap.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 8 * time.Second
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 16 * time.Millisecond
	}
	if cfg.StartupFetchAttempts <= 0 {
		cfg.StartupFetchAttempts = 5
	}
	if cfg.PreloadAhead < 0 {
		cfg.PreloadAhead = 0
	}
	if cfg.StartupPreload < 0 {
		cfg.StartupPreload = 0
	}

	o := &Orchestrator{
		config:     cfg,
		remote:     deps.Remote,
		tokens:     deps.Tokens,
		cache:      deps.Cache,
		assets:     deps.Assets,
		preloader:  deps.Preloader,
		pool:       deps.Pool,
		surface:    deps.Surface,
		events:     deps.Events,
		logger:     logger,
		retry:      DefaultRetryPolicy(),
		commands:   make(chan port.Command, 16),
		prepared:   make(chan preparedItem, 8),
		refreshed:  make(chan refreshResult, 1),
		refreshes:  ratelimiter.New(cfg.MinRefreshInterval),
		transition: NewTransition(cfg.TransitionDuration),
		video:      NewVideoManager(deps.Decoder, cfg.VideoLoopThreshold, logger),
	}
	o.interval.Store(int64(cfg.Interval))
	o.shownID.Store("")
	o.lastRefresh = time.Now()
	return o
}

// Init obtains a token and the initial playlist, then starts the startup
// preload. On failure playback starts empty and the error is returned.
func (o *Orchestrator) Init(ctx context.Context) error {
	if err := o.tokens.Init(ctx); err != nil {
		o.logger.Warn("initial authentication failed", zap.Error(err))
	}

	playlist, err := o.FetchPlaylistWithRetry(ctx, o.config.StartupFetchAttempts)
	if err != nil {
		o.state.replace(nil)
		return fmt.Errorf("initial playlist fetch: %w", err)
	}

	if !o.offline.Load() {
		if err := o.saveSnapshot(o.persistSeq.Add(1), playlist); err != nil {
			o.logger.Warn("failed to save playlist snapshot", zap.Error(err))
		}
	}

	if o.config.Shuffle {
		rand.Shuffle(len(playlist), func(i, j int) {
			playlist[i], playlist[j] = playlist[j], playlist[i]
		})
	}
	o.state.replace(playlist)
	o.lastRefresh = time.Now()

	o.logger.Info("playlist loaded",
		zap.Int("items", len(playlist)),
		zap.Bool("offline", o.offline.Load()),
		zap.Bool("shuffled", o.config.Shuffle))

	if len(playlist) == 0 {
		o.logger.Warn("no media items in playlist")
		return nil
	}

	o.preloadAhead(0, o.config.StartupPreload)
	if o.config.FullSyncOnStartup {
		items, token := playlist.Clone(), o.tokens.Current()
		o.pool.Go("full-sync", func(ctx context.Context) error {
			o.preloader.PreloadAll(ctx, items, token)
			return nil
		})
	}
	return nil
}

// Run drives the render loop until ctx is done or a quit command arrives
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.config.FrameInterval)
	defer ticker.Stop()
	defer o.video.Stop()

	o.lastAdvance = time.Now()
	o.logger.Info("playback started",
		zap.Duration("interval", o.Interval()),
		zap.String("transition", o.config.Transition.String()),
		zap.Duration("frame_interval", o.config.FrameInterval))

	for {
		if err := o.tick(time.Now()); err != nil {
			if errors.Is(err, errQuit) {
				o.logger.Info("quit requested")
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// tick is one loop iteration. It never blocks.
func (o *Orchestrator) tick(now time.Time) error {
	if err := o.handleInput(now); err != nil {
		return err
	}
	o.drainEvents()
	o.drainResults(now)
	o.maybeRefresh(now)

	if o.current == nil && !o.advancePending && o.state.len() > 0 {
		o.advance(now, 0, "initial", true)
	}

	// An ended stream stays open until the swap; one advance per end
	if o.video.IsEnded() && !o.advancePending && !o.transition.Active() && !o.paused.Load() {
		o.logger.Debug("video ended, advancing", zap.String("media_id", o.video.MediaID()))
		o.advance(now, 1, "video_end", false)
	}

	if o.transition.Update(now) {
		o.swap()
	}

	if o.shouldAdvance(now) {
		o.advance(now, 1, "timer", false)
	}

	o.render()
	return nil
}

func (o *Orchestrator) handleInput(now time.Time) error {
	var cmds []port.Command
	if o.surface != nil {
		cmds = o.surface.PollInput()
	}
drain:
	for {
		select {
		case c := <-o.commands:
			cmds = append(cmds, c)
		default:
			break drain
		}
	}

	for _, c := range cmds {
		switch c {
		case port.CommandQuit:
			return errQuit
		case port.CommandNext:
			o.manual(now, 1)
		case port.CommandPrevious:
			o.manual(now, -1)
		case port.CommandTogglePause:
			paused := !o.paused.Load()
			o.paused.Store(paused)
			if !paused {
				o.lastAdvance = now
			}
			o.logger.Info("playback pause toggled", zap.Bool("paused", paused))
		}
	}
	return nil
}

// manual handles next/previous: no animation and the timer restarts
func (o *Orchestrator) manual(now time.Time, delta int) {
	o.transition.Reset()
	o.next = nil
	o.advance(now, delta, "manual", true)
}

func (o *Orchestrator) shouldAdvance(now time.Time) bool {
	if o.transition.Active() || o.advancePending || o.paused.Load() {
		return false
	}
	if now.Sub(o.lastAdvance) < o.Interval() {
		return false
	}
	if o.video.IsPlaying() && !o.video.IsLooping() {
		return false
	}
	// Re-showing a lone image every interval is pointless
	return o.current == nil || o.state.len() > 1
}

// advance moves the cursor and prepares the new entry in the background
func (o *Orchestrator) advance(now time.Time, delta int, reason string, cut bool) {
	o.lastAdvance = now
	media, index, ok := o.state.step(delta)
	if !ok {
		return
	}

	o.seq++
	seq := o.seq
	token := o.tokens.Current()

	scheduled := o.pool.GoUrgent("prepare:"+media.ID, func(ctx context.Context) error {
		o.assets.PreloadMedia(ctx, &media, token)
		textures := o.assets.LoadTextures(&media)
		select {
		case o.prepared <- preparedItem{seq: seq, media: media, index: index, textures: textures, cut: cut}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if !scheduled {
		return
	}
	o.advancePending = true

	metrics.Advances.WithLabelValues(reason).Inc()
	o.logger.Debug("advancing",
		zap.String("reason", reason),
		zap.String("media_id", media.ID),
		zap.Int("index", index))

	o.preloadAhead(index, o.config.PreloadAhead)
}

func (o *Orchestrator) preloadAhead(index, count int) {
	if count <= 0 {
		return
	}
	playlist, _ := o.state.snapshot()
	token := o.tokens.Current()
	o.pool.Go("preload-next", func(ctx context.Context) error {
		o.preloader.PreloadNext(ctx, playlist, index, count, token)
		return nil
	})
}

func (o *Orchestrator) drainResults(now time.Time) {
	for {
		select {
		case item := <-o.prepared:
			o.applyPrepared(now, item)
		case result := <-o.refreshed:
			o.applyRefresh(result)
		default:
			return
		}
	}
}

func (o *Orchestrator) applyPrepared(now time.Time, item preparedItem) {
	if item.seq != o.seq {
		o.logger.Debug("dropping stale prepared item", zap.String("media_id", item.media.ID))
		return
	}
	o.advancePending = false

	for _, kind := range item.media.RequiredKinds() {
		o.cache.Touch(item.media.ID, kind)
	}

	if item.cut || o.config.Transition == TransitionCut || o.current == nil {
		o.transition.Reset()
		o.next = nil
		o.show(item.media, item.textures)
	} else {
		o.next = item.textures
		o.nextMedia = item.media
		o.transition.Start(now)
	}
	o.lastAdvance = now
}

// swap is called once per transition, at the end of the Out phase
func (o *Orchestrator) swap() {
	if o.next == nil {
		return
	}
	o.show(o.nextMedia, o.next)
	o.next = nil
}

func (o *Orchestrator) show(media domain.Media, textures *port.Textures) {
	o.video.Stop()
	o.current = textures
	o.shownID.Store(media.ID)

	if !media.IsVideo() {
		return
	}
	path, ok := o.cache.GetCachedPath(media.ID, domain.KindVideo)
	if !ok || !o.cache.Exists(path) {
		o.logger.Debug("video not cached, showing poster", zap.String("media_id", media.ID))
		return
	}
	if err := o.video.Play(media.ID, path, media.Duration); err != nil {
		o.logger.Warn("failed to start video", zap.String("media_id", media.ID), zap.Error(err))
	}
}

func (o *Orchestrator) render() {
	if o.surface == nil {
		return
	}

	current := o.current
	if frame := o.video.Frame(); frame != nil && current != nil && o.video.MediaID() == current.MediaID {
		withFrame := *current
		withFrame.Main = frame
		b := frame.Bounds()
		withFrame.Width, withFrame.Height = b.Dx(), b.Dy()
		current = &withFrame
	}

	frame := port.Frame{
		Layers:  Compose(o.config.Transition, o.transition.State(), o.transition.Progress(), current, o.next),
		Offline: o.offline.Load(),
		Paused:  o.paused.Load(),
	}
	if err := o.surface.Render(frame); err != nil {
		o.logger.Debug("render failed", zap.Error(err))
	}
}

func (o *Orchestrator) drainEvents() {
	if o.events == nil {
		return
	}
	for i := 0; i < maxEventsPerTick; i++ {
		select {
		case ev, ok := <-o.events:
			if !ok {
				o.events = nil
				return
			}
			o.applyEvent(ev)
		default:
			return
		}
	}
}

func (o *Orchestrator) applyEvent(ev event.DomainEvent) {
	switch e := ev.(type) {
	case event.Connected:
		o.connected.Store(true)
		o.logger.Info("realtime connected", zap.String("client_id", e.ClientID))
	case event.Disconnected:
		o.connected.Store(false)
		o.logger.Warn("realtime disconnected", zap.String("reason", e.Reason))
	case event.RefreshNeeded:
		o.logger.Info("playlist refresh requested")
		o.refreshes.Request()
	case event.MediaCreated, event.MediaUpdated, event.MediaDeleted:
		playlist, changed := o.state.apply(ev)
		o.logger.Info("playlist mutated",
			zap.String("event", ev.EventName()),
			zap.Bool("changed", changed),
			zap.Int("items", o.state.len()))
		if changed {
			o.persist(playlist)
		}
	default:
		o.logger.Debug("ignoring event", zap.String("event", ev.EventName()))
	}
}

// persist writes the snapshot in the background. Writes are ordered so an
// older playlist never overwrites a newer one.
func (o *Orchestrator) persist(playlist domain.Playlist) {
	seq := o.persistSeq.Add(1)
	o.pool.GoUrgent("save-snapshot", func(ctx context.Context) error {
		return o.saveSnapshot(seq, playlist)
	})
}

func (o *Orchestrator) saveSnapshot(seq uint64, playlist domain.Playlist) error {
	o.persistMu.Lock()
	defer o.persistMu.Unlock()
	if seq < o.persistedSeq {
		return nil
	}
	if err := o.cache.SavePlaylist(playlist); err != nil {
		return err
	}
	o.persistedSeq = seq
	return nil
}

// maybeRefresh starts a background refresh when one is pending and the
// limiter allows it. A limited request stays pending for a later tick.
func (o *Orchestrator) maybeRefresh(now time.Time) {
	if o.config.RefreshInterval > 0 && now.Sub(o.lastRefresh) >= o.config.RefreshInterval {
		o.refreshes.Request()
	}
	if o.refreshInFlight || !o.refreshes.Ready(now) {
		return
	}

	seq := o.persistSeq.Add(1)
	scheduled := o.pool.GoUrgent("refresh-playlist", func(ctx context.Context) error {
		playlist, fromSnapshot, err := o.fetchPlaylist(ctx)
		if err == nil && !fromSnapshot {
			if saveErr := o.saveSnapshot(seq, playlist); saveErr != nil {
				o.logger.Warn("failed to save playlist snapshot", zap.Error(saveErr))
			}
			o.cache.CleanupOrphans(playlist)
		}
		select {
		case o.refreshed <- refreshResult{playlist: playlist, fromSnapshot: fromSnapshot, err: err}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return err
	})
	if !scheduled {
		return
	}
	o.refreshInFlight = true
	o.lastRefresh = now
}

func (o *Orchestrator) applyRefresh(result refreshResult) {
	o.refreshInFlight = false
	switch {
	case result.err != nil:
		o.logger.Warn("playlist refresh failed", zap.Error(result.err))
	case result.fromSnapshot:
		o.logger.Info("remote unreachable, keeping current playlist")
	default:
		o.state.merge(result.playlist)
		o.logger.Info("playlist refreshed", zap.Int("items", len(result.playlist)))
	}
}

// Command queues a control command for the loop; false if the queue is full
func (o *Orchestrator) Command(c port.Command) bool {
	select {
	case o.commands <- c:
		return true
	default:
		return false
	}
}

// SetInterval changes the advance interval at runtime
func (o *Orchestrator) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	o.interval.Store(int64(d))
	o.logger.Info("advance interval changed", zap.Duration("interval", d))
}

// Interval returns the advance interval
func (o *Orchestrator) Interval() time.Duration {
	return time.Duration(o.interval.Load())
}

// Offline reports whether the last fetch fell back to the snapshot
func (o *Orchestrator) Offline() bool {
	return o.offline.Load()
}

func (o *Orchestrator) setOffline(offline bool) {
	if o.offline.Swap(offline) != offline {
		o.logger.Info("offline state changed", zap.Bool("offline", offline))
	}
	metrics.SetOffline(offline)
}

// Playlist returns a copy of the playlist and the cursor
func (o *Orchestrator) Playlist() (domain.Playlist, int) {
	return o.state.snapshot()
}

// Status returns the diagnostics view
func (o *Orchestrator) Status() Status {
	playlist, index := o.state.snapshot()
	status := Status{
		PlaylistLength:    len(playlist),
		Index:             index,
		ShownID:           o.shownID.Load().(string),
		Offline:           o.offline.Load(),
		Paused:            o.paused.Load(),
		RealtimeConnected: o.connected.Load(),
		IntervalSeconds:   o.Interval().Seconds(),
	}
	if index < len(playlist) {
		status.CurrentID = playlist[index].ID
	}
	return status
}

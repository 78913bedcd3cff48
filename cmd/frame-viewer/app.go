package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/adapter/filesystem"
	"github.com/vertextoedge/frame-viewer/internal/adapter/pocketbase"
	"github.com/vertextoedge/frame-viewer/internal/adapter/sqlite"
	"github.com/vertextoedge/frame-viewer/internal/config"
	"github.com/vertextoedge/frame-viewer/internal/logger"
	"github.com/vertextoedge/frame-viewer/internal/port"
	"github.com/vertextoedge/frame-viewer/internal/service/assets"
	"github.com/vertextoedge/frame-viewer/internal/service/cacher"
	"github.com/vertextoedge/frame-viewer/internal/service/maintenance"
	"github.com/vertextoedge/frame-viewer/internal/service/playback"
)

// app holds the components shared by every command
type app struct {
	loader *config.Loader
	cfg    *config.Config
	log    *zap.Logger

	fs        *filesystem.Manager
	store     *sqlite.Store
	cache     *cacher.Cache
	client    *pocketbase.Client
	assets    *assets.Manager
	preloader *assets.Preloader
}

func newApp(path string) (*app, error) {
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logger.Init(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	log := logger.GetZapLogger()

	a := &app{loader: loader, cfg: cfg, log: log}

	a.fs, err = filesystem.NewManager(cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	// Without a recency store every entry counts as oldest after restart.
	var recency port.RecencyStore
	dbPath := cfg.Cache.GetRecencyDB()
	a.store, err = sqlite.Open(dbPath)
	if err != nil {
		log.Warn("recency store unavailable, access times will not persist",
			zap.String("path", dbPath), zap.Error(err))
	} else {
		recency = a.store
	}

	maxSize, err := cfg.Cache.GetMaxSizeBytes()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cache, err = cacher.New(&cacher.Config{MaxSizeBytes: maxSize}, a.fs, recency, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open asset cache: %w", err)
	}

	a.client = pocketbase.NewClient(&pocketbase.Config{
		BaseURL:         cfg.Remote.BaseURL,
		MediaCollection: cfg.Remote.MediaCollection,
		AuthCollection:  cfg.Remote.AuthCollection,
		PerPage:         cfg.Remote.PerPage,
		RequestTimeout:  cfg.Remote.GetRequestTimeout(),
		SkipTLSVerify:   cfg.Remote.SkipTLSVerify,
	})
	a.assets = assets.NewManager(a.cache, a.client, cfg.Remote.BaseURL, log)
	a.preloader = assets.NewPreloader(a.assets, log)
	return a, nil
}

func (a *app) credentials() playback.Credentials {
	return playback.Credentials{
		DeviceAPIKey: a.cfg.Auth.DeviceAPIKey,
		Token:        a.cfg.Auth.Token,
		Email:        a.cfg.Auth.Email,
		Password:     a.cfg.Auth.Password,
	}
}

func (a *app) playbackConfig() *playback.Config {
	pc := &a.cfg.Playback
	return &playback.Config{
		DeviceID:             a.cfg.Auth.DeviceID,
		Interval:             pc.GetInterval(),
		Transition:           playback.ParseTransition(pc.Transition),
		TransitionDuration:   pc.GetTransitionDuration(),
		VideoLoopThreshold:   pc.GetVideoLoopThreshold(),
		Shuffle:              pc.Shuffle,
		FullSyncOnStartup:    pc.FullSyncOnStartup,
		PreloadAhead:         pc.PreloadAhead,
		StartupPreload:       pc.StartupPreload,
		FrameInterval:        pc.GetFrameInterval(),
		StartupFetchAttempts: pc.StartupFetchAttempts,
		RefreshInterval:      a.cfg.Sync.GetRefreshInterval(),
		MinRefreshInterval:   a.cfg.Sync.GetMinRefreshInterval(),
	}
}

func (a *app) maintenance() *maintenance.Service {
	return maintenance.New(&maintenance.Config{
		FlushInterval:   a.cfg.Cache.GetFlushInterval(),
		CleanupInterval: a.cfg.Cache.GetCleanupInterval(),
		TempFileMaxAge:  a.cfg.Cache.GetTempFileMaxAge(),
	}, a.cache, a.fs, a.log)
}

// Close flushes access times and releases the recency store
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.FlushRecency(); err != nil {
			a.log.Error("failed to flush recency", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("failed to close recency store", zap.Error(err))
		}
	}
	logger.Sync()
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/adapter/headless"
	"github.com/vertextoedge/frame-viewer/internal/config"
	"github.com/vertextoedge/frame-viewer/internal/domain/event"
	"github.com/vertextoedge/frame-viewer/internal/logger"
	"github.com/vertextoedge/frame-viewer/internal/service/playback"
	"github.com/vertextoedge/frame-viewer/internal/service/realtime"
	"github.com/vertextoedge/frame-viewer/internal/service/server"
	"github.com/vertextoedge/frame-viewer/internal/util/taskpool"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start playback (default)",
	RunE:  runViewer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runViewer(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, log := a.cfg, a.log
	log.Info("starting frame-viewer",
		zap.String("version", version),
		zap.String("config", a.loader.ConfigFile()),
		zap.String("remote", cfg.Remote.BaseURL),
		zap.String("cache_dir", cfg.Cache.Dir))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool := taskpool.New(cfg.Workers.Concurrency, log)
	defer pool.Close()

	surface := headless.NewSurface(0, 0, log)
	defer surface.Close()

	tokens := playback.NewTokenSource(a.credentials(), a.client, log)

	var (
		rt     *realtime.Service
		events <-chan event.DomainEvent
	)
	if cfg.Sync.RealtimeEnabled {
		rt = realtime.New(&realtime.Config{
			BaseURL:        cfg.Remote.BaseURL,
			Collection:     cfg.Remote.MediaCollection,
			DeviceID:       cfg.Auth.DeviceID,
			ReconnectDelay: cfg.Sync.GetReconnectDelay(),
			EventBuffer:    cfg.Sync.EventBuffer,
		}, tokens.Current, log)
		events = rt.Events()
	}

	player := playback.New(a.playbackConfig(), playback.Deps{
		Remote:    a.client,
		Tokens:    tokens,
		Cache:     a.cache,
		Assets:    a.assets,
		Preloader: a.preloader,
		Pool:      pool,
		Surface:   surface,
		Decoder:   headless.NewDecoder(log),
		Events:    events,
	}, log)

	if err := player.Init(ctx); err != nil {
		log.Error("initial playlist unavailable, starting empty", zap.Error(err))
	}

	var wg sync.WaitGroup
	startService(ctx, &wg, log, "maintenance", a.maintenance().Start)
	if rt != nil {
		startService(ctx, &wg, log, "realtime", rt.Start)
	}

	var httpServer *server.Server
	if cfg.HTTP.BindAddr != "" {
		deps := server.Deps{Player: player, Cache: a.cache}
		if rt != nil {
			deps.Realtime = rt
		}
		if a.store != nil {
			deps.Store = a.store
		}
		httpServer = server.New(&server.Config{
			BindAddr:      cfg.HTTP.BindAddr,
			AdminUsername: cfg.HTTP.AdminUsername,
			AdminPassword: cfg.HTTP.AdminPassword,
			ReadTimeout:   cfg.HTTP.GetReadTimeout(),
			WriteTimeout:  cfg.HTTP.GetWriteTimeout(),
			IdleTimeout:   cfg.HTTP.GetIdleTimeout(),
		}, deps, log)
		go func() {
			if err := httpServer.Start(); err != nil {
				log.Error("HTTP server failed", zap.Error(err))
			}
		}()
	}

	a.loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			log.Warn("ignoring invalid configuration change", zap.Error(err))
			return
		}
		if err := logger.SetLevel(next.Logging.Level); err != nil {
			log.Warn("invalid log level", zap.String("level", next.Logging.Level), zap.Error(err))
		}
		player.SetInterval(next.Playback.GetInterval())
		log.Info("configuration reloaded", zap.String("file", a.loader.ConfigFile()))
	})

	runErr := player.Run(ctx)
	log.Info("shutting down")
	cancel()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Stop(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server gracefully", zap.Error(err))
		}
		shutdownCancel()
	}
	wg.Wait()

	log.Info("frame-viewer stopped")
	return runErr
}

// startService runs a blocking Start in the background until ctx ends
func startService(ctx context.Context, wg *sync.WaitGroup, log *zap.Logger, name string, start func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("service stopped with error", zap.String("service", name), zap.Error(err))
		}
	}()
}

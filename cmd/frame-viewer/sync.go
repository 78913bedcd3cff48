package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/service/playback"
	"github.com/vertextoedge/frame-viewer/internal/util/taskpool"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the playlist and download every asset, then exit",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool := taskpool.New(a.cfg.Workers.Concurrency, a.log)
	defer pool.Close()

	pcfg := a.playbackConfig()
	pcfg.Shuffle = false
	pcfg.FullSyncOnStartup = false
	pcfg.StartupPreload = 0

	tokens := playback.NewTokenSource(a.credentials(), a.client, a.log)
	player := playback.New(pcfg, playback.Deps{
		Remote:    a.client,
		Tokens:    tokens,
		Cache:     a.cache,
		Assets:    a.assets,
		Preloader: a.preloader,
		Pool:      pool,
	}, a.log)
	if err := player.Init(ctx); err != nil {
		return err
	}

	playlist, _ := player.Playlist()
	a.preloader.PreloadAll(ctx, playlist, tokens.Current())

	stats := a.cache.Stats()
	a.log.Info("sync complete",
		zap.Int("items", len(playlist)),
		zap.Bool("offline", player.Offline()),
		zap.Int("cached_files", stats.ItemCount),
		zap.Int64("cached_bytes", stats.CurrentSize))
	return ctx.Err()
}

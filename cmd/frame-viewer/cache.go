package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Width(16).Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

var pruneForce bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the asset cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		stats := a.cache.Stats()
		playlist, err := a.cache.LoadPlaylist()
		if err != nil {
			a.log.Warn("failed to read playlist snapshot", zap.Error(err))
		}

		rows := [][2]string{
			{"directory", a.cache.RootDir()},
			{"files", humanize.Comma(int64(stats.ItemCount))},
			{"size", humanize.IBytes(uint64(stats.CurrentSize))},
			{"limit", humanize.IBytes(uint64(stats.MaxSize))},
			{"used", usedPct(stats.CurrentSize, stats.MaxSize)},
			{"snapshot items", humanize.Comma(int64(len(playlist)))},
		}
		if disk, err := a.cache.DiskUsage(); err == nil {
			rows = append(rows,
				[2]string{"disk free", humanize.IBytes(disk.Free)},
				[2]string{"disk used", fmt.Sprintf("%.1f%%", disk.UsedPct)})
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderTable("asset cache", rows))
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cached assets not referenced by the playlist snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		playlist, err := a.cache.LoadPlaylist()
		if err != nil {
			return err
		}
		if len(playlist) == 0 && !pruneForce {
			return fmt.Errorf("playlist snapshot is empty; use --force to remove every cached asset")
		}

		before := a.cache.Stats()
		removed := a.cache.CleanupOrphans(playlist)
		a.maintenance().Cleanup()
		after := a.cache.Stats()

		fmt.Fprintln(cmd.OutOrStdout(), renderTable("prune", [][2]string{
			{"removed", humanize.Comma(int64(removed))},
			{"freed", humanize.IBytes(uint64(before.CurrentSize - after.CurrentSize))},
			{"remaining", humanize.IBytes(uint64(after.CurrentSize))},
		}))
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().BoolVar(&pruneForce, "force", false, "prune even when the snapshot is empty")
	cacheCmd.AddCommand(cacheStatsCmd, cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func renderTable(title string, rows [][2]string) string {
	lines := []string{titleStyle.Render(title)}
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(r[0]), valueStyle.Render(r[1])))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func usedPct(size, limit int64) string {
	if limit <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(size)*100/float64(limit))
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "frame-viewer",
	Short: "Offline-resilient digital signage player",
	Long: `frame-viewer shows the published media of a records API as a slideshow.
Assets are cached on disk so playback continues while the server is unreachable.`,
	SilenceUsage: true,
	RunE:         runViewer,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}

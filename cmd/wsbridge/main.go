package main

import (
	"fmt"
	"os"

	"github.com/actionsum/wsbridge/internal/config"
	"github.com/actionsum/wsbridge/internal/daemon"
	"github.com/actionsum/wsbridge/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

const appName = "wsbridge"

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Compositor workspace and keyboard layout bridge for status bars",
	Long: `wsbridge keeps a live model of compositor workspaces and keyboard layouts
and streams normalized updates to status bar widgets over HTTP and websockets.

Environment variables prefixed with WSBRIDGE_ override the config file,
for example WSBRIDGE_LOG_LEVEL, WSBRIDGE_WEB_PORT and WSBRIDGE_DB_PATH.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// the detached daemon has no terminal, its log goes to the daemon log file
		if daemon.IsChild() {
			loaded.Log.File = loaded.Daemon.LogFile
		}
		if err := logging.Configure(loaded.Log); err != nil {
			return err
		}

		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/wsbridge/config.yml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/actionsum/wsbridge/internal/bridge"
	"github.com/actionsum/wsbridge/internal/daemon"
	"github.com/actionsum/wsbridge/internal/database"
	"github.com/actionsum/wsbridge/internal/logging"
	"github.com/actionsum/wsbridge/internal/tracker"
	"github.com/actionsum/wsbridge/internal/web"
	"github.com/actionsum/wsbridge/pkg/detector"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge in the foreground",
	Long:  "Connect to the compositor, journal focus to the database and serve the HTTP API until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(servePort)
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bridge as a background daemon",
	Args:  cobra.NoArgs,
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and the focused workspace",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Web API port (overrides config)")
	startCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Web API port (overrides config)")
	rootCmd.AddCommand(serveCmd, startCmd, stopCmd, statusCmd)
}

func runServe(customPort int) error {
	logger := logging.NewLogger("serve")

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return errors.Wrap(err, "failed to check daemon status")
	}
	if running && pid != os.Getpid() {
		return fmt.Errorf("daemon is already running (PID: %d)", pid)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	protocol, err := detector.New(cfg.Compositor)
	if err != nil {
		return errors.Wrap(err, "failed to initialize compositor")
	}
	defer protocol.Close()
	logger.WithField("compositor", protocol.Name()).Info("Compositor detected")

	if err := dm.WritePID(); err != nil {
		return err
	}
	defer dm.RemovePID()

	var (
		repo *database.Repository
		sink *tracker.ErrorSink
	)
	opts := []bridge.Option{
		bridge.WithLogger(logging.NewLogger("bridge")),
		bridge.WithBufferSize(cfg.Bridge.BufferSize),
	}

	if cfg.Database.Enabled {
		db, err := database.Connect(cfg.Database.Path)
		if err != nil {
			return errors.Wrap(err, "failed to connect to database")
		}
		defer db.Close()

		if err := db.Initialize(); err != nil {
			return errors.Wrap(err, "failed to initialize database")
		}

		repo = database.NewRepository(db)
		sink = tracker.NewErrorSink(ctx, repo, logging.NewLogger("errors"))
		defer sink.Close()
		opts = append(opts, bridge.WithReporter(sink))
	}

	b, err := bridge.New(ctx, protocol, opts...)
	if err != nil {
		return err
	}
	defer b.Close()

	var journal *tracker.Service
	if repo != nil {
		journal = tracker.NewService(b, repo, protocol.Name(), tracker.WithLogger(logging.NewLogger("tracker")))
		go func() {
			if err := journal.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("Focus journal stopped")
			}
		}()
	}

	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(cfg, b, repo, logging.NewLogger("web"), customPort)
		go func() {
			if err := webServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("Web server error")
				stop()
			}
		}()
		logger.Infof("Web API available at: http://%s", webServer.GetAddress())
	}

	logger.Debugf("%s", cfg.String())
	logger.Info("Bridge running")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case <-b.Done():
		runErr = b.Err()
		logger.WithError(runErr).Error("Compositor connection lost")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if webServer != nil {
		if err := webServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Error shutting down web server")
		}
	}
	if journal != nil {
		journal.Stop()
	}

	logger.Info("Bridge stopped")
	return runErr
}

func runStart(cmd *cobra.Command, args []string) error {
	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return errors.Wrap(err, "failed to check daemon status")
	}
	if running {
		return fmt.Errorf("daemon is already running (PID: %d)", pid)
	}

	childArgs := []string{os.Args[0], "serve"}
	if configPath != "" {
		childArgs = append(childArgs, "--config", configPath)
	}
	if servePort > 0 {
		childArgs = append(childArgs, "--port", fmt.Sprint(servePort))
	}

	pid, err = daemon.Daemonize(childArgs)
	if err != nil {
		return err
	}

	fmt.Printf("Daemon started successfully (PID: %d)\n", pid)
	if cfg.Web.Enabled {
		port := cfg.Web.Port
		if servePort > 0 {
			port = servePort
		}
		fmt.Printf("Web API available at: http://%s:%d\n", cfg.Web.Host, port)
	}
	fmt.Printf("Logs: %s\n", cfg.Daemon.LogFile)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		return errors.Wrap(err, "failed to check daemon status")
	}
	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	fmt.Printf("Stopping daemon (PID: %d)...\n", pid)
	if err := dm.Stop(10 * time.Second); err != nil {
		return errors.Wrap(err, "failed to stop daemon")
	}

	fmt.Println("Daemon stopped successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		return errors.Wrap(err, "failed to check daemon status")
	}

	if !running {
		fmt.Println("Status: Not running")
	} else {
		fmt.Printf("Status: Running (PID: %d)\n", pid)
		if cfg.Web.Enabled {
			fmt.Printf("Web API: http://%s\n", cfg.WebAddress())
		}
		if cfg.Database.Enabled {
			fmt.Printf("Database: %s\n", displayPath(cfg.Database.Path))
		}
	}

	// the compositor can be queried whether or not the daemon runs
	protocol, err := detector.New(cfg.Compositor)
	if err != nil {
		fmt.Printf("\nCould not reach compositor: %v\n", err)
		return nil
	}
	defer protocol.Close()

	active, err := protocol.ActiveWorkspace()
	if err == nil && active != nil {
		fmt.Printf("\nFocused Workspace:\n")
		fmt.Printf("  Name: %s\n", active.Name)
		fmt.Printf("  ID: %d\n", active.ID)
		fmt.Printf("  Monitor: %s\n", active.Monitor)
	}

	if layout, err := protocol.KeyboardLayout(); err == nil {
		fmt.Printf("\nKeyboard Layout: %s\n", layout)
	}
	return nil
}

func displayPath(path string) string {
	if p, err := database.ResolvePath(path); err == nil {
		return p
	}
	return path
}

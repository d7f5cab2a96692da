package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Compositor connection configuration
	Compositor CompositorConfig `yaml:"compositor"`

	// Bridge fan-out configuration
	Bridge BridgeConfig `yaml:"bridge"`

	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Daemon configuration
	Daemon DaemonConfig `yaml:"daemon"`

	// Web server configuration
	Web WebConfig `yaml:"web"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// CompositorConfig selects and reaches the compositor
type CompositorConfig struct {
	Kind           string        `yaml:"kind"`            // "" auto-detects, or "hyprland"
	SocketDir      string        `yaml:"socket_dir"`      // Overrides the derived IPC socket directory
	RequestTimeout time.Duration `yaml:"request_timeout"` // Deadline for a single IPC request
}

// BridgeConfig holds subscriber buffering configuration
type BridgeConfig struct {
	BufferSize int `yaml:"buffer_size"` // Per-subscriber queue length before oldest-first drops
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"` // Record focus spans and errors
	Path    string `yaml:"path"`    // Path to SQLite database file
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `yaml:"pid_file"` // Path to PID file for daemon management
	LogFile string `yaml:"log_file"` // Where a detached daemon writes its log
}

// WebConfig holds web server configuration
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"` // Host to bind web server to
	Port    int    `yaml:"port"` // Port for web server
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // Optional file sink in addition to stderr
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Compositor: CompositorConfig{
			Kind:           "",
			RequestTimeout: 2 * time.Second,
		},
		Bridge: BridgeConfig{
			BufferSize: 16,
		},
		Database: DatabaseConfig{
			Enabled: true,
			Path:    "", // Empty means use default ~/.config/wsbridge/wsbridge.db
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/wsbridge-%d.pid", os.Getuid()),
			LogFile: fmt.Sprintf("/tmp/wsbridge-%d.log", os.Getuid()),
		},
		Web: WebConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    10000 + os.Getuid()%50000, // Per-user default port
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Compositor.Kind {
	case "", "hyprland":
	default:
		return fmt.Errorf("unsupported compositor %q (valid: hyprland)", c.Compositor.Kind)
	}

	if c.Compositor.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.Compositor.RequestTimeout)
	}

	if c.Bridge.BufferSize < 1 {
		return fmt.Errorf("buffer size must be at least 1, got %d", c.Bridge.BufferSize)
	}

	// Validate web config
	if c.Web.Enabled {
		if c.Web.Port < 1 || c.Web.Port > 65535 {
			return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
		}

		if c.Web.Host == "" {
			return fmt.Errorf("web host cannot be empty")
		}
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// SetBufferSize sets the subscriber buffer size with validation
func (c *Config) SetBufferSize(size int) error {
	if size < 1 {
		return fmt.Errorf("buffer size must be at least 1, got %d", size)
	}
	c.Bridge.BufferSize = size
	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// WebAddress returns host:port of the web server
func (c *Config) WebAddress() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// String returns a string representation of the config
func (c *Config) String() string {
	compositor := c.Compositor.Kind
	if compositor == "" {
		compositor = "auto"
	}
	return fmt.Sprintf(`Configuration:
  Compositor:
    Kind: %s
    Socket Dir: %s
    Request Timeout: %v
  Bridge:
    Buffer Size: %d
  Database:
    Enabled: %v
    Path: %s
  Daemon:
    PID File: %s
    Log File: %s
  Web:
    Enabled: %v
    Host: %s
    Port: %d
  Log:
    Level: %s
    Format: %s`,
		compositor,
		c.Compositor.SocketDir,
		c.Compositor.RequestTimeout,
		c.Bridge.BufferSize,
		c.Database.Enabled,
		c.Database.Path,
		c.Daemon.PIDFile,
		c.Daemon.LogFile,
		c.Web.Enabled,
		c.Web.Host,
		c.Web.Port,
		c.Log.Level,
		c.Log.Format,
	)
}

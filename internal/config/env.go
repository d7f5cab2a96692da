package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigDir  = ".config/wsbridge"
	defaultConfigName = "config.yml"
)

// LoadFromEnv loads configuration from environment variables
// Environment variables override default values
func LoadFromEnv(cfg *Config) {
	// Compositor configuration
	if kind := os.Getenv("WSBRIDGE_COMPOSITOR"); kind != "" {
		cfg.Compositor.Kind = kind
	}

	if socketDir := os.Getenv("WSBRIDGE_SOCKET_DIR"); socketDir != "" {
		cfg.Compositor.SocketDir = socketDir
	}

	if timeout := os.Getenv("WSBRIDGE_REQUEST_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Compositor.RequestTimeout = d
		}
	}

	// Bridge configuration
	if bufferSize := os.Getenv("WSBRIDGE_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil && size > 0 {
			cfg.Bridge.BufferSize = size
		}
	}

	// Database configuration
	if dbPath := os.Getenv("WSBRIDGE_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if dbEnabled := os.Getenv("WSBRIDGE_DB_ENABLED"); dbEnabled != "" {
		if val, err := strconv.ParseBool(dbEnabled); err == nil {
			cfg.Database.Enabled = val
		}
	}

	// Daemon configuration
	if pidFile := os.Getenv("WSBRIDGE_PID_FILE"); pidFile != "" {
		cfg.Daemon.PIDFile = pidFile
	}

	if logFile := os.Getenv("WSBRIDGE_DAEMON_LOG"); logFile != "" {
		cfg.Daemon.LogFile = logFile
	}

	// Web configuration
	if webEnabled := os.Getenv("WSBRIDGE_WEB_ENABLED"); webEnabled != "" {
		if val, err := strconv.ParseBool(webEnabled); err == nil {
			cfg.Web.Enabled = val
		}
	}

	if webHost := os.Getenv("WSBRIDGE_WEB_HOST"); webHost != "" {
		cfg.Web.Host = webHost
	}

	if webPort := os.Getenv("WSBRIDGE_WEB_PORT"); webPort != "" {
		if port, err := strconv.Atoi(webPort); err == nil && port > 0 && port <= 65535 {
			cfg.Web.Port = port
		}
	}

	// Log configuration
	if level := os.Getenv("WSBRIDGE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if format := os.Getenv("WSBRIDGE_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}

	if logFile := os.Getenv("WSBRIDGE_LOG_FILE"); logFile != "" {
		cfg.Log.File = logFile
	}
}

// DefaultFilePath returns ~/.config/wsbridge/config.yml
func DefaultFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(homeDir, defaultConfigDir, defaultConfigName), nil
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

// Load builds the configuration from defaults, then the config file, then
// the environment. An empty path means the default file, which may be absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultFilePath()
		if err != nil {
			return nil, err
		}
	}

	if err := LoadFile(cfg, path); err != nil {
		if explicit || !os.IsNotExist(errors.Cause(err)) {
			return nil, err
		}
	}

	LoadFromEnv(cfg)
	return cfg, nil
}

// New creates a new Config with default values and loads from environment
func New() *Config {
	cfg := Default()
	LoadFromEnv(cfg)
	return cfg
}

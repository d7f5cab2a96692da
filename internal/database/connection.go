package database

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/actionsum/wsbridge/internal/models"
	"github.com/pkg/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultDBName = "wsbridge.db"
	defaultDBDir  = ".config/wsbridge"

	// the daemon and CLI readers share the file
	connectionParams = "?_journal_mode=WAL&_busy_timeout=5000"
)

// DB is the focus journal database
type DB struct {
	*gorm.DB
	path string
}

// GetDefaultDBPath returns ~/.config/wsbridge/wsbridge.db without creating anything
func GetDefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(homeDir, defaultDBDir, defaultDBName), nil
}

// ResolvePath turns a configured path into the file Connect will open.
// Empty selects the default location and a leading "~/" is the home directory.
func ResolvePath(dbPath string) (string, error) {
	switch {
	case dbPath == "":
		return GetDefaultDBPath()
	case strings.HasPrefix(dbPath, "~/"):
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		return filepath.Join(homeDir, dbPath[2:]), nil
	default:
		return dbPath, nil
	}
}

// Connect opens the journal database, creating the file and its directory if needed
func Connect(dbPath string) (*DB, error) {
	path, err := ResolvePath(dbPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create database directory for %s", path)
	}

	db, err := gorm.Open(sqlite.Open(path+connectionParams), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}

	return &DB{DB: db, path: path}, nil
}

// Path returns the database file in use
func (db *DB) Path() string {
	return db.path
}

// Initialize migrates the span and error tables
func (db *DB) Initialize() error {
	if err := db.AutoMigrate(&models.FocusSpan{}, &models.ErrorLog{}); err != nil {
		return errors.Wrap(err, "failed to initialize database schema")
	}
	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}

package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Path string
}

// Open creates the database file and its directory when missing, then migrates the schema.
func (store *SQLiteStore) Open() error {
	path := strings.TrimSpace(store.Path)
	if path == "" {
		return fmt.Errorf("sqlite path is not configured")
	}

	memory := path == MemoryPath
	if !memory {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve sqlite path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		path = abs
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), gormConfig())
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	// every connection to :memory: is a separate database
	if memory {
		sqlDB.SetMaxOpenConns(1)
	} else {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			GetLogger().Warn("failed to enable WAL journal", logger.Error(err))
		}
	}

	if store.debug {
		db = db.Debug()
	}
	store.db = db
	GetLogger().Info("opened SQLite database", logger.String("path", path))
	return store.migrate("sqlite")
}

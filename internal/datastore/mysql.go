package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/krishisahay/krishisahay-go/internal/conf"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// MySQLStore implements Interface for MySQL.
type MySQLStore struct {
	DataStore
	Config conf.MySQLSettings
}

// DSN returns the driver connection string for cfg.
func DSN(cfg conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

// Open connects to the server and migrates the schema.
func (store *MySQLStore) Open() error {
	if store.Config.Host == "" || store.Config.Database == "" {
		return fmt.Errorf("mysql host and database must be configured")
	}

	db, err := gorm.Open(mysql.Open(DSN(store.Config)), gormConfig())
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("host", store.Config.Host),
			logger.String("port", store.Config.Port),
			logger.String("database", store.Config.Database),
			logger.Error(err))
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if store.debug {
		db = db.Debug()
	}
	store.db = db
	GetLogger().Info("opened MySQL database",
		logger.String("host", store.Config.Host),
		logger.String("database", store.Config.Database))
	return store.migrate("mysql")
}

package database

import (
	"fmt"
	"log/slog"
	"time"

	"bizportal/internal/config"
	"bizportal/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

const (
	maxAttempts = 10
	retryDelay  = 2 * time.Second
)

// Init connects with retries, brings the schema up to date and stores the handle in DB.
func Init(cfg config.DBConfig) error {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= maxAttempts; i++ {
		slog.Info("connecting to database", "attempt", i, "max_attempts", maxAttempts)

		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err == nil {
			err = db.Exec("SELECT 1").Error
		}
		if err == nil {
			break
		}

		slog.Warn("database connection failed", "error", err)
		time.Sleep(retryDelay)
	}
	if err != nil {
		return fmt.Errorf("connect to database after %d attempts: %w", maxAttempts, err)
	}

	if cfg.Migrations {
		if err := runSQLMigrations(db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
	} else if err := AutoMigrate(db); err != nil {
		return err
	}

	DB = db
	slog.Info("database ready", "migrations", cfg.Migrations)
	return nil
}

// AutoMigrate creates or updates every table from the model structs.
func AutoMigrate(db *gorm.DB) error {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

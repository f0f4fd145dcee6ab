package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Alijeyrad/rookie_backend/config"
)

// NewGorm opens the main application database from central config.
func NewGorm(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return NewGormFromConfig(FromCentralConfig(cfg), slog.Default())
}

// NewGormFromConfig opens a pooled gorm handle over pgx and verifies it with a ping.
func NewGormFromConfig(cfg Config, log *slog.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.EnableLogging {
		level = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger: logger.New(slogWriter{log: log}, logger.Config{
			SlowThreshold:             cfg.SlowQueryThreshold(),
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close releases the pool behind a gorm handle.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// slogWriter routes gorm's logger output into slog.
type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.log.Info(fmt.Sprintf(format, args...), "component", "gorm")
}

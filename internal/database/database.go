package database

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fortunegate/internal/models"
)

// Config selects the SQL backend.
type Config struct {
	Driver   string // "sqlite" (default) or "postgres"
	DSN      string // file path or ":memory:" for sqlite, connection string for postgres
	LogLevel string // gorm log level: silent | error | warn | info
}

// Open connects to the configured database.
func Open(cfg Config, zl *zap.Logger) (*gorm.DB, error) {
	if zl == nil {
		zl = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires DB_DSN")
		}
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database (%s): %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}

	if cfg.Driver == "postgres" {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	} else {
		// one connection keeps ":memory:" databases alive and avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	zl.Info("database connected", zap.String("driver", driverName(cfg.Driver)))
	return db, nil
}

// Migrate creates or updates every table the gateway uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDSN(dsn string) string {
	switch {
	case dsn == "":
		return "fortunegate.db"
	case dsn == ":memory:", strings.HasPrefix(dsn, "file:"):
		return dsn
	default:
		return fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", dsn)
	}
}

func driverName(d string) string {
	if d == "" {
		return "sqlite"
	}
	return d
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

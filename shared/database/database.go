package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"gear-rental/shared/config"
)

var DB *sqlx.DB

// schema holds every table the postgres storage backend needs. Each blob row
// is one namespaced key, mirroring the key/value layout of the other backends.
const schema = `
CREATE TABLE IF NOT EXISTS kv_blobs (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func Initialize(cfg *config.Config) error {
	var err error
	DB, err = sqlx.Connect("postgres", DSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	DB.SetMaxOpenConns(cfg.Database.MaxConnections)
	DB.SetMaxIdleConns(cfg.Database.MaxIdle)
	DB.SetConnMaxLifetime(time.Hour)

	if err = DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err = Migrate(DB); err != nil {
		return err
	}

	zap.S().Info("Database connection established successfully")
	return nil
}

func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

func GetDB() *sqlx.DB {
	return DB
}

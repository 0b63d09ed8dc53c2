package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps documents in the kv_blobs table created by
// database.Migrate.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, key string, dest interface{}) error {
	var raw []byte
	err := s.db.GetContext(ctx, &raw, "SELECT value FROM kv_blobs WHERE key = $1", key)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("select %s: %w", key, err)
	}
	return json.Unmarshal(raw, dest)
}

func (s *PostgresStore) Save(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return upsertBlob(ctx, s.db, key, raw)
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv_blobs WHERE key = $1", key)
	return err
}

// Update locks the row for the duration of the transaction. A missing row is
// first inserted as JSON null so there is always a row to lock.
func (s *PostgresStore) Update(ctx context.Context, key string, dest interface{}, fn func() error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO kv_blobs (key, value) VALUES ($1, 'null'::jsonb) ON CONFLICT (key) DO NOTHING", key)
	if err != nil {
		return fmt.Errorf("insert %s: %w", key, err)
	}

	var raw []byte
	if err := tx.GetContext(ctx, &raw, "SELECT value FROM kv_blobs WHERE key = $1 FOR UPDATE", key); err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}

	resetDest(dest)
	if err := json.Unmarshal(raw, dest); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}

	encoded, err := json.Marshal(dest)
	if err != nil {
		return err
	}
	if err := upsertBlob(ctx, tx, key, encoded); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertBlob(ctx context.Context, ex sqlx.ExecerContext, key string, raw []byte) error {
	_, err := ex.ExecContext(ctx, `
        INSERT INTO kv_blobs (key, value, updated_at)
        VALUES ($1, $2, CURRENT_TIMESTAMP)
        ON CONFLICT (key) DO UPDATE
        SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP`,
		key, raw)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

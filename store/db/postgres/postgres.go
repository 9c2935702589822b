// Package postgres implements the durable key/value backend on PostgreSQL.
// This is the reference backend for horizontally scaled deployments where
// multiple handler instances share the durable store.
package postgres

import (
	"context"
	"database/sql"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/empathia/internal/profile"
	"github.com/hrygo/empathia/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

const schema = `
CREATE TABLE IF NOT EXISTS memory_kv (
	conversation_id TEXT NOT NULL,
	namespace TEXT NOT NULL,
	value BYTEA NOT NULL,
	updated_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW()),
	PRIMARY KEY (conversation_id, namespace)
);
`

// NewDB opens the PostgreSQL connection and ensures the schema exists.
func NewDB(p *profile.Profile) (store.Driver, error) {
	if p == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", p.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", p.DSN)
	}

	// Conversational workload: few concurrent handlers per instance.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ensure schema")
	}

	return &DB{db: db, profile: p}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Get(ctx context.Context, conversationID string, namespace store.Namespace) ([]byte, error) {
	var value []byte
	err := d.db.QueryRowContext(ctx,
		"SELECT value FROM memory_kv WHERE conversation_id = $1 AND namespace = $2",
		conversationID, string(namespace),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query memory_kv")
	}
	return value, nil
}

func (d *DB) Set(ctx context.Context, conversationID string, namespace store.Namespace, value []byte) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO memory_kv (conversation_id, namespace, value, updated_ts)
		VALUES ($1, $2, $3, EXTRACT(EPOCH FROM NOW()))
		ON CONFLICT (conversation_id, namespace)
		DO UPDATE SET value = EXCLUDED.value, updated_ts = EXCLUDED.updated_ts`,
		conversationID, string(namespace), value,
	)
	if err != nil {
		return errors.Wrap(err, "upsert memory_kv")
	}
	return nil
}

var _ store.Driver = (*DB)(nil)

// Package sqlite implements the durable key/value backend on SQLite.
// Suitable for single-instance deployments; use PostgreSQL when multiple
// handler instances share one durable store.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

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
	value BLOB NOT NULL,
	updated_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
	PRIMARY KEY (conversation_id, namespace)
);
`

// NewDB opens the SQLite database and ensures the schema exists.
func NewDB(p *profile.Profile) (store.Driver, error) {
	if p == nil {
		return nil, errors.New("profile is nil")
	}

	// WAL keeps background writers from blocking the synchronous turn path.
	db, err := sql.Open("sqlite", p.DSN+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", p.DSN)
	}

	// modernc sqlite serializes writes; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

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
		"SELECT value FROM memory_kv WHERE conversation_id = ? AND namespace = ?",
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
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT (conversation_id, namespace)
		DO UPDATE SET value = excluded.value, updated_ts = excluded.updated_ts`,
		conversationID, string(namespace), value,
	)
	if err != nil {
		return errors.Wrap(err, "upsert memory_kv")
	}
	return nil
}

var _ store.Driver = (*DB)(nil)

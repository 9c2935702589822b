package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by drivers when no value exists for a key.
var ErrNotFound = errors.New("not found")

// Driver is the durable key/value backend behind the memory store.
// Keys are (conversation id, namespace) pairs; values are opaque blobs,
// last-write-wins, no cross-key transactions.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Get returns the value for the key, or ErrNotFound.
	Get(ctx context.Context, conversationID string, namespace Namespace) ([]byte, error)

	// Set upserts the value for the key.
	Set(ctx context.Context, conversationID string, namespace Namespace, value []byte) error
}

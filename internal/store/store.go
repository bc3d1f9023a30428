// Package store persists serialized designs by key.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// Entry describes one stored design.
type Entry struct {
	Key       string    `json:"key"`
	Bytes     int       `json:"bytes"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a blob store for design documents. Both implementations satisfy engine.BlobStore.
type Store interface {
	Put(ctx context.Context, key string, blob []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open connects to the configured backend: "sqlite" uses path, "postgres" uses url.
func Open(ctx context.Context, driver, path, url string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return OpenSQLite(path)
	case "postgres":
		return OpenPostgres(ctx, url)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores designs in a shared database.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to url and makes sure the designs table exists.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS designs (
		key TEXT PRIMARY KEY,
		blob BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Put(ctx context.Context, key string, blob []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO designs (key, blob, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = now()`,
		key, blob,
	)
	if err != nil {
		return fmt.Errorf("put design %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := p.pool.QueryRow(ctx, `SELECT blob FROM designs WHERE key = $1`, key).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get design %s: %w", key, err)
	}
	return blob, true, nil
}

func (p *Postgres) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key, length(blob), updated_at FROM designs ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	return collectEntries(rows)
}

// collectEntries never returns a nil slice, so an empty store lists as [] like SQLite does.
func collectEntries(rows pgx.Rows) ([]Entry, error) {
	entries, err := pgx.AppendRows([]Entry{}, rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.Key, &e.Bytes, &e.UpdatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan designs: %w", err)
	}
	return entries, nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM designs WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete design %s: %w", key, err)
	}
	return nil
}

// Package pgstore keeps destinations in a PostgreSQL table.
package pgstore

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	pg "github.com/pure-golang/orderbrowser/db/pg/pgx"
	"github.com/pure-golang/orderbrowser/destination"
)

const schema = `
CREATE TABLE IF NOT EXISTS destinations (
	name       text PRIMARY KEY,
	username   text NOT NULL DEFAULT '',
	password   text NOT NULL DEFAULT '',
	properties jsonb NOT NULL DEFAULT '{}'::jsonb,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

const selectDestination = `
SELECT username, password, properties
FROM destinations
WHERE name = $1`

const upsertDestination = `
INSERT INTO destinations (name, username, password, properties)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET
	username   = EXCLUDED.username,
	password   = EXCLUDED.password,
	properties = EXCLUDED.properties,
	updated_at = now()`

// Querier is the subset of *pgxpool.Pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ destination.Store = (*Store)(nil)

type Store struct {
	db     Querier
	closer func()
}

// New wraps an open pool. Close closes the pool.
func New(db *pg.DB) *Store {
	return &Store{db: db.Pool, closer: db.Pool.Close}
}

// NewWithQuerier uses q without taking ownership of it.
func NewWithQuerier(q Querier) *Store {
	return &Store{db: q}
}

// Migrate creates the destinations table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to create destinations table")
	}
	return nil
}

func (s *Store) Find(ctx context.Context, name string) (*destination.Destination, error) {
	d := &destination.Destination{Name: name}
	var props []byte

	err := s.db.QueryRow(ctx, selectDestination, name).Scan(&d.User, &d.Password, &props)
	switch {
	case pg.IsNoRows(err):
		return nil, destination.NotFound(name)
	case err != nil:
		if _, ok := pg.ErrorIs(err, pg.UndefinedTable); ok {
			return nil, errors.Wrap(err, "destinations table is missing, run migrations")
		}
		return nil, errors.Wrapf(err, "failed to load destination %q", name)
	}

	d.Properties, err = decodeProperties(props)
	if err != nil {
		return nil, errors.Wrapf(err, "destination %q", name)
	}
	return d, nil
}

// Put inserts or updates d.
func (s *Store) Put(ctx context.Context, d destination.Destination) error {
	if d.Name == "" {
		return errors.New("destination name is required")
	}

	props, err := encodeProperties(d.Properties)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, upsertDestination, d.Name, d.User, d.Password, string(props)); err != nil {
		return errors.Wrapf(err, "failed to save destination %q", d.Name)
	}
	return nil
}

func (s *Store) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

func encodeProperties(props map[string]string) ([]byte, error) {
	if props == nil {
		props = map[string]string{}
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode properties")
	}
	return data, nil
}

func decodeProperties(data []byte) (map[string]string, error) {
	props := make(map[string]string)
	if len(data) == 0 {
		return props, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode properties")
	}
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			props[k] = v
		case nil:
		default:
			encoded, _ := json.Marshal(v)
			props[k] = string(encoded)
		}
	}
	return props, nil
}

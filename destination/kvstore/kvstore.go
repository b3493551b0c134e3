// Package kvstore keeps destinations as hashes in a key-value store.
package kvstore

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pure-golang/orderbrowser/destination"
	"github.com/pure-golang/orderbrowser/kv"
)

const (
	KeyPrefix     = "destination:"
	FieldUser     = "User"
	FieldPassword = "Password"
)

var tracer = otel.Tracer("github.com/pure-golang/orderbrowser/destination/kvstore")

var _ destination.Store = (*Store)(nil)

// Store reads and writes destinations as hashes named "destination:{name}".
type Store struct {
	kv kv.Store
}

func New(store kv.Store) *Store {
	return &Store{kv: store}
}

func Key(name string) string {
	return KeyPrefix + name
}

func (s *Store) Find(ctx context.Context, name string) (*destination.Destination, error) {
	ctx, span := tracer.Start(ctx, "Destination.Find")
	defer span.End()
	span.SetAttributes(attribute.String("destination.name", name))

	fields, err := s.kv.HGetAll(ctx, Key(name))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Wrapf(err, "failed to load destination %q", name)
	}
	if len(fields) == 0 {
		return nil, destination.NotFound(name)
	}

	d := &destination.Destination{
		Name:       name,
		User:       fields[FieldUser],
		Password:   fields[FieldPassword],
		Properties: make(map[string]string, len(fields)),
	}
	for k, v := range fields {
		if k == FieldUser || k == FieldPassword {
			continue
		}
		d.Properties[k] = v
	}
	return d, nil
}

// Put replaces the stored hash with d.
func (s *Store) Put(ctx context.Context, d destination.Destination) error {
	ctx, span := tracer.Start(ctx, "Destination.Put")
	defer span.End()
	span.SetAttributes(attribute.String("destination.name", d.Name))

	if d.Name == "" {
		return errors.New("destination name is required")
	}

	fields := make(map[string]string, len(d.Properties)+2)
	for k, v := range d.Properties {
		fields[k] = v
	}
	if d.User != "" {
		fields[FieldUser] = d.User
	}
	if d.Password != "" {
		fields[FieldPassword] = d.Password
	}
	if len(fields) == 0 {
		return errors.Errorf("destination %q has no fields", d.Name)
	}

	if err := s.kv.HReplace(ctx, Key(d.Name), fields); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrapf(err, "failed to save destination %q", d.Name)
	}
	return nil
}

func (s *Store) Close() error {
	return s.kv.Close()
}

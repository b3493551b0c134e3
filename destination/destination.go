// Package destination describes named connection profiles and the lookups that resolve them.
package destination

import (
	"context"
	"io"
	"maps"
	"slices"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by a Finder when no destination has the requested name.
var ErrNotFound = errors.New("destination not found")

// Destination is a named connection profile.
type Destination struct {
	Name       string
	User       string
	Password   string
	Properties map[string]string
}

// Property returns a property value. Empty values count as missing.
func (d *Destination) Property(key string) (string, bool) {
	v, ok := d.Properties[key]
	return v, ok && v != ""
}

// PropertyKeys returns property names in sorted order.
func (d *Destination) PropertyKeys() []string {
	return slices.Sorted(maps.Keys(d.Properties))
}

// Finder resolves a destination by name.
type Finder interface {
	Find(ctx context.Context, name string) (*Destination, error)
	io.Closer
}

// Store is a Finder that can also save destinations.
type Store interface {
	Finder
	Put(ctx context.Context, d Destination) error
}

// NotFound wraps ErrNotFound with the destination name.
func NotFound(name string) error {
	return errors.Wrapf(ErrNotFound, "%q", name)
}

// IsNotFound reports whether err means the destination does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

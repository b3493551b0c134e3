// Package static serves destinations from a YAML or JSON document.
//
// The document is a list of objects:
//
//	- name: MyMailService
//	  username: buyer@example.com
//	  password: secret
//	  mail.smtp.host: smtp.example.com
//	  mail.smtp.port: 587
//
// "username" and "password" become the primary credentials, every other
// scalar becomes a property. A nested "originalProperties" object is merged
// into the properties.
package static

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/pure-golang/orderbrowser/destination"
)

// CloudEnvVariable is the variable the cloud connectivity SDK reads for local destinations.
const CloudEnvVariable = "destinations"

type Config struct {
	File     string `envconfig:"DESTINATIONS_FILE"`
	Document string `envconfig:"DESTINATIONS"`
}

var _ destination.Store = (*Finder)(nil)

// Finder keeps destinations in memory.
type Finder struct {
	mx           sync.RWMutex
	destinations map[string]destination.Destination
}

// New loads destinations from cfg.File, cfg.Document or the "destinations"
// environment variable, in that order. No source yields an empty Finder.
func New(cfg Config) (*Finder, error) {
	switch {
	case cfg.File != "":
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read destinations file %q", cfg.File)
		}
		return Parse(data)
	case cfg.Document != "":
		return Parse([]byte(cfg.Document))
	}

	if doc, ok := os.LookupEnv(CloudEnvVariable); ok && doc != "" {
		return Parse([]byte(doc))
	}
	return NewFinder(), nil
}

// NewFinder returns an empty Finder.
func NewFinder(destinations ...destination.Destination) *Finder {
	f := &Finder{destinations: make(map[string]destination.Destination, len(destinations))}
	for _, d := range destinations {
		f.destinations[d.Name] = d
	}
	return f
}

// Parse decodes a YAML or JSON document.
func Parse(data []byte) (*Finder, error) {
	var entries []map[string]any
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "failed to parse destinations")
	}

	f := NewFinder()
	for i, entry := range entries {
		d, err := fromEntry(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "destination #%d", i)
		}
		if _, dup := f.destinations[d.Name]; dup {
			return nil, errors.Errorf("duplicate destination %q", d.Name)
		}
		f.destinations[d.Name] = d
	}
	return f, nil
}

func fromEntry(entry map[string]any) (destination.Destination, error) {
	d := destination.Destination{Properties: make(map[string]string)}

	for key, value := range entry {
		switch key {
		case "name", "Name":
			d.Name = scalar(value)
		case "username":
			d.User = scalar(value)
		case "password":
			d.Password = scalar(value)
		case "originalProperties":
			nested, ok := value.(map[string]any)
			if !ok {
				return d, errors.New("originalProperties must be an object")
			}
			for k, v := range nested {
				if s, ok := scalarOK(v); ok {
					d.Properties[k] = s
				}
			}
		default:
			if s, ok := scalarOK(value); ok {
				d.Properties[key] = s
			}
		}
	}

	if d.Name == "" {
		return d, errors.New("name is required")
	}
	return d, nil
}

func scalar(v any) string {
	s, _ := scalarOK(v)
	return s
}

func scalarOK(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case int, int64, uint64, float64, bool:
		return strings.TrimSpace(fmt.Sprint(v)), true
	default:
		return "", false
	}
}

// Find returns a copy of the named destination.
func (f *Finder) Find(_ context.Context, name string) (*destination.Destination, error) {
	f.mx.RLock()
	defer f.mx.RUnlock()

	d, ok := f.destinations[name]
	if !ok {
		return nil, destination.NotFound(name)
	}

	props := make(map[string]string, len(d.Properties))
	for k, v := range d.Properties {
		props[k] = v
	}
	d.Properties = props
	return &d, nil
}

// Put adds or replaces a destination for the lifetime of the process.
func (f *Finder) Put(_ context.Context, d destination.Destination) error {
	if d.Name == "" {
		return errors.New("destination name is required")
	}

	f.mx.Lock()
	defer f.mx.Unlock()

	f.destinations[d.Name] = d
	return nil
}

func (f *Finder) Close() error {
	return nil
}

// Package formatter renders command output. A Listing describes a kind of
// record and the Formatter chosen by --format decides how it looks.
package formatter

import (
	"fmt"
	"io"
	"slices"
	"sync"
)

// Formatter writes records in one output format.
type Formatter interface {
	Name() string
	Description() string
	FormatList(w io.Writer, l Listing, records []map[string]any, opts FormatOptions) error
	// FormatRecord writes one record. A nil record means nothing matched.
	FormatRecord(w io.Writer, l Listing, record map[string]any, opts FormatOptions) error
	FormatError(w io.Writer, err error) error
}

// Listing describes what a set of records holds.
type Listing struct {
	Kind    string   // plural noun, e.g. "issues"
	Columns []string // shown by default, in order
	Hidden  []string // left out of json/yaml unless requested
}

// FormatOptions adjusts a single render.
type FormatOptions struct {
	// Columns overrides Listing.Columns.
	Columns  []string
	NoHeader bool
	Compact  bool
	// MaxWidth cuts longer table cells. Zero disables.
	MaxWidth int
}

// project keeps only the requested columns of record. With no request it
// drops the listing's hidden columns instead.
func project(l Listing, record map[string]any, columns []string) map[string]any {
	out := make(map[string]any, len(record))
	if len(columns) > 0 {
		for _, c := range columns {
			if v, ok := record[c]; ok {
				out[c] = v
			}
		}
		return out
	}
	for k, v := range record {
		if !slices.Contains(l.Hidden, k) {
			out[k] = v
		}
	}
	return out
}

// Registry maps format names to formatters.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]Formatter
	names    []string // kept sorted
	fallback string
}

// NewRegistry returns an empty registry whose preferred default is "table".
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Formatter{}, fallback: "table"}
}

// Register adds f. Names must be unique.
func (r *Registry) Register(f Formatter) error {
	name := f.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("formatter %q already registered", name)
	}
	r.byName[name] = f
	i, _ := slices.BinarySearch(r.names, name)
	r.names = slices.Insert(r.names, i, name)
	return nil
}

func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byName[name]
	return f, ok
}

// Lookup resolves a --format value. The empty name selects the default.
func (r *Registry) Lookup(name string) (Formatter, error) {
	if name == "" {
		if f := r.Default(); f != nil {
			return f, nil
		}
	}
	if f, ok := r.Get(name); ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown output format %q (available: %v)", name, r.List())
}

// Default returns the preferred formatter, or the first by name when the
// preferred one is not registered. It is nil for an empty registry.
func (r *Registry) Default() Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.byName[r.fallback]; ok {
		return f
	}
	if len(r.names) == 0 {
		return nil
	}
	return r.byName[r.names[0]]
}

func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return fmt.Errorf("formatter %q not registered", name)
	}
	r.fallback = name
	return nil
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

// DefaultRegistry holds the built-in table, json and yaml formatters.
var DefaultRegistry = NewRegistry()

func init() {
	for _, f := range []Formatter{NewTableFormatter(), NewJSONFormatter(), NewYAMLFormatter()} {
		if err := DefaultRegistry.Register(f); err != nil {
			panic(err)
		}
	}
}

func Register(f Formatter) error            { return DefaultRegistry.Register(f) }
func Get(name string) (Formatter, bool)     { return DefaultRegistry.Get(name) }
func Lookup(name string) (Formatter, error) { return DefaultRegistry.Lookup(name) }
func Default() Formatter                    { return DefaultRegistry.Default() }
func List() []string                        { return DefaultRegistry.List() }

package fieldtype

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownFieldType = errors.New("unknown field type")
	ErrUnknownBaseType  = errors.New("unknown base type")
	ErrDuplicateType    = errors.New("field type already registered")
)

// Registry maps type names and aliases to handlers.
// Handlers are created lazily and memoized. Safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	// factories maps canonical name -> factory
	factories map[string]Factory

	// aliases maps alias -> canonical name
	aliases map[string]string

	// instances memoizes created handlers by canonical name
	instances map[string]Handler

	overwrite bool
	version   uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithOverwrite makes Register and RegisterAlias replace existing entries
// instead of failing.
func WithOverwrite() Option {
	return func(r *Registry) { r.overwrite = true }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
		instances: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRegistry creates a registry holding the built-in types.
func NewDefaultRegistry(opts ...Option) *Registry {
	r := NewRegistry(opts...)
	if err := RegisterBuiltins(r); err != nil {
		// Built-in names are distinct; this only fires on a programming error.
		panic(err)
	}
	return r
}

// Register adds a factory under name. It fails with ErrDuplicateType when
// the name is taken, unless the registry was built WithOverwrite.
func (r *Registry) Register(name string, factory Factory) error {
	return r.register(name, factory, false)
}

// Replace adds or overwrites a factory. The memoized handler is dropped.
func (r *Registry) Replace(name string, factory Factory) error {
	return r.register(name, factory, true)
}

func (r *Registry) register(name string, factory Factory, replace bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("field type name is required")
	}
	if factory == nil {
		return fmt.Errorf("field type %q: factory is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.claimLocked(name, replace || r.overwrite); err != nil {
		return err
	}
	r.factories[name] = factory
	delete(r.instances, name)
	r.version++
	return nil
}

// claimLocked checks that name may be bound to a new factory and frees it
// if it is currently an alias.
func (r *Registry) claimLocked(name string, overwrite bool) error {
	if _, exists := r.factories[name]; exists && !overwrite {
		return fmt.Errorf("%w: %q", ErrDuplicateType, name)
	}
	if base, isAlias := r.aliases[name]; isAlias {
		if !overwrite {
			return fmt.Errorf("%w: %q is an alias of %q", ErrDuplicateType, name, base)
		}
		delete(r.aliases, name)
	}
	return nil
}

// RegisterHandler instantiates factory once and registers it under the
// handler's own name together with its aliases and any extra ones. Nothing
// is registered unless every name is free.
func (r *Registry) RegisterHandler(factory Factory, extra ...string) error {
	return r.registerHandler(factory, false, extra)
}

// ReplaceHandler is RegisterHandler with Replace semantics.
func (r *Registry) ReplaceHandler(factory Factory, extra ...string) error {
	return r.registerHandler(factory, true, extra)
}

func (r *Registry) registerHandler(factory Factory, replace bool, extra []string) error {
	if factory == nil {
		return errors.New("factory is nil")
	}
	h := factory()
	if h == nil {
		return errors.New("factory returned nil handler")
	}
	name := strings.TrimSpace(h.TypeName())
	if name == "" {
		return errors.New("field type name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	overwrite := replace || r.overwrite
	if _, exists := r.factories[name]; exists && !overwrite {
		return fmt.Errorf("%w: %q", ErrDuplicateType, name)
	}
	if base, isAlias := r.aliases[name]; isAlias && !overwrite {
		return fmt.Errorf("%w: %q is an alias of %q", ErrDuplicateType, name, base)
	}
	var aliases []string
	for _, alias := range slices.Concat(h.Aliases(), extra) {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			return fmt.Errorf("field type %q: alias name is required", name)
		}
		if alias == name {
			continue
		}
		if _, isType := r.factories[alias]; isType {
			return fmt.Errorf("%w: alias %q shadows a registered type", ErrDuplicateType, alias)
		}
		if existing, taken := r.aliases[alias]; taken && existing != name && !overwrite {
			return fmt.Errorf("%w: alias %q already refers to %q", ErrDuplicateType, alias, existing)
		}
		aliases = append(aliases, alias)
	}

	// Every name is free; commit.
	delete(r.aliases, name)
	r.factories[name] = factory
	r.instances[name] = h
	for _, alias := range aliases {
		r.aliases[alias] = name
	}
	r.version++
	return nil
}

// RegisterAlias makes alias resolve to base. An alias of an alias resolves
// to the canonical type. It fails with ErrUnknownBaseType when base is
// unknown and with ErrDuplicateType when alias is taken.
func (r *Registry) RegisterAlias(alias, base string) error {
	return r.registerAlias(alias, base, false)
}

func (r *Registry) registerAlias(alias, base string, replace bool) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return errors.New("alias name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	canonical, ok := r.resolveLocked(base)
	if !ok {
		return fmt.Errorf("%w: alias %q refers to %q", ErrUnknownBaseType, alias, base)
	}
	if alias == canonical {
		return nil
	}

	overwrite := replace || r.overwrite
	if _, isType := r.factories[alias]; isType {
		return fmt.Errorf("%w: alias %q shadows a registered type", ErrDuplicateType, alias)
	}
	if existing, taken := r.aliases[alias]; taken && existing != canonical && !overwrite {
		return fmt.Errorf("%w: alias %q already refers to %q", ErrDuplicateType, alias, existing)
	}

	r.aliases[alias] = canonical
	r.version++
	return nil
}

// Unregister removes a type, its aliases and its memoized handler.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	canonical, ok := r.resolveLocked(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFieldType, name)
	}
	delete(r.factories, canonical)
	delete(r.instances, canonical)
	for alias, target := range r.aliases {
		if target == canonical {
			delete(r.aliases, alias)
		}
	}
	r.version++
	return nil
}

// Get returns the handler for a type name or alias.
func (r *Registry) Get(name string) (Handler, error) {
	r.mu.RLock()
	canonical, ok := r.resolveLocked(name)
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownFieldType, name)
	}
	if h, cached := r.instances[canonical]; cached {
		r.mu.RUnlock()
		return h, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check after acquiring the write lock.
	if h, cached := r.instances[canonical]; cached {
		return h, nil
	}
	factory, ok := r.factories[canonical]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFieldType, name)
	}
	h := factory()
	if h == nil {
		return nil, fmt.Errorf("field type %q: factory returned nil handler", canonical)
	}
	r.instances[canonical] = h
	return h, nil
}

// Has reports whether name is a registered type or alias.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resolveLocked(name)
	return ok
}

// Canonical resolves an alias to its type name.
func (r *Registry) Canonical(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if _, ok := r.factories[name]; ok {
		return name, true
	}
	if canonical, ok := r.aliases[name]; ok {
		return canonical, true
	}
	return "", false
}

// All returns the registered type names, sorted.
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aliases returns alias -> canonical name.
func (r *Registry) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// AliasesOf returns the aliases of a type, sorted.
func (r *Registry) AliasesOf(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canonical, ok := r.resolveLocked(name)
	if !ok {
		return nil
	}
	var out []string
	for alias, target := range r.aliases {
		if target == canonical {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// BaseTypes returns the types whose handler reports its own registered name.
// Types registered under a second name are left out.
func (r *Registry) BaseTypes() []string {
	var out []string
	for _, name := range r.All() {
		h, err := r.Get(name)
		if err != nil {
			continue
		}
		if h.TypeName() == name {
			out = append(out, name)
		}
	}
	return out
}

// Clear removes every type and alias.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory)
	r.aliases = make(map[string]string)
	r.instances = make(map[string]Handler)
	r.version++
}

// Version increases on every mutation. Caches use it to tell registry
// states apart.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

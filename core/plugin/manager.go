package plugin

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/artpar/modelkit/core/fieldtype"
)

type entry struct {
	info    Info
	factory fieldtype.Factory
	// extraAliases were added by a manifest, not by the handler itself.
	extraAliases []string
}

// Manager validates, registers and tracks plugin handlers.
// Safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	registry *fieldtype.Registry
	catalog  Catalog
	plugins  map[string]*entry
	logger   zerolog.Logger
	now      func() time.Time
	entropy  io.Reader
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithCatalog(c Catalog) Option {
	return func(m *Manager) { m.catalog = c }
}

// WithClock overrides the load time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager registering into registry.
func NewManager(registry *fieldtype.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		catalog:  Catalog{},
		plugins:  make(map[string]*entry),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.entropy = ulid.Monotonic(rand.New(rand.NewSource(m.now().UnixNano())), 0)
	return m
}

// Validate checks a candidate against the handler contract and reports all
// violations at once.
func (m *Manager) Validate(candidate any) error {
	var problems []string
	name := ""

	if candidate == nil {
		return &ValidationError{Problems: []string{"candidate is nil"}}
	}
	for _, missing := range fieldtype.MissingCapabilities(candidate) {
		problems = append(problems, "missing capability "+missing)
	}
	if n, ok := candidate.(fieldtype.Named); ok {
		name = strings.TrimSpace(n.TypeName())
		if name == "" {
			problems = append(problems, "type name is empty")
		}
	}
	if d, ok := candidate.(Describer); !ok || strings.TrimSpace(d.Description()) == "" {
		problems = append(problems, "description is empty")
	}
	if dd, ok := candidate.(DependencyDeclarer); ok {
		for _, dep := range dd.Dependencies() {
			if !m.registry.Has(dep) {
				problems = append(problems, fmt.Sprintf("dependency %q is not registered", dep))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Plugin: name, Problems: problems}
	}
	return nil
}

// Register validates a candidate instance and registers it with its aliases.
// source records where it came from.
func (m *Manager) Register(candidate any, source string) (Info, error) {
	return m.register("", func() any { return candidate }, source, nil)
}

// Load instantiates a catalog entry and registers it.
func (m *Manager) Load(id string) (Info, error) {
	ctor, ok := m.catalog[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: catalog has no id %q", ErrUnknownPlugin, id)
	}
	return m.register(id, ctor, "catalog:"+id, nil)
}

func (m *Manager) register(id string, ctor func() any, source string, aliases []string) (Info, error) {
	candidate := ctor()
	if err := m.Validate(candidate); err != nil {
		return Info{}, err
	}
	h := candidate.(fieldtype.Handler)
	name := h.TypeName()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[name]; exists {
		return Info{}, fmt.Errorf("plugin %q is already loaded", name)
	}

	factory := handlerFactory(ctor, h)
	if err := m.registry.RegisterHandler(factory, aliases...); err != nil {
		return Info{}, fmt.Errorf("register plugin %q: %w", name, err)
	}

	e := &entry{
		info:         m.describe(id, h, source),
		factory:      factory,
		extraAliases: append([]string(nil), aliases...),
	}
	e.info.Aliases = m.registry.AliasesOf(name)
	m.plugins[name] = e

	m.logger.Info().
		Str("plugin", name).
		Str("source", source).
		Str("load_id", e.info.LoadID).
		Msg("plugin loaded")

	return e.info, nil
}

// handlerFactory returns the first instance once, then fresh ones from ctor.
func handlerFactory(ctor func() any, first fieldtype.Handler) fieldtype.Factory {
	var once sync.Once
	return func() fieldtype.Handler {
		h := fieldtype.Handler(nil)
		once.Do(func() { h = first })
		if h != nil {
			return h
		}
		if fresh, ok := ctor().(fieldtype.Handler); ok {
			return fresh
		}
		return first
	}
}

func (m *Manager) describe(id string, h fieldtype.Handler, source string) Info {
	info := Info{
		Name:     h.TypeName(),
		ID:       id,
		Source:   source,
		Enabled:  true,
		LoadedAt: m.now(),
		LoadID:   ulid.MustNew(ulid.Timestamp(m.now()), m.entropy).String(),
	}
	if d, ok := h.(Describer); ok {
		info.Description = d.Description()
	}
	if v, ok := h.(Versioner); ok {
		info.Version = v.Version()
	}
	if a, ok := h.(Authorer); ok {
		info.Author = a.Author()
	}
	if dd, ok := h.(DependencyDeclarer); ok {
		info.Dependencies = append([]string(nil), dd.Dependencies()...)
	}
	return info
}

// Info returns the metadata of a loaded plugin.
func (m *Manager) Info(name string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.plugins[name]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// List returns all loaded plugins sorted by name.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.plugins))
	for _, e := range m.plugins {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dependents returns the loaded plugins that depend on name, sorted.
func (m *Manager) Dependents(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dependentsLocked(name, false)
}

func (m *Manager) dependentsLocked(name string, enabledOnly bool) []string {
	var out []string
	for other, e := range m.plugins {
		if enabledOnly && !e.info.Enabled {
			continue
		}
		for _, dep := range e.info.Dependencies {
			if canonical, ok := m.registry.Canonical(dep); (ok && canonical == name) || dep == name {
				out = append(out, other)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Disable removes the plugin's type from the registry. It refuses while
// enabled plugins depend on it.
func (m *Manager) Disable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.plugins[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
	}
	if !e.info.Enabled {
		return nil
	}
	if deps := m.dependentsLocked(name, true); len(deps) > 0 {
		return fmt.Errorf("disable %q: %w: %s", name, ErrPluginInUse, strings.Join(deps, ", "))
	}
	if err := m.registry.Unregister(name); err != nil {
		return fmt.Errorf("disable %q: %w", name, err)
	}
	e.info.Enabled = false
	m.logger.Info().Str("plugin", name).Msg("plugin disabled")
	return nil
}

// Enable registers a disabled plugin again. Its dependencies must be
// registered.
func (m *Manager) Enable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.plugins[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
	}
	if e.info.Enabled {
		return nil
	}
	var missing []string
	for _, dep := range e.info.Dependencies {
		if !m.registry.Has(dep) {
			missing = append(missing, fmt.Sprintf("dependency %q is not registered", dep))
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Plugin: name, Problems: missing}
	}
	if err := m.activateLocked(e); err != nil {
		return fmt.Errorf("enable %q: %w", name, err)
	}
	e.info.Enabled = true
	m.logger.Info().Str("plugin", name).Msg("plugin enabled")
	return nil
}

// Reload replaces the registered handler with a fresh instance. Catalog
// plugins are rebuilt from their constructor.
func (m *Manager) Reload(name string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.plugins[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
	}
	if e.info.ID != "" {
		if ctor, ok := m.catalog[e.info.ID]; ok {
			fresh := ctor()
			if err := m.Validate(fresh); err != nil {
				return Info{}, err
			}
			h := fresh.(fieldtype.Handler)
			if h.TypeName() != name {
				return Info{}, fmt.Errorf("reload %q: constructor now yields type %q", name, h.TypeName())
			}
			e.factory = handlerFactory(ctor, h)
		}
	}
	if e.info.Enabled {
		if err := m.activateLocked(e); err != nil {
			return Info{}, fmt.Errorf("reload %q: %w", name, err)
		}
	}
	h, err := m.registry.Get(name)
	if err == nil {
		e.info = m.describe(e.info.ID, h, e.info.Source)
		e.info.Aliases = m.registry.AliasesOf(name)
	}
	m.logger.Info().Str("plugin", name).Str("load_id", e.info.LoadID).Msg("plugin reloaded")
	return e.info, nil
}

func (m *Manager) activateLocked(e *entry) error {
	return m.registry.ReplaceHandler(e.factory, e.extraAliases...)
}

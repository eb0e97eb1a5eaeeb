// Package config provides configuration loading and hot reload.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay is how long the file watcher waits for writes to
// settle before reloading. Editors often truncate then write.
const DefaultReloadDelay = 100 * time.Millisecond

// Holder owns the live configuration of a long-running process. The file
// is re-read on SIGHUP or, once WatchFile is called, after it settles
// on disk. A reload that fails keeps the previous configuration.
type Holder struct {
	path   string
	logger zerolog.Logger
	delay  time.Duration

	reloading sync.Mutex // serializes read-parse-swap

	mu       sync.RWMutex
	current  *Config
	raw      []byte
	onChange []func(*Config)
	onError  []func(error)

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// HolderOption tunes a Holder.
type HolderOption func(*Holder)

// WithReloadDelay sets the settle time for file events. Zero reloads on
// every event.
func WithReloadDelay(d time.Duration) HolderOption {
	return func(h *Holder) {
		if d >= 0 {
			h.delay = d
		}
	}
}

// NewHolder reads path and returns a holder serving it.
func NewHolder(path string, logger zerolog.Logger, opts ...HolderOption) (*Holder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	h := &Holder{
		path:   abs,
		logger: logger.With().Str("config", abs).Logger(),
		delay:  DefaultReloadDelay,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	raw, cfg, err := h.read()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	h.current, h.raw = cfg, raw
	return h, nil
}

// Get returns the active configuration. Callers must not modify it.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnChange registers fn to run after each applied reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	h.onChange = append(h.onChange, fn)
	h.mu.Unlock()
}

// OnError registers fn to run when a reload is rejected.
func (h *Holder) OnError(fn func(error)) {
	h.mu.Lock()
	h.onError = append(h.onError, fn)
	h.mu.Unlock()
}

// Reload re-reads the file. Identical content is a no-op. On failure the
// previous configuration stays active and OnError listeners are told.
func (h *Holder) Reload() error {
	h.reloading.Lock()
	defer h.reloading.Unlock()

	raw, next, err := h.read()
	if err != nil {
		err = fmt.Errorf("reload config: %w", err)
		h.logger.Error().Err(err).Msg("keeping previous configuration")
		h.mu.RLock()
		listeners := slices.Clone(h.onError)
		h.mu.RUnlock()
		for _, fn := range listeners {
			fn(err)
		}
		return err
	}

	h.mu.Lock()
	if bytes.Equal(raw, h.raw) {
		h.mu.Unlock()
		h.logger.Debug().Msg("configuration unchanged")
		return nil
	}
	prev := h.current
	h.current, h.raw = next, raw
	listeners := slices.Clone(h.onChange)
	h.mu.Unlock()

	changes := Diff(prev, next)
	for _, c := range changes {
		ev := h.logger.Info()
		if c.Restart {
			ev = h.logger.Warn()
		}
		ev.Str("field", c.Field).Str("old", c.Old).Str("new", c.New).
			Bool("needs_restart", c.Restart).Msg("configuration changed")
	}
	for _, fn := range listeners {
		fn(next)
	}
	h.logger.Info().Int("changes", len(changes)).Msg("configuration reloaded")
	return nil
}

func (h *Holder) read() ([]byte, *Config, error) {
	raw, err := os.ReadFile(h.path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	// A zero-length file is usually a save in progress, not a request
	// to fall back to defaults.
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, errors.New("config file is empty")
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, cfg, nil
}

// WatchFile reloads the configuration when its file is written. The
// parent directory is watched so that rename-based saves are seen.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(h.path), err)
	}
	h.watcher = w
	go h.watch(w)
	h.logger.Debug().Dur("delay", h.delay).Msg("watching config file")
	return nil
}

func (h *Holder) watch(w *fsnotify.Watcher) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Name != h.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if h.delay == 0 {
				h.reloadFrom("file")
				continue
			}
			if timer == nil {
				timer = time.NewTimer(h.delay)
			} else {
				timer.Reset(h.delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			h.reloadFrom("file")
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Warn().Err(err).Msg("config watcher error")
		case <-h.done:
			return
		}
	}
}

func (h *Holder) reloadFrom(trigger string) {
	h.logger.Debug().Str("trigger", trigger).Msg("reloading configuration")
	// Reload already logged and notified.
	_ = h.Reload()
}

// WatchSignals reloads the configuration on SIGHUP until Stop.
func (h *Holder) WatchSignals() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-sig:
				h.reloadFrom("sighup")
			case <-h.done:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

// Change describes one setting that differs between two configurations.
type Change struct {
	Field   string
	Old     string
	New     string
	Restart bool // the running process ignores this change
}

// Diff lists the settings that differ between old and new, in the order
// they appear in the file. Connection strings are reported as redacted.
func Diff(old, new *Config) []Change {
	type pair struct {
		field    string
		old, new string
	}
	pairs := []pair{
		{"schemas.dir", old.Schemas.Dir, new.Schemas.Dir},
		{"schemas.strict", strconv.FormatBool(old.Schemas.Strict), strconv.FormatBool(new.Schemas.Strict)},
		{"cache.enabled", strconv.FormatBool(old.Cache.IsEnabled()), strconv.FormatBool(new.Cache.IsEnabled())},
		{"cache.ttl", old.Cache.TTL.String(), new.Cache.TTL.String()},
		{"cache.driver", old.Cache.Driver, new.Cache.Driver},
		{"cache.dsn", old.Cache.DSN, new.Cache.DSN},
		{"cache.prefix", old.Cache.Prefix, new.Cache.Prefix},
		{"types.allow_overwrite", strconv.FormatBool(old.Types.AllowOverwrite), strconv.FormatBool(new.Types.AllowOverwrite)},
		{"types.aliases", formatAliases(old.Types.Aliases), formatAliases(new.Types.Aliases)},
		{"plugins.dirs", fmt.Sprint(old.Plugins.Dirs), fmt.Sprint(new.Plugins.Dirs)},
		{"logging.level", old.Logging.Level, new.Logging.Level},
		{"logging.format", old.Logging.Format, new.Logging.Format},
		{"metrics.enabled", strconv.FormatBool(old.Metrics.Enabled), strconv.FormatBool(new.Metrics.Enabled)},
		{"metrics.addr", old.Metrics.Addr, new.Metrics.Addr},
		{"metrics.path", old.Metrics.Path, new.Metrics.Path},
	}

	fixed := NonReloadableFields()
	var out []Change
	for _, p := range pairs {
		if p.old == p.new {
			continue
		}
		c := Change{Field: p.field, Old: p.old, New: p.new, Restart: slices.Contains(fixed, p.field)}
		if p.field == "cache.dsn" {
			c.Old, c.New = "<redacted>", "<redacted>"
		}
		out = append(out, c)
	}
	return out
}

func formatAliases(m map[string]string) string {
	var b bytes.Buffer
	for i, k := range slices.Sorted(maps.Keys(m)) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k + "=" + m[k])
	}
	return b.String()
}

// ReloadableFields lists the settings a running process picks up.
func ReloadableFields() []string {
	return []string{
		"schemas.dir",
		"schemas.strict",
		"cache.enabled",
		"cache.ttl",
		"cache.prefix",
		"types.aliases",
		"plugins.dirs",
		"logging.level",
	}
}

// NonReloadableFields lists the settings that only take effect on restart.
func NonReloadableFields() []string {
	return []string{
		"cache.driver",
		"cache.dsn",
		"types.allow_overwrite",
		"logging.format",
		"metrics.enabled",
		"metrics.addr",
		"metrics.path",
	}
}

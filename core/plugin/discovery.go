package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the content of a *.plugins.yaml file.
type Manifest struct {
	Plugins []ManifestEntry `yaml:"plugins"`
}

// ManifestEntry selects one catalog plugin.
type ManifestEntry struct {
	ID      string   `yaml:"id"`
	Enabled *bool    `yaml:"enabled,omitempty"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// IsEnabled defaults to true.
func (e ManifestEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Failure is a candidate that could not be loaded.
type Failure struct {
	ID     string
	Source string
	Err    error
}

// DiscoveryResult summarizes one discovery run.
type DiscoveryResult struct {
	Loaded    []Info
	Failed    []Failure
	Manifests []string
	// Disabled lists plugins Rediscover turned off because no manifest
	// names them any more.
	Disabled []string
}

// IsManifest reports whether a file name is a plugin manifest.
func IsManifest(name string) bool {
	return strings.HasSuffix(name, ".plugins.yaml") || strings.HasSuffix(name, ".plugins.yml")
}

// ReadManifest parses a manifest file.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	for i, e := range m.Plugins {
		if strings.TrimSpace(e.ID) == "" {
			return Manifest{}, fmt.Errorf("parse manifest %s: entry #%d has no id", path, i+1)
		}
	}
	return m, nil
}

// Discover loads every plugin listed by the manifests under dirs. A
// candidate that fails is logged and skipped; the others still load.
// Missing directories are skipped.
func (m *Manager) Discover(dirs ...string) DiscoveryResult {
	var result DiscoveryResult
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !IsManifest(d.Name()) {
				return nil
			}
			result.Manifests = append(result.Manifests, path)
			m.loadManifest(path, &result)
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn().Err(err).Str("dir", dir).Msg("plugin discovery failed")
			result.Failed = append(result.Failed, Failure{Source: dir, Err: err})
		}
	}

	m.logger.Info().
		Int("loaded", len(result.Loaded)).
		Int("failed", len(result.Failed)).
		Int("manifests", len(result.Manifests)).
		Msg("plugin discovery finished")
	return result
}

func (m *Manager) loadManifest(path string, result *DiscoveryResult) {
	manifest, err := ReadManifest(path)
	if err != nil {
		m.logger.Warn().Err(err).Str("manifest", path).Msg("skipping plugin manifest")
		result.Failed = append(result.Failed, Failure{Source: path, Err: err})
		return
	}
	for _, e := range manifest.Plugins {
		info, err := m.loadEntry(e, path)
		if err != nil {
			m.logger.Warn().Err(err).Str("plugin", e.ID).Str("manifest", path).Msg("skipping plugin")
			result.Failed = append(result.Failed, Failure{ID: e.ID, Source: path, Err: err})
			continue
		}
		result.Loaded = append(result.Loaded, info)
	}
}

func (m *Manager) loadEntry(e ManifestEntry, source string) (Info, error) {
	if info, ok := m.loadedID(e.ID); ok {
		return m.applyManifestState(info, e)
	}
	ctor, ok := m.catalog[e.ID]
	if !ok {
		return Info{}, fmt.Errorf("%w: catalog has no id %q", ErrUnknownPlugin, e.ID)
	}
	info, err := m.register(e.ID, ctor, source, e.Aliases)
	if err != nil {
		return Info{}, err
	}
	if !e.IsEnabled() {
		if err := m.Disable(info.Name); err != nil {
			return Info{}, err
		}
		info, _ = m.Info(info.Name)
	}
	return info, nil
}

func (m *Manager) loadedID(id string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.plugins {
		if e.info.ID == id {
			return e.info, true
		}
	}
	return Info{}, false
}

// applyManifestState brings an already loaded plugin in line with the
// enabled flag of its manifest entry.
func (m *Manager) applyManifestState(info Info, e ManifestEntry) (Info, error) {
	var err error
	switch {
	case e.IsEnabled() && !info.Enabled:
		err = m.Enable(info.Name)
	case !e.IsEnabled() && info.Enabled:
		err = m.Disable(info.Name)
	}
	if err != nil {
		return Info{}, err
	}
	info, _ = m.Info(info.Name)
	return info, nil
}

// Rediscover runs Discover over a new set of directories. Plugins that are
// already loaded keep their registration. Enabled plugins that came from a
// manifest no longer found under dirs are disabled, dependents first.
// Nothing is disabled when a manifest or directory could not be read.
func (m *Manager) Rediscover(dirs ...string) DiscoveryResult {
	result := m.Discover(dirs...)

	listed := make(map[string]bool)
	for _, info := range result.Loaded {
		listed[info.ID] = true
	}
	for _, f := range result.Failed {
		if f.ID == "" {
			// An unreadable manifest may still name plugins; keep them.
			m.logger.Warn().Str("source", f.Source).Msg("not disabling unlisted plugins after a manifest error")
			return result
		}
		listed[f.ID] = true
	}

	m.mu.RLock()
	var stale []string
	for name, e := range m.plugins {
		if e.info.Enabled && IsManifest(filepath.Base(e.info.Source)) && !listed[e.info.ID] {
			stale = append(stale, name)
		}
	}
	m.mu.RUnlock()
	sort.Strings(stale)

	// A plugin still needed by another stale plugin succeeds on a later pass.
	for len(stale) > 0 {
		var blocked []string
		lastErr := map[string]error{}
		for _, name := range stale {
			if err := m.Disable(name); err != nil {
				blocked = append(blocked, name)
				lastErr[name] = err
				continue
			}
			result.Disabled = append(result.Disabled, name)
		}
		if len(blocked) == len(stale) {
			for _, name := range blocked {
				info, _ := m.Info(name)
				m.logger.Warn().Err(lastErr[name]).Str("plugin", name).Msg("unlisted plugin left enabled")
				result.Failed = append(result.Failed, Failure{ID: info.ID, Source: info.Source, Err: lastErr[name]})
			}
			break
		}
		stale = blocked
	}
	if len(result.Disabled) > 0 {
		m.logger.Info().Strs("plugins", result.Disabled).Msg("disabled unlisted plugins")
	}
	return result
}

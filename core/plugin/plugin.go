// Package plugin loads user field-type handlers into a registry.
//
// Handlers are linked into the host program and listed in a Catalog under a
// stable id. Manifests (*.plugins.yaml) in configured directories select
// which catalog entries to load:
//
//	plugins:
//	  - id: money
//	    enabled: true
//	    aliases: [currency]
package plugin

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrPluginValidationFailed = errors.New("plugin validation failed")
	ErrUnknownPlugin          = errors.New("unknown plugin")
	ErrPluginInUse            = errors.New("plugin has enabled dependents")
)

// Describer is required of every plugin handler.
type Describer interface {
	Description() string
}

// Versioner, Author and DependencyDeclarer are optional metadata.
type Versioner interface {
	Version() string
}

type Authorer interface {
	Author() string
}

// DependencyDeclarer lists field types that must be registered before the
// plugin can load.
type DependencyDeclarer interface {
	Dependencies() []string
}

// Catalog maps plugin ids to constructors linked into the program.
type Catalog map[string]func() any

// Info is the metadata tracked for a loaded plugin.
type Info struct {
	Name         string    `json:"name" yaml:"name"`
	ID           string    `json:"id,omitempty" yaml:"id,omitempty"`
	Description  string    `json:"description" yaml:"description"`
	Version      string    `json:"version,omitempty" yaml:"version,omitempty"`
	Author       string    `json:"author,omitempty" yaml:"author,omitempty"`
	Dependencies []string  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Aliases      []string  `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Source       string    `json:"source" yaml:"source"`
	Enabled      bool      `json:"enabled" yaml:"enabled"`
	LoadID       string    `json:"load_id" yaml:"load_id"`
	LoadedAt     time.Time `json:"loaded_at" yaml:"loaded_at"`
}

// ValidationError lists every problem found with a candidate.
type ValidationError struct {
	Plugin   string
	Problems []string
}

func (e *ValidationError) Error() string {
	name := e.Plugin
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("plugin %q validation failed:\n  - %s", name, strings.Join(e.Problems, "\n  - "))
}

func (e *ValidationError) Unwrap() error { return ErrPluginValidationFailed }

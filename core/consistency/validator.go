// Package consistency checks a set of schemas as a whole: ownership cycles,
// missing inverse relationships, relationship targets, field configuration
// and textual validation rules.
package consistency

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/artpar/modelkit/core/convention"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/schema"
)

// TypeLookup resolves field types to handlers. *fieldtype.Registry
// implements it.
type TypeLookup interface {
	Get(name string) (fieldtype.Handler, error)
}

// Validator runs every consistency check over a schema set.
// It holds no state between calls.
type Validator struct {
	types  TypeLookup
	logger zerolog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// NewValidator creates a validator resolving field types through types.
func NewValidator(types TypeLookup, opts ...Option) *Validator {
	v := &Validator{types: types, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check runs all checks and accumulates their findings into one report.
func (v *Validator) Check(set schema.Set) Report {
	var r Report

	r.Add(DuplicateNames(set)...)
	r.Add(ValidateTargets(set)...)

	r.Cycles = DetectCycles(set)
	for _, c := range r.Cycles {
		r.Add(errorf(CodeCircularDependency, c.From, "ownership cycle: %s belongs to %s which leads back to %s", c.From, c.To, c.From))
	}

	r.MissingInverses = FindMissingInverses(set)
	for _, mi := range r.MissingInverses {
		issue := warnf(CodeMissingInverse, mi.From, "%s %q targets %s, which declares no relationship back; expected a %s on %s",
			mi.Type, mi.Relationship, mi.To, mi.Expected, mi.To)
		issue.Relationship = mi.Relationship
		r.Add(issue)
	}

	for _, s := range set {
		r.Add(v.ValidateFields(s)...)
		r.Add(ValidateRules(s, set)...)
	}

	v.logger.Debug().
		Int("models", len(set)).
		Int("errors", len(r.Errors)).
		Int("warnings", len(r.Warnings)).
		Msg("consistency check finished")

	return r
}

// DuplicateNames reports models or tables declared more than once.
func DuplicateNames(set schema.Set) []Issue {
	var issues []Issue
	models := make(map[string]string)
	tables := make(map[string]string)
	for _, s := range set {
		if first, dup := models[s.Key()]; dup {
			issues = append(issues, errorf(CodeDuplicateModel, s.Name(), "model %s is also declared as %s", s.Name(), first))
		} else {
			models[s.Key()] = s.Name()
		}
		table := strings.ToLower(s.Table())
		if first, dup := tables[table]; dup {
			issues = append(issues, errorf(CodeDuplicateTable, s.Name(), "table %q is already used by %s", s.Table(), first))
		} else {
			tables[table] = s.Name()
		}
	}
	return issues
}

// ValidateTargets checks that every relationship has a known type and names
// a model present in the set. morph_to needs no target.
func ValidateTargets(set schema.Set) []Issue {
	var issues []Issue
	for _, s := range set {
		for _, rel := range s.Relationships() {
			issue := func(code Code, format string, args ...any) {
				i := errorf(code, s.Name(), format, args...)
				i.Relationship = rel.Name
				issues = append(issues, i)
			}
			if !rel.Type.IsValid() {
				issue(CodeUnknownRelationshipType, "unknown relationship type %q", rel.Type)
				continue
			}
			if rel.Model == "" {
				if rel.Type.RequiresTarget() {
					issue(CodeMissingTarget, "%s relationship needs a target model", rel.Type)
				}
				continue
			}
			if !rel.Type.RequiresTarget() {
				continue
			}
			if _, ok := set.Lookup(rel.Model); !ok {
				issue(CodeDanglingReference, "target model %q is not defined (looked up as %q)", rel.Model, convention.BaseName(rel.Model))
			}
		}
	}
	return issues
}

// Package fieldtype holds the field-type handlers and the registry that
// resolves type names and aliases to them.
package fieldtype

import "github.com/artpar/modelkit/core/schema"

// Validator reports configuration problems of a field. Each message names
// the field.
type Validator interface {
	Validate(f schema.Field) []string
}

// Caster maps a field to its model cast, if any.
type Caster interface {
	CastType(f schema.Field) (string, bool)
}

// MigrationDefiner renders the column definition of a field.
type MigrationDefiner interface {
	MigrationDefinition(f schema.Field) string
}

// Defaulter returns the effective default value of a field.
type Defaulter interface {
	DefaultValue(f schema.Field) any
}

// FillableChecker decides whether a field accepts mass assignment.
type FillableChecker interface {
	IsFillable(name string, f schema.Field) bool
}

// FactoryValuer renders a test-data expression for a field.
type FactoryValuer interface {
	FactoryValue(f schema.Field) string
}

// Named identifies a handler.
type Named interface {
	TypeName() string
	Aliases() []string
}

// Handler is the full capability set of a field type.
type Handler interface {
	Named
	Validator
	Caster
	MigrationDefiner
	Defaulter
	FillableChecker
	FactoryValuer
}

// Constraint is a numeric column constraint.
type Constraint string

const (
	ConstraintLength    Constraint = "length"
	ConstraintPrecision Constraint = "precision"
	ConstraintScale     Constraint = "scale"
)

// ConstraintAcceptor is implemented by handlers that honor numeric
// constraints. Handlers without it accept none.
type ConstraintAcceptor interface {
	AcceptsConstraint(c Constraint) bool
}

// Factory creates a handler. It is called at most once per registration.
type Factory func() Handler

// Capability names one member of the handler contract.
type Capability struct {
	Name  string
	Check func(v any) bool
}

// Capabilities lists the members a handler must implement, in contract order.
var Capabilities = []Capability{
	{"TypeName/Aliases", func(v any) bool { _, ok := v.(Named); return ok }},
	{"Validate", func(v any) bool { _, ok := v.(Validator); return ok }},
	{"CastType", func(v any) bool { _, ok := v.(Caster); return ok }},
	{"MigrationDefinition", func(v any) bool { _, ok := v.(MigrationDefiner); return ok }},
	{"DefaultValue", func(v any) bool { _, ok := v.(Defaulter); return ok }},
	{"IsFillable", func(v any) bool { _, ok := v.(FillableChecker); return ok }},
	{"FactoryValue", func(v any) bool { _, ok := v.(FactoryValuer); return ok }},
}

// MissingCapabilities returns the capability names v does not implement.
func MissingCapabilities(v any) []string {
	var missing []string
	for _, c := range Capabilities {
		if !c.Check(v) {
			missing = append(missing, c.Name)
		}
	}
	return missing
}

// Accepts reports whether h honors constraint c.
func Accepts(h Handler, c Constraint) bool {
	a, ok := h.(ConstraintAcceptor)
	return ok && a.AcceptsConstraint(c)
}

// Package fieldplugins holds the field-type plugins linked into the modelkit
// binary. Manifests select them by catalog id.
package fieldplugins

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/plugin"
	"github.com/artpar/modelkit/core/schema"
)

// Catalog returns the built-in plugin catalog.
func Catalog() plugin.Catalog {
	return plugin.Catalog{
		"money": func() any { return &Money{} },
		"slug":  func() any { return &Slug{} },
		"ulid":  func() any { return &ULID{} },
	}
}

// Money is a fixed-point currency amount stored as decimal(12, 2) unless the
// field overrides precision or scale.
type Money struct{}

func (*Money) TypeName() string       { return "money" }
func (*Money) Aliases() []string      { return []string{"currency"} }
func (*Money) Description() string    { return "Currency amount stored as a fixed-point decimal" }
func (*Money) Version() string        { return "1.0.0" }
func (*Money) Author() string         { return "modelkit" }
func (*Money) Dependencies() []string { return []string{"decimal"} }

func (*Money) AcceptsConstraint(c fieldtype.Constraint) bool {
	return c == fieldtype.ConstraintPrecision || c == fieldtype.ConstraintScale
}

func (*Money) Validate(f schema.Field) []string {
	var msgs []string
	precision, scale := moneyDigits(f)
	if scale > precision {
		msgs = append(msgs, fieldtype.FieldMessage(f, "scale %d exceeds precision %d", scale, precision))
	}
	if f.Default != nil {
		if _, err := strconv.ParseFloat(fmt.Sprint(f.Default), 64); err != nil {
			msgs = append(msgs, fieldtype.FieldMessage(f, "default %v is not a number", f.Default))
		}
	}
	return msgs
}

func (*Money) CastType(f schema.Field) (string, bool) {
	_, scale := moneyDigits(f)
	return "decimal:" + strconv.Itoa(scale), true
}

func (*Money) MigrationDefinition(f schema.Field) string {
	precision, scale := moneyDigits(f)
	def := fmt.Sprintf("decimal(%q, %d, %d)", f.Name, precision, scale)
	if f.Nullable {
		def += ".nullable()"
	}
	return def
}

func (*Money) DefaultValue(f schema.Field) any {
	if f.Default == nil {
		return nil
	}
	if v, err := strconv.ParseFloat(fmt.Sprint(f.Default), 64); err == nil {
		return v
	}
	return f.Default
}

func (*Money) IsFillable(name string, f schema.Field) bool { return true }

func (*Money) FactoryValue(f schema.Field) string {
	_, scale := moneyDigits(f)
	return fmt.Sprintf("fake().randomFloat(%d, 0, 10000)", scale)
}

func moneyDigits(f schema.Field) (precision, scale int) {
	precision, scale = 12, 2
	if f.Precision != nil {
		precision = *f.Precision
	}
	if f.Scale != nil {
		scale = *f.Scale
	}
	return precision, scale
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Slug is a unique, URL-safe identifier column.
type Slug struct{}

func (*Slug) TypeName() string       { return "slug" }
func (*Slug) Aliases() []string      { return nil }
func (*Slug) Description() string    { return "URL-safe lowercase identifier" }
func (*Slug) Version() string        { return "1.0.0" }
func (*Slug) Dependencies() []string { return []string{"string"} }

func (*Slug) AcceptsConstraint(c fieldtype.Constraint) bool {
	return c == fieldtype.ConstraintLength
}

func (*Slug) Validate(f schema.Field) []string {
	if f.Default == nil {
		return nil
	}
	s, ok := f.Default.(string)
	if !ok || !slugPattern.MatchString(s) {
		return []string{fieldtype.FieldMessage(f, "default %v is not a slug", f.Default)}
	}
	return nil
}

func (*Slug) CastType(f schema.Field) (string, bool) { return "", false }

func (*Slug) MigrationDefinition(f schema.Field) string {
	def := fmt.Sprintf("string(%q", f.Name)
	if f.Length != nil {
		def += ", " + strconv.Itoa(*f.Length)
	}
	def += ")"
	if f.Nullable {
		def += ".nullable()"
	}
	return def + ".unique()"
}

func (*Slug) DefaultValue(f schema.Field) any { return f.Default }

func (*Slug) IsFillable(name string, f schema.Field) bool { return true }

func (*Slug) FactoryValue(f schema.Field) string { return "fake().slug()" }

// ULID is a lexically sortable identifier stored as char(26).
type ULID struct{}

func (*ULID) TypeName() string    { return "ulid" }
func (*ULID) Aliases() []string   { return nil }
func (*ULID) Description() string { return "Lexically sortable 26-character identifier" }
func (*ULID) Version() string     { return "1.0.0" }

func (*ULID) Validate(f schema.Field) []string {
	if f.Default == nil {
		return nil
	}
	s, ok := f.Default.(string)
	if !ok {
		return []string{fieldtype.FieldMessage(f, "default must be a string")}
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return []string{fieldtype.FieldMessage(f, "default %q is not a ULID: %v", s, err)}
	}
	return nil
}

func (*ULID) CastType(f schema.Field) (string, bool) { return "string", true }

func (*ULID) MigrationDefinition(f schema.Field) string {
	def := fmt.Sprintf("ulid(%q)", f.Name)
	if f.Nullable {
		def += ".nullable()"
	}
	if f.Unique {
		def += ".unique()"
	}
	return def
}

func (*ULID) DefaultValue(f schema.Field) any { return f.Default }

// Primary keys are generated, never assigned.
func (*ULID) IsFillable(name string, f schema.Field) bool { return name != "id" }

func (*ULID) FactoryValue(f schema.Field) string { return "Str::ulid()" }

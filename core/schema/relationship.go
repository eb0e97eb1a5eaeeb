package schema

import (
	"strings"

	"github.com/artpar/modelkit/core/convention"
)

// RelationType is the kind of a relationship.
type RelationType string

const (
	BelongsTo     RelationType = "belongs_to"
	HasOne        RelationType = "has_one"
	HasMany       RelationType = "has_many"
	BelongsToMany RelationType = "belongs_to_many"
	MorphTo       RelationType = "morph_to"
	MorphOne      RelationType = "morph_one"
	MorphMany     RelationType = "morph_many"
	MorphToMany   RelationType = "morph_to_many"
	MorphedByMany RelationType = "morphed_by_many"
)

// RelationTypes lists every known relationship type.
var RelationTypes = []RelationType{
	BelongsTo, HasOne, HasMany, BelongsToMany,
	MorphTo, MorphOne, MorphMany, MorphToMany, MorphedByMany,
}

// ParseRelationType accepts snake_case and camelCase spellings
// ("belongsToMany", "belongs_to_many"). An empty string is BelongsTo.
// Unknown spellings are returned as written with ok false.
func ParseRelationType(s string) (RelationType, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return BelongsTo, true
	}
	rt := RelationType(strings.ToLower(convention.Snake(s)))
	if rt.IsValid() {
		return rt, true
	}
	return RelationType(s), false
}

// IsValid reports whether t is one of the known relationship types.
func (t RelationType) IsValid() bool {
	switch t {
	case BelongsTo, HasOne, HasMany, BelongsToMany,
		MorphTo, MorphOne, MorphMany, MorphToMany, MorphedByMany:
		return true
	}
	return false
}

// IsOwning reports whether the declaring model holds the foreign key.
func (t RelationType) IsOwning() bool {
	switch t {
	case BelongsTo:
		return true
	case HasOne, HasMany, BelongsToMany, MorphTo, MorphOne, MorphMany, MorphToMany, MorphedByMany:
		return false
	}
	return false
}

// IsPolymorphic reports whether the relationship goes through morph columns.
func (t RelationType) IsPolymorphic() bool {
	switch t {
	case MorphTo, MorphOne, MorphMany, MorphToMany, MorphedByMany:
		return true
	case BelongsTo, HasOne, HasMany, BelongsToMany:
		return false
	}
	return false
}

// IsMany reports whether the relationship yields a collection.
func (t RelationType) IsMany() bool {
	switch t {
	case HasMany, BelongsToMany, MorphMany, MorphToMany, MorphedByMany:
		return true
	case BelongsTo, HasOne, MorphTo, MorphOne:
		return false
	}
	return false
}

// RequiresTarget reports whether a target model must be named.
// morph_to resolves its target at runtime.
func (t RelationType) RequiresTarget() bool {
	switch t {
	case MorphTo:
		return false
	case BelongsTo, HasOne, HasMany, BelongsToMany, MorphOne, MorphMany, MorphToMany, MorphedByMany:
		return true
	}
	return true
}

// ExpectedInverse returns the relationship type the target model should
// declare back. ok is false for types that need no inverse.
func (t RelationType) ExpectedInverse() (RelationType, bool) {
	switch t {
	case HasOne, HasMany:
		return BelongsTo, true
	case BelongsToMany:
		return BelongsToMany, true
	case MorphOne, MorphMany:
		return MorphTo, true
	case MorphToMany:
		return MorphedByMany, true
	case MorphedByMany:
		return MorphToMany, true
	case BelongsTo, MorphTo:
		return "", false
	}
	return "", false
}

// Relationship links a model to another model.
type Relationship struct {
	Name string
	Type RelationType

	// Model is the target model; empty for morph_to.
	Model string

	ForeignKey string
	LocalKey   string

	PivotTable     string
	PivotFields    []string
	WithTimestamps bool

	Attributes map[string]any
}

// ResolvedForeignKey returns the declared foreign key or the conventional one.
func (r Relationship) ResolvedForeignKey(owner string) string {
	if r.ForeignKey != "" {
		return r.ForeignKey
	}
	switch r.Type {
	case BelongsTo:
		return convention.ForeignKey(r.Name)
	case HasOne, HasMany, BelongsToMany:
		return convention.ForeignKey(owner)
	case MorphTo:
		id, _ := convention.MorphColumns(r.Name)
		return id
	case MorphOne, MorphMany, MorphToMany, MorphedByMany:
		return ""
	}
	return ""
}

// ResolvedPivotTable returns the declared pivot table or the conventional one
// for many-to-many relationships.
func (r Relationship) ResolvedPivotTable(owner string) string {
	if r.PivotTable != "" || r.Type != BelongsToMany {
		return r.PivotTable
	}
	return convention.PivotTable(owner, r.Model)
}

// Clone returns a deep copy.
func (r Relationship) Clone() Relationship {
	r.PivotFields = cloneStrings(r.PivotFields)
	r.Attributes = cloneMap(r.Attributes)
	return r
}

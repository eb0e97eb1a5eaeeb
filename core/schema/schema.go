package schema

import (
	"fmt"
	"strings"

	"github.com/artpar/modelkit/core/convention"
)

// Options are the model-level switches.
type Options struct {
	Timestamps  bool
	SoftDeletes bool
	Namespace   string

	// Extra carries options that have no dedicated field.
	Extra map[string]any
}

// DefaultOptions returns the options of a model that declares none.
func DefaultOptions() Options {
	return Options{Timestamps: true}
}

func (o Options) clone() Options {
	o.Extra = cloneMap(o.Extra)
	return o
}

// Definition is the mutable input to New.
type Definition struct {
	Name          string
	Table         string
	Fields        []Field
	Relationships []Relationship
	Options       Options
	Metadata      map[string]any
}

// Schema is an immutable, validated model definition.
// Accessors return copies; the With methods return new schemas.
type Schema struct {
	name          string
	table         string
	fields        []Field
	fieldIndex    map[string]int
	relationships []Relationship
	relIndex      map[string]int
	options       Options
	metadata      map[string]any
}

// New builds a Schema. It rejects an empty model name, empty field or
// relationship names and duplicates within either list.
func New(def Definition) (*Schema, error) {
	var errs []string

	name := strings.TrimSpace(def.Name)
	if name == "" {
		errs = append(errs, "model name is required")
	}

	s := &Schema{
		name:       name,
		table:      strings.TrimSpace(def.Table),
		fieldIndex: make(map[string]int, len(def.Fields)),
		relIndex:   make(map[string]int, len(def.Relationships)),
		options:    def.Options.clone(),
		metadata:   cloneMap(def.Metadata),
	}
	if s.table == "" && name != "" {
		s.table = convention.Table(name)
	}

	for i, f := range def.Fields {
		if f.Name == "" {
			errs = append(errs, fmt.Sprintf("field #%d: name is required", i+1))
			continue
		}
		if _, dup := s.fieldIndex[f.Name]; dup {
			errs = append(errs, fmt.Sprintf("field %q is declared more than once", f.Name))
			continue
		}
		s.fieldIndex[f.Name] = len(s.fields)
		s.fields = append(s.fields, f.Clone())
	}

	for i, r := range def.Relationships {
		if r.Name == "" {
			errs = append(errs, fmt.Sprintf("relationship #%d: name is required", i+1))
			continue
		}
		if _, dup := s.relIndex[r.Name]; dup {
			errs = append(errs, fmt.Sprintf("relationship %q is declared more than once", r.Name))
			continue
		}
		if r.Type == "" {
			r.Type = BelongsTo
		}
		s.relIndex[r.Name] = len(s.relationships)
		s.relationships = append(s.relationships, r.Clone())
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w %q:\n  - %s", ErrInvalidDefinition, name, strings.Join(errs, "\n  - "))
	}
	return s, nil
}

// MustNew is New for definitions known to be valid, mostly in tests.
func MustNew(def Definition) *Schema {
	s, err := New(def)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the model name as declared, namespace included.
func (s *Schema) Name() string { return s.name }

// BaseName returns the model name without its namespace.
func (s *Schema) BaseName() string { return convention.BaseName(s.name) }

// Key is the namespace- and case-insensitive lookup key of the model.
func (s *Schema) Key() string { return convention.ModelKey(s.name) }

func (s *Schema) Table() string { return s.table }

func (s *Schema) Options() Options { return s.options.clone() }

func (s *Schema) Metadata() map[string]any { return cloneMap(s.metadata) }

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Clone()
	}
	return out
}

// Field looks up a declared field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i].Clone(), true
}

func (s *Schema) HasField(name string) bool {
	_, ok := s.fieldIndex[name]
	return ok
}

// Relationships returns the declared relationships in declaration order.
func (s *Schema) Relationships() []Relationship {
	out := make([]Relationship, len(s.relationships))
	for i, r := range s.relationships {
		out[i] = r.Clone()
	}
	return out
}

func (s *Schema) Relationship(name string) (Relationship, bool) {
	i, ok := s.relIndex[name]
	if !ok {
		return Relationship{}, false
	}
	return s.relationships[i].Clone(), true
}

// FieldNames returns declared field names in order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// EffectiveFields returns the declared fields followed by one foreignId field
// for every belongs_to relationship whose foreign key is not declared.
func (s *Schema) EffectiveFields() []Field {
	out := s.Fields()
	seen := make(map[string]bool, len(out))
	for _, f := range out {
		seen[f.Name] = true
	}
	for _, r := range s.relationships {
		if !r.Type.IsOwning() {
			continue
		}
		fk := r.ResolvedForeignKey(s.name)
		if seen[fk] {
			continue
		}
		seen[fk] = true
		out = append(out, Field{
			Name:     fk,
			Type:     "foreignId",
			Indexed:  true,
			Implicit: true,
			Config: ForeignConfig{
				References: r.Model,
				Column:     r.LocalKey,
			},
		})
	}
	return out
}

// Definition returns a mutable copy of the schema's input.
func (s *Schema) Definition() Definition {
	return Definition{
		Name:          s.name,
		Table:         s.table,
		Fields:        s.Fields(),
		Relationships: s.Relationships(),
		Options:       s.options.clone(),
		Metadata:      cloneMap(s.metadata),
	}
}

// WithField returns a copy of s with f added, or replacing the field of the
// same name in place.
func (s *Schema) WithField(f Field) (*Schema, error) {
	def := s.Definition()
	if i, ok := s.fieldIndex[f.Name]; ok {
		def.Fields[i] = f
	} else {
		def.Fields = append(def.Fields, f)
	}
	return New(def)
}

// WithRelationship returns a copy of s with r added or replaced.
func (s *Schema) WithRelationship(r Relationship) (*Schema, error) {
	def := s.Definition()
	if i, ok := s.relIndex[r.Name]; ok {
		def.Relationships[i] = r
	} else {
		def.Relationships = append(def.Relationships, r)
	}
	return New(def)
}

// Set is an ordered collection of schemas validated together.
type Set []*Schema

// Lookup finds a schema by model name, ignoring namespace and case.
func (set Set) Lookup(model string) (*Schema, bool) {
	key := convention.ModelKey(model)
	for _, s := range set {
		if s.Key() == key {
			return s, true
		}
	}
	return nil, false
}

// LookupTable finds a schema by table name, falling back to model name.
func (set Set) LookupTable(name string) (*Schema, bool) {
	for _, s := range set {
		if strings.EqualFold(s.table, name) {
			return s, true
		}
	}
	return set.Lookup(name)
}

// Names returns the model names in set order.
func (set Set) Names() []string {
	out := make([]string, len(set))
	for i, s := range set {
		out[i] = s.name
	}
	return out
}

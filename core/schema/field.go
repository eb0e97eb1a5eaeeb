package schema

// Field is one column-like member of a model.
type Field struct {
	Name string

	// Type is the canonical type name when the registry knows it,
	// otherwise the text as written.
	Type string

	Nullable bool
	Unique   bool
	Indexed  bool
	Default  any

	Length    *int
	Precision *int
	Scale     *int

	// Rules and Validation keep their declared order.
	Rules      []string
	Validation []string

	Comment string
	Config  FieldConfig

	// Implicit marks fields synthesized from relationships.
	Implicit bool
}

// HasDefault reports whether a default value was declared.
func (f Field) HasDefault() bool { return f.Default != nil }

// Attributes returns the type-specific attributes of the field.
func (f Field) Attributes() map[string]any {
	if f.Config == nil {
		return nil
	}
	return f.Config.Attributes()
}

// AllRules returns Rules followed by Validation.
func (f Field) AllRules() []string {
	if len(f.Rules)+len(f.Validation) == 0 {
		return nil
	}
	out := make([]string, 0, len(f.Rules)+len(f.Validation))
	out = append(out, f.Rules...)
	return append(out, f.Validation...)
}

// Clone returns a deep copy.
func (f Field) Clone() Field {
	f.Default = cloneValue(f.Default)
	f.Length = cloneInt(f.Length)
	f.Precision = cloneInt(f.Precision)
	f.Scale = cloneInt(f.Scale)
	f.Rules = cloneStrings(f.Rules)
	f.Validation = cloneStrings(f.Validation)
	if f.Config != nil {
		f.Config = f.Config.Clone()
	}
	return f
}

// IntPtr is a helper for building fields in code.
func IntPtr(v int) *int { return &v }

package consistency

import (
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/schema"
)

// Upper bounds beyond which a numeric constraint is almost certainly a typo.
const (
	MaxLength    = 65535
	MaxPrecision = 65
	MaxScale     = 30
)

// ValidateFields resolves each effective field's type and applies the
// handler's checks plus the numeric constraint checks.
func (v *Validator) ValidateFields(s *schema.Schema) []Issue {
	var issues []Issue
	for _, f := range s.EffectiveFields() {
		add := func(i Issue) {
			i.Field = f.Name
			issues = append(issues, i)
		}

		var h fieldtype.Handler
		if v.types != nil {
			var err error
			if h, err = v.types.Get(f.Type); err != nil {
				add(errorf(CodeUnknownFieldType, s.Name(), "field %q has unknown type %q", f.Name, f.Type))
			}
		}
		if h != nil {
			for _, msg := range h.Validate(f) {
				add(errorf(CodeInvalidFieldConfig, s.Name(), "%s", msg))
			}
		}
		for _, i := range checkConstraints(s.Name(), f, h) {
			add(i)
		}
	}
	return issues
}

func checkConstraints(model string, f schema.Field, h fieldtype.Handler) []Issue {
	var issues []Issue
	check := func(c fieldtype.Constraint, value *int, max int) {
		if value == nil {
			return
		}
		switch {
		case *value < 0:
			issues = append(issues, errorf(CodeInvalidFieldConfig, model, "field %q: %s must not be negative, got %d", f.Name, c, *value))
			return
		case *value > max:
			issues = append(issues, warnf(CodeConstraintOutOfRange, model, "field %q: %s %d exceeds %d", f.Name, c, *value, max))
		}
		if h != nil && !fieldtype.Accepts(h, c) {
			issues = append(issues, warnf(CodeIgnoredConstraint, model, "field %q: type %q ignores %s", f.Name, f.Type, c))
		}
	}
	check(fieldtype.ConstraintLength, f.Length, MaxLength)
	check(fieldtype.ConstraintPrecision, f.Precision, MaxPrecision)
	check(fieldtype.ConstraintScale, f.Scale, MaxScale)

	if f.Precision != nil && f.Scale != nil && *f.Scale > *f.Precision {
		issues = append(issues, errorf(CodeInvalidFieldConfig, model, "field %q: scale %d exceeds precision %d", f.Name, *f.Scale, *f.Precision))
	}
	return issues
}

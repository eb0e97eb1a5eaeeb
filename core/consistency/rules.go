package consistency

import (
	"strings"

	"github.com/artpar/modelkit/core/rules"
	"github.com/artpar/modelkit/core/schema"
)

// ValidateRules checks the textual rules of a schema's fields against the
// set: reference rules must name an existing table and column, conditional
// rules must name fields of the same schema, pattern and size rules must be
// well formed. Unknown rule shapes are warnings.
func ValidateRules(s *schema.Schema, set schema.Set) []Issue {
	var issues []Issue
	own := columns(s)
	for _, f := range s.Fields() {
		add := func(i Issue) {
			i.Field = f.Name
			issues = append(issues, i)
		}
		for _, r := range rules.ParseAll(f.AllRules()) {
			switch r.Shape {
			case rules.ShapeExists, rules.ShapeUnique:
				table := r.Table()
				if table == "" {
					add(errorf(CodeInvalidRule, s.Name(), "rule %q names no table", r.Raw))
					continue
				}
				target, ok := set.LookupTable(table)
				if !ok {
					add(errorf(CodeDanglingReference, s.Name(), "rule %q references unknown table %q", r.Raw, table))
					continue
				}
				column := r.Column(f.Name)
				if !columns(target)[column] {
					add(errorf(CodeDanglingReference, s.Name(), "rule %q references unknown column %q on %s", r.Raw, column, target.Table()))
				}
			case rules.ShapeIn:
				if !hasValue(r.Params) {
					add(warnf(CodeEmptyInRule, s.Name(), "rule %q lists no values", r.Raw))
				}
			case rules.ShapePattern:
				if _, err := r.Compile(); err != nil {
					add(errorf(CodeInvalidRule, s.Name(), "%v", err))
				}
			case rules.ShapeSize:
				if err := r.CheckSize(); err != nil {
					add(errorf(CodeInvalidRule, s.Name(), "%v", err))
				}
			case rules.ShapeConditional:
				for _, ref := range r.ReferencedFields() {
					if !own[ref] {
						add(errorf(CodeDanglingReference, s.Name(), "rule %q references unknown field %q", r.Raw, ref))
					}
				}
			case rules.ShapeBasic:
			case rules.ShapeUnknown:
				add(warnf(CodeUnknownRule, s.Name(), "rule %q is not recognized", r.Raw))
			}
		}
	}
	return issues
}

// columns returns every column a schema's table has: id, effective fields
// and the timestamp columns its options imply.
func columns(s *schema.Schema) map[string]bool {
	out := map[string]bool{"id": true}
	for _, f := range s.EffectiveFields() {
		out[f.Name] = true
	}
	opts := s.Options()
	if opts.Timestamps {
		out["created_at"] = true
		out["updated_at"] = true
	}
	if opts.SoftDeletes {
		out["deleted_at"] = true
	}
	return out
}

func hasValue(params []string) bool {
	for _, p := range params {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

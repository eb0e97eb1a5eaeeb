// Package convention derives names from minimal model definitions.
// It applies the naming rules shared by the parser and the consistency
// validator: table names, foreign keys, pivot tables and namespace stripping.
package convention

import (
	"sort"
	"strings"
	"unicode"
)

// BaseName strips any namespace prefix from a model identifier.
// Both `App\Models\User` and `app.models.User` yield "User".
func BaseName(model string) string {
	model = strings.TrimSpace(model)
	if i := strings.LastIndexAny(model, `\/.`); i >= 0 {
		return model[i+1:]
	}
	return model
}

// Namespace returns the namespace prefix of a model identifier, or "".
func Namespace(model string) string {
	model = strings.TrimSpace(model)
	if i := strings.LastIndexAny(model, `\/.`); i > 0 {
		return model[:i]
	}
	return ""
}

// ModelKey returns the normalized lookup key for a model identifier.
// Lookups are namespace- and case-insensitive.
func ModelKey(model string) string {
	return strings.ToLower(BaseName(model))
}

// Table returns the conventional table name for a model: plural snake_case.
func Table(model string) string {
	return Pluralize(Snake(BaseName(model)))
}

// ForeignKey returns the conventional foreign key column for a relation or
// model name, e.g. "author" -> "author_id", "BlogPost" -> "blog_post_id".
func ForeignKey(name string) string {
	return Snake(BaseName(name)) + "_id"
}

// MorphColumns returns the id and type columns of a polymorphic owner.
func MorphColumns(name string) (idColumn, typeColumn string) {
	base := Snake(name)
	return base + "_id", base + "_type"
}

// PivotTable returns the conventional pivot table joining two models:
// both singular snake_case names in alphabetical order, joined by "_".
func PivotTable(a, b string) string {
	names := []string{Snake(BaseName(a)), Snake(BaseName(b))}
	sort.Strings(names)
	return names[0] + "_" + names[1]
}

// Snake converts an identifier to snake_case.
// "BlogPost" -> "blog_post", "userID" -> "user_id", "author-name" -> "author_name".
func Snake(s string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(s))
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '.':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 && runes[i-1] != '_' && runes[i-1] != '-' && runes[i-1] != ' ' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Studly converts snake_case or camelCase to StudlyCase.
func Studly(s string) string {
	parts := strings.FieldsFunc(Snake(s), func(r rune) bool { return r == '_' })
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// Camel converts snake_case to camelCase. It is used to accept both key
// spellings in schema documents.
func Camel(s string) string {
	studly := Studly(s)
	if studly == "" {
		return ""
	}
	return strings.ToLower(studly[:1]) + studly[1:]
}

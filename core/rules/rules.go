// Package rules parses textual validation rules such as
// "required|exists:users,id|regex:/^[a-z]+$/i" and classifies them by shape.
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Shape is the structural class of a rule.
type Shape string

const (
	ShapeExists      Shape = "exists"
	ShapeUnique      Shape = "unique"
	ShapeIn          Shape = "in"
	ShapePattern     Shape = "pattern"
	ShapeSize        Shape = "size"
	ShapeConditional Shape = "conditional"
	ShapeBasic       Shape = "basic"
	ShapeUnknown     Shape = "unknown"
)

// Rule is one parsed rule entry.
type Rule struct {
	Raw     string
	Keyword string
	Params  []string
	Shape   Shape
}

var shapes = map[string]Shape{
	"exists": ShapeExists,
	"unique": ShapeUnique,

	"in":     ShapeIn,
	"not_in": ShapeIn,

	"regex":     ShapePattern,
	"not_regex": ShapePattern,

	"min": ShapeSize, "max": ShapeSize, "size": ShapeSize, "between": ShapeSize,
	"digits": ShapeSize, "digits_between": ShapeSize, "min_digits": ShapeSize,
	"max_digits": ShapeSize, "decimal": ShapeSize, "multiple_of": ShapeSize,

	"required_if": ShapeConditional, "required_unless": ShapeConditional,
	"required_with": ShapeConditional, "required_with_all": ShapeConditional,
	"required_without": ShapeConditional, "required_without_all": ShapeConditional,
	"prohibited_if": ShapeConditional, "prohibited_unless": ShapeConditional,
	"exclude_if": ShapeConditional, "exclude_unless": ShapeConditional,
	"exclude_with": ShapeConditional, "exclude_without": ShapeConditional,
	"missing_if": ShapeConditional, "missing_unless": ShapeConditional,
	"same": ShapeConditional, "different": ShapeConditional,
	"gt": ShapeConditional, "gte": ShapeConditional, "lt": ShapeConditional, "lte": ShapeConditional,
}

var basic = []string{
	"accepted", "active_url", "after", "after_or_equal", "alpha", "alpha_dash",
	"alpha_num", "array", "ascii", "bail", "before", "before_or_equal", "boolean",
	"confirmed", "date", "date_equals", "date_format", "declined", "dimensions",
	"distinct", "doesnt_end_with", "doesnt_start_with", "email", "ends_with",
	"file", "filled", "image", "integer", "ip", "ipv4", "ipv6", "json",
	"lowercase", "mac_address", "mimes", "mimetypes", "nullable", "numeric",
	"present", "prohibited", "required", "sometimes", "starts_with", "string",
	"timezone", "ulid", "uppercase", "url", "uuid",
}

func init() {
	for _, k := range basic {
		shapes[k] = ShapeBasic
	}
}

// Split separates a pipe-delimited rule string. A regex rule keeps pipes
// inside its delimiters: "regex:/a|b/i|required" is two entries.
func Split(s string) []string {
	var out []string
	for s != "" {
		end := strings.IndexByte(s, '|')
		if kw := strings.ToLower(keyword(s)); kw == "regex" || kw == "not_regex" {
			colon := strings.IndexByte(s, ':')
			if n := regexEnd(s[colon+1:]); n >= 0 {
				start := colon + 1 + n
				if next := strings.IndexByte(s[start:], '|'); next >= 0 {
					end = start + next
				} else {
					end = -1
				}
			}
		}
		if end < 0 {
			out = appendEntry(out, s)
			break
		}
		out = appendEntry(out, s[:end])
		s = s[end+1:]
	}
	return out
}

// regexEnd returns the length of a delimited pattern with flags at the start
// of s, or -1 when s does not start with a delimited pattern.
func regexEnd(s string) int {
	if len(s) < 2 {
		return -1
	}
	delim := s[0]
	if isAlnum(delim) || delim == '\\' || delim == ' ' {
		return -1
	}
	closing := delim
	switch delim {
	case '(':
		closing = ')'
	case '{':
		closing = '}'
	case '[':
		closing = ']'
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case closing:
			j := i + 1
			for j < len(s) && s[j] >= 'a' && s[j] <= 'z' {
				j++
			}
			return j
		}
	}
	return -1
}

func appendEntry(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

func keyword(s string) string {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

// Parse classifies one rule entry. Parameters follow the first ':' and are
// comma separated, except for pattern rules whose single parameter is the
// whole pattern.
func Parse(raw string) Rule {
	raw = strings.TrimSpace(raw)
	r := Rule{Raw: raw, Keyword: strings.ToLower(keyword(raw))}

	if i := strings.IndexByte(raw, ':'); i >= 0 {
		param := raw[i+1:]
		if shapes[r.Keyword] == ShapePattern {
			r.Params = []string{param}
		} else {
			for _, p := range strings.Split(param, ",") {
				r.Params = append(r.Params, strings.TrimSpace(p))
			}
		}
	}

	if s, ok := shapes[r.Keyword]; ok {
		r.Shape = s
	} else {
		r.Shape = ShapeUnknown
	}
	return r
}

// ParseAll splits and parses every rule string in order.
func ParseAll(list []string) []Rule {
	var out []Rule
	for _, s := range list {
		for _, entry := range Split(s) {
			out = append(out, Parse(entry))
		}
	}
	return out
}

// Table returns the referenced table of an exists or unique rule with any
// connection prefix removed ("mysql.users" -> "users").
func (r Rule) Table() string {
	if len(r.Params) == 0 || r.Params[0] == "" {
		return ""
	}
	t := r.Params[0]
	if i := strings.IndexByte(t, '.'); i >= 0 && !strings.ContainsAny(t, `\`) {
		t = t[i+1:]
	}
	return t
}

// Column returns the referenced column, defaulting to the given field name.
func (r Rule) Column(field string) string {
	if len(r.Params) > 1 && r.Params[1] != "" && !strings.EqualFold(r.Params[1], "NULL") {
		return r.Params[1]
	}
	return field
}

// ReferencedFields returns the sibling fields a conditional rule depends on.
func (r Rule) ReferencedFields() []string {
	if r.Shape != ShapeConditional || len(r.Params) == 0 {
		return nil
	}
	switch r.Keyword {
	case "required_with", "required_with_all", "required_without", "required_without_all",
		"exclude_with", "exclude_without":
		var out []string
		for _, p := range r.Params {
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	case "gt", "gte", "lt", "lte":
		if _, err := strconv.ParseFloat(r.Params[0], 64); err == nil {
			return nil
		}
	}
	if r.Params[0] == "" {
		return nil
	}
	return []string{r.Params[0]}
}

// CheckSize verifies that a size rule has the numeric parameters it needs.
func (r Rule) CheckSize() error {
	want := 1
	switch r.Keyword {
	case "between", "digits_between":
		want = 2
	case "decimal":
		if len(r.Params) == 2 {
			want = 2
		}
	}
	if len(r.Params) != want {
		return fmt.Errorf("rule %q needs %d numeric parameter(s), got %d", r.Raw, want, len(r.Params))
	}
	for _, p := range r.Params {
		if _, err := strconv.ParseFloat(p, 64); err != nil {
			return fmt.Errorf("rule %q: parameter %q is not numeric", r.Raw, p)
		}
	}
	return nil
}

// Compile compiles the pattern of a regex rule. Delimiters and trailing
// i, m, s and u flags are understood; the pattern must be valid RE2.
func (r Rule) Compile() (*regexp.Regexp, error) {
	if r.Shape != ShapePattern || len(r.Params) == 0 || r.Params[0] == "" {
		return nil, fmt.Errorf("rule %q has no pattern", r.Raw)
	}
	expr, err := toRE2(r.Params[0])
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.Raw, err)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.Raw, err)
	}
	return re, nil
}

func toRE2(pattern string) (string, error) {
	n := regexEnd(pattern)
	if n < 0 {
		return pattern, nil
	}
	if n != len(pattern) {
		return "", fmt.Errorf("unexpected text after pattern: %q", pattern[n:])
	}
	// find the closing delimiter: the flags are the trailing lowercase run
	j := n
	for j > 0 && pattern[j-1] >= 'a' && pattern[j-1] <= 'z' {
		j--
	}
	body := pattern[1 : j-1]
	var flags string
	for _, f := range pattern[j:] {
		switch f {
		case 'i', 'm', 's':
			flags += string(f)
		case 'u':
		default:
			return "", fmt.Errorf("unsupported pattern flag %q", f)
		}
	}
	if flags != "" {
		body = "(?" + flags + ")" + body
	}
	return body, nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

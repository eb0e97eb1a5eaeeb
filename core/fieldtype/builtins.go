package fieldtype

import (
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/artpar/modelkit/core/schema"
)

// MaxSetValues is the largest number of members a set column can hold.
const MaxSetValues = 64

// builtin is a table-driven handler for the standard column types.
type builtin struct {
	name        string
	aliases     []string
	method      string // migration method, defaults to name
	cast        string
	constraints []Constraint
	fake        string
	args        func(f schema.Field) []string
	validate    func(f schema.Field) []string
	guarded     bool // never mass-assignable
}

func (b *builtin) TypeName() string { return b.name }

func (b *builtin) Aliases() []string {
	out := make([]string, len(b.aliases))
	copy(out, b.aliases)
	return out
}

func (b *builtin) Validate(f schema.Field) []string {
	if b.validate == nil {
		return nil
	}
	return b.validate(f)
}

func (b *builtin) CastType(f schema.Field) (string, bool) {
	switch b.cast {
	case "":
		return "", false
	case "decimal":
		if f.Scale != nil {
			return "decimal:" + strconv.Itoa(*f.Scale), true
		}
		return "decimal:2", true
	}
	return b.cast, true
}

// MigrationDefinition renders a chained column definition such as
// string("title", 200).nullable().unique().
func (b *builtin) MigrationDefinition(f schema.Field) string {
	method := b.method
	if method == "" {
		method = b.name
	}
	args := []string{strconv.Quote(f.Name)}
	if b.args != nil {
		args = append(args, b.args(f)...)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(%s)", method, strings.Join(args, ", "))
	if fc, ok := f.Config.(schema.ForeignConfig); ok && b.name == "foreignId" {
		if fc.References != "" {
			fmt.Fprintf(&sb, ".constrained(%q", fc.References)
			if fc.Column != "" {
				fmt.Fprintf(&sb, ", %q", fc.Column)
			}
			sb.WriteString(")")
		}
		if fc.OnDelete != "" {
			fmt.Fprintf(&sb, ".onDelete(%q)", fc.OnDelete)
		}
		if fc.OnUpdate != "" {
			fmt.Fprintf(&sb, ".onUpdate(%q)", fc.OnUpdate)
		}
	}
	if f.Nullable && b.name != "nullableMorphs" {
		sb.WriteString(".nullable()")
	}
	if f.Unique {
		sb.WriteString(".unique()")
	}
	if f.Indexed && b.name != "foreignId" {
		sb.WriteString(".index()")
	}
	if f.Default != nil {
		fmt.Fprintf(&sb, ".default(%s)", literal(f.Default))
	}
	if f.Comment != "" {
		fmt.Fprintf(&sb, ".comment(%q)", f.Comment)
	}
	return sb.String()
}

func (b *builtin) DefaultValue(f schema.Field) any {
	if f.Default == nil {
		return nil
	}
	if b.cast == "boolean" {
		if v, ok := toBool(f.Default); ok {
			return v
		}
	}
	return f.Default
}

func (b *builtin) IsFillable(name string, f schema.Field) bool {
	if b.guarded {
		return false
	}
	switch name {
	case "id", "created_at", "updated_at", "deleted_at":
		return false
	}
	return true
}

func (b *builtin) FactoryValue(f schema.Field) string {
	switch b.name {
	case "enum", "set":
		values := configValues(f)
		if len(values) == 0 {
			return "null"
		}
		return fmt.Sprintf("fake().randomElement(%s)", quoteList(values))
	case "string", "char":
		if strings.Contains(f.Name, "email") {
			return "fake().safeEmail()"
		}
		if strings.Contains(f.Name, "name") {
			return "fake().name()"
		}
	}
	if b.fake == "" {
		return "null"
	}
	return b.fake
}

func (b *builtin) AcceptsConstraint(c Constraint) bool {
	for _, accepted := range b.constraints {
		if accepted == c {
			return true
		}
	}
	return false
}

// RegisterBuiltins registers the standard column types and their aliases.
func RegisterBuiltins(r *Registry) error {
	for _, b := range builtins() {
		b := b
		if err := r.RegisterHandler(func() Handler { return b }); err != nil {
			return fmt.Errorf("register %s: %w", b.name, err)
		}
	}
	return nil
}

func builtins() []*builtin {
	length := []Constraint{ConstraintLength}
	numeric := []Constraint{ConstraintPrecision, ConstraintScale}

	return []*builtin{
		{name: "string", constraints: length, fake: "fake().sentence(3)", args: lengthArg, validate: validateString},
		{name: "char", constraints: length, fake: "fake().lexify(\"????\")", args: lengthArg, validate: validateString},
		{name: "text", aliases: []string{"mediumText", "longText"}, fake: "fake().paragraph()"},
		{name: "email", method: "string", constraints: length, fake: "fake().safeEmail()", args: lengthArg, validate: validateEmail},
		{name: "integer", aliases: []string{"int"}, cast: "integer", fake: "fake().randomNumber()", validate: validateInteger},
		{name: "bigInteger", aliases: []string{"bigint"}, cast: "integer", fake: "fake().randomNumber()", validate: validateInteger},
		{name: "smallInteger", cast: "integer", fake: "fake().numberBetween(0, 32767)", validate: validateInteger},
		{name: "tinyInteger", cast: "integer", fake: "fake().numberBetween(0, 127)", validate: validateInteger},
		{name: "unsignedInteger", cast: "integer", fake: "fake().randomNumber()", validate: validateUnsigned},
		{name: "unsignedBigInteger", cast: "integer", fake: "fake().randomNumber()", validate: validateUnsigned},
		{name: "increments", cast: "integer", guarded: true},
		{name: "bigIncrements", cast: "integer", guarded: true},
		{name: "decimal", cast: "decimal", constraints: numeric, fake: "fake().randomFloat(2)", args: precisionArgs, validate: validateNumber},
		{name: "float", cast: "float", constraints: numeric, fake: "fake().randomFloat()", args: precisionArgs, validate: validateNumber},
		{name: "double", cast: "float", constraints: numeric, fake: "fake().randomFloat()", args: precisionArgs, validate: validateNumber},
		{name: "boolean", aliases: []string{"bool"}, cast: "boolean", fake: "fake().boolean()", validate: validateBoolean},
		{name: "date", cast: "date", fake: "fake().date()"},
		{name: "dateTime", aliases: []string{"datetime"}, cast: "datetime", fake: "fake().dateTime()"},
		{name: "timestamp", cast: "datetime", fake: "fake().dateTime()"},
		{name: "time", fake: "fake().time()"},
		{name: "year", fake: "fake().year()", validate: validateInteger},
		{name: "json", aliases: []string{"jsonb"}, cast: "array", fake: "[]"},
		{name: "uuid", fake: "fake().uuid()", validate: validateUUID},
		{name: "binary", aliases: []string{"blob"}},
		{name: "enum", fake: "null", args: valuesArg, validate: validateEnum},
		{name: "set", cast: "array", args: valuesArg, validate: validateSet},
		{name: "foreignId", validate: validateForeign},
		{name: "morphs", guarded: true},
		{name: "nullableMorphs", guarded: true},
		{name: "point", args: sridArg, validate: validateGeo},
		{name: "geometry", args: sridArg, validate: validateGeo},
	}
}

func lengthArg(f schema.Field) []string {
	if f.Length == nil {
		return nil
	}
	return []string{strconv.Itoa(*f.Length)}
}

func precisionArgs(f schema.Field) []string {
	if f.Precision == nil {
		return nil
	}
	out := []string{strconv.Itoa(*f.Precision)}
	if f.Scale != nil {
		out = append(out, strconv.Itoa(*f.Scale))
	}
	return out
}

func valuesArg(f schema.Field) []string {
	return []string{quoteList(configValues(f))}
}

func sridArg(f schema.Field) []string {
	if gc, ok := f.Config.(schema.GeoConfig); ok && gc.SRID != nil {
		return []string{strconv.Itoa(*gc.SRID)}
	}
	return nil
}

func configValues(f schema.Field) []string {
	switch c := f.Config.(type) {
	case schema.EnumConfig:
		return c.Values
	case schema.SetConfig:
		return c.Values
	}
	return nil
}

// FieldMessage formats a validation message about field f.
func FieldMessage(f schema.Field, format string, args ...any) string {
	return fmt.Sprintf("field %q: %s", f.Name, fmt.Sprintf(format, args...))
}

func validateString(f schema.Field) []string {
	if s, ok := f.Default.(string); ok && f.Length != nil && *f.Length >= 0 && len([]rune(s)) > *f.Length {
		return []string{FieldMessage(f, "default is longer than length %d", *f.Length)}
	}
	return nil
}

func validateEmail(f schema.Field) []string {
	msgs := validateString(f)
	if f.Default == nil {
		return msgs
	}
	s, ok := f.Default.(string)
	if !ok {
		return append(msgs, FieldMessage(f, "default must be a string"))
	}
	if _, err := mail.ParseAddress(s); err != nil {
		msgs = append(msgs, FieldMessage(f, "default %q is not an email address", s))
	}
	return msgs
}

func validateInteger(f schema.Field) []string {
	if f.Default == nil {
		return nil
	}
	if _, ok := toInt64(f.Default); !ok {
		return []string{FieldMessage(f, "default %v is not an integer", f.Default)}
	}
	return nil
}

func validateUnsigned(f schema.Field) []string {
	if f.Default == nil {
		return nil
	}
	n, ok := toInt64(f.Default)
	if !ok || n < 0 {
		return []string{FieldMessage(f, "default %v is not an unsigned integer", f.Default)}
	}
	return nil
}

func validateNumber(f schema.Field) []string {
	if f.Default == nil {
		return nil
	}
	if _, ok := toFloat(f.Default); !ok {
		return []string{FieldMessage(f, "default %v is not a number", f.Default)}
	}
	return nil
}

func validateBoolean(f schema.Field) []string {
	if f.Default == nil {
		return nil
	}
	if _, ok := toBool(f.Default); !ok {
		return []string{FieldMessage(f, "default %v is not a boolean", f.Default)}
	}
	return nil
}

func validateUUID(f schema.Field) []string {
	if f.Default == nil {
		return nil
	}
	s, ok := f.Default.(string)
	if !ok {
		return []string{FieldMessage(f, "default must be a string")}
	}
	if _, err := uuid.Parse(s); err != nil {
		return []string{FieldMessage(f, "default %q is not a valid UUID", s)}
	}
	return nil
}

func validateEnum(f schema.Field) []string {
	values := configValues(f)
	var msgs []string
	if len(values) == 0 {
		return []string{FieldMessage(f, "enum requires at least one value")}
	}
	msgs = append(msgs, duplicateValues(f, values)...)
	if f.Default != nil {
		d := scalarText(f.Default)
		if !contains(values, d) {
			msgs = append(msgs, FieldMessage(f, "default %q is not one of the allowed values [%s]", d, strings.Join(values, ", ")))
		}
	}
	return msgs
}

func validateSet(f schema.Field) []string {
	values := configValues(f)
	if len(values) == 0 {
		return []string{FieldMessage(f, "set requires at least one value")}
	}
	var msgs []string
	if len(values) > MaxSetValues {
		msgs = append(msgs, FieldMessage(f, "set has %d values, at most %d allowed", len(values), MaxSetValues))
	}
	msgs = append(msgs, duplicateValues(f, values)...)
	for _, member := range setMembers(f.Default) {
		if !contains(values, member) {
			msgs = append(msgs, FieldMessage(f, "default member %q is not one of the allowed values [%s]", member, strings.Join(values, ", ")))
		}
	}
	return msgs
}

var referentialActions = map[string]bool{
	"cascade": true, "restrict": true, "set null": true, "set default": true, "no action": true,
}

func validateForeign(f schema.Field) []string {
	fc, ok := f.Config.(schema.ForeignConfig)
	if !ok {
		return nil
	}
	var msgs []string
	for _, a := range []struct{ key, value string }{{"on_delete", fc.OnDelete}, {"on_update", fc.OnUpdate}} {
		if a.value == "" {
			continue
		}
		norm := strings.ToLower(strings.ReplaceAll(a.value, "_", " "))
		if !referentialActions[norm] {
			msgs = append(msgs, FieldMessage(f, "%s %q is not a referential action", a.key, a.value))
		}
	}
	return msgs
}

func validateGeo(f schema.Field) []string {
	gc, ok := f.Config.(schema.GeoConfig)
	if !ok {
		return nil
	}
	if gc.SRID != nil && *gc.SRID < 0 {
		return []string{FieldMessage(f, "srid must not be negative")}
	}
	if v, bad := gc.Extra["srid"]; bad {
		return []string{FieldMessage(f, "srid %v is not an integer", v)}
	}
	return nil
}

func duplicateValues(f schema.Field, values []string) []string {
	seen := make(map[string]bool, len(values))
	var msgs []string
	for _, v := range values {
		if seen[v] {
			msgs = append(msgs, FieldMessage(f, "value %q is listed more than once", v))
		}
		seen[v] = true
	}
	return msgs
}

// setMembers splits a set default given as a list or a comma separated string.
func setMembers(v any) []string {
	switch vv := v.(type) {
	case nil:
		return nil
	case string:
		var out []string
		for _, p := range strings.Split(vv, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			out = append(out, scalarText(item))
		}
		return out
	}
	return []string{scalarText(v)}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func scalarText(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		return int64(n), n == math.Trunc(n)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case int:
		return b != 0, b == 0 || b == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}

func literal(v any) string {
	switch vv := v.(type) {
	case string:
		return strconv.Quote(vv)
	case []any:
		parts := make([]string, len(vv))
		for i, item := range vv {
			parts[i] = literal(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return scalarText(v)
}

func quoteList(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

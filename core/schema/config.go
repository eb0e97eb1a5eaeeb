package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConfigKind identifies the variant of a FieldConfig.
type ConfigKind string

const (
	ConfigGeneric ConfigKind = "generic"
	ConfigEnum    ConfigKind = "enum"
	ConfigSet     ConfigKind = "set"
	ConfigGeo     ConfigKind = "geo"
	ConfigForeign ConfigKind = "foreign"
	ConfigMorph   ConfigKind = "morph"
)

// FieldConfig holds the type-specific settings of a field. The set of
// variants is closed; GenericConfig carries anything the others do not model.
type FieldConfig interface {
	Kind() ConfigKind
	// Attributes re-encodes the config as the attribute map it was read from.
	Attributes() map[string]any
	Clone() FieldConfig
	fieldConfig()
}

// EnumConfig lists the allowed values of an enum field.
type EnumConfig struct {
	Values []string
	Extra  map[string]any
}

// SetConfig lists the allowed members of a set field.
type SetConfig struct {
	Values []string
	Extra  map[string]any
}

// GeoConfig configures point and geometry fields.
type GeoConfig struct {
	SRID  *int
	Extra map[string]any
}

// ForeignConfig describes the constraint of a foreignId field.
type ForeignConfig struct {
	References string // table or model name
	Column     string
	OnDelete   string
	OnUpdate   string
	Extra      map[string]any
}

// MorphConfig configures morphs and nullableMorphs fields.
// Nullable follows the type and is not written back as an attribute.
type MorphConfig struct {
	Nullable bool
	Extra    map[string]any
}

// GenericConfig is the fallback for plugin types and unknown keys.
type GenericConfig struct {
	Values map[string]any
}

func (EnumConfig) Kind() ConfigKind    { return ConfigEnum }
func (SetConfig) Kind() ConfigKind     { return ConfigSet }
func (GeoConfig) Kind() ConfigKind     { return ConfigGeo }
func (ForeignConfig) Kind() ConfigKind { return ConfigForeign }
func (MorphConfig) Kind() ConfigKind   { return ConfigMorph }
func (GenericConfig) Kind() ConfigKind { return ConfigGeneric }

func (EnumConfig) fieldConfig()    {}
func (SetConfig) fieldConfig()     {}
func (GeoConfig) fieldConfig()     {}
func (ForeignConfig) fieldConfig() {}
func (MorphConfig) fieldConfig()   {}
func (GenericConfig) fieldConfig() {}

func (c EnumConfig) Attributes() map[string]any {
	out := cloneMap(c.Extra)
	if len(c.Values) > 0 {
		out = put(out, "values", stringsToAny(c.Values))
	}
	return out
}

func (c SetConfig) Attributes() map[string]any {
	out := cloneMap(c.Extra)
	if len(c.Values) > 0 {
		out = put(out, "values", stringsToAny(c.Values))
	}
	return out
}

func (c GeoConfig) Attributes() map[string]any {
	out := cloneMap(c.Extra)
	if c.SRID != nil {
		out = put(out, "srid", *c.SRID)
	}
	return out
}

func (c ForeignConfig) Attributes() map[string]any {
	out := cloneMap(c.Extra)
	for _, kv := range [][2]string{
		{"references", c.References},
		{"column", c.Column},
		{"on_delete", c.OnDelete},
		{"on_update", c.OnUpdate},
	} {
		if kv[1] != "" {
			out = put(out, kv[0], kv[1])
		}
	}
	return out
}

func (c MorphConfig) Attributes() map[string]any { return cloneMap(c.Extra) }

func (c GenericConfig) Attributes() map[string]any { return cloneMap(c.Values) }

func (c EnumConfig) Clone() FieldConfig {
	return EnumConfig{Values: cloneStrings(c.Values), Extra: cloneMap(c.Extra)}
}

func (c SetConfig) Clone() FieldConfig {
	return SetConfig{Values: cloneStrings(c.Values), Extra: cloneMap(c.Extra)}
}

func (c GeoConfig) Clone() FieldConfig {
	return GeoConfig{SRID: cloneInt(c.SRID), Extra: cloneMap(c.Extra)}
}

func (c ForeignConfig) Clone() FieldConfig {
	c.Extra = cloneMap(c.Extra)
	return c
}

func (c MorphConfig) Clone() FieldConfig {
	c.Extra = cloneMap(c.Extra)
	return c
}

func (c GenericConfig) Clone() FieldConfig {
	return GenericConfig{Values: cloneMap(c.Values)}
}

// DecodeConfig builds the config variant for a canonical type name from its
// attribute map. Keys the variant does not model are kept in Extra, so
// Attributes returns the original map. A nil config is returned for types
// without a dedicated variant and no attributes.
func DecodeConfig(typeName string, attrs map[string]any) FieldConfig {
	rest := cloneMap(attrs)
	switch typeName {
	case "enum":
		return EnumConfig{Values: takeStrings(rest, "values"), Extra: nilIfEmpty(rest)}
	case "set":
		return SetConfig{Values: takeStrings(rest, "values"), Extra: nilIfEmpty(rest)}
	case "point", "geometry":
		c := GeoConfig{}
		if v, ok := rest["srid"]; ok {
			if n, ok := toInt(v); ok {
				c.SRID = &n
				delete(rest, "srid")
			}
		}
		c.Extra = nilIfEmpty(rest)
		return c
	case "foreignId":
		c := ForeignConfig{
			References: takeString(rest, "references"),
			Column:     takeString(rest, "column"),
			OnDelete:   takeString(rest, "on_delete", "onDelete"),
			OnUpdate:   takeString(rest, "on_update", "onUpdate"),
		}
		c.Extra = nilIfEmpty(rest)
		return c
	case "morphs", "nullableMorphs":
		return MorphConfig{Nullable: typeName == "nullableMorphs", Extra: nilIfEmpty(rest)}
	}
	if len(rest) == 0 {
		return nil
	}
	return GenericConfig{Values: rest}
}

// takeString removes the first present key and returns its text form.
// Non-string values are left in place.
func takeString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		delete(m, k)
		return s
	}
	return ""
}

// takeStrings removes a list of scalars, or a comma separated string, and
// returns it as strings. Anything else is left in place.
func takeStrings(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case string:
		delete(m, key)
		var out []string
		for _, part := range strings.Split(vv, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			switch item.(type) {
			case map[string]any, []any:
				return nil
			}
			out = append(out, scalarText(item))
		}
		delete(m, key)
		if len(out) == 0 {
			return nil
		}
		return out
	case []string:
		delete(m, key)
		return cloneStrings(vv)
	}
	return nil
}

// scalarText renders a decoded scalar the way a user would write it.
func scalarText(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	default:
		return fmt.Sprint(vv)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func stringsToAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func put(m map[string]any, k string, v any) map[string]any {
	if m == nil {
		m = make(map[string]any)
	}
	m[k] = v
	return m
}

func nilIfEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}

func cloneMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the maps and slices produced by YAML decoding.
func cloneValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return cloneStrings(vv)
	}
	return v
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

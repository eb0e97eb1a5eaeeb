package formatter

import (
	"sort"

	"github.com/artpar/modelkit/core/cache"
	"github.com/artpar/modelkit/core/consistency"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/plugin"
	"github.com/artpar/modelkit/core/schema"
)

// Listings of the record sets built below.
var (
	IssueListing = Listing{
		Kind:    "issues",
		Columns: []string{"severity", "code", "model", "field", "relationship", "message"},
	}
	SchemaListing = Listing{
		Kind:    "schema",
		Columns: []string{"model", "table", "fields", "relationships", "timestamps", "soft_deletes"},
	}
	TypeListing = Listing{
		Kind:    "types",
		Columns: []string{"type", "aliases", "constraints", "cast"},
	}
	PluginListing = Listing{
		Kind:    "plugins",
		Columns: []string{"name", "version", "enabled", "aliases", "dependencies", "source"},
		Hidden:  []string{"load_id"},
	}
	FieldListing = Listing{
		Kind:    "fields",
		Columns: []string{"name", "type", "nullable", "unique", "indexed", "default", "implicit"},
	}
	RelationshipListing = Listing{
		Kind:    "relationships",
		Columns: []string{"name", "type", "model", "foreign_key", "pivot_table"},
	}
	OptionListing = Listing{
		Kind:    "options",
		Columns: []string{"timestamps", "soft_deletes", "namespace"},
	}
	CacheListing = Listing{
		Kind:    "cache",
		Columns: []string{"axis", "hits", "misses", "errors", "hit_rate", "bytes_saved", "ms_saved"},
	}
)

// IssueRecords flattens a report, errors first.
func IssueRecords(r consistency.Report) []map[string]any {
	var out []map[string]any
	for _, group := range [][]consistency.Issue{r.Errors, r.Warnings} {
		for _, i := range group {
			out = append(out, map[string]any{
				"severity":     string(i.Severity),
				"code":         string(i.Code),
				"model":        i.Model,
				"field":        i.Field,
				"relationship": i.Relationship,
				"message":      i.Message,
			})
		}
	}
	return out
}

// TypeRecords lists every registered field type.
func TypeRecords(reg *fieldtype.Registry) []map[string]any {
	var out []map[string]any
	for _, name := range reg.All() {
		h, err := reg.Get(name)
		if err != nil {
			continue
		}
		var constraints []string
		for _, c := range []fieldtype.Constraint{fieldtype.ConstraintLength, fieldtype.ConstraintPrecision, fieldtype.ConstraintScale} {
			if fieldtype.Accepts(h, c) {
				constraints = append(constraints, string(c))
			}
		}
		cast, _ := h.CastType(schema.Field{Name: name, Type: name})
		out = append(out, map[string]any{
			"type":        name,
			"aliases":     reg.AliasesOf(name),
			"constraints": constraints,
			"cast":        cast,
		})
	}
	return out
}

// PluginRecords lists plugin metadata sorted by name.
func PluginRecords(infos []plugin.Info) []map[string]any {
	sorted := append([]plugin.Info(nil), infos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	out := make([]map[string]any, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, map[string]any{
			"name":         p.Name,
			"version":      p.Version,
			"description":  p.Description,
			"enabled":      p.Enabled,
			"aliases":      p.Aliases,
			"dependencies": p.Dependencies,
			"source":       p.Source,
			"load_id":      p.LoadID,
		})
	}
	return out
}

// SchemaRecord summarizes one schema.
func SchemaRecord(s *schema.Schema) map[string]any {
	var rels []string
	for _, r := range s.Relationships() {
		rels = append(rels, r.Name)
	}
	var fields []string
	for _, f := range s.EffectiveFields() {
		fields = append(fields, f.Name)
	}
	opts := s.Options()
	return map[string]any{
		"model":         s.Name(),
		"table":         s.Table(),
		"fields":        fields,
		"relationships": rels,
		"timestamps":    opts.Timestamps,
		"soft_deletes":  opts.SoftDeletes,
	}
}

// FieldRecords lists fields. Pass Schema.EffectiveFields to include the
// implicit foreign keys.
func FieldRecords(fields []schema.Field) []map[string]any {
	var out []map[string]any
	for _, f := range fields {
		out = append(out, map[string]any{
			"name":     f.Name,
			"type":     f.Type,
			"nullable": f.Nullable,
			"unique":   f.Unique,
			"indexed":  f.Indexed,
			"default":  f.Default,
			"implicit": f.Implicit,
		})
	}
	return out
}

// RelationshipRecords lists the relationships declared by owner with their
// conventional keys resolved.
func RelationshipRecords(owner string, rels []schema.Relationship) []map[string]any {
	var out []map[string]any
	for _, r := range rels {
		rec := map[string]any{
			"name":        r.Name,
			"type":        string(r.Type),
			"model":       r.Model,
			"foreign_key": r.ResolvedForeignKey(owner),
			"pivot_table": "",
		}
		if r.Type == schema.BelongsToMany || r.Type == schema.MorphToMany || r.Type == schema.MorphedByMany {
			rec["pivot_table"] = r.ResolvedPivotTable(owner)
		}
		out = append(out, rec)
	}
	return out
}

// OptionRecord flattens schema options. Extra keys sit next to the known
// ones.
func OptionRecord(o schema.Options) map[string]any {
	rec := map[string]any{
		"timestamps":   o.Timestamps,
		"soft_deletes": o.SoftDeletes,
		"namespace":    o.Namespace,
	}
	for k, v := range o.Extra {
		if _, known := rec[k]; !known {
			rec[k] = v
		}
	}
	return rec
}

// CacheRecords lists cache counters per axis.
func CacheRecords(snap cache.Snapshot) []map[string]any {
	row := func(axis string, s cache.AxisStats) map[string]any {
		return map[string]any{
			"axis":        axis,
			"hits":        s.Hits,
			"misses":      s.Misses,
			"errors":      s.Errors,
			"hit_rate":    s.HitRate(),
			"bytes_saved": s.BytesSaved,
			"ms_saved":    s.MsSaved,
		}
	}
	return []map[string]any{
		row(string(cache.AxisSchemas), snap.Schemas),
		row(string(cache.AxisReports), snap.Reports),
	}
}

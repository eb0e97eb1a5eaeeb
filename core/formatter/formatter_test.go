package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artpar/modelkit/core/cache"
	"github.com/artpar/modelkit/core/consistency"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/plugin"
	"github.com/artpar/modelkit/core/schema"
	"gopkg.in/yaml.v3"
)

func testListing() Listing {
	return Listing{
		Kind:    "users",
		Columns: []string{"id", "name", "email"},
		Hidden:  []string{"password_hash"},
	}
}

func testRecords() []map[string]any {
	return []map[string]any{
		{"id": "u-1", "name": "Alice", "email": "alice@example.com", "password_hash": "x"},
		{"id": "u-2", "name": "Bob", "email": "bob@example.com", "password_hash": "y"},
	}
}

// ===========================================
// Registry Tests
// ===========================================

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewTableFormatter()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(NewTableFormatter()); err == nil {
		t.Error("expected error registering a formatter twice")
	}
	if _, ok := r.Get("table"); !ok {
		t.Error("table formatter not found")
	}
	if _, ok := r.Get("csv"); ok {
		t.Error("csv formatter should not exist")
	}
}

func TestRegistry_Default(t *testing.T) {
	r := NewRegistry()
	if r.Default() != nil {
		t.Error("empty registry should have no default")
	}

	r.Register(NewYAMLFormatter())
	r.Register(NewJSONFormatter())
	if got := r.Default().Name(); got != "json" {
		t.Errorf("fallback default = %s, want json (first by name)", got)
	}

	r.Register(NewTableFormatter())
	if got := r.Default().Name(); got != "table" {
		t.Errorf("default = %s, want table", got)
	}

	if err := r.SetDefault("yaml"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if got := r.Default().Name(); got != "yaml" {
		t.Errorf("default = %s, want yaml", got)
	}
	if err := r.SetDefault("xml"); err == nil {
		t.Error("SetDefault should reject unknown formatter")
	}
}

func TestRegistry_Lookup(t *testing.T) {
	f, err := Lookup("")
	if err != nil || f.Name() != "table" {
		t.Fatalf("Lookup(\"\") = %v, %v; want table", f, err)
	}
	if _, err := Lookup("xml"); err == nil || !strings.Contains(err.Error(), "json") {
		t.Errorf("Lookup(xml) error = %v, want list of available formats", err)
	}
}

func TestGlobalRegistry(t *testing.T) {
	names := List()
	want := []string{"json", "table", "yaml"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("List() = %v, want %v", names, want)
	}
	if _, ok := Get("json"); !ok {
		t.Error("json formatter not registered globally")
	}
	if Default() == nil {
		t.Error("no global default")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	r.Register(NewTableFormatter())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Get("table")
			r.List()
			r.Default()
		}()
	}
	wg.Wait()
}

// ===========================================
// Table Formatter Tests
// ===========================================

func TestTableFormatter_FormatList(t *testing.T) {
	f := NewTableFormatter()
	var buf bytes.Buffer

	if err := f.FormatList(&buf, testListing(), testRecords(), FormatOptions{}); err != nil {
		t.Fatalf("FormatList failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"ID", "NAME", "EMAIL", "Alice", "bob@example.com"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %q", want, output)
		}
	}
	if strings.Contains(output, "PASSWORD") {
		t.Errorf("columns outside the listing should not be shown: %q", output)
	}
}

func TestTableFormatter_FormatList_Empty(t *testing.T) {
	f := NewTableFormatter()
	var buf bytes.Buffer

	f.FormatList(&buf, IssueListing, nil, FormatOptions{})
	if got := buf.String(); got != "No issues found.\n" {
		t.Errorf("got %q", got)
	}
}

func TestTableFormatter_FormatList_ColumnsAndNoHeader(t *testing.T) {
	f := NewTableFormatter()
	var buf bytes.Buffer

	opts := FormatOptions{Columns: []string{"name"}, NoHeader: true}
	if err := f.FormatList(&buf, testListing(), testRecords(), opts); err != nil {
		t.Fatalf("FormatList failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines without header, got %d: %q", len(lines), buf.String())
	}
	if strings.TrimSpace(lines[0]) != "Alice" {
		t.Errorf("first line = %q, want Alice", lines[0])
	}
}

func TestTableFormatter_FormatRecord(t *testing.T) {
	f := NewTableFormatter()
	var buf bytes.Buffer

	f.FormatRecord(&buf, testListing(), nil, FormatOptions{})
	if !strings.Contains(buf.String(), "not found") {
		t.Errorf("nil record output = %q", buf.String())
	}

	buf.Reset()
	rel := map[string]any{"name": "author", "foreign_key": "author_id"}
	f.FormatRecord(&buf, RelationshipListing, rel, FormatOptions{})
	if !strings.Contains(buf.String(), "Foreign Key:") || !strings.Contains(buf.String(), "author_id") {
		t.Errorf("record output = %q", buf.String())
	}
}

func TestTableFormatter_FormatError(t *testing.T) {
	var buf bytes.Buffer
	NewTableFormatter().FormatError(&buf, errors.New("boom"))
	if buf.String() != "Error: boom\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestTableFormatter_FormatValue(t *testing.T) {
	f := NewTableFormatter()

	tests := []struct {
		name     string
		val      any
		maxWidth int
		expected string
	}{
		{"nil", nil, 0, "-"},
		{"string", "hello", 0, "hello"},
		{"empty string", "", 0, "-"},
		{"bool true", true, 0, "yes"},
		{"bool false", false, 0, "no"},
		{"strings", []string{"int", "integer"}, 0, "int, integer"},
		{"no strings", []string(nil), 0, "-"},
		{"bytes", []byte{1, 2, 3}, 0, "[binary]"},
		{"float whole", float64(42), 0, "42"},
		{"float decimal", float64(3.14159), 0, "3.14"},
		{"duration", 1500 * time.Millisecond, 0, "1.5s"},
		{"int slice", []int{1, 2, 3}, 0, "[1,2,3]"},
		{"truncate", "this is a very long string", 10, "this is..."},
		{"tiny width", "abcdef", 2, "abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.formatValue(tt.val, tt.maxWidth)
			if got != tt.expected {
				t.Errorf("formatValue(%v, %d) = %q, want %q", tt.val, tt.maxWidth, got, tt.expected)
			}
		})
	}
}

func TestTableFormatter_FormatLabel(t *testing.T) {
	f := NewTableFormatter()
	if got := f.formatLabel("pivot_table"); got != "Pivot Table" {
		t.Errorf("formatLabel = %q, want Pivot Table", got)
	}
}

// ===========================================
// JSON / YAML Formatter Tests
// ===========================================

func TestJSONFormatter_FormatList(t *testing.T) {
	f := NewJSONFormatter()
	var buf bytes.Buffer

	if err := f.FormatList(&buf, testListing(), testRecords(), FormatOptions{}); err != nil {
		t.Fatalf("FormatList failed: %v", err)
	}

	var out struct {
		Kind  string           `json:"kind"`
		Count int              `json:"count"`
		Data  []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if out.Kind != "users" || out.Count != 2 {
		t.Errorf("kind/count = %s/%d", out.Kind, out.Count)
	}
	if _, ok := out.Data[0]["password_hash"]; ok {
		t.Error("hidden column should be dropped")
	}
	if out.Data[0]["name"] != "Alice" {
		t.Errorf("data[0].name = %v", out.Data[0]["name"])
	}
}

func TestJSONFormatter_ColumnsAndCompact(t *testing.T) {
	f := NewJSONFormatter()
	var buf bytes.Buffer

	opts := FormatOptions{Columns: []string{"password_hash", "missing"}, Compact: true}
	f.FormatList(&buf, testListing(), testRecords(), opts)

	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("compact output should be a single line: %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"password_hash":"x"`) {
		t.Errorf("requested hidden column should be kept: %q", buf.String())
	}
	if strings.Contains(buf.String(), "missing") {
		t.Errorf("absent column should not appear: %q", buf.String())
	}
}

func TestJSONFormatter_FormatRecordAndError(t *testing.T) {
	f := NewJSONFormatter()
	var buf bytes.Buffer

	f.FormatRecord(&buf, testListing(), nil, FormatOptions{})
	if !strings.Contains(buf.String(), `"data": null`) {
		t.Errorf("nil record = %q", buf.String())
	}

	buf.Reset()
	f.FormatError(&buf, errors.New("bad input"))
	var out map[string]string
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil || out["error"] != "bad input" {
		t.Errorf("error output = %q (%v)", buf.String(), err)
	}
}

func TestYAMLFormatter_FormatList(t *testing.T) {
	f := NewYAMLFormatter()
	var buf bytes.Buffer

	if err := f.FormatList(&buf, testListing(), testRecords(), FormatOptions{Columns: []string{"id"}}); err != nil {
		t.Fatalf("FormatList failed: %v", err)
	}

	var out struct {
		Kind  string           `yaml:"kind"`
		Count int              `yaml:"count"`
		Data  []map[string]any `yaml:"data"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if out.Count != 2 || len(out.Data[1]) != 1 || out.Data[1]["id"] != "u-2" {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestYAMLFormatter_FormatRecordAndError(t *testing.T) {
	f := NewYAMLFormatter()
	var buf bytes.Buffer

	f.FormatRecord(&buf, testListing(), testRecords()[0], FormatOptions{})
	if strings.Contains(buf.String(), "password_hash") || !strings.Contains(buf.String(), "Alice") {
		t.Errorf("record output = %q", buf.String())
	}

	buf.Reset()
	f.FormatError(&buf, errors.New("nope"))
	if !strings.Contains(buf.String(), "error: nope") {
		t.Errorf("error output = %q", buf.String())
	}
}

func TestFormatters_ImplementInterface(t *testing.T) {
	var _ Formatter = NewTableFormatter()
	var _ Formatter = NewJSONFormatter()
	var _ Formatter = NewYAMLFormatter()
}

// ===========================================
// Record Builders
// ===========================================

func TestIssueRecords(t *testing.T) {
	var r consistency.Report
	r.Add(consistency.Issue{Code: consistency.CodeMissingInverse, Severity: consistency.SeverityWarning, Model: "Post", Message: "w"})
	r.Add(consistency.Issue{Code: consistency.CodeMissingTarget, Severity: consistency.SeverityError, Model: "Post", Relationship: "author", Message: "e"})

	records := IssueRecords(r)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["severity"] != "error" || records[1]["severity"] != "warning" {
		t.Errorf("errors should come first: %v", records)
	}
	if records[0]["relationship"] != "author" {
		t.Errorf("relationship = %v", records[0]["relationship"])
	}
	if IssueRecords(consistency.Report{}) != nil {
		t.Error("clean report should produce no records")
	}
}

func TestTypeRecords(t *testing.T) {
	reg := fieldtype.NewDefaultRegistry()
	records := TypeRecords(reg)
	if len(records) != len(reg.All()) {
		t.Fatalf("got %d records for %d types", len(records), len(reg.All()))
	}

	byType := map[string]map[string]any{}
	for _, rec := range records {
		byType[rec["type"].(string)] = rec
	}
	integer := byType["integer"]
	if integer == nil {
		t.Fatal("integer type missing")
	}
	if aliases := integer["aliases"].([]string); len(aliases) == 0 || aliases[0] != "int" {
		t.Errorf("integer aliases = %v", aliases)
	}
	if integer["cast"] != "integer" {
		t.Errorf("integer cast = %v", integer["cast"])
	}
	if c := byType["string"]["constraints"].([]string); len(c) != 1 || c[0] != "length" {
		t.Errorf("string constraints = %v", c)
	}
	if c := byType["decimal"]["constraints"].([]string); len(c) != 2 {
		t.Errorf("decimal constraints = %v", c)
	}
}

func TestPluginRecords(t *testing.T) {
	records := PluginRecords([]plugin.Info{
		{Name: "money", Version: "1.0.0", Enabled: true, LoadID: "01H"},
		{Name: "color", Aliases: []string{"colour"}},
	})
	if records[0]["name"] != "color" || records[1]["name"] != "money" {
		t.Errorf("records should be sorted by name: %v", records)
	}

	var buf bytes.Buffer
	NewJSONFormatter().FormatList(&buf, PluginListing, records, FormatOptions{})
	if strings.Contains(buf.String(), "load_id") {
		t.Errorf("load_id should be hidden by default: %s", buf.String())
	}
}

func TestFieldAndRelationshipRecords(t *testing.T) {
	s, err := schema.Parse([]byte(`
model: Post
fields:
  title: string
relationships:
  author: { type: belongsTo, model: User }
  tags: { type: belongsToMany, model: Tag }
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	fields := FieldRecords(s.EffectiveFields())
	names := []string{}
	for _, f := range fields {
		names = append(names, f["name"].(string))
	}
	if strings.Join(names, ",") != "title,author_id" {
		t.Errorf("effective fields = %v, want title and the implicit author_id", names)
	}

	rels := RelationshipRecords(s.Name(), s.Relationships())
	if len(rels) != 2 {
		t.Fatalf("got %d relationships", len(rels))
	}
	if rels[0]["foreign_key"] != "author_id" {
		t.Errorf("author foreign key = %v", rels[0]["foreign_key"])
	}
	if rels[1]["pivot_table"] != "post_tag" {
		t.Errorf("tags pivot = %v, want post_tag", rels[1]["pivot_table"])
	}
}

func TestOptionRecord(t *testing.T) {
	rec := OptionRecord(schema.Options{
		Timestamps: true,
		Extra:      map[string]any{"connection": "replica", "timestamps": "ignored"},
	})
	if rec["timestamps"] != true || rec["soft_deletes"] != false {
		t.Errorf("known options = %v", rec)
	}
	if rec["connection"] != "replica" {
		t.Errorf("extra option missing: %v", rec)
	}
}

func TestCacheRecords(t *testing.T) {
	records := CacheRecords(cache.Snapshot{Schemas: cache.AxisStats{Hits: 3, Misses: 1}})
	if len(records) != 2 {
		t.Fatalf("got %d rows, want 2", len(records))
	}
	if records[0]["axis"] != "schemas" || records[0]["hit_rate"] != 0.75 {
		t.Errorf("schemas row = %v", records[0])
	}
}

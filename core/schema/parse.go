package schema

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/modelkit/core/convention"
)

// TypeResolver maps a type name or alias to its canonical name.
// *fieldtype.Registry satisfies it.
type TypeResolver interface {
	Canonical(name string) (string, bool)
}

// DefaultFieldType is used when a field declares no type.
const DefaultFieldType = "string"

// Parser builds schemas from documents. A nil resolver keeps type names as
// written.
type Parser struct {
	types TypeResolver
}

// NewParser returns a parser resolving type names through types.
func NewParser(types TypeResolver) *Parser {
	return &Parser{types: types}
}

// Parse parses YAML or JSON bytes without type resolution.
func Parse(data []byte) (*Schema, error) {
	return NewParser(nil).Parse(data)
}

// Parse parses a YAML or JSON document. The model name must be declared.
func (p *Parser) Parse(data []byte) (*Schema, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return p.ParseDocument(doc, "")
}

// ParseFormat parses data in the given format, using fallbackName when the
// document names no model.
func (p *Parser) ParseFormat(data []byte, format Format, filename, fallbackName string) (*Schema, error) {
	doc, err := DecodeFormat(data, format, filename)
	if err != nil {
		return nil, withSource(err, filename)
	}
	s, err := p.ParseDocument(doc, fallbackName)
	return s, withSource(err, filename)
}

// ParseFile parses a schema file. The format follows the extension and the
// model name defaults to the StudlyCase file name.
func (p *Parser) ParseFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	format, ok := FormatFor(path)
	if !ok {
		format = FormatYAML
	}
	return p.ParseFormat(data, format, path, NameFromPath(path))
}

// ParseDir parses every schema file under dir, including subdirectories.
// Plugin manifests (*.plugins.yaml) are skipped.
func (p *Parser) ParseDir(dir string) (Set, error) {
	paths, err := SchemaFiles(dir)
	if err != nil {
		return nil, err
	}
	set := make(Set, 0, len(paths))
	for _, path := range paths {
		s, err := p.ParseFile(path)
		if err != nil {
			return nil, err
		}
		set = append(set, s)
	}
	return set, nil
}

// SchemaFiles lists schema documents under dir in lexical order.
func SchemaFiles(dir string) ([]string, error) {
	var out []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			sub, err := SchemaFiles(path)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		if strings.Contains(entry.Name(), ".plugins.") {
			continue
		}
		if _, ok := FormatFor(entry.Name()); ok {
			out = append(out, path)
		}
	}
	return out, nil
}

// NameFromPath derives a model name from a file name: "blog_post.yaml" is
// "BlogPost".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return convention.Studly(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ParseDocument builds a schema from a decoded document.
func (p *Parser) ParseDocument(doc *Document, fallbackName string) (*Schema, error) {
	def, problems := p.build(doc, fallbackName)
	if len(problems) > 0 {
		return nil, malformed("", problems...)
	}
	s, err := New(def)
	if err != nil {
		return nil, malformed("", err.Error())
	}
	return s, nil
}

// CheckStructure reports the structural problems of a document without
// resolving types or building a schema. It walks the document with the same
// builders ParseDocument uses: an empty result means ParseDocument will not
// fail with ErrMalformedInput.
func CheckStructure(doc *Document, fallbackName string) []string {
	_, problems := NewParser(nil).build(doc, fallbackName)
	return problems
}

// Fields materializes only the fields section.
func (p *Parser) Fields(doc *Document) ([]Field, error) {
	var pr problems
	n, _ := doc.Section("fields")
	fields := p.fields(n, &pr)
	return fields, pr.err()
}

// Relationships materializes only the relationships section.
func (p *Parser) Relationships(doc *Document) ([]Relationship, error) {
	var pr problems
	rels := p.relationships(relationshipSection(doc), &pr)
	return rels, pr.err()
}

// Options materializes only the options section.
func (p *Parser) Options(doc *Document) (Options, error) {
	var pr problems
	n, _ := doc.Section("options")
	opts := p.options(n, &pr)
	return opts, pr.err()
}

func (p *Parser) build(doc *Document, fallbackName string) (Definition, []string) {
	var pr problems
	def := Definition{
		Name:  p.modelName(doc, fallbackName, &pr),
		Table: optionalString(sectionOrNil(doc, "table"), "table", &pr),
	}

	fields, _ := doc.Section("fields")
	def.Fields = p.fields(fields, &pr)
	def.Relationships = p.relationships(relationshipSection(doc), &pr)

	opts, _ := doc.Section("options")
	def.Options = p.options(opts, &pr)

	meta, _ := doc.Section("metadata")
	def.Metadata = mapValue(meta, "metadata", &pr)

	return def, pr.list
}

func (p *Parser) canonical(name string) string {
	if p.types == nil {
		return name
	}
	if c, ok := p.types.Canonical(name); ok {
		return c
	}
	return name
}

func (p *Parser) modelName(doc *Document, fallback string, pr *problems) string {
	for _, key := range []string{"model", "name"} {
		n, ok := doc.Section(key)
		if !ok {
			continue
		}
		name := strings.TrimSpace(optionalString(n, key, pr))
		if name == "" {
			pr.addf("%s must not be empty", key)
		}
		return name
	}
	if fallback == "" {
		pr.addf("model name is required (model or name key)")
	}
	return fallback
}

func relationshipSection(doc *Document) *yaml.Node {
	if n, ok := doc.Section("relationships"); ok {
		return n
	}
	n, _ := doc.Section("relations")
	return n
}

func sectionOrNil(doc *Document, key string) *yaml.Node {
	n, _ := doc.Section(key)
	return n
}

func (p *Parser) fields(n *yaml.Node, pr *problems) []Field {
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		pr.addf("fields must be a mapping, got %s", kindName(n))
		return nil
	}
	var out []Field
	seen := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		if name == "" {
			pr.addf("fields: entry #%d has an empty name", i/2+1)
			continue
		}
		if seen[name] {
			pr.addf("field %q is declared more than once", name)
			continue
		}
		seen[name] = true
		out = append(out, p.field(name, resolveAlias(n.Content[i+1]), pr))
	}
	return out
}

func (p *Parser) field(name string, n *yaml.Node, pr *problems) Field {
	f := Field{Name: name}
	ctx := "field " + strconv.Quote(name)
	typ := ""
	var attrs, explicit map[string]any

	switch {
	case isNull(n):
	case n.Kind == yaml.ScalarNode:
		typ = strings.TrimSpace(n.Value)
	case n.Kind == yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v := resolveAlias(n.Content[i+1])
			where := ctx + " " + key
			switch normalizeKey(key) {
			case "type":
				typ = strings.TrimSpace(optionalString(v, where, pr))
			case "nullable":
				f.Nullable = boolValue(v, where, pr)
			case "unique":
				f.Unique = boolValue(v, where, pr)
			case "index", "indexed":
				f.Indexed = boolValue(v, where, pr)
			case "default":
				f.Default = anyValue(v, where, pr)
			case "length":
				f.Length = intValue(v, where, pr)
			case "precision":
				f.Precision = intValue(v, where, pr)
			case "scale":
				f.Scale = intValue(v, where, pr)
			case "rules":
				f.Rules = stringList(v, where, pr)
			case "validation":
				f.Validation = stringList(v, where, pr)
			case "comment":
				f.Comment = optionalString(v, where, pr)
			case "attributes":
				explicit = mapValue(v, where, pr)
			default:
				attrs = put(attrs, key, anyValue(v, where, pr))
			}
		}
	default:
		pr.addf("%s must be a type name or a mapping, got %s", ctx, kindName(n))
	}

	for k, v := range explicit {
		attrs = put(attrs, k, v)
	}
	if typ == "" {
		typ = DefaultFieldType
	}
	f.Type = p.canonical(typ)
	f.Config = DecodeConfig(f.Type, attrs)
	return f
}

func (p *Parser) relationships(n *yaml.Node, pr *problems) []Relationship {
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		pr.addf("relationships must be a mapping, got %s", kindName(n))
		return nil
	}
	var out []Relationship
	seen := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		if name == "" {
			pr.addf("relationships: entry #%d has an empty name", i/2+1)
			continue
		}
		if seen[name] {
			pr.addf("relationship %q is declared more than once", name)
			continue
		}
		seen[name] = true
		out = append(out, p.relationship(name, resolveAlias(n.Content[i+1]), pr))
	}
	return out
}

func (p *Parser) relationship(name string, n *yaml.Node, pr *problems) Relationship {
	r := Relationship{Name: name, Type: BelongsTo}
	ctx := "relationship " + strconv.Quote(name)
	var attrs, explicit map[string]any

	switch {
	case isNull(n):
	case n.Kind == yaml.ScalarNode:
		// author: User
		r.Model = strings.TrimSpace(n.Value)
	case n.Kind == yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v := resolveAlias(n.Content[i+1])
			where := ctx + " " + key
			switch normalizeKey(key) {
			case "type":
				r.Type, _ = ParseRelationType(optionalString(v, where, pr))
			case "model":
				r.Model = strings.TrimSpace(optionalString(v, where, pr))
			case "foreign_key":
				r.ForeignKey = optionalString(v, where, pr)
			case "local_key", "owner_key":
				r.LocalKey = optionalString(v, where, pr)
			case "pivot_table":
				r.PivotTable = optionalString(v, where, pr)
			case "pivot_fields":
				r.PivotFields = stringList(v, where, pr)
			case "with_timestamps":
				r.WithTimestamps = boolValue(v, where, pr)
			case "attributes":
				explicit = mapValue(v, where, pr)
			default:
				attrs = put(attrs, key, anyValue(v, where, pr))
			}
		}
	default:
		pr.addf("%s must be a model name or a mapping, got %s", ctx, kindName(n))
	}

	for k, v := range explicit {
		attrs = put(attrs, k, v)
	}
	r.Attributes = nilIfEmpty(attrs)
	return r
}

func (p *Parser) options(n *yaml.Node, pr *problems) Options {
	opts := DefaultOptions()
	if isNull(n) {
		return opts
	}
	if n.Kind != yaml.MappingNode {
		pr.addf("options must be a mapping, got %s", kindName(n))
		return opts
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		v := resolveAlias(n.Content[i+1])
		where := "options " + key
		switch normalizeKey(key) {
		case "timestamps":
			opts.Timestamps = boolValue(v, where, pr)
		case "soft_deletes":
			opts.SoftDeletes = boolValue(v, where, pr)
		case "namespace":
			opts.Namespace = optionalString(v, where, pr)
		default:
			opts.Extra = put(opts.Extra, key, anyValue(v, where, pr))
		}
	}
	return opts
}

// normalizeKey folds camelCase keys onto their snake_case spelling.
func normalizeKey(key string) string {
	return strings.ToLower(convention.Snake(key))
}

type problems struct {
	list []string
}

func (p *problems) addf(format string, args ...any) {
	p.list = append(p.list, fmt.Sprintf(format, args...))
}

func (p *problems) err() error {
	if len(p.list) == 0 {
		return nil
	}
	return malformed("", p.list...)
}

func optionalString(n *yaml.Node, where string, pr *problems) string {
	if isNull(n) {
		return ""
	}
	if n.Kind != yaml.ScalarNode {
		pr.addf("%s must be a scalar, got %s", where, kindName(n))
		return ""
	}
	return n.Value
}

func boolValue(n *yaml.Node, where string, pr *problems) bool {
	if isNull(n) {
		return false
	}
	var b bool
	if n.Kind != yaml.ScalarNode || n.Decode(&b) != nil {
		pr.addf("%s must be a boolean, got %s", where, kindName(n))
		return false
	}
	return b
}

// intValue accepts integers, and floats only when they are whole (12.0).
// yaml.v3 would otherwise truncate 1.5 to 1.
func intValue(n *yaml.Node, where string, pr *problems) *int {
	if isNull(n) {
		return nil
	}
	if n.Kind == yaml.ScalarNode {
		switch n.ShortTag() {
		case "!!int":
			var i int
			if n.Decode(&i) == nil {
				return &i
			}
		case "!!float":
			var f float64
			if n.Decode(&f) == nil && f == math.Trunc(f) && math.Abs(f) <= math.MaxInt32 {
				i := int(f)
				return &i
			}
			pr.addf("%s must be an integer, got %s", where, n.Value)
			return nil
		}
	}
	pr.addf("%s must be an integer, got %s", where, kindName(n))
	return nil
}

func anyValue(n *yaml.Node, where string, pr *problems) any {
	if isNull(n) {
		return nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		pr.addf("%s: %v", where, err)
		return nil
	}
	return v
}

func mapValue(n *yaml.Node, where string, pr *problems) map[string]any {
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		pr.addf("%s must be a mapping, got %s", where, kindName(n))
		return nil
	}
	var m map[string]any
	if err := n.Decode(&m); err != nil {
		pr.addf("%s: %v", where, err)
		return nil
	}
	return nilIfEmpty(m)
}

// stringList accepts a sequence of scalars or a single scalar.
func stringList(n *yaml.Node, where string, pr *problems) []string {
	if isNull(n) {
		return nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Value == "" {
			return nil
		}
		return []string{n.Value}
	case yaml.SequenceNode:
		var out []string
		for i, c := range n.Content {
			c = resolveAlias(c)
			if c.Kind != yaml.ScalarNode {
				pr.addf("%s[%d] must be a scalar, got %s", where, i, kindName(c))
				continue
			}
			out = append(out, c.Value)
		}
		return out
	}
	pr.addf("%s must be a string or a list of strings, got %s", where, kindName(n))
	return nil
}

func withSource(err error, source string) error {
	var me *MalformedError
	if source != "" && errors.As(err, &me) && me.Source == "" {
		me.Source = source
	}
	return err
}

// sortedKeys returns map keys in lexical order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

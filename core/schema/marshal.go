package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Marshal renders a schema as YAML that parses back to an equal schema.
// Keys appear in a fixed order and attribute maps are sorted, so equal
// schemas produce identical bytes.
func Marshal(s *Schema) ([]byte, error) {
	root, err := schemaNode(s)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %q: %w", s.name, err)
	}
	return out, nil
}

// MarshalSet renders several schemas as one YAML stream, one document each.
func MarshalSet(set Set) ([]byte, error) {
	var b strings.Builder
	for i, s := range set {
		if i > 0 {
			b.WriteString("---\n")
		}
		out, err := Marshal(s)
		if err != nil {
			return nil, err
		}
		b.Write(out)
	}
	return []byte(b.String()), nil
}

func schemaNode(s *Schema) (*yaml.Node, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	add := func(key string, v *yaml.Node) {
		root.Content = append(root.Content, strNode(key), v)
	}

	add("model", strNode(s.name))
	add("table", strNode(s.table))

	if len(s.fields) > 0 {
		fields := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, f := range s.fields {
			n, err := fieldNode(f)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			fields.Content = append(fields.Content, strNode(f.Name), n)
		}
		add("fields", fields)
	}

	if len(s.relationships) > 0 {
		rels := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, r := range s.relationships {
			n, err := relationshipNode(r)
			if err != nil {
				return nil, fmt.Errorf("relationship %q: %w", r.Name, err)
			}
			rels.Content = append(rels.Content, strNode(r.Name), n)
		}
		add("relationships", rels)
	}

	opts := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	opts.Content = append(opts.Content,
		strNode("timestamps"), boolNode(s.options.Timestamps),
		strNode("soft_deletes"), boolNode(s.options.SoftDeletes),
	)
	if s.options.Namespace != "" {
		opts.Content = append(opts.Content, strNode("namespace"), strNode(s.options.Namespace))
	}
	if err := appendSorted(opts, s.options.Extra); err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}
	add("options", opts)

	if len(s.metadata) > 0 {
		meta := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if err := appendSorted(meta, s.metadata); err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
		add("metadata", meta)
	}
	return root, nil
}

func fieldNode(f Field) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	add := func(key string, v *yaml.Node) {
		m.Content = append(m.Content, strNode(key), v)
	}

	add("type", strNode(f.Type))
	if f.Nullable {
		add("nullable", boolNode(true))
	}
	if f.Unique {
		add("unique", boolNode(true))
	}
	if f.Indexed {
		add("index", boolNode(true))
	}
	if f.Default != nil {
		v, err := valueNode(f.Default)
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		add("default", v)
	}
	for _, c := range []struct {
		key string
		v   *int
	}{{"length", f.Length}, {"precision", f.Precision}, {"scale", f.Scale}} {
		if c.v != nil {
			add(c.key, intNode(*c.v))
		}
	}
	if len(f.Rules) > 0 {
		add("rules", stringsNode(f.Rules))
	}
	if len(f.Validation) > 0 {
		add("validation", stringsNode(f.Validation))
	}
	if f.Comment != "" {
		add("comment", strNode(f.Comment))
	}
	if attrs := f.Attributes(); len(attrs) > 0 {
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if err := appendSorted(n, attrs); err != nil {
			return nil, fmt.Errorf("attributes: %w", err)
		}
		add("attributes", n)
	}
	return m, nil
}

func relationshipNode(r Relationship) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	add := func(key string, v *yaml.Node) {
		m.Content = append(m.Content, strNode(key), v)
	}

	add("type", strNode(string(r.Type)))
	if r.Model != "" {
		add("model", strNode(r.Model))
	}
	for _, c := range [][2]string{
		{"foreign_key", r.ForeignKey},
		{"local_key", r.LocalKey},
		{"pivot_table", r.PivotTable},
	} {
		if c[1] != "" {
			add(c[0], strNode(c[1]))
		}
	}
	if len(r.PivotFields) > 0 {
		add("pivot_fields", stringsNode(r.PivotFields))
	}
	if r.WithTimestamps {
		add("with_timestamps", boolNode(true))
	}
	if len(r.Attributes) > 0 {
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if err := appendSorted(n, r.Attributes); err != nil {
			return nil, fmt.Errorf("attributes: %w", err)
		}
		add("attributes", n)
	}
	return m, nil
}

func appendSorted(m *yaml.Node, values map[string]any) error {
	for _, k := range sortedKeys(values) {
		v, err := valueNode(values[k])
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		m.Content = append(m.Content, strNode(k), v)
	}
	return nil
}

// valueNode encodes a decoded value. Integral floats keep a decimal point so
// they decode as floats again.
func valueNode(v any) (*yaml.Node, error) {
	switch vv := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case float64:
		return floatNode(vv), nil
	case map[string]any:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		return n, appendSorted(n, vv)
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range vv {
			c, err := valueNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

func floatNode(f float64) *yaml.Node {
	var s string
	switch {
	case math.IsInf(f, 1):
		s = ".inf"
	case math.IsInf(f, -1):
		s = "-.inf"
	case math.IsNaN(f):
		s = ".nan"
	default:
		s = strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: s}
}

func boolNode(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
}

func intNode(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(i)}
}

func stringsNode(items []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, s := range items {
		n.Content = append(n.Content, strNode(s))
	}
	return n
}

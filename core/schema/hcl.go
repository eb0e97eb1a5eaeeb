package schema

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// DecodeHCL reads an HCL document into the same tree YAML produces.
//
// Attributes and blocks keep their source order. A labeled block such as
// `fields "title" { ... }` becomes fields: {title: {...}}, and repeated
// blocks of one type are merged. Object expressions have no source order and
// are emitted with sorted keys.
func DecodeHCL(data []byte, filename string) (*Document, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return nil, malformed(filename, fmt.Sprintf("parse hcl: %s", diags.Error()))
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, malformed(filename, "parse hcl: unexpected body type")
	}
	root, err := hclBodyNode(body)
	if err != nil {
		return nil, malformed(filename, err.Error())
	}
	if len(root.Content) == 0 {
		return nil, malformed(filename, "document is empty")
	}
	return &Document{root: root}, nil
}

type hclEntry struct {
	pos  int
	key  string
	node *yaml.Node
}

func hclBodyNode(body *hclsyntax.Body) (*yaml.Node, error) {
	entries := make([]hclEntry, 0, len(body.Attributes)+len(body.Blocks))

	for name, attr := range body.Attributes {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %q: %s", name, diags.Error())
		}
		n, err := ctyNode(val)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		entries = append(entries, hclEntry{pos: attr.SrcRange.Start.Byte, key: name, node: n})
	}

	for _, block := range body.Blocks {
		n, err := hclBodyNode(block.Body)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", block.Type, err)
		}
		for i := len(block.Labels) - 1; i >= 0; i-- {
			n = mappingNode(block.Labels[i], n)
		}
		entries = append(entries, hclEntry{pos: block.TypeRange.Start.Byte, key: block.Type, node: n})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })

	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range entries {
		if err := mergePair(out, e.key, e.node); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// mergePair appends key: value to a mapping. A repeated key is allowed only
// when both values are mappings; their entries are merged recursively.
func mergePair(m *yaml.Node, key string, value *yaml.Node) error {
	existing, ok := lookup(m, key)
	if !ok {
		m.Content = append(m.Content, strNode(key), value)
		return nil
	}
	if existing.Kind != yaml.MappingNode || value.Kind != yaml.MappingNode {
		return fmt.Errorf("duplicate key %q", key)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if err := mergePair(existing, value.Content[i].Value, value.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func ctyNode(val cty.Value) (*yaml.Node, error) {
	if val.IsNull() {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return strNode(val.AsString()), nil
	case ty == cty.Bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(val.True())}, nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(i, 10)}, nil
			}
		}
		f, _ := bf.Float64()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(f, 'g', -1, 64)}, nil
	case ty.IsListType() || ty.IsSetType() || ty.IsTupleType():
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			n, err := ctyNode(v)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	case ty.IsMapType() || ty.IsObjectType():
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			n, err := ctyNode(v)
			if err != nil {
				return nil, err
			}
			m.Content = append(m.Content, strNode(k.AsString()), n)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func mappingNode(key string, value *yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{strNode(key), value}}
}

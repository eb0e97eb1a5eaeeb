package schema

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the surface syntax of a schema document.
type Format string

const (
	FormatYAML Format = "yaml" // JSON is read as YAML
	FormatHCL  Format = "hcl"
)

// FormatFor picks the format from a file extension. ok is false for files
// that are not schema documents.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, true
	case ".hcl":
		return FormatHCL, true
	}
	return "", false
}

// Document is a decoded schema text: an ordered mapping tree.
type Document struct {
	root *yaml.Node
}

// Decode reads a YAML or JSON document.
func Decode(data []byte) (*Document, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, malformed("", fmt.Sprintf("parse yaml: %v", err))
	}
	return documentFrom(&doc)
}

// DecodeFormat reads data in the given format. filename is only used in
// HCL diagnostics.
func DecodeFormat(data []byte, format Format, filename string) (*Document, error) {
	switch format {
	case FormatHCL:
		return DecodeHCL(data, filename)
	case FormatYAML, "":
		return Decode(data)
	}
	return nil, fmt.Errorf("unsupported schema format %q", format)
}

func documentFrom(n *yaml.Node) (*Document, error) {
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil, malformed("", "document is empty")
		}
		n = n.Content[0]
	}
	if n.Kind == 0 {
		return nil, malformed("", "document is empty")
	}
	n = resolveAlias(n)
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		return nil, malformed("", "document is empty")
	}
	if n.Kind != yaml.MappingNode {
		return nil, malformed("", fmt.Sprintf("document must be a mapping, got %s", kindName(n)))
	}
	return &Document{root: n}, nil
}

// Keys returns the top-level keys in document order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.root.Content)/2)
	for i := 0; i+1 < len(d.root.Content); i += 2 {
		keys = append(keys, d.root.Content[i].Value)
	}
	return keys
}

// Section returns the node stored under a top-level key.
func (d *Document) Section(key string) (*yaml.Node, bool) {
	return lookup(d.root, key)
}

// SectionValue decodes a top-level key into plain Go values.
func (d *Document) SectionValue(key string) (any, bool, error) {
	n, ok := d.Section(key)
	if !ok {
		return nil, false, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, true, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// Canonical re-serializes the document into a compact form that keeps key
// order and scalar types but drops layout, comments, quoting style and
// anchors. Two texts with the same canonical form parse to the same schema.
func (d *Document) Canonical() []byte {
	var buf bytes.Buffer
	writeCanonical(&buf, d.root)
	return buf.Bytes()
}

func writeCanonical(buf *bytes.Buffer, n *yaml.Node) {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, n.Content[i])
			buf.WriteByte(':')
			writeCanonical(buf, n.Content[i+1])
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, c)
		}
		buf.WriteByte(']')
	case yaml.DocumentNode:
		for _, c := range n.Content {
			writeCanonical(buf, c)
		}
	default:
		buf.WriteString(n.ShortTag())
		buf.WriteString(strconv.Quote(n.Value))
	}
}

func lookup(m *yaml.Node, key string) (*yaml.Node, bool) {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return resolveAlias(m.Content[i+1]), true
		}
	}
	return nil, false
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar " + strings.TrimPrefix(n.ShortTag(), "!!")
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	}
	return "nothing"
}

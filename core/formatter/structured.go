package formatter

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// document is the envelope json and yaml output share. Count is only set
// for listings.
type document struct {
	Kind  string `json:"kind" yaml:"kind"`
	Count *int   `json:"count,omitempty" yaml:"count,omitempty"`
	Data  any    `json:"data" yaml:"data"`
}

type failure struct {
	Error string `json:"error" yaml:"error"`
}

type encodeFunc func(w io.Writer, v any, compact bool) error

// structured renders listings as a machine-readable document. Hidden
// columns are left out unless asked for by name.
type structured struct {
	name   string
	about  string
	encode encodeFunc
}

func (s structured) Name() string        { return s.name }
func (s structured) Description() string { return s.about }

func (s structured) FormatList(w io.Writer, l Listing, records []map[string]any, opts FormatOptions) error {
	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, project(l, r, opts.Columns))
	}
	n := len(rows)
	return s.encode(w, document{Kind: l.Kind, Count: &n, Data: rows}, opts.Compact)
}

func (s structured) FormatRecord(w io.Writer, l Listing, record map[string]any, opts FormatOptions) error {
	doc := document{Kind: l.Kind}
	if record != nil {
		doc.Data = project(l, record, opts.Columns)
	}
	return s.encode(w, doc, opts.Compact)
}

func (s structured) FormatError(w io.Writer, err error) error {
	return s.encode(w, failure{Error: err.Error()}, false)
}

// JSONFormatter writes indented JSON, or one line per document when
// Compact is set.
type JSONFormatter struct{ structured }

// NewJSONFormatter returns the json formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{structured{name: "json", about: "JSON document", encode: encodeJSON}}
}

func encodeJSON(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// YAMLFormatter writes YAML. Compact has no effect.
type YAMLFormatter struct{ structured }

// NewYAMLFormatter returns the yaml formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{structured{name: "yaml", about: "YAML document", encode: encodeYAML}}
}

func encodeYAML(w io.Writer, v any, _ bool) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

package cache

import (
	"github.com/artpar/modelkit/core/schema"
)

// Optimizer answers questions about schema text without building a whole
// schema. It uses the parser's own section builders, so a section it returns
// is identical to the same section of a full parse.
type Optimizer struct {
	parser *schema.Parser
}

// NewOptimizer creates an optimizer. A nil parser keeps type names as
// written.
func NewOptimizer(parser *schema.Parser) *Optimizer {
	if parser == nil {
		parser = schema.NewParser(nil)
	}
	return &Optimizer{parser: parser}
}

// Section decodes one top-level key into plain values. The boolean is false
// when the key is absent.
func (o *Optimizer) Section(data []byte, key string) (any, bool, error) {
	doc, err := schema.Decode(data)
	if err != nil {
		return nil, false, err
	}
	return doc.SectionValue(key)
}

// Fields builds only the fields of a document.
func (o *Optimizer) Fields(data []byte) ([]schema.Field, error) {
	doc, err := schema.Decode(data)
	if err != nil {
		return nil, err
	}
	return o.parser.Fields(doc)
}

// Relationships builds only the relationships of a document.
func (o *Optimizer) Relationships(data []byte) ([]schema.Relationship, error) {
	doc, err := schema.Decode(data)
	if err != nil {
		return nil, err
	}
	return o.parser.Relationships(doc)
}

// Options builds only the options of a document.
func (o *Optimizer) Options(data []byte) (schema.Options, error) {
	doc, err := schema.Decode(data)
	if err != nil {
		return schema.Options{}, err
	}
	return o.parser.Options(doc)
}

// QuickValidate runs the structural checks of Parse without building
// entities or resolving types. When it returns nil, Parse does not fail
// with schema.ErrMalformedInput.
func (o *Optimizer) QuickValidate(data []byte) error {
	return o.QuickValidateNamed(data, "")
}

// QuickValidateNamed is QuickValidate for a document whose model name may
// come from elsewhere, such as its file name.
func (o *Optimizer) QuickValidateNamed(data []byte, fallbackName string) error {
	doc, err := schema.Decode(data)
	if err != nil {
		return err
	}
	if problems := schema.CheckStructure(doc, fallbackName); len(problems) > 0 {
		return &schema.MalformedError{Problems: problems}
	}
	return nil
}

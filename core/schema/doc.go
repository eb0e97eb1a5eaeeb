/*
Package schema defines the immutable entities of a declarative data model
and the parser that builds them from structured text.

A model is declared with its fields, relationships and options:

	model: Post
	table: posts

	fields:
	  title:  { type: string, length: 200 }
	  body:   text
	  status: { type: enum, values: [draft, published], default: draft }

	relationships:
	  author:   { type: belongsTo, model: User }
	  comments: { type: hasMany, model: Comment }

	options:
	  timestamps: true
	  soft_deletes: false

A scalar field value is shorthand for its type. Keys that a field does not
know are type-specific attributes (values, srid, references...) and end up in
the field's typed Config.

# Formats

YAML and JSON are decoded with gopkg.in/yaml.v3. Files ending in .hcl are
decoded with hashicorp/hcl into the same ordered document tree:

	model = "Post"

	fields "title" {
	  type   = "string"
	  length = 200
	}

	relationships "author" {
	  type  = "belongsTo"
	  model = "User"
	}

# Parsing

	p := schema.NewParser(registry)
	post, err := p.ParseFile("schemas/post.yaml")
	all, err := p.ParseDir("schemas/")

Structural problems are collected and returned together, wrapped in
ErrMalformedInput. Semantic checks across a schema set live in the
consistency package.
*/
package schema

package consistency

import "github.com/artpar/modelkit/core/schema"

// FindMissingInverses lists relationships whose target model, present in the
// set, declares nothing pointing back. belongs_to and morph_to are exempt.
func FindMissingInverses(set schema.Set) []MissingInverse {
	var out []MissingInverse
	for _, s := range set {
		for _, rel := range s.Relationships() {
			expected, ok := rel.Type.ExpectedInverse()
			if !ok {
				continue
			}
			target, found := set.Lookup(rel.Model)
			if !found {
				continue
			}
			if hasInverse(set, s, rel, target) {
				continue
			}
			out = append(out, MissingInverse{
				From:         s.Name(),
				To:           target.Name(),
				Relationship: rel.Name,
				Type:         rel.Type,
				Expected:     expected,
			})
		}
	}
	return out
}

// hasInverse reports whether target declares a relationship back to source.
// For morph_one and morph_many any morph_to on the target counts.
func hasInverse(set schema.Set, source *schema.Schema, rel schema.Relationship, target *schema.Schema) bool {
	for _, back := range target.Relationships() {
		if target.Key() == source.Key() && back.Name == rel.Name {
			continue
		}
		switch rel.Type {
		case schema.MorphOne, schema.MorphMany:
			if back.Type == schema.MorphTo {
				return true
			}
		case schema.HasOne, schema.HasMany, schema.BelongsToMany, schema.MorphToMany, schema.MorphedByMany:
		case schema.BelongsTo, schema.MorphTo:
			return true
		}
		if back.Model == "" {
			continue
		}
		if s, ok := set.Lookup(back.Model); ok && s.Key() == source.Key() {
			return true
		}
	}
	return false
}

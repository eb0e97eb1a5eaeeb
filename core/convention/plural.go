package convention

import "strings"

// irregular maps singular to plural for words the suffix rules get wrong.
var irregular = map[string]string{
	"person":   "people",
	"man":      "men",
	"woman":    "women",
	"child":    "children",
	"foot":     "feet",
	"tooth":    "teeth",
	"goose":    "geese",
	"mouse":    "mice",
	"ox":       "oxen",
	"index":    "indices",
	"matrix":   "matrices",
	"vertex":   "vertices",
	"analysis": "analyses",
	"crisis":   "crises",
	"thesis":   "theses",
	"datum":    "data",
	"medium":   "media",
	"schema":   "schemas",
	"status":   "statuses",
}

// uncountable words are returned unchanged by Pluralize and Singularize.
var uncountable = map[string]bool{
	"equipment":   true,
	"information": true,
	"metadata":    true,
	"news":        true,
	"series":      true,
	"species":     true,
	"sheep":       true,
	"fish":        true,
}

// Pluralize returns the plural form of a word using simple English rules.
// When the word is snake_case only the last segment is pluralized.
func Pluralize(word string) string {
	if word == "" {
		return ""
	}
	head, last := splitLastSegment(word)
	return head + pluralizeWord(last)
}

// Singularize is the inverse of Pluralize.
func Singularize(word string) string {
	if word == "" {
		return ""
	}
	head, last := splitLastSegment(word)
	return head + singularizeWord(last)
}

func pluralizeWord(word string) string {
	lower := strings.ToLower(word)
	if uncountable[lower] {
		return word
	}
	if plural, ok := irregular[lower]; ok {
		return matchCase(word, plural)
	}

	switch {
	case hasAnySuffix(lower, "s", "x", "z", "ch", "sh"):
		return word + "es"
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(rune(lower[len(lower)-2])):
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(lower, "fe"):
		return word[:len(word)-2] + "ves"
	case strings.HasSuffix(lower, "f") && !strings.HasSuffix(lower, "ff"):
		return word[:len(word)-1] + "ves"
	}
	return word + "s"
}

func singularizeWord(word string) string {
	lower := strings.ToLower(word)
	if uncountable[lower] {
		return word
	}
	for singular, plural := range irregular {
		if plural == lower {
			return matchCase(word, singular)
		}
	}

	switch {
	case strings.HasSuffix(lower, "ies") && len(lower) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(lower, "ves"):
		return word[:len(word)-3] + "f"
	case hasAnySuffix(lower, "ses", "xes", "zes", "ches", "shes"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss"):
		return word[:len(word)-1]
	}
	return word
}

func splitLastSegment(word string) (string, string) {
	i := strings.LastIndexByte(word, '_')
	if i < 0 || i == len(word)-1 {
		return "", word
	}
	return word[:i+1], word[i+1:]
}

// matchCase copies the capitalisation of the first letter of src onto word.
func matchCase(src, word string) string {
	if src != "" && src[0] >= 'A' && src[0] <= 'Z' {
		return strings.ToUpper(word[:1]) + word[1:]
	}
	return word
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Semantic issues reported by the consistency validator
// unwrap to one of these.
var (
	ErrMalformedInput          = errors.New("malformed schema input")
	ErrUnknownRelationshipType = errors.New("unknown relationship type")
	ErrInvalidFieldConfig      = errors.New("invalid field config")
	ErrDanglingReference       = errors.New("dangling reference")
	ErrInvalidDefinition       = errors.New("invalid schema definition")
)

// MalformedError lists every structural problem found in one document.
type MalformedError struct {
	Source   string
	Problems []string
}

func (e *MalformedError) Error() string {
	prefix := "malformed schema input"
	if e.Source != "" {
		prefix += " " + e.Source
	}
	if len(e.Problems) == 1 {
		return prefix + ": " + e.Problems[0]
	}
	return fmt.Sprintf("%s:\n  - %s", prefix, strings.Join(e.Problems, "\n  - "))
}

func (e *MalformedError) Unwrap() error { return ErrMalformedInput }

func malformed(source string, problems ...string) error {
	return &MalformedError{Source: source, Problems: problems}
}

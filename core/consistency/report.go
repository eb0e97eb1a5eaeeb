package consistency

import (
	"fmt"
	"strings"

	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/schema"
)

// Severity of an issue. Only errors affect validity.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code classifies an issue.
type Code string

const (
	CodeCircularDependency      Code = "circular_dependency"
	CodeMissingInverse          Code = "missing_inverse"
	CodeMissingTarget           Code = "missing_target"
	CodeDanglingReference       Code = "dangling_reference"
	CodeUnknownRelationshipType Code = "unknown_relationship_type"
	CodeUnknownFieldType        Code = "unknown_field_type"
	CodeInvalidFieldConfig      Code = "invalid_field_config"
	CodeConstraintOutOfRange    Code = "constraint_out_of_range"
	CodeIgnoredConstraint       Code = "ignored_constraint"
	CodeInvalidRule             Code = "invalid_rule"
	CodeUnknownRule             Code = "unknown_rule"
	CodeEmptyInRule             Code = "empty_in_rule"
	CodeDuplicateModel          Code = "duplicate_model"
	CodeDuplicateTable          Code = "duplicate_table"
)

// Issue is one finding of the validator.
type Issue struct {
	Code         Code     `json:"code" yaml:"code"`
	Severity     Severity `json:"severity" yaml:"severity"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Field        string   `json:"field,omitempty" yaml:"field,omitempty"`
	Relationship string   `json:"relationship,omitempty" yaml:"relationship,omitempty"`
	Message      string   `json:"message" yaml:"message"`
}

func (i Issue) Error() string {
	var where []string
	if i.Model != "" {
		where = append(where, i.Model)
	}
	if i.Field != "" {
		where = append(where, i.Field)
	}
	if i.Relationship != "" {
		where = append(where, i.Relationship)
	}
	if len(where) == 0 {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", strings.Join(where, "."), i.Code, i.Message)
}

// Unwrap maps the issue code onto the package sentinels so callers can use
// errors.Is.
func (i Issue) Unwrap() error {
	switch i.Code {
	case CodeUnknownRelationshipType:
		return schema.ErrUnknownRelationshipType
	case CodeInvalidFieldConfig, CodeInvalidRule:
		return schema.ErrInvalidFieldConfig
	case CodeDanglingReference, CodeMissingTarget:
		return schema.ErrDanglingReference
	case CodeUnknownFieldType:
		return fieldtype.ErrUnknownFieldType
	}
	return nil
}

// Cycle is a back-edge found in the ownership graph.
type Cycle struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// MissingInverse suggests the relationship the target model should declare.
type MissingInverse struct {
	From         string              `json:"from" yaml:"from"`
	To           string              `json:"to" yaml:"to"`
	Relationship string              `json:"relationship" yaml:"relationship"`
	Type         schema.RelationType `json:"type" yaml:"type"`
	Expected     schema.RelationType `json:"expected" yaml:"expected"`
}

// Report collects everything one check found.
type Report struct {
	Errors          []Issue          `json:"errors" yaml:"errors"`
	Warnings        []Issue          `json:"warnings" yaml:"warnings"`
	Cycles          []Cycle          `json:"cycles,omitempty" yaml:"cycles,omitempty"`
	MissingInverses []MissingInverse `json:"missing_inverses,omitempty" yaml:"missing_inverses,omitempty"`
}

// IsValid reports whether no errors were found. Warnings do not count.
func (r Report) IsValid() bool { return len(r.Errors) == 0 }

// IsConsistent is IsValid under the name used for schema sets.
func (r Report) IsConsistent() bool { return r.IsValid() }

// Add files an issue under errors or warnings by its severity.
func (r *Report) Add(issues ...Issue) {
	for _, i := range issues {
		if i.Severity == SeverityWarning {
			r.Warnings = append(r.Warnings, i)
		} else {
			r.Errors = append(r.Errors, i)
		}
	}
}

// Merge appends another report.
func (r *Report) Merge(other Report) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Cycles = append(r.Cycles, other.Cycles...)
	r.MissingInverses = append(r.MissingInverses, other.MissingInverses...)
}

// ErrorsWithCode filters errors by code.
func (r Report) ErrorsWithCode(code Code) []Issue {
	return withCode(r.Errors, code)
}

// WarningsWithCode filters warnings by code.
func (r Report) WarningsWithCode(code Code) []Issue {
	return withCode(r.Warnings, code)
}

func withCode(issues []Issue, code Code) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Code == code {
			out = append(out, i)
		}
	}
	return out
}

// Err returns nil for a valid report, otherwise an error listing every
// error issue. errors.Is sees through to each issue's sentinel.
func (r Report) Err() error {
	if r.IsValid() {
		return nil
	}
	return &ReportError{Issues: append([]Issue(nil), r.Errors...)}
}

// ReportError is the error form of an invalid report.
type ReportError struct {
	Issues []Issue
}

func (e *ReportError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Error()
	}
	return fmt.Sprintf("validation errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e *ReportError) Unwrap() []error {
	out := make([]error, len(e.Issues))
	for i, issue := range e.Issues {
		out[i] = issue
	}
	return out
}

func errorf(code Code, model, format string, args ...any) Issue {
	return Issue{Code: code, Severity: SeverityError, Model: model, Message: fmt.Sprintf(format, args...)}
}

func warnf(code Code, model, format string, args ...any) Issue {
	return Issue{Code: code, Severity: SeverityWarning, Model: model, Message: fmt.Sprintf(format, args...)}
}

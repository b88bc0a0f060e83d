// Package validate provides field validation with value-returning results.
//
// Validation outcomes are values carried on the error, never accumulated in
// shared state, so concurrent requests cannot contaminate each other.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// tokenPattern is the single canonical token rule: 64 lowercase hex chars,
// the hex encoding of 32 random bytes. Applied uniformly to admin and public
// paths.
var tokenPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// ValidToken reports whether s is a well-formed invitation token.
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error carries the invalid fields of one validation pass.
type Error struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Result collects field errors during a validation pass.
type Result struct {
	fields []FieldError
}

// Fail records a field error.
func (r *Result) Fail(field, message string) {
	r.fields = append(r.fields, FieldError{Field: field, Message: message})
}

// Require records an error when ok is false.
func (r *Result) Require(ok bool, field, message string) {
	if !ok {
		r.Fail(field, message)
	}
}

// Err returns nil when every check passed, otherwise a *Error carrying the
// failed fields.
func (r *Result) Err() error {
	if len(r.fields) == 0 {
		return nil
	}
	return &Error{Fields: r.fields}
}

// Package errs defines the typed failures surfaced by the query engine.
//
// Every failure the engine raises is an *Error carrying a Code, so host
// integrations can tell a malformed query apart from a backend capability
// gap without string matching:
//
//   - PARSE_ERROR: the query text does not match the grammar
//   - SEMANTIC_ERROR: grammar-valid but meaningless (unknown identifier,
//     non-numeric aggregate, cardinality violation)
//   - TRANSLATION_ERROR: an expression has no SQL equivalent
//   - NOT_IMPLEMENTED: a backend does not support the operation
//   - CONFIGURATION_ERROR: an operation was called with options the backend
//     rejects
package errs

import (
	"errors"
	"fmt"
)

// Code categorizes engine errors.
type Code string

const (
	// CodeParse indicates the query text does not match the grammar.
	CodeParse Code = "PARSE_ERROR"

	// CodeSemantic indicates a well-formed but meaningless query or value.
	CodeSemantic Code = "SEMANTIC_ERROR"

	// CodeTranslation indicates an expression node has no SQL equivalent.
	CodeTranslation Code = "TRANSLATION_ERROR"

	// CodeNotImplemented indicates the backend lacks the operation.
	CodeNotImplemented Code = "NOT_IMPLEMENTED"

	// CodeConfiguration indicates unsupported operation options.
	CodeConfiguration Code = "CONFIGURATION_ERROR"
)

// EndOfQuery is the position indicator used when a parse error occurs after
// the last fragment.
const EndOfQuery = "-end of query-"

// Error is a typed engine failure.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Indicator shows where parsing stopped: the current fragment with a
	// "<^>" caret at the cursor, or EndOfQuery. Parse errors only.
	Indicator string

	// Op names the collection operation for NOT_IMPLEMENTED errors.
	Op string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Indicator != "" {
		msg = e.Indicator + "\n" + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Parse creates a parse error positioned by indicator.
func Parse(indicator, format string, args ...any) *Error {
	return &Error{Code: CodeParse, Message: fmt.Sprintf(format, args...), Indicator: indicator}
}

// Syntax creates a parse error that has no reader position, e.g. malformed
// inline expression text.
func Syntax(format string, args ...any) *Error {
	return &Error{Code: CodeParse, Message: fmt.Sprintf(format, args...)}
}

// Semantic creates a semantic error.
func Semantic(format string, args ...any) *Error {
	return &Error{Code: CodeSemantic, Message: fmt.Sprintf(format, args...)}
}

// Translation creates a translation error.
func Translation(format string, args ...any) *Error {
	return &Error{Code: CodeTranslation, Message: fmt.Sprintf(format, args...)}
}

// NotImplemented creates the error a backend returns for an operation it
// does not support.
func NotImplemented(op string) *Error {
	return &Error{Code: CodeNotImplemented, Message: "not implemented: " + op, Op: op}
}

// Configuration creates a configuration error.
func Configuration(format string, args ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a new error of the given code.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsParseError reports whether err is a parse error.
// Uses errors.As to handle wrapped errors.
func IsParseError(err error) bool {
	return CodeOf(err) == CodeParse
}

// IsSemanticError reports whether err is a semantic error.
func IsSemanticError(err error) bool {
	return CodeOf(err) == CodeSemantic
}

// IsTranslationError reports whether err is a translation error.
func IsTranslationError(err error) bool {
	return CodeOf(err) == CodeTranslation
}

// IsNotImplemented reports whether err is a not-implemented error.
func IsNotImplemented(err error) bool {
	return CodeOf(err) == CodeNotImplemented
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	return CodeOf(err) == CodeConfiguration
}

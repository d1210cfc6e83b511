// Package rserrors defines the error types raised while parsing and loading
// RiveScript source. Each carries a technical message (for Error(), logs, and
// tests) as well as a message suitable for showing to whoever is authoring
// the script, the same split that tqerrors.InterpreterError makes for game
// errors in the teacher engine this module is descended from.
package rserrors

import "fmt"

// ParseError is a structural or syntactic violation of the RiveScript
// grammar, surfaced synchronously by the parser in strict mode.
type ParseError struct {
	File    string
	Line    int
	Reason  string
	wrapped error
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// Unwrap gives the error that this ParseError wraps, if any.
func (e *ParseError) Unwrap() error {
	return e.wrapped
}

// AuthorMessage gives a message suitable for display to a script author: it
// omits the Go-ism of a wrapped error chain and focuses on what to fix.
func (e *ParseError) AuthorMessage() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("%s, line %d: %s", e.File, e.Line, e.Reason)
}

// NewParse returns a new ParseError for the given file/line/reason.
func NewParse(file string, line int, reason string) *ParseError {
	return &ParseError{File: file, Line: line, Reason: reason}
}

// NewParsef is like NewParse but builds Reason with fmt.Sprintf.
func NewParsef(file string, line int, format string, a ...interface{}) *ParseError {
	return NewParse(file, line, fmt.Sprintf(format, a...))
}

// WrapParse returns a new ParseError wrapping err, for cases where the
// structural violation was detected by a lower-level helper.
func WrapParse(file string, line int, reason string, err error) *ParseError {
	return &ParseError{File: file, Line: line, Reason: reason, wrapped: err}
}

package parser

import (
	"fmt"

	"pyintel/internal/engine/ast"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a syntax problem reported against a source range.
type Diagnostic struct {
	Severity Severity
	Message  string
	Span     ast.Span
	Line     int
	Column   int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
}

// Result is the output of parsing one module.
type Result struct {
	Module      *ast.Module
	Diagnostics []Diagnostic
}

func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Package parser turns Python source into the ast package's tree using the
// tree-sitter Python grammar.
package parser

import (
	"time"

	"pyintel/internal/core/errors"
	"pyintel/internal/engine/ast"
	"pyintel/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

func pythonLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_python.Language())
}

type Parser struct {
	pool *ParserPool
}

func New() *Parser {
	return &Parser{pool: NewParserPool(pythonLanguage())}
}

// Parse builds the module tree for src. Syntax errors become diagnostics and
// the recoverable portion of the tree is still returned.
func (p *Parser) Parse(name string, src []byte) (*Result, error) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.Observe(time.Since(start).Seconds())
	}()

	sp := p.pool.Get()
	defer p.pool.Put(sp)

	tree := sp.Parse(src, nil)
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeInternal, "parse failed"), errors.CtxModule, name)
	}
	defer tree.Close()

	root := tree.RootNode()
	c := newConverter(src)
	mod := c.module(root)
	mod.Name = name

	diags := collectDiagnostics(root, src, mod.Lines)
	observability.ParseDiagnosticsTotal.Add(float64(len(diags)))
	return &Result{Module: mod, Diagnostics: diags}, nil
}

// ParseExpression parses a standalone expression such as the text a query is
// asked about. Spans are relative to text.
func (p *Parser) ParseExpression(text string) (ast.Expr, error) {
	res, err := p.Parse("<expr>", []byte(text))
	if err != nil {
		return nil, err
	}
	if len(res.Module.Body) != 1 {
		return nil, errors.Newf(errors.CodeValidationError, "not a single expression: %q", text)
	}
	stmt, ok := res.Module.Body[0].(*ast.ExprStmt)
	if !ok || stmt.Value == nil {
		return nil, errors.Newf(errors.CodeValidationError, "not an expression: %q", text)
	}
	if _, bad := stmt.Value.(*ast.BadExpr); bad {
		return nil, errors.Newf(errors.CodeValidationError, "unparseable expression: %q", text)
	}
	return stmt.Value, nil
}

func collectDiagnostics(root *sitter.Node, src []byte, lines *ast.LineTable) []Diagnostic {
	if root == nil || !root.HasError() {
		return nil
	}
	var out []Diagnostic
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch {
		case n.IsMissing():
			out = append(out, newDiagnostic(n, lines, "missing "+n.Kind()))
			return
		case n.IsError():
			msg := "invalid syntax"
			if text := n.Utf8Text(src); len(text) > 0 && len(text) <= 40 {
				msg = "invalid syntax near " + quoteSnippet(text)
			}
			out = append(out, newDiagnostic(n, lines, msg))
			return
		}
		if !n.HasError() {
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if child := n.Child(i); child != nil {
				visit(child)
			}
		}
	}
	visit(root)
	return out
}

func newDiagnostic(n *sitter.Node, lines *ast.LineTable, msg string) Diagnostic {
	span := ast.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
	line, col := lines.Position(span.Start)
	return Diagnostic{
		Severity: SeverityError,
		Message:  msg,
		Span:     span,
		Line:     line,
		Column:   col,
	}
}

func quoteSnippet(s string) string {
	out := make([]rune, 0, len(s)+2)
	out = append(out, '\'')
	for _, r := range s {
		if r == '\n' || r == '\r' {
			r = ' '
		}
		out = append(out, r)
	}
	return string(append(out, '\''))
}

package query

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"

	"go.uber.org/multierr"
)

// Catalog knows which modules exist and which names they export.
type Catalog interface {
	// ModulesExporting lists the modules binding name at top level.
	ModulesExporting(ctx context.Context, name string) ([]string, error)
	HasModule(ctx context.Context, name string) (bool, error)
}

// InterpreterCatalog exposes the modules an interpreter supplies.
type InterpreterCatalog struct {
	Interp values.Interpreter
}

func (c InterpreterCatalog) ModulesExporting(_ context.Context, name string) ([]string, error) {
	var out []string
	for _, mod := range c.Interp.ModuleNames() {
		m, ok := c.Interp.ImportModule(mod)
		if ok && m.Lookup(name) != nil {
			out = append(out, mod)
		}
	}
	return out, nil
}

func (c InterpreterCatalog) HasModule(_ context.Context, name string) (bool, error) {
	_, ok := c.Interp.ImportModule(name)
	return ok, nil
}

// MultiCatalog merges several catalogs. Errors from one catalog do not hide
// results from the others.
type MultiCatalog []Catalog

func (m MultiCatalog) ModulesExporting(ctx context.Context, name string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	var errs error
	for _, c := range m {
		mods, err := c.ModulesExporting(ctx, name)
		errs = multierr.Append(errs, err)
		for _, mod := range mods {
			if !seen[mod] {
				seen[mod] = true
				out = append(out, mod)
			}
		}
	}
	return out, errs
}

func (m MultiCatalog) HasModule(ctx context.Context, name string) (bool, error) {
	var errs error
	for _, c := range m {
		ok, err := c.HasModule(ctx, name)
		if ok {
			return true, nil
		}
		errs = multierr.Append(errs, err)
	}
	return false, errs
}

// ImportSuggestion is one candidate statement binding a missing name.
type ImportSuggestion struct {
	// Module is the module imported from, or the imported module itself.
	Module string
	// Name is the imported member; empty for "import Module".
	Name string
}

func (s ImportSuggestion) Statement() string {
	if s.Name == "" {
		return "import " + s.Module
	}
	return "from " + s.Module + " import " + s.Name
}

// ImportSuggestions proposes imports for the head name of expr when that
// name is unbound at index. Module imports rank first, then from-imports of
// shallower modules.
func ImportSuggestions(ctx context.Context, snap *Snapshot, catalog Catalog, expr string, index int) ([]ImportSuggestion, error) {
	name := headName(expr)
	if name == "" || keywords[name] {
		return nil, nil
	}
	if ts := snap.analysis.Lookup(name, index); !ts.IsUnknown() {
		return nil, nil
	}

	var out []ImportSuggestion
	var errs error
	ok, err := catalog.HasModule(ctx, name)
	errs = multierr.Append(errs, err)
	if ok {
		out = append(out, ImportSuggestion{Module: name})
	}

	mods, err := catalog.ModulesExporting(ctx, name)
	errs = multierr.Append(errs, err)
	var from []ImportSuggestion
	for _, mod := range mods {
		if mod == snap.analysis.Name || isPrivateModule(mod) {
			continue
		}
		from = append(from, ImportSuggestion{Module: mod, Name: name})
	}
	sort.Slice(from, func(i, j int) bool {
		di, dj := strings.Count(from[i].Module, "."), strings.Count(from[j].Module, ".")
		if di != dj {
			return di < dj
		}
		return from[i].Module < from[j].Module
	})
	out = append(out, from...)
	if len(out) == 0 {
		return nil, errs
	}
	return out, nil
}

func headName(expr string) string {
	expr = strings.TrimSpace(expr)
	end := 0
	for end < len(expr) && isIdentByte(expr[end]) {
		end++
	}
	return expr[:end]
}

func isPrivateModule(name string) bool {
	for _, part := range strings.Split(name, ".") {
		if strings.HasPrefix(part, "_") && !(strings.HasPrefix(part, "__") && strings.HasSuffix(part, "__")) {
			return true
		}
	}
	return false
}

// TextEdit replaces source[Start:End] with NewText.
type TextEdit struct {
	Start   int
	End     int
	NewText string
}

func (e TextEdit) Apply(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(e.NewText))
	out = append(out, src[:e.Start]...)
	out = append(out, e.NewText...)
	return append(out, src[e.End:]...)
}

// AddImport computes the edit applying s to src. A from-import of a module
// that is already imported from is extended in place, keeping parentheses,
// aliases and order; a trailing comma becomes the separator before the new
// name. Otherwise a new statement goes after the module docstring and any
// __future__ imports. It reports false when the import already exists.
func AddImport(src []byte, tree *ast.Module, s ImportSuggestion) (TextEdit, bool) {
	for _, st := range tree.Body {
		switch imp := st.(type) {
		case *ast.Import:
			if s.Name != "" {
				continue
			}
			for _, a := range imp.Names {
				if a.Name == s.Module && a.AsName == "" {
					return TextEdit{}, false
				}
			}
		case *ast.ImportFrom:
			if s.Name == "" || imp.Level != 0 || imp.Module != s.Module || imp.Star || len(imp.Names) == 0 {
				continue
			}
			for _, a := range imp.Names {
				if a.Bound() == s.Name {
					return TextEdit{}, false
				}
			}
			return mergeFromImport(src, imp, s.Name), true
		}
	}

	pos := insertionPoint(src, tree, s.Module == "__future__")
	text := s.Statement() + "\n"
	if pos == len(src) && pos > 0 && src[pos-1] != '\n' {
		text = "\n" + text
	}
	return TextEdit{Start: pos, End: pos, NewText: text}, true
}

func mergeFromImport(src []byte, imp *ast.ImportFrom, name string) TextEdit {
	last := imp.Names[len(imp.Names)-1]
	end := last.Span.End
	if imp.Parens.End > imp.Parens.Start {
		closing := imp.Parens.End - 1
		if bytes.IndexByte(src[end:closing], ',') >= 0 {
			// The trailing comma is consumed as the separator.
			return TextEdit{Start: end, End: closing, NewText: ", " + name}
		}
	}
	return TextEdit{Start: end, End: end, NewText: ", " + name}
}

// insertionPoint is the start of the line after the module docstring and,
// unless the new import is itself a __future__ import, after the leading
// __future__ imports.
func insertionPoint(src []byte, tree *ast.Module, future bool) int {
	pos := 0
	if tree.DocEnd >= 0 {
		pos = nextLine(src, tree.DocEnd)
	}
	if future {
		return pos
	}
	for _, st := range tree.Body {
		r := st.Range()
		if r.End <= pos {
			continue
		}
		imp, ok := st.(*ast.ImportFrom)
		if !ok || imp.Level != 0 || imp.Module != "__future__" {
			break
		}
		pos = nextLine(src, r.End)
	}
	return pos
}

func nextLine(src []byte, offset int) int {
	if offset >= len(src) {
		return len(src)
	}
	if i := bytes.IndexByte(src[offset:], '\n'); i >= 0 {
		return offset + i + 1
	}
	return len(src)
}

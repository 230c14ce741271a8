package analyzer

import (
	"context"
	"sort"
	"strings"

	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"

	"github.com/cespare/xxhash/v2"
)

// ModuleAnalysis is the published result of one pass. It is never mutated
// after Analyze returns; the next pass produces a new one.
type ModuleAnalysis struct {
	Name        string
	Path        string
	Module      *values.Module
	Tree        *ast.Module
	Version     int64
	Iterations  int
	Fingerprint uint64

	analyzer *Analyzer
	pkg      string
}

func (m *ModuleAnalysis) Interpreter() values.Interpreter { return m.analyzer.interp }

// Scope returns the module scope.
func (m *ModuleAnalysis) Scope() *values.Scope { return m.Module.Scope }

// ScopeAt returns the innermost scope containing offset.
func (m *ModuleAnalysis) ScopeAt(offset int) *values.Scope {
	return m.Module.Scope.Innermost(offset)
}

// Eval evaluates expr as if it appeared at offset. Evaluation is read-only:
// values published by the pass are never modified and caches are private to
// the call.
func (m *ModuleAnalysis) Eval(expr ast.Expr, offset int) *values.TypeSet {
	p := newQueryPass(context.Background(), m)
	f := p.queryFrame(m.ScopeAt(offset), offset)
	return p.eval(f, expr)
}

// Lookup returns the types bound to name as seen from offset, following
// flow order in the innermost scope.
func (m *ModuleAnalysis) Lookup(name string, offset int) *values.TypeSet {
	p := newQueryPass(context.Background(), m)
	f := p.queryFrame(m.ScopeAt(offset), offset)
	ts, _ := p.lookupName(f, name, ast.Span{Start: offset, End: offset}, false)
	return ts
}

// VariableAt returns the variable name resolves to from offset, and the
// scope that holds it.
func (m *ModuleAnalysis) VariableAt(name string, offset int) (*values.Variable, *values.Scope) {
	var found *values.Variable
	var holder *values.Scope
	m.ScopeAt(offset).Visible(func(s *values.Scope) bool {
		if v := s.Vars.Get(name); v != nil {
			found, holder = v, s
			return false
		}
		return true
	})
	return found, holder
}

// Fingerprint hashes what a module exposes to importers: exported names and
// the descriptions of their values, class members and signatures included.
// Dependents need re-analysis only when it changes.
func Fingerprint(mod *values.Module) uint64 {
	h := xxhash.New()
	for _, name := range mod.Members().Names() {
		v := mod.Members().Get(name)
		_, _ = h.WriteString(name)
		_, _ = h.WriteString("=")
		for _, d := range describeAll(v.Types) {
			_, _ = h.WriteString(d)
			_, _ = h.WriteString(";")
		}
		_, _ = h.WriteString("\n")
	}
	return h.Sum64()
}

func describeAll(ts *values.TypeSet) []string {
	var out []string
	for _, v := range ts.Values() {
		var sb strings.Builder
		sb.WriteString(values.Description(v))
		switch t := v.(type) {
		case *values.Function:
			for _, s := range values.Signatures(t) {
				sb.WriteString("|" + s.String())
			}
		case *values.Class:
			for _, n := range t.Attrs.Names() {
				sb.WriteString("|" + n + ":" + strings.Join(shortAll(t.Attrs.Get(n).Types), ","))
			}
			for _, n := range t.InstanceAttrs.Names() {
				sb.WriteString("|." + n + ":" + strings.Join(shortAll(t.InstanceAttrs.Get(n).Types), ","))
			}
		}
		out = append(out, sb.String())
	}
	sort.Strings(out)
	return out
}

func shortAll(ts *values.TypeSet) []string {
	var out []string
	for _, v := range ts.Values() {
		out = append(out, values.ShortDescription(v))
	}
	sort.Strings(out)
	return out
}

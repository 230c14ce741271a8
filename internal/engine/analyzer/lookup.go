package analyzer

import (
	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
)

// lookupName resolves name from f. In the starting scope a query frame sees
// only the definitions that precede its offset; with none it keeps looking
// outward. Enclosing scopes are fully visible, then builtins.
func (p *pass) lookupName(f *frame, name string, span ast.Span, record bool) (*values.TypeSet, bool) {
	start := f.scope
	if start.Globals[name] {
		start = start.Module()
	}
	var out *values.TypeSet
	start.Visible(func(s *values.Scope) bool {
		v := s.Vars.Get(name)
		holder := s
		if v == nil && s == f.scope && f.private && f.home != nil {
			v = f.home.Vars.Get(name)
			holder = f.home
		}
		if v == nil || v.Types.IsEmpty() {
			return true
		}
		ts := v.Types
		if f.offset >= 0 && s == start {
			before, ok := v.TypesBefore(f.offset)
			if !ok || before.IsEmpty() {
				return true
			}
			ts = before
		}
		if record && p.scopeWritable(holder) {
			v.AddRef(span)
		}
		out = ts
		return false
	})
	if out != nil {
		return out, true
	}
	if b := p.interp.Builtins(); b != nil {
		if ts := b.Lookup(name); ts.Len() > 0 {
			return ts, true
		}
	}
	return values.UnknownSet(), false
}

// targetScope picks the scope an assignment to name writes into.
func (p *pass) targetScope(f *frame, name string) *values.Scope {
	switch {
	case f.scope.Globals[name]:
		return f.scope.Module()
	case f.scope.Nonlocals[name]:
		for s := f.home.Parent; s != nil; s = s.Parent {
			if s.Kind == values.ScopeFunction && s.Vars.Get(name) != nil {
				return s
			}
		}
	}
	return f.scope
}

func (p *pass) assignName(f *frame, name string, span ast.Span, ts *values.TypeSet) {
	target := p.targetScope(f, name)
	if !p.scopeWritable(target) {
		return
	}
	v, created := target.Vars.GetOrCreate(name)
	changed := v.AddDef(span, ts.OrUnknown(), p.limit) || created
	if target == f.scope && f.private {
		return
	}
	p.grow(changed)
}

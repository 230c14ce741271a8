package values

import (
	"sort"

	"pyintel/internal/engine/ast"
)

// Def is one assignment site of a variable and the types it bound there.
type Def struct {
	Span  ast.Span
	Types *TypeSet
}

// Variable is a name bound in a scope.
type Variable struct {
	Name  string
	Types *TypeSet
	Defs  []*Def
	Refs  []ast.Span
}

func NewVariable(name string) *Variable {
	return &Variable{Name: name, Types: &TypeSet{}}
}

// AddDef unions types into the variable and into the definition at span,
// creating it on first sight. It reports whether anything grew.
func (v *Variable) AddDef(span ast.Span, types *TypeSet, limit int) bool {
	var def *Def
	for _, d := range v.Defs {
		if d.Span.Start == span.Start {
			def = d
			break
		}
	}
	changed := false
	if def == nil {
		def = &Def{Span: span, Types: &TypeSet{}}
		v.Defs = append(v.Defs, def)
		sort.SliceStable(v.Defs, func(i, j int) bool { return v.Defs[i].Span.Start < v.Defs[j].Span.Start })
		changed = true
	}
	if def.Types.UnionLimited(types, limit) {
		changed = true
	}
	if v.Types.UnionLimited(types, limit) {
		changed = true
	}
	return changed
}

// AddTypes unions types without recording a definition site.
func (v *Variable) AddTypes(types *TypeSet, limit int) bool {
	return v.Types.UnionLimited(types, limit)
}

func (v *Variable) AddRef(span ast.Span) {
	for _, r := range v.Refs {
		if r.Start == span.Start {
			return
		}
	}
	v.Refs = append(v.Refs, span)
}

// TypesBefore returns the union of the definitions that start before offset,
// and false when there are none.
func (v *Variable) TypesBefore(offset int) (*TypeSet, bool) {
	out := &TypeSet{}
	found := false
	for _, d := range v.Defs {
		if d.Span.Start >= offset {
			break
		}
		found = true
		out.Union(d.Types)
	}
	return out, found
}

// Namespace is an insertion-ordered name to variable map.
type Namespace struct {
	names []string
	vars  map[string]*Variable
}

func NewNamespace() *Namespace {
	return &Namespace{vars: make(map[string]*Variable)}
}

func (ns *Namespace) Get(name string) *Variable {
	if ns == nil {
		return nil
	}
	return ns.vars[name]
}

// GetOrCreate returns the variable for name, creating it when missing.
func (ns *Namespace) GetOrCreate(name string) (*Variable, bool) {
	if v, ok := ns.vars[name]; ok {
		return v, false
	}
	v := NewVariable(name)
	ns.vars[name] = v
	ns.names = append(ns.names, name)
	return v, true
}

// Set binds name directly to types, replacing any previous binding.
func (ns *Namespace) Set(name string, types *TypeSet) *Variable {
	v, _ := ns.GetOrCreate(name)
	v.Types = types
	return v
}

func (ns *Namespace) Names() []string {
	if ns == nil {
		return nil
	}
	out := make([]string, len(ns.names))
	copy(out, ns.names)
	return out
}

func (ns *Namespace) Len() int {
	if ns == nil {
		return 0
	}
	return len(ns.names)
}

type ScopeKind int

const (
	ScopeModule ScopeKind = iota
	ScopeClass
	ScopeFunction
	ScopeComprehension
)

// Scope is one lexical scope. Parent is a lookup-only link.
type Scope struct {
	Kind     ScopeKind
	Name     string
	Span     ast.Span
	Parent   *Scope
	Children []*Scope
	Vars     *Namespace
	Owner    *Owner
	// Globals and Nonlocals hold names declared by global/nonlocal statements.
	Globals   map[string]bool
	Nonlocals map[string]bool
}

func NewScope(kind ScopeKind, name string, span ast.Span, parent *Scope, owner *Owner) *Scope {
	s := &Scope{
		Kind:   kind,
		Name:   name,
		Span:   span,
		Parent: parent,
		Vars:   NewNamespace(),
		Owner:  owner,
	}
	if parent != nil && parent.Owner == owner {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Innermost returns the deepest descendant scope whose span contains offset.
func (s *Scope) Innermost(offset int) *Scope {
	cur := s
	for {
		var next *Scope
		for _, child := range cur.Children {
			if offset > child.Span.Start && offset <= child.Span.End {
				next = child
			}
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}

// Module returns the outermost scope.
func (s *Scope) Module() *Scope {
	cur := s
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// Visible walks the lookup chain: s itself, then enclosing function and module
// scopes. Class scopes are only visible from their own body.
func (s *Scope) Visible(fn func(*Scope) bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur != s && cur.Kind == ScopeClass {
			continue
		}
		if !fn(cur) {
			return
		}
	}
}

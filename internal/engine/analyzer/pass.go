package analyzer

import (
	"context"
	"log/slog"

	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
)

// pass is the mutable state of one inference run. Every value it creates is
// owned by its token and cached by a stable key, so repeated iterations reuse
// the same values and the fixed point terminates.
type pass struct {
	ctx    context.Context
	a      *Analyzer
	interp values.Interpreter
	owner  *values.Owner
	mod    *values.Module
	tree   *ast.Module
	name   string
	pkg    string
	limit  int

	// readOnly passes serve queries: calls use accumulated returns instead
	// of walking bodies.
	readOnly bool
	changed  bool

	funcs      map[ast.Node]*values.Function
	classes    map[*ast.ClassDef]*values.Class
	compScopes map[*ast.Comprehension]*values.Scope
	containers map[containerKey]*values.Instance
	bound      map[[2]uint64]*values.BoundMethod
	props      map[*values.Function]*values.Property
	generics   map[string]*values.Generic
	gens       map[*values.Function]*values.Instance
	varargs    map[*ast.Param]*values.Instance
	modules    map[string]*values.Module

	contexts map[uint64]*values.TypeSet
	revisits map[*values.Function]int
	active   map[*values.Function]int
	depth    int
}

type containerKey struct {
	node ast.Node
	id   values.BuiltinTypeID
	tag  string
}

// frame is the walking context for one body. scope receives assignments;
// home is the persistent scope nested definitions close over. Call-context
// walks use a private scope that falls back to home for lookups.
type frame struct {
	scope    *values.Scope
	home     *values.Scope
	private  bool
	fn       *values.Function
	cls      *values.Class
	offset   int
	returns  *values.TypeSet
	returned bool
	yields   *values.TypeSet
}

func newPass(ctx context.Context, a *Analyzer, in Input) *pass {
	owner := values.NewOwner()
	p := basePass(ctx, a, owner)
	p.name = in.Name
	p.pkg = packageOf(in.Name, in.IsPackage())
	p.mod = values.NewModule(in.Name, in.Path, owner)
	if in.Tree != nil {
		p.mod.Doc = in.Tree.Doc
		p.mod.Scope.Span = in.Tree.Span
	}
	p.tree = in.Tree
	return p
}

func newQueryPass(ctx context.Context, m *ModuleAnalysis) *pass {
	p := basePass(ctx, m.analyzer, values.NewOwner())
	p.readOnly = true
	p.name = m.Name
	p.pkg = m.pkg
	p.mod = m.Module
	return p
}

func basePass(ctx context.Context, a *Analyzer, owner *values.Owner) *pass {
	return &pass{
		ctx:        ctx,
		a:          a,
		interp:     a.interp,
		owner:      owner,
		limit:      a.cfg.MaxUnionSize,
		funcs:      make(map[ast.Node]*values.Function),
		classes:    make(map[*ast.ClassDef]*values.Class),
		compScopes: make(map[*ast.Comprehension]*values.Scope),
		containers: make(map[containerKey]*values.Instance),
		bound:      make(map[[2]uint64]*values.BoundMethod),
		props:      make(map[*values.Function]*values.Property),
		generics:   make(map[string]*values.Generic),
		gens:       make(map[*values.Function]*values.Instance),
		varargs:    make(map[*ast.Param]*values.Instance),
		modules:    make(map[string]*values.Module),
		contexts:   make(map[uint64]*values.TypeSet),
		revisits:   make(map[*values.Function]int),
		active:     make(map[*values.Function]int),
	}
}

func (p *pass) queryFrame(scope *values.Scope, offset int) *frame {
	f := &frame{scope: scope, home: scope, offset: offset, returns: &values.TypeSet{}, yields: &values.TypeSet{}}
	if scope.Kind == values.ScopeClass {
		f.cls = p.classOfScope(scope)
	}
	return f
}

// classOfScope finds the class whose body scope is s by looking it up in the
// enclosing scope.
func (p *pass) classOfScope(s *values.Scope) *values.Class {
	if s.Parent == nil {
		return nil
	}
	v := s.Parent.Vars.Get(s.Name)
	if v == nil {
		return nil
	}
	for _, val := range v.Types.Values() {
		if c, ok := val.(*values.Class); ok && c.Scope == s {
			return c
		}
	}
	return nil
}

// run iterates the module body until nothing persistent grows or the
// iteration bound is reached. It returns the number of iterations.
func (p *pass) run() int {
	if p.tree == nil {
		return 0
	}
	i := 0
	changed := true
	for changed && i < p.a.cfg.MaxIterations && p.ctx.Err() == nil {
		i++
		changed = p.step()
	}
	if changed {
		slog.Debug("analysis stopped before fixed point", "module", p.name, "iterations", i)
	}
	p.fillEmpty(p.mod.Scope)
	return i
}

// step walks the module body once and reports whether anything persistent
// grew. Call contexts and revisit counters are per iteration.
func (p *pass) step() bool {
	p.changed = false
	p.contexts = make(map[uint64]*values.TypeSet)
	p.revisits = make(map[*values.Function]int)
	f := &frame{scope: p.mod.Scope, home: p.mod.Scope, offset: -1, returns: &values.TypeSet{}, yields: &values.TypeSet{}}
	p.walkBody(f, p.tree.Body)
	return p.changed
}

// fillEmpty enforces that no published binding has an empty type set.
func (p *pass) fillEmpty(s *values.Scope) {
	for _, n := range s.Vars.Names() {
		v := s.Vars.Get(n)
		if v.Types.IsEmpty() {
			v.Types.Add(values.Unknown)
		}
		for _, d := range v.Defs {
			if d.Types.IsEmpty() {
				d.Types.Add(values.Unknown)
			}
		}
		for _, val := range v.Types.Values() {
			if c, ok := val.(*values.Class); ok && p.writable(c) {
				p.fillAttrs(c.InstanceAttrs)
			}
		}
	}
	for _, c := range s.Children {
		p.fillEmpty(c)
	}
}

func (p *pass) fillAttrs(ns *values.Namespace) {
	for _, n := range ns.Names() {
		v := ns.Get(n)
		if v.Types.IsEmpty() {
			v.Types.Add(values.Unknown)
		}
	}
}

func (p *pass) writable(v values.Value) bool {
	return v != nil && v.Owner().Writable(p.owner)
}

func (p *pass) scopeWritable(s *values.Scope) bool {
	return s != nil && s.Owner.Writable(p.owner)
}

// grow records growth of persistent state, which requires another
// iteration. Private call-context scopes never report here.
func (p *pass) grow(changed bool) {
	if changed {
		p.changed = true
	}
}

func (p *pass) builtin(id values.BuiltinTypeID) *values.Class {
	return p.interp.BuiltinType(id)
}

func (p *pass) instanceOf(id values.BuiltinTypeID) *values.TypeSet {
	if c := p.builtin(id); c != nil {
		return values.NewTypeSet(c.Instance())
	}
	return values.UnknownSet()
}

// container returns the pass-owned container instance for node.
func (p *pass) container(node ast.Node, id values.BuiltinTypeID, tag string) *values.Instance {
	key := containerKey{node: node, id: id, tag: tag}
	if c, ok := p.containers[key]; ok {
		return c
	}
	cls := p.builtin(id)
	c := values.NewContainer(cls, p.owner)
	p.containers[key] = c
	return c
}

func (p *pass) nativeContainer(node ast.Node, cls *values.Class, tag string) *values.Instance {
	key := containerKey{node: node, tag: cls.Name + tag}
	if c, ok := p.containers[key]; ok {
		return c
	}
	c := values.NewContainer(cls, p.owner)
	p.containers[key] = c
	return c
}

func (p *pass) addElements(f *frame, inst *values.Instance, ts *values.TypeSet) {
	if !p.writable(inst) || !inst.IsContainer() {
		return
	}
	p.grow(inst.Elements.UnionLimited(ts, p.limit))
}

func (p *pass) addKeys(f *frame, inst *values.Instance, ts *values.TypeSet) {
	if !p.writable(inst) || !inst.IsContainer() {
		return
	}
	p.grow(inst.Keys.UnionLimited(ts, p.limit))
}

func (p *pass) setItem(f *frame, inst *values.Instance, i int, ts *values.TypeSet) {
	if !p.writable(inst) {
		return
	}
	for len(inst.Items) <= i {
		inst.Items = append(inst.Items, &values.TypeSet{})
		p.grow(true)
	}
	p.grow(inst.Items[i].UnionLimited(ts, p.limit))
}

func (p *pass) boundMethod(fn *values.Function, self values.Value) *values.BoundMethod {
	key := [2]uint64{fn.ID(), self.ID()}
	if b, ok := p.bound[key]; ok {
		return b
	}
	b := values.NewBoundMethod(fn, self, p.owner)
	p.bound[key] = b
	return b
}

func (p *pass) property(fn *values.Function) *values.Property {
	if pr, ok := p.props[fn]; ok {
		return pr
	}
	pr := values.NewProperty(fn, p.owner)
	p.props[fn] = pr
	return pr
}

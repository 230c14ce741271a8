package analyzer

import (
	"fmt"
	"log/slog"
	"strings"

	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
	"pyintel/internal/shared/observability"
)

func (p *pass) walkBody(f *frame, body []ast.Stmt) {
	for _, s := range body {
		if p.ctx.Err() != nil {
			return
		}
		p.walkStmt(f, s)
	}
}

// walkStmt analyzes one statement. A panic degrades the statement's targets
// to Unknown instead of aborting the pass.
func (p *pass) walkStmt(f *frame, s ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecoveredPanicsTotal.Inc()
			slog.Error("recovered panic while analyzing statement",
				"module", p.name,
				"offset", s.Range().Start,
				"panic", fmt.Sprint(r))
			p.degrade(f, s)
		}
	}()

	switch s := s.(type) {
	case *ast.ExprStmt:
		p.eval(f, s.Value)
	case *ast.Assign:
		p.walkAssign(f, s)
	case *ast.AugAssign:
		left := p.eval(f, s.Target)
		right := p.eval(f, s.Value)
		p.assign(f, s.Target, p.binOp(f, s, s.Op, left, right))
	case *ast.FuncDef:
		p.walkFuncDef(f, s)
	case *ast.ClassDef:
		p.walkClassDef(f, s)
	case *ast.Return:
		if s.Value != nil {
			f.returns.UnionLimited(p.eval(f, s.Value), p.limit)
			f.returned = true
		}
	case *ast.If:
		p.eval(f, s.Test)
		p.walkBody(f, s.Body)
		p.walkBody(f, s.Else)
	case *ast.While:
		p.eval(f, s.Test)
		p.walkBody(f, s.Body)
		p.walkBody(f, s.Else)
	case *ast.For:
		p.assign(f, s.Target, p.iterate(f, s.Iter, p.eval(f, s.Iter)))
		p.walkBody(f, s.Body)
		p.walkBody(f, s.Else)
	case *ast.Try:
		p.walkBody(f, s.Body)
		for _, h := range s.Handlers {
			p.walkHandler(f, h)
		}
		p.walkBody(f, s.Else)
		p.walkBody(f, s.Finally)
	case *ast.With:
		for _, item := range s.Items {
			ctx := p.eval(f, item.Context)
			if item.Target != nil {
				p.assign(f, item.Target, p.enter(f, item, ctx))
			}
		}
		p.walkBody(f, s.Body)
	case *ast.Import:
		p.walkImport(f, s)
	case *ast.ImportFrom:
		p.walkImportFrom(f, s)
	case *ast.Raise:
		if s.Exc != nil {
			p.eval(f, s.Exc)
		}
	case *ast.Delete:
		for _, t := range s.Targets {
			p.eval(f, t)
		}
	case *ast.Global, *ast.Nonlocal, *ast.Simple, *ast.BadStmt:
	}
}

// degrade binds every name target of s to Unknown.
func (p *pass) degrade(f *frame, s ast.Stmt) {
	defer func() { _ = recover() }()
	var targets []ast.Expr
	switch s := s.(type) {
	case *ast.Assign:
		targets = s.Targets
	case *ast.AugAssign:
		targets = []ast.Expr{s.Target}
	case *ast.For:
		targets = []ast.Expr{s.Target}
	case *ast.FuncDef:
		p.assignName(f, s.Name, s.NameSpan, values.UnknownSet())
	case *ast.ClassDef:
		p.assignName(f, s.Name, s.NameSpan, values.UnknownSet())
	case *ast.Import:
		for _, a := range s.Names {
			name := a.AsName
			if name == "" {
				name, _, _ = strings.Cut(a.Name, ".")
			}
			p.assignName(f, name, a.NameSpan, values.UnknownSet())
		}
	case *ast.ImportFrom:
		for _, a := range s.Names {
			p.assignName(f, a.Bound(), a.NameSpan, values.UnknownSet())
		}
	}
	for _, t := range targets {
		ast.Inspect(t, func(n ast.Node) bool {
			if name, ok := n.(*ast.Name); ok {
				p.assignName(f, name.ID, name.Span, values.UnknownSet())
			}
			return true
		})
	}
}

func (p *pass) walkAssign(f *frame, s *ast.Assign) {
	var ts *values.TypeSet
	switch {
	case s.Value != nil:
		ts = p.eval(f, s.Value)
	case s.Annotation != nil:
		ts = p.instancesOf(p.eval(f, s.Annotation))
	default:
		return
	}
	if s.Value != nil && s.Annotation != nil {
		p.eval(f, s.Annotation)
	}
	for _, t := range s.Targets {
		p.assign(f, t, ts)
	}
}

// instancesOf converts classes named by an annotation into their instances.
func (p *pass) instancesOf(ts *values.TypeSet) *values.TypeSet {
	out := &values.TypeSet{}
	for _, v := range ts.Values() {
		switch t := v.(type) {
		case *values.Class:
			out.Add(t.Instance())
		case *values.ForeignType:
			out.Add(t.Instance())
		case *values.Generic:
			out.Add(t.Type.Instance())
		}
	}
	return out.OrUnknown()
}

// assign binds ts to an assignment target.
func (p *pass) assign(f *frame, target ast.Expr, ts *values.TypeSet) {
	switch t := target.(type) {
	case *ast.Name:
		p.assignName(f, t.ID, t.Span, ts)
	case *ast.Attribute:
		for _, v := range p.eval(f, t.Value).Values() {
			p.setAttr(f, v, t.Attr, t.AttrSpan, ts)
		}
	case *ast.Subscript:
		obj := p.eval(f, t.Value)
		var keys *values.TypeSet
		for _, idx := range t.Index {
			keys = p.eval(f, idx)
		}
		for _, v := range obj.Values() {
			inst, ok := v.(*values.Instance)
			if !ok || !inst.IsContainer() {
				continue
			}
			if inst.Class.Builtin == values.TypeDict && keys != nil {
				p.addKeys(f, inst, keys)
			}
			p.addElements(f, inst, ts)
		}
	case *ast.Tuple:
		p.unpack(f, t.Elts, ts)
	case *ast.List:
		p.unpack(f, t.Elts, ts)
	case *ast.Starred:
		lst := p.container(t, values.TypeList, "")
		p.addElements(f, lst, ts)
		p.assign(f, t.Value, values.NewTypeSet(lst))
	}
}

// unpack distributes ts over a tuple or list target. Tuples with known
// positional items unpack by position; everything else by iteration.
func (p *pass) unpack(f *frame, elts []ast.Expr, ts *values.TypeSet) {
	hasStar := false
	for _, e := range elts {
		if _, ok := e.(*ast.Starred); ok {
			hasStar = true
		}
	}
	per := make([]*values.TypeSet, len(elts))
	for i := range per {
		per[i] = &values.TypeSet{}
	}
	for _, v := range ts.Values() {
		if inst, ok := v.(*values.Instance); ok && !hasStar && len(inst.Items) == len(elts) {
			for i, it := range inst.Items {
				per[i].Union(it)
			}
			continue
		}
		elems := p.iterateValue(f, nil, v)
		for i := range per {
			per[i].Union(elems)
		}
	}
	for i, e := range elts {
		if st, ok := e.(*ast.Starred); ok {
			lst := p.container(st, values.TypeList, "")
			p.addElements(f, lst, per[i].OrUnknown())
			p.assign(f, st.Value, values.NewTypeSet(lst))
			continue
		}
		p.assign(f, e, per[i].OrUnknown())
	}
}

// setAttr writes an attribute on a pass-owned value. Instances feed the
// instance attribute table of their class.
func (p *pass) setAttr(f *frame, v values.Value, name string, span ast.Span, ts *values.TypeSet) {
	var ns *values.Namespace
	switch t := v.(type) {
	case *values.Instance:
		if t.Class == nil || !p.writable(t.Class) {
			return
		}
		ns = t.Class.InstanceAttrs
	case *values.Class:
		if !p.writable(t) {
			return
		}
		ns = t.Attrs
	case *values.Module:
		if !p.writable(t) {
			return
		}
		ns = t.Members()
	default:
		return
	}
	v2, created := ns.GetOrCreate(name)
	p.grow(v2.AddDef(span, ts.OrUnknown(), p.limit) || created)
}

func (p *pass) walkHandler(f *frame, h *ast.ExceptHandler) {
	var exc *values.TypeSet
	if h.Type != nil {
		exc = &values.TypeSet{}
		types := p.eval(f, h.Type)
		for _, v := range types.Values() {
			if inst, ok := v.(*values.Instance); ok && inst.Class != nil && inst.Class.Builtin == values.TypeTuple {
				for _, it := range inst.Items {
					exc.Union(p.instancesOf(it))
				}
				exc.Union(p.instancesOf(inst.Elements))
				continue
			}
			exc.Union(p.instancesOf(values.NewTypeSet(v)))
		}
	}
	if exc == nil || exc.IsUnknown() || exc.IsEmpty() {
		exc = p.instanceOf(values.TypeException)
	}
	if h.Name != "" {
		p.assignName(f, h.Name, h.NameSpan, exc)
	}
	p.walkBody(f, h.Body)
}

// enter evaluates the value a with-statement binds: the result of
// __enter__, or the context manager itself when it has none.
func (p *pass) enter(f *frame, item *ast.WithItem, ctx *values.TypeSet) *values.TypeSet {
	out := &values.TypeSet{}
	for _, v := range ctx.Values() {
		attr := p.getAttr(f, v, "__enter__")
		if attr.IsEmpty() {
			out.Add(v)
			continue
		}
		out.Union(p.callValues(f, item, attr, callArgs{}))
	}
	return out.OrUnknown()
}

// walkFuncDef creates or reuses the function for s, evaluates decorators
// and binds the result. The body is walked generically outside call-context
// walks.
func (p *pass) walkFuncDef(f *frame, s *ast.FuncDef) {
	fn := p.function(f, s)
	for _, prm := range s.Params {
		if prm.Annotation != nil {
			p.eval(f, prm.Annotation)
		}
	}
	if s.Returns != nil {
		p.eval(f, s.Returns)
	}
	for i, prm := range s.Params {
		if prm.Default == nil || i >= len(fn.Params) {
			continue
		}
		def := p.eval(f, prm.Default)
		if p.writable(fn) {
			if fn.Params[i].Default == nil {
				fn.Params[i].Default = &values.TypeSet{}
			}
			p.grow(fn.Params[i].Default.UnionLimited(def, p.limit))
		}
	}

	bound := values.NewTypeSet(fn)
	for i := len(s.Decorators) - 1; i >= 0; i-- {
		bound = p.decorate(f, s.Decorators[i], fn, bound)
	}
	p.assignName(f, s.Name, s.NameSpan, bound)

	if !f.private && p.writable(fn) {
		p.walkFunction(fn)
	}
}

// decorate applies one decorator to the current binding.
func (p *pass) decorate(f *frame, dec ast.Expr, fn *values.Function, cur *values.TypeSet) *values.TypeSet {
	if name, ok := dec.(*ast.Name); ok {
		switch name.ID {
		case "property":
			p.lookupName(f, name.ID, name.Span, true)
			return values.NewTypeSet(p.property(fn))
		case "staticmethod":
			p.lookupName(f, name.ID, name.Span, true)
			if p.writable(fn) {
				fn.Static = true
			}
			return cur
		case "classmethod":
			p.lookupName(f, name.ID, name.Span, true)
			if p.writable(fn) {
				fn.ClassMethod = true
			}
			return cur
		}
	}
	if attr, ok := dec.(*ast.Attribute); ok {
		switch attr.Attr {
		case "setter", "getter", "deleter":
			props := &values.TypeSet{}
			for _, v := range p.eval(f, attr.Value).Values() {
				if _, ok := v.(*values.Property); ok {
					props.Add(v)
				}
			}
			if !props.IsEmpty() {
				return props
			}
		}
	}
	decs := p.eval(f, dec)
	res := p.callValues(f, dec, decs, callArgs{pos: []*values.TypeSet{cur}})
	if res.IsUnknown() {
		return cur
	}
	return res
}

// function returns the pass-owned function for s, creating it on first
// sight.
func (p *pass) function(f *frame, s *ast.FuncDef) *values.Function {
	if fn, ok := p.funcs[s]; ok {
		return fn
	}
	fn := values.NewFunction(s.Name, p.name, p.owner)
	fn.Doc = s.Doc
	fn.Def = s
	fn.Closure = f.home
	if f.home.Kind == values.ScopeClass {
		fn.Class = f.cls
	}
	fn.Locals = values.NewScope(values.ScopeFunction, s.Name, s.Span, f.home, p.owner)
	fn.Locals.Globals, fn.Locals.Nonlocals = declarations(s.Body)
	fn.Generator = containsYield(s.Body)
	for _, prm := range s.Params {
		fn.Params = append(fn.Params, &values.Param{
			Name:        prm.Name,
			Kind:        prm.Kind,
			DefaultText: prm.DefaultText,
			Types:       &values.TypeSet{},
		})
	}
	p.funcs[s] = fn
	return fn
}

// walkFunction walks a function body with every argument type seen so far,
// writing into the function's persistent scope.
func (p *pass) walkFunction(fn *values.Function) {
	if p.active[fn] > 0 {
		return
	}
	p.active[fn]++
	defer func() { p.active[fn]-- }()

	f := &frame{
		scope:   fn.Locals,
		home:    fn.Locals,
		fn:      fn,
		cls:     fn.Class,
		offset:  -1,
		returns: &values.TypeSet{},
		yields:  &values.TypeSet{},
	}
	for i, prm := range fn.Params {
		p.assignName(f, prm.Name, fn.Def.Params[i].Span, p.paramTypes(f, fn, i, nil))
	}
	p.walkBody(f, fn.Def.Body)
	p.finishReturns(f, fn)
}

// paramTypes is what parameter i holds in a generic walk: the receiver for
// methods, otherwise defaults and every argument seen at call sites.
func (p *pass) paramTypes(f *frame, fn *values.Function, i int, self values.Value) *values.TypeSet {
	prm := fn.Params[i]
	if i == 0 && fn.Class != nil && !fn.Static && prm.Kind == ast.ParamNormal {
		if self != nil {
			return values.NewTypeSet(self)
		}
		if fn.ClassMethod {
			return values.NewTypeSet(fn.Class)
		}
		return values.NewTypeSet(fn.Class.Instance())
	}
	switch prm.Kind {
	case ast.ParamVarArgs:
		tup := p.varargsContainer(fn.Def.Params[i], values.TypeTuple)
		p.addElements(f, tup, prm.Types)
		return values.NewTypeSet(tup)
	case ast.ParamKwArgs:
		d := p.varargsContainer(fn.Def.Params[i], values.TypeDict)
		p.addKeys(f, d, p.instanceOf(values.TypeStr))
		p.addElements(f, d, prm.Types)
		return values.NewTypeSet(d)
	}
	out := &values.TypeSet{}
	out.Union(prm.Default)
	out.Union(prm.Types)
	return out.OrUnknown()
}

func (p *pass) varargsContainer(prm *ast.Param, id values.BuiltinTypeID) *values.Instance {
	if c, ok := p.varargs[prm]; ok {
		return c
	}
	c := values.NewContainer(p.builtin(id), p.owner)
	p.varargs[prm] = c
	return c
}

// finishReturns folds a walk's returns into the function. Functions that
// never return a value return None; generators return their generator.
func (p *pass) finishReturns(f *frame, fn *values.Function) *values.TypeSet {
	res := f.returns.Clone()
	if fn.Generator {
		gen := p.generator(fn)
		p.addElements(f, gen, f.yields)
		res = values.NewTypeSet(gen)
	} else if !f.returned {
		res.Union(p.instanceOf(values.TypeNone))
	}
	if p.writable(fn) {
		p.grow(fn.Returns.UnionLimited(res, p.limit))
	}
	return res.OrUnknown()
}

func (p *pass) generator(fn *values.Function) *values.Instance {
	if g, ok := p.gens[fn]; ok {
		return g
	}
	g := values.NewContainer(p.builtin(values.TypeGenerator), p.owner)
	p.gens[fn] = g
	return g
}

func (p *pass) walkClassDef(f *frame, s *ast.ClassDef) {
	cls, ok := p.classes[s]
	if !ok {
		cls = values.NewClass(s.Name, p.name, p.owner)
		cls.Doc = s.Doc
		cls.NameSpan = s.NameSpan
		cls.Scope = values.NewScope(values.ScopeClass, s.Name, s.Span, f.home, p.owner)
		cls.Scope.Vars = cls.Attrs
		p.classes[s] = cls
	}

	var bases []values.Value
	seen := map[uint64]bool{}
	for _, arg := range s.Bases {
		ts := p.eval(f, arg.Value)
		if arg.Kind == ast.ArgKeyword {
			if arg.Name == "metaclass" {
				for _, v := range ts.Values() {
					if _, ok := v.(*values.Class); ok && p.writable(cls) {
						cls.Metaclass = v
					}
				}
			}
			continue
		}
		for _, v := range ts.Values() {
			switch v.(type) {
			case *values.Class, *values.ForeignType:
				if v != values.Value(cls) && !seen[v.ID()] {
					seen[v.ID()] = true
					bases = append(bases, v)
				}
			case *values.Generic:
				ft := v.(*values.Generic).Type
				if !seen[ft.ID()] {
					seen[ft.ID()] = true
					bases = append(bases, ft)
				}
			}
		}
	}
	if len(bases) == 0 {
		if obj := p.builtin(values.TypeObject); obj != nil {
			bases = []values.Value{obj}
		}
	}
	if p.writable(cls) {
		if !sameValues(cls.Bases, bases) {
			cls.Bases = bases
			p.grow(true)
		}
		if cls.Metaclass == nil {
			cls.Metaclass = p.builtin(values.TypeType)
		}
	}

	cf := &frame{
		scope:   cls.Scope,
		home:    cls.Scope,
		cls:     cls,
		offset:  f.offset,
		private: false,
		returns: &values.TypeSet{},
		yields:  &values.TypeSet{},
	}
	if !f.private {
		p.walkBody(cf, s.Body)
	}

	bound := values.NewTypeSet(cls)
	for i := len(s.Decorators) - 1; i >= 0; i-- {
		decs := p.eval(f, s.Decorators[i])
		res := p.callValues(f, s.Decorators[i], decs, callArgs{pos: []*values.TypeSet{bound}})
		if !res.IsUnknown() {
			bound = res
		}
	}
	p.assignName(f, s.Name, s.NameSpan, bound)
}

func sameValues(a, b []values.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// declarations collects the names a function body declares global or
// nonlocal, ignoring nested definitions.
func declarations(body []ast.Stmt) (globals, nonlocals map[string]bool) {
	globals, nonlocals = map[string]bool{}, map[string]bool{}
	for _, s := range body {
		ast.Inspect(s, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.FuncDef, *ast.ClassDef, *ast.Lambda:
				return false
			case *ast.Global:
				for _, name := range n.Names {
					globals[name] = true
				}
			case *ast.Nonlocal:
				for _, name := range n.Names {
					nonlocals[name] = true
				}
			}
			return true
		})
	}
	return globals, nonlocals
}

func containsYield(body []ast.Stmt) bool {
	found := false
	for _, s := range body {
		ast.Inspect(s, func(n ast.Node) bool {
			if found {
				return false
			}
			switch n.(type) {
			case *ast.FuncDef, *ast.ClassDef, *ast.Lambda:
				return false
			case *ast.Yield:
				found = true
				return false
			}
			return true
		})
	}
	return found
}

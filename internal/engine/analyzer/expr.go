package analyzer

import (
	"strconv"

	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
)

// eval returns the types of e. The result is never empty.
func (p *pass) eval(f *frame, e ast.Expr) *values.TypeSet {
	if e == nil {
		return values.UnknownSet()
	}
	return p.evalExpr(f, e).OrUnknown()
}

func (p *pass) evalExpr(f *frame, e ast.Expr) *values.TypeSet {
	switch e := e.(type) {
	case *ast.Name:
		ts, _ := p.lookupName(f, e.ID, e.Span, true)
		return ts
	case *ast.Constant:
		return p.constant(e)
	case *ast.Attribute:
		obj := p.eval(f, e.Value)
		out := &values.TypeSet{}
		for _, v := range obj.Values() {
			out.Union(p.getAttr(f, v, e.Attr))
		}
		return out
	case *ast.Call:
		return p.evalCall(f, e)
	case *ast.Subscript:
		return p.subscript(f, e)
	case *ast.BinOp:
		return p.binOp(f, e, e.Op, p.eval(f, e.Left), p.eval(f, e.Right))
	case *ast.BoolOp:
		out := &values.TypeSet{}
		for _, v := range e.Values {
			out.Union(p.eval(f, v))
		}
		return out
	case *ast.Compare:
		p.eval(f, e.Left)
		for _, c := range e.Comparators {
			p.eval(f, c)
		}
		return p.instanceOf(values.TypeBool)
	case *ast.UnaryOp:
		operand := p.eval(f, e.Operand)
		if e.Op == "not" {
			return p.instanceOf(values.TypeBool)
		}
		return p.unaryResult(operand)
	case *ast.IfExp:
		p.eval(f, e.Test)
		out := p.eval(f, e.Body).Clone()
		out.Union(p.eval(f, e.Else))
		return out
	case *ast.Lambda:
		return values.NewTypeSet(p.lambda(f, e))
	case *ast.List:
		return p.sequence(f, e, values.TypeList, e.Elts)
	case *ast.Set:
		return p.sequence(f, e, values.TypeSetID, e.Elts)
	case *ast.Tuple:
		return p.sequence(f, e, values.TypeTuple, e.Elts)
	case *ast.Dict:
		d := p.container(e, values.TypeDict, "")
		for i, k := range e.Keys {
			val := p.eval(f, e.Values[i])
			if k == nil {
				for _, sv := range val.Values() {
					if si, ok := sv.(*values.Instance); ok && si.IsContainer() {
						p.addKeys(f, d, si.Keys)
						p.addElements(f, d, si.Elements)
					}
				}
				continue
			}
			p.addKeys(f, d, p.eval(f, k))
			p.addElements(f, d, val)
		}
		return values.NewTypeSet(d)
	case *ast.Comprehension:
		return p.comprehension(f, e)
	case *ast.Starred:
		return p.eval(f, e.Value)
	case *ast.Yield:
		if e.Value != nil {
			val := p.eval(f, e.Value)
			if e.From {
				val = p.iterate(f, e.Value, val)
			}
			f.yields.UnionLimited(val, p.limit)
		} else {
			f.yields.Union(p.instanceOf(values.TypeNone))
		}
		return values.UnknownSet()
	case *ast.Await:
		return p.eval(f, e.Value)
	case *ast.NamedExpr:
		val := p.eval(f, e.Value)
		p.assignName(f, e.Target.ID, e.Target.Span, val)
		return val
	case *ast.Slice:
		p.eval(f, e.Lower)
		p.eval(f, e.Upper)
		p.eval(f, e.Step)
		return values.UnknownSet()
	}
	return values.UnknownSet()
}

func (p *pass) constant(c *ast.Constant) *values.TypeSet {
	switch c.Kind {
	case ast.ConstNone:
		return p.instanceOf(values.TypeNone)
	case ast.ConstBool:
		return p.instanceOf(values.TypeBool)
	case ast.ConstInt:
		return p.instanceOf(values.TypeInt)
	case ast.ConstFloat:
		return p.instanceOf(values.TypeFloat)
	case ast.ConstComplex:
		return p.instanceOf(values.TypeComplex)
	case ast.ConstStr:
		return p.instanceOf(values.TypeStr)
	case ast.ConstBytes:
		return p.instanceOf(values.TypeBytes)
	}
	return p.instanceOf(values.TypeObject)
}

// sequence builds the container for a list, set or tuple display. Tuples
// without starred elements also track positional items.
func (p *pass) sequence(f *frame, node ast.Expr, id values.BuiltinTypeID, elts []ast.Expr) *values.TypeSet {
	c := p.container(node, id, "")
	positional := id == values.TypeTuple
	for _, e := range elts {
		if _, ok := e.(*ast.Starred); ok {
			positional = false
		}
	}
	for i, e := range elts {
		if st, ok := e.(*ast.Starred); ok {
			p.addElements(f, c, p.iterate(f, st.Value, p.eval(f, st.Value)))
			continue
		}
		val := p.eval(f, e)
		p.addElements(f, c, val)
		if positional {
			p.setItem(f, c, i, val)
		}
	}
	return values.NewTypeSet(c)
}

// comprehension evaluates in its own persistent scope.
func (p *pass) comprehension(f *frame, e *ast.Comprehension) *values.TypeSet {
	scope, ok := p.compScopes[e]
	if !ok {
		home := f.home
		scope = values.NewScope(values.ScopeComprehension, "", e.Span, home, p.owner)
		if !p.scopeWritable(home) {
			// Queries evaluate against published scopes; keep the
			// comprehension scope detached from them.
			scope.Parent = f.scope
		}
		p.compScopes[e] = scope
	}
	cf := &frame{scope: scope, home: scope, fn: f.fn, cls: f.cls, offset: -1, private: f.private, returns: f.returns, yields: f.yields}
	for i, cfor := range e.Fors {
		src := f
		if i > 0 {
			src = cf
		}
		p.assign(cf, cfor.Target, p.iterate(src, cfor.Iter, p.eval(src, cfor.Iter)))
		for _, cond := range cfor.Ifs {
			p.eval(cf, cond)
		}
	}
	var c *values.Instance
	switch e.Kind {
	case ast.CompSet:
		c = p.container(e, values.TypeSetID, "")
	case ast.CompDict:
		c = p.container(e, values.TypeDict, "")
		p.addKeys(f, c, p.eval(cf, e.Key))
	case ast.CompGenerator:
		c = p.container(e, values.TypeGenerator, "")
	default:
		c = p.container(e, values.TypeList, "")
	}
	p.addElements(f, c, p.eval(cf, e.Elt))
	return values.NewTypeSet(c)
}

// lambda returns the function for a lambda expression and folds the body's
// type into its returns using every argument type seen so far.
func (p *pass) lambda(f *frame, e *ast.Lambda) *values.Function {
	fn, ok := p.funcs[e]
	if !ok {
		fn = values.NewFunction("lambda", p.name, p.owner)
		fn.Lambda = true
		fn.LambdaDef = e
		fn.Closure = f.home
		fn.Locals = values.NewScope(values.ScopeFunction, "lambda", e.Span, f.home, p.owner)
		for _, prm := range e.Params {
			fn.Params = append(fn.Params, &values.Param{
				Name: prm.Name, Kind: prm.Kind, DefaultText: prm.DefaultText, Types: &values.TypeSet{},
			})
		}
		p.funcs[e] = fn
	}
	if !p.writable(fn) || f.private || p.active[fn] > 0 {
		return fn
	}
	p.active[fn]++
	defer func() { p.active[fn]-- }()
	lf := &frame{scope: fn.Locals, home: fn.Locals, fn: fn, cls: f.cls, offset: -1, returns: &values.TypeSet{}, yields: &values.TypeSet{}}
	for i, prm := range e.Params {
		if prm.Default != nil {
			if fn.Params[i].Default == nil {
				fn.Params[i].Default = &values.TypeSet{}
			}
			p.grow(fn.Params[i].Default.UnionLimited(p.eval(f, prm.Default), p.limit))
		}
		p.assignName(lf, prm.Name, prm.Span, p.lambdaParam(lf, fn, i))
	}
	p.grow(fn.Returns.UnionLimited(p.eval(lf, e.Body), p.limit))
	return fn
}

func (p *pass) lambdaParam(f *frame, fn *values.Function, i int) *values.TypeSet {
	prm := fn.Params[i]
	switch prm.Kind {
	case ast.ParamVarArgs:
		tup := p.varargsContainer(fn.LambdaDef.Params[i], values.TypeTuple)
		p.addElements(f, tup, prm.Types)
		return values.NewTypeSet(tup)
	case ast.ParamKwArgs:
		d := p.varargsContainer(fn.LambdaDef.Params[i], values.TypeDict)
		p.addElements(f, d, prm.Types)
		return values.NewTypeSet(d)
	}
	out := &values.TypeSet{}
	out.Union(prm.Default)
	out.Union(prm.Types)
	return out.OrUnknown()
}

// subscript handles container indexing, generic instantiation and
// __getitem__.
func (p *pass) subscript(f *frame, e *ast.Subscript) *values.TypeSet {
	obj := p.eval(f, e.Value)
	idx := make([]*values.TypeSet, len(e.Index))
	for i, ix := range e.Index {
		idx[i] = p.eval(f, ix)
	}
	isSlice := len(e.Index) == 1
	if isSlice {
		_, isSlice = e.Index[0].(*ast.Slice)
	}
	out := &values.TypeSet{}
	for _, v := range obj.Values() {
		switch t := v.(type) {
		case *values.Instance:
			out.Union(p.index(f, e, t, idx, isSlice))
		case *values.ForeignType:
			if len(t.TypeParams) > 0 {
				out.Union(p.instantiate(t, idx))
			} else {
				out.Add(t)
			}
		case *values.Class:
			// typing-style parameterization: list[int] is still list.
			out.Add(t)
		}
	}
	return out
}

func (p *pass) index(f *frame, e *ast.Subscript, inst *values.Instance, idx []*values.TypeSet, isSlice bool) *values.TypeSet {
	if inst.Class == nil {
		return nil
	}
	switch inst.Class.Builtin {
	case values.TypeStr, values.TypeBytes:
		if inst.Class.Builtin == values.TypeBytes && !isSlice {
			return p.instanceOf(values.TypeInt)
		}
		return values.NewTypeSet(inst)
	case values.TypeList, values.TypeTuple:
		if isSlice {
			return values.NewTypeSet(inst)
		}
		if inst.Class.Builtin == values.TypeTuple && len(e.Index) == 1 {
			if c, ok := e.Index[0].(*ast.Constant); ok && c.Kind == ast.ConstInt {
				if i, err := strconv.Atoi(c.Text); err == nil && i >= 0 && i < len(inst.Items) {
					return inst.Items[i]
				}
			}
		}
		if inst.IsContainer() {
			out := inst.Elements.Clone()
			if inst.Class.Builtin == values.TypeTuple {
				for _, it := range inst.Items {
					out.Union(it)
				}
			}
			return out
		}
		return nil
	case values.TypeDict:
		if inst.IsContainer() {
			return inst.Elements
		}
		return nil
	}
	getitem := p.getAttr(f, inst, "__getitem__")
	if getitem.IsEmpty() {
		return nil
	}
	return p.callValues(f, e, getitem, callArgs{pos: idx})
}

// instantiate fans a generic type out over the cross product of its
// argument type sets, one Generic per combination.
func (p *pass) instantiate(t *values.ForeignType, idx []*values.TypeSet) *values.TypeSet {
	out := &values.TypeSet{}
	for _, combo := range values.CrossProduct(idx) {
		key := strconv.FormatUint(t.ID(), 10)
		for _, a := range combo {
			key += ":" + strconv.FormatUint(a.ID(), 10)
		}
		g, ok := p.generics[key]
		if !ok {
			g = values.NewGeneric(t, combo, p.owner)
			p.generics[key] = g
		}
		out.Add(g)
	}
	return out
}

package analyzer

import (
	"encoding/binary"
	"sort"

	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
	"pyintel/internal/shared/observability"

	"github.com/cespare/xxhash/v2"
)

// callArgs holds evaluated call arguments.
type callArgs struct {
	pos   []*values.TypeSet
	kw    map[string]*values.TypeSet
	star  *values.TypeSet
	dstar *values.TypeSet
}

func (p *pass) evalCall(f *frame, e *ast.Call) *values.TypeSet {
	callee := p.eval(f, e.Func)
	var args callArgs
	for _, a := range e.Args {
		val := p.eval(f, a.Value)
		switch a.Kind {
		case ast.ArgKeyword:
			if args.kw == nil {
				args.kw = map[string]*values.TypeSet{}
			}
			args.kw[a.Name] = val
		case ast.ArgStar:
			if args.star == nil {
				args.star = &values.TypeSet{}
			}
			args.star.Union(p.iterate(f, a.Value, val))
		case ast.ArgDoubleStar:
			if args.dstar == nil {
				args.dstar = &values.TypeSet{}
			}
			for _, v := range val.Values() {
				if inst, ok := v.(*values.Instance); ok && inst.IsContainer() {
					args.dstar.Union(inst.Elements)
				}
			}
		default:
			args.pos = append(args.pos, val)
		}
	}
	if name, ok := e.Func.(*ast.Name); ok && name.ID == "super" && len(e.Args) == 0 {
		if res := p.super(f); res != nil {
			return res
		}
	}
	return p.callValues(f, e, callee, args)
}

// callValues calls every value of callee and unions the results.
func (p *pass) callValues(f *frame, node ast.Node, callee *values.TypeSet, args callArgs) *values.TypeSet {
	out := &values.TypeSet{}
	for _, v := range callee.Values() {
		out.UnionLimited(p.callValue(f, node, v, args), p.limit)
	}
	return out.OrUnknown()
}

func (p *pass) callValue(f *frame, node ast.Node, v values.Value, args callArgs) *values.TypeSet {
	switch t := v.(type) {
	case *values.Class:
		return p.construct(f, node, t, args)
	case *values.Function:
		if t.IsBuiltin() {
			return p.callBuiltin(f, node, t, nil, args)
		}
		return p.callFunction(f, t, nil, args)
	case *values.BoundMethod:
		if t.Func.IsBuiltin() {
			return p.callBuiltin(f, node, t.Func, t.Self, args)
		}
		return p.callFunction(f, t.Func, t.Self, args)
	case *values.ForeignFunction:
		return t.Returns
	case *values.ForeignType:
		return values.NewTypeSet(t.Instance())
	case *values.Generic:
		return values.NewTypeSet(t.Type.Instance())
	case *values.Instance:
		call := p.getAttr(f, t, "__call__")
		if call.IsEmpty() {
			return nil
		}
		out := &values.TypeSet{}
		for _, c := range call.Values() {
			if _, isInst := c.(*values.Instance); isInst {
				continue
			}
			out.Union(p.callValue(f, node, c, args))
		}
		return out
	}
	return nil
}

// construct calls a class. Builtin containers built from an iterable get
// their element types; user classes run __init__ for its side effects on
// parameter and attribute types.
func (p *pass) construct(f *frame, node ast.Node, cls *values.Class, args callArgs) *values.TypeSet {
	switch cls.Builtin {
	case values.TypeType:
		if len(args.pos) == 1 {
			return p.typeOf(args.pos[0])
		}
	case values.TypeList, values.TypeTuple, values.TypeSetID, values.TypeFrozenSet:
		c := p.container(node, cls.Builtin, "call")
		if len(args.pos) > 0 {
			p.addElements(f, c, p.iterate(f, nil, args.pos[0]))
		}
		return values.NewTypeSet(c)
	case values.TypeDict:
		c := p.container(node, values.TypeDict, "call")
		if len(args.pos) > 0 {
			for _, v := range args.pos[0].Values() {
				if inst, ok := v.(*values.Instance); ok && inst.IsContainer() && inst.Class.Builtin == values.TypeDict {
					p.addKeys(f, c, inst.Keys)
					p.addElements(f, c, inst.Elements)
				}
			}
		}
		if len(args.kw) > 0 {
			p.addKeys(f, c, p.instanceOf(values.TypeStr))
			for _, k := range sortedKeys(args.kw) {
				p.addElements(f, c, args.kw[k])
			}
		}
		return values.NewTypeSet(c)
	case values.TypeProperty:
		if len(args.pos) > 0 {
			out := &values.TypeSet{}
			for _, v := range args.pos[0].Values() {
				if fn, ok := v.(*values.Function); ok {
					out.Add(p.property(fn))
				}
			}
			if !out.IsEmpty() {
				return out
			}
		}
	}
	if cls.Native && len(args.pos) > 0 {
		switch cls.Name {
		case "staticmethod", "classmethod":
			for _, v := range args.pos[0].Values() {
				if fn, ok := v.(*values.Function); ok && p.writable(fn) {
					fn.Static = cls.Name == "staticmethod"
					fn.ClassMethod = cls.Name == "classmethod"
				}
			}
			return args.pos[0]
		case "enumerate":
			c := p.nativeContainer(node, cls, "")
			tup := p.container(node, values.TypeTuple, "enumerate")
			elems := p.iterate(f, nil, args.pos[0])
			p.setItem(f, tup, 0, p.instanceOf(values.TypeInt))
			p.setItem(f, tup, 1, elems)
			p.addElements(f, tup, p.instanceOf(values.TypeInt))
			p.addElements(f, tup, elems)
			p.addElements(f, c, values.NewTypeSet(tup))
			return values.NewTypeSet(c)
		case "zip":
			c := p.nativeContainer(node, cls, "")
			tup := p.container(node, values.TypeTuple, "zip")
			for i, a := range args.pos {
				elems := p.iterate(f, nil, a)
				p.setItem(f, tup, i, elems)
				p.addElements(f, tup, elems)
			}
			p.addElements(f, c, values.NewTypeSet(tup))
			return values.NewTypeSet(c)
		case "reversed", "filter":
			src := args.pos[len(args.pos)-1]
			c := p.nativeContainer(node, cls, "")
			p.addElements(f, c, p.iterate(f, nil, src))
			return values.NewTypeSet(c)
		case "map":
			c := p.nativeContainer(node, cls, "")
			rest := callArgs{}
			for _, a := range args.pos[1:] {
				rest.pos = append(rest.pos, p.iterate(f, nil, a))
			}
			p.addElements(f, c, p.callValues(f, node, args.pos[0], rest))
			return values.NewTypeSet(c)
		}
	}

	inst := cls.Instance()
	if !cls.IsBuiltin() {
		if init, decl := cls.LookupClassAttr("__init__"); init != nil {
			if dc, ok := decl.(*values.Class); !ok || !dc.IsBuiltin() {
				for _, v := range init.Values() {
					if fn, ok := v.(*values.Function); ok && !fn.IsBuiltin() {
						p.callFunction(f, fn, inst, args)
					}
				}
			}
		}
	}
	return values.NewTypeSet(inst)
}

// typeOf implements the one-argument form of type().
func (p *pass) typeOf(ts *values.TypeSet) *values.TypeSet {
	out := &values.TypeSet{}
	for _, v := range ts.Values() {
		switch t := v.(type) {
		case *values.Instance:
			if t.Class != nil {
				out.Add(t.Class)
			}
		case *values.Class:
			if t.Metaclass != nil {
				out.Add(t.Metaclass)
			} else {
				out.Add(p.builtin(values.TypeType))
			}
		default:
			if id := values.TypeID(v); id != values.NotBuiltin {
				out.Add(p.builtin(id))
			}
		}
	}
	return out
}

// super resolves a zero-argument super() call to the canonical instances of
// the enclosing class's bases, so attribute access finds inherited members.
func (p *pass) super(f *frame) *values.TypeSet {
	cls := f.cls
	if f.fn != nil && f.fn.Class != nil {
		cls = f.fn.Class
	}
	if cls == nil {
		return nil
	}
	out := &values.TypeSet{}
	for _, b := range cls.Bases {
		switch t := b.(type) {
		case *values.Class:
			out.Add(t.Instance())
		case *values.ForeignType:
			out.Add(t.Instance())
		}
	}
	if out.IsEmpty() {
		return nil
	}
	return out
}

// callBuiltin applies the element-return rules of interpreter functions and
// the container mutations of common builtin methods.
func (p *pass) callBuiltin(f *frame, node ast.Node, fn *values.Function, self values.Value, args callArgs) *values.TypeSet {
	inst, _ := self.(*values.Instance)
	if inst != nil && inst.IsContainer() {
		p.mutateContainer(f, inst, fn.Name, args)
	}
	switch fn.Element {
	case values.ReturnsSelf:
		if self != nil {
			return values.NewTypeSet(self)
		}
	case values.ReturnsElement:
		if inst != nil && inst.IsContainer() {
			out := inst.Elements.Clone()
			if fn.Name == "get" || fn.Name == "pop" {
				if len(args.pos) > 1 {
					out.Union(args.pos[1])
				}
			}
			if inst.Class.Builtin == values.TypeTuple {
				for _, it := range inst.Items {
					out.Union(it)
				}
			}
			return out
		}
	case values.ReturnsKey:
		if inst != nil && inst.IsContainer() {
			return inst.Keys
		}
	case values.ReturnsArgs:
		if len(args.pos) == 1 {
			return p.iterate(f, nil, args.pos[0])
		}
		out := &values.TypeSet{}
		for _, a := range args.pos {
			out.Union(a)
		}
		if fn.Name == "next" && len(args.pos) == 2 {
			out = p.iterate(f, nil, args.pos[0]).Clone()
			out.Union(args.pos[1])
		}
		return out
	}
	switch fn.Name {
	case "sorted":
		if self == nil && len(args.pos) > 0 {
			c := p.container(node, values.TypeList, "sorted")
			p.addElements(f, c, p.iterate(f, nil, args.pos[0]))
			return values.NewTypeSet(c)
		}
	case "iter":
		if self == nil && len(args.pos) == 1 {
			return args.pos[0]
		}
	case "getattr":
		if self == nil && len(args.pos) >= 2 {
			if name, ok := constantString(node); ok {
				out := &values.TypeSet{}
				for _, v := range args.pos[0].Values() {
					out.Union(p.getAttr(f, v, name))
				}
				if len(args.pos) > 2 {
					out.Union(args.pos[2])
				}
				return out
			}
		}
	case "abs":
		if self == nil && len(args.pos) == 1 {
			return args.pos[0]
		}
	case "round":
		if self == nil && len(args.pos) == 1 {
			return p.instanceOf(values.TypeInt)
		}
		if self == nil {
			return p.instanceOf(values.TypeFloat)
		}
	}
	return fn.Returns
}

// constantString extracts the attribute name of getattr(obj, "name").
func constantString(node ast.Node) (string, bool) {
	call, ok := node.(*ast.Call)
	if !ok || len(call.Args) < 2 {
		return "", false
	}
	c, ok := call.Args[1].Value.(*ast.Constant)
	if !ok || c.Kind != ast.ConstStr {
		return "", false
	}
	return c.Text, true
}

func (p *pass) mutateContainer(f *frame, inst *values.Instance, method string, args callArgs) {
	arg := func(i int) *values.TypeSet {
		if i < len(args.pos) {
			return args.pos[i]
		}
		return nil
	}
	switch method {
	case "append", "add":
		p.addElements(f, inst, arg(0))
	case "insert":
		p.addElements(f, inst, arg(1))
	case "extend":
		if a := arg(0); a != nil {
			p.addElements(f, inst, p.iterate(f, nil, a))
		}
	case "setdefault":
		if a := arg(0); a != nil {
			p.addKeys(f, inst, a)
		}
		p.addElements(f, inst, arg(1))
	case "update":
		if inst.Class.Builtin != values.TypeDict {
			if a := arg(0); a != nil {
				p.addElements(f, inst, p.iterate(f, nil, a))
			}
			return
		}
		for _, v := range arg(0).Values() {
			if src, ok := v.(*values.Instance); ok && src.IsContainer() {
				p.addKeys(f, inst, src.Keys)
				p.addElements(f, inst, src.Elements)
			}
		}
	}
}

// callFunction evaluates a call to a source function. Each distinct
// argument signature gets its own call context; identical signatures hit
// the per-iteration cache. Recursion, the revisit limit and the depth limit
// fall back to the accumulated returns.
func (p *pass) callFunction(f *frame, fn *values.Function, self values.Value, args callArgs) *values.TypeSet {
	if fn.ClassMethod && self != nil {
		if inst, ok := self.(*values.Instance); ok && inst.Class != nil {
			self = inst.Class
		}
	}
	p.recordArgs(fn, self, args)

	fallback := func() *values.TypeSet {
		return fn.Returns.Clone().OrUnknown()
	}
	if p.readOnly || fn.Def == nil {
		return fallback()
	}

	key := contextKey(fn, self, args)
	if res, ok := p.contexts[key]; ok {
		observability.CallContextCacheHits.Inc()
		return res
	}
	observability.CallContextCacheMisses.Inc()
	if p.active[fn] > 0 || p.depth >= p.a.cfg.MaxCallDepth || p.revisits[fn] >= p.a.cfg.RevisitLimit {
		return fallback()
	}
	p.revisits[fn]++
	p.active[fn]++
	p.depth++
	defer func() {
		p.active[fn]--
		p.depth--
	}()

	scope := values.NewScope(values.ScopeFunction, fn.Name, fn.Def.Span, nil, p.owner)
	scope.Parent = fn.Closure
	scope.Globals, scope.Nonlocals = fn.Locals.Globals, fn.Locals.Nonlocals
	cf := &frame{
		scope:   scope,
		home:    fn.Locals,
		private: true,
		fn:      fn,
		cls:     fn.Class,
		offset:  -1,
		returns: &values.TypeSet{},
		yields:  &values.TypeSet{},
	}
	for i, ts := range p.bindParams(cf, fn, self, args) {
		p.assignName(cf, fn.Params[i].Name, fn.Def.Params[i].Span, ts)
	}
	p.walkBody(cf, fn.Def.Body)
	res := p.finishReturns(cf, fn)
	p.contexts[key] = res
	return res
}

// recordArgs feeds call-site argument types into the function's parameters
// so the generic walk of its body sees them.
func (p *pass) recordArgs(fn *values.Function, self values.Value, args callArgs) {
	if !p.writable(fn) {
		return
	}
	skip := 0
	if self != nil && !fn.Static {
		skip = 1
	}
	pi := skip
	for _, a := range args.pos {
		for pi < len(fn.Params) && fn.Params[pi].Kind != ast.ParamNormal && fn.Params[pi].Kind != ast.ParamVarArgs {
			pi++
		}
		if pi >= len(fn.Params) {
			break
		}
		p.grow(fn.Params[pi].Types.UnionLimited(a, p.limit))
		if fn.Params[pi].Kind != ast.ParamVarArgs {
			pi++
		}
	}
	for name, a := range args.kw {
		matched := false
		for _, prm := range fn.Params {
			if prm.Name == name && (prm.Kind == ast.ParamNormal || prm.Kind == ast.ParamKeywordOnly) {
				p.grow(prm.Types.UnionLimited(a, p.limit))
				matched = true
				break
			}
		}
		if !matched {
			for _, prm := range fn.Params {
				if prm.Kind == ast.ParamKwArgs {
					p.grow(prm.Types.UnionLimited(a, p.limit))
				}
			}
		}
	}
}

// bindParams maps arguments onto parameters for a call-context walk.
func (p *pass) bindParams(f *frame, fn *values.Function, self values.Value, args callArgs) []*values.TypeSet {
	out := make([]*values.TypeSet, len(fn.Params))
	pos := args.pos
	for i, prm := range fn.Params {
		if i == 0 && self != nil && !fn.Static && prm.Kind == ast.ParamNormal {
			out[i] = values.NewTypeSet(self)
			continue
		}
		switch prm.Kind {
		case ast.ParamNormal:
			switch {
			case len(pos) > 0:
				out[i] = pos[0]
				pos = pos[1:]
			case args.kw[prm.Name] != nil:
				out[i] = args.kw[prm.Name]
			case args.star != nil:
				out[i] = args.star
			}
		case ast.ParamKeywordOnly:
			out[i] = args.kw[prm.Name]
		case ast.ParamVarArgs:
			tup := p.container(fn.Def.Params[i], values.TypeTuple, "ctx")
			for _, a := range pos {
				p.addElements(f, tup, a)
			}
			pos = nil
			out[i] = values.NewTypeSet(tup)
			continue
		case ast.ParamKwArgs:
			d := p.container(fn.Def.Params[i], values.TypeDict, "ctx")
			p.addKeys(f, d, p.instanceOf(values.TypeStr))
			for _, k := range sortedKeys(args.kw) {
				if !hasParam(fn, k) {
					p.addElements(f, d, args.kw[k])
				}
			}
			out[i] = values.NewTypeSet(d)
			continue
		}
		if out[i] == nil && args.dstar != nil {
			out[i] = args.dstar
		}
		if out[i] == nil {
			out[i] = prm.Default
		}
		if out[i] == nil || out[i].IsEmpty() {
			out[i] = values.UnknownSet()
		}
	}
	return out
}

func hasParam(fn *values.Function, name string) bool {
	for _, prm := range fn.Params {
		if prm.Name == name {
			return true
		}
	}
	return false
}

// contextKey hashes the callee and the value ids of every argument.
func contextKey(fn *values.Function, self values.Value, args callArgs) uint64 {
	h := xxhash.New()
	var buf [8]byte
	writeID := func(id uint64) {
		binary.LittleEndian.PutUint64(buf[:], id)
		_, _ = h.Write(buf[:])
	}
	writeSet := func(ts *values.TypeSet) {
		ids := make([]uint64, 0, ts.Len())
		for _, v := range ts.Values() {
			ids = append(ids, v.ID())
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			writeID(id)
		}
		_, _ = h.Write([]byte{0xff})
	}
	writeID(fn.ID())
	if self != nil {
		writeID(self.ID())
	}
	_, _ = h.Write([]byte{0xfe})
	for _, a := range args.pos {
		writeSet(a)
	}
	for _, k := range sortedKeys(args.kw) {
		_, _ = h.WriteString(k)
		writeSet(args.kw[k])
	}
	if args.star != nil {
		_, _ = h.WriteString("*")
		writeSet(args.star)
	}
	if args.dstar != nil {
		_, _ = h.WriteString("**")
		writeSet(args.dstar)
	}
	return h.Sum64()
}

func sortedKeys(m map[string]*values.TypeSet) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

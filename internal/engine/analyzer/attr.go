package analyzer

import (
	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
)

// getAttr resolves name on v. An empty result means v has no such member.
//
// Instances look in their instance attributes, then along the class MRO,
// binding functions to the instance. Classes look along their own MRO and
// then their metaclass. Foreign types consult the interpreter's member table.
func (p *pass) getAttr(f *frame, v values.Value, name string) *values.TypeSet {
	switch t := v.(type) {
	case *values.Instance:
		if t.Class == nil {
			return nil
		}
		if ts := t.Class.LookupInstanceAttr(name); ts != nil {
			return ts
		}
		ts, _ := t.Class.LookupClassAttr(name)
		return p.bindToInstance(f, t, ts)
	case *values.Class:
		if ts, _ := t.LookupClassAttr(name); ts != nil {
			return p.bindToClass(t, ts)
		}
		meta, _ := t.Metaclass.(*values.Class)
		if meta == nil {
			meta = p.builtin(values.TypeType)
		}
		if meta == nil {
			return nil
		}
		if ts := meta.LookupInstanceAttr(name); ts != nil {
			return ts
		}
		ts, _ := meta.LookupClassAttr(name)
		return p.bindToInstance(f, t, ts)
	case *values.Module:
		if ts := t.Lookup(name); ts.Len() > 0 {
			return ts
		}
		if sub, ok := p.importModule(t.Name + "." + name); ok {
			return values.NewTypeSet(sub)
		}
		return p.builtinAttr(values.TypeModule, name)
	case *values.ForeignType:
		if m, ok := t.Member(name); ok {
			return values.NewTypeSet(m)
		}
	case *values.Generic:
		if m, ok := t.Type.Member(name); ok {
			return values.NewTypeSet(m)
		}
	case *values.Function, *values.BoundMethod, *values.ForeignFunction:
		return p.builtinAttr(values.TypeFunction, name)
	case *values.Property:
		return p.builtinAttr(values.TypeProperty, name)
	}
	return nil
}

func (p *pass) builtinAttr(id values.BuiltinTypeID, name string) *values.TypeSet {
	c := p.builtin(id)
	if c == nil {
		return nil
	}
	if ts := c.LookupInstanceAttr(name); ts != nil {
		return ts
	}
	ts, _ := c.LookupClassAttr(name)
	out := &values.TypeSet{}
	for _, v := range ts.Values() {
		if fn, ok := v.(*values.Function); ok {
			out.Add(p.boundMethod(fn, c.Instance()))
			continue
		}
		out.Add(v)
	}
	return out
}

// bindToInstance applies descriptor rules for access through self: plain
// functions become bound methods, classmethods bind to the class, static
// methods stay plain and properties evaluate their getter.
func (p *pass) bindToInstance(f *frame, self values.Value, ts *values.TypeSet) *values.TypeSet {
	if ts == nil {
		return nil
	}
	out := &values.TypeSet{}
	for _, v := range ts.Values() {
		switch t := v.(type) {
		case *values.Function:
			switch {
			case t.Static:
				out.Add(t)
			case t.ClassMethod:
				if inst, ok := self.(*values.Instance); ok && inst.Class != nil {
					out.Add(p.boundMethod(t, inst.Class))
				} else {
					out.Add(p.boundMethod(t, self))
				}
			default:
				out.Add(p.boundMethod(t, self))
			}
		case *values.Property:
			if t.Getter == nil {
				out.Add(values.Unknown)
				continue
			}
			out.Union(p.callFunction(f, t.Getter, self, callArgs{}))
		default:
			out.Add(v)
		}
	}
	return out
}

// bindToClass applies descriptor rules for access through the class itself.
func (p *pass) bindToClass(cls *values.Class, ts *values.TypeSet) *values.TypeSet {
	out := &values.TypeSet{}
	for _, v := range ts.Values() {
		if fn, ok := v.(*values.Function); ok && fn.ClassMethod {
			out.Add(p.boundMethod(fn, cls))
			continue
		}
		out.Add(v)
	}
	return out
}

// iterate returns what a for loop over ts binds.
func (p *pass) iterate(f *frame, node ast.Node, ts *values.TypeSet) *values.TypeSet {
	out := &values.TypeSet{}
	for _, v := range ts.Values() {
		out.UnionLimited(p.iterateValue(f, node, v), p.limit)
	}
	return out.OrUnknown()
}

func (p *pass) iterateValue(f *frame, node ast.Node, v values.Value) *values.TypeSet {
	inst, ok := v.(*values.Instance)
	if !ok || inst.Class == nil {
		return values.UnknownSet()
	}
	cls := inst.Class
	if inst.IsContainer() {
		switch cls.Builtin {
		case values.TypeDict:
			return inst.Keys
		case values.TypeTuple:
			out := inst.Elements.Clone()
			for _, it := range inst.Items {
				out.Union(it)
			}
			return out
		}
		return inst.Elements
	}
	if cls.Iter != nil {
		return cls.Iter
	}
	for _, b := range cls.MRO() {
		if bc, ok := b.(*values.Class); ok && bc.Iter != nil {
			return bc.Iter
		}
	}
	if cls.IsBuiltin() {
		return values.UnknownSet()
	}
	iter := p.getAttr(f, inst, "__iter__")
	if iter.IsEmpty() {
		return values.UnknownSet()
	}
	its := p.callValues(f, node, iter, callArgs{})
	out := &values.TypeSet{}
	for _, it := range its.Values() {
		if it == v {
			next := p.getAttr(f, it, "__next__")
			out.Union(p.callValues(f, node, next, callArgs{}))
			continue
		}
		if itInst, ok := it.(*values.Instance); ok && itInst.IsContainer() {
			out.Union(p.iterateValue(f, node, it))
			continue
		}
		next := p.getAttr(f, it, "__next__")
		if next.IsEmpty() {
			continue
		}
		out.Union(p.callValues(f, node, next, callArgs{}))
	}
	return out.OrUnknown()
}

var binaryDunders = map[string]string{
	"+": "__add__", "-": "__sub__", "*": "__mul__", "/": "__truediv__", "//": "__floordiv__",
	"%": "__mod__", "**": "__pow__", "@": "__matmul__", "&": "__and__", "|": "__or__",
	"^": "__xor__", "<<": "__lshift__", ">>": "__rshift__",
}

// binOp combines operand types. Numeric operands promote; sequences keep
// their type for concatenation and repetition; user classes dispatch to
// their dunder methods.
func (p *pass) binOp(f *frame, node ast.Node, op string, left, right *values.TypeSet) *values.TypeSet {
	out := &values.TypeSet{}
	for _, l := range left.Values() {
		li, ok := l.(*values.Instance)
		if !ok || li.Class == nil {
			continue
		}
		if !li.Class.IsBuiltin() {
			if name, ok := binaryDunders[op]; ok {
				m := p.getAttr(f, li, name)
				if !m.IsEmpty() {
					out.Union(p.callValues(f, node, m, callArgs{pos: []*values.TypeSet{right}}))
				}
			}
			continue
		}
		switch li.Class.Builtin {
		case values.TypeStr, values.TypeBytes:
			if op == "+" || op == "*" || op == "%" {
				out.Add(p.plainInstance(li))
			}
		case values.TypeList, values.TypeTuple:
			switch op {
			case "*":
				out.Add(li)
			case "+":
				out.Add(li)
				for _, r := range right.Values() {
					if ri, ok := r.(*values.Instance); ok && ri.Class == li.Class {
						out.Add(ri)
					}
				}
			}
		case values.TypeSetID, values.TypeFrozenSet:
			out.Add(li)
		case values.TypeDict:
			if op == "|" {
				out.Add(li)
			}
		case values.TypeBool, values.TypeInt, values.TypeFloat, values.TypeComplex:
			for _, r := range right.Values() {
				out.Union(p.numeric(op, li.Class.Builtin, r))
			}
		}
	}
	return out.OrUnknown()
}

// plainInstance drops container identity for strings and bytes.
func (p *pass) plainInstance(i *values.Instance) values.Value {
	return i.Class.Instance()
}

func numericRank(id values.BuiltinTypeID) int {
	switch id {
	case values.TypeBool:
		return 0
	case values.TypeInt:
		return 1
	case values.TypeFloat:
		return 2
	case values.TypeComplex:
		return 3
	}
	return -1
}

func (p *pass) numeric(op string, left values.BuiltinTypeID, r values.Value) *values.TypeSet {
	ri, ok := r.(*values.Instance)
	if !ok || ri.Class == nil {
		return nil
	}
	rr := numericRank(ri.Class.Builtin)
	if rr < 0 {
		if op == "*" && (ri.Class.Builtin == values.TypeStr || ri.Class.Builtin == values.TypeList || ri.Class.Builtin == values.TypeTuple) {
			return values.NewTypeSet(ri)
		}
		return nil
	}
	rank := numericRank(left)
	if rr > rank {
		rank = rr
	}
	if rank == 0 {
		if op == "&" || op == "|" || op == "^" {
			return p.instanceOf(values.TypeBool)
		}
		rank = 1
	}
	if op == "/" && rank == 1 {
		rank = 2
	}
	ids := []values.BuiltinTypeID{values.TypeBool, values.TypeInt, values.TypeFloat, values.TypeComplex}
	return p.instanceOf(ids[rank])
}

func (p *pass) unaryResult(operand *values.TypeSet) *values.TypeSet {
	out := &values.TypeSet{}
	for _, v := range operand.Values() {
		if inst, ok := v.(*values.Instance); ok && inst.Class != nil && inst.Class.Builtin == values.TypeBool {
			out.Union(p.instanceOf(values.TypeInt))
			continue
		}
		out.Add(v)
	}
	return out
}

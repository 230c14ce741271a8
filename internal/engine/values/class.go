package values

import (
	"pyintel/internal/engine/ast"
)

type Class struct {
	Base
	Name    string
	Module  string
	Doc     string
	Builtin BuiltinTypeID
	// Bases holds Class or ForeignType values in declaration order.
	Bases         []Value
	Attrs         *Namespace
	InstanceAttrs *Namespace
	Metaclass     Value
	// Scope is the class body scope; nil for builtin classes.
	Scope    *Scope
	NameSpan ast.Span
	// Native marks interpreter-supplied classes without a builtin type id.
	Native bool
	// Iter holds what iterating an instance yields, for native classes that
	// are not element-tracking containers.
	Iter *TypeSet

	instance *Instance
}

func NewClass(name, module string, owner *Owner) *Class {
	c := &Class{
		Base:          newBase(owner),
		Name:          name,
		Module:        module,
		Attrs:         NewNamespace(),
		InstanceAttrs: NewNamespace(),
	}
	c.instance = &Instance{Base: newBase(owner), Class: c}
	return c
}

// NewBuiltinClass creates an immutable class for a builtin type id.
func NewBuiltinClass(id BuiltinTypeID, name string) *Class {
	c := NewClass(name, "builtins", nil)
	c.Builtin = id
	return c
}

func (*Class) Kind() Kind { return KindClass }
func (*Class) isValue()   {}

// Instance returns the canonical instance of the class.
func (c *Class) Instance() *Instance { return c.instance }

// NewNativeClass creates an immutable interpreter class outside the fixed
// builtin type ids, such as range or ValueError.
func NewNativeClass(name, module string) *Class {
	c := NewClass(name, module, nil)
	c.Native = true
	return c
}

func (c *Class) IsBuiltin() bool { return c.Builtin != NotBuiltin || c.Native }

// MRO linearizes the class hierarchy depth-first, left to right, keeping the
// first occurrence of each class. This is the classic pre-C3 order and not C3:
// for a diamond D(B, C) with B(A), C(A) it yields D, B, A, object, C.
func (c *Class) MRO() []Value {
	var out []Value
	seen := make(map[uint64]bool)
	var visit func(v Value)
	visit = func(v Value) {
		if v == nil || seen[v.ID()] {
			return
		}
		seen[v.ID()] = true
		out = append(out, v)
		if cls, ok := v.(*Class); ok {
			for _, b := range cls.Bases {
				visit(b)
			}
		}
	}
	visit(c)
	return out
}

// LookupClassAttr searches the MRO for name and returns the binding and the
// class (or foreign type) that declared it.
func (c *Class) LookupClassAttr(name string) (*TypeSet, Value) {
	for _, v := range c.MRO() {
		switch t := v.(type) {
		case *Class:
			if vr := t.Attrs.Get(name); vr != nil && vr.Types.Len() > 0 {
				return vr.Types, t
			}
		case *ForeignType:
			if m, ok := t.Member(name); ok {
				return NewTypeSet(m), t
			}
		}
	}
	return nil, nil
}

// LookupInstanceAttr searches instance attribute tables along the MRO.
func (c *Class) LookupInstanceAttr(name string) *TypeSet {
	for _, v := range c.MRO() {
		if t, ok := v.(*Class); ok {
			if vr := t.InstanceAttrs.Get(name); vr != nil && vr.Types.Len() > 0 {
				return vr.Types
			}
		}
	}
	return nil
}

// IsSubclass reports whether other appears in c's MRO.
func (c *Class) IsSubclass(other Value) bool {
	for _, v := range c.MRO() {
		if v == other {
			return true
		}
	}
	return false
}

// Instance is an object of a class. Container instances track their element
// types; tuples additionally track positional item types.
type Instance struct {
	Base
	Class    *Class
	Elements *TypeSet
	Keys     *TypeSet
	Items    []*TypeSet
}

// NewContainer creates a container instance distinct from the canonical one.
func NewContainer(cls *Class, owner *Owner) *Instance {
	return &Instance{Base: newBase(owner), Class: cls, Elements: &TypeSet{}, Keys: &TypeSet{}}
}

func (*Instance) Kind() Kind { return KindInstance }
func (*Instance) isValue()   {}

func (i *Instance) IsContainer() bool { return i.Elements != nil }

package values

import "sort"

// MemberNames lists the attribute names reachable from v, sorted. interp
// supplies the builtin types backing functions, modules and properties; it
// may be nil.
func MemberNames(v Value, interp Interpreter) []string {
	seen := make(map[string]bool)
	add := func(names ...string) {
		for _, n := range names {
			seen[n] = true
		}
	}
	addClass := func(c *Class, instance bool) {
		for _, m := range c.MRO() {
			switch t := m.(type) {
			case *Class:
				if instance {
					add(t.InstanceAttrs.Names()...)
				}
				add(t.Attrs.Names()...)
			case *ForeignType:
				add(t.MemberNames()...)
			}
		}
	}
	builtin := func(id BuiltinTypeID) {
		if interp == nil {
			return
		}
		if c := interp.BuiltinType(id); c != nil {
			addClass(c, true)
		}
	}

	switch t := v.(type) {
	case *Instance:
		if t.Class != nil {
			addClass(t.Class, true)
		}
	case *Class:
		addClass(t, false)
		if cls, ok := t.Metaclass.(*Class); ok {
			addClass(cls, false)
		}
	case *Module:
		add(t.Members().Names()...)
	case *ForeignType:
		add(t.MemberNames()...)
	case *Generic:
		add(t.Type.MemberNames()...)
	case *Function, *BoundMethod, *ForeignFunction:
		builtin(TypeFunction)
	case *Property:
		for _, r := range t.Types().Values() {
			for _, n := range MemberNames(r, interp) {
				seen[n] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

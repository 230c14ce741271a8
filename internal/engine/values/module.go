package values

import (
	"sort"
	"sync"

	"pyintel/internal/engine/ast"
)

type Module struct {
	Base
	Name    string
	Path    string
	Doc     string
	Builtin bool
	Scope   *Scope
}

func NewModule(name, path string, owner *Owner) *Module {
	m := &Module{Base: newBase(owner), Name: name, Path: path}
	m.Scope = NewScope(ScopeModule, name, ast.Span{}, nil, owner)
	return m
}

// NewBuiltinModule creates an immutable module populated from members.
func NewBuiltinModule(name, doc string, members map[string]Value) *Module {
	m := NewModule(name, "", nil)
	m.Builtin = true
	m.Doc = doc
	names := make([]string, 0, len(members))
	for n := range members {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		m.Scope.Vars.Set(n, NewTypeSet(members[n]))
	}
	return m
}

func (*Module) Kind() Kind { return KindModule }
func (*Module) isValue()   {}

func (m *Module) Members() *Namespace { return m.Scope.Vars }

// Lookup returns the exported binding for name.
func (m *Module) Lookup(name string) *TypeSet {
	if v := m.Scope.Vars.Get(name); v != nil {
		return v.Types
	}
	return nil
}

// ForeignType is a type from the host object system. Members are fetched
// from the interpreter on first use.
type ForeignType struct {
	Base
	Path         string
	Name         string
	Doc          string
	TypeParams   []string
	Constructors []Signature

	interp  Interpreter
	once    sync.Once
	members map[string]Value
	shadow  *Class
}

func NewForeignType(path, name, doc string, interp Interpreter) *ForeignType {
	t := &ForeignType{Base: newBase(nil), Path: path, Name: name, Doc: doc, interp: interp}
	t.shadow = NewClass(name, path, nil)
	t.shadow.Bases = []Value{t}
	t.shadow.Doc = doc
	return t
}

func (*ForeignType) Kind() Kind { return KindForeignType }
func (*ForeignType) isValue()   {}

func (t *ForeignType) load() {
	t.once.Do(func() {
		if t.interp != nil {
			t.members = t.interp.ForeignMembers(t.Path)
		}
		if t.members == nil {
			t.members = map[string]Value{}
		}
	})
}

func (t *ForeignType) Member(name string) (Value, bool) {
	t.load()
	v, ok := t.members[name]
	return v, ok
}

func (t *ForeignType) MemberNames() []string {
	t.load()
	names := make([]string, 0, len(t.members))
	for n := range t.members {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Instance returns the value produced by constructing the type.
func (t *ForeignType) Instance() *Instance { return t.shadow.Instance() }

// ForeignFunction is a callable from the host object system.
type ForeignFunction struct {
	Base
	Path      string
	Name      string
	Doc       string
	Overloads []Signature
	Returns   *TypeSet
}

func NewForeignFunction(path, name, doc string, returns *TypeSet, overloads ...Signature) *ForeignFunction {
	if returns == nil {
		returns = &TypeSet{}
	}
	return &ForeignFunction{Base: newBase(nil), Path: path, Name: name, Doc: doc, Overloads: overloads, Returns: returns}
}

func (*ForeignFunction) Kind() Kind { return KindForeignFunction }
func (*ForeignFunction) isValue()   {}

// Generic is a foreign type instantiated with concrete type arguments.
type Generic struct {
	Base
	Type *ForeignType
	Args []Value
}

func NewGeneric(t *ForeignType, args []Value, owner *Owner) *Generic {
	cp := make([]Value, len(args))
	copy(cp, args)
	return &Generic{Base: newBase(owner), Type: t, Args: cp}
}

func (*Generic) Kind() Kind { return KindGeneric }
func (*Generic) isValue()   {}

// CrossProduct enumerates one argument tuple per combination of the members
// of sets, in order. An empty set contributes Unknown.
func CrossProduct(sets []*TypeSet) [][]Value {
	combos := [][]Value{{}}
	for _, s := range sets {
		vals := s.OrUnknown().Values()
		next := make([][]Value, 0, len(combos)*len(vals))
		for _, prefix := range combos {
			for _, v := range vals {
				combo := make([]Value, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, v))
			}
		}
		combos = next
	}
	return combos
}

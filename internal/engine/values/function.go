package values

import (
	"pyintel/internal/engine/ast"
)

// ElementReturn marks builtin methods whose result depends on the receiver's
// container contents.
type ElementReturn int

const (
	ReturnsDeclared ElementReturn = iota
	ReturnsElement
	ReturnsKey
	ReturnsSelf
	// ReturnsArgs yields the positional argument types; a lone container
	// argument contributes its elements instead.
	ReturnsArgs
)

type Param struct {
	Name        string
	Kind        ast.ParamKind
	DefaultText string
	Default     *TypeSet
	// Types accumulates defaults and every argument seen at call sites.
	Types *TypeSet
}

type Function struct {
	Base
	Name    string
	Module  string
	Doc     string
	Params  []*Param
	Returns *TypeSet

	Static      bool
	ClassMethod bool
	Lambda      bool
	Generator   bool
	Element     ElementReturn
	// Native is set for functions supplied by an interpreter.
	Native bool

	// Overloads replaces Params for builtin functions with several signatures.
	Overloads []Signature
	// Class is the declaring class for methods.
	Class *Class
	Def   *ast.FuncDef
	// LambdaDef is set instead of Def for lambdas.
	LambdaDef *ast.Lambda
	// Closure is the scope the function was defined in; Locals is its body scope.
	Closure *Scope
	Locals  *Scope
}

func NewFunction(name, module string, owner *Owner) *Function {
	return &Function{
		Base:    newBase(owner),
		Name:    name,
		Module:  module,
		Returns: &TypeSet{},
	}
}

// NewBuiltinFunction creates an immutable function returning returns.
func NewBuiltinFunction(name, module, doc string, returns *TypeSet, overloads ...Signature) *Function {
	f := NewFunction(name, module, nil)
	f.Doc = doc
	if returns != nil {
		f.Returns = returns
	}
	f.Overloads = overloads
	f.Native = true
	return f
}

func (*Function) Kind() Kind { return KindFunction }
func (*Function) isValue()   {}

func (f *Function) IsBuiltin() bool { return f.Native }

// BoundMethod is a function retrieved through an instance.
type BoundMethod struct {
	Base
	Func *Function
	Self Value
}

func NewBoundMethod(fn *Function, self Value, owner *Owner) *BoundMethod {
	return &BoundMethod{Base: newBase(owner), Func: fn, Self: self}
}

func (*BoundMethod) Kind() Kind { return KindBoundMethod }
func (*BoundMethod) isValue()   {}

// Property is a def decorated with @property.
type Property struct {
	Base
	Getter *Function
}

func NewProperty(getter *Function, owner *Owner) *Property {
	return &Property{Base: newBase(owner), Getter: getter}
}

func (*Property) Kind() Kind { return KindProperty }
func (*Property) isValue()   {}

func (p *Property) Types() *TypeSet {
	if p.Getter == nil {
		return nil
	}
	return p.Getter.Returns
}

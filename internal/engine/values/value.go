// Package values is the closed set of things the analyzer can infer: classes,
// instances, functions, modules and foreign types, plus the type sets,
// variables and scopes that hold them.
package values

import (
	"go.uber.org/atomic"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInstance
	KindClass
	KindFunction
	KindBoundMethod
	KindModule
	KindForeignType
	KindForeignFunction
	KindProperty
	KindGeneric
)

var kindNames = [...]string{
	KindUnknown:         "unknown",
	KindInstance:        "instance",
	KindClass:           "class",
	KindFunction:        "function",
	KindBoundMethod:     "bound method",
	KindModule:          "module",
	KindForeignType:     "foreign type",
	KindForeignFunction: "foreign function",
	KindProperty:        "property",
	KindGeneric:         "generic",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Value is implemented only by the variants in this package.
type Value interface {
	ID() uint64
	Kind() Kind
	Owner() *Owner
	isValue()
}

var nextID = atomic.NewUint64(0)

// Owner identifies the analysis pass that created a value. Only that pass may
// mutate it; everything else sees it as frozen.
type Owner struct {
	id uint64
}

func NewOwner() *Owner {
	return &Owner{id: nextID.Inc()}
}

// Writable reports whether a holder of tok may mutate values owned by o.
func (o *Owner) Writable(tok *Owner) bool {
	return o != nil && o == tok
}

type Base struct {
	id    uint64
	owner *Owner
}

func newBase(owner *Owner) Base {
	return Base{id: nextID.Inc(), owner: owner}
}

func (b *Base) ID() uint64    { return b.id }
func (b *Base) Owner() *Owner { return b.owner }

// UnknownValue is the result of anything the analyzer cannot resolve.
type UnknownValue struct {
	Base
}

func (*UnknownValue) Kind() Kind { return KindUnknown }
func (*UnknownValue) isValue()   {}

// Unknown is the single unknown value.
var Unknown Value = &UnknownValue{}

func IsUnknown(v Value) bool {
	_, ok := v.(*UnknownValue)
	return ok
}

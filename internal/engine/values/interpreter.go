package values

// BuiltinTypeID names the types every interpreter must supply.
type BuiltinTypeID int

const (
	NotBuiltin BuiltinTypeID = iota
	TypeObject
	TypeType
	TypeNone
	TypeInt
	TypeFloat
	TypeComplex
	TypeBool
	TypeStr
	TypeBytes
	TypeList
	TypeTuple
	TypeDict
	TypeSetID
	TypeFrozenSet
	TypeFunction
	TypeGenerator
	TypeModule
	TypeProperty
	TypeException
)

// AllBuiltinTypes lists every id an interpreter must resolve.
var AllBuiltinTypes = []BuiltinTypeID{
	TypeObject, TypeType, TypeNone, TypeInt, TypeFloat, TypeComplex, TypeBool,
	TypeStr, TypeBytes, TypeList, TypeTuple, TypeDict, TypeSetID, TypeFrozenSet,
	TypeFunction, TypeGenerator, TypeModule, TypeProperty, TypeException,
}

// Interpreter supplies builtin types, builtin modules and foreign namespaces.
// Inference never depends on which implementation is plugged in.
type Interpreter interface {
	BuiltinType(id BuiltinTypeID) *Class
	// Builtins is the module whose names are visible everywhere.
	Builtins() *Module
	// ImportModule resolves modules the interpreter knows about, such as
	// builtin modules or modules restored from a database.
	ImportModule(name string) (*Module, bool)
	// LookupForeign resolves a dotted path in the host object system.
	LookupForeign(path string) (Value, bool)
	// ForeignMembers lists the members of the foreign namespace at path.
	ForeignMembers(path string) map[string]Value
	ModuleNames() []string
	Close() error
}

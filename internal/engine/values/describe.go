package values

import (
	"strings"
)

// Description is the hover text for a single value. The wording is relied on
// by editor integrations and must stay stable.
func Description(v Value) string {
	switch t := v.(type) {
	case *UnknownValue:
		return "unknown"
	case *Instance:
		return instanceDescription(t)
	case *Class:
		if t.IsBuiltin() {
			return "type " + t.Name
		}
		return "class " + t.Name
	case *Function:
		if t.Lambda {
			return "lambda"
		}
		if t.IsBuiltin() {
			return "built-in function " + t.Name
		}
		return "function " + t.Name
	case *BoundMethod:
		if t.Func.IsBuiltin() {
			return "bound built-in method " + t.Func.Name
		}
		return "bound method " + t.Func.Name
	case *Module:
		if t.Builtin {
			return "built-in module " + t.Name
		}
		return "module " + t.Name
	case *Property:
		types := shortDescriptions(t.Types())
		if len(types) == 0 {
			return "property"
		}
		return "property of type " + strings.Join(types, ", ")
	case *ForeignType:
		return "type " + t.Name
	case *ForeignFunction:
		return "built-in function " + t.Name
	case *Generic:
		return genericName(t)
	}
	return "unknown"
}

// ShortDescription is the compact form used in lists, return types and MROs.
func ShortDescription(v Value) string {
	switch t := v.(type) {
	case *Instance:
		return instanceName(t)
	case *Class:
		if t.IsBuiltin() {
			return "type " + t.Name
		}
		return t.Name
	case *Function:
		if t.Lambda {
			return "lambda"
		}
		return t.Name
	case *BoundMethod:
		return t.Func.Name
	case *ForeignType:
		return t.Name
	case *ForeignFunction:
		return t.Name
	case *Property:
		return Description(t)
	}
	return Description(v)
}

// TypeName is the bare name of the type a value denotes or belongs to.
func TypeName(v Value) string {
	switch t := v.(type) {
	case *Class:
		return t.Name
	case *Instance:
		return t.Class.Name
	case *ForeignType:
		return t.Name
	case *Generic:
		return genericName(t)
	}
	return ShortDescription(v)
}

func instanceName(i *Instance) string {
	switch {
	case i.Class == nil:
		return "unknown"
	case i.Class.Builtin == TypeNone:
		return "None"
	case i.Class.IsBuiltin():
		return i.Class.Name
	}
	return i.Class.Name + " instance"
}

func instanceDescription(i *Instance) string {
	if i.Class == nil || !i.IsContainer() || !i.Class.IsBuiltin() {
		return instanceName(i)
	}
	name := i.Class.Name
	switch i.Class.Builtin {
	case TypeDict:
		keys, vals := shortDescriptions(i.Keys), shortDescriptions(i.Elements)
		if len(keys) == 0 && len(vals) == 0 {
			return name
		}
		return name + "({" + orUnknown(keys) + " : " + orUnknown(vals) + "})"
	case TypeTuple:
		elems := shortDescriptions(i.Elements)
		if len(elems) == 0 {
			all := &TypeSet{}
			for _, it := range i.Items {
				all.Union(it)
			}
			elems = shortDescriptions(all)
		}
		if len(elems) == 0 {
			return name
		}
		return name + " of " + strings.Join(elems, ", ")
	}
	elems := shortDescriptions(i.Elements)
	if len(elems) == 0 {
		return name
	}
	return name + " of " + strings.Join(elems, ", ")
}

func orUnknown(parts []string) string {
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, ", ")
}

// Documentation returns the docstring attached to a value, if any.
func Documentation(v Value) string {
	switch t := v.(type) {
	case *Function:
		return t.Doc
	case *BoundMethod:
		return t.Func.Doc
	case *Class:
		return t.Doc
	case *Module:
		return t.Doc
	case *Property:
		if t.Getter != nil {
			return t.Getter.Doc
		}
	case *ForeignType:
		return t.Doc
	case *ForeignFunction:
		return t.Doc
	case *Generic:
		return t.Type.Doc
	}
	return ""
}

// JoinDocs concatenates the distinct docstrings of a binding's values,
// separated by a blank line.
func JoinDocs(ts *TypeSet) string {
	var docs []string
	seen := make(map[string]bool)
	for _, v := range ts.Values() {
		d := Documentation(v)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		docs = append(docs, d)
	}
	return strings.Join(docs, "\n\n")
}

// TypeID maps a value to the builtin type it is an instance of, or
// NotBuiltin for user-defined instances.
func TypeID(v Value) BuiltinTypeID {
	switch t := v.(type) {
	case *Instance:
		if t.Class != nil {
			return t.Class.Builtin
		}
	case *Class, *ForeignType, *Generic:
		return TypeType
	case *Function, *ForeignFunction, *BoundMethod:
		return TypeFunction
	case *Module:
		return TypeModule
	case *Property:
		return TypeProperty
	}
	return NotBuiltin
}

var builtinTypeNames = map[BuiltinTypeID]string{
	TypeObject: "object", TypeType: "type", TypeNone: "NoneType", TypeInt: "int",
	TypeFloat: "float", TypeComplex: "complex", TypeBool: "bool", TypeStr: "str",
	TypeBytes: "bytes", TypeList: "list", TypeTuple: "tuple", TypeDict: "dict",
	TypeSetID: "set", TypeFrozenSet: "frozenset", TypeFunction: "function",
	TypeGenerator: "generator", TypeModule: "module", TypeProperty: "property",
	TypeException: "Exception",
}

func (id BuiltinTypeID) String() string {
	if name, ok := builtinTypeNames[id]; ok {
		return name
	}
	return "unknown"
}

// Package interpreter provides the interpreter capabilities the analyzer
// resolves builtin types and foreign namespaces through.
package interpreter

import (
	"sort"

	"pyintel/internal/engine/values"
)

// Builtins is a static builtin database: the builtin types, the builtins
// module and a handful of builtin modules.
type Builtins struct {
	version  string
	types    map[values.BuiltinTypeID]*values.Class
	byName   map[string]*values.Class
	builtins *values.Module
	modules  map[string]*values.Module
}

var _ values.Interpreter = (*Builtins)(nil)

func NewBuiltins(languageVersion string) *Builtins {
	b := &Builtins{
		version: languageVersion,
		types:   make(map[values.BuiltinTypeID]*values.Class),
		byName:  make(map[string]*values.Class),
		modules: make(map[string]*values.Module),
	}
	b.buildTypes()
	b.buildBuiltinsModule()
	b.buildModules()
	return b
}

func (b *Builtins) LanguageVersion() string { return b.version }

func (b *Builtins) BuiltinType(id values.BuiltinTypeID) *values.Class {
	return b.types[id]
}

func (b *Builtins) Builtins() *values.Module { return b.builtins }

func (b *Builtins) ImportModule(name string) (*values.Module, bool) {
	m, ok := b.modules[name]
	return m, ok
}

// LookupForeign always fails: the static database has no host namespaces.
func (b *Builtins) LookupForeign(string) (values.Value, bool) { return nil, false }

func (b *Builtins) ForeignMembers(string) map[string]values.Value { return nil }

func (b *Builtins) ModuleNames() []string {
	names := make([]string, 0, len(b.modules))
	for n := range b.modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (b *Builtins) Close() error { return nil }

func (b *Builtins) inst(id values.BuiltinTypeID) values.Value {
	return b.types[id].Instance()
}

func (b *Builtins) set(vs ...values.Value) *values.TypeSet {
	return values.NewTypeSet(vs...)
}

// containerOf builds an immutable container instance with the given elements.
func (b *Builtins) containerOf(id values.BuiltinTypeID, elems ...values.Value) *values.Instance {
	c := values.NewContainer(b.types[id], nil)
	for _, e := range elems {
		c.Elements.Add(e)
	}
	return c
}

func (b *Builtins) method(cls *values.Class, name, doc string, ret values.Value, sigs ...values.Signature) *values.Function {
	var returns *values.TypeSet
	if ret != nil {
		returns = b.set(ret)
	}
	if len(sigs) == 0 {
		sigs = []values.Signature{sig("self")}
	}
	fn := values.NewBuiltinFunction(name, cls.Module, doc, returns, withReturns(ret, sigs)...)
	fn.Class = cls
	cls.Attrs.Set(name, values.NewTypeSet(fn))
	return fn
}

func (b *Builtins) elemMethod(cls *values.Class, name, doc string, kind values.ElementReturn, sigs ...values.Signature) {
	b.method(cls, name, doc, nil, sigs...).Element = kind
}

func (b *Builtins) attr(cls *values.Class, name string, v values.Value) {
	cls.InstanceAttrs.Set(name, values.NewTypeSet(v))
}

func (b *Builtins) buildTypes() {
	names := map[values.BuiltinTypeID]string{}
	for _, id := range values.AllBuiltinTypes {
		names[id] = id.String()
	}
	for _, id := range values.AllBuiltinTypes {
		c := values.NewBuiltinClass(id, names[id])
		b.types[id] = c
		b.byName[c.Name] = c
	}
	object := b.types[values.TypeObject]
	for id, c := range b.types {
		if id != values.TypeObject {
			c.Bases = []values.Value{object}
		}
		c.Metaclass = b.types[values.TypeType]
	}
	b.types[values.TypeBool].Bases = []values.Value{b.types[values.TypeInt]}

	str, intT, boolT := b.inst(values.TypeStr), b.inst(values.TypeInt), b.inst(values.TypeBool)
	none, float := b.inst(values.TypeNone), b.inst(values.TypeFloat)

	object.Doc = "The most base type"
	b.method(object, "__init__", "Initialize self.", none, sig("self", "*args", "**kwargs"))
	b.method(object, "__repr__", "Return repr(self).", str)
	b.method(object, "__str__", "Return str(self).", str)
	b.method(object, "__hash__", "Return hash(self).", intT)
	b.method(object, "__eq__", "Return self==value.", boolT, sig("self", "value"))
	b.method(object, "__ne__", "Return self!=value.", boolT, sig("self", "value"))
	b.method(object, "__dir__", "Default dir() implementation.", b.inst(values.TypeList))
	b.attr(object, "__class__", b.types[values.TypeType])
	b.attr(object, "__doc__", str)
	b.attr(object, "__dict__", b.inst(values.TypeDict))
	b.attr(object, "__module__", str)

	typ := b.types[values.TypeType]
	typ.Doc = "type(object) -> the object's type\ntype(name, bases, dict) -> a new type"
	b.method(typ, "mro", "Return a type's method resolution order.", b.inst(values.TypeList))
	b.attr(typ, "__name__", str)
	b.attr(typ, "__qualname__", str)
	b.attr(typ, "__bases__", b.inst(values.TypeTuple))
	b.attr(typ, "__mro__", b.inst(values.TypeTuple))

	intC := b.types[values.TypeInt]
	intC.Doc = "int(x=0) -> integer"
	b.method(intC, "__init__", "", none, sig("self", "x=0"), sig("self", "x", "base=10"))
	b.method(intC, "bit_length", "Number of bits necessary to represent self in binary.", intT)
	b.method(intC, "conjugate", "Returns self, the complex conjugate of any int.", intT)
	b.method(intC, "to_bytes", "Return an array of bytes representing an integer.", b.inst(values.TypeBytes),
		sig("self", "length=1", "byteorder='big'"))
	b.attr(intC, "real", intT)
	b.attr(intC, "imag", intT)
	b.attr(intC, "numerator", intT)
	b.attr(intC, "denominator", intT)

	floatC := b.types[values.TypeFloat]
	floatC.Doc = "Convert a string or number to a floating point number, if possible."
	b.method(floatC, "__init__", "", none, sig("self", "x=0.0"))
	b.method(floatC, "is_integer", "Return True if the float is an integer.", boolT)
	b.method(floatC, "hex", "Return a hexadecimal representation of a floating-point number.", str)
	b.method(floatC, "conjugate", "Return self, the complex conjugate of any float.", float)
	b.attr(floatC, "real", float)
	b.attr(floatC, "imag", float)

	complexC := b.types[values.TypeComplex]
	b.method(complexC, "__init__", "", none, sig("self", "real=0", "imag=0"))
	b.method(complexC, "conjugate", "Return the complex conjugate of its argument.", b.inst(values.TypeComplex))
	b.attr(complexC, "real", float)
	b.attr(complexC, "imag", float)

	b.method(b.types[values.TypeBool], "__init__", "", none, sig("self", "x=False"))

	strC := b.types[values.TypeStr]
	strC.Doc = "str(object='') -> str"
	strC.Iter = b.set(str)
	b.method(strC, "__init__", "", none, sig("self", "object=''"), sig("self", "object", "encoding='utf-8'", "errors='strict'"))
	for _, name := range []string{"upper", "lower", "strip", "lstrip", "rstrip", "title", "capitalize", "casefold", "swapcase"} {
		b.method(strC, name, "Return a copy of the string converted.", str)
	}
	for _, name := range []string{"startswith", "endswith"} {
		b.method(strC, name, "", boolT, sig("self", "prefix", "start=None", "end=None"))
	}
	for _, name := range []string{"isdigit", "isalpha", "isalnum", "isspace", "isupper", "islower"} {
		b.method(strC, name, "", boolT)
	}
	b.method(strC, "split", "Return a list of the words in the string, using sep as the delimiter string.",
		b.containerOf(values.TypeList, str), sig("self", "sep=None", "maxsplit=-1"))
	b.method(strC, "splitlines", "Return a list of the lines in the string.", b.containerOf(values.TypeList, str),
		sig("self", "keepends=False"))
	b.method(strC, "join", "Concatenate any number of strings.", str, sig("self", "iterable"))
	b.method(strC, "replace", "Return a copy with all occurrences of substring old replaced by new.", str,
		sig("self", "old", "new", "count=-1"))
	b.method(strC, "find", "Return the lowest index in S where substring sub is found.", intT, sig("self", "sub", "start=None", "end=None"))
	b.method(strC, "index", "Like find() but raise ValueError when the substring is not found.", intT, sig("self", "sub"))
	b.method(strC, "count", "Return the number of non-overlapping occurrences of substring sub.", intT, sig("self", "sub"))
	b.method(strC, "format", "Return a formatted version of S.", str, sig("self", "*args", "**kwargs"))
	b.method(strC, "encode", "Encode the string using the codec registered for encoding.", b.inst(values.TypeBytes),
		sig("self", "encoding='utf-8'", "errors='strict'"))

	bytesC := b.types[values.TypeBytes]
	bytesC.Iter = b.set(intT)
	b.method(bytesC, "decode", "Decode the bytes using the codec registered for encoding.", str, sig("self", "encoding='utf-8'", "errors='strict'"))
	b.method(bytesC, "hex", "Create a str of hexadecimal numbers from a bytes object.", str)
	b.method(bytesC, "upper", "", b.inst(values.TypeBytes))
	b.method(bytesC, "lower", "", b.inst(values.TypeBytes))

	listC := b.types[values.TypeList]
	listC.Doc = "Built-in mutable sequence."
	b.method(listC, "__init__", "", none, sig("self"), sig("self", "iterable"))
	b.method(listC, "append", "Append object to the end of the list.", none, sig("self", "object"))
	b.method(listC, "extend", "Extend list by appending elements from the iterable.", none, sig("self", "iterable"))
	b.method(listC, "insert", "Insert object before index.", none, sig("self", "index", "object"))
	b.method(listC, "remove", "Remove first occurrence of value.", none, sig("self", "value"))
	b.method(listC, "index", "Return first index of value.", intT, sig("self", "value"))
	b.method(listC, "count", "Return number of occurrences of value.", intT, sig("self", "value"))
	b.method(listC, "sort", "Sort the list in ascending order and return None.", none, sig("self", "key=None", "reverse=False"))
	b.method(listC, "reverse", "Reverse *IN PLACE*.", none)
	b.method(listC, "clear", "Remove all items from list.", none)
	b.elemMethod(listC, "pop", "Remove and return item at index (default last).", values.ReturnsElement, sig("self", "index=-1"))
	b.elemMethod(listC, "copy", "Return a shallow copy of the list.", values.ReturnsSelf)

	tupleC := b.types[values.TypeTuple]
	tupleC.Doc = "Built-in immutable sequence."
	b.method(tupleC, "__init__", "", none, sig("self"), sig("self", "iterable"))
	b.method(tupleC, "index", "Return first index of value.", intT, sig("self", "value"))
	b.method(tupleC, "count", "Return number of occurrences of value.", intT, sig("self", "value"))

	dictC := b.types[values.TypeDict]
	dictC.Doc = "dict() -> new empty dictionary"
	b.method(dictC, "__init__", "", none, sig("self"), sig("self", "mapping"), sig("self", "iterable"), sig("self", "**kwargs"))
	b.elemMethod(dictC, "get", "Return the value for key if key is in the dictionary, else default.", values.ReturnsElement, sig("self", "key", "default=None"))
	b.elemMethod(dictC, "pop", "Remove specified key and return the corresponding value.", values.ReturnsElement, sig("self", "key", "default=None"))
	b.elemMethod(dictC, "setdefault", "Insert key with a value of default if key is not in the dictionary.", values.ReturnsElement, sig("self", "key", "default=None"))
	b.elemMethod(dictC, "copy", "D.copy() -> a shallow copy of D", values.ReturnsSelf)
	b.method(dictC, "keys", "D.keys() -> a set-like object providing a view on D's keys", b.inst(values.TypeList))
	b.method(dictC, "values", "D.values() -> an object providing a view on D's values", b.inst(values.TypeList))
	b.method(dictC, "items", "D.items() -> a set-like object providing a view on D's items", b.inst(values.TypeList))
	b.method(dictC, "update", "Update D from dict/iterable E and F.", none, sig("self", "other=None", "**kwargs"))
	b.method(dictC, "clear", "Remove all items from D.", none)

	for _, id := range []values.BuiltinTypeID{values.TypeSetID, values.TypeFrozenSet} {
		c := b.types[id]
		b.method(c, "__init__", "", none, sig("self"), sig("self", "iterable"))
		for _, name := range []string{"union", "intersection", "difference", "symmetric_difference"} {
			b.elemMethod(c, name, "Return a new set.", values.ReturnsSelf, sig("self", "*others"))
		}
		b.method(c, "issubset", "", boolT, sig("self", "other"))
		b.method(c, "issuperset", "", boolT, sig("self", "other"))
		b.elemMethod(c, "copy", "Return a shallow copy of a set.", values.ReturnsSelf)
	}
	setC := b.types[values.TypeSetID]
	b.method(setC, "add", "Add an element to a set.", none, sig("self", "element"))
	b.method(setC, "discard", "Remove an element from a set if it is a member.", none, sig("self", "element"))
	b.method(setC, "remove", "Remove an element from a set; it must be a member.", none, sig("self", "element"))
	b.elemMethod(setC, "pop", "Remove and return an arbitrary set element.", values.ReturnsElement)

	fnC := b.types[values.TypeFunction]
	b.attr(fnC, "__name__", str)
	b.attr(fnC, "__qualname__", str)
	b.attr(fnC, "__doc__", str)
	b.attr(fnC, "__module__", str)
	b.attr(fnC, "__defaults__", b.inst(values.TypeTuple))
	b.attr(fnC, "__dict__", b.inst(values.TypeDict))

	genC := b.types[values.TypeGenerator]
	b.elemMethod(genC, "__next__", "Implement next(self).", values.ReturnsElement)
	b.elemMethod(genC, "send", "send(arg) -> send 'arg' into generator.", values.ReturnsElement, sig("self", "value"))
	b.method(genC, "close", "close() -> raise GeneratorExit inside generator.", none)

	modC := b.types[values.TypeModule]
	b.attr(modC, "__name__", str)
	b.attr(modC, "__file__", str)
	b.attr(modC, "__doc__", str)
	b.attr(modC, "__dict__", b.inst(values.TypeDict))

	propC := b.types[values.TypeProperty]
	for _, name := range []string{"getter", "setter", "deleter"} {
		b.method(propC, name, "Descriptor to change the "+name+" on a property.", b.inst(values.TypeProperty), sig("self", "func"))
	}
	b.attr(propC, "fget", b.inst(values.TypeFunction))
	b.attr(propC, "fset", b.inst(values.TypeFunction))

	exc := b.types[values.TypeException]
	exc.Doc = "Common base class for all non-exit exceptions."
	baseExc := values.NewNativeClass("BaseException", "builtins")
	baseExc.Bases = []values.Value{object}
	baseExc.Metaclass = typ
	b.method(baseExc, "__init__", "", none, sig("self", "*args"))
	b.method(baseExc, "with_traceback", "Set self.__traceback__ to tb and return self.", nil, sig("self", "tb")).Element = values.ReturnsSelf
	b.attr(baseExc, "args", b.inst(values.TypeTuple))
	b.byName[baseExc.Name] = baseExc
	exc.Bases = []values.Value{baseExc}

	for _, name := range []string{
		"ValueError", "TypeError", "KeyError", "IndexError", "AttributeError", "RuntimeError",
		"StopIteration", "OSError", "ImportError", "NotImplementedError", "LookupError",
		"ArithmeticError", "ZeroDivisionError", "NameError", "AssertionError",
	} {
		c := values.NewNativeClass(name, "builtins")
		c.Bases = []values.Value{exc}
		c.Metaclass = typ
		b.byName[name] = c
	}
	for _, name := range []string{"KeyboardInterrupt", "SystemExit", "GeneratorExit"} {
		c := values.NewNativeClass(name, "builtins")
		c.Bases = []values.Value{baseExc}
		c.Metaclass = typ
		b.byName[name] = c
	}

	rangeC := values.NewNativeClass("range", "builtins")
	rangeC.Bases = []values.Value{object}
	rangeC.Metaclass = typ
	rangeC.Iter = b.set(intT)
	rangeC.Doc = "range(stop) -> range object\nrange(start, stop[, step]) -> range object"
	b.method(rangeC, "__init__", "", none, sig("self", "stop"), sig("self", "start", "stop", "step=1"))
	b.method(rangeC, "index", "", intT, sig("self", "value"))
	b.method(rangeC, "count", "", intT, sig("self", "value"))
	b.byName["range"] = rangeC

	enumC := values.NewNativeClass("enumerate", "builtins")
	enumC.Bases = []values.Value{object}
	enumC.Metaclass = typ
	enumC.Iter = b.set(b.inst(values.TypeTuple))
	b.method(enumC, "__init__", "", none, sig("self", "iterable", "start=0"))
	b.byName["enumerate"] = enumC

	for _, name := range []string{"staticmethod", "classmethod", "super", "zip", "map", "filter", "reversed"} {
		c := values.NewNativeClass(name, "builtins")
		c.Bases = []values.Value{object}
		c.Metaclass = typ
		b.byName[name] = c
	}

	file := values.NewNativeClass("TextIOWrapper", "io")
	file.Bases = []values.Value{object}
	file.Metaclass = typ
	file.Iter = b.set(str)
	b.method(file, "read", "Read at most size characters from stream.", str, sig("self", "size=-1"))
	b.method(file, "readline", "Read until newline or EOF.", str, sig("self", "size=-1"))
	b.method(file, "readlines", "Return a list of lines from the stream.", b.containerOf(values.TypeList, str), sig("self", "hint=-1"))
	b.method(file, "write", "Write string to stream.", intT, sig("self", "s"))
	b.method(file, "close", "Flush and close the IO object.", none)
	b.method(file, "flush", "Flush write buffers, if applicable.", none)
	b.elemMethod(file, "__enter__", "", values.ReturnsSelf)
	b.method(file, "__exit__", "", none, sig("self", "*args"))
	b.attr(file, "name", str)
	b.attr(file, "closed", boolT)
	b.byName[file.Name] = file
}

// Class returns a builtin or native class by name.
func (b *Builtins) Class(name string) (*values.Class, bool) {
	c, ok := b.byName[name]
	return c, ok
}

func (b *Builtins) fn(name, doc string, ret values.Value, sigs ...values.Signature) *values.Function {
	var returns *values.TypeSet
	if ret != nil {
		returns = b.set(ret)
	}
	return values.NewBuiltinFunction(name, "builtins", doc, returns, withReturns(ret, sigs)...)
}

// withReturns fills in the rendered return type of each overload.
func withReturns(ret values.Value, sigs []values.Signature) []values.Signature {
	if ret == nil {
		return sigs
	}
	for i := range sigs {
		if len(sigs[i].Returns) == 0 {
			sigs[i].Returns = []string{values.ShortDescription(ret)}
		}
	}
	return sigs
}

func (b *Builtins) buildBuiltinsModule() {
	str, intT, boolT := b.inst(values.TypeStr), b.inst(values.TypeInt), b.inst(values.TypeBool)
	none := b.inst(values.TypeNone)

	members := map[string]values.Value{}
	for _, c := range b.types {
		members[c.Name] = c
	}
	delete(members, "NoneType")
	delete(members, "function")
	delete(members, "generator")
	delete(members, "module")
	for name, c := range b.byName {
		if c.Module == "builtins" {
			members[name] = c
		}
	}

	add := func(f *values.Function) { members[f.Name] = f }

	add(b.fn("len", "Return the number of items in a container.", intT, sig("obj")))
	add(b.fn("print", "Prints the values to a stream, or to sys.stdout by default.", none,
		sig("*values", "sep=' '", "end='\\n'", "file=None", "flush=False")))
	add(b.fn("repr", "Return the canonical string representation of the object.", str, sig("obj")))
	add(b.fn("ascii", "Return an ASCII-only representation of an object.", str, sig("obj")))
	add(b.fn("hash", "Return the hash value for the given object.", intT, sig("obj")))
	add(b.fn("id", "Return the identity of an object.", intT, sig("obj")))
	add(b.fn("isinstance", "Return whether an object is an instance of a class or of a subclass thereof.", boolT, sig("obj", "class_or_tuple")))
	add(b.fn("issubclass", "Return whether 'cls' is derived from another class or is the same class.", boolT, sig("cls", "class_or_tuple")))
	add(b.fn("hasattr", "Return whether the object has an attribute with the given name.", boolT, sig("obj", "name")))
	add(b.fn("getattr", "Get a named attribute from an object.", nil, sig("obj", "name"), sig("obj", "name", "default")))
	add(b.fn("setattr", "Sets the named attribute on the given object to the specified value.", none, sig("obj", "name", "value")))
	add(b.fn("delattr", "Deletes the named attribute from the given object.", none, sig("obj", "name")))
	add(b.fn("callable", "Return whether the object is callable.", boolT, sig("obj")))
	add(b.fn("chr", "Return a Unicode string of one character with ordinal i.", str, sig("i")))
	add(b.fn("ord", "Return the Unicode code point for a one-character string.", intT, sig("c")))
	add(b.fn("bin", "Return the binary representation of an integer.", str, sig("number")))
	add(b.fn("hex", "Return the hexadecimal representation of an integer.", str, sig("number")))
	add(b.fn("oct", "Return the octal representation of an integer.", str, sig("number")))
	add(b.fn("format", "Return value.__format__(format_spec).", str, sig("value", "format_spec=''")))
	add(b.fn("input", "Read a string from standard input.", str, sig("prompt=''")))
	add(b.fn("abs", "Return the absolute value of the argument.", nil, sig("x")))
	add(b.fn("round", "Round a number to a given precision in decimal digits.", nil, sig("number"), sig("number", "ndigits")))
	add(b.fn("divmod", "Return the tuple (x//y, x%y).", b.inst(values.TypeTuple), sig("x", "y")))
	add(b.fn("pow", "Equivalent to base**exp with 2 arguments or base**exp % mod with 3 arguments.", nil, sig("base", "exp", "mod=None")))
	add(b.fn("sum", "Return the sum of a 'start' value (default: 0) plus an iterable of numbers.", intT,
		sig("iterable"), sig("iterable", "start")))
	add(b.fn("sorted", "Return a new list containing all items from the iterable in ascending order.", b.inst(values.TypeList),
		sig("iterable", "key=None", "reverse=False")))
	add(b.fn("dir", "Show attributes of an object.", b.containerOf(values.TypeList, str), sig("obj=None")))
	add(b.fn("vars", "Show vars.", b.inst(values.TypeDict), sig("obj=None")))
	add(b.fn("globals", "Return the dictionary containing the current scope's global variables.", b.inst(values.TypeDict)))
	add(b.fn("locals", "Return a dictionary containing the current scope's local variables.", b.inst(values.TypeDict)))
	add(b.fn("open", "Open file and return a stream.", b.byName["TextIOWrapper"].Instance(),
		sig("file", "mode='r'", "buffering=-1", "encoding=None", "errors=None", "newline=None")))
	add(b.fn("iter", "Get an iterator from an object.", nil, sig("iterable"), sig("callable", "sentinel")))
	add(b.fn("any", "Return True if bool(x) is True for any x in the iterable.", boolT, sig("iterable")))
	add(b.fn("all", "Return True if bool(x) is True for all values x in the iterable.", boolT, sig("iterable")))
	add(b.fn("exit", "Exit the interpreter.", none, sig("code=None")))

	for _, name := range []string{"max", "min"} {
		f := b.fn(name, "With a single iterable argument, return its "+name+"imal item.", nil,
			sig("iterable", "*", "key=None"),
			sig("iterable", "*", "default", "key=None"),
			sig("arg1", "arg2", "*args", "key=None"))
		f.Element = values.ReturnsArgs
		add(f)
	}
	next := b.fn("next", "Return the next item from the iterator.", nil, sig("iterator"), sig("iterator", "default"))
	next.Element = values.ReturnsArgs
	add(next)

	members["None"] = none
	members["True"] = boolT
	members["False"] = boolT
	members["NotImplemented"] = b.inst(values.TypeObject)
	members["Ellipsis"] = b.inst(values.TypeObject)
	members["__debug__"] = boolT

	b.builtins = values.NewBuiltinModule("builtins", "Built-in functions, exceptions, and other objects.", members)
	b.modules["builtins"] = b.builtins
}

func (b *Builtins) buildModules() {
	str, intT, boolT := b.inst(values.TypeStr), b.inst(values.TypeInt), b.inst(values.TypeBool)
	none, float := b.inst(values.TypeNone), b.inst(values.TypeFloat)
	listOfStr := b.containerOf(values.TypeList, str)
	file := b.byName["TextIOWrapper"].Instance()

	mod := func(name, doc string, fns []*values.Function, attrs map[string]values.Value) {
		members := map[string]values.Value{}
		for _, f := range fns {
			f.Module = name
			members[f.Name] = f
		}
		for k, v := range attrs {
			members[k] = v
		}
		b.modules[name] = values.NewBuiltinModule(name, doc, members)
	}

	mod("sys", "This module provides access to some objects used or maintained by the interpreter.",
		[]*values.Function{
			b.fn("getrecursionlimit", "Return the current value of the recursion limit.", intT, sig()),
			b.fn("setrecursionlimit", "Set the maximum depth of the Python interpreter stack to n.", none, sig("limit")),
			b.fn("exit", "Exit the interpreter by raising SystemExit(status).", none, sig("status=None")),
			b.fn("getsizeof", "Return the size of object in bytes.", intT, sig("object", "default=None")),
			b.fn("intern", "Intern the given string.", str, sig("string")),
		},
		map[string]values.Value{
			"path":       listOfStr,
			"argv":       listOfStr,
			"version":    str,
			"platform":   str,
			"executable": str,
			"maxsize":    intT,
			"modules":    b.inst(values.TypeDict),
			"stdout":     file,
			"stderr":     file,
			"stdin":      file,
		})

	mod("math", "This module provides access to the mathematical functions defined by the C standard.",
		[]*values.Function{
			b.fn("sqrt", "Return the square root of x.", float, sig("x")),
			b.fn("floor", "Return the floor of x as an Integral.", intT, sig("x")),
			b.fn("ceil", "Return the ceiling of x as an Integral.", intT, sig("x")),
			b.fn("sin", "Return the sine of x (measured in radians).", float, sig("x")),
			b.fn("cos", "Return the cosine of x (measured in radians).", float, sig("x")),
			b.fn("log", "Return the logarithm of x to the given base.", float, sig("x"), sig("x", "base")),
			b.fn("isclose", "Determine whether two floating point numbers are close in value.", boolT, sig("a", "b")),
		},
		map[string]values.Value{"pi": float, "e": float, "inf": float, "nan": float})

	mod("os.path", "Common pathname manipulations.",
		[]*values.Function{
			b.fn("join", "Join two or more pathname components.", str, sig("a", "*p")),
			b.fn("exists", "Test whether a path exists.", boolT, sig("path")),
			b.fn("isfile", "Test whether a path is a regular file.", boolT, sig("path")),
			b.fn("isdir", "Return true if the pathname refers to an existing directory.", boolT, sig("s")),
			b.fn("dirname", "Returns the directory component of a pathname.", str, sig("p")),
			b.fn("basename", "Returns the final component of a pathname.", str, sig("p")),
			b.fn("abspath", "Return an absolute path.", str, sig("path")),
			b.fn("splitext", "Split the extension from a pathname.", b.inst(values.TypeTuple), sig("p")),
		},
		map[string]values.Value{"sep": str})

	mod("os", "OS routines for NT or Posix depending on what system we're on.",
		[]*values.Function{
			b.fn("getcwd", "Return a unicode string representing the current working directory.", str, sig()),
			b.fn("listdir", "Return a list containing the names of the files in the directory.", listOfStr, sig("path=None")),
			b.fn("getenv", "Get an environment variable, return None if it doesn't exist.", str, sig("key", "default=None")),
			b.fn("remove", "Remove a file (same as unlink()).", none, sig("path")),
			b.fn("makedirs", "Super-mkdir; create a leaf directory and all intermediate ones.", none, sig("name", "mode=511", "exist_ok=False")),
		},
		map[string]values.Value{
			"sep":     str,
			"linesep": str,
			"name":    str,
			"environ": b.inst(values.TypeDict),
			"path":    b.modules["os.path"],
		})

	pattern := values.NewNativeClass("Pattern", "re")
	pattern.Bases = []values.Value{b.types[values.TypeObject]}
	match := values.NewNativeClass("Match", "re")
	match.Bases = []values.Value{b.types[values.TypeObject]}
	b.method(match, "group", "Return one or more subgroups of the match.", str, sig("self", "*args"))
	b.method(match, "groups", "Return a tuple containing all the subgroups of the match.", b.inst(values.TypeTuple), sig("self", "default=None"))
	b.method(match, "start", "Return index of the start of the substring matched by group.", intT, sig("self", "group=0"))
	b.method(match, "end", "Return index of the end of the substring matched by group.", intT, sig("self", "group=0"))
	b.method(pattern, "match", "Matches zero or more characters at the beginning of the string.", match.Instance(), sig("self", "string"))
	b.method(pattern, "search", "Scan through string looking for a match.", match.Instance(), sig("self", "string"))
	b.method(pattern, "sub", "Return the string obtained by replacing occurrences of pattern.", str, sig("self", "repl", "string", "count=0"))
	b.method(pattern, "findall", "Return a list of all non-overlapping matches in the string.", b.inst(values.TypeList), sig("self", "string"))

	mod("re", "Support for regular expressions (RE).",
		[]*values.Function{
			b.fn("compile", "Compile a regular expression pattern, returning a Pattern object.", pattern.Instance(), sig("pattern", "flags=0")),
			b.fn("match", "Try to apply the pattern at the start of the string.", match.Instance(), sig("pattern", "string", "flags=0")),
			b.fn("search", "Scan through string looking for a match to the pattern.", match.Instance(), sig("pattern", "string", "flags=0")),
			b.fn("sub", "Return the string obtained by replacing the leftmost non-overlapping occurrences.", str, sig("pattern", "repl", "string", "count=0", "flags=0")),
			b.fn("escape", "Escape special characters in a string.", str, sig("pattern")),
		},
		map[string]values.Value{"Pattern": pattern, "Match": match, "IGNORECASE": intT, "MULTILINE": intT})

	mod("__future__", "Record of phased-in incompatible language changes.", nil,
		map[string]values.Value{
			"annotations":    b.inst(values.TypeObject),
			"division":       b.inst(values.TypeObject),
			"print_function": b.inst(values.TypeObject),
		})
}

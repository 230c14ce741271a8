package interpreter

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"pyintel/internal/core/errors"
	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
)

// Reflect exposes Go types and functions as foreign namespaces. Dotted paths
// such as "System.Collections.Generic.Dictionary" become importable modules
// for every namespace prefix. All other capabilities come from the base
// interpreter.
type Reflect struct {
	values.Interpreter

	mu      sync.RWMutex
	entries map[string]*foreignEntry
	goTypes map[reflect.Type]*values.ForeignType
	modules map[string]*values.Module
}

type foreignEntry struct {
	value  values.Value
	goType reflect.Type
}

var _ values.Interpreter = (*Reflect)(nil)

func NewReflect(base values.Interpreter) *Reflect {
	return &Reflect{
		Interpreter: base,
		entries:     make(map[string]*foreignEntry),
		goTypes:     make(map[reflect.Type]*values.ForeignType),
		modules:     make(map[string]*values.Module),
	}
}

func splitPath(path string) (ns, name string) {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}

func (r *Reflect) register(path string, e *foreignEntry) error {
	if path == "" || strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") {
		return errors.AddContext(errors.New(errors.CodeValidationError, "invalid foreign path"), errors.CtxSymbol, path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[path]; ok {
		return errors.AddContext(errors.New(errors.CodeConflict, "foreign path already registered"), errors.CtxSymbol, path)
	}
	r.entries[path] = e
	if e.goType != nil {
		r.goTypes[e.goType] = e.value.(*values.ForeignType)
	}
	// Namespace modules are rebuilt lazily.
	r.modules = make(map[string]*values.Module)
	return nil
}

// RegisterType exposes the Go type of sample at path. Exported methods and
// fields become members of the foreign type.
func (r *Reflect) RegisterType(path, doc string, sample any) error {
	rt := reflect.TypeOf(sample)
	if rt == nil {
		return errors.New(errors.CodeValidationError, "nil sample")
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	_, name := splitPath(path)
	t := values.NewForeignType(path, name, doc, r)
	if rt.Kind() == reflect.Struct {
		var params []values.SigParam
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if f.IsExported() {
				params = append(params, values.SigParam{Name: f.Name, Kind: ast.ParamNormal, Default: "None"})
			}
		}
		t.Constructors = []values.Signature{{Params: params}}
	}
	return r.register(path, &foreignEntry{value: t, goType: rt})
}

// RegisterGeneric exposes an open generic type. Constructor parameter types
// naming one of typeParams are substituted when the type is instantiated.
func (r *Reflect) RegisterGeneric(path, doc string, typeParams []string, ctors ...values.Signature) error {
	_, name := splitPath(path)
	t := values.NewForeignType(path, name, doc, r)
	t.TypeParams = append([]string(nil), typeParams...)
	t.Constructors = ctors
	return r.register(path, &foreignEntry{value: t})
}

// RegisterFunc exposes a Go function at path.
func (r *Reflect) RegisterFunc(path, doc string, fn any) error {
	ft := reflect.TypeOf(fn)
	if ft == nil || ft.Kind() != reflect.Func {
		return errors.AddContext(errors.New(errors.CodeValidationError, "not a function"), errors.CtxSymbol, path)
	}
	_, name := splitPath(path)
	f := r.foreignFunc(path, name, doc, ft, 0)
	return r.register(path, &foreignEntry{value: f})
}

func (r *Reflect) foreignFunc(path, name, doc string, ft reflect.Type, skip int) *values.ForeignFunction {
	sig := values.Signature{Name: name}
	for i := skip; i < ft.NumIn(); i++ {
		p := values.SigParam{Name: "arg" + strconv.Itoa(i-skip), Type: r.pyTypeName(ft.In(i))}
		if ft.IsVariadic() && i == ft.NumIn()-1 {
			p.Kind = ast.ParamVarArgs
			p.Name = "args"
			p.Type = ""
		}
		sig.Params = append(sig.Params, p)
	}
	returns := &values.TypeSet{}
	for i := 0; i < ft.NumOut(); i++ {
		out := ft.Out(i)
		if out.Implements(errorType) {
			continue
		}
		if v := r.valueOf(out); v != nil {
			returns.Add(v)
			sig.Returns = append(sig.Returns, values.ShortDescription(v))
		}
	}
	return values.NewForeignFunction(path, name, doc, returns, sig)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func (r *Reflect) pyTypeName(t reflect.Type) string {
	if v := r.valueOf(t); v != nil {
		return values.TypeName(v)
	}
	return ""
}

// valueOf maps a Go type to the instance a call returning it yields.
func (r *Reflect) valueOf(t reflect.Type) values.Value {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if ft, ok := r.goTypes[t]; ok {
		return ft.Instance()
	}
	id := values.NotBuiltin
	switch t.Kind() {
	case reflect.Bool:
		id = values.TypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		id = values.TypeInt
	case reflect.Float32, reflect.Float64:
		id = values.TypeFloat
	case reflect.Complex64, reflect.Complex128:
		id = values.TypeComplex
	case reflect.String:
		id = values.TypeStr
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			id = values.TypeBytes
		} else {
			id = values.TypeList
		}
	case reflect.Map:
		id = values.TypeDict
	}
	if id == values.NotBuiltin {
		return nil
	}
	if c := r.Interpreter.BuiltinType(id); c != nil {
		return c.Instance()
	}
	return nil
}

func (r *Reflect) LookupForeign(path string) (values.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[path]; ok {
		return e.value, true
	}
	return r.Interpreter.LookupForeign(path)
}

// ForeignMembers lists the members of a registered type. Methods declared on
// the pointer receiver are included.
func (r *Reflect) ForeignMembers(path string) map[string]values.Value {
	r.mu.RLock()
	e, ok := r.entries[path]
	r.mu.RUnlock()
	if !ok {
		return r.Interpreter.ForeignMembers(path)
	}
	members := make(map[string]values.Value)
	if e.goType == nil {
		return members
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	pt := reflect.PointerTo(e.goType)
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		members[m.Name] = r.foreignFunc(path+"."+m.Name, m.Name, "", m.Type, 1)
	}
	if e.goType.Kind() == reflect.Struct {
		for i := 0; i < e.goType.NumField(); i++ {
			f := e.goType.Field(i)
			if !f.IsExported() {
				continue
			}
			if v := r.valueOf(f.Type); v != nil {
				members[f.Name] = v
			} else {
				members[f.Name] = values.Unknown
			}
		}
	}
	return members
}

// ImportModule serves registered namespaces before deferring to the base
// interpreter.
func (r *Reflect) ImportModule(name string) (*values.Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[name]; ok {
		return m, true
	}
	prefix := name + "."
	for path := range r.entries {
		if strings.HasPrefix(path, prefix) {
			return r.namespaceLocked(name), true
		}
	}
	return r.Interpreter.ImportModule(name)
}

func (r *Reflect) namespaceLocked(name string) *values.Module {
	if m, ok := r.modules[name]; ok {
		return m
	}
	members := map[string]values.Value{}
	prefix := name + "."
	for path, e := range r.entries {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		if head, _, nested := strings.Cut(rest, "."); nested {
			if _, ok := members[head]; !ok {
				members[head] = r.namespaceLocked(prefix + head)
			}
			continue
		}
		members[rest] = e.value
	}
	m := values.NewBuiltinModule(name, "", members)
	r.modules[name] = m
	return m
}

// ModuleNames includes every registered namespace prefix.
func (r *Reflect) ModuleNames() []string {
	seen := map[string]bool{}
	for _, n := range r.Interpreter.ModuleNames() {
		seen[n] = true
	}
	r.mu.RLock()
	for path := range r.entries {
		ns, _ := splitPath(path)
		for ns != "" {
			seen[ns] = true
			ns, _ = splitPath(ns)
		}
	}
	r.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

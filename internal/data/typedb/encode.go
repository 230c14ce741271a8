package typedb

import (
	"pyintel/internal/engine/analyzer"
	"pyintel/internal/engine/values"
)

// baseInterpreter is implemented by interpreters that wrap another one. The
// interpreter index is built from the innermost interpreter so that modules
// served from a database are referenced by module name instead.
type baseInterpreter interface {
	Base() values.Interpreter
}

// interpreterIndex maps the ids of interpreter-supplied values to the
// "module:dotted.path" they can be looked up by.
func interpreterIndex(interp values.Interpreter) map[uint64]string {
	for {
		b, ok := interp.(baseInterpreter)
		if !ok {
			break
		}
		interp = b.Base()
	}

	idx := make(map[uint64]string)
	set := func(v values.Value, path string) {
		if _, ok := idx[v.ID()]; !ok {
			idx[v.ID()] = path
		}
	}
	addModule := func(name string, m *values.Module) {
		for _, member := range m.Members().Names() {
			path := name + ":" + member
			for _, v := range m.Lookup(member).Values() {
				set(v, path)
				cls, ok := v.(*values.Class)
				if !ok {
					continue
				}
				for _, attr := range cls.Attrs.Names() {
					for _, av := range cls.Attrs.Get(attr).Types.Values() {
						set(av, path+"."+attr)
					}
				}
			}
		}
	}
	if b := interp.Builtins(); b != nil {
		addModule("builtins", b)
	}
	for _, name := range interp.ModuleNames() {
		if m, ok := interp.ImportModule(name); ok {
			addModule(name, m)
		}
	}
	for _, id := range values.AllBuiltinTypes {
		cls := interp.BuiltinType(id)
		if cls == nil {
			continue
		}
		for _, attr := range cls.Attrs.Names() {
			for _, av := range cls.Attrs.Get(attr).Types.Values() {
				set(av, "builtins:"+cls.Name+"."+attr)
			}
		}
	}
	return idx
}

// encoder flattens one module's value graph into a record. Values the module
// defines are stored inline; everything else is stored as a reference.
type encoder struct {
	module string
	interp map[uint64]string
	index  map[uint64]int
	values []valueRecord
}

func encodeModule(ma *analyzer.ModuleAnalysis, interp map[uint64]string) *moduleRecord {
	e := &encoder{module: ma.Name, interp: interp, index: make(map[uint64]int)}
	rec := &moduleRecord{Name: ma.Name, Path: ma.Path, Doc: ma.Module.Doc}
	rec.Members = e.members(ma.Module.Members())
	rec.Values = e.values
	return rec
}

func (e *encoder) members(ns *values.Namespace) []memberRecord {
	names := ns.Names()
	out := make([]memberRecord, 0, len(names))
	for _, name := range names {
		out = append(out, memberRecord{Name: name, Types: e.refs(ns.Get(name).Types)})
	}
	return out
}

func (e *encoder) refs(ts *values.TypeSet) []typeRef {
	if ts == nil {
		return nil
	}
	var out []typeRef
	for _, v := range ts.Values() {
		if values.IsUnknown(v) {
			continue
		}
		out = append(out, e.ref(v))
	}
	return out
}

func (e *encoder) refPtr(v values.Value) *typeRef {
	if v == nil {
		return nil
	}
	r := e.ref(v)
	return &r
}

func (e *encoder) ref(v values.Value) typeRef {
	switch v.(type) {
	case *values.Class, *values.Function:
		if path, ok := e.interp[v.ID()]; ok {
			return typeRef{Interp: path, Kind: v.Kind()}
		}
	}
	switch t := v.(type) {
	case *values.Module:
		return typeRef{Module: t.Name, Kind: values.KindModule}
	case *values.Class:
		switch {
		case t.Builtin != values.NotBuiltin:
			return typeRef{Builtin: t.Builtin.String(), Kind: values.KindClass}
		case t.Native:
			return typeRef{}
		case t.Module == e.module:
			return e.local(t)
		}
		return typeRef{Module: t.Module, Path: t.Name, Kind: values.KindClass}
	case *values.Instance:
		if t.IsContainer() {
			return e.local(t)
		}
		if t.Class == nil {
			return typeRef{}
		}
		if len(t.Class.Bases) == 1 {
			if ft, ok := t.Class.Bases[0].(*values.ForeignType); ok && ft.Instance() == t {
				return typeRef{Foreign: ft.Path, Kind: values.KindForeignType, Instance: true}
			}
		}
		r := e.ref(t.Class)
		if r.Kind != values.KindClass {
			return typeRef{}
		}
		r.Instance = true
		return r
	case *values.Function:
		switch {
		case t.Native:
			return typeRef{}
		case t.Module == e.module:
			return e.local(t)
		}
		return typeRef{Module: t.Module, Path: qualifiedName(t), Kind: values.KindFunction}
	case *values.BoundMethod, *values.Property, *values.Generic:
		return e.local(v)
	case *values.ForeignType:
		return typeRef{Foreign: t.Path, Kind: values.KindForeignType}
	case *values.ForeignFunction:
		return typeRef{Foreign: t.Path, Kind: values.KindForeignFunction}
	}
	return typeRef{}
}

func qualifiedName(f *values.Function) string {
	if f.Class != nil {
		return f.Class.Name + "." + f.Name
	}
	return f.Name
}

// local returns the inline slot of v, encoding it on first sight. The slot
// is reserved before the fields are encoded so that cycles terminate.
func (e *encoder) local(v values.Value) typeRef {
	if i, ok := e.index[v.ID()]; ok {
		return typeRef{Local: i, Kind: v.Kind()}
	}
	e.values = append(e.values, valueRecord{Kind: v.Kind()})
	i := len(e.values)
	e.index[v.ID()] = i

	rec := valueRecord{Kind: v.Kind()}
	switch t := v.(type) {
	case *values.Class:
		rec.Name, rec.Doc = t.Name, t.Doc
		for _, b := range t.Bases {
			rec.Bases = append(rec.Bases, e.ref(b))
		}
		rec.Metaclass = e.refPtr(t.Metaclass)
		rec.Attrs = e.members(t.Attrs)
		rec.InstanceAttrs = e.members(t.InstanceAttrs)
	case *values.Instance:
		rec.Class = e.refPtr(t.Class)
		rec.Elements = e.refs(t.Elements)
		rec.Keys = e.refs(t.Keys)
		for _, item := range t.Items {
			rec.Items = append(rec.Items, e.refs(item))
		}
	case *values.Function:
		rec.Name, rec.Doc = t.Name, t.Doc
		rec.Flags = functionFlags(t)
		if t.Class != nil {
			rec.Class = e.refPtr(t.Class)
		}
		for _, p := range t.Params {
			rec.Params = append(rec.Params, paramRecord{Name: p.Name, Kind: p.Kind, Default: p.DefaultText, Types: e.refs(p.Types)})
		}
		rec.Returns = e.refs(t.Returns)
	case *values.BoundMethod:
		rec.Func = e.refPtr(t.Func)
		rec.Self = e.refPtr(t.Self)
	case *values.Property:
		if t.Getter != nil {
			rec.Func = e.refPtr(t.Getter)
		}
	case *values.Generic:
		rec.Func = e.refPtr(t.Type)
		for _, a := range t.Args {
			rec.Elements = append(rec.Elements, e.ref(a))
		}
	}
	e.values[i-1] = rec
	return typeRef{Local: i, Kind: v.Kind()}
}

func functionFlags(f *values.Function) int {
	flags := 0
	if f.Static {
		flags |= flagStatic
	}
	if f.ClassMethod {
		flags |= flagClassMethod
	}
	if f.Lambda {
		flags |= flagLambda
	}
	if f.Generator {
		flags |= flagGenerator
	}
	return flags
}

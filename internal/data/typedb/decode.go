package typedb

import (
	"strings"

	"pyintel/internal/engine/values"
)

var builtinIDs = func() map[string]values.BuiltinTypeID {
	m := make(map[string]values.BuiltinTypeID, len(values.AllBuiltinTypes))
	for _, id := range values.AllBuiltinTypes {
		m[id.String()] = id
	}
	return m
}()

// rehydrator rebuilds one module from its record. Rebuilt values have no
// owner, so no analysis pass can mutate them.
type rehydrator struct {
	db     *Interpreter
	rec    *moduleRecord
	mod    *values.Module
	locals []values.Value
}

func newRehydrator(db *Interpreter, rec *moduleRecord) *rehydrator {
	m := values.NewModule(rec.Name, rec.Path, nil)
	m.Doc = rec.Doc
	return &rehydrator{db: db, rec: rec, mod: m}
}

// run allocates every inline value, binds the module members and then fills
// the values in. Members are bound before the values are filled so that a
// module importing this one while it is being rebuilt sees its names.
func (r *rehydrator) run() *values.Module {
	r.locals = make([]values.Value, len(r.rec.Values))
	for i, vr := range r.rec.Values {
		r.locals[i] = r.allocate(vr)
	}
	for _, m := range r.rec.Members {
		r.mod.Members().Set(m.Name, r.typeSet(m.Types).OrUnknown())
	}
	for i, vr := range r.rec.Values {
		r.fill(r.locals[i], vr)
	}
	return r.mod
}

func (r *rehydrator) allocate(vr valueRecord) values.Value {
	switch vr.Kind {
	case values.KindClass:
		c := values.NewClass(vr.Name, r.rec.Name, nil)
		c.Doc = vr.Doc
		return c
	case values.KindFunction:
		f := values.NewFunction(vr.Name, r.rec.Name, nil)
		f.Doc = vr.Doc
		f.Static = vr.Flags&flagStatic != 0
		f.ClassMethod = vr.Flags&flagClassMethod != 0
		f.Lambda = vr.Flags&flagLambda != 0
		f.Generator = vr.Flags&flagGenerator != 0
		return f
	case values.KindInstance:
		return values.NewContainer(nil, nil)
	case values.KindBoundMethod:
		return values.NewBoundMethod(nil, nil, nil)
	case values.KindProperty:
		return values.NewProperty(nil, nil)
	case values.KindGeneric:
		return values.NewGeneric(nil, nil, nil)
	}
	return values.Unknown
}

func (r *rehydrator) fill(v values.Value, vr valueRecord) {
	switch t := v.(type) {
	case *values.Class:
		for _, b := range vr.Bases {
			if bv := r.resolve(b); !values.IsUnknown(bv) {
				t.Bases = append(t.Bases, bv)
			}
		}
		if vr.Metaclass != nil {
			t.Metaclass = r.resolve(*vr.Metaclass)
		}
		for _, m := range vr.Attrs {
			t.Attrs.Set(m.Name, r.typeSet(m.Types).OrUnknown())
		}
		for _, m := range vr.InstanceAttrs {
			t.InstanceAttrs.Set(m.Name, r.typeSet(m.Types).OrUnknown())
		}
	case *values.Function:
		if vr.Class != nil {
			t.Class, _ = r.resolve(*vr.Class).(*values.Class)
		}
		for _, p := range vr.Params {
			t.Params = append(t.Params, &values.Param{Name: p.Name, Kind: p.Kind, DefaultText: p.Default, Types: r.typeSet(p.Types)})
		}
		t.Returns = r.typeSet(vr.Returns)
	case *values.Instance:
		if vr.Class != nil {
			t.Class, _ = r.resolve(*vr.Class).(*values.Class)
		}
		t.Elements = r.typeSet(vr.Elements)
		t.Keys = r.typeSet(vr.Keys)
		for _, item := range vr.Items {
			t.Items = append(t.Items, r.typeSet(item))
		}
	case *values.BoundMethod:
		if vr.Func != nil {
			t.Func, _ = r.resolve(*vr.Func).(*values.Function)
		}
		if vr.Self != nil {
			t.Self = r.resolve(*vr.Self)
		}
		if t.Func == nil {
			// Descriptions and signatures need a function.
			t.Func = values.NewFunction("", r.rec.Name, nil)
		}
	case *values.Property:
		if vr.Func != nil {
			t.Getter, _ = r.resolve(*vr.Func).(*values.Function)
		}
	case *values.Generic:
		if vr.Func != nil {
			t.Type, _ = r.resolve(*vr.Func).(*values.ForeignType)
		}
		for _, a := range vr.Elements {
			t.Args = append(t.Args, r.resolve(a))
		}
		if t.Type == nil {
			t.Type = values.NewForeignType("", "unknown", "", nil)
		}
	}
}

func (r *rehydrator) typeSet(refs []typeRef) *values.TypeSet {
	ts := &values.TypeSet{}
	for _, ref := range refs {
		ts.Add(r.resolve(ref))
	}
	return ts
}

// resolve turns a reference back into a value; anything that no longer
// resolves becomes Unknown.
func (r *rehydrator) resolve(ref typeRef) values.Value {
	var v values.Value
	switch {
	case ref.Local > 0 && ref.Local <= len(r.locals):
		v = r.locals[ref.Local-1]
	case ref.Builtin != "":
		if id, ok := builtinIDs[ref.Builtin]; ok {
			if c := r.db.base.BuiltinType(id); c != nil {
				v = c
			}
		}
	case ref.Interp != "":
		mod, path, _ := strings.Cut(ref.Interp, ":")
		v = walkPath(r.db.baseModule(mod), path, ref.Kind)
	case ref.Module != "" && ref.Path == "":
		if m := r.db.moduleLocked(ref.Module); m != nil {
			v = m
		}
	case ref.Module != "":
		v = walkPath(r.db.moduleLocked(ref.Module), ref.Path, ref.Kind)
	case ref.Foreign != "":
		v = r.db.foreign(ref.Foreign)
	}
	if v == nil {
		return values.Unknown
	}
	if ref.Instance {
		switch t := v.(type) {
		case *values.Class:
			return t.Instance()
		case *values.ForeignType:
			return t.Instance()
		}
		return values.Unknown
	}
	return v
}

// walkPath looks up a dotted path: the first segment is a module member and
// later segments are class attributes. At each step the value of the wanted
// kind wins, otherwise the first class.
func walkPath(m *values.Module, path string, kind values.Kind) values.Value {
	if m == nil || path == "" {
		return nil
	}
	segments := strings.Split(path, ".")
	ts := m.Lookup(segments[0])
	for i := range segments {
		last := i == len(segments)-1
		want := values.KindClass
		if last {
			want = kind
		}
		v := pick(ts, want)
		if v == nil || last {
			return v
		}
		cls, ok := v.(*values.Class)
		if !ok {
			return nil
		}
		ts, _ = cls.LookupClassAttr(segments[i+1])
	}
	return nil
}

func pick(ts *values.TypeSet, kind values.Kind) values.Value {
	if ts == nil {
		return nil
	}
	for _, v := range ts.Values() {
		if v.Kind() == kind {
			return v
		}
	}
	return nil
}

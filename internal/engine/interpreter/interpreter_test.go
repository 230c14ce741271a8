package interpreter

import (
	"testing"

	"pyintel/internal/core/errors"
	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigDSL(t *testing.T) {
	s := sig("iterable", "*", "default", "key=None")
	s.Name = "max"
	assert.Equal(t, "def max(iterable, *, default, key = None)", s.String())

	s = sig("a", "*p", "**kw")
	require.Len(t, s.Params, 3)
	assert.Equal(t, ast.ParamVarArgs, s.Params[1].Kind)
	assert.Equal(t, ast.ParamKwArgs, s.Params[2].Kind)
}

func TestBuiltins_TypesResolve(t *testing.T) {
	b := NewBuiltins("3.12")
	for _, id := range values.AllBuiltinTypes {
		c := b.BuiltinType(id)
		require.NotNil(t, c, id.String())
		assert.Equal(t, id, c.Builtin)
		assert.Nil(t, c.Owner(), "builtin classes are frozen")
	}
	assert.Equal(t, "set", b.BuiltinType(values.TypeSetID).Name)
	assert.Equal(t, "set", values.TypeSetID.String())
	object := b.BuiltinType(values.TypeObject)
	mro := b.BuiltinType(values.TypeBool).MRO()
	require.Len(t, mro, 3)
	assert.Same(t, object, mro[2])
}

func TestBuiltins_Descriptions(t *testing.T) {
	b := NewBuiltins("3.12")
	mod := b.Builtins()

	one := func(name string) values.Value {
		ts := mod.Lookup(name)
		require.NotNil(t, ts, name)
		require.Equal(t, 1, ts.Len(), name)
		return ts.Values()[0]
	}
	assert.Equal(t, "type int", values.Description(one("int")))
	assert.Equal(t, "built-in function len", values.Description(one("len")))
	assert.Equal(t, "None", values.Description(one("None")))
	assert.Equal(t, "type ValueError", values.Description(one("ValueError")))
	assert.Equal(t, "built-in module builtins", values.Description(mod))

	sigs := values.Signatures(one("len"))
	require.Len(t, sigs, 1)
	assert.Equal(t, "def len(obj) -> int", sigs[0].String())
	assert.Len(t, values.Signatures(one("max")), 3)
}

func TestBuiltins_Modules(t *testing.T) {
	b := NewBuiltins("3.12")

	sys, ok := b.ImportModule("sys")
	require.True(t, ok)
	assert.Equal(t, "built-in module sys", values.Description(sys))
	path := sys.Lookup("path")
	require.NotNil(t, path)
	assert.Equal(t, "list of str", values.Description(path.Values()[0]))
	assert.Equal(t, "built-in function getrecursionlimit", values.Description(sys.Lookup("getrecursionlimit").Values()[0]))

	osmod, ok := b.ImportModule("os")
	require.True(t, ok)
	sub := osmod.Lookup("path").Values()[0]
	assert.Equal(t, "built-in module os.path", values.Description(sub))

	_, ok = b.ImportModule("nope")
	assert.False(t, ok)
	assert.Contains(t, b.ModuleNames(), "re")
}

func TestBuiltins_ElementMethods(t *testing.T) {
	b := NewBuiltins("3.12")
	dict := b.BuiltinType(values.TypeDict)
	get, _ := dict.LookupClassAttr("get")
	require.NotNil(t, get)
	fn := get.Values()[0].(*values.Function)
	assert.Equal(t, values.ReturnsElement, fn.Element)
	assert.True(t, fn.IsBuiltin())

	rng, ok := b.Class("range")
	require.True(t, ok)
	assert.Equal(t, "int", values.Description(rng.Iter.Values()[0]))
}

type point struct {
	X, Y int
	Name string
}

func (p *point) Distance(o *point) float64 { return 0 }
func (p *point) Label() (string, error)    { return p.Name, nil }

func TestReflect_Namespaces(t *testing.T) {
	r := NewReflect(NewBuiltins("3.12"))
	require.NoError(t, r.RegisterType("Geometry.Shapes.Point", "A point.", &point{}))
	require.NoError(t, r.RegisterFunc("Geometry.Origin", "The origin.", func() *point { return nil }))

	err := r.RegisterType("Geometry.Shapes.Point", "", point{})
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
	assert.True(t, errors.IsCode(r.RegisterFunc("Geometry.Bad", "", 42), errors.CodeValidationError))

	geo, ok := r.ImportModule("Geometry")
	require.True(t, ok)
	assert.Equal(t, []string{"Origin", "Shapes"}, geo.Members().Names())

	shapes, ok := r.ImportModule("Geometry.Shapes")
	require.True(t, ok)
	pt := shapes.Lookup("Point").Values()[0].(*values.ForeignType)
	assert.Equal(t, "type Point", values.Description(pt))
	assert.Equal(t, []string{"Distance", "Label", "Name", "X", "Y"}, pt.MemberNames())

	dist, ok := pt.Member("Distance")
	require.True(t, ok)
	sigs := values.Signatures(dist)
	require.Len(t, sigs, 1)
	assert.Equal(t, "def Distance(arg0: Point) -> float", sigs[0].String())

	label, _ := pt.Member("Label")
	assert.Equal(t, []string{"str"}, values.Signatures(label)[0].Returns)

	origin := geo.Lookup("Origin").Values()[0].(*values.ForeignFunction)
	assert.Equal(t, "built-in function Origin", values.Description(origin))
	assert.Same(t, pt.Instance(), origin.Returns.Values()[0])

	_, ok = r.ImportModule("sys")
	assert.True(t, ok, "falls back to the base interpreter")
	assert.Contains(t, r.ModuleNames(), "Geometry.Shapes")
}

func TestReflect_GenericConstructors(t *testing.T) {
	r := NewReflect(NewBuiltins("3.12"))
	require.NoError(t, r.RegisterGeneric("System.Collections.Generic.Dictionary", "Maps keys to values.",
		[]string{"TKey", "TValue"},
		values.Signature{},
		values.Signature{Params: []values.SigParam{{Name: "capacity", Type: "int"}}},
		values.Signature{Params: []values.SigParam{{Name: "comparer", Type: "TKey"}}},
	))
	v, ok := r.LookupForeign("System.Collections.Generic.Dictionary")
	require.True(t, ok)
	ft := v.(*values.ForeignType)

	b := r.Interpreter
	g := values.NewGeneric(ft, []values.Value{b.BuiltinType(values.TypeInt), b.BuiltinType(values.TypeStr)}, nil)
	assert.Equal(t, "Dictionary[int, str]", values.Description(g))
	sigs := values.Signatures(g)
	require.Len(t, sigs, 3)
	assert.Equal(t, "def Dictionary[int, str](comparer: int) -> Dictionary[int, str]", sigs[2].String())
}

package analyzer

import (
	"context"
	"sort"
	"strings"
	"testing"

	"pyintel/internal/engine/interpreter"
	"pyintel/internal/engine/parser"
	"pyintel/internal/engine/values"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapImporter map[string]*values.Module

func (m mapImporter) ImportModule(name string) (*values.Module, bool) {
	mod, ok := m[name]
	return mod, ok
}

type harness struct {
	t       *testing.T
	interp  values.Interpreter
	modules mapImporter
	parser  *parser.Parser
	cfg     Config
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:       t,
		interp:  interpreter.NewBuiltins("3.12"),
		modules: mapImporter{},
		parser:  parser.New(),
		cfg:     DefaultConfig(),
	}
}

func (h *harness) analyze(name, src string) *ModuleAnalysis {
	h.t.Helper()
	path := strings.ReplaceAll(name, ".", "/") + ".py"
	return h.analyzePath(name, path, src)
}

func (h *harness) analyzePath(name, path, src string) *ModuleAnalysis {
	h.t.Helper()
	res, err := h.parser.Parse(name, []byte(src))
	require.NoError(h.t, err)
	a := New(h.interp, h.modules, h.cfg)
	ma := a.Analyze(context.Background(), Input{Name: name, Path: path, Tree: res.Module})
	h.modules[name] = ma.Module
	return ma
}

func descriptions(ts *values.TypeSet) []string {
	var out []string
	for _, v := range ts.Values() {
		out = append(out, values.Description(v))
	}
	sort.Strings(out)
	return out
}

func exported(ma *ModuleAnalysis, name string) []string {
	return descriptions(ma.Module.Lookup(name))
}

func TestAnalyze_UnionSemantics(t *testing.T) {
	h := newHarness(t)
	ma := h.analyze("m", "class X: pass\nclass Y: pass\nx = X()\nx = Y()\n")

	ts := ma.Module.Lookup("x")
	require.Equal(t, 2, ts.Len())
	assert.Equal(t, []string{"X instance", "Y instance"}, descriptions(ts))
}

func TestAnalyze_CrossModuleScenario(t *testing.T) {
	h := newHarness(t)
	h.analyze("bar", "def f():\n    return 42\n")
	h.analyze("foo", "import bar\nx = bar.f()\n")
	ma := h.analyze("baz", "import foo\nabc = foo.x\n")

	src := "import foo\nabc = foo.x\n"
	assert.Equal(t, []string{"int"}, descriptions(ma.Lookup("abc", len(src))))
}

func TestAnalyze_Redefinition(t *testing.T) {
	h := newHarness(t)
	ma := h.analyze("m", `def f():
    '''help 1'''
    return 1

def f():
    '''help 2'''
    return 'x'

x = f()
`)
	fs := ma.Module.Lookup("f")
	require.Equal(t, 2, fs.Len())
	assert.Equal(t, "help 1\n\nhelp 2", values.JoinDocs(fs))
	assert.Equal(t, []string{"int", "str"}, exported(ma, "x"))
}

func summarize(ma *ModuleAnalysis) map[string][]string {
	out := map[string][]string{}
	for _, n := range ma.Module.Members().Names() {
		ts := ma.Module.Lookup(n)
		descs := descriptions(ts)
		descs = append(descs, "doc:"+values.JoinDocs(ts))
		for _, v := range ts.Values() {
			descs = append(descs, values.MemberNames(v, ma.Interpreter())...)
		}
		out[n] = descs
	}
	return out
}

const classProgram = `
class Base(object):
    '''Base doc.'''
    def __init__(self, value):
        self.value = value

    def describe(self):
        return "base"

class Child(Base):
    def __init__(self, value):
        super().__init__(value)
        self.extra = [1, 2]

    @property
    def size(self):
        return 42

    @staticmethod
    def make():
        return Child(1)

    @classmethod
    def build(cls):
        return cls(2)

c = Child("x")
v = c.value
d = c.describe()
s = c.size
m = Child.make
e = c.extra
b = Child.build()
p = Child.size
`

func TestAnalyze_Determinism(t *testing.T) {
	h := newHarness(t)
	first := summarize(h.analyze("m", classProgram))
	second := summarize(h.analyze("m", classProgram))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-analysis changed the module (-first +second):\n%s", diff)
	}
}

func TestAnalyze_Classes(t *testing.T) {
	h := newHarness(t)
	ma := h.analyze("m", classProgram)

	assert.Contains(t, exported(ma, "v"), "str")
	assert.Contains(t, exported(ma, "v"), "int")
	assert.Equal(t, []string{"str"}, exported(ma, "d"))
	assert.Equal(t, []string{"int"}, exported(ma, "s"))
	assert.Equal(t, []string{"function make"}, exported(ma, "m"))
	assert.Equal(t, []string{"list of int"}, exported(ma, "e"))
	assert.Equal(t, []string{"Child instance"}, exported(ma, "b"))
	assert.Equal(t, []string{"property of type int"}, exported(ma, "p"))

	child := ma.Module.Lookup("Child").Values()[0].(*values.Class)
	mro := child.MRO()
	require.Len(t, mro, 3)
	assert.Equal(t, "type object", values.ShortDescription(mro[2]))
	assert.Contains(t, values.MemberNames(child.Instance(), ma.Interpreter()), "value")
	assert.Contains(t, values.MemberNames(child.Instance(), ma.Interpreter()), "describe")
}

func TestAnalyze_Monotonicity(t *testing.T) {
	h := newHarness(t)
	res, err := h.parser.Parse("m", []byte(`
def grow(x):
    items = [x]
    return items

a = grow(1)
for i in range(3):
    a = grow("s")
total = 0
while total < 10:
    total = total + 1.5
`))
	require.NoError(t, err)
	a := New(h.interp, h.modules, h.cfg)
	p := newPass(context.Background(), a, Input{Name: "m", Path: "m.py", Tree: res.Module})

	sizes := map[string]int{}
	changed := true
	for i := 0; changed && i < h.cfg.MaxIterations; i++ {
		changed = p.step()
		for _, n := range p.mod.Members().Names() {
			size := p.mod.Lookup(n).Len()
			assert.GreaterOrEqual(t, size, sizes[n], "binding %s shrank", n)
			sizes[n] = size
		}
	}
	assert.False(t, changed, "pass must reach a fixed point")
	assert.Equal(t, []string{"float", "int"}, descriptions(p.mod.Lookup("total")))
}

func TestAnalyze_Containers(t *testing.T) {
	h := newHarness(t)
	ma := h.analyze("m", `
items = [1, 2]
for i in items:
    pass
d = {"a": 1.5}
for k in d:
    pass
val = d.get("a")
t = (1, "s")
a, b = t
lst = []
lst.append("x")
first = lst[0]
with open("f") as fh:
    line = fh.readline()
n = len(items)
sq = [x * 2.0 for x in items]
pairs = dict(one=1)
for idx, item in enumerate(items):
    pass
`)
	cases := map[string][]string{
		"i":     {"int"},
		"k":     {"str"},
		"val":   {"float"},
		"a":     {"int"},
		"b":     {"str"},
		"first": {"str"},
		"line":  {"str"},
		"n":     {"int"},
		"sq":    {"list of float"},
		"d":     {"dict({str : float})"},
		"t":     {"tuple of int, str"},
		"pairs": {"dict({str : int})"},
		"idx":   {"int"},
		"item":  {"int"},
	}
	for name, want := range cases {
		assert.Equal(t, want, exported(ma, name), name)
	}
}

func TestAnalyze_Imports(t *testing.T) {
	h := newHarness(t)
	h.analyzePath("pkg", "pkg/__init__.py", "")
	h.analyze("pkg.helper", "VALUE = 1\ndef helper():\n    return 'h'\n")
	ma := h.analyze("pkg.sub", `
import sys
import os.path
from os.path import join as pjoin
from . import helper
from .helper import VALUE
from .helper import *
from missing import thing
p = sys.path
j = os.path.join
`)
	assert.Equal(t, []string{"list of str"}, exported(ma, "p"))
	assert.Equal(t, []string{"built-in function join"}, exported(ma, "j"))
	assert.Equal(t, []string{"built-in function join"}, exported(ma, "pjoin"))
	// The star import rebinds helper to the function of the same name.
	assert.Equal(t, []string{"function helper", "module pkg.helper"}, exported(ma, "helper"))
	assert.Equal(t, []string{"int"}, exported(ma, "VALUE"))
	assert.Equal(t, []string{"unknown"}, exported(ma, "thing"))
	assert.Equal(t, []string{"built-in module os"}, exported(ma, "os"))
}

func TestResolveRelative(t *testing.T) {
	assert.Equal(t, "pkg.helper", ResolveRelative("pkg", 1, "helper"))
	assert.Equal(t, "pkg", ResolveRelative("pkg", 1, ""))
	assert.Equal(t, "a.c", ResolveRelative("a.b", 2, "c"))
	assert.Equal(t, "os", ResolveRelative("x", 0, "os"))
}

func TestImports(t *testing.T) {
	h := newHarness(t)
	res, err := h.parser.Parse("pkg.mod", []byte("import a.b\nfrom . import c\nfrom .d import e\nfrom f import *\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a.b", "pkg", "pkg.d", "f"}, Imports("pkg.mod", false, res.Module))
	assert.Equal(t, []string{"pkg.c", "pkg.d.e"}, ImportCandidates("pkg.mod", false, res.Module))
}

func TestAnalyze_CallContexts(t *testing.T) {
	h := newHarness(t)
	ma := h.analyze("m", `
def ident(x):
    return x

a = ident(1)
b = ident("s")

def fact(n):
    if n <= 1:
        return 1
    return n * fact(n - 1)

r = fact(5)

def ping(n):
    return pong(n)

def pong(n):
    return ping(n)

z = ping(1)

def nothing():
    pass

none = nothing()
`)
	assert.Equal(t, []string{"int"}, exported(ma, "a"))
	assert.Equal(t, []string{"str"}, exported(ma, "b"))
	assert.Equal(t, []string{"int"}, exported(ma, "r"))
	assert.NotEmpty(t, exported(ma, "z"))
	assert.Equal(t, []string{"None"}, exported(ma, "none"))

	ident := ma.Module.Lookup("ident").Values()[0].(*values.Function)
	assert.Equal(t, []string{"int", "str"}, descriptions(ident.Returns))
}

func TestAnalyze_FlowSensitiveLookup(t *testing.T) {
	h := newHarness(t)
	src := "x = 1\ny = x\nx = 'now a string'\n"
	ma := h.analyze("m", src)

	mid := strings.Index(src, "y =")
	assert.Equal(t, []string{"int"}, descriptions(ma.Lookup("x", mid)))
	assert.Equal(t, []string{"int", "str"}, descriptions(ma.Lookup("x", len(src))))
	assert.Equal(t, []string{"built-in function len"}, descriptions(ma.Lookup("len", len(src))))
}

func TestAnalyze_LookupBeforeFirstDefinition(t *testing.T) {
	h := newHarness(t)
	src := "y = 0\nx = 1\nx = 'a'\nlen = 3\n"
	ma := h.analyze("m", src)

	before := strings.Index(src, "x = 1")
	assert.True(t, ma.Lookup("x", before).IsUnknown())
	assert.True(t, ma.Lookup("x", 0).IsUnknown())
	assert.Equal(t, []string{"int"}, descriptions(ma.Lookup("y", before)))

	// A later module-level rebinding does not hide the builtin before it.
	assert.Equal(t, []string{"built-in function len"}, descriptions(ma.Lookup("len", before)))
	assert.Equal(t, []string{"int"}, descriptions(ma.Lookup("len", len(src))))
}

func TestAnalyze_GenericCrossProduct(t *testing.T) {
	h := newHarness(t)
	r := interpreter.NewReflect(interpreter.NewBuiltins("3.12"))
	require.NoError(t, r.RegisterGeneric("System.Collections.Generic.Dictionary", "", []string{"TKey", "TValue"},
		values.Signature{Params: []values.SigParam{{Name: "comparer", Type: "TKey"}}}))
	h.interp = r

	ma := h.analyze("m", `
import System.Collections.Generic as G
K = int
K = str
V = int
V = str
V = float
d = G.Dictionary[K, V]
`)
	ts := ma.Module.Lookup("d")
	require.Equal(t, 6, ts.Len())
	total := 0
	for _, v := range ts.Values() {
		total += len(values.Signatures(v))
	}
	assert.Equal(t, 6, total)
	assert.Contains(t, descriptions(ts), "Dictionary[str, float]")
}

type panicImporter struct{ mapImporter }

func (p panicImporter) ImportModule(name string) (*values.Module, bool) {
	if name == "boom" {
		panic("importer exploded")
	}
	return p.mapImporter.ImportModule(name)
}

func TestAnalyze_RecoversFromPanics(t *testing.T) {
	h := newHarness(t)
	res, err := h.parser.Parse("m", []byte("import boom\ny = 1\n"))
	require.NoError(t, err)
	a := New(h.interp, panicImporter{mapImporter{}}, h.cfg)
	ma := a.Analyze(context.Background(), Input{Name: "m", Path: "m.py", Tree: res.Module})

	assert.Equal(t, []string{"unknown"}, exported(ma, "boom"))
	assert.Equal(t, []string{"int"}, exported(ma, "y"))
}

func TestFingerprint(t *testing.T) {
	h := newHarness(t)
	a := h.analyze("m", "def f():\n    return 1\n")
	b := h.analyze("m", "def f():\n    return 1\n\n# comment\n")
	c := h.analyze("m", "def f():\n    return 'changed'\n")
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
}

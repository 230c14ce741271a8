package query

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"pyintel/internal/engine/graph"
	"pyintel/internal/engine/interpreter"
	"pyintel/internal/engine/parser"
	"pyintel/internal/engine/values"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProject(t *testing.T, modules map[string]string) *graph.ProjectState {
	t.Helper()
	ps := graph.New(interpreter.NewBuiltins("3.12"), nil)
	t.Cleanup(func() { _ = ps.Close() })
	for name, src := range modules {
		e, err := ps.AddModule(name, name+".py")
		require.NoError(t, err)
		require.NoError(t, ps.UpdateSource(e, []byte(src)))
	}
	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	return ps
}

func snapshot(t *testing.T, ps *graph.ProjectState, name string) *Snapshot {
	t.Helper()
	snap, err := NewService(ps).Snapshot(context.Background(), name)
	require.NoError(t, err)
	return snap
}

func descriptions(vs []values.Value) []string {
	var out []string
	for _, v := range vs {
		out = append(out, values.Description(v))
	}
	return out
}

func TestAnalyzeExpression(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		marker string
		want   string
		ok     bool
	}{
		{"chain end", "x = a.b(c, d).e", "e", "a.b(c, d).e", true},
		{"inside callee", "x = a.b(c, d).e", "b", "a.b", true},
		{"argument", "x = a.b(c, d).e", "c", "c", true},
		{"call suffix", "print(x)\n", ")", "print(x)", true},
		{"multi-line call", "foo(a,\n    b).bar", "r", "foo(a,\n    b).bar", true},
		{"subscript", "items[0].real", "l", "items[0].real", true},
		{"keyword", "while x:\n    pass", "while", "", false},
		{"after keyword", "if (a).b:\n    pass", "b", "(a).b", true},
		{"string receiver", "'abc'.upper", "r", "'abc'.upper", true},
		{"comment", "x = 1  # a.b", "b", "", false},
		{"unbalanced", "x = a)", ")", "", false},
		{"spaced dots", "self . value", "value", "self . value", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Cursor on the last character of the marker.
			offset := strings.LastIndex(tc.text, tc.marker) + len(tc.marker)
			got, ok := AnalyzeExpression(tc.text, offset)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got.Text)
			if ok {
				assert.Equal(t, tc.want, strings.TrimSpace(tc.text[got.Span.Start:got.Span.End]))
			}
		})
	}
}

const queryModule = `class C(object):
    '''A thing.'''
    def __init__(self):
        self.value = 1

    def method(self, n):
        return str(n)

def f(x=42, *rest, k):
    '''Adds.'''
    return 1

def outer(arg):
    local = arg
    return local

c = C()
x = 1
y = x
x = 'changed'
items = [1.5]
print(x)
`

func TestSnapshot_ValuesAndMembers(t *testing.T) {
	ps := newProject(t, map[string]string{"m": queryModule})
	snap := snapshot(t, ps, "m")
	end := len(queryModule)

	members, err := snap.GetMembersByIndex("c", end)
	require.NoError(t, err)
	assert.Contains(t, members, "value")
	assert.Contains(t, members, "method")
	assert.Contains(t, members, "__init__")

	listMembers, err := snap.GetMembersByIndex("items", end)
	require.NoError(t, err)
	assert.Contains(t, listMembers, "append")

	mid := strings.Index(queryModule, "y = x")
	vals, err := snap.GetValuesByIndex("x", mid)
	require.NoError(t, err)
	assert.Equal(t, []string{"int"}, descriptions(vals))

	vals, err = snap.GetValuesByIndex("x", end)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"int", "str"}, descriptions(vals))

	vals, err = snap.GetValuesByIndex("c.method(1)", end)
	require.NoError(t, err)
	assert.Equal(t, []string{"str"}, descriptions(vals))

	_, err = snap.GetValuesByIndex("x +", end)
	assert.Error(t, err)
}

func TestSnapshot_ValuesFollowFlowOrder(t *testing.T) {
	src := "y = 0\nx = 1\nx = 'a'\n"
	ps := newProject(t, map[string]string{"m": src})
	snap := snapshot(t, ps, "m")

	vs, err := snap.GetValuesByIndex("x", strings.Index(src, "x = 1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"unknown"}, descriptions(vs))

	vs, err = snap.GetValuesByIndex("x", strings.Index(src, "x = 'a'"))
	require.NoError(t, err)
	assert.Equal(t, []string{"int"}, descriptions(vs))

	vs, err = snap.GetValuesByIndex("x", len(src))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"int", "str"}, descriptions(vs))
}

func TestSnapshot_SignaturesAndDescriptions(t *testing.T) {
	ps := newProject(t, map[string]string{"m": queryModule})
	snap := snapshot(t, ps, "m")
	end := len(queryModule)

	sigs, err := snap.GetSignaturesByIndex("f", end)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "def f(x = 42, *rest, k) -> int", sigs[0].String())

	sigs, err = snap.GetSignaturesByIndex("max", end)
	require.NoError(t, err)
	assert.Len(t, sigs, 3)

	sigs, err = snap.GetSignaturesByIndex("c.method", end)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "def method(n) -> str", sigs[0].String())

	descs, err := snap.GetDescriptionsByIndex("f", end)
	require.NoError(t, err)
	assert.Equal(t, []string{"def f(x = 42, *rest, k) -> int"}, descs)

	descs, err = snap.GetDescriptionsByIndex("C", end)
	require.NoError(t, err)
	assert.Equal(t, []string{"class C"}, descs)

	descs, err = snap.GetDescriptionsByIndex("c.method", end)
	require.NoError(t, err)
	assert.Equal(t, []string{"bound method method"}, descs)

	short, err := snap.GetShortDescriptionsByIndex("C", end)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, short)

	short, err = snap.GetShortDescriptionsByIndex("int", end)
	require.NoError(t, err)
	assert.Equal(t, []string{"type int"}, short)

	ids, err := snap.GetTypeIDsByIndex("items", end)
	require.NoError(t, err)
	assert.Equal(t, []values.BuiltinTypeID{values.TypeList}, ids)

	info, err := snap.GetQuickInfoByIndex("f", end)
	require.NoError(t, err)
	assert.Equal(t, "def f(x = 42, *rest, k) -> int\nAdds.", info)

	info, err = snap.GetQuickInfoByIndex("c", end)
	require.NoError(t, err)
	assert.Equal(t, "c: C instance", info)
}

func TestSnapshot_Variables(t *testing.T) {
	ps := newProject(t, map[string]string{
		"m":   queryModule,
		"lib": "X = 1\n",
		"app": "import lib\nv = lib.X\n",
	})
	snap := snapshot(t, ps, "m")

	locs, err := snap.GetVariablesByIndex("x", len(queryModule))
	require.NoError(t, err)
	var got []string
	for _, l := range locs {
		got = append(got, fmt.Sprintf("%s@%d:%d", l.Kind, l.Line, l.Column))
	}
	assert.Equal(t, []string{"definition@18:1", "reference@19:5", "definition@20:1", "reference@22:7"}, got)

	// Instance attributes resolve to their assignment in __init__.
	locs, err = snap.GetVariablesByIndex("c.value", len(queryModule))
	require.NoError(t, err)
	require.NotEmpty(t, locs)
	assert.Equal(t, Definition, locs[0].Kind)
	assert.Equal(t, 4, locs[0].Line)

	appSnap := snapshot(t, ps, "app")
	locs, err = appSnap.GetVariablesByIndex("lib.X", len("import lib\nv = lib.X\n"))
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, Location{Module: "lib", Path: "lib.py", Line: 1, Column: 1, Kind: Definition}, locs[0])

	_, err = snap.GetVariablesByIndex("f()", 0)
	assert.Error(t, err)
}

func TestSnapshot_AllAvailableMembers(t *testing.T) {
	ps := newProject(t, map[string]string{"m": queryModule})
	snap := snapshot(t, ps, "m")

	inside := strings.Index(queryModule, "return local")
	names := snap.GetAllAvailableMembersByIndex(inside)
	for _, want := range []string{"local", "arg", "outer", "C", "x", "len", "None"} {
		assert.Contains(t, names, want)
	}

	names = snap.GetAllAvailableMembersByIndex(len(queryModule))
	assert.NotContains(t, names, "local")
	assert.NotContains(t, names, "value", "class bodies are not visible from outside")
}

type fakeCatalog struct {
	modules map[string][]string
}

func (f fakeCatalog) ModulesExporting(_ context.Context, name string) ([]string, error) {
	var out []string
	for mod, names := range f.modules {
		for _, n := range names {
			if n == name {
				out = append(out, mod)
			}
		}
	}
	return out, nil
}

func (f fakeCatalog) HasModule(_ context.Context, name string) (bool, error) {
	_, ok := f.modules[name]
	return ok, nil
}

func TestImportSuggestions(t *testing.T) {
	src := "def g(param):\n    return param\ng(1)\ngetrecursionlimit()\nmodule_func()\ntest_package\nsys.path\n"
	ps := newProject(t, map[string]string{"m": src})
	snap := snapshot(t, ps, "m")
	catalog := MultiCatalog{
		InterpreterCatalog{Interp: ps.Interpreter()},
		fakeCatalog{modules: map[string][]string{
			"test_module":              {"module_func"},
			"deep.pkg.test_module":     {"module_func"},
			"_private":                 {"module_func"},
			"test_package":             {"sub_package"},
			"test_package.sub_package": {"subpackage_method"},
		}},
	}
	ctx := context.Background()
	statements := func(expr string, index int) []string {
		got, err := ImportSuggestions(ctx, snap, catalog, expr, index)
		require.NoError(t, err)
		var out []string
		for _, s := range got {
			out = append(out, s.Statement())
		}
		return out
	}

	assert.Equal(t, []string{"from sys import getrecursionlimit"}, statements("getrecursionlimit", strings.Index(src, "getrec")))
	assert.Equal(t, []string{"from test_module import module_func", "from deep.pkg.test_module import module_func"},
		statements("module_func", strings.Index(src, "module_func")))
	assert.Equal(t, []string{"import test_package"}, statements("test_package", strings.Index(src, "test_package")))
	assert.Equal(t, []string{"import sys"}, statements("sys.path", strings.Index(src, "sys.path")))
	assert.Empty(t, statements("param", strings.Index(src, "return param")+len("return ")))
	assert.Empty(t, statements("len", len(src)))
}

func TestAddImport_MergesIntoFromImport(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"plain", "from test_module import module_func_2\nmodule_func()", "from test_module import module_func_2, module_func\nmodule_func()"},
		{"as name", "from test_module import module_func_2 as bar\nmodule_func()", "from test_module import module_func_2 as bar, module_func\nmodule_func()"},
		{"parens", "from test_module import (module_func_2)\nmodule_func()", "from test_module import (module_func_2, module_func)\nmodule_func()"},
		{"parens as name", "from test_module import (module_func_2 as bar)\nmodule_func()", "from test_module import (module_func_2 as bar, module_func)\nmodule_func()"},
		{"parens as name trailing comma", "from test_module import (module_func_2 as bar,)\nmodule_func()", "from test_module import (module_func_2 as bar, module_func)\nmodule_func()"},
		{"parens trailing comma", "from test_module import (module_func_2,)\nmodule_func()", "from test_module import (module_func_2, module_func)\nmodule_func()"},
		{"order kept", "from test_module import (a as x, b)\n", "from test_module import (a as x, b, module_func)\n"},
	}
	p := parser.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := p.Parse("m", []byte(tc.src))
			require.NoError(t, err)
			edit, ok := AddImport([]byte(tc.src), res.Module, ImportSuggestion{Module: "test_module", Name: "module_func"})
			require.True(t, ok)
			assert.Equal(t, tc.want, string(edit.Apply([]byte(tc.src))))
		})
	}
}

func TestAddImport_InsertionPoint(t *testing.T) {
	cases := []struct {
		name string
		src  string
		s    ImportSuggestion
		want string
	}{
		{"docstring", "'''foo'''\n\nitertools", ImportSuggestion{Module: "itertools"}, "'''foo'''\nimport itertools\n\nitertools"},
		{"unicode docstring", "u'''foo'''\n\nitertools", ImportSuggestion{Module: "itertools"}, "u'''foo'''\nimport itertools\n\nitertools"},
		{"future goes first", "'''foo'''\nimport itertools\n\nwith_statement", ImportSuggestion{Module: "__future__", Name: "with_statement"},
			"'''foo'''\nfrom __future__ import with_statement\nimport itertools\n\nwith_statement"},
		{"after future", "from __future__ import annotations\nx = 1\n", ImportSuggestion{Module: "os"}, "from __future__ import annotations\nimport os\nx = 1\n"},
		{"empty module", "module_func()", ImportSuggestion{Module: "test_module", Name: "module_func"}, "from test_module import module_func\nmodule_func()"},
		{"docstring only", "'''doc'''", ImportSuggestion{Module: "os"}, "'''doc'''\nimport os\n"},
	}
	p := parser.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := p.Parse("m", []byte(tc.src))
			require.NoError(t, err)
			edit, ok := AddImport([]byte(tc.src), res.Module, tc.s)
			require.True(t, ok)
			assert.Equal(t, tc.want, string(edit.Apply([]byte(tc.src))))
		})
	}
}

func TestAddImport_AlreadyImported(t *testing.T) {
	p := parser.New()
	src := "import os\nfrom sys import path as p\n"
	res, err := p.Parse("m", []byte(src))
	require.NoError(t, err)

	_, ok := AddImport([]byte(src), res.Module, ImportSuggestion{Module: "os"})
	assert.False(t, ok)
	_, ok = AddImport([]byte(src), res.Module, ImportSuggestion{Module: "sys", Name: "p"})
	assert.False(t, ok)
	edit, ok := AddImport([]byte(src), res.Module, ImportSuggestion{Module: "sys", Name: "argv"})
	require.True(t, ok)
	assert.Equal(t, "import os\nfrom sys import path as p, argv\n", string(edit.Apply([]byte(src))))
}

func TestService_ModuleDetails(t *testing.T) {
	ps := newProject(t, map[string]string{
		"lib": "X = 1\n",
		"app": "import lib\nimport missing\nv = lib.X\n",
	})
	svc := NewService(ps)
	ctx := context.Background()

	rows, err := svc.ListModules(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "app", rows[0].Name)
	assert.Equal(t, "analyzed", rows[0].State)
	assert.Equal(t, 1, rows[0].Dependencies)
	assert.Equal(t, 1, rows[1].Dependents)
	assert.InDelta(t, 2.5, rows[1].Importance, 1e-9)

	rows, err = svc.ListModules(ctx, "LI", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	details, err := svc.ModuleDetails(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib"}, details.Dependencies)
	assert.Contains(t, details.Unresolved, "missing")
	assert.Contains(t, details.Exports, ExportedName{Name: "v", Types: []string{"int"}})

	_, err = svc.ModuleDetails(ctx, "nope")
	assert.Error(t, err)
}

package parser

import (
	"testing"

	"pyintel/internal/engine/ast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *ast.Module {
	t.Helper()
	res, err := New().Parse("test", []byte(src))
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics, "unexpected diagnostics for %q", src)
	return res.Module
}

func TestParse_DefinitionsAndDocs(t *testing.T) {
	src := `"""module doc"""

class C(Base, metaclass=Meta):
    """class doc"""
    @property
    def size(self, x=42, *args, key, **kw) -> int:
        """size doc"""
        return 1
`
	mod := parse(t, src)
	assert.Equal(t, "module doc", mod.Doc)
	assert.Equal(t, len(`"""module doc"""`), mod.DocEnd)
	require.Len(t, mod.Body, 2)

	cls, ok := mod.Body[1].(*ast.ClassDef)
	require.True(t, ok)
	assert.Equal(t, "C", cls.Name)
	assert.Equal(t, "class doc", cls.Doc)
	require.Len(t, cls.Bases, 2)
	assert.Equal(t, ast.ArgKeyword, cls.Bases[1].Kind)
	assert.Equal(t, "metaclass", cls.Bases[1].Name)

	fn, ok := cls.Body[1].(*ast.FuncDef)
	require.True(t, ok)
	assert.Equal(t, "size", fn.Name)
	assert.Equal(t, "size doc", fn.Doc)
	require.Len(t, fn.Decorators, 1)
	assert.Equal(t, "property", fn.Decorators[0].(*ast.Name).ID)
	require.Len(t, fn.Params, 5)
	assert.Equal(t, "42", fn.Params[1].DefaultText)
	assert.Equal(t, ast.ParamVarArgs, fn.Params[2].Kind)
	assert.Equal(t, "args", fn.Params[2].Name)
	assert.Equal(t, ast.ParamKeywordOnly, fn.Params[3].Kind)
	assert.Equal(t, ast.ParamKwArgs, fn.Params[4].Kind)
	assert.NotNil(t, fn.Returns)
	assert.Equal(t, src[fn.NameSpan.Start:fn.NameSpan.End], "size")
}

func TestParse_Imports(t *testing.T) {
	src := "import os.path as p, sys\nfrom ..pkg import (a as b, c,)\nfrom . import sib\nfrom m import *\n"
	mod := parse(t, src)
	require.Len(t, mod.Body, 4)

	imp := mod.Body[0].(*ast.Import)
	require.Len(t, imp.Names, 2)
	assert.Equal(t, "os.path", imp.Names[0].Name)
	assert.Equal(t, "p", imp.Names[0].AsName)
	assert.Equal(t, "sys", imp.Names[1].Bound())

	from := mod.Body[1].(*ast.ImportFrom)
	assert.Equal(t, 2, from.Level)
	assert.Equal(t, "pkg", from.Module)
	require.Len(t, from.Names, 2)
	assert.Equal(t, "b", from.Names[0].AsName)
	assert.Equal(t, "c", from.Names[1].Name)
	assert.Equal(t, "(a as b, c,)", src[from.Parens.Start:from.Parens.End])

	rel := mod.Body[2].(*ast.ImportFrom)
	assert.Equal(t, 1, rel.Level)
	assert.Equal(t, "", rel.Module)
	assert.Equal(t, "sib", rel.Names[0].Name)

	star := mod.Body[3].(*ast.ImportFrom)
	assert.True(t, star.Star)
	assert.Equal(t, "m", star.Module)
}

func TestParse_Statements(t *testing.T) {
	src := `a = b = [1, 2.0]
x, y = 1, "s"
n += 1
for i in range(3):
    pass
else:
    pass
if a:
    pass
elif b:
    pass
else:
    pass
try:
    pass
except ValueError as e:
    pass
finally:
    pass
with open(f) as fh:
    pass
`
	mod := parse(t, src)
	require.Len(t, mod.Body, 7)

	as := mod.Body[0].(*ast.Assign)
	assert.Len(t, as.Targets, 2)
	lst := as.Value.(*ast.List)
	assert.Equal(t, ast.ConstFloat, lst.Elts[1].(*ast.Constant).Kind)

	tup := mod.Body[1].(*ast.Assign)
	assert.Len(t, tup.Targets[0].(*ast.Tuple).Elts, 2)
	assert.Len(t, tup.Value.(*ast.Tuple).Elts, 2)

	aug := mod.Body[2].(*ast.AugAssign)
	assert.Equal(t, "+", aug.Op)

	loop := mod.Body[3].(*ast.For)
	assert.Equal(t, "i", loop.Target.(*ast.Name).ID)
	assert.Len(t, loop.Else, 1)

	ifs := mod.Body[4].(*ast.If)
	elif := ifs.Else[0].(*ast.If)
	assert.Len(t, elif.Else, 1)

	try := mod.Body[5].(*ast.Try)
	require.Len(t, try.Handlers, 1)
	assert.Equal(t, "e", try.Handlers[0].Name)
	assert.Equal(t, "ValueError", try.Handlers[0].Type.(*ast.Name).ID)
	assert.Len(t, try.Finally, 1)

	with := mod.Body[6].(*ast.With)
	require.Len(t, with.Items, 1)
	assert.Equal(t, "fh", with.Items[0].Target.(*ast.Name).ID)
	assert.IsType(t, &ast.Call{}, with.Items[0].Context)
}

func TestParse_StringsDecode(t *testing.T) {
	mod := parse(t, "s = 'a\\nb'\nr = r'a\\nb'\nb = b\"x\"\nc = 'x' 'y'\n")
	get := func(i int) *ast.Constant { return mod.Body[i].(*ast.Assign).Value.(*ast.Constant) }

	assert.Equal(t, "a\nb", get(0).Text)
	assert.Equal(t, `a\nb`, get(1).Text)
	assert.Equal(t, ast.ConstBytes, get(2).Kind)
	assert.Equal(t, "xy", get(3).Text)
}

func TestParse_SyntaxErrorStillProducesTree(t *testing.T) {
	res, err := New().Parse("broken", []byte("x = 1\ndef f(:\n    pass\ny = 2\n"))
	require.NoError(t, err)
	require.True(t, res.HasErrors())
	assert.GreaterOrEqual(t, res.Diagnostics[0].Line, 2)

	var names []string
	ast.Inspect(res.Module, func(n ast.Node) bool {
		if as, ok := n.(*ast.Assign); ok {
			if nm, ok := as.Targets[0].(*ast.Name); ok {
				names = append(names, nm.ID)
			}
		}
		return true
	})
	assert.Contains(t, names, "x")
}

func TestParseExpression(t *testing.T) {
	p := New()

	e, err := p.ParseExpression("a.b(c, d).e")
	require.NoError(t, err)
	attr, ok := e.(*ast.Attribute)
	require.True(t, ok)
	assert.Equal(t, "e", attr.Attr)
	call, ok := attr.Value.(*ast.Call)
	require.True(t, ok)
	assert.Len(t, call.Args, 2)

	_, err = p.ParseExpression("x = 1")
	assert.Error(t, err)
}

func TestCleanDoc(t *testing.T) {
	doc := "Summary.\n\n    Details here.\n      indented\n    "
	assert.Equal(t, "Summary.\n\nDetails here.\n  indented", cleanDoc(doc))
}

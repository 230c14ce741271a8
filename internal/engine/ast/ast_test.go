package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineTable_Position(t *testing.T) {
	src := []byte("x = 1\ny = 2\n\nz")
	lt := NewLineTable(src)

	cases := []struct {
		offset    int
		line, col int
	}{
		{0, 1, 1},
		{4, 1, 5},
		{6, 2, 1},
		{12, 3, 1},
		{13, 4, 1},
		{99, 4, 2},
	}
	for _, tc := range cases {
		line, col := lt.Position(tc.offset)
		assert.Equal(t, tc.line, line, "line for offset %d", tc.offset)
		assert.Equal(t, tc.col, col, "col for offset %d", tc.offset)
	}
	assert.Equal(t, 4, lt.LineCount())
	assert.Equal(t, 6, lt.Offset(2, 1))
}

func TestInspect_VisitsInSourceOrder(t *testing.T) {
	x := &Name{Loc: Loc{Span{0, 1}}, ID: "x"}
	call := &Call{
		Loc:  Loc{Span{4, 9}},
		Func: &Name{Loc: Loc{Span{4, 5}}, ID: "f"},
		Args: []*Arg{{Loc: Loc{Span{6, 8}}, Value: &Name{Loc: Loc{Span{6, 8}}, ID: "ab"}}},
	}
	mod := &Module{Body: []Stmt{&Assign{Loc: Loc{Span{0, 9}}, Targets: []Expr{x}, Value: call}}}

	var names []string
	Inspect(mod, func(n Node) bool {
		if nm, ok := n.(*Name); ok {
			names = append(names, nm.ID)
		}
		return true
	})
	require.Equal(t, []string{"x", "f", "ab"}, names)
}

func TestStatementAt(t *testing.T) {
	inner := &Return{Loc: Loc{Span{20, 28}}}
	fn := &FuncDef{Loc: Loc{Span{0, 28}}, Name: "f", Body: []Stmt{inner}}
	mod := &Module{Body: []Stmt{fn, &ExprStmt{Loc: Loc{Span{30, 35}}}}}

	got, path := StatementAt(mod, 22)
	require.Same(t, inner, got)
	require.Len(t, path, 2)

	got, _ = StatementAt(mod, 100)
	require.Nil(t, got)
}

func TestAliasBound(t *testing.T) {
	assert.Equal(t, "os.path", (&Alias{Name: "os.path"}).Bound())
	assert.Equal(t, "p", (&Alias{Name: "os.path", AsName: "p"}).Bound())
}

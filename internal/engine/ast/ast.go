// Package ast defines the Python syntax tree consumed by the analyzer.
//
// Positions are byte offsets into the UTF-8 source. A Span is half-open.
package ast

type Span struct {
	Start int
	End   int
}

// Contains reports whether offset lies inside s. The end offset counts as
// inside so that a cursor placed right after a token still addresses it.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset <= s.End
}

func (s Span) Len() int { return s.End - s.Start }

type Node interface {
	Range() Span
}

type Expr interface {
	Node
	exprNode()
}

type Stmt interface {
	Node
	stmtNode()
}

type Loc struct {
	Span Span
}

func (l *Loc) Range() Span { return l.Span }

// Module is the root of a parsed source file.
type Module struct {
	Loc
	Name  string
	Body  []Stmt
	Doc   string
	Lines *LineTable
	// DocEnd is the end offset of the module docstring statement, or -1.
	DocEnd int
}

// ----- expressions -----

type Name struct {
	Loc
	ID string
}

type ConstKind int

const (
	ConstNone ConstKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstComplex
	ConstStr
	ConstBytes
	ConstEllipsis
)

type Constant struct {
	Loc
	Kind ConstKind
	// Text is the literal as written; for strings it is the decoded value.
	Text string
}

type Attribute struct {
	Loc
	Value    Expr
	Attr     string
	AttrSpan Span
}

type ArgKind int

const (
	ArgPositional ArgKind = iota
	ArgKeyword
	ArgStar
	ArgDoubleStar
)

type Arg struct {
	Loc
	Kind  ArgKind
	Name  string
	Value Expr
}

type Call struct {
	Loc
	Func Expr
	Args []*Arg
}

type Subscript struct {
	Loc
	Value Expr
	Index []Expr
}

type Slice struct {
	Loc
	Lower, Upper, Step Expr
}

type BinOp struct {
	Loc
	Op          string
	Left, Right Expr
}

type BoolOp struct {
	Loc
	Op     string
	Values []Expr
}

type Compare struct {
	Loc
	Left        Expr
	Ops         []string
	Comparators []Expr
}

type UnaryOp struct {
	Loc
	Op      string
	Operand Expr
}

type IfExp struct {
	Loc
	Test, Body, Else Expr
}

type Lambda struct {
	Loc
	Params []*Param
	Body   Expr
}

type List struct {
	Loc
	Elts []Expr
}

type Tuple struct {
	Loc
	Elts []Expr
}

type Set struct {
	Loc
	Elts []Expr
}

type Dict struct {
	Loc
	// A nil key marks a **spread entry.
	Keys   []Expr
	Values []Expr
}

type CompKind int

const (
	CompList CompKind = iota
	CompSet
	CompDict
	CompGenerator
)

type Comprehension struct {
	Loc
	Kind CompKind
	// Elt is the element, or the value for dict comprehensions.
	Elt  Expr
	Key  Expr
	Fors []*CompFor
}

type CompFor struct {
	Loc
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

type Starred struct {
	Loc
	Value Expr
}

type Yield struct {
	Loc
	Value Expr
	From  bool
}

type Await struct {
	Loc
	Value Expr
}

type NamedExpr struct {
	Loc
	Target *Name
	Value  Expr
}

// BadExpr stands in for a region the parser could not recover.
type BadExpr struct {
	Loc
}

func (*Name) exprNode()          {}
func (*Constant) exprNode()      {}
func (*Attribute) exprNode()     {}
func (*Call) exprNode()          {}
func (*Subscript) exprNode()     {}
func (*Slice) exprNode()         {}
func (*BinOp) exprNode()         {}
func (*BoolOp) exprNode()        {}
func (*Compare) exprNode()       {}
func (*UnaryOp) exprNode()       {}
func (*IfExp) exprNode()         {}
func (*Lambda) exprNode()        {}
func (*List) exprNode()          {}
func (*Tuple) exprNode()         {}
func (*Set) exprNode()           {}
func (*Dict) exprNode()          {}
func (*Comprehension) exprNode() {}
func (*Starred) exprNode()       {}
func (*Yield) exprNode()         {}
func (*Await) exprNode()         {}
func (*NamedExpr) exprNode()     {}
func (*BadExpr) exprNode()       {}

// ----- statements -----

type ParamKind int

const (
	ParamNormal ParamKind = iota
	ParamVarArgs
	ParamKwArgs
	ParamKeywordOnly
)

type Param struct {
	Loc
	Name        string
	Kind        ParamKind
	Default     Expr
	Annotation  Expr
	DefaultText string
}

type FuncDef struct {
	Loc
	Name       string
	NameSpan   Span
	Params     []*Param
	Returns    Expr
	Body       []Stmt
	Decorators []Expr
	Doc        string
	Async      bool
}

type ClassDef struct {
	Loc
	Name       string
	NameSpan   Span
	Bases      []*Arg
	Body       []Stmt
	Decorators []Expr
	Doc        string
}

// Assign covers plain, chained and annotated assignment.
type Assign struct {
	Loc
	Targets    []Expr
	Value      Expr
	Annotation Expr
}

type AugAssign struct {
	Loc
	Target Expr
	Op     string
	Value  Expr
}

type Return struct {
	Loc
	Value Expr
}

type If struct {
	Loc
	Test Expr
	Body []Stmt
	Else []Stmt
}

type For struct {
	Loc
	Target Expr
	Iter   Expr
	Body   []Stmt
	Else   []Stmt
}

type While struct {
	Loc
	Test Expr
	Body []Stmt
	Else []Stmt
}

type ExceptHandler struct {
	Loc
	Type     Expr
	Name     string
	NameSpan Span
	Body     []Stmt
}

type Try struct {
	Loc
	Body     []Stmt
	Handlers []*ExceptHandler
	Else     []Stmt
	Finally  []Stmt
}

type WithItem struct {
	Loc
	Context Expr
	Target  Expr
}

type With struct {
	Loc
	Items []*WithItem
	Body  []Stmt
}

// Alias is one imported name. Name may be dotted for plain imports.
type Alias struct {
	Loc
	Name     string
	NameSpan Span
	AsName   string
	AsSpan   Span
}

// Bound returns the name the alias introduces into the importing scope.
func (a *Alias) Bound() string {
	if a.AsName != "" {
		return a.AsName
	}
	return a.Name
}

type Import struct {
	Loc
	Names []*Alias
}

type ImportFrom struct {
	Loc
	Module     string
	ModuleSpan Span
	Level      int
	Names      []*Alias
	Star       bool
	// Parens is the span of the parenthesized name list, zero when absent.
	Parens Span
}

type Global struct {
	Loc
	Names []string
}

type Nonlocal struct {
	Loc
	Names []string
}

type ExprStmt struct {
	Loc
	Value Expr
}

type Raise struct {
	Loc
	Exc Expr
}

type Delete struct {
	Loc
	Targets []Expr
}

// Simple is pass, break or continue.
type Simple struct {
	Loc
	Keyword string
}

type BadStmt struct {
	Loc
}

func (*FuncDef) stmtNode()    {}
func (*ClassDef) stmtNode()   {}
func (*Assign) stmtNode()     {}
func (*AugAssign) stmtNode()  {}
func (*Return) stmtNode()     {}
func (*If) stmtNode()         {}
func (*For) stmtNode()        {}
func (*While) stmtNode()      {}
func (*Try) stmtNode()        {}
func (*With) stmtNode()       {}
func (*Import) stmtNode()     {}
func (*ImportFrom) stmtNode() {}
func (*Global) stmtNode()     {}
func (*Nonlocal) stmtNode()   {}
func (*ExprStmt) stmtNode()   {}
func (*Raise) stmtNode()      {}
func (*Delete) stmtNode()     {}
func (*Simple) stmtNode()     {}
func (*BadStmt) stmtNode()    {}

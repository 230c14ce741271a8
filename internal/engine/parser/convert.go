package parser

import (
	"strings"

	"pyintel/internal/engine/ast"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type converter struct {
	src []byte
}

func newConverter(src []byte) *converter {
	return &converter{src: src}
}

func (c *converter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(c.src)
}

func span(n *sitter.Node) ast.Span {
	return ast.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func loc(n *sitter.Node) ast.Loc {
	return ast.Loc{Span: span(n)}
}

// named returns the named children of n, skipping comments.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

func children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := uint(0); i < n.ChildCount(); i++ {
		if child := n.Child(i); child != nil && child.Kind() != "comment" {
			out = append(out, child)
		}
	}
	return out
}

func firstOfKind(n *sitter.Node, kinds ...string) *sitter.Node {
	for _, child := range children(n) {
		for _, k := range kinds {
			if child.Kind() == k {
				return child
			}
		}
	}
	return nil
}

func (c *converter) module(root *sitter.Node) *ast.Module {
	mod := &ast.Module{
		Loc:    loc(root),
		Lines:  ast.NewLineTable(c.src),
		DocEnd: -1,
	}
	mod.Body = c.block(root)
	if doc, end, ok := docstring(mod.Body); ok {
		mod.Doc = doc
		mod.DocEnd = end
	}
	return mod
}

// block converts the statements under a module, block or error node.
func (c *converter) block(n *sitter.Node) []ast.Stmt {
	var out []ast.Stmt
	for _, child := range named(n) {
		out = append(out, c.stmt(child)...)
	}
	return out
}

func (c *converter) suite(n *sitter.Node) []ast.Stmt {
	if n == nil {
		return nil
	}
	if n.Kind() == "block" {
		return c.block(n)
	}
	return c.stmt(n)
}

func docstring(body []ast.Stmt) (string, int, bool) {
	if len(body) == 0 {
		return "", -1, false
	}
	es, ok := body[0].(*ast.ExprStmt)
	if !ok {
		return "", -1, false
	}
	if k, ok := es.Value.(*ast.Constant); ok && k.Kind == ast.ConstStr {
		return cleanDoc(k.Text), es.Span.End, true
	}
	return "", -1, false
}

// cleanDoc strips the common indentation of docstring continuation lines.
func cleanDoc(doc string) string {
	lines := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")
	indent := -1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		if d := len(line) - len(trimmed); indent < 0 || d < indent {
			indent = d
		}
	}
	lines[0] = strings.TrimSpace(lines[0])
	if indent > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= indent {
				lines[i] = lines[i][indent:]
			} else {
				lines[i] = strings.TrimLeft(lines[i], " \t")
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (c *converter) stmt(n *sitter.Node) []ast.Stmt {
	switch n.Kind() {
	case "expression_statement":
		return []ast.Stmt{c.exprStatement(n)}
	case "return_statement":
		ret := &ast.Return{Loc: loc(n)}
		if vals := named(n); len(vals) > 0 {
			ret.Value = c.exprs(vals)
		}
		return []ast.Stmt{ret}
	case "pass_statement", "break_statement", "continue_statement":
		return []ast.Stmt{&ast.Simple{Loc: loc(n), Keyword: strings.TrimSuffix(n.Kind(), "_statement")}}
	case "if_statement":
		return []ast.Stmt{c.ifStatement(n)}
	case "for_statement":
		return []ast.Stmt{c.forStatement(n)}
	case "while_statement":
		return []ast.Stmt{&ast.While{
			Loc:  loc(n),
			Test: c.expr(n.ChildByFieldName("condition")),
			Body: c.suite(n.ChildByFieldName("body")),
			Else: c.elseBody(n.ChildByFieldName("alternative")),
		}}
	case "try_statement":
		return []ast.Stmt{c.tryStatement(n)}
	case "with_statement":
		return []ast.Stmt{c.withStatement(n)}
	case "function_definition":
		return []ast.Stmt{c.funcDef(n, nil, loc(n))}
	case "class_definition":
		return []ast.Stmt{c.classDef(n, nil, loc(n))}
	case "decorated_definition":
		return []ast.Stmt{c.decorated(n)}
	case "import_statement":
		return []ast.Stmt{c.importStatement(n)}
	case "import_from_statement", "future_import_statement":
		return []ast.Stmt{c.importFrom(n)}
	case "global_statement":
		return []ast.Stmt{&ast.Global{Loc: loc(n), Names: c.identifiers(n)}}
	case "nonlocal_statement":
		return []ast.Stmt{&ast.Nonlocal{Loc: loc(n), Names: c.identifiers(n)}}
	case "raise_statement":
		r := &ast.Raise{Loc: loc(n)}
		if vals := named(n); len(vals) > 0 {
			r.Exc = c.expr(vals[0])
		}
		return []ast.Stmt{r}
	case "delete_statement":
		d := &ast.Delete{Loc: loc(n)}
		for _, v := range named(n) {
			if v.Kind() == "expression_list" {
				for _, e := range named(v) {
					d.Targets = append(d.Targets, c.expr(e))
				}
				continue
			}
			d.Targets = append(d.Targets, c.expr(v))
		}
		return []ast.Stmt{d}
	case "assert_statement", "print_statement", "exec_statement":
		var out []ast.Stmt
		for _, v := range named(n) {
			out = append(out, &ast.ExprStmt{Loc: loc(v), Value: c.expr(v)})
		}
		return out
	case "match_statement":
		return []ast.Stmt{c.matchStatement(n)}
	case "block":
		return c.block(n)
	case "ERROR":
		return c.errorStatements(n)
	}
	if isExpressionKind(n.Kind()) {
		return []ast.Stmt{&ast.ExprStmt{Loc: loc(n), Value: c.expr(n)}}
	}
	return []ast.Stmt{&ast.BadStmt{Loc: loc(n)}}
}

// errorStatements salvages whatever statements tree-sitter recovered inside
// an ERROR node so that inference still sees them.
func (c *converter) errorStatements(n *sitter.Node) []ast.Stmt {
	var out []ast.Stmt
	for _, child := range named(n) {
		switch {
		case child.Kind() == "identifier" || child.Kind() == "ERROR":
			continue
		default:
			for _, s := range c.stmt(child) {
				if _, bad := s.(*ast.BadStmt); !bad {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func (c *converter) exprStatement(n *sitter.Node) ast.Stmt {
	kids := named(n)
	if len(kids) == 1 {
		switch kids[0].Kind() {
		case "assignment":
			return c.assignment(kids[0], loc(n))
		case "augmented_assignment":
			a := kids[0]
			return &ast.AugAssign{
				Loc:    loc(n),
				Target: c.expr(a.ChildByFieldName("left")),
				Op:     strings.TrimSuffix(c.text(a.ChildByFieldName("operator")), "="),
				Value:  c.expr(a.ChildByFieldName("right")),
			}
		}
	}
	if len(kids) == 0 {
		return &ast.BadStmt{Loc: loc(n)}
	}
	return &ast.ExprStmt{Loc: loc(n), Value: c.exprs(kids)}
}

// assignment flattens chained assignments (a = b = value) into one statement.
func (c *converter) assignment(n *sitter.Node, l ast.Loc) ast.Stmt {
	as := &ast.Assign{Loc: l}
	cur := n
	for cur != nil && cur.Kind() == "assignment" {
		as.Targets = append(as.Targets, c.target(cur.ChildByFieldName("left")))
		if typ := cur.ChildByFieldName("type"); typ != nil && as.Annotation == nil {
			as.Annotation = c.expr(typ)
		}
		cur = cur.ChildByFieldName("right")
	}
	if cur != nil {
		if cur.Kind() == "augmented_assignment" {
			as.Value = c.expr(cur.ChildByFieldName("right"))
		} else {
			as.Value = c.expr(cur)
		}
	}
	return as
}

// target converts an assignment target; pattern lists become tuples.
func (c *converter) target(n *sitter.Node) ast.Expr {
	if n == nil {
		return &ast.BadExpr{}
	}
	switch n.Kind() {
	case "pattern_list", "tuple_pattern", "expression_list":
		t := &ast.Tuple{Loc: loc(n)}
		for _, e := range named(n) {
			t.Elts = append(t.Elts, c.target(e))
		}
		return t
	case "list_pattern":
		l := &ast.List{Loc: loc(n)}
		for _, e := range named(n) {
			l.Elts = append(l.Elts, c.target(e))
		}
		return l
	case "list_splat_pattern":
		if kids := named(n); len(kids) > 0 {
			return &ast.Starred{Loc: loc(n), Value: c.target(kids[0])}
		}
	}
	return c.expr(n)
}

func (c *converter) ifStatement(n *sitter.Node) ast.Stmt {
	root := &ast.If{
		Loc:  loc(n),
		Test: c.expr(n.ChildByFieldName("condition")),
		Body: c.suite(n.ChildByFieldName("consequence")),
	}
	cur := root
	for _, child := range children(n) {
		switch child.Kind() {
		case "elif_clause":
			next := &ast.If{
				Loc:  loc(child),
				Test: c.expr(child.ChildByFieldName("condition")),
				Body: c.suite(child.ChildByFieldName("consequence")),
			}
			cur.Else = []ast.Stmt{next}
			cur = next
		case "else_clause":
			cur.Else = c.elseBody(child)
		}
	}
	return root
}

func (c *converter) elseBody(n *sitter.Node) []ast.Stmt {
	if n == nil {
		return nil
	}
	if body := n.ChildByFieldName("body"); body != nil {
		return c.suite(body)
	}
	return c.suite(firstOfKind(n, "block"))
}

func (c *converter) forStatement(n *sitter.Node) ast.Stmt {
	right := n.ChildByFieldName("right")
	var iter ast.Expr
	if right != nil {
		iter = c.expr(right)
	}
	return &ast.For{
		Loc:    loc(n),
		Target: c.target(n.ChildByFieldName("left")),
		Iter:   iter,
		Body:   c.suite(n.ChildByFieldName("body")),
		Else:   c.elseBody(n.ChildByFieldName("alternative")),
	}
}

func (c *converter) tryStatement(n *sitter.Node) ast.Stmt {
	t := &ast.Try{Loc: loc(n), Body: c.suite(n.ChildByFieldName("body"))}
	for _, child := range children(n) {
		switch child.Kind() {
		case "except_clause", "except_group_clause":
			t.Handlers = append(t.Handlers, c.exceptClause(child))
		case "else_clause":
			t.Else = c.elseBody(child)
		case "finally_clause":
			t.Finally = c.suite(firstOfKind(child, "block"))
		}
	}
	return t
}

func (c *converter) exceptClause(n *sitter.Node) *ast.ExceptHandler {
	h := &ast.ExceptHandler{Loc: loc(n)}
	sawAs := false
	for _, child := range children(n) {
		switch child.Kind() {
		case "as", ",":
			sawAs = true
		case "block":
			h.Body = c.block(child)
		case "as_pattern":
			// except E as e, depending on grammar version
			kids := named(child)
			if len(kids) > 0 {
				h.Type = c.expr(kids[0])
			}
			if alias := child.ChildByFieldName("alias"); alias != nil {
				h.Name = strings.TrimSpace(c.text(alias))
				h.NameSpan = span(alias)
			}
		default:
			if !child.IsNamed() {
				continue
			}
			if sawAs {
				h.Name = c.text(child)
				h.NameSpan = span(child)
			} else if h.Type == nil {
				h.Type = c.expr(child)
			}
		}
	}
	return h
}

func (c *converter) withStatement(n *sitter.Node) ast.Stmt {
	w := &ast.With{Loc: loc(n), Body: c.suite(n.ChildByFieldName("body"))}
	clause := firstOfKind(n, "with_clause")
	for _, item := range named(clause) {
		if item.Kind() != "with_item" {
			continue
		}
		wi := &ast.WithItem{Loc: loc(item)}
		value := item.ChildByFieldName("value")
		if value == nil {
			if kids := named(item); len(kids) > 0 {
				value = kids[0]
			}
		}
		if value != nil && value.Kind() == "as_pattern" {
			kids := named(value)
			if len(kids) > 0 {
				wi.Context = c.expr(kids[0])
			}
			if alias := value.ChildByFieldName("alias"); alias != nil {
				if inner := named(alias); len(inner) == 1 {
					wi.Target = c.target(inner[0])
				} else {
					wi.Target = c.target(alias)
				}
			}
		} else if value != nil {
			wi.Context = c.expr(value)
		}
		w.Items = append(w.Items, wi)
	}
	return w
}

func (c *converter) matchStatement(n *sitter.Node) ast.Stmt {
	m := &ast.If{Loc: loc(n)}
	if subject := n.ChildByFieldName("subject"); subject != nil {
		m.Test = c.expr(subject)
	}
	var visit func(*sitter.Node)
	visit = func(node *sitter.Node) {
		for _, child := range named(node) {
			switch child.Kind() {
			case "case_clause":
				m.Body = append(m.Body, c.suite(child.ChildByFieldName("consequence"))...)
			case "block":
				visit(child)
			}
		}
	}
	visit(n.ChildByFieldName("body"))
	return m
}

func (c *converter) decorated(n *sitter.Node) ast.Stmt {
	var decorators []ast.Expr
	for _, child := range named(n) {
		if child.Kind() == "decorator" {
			if kids := named(child); len(kids) > 0 {
				decorators = append(decorators, c.expr(kids[0]))
			}
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		return &ast.BadStmt{Loc: loc(n)}
	}
	if def.Kind() == "class_definition" {
		return c.classDef(def, decorators, loc(n))
	}
	return c.funcDef(def, decorators, loc(n))
}

func (c *converter) funcDef(n *sitter.Node, decorators []ast.Expr, l ast.Loc) ast.Stmt {
	name := n.ChildByFieldName("name")
	fd := &ast.FuncDef{
		Loc:        l,
		Decorators: decorators,
		Async:      firstOfKind(n, "async") != nil,
	}
	if name != nil {
		fd.Name = c.text(name)
		fd.NameSpan = span(name)
	}
	fd.Params = c.params(n.ChildByFieldName("parameters"))
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		fd.Returns = c.expr(ret)
	}
	fd.Body = c.suite(n.ChildByFieldName("body"))
	if doc, _, ok := docstring(fd.Body); ok {
		fd.Doc = doc
	}
	return fd
}

func (c *converter) classDef(n *sitter.Node, decorators []ast.Expr, l ast.Loc) ast.Stmt {
	name := n.ChildByFieldName("name")
	cd := &ast.ClassDef{Loc: l, Decorators: decorators}
	if name != nil {
		cd.Name = c.text(name)
		cd.NameSpan = span(name)
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		cd.Bases = c.arguments(supers)
	}
	cd.Body = c.suite(n.ChildByFieldName("body"))
	if doc, _, ok := docstring(cd.Body); ok {
		cd.Doc = doc
	}
	return cd
}

func (c *converter) params(n *sitter.Node) []*ast.Param {
	var out []*ast.Param
	keywordOnly := false
	for _, p := range named(n) {
		param := &ast.Param{Loc: loc(p), Kind: ast.ParamNormal}
		switch p.Kind() {
		case "identifier":
			param.Name = c.text(p)
		case "default_parameter", "typed_default_parameter":
			name := p.ChildByFieldName("name")
			param.Name = c.text(name)
			if v := p.ChildByFieldName("value"); v != nil {
				param.Default = c.expr(v)
				param.DefaultText = c.text(v)
			}
			if typ := p.ChildByFieldName("type"); typ != nil {
				param.Annotation = c.expr(typ)
			}
		case "typed_parameter":
			for _, inner := range named(p) {
				switch inner.Kind() {
				case "identifier":
					param.Name = c.text(inner)
				case "list_splat_pattern":
					param.Name = splatName(c.text(inner))
					param.Kind = ast.ParamVarArgs
				case "dictionary_splat_pattern":
					param.Name = splatName(c.text(inner))
					param.Kind = ast.ParamKwArgs
				}
			}
			if typ := p.ChildByFieldName("type"); typ != nil {
				param.Annotation = c.expr(typ)
			}
		case "list_splat_pattern":
			param.Name = splatName(c.text(p))
			param.Kind = ast.ParamVarArgs
		case "dictionary_splat_pattern":
			param.Name = splatName(c.text(p))
			param.Kind = ast.ParamKwArgs
		case "keyword_separator":
			keywordOnly = true
			continue
		case "positional_separator":
			continue
		case "tuple_pattern":
			param.Name = c.text(p)
		default:
			continue
		}
		if param.Kind == ast.ParamVarArgs {
			keywordOnly = true
		} else if keywordOnly && param.Kind == ast.ParamNormal {
			param.Kind = ast.ParamKeywordOnly
		}
		out = append(out, param)
	}
	return out
}

func splatName(text string) string {
	return strings.TrimSpace(strings.TrimLeft(text, "*"))
}

func (c *converter) importStatement(n *sitter.Node) ast.Stmt {
	imp := &ast.Import{Loc: loc(n)}
	for _, child := range named(n) {
		if a := c.alias(child); a != nil {
			imp.Names = append(imp.Names, a)
		}
	}
	return imp
}

func (c *converter) alias(n *sitter.Node) *ast.Alias {
	switch n.Kind() {
	case "dotted_name", "identifier":
		return &ast.Alias{Loc: loc(n), Name: dotted(c.text(n)), NameSpan: span(n)}
	case "aliased_import":
		a := &ast.Alias{Loc: loc(n)}
		if name := n.ChildByFieldName("name"); name != nil {
			a.Name = dotted(c.text(name))
			a.NameSpan = span(name)
		}
		if as := n.ChildByFieldName("alias"); as != nil {
			a.AsName = c.text(as)
			a.AsSpan = span(as)
		}
		return a
	}
	return nil
}

func dotted(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func (c *converter) importFrom(n *sitter.Node) ast.Stmt {
	imp := &ast.ImportFrom{Loc: loc(n)}
	if n.Kind() == "future_import_statement" {
		imp.Module = "__future__"
	}
	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode != nil {
		imp.ModuleSpan = span(moduleNode)
		text := dotted(c.text(moduleNode))
		if moduleNode.Kind() == "relative_import" {
			trimmed := strings.TrimLeft(text, ".")
			imp.Level = len(text) - len(trimmed)
			text = trimmed
		}
		imp.Module = text
	}

	openParen := -1
	afterImport := false
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "import":
			afterImport = true
		case "(":
			openParen = int(child.StartByte())
		case ")":
			if openParen >= 0 {
				imp.Parens = ast.Span{Start: openParen, End: int(child.EndByte())}
			}
		case "wildcard_import":
			imp.Star = true
		default:
			if !afterImport || (moduleNode != nil && child.StartByte() == moduleNode.StartByte()) {
				continue
			}
			if a := c.alias(child); a != nil {
				imp.Names = append(imp.Names, a)
			}
		}
	}
	return imp
}

func (c *converter) identifiers(n *sitter.Node) []string {
	var names []string
	for _, child := range named(n) {
		if child.Kind() == "identifier" {
			names = append(names, c.text(child))
		}
	}
	return names
}

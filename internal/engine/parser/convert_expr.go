package parser

import (
	"strings"

	"pyintel/internal/engine/ast"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var expressionKinds = map[string]bool{
	"identifier": true, "keyword_identifier": true, "attribute": true, "call": true,
	"subscript": true, "string": true, "concatenated_string": true, "integer": true,
	"float": true, "true": true, "false": true, "none": true, "ellipsis": true,
	"binary_operator": true, "unary_operator": true, "not_operator": true,
	"boolean_operator": true, "comparison_operator": true, "conditional_expression": true,
	"lambda": true, "list": true, "tuple": true, "set": true, "dictionary": true,
	"list_comprehension": true, "set_comprehension": true, "dictionary_comprehension": true,
	"generator_expression": true, "parenthesized_expression": true, "await": true,
	"yield": true, "named_expression": true, "expression_list": true, "list_splat": true,
	"type": true,
}

func isExpressionKind(kind string) bool {
	return expressionKinds[kind]
}

// exprs converts a comma separated sequence; more than one becomes a tuple.
func (c *converter) exprs(nodes []*sitter.Node) ast.Expr {
	if len(nodes) == 1 {
		return c.expr(nodes[0])
	}
	t := &ast.Tuple{}
	for _, n := range nodes {
		t.Elts = append(t.Elts, c.expr(n))
	}
	if len(nodes) > 0 {
		t.Span = ast.Span{Start: int(nodes[0].StartByte()), End: int(nodes[len(nodes)-1].EndByte())}
	}
	return t
}

func (c *converter) expr(n *sitter.Node) ast.Expr {
	if n == nil {
		return &ast.BadExpr{}
	}
	switch n.Kind() {
	case "identifier", "keyword_identifier":
		return &ast.Name{Loc: loc(n), ID: c.text(n)}
	case "integer":
		text := c.text(n)
		if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
			return &ast.Constant{Loc: loc(n), Kind: ast.ConstComplex, Text: text}
		}
		return &ast.Constant{Loc: loc(n), Kind: ast.ConstInt, Text: text}
	case "float":
		text := c.text(n)
		if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
			return &ast.Constant{Loc: loc(n), Kind: ast.ConstComplex, Text: text}
		}
		return &ast.Constant{Loc: loc(n), Kind: ast.ConstFloat, Text: text}
	case "true", "false":
		return &ast.Constant{Loc: loc(n), Kind: ast.ConstBool, Text: c.text(n)}
	case "none":
		return &ast.Constant{Loc: loc(n), Kind: ast.ConstNone, Text: "None"}
	case "ellipsis":
		return &ast.Constant{Loc: loc(n), Kind: ast.ConstEllipsis, Text: "..."}
	case "string":
		kind, text := decodeString(c.text(n))
		return &ast.Constant{Loc: loc(n), Kind: kind, Text: text}
	case "concatenated_string":
		var sb strings.Builder
		kind := ast.ConstStr
		for _, part := range named(n) {
			k, text := decodeString(c.text(part))
			kind = k
			sb.WriteString(text)
		}
		return &ast.Constant{Loc: loc(n), Kind: kind, Text: sb.String()}
	case "attribute":
		attr := n.ChildByFieldName("attribute")
		a := &ast.Attribute{Loc: loc(n), Value: c.expr(n.ChildByFieldName("object"))}
		if attr != nil {
			a.Attr = c.text(attr)
			a.AttrSpan = span(attr)
		}
		return a
	case "call":
		call := &ast.Call{Loc: loc(n), Func: c.expr(n.ChildByFieldName("function"))}
		if args := n.ChildByFieldName("arguments"); args != nil {
			if args.Kind() == "generator_expression" {
				call.Args = []*ast.Arg{{Loc: loc(args), Value: c.expr(args)}}
			} else {
				call.Args = c.arguments(args)
			}
		}
		return call
	case "subscript":
		s := &ast.Subscript{Loc: loc(n), Value: c.expr(n.ChildByFieldName("value"))}
		value := n.ChildByFieldName("value")
		for _, child := range named(n) {
			if value != nil && child.StartByte() == value.StartByte() && child.EndByte() == value.EndByte() {
				continue
			}
			s.Index = append(s.Index, c.expr(child))
		}
		return s
	case "slice":
		sl := &ast.Slice{Loc: loc(n)}
		part := 0
		for _, child := range children(n) {
			if child.Kind() == ":" {
				part++
				continue
			}
			if !child.IsNamed() {
				continue
			}
			switch part {
			case 0:
				sl.Lower = c.expr(child)
			case 1:
				sl.Upper = c.expr(child)
			default:
				sl.Step = c.expr(child)
			}
		}
		return sl
	case "binary_operator":
		return &ast.BinOp{
			Loc:   loc(n),
			Op:    c.text(n.ChildByFieldName("operator")),
			Left:  c.expr(n.ChildByFieldName("left")),
			Right: c.expr(n.ChildByFieldName("right")),
		}
	case "unary_operator":
		return &ast.UnaryOp{
			Loc:     loc(n),
			Op:      c.text(n.ChildByFieldName("operator")),
			Operand: c.expr(n.ChildByFieldName("argument")),
		}
	case "not_operator":
		return &ast.UnaryOp{Loc: loc(n), Op: "not", Operand: c.expr(n.ChildByFieldName("argument"))}
	case "boolean_operator":
		return &ast.BoolOp{
			Loc:    loc(n),
			Op:     c.text(n.ChildByFieldName("operator")),
			Values: []ast.Expr{c.expr(n.ChildByFieldName("left")), c.expr(n.ChildByFieldName("right"))},
		}
	case "comparison_operator":
		cmp := &ast.Compare{Loc: loc(n)}
		var pendingOp []string
		for _, child := range children(n) {
			if child.IsNamed() {
				if cmp.Left == nil {
					cmp.Left = c.expr(child)
					continue
				}
				cmp.Ops = append(cmp.Ops, strings.Join(pendingOp, " "))
				cmp.Comparators = append(cmp.Comparators, c.expr(child))
				pendingOp = pendingOp[:0]
				continue
			}
			pendingOp = append(pendingOp, c.text(child))
		}
		return cmp
	case "conditional_expression":
		kids := named(n)
		if len(kids) != 3 {
			return &ast.BadExpr{Loc: loc(n)}
		}
		return &ast.IfExp{Loc: loc(n), Body: c.expr(kids[0]), Test: c.expr(kids[1]), Else: c.expr(kids[2])}
	case "lambda":
		return &ast.Lambda{
			Loc:    loc(n),
			Params: c.params(n.ChildByFieldName("parameters")),
			Body:   c.expr(n.ChildByFieldName("body")),
		}
	case "list":
		return &ast.List{Loc: loc(n), Elts: c.elements(n)}
	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return &ast.Tuple{Loc: loc(n), Elts: c.elements(n)}
	case "set":
		return &ast.Set{Loc: loc(n), Elts: c.elements(n)}
	case "dictionary":
		d := &ast.Dict{Loc: loc(n)}
		for _, child := range named(n) {
			switch child.Kind() {
			case "pair":
				d.Keys = append(d.Keys, c.expr(child.ChildByFieldName("key")))
				d.Values = append(d.Values, c.expr(child.ChildByFieldName("value")))
			case "dictionary_splat":
				d.Keys = append(d.Keys, nil)
				if kids := named(child); len(kids) > 0 {
					d.Values = append(d.Values, c.expr(kids[0]))
				} else {
					d.Values = append(d.Values, &ast.BadExpr{Loc: loc(child)})
				}
			}
		}
		return d
	case "list_comprehension":
		return c.comprehension(n, ast.CompList)
	case "set_comprehension":
		return c.comprehension(n, ast.CompSet)
	case "dictionary_comprehension":
		return c.comprehension(n, ast.CompDict)
	case "generator_expression":
		return c.comprehension(n, ast.CompGenerator)
	case "parenthesized_expression", "type", "as_pattern_target":
		if kids := named(n); len(kids) == 1 {
			return c.expr(kids[0])
		}
		return &ast.BadExpr{Loc: loc(n)}
	case "list_splat", "list_splat_pattern", "dictionary_splat":
		if kids := named(n); len(kids) > 0 {
			return &ast.Starred{Loc: loc(n), Value: c.expr(kids[0])}
		}
	case "await":
		if kids := named(n); len(kids) > 0 {
			return &ast.Await{Loc: loc(n), Value: c.expr(kids[0])}
		}
	case "yield":
		y := &ast.Yield{Loc: loc(n), From: firstOfKind(n, "from") != nil}
		if kids := named(n); len(kids) > 0 {
			y.Value = c.exprs(kids)
		}
		return y
	case "named_expression":
		name := n.ChildByFieldName("name")
		ne := &ast.NamedExpr{Loc: loc(n), Value: c.expr(n.ChildByFieldName("value"))}
		if name != nil {
			ne.Target = &ast.Name{Loc: loc(name), ID: c.text(name)}
		}
		return ne
	}
	return &ast.BadExpr{Loc: loc(n)}
}

func (c *converter) elements(n *sitter.Node) []ast.Expr {
	var out []ast.Expr
	for _, child := range named(n) {
		out = append(out, c.expr(child))
	}
	return out
}

func (c *converter) arguments(n *sitter.Node) []*ast.Arg {
	var out []*ast.Arg
	for _, child := range named(n) {
		arg := &ast.Arg{Loc: loc(child), Kind: ast.ArgPositional}
		switch child.Kind() {
		case "keyword_argument":
			arg.Kind = ast.ArgKeyword
			arg.Name = c.text(child.ChildByFieldName("name"))
			arg.Value = c.expr(child.ChildByFieldName("value"))
		case "list_splat":
			arg.Kind = ast.ArgStar
			if kids := named(child); len(kids) > 0 {
				arg.Value = c.expr(kids[0])
			}
		case "dictionary_splat":
			arg.Kind = ast.ArgDoubleStar
			if kids := named(child); len(kids) > 0 {
				arg.Value = c.expr(kids[0])
			}
		default:
			arg.Value = c.expr(child)
		}
		if arg.Value == nil {
			arg.Value = &ast.BadExpr{Loc: loc(child)}
		}
		out = append(out, arg)
	}
	return out
}

func (c *converter) comprehension(n *sitter.Node, kind ast.CompKind) ast.Expr {
	comp := &ast.Comprehension{Loc: loc(n), Kind: kind}
	body := n.ChildByFieldName("body")
	if body != nil && body.Kind() == "pair" {
		comp.Key = c.expr(body.ChildByFieldName("key"))
		comp.Elt = c.expr(body.ChildByFieldName("value"))
	} else {
		comp.Elt = c.expr(body)
	}
	var last *ast.CompFor
	for _, child := range named(n) {
		switch child.Kind() {
		case "for_in_clause":
			last = &ast.CompFor{
				Loc:    loc(child),
				Target: c.target(child.ChildByFieldName("left")),
			}
			var iters []*sitter.Node
			right := child.ChildByFieldName("right")
			for _, k := range named(child) {
				if right != nil && k.StartByte() >= right.StartByte() {
					iters = append(iters, k)
				}
			}
			if len(iters) > 0 {
				last.Iter = c.exprs(iters)
			} else {
				last.Iter = &ast.BadExpr{Loc: loc(child)}
			}
			comp.Fors = append(comp.Fors, last)
		case "if_clause":
			if last != nil {
				if kids := named(child); len(kids) > 0 {
					last.Ifs = append(last.Ifs, c.expr(kids[0]))
				}
			}
		}
	}
	return comp
}

// decodeString strips the prefix and quotes of a string literal and resolves
// the common escape sequences unless the literal is raw.
func decodeString(lit string) (ast.ConstKind, string) {
	i := 0
	for i < len(lit) && strings.ContainsRune("rRbBuUfF", rune(lit[i])) {
		i++
	}
	prefix := strings.ToLower(lit[:i])
	body := lit[i:]
	kind := ast.ConstStr
	if strings.Contains(prefix, "b") {
		kind = ast.ConstBytes
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(body, q) {
			body = strings.TrimPrefix(body, q)
			body = strings.TrimSuffix(body, q)
			break
		}
	}
	if strings.Contains(prefix, "r") {
		return kind, body
	}
	return kind, unescape(body)
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\', '\'', '"':
			sb.WriteByte(s[i])
		case '\n':
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

package ast

// Inspect traverses the tree depth-first in source order. If f returns false
// the children of that node are skipped.
func Inspect(node Node, f func(Node) bool) {
	if node == nil {
		return
	}
	if !f(node) {
		return
	}
	for _, child := range Children(node) {
		Inspect(child, f)
	}
}

// Children lists the direct child nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	addE := func(exprs ...Expr) {
		for _, e := range exprs {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	addS := func(stmts []Stmt) {
		for _, s := range stmts {
			if s != nil {
				out = append(out, s)
			}
		}
	}
	addParams := func(params []*Param) {
		for _, p := range params {
			out = append(out, p)
		}
	}

	switch v := n.(type) {
	case *Module:
		addS(v.Body)
	case *Attribute:
		addE(v.Value)
	case *Arg:
		addE(v.Value)
	case *Call:
		addE(v.Func)
		for _, a := range v.Args {
			out = append(out, a)
		}
	case *Subscript:
		addE(v.Value)
		addE(v.Index...)
	case *Slice:
		addE(v.Lower, v.Upper, v.Step)
	case *BinOp:
		addE(v.Left, v.Right)
	case *BoolOp:
		addE(v.Values...)
	case *Compare:
		addE(v.Left)
		addE(v.Comparators...)
	case *UnaryOp:
		addE(v.Operand)
	case *IfExp:
		addE(v.Body, v.Test, v.Else)
	case *Lambda:
		addParams(v.Params)
		addE(v.Body)
	case *List:
		addE(v.Elts...)
	case *Tuple:
		addE(v.Elts...)
	case *Set:
		addE(v.Elts...)
	case *Dict:
		for i := range v.Values {
			if v.Keys[i] != nil {
				addE(v.Keys[i])
			}
			addE(v.Values[i])
		}
	case *Comprehension:
		addE(v.Key, v.Elt)
		for _, f := range v.Fors {
			out = append(out, f)
		}
	case *CompFor:
		addE(v.Target, v.Iter)
		addE(v.Ifs...)
	case *Starred:
		addE(v.Value)
	case *Yield:
		addE(v.Value)
	case *Await:
		addE(v.Value)
	case *NamedExpr:
		if v.Target != nil {
			out = append(out, v.Target)
		}
		addE(v.Value)
	case *Param:
		addE(v.Annotation, v.Default)
	case *FuncDef:
		addE(v.Decorators...)
		addParams(v.Params)
		addE(v.Returns)
		addS(v.Body)
	case *ClassDef:
		addE(v.Decorators...)
		for _, b := range v.Bases {
			out = append(out, b)
		}
		addS(v.Body)
	case *Assign:
		addE(v.Targets...)
		addE(v.Annotation, v.Value)
	case *AugAssign:
		addE(v.Target, v.Value)
	case *Return:
		addE(v.Value)
	case *If:
		addE(v.Test)
		addS(v.Body)
		addS(v.Else)
	case *For:
		addE(v.Target, v.Iter)
		addS(v.Body)
		addS(v.Else)
	case *While:
		addE(v.Test)
		addS(v.Body)
		addS(v.Else)
	case *Try:
		addS(v.Body)
		for _, h := range v.Handlers {
			out = append(out, h)
		}
		addS(v.Else)
		addS(v.Finally)
	case *ExceptHandler:
		addE(v.Type)
		addS(v.Body)
	case *With:
		for _, it := range v.Items {
			out = append(out, it)
		}
		addS(v.Body)
	case *WithItem:
		addE(v.Context, v.Target)
	case *ExprStmt:
		addE(v.Value)
	case *Raise:
		addE(v.Exc)
	case *Delete:
		addE(v.Targets...)
	}
	return out
}

// StatementAt returns the innermost statement whose span contains offset, with
// the chain of enclosing statements (outermost first).
func StatementAt(mod *Module, offset int) (Stmt, []Stmt) {
	var path []Stmt
	var found Stmt
	Inspect(mod, func(n Node) bool {
		if _, isMod := n.(*Module); isMod {
			return true
		}
		r := n.Range()
		if offset < r.Start || offset > r.End {
			return false
		}
		if s, ok := n.(Stmt); ok {
			path = append(path, s)
			found = s
		}
		return true
	})
	return found, path
}

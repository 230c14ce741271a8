package interpreter

import (
	"strings"

	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
)

// sig builds a signature from parameter specs such as "x", "key=None",
// "*args" or "**kwargs". A bare "*" makes the following parameters
// keyword-only.
func sig(params ...string) values.Signature {
	s := values.Signature{}
	kwOnly := false
	for _, p := range params {
		sp := values.SigParam{Kind: ast.ParamNormal}
		switch {
		case p == "*":
			kwOnly = true
			continue
		case strings.HasPrefix(p, "**"):
			sp.Kind = ast.ParamKwArgs
			p = p[2:]
		case strings.HasPrefix(p, "*"):
			sp.Kind = ast.ParamVarArgs
			p = p[1:]
			kwOnly = true
		case kwOnly:
			sp.Kind = ast.ParamKeywordOnly
		}
		if name, def, ok := strings.Cut(p, "="); ok {
			sp.Name = name
			sp.Default = def
		} else {
			sp.Name = p
		}
		s.Params = append(s.Params, sp)
	}
	return s
}

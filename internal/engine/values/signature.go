package values

import (
	"strings"

	"pyintel/internal/engine/ast"
)

type SigParam struct {
	Name    string
	Kind    ast.ParamKind
	Default string
	Type    string
}

func (p SigParam) String() string {
	switch p.Kind {
	case ast.ParamVarArgs:
		return "*" + p.Name
	case ast.ParamKwArgs:
		return "**" + p.Name
	}
	s := p.Name
	if p.Type != "" {
		s += ": " + p.Type
	}
	if p.Default != "" {
		s += " = " + p.Default
	}
	return s
}

// Signature is one callable overload as shown by signature help.
type Signature struct {
	Name    string
	Params  []SigParam
	Returns []string
	Doc     string
}

// String renders the signature as "def f(x = 42) -> int".
func (s Signature) String() string {
	var sb strings.Builder
	sb.WriteString("def ")
	sb.WriteString(s.Name)
	sb.WriteByte('(')
	sawStar := false
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.Kind == ast.ParamVarArgs {
			sawStar = true
		}
		if p.Kind == ast.ParamKeywordOnly && !sawStar {
			sb.WriteString("*, ")
			sawStar = true
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	if len(s.Returns) > 0 {
		sb.WriteString(" -> ")
		sb.WriteString(strings.Join(s.Returns, ", "))
	}
	return sb.String()
}

func (s Signature) dropFirst() Signature {
	if len(s.Params) > 0 && s.Params[0].Kind == ast.ParamNormal {
		cp := s
		cp.Params = append([]SigParam(nil), s.Params[1:]...)
		return cp
	}
	return s
}

func shortDescriptions(ts *TypeSet) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range ts.Values() {
		if IsUnknown(v) {
			continue
		}
		d := ShortDescription(v)
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// FunctionSignature builds the signature of a function defined in source.
func FunctionSignature(f *Function) Signature {
	sig := Signature{Name: f.Name, Doc: f.Doc, Returns: shortDescriptions(f.Returns)}
	for _, p := range f.Params {
		sig.Params = append(sig.Params, SigParam{Name: p.Name, Kind: p.Kind, Default: p.DefaultText})
	}
	return sig
}

// Signatures returns one entry per overload of a callable value.
func Signatures(v Value) []Signature {
	switch t := v.(type) {
	case *Function:
		if len(t.Overloads) > 0 {
			out := make([]Signature, len(t.Overloads))
			for i, o := range t.Overloads {
				if o.Name == "" {
					o.Name = t.Name
				}
				if o.Doc == "" {
					o.Doc = t.Doc
				}
				out[i] = o
			}
			return out
		}
		return []Signature{FunctionSignature(t)}
	case *BoundMethod:
		sigs := Signatures(t.Func)
		if t.Func.Static {
			return sigs
		}
		for i := range sigs {
			sigs[i] = sigs[i].dropFirst()
		}
		return sigs
	case *Class:
		return classSignatures(t)
	case *ForeignFunction:
		out := make([]Signature, len(t.Overloads))
		for i, o := range t.Overloads {
			if o.Name == "" {
				o.Name = t.Name
			}
			out[i] = o
		}
		return out
	case *ForeignType:
		return constructorSignatures(t, t.Name, nil)
	case *Generic:
		return constructorSignatures(t.Type, genericName(t), t.Args)
	}
	return nil
}

func classSignatures(c *Class) []Signature {
	init, _ := c.LookupClassAttr("__init__")
	var out []Signature
	for _, v := range init.Values() {
		fn, ok := v.(*Function)
		if !ok || (fn.IsBuiltin() && fn.Class != nil && fn.Class.Builtin == TypeObject && !c.IsBuiltin()) {
			continue
		}
		for _, sig := range Signatures(fn) {
			if !fn.IsBuiltin() {
				sig = sig.dropFirst()
			}
			sig.Name = c.Name
			sig.Returns = []string{ShortDescription(c.Instance())}
			if c.Doc != "" {
				sig.Doc = c.Doc
			}
			out = append(out, sig)
		}
	}
	if len(out) == 0 {
		out = append(out, Signature{Name: c.Name, Doc: c.Doc, Returns: []string{ShortDescription(c.Instance())}})
	}
	return out
}

func constructorSignatures(t *ForeignType, name string, args []Value) []Signature {
	ctors := t.Constructors
	if len(ctors) == 0 {
		ctors = []Signature{{}}
	}
	out := make([]Signature, 0, len(ctors))
	for _, ctor := range ctors {
		sig := Signature{Name: name, Doc: ctor.Doc, Returns: []string{name}}
		if sig.Doc == "" {
			sig.Doc = t.Doc
		}
		for _, p := range ctor.Params {
			p.Type = substituteTypeParam(p.Type, t.TypeParams, args)
			sig.Params = append(sig.Params, p)
		}
		out = append(out, sig)
	}
	return out
}

func substituteTypeParam(typ string, params []string, args []Value) string {
	for i, name := range params {
		if typ == name && i < len(args) {
			return TypeName(args[i])
		}
	}
	return typ
}

func genericName(g *Generic) string {
	parts := make([]string, len(g.Args))
	for i, a := range g.Args {
		parts[i] = TypeName(a)
	}
	return g.Type.Name + "[" + strings.Join(parts, ", ") + "]"
}

package analyzer

import (
	"strings"

	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
)

// importModule resolves an absolute module name through the project first
// and the interpreter second. Results are cached for the pass.
func (p *pass) importModule(name string) (*values.Module, bool) {
	if name == "" {
		return nil, false
	}
	if name == p.name {
		return p.mod, true
	}
	if m, ok := p.modules[name]; ok {
		return m, m != nil
	}
	m, ok := p.a.importer.ImportModule(name)
	if !ok {
		m, ok = p.interp.ImportModule(name)
	}
	if !ok {
		m = nil
	}
	p.modules[name] = m
	return m, ok
}

// ResolveRelative turns a possibly relative import into an absolute module
// name. pkg is the package of the importing module.
func ResolveRelative(pkg string, level int, module string) string {
	if level == 0 {
		return module
	}
	base := pkg
	for i := 1; i < level; i++ {
		if j := strings.LastIndexByte(base, '.'); j >= 0 {
			base = base[:j]
		} else {
			base = ""
		}
	}
	switch {
	case base == "":
		return module
	case module == "":
		return base
	}
	return base + "." + module
}

func (p *pass) walkImport(f *frame, s *ast.Import) {
	for _, alias := range s.Names {
		if alias.AsName != "" {
			ts := values.UnknownSet()
			if m, ok := p.importModule(alias.Name); ok {
				ts = values.NewTypeSet(m)
			}
			p.assignName(f, alias.AsName, alias.AsSpan, ts)
			continue
		}
		// import a.b.c binds a; the submodules are reached by attribute.
		head, _, _ := strings.Cut(alias.Name, ".")
		ts := values.UnknownSet()
		if m, ok := p.importModule(head); ok {
			ts = values.NewTypeSet(m)
		}
		p.importModule(alias.Name)
		span := alias.NameSpan
		span.End = span.Start + len(head)
		p.assignName(f, head, span, ts)
	}
}

func (p *pass) walkImportFrom(f *frame, s *ast.ImportFrom) {
	name := ResolveRelative(p.pkg, s.Level, s.Module)
	mod, ok := p.importModule(name)
	if s.Star {
		if !ok {
			return
		}
		for _, n := range exportedNames(mod) {
			p.assignName(f, n, s.Span, mod.Lookup(n))
		}
		return
	}
	for _, alias := range s.Names {
		ts := values.UnknownSet()
		if ok {
			if got := mod.Lookup(alias.Name); got.Len() > 0 {
				ts = got
			} else if sub, found := p.importModule(name + "." + alias.Name); found {
				ts = values.NewTypeSet(sub)
			}
		} else if sub, found := p.importModule(name + "." + alias.Name); found {
			ts = values.NewTypeSet(sub)
		}
		span := alias.NameSpan
		if alias.AsName != "" {
			span = alias.AsSpan
		}
		p.assignName(f, alias.Bound(), span, ts)
	}
}

// exportedNames lists what a star import binds: every bound name without a
// leading underscore.
func exportedNames(mod *values.Module) []string {
	var out []string
	for _, n := range mod.Members().Names() {
		if strings.HasPrefix(n, "_") {
			continue
		}
		if mod.Lookup(n).Len() == 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Imports lists the absolute module names a tree imports, in source order,
// including every parent package of dotted imports. Names imported from a
// module are left out; see ImportCandidates.
func Imports(name string, isPackage bool, tree *ast.Module) []string {
	return collectImports(name, isPackage, tree, false)
}

// ImportCandidates lists "mod.name" for every name of a from-import. Each
// is a submodule only if such a module exists; otherwise it is a plain
// attribute of mod.
func ImportCandidates(name string, isPackage bool, tree *ast.Module) []string {
	return collectImports(name, isPackage, tree, true)
}

func collectImports(name string, isPackage bool, tree *ast.Module, members bool) []string {
	if tree == nil {
		return nil
	}
	pkg := packageOf(name, isPackage)
	seen := map[string]bool{}
	var out []string
	add := func(n string) {
		if n == "" || n == name || seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
	}
	addDotted := func(n string) {
		parts := strings.Split(n, ".")
		for i := range parts {
			add(strings.Join(parts[:i+1], "."))
		}
	}
	ast.Inspect(tree, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.Import:
			if !members {
				for _, a := range s.Names {
					addDotted(a.Name)
				}
			}
		case *ast.ImportFrom:
			mod := ResolveRelative(pkg, s.Level, s.Module)
			if !members {
				addDotted(mod)
				break
			}
			if s.Star {
				break
			}
			for _, a := range s.Names {
				add(mod + "." + a.Name)
			}
		}
		return true
	})
	return out
}

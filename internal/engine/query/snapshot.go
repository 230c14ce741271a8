package query

import (
	"sort"
	"strings"

	"pyintel/internal/core/errors"
	"pyintel/internal/engine/analyzer"
	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/parser"
	"pyintel/internal/engine/values"
	"pyintel/internal/shared/util"
)

// ModuleSource resolves other modules' published analyses, used to turn
// definition sites in imported modules into locations.
type ModuleSource interface {
	Analysis(name string) (*analyzer.ModuleAnalysis, bool)
}

// Snapshot answers point queries against one published module analysis.
type Snapshot struct {
	analysis *analyzer.ModuleAnalysis
	modules  ModuleSource
	parser   *parser.Parser
}

// NewSnapshot wraps ma. modules may be nil.
func NewSnapshot(ma *analyzer.ModuleAnalysis, modules ModuleSource) *Snapshot {
	return &Snapshot{analysis: ma, modules: modules, parser: parser.New()}
}

func (s *Snapshot) Analysis() *analyzer.ModuleAnalysis { return s.analysis }

// LocationKind tags a variable location.
type LocationKind int

const (
	Definition LocationKind = iota
	Reference
)

func (k LocationKind) String() string {
	if k == Reference {
		return "reference"
	}
	return "definition"
}

// Location is a 1-based line and column in a module's file.
type Location struct {
	Module string
	Path   string
	Line   int
	Column int
	Kind   LocationKind
}

func (s *Snapshot) eval(expr string, index int) (*values.TypeSet, error) {
	e, err := s.parser.ParseExpression(expr)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxSymbol, expr)
	}
	return s.analysis.Eval(e, index), nil
}

// GetMembersByIndex lists the attribute names reachable from every value
// expr may have at index.
func (s *Snapshot) GetMembersByIndex(expr string, index int) ([]string, error) {
	ts, err := s.eval(expr, index)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, v := range ts.Values() {
		for _, name := range values.MemberNames(v, s.analysis.Interpreter()) {
			seen[name] = true
		}
	}
	return util.SortedStringKeys(seen), nil
}

// GetValuesByIndex returns the values expr may have at index. Names follow
// flow order: assignments after index in the same scope are not visible.
func (s *Snapshot) GetValuesByIndex(expr string, index int) ([]values.Value, error) {
	ts, err := s.eval(expr, index)
	if err != nil {
		return nil, err
	}
	return ts.Values(), nil
}

// GetSignaturesByIndex returns the overloads of every callable expr may be.
func (s *Snapshot) GetSignaturesByIndex(expr string, index int) ([]values.Signature, error) {
	ts, err := s.eval(expr, index)
	if err != nil {
		return nil, err
	}
	var out []values.Signature
	seen := make(map[string]bool)
	for _, v := range ts.Values() {
		for _, sig := range values.Signatures(v) {
			key := sig.String() + "\x00" + sig.Doc
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, sig)
		}
	}
	return out, nil
}

// GetDescriptionsByIndex describes each value; functions render as their
// signatures.
func (s *Snapshot) GetDescriptionsByIndex(expr string, index int) ([]string, error) {
	ts, err := s.eval(expr, index)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, v := range ts.Values() {
		if fn, ok := v.(*values.Function); ok && !fn.Lambda {
			for _, sig := range values.Signatures(fn) {
				out = append(out, sig.String())
			}
			continue
		}
		out = append(out, values.Description(v))
	}
	return dedupe(out), nil
}

func (s *Snapshot) GetShortDescriptionsByIndex(expr string, index int) ([]string, error) {
	ts, err := s.eval(expr, index)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, v := range ts.Values() {
		out = append(out, values.ShortDescription(v))
	}
	return dedupe(out), nil
}

func (s *Snapshot) GetTypeIDsByIndex(expr string, index int) ([]values.BuiltinTypeID, error) {
	ts, err := s.eval(expr, index)
	if err != nil {
		return nil, err
	}
	seen := make(map[values.BuiltinTypeID]bool)
	var out []values.BuiltinTypeID
	for _, v := range ts.Values() {
		id := values.TypeID(v)
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// GetQuickInfoByIndex renders hover text: one "expr: description" line per
// value, signature lines for callables, then the joined documentation.
func (s *Snapshot) GetQuickInfoByIndex(expr string, index int) (string, error) {
	ts, err := s.eval(expr, index)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, v := range ts.Values() {
		switch t := v.(type) {
		case *values.Function, *values.BoundMethod, *values.ForeignFunction:
			for _, sig := range values.Signatures(t) {
				lines = append(lines, sig.String())
			}
		default:
			lines = append(lines, expr+": "+values.Description(v))
		}
	}
	info := strings.Join(dedupe(lines), "\n")
	if doc := values.JoinDocs(ts); doc != "" {
		info += "\n" + doc
	}
	return info, nil
}

// GetVariablesByIndex returns the definitions and references of the variable
// expr names at index. expr is a name or an attribute of a module, class or
// instance. Identical positions are reported once.
func (s *Snapshot) GetVariablesByIndex(expr string, index int) ([]Location, error) {
	e, err := s.parser.ParseExpression(expr)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxSymbol, expr)
	}

	type holder struct {
		v      *values.Variable
		module string
	}
	var vars []holder
	switch t := e.(type) {
	case *ast.Name:
		if v, _ := s.analysis.VariableAt(t.ID, index); v != nil {
			vars = append(vars, holder{v, s.analysis.Name})
		}
	case *ast.Attribute:
		for _, val := range s.analysis.Eval(t.Value, index).Values() {
			if v, mod := attributeVariable(val, t.Attr); v != nil {
				vars = append(vars, holder{v, mod})
			}
		}
	default:
		return nil, errors.Newf(errors.CodeNotSupported, "cannot find variables for %q", expr)
	}

	seen := make(map[Location]bool)
	var out []Location
	add := func(module string, span ast.Span, kind LocationKind) {
		loc, ok := s.locate(module, span, kind)
		if !ok {
			return
		}
		key := loc
		key.Kind = 0
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, loc)
	}
	for _, h := range vars {
		for _, d := range h.v.Defs {
			add(h.module, d.Span, Definition)
		}
		for _, r := range h.v.Refs {
			add(h.module, r, Reference)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Column < out[j].Column
	})
	return out, nil
}

func attributeVariable(v values.Value, name string) (*values.Variable, string) {
	switch t := v.(type) {
	case *values.Module:
		if t.Builtin {
			return nil, ""
		}
		return t.Members().Get(name), t.Name
	case *values.Class:
		for _, c := range t.MRO() {
			if cls, ok := c.(*values.Class); ok && !cls.IsBuiltin() {
				if found := cls.Attrs.Get(name); found != nil {
					return found, cls.Module
				}
			}
		}
	case *values.Instance:
		if t.Class == nil {
			return nil, ""
		}
		for _, c := range t.Class.MRO() {
			cls, ok := c.(*values.Class)
			if !ok || cls.IsBuiltin() {
				continue
			}
			if found := cls.InstanceAttrs.Get(name); found != nil {
				return found, cls.Module
			}
			if found := cls.Attrs.Get(name); found != nil {
				return found, cls.Module
			}
		}
	}
	return nil, ""
}

// locate converts a span in module to a location using that module's line
// table.
func (s *Snapshot) locate(module string, span ast.Span, kind LocationKind) (Location, bool) {
	ma := s.analysis
	if module != ma.Name {
		if s.modules == nil {
			return Location{}, false
		}
		other, ok := s.modules.Analysis(module)
		if !ok {
			return Location{}, false
		}
		ma = other
	}
	if ma.Tree == nil {
		return Location{}, false
	}
	line, col := ma.Tree.Lines.Position(span.Start)
	return Location{Module: ma.Name, Path: ma.Path, Line: line, Column: col, Kind: kind}, true
}

// GetAllAvailableMembersByIndex lists every name visible at index: the
// enclosing scopes, the module and the builtins.
func (s *Snapshot) GetAllAvailableMembersByIndex(index int) []string {
	seen := make(map[string]bool)
	s.analysis.ScopeAt(index).Visible(func(sc *values.Scope) bool {
		for _, n := range sc.Vars.Names() {
			seen[n] = true
		}
		return true
	})
	if b := s.analysis.Interpreter().Builtins(); b != nil {
		for _, n := range b.Members().Names() {
			seen[n] = true
		}
	}
	return util.SortedStringKeys(seen)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

package query

import (
	"context"
	"strings"

	"pyintel/internal/core/errors"
	"pyintel/internal/engine/graph"
	"pyintel/internal/engine/values"
)

type ModuleSummary struct {
	Name            string
	Path            string
	State           string
	ExportCount     int
	Dependencies    int
	Dependents      int
	DiagnosticCount int
	Iterations      int
	Importance      float64
}

type ModuleDetails struct {
	Name         string
	Path         string
	Exports      []ExportedName
	Dependencies []string
	Dependents   []string
	Unresolved   []string
	Diagnostics  []string
}

// ExportedName is a top-level binding with the short descriptions of its
// values.
type ExportedName struct {
	Name  string
	Types []string
}

// Service answers project-wide questions over a ProjectState.
type Service struct {
	project *graph.ProjectState
}

func NewService(ps *graph.ProjectState) *Service {
	return &Service{project: ps}
}

func (s *Service) ListModules(ctx context.Context, filter string, limit int) ([]ModuleSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filter = strings.ToLower(strings.TrimSpace(filter))
	var rows []ModuleSummary
	for _, e := range s.project.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if filter != "" && !strings.Contains(strings.ToLower(e.Name()), filter) {
			continue
		}
		row := ModuleSummary{
			Name:            e.Name(),
			Path:            e.Path(),
			State:           e.State().String(),
			Dependencies:    len(s.project.Dependencies(e)),
			Dependents:      len(s.project.Dependents(e)),
			DiagnosticCount: len(e.Diagnostics()),
			Importance:      s.project.Importance(e),
		}
		if ma := e.Analysis(); ma != nil {
			row.ExportCount = ma.Module.Members().Len()
			row.Iterations = ma.Iterations
		}
		rows = append(rows, row)
	}

	if limit > 0 && len(rows) > limit {
		return rows[:limit], nil
	}
	return rows, nil
}

func (s *Service) ModuleDetails(ctx context.Context, name string) (ModuleDetails, error) {
	if err := ctx.Err(); err != nil {
		return ModuleDetails{}, err
	}
	e, ok := s.project.Entry(name)
	if !ok {
		return ModuleDetails{}, errors.AddContext(errors.New(errors.CodeNotFound, "module not found"), errors.CtxModule, name)
	}

	details := ModuleDetails{
		Name:       e.Name(),
		Path:       e.Path(),
		Unresolved: s.project.UnresolvedImports(e),
	}
	for _, dep := range s.project.Dependencies(e) {
		details.Dependencies = append(details.Dependencies, dep.Name())
	}
	for _, dep := range s.project.Dependents(e) {
		details.Dependents = append(details.Dependents, dep.Name())
	}
	for _, d := range e.Diagnostics() {
		details.Diagnostics = append(details.Diagnostics, d.String())
	}
	if ma := e.Analysis(); ma != nil {
		for _, n := range ma.Module.Members().Names() {
			exp := ExportedName{Name: n}
			for _, v := range ma.Module.Lookup(n).Values() {
				exp.Types = append(exp.Types, values.ShortDescription(v))
			}
			details.Exports = append(details.Exports, exp)
		}
	}
	return details, nil
}

// Snapshot returns a query snapshot of the module's published analysis.
func (s *Service) Snapshot(ctx context.Context, name string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ma, ok := s.project.Analysis(name)
	if !ok {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "module has no analysis"), errors.CtxModule, name)
	}
	return NewSnapshot(ma, s.project), nil
}

// Package analyzer runs flow-sensitive type inference over one module at a
// time and publishes the result as an immutable ModuleAnalysis.
package analyzer

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"pyintel/internal/core/config"
	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
	"pyintel/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
)

type Config struct {
	MaxIterations int
	RevisitLimit  int
	MaxCallDepth  int
	MaxUnionSize  int
}

func DefaultConfig() Config {
	return ConfigFrom(config.DefaultConfig().Analysis)
}

func ConfigFrom(a config.Analysis) Config {
	c := Config{
		MaxIterations: a.MaxIterations,
		RevisitLimit:  a.RevisitLimit,
		MaxCallDepth:  a.MaxCallDepth,
		MaxUnionSize:  a.MaxUnionSize,
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 8
	}
	if c.RevisitLimit <= 0 {
		c.RevisitLimit = 16
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = 24
	}
	return c
}

// Importer resolves project modules by absolute dotted name. Implementations
// return the last published module value, or a frozen empty stub for modules
// that are registered but not yet analyzed.
type Importer interface {
	ImportModule(name string) (*values.Module, bool)
}

type noImporter struct{}

func (noImporter) ImportModule(string) (*values.Module, bool) { return nil, false }

// Input is everything one pass needs. Tree is captured by the caller before
// the pass starts and never changes underneath it.
type Input struct {
	Name    string
	Path    string
	Tree    *ast.Module
	Version int64
}

// IsPackage reports whether the input is a package's __init__ module.
func (in Input) IsPackage() bool {
	base := filepath.Base(in.Path)
	return base == "__init__.py" || base == "__init__.pyi"
}

// Analyzer holds the collaborators shared by every pass.
type Analyzer struct {
	interp   values.Interpreter
	importer Importer
	cfg      Config
}

func New(interp values.Interpreter, importer Importer, cfg Config) *Analyzer {
	if importer == nil {
		importer = noImporter{}
	}
	return &Analyzer{interp: interp, importer: importer, cfg: cfg}
}

func (a *Analyzer) Interpreter() values.Interpreter { return a.interp }

// Analyze runs one pass to a fixed point. It never fails: anything it cannot
// resolve becomes Unknown.
func (a *Analyzer) Analyze(ctx context.Context, in Input) *ModuleAnalysis {
	ctx, span := observability.StartSpan(ctx, "analyzer.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("module", in.Name))

	start := time.Now()
	p := newPass(ctx, a, in)
	iterations := p.run()
	observability.AnalysisDuration.WithLabelValues("module").Observe(time.Since(start).Seconds())
	observability.AnalysisIterations.Observe(float64(iterations))
	span.SetAttributes(attribute.Int("iterations", iterations))

	return &ModuleAnalysis{
		Name:        in.Name,
		Path:        in.Path,
		Module:      p.mod,
		Tree:        in.Tree,
		Version:     in.Version,
		Iterations:  iterations,
		Fingerprint: Fingerprint(p.mod),
		analyzer:    a,
		pkg:         p.pkg,
	}
}

// packageOf returns the package relative imports resolve against.
func packageOf(name string, isPackage bool) string {
	if isPackage {
		return name
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

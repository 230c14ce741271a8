package typedb

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"pyintel/internal/core/config"
	"pyintel/internal/core/errors"
	"pyintel/internal/data/symbols"
	"pyintel/internal/engine/graph"
	"pyintel/internal/shared/observability"
	"pyintel/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Save writes every analyzed, non-transient module of ps to dir together
// with the baseline and the symbol index.
func Save(ctx context.Context, ps *graph.ProjectState, dir string) error {
	return SaveWithConfig(ctx, ps, dir, config.DefaultConfig().DB)
}

// SaveWithConfig is Save with explicit database settings. Modules are
// written in parallel; a module that fails to save does not stop the
// others and its error is part of the returned aggregate. Records already
// in dir that the project does not own stay listed in the baseline, so a
// project can be saved over a shipped database. Only records of modules the
// project removed are deleted.
func SaveWithConfig(ctx context.Context, ps *graph.ProjectState, dir string, db config.Database) error {
	ctx, span := observability.StartSpan(ctx, "typedb.Save")
	defer span.End()
	start := time.Now()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "create database directory"), errors.CtxPath, dir)
	}

	index := interpreterIndex(ps.Interpreter())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	prev, err := ReadBaseline(dir)
	if err != nil && !errors.IsCode(err, errors.CodeMissingBaseline) {
		slog.Warn("previous baseline unreadable, its records are not carried over", "dir", dir, "error", err)
	}

	var (
		mu      sync.Mutex
		errs    error
		saved   []string
		sources = make(map[string]string)
	)
	for _, e := range ps.Entries() {
		ma := e.Analysis()
		if e.Transient() || ma == nil {
			continue
		}
		if e.Name() == strings.TrimSuffix(baselineName, fileExt) {
			slog.Warn("module name collides with the baseline record, skipping", "module", e.Name())
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := marshalFrame(encodeModule(ma, index))
			if err == nil {
				err = util.WriteFileAtomic(filepath.Join(dir, ma.Name+fileExt), data, 0o644)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				observability.PersistenceErrorsTotal.WithLabelValues(string(errors.CodeOf(err))).Inc()
				errs = multierr.Append(errs, errors.AddContext(err, errors.CtxModule, ma.Name))
				return nil
			}
			observability.PersistedRecordsTotal.WithLabelValues("save").Inc()
			saved = append(saved, ma.Name)
			sources[ma.Name] = ma.Path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return err
	}
	sort.Strings(saved)
	modules, stale := mergeRecords(dir, prev, ps, saved, sources)

	bl := Baseline{
		FormatVersion:   FormatVersion,
		LanguageVersion: ps.LanguageVersion(),
		Modules:         modules,
		Sources:         sources,
		Session:         ps.ID().String(),
		BuiltinTypes:    builtinTypeNames(ps),
		SavedAt:         time.Now().UTC(),
	}
	data, err := marshalFrame(bl)
	if err == nil {
		err = util.WriteFileAtomic(filepath.Join(dir, baselineName), data, 0o644)
	}
	if err != nil {
		return multierr.Append(errs, errors.AddContext(err, errors.CtxPath, dir))
	}

	errs = multierr.Append(errs, removeRecords(dir, stale))
	errs = multierr.Append(errs, writeSymbols(ctx, ps, filepath.Join(dir, db.SymbolIndex), db))

	span.SetAttributes(attribute.Int("modules", len(saved)))
	observability.AnalysisDuration.WithLabelValues("save").Observe(time.Since(start).Seconds())
	slog.Info("type database saved", "dir", dir, "modules", len(saved), "elapsed", time.Since(start))
	return errs
}

func builtinTypeNames(ps *graph.ProjectState) []string {
	var out []string
	for name, id := range builtinIDs {
		if ps.Interpreter().BuiltinType(id) != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// mergeRecords returns the modules the new baseline lists and the previous
// records to delete. A previous record not saved now is kept unless the
// project removed its module or its source lay under one of the project's
// roots and is gone. Kept records carry their source into sources.
func mergeRecords(dir string, prev Baseline, ps *graph.ProjectState, saved []string, sources map[string]string) ([]string, []string) {
	listed := make(map[string]bool, len(saved)+len(prev.Modules))
	for _, name := range saved {
		listed[name] = true
	}
	removed := make(map[string]bool)
	for _, name := range ps.RemovedModules() {
		removed[name] = true
	}
	roots := ps.SearchRoots()

	var stale []string
	for _, name := range prev.Modules {
		if listed[name] {
			continue
		}
		src := prev.Sources[name]
		if removed[name] || sourceGone(src, roots) {
			stale = append(stale, name)
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, name+fileExt)); err != nil {
			continue
		}
		listed[name] = true
		if src != "" {
			sources[name] = src
		}
	}

	modules := make([]string, 0, len(listed))
	for name := range listed {
		modules = append(modules, name)
	}
	sort.Strings(modules)
	return modules, stale
}

// sourceGone reports whether path is an absolute source path under one of
// roots that no longer exists.
func sourceGone(path string, roots []string) bool {
	if path == "" || !filepath.IsAbs(path) {
		return false
	}
	under := false
	for _, root := range roots {
		if abs, err := filepath.Abs(root); err == nil && util.HasPathPrefix(path, abs) {
			under = true
			break
		}
	}
	if !under {
		return false
	}
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

func removeRecords(dir string, names []string) error {
	var errs error
	for _, name := range names {
		err := os.Remove(filepath.Join(dir, name+fileExt))
		if err != nil && !os.IsNotExist(err) {
			errs = multierr.Append(errs, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "remove module record"), errors.CtxModule, name))
			continue
		}
		slog.Debug("module record removed", "module", name)
	}
	return errs
}

func writeSymbols(ctx context.Context, ps *graph.ProjectState, path string, db config.Database) error {
	store, err := symbols.Open(path, db.BusyTimeout)
	if err != nil {
		return err
	}
	err = store.IndexProject(ctx, ps)
	return multierr.Append(err, store.Close())
}

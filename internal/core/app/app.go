// Package app wires a project session to the filesystem: scanning source
// roots, reacting to edits, persisting the type database and keeping the
// symbol index current.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"pyintel/internal/core/config"
	"pyintel/internal/core/watcher"
	"pyintel/internal/data/symbols"
	"pyintel/internal/data/typedb"
	"pyintel/internal/engine/graph"
	"pyintel/internal/engine/interpreter"
	"pyintel/internal/engine/query"
	"pyintel/internal/shared/util"

	"github.com/gobwas/glob"
)

// Update summarizes one batch of handled file changes.
type Update struct {
	Changed  []string
	Removed  []string
	Modules  int
	Analyzed int
	Elapsed  time.Duration
}

type Options struct {
	// FromDatabase serves previously saved modules from the database
	// directory instead of analyzing only what is on disk.
	FromDatabase bool
}

type App struct {
	Config  *config.Config
	Paths   config.ResolvedPaths
	Project *graph.ProjectState
	Service *query.Service

	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	limiter      *util.Limiter

	store   *symbols.Store
	writer  *symbols.Writer
	indexed map[string]int64

	activeWatcher *watcher.Watcher

	updateMu sync.RWMutex
	onUpdate func(Update)
}

func New(cfg *config.Config, cwd string, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, err
	}
	excludeDirs, err := watcher.CompileGlobs(cfg.Watch.ExcludeDirs)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude dir pattern: %w", err)
	}
	excludeFiles, err := watcher.CompileGlobs(cfg.Watch.ExcludeFiles)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude file pattern: %w", err)
	}

	projectCfg := *cfg
	projectCfg.Paths.SearchRoots = paths.SearchRoots

	var ps *graph.ProjectState
	if opts.FromDatabase {
		ps, err = typedb.OpenProject(paths.DatabaseDir, &projectCfg)
		if err != nil {
			return nil, err
		}
	} else {
		ps = graph.New(interpreter.NewBuiltins(cfg.Analysis.LanguageVersion), &projectCfg)
	}
	ps.SetLoader(graph.DirLoader{Roots: paths.SearchRoots})

	return &App{
		Config:       cfg,
		Paths:        paths,
		Project:      ps,
		Service:      query.NewService(ps),
		excludeDirs:  excludeDirs,
		excludeFiles: excludeFiles,
		limiter:      util.NewLimiter(cfg.Watch.DrainsPerSecond, 1),
		indexed:      make(map[string]int64),
	}, nil
}

func (a *App) SetUpdateHandler(handler func(Update)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(update Update) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(update)
	}
}

// InitialScan registers every source file below the search roots and
// analyzes the project.
func (a *App) InitialScan(ctx context.Context) error {
	files, err := a.ScanDirectories(a.Paths.SearchRoots)
	if err != nil {
		return err
	}
	start := time.Now()
	for _, path := range files {
		if err := a.ProcessFile(path); err != nil {
			slog.Warn("failed to process file", "path", path, "error", err)
		}
	}
	if err := a.Project.AnalyzeQueuedEntries(ctx); err != nil {
		return err
	}
	slog.Info("initial scan complete", "files", len(files), "modules", len(a.Project.Entries()), "elapsed", time.Since(start))
	return nil
}

// ScanDirectories lists the source files below roots, skipping excluded
// directories and files.
func (a *App) ScanDirectories(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			base := filepath.Base(path)
			if d.IsDir() {
				if path != root && matchAny(a.excludeDirs, base) {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(base) != ".py" || matchAny(a.excludeFiles, base) || seen[path] {
				return nil
			}
			seen[path] = true
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// ProcessFile registers path under its module name and installs its current
// content. A module previously registered at another path is replaced.
func (a *App) ProcessFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := a.Project.PathToModuleName(path)
	e, err := a.Project.ReplaceModule(name, path)
	if err != nil {
		return err
	}
	return a.Project.UpdateSource(e, content)
}

// HandleChanges applies a batch of changed paths, drains the queue and
// reindexes modules whose analysis moved on.
func (a *App) HandleChanges(paths []string) {
	ctx := context.Background()
	slog.Info("detected changes", "count", len(paths))
	start := time.Now()
	update := Update{}

	for _, path := range paths {
		if filepath.Ext(path) != ".py" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if a.removePath(ctx, path) {
				update.Removed = append(update.Removed, path)
			}
			continue
		}
		if err := a.ProcessFile(path); err != nil {
			slog.Warn("failed to re-process file", "path", path, "error", err)
			continue
		}
		update.Changed = append(update.Changed, path)
	}

	if err := a.limiter.Wait(ctx, 1); err != nil {
		slog.Warn("drain throttling aborted", "error", err)
		return
	}
	if err := a.Project.AnalyzeQueuedEntries(ctx); err != nil {
		slog.Error("analysis drain failed", "error", err)
	}
	update.Analyzed = a.reindex()
	update.Modules = len(a.Project.Entries())
	update.Elapsed = time.Since(start)
	a.emitUpdate(update)
}

func (a *App) removePath(ctx context.Context, path string) bool {
	name := a.Project.PathToModuleName(path)
	e, ok := a.Project.Entry(name)
	if !ok || e.Path() != path {
		return false
	}
	if err := a.Project.RemoveModule(e); err != nil {
		slog.Warn("failed to remove module", "module", name, "error", err)
		return false
	}
	delete(a.indexed, name)
	if a.store != nil {
		if err := a.store.DeleteModule(ctx, name); err != nil {
			slog.Warn("failed to delete indexed symbols", "module", name, "error", err)
		}
	}
	return true
}

// reindex submits every analysis newer than the one last indexed.
func (a *App) reindex() int {
	n := 0
	for _, e := range a.Project.Entries() {
		ma := e.Analysis()
		if ma == nil || e.Transient() || a.indexed[e.Name()] == ma.Version {
			continue
		}
		a.indexed[e.Name()] = ma.Version
		n++
		if a.writer != nil {
			a.writer.Submit(ma)
		}
	}
	return n
}

// Save writes the type database and symbol index to the database directory.
func (a *App) Save(ctx context.Context) error {
	return typedb.SaveWithConfig(ctx, a.Project, a.Paths.DatabaseDir, a.Config.DB)
}

// Catalog returns the import catalog: the interpreter's modules plus the
// symbol index when one is open.
func (a *App) Catalog() query.Catalog {
	catalog := query.MultiCatalog{query.InterpreterCatalog{Interp: a.Project.Interpreter()}}
	if a.store != nil {
		catalog = append(catalog, a.store)
	}
	return catalog
}

// OpenSymbolIndex opens the symbol index and indexes the current project.
func (a *App) OpenSymbolIndex(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	store, err := symbols.Open(a.Paths.SymbolIndex, a.Config.DB.BusyTimeout)
	if err != nil {
		return err
	}
	if err := store.IndexProject(ctx, a.Project); err != nil {
		_ = store.Close()
		return err
	}
	a.store = store
	a.writer = symbols.NewWriter(store, symbols.WriterConfig{})
	a.reindex()
	return nil
}

func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.activeWatcher != nil {
		keep(a.activeWatcher.Close())
	}
	if a.writer != nil {
		keep(a.writer.Close())
	}
	if a.store != nil {
		keep(a.store.Close())
	}
	keep(a.Project.Close())
	return firstErr
}

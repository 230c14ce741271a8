// # internal/engine/graph/graph.go
package graph

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"

	"pyintel/internal/core/config"
	"pyintel/internal/core/errors"
	"pyintel/internal/engine/analyzer"
	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/parser"
	"pyintel/internal/engine/values"
	"pyintel/internal/shared/observability"
	"pyintel/internal/shared/util"

	"github.com/google/uuid"
)

// ProjectState owns every module of one analysis session: the entry arena,
// the dependency index between entries, the analysis queue and the worker.
type ProjectState struct {
	mu sync.RWMutex

	id       uuid.UUID
	interp   values.Interpreter
	analyzer *analyzer.Analyzer
	parser   *parser.Parser
	cfg      config.Analysis
	roots    []string
	loader   ModuleLoader

	// Arena. Removed entries leave a nil slot so handles are never reused.
	entries []*ProjectEntry
	byName  map[string]EntryID

	// Relationships
	deps       map[EntryID]map[EntryID]bool // importer -> imported
	dependents map[EntryID]map[EntryID]bool // imported -> importers
	wanted     map[string]map[EntryID]bool  // unregistered name -> importers

	// Persistent modules removed since New and not registered again.
	removed map[string]bool

	queued map[EntryID]bool
	seq    uint64

	notify  chan struct{}
	limiter *util.Limiter
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

// New creates a session analyzing against interp. cfg may be nil.
func New(interp values.Interpreter, cfg *config.Config) *ProjectState {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ps := &ProjectState{
		id:         uuid.New(),
		interp:     interp,
		parser:     parser.New(),
		cfg:        cfg.Analysis,
		roots:      append([]string(nil), cfg.Paths.SearchRoots...),
		byName:     make(map[string]EntryID),
		deps:       make(map[EntryID]map[EntryID]bool),
		dependents: make(map[EntryID]map[EntryID]bool),
		wanted:     make(map[string]map[EntryID]bool),
		removed:    make(map[string]bool),
		queued:     make(map[EntryID]bool),
		notify:     make(chan struct{}, 1),
	}
	ps.analyzer = analyzer.New(interp, ps, analyzer.ConfigFrom(cfg.Analysis))
	return ps
}

// ID is the session identifier used in logs.
func (ps *ProjectState) ID() uuid.UUID { return ps.id }

func (ps *ProjectState) Interpreter() values.Interpreter { return ps.interp }

func (ps *ProjectState) LanguageVersion() string { return ps.cfg.LanguageVersion }

func (ps *ProjectState) SetLoader(loader ModuleLoader) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.loader = loader
}

// Close stops the worker, drops every entry and releases the interpreter.
func (ps *ProjectState) Close() error {
	ps.Stop()
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil
	}
	ps.closed = true
	for _, e := range ps.entries {
		if e != nil {
			e.release()
		}
	}
	ps.entries = nil
	ps.byName = make(map[string]EntryID)
	ps.deps = make(map[EntryID]map[EntryID]bool)
	ps.dependents = make(map[EntryID]map[EntryID]bool)
	ps.wanted = make(map[string]map[EntryID]bool)
	ps.queued = make(map[EntryID]bool)
	ps.updateGaugesLocked()
	ps.mu.Unlock()

	if ps.interp == nil {
		return nil
	}
	return ps.interp.Close()
}

// AddModule registers a module. Registering the same name and path again
// returns the existing entry.
func (ps *ProjectState) AddModule(name, path string) (*ProjectEntry, error) {
	return ps.addModule(name, path, false)
}

// AddTransientModule registers a scratch module that is never persisted.
func (ps *ProjectState) AddTransientModule(name string) (*ProjectEntry, error) {
	return ps.addModule(name, "<"+name+">", true)
}

// ReplaceModule registers name at path, removing any entry that already
// holds the name at a different path.
func (ps *ProjectState) ReplaceModule(name, path string) (*ProjectEntry, error) {
	if old, ok := ps.Entry(name); ok && old.Path() != path {
		if err := ps.RemoveModule(old); err != nil {
			return nil, err
		}
	}
	return ps.AddModule(name, path)
}

func (ps *ProjectState) addModule(name, path string, transient bool) (*ProjectEntry, error) {
	if name == "" {
		return nil, errors.New(errors.CodeValidationError, "module name is required")
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return nil, errors.New(errors.CodeConflict, "project state is closed")
	}

	if id, ok := ps.byName[name]; ok {
		existing := ps.entries[id]
		if existing.path == path {
			return existing, nil
		}
		err := errors.Newf(errors.CodeDuplicateModule, "module %s is already registered at %s", name, existing.path)
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}

	e := newEntry(ps, EntryID(len(ps.entries)), name, path, transient)
	ps.entries = append(ps.entries, e)
	ps.byName[name] = e.id
	delete(ps.removed, name)

	// Importers that asked for this name before it existed.
	if importers, ok := ps.wanted[name]; ok {
		delete(ps.wanted, name)
		for _, imp := range sortedIDs(importers) {
			importer := ps.entries[imp]
			if importer == nil {
				continue
			}
			importer.wants = removeName(importer.wants, name)
			ps.linkLocked(importer, e)
			ps.queueWithDependentsLocked(importer)
		}
	}
	ps.updateGaugesLocked()
	slog.Debug("module registered", "session", ps.id, "module", name, "path", path)
	return e, nil
}

// RemoveModule severs every edge of e, queues its dependents and releases it.
func (ps *ProjectState) RemoveModule(e *ProjectEntry) error {
	ps.mu.Lock()
	if err := ps.checkLocked(e); err != nil {
		ps.mu.Unlock()
		return err
	}

	for dep := range ps.deps[e.id] {
		delete(ps.dependents[dep], e.id)
	}
	for _, d := range sortedIDs(ps.dependents[e.id]) {
		importer := ps.entries[d]
		delete(ps.deps[d], e.id)
		ps.wantLocked(importer, e.name)
		ps.queueWithDependentsLocked(importer)
	}
	for _, name := range e.wants {
		ps.unwantLocked(e.id, name)
	}
	delete(ps.deps, e.id)
	delete(ps.dependents, e.id)
	delete(ps.queued, e.id)
	delete(ps.byName, e.name)
	if !e.transient {
		ps.removed[e.name] = true
	}
	ps.entries[e.id] = nil
	e.release()
	ps.updateGaugesLocked()
	ps.mu.Unlock()

	ps.signal()
	return nil
}

// UpdateTree installs a new tree for e, recomputes its imports and queues e
// with everything that transitively depends on it. It never runs inference.
func (ps *ProjectState) UpdateTree(e *ProjectEntry, tree *ast.Module) error {
	return ps.update(e, tree, nil)
}

// UpdateSource parses src and installs the result as e's tree. Syntax errors
// are kept as entry diagnostics.
func (ps *ProjectState) UpdateSource(e *ProjectEntry, src []byte) error {
	res, err := ps.parser.Parse(e.name, src)
	if err != nil {
		return errors.AddContext(err, errors.CtxPath, e.path)
	}
	return ps.update(e, res.Module, res.Diagnostics)
}

func (ps *ProjectState) update(e *ProjectEntry, tree *ast.Module, diags []parser.Diagnostic) error {
	ps.mu.Lock()
	if err := ps.checkLocked(e); err != nil {
		ps.mu.Unlock()
		return err
	}
	e.tree = tree
	e.diagnostics = diags
	e.version.Inc()

	missing := ps.relinkLocked(e,
		analyzer.Imports(e.name, e.IsPackage(), tree),
		analyzer.ImportCandidates(e.name, e.IsPackage(), tree))
	ps.queueWithDependentsLocked(e)
	loader := ps.loader
	ps.mu.Unlock()

	ps.signal()
	if loader != nil {
		ps.discover(loader, missing)
	}
	return nil
}

// discover registers and parses modules the loader can find for names that
// were imported but not yet registered.
func (ps *ProjectState) discover(loader ModuleLoader, names []string) {
	for _, name := range names {
		if _, ok := ps.Entry(name); ok {
			continue
		}
		path, ok := loader.FindModule(name)
		if !ok {
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read discovered module", "module", name, "path", path, "error", err)
			continue
		}
		e, err := ps.AddModule(name, path)
		if err != nil {
			slog.Warn("failed to register discovered module", "module", name, "error", err)
			continue
		}
		if err := ps.UpdateSource(e, src); err != nil {
			slog.Warn("failed to parse discovered module", "module", name, "error", err)
		}
	}
}

// relinkLocked replaces e's outgoing edges with names and candidates and
// returns the names that are not registered. Candidates link when they are
// registered modules but are never reported as unresolved.
func (ps *ProjectState) relinkLocked(e *ProjectEntry, names, candidates []string) []string {
	for dep := range ps.deps[e.id] {
		delete(ps.dependents[dep], e.id)
	}
	delete(ps.deps, e.id)
	for _, name := range e.wants {
		ps.unwantLocked(e.id, name)
	}
	e.wants = nil
	e.optional = nil

	required := make(map[string]bool, len(names))
	for _, name := range names {
		required[name] = true
	}
	for _, name := range candidates {
		if !required[name] {
			if e.optional == nil {
				e.optional = make(map[string]bool)
			}
			e.optional[name] = true
			names = append(names, name)
		}
	}

	var missing []string
	for _, name := range names {
		if id, ok := ps.byName[name]; ok {
			if id != e.id {
				ps.linkLocked(e, ps.entries[id])
			}
			continue
		}
		ps.wantLocked(e, name)
		missing = append(missing, name)
	}
	ps.updateGaugesLocked()
	return missing
}

func (ps *ProjectState) linkLocked(from, to *ProjectEntry) {
	if ps.deps[from.id] == nil {
		ps.deps[from.id] = make(map[EntryID]bool)
	}
	ps.deps[from.id][to.id] = true
	if ps.dependents[to.id] == nil {
		ps.dependents[to.id] = make(map[EntryID]bool)
	}
	ps.dependents[to.id][from.id] = true
}

func (ps *ProjectState) wantLocked(e *ProjectEntry, name string) {
	if ps.wanted[name] == nil {
		ps.wanted[name] = make(map[EntryID]bool)
	}
	if !ps.wanted[name][e.id] {
		ps.wanted[name][e.id] = true
		e.wants = append(e.wants, name)
	}
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func (ps *ProjectState) unwantLocked(id EntryID, name string) {
	if set, ok := ps.wanted[name]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(ps.wanted, name)
		}
	}
}

func (ps *ProjectState) checkLocked(e *ProjectEntry) error {
	if e == nil || e.ps != ps || int(e.id) >= len(ps.entries) || ps.entries[e.id] != e {
		err := errors.New(errors.CodeUnknownEntry, "entry is not registered in this project")
		if e != nil {
			err = errors.AddContext(err, errors.CtxModule, e.name)
		}
		return err
	}
	return nil
}

// queueLocked moves e to Queued. An entry being analyzed is only marked
// stale; it returns to the queue when its pass ends.
func (ps *ProjectState) queueLocked(e *ProjectEntry) {
	switch e.state {
	case StateAnalyzing:
		e.stale = true
	case StateQueued:
	default:
		ps.seq++
		e.queuedAt = ps.seq
		e.state = StateQueued
		ps.queued[e.id] = true
	}
	observability.QueueDepth.Set(float64(len(ps.queued)))
}

func (ps *ProjectState) queueWithDependentsLocked(e *ProjectEntry) {
	ps.queueLocked(e)
	for _, id := range ps.transitiveDependentsLocked(e.id) {
		ps.queueLocked(ps.entries[id])
	}
}

func (ps *ProjectState) signal() {
	select {
	case ps.notify <- struct{}{}:
	default:
	}
}

func (ps *ProjectState) updateGaugesLocked() {
	edges := 0
	for _, targets := range ps.deps {
		edges += len(targets)
	}
	observability.ProjectEntries.Set(float64(len(ps.byName)))
	observability.DependencyEdges.Set(float64(edges))
}

// ImportModule resolves registered modules for the analyzer: the published
// module when there is one, otherwise an empty frozen stub.
func (ps *ProjectState) ImportModule(name string) (*values.Module, bool) {
	ps.mu.RLock()
	id, ok := ps.byName[name]
	var e *ProjectEntry
	if ok {
		e = ps.entries[id]
	}
	ps.mu.RUnlock()
	if e == nil {
		return nil, false
	}
	if ma := e.analysis.Load(); ma != nil {
		return ma.Module, true
	}
	return e.stub, true
}

// Entry returns the registered entry for name.
func (ps *ProjectState) Entry(name string) (*ProjectEntry, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	id, ok := ps.byName[name]
	if !ok {
		return nil, false
	}
	return ps.entries[id], true
}

// Analysis returns the published analysis of a registered module.
func (ps *ProjectState) Analysis(name string) (*analyzer.ModuleAnalysis, bool) {
	e, ok := ps.Entry(name)
	if !ok {
		return nil, false
	}
	ma := e.Analysis()
	return ma, ma != nil
}

// Entries returns every registered entry ordered by module name.
func (ps *ProjectState) Entries() []*ProjectEntry {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]*ProjectEntry, 0, len(ps.byName))
	for _, e := range ps.entries {
		if e != nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Dependencies lists the registered modules e imports.
func (ps *ProjectState) Dependencies(e *ProjectEntry) []*ProjectEntry {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.resolveLocked(ps.deps[e.id])
}

// Dependents lists the registered modules importing e.
func (ps *ProjectState) Dependents(e *ProjectEntry) []*ProjectEntry {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.resolveLocked(ps.dependents[e.id])
}

// UnresolvedImports lists the names e imports that are not registered.
func (ps *ProjectState) UnresolvedImports(e *ProjectEntry) []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	var out []string
	for _, name := range e.wants {
		if !e.optional[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// RemovedModules lists the persistent modules removed from the project and
// not registered again.
func (ps *ProjectState) RemovedModules() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]string, 0, len(ps.removed))
	for name := range ps.removed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SearchRoots returns the roots module names are derived from.
func (ps *ProjectState) SearchRoots() []string {
	return append([]string(nil), ps.roots...)
}

// QueueLen is the number of entries waiting for analysis.
func (ps *ProjectState) QueueLen() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.queued)
}

func (ps *ProjectState) resolveLocked(ids map[EntryID]bool) []*ProjectEntry {
	out := make([]*ProjectEntry, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		if e := ps.entries[id]; e != nil {
			out = append(out, e)
		}
	}
	return out
}

func sortedIDs(set map[EntryID]bool) []EntryID {
	out := make([]EntryID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package graph

import (
	"path/filepath"
	"strings"
	"sync"

	"pyintel/internal/engine/analyzer"
	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/parser"
	"pyintel/internal/engine/values"

	"go.uber.org/atomic"
)

// EntryID addresses an entry in the project arena.
type EntryID int

type State int

const (
	StateUnanalyzed State = iota
	StateQueued
	StateAnalyzing
	StateAnalyzed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateAnalyzing:
		return "analyzing"
	case StateAnalyzed:
		return "analyzed"
	}
	return "unanalyzed"
}

// ProjectEntry is one module of the project. Mutable fields are guarded by
// the owning ProjectState; the published analysis is read lock-free.
type ProjectEntry struct {
	ps        *ProjectState
	id        EntryID
	name      string
	path      string
	transient bool

	// mu serializes passes over this entry.
	mu sync.Mutex

	tree        *ast.Module
	diagnostics []parser.Diagnostic
	state       State
	stale       bool
	queuedAt    uint64
	wants       []string
	optional    map[string]bool // from-import names that may be plain symbols
	removed     bool

	version  atomic.Int64
	analysis atomic.Pointer[analyzer.ModuleAnalysis]
	stub     *values.Module
}

func newEntry(ps *ProjectState, id EntryID, name, path string, transient bool) *ProjectEntry {
	return &ProjectEntry{
		ps:        ps,
		id:        id,
		name:      name,
		path:      path,
		transient: transient,
		stub:      values.NewModule(name, path, nil),
	}
}

func (e *ProjectEntry) ID() EntryID     { return e.id }
func (e *ProjectEntry) Name() string    { return e.name }
func (e *ProjectEntry) Path() string    { return e.path }
func (e *ProjectEntry) Transient() bool { return e.transient }

// IsPackage reports whether the entry is a package's __init__ module.
func (e *ProjectEntry) IsPackage() bool {
	base := strings.TrimSuffix(filepath.Base(e.path), filepath.Ext(e.path))
	return base == "__init__"
}

// Version counts tree updates.
func (e *ProjectEntry) Version() int64 { return e.version.Load() }

// Analysis is the most recently published analysis, or nil.
func (e *ProjectEntry) Analysis() *analyzer.ModuleAnalysis { return e.analysis.Load() }

func (e *ProjectEntry) Tree() *ast.Module {
	e.ps.mu.RLock()
	defer e.ps.mu.RUnlock()
	return e.tree
}

func (e *ProjectEntry) Diagnostics() []parser.Diagnostic {
	e.ps.mu.RLock()
	defer e.ps.mu.RUnlock()
	return append([]parser.Diagnostic(nil), e.diagnostics...)
}

func (e *ProjectEntry) State() State {
	e.ps.mu.RLock()
	defer e.ps.mu.RUnlock()
	return e.state
}

// Removed reports whether the entry was removed or its project closed.
func (e *ProjectEntry) Removed() bool {
	e.ps.mu.RLock()
	defer e.ps.mu.RUnlock()
	return e.removed
}

// release drops everything the entry holds. Caller holds ps.mu.
func (e *ProjectEntry) release() {
	e.removed = true
	e.tree = nil
	e.diagnostics = nil
	e.wants = nil
	e.optional = nil
	e.state = StateUnanalyzed
	e.analysis.Store(nil)
}

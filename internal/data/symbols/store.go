// Package symbols keeps a SQLite index of the names each module exports. It
// backs import suggestions for names that are not bound where they are used.
package symbols

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pyintel/internal/core/errors"
	"pyintel/internal/engine/analyzer"
	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/graph"
	"pyintel/internal/engine/values"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// Export is one indexed top-level name.
type Export struct {
	Module      string
	Name        string
	Kind        string
	Description string
}

type Store struct {
	db         *sql.DB
	lookupStmt *sql.Stmt
	moduleStmt *sql.Stmt

	cacheMu     sync.RWMutex
	lookupCache map[string][]Export
}

// Open opens or creates the index at path.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "symbol index path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, errors.AddContext(errors.New(errors.CodeValidationError, "symbol index path is a directory"), errors.CtxPath, cleanPath)
	}
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create symbol index directory %q: %w", dir, err)
		}
	}
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open symbol index %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping symbol index %q: %w", cleanPath, err)
	}
	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	lookupStmt, err := db.Prepare(`SELECT module_name, name, kind, description
FROM exports
WHERE name = ?
ORDER BY module_name`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare lookup stmt: %w", err)
	}
	moduleStmt, err := db.Prepare(`SELECT COUNT(1) FROM modules WHERE module_name = ?`)
	if err != nil {
		_ = lookupStmt.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare module stmt: %w", err)
	}

	return &Store{
		db:          db,
		lookupStmt:  lookupStmt,
		moduleStmt:  moduleStmt,
		lookupCache: make(map[string][]Export),
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	_ = s.lookupStmt.Close()
	_ = s.moduleStmt.Close()
	return s.db.Close()
}

func (s *Store) clearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.lookupCache = make(map[string][]Export)
}

// IndexProject replaces the index with the analyzed, non-transient modules
// of ps.
func (s *Store) IndexProject(ctx context.Context, ps *graph.ProjectState) error {
	var analyses []*analyzer.ModuleAnalysis
	for _, e := range ps.Entries() {
		if ma := e.Analysis(); ma != nil && !e.Transient() {
			analyses = append(analyses, ma)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exports`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear exports: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM modules`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear modules: %w", err)
	}
	for _, ma := range analyses {
		if err := upsertModule(ctx, tx, ma); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index tx: %w", err)
	}
	s.clearCache()
	return nil
}

// UpsertModule reindexes one module.
func (s *Store) UpsertModule(ctx context.Context, ma *analyzer.ModuleAnalysis) error {
	return s.writeBatch(ctx, []*analyzer.ModuleAnalysis{ma})
}

func (s *Store) DeleteModule(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	if err := deleteModule(ctx, tx, name); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	s.clearCache()
	return nil
}

func (s *Store) writeBatch(ctx context.Context, batch []*analyzer.ModuleAnalysis) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	for _, ma := range batch {
		if err := upsertModule(ctx, tx, ma); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	s.clearCache()
	return nil
}

// Lookup returns every module exporting name.
func (s *Store) Lookup(ctx context.Context, name string) ([]Export, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	s.cacheMu.RLock()
	if res, ok := s.lookupCache[name]; ok {
		s.cacheMu.RUnlock()
		return res, nil
	}
	s.cacheMu.RUnlock()

	rows, err := s.lookupStmt.QueryContext(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", name, err)
	}
	defer rows.Close()
	var out []Export
	for rows.Next() {
		var ex Export
		if err := rows.Scan(&ex.Module, &ex.Name, &ex.Kind, &ex.Description); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.lookupCache[name] = out
	s.cacheMu.Unlock()
	return out, nil
}

// ModulesExporting lists the modules exporting name.
func (s *Store) ModulesExporting(ctx context.Context, name string) ([]string, error) {
	exports, err := s.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(exports))
	for _, ex := range exports {
		out = append(out, ex.Module)
	}
	return out, nil
}

func (s *Store) HasModule(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.moduleStmt.QueryRowContext(ctx, name).Scan(&n); err != nil {
		return false, fmt.Errorf("has module %q: %w", name, err)
	}
	return n > 0, nil
}

// exportsOf lists the public top-level names ma defines. Names bound only by
// import statements or only to modules are left out; a package's
// submodules are indexed by the submodules themselves.
func exportsOf(ma *analyzer.ModuleAnalysis) []Export {
	imports := importSpans(ma.Tree)
	var out []Export
	for _, name := range ma.Module.Members().Names() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if boundOnlyByImport(ma.Module.Members().Get(name), imports) {
			continue
		}
		ts := ma.Module.Lookup(name)
		var kind string
		var descs []string
		onlyModules := ts.Len() > 0
		for _, v := range ts.Values() {
			if _, ok := v.(*values.Module); !ok {
				onlyModules = false
			}
			if kind == "" && !values.IsUnknown(v) {
				kind = v.Kind().String()
			}
			descs = append(descs, values.Description(v))
		}
		if onlyModules {
			continue
		}
		if kind == "" {
			kind = values.KindUnknown.String()
		}
		out = append(out, Export{Module: ma.Name, Name: name, Kind: kind, Description: strings.Join(descs, ", ")})
	}
	if pkg, sub, ok := cutLast(ma.Name); ok {
		out = append(out, Export{Module: pkg, Name: sub, Kind: values.KindModule.String(), Description: "module " + ma.Name})
	}
	return out
}

// importSpans returns the ranges of the import statements that bind
// module-level names.
func importSpans(tree *ast.Module) []ast.Span {
	if tree == nil {
		return nil
	}
	var out []ast.Span
	ast.Inspect(tree, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.FuncDef, *ast.ClassDef, *ast.Lambda:
			return false
		case *ast.Import, *ast.ImportFrom:
			out = append(out, n.Range())
			return false
		}
		return true
	})
	return out
}

func boundOnlyByImport(v *values.Variable, imports []ast.Span) bool {
	if v == nil || len(v.Defs) == 0 || len(imports) == 0 {
		return false
	}
	for _, d := range v.Defs {
		inside := false
		for _, sp := range imports {
			if d.Span.Start >= sp.Start && d.Span.End <= sp.End {
				inside = true
				break
			}
		}
		if !inside {
			return false
		}
	}
	return true
}

func cutLast(name string) (string, string, bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

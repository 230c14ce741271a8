package typedb

import (
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"pyintel/internal/core/errors"
	"pyintel/internal/engine/values"
	"pyintel/internal/shared/observability"

	"golang.org/x/sync/singleflight"
)

// Interpreter serves the modules of a directory database on top of a base
// interpreter. Modules are rehydrated on first import; concurrent imports of
// the same module share one rehydration.
type Interpreter struct {
	base     values.Interpreter
	dir      string
	baseline Baseline
	files    map[string]string

	cache *moduleCache
	group singleflight.Group

	// bad holds the modules whose records failed validation or decoding.
	badMu sync.RWMutex
	bad   map[string]error

	// loadMu serializes rehydration. loading holds the modules being rebuilt
	// so that import cycles between records resolve to the partial module.
	loadMu  sync.Mutex
	loading map[string]*values.Module
}

var _ values.Interpreter = (*Interpreter)(nil)

func (t *Interpreter) Base() values.Interpreter { return t.base }

func (t *Interpreter) Baseline() Baseline { return t.baseline }

func (t *Interpreter) Dir() string { return t.dir }

func (t *Interpreter) BuiltinType(id values.BuiltinTypeID) *values.Class {
	return t.base.BuiltinType(id)
}

func (t *Interpreter) Builtins() *values.Module { return t.base.Builtins() }

// ImportModule rehydrates database modules and defers everything else to
// the base interpreter. A record that cannot be decoded is logged and
// treated as absent; ModuleError returns the reason.
func (t *Interpreter) ImportModule(name string) (*values.Module, bool) {
	m, err := t.Module(name)
	if err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// Module is ImportModule with the failure of an unusable record returned as
// a CorruptModuleRecord error. A name the database and the base interpreter
// both lack yields a nil module and no error.
func (t *Interpreter) Module(name string) (*values.Module, error) {
	if err := t.ModuleError(name); err != nil {
		return nil, err
	}
	if _, ok := t.files[name]; !ok {
		m, _ := t.base.ImportModule(name)
		return m, nil
	}
	if m, ok := t.cache.Get(name); ok {
		return m, nil
	}
	v, err, _ := t.group.Do(name, func() (interface{}, error) {
		t.loadMu.Lock()
		defer t.loadMu.Unlock()
		return t.loadLocked(name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*values.Module), nil
}

// ModuleError reports why name's record is unusable, or nil when it is
// usable or not part of the database.
func (t *Interpreter) ModuleError(name string) error {
	t.badMu.RLock()
	defer t.badMu.RUnlock()
	return t.bad[name]
}

func (t *Interpreter) markBad(name string, err error) {
	observability.PersistenceErrorsTotal.WithLabelValues(string(errors.CodeOf(err))).Inc()
	slog.Warn("module record unusable", "module", name, "error", err)
	t.badMu.Lock()
	t.bad[name] = err
	t.badMu.Unlock()
}

func (t *Interpreter) LookupForeign(path string) (values.Value, bool) {
	return t.base.LookupForeign(path)
}

func (t *Interpreter) ForeignMembers(path string) map[string]values.Value {
	return t.base.ForeignMembers(path)
}

// ModuleNames lists the usable database modules and the base interpreter's
// modules.
func (t *Interpreter) ModuleNames() []string {
	seen := make(map[string]bool)
	for _, n := range t.base.ModuleNames() {
		seen[n] = true
	}
	for n := range t.files {
		if t.ModuleError(n) == nil {
			seen[n] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (t *Interpreter) Close() error {
	t.cache.Clear()
	return t.base.Close()
}

// loadLocked rehydrates name. Caller holds loadMu.
func (t *Interpreter) loadLocked(name string) (*values.Module, error) {
	if m, ok := t.cache.Peek(name); ok {
		return m, nil
	}
	if m, ok := t.loading[name]; ok {
		return m, nil
	}

	rec, err := readRecord(name, t.files[name])
	if err != nil {
		t.markBad(name, err)
		return nil, err
	}

	r := newRehydrator(t, rec)
	t.loading[name] = r.mod
	defer delete(t.loading, name)
	m := r.run()

	t.cache.Put(name, m)
	observability.PersistedRecordsTotal.WithLabelValues("load").Inc()
	slog.Debug("module rehydrated", "module", name, "values", len(rec.Values))
	return m, nil
}

// moduleLocked resolves a module referenced from a record being rebuilt.
// Caller holds loadMu.
func (t *Interpreter) moduleLocked(name string) *values.Module {
	if _, ok := t.files[name]; ok {
		if t.ModuleError(name) != nil {
			return nil
		}
		m, err := t.loadLocked(name)
		if err != nil {
			return nil
		}
		return m
	}
	return t.baseModule(name)
}

// readRecord decodes the record of name stored at path.
func readRecord(name, path string) (*moduleRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeCorruptModuleRecord, "read module record"), errors.CtxModule, name)
	}
	var rec moduleRecord
	if err := unmarshalFrame(data, &rec); err != nil {
		return nil, errors.AddContext(err, errors.CtxModule, name)
	}
	if rec.Name != name {
		return nil, errors.AddContext(errors.Newf(errors.CodeCorruptModuleRecord, "record holds module %q", rec.Name), errors.CtxModule, name)
	}
	return &rec, nil
}

func (t *Interpreter) baseModule(name string) *values.Module {
	if name == "builtins" {
		return t.base.Builtins()
	}
	m, ok := t.base.ImportModule(name)
	if !ok {
		return nil
	}
	return m
}

// foreign resolves a foreign path, falling back to the members of the
// enclosing type for methods.
func (t *Interpreter) foreign(path string) values.Value {
	if v, ok := t.base.LookupForeign(path); ok {
		return v
	}
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return nil
	}
	return t.base.ForeignMembers(path[:i])[path[i+1:]]
}

package typedb

import (
	"log/slog"
	"os"
	"path/filepath"

	"pyintel/internal/core/config"
	"pyintel/internal/core/errors"
	"pyintel/internal/engine/graph"
	"pyintel/internal/engine/interpreter"
	"pyintel/internal/engine/values"
	"pyintel/internal/shared/observability"
)

const defaultCacheSize = 512

// Load opens the database in dir on top of base. The baseline and the frame
// of every listed module record are validated up front; record bodies are
// decoded on first import. A record with a bad frame does not fail the load:
// that module is unavailable and ModuleError reports why.
func Load(dir string, base values.Interpreter) (*Interpreter, error) {
	return load(dir, base, defaultCacheSize)
}

// OpenProject loads the database in dir and returns a project state whose
// interpreter serves the saved modules. The base interpreter is the builtin
// database for the saved language version.
func OpenProject(dir string, cfg *config.Config) (*graph.ProjectState, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	bl, err := ReadBaseline(dir)
	if err != nil {
		return nil, err
	}
	analysis := cfg.Analysis
	if bl.LanguageVersion != "" {
		analysis.LanguageVersion = bl.LanguageVersion
	}
	db, err := load(dir, interpreter.NewBuiltins(analysis.LanguageVersion), analysis.ModuleCacheSize)
	if err != nil {
		return nil, err
	}
	projectCfg := *cfg
	projectCfg.Analysis = analysis
	return graph.New(db, &projectCfg), nil
}

// ReadBaseline decodes dir's baseline record.
func ReadBaseline(dir string) (Baseline, error) {
	path := filepath.Join(dir, baselineName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Baseline{}, errors.AddContext(errors.New(errors.CodeMissingBaseline, "database has no baseline"), errors.CtxPath, path)
		}
		return Baseline{}, errors.AddContext(errors.Wrap(err, errors.CodeMissingBaseline, "read baseline"), errors.CtxPath, path)
	}
	var bl Baseline
	if err := unmarshalFrame(data, &bl); err != nil {
		return Baseline{}, errors.AddContext(err, errors.CtxPath, path)
	}
	return bl, nil
}

func load(dir string, base values.Interpreter, cacheSize int) (*Interpreter, error) {
	bl, err := ReadBaseline(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range bl.BuiltinTypes {
		id, ok := builtinIDs[name]
		if !ok || base.BuiltinType(id) == nil {
			return nil, errors.AddContext(errors.Newf(errors.CodeValidationError, "builtin type %q is not supplied by the interpreter", name), errors.CtxPath, dir)
		}
	}

	files := make(map[string]string, len(bl.Modules))
	bad := make(map[string]error)
	for _, name := range bl.Modules {
		path := filepath.Join(dir, name+fileExt)
		if err := verifyFile(path); err != nil {
			err = errors.AddContext(errors.AddContext(err, errors.CtxModule, name), errors.CtxPath, path)
			observability.PersistenceErrorsTotal.WithLabelValues(string(errors.CodeOf(err))).Inc()
			slog.Warn("module record unusable", "module", name, "error", err)
			bad[name] = err
			continue
		}
		files[name] = path
	}

	t := &Interpreter{
		base:     base,
		dir:      dir,
		baseline: bl,
		files:    files,
		cache:    newModuleCache(cacheSize),
		bad:      bad,
		loading:  make(map[string]*values.Module),
	}
	t.cache.onEvict = func(name string) {
		slog.Debug("rehydrated module evicted", "module", name)
	}
	return t, nil
}

// verifyFile checks a record's frame without decoding the body.
func verifyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeCorruptModuleRecord, "read module record")
	}
	_, err = checkFrame(data)
	return err
}

package graph

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"pyintel/internal/core/config"
	"pyintel/internal/core/errors"
	"pyintel/internal/engine/interpreter"
	"pyintel/internal/engine/values"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newProject(t *testing.T, roots ...string) *ProjectState {
	t.Helper()
	cfg := config.DefaultConfig()
	if len(roots) > 0 {
		cfg.Paths.SearchRoots = roots
	}
	ps := New(interpreter.NewBuiltins(cfg.Analysis.LanguageVersion), cfg)
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func addSource(t *testing.T, ps *ProjectState, name, src string) *ProjectEntry {
	t.Helper()
	e, err := ps.AddModule(name, name+".py")
	require.NoError(t, err)
	require.NoError(t, ps.UpdateSource(e, []byte(src)))
	return e
}

func exported(t *testing.T, e *ProjectEntry, name string) []string {
	t.Helper()
	ma := e.Analysis()
	require.NotNil(t, ma, "module %s was not analyzed", e.Name())
	var out []string
	for _, v := range ma.Module.Lookup(name).Values() {
		out = append(out, values.Description(v))
	}
	sort.Strings(out)
	return out
}

func names(entries []*ProjectEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	return out
}

func TestAddModule_ReopenAndDuplicate(t *testing.T) {
	ps := newProject(t)

	a, err := ps.AddModule("a", "a.py")
	require.NoError(t, err)
	again, err := ps.AddModule("a", "a.py")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = ps.AddModule("a", "other/a.py")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDuplicateModule))

	replaced, err := ps.ReplaceModule("a", "other/a.py")
	require.NoError(t, err)
	assert.NotSame(t, a, replaced)
	assert.True(t, a.Removed())
	assert.Equal(t, "other/a.py", replaced.Path())

	_, err = ps.AddModule("", "x.py")
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestUpdateTree_QueuesTransitiveDependents(t *testing.T) {
	ps := newProject(t)
	c := addSource(t, ps, "c", "X = 1\n")
	b := addSource(t, ps, "b", "import c\nY = c.X\n")
	a := addSource(t, ps, "a", "import b\nZ = b.Y\n")
	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	for _, e := range []*ProjectEntry{a, b, c} {
		assert.Equal(t, StateAnalyzed, e.State())
	}

	require.NoError(t, ps.UpdateSource(c, []byte("X = 'changed'\n")))
	assert.Equal(t, StateQueued, a.State())
	assert.Equal(t, StateQueued, b.State())
	assert.Equal(t, StateQueued, c.State())
	assert.Equal(t, 3, ps.QueueLen())
	assert.Equal(t, []string{"int"}, exported(t, a, "Z"), "updates never run inference")

	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	assert.Equal(t, []string{"str"}, exported(t, a, "Z"))
	assert.Equal(t, 0, ps.QueueLen())
}

func TestDrain_CrossModuleScenario(t *testing.T) {
	ps := newProject(t)
	// Registered in reverse dependency order on purpose.
	baz := addSource(t, ps, "baz", "import foo\nabc = foo.x\n")
	addSource(t, ps, "foo", "import bar\nx = bar.f()\n")
	addSource(t, ps, "bar", "def f():\n    return 42\n")

	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	assert.Equal(t, []string{"int"}, exported(t, baz, "abc"))
}

func TestDrain_CyclesReachFixedPoint(t *testing.T) {
	ps := newProject(t)
	a := addSource(t, ps, "a", "import b\nx = 1\ny = b.z\n")
	b := addSource(t, ps, "b", "import a\nz = a.x\n")

	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	assert.Equal(t, []string{"int"}, exported(t, b, "z"))
	assert.Equal(t, []string{"int"}, exported(t, a, "y"))
	assert.Equal(t, [][]string{{"a", "b"}}, ps.Cycles())
}

func TestDrain_PassLimitBoundsCycles(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.MaxPassesPerDrain = 1
	ps := New(interpreter.NewBuiltins("3.12"), cfg)
	defer ps.Close()

	a, err := ps.AddModule("a", "a.py")
	require.NoError(t, err)
	require.NoError(t, ps.UpdateSource(a, []byte("import b\nx = 1\ny = b.z\n")))
	b, err := ps.AddModule("b", "b.py")
	require.NoError(t, err)
	require.NoError(t, ps.UpdateSource(b, []byte("import a\nz = a.x\n")))

	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	assert.Equal(t, StateAnalyzed, a.State())
	assert.Equal(t, StateAnalyzed, b.State())
	// a went first against b's empty stub and was not revisited.
	assert.Equal(t, []string{"unknown"}, exported(t, a, "y"))
}

func TestWantedImports_LinkWhenRegistered(t *testing.T) {
	ps := newProject(t)
	a := addSource(t, ps, "a", "import later\nv = later.VALUE\n")
	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	assert.Contains(t, ps.UnresolvedImports(a), "later")
	assert.Empty(t, ps.Dependencies(a))

	later := addSource(t, ps, "later", "VALUE = 1.5\n")
	assert.Equal(t, StateQueued, a.State())
	assert.Equal(t, []string{"later"}, names(ps.Dependencies(a)))
	assert.Equal(t, []string{"a"}, names(ps.Dependents(later)))
	assert.NotContains(t, ps.UnresolvedImports(a), "later")

	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	assert.Equal(t, []string{"float"}, exported(t, a, "v"))

	require.NoError(t, ps.RemoveModule(later))
	assert.Equal(t, []string{"later"}, ps.UnresolvedImports(a))
	addSource(t, ps, "later", "VALUE = 2\n")
	assert.Empty(t, ps.UnresolvedImports(a))
}

func TestFromImportNamesAreCandidates(t *testing.T) {
	ps := newProject(t)
	addSource(t, ps, "lib", "X = 1\n")
	a := addSource(t, ps, "a", "from lib import X\nfrom missing import Y\nfrom pkg import sub\n")
	assert.Equal(t, []string{"missing", "pkg"}, ps.UnresolvedImports(a))
	assert.Equal(t, []string{"lib"}, names(ps.Dependencies(a)))

	// A candidate that turns out to be a module is linked once registered.
	addSource(t, ps, "pkg", "")
	sub := addSource(t, ps, "pkg.sub", "Z = 1\n")
	assert.Empty(t, ps.UnresolvedImports(a))
	assert.Equal(t, []string{"lib", "pkg", "pkg.sub"}, names(ps.Dependencies(a)))
	assert.Equal(t, []string{"a"}, names(ps.Dependents(sub)))
}

func TestRemoveModule_SeversEdges(t *testing.T) {
	ps := newProject(t)
	lib := addSource(t, ps, "lib", "X = 1\n")
	app := addSource(t, ps, "app", "import lib\ny = lib.X\n")
	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))

	require.NoError(t, ps.RemoveModule(lib))
	assert.True(t, lib.Removed())
	assert.Nil(t, lib.Analysis())
	assert.Empty(t, ps.Dependencies(app))
	assert.Equal(t, StateQueued, app.State())
	assert.Contains(t, ps.UnresolvedImports(app), "lib")
	assert.Equal(t, []string{"lib"}, ps.RemovedModules())

	err := ps.UpdateSource(lib, []byte("X = 2\n"))
	assert.True(t, errors.IsCode(err, errors.CodeUnknownEntry))
	assert.True(t, errors.IsCode(ps.RemoveModule(lib), errors.CodeUnknownEntry))

	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	assert.Equal(t, []string{"unknown"}, exported(t, app, "y"))

	// Registering the name again restores the edge.
	addSource(t, ps, "lib", "X = 'back'\n")
	assert.Equal(t, []string{"lib"}, names(ps.Dependencies(app)))
	assert.Empty(t, ps.RemovedModules())
}

func TestUpdateTree_DuringAnalysisMarksStale(t *testing.T) {
	ps := newProject(t)
	e := addSource(t, ps, "m", "x = 1\n")

	ps.mu.Lock()
	delete(ps.queued, e.id)
	e.state = StateAnalyzing
	ps.mu.Unlock()

	require.NoError(t, ps.UpdateSource(e, []byte("x = 'two'\n")))
	assert.Equal(t, StateAnalyzing, e.State())
	assert.Equal(t, 0, ps.QueueLen())

	ps.mu.RLock()
	stale := e.stale
	ps.mu.RUnlock()
	assert.True(t, stale)

	ps.mu.Lock()
	e.state = StateUnanalyzed
	ps.mu.Unlock()
	_, err := ps.analyzeEntry(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, StateAnalyzed, e.State())
	assert.Equal(t, []string{"str"}, exported(t, e, "x"))
}

func TestImportModule_StubBeforeAnalysis(t *testing.T) {
	ps := newProject(t)
	e, err := ps.AddModule("pending", "pending.py")
	require.NoError(t, err)

	mod, ok := ps.ImportModule("pending")
	require.True(t, ok)
	assert.Equal(t, 0, mod.Members().Len())
	assert.Nil(t, mod.Owner(), "stubs are frozen")

	require.NoError(t, ps.UpdateSource(e, []byte("a = 1\n")))
	require.NoError(t, ps.Analyze(context.Background(), e))
	mod, ok = ps.ImportModule("pending")
	require.True(t, ok)
	assert.Same(t, e.Analysis().Module, mod)

	_, ok = ps.ImportModule("nowhere")
	assert.False(t, ok)
}

func TestImpact(t *testing.T) {
	ps := newProject(t)
	addSource(t, ps, "base", "")
	addSource(t, ps, "mid", "import base\n")
	addSource(t, ps, "top", "import mid\n")
	base, _ := ps.Entry("base")

	report, err := ps.Impact(base)
	require.NoError(t, err)
	assert.Equal(t, []string{"mid"}, report.DirectDependents)
	assert.Equal(t, []string{"top"}, report.TransitiveDependents)
	assert.Empty(t, ps.Cycles())
}

func TestParseErrorsBecomeDiagnostics(t *testing.T) {
	ps := newProject(t)
	e := addSource(t, ps, "broken", "x = 1\ndef (:\ny = 'ok'\n")
	assert.NotEmpty(t, e.Diagnostics())

	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	assert.Equal(t, []string{"int"}, exported(t, e, "x"))
}

func TestModuleNameFor(t *testing.T) {
	roots := []string{"/proj", "/proj/src"}
	cases := map[string]string{
		"/proj/src/pkg/mod.py":      "pkg.mod",
		"/proj/src/pkg/__init__.py": "pkg",
		"/proj/tools/x.py":          "tools.x",
		"/elsewhere/y.py":           "y",
		"/proj/src/stubs.pyi":       "stubs",
	}
	for path, want := range cases {
		assert.Equal(t, want, ModuleNameFor(roots, path), path)
	}
}

func TestDirLoader_DiscoversImports(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "__init__.py"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "util.py"), []byte("def answer():\n    return 42\n"), 0o644))

	ps := newProject(t, root)
	ps.SetLoader(DirLoader{Roots: []string{root}})

	mainPath := filepath.Join(root, "main.py")
	main, err := ps.AddModule(ps.PathToModuleName(mainPath), mainPath)
	require.NoError(t, err)
	assert.Equal(t, "main", main.Name())
	require.NoError(t, ps.UpdateSource(main, []byte("from pkg.util import answer\nv = answer()\n")))

	util, ok := ps.Entry("pkg.util")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "pkg", "util.py"), util.Path())
	pkg, ok := ps.Entry("pkg")
	require.True(t, ok)
	assert.True(t, pkg.IsPackage())

	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	assert.Equal(t, []string{"int"}, exported(t, main, "v"))
}

func TestWorker_DrainsInBackground(t *testing.T) {
	defer goleak.VerifyNone(t)

	ps := New(interpreter.NewBuiltins("3.12"), nil)
	e, err := ps.AddModule("m", "m.py")
	require.NoError(t, err)
	require.NoError(t, ps.UpdateSource(e, []byte("x = [1]\n")))

	ps.Start(context.Background())
	ps.Start(context.Background())
	require.Eventually(t, func() bool { return e.State() == StateAnalyzed }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, ps.UpdateSource(e, []byte("x = {'k': 1}\n")))
	require.Eventually(t, func() bool {
		ma := e.Analysis()
		return ma != nil && ma.Version == e.Version() && e.State() == StateAnalyzed
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"dict({str : int})"}, exported(t, e, "x"))

	ps.Stop()
	require.NoError(t, ps.Close())
	assert.True(t, e.Removed())
}

func TestClose_ReleasesEverything(t *testing.T) {
	ps := New(interpreter.NewBuiltins("3.12"), nil)
	e := addSource(t, ps, "m", "x = 1\n")
	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))

	require.NoError(t, ps.Close())
	require.NoError(t, ps.Close())
	assert.Empty(t, ps.Entries())
	assert.Nil(t, e.Analysis())
	_, err := ps.AddModule("n", "n.py")
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
}

package typedb

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"pyintel/internal/core/config"
	"pyintel/internal/core/errors"
	"pyintel/internal/data/symbols"
	"pyintel/internal/engine/graph"
	"pyintel/internal/engine/interpreter"
	"pyintel/internal/engine/values"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libSource = `"""Library."""
import sys

class Base(object):
    kind = 'base'

class Thing(Base):
    """A thing."""
    count = 0

    def __init__(self, name):
        self.name = name

    def greet(self, times=2):
        return 'hi'

    @property
    def size(self):
        return 3

def make(n=10, *args, **kw):
    """Make a thing."""
    return Thing('x')

items = [1, 2]
mapping = {'a': 1.5}
limit = sys.getrecursionlimit()
`

func newProject(t *testing.T, modules map[string]string) *graph.ProjectState {
	t.Helper()
	cfg := config.DefaultConfig()
	ps := graph.New(interpreter.NewBuiltins(cfg.Analysis.LanguageVersion), cfg)
	t.Cleanup(func() { _ = ps.Close() })
	addModules(t, ps, modules)
	return ps
}

func addModules(t *testing.T, ps *graph.ProjectState, modules map[string]string) {
	t.Helper()
	for name, src := range modules {
		e, err := ps.AddModule(name, name+".py")
		require.NoError(t, err)
		require.NoError(t, ps.UpdateSource(e, []byte(src)))
	}
	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
}

// describe renders every member of m with its descriptions, signatures and
// the member names of classes.
func describe(m *values.Module, interp values.Interpreter) map[string][]string {
	out := make(map[string][]string)
	for _, name := range m.Members().Names() {
		var lines []string
		for _, v := range m.Lookup(name).Values() {
			lines = append(lines, values.Description(v))
			for _, sig := range values.Signatures(v) {
				lines = append(lines, sig.String())
			}
			if c, ok := v.(*values.Class); ok {
				lines = append(lines, "members: "+strings.Join(values.MemberNames(c, interp), " "))
				lines = append(lines, "instance: "+strings.Join(values.MemberNames(c.Instance(), interp), " "))
			}
		}
		sort.Strings(lines)
		out[name] = lines
	}
	return out
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ps := newProject(t, map[string]string{
		"lib": libSource,
		"app": "from lib import Thing, make\nt = make()\n",
	})
	require.NoError(t, Save(context.Background(), ps, dir))

	for _, f := range []string{"lib.idb", "app.idb", baselineName, "symbols.db"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}

	bl, err := ReadBaseline(dir)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, bl.FormatVersion)
	assert.Equal(t, []string{"app", "lib"}, bl.Modules)
	assert.Equal(t, ps.ID().String(), bl.Session)
	assert.Contains(t, bl.BuiltinTypes, "int")

	base := interpreter.NewBuiltins(config.DefaultConfig().Analysis.LanguageVersion)
	db, err := Load(dir, base)
	require.NoError(t, err)
	defer db.Close()

	for _, name := range []string{"lib", "app"} {
		ma, ok := ps.Analysis(name)
		require.True(t, ok)
		m, ok := db.ImportModule(name)
		require.True(t, ok, name)
		assert.Equal(t, describe(ma.Module, ps.Interpreter()), describe(m, db), name)
	}

	lib, _ := db.ImportModule("lib")
	assert.Equal(t, "Library.", lib.Doc)
	var things []string
	for _, v := range lib.Lookup("Thing").Values() {
		things = append(things, values.Description(v))
	}
	assert.Equal(t, []string{"class Thing"}, things)

	app, _ := db.ImportModule("app")
	assert.Same(t, lib.Lookup("Thing").Values()[0], app.Lookup("Thing").Values()[0])

	_, ok := db.ImportModule("sys")
	assert.True(t, ok, "base modules stay importable")
	assert.Contains(t, db.ModuleNames(), "lib")
	assert.Contains(t, db.ModuleNames(), "sys")
}

func TestOpenProject_AnalyzesAgainstSavedModules(t *testing.T) {
	dir := t.TempDir()
	ps := newProject(t, map[string]string{"lib": libSource})
	require.NoError(t, Save(context.Background(), ps, dir))

	reopened, err := OpenProject(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	addModules(t, reopened, map[string]string{
		"user": "from lib import make\nx = make()\ny = x.greet()\nz = x.name\n",
	})
	ma, ok := reopened.Analysis("user")
	require.True(t, ok)

	original := newProject(t, map[string]string{
		"lib":  libSource,
		"user": "from lib import make\nx = make()\ny = x.greet()\nz = x.name\n",
	})
	want, ok := original.Analysis("user")
	require.True(t, ok)

	for _, name := range []string{"x", "y", "z"} {
		var got, exp []string
		for _, v := range ma.Module.Lookup(name).Values() {
			got = append(got, values.Description(v))
		}
		for _, v := range want.Module.Lookup(name).Values() {
			exp = append(exp, values.Description(v))
		}
		assert.ElementsMatch(t, exp, got, name)
	}
}

func TestLoad_ImportCycle(t *testing.T) {
	dir := t.TempDir()
	ps := newProject(t, map[string]string{
		"a": "import b\nX = 1\n",
		"b": "import a\nY = 2\n",
	})
	require.NoError(t, Save(context.Background(), ps, dir))

	db, err := Load(dir, interpreter.NewBuiltins("3.12"))
	require.NoError(t, err)

	a, ok := db.ImportModule("a")
	require.True(t, ok)
	bs := a.Lookup("b").Values()
	require.Len(t, bs, 1)
	b, ok := bs[0].(*values.Module)
	require.True(t, ok)
	assert.Equal(t, "b", b.Name)

	as := b.Lookup("a").Values()
	require.Len(t, as, 1)
	assert.Same(t, a, as[0])
}

func TestLoad_MissingBaseline(t *testing.T) {
	_, err := Load(t.TempDir(), interpreter.NewBuiltins("3.12"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMissingBaseline))

	_, err = OpenProject(t.TempDir(), nil)
	assert.True(t, errors.IsCode(err, errors.CodeMissingBaseline))
}

func TestLoad_CorruptModuleRecord(t *testing.T) {
	cases := map[string]func([]byte) []byte{
		"flipped body byte": func(b []byte) []byte {
			b[len(magic)+3] ^= 0xff
			return b
		},
		"truncated": func(b []byte) []byte { return b[:len(magic)] },
		"bad magic": func(b []byte) []byte {
			b[0] = 'X'
			return b
		},
		"future version": func(b []byte) []byte {
			b[len(magic)] = FormatVersion + 1
			return b
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			ps := newProject(t, map[string]string{"lib": libSource, "app": "X = 1\n"})
			require.NoError(t, Save(context.Background(), ps, dir))

			path := filepath.Join(dir, "lib.idb")
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, corrupt(data), 0o644))

			db, err := Load(dir, interpreter.NewBuiltins("3.12"))
			require.NoError(t, err)

			app, ok := db.ImportModule("app")
			require.True(t, ok)
			assert.Contains(t, app.Members().Names(), "X")
			assert.NoError(t, db.ModuleError("app"))

			_, ok = db.ImportModule("lib")
			assert.False(t, ok)
			modErr := db.ModuleError("lib")
			require.Error(t, modErr)
			assert.True(t, errors.IsCode(modErr, errors.CodeCorruptModuleRecord), modErr.Error())
			_, err = db.Module("lib")
			assert.True(t, errors.IsCode(err, errors.CodeCorruptModuleRecord))
			assert.NotContains(t, db.ModuleNames(), "lib")
			assert.Contains(t, db.ModuleNames(), "app")
		})
	}
}

func TestSave_RemovesRecordsOfRemovedModules(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ps := newProject(t, map[string]string{"a": "X = 1\n", "b": "Y = 1\n"})
	require.NoError(t, Save(ctx, ps, dir))
	assert.FileExists(t, filepath.Join(dir, "b.idb"))

	b, ok := ps.Entry("b")
	require.True(t, ok)
	require.NoError(t, ps.RemoveModule(b))
	require.NoError(t, ps.AnalyzeQueuedEntries(ctx))
	require.NoError(t, Save(ctx, ps, dir))
	assert.NoFileExists(t, filepath.Join(dir, "b.idb"))
	assert.FileExists(t, filepath.Join(dir, "a.idb"))

	bl, err := ReadBaseline(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, bl.Modules)
}

func TestSave_KeepsRecordsOfOtherProjects(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Save(ctx, newProject(t, map[string]string{"shipped": "VERSION = '1.0'\n"}), dir))

	require.NoError(t, Save(ctx, newProject(t, map[string]string{"app": "import shipped\nv = shipped.VERSION\n"}), dir))
	assert.FileExists(t, filepath.Join(dir, "shipped.idb"))
	assert.FileExists(t, filepath.Join(dir, "app.idb"))

	bl, err := ReadBaseline(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "shipped"}, bl.Modules)
	assert.Equal(t, "shipped.py", bl.Sources["shipped"])

	db, err := Load(dir, interpreter.NewBuiltins("3.12"))
	require.NoError(t, err)
	m, ok := db.ImportModule("shipped")
	require.True(t, ok)
	assert.Contains(t, m.Members().Names(), "VERSION")
}

func TestSave_RemovesRecordsWhoseSourceIsGone(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	root := t.TempDir()
	gone := filepath.Join(root, "gone.py")
	require.NoError(t, os.WriteFile(gone, []byte("Z = 1\n"), 0o644))

	project := func() *graph.ProjectState {
		cfg := config.DefaultConfig()
		cfg.Paths.SearchRoots = []string{root}
		ps := graph.New(interpreter.NewBuiltins(cfg.Analysis.LanguageVersion), cfg)
		t.Cleanup(func() { _ = ps.Close() })
		return ps
	}

	ps := project()
	e, err := ps.AddModule("gone", gone)
	require.NoError(t, err)
	require.NoError(t, ps.UpdateSource(e, []byte("Z = 1\n")))
	require.NoError(t, ps.AnalyzeQueuedEntries(ctx))
	require.NoError(t, Save(ctx, ps, dir))
	assert.FileExists(t, filepath.Join(dir, "gone.idb"))

	require.NoError(t, os.Remove(gone))
	ps = project()
	addModules(t, ps, map[string]string{"kept": "X = 1\n"})
	require.NoError(t, Save(ctx, ps, dir))
	assert.NoFileExists(t, filepath.Join(dir, "gone.idb"))

	bl, err := ReadBaseline(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, bl.Modules)
}

func TestSave_SkipsTransientModules(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ps := newProject(t, map[string]string{"a": "X = 1\n"})
	e, err := ps.AddTransientModule("scratch")
	require.NoError(t, err)
	require.NoError(t, ps.UpdateSource(e, []byte("Z = 1\n")))
	require.NoError(t, ps.AnalyzeQueuedEntries(ctx))

	require.NoError(t, Save(ctx, ps, dir))
	assert.NoFileExists(t, filepath.Join(dir, "scratch.idb"))
}

func TestSave_WritesSymbolIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Save(ctx, newProject(t, map[string]string{"lib": libSource}), dir))

	store, err := symbols.Open(filepath.Join(dir, "symbols.db"), 0)
	require.NoError(t, err)
	defer store.Close()
	mods, err := store.ModulesExporting(ctx, "make")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib"}, mods)
}

func TestImportModule_ConcurrentSharesRehydration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(context.Background(), newProject(t, map[string]string{"lib": libSource}), dir))
	db, err := Load(dir, interpreter.NewBuiltins("3.12"))
	require.NoError(t, err)

	const n = 16
	got := make([]*values.Module, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, ok := db.ImportModule("lib")
			if ok {
				got[i] = m
			}
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		require.NotNil(t, got[i])
		assert.Same(t, got[0], got[i])
	}
}

func TestImportModule_UnreadableBodyIsAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(context.Background(), newProject(t, map[string]string{"lib": libSource}), dir))
	db, err := Load(dir, interpreter.NewBuiltins("3.12"))
	require.NoError(t, err)

	// Loading validated the file; replace it afterwards.
	require.NoError(t, os.Remove(filepath.Join(dir, "lib.idb")))
	_, ok := db.ImportModule("lib")
	assert.False(t, ok)
	assert.True(t, errors.IsCode(db.ModuleError("lib"), errors.CodeCorruptModuleRecord))
}

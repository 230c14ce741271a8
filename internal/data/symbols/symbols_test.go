package symbols

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pyintel/internal/core/config"
	"pyintel/internal/engine/graph"
	"pyintel/internal/engine/interpreter"
	"pyintel/internal/engine/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ query.Catalog = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "symbols.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newProject(t *testing.T, modules map[string]string) *graph.ProjectState {
	t.Helper()
	cfg := config.DefaultConfig()
	ps := graph.New(interpreter.NewBuiltins(cfg.Analysis.LanguageVersion), cfg)
	t.Cleanup(func() { _ = ps.Close() })
	for name, src := range modules {
		path := name + ".py"
		if name == "pkg" {
			path = "pkg/__init__.py"
		}
		e, err := ps.AddModule(name, path)
		require.NoError(t, err)
		require.NoError(t, ps.UpdateSource(e, []byte(src)))
	}
	require.NoError(t, ps.AnalyzeQueuedEntries(context.Background()))
	return ps
}

func testProject(t *testing.T) *graph.ProjectState {
	return newProject(t, map[string]string{
		"pkg":     "VERSION = '1'\n_hidden = 2\n",
		"pkg.sub": "import os\ndef helper():\n    return 1\nclass Widget:\n    pass\n",
	})
}

func TestIndexProject_LookupAndModules(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.IndexProject(ctx, testProject(t)))

	got, err := store.Lookup(ctx, "helper")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pkg.sub", got[0].Module)
	assert.Equal(t, "function", got[0].Kind)

	mods, err := store.ModulesExporting(ctx, "Widget")
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg.sub"}, mods)

	mods, err = store.ModulesExporting(ctx, "sub")
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg"}, mods)

	ok, err := store.HasModule(ctx, "pkg.sub")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.HasModule(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndexProject_SkipsPrivateAndImportedModules(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.IndexProject(ctx, testProject(t)))

	for _, name := range []string{"_hidden", "os"} {
		got, err := store.Lookup(ctx, name)
		require.NoError(t, err)
		assert.Empty(t, got, name)
	}
	got, err := store.Lookup(ctx, "VERSION")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "instance", got[0].Kind)
}

func TestIndexProject_SkipsImportedNames(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	ps := newProject(t, map[string]string{
		"tools.grinder": "def grind(items):\n    return items\nclass Mill:\n    pass\n",
		"main":          "from tools.grinder import grind, Mill as M\nif grind:\n    import json\nM = 3\n",
	})
	require.NoError(t, store.IndexProject(ctx, ps))

	mods, err := store.ModulesExporting(ctx, "grind")
	require.NoError(t, err)
	assert.Equal(t, []string{"tools.grinder"}, mods)

	// Rebinding an imported name at top level makes it an export.
	got, err := store.Lookup(ctx, "M")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "main", got[0].Module)

	got, err = store.Lookup(ctx, "json")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteModule(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.IndexProject(ctx, testProject(t)))

	// Warm the cache so the delete has to invalidate it.
	_, err := store.Lookup(ctx, "helper")
	require.NoError(t, err)

	require.NoError(t, store.DeleteModule(ctx, "pkg.sub"))
	for _, name := range []string{"helper", "sub"} {
		got, err := store.Lookup(ctx, name)
		require.NoError(t, err)
		assert.Empty(t, got, name)
	}
	ok, err := store.HasModule(ctx, "pkg.sub")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Lookup(ctx, "VERSION")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestIndexProject_ReplacesPreviousContents(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.IndexProject(ctx, testProject(t)))
	require.NoError(t, store.IndexProject(ctx, newProject(t, map[string]string{"other": "thing = 1\n"})))

	got, err := store.Lookup(ctx, "helper")
	require.NoError(t, err)
	assert.Empty(t, got)
	mods, err := store.ModulesExporting(ctx, "thing")
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, mods)
}

func TestOpen_RejectsBadPaths(t *testing.T) {
	_, err := Open("  ", time.Second)
	assert.Error(t, err)
	_, err = Open(t.TempDir(), time.Second)
	assert.Error(t, err)
}

func TestWriter_FlushByCount(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	ps := testProject(t)
	w := NewWriter(store, WriterConfig{BatchSize: 2, FlushInterval: time.Hour})
	defer func() { _ = w.Close() }()

	for _, name := range []string{"pkg", "pkg.sub"} {
		ma, ok := ps.Analysis(name)
		require.True(t, ok)
		w.Submit(ma)
	}

	assert.Eventually(t, func() bool {
		got, err := store.Lookup(ctx, "Widget")
		if err != nil || len(got) == 0 {
			store.clearCache()
			return false
		}
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestWriter_FlushAndLatestWins(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	w := NewWriter(store, WriterConfig{BatchSize: 100, FlushInterval: time.Hour})
	defer func() { _ = w.Close() }()

	ps := newProject(t, map[string]string{"mod": "first = 1\n"})
	e, ok := ps.Entry("mod")
	require.True(t, ok)
	old := e.Analysis()
	require.NoError(t, ps.UpdateSource(e, []byte("second = 1\n")))
	require.NoError(t, ps.AnalyzeQueuedEntries(ctx))

	w.Submit(e.Analysis())
	w.Submit(old)
	require.NoError(t, w.Flush())

	got, err := store.Lookup(ctx, "second")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	got, err = store.Lookup(ctx, "first")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriter_CloseWritesPending(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	ps := testProject(t)
	w := NewWriter(store, WriterConfig{BatchSize: 100, FlushInterval: time.Hour})

	ma, ok := ps.Analysis("pkg")
	require.True(t, ok)
	w.Submit(ma)
	w.Submit(nil)
	require.NoError(t, w.Close())

	got, err := store.Lookup(ctx, "VERSION")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

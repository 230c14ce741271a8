package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	coreapp "pyintel/internal/core/app"
	"pyintel/internal/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

var sampleProject = map[string]string{
	"tools/__init__.py": "",
	"tools/grinder.py":  "def grind(items):\n    return [len(i) for i in items]\n",
	"main.py":           "from tools.grinder import grind\nsizes = grind(['a', 'bb'])\nlabel = 'x'\nshown = label\n",
	"client.py":         "value = grind\n",
}

func TestAnalyzeListsModules(t *testing.T) {
	root := writeProject(t, sampleProject)
	code, out, errOut := runCLI(t, "--root", root, "-q", "analyze")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "MODULE")
	for _, name := range []string{"main", "client", "tools", "tools.grinder"} {
		assert.Contains(t, out, name)
	}
}

func TestAnalyzeModuleDetails(t *testing.T) {
	root := writeProject(t, sampleProject)
	code, out, errOut := runCLI(t, "--root", root, "-q", "analyze", "--module", "main")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Imports")
	assert.Contains(t, out, "tools.grinder")
	assert.Contains(t, out, "label: str")
}

func TestAnalyzeUnknownModule(t *testing.T) {
	root := writeProject(t, sampleProject)
	code, _, errOut := runCLI(t, "--root", root, "-q", "analyze", "--module", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error:")
}

func TestQueryKinds(t *testing.T) {
	root := writeProject(t, sampleProject)

	code, out, errOut := runCLI(t, "--root", root, "-q", "query", "main", "sizes")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "list of int\n", out)

	code, out, errOut = runCLI(t, "--root", root, "-q", "query", "-k", "types", "main", "label")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "str\n", out)

	code, out, errOut = runCLI(t, "--root", root, "-q", "query", "-k", "refs", "main", "sizes")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "main.py:2:1 definition")

	code, out, errOut = runCLI(t, "--root", root, "-q", "query", "-k", "available", "main")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "grind\n")
	assert.Contains(t, out, "sizes\n")
}

func TestQueryAtPosition(t *testing.T) {
	root := writeProject(t, sampleProject)
	// Line 4 is "shown = label"; column 10 sits inside "label".
	code, out, errOut := runCLI(t, "--root", root, "-q", "query", "--at", "4:10", "main")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "str\n", out)
}

func TestQueryRejectsBadInput(t *testing.T) {
	root := writeProject(t, sampleProject)

	code, _, errOut := runCLI(t, "--root", root, "-q", "query", "--at", "zero", "main", "x")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "LINE:COL")

	code, _, errOut = runCLI(t, "--root", root, "-q", "query", "-k", "bogus", "main", "x")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown query kind")
}

func TestFixImport(t *testing.T) {
	root := writeProject(t, sampleProject)
	client := filepath.Join(root, "client.py")

	code, out, errOut := runCLI(t, "--root", root, "-q", "fix-import", "client", "grind")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "from tools.grinder import grind\nvalue = grind\n", out)
	assert.Contains(t, errOut, "from tools.grinder import grind")

	src, err := os.ReadFile(client)
	require.NoError(t, err)
	assert.Equal(t, "value = grind\n", string(src), "dry run leaves the file alone")

	code, _, errOut = runCLI(t, "--root", root, "-q", "fix-import", "--write", "client", "grind")
	require.Equal(t, 0, code, errOut)
	src, err = os.ReadFile(client)
	require.NoError(t, err)
	assert.Equal(t, "from tools.grinder import grind\nvalue = grind\n", string(src))

	code, _, errOut = runCLI(t, "--root", root, "-q", "fix-import", "client", "nothing_binds_this")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no import binds")
}

func TestSaveThenQueryFromDatabase(t *testing.T) {
	root := writeProject(t, sampleProject)
	code, out, errOut := runCLI(t, "--root", root, "-q", "save")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "saved")

	dbDir := filepath.Join(root, ".pyintel", "db")
	assert.FileExists(t, filepath.Join(dbDir, "_baseline.idb"))
	assert.FileExists(t, filepath.Join(dbDir, "tools.grinder.idb"))

	code, out, errOut = runCLI(t, "--root", root, "-q", "query", "--from-db", "main", "sizes")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "list of int\n", out)
}

func TestConfigFileIsHonored(t *testing.T) {
	files := map[string]string{
		"src/app.py":           "x = 1\n",
		config.DefaultFileName: "[paths]\nsearch_roots = [\"src\"]\n",
	}
	root := writeProject(t, files)
	code, out, errOut := runCLI(t, "--root", root, "-q", "analyze")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "app")

	code, _, errOut = runCLI(t, "--config", filepath.Join(root, "absent.toml"), "analyze")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "load config")
}

func TestObservabilityHandler(t *testing.T) {
	root := writeProject(t, sampleProject)
	cfg := config.DefaultConfig()
	cfg.Paths.ProjectRoot = root
	a, err := coreapp.New(cfg, root, coreapp.Options{})
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.InitialScan(context.Background()))

	srv := NewObservabilityServer("127.0.0.1:0", a)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"up"`)
	assert.Contains(t, rec.Body.String(), `"modules":4`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "pyintel_project_entries_total")
}

func TestParsePosition(t *testing.T) {
	line, col, err := parsePosition("12:4")
	require.NoError(t, err)
	assert.Equal(t, 12, line)
	assert.Equal(t, 4, col)

	for _, bad := range []string{"", "3", "0:1", "1:0", "a:b"} {
		_, _, err := parsePosition(bad)
		assert.Error(t, err, bad)
	}
}

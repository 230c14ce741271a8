package graph

import (
	"os"
	"path/filepath"
	"strings"

	"pyintel/internal/shared/util"
)

// ModuleLoader locates the source file of a module that is imported but not
// yet registered.
type ModuleLoader interface {
	FindModule(name string) (path string, ok bool)
}

// DirLoader finds modules below search roots, preferring earlier roots.
type DirLoader struct {
	Roots []string
}

func (l DirLoader) FindModule(name string) (string, bool) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))
	for _, root := range l.Roots {
		for _, candidate := range []string{
			filepath.Join(root, rel+".py"),
			filepath.Join(root, rel, "__init__.py"),
		} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
	}
	return "", false
}

// PathToModuleName derives a module name from path using the project's
// search roots.
func (ps *ProjectState) PathToModuleName(path string) string {
	return ModuleNameFor(ps.roots, path)
}

// ModuleNameFor derives a module name from path relative to the longest
// matching root. The source extension is dropped and __init__ names its
// package. Paths outside every root use their base name.
func ModuleNameFor(roots []string, path string) string {
	abs := absPath(path)
	best := ""
	for _, root := range roots {
		r := absPath(root)
		if util.HasPathPrefix(abs, r) && len(r) > len(best) {
			best = r
		}
	}

	rel := filepath.Base(abs)
	if best != "" {
		if r, err := filepath.Rel(best, abs); err == nil {
			rel = r
		}
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 1 && parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(p)
}

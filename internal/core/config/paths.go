package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot string
	SearchRoots []string
	DatabaseDir string
	SymbolIndex string
}

func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot := strings.TrimSpace(cfg.Paths.ProjectRoot)
	if projectRoot != "" {
		projectRoot = ResolveRelative(cwd, projectRoot)
	} else {
		projectRoot = DetectProjectRoot([]string{cwd})
	}

	roots := make([]string, 0, len(cfg.Paths.SearchRoots))
	for _, root := range cfg.Paths.SearchRoots {
		roots = append(roots, ResolveRelative(projectRoot, root))
	}
	databaseDir := ResolveRelative(projectRoot, cfg.Paths.DatabaseDir)

	return ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		SearchRoots: roots,
		DatabaseDir: databaseDir,
		SymbolIndex: filepath.Join(databaseDir, cfg.DB.SymbolIndex),
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate looking for a project marker.
func DetectProjectRoot(candidates []string) string {
	markers := []string{
		DefaultFileName,
		"pyproject.toml",
		"setup.py",
		".git",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}
		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root)
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	if len(candidates) > 0 {
		if abs, err := filepath.Abs(candidates[0]); err == nil {
			return abs
		}
	}
	return "."
}

package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var languageVersionPattern = regexp.MustCompile(`^[23]\.[0-9]+$`)

func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", c.Version)
	}
	if err := validateAnalysis(c.Analysis); err != nil {
		return err
	}
	if err := validateWatch(c.Watch); err != nil {
		return err
	}
	for i, root := range c.Paths.SearchRoots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("paths.search_roots[%d] must not be empty", i)
		}
	}
	if strings.ContainsAny(c.DB.SymbolIndex, `/\`) {
		return fmt.Errorf("db.symbol_index must be a file name, got %q", c.DB.SymbolIndex)
	}
	return nil
}

func validateAnalysis(a Analysis) error {
	if !languageVersionPattern.MatchString(a.LanguageVersion) {
		return fmt.Errorf("analysis.language_version must look like 3.12, got %q", a.LanguageVersion)
	}
	if a.MaxUnionSize < 2 {
		return fmt.Errorf("analysis.max_union_size must be >= 2, got %d", a.MaxUnionSize)
	}
	if a.RevisitLimit > 10000 {
		return fmt.Errorf("analysis.revisit_limit is unreasonably large: %d", a.RevisitLimit)
	}
	return nil
}

func validateWatch(w Watch) error {
	if w.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	for _, pattern := range append(append([]string(nil), w.ExcludeDirs...), w.ExcludeFiles...) {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid watch exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

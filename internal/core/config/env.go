package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: PYINTEL_[SECTION]_[KEY] (e.g., PYINTEL_ANALYSIS_REVISIT_LIMIT).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Paths.ProjectRoot, "PYINTEL_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.DatabaseDir, "PYINTEL_PATHS_DATABASE_DIR")
	setEnvList(&cfg.Paths.SearchRoots, "PYINTEL_PATHS_SEARCH_ROOTS")

	setEnvString(&cfg.Analysis.LanguageVersion, "PYINTEL_ANALYSIS_LANGUAGE_VERSION")
	setEnvInt(&cfg.Analysis.MaxIterations, "PYINTEL_ANALYSIS_MAX_ITERATIONS")
	setEnvInt(&cfg.Analysis.RevisitLimit, "PYINTEL_ANALYSIS_REVISIT_LIMIT")
	setEnvInt(&cfg.Analysis.MaxCallDepth, "PYINTEL_ANALYSIS_MAX_CALL_DEPTH")
	setEnvInt(&cfg.Analysis.MaxUnionSize, "PYINTEL_ANALYSIS_MAX_UNION_SIZE")

	setEnvString(&cfg.DB.SymbolIndex, "PYINTEL_DB_SYMBOL_INDEX")
	setEnvDuration(&cfg.DB.BusyTimeout, "PYINTEL_DB_BUSY_TIMEOUT")

	setEnvDuration(&cfg.Watch.Debounce, "PYINTEL_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.DrainsPerSecond, "PYINTEL_WATCH_DRAINS_PER_SECOND")

	setEnvString(&cfg.Observability.MetricsAddress, "PYINTEL_OBSERVABILITY_METRICS_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "PYINTEL_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		parts := strings.Split(val, string(os.PathListSeparator))
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = out
		}
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}

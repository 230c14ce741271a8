// Package cli implements the pyintel command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	coreapp "pyintel/internal/core/app"
	"pyintel/internal/core/config"
	"pyintel/internal/shared/observability"

	"github.com/spf13/cobra"
)

const versionString = "0.4.0"

type rootOptions struct {
	configPath string
	root       string
	verbose    bool
	quiet      bool
}

// runtime carries what every subcommand needs once flags are parsed.
type runtime struct {
	opts    *rootOptions
	cfg     *config.Config
	cwd     string
	out     io.Writer
	errOut  io.Writer
	cleanup []func(context.Context) error
}

// Run executes the command line and returns the process exit code.
func Run(args []string) int {
	return run(context.Background(), args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rt := &runtime{opts: &rootOptions{}, out: stdout, errOut: stderr}
	cmd := newRootCommand(rt)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	for _, fn := range rt.cleanup {
		if cerr := fn(context.Background()); cerr != nil {
			slog.Warn("shutdown failed", "error", cerr)
		}
	}
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("error:"), err.Error())
		return 1
	}
	return 0
}

func newRootCommand(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "pyintel",
		Short: "Incremental type inference for Python projects",
		Long: `pyintel analyzes a Python project, infers the values every name may hold
and answers editor-style queries about them.

Getting started:
  pyintel analyze                    Analyze the project under the current directory
  pyintel query app.models User      Describe what an expression evaluates to
  pyintel fix-import app.main Path   Add the import that binds an unresolved name
  pyintel save                       Persist the type database
  pyintel watch                      Re-analyze as files change`,
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.opts.configPath, "config", "", "Path to config file (default ./"+config.DefaultFileName+" when present)")
	flags.StringVar(&rt.opts.root, "root", "", "Project root (default: detected from the working directory)")
	flags.BoolVarP(&rt.opts.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVarP(&rt.opts.quiet, "quiet", "q", false, "Only log warnings and errors")

	root.AddCommand(
		newAnalyzeCommand(rt),
		newQueryCommand(rt),
		newFixImportCommand(rt),
		newSaveCommand(rt),
		newWatchCommand(rt),
	)
	return root
}

func (rt *runtime) setup(ctx context.Context) error {
	configureLogging(rt.errOut, rt.opts.verbose, rt.opts.quiet)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("detect working directory: %w", err)
	}
	if rt.opts.root != "" {
		cwd = config.ResolveRelative(cwd, rt.opts.root)
	}
	rt.cwd = cwd

	cfg, path, err := loadConfig(rt.opts.configPath, cwd)
	if err != nil {
		return err
	}
	if rt.opts.root != "" && cfg.Paths.ProjectRoot == "" {
		cfg.Paths.ProjectRoot = cwd
	}
	rt.cfg = cfg
	if path != "" {
		slog.Debug("config loaded", "path", path)
	}

	if endpoint := cfg.Observability.OTLPEndpoint; endpoint != "" {
		shutdown, err := observability.InstallTracer(ctx, endpoint, cfg.Observability.ServiceName)
		if err != nil {
			return err
		}
		rt.cleanup = append(rt.cleanup, shutdown)
	}
	return nil
}

// newApp builds the application for one command and starts the metrics
// server when one is configured.
func (rt *runtime) newApp(ctx context.Context, opts coreapp.Options) (*coreapp.App, error) {
	a, err := coreapp.New(rt.cfg, rt.cwd, opts)
	if err != nil {
		return nil, err
	}
	if addr := rt.cfg.Observability.MetricsAddress; addr != "" {
		srv := NewObservabilityServer(addr, a)
		if err := srv.Start(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
		rt.cleanup = append(rt.cleanup, srv.Stop)
	}
	return a, nil
}

// loadConfig reads path when given. Otherwise the default file in cwd is
// used when present, and built-in defaults when not.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("load config %s: %w", path, err)
		}
		return cfg, path, nil
	}
	candidate := filepath.Join(cwd, config.DefaultFileName)
	cfg, err := config.Load(candidate)
	switch {
	case err == nil:
		return cfg, candidate, nil
	case os.IsNotExist(err):
		cfg = config.DefaultConfig()
		config.ApplyEnvOverrides(cfg)
		return cfg, "", cfg.Validate()
	default:
		return nil, "", fmt.Errorf("load config %s: %w", candidate, err)
	}
}

func configureLogging(w io.Writer, verbose, quiet bool) {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

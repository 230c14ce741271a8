package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	coreapp "pyintel/internal/core/app"
	"pyintel/internal/core/errors"
	"pyintel/internal/engine/query"
	"pyintel/internal/shared/util"

	"github.com/spf13/cobra"
)

// loadProject builds the app and runs the initial scan.
func (rt *runtime) loadProject(ctx context.Context, fromDB bool) (*coreapp.App, error) {
	a, err := rt.newApp(ctx, coreapp.Options{FromDatabase: fromDB})
	if err != nil {
		return nil, err
	}
	if err := a.InitialScan(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func newAnalyzeCommand(rt *runtime) *cobra.Command {
	var (
		filter string
		limit  int
		module string
		fromDB bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the project and list its modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := rt.loadProject(ctx, fromDB)
			if err != nil {
				return err
			}
			defer a.Close()

			if module != "" {
				d, err := a.Service.ModuleDetails(ctx, module)
				if err != nil {
					return err
				}
				renderDetails(rt.out, d)
				return nil
			}
			rows, err := a.Service.ListModules(ctx, filter, limit)
			if err != nil {
				return err
			}
			renderModules(rt.out, rows)
			if cycles := a.Project.Cycles(); len(cycles) > 0 {
				fmt.Fprintln(rt.out, warnStyle.Render(fmt.Sprintf("%d import cycle(s)", len(cycles))))
				for _, c := range cycles {
					fmt.Fprintln(rt.out, "  "+strings.Join(c, " -> "))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Only list modules whose name contains this substring")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of modules to list")
	cmd.Flags().StringVar(&module, "module", "", "Print details for one module")
	cmd.Flags().BoolVar(&fromDB, "from-db", false, "Serve saved modules from the type database")
	return cmd
}

var queryKinds = []string{"values", "short", "types", "members", "signatures", "refs", "hover", "available", "imports"}

func newQueryCommand(rt *runtime) *cobra.Command {
	var (
		kind   string
		at     string
		fromDB bool
	)
	cmd := &cobra.Command{
		Use:   "query MODULE [EXPRESSION]",
		Short: "Evaluate an expression inside a module",
		Long: `Evaluate an expression as if it appeared at a position in MODULE.

The position defaults to the end of the module and can be set with
--at LINE:COL (1-based). When EXPRESSION is omitted the expression around
the position is used.

Kinds: ` + strings.Join(queryKinds, ", "),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rt.loadProject(ctx, fromDB)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.Service.Snapshot(ctx, args[0])
			if err != nil {
				return err
			}
			tree := snap.Analysis().Tree
			index := tree.Span.End
			if at != "" {
				line, col, err := parsePosition(at)
				if err != nil {
					return err
				}
				index = tree.Lines.Offset(line, col)
			}

			expr := ""
			if len(args) == 2 {
				expr = args[1]
			} else if kind != "available" {
				src, err := os.ReadFile(snap.Analysis().Path)
				if err != nil {
					return err
				}
				found, ok := query.AnalyzeExpression(string(src), index)
				if !ok {
					return errors.New(errors.CodeValidationError, "no expression at the given position")
				}
				expr = found.Text
			}
			return runQuery(ctx, rt, a, snap, kind, expr, index)
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "values", "What to report: "+strings.Join(queryKinds, ", "))
	cmd.Flags().StringVar(&at, "at", "", "Position as LINE:COL")
	cmd.Flags().BoolVar(&fromDB, "from-db", false, "Serve saved modules from the type database")
	return cmd
}

func runQuery(ctx context.Context, rt *runtime, a *coreapp.App, snap *query.Snapshot, kind, expr string, index int) error {
	switch kind {
	case "values":
		lines, err := snap.GetDescriptionsByIndex(expr, index)
		if err != nil {
			return err
		}
		renderLines(rt.out, lines)
	case "short":
		lines, err := snap.GetShortDescriptionsByIndex(expr, index)
		if err != nil {
			return err
		}
		renderLines(rt.out, lines)
	case "types":
		ids, err := snap.GetTypeIDsByIndex(expr, index)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(rt.out, id.String())
		}
	case "members":
		names, err := snap.GetMembersByIndex(expr, index)
		if err != nil {
			return err
		}
		renderLines(rt.out, names)
	case "signatures":
		sigs, err := snap.GetSignaturesByIndex(expr, index)
		if err != nil {
			return err
		}
		for _, sig := range sigs {
			fmt.Fprintln(rt.out, sig.String())
		}
	case "refs":
		locs, err := snap.GetVariablesByIndex(expr, index)
		if err != nil {
			return err
		}
		renderLocations(rt.out, locs)
	case "hover":
		info, err := snap.GetQuickInfoByIndex(expr, index)
		if err != nil {
			return err
		}
		fmt.Fprintln(rt.out, info)
	case "available":
		renderLines(rt.out, snap.GetAllAvailableMembersByIndex(index))
	case "imports":
		if err := a.OpenSymbolIndex(ctx); err != nil {
			return err
		}
		suggestions, err := query.ImportSuggestions(ctx, snap, a.Catalog(), expr, index)
		if err != nil {
			return err
		}
		for _, s := range suggestions {
			fmt.Fprintln(rt.out, s.Statement())
		}
	default:
		return errors.Newf(errors.CodeValidationError, "unknown query kind %q", kind)
	}
	return nil
}

func parsePosition(s string) (int, int, error) {
	lineText, colText, ok := strings.Cut(s, ":")
	line, lerr := strconv.Atoi(lineText)
	col, cerr := strconv.Atoi(colText)
	if !ok || lerr != nil || cerr != nil || line < 1 || col < 1 {
		return 0, 0, errors.Newf(errors.CodeValidationError, "position %q must be LINE:COL", s)
	}
	return line, col, nil
}

func newFixImportCommand(rt *runtime) *cobra.Command {
	var (
		pick  int
		write bool
	)
	cmd := &cobra.Command{
		Use:   "fix-import MODULE NAME",
		Short: "Add an import binding NAME to MODULE",
		Long: `Suggest the imports that would bind NAME in MODULE and apply one.

Without --write the edited source is printed instead of saved.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rt.loadProject(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.OpenSymbolIndex(ctx); err != nil {
				return err
			}

			snap, err := a.Service.Snapshot(ctx, args[0])
			if err != nil {
				return err
			}
			ma := snap.Analysis()
			suggestions, err := query.ImportSuggestions(ctx, snap, a.Catalog(), args[1], ma.Tree.Span.End)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				return errors.AddContext(errors.Newf(errors.CodeNotFound, "no import binds %q", args[1]), errors.CtxModule, args[0])
			}
			if pick < 1 || pick > len(suggestions) {
				return errors.Newf(errors.CodeValidationError, "--pick must be between 1 and %d", len(suggestions))
			}
			for i, s := range suggestions {
				marker := "  "
				if i == pick-1 {
					marker = successStyle.Render("* ")
				}
				fmt.Fprintln(rt.errOut, marker+s.Statement())
			}

			src, err := os.ReadFile(ma.Path)
			if err != nil {
				return err
			}
			edit, ok := query.AddImport(src, ma.Tree, suggestions[pick-1])
			if !ok {
				fmt.Fprintln(rt.errOut, statusStyle.Render("already imported"))
				return nil
			}
			out := edit.Apply(src)
			if !write {
				fmt.Fprint(rt.out, string(out))
				return nil
			}
			return util.WriteFileAtomic(ma.Path, out, 0o644)
		},
	}
	cmd.Flags().IntVar(&pick, "pick", 1, "Which suggestion to apply (1-based)")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the module's file")
	return cmd
}

func newSaveCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Analyze the project and write the type database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := rt.loadProject(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Save(ctx); err != nil {
				return err
			}
			fmt.Fprintln(rt.out, successStyle.Render("saved"), a.Paths.DatabaseDir)
			return nil
		},
	}
}

func newWatchCommand(rt *runtime) *cobra.Command {
	var saveOnExit bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-analyze modules as their files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := rt.loadProject(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			a.SetUpdateHandler(func(u coreapp.Update) {
				fmt.Fprintf(rt.out, "%s %d changed, %d removed, %d reanalyzed %s\n",
					titleStyle.Render("update"), len(u.Changed), len(u.Removed), u.Analyzed,
					statusStyle.Render(u.Elapsed.String()))
			})
			if err := a.StartWatcher(ctx); err != nil {
				return err
			}
			fmt.Fprintln(rt.out, statusStyle.Render("watching "+strings.Join(a.Paths.SearchRoots, ", ")))
			<-ctx.Done()

			if saveOnExit {
				return a.Save(context.Background())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&saveOnExit, "save", false, "Write the type database on exit")
	return cmd
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"pyintel/internal/engine/query"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	cellStyle = lipgloss.NewStyle().PaddingRight(2)
)

// renderTable lays rows out in left-aligned columns.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	line := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = style.Inherit(cellStyle).Width(widths[i] + 2).Render(cell)
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " "))
		b.WriteByte('\n')
	}
	line(header, headerStyle)
	for _, row := range rows {
		line(row, lipgloss.NewStyle())
	}
	return b.String()
}

func renderModules(w io.Writer, rows []query.ModuleSummary) {
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{
			r.Name,
			r.State,
			fmt.Sprint(r.ExportCount),
			fmt.Sprint(r.Dependencies),
			fmt.Sprint(r.Dependents),
			fmt.Sprint(r.DiagnosticCount),
			fmt.Sprintf("%.1f", r.Importance),
		})
	}
	fmt.Fprint(w, renderTable([]string{"MODULE", "STATE", "NAMES", "IMPORTS", "IMPORTERS", "ERRORS", "SCORE"}, table))
}

func renderDetails(w io.Writer, d query.ModuleDetails) {
	fmt.Fprintln(w, titleStyle.Render(d.Name), statusStyle.Render(d.Path))
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintln(w, headerStyle.Render(title))
		for _, it := range items {
			fmt.Fprintln(w, "  "+it)
		}
	}
	section("Imports", d.Dependencies)
	section("Imported by", d.Dependents)
	unresolved := make([]string, len(d.Unresolved))
	for i, u := range d.Unresolved {
		unresolved[i] = warnStyle.Render(u)
	}
	section("Unresolved", unresolved)
	diags := make([]string, len(d.Diagnostics))
	for i, diag := range d.Diagnostics {
		diags[i] = errorStyle.Render(diag)
	}
	section("Diagnostics", diags)

	names := make([]string, 0, len(d.Exports))
	for _, e := range d.Exports {
		types := strings.Join(e.Types, " | ")
		if types == "" {
			types = "unknown"
		}
		names = append(names, e.Name+": "+types)
	}
	section("Names", names)
}

func renderLocations(w io.Writer, locs []query.Location) {
	for _, l := range locs {
		fmt.Fprintf(w, "%s:%d:%d %s\n", l.Path, l.Line, l.Column, statusStyle.Render(l.Kind.String()))
	}
}

func renderLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

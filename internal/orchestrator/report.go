package orchestrator

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Styles for result cells in the summary table.
var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	neutralStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

// PrintSummary renders the final tabular summary mapping every selected
// package to its terminal outcome.
func PrintSummary(results []PackageResult) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PACKAGE", "VERSION", "RESULT", "DETAIL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col != 2 {
				return neutralStyle
			}
			kind := results[row].Kind
			switch {
			case kind.Failing():
				return failStyle
			case kind == ResultSuccess || kind == ResultDryRunOK:
				return okStyle
			default:
				return neutralStyle
			}
		})

	for _, r := range results {
		version := r.Version
		if version == "" {
			version = "-"
		}
		t.Row(r.Package, version, string(r.Kind), truncate(r.Detail, 60))
	}

	fmt.Println()
	fmt.Println(t)
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

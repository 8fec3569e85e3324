// Package report renders the outcome of a generate run for people: the
// run summary, the rule usage table and an HTML chart of rule hits.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

// UsageTable writes one row per rule or code entry with its hit count,
// followed by the entries that never fired.
func UsageTable(w io.Writer, usage []rules.Usage) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Format.Footer = text.FormatDefault

	tbl.AppendHeader(table.Row{"Module", "Stage", "Rule", "Patterns", "Hits"})

	total := 0

	for _, u := range usage {
		tbl.AppendRow(table.Row{u.Module, u.Stage.String(), u.Rule, patterns(u.Patterns), u.Hits})
		total += u.Hits
	}

	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("%d rules", len(usage)), "", total})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
		return fmt.Errorf("write usage table: %w", err)
	}

	unused := rules.Unused(usage)
	if len(unused) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "\n%d unused:\n", len(unused)); err != nil {
		return fmt.Errorf("write usage table: %w", err)
	}

	for _, u := range unused {
		if _, err := fmt.Fprintf(w, "  %s %s %s %s\n", u.Module, u.Stage, u.Rule, patterns(u.Patterns)); err != nil {
			return fmt.Errorf("write usage table: %w", err)
		}
	}

	return nil
}

func patterns(p []string) string {
	if len(p) == 0 {
		return ""
	}

	quoted := make([]string, len(p))
	for i, s := range p {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	return "[" + strings.Join(quoted, ", ") + "]"
}

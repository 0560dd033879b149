package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/clauselens/clauselens/internal/ailink"
)

// Column widths for wrapped clause text.
const (
	labelWidth       = 40
	explanationWidth = 60
	riskWidth        = 30
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatReport renders the clauses of a report as a table.
func (f *TableFormatter) FormatReport(report *Report) (string, error) {
	if report == nil || report.Document == nil {
		return "", nil
	}
	doc := report.Document

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s (%s)", doc.Filename, doc.DocType))
	t.AppendHeader(table.Row{"ID", "Clause", "Explanation", "Risk", "Model"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: labelWidth},
		{Number: 3, WidthMax: explanationWidth},
		{Number: 4, WidthMax: riskWidth},
	})

	for _, r := range report.rows() {
		t.AppendRow(table.Row{r.ID, r.Label, r.Explanation, r.Risk, r.Model})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d clauses", len(doc.Clauses)), "", "", ""})

	rendered := t.Render()
	if doc.Summary != "" {
		rendered += "\n\nSummary: " + doc.Summary
	}
	return rendered, nil
}

// FormatPools renders per-key usage for each pool.
func (f *TableFormatter) FormatPools(pools []ailink.PoolStatus) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Pool", "Key", "Hint", "Calls", "Quota", "Window", "Current"})

	for _, p := range pools {
		for _, k := range p.Keys {
			current := ""
			if k.Current {
				current = "●"
			}
			t.AppendRow(table.Row{
				p.Name,
				fmt.Sprintf("%d/%d", k.Index, p.Size),
				k.Hint,
				k.Calls,
				p.Quota,
				fmt.Sprintf("%ds", p.WindowSeconds),
				current,
			})
		}
		t.AppendSeparator()
	}

	total, capacity := 0, 0
	for _, p := range pools {
		used, c := poolUsage(p)
		total += used
		capacity += c
	}
	t.AppendFooter(table.Row{"", "", "", total, capacity, "", ""})
	return t.Render(), nil
}

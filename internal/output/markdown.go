package output

import (
	"fmt"
	"strings"

	"github.com/clauselens/clauselens/internal/ailink"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatReport renders a report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *Report) (string, error) {
	if report == nil || report.Document == nil {
		return "", nil
	}
	doc := report.Document

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(doc.Filename)))
	sb.WriteString(fmt.Sprintf("**Type**: %s\n\n", escapeMarkdownCell(doc.DocType)))
	if doc.Summary != "" {
		sb.WriteString(fmt.Sprintf("**Summary**: %s\n\n", escapeMarkdownCell(doc.Summary)))
	}
	sb.WriteString("| ID | Clause | Explanation | Risk |\n")
	sb.WriteString("|----|--------|-------------|------|\n")

	for _, r := range report.rows() {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(r.ID),
			escapeMarkdownCell(r.Label),
			escapeMarkdownCell(r.Explanation),
			escapeMarkdownCell(r.Risk),
		))
	}
	return sb.String(), nil
}

// FormatPools renders pool usage as Markdown.
func (f *MarkdownFormatter) FormatPools(pools []ailink.PoolStatus) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Pool | Keys | Quota | Window | Calls |\n")
	sb.WriteString("|------|------|-------|--------|-------|\n")
	for _, p := range pools {
		used, capacity := poolUsage(p)
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %ds | %d/%d |\n",
			escapeMarkdownCell(p.Name), p.Size, p.Quota, p.WindowSeconds, used, capacity))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\r\n", " ")
	return strings.ReplaceAll(value, "\n", " ")
}

package output

import (
	"fmt"
	"strings"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Report is a segmented document plus whatever clause annotations were
// gathered for it.
type Report struct {
	Document    *core.Document          `json:"document"`
	Annotations []core.ClauseAnnotation `json:"annotations,omitempty"`
	// Lang selects the annotation language for table and markdown output.
	Lang string `json:"-"`
}

// Formatter renders reports and key pool status.
type Formatter interface {
	FormatReport(report *Report) (string, error)
	FormatPools(pools []ailink.PoolStatus) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// ParseLang validates an annotation language code.
func ParseLang(value string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return core.LangEnglish, nil
	}
	for _, lang := range core.Languages {
		if normalized == lang {
			return lang, nil
		}
	}
	return "", fmt.Errorf("unsupported language: %s (want one of %s)", value, strings.Join(core.Languages, ", "))
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// row is one rendered clause line shared by the table and markdown formats.
type row struct {
	ID          string
	Label       string
	Explanation string
	Risk        string
	Model       string
}

// rows merges annotations into the document clauses. Clauses without an
// annotation show their pending placeholders.
func (r *Report) rows() []row {
	if r == nil || r.Document == nil {
		return nil
	}
	lang := r.Lang
	if lang == "" {
		lang = core.LangEnglish
	}
	byID := make(map[string]core.ClauseAnnotation, len(r.Annotations))
	for _, a := range r.Annotations {
		byID[a.ID] = a
	}

	out := make([]row, 0, len(r.Document.Clauses))
	for _, c := range r.Document.Clauses {
		line := row{ID: c.ID, Label: c.Label}
		if a, ok := byID[c.ID]; ok {
			line.Explanation = a.Explanation.Get(lang)
			line.Risk = a.Risk.Get(lang)
			line.Model = a.ModelUsed
		} else {
			line.Explanation = fieldText(c.Explanation, lang)
			line.Risk = fieldText(c.Risk, lang)
		}
		out = append(out, line)
	}
	return out
}

func fieldText(f core.AnnotationField, lang string) string {
	if f.IsPending() {
		return f.Pending
	}
	return f.Text.Get(lang)
}

func poolUsage(p ailink.PoolStatus) (used, capacity int) {
	for _, k := range p.Keys {
		used += k.Calls
	}
	return used, p.Quota * p.Size
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/core"
	"github.com/clauselens/clauselens/internal/core/engine"
	"github.com/clauselens/clauselens/internal/observability"
	"github.com/clauselens/clauselens/internal/output"
)

var (
	analyzeLimit   int
	analyzeClauses []string
	analyzeLang    string
	analyzeDocType string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Summarize a document and explain and risk-rate its clauses",
	Long: `Segment the file (or stdin), summarize it, then ask Gemini for an explanation
and a risk rating of every clause. Keys come from the pools configured under
ailink.pools (GEMINI_KEYS and GEMINI_KEYS_CHAT by default).

Each clause costs two calls on the analysis pool. Use --limit or --clause to
stay within quota.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, err := outputTargetFrom(cmd)
		if err != nil {
			return err
		}
		lang, err := output.ParseLang(analyzeLang)
		if err != nil {
			return err
		}

		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		in, err := readInput(path, cmd.InOrStdin())
		if err != nil {
			return err
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, observability.CLILogger)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.analyzer.Ingest(ctx, engine.IngestInput{Filename: in.Name, DocType: analyzeDocType, Text: in.Text})
		if err != nil {
			return err
		}
		observability.CLILogger.Info(fmt.Sprintf("Segmented %s into %d clauses", in.Name, len(doc.Clauses)),
			zap.String("document_id", doc.ID))

		selected := selectClauses(doc.Clauses, analyzeClauses, analyzeLimit)
		annotations := make([]core.ClauseAnnotation, 0, len(selected))
		for i, clause := range selected {
			observability.CLILogger.Debug(fmt.Sprintf("Analyzing %s (%d/%d)", clause.ID, i+1, len(selected)))
			annotations = append(annotations, a.analyzer.AnalyzeClause(ctx, engine.AnalyzeInput{
				DocumentID: doc.ID,
				ClauseID:   clause.ID,
				Text:       clause.Original,
			}))
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		rendered, err := output.NewFormatter(target.Format).FormatReport(&output.Report{
			Document:    doc,
			Annotations: annotations,
			Lang:        lang,
		})
		if err != nil {
			return err
		}
		return target.write(cmd, rendered)
	},
}

// selectClauses picks clauses by id, or the first limit clauses. A
// non-positive limit keeps all of them.
func selectClauses(clauses []core.ClauseRecord, ids []string, limit int) []core.ClauseRecord {
	if len(ids) > 0 {
		want := make(map[string]bool, len(ids))
		for _, id := range ids {
			want[strings.TrimSpace(id)] = true
		}
		var out []core.ClauseRecord
		for _, c := range clauses {
			if want[c.ID] {
				out = append(out, c)
			}
		}
		return out
	}
	if limit > 0 && limit < len(clauses) {
		return clauses[:limit]
	}
	return clauses
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	addOutputFlags(analyzeCmd, false)
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "analyze at most this many clauses (0 = all)")
	analyzeCmd.Flags().StringSliceVar(&analyzeClauses, "clause", nil, "analyze only these clause ids (e.g. clause_3,clause_4a)")
	analyzeCmd.Flags().StringVar(&analyzeLang, "lang", "en", "annotation language for table/markdown output: en, hi or mr")
	analyzeCmd.Flags().StringVar(&analyzeDocType, "doc-type", "", "document type label")
}

package cmd

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/core"
	"github.com/clauselens/clauselens/internal/core/segment"
	"github.com/clauselens/clauselens/internal/observability"
	"github.com/clauselens/clauselens/internal/output"
)

var segmentDocType string

var segmentCmd = &cobra.Command{
	Use:   "segment [file...]",
	Short: "Split documents into clauses without calling Gemini",
	Long: `Clean and segment each file (or stdin) into numbered clauses, definition
sub-clauses or paragraph windows. No API key is needed.`,
	Example: `  clauselens segment lease.txt
  cat terms.txt | clauselens segment --output-format json
  clauselens segment *.txt --out-dir ./clauses --output-format markdown`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := outputTargetFrom(cmd)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		if len(args) == 0 {
			args = []string{"-"}
		}
		seg := segment.New(cfg.Segment)
		formatter := output.NewFormatter(target.Format)

		var rendered []string
		for _, path := range args {
			in, err := readInput(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			doc, fallback := segmentDocument(seg, in, segmentDocType)
			if fallback {
				observability.CLILogger.Warn("No numbered clauses found, using paragraph fallback",
					zap.String("input", in.Name), zap.Int("paragraphs", len(doc.Clauses)))
			}

			text, err := formatter.FormatReport(&output.Report{Document: doc})
			if err != nil {
				return err
			}
			if target.Dir != "" {
				if err := target.writeFor(in.Name, text); err != nil {
					return err
				}
				continue
			}
			rendered = append(rendered, text)
		}

		if target.Dir != "" {
			return nil
		}
		return target.write(cmd, strings.Join(rendered, "\n\n"))
	},
}

// segmentDocument builds an unsaved document from cleaned input text.
func segmentDocument(seg *segment.Segmenter, in inputDocument, docType string) (*core.Document, bool) {
	result := seg.Segment(segment.Prepare(in.Text))
	now := time.Now().UTC()
	if strings.TrimSpace(docType) == "" {
		docType = "Text File"
	}
	return &core.Document{
		ID:        uuid.NewString(),
		Filename:  in.Name,
		DocType:   docType,
		Clauses:   result.Clauses,
		CreatedAt: now,
		UpdatedAt: now,
	}, result.Fallback
}

func init() {
	rootCmd.AddCommand(segmentCmd)
	addOutputFlags(segmentCmd, true)
	segmentCmd.Flags().StringVar(&segmentDocType, "doc-type", "", "document type label (default \"Text File\")")
}

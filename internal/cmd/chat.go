package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens/internal/core/engine"
	"github.com/clauselens/clauselens/internal/observability"
)

var (
	chatMessage  string
	chatScope    string
	chatClauseID string
)

var chatCmd = &cobra.Command{
	Use:   "chat [file]",
	Short: "Ask a question about a document",
	Long: `Ask a question with the document as context. Scopes:
  clause    one clause (--clause, default the first)
  document  every clause plus the summary
  global    the summary only; works without a file`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		scope := strings.ToLower(strings.TrimSpace(chatScope))
		if scope != "clause" && scope != "document" && scope != "global" {
			return fmt.Errorf("unsupported scope %q: want clause, document or global", chatScope)
		}
		if len(args) == 0 && scope != "global" {
			return fmt.Errorf("scope %s needs a document file", scope)
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		// Chat sessions from the CLI are one-shot.
		cfg.Store.Memory = true
		a, err := newApp(ctx, cfg, observability.CLILogger)
		if err != nil {
			return err
		}
		defer a.Close()

		input := engine.ChatInput{Message: chatMessage}
		if len(args) > 0 {
			in, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			doc, err := a.analyzer.Ingest(ctx, engine.IngestInput{Filename: in.Name, Text: in.Text})
			if err != nil {
				return err
			}
			input.DocumentID = doc.ID
			if chatClauseID != "" {
				for _, c := range doc.Clauses {
					if c.ID == chatClauseID {
						input.Clause = c.Original
					}
				}
				if input.Clause == "" {
					return fmt.Errorf("clause %s not found in %s", chatClauseID, in.Name)
				}
			}
		}

		answer := map[string]func(context.Context, engine.ChatInput) string{
			"clause":   a.analyzer.ChatClause,
			"document": a.analyzer.ChatDocument,
			"global":   a.analyzer.ChatGlobal,
		}[scope]
		_, err = fmt.Fprintln(cmd.OutOrStdout(), answer(ctx, input))
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "question to ask")
	chatCmd.Flags().StringVar(&chatScope, "scope", "document", "context scope: clause, document or global")
	chatCmd.Flags().StringVar(&chatClauseID, "clause", "", "clause id for --scope clause")
	_ = chatCmd.MarkFlagRequired("message")
}

package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/core"
	"github.com/clauselens/clauselens/internal/metrics"
)

// ChatInput is one user question about a document.
type ChatInput struct {
	DocumentID string
	Message    string
	// Clause is the active clause text for clause chat. When empty the first
	// clause of the document is used.
	Clause string
}

// ChatClause answers a question about a single clause.
func (a *Analyzer) ChatClause(ctx context.Context, in ChatInput) string {
	if strings.TrimSpace(in.Message) == "" {
		return NoQuestionReply
	}
	doc := a.session(ctx, in.DocumentID)

	clause := strings.TrimSpace(in.Clause)
	if clause == "" {
		clause = doc.FirstClause()
	}
	return a.reply(ctx, "clause", PromptChatClause, chatReplyLimit, map[string]string{
		"message": in.Message,
		"clause":  firstNonBlank(clause, noneProvided),
		"summary": firstNonBlank(summaryOf(doc), noSummaryAvailable),
	})
}

// ChatDocument answers a question using every clause of the document.
func (a *Analyzer) ChatDocument(ctx context.Context, in ChatInput) string {
	if strings.TrimSpace(in.Message) == "" {
		return NoQuestionReply
	}
	doc := a.session(ctx, in.DocumentID)

	var joined string
	if doc != nil && len(doc.Clauses) > 0 {
		originals := make([]string, 0, len(doc.Clauses))
		for _, c := range doc.Clauses {
			originals = append(originals, c.Original)
		}
		joined = truncate(strings.Join(originals, "\n"), chatDocumentLimit)
	}
	return a.reply(ctx, "document", PromptChatDoc, chatReplyLimit, map[string]string{
		"message": in.Message,
		"summary": firstNonBlank(summaryOf(doc), noneText),
		"clauses": firstNonBlank(joined, noneText),
	})
}

// ChatGlobal answers a general question with the summary, or the opening
// clauses when there is no summary, as context.
func (a *Analyzer) ChatGlobal(ctx context.Context, in ChatInput) string {
	if strings.TrimSpace(in.Message) == "" {
		return NoQuestionReply
	}
	doc := a.session(ctx, in.DocumentID)

	background := summaryOf(doc)
	if background == "" && doc != nil && len(doc.Clauses) > 0 {
		n := min(chatGlobalClauses, len(doc.Clauses))
		originals := make([]string, 0, n)
		for _, c := range doc.Clauses[:n] {
			originals = append(originals, c.Original)
		}
		background = truncate(strings.Join(originals, " "), chatGlobalLimit)
	}
	return a.reply(ctx, "global", PromptChatGlobal, 0, map[string]string{
		"message": in.Message,
		"context": firstNonBlank(background, noSummaryAvailable),
	})
}

// reply dispatches a chat prompt. A positive limit caps the reply length in
// characters.
func (a *Analyzer) reply(ctx context.Context, scope, slug string, limit int, vars map[string]string) string {
	req, err := a.request(slug, vars)
	if err != nil {
		a.logger().Warn("chat prompt unavailable", zap.String("prompt", slug), zap.Error(err))
		metrics.RecordChatReply(scope, false)
		return NoReply
	}
	result := a.Chat.DispatchRequest(ctx, req)
	text := strings.TrimSpace(result.Payload.Raw)
	if !result.Served() || text == "" {
		metrics.RecordChatReply(scope, false)
		return NoReply
	}
	metrics.RecordChatReply(scope, true)
	if limit > 0 {
		text = strings.TrimSpace(truncate(text, limit))
	}
	return text
}

// session loads a document for chat context. Chat works without one.
func (a *Analyzer) session(ctx context.Context, id string) *core.Document {
	if id == "" || a.Sessions == nil {
		return nil
	}
	doc, err := a.Sessions.GetDocument(ctx, id)
	if err != nil {
		a.logger().Warn("session lookup failed", zap.String("document_id", id), zap.Error(err))
		return nil
	}
	return doc
}

// summaryOf ignores the unavailable-summary marker so callers fall back to
// other context.
func summaryOf(doc *core.Document) string {
	if doc == nil || doc.Summary == SummaryUnavailable {
		return ""
	}
	return strings.TrimSpace(doc.Summary)
}

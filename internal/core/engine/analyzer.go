package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/ailink/driver"
	"github.com/clauselens/clauselens/internal/ailink/prompt"
	"github.com/clauselens/clauselens/internal/core"
	"github.com/clauselens/clauselens/internal/core/segment"
	"github.com/clauselens/clauselens/internal/metrics"
)

// Prompt slugs used by the analyzer.
const (
	PromptExplanation = "clause-explanation"
	PromptRisk        = "clause-risk"
	PromptSummary     = "document-summary"
	PromptChatClause  = "chat-clause"
	PromptChatDoc     = "chat-document"
	PromptChatGlobal  = "chat-global"
)

// RequiredPrompts lists every prompt the analyzer renders.
var RequiredPrompts = []string{
	PromptExplanation, PromptRisk, PromptSummary,
	PromptChatClause, PromptChatDoc, PromptChatGlobal,
}

// Context limits, in characters.
const (
	summaryInputLimit  = 4000
	chatReplyLimit     = 500
	chatDocumentLimit  = 3000
	chatGlobalLimit    = 1500
	chatGlobalClauses  = 5
	defaultFilename    = "pasted_text"
	defaultDocType     = "Pasted Text"
	responseExpl       = "explanation"
	responseRisk       = "risk"
	noneProvided       = "⚠️ None provided"
	noSummaryAvailable = "⚠️ No summary available"
	noneText           = "⚠️ None"
	sessionLockStripes = 64
)

// Fixed replies.
const (
	SummaryUnavailable = "⚠️ Summary not available."
	NoQuestionReply    = "⚠️ No question provided."
	NoReply            = "⚠️ No reply."
)

var (
	// ErrEmptyText is returned when a document has no text to segment.
	ErrEmptyText = errors.New("no text provided")
	// ErrDocumentNotFound is returned for unknown document ids.
	ErrDocumentNotFound = errors.New("document not found")
)

// Dispatcher sends one request through a key pool.
type Dispatcher interface {
	DispatchRequest(ctx context.Context, req *driver.Request) ailink.DispatchResult
}

// ClauseCache stores clause annotations keyed by document and clause id.
// GetClauseAnnotation returns nil without error when nothing is cached.
type ClauseCache interface {
	GetClauseAnnotation(ctx context.Context, documentID, clauseID string) (*core.ClauseAnnotation, error)
	UpsertClauseAnnotation(ctx context.Context, documentID string, annotation *core.ClauseAnnotation) error
}

// SessionStore keeps analysed documents. GetDocument returns nil without
// error for unknown ids.
type SessionStore interface {
	SaveDocument(ctx context.Context, doc *core.Document) error
	GetDocument(ctx context.Context, id string) (*core.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// SessionPruner drops sessions last updated before a cutoff.
type SessionPruner interface {
	PruneDocuments(ctx context.Context, before time.Time) (int64, error)
}

// Analyzer runs the document pipeline: segmentation, summaries, clause
// annotation and chat.
type Analyzer struct {
	Analysis  Dispatcher
	Chat      Dispatcher
	Prompts   prompt.Registry
	Cache     ClauseCache
	Sessions  SessionStore
	Segmenter *segment.Segmenter
	Logger    ailink.Logger
	Clock     func() time.Time

	// sessionLocks serialize read-modify-write updates of one document.
	sessionLocks [sessionLockStripes]sync.Mutex
}

// IngestInput is a document submitted as plain text.
type IngestInput struct {
	Filename string
	DocType  string
	Text     string
}

// Ingest trims any preamble, cleans and segments the text, summarizes it and stores the session.
func (a *Analyzer) Ingest(ctx context.Context, in IngestInput) (*core.Document, error) {
	cleaned := segment.Prepare(in.Text)
	if cleaned == "" {
		return nil, ErrEmptyText
	}

	result := a.Segmenter.Segment(cleaned)
	metrics.RecordSegmentation(len(result.Clauses), result.Fallback)
	if result.Fallback {
		a.logger().Warn("no valid clauses found, using paragraph fallback",
			zap.Int("paragraphs", len(result.Clauses)))
	}

	now := a.now()
	doc := &core.Document{
		ID:        uuid.NewString(),
		Filename:  firstNonBlank(in.Filename, defaultFilename),
		DocType:   firstNonBlank(in.DocType, defaultDocType),
		Clauses:   result.Clauses,
		Summary:   a.Summarize(ctx, cleaned),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Sessions.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	metrics.RecordDocumentIngested(doc.DocType, result.Fallback)
	a.logger().Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.Int("clauses", len(doc.Clauses)),
		zap.Int("chars", len(cleaned)))
	return doc, nil
}

// Summarize asks for a short summary of the first part of text.
func (a *Analyzer) Summarize(ctx context.Context, text string) string {
	req, err := a.request(PromptSummary, map[string]string{"text": truncate(text, summaryInputLimit)})
	if err != nil {
		a.logger().Warn("summary prompt unavailable", zap.Error(err))
		return SummaryUnavailable
	}
	result := a.Analysis.DispatchRequest(ctx, req)
	summary := strings.TrimSpace(result.Payload.Raw)
	if !result.Served() || summary == "" {
		return SummaryUnavailable
	}
	return summary
}

// AnalyzeInput identifies one clause to annotate.
type AnalyzeInput struct {
	DocumentID string
	ClauseID   string
	Text       string
}

// AnalyzeClause returns the explanation and risk of a clause, from the cache
// when present. Cache failures are logged and never fail the call.
func (a *Analyzer) AnalyzeClause(ctx context.Context, in AnalyzeInput) core.ClauseAnnotation {
	clauseID := firstNonBlank(in.ClauseID, "unknown")
	if strings.TrimSpace(in.Text) == "" {
		metrics.RecordClauseAnalysis("empty")
		return core.ClauseAnnotation{
			ID:          clauseID,
			Original:    in.Text,
			Explanation: core.EmptyClauseText,
			Risk:        core.EmptyClauseText,
			ModelUsed:   ailink.NoProviderLabel,
		}
	}

	// Annotations are cached per (document, clause); without a document id
	// clause ids are not unique.
	cacheable := a.Cache != nil && strings.TrimSpace(in.DocumentID) != ""
	if cacheable {
		cached, err := a.Cache.GetClauseAnnotation(ctx, in.DocumentID, clauseID)
		switch {
		case err != nil:
			a.logger().Warn("clause cache unavailable, skipping lookup",
				zap.String("document_id", in.DocumentID),
				zap.String("clause_id", clauseID),
				zap.Error(err))
		case cached != nil:
			metrics.RecordClauseCache(true)
			metrics.RecordClauseAnalysis("cache")
			cached.FromCache = true
			return *cached
		}
		metrics.RecordClauseCache(false)
	}

	vars := map[string]string{"clause": in.Text}
	explanation, modelUsed := a.annotate(ctx, PromptExplanation, responseExpl, vars)
	risk, _ := a.annotate(ctx, PromptRisk, responseRisk, vars)

	source := "provider"
	if modelUsed == ailink.NoProviderLabel {
		source = "fallback"
	}
	metrics.RecordClauseAnalysis(source)

	annotation := core.ClauseAnnotation{
		ID:          clauseID,
		Original:    in.Text,
		Explanation: explanation,
		Risk:        risk,
		ModelUsed:   modelUsed,
	}

	if cacheable {
		if err := a.Cache.UpsertClauseAnnotation(ctx, in.DocumentID, &annotation); err != nil {
			a.logger().Warn("clause cache write failed",
				zap.String("document_id", in.DocumentID),
				zap.String("clause_id", clauseID),
				zap.Error(err))
		}
	}
	a.markAnnotated(ctx, in.DocumentID, annotation)
	return annotation
}

func (a *Analyzer) annotate(ctx context.Context, slug, field string, vars map[string]string) (core.MultilingualText, string) {
	req, err := a.request(slug, vars)
	if err != nil {
		a.logger().Warn("annotation prompt unavailable", zap.String("prompt", slug), zap.Error(err))
		return core.NoResponseText, ailink.NoProviderLabel
	}
	result := a.Analysis.DispatchRequest(ctx, req)
	return ailink.Extract(result.Payload, field), result.ProviderLabel
}

// markAnnotated copies a finished annotation into the stored session.
func (a *Analyzer) markAnnotated(ctx context.Context, documentID string, annotation core.ClauseAnnotation) {
	if documentID == "" || a.Sessions == nil {
		return
	}
	defer a.lockSession(documentID)()

	doc, err := a.Sessions.GetDocument(ctx, documentID)
	if err != nil || doc == nil {
		return
	}
	for i := range doc.Clauses {
		if doc.Clauses[i].ID != annotation.ID {
			continue
		}
		doc.Clauses[i].Explanation = core.ReadyField(annotation.Explanation)
		doc.Clauses[i].Risk = core.ReadyField(annotation.Risk)
		doc.UpdatedAt = a.now()
		if err := a.Sessions.SaveDocument(ctx, doc); err != nil {
			a.logger().Warn("session update failed", zap.String("document_id", documentID), zap.Error(err))
		}
		return
	}
}

// Document returns a stored session.
func (a *Analyzer) Document(ctx context.Context, id string) (*core.Document, error) {
	doc, err := a.Sessions.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

// Reset drops a session and its context.
func (a *Analyzer) Reset(ctx context.Context, id string) error {
	defer a.lockSession(id)()
	return a.Sessions.DeleteDocument(ctx, id)
}

// PruneSessions drops sessions idle for longer than ttl when the session
// store supports it. A non-positive ttl keeps everything.
func (a *Analyzer) PruneSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	pruner, ok := a.Sessions.(SessionPruner)
	if !ok || ttl <= 0 {
		return 0, nil
	}
	n, err := pruner.PruneDocuments(ctx, a.now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	metrics.RecordSessionsPruned(n)
	if n > 0 {
		a.logger().Info("pruned idle sessions", zap.Int64("count", n), zap.Duration("ttl", ttl))
	}
	return n, nil
}

// lockSession locks the stripe for a document id and returns its unlock.
func (a *Analyzer) lockSession(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &a.sessionLocks[h.Sum32()%sessionLockStripes]
	mu.Lock()
	return mu.Unlock
}

func (a *Analyzer) request(slug string, vars map[string]string) (*driver.Request, error) {
	if a.Prompts == nil {
		return nil, fmt.Errorf("prompt registry not configured")
	}
	p, err := a.Prompts.Get(slug)
	if err != nil {
		return nil, err
	}
	rendered, err := p.Render(vars)
	if err != nil {
		return nil, err
	}
	return &driver.Request{
		SystemPrompt: rendered.System,
		Messages:     []driver.Message{{Role: driver.RoleUser, Text: rendered.User}},
		JSONOutput:   rendered.JSON,
		PromptSlug:   slug,
	}, nil
}

func (a *Analyzer) logger() ailink.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *Analyzer) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now().UTC()
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

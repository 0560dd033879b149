package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func ingest(t *testing.T, a *Analyzer) string {
	t.Helper()
	doc, err := a.Ingest(context.Background(), IngestInput{Text: contractText})
	require.NoError(t, err)
	return doc.ID
}

func TestChatRequiresQuestion(t *testing.T) {
	a, _ := newTestAnalyzer(t, &stubDispatcher{}, &stubDispatcher{})
	require.Equal(t, NoQuestionReply, a.ChatClause(context.Background(), ChatInput{Message: " "}))
	require.Equal(t, NoQuestionReply, a.ChatDocument(context.Background(), ChatInput{}))
	require.Equal(t, NoQuestionReply, a.ChatGlobal(context.Background(), ChatInput{}))
}

func TestChatClauseFallsBackToFirstClause(t *testing.T) {
	chat := &stubDispatcher{replies: map[string]string{PromptChatClause: "You must pay on time."}}
	analysis := &stubDispatcher{replies: map[string]string{PromptSummary: "A licence."}}
	a, _ := newTestAnalyzer(t, analysis, chat)
	id := ingest(t, a)

	reply := a.ChatClause(context.Background(), ChatInput{DocumentID: id, Message: "What does this mean?"})
	require.Equal(t, "You must pay on time.", reply)

	user := chat.last(PromptChatClause).Messages[0].Text
	require.Contains(t, user, "What does this mean?")
	require.Contains(t, user, "This Agreement shall bind each party")
	require.Contains(t, user, "A licence.")
}

func TestChatRepliesCappedForClauseAndDocument(t *testing.T) {
	long := strings.Repeat("a", 500) + "OVERFLOW"
	chat := &stubDispatcher{replies: map[string]string{
		PromptChatClause: long,
		PromptChatDoc:    long,
		PromptChatGlobal: long,
	}}
	a, _ := newTestAnalyzer(t, &stubDispatcher{}, chat)
	ctx := context.Background()

	clause := strings.Repeat("b", 600) + "ACTIVE_END"
	reply := a.ChatClause(ctx, ChatInput{Message: "q", Clause: clause})
	require.Len(t, reply, 500)
	require.NotContains(t, reply, "OVERFLOW")

	user := chat.last(PromptChatClause).Messages[0].Text
	require.Contains(t, user, "ACTIVE_END")
	require.Contains(t, user, noSummaryAvailable)

	require.Len(t, a.ChatDocument(ctx, ChatInput{Message: "q"}), 500)
	require.Equal(t, long, a.ChatGlobal(ctx, ChatInput{Message: "q"}))
}

func TestChatDocumentJoinsClauses(t *testing.T) {
	chat := &stubDispatcher{replies: map[string]string{PromptChatDoc: "Two clauses."}}
	a, _ := newTestAnalyzer(t, &stubDispatcher{}, chat)
	id := ingest(t, a)

	require.Equal(t, "Two clauses.", a.ChatDocument(context.Background(), ChatInput{DocumentID: id, Message: "Summarize"}))

	user := chat.last(PromptChatDoc).Messages[0].Text
	require.Contains(t, user, "successors.\n2. The licensee")
	// The unavailable-summary marker is not passed on as context.
	require.NotContains(t, user, SummaryUnavailable)
}

func TestChatGlobalUsesOpeningClausesWithoutSummary(t *testing.T) {
	chat := &stubDispatcher{replies: map[string]string{PromptChatGlobal: "General answer."}}
	a, _ := newTestAnalyzer(t, &stubDispatcher{}, chat)
	id := ingest(t, a)

	require.Equal(t, "General answer.", a.ChatGlobal(context.Background(), ChatInput{DocumentID: id, Message: "Is this fair?"}))
	user := chat.last(PromptChatGlobal).Messages[0].Text
	require.Contains(t, user, "successors. 2. The licensee")
}

func TestChatGlobalWithoutDocument(t *testing.T) {
	chat := &stubDispatcher{replies: map[string]string{PromptChatGlobal: "Hello."}}
	a, _ := newTestAnalyzer(t, &stubDispatcher{}, chat)

	require.Equal(t, "Hello.", a.ChatGlobal(context.Background(), ChatInput{DocumentID: "missing", Message: "Hi"}))
	require.Contains(t, chat.last(PromptChatGlobal).Messages[0].Text, noSummaryAvailable)
}

func TestChatReplyFallback(t *testing.T) {
	a, _ := newTestAnalyzer(t, &stubDispatcher{}, &stubDispatcher{})
	require.Equal(t, NoReply, a.ChatDocument(context.Background(), ChatInput{Message: "q"}))
}

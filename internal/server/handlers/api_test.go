package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/ailink/driver"
	"github.com/clauselens/clauselens/internal/ailink/prompt"
	"github.com/clauselens/clauselens/internal/core"
	"github.com/clauselens/clauselens/internal/core/engine"
	"github.com/clauselens/clauselens/internal/core/segment"
	apperrors "github.com/clauselens/clauselens/internal/errors"
)

type slugDispatcher map[string]string

func (d slugDispatcher) DispatchRequest(_ context.Context, req *driver.Request) ailink.DispatchResult {
	reply, ok := d[req.PromptSlug]
	if !ok {
		return ailink.DispatchResult{
			Payload:       ailink.PayloadFromText(core.NoResponseText),
			ProviderLabel: ailink.NoProviderLabel,
		}
	}
	return ailink.DispatchResult{Payload: ailink.ParseResponse(reply), ProviderLabel: "Gemini (key 1/1, 1 calls)", Attempts: 1}
}

const agreement = "1. This Agreement shall bind each party and its successors.\n" +
	"2. The licensee shall pay all fees within thirty days of invoice."

func newTestAPI(t *testing.T) *API {
	t.Helper()
	prompts, err := prompt.DefaultRegistry()
	require.NoError(t, err)

	store := engine.NewMemoryStore()
	return &API{
		Analyzer: &engine.Analyzer{
			Analysis: slugDispatcher{
				engine.PromptSummary:     "Two obligations.",
				engine.PromptExplanation: `{"explanation":{"en":"Binds successors","hi":"उत्तराधिकारी","mr":"वारसदार"}}`,
				engine.PromptRisk:        `{"risk":{"en":"Low","hi":"कम","mr":"कमी"}}`,
			},
			Chat:      slugDispatcher{engine.PromptChatDoc: "It covers fees."},
			Prompts:   prompts,
			Cache:     store,
			Sessions:  store,
			Segmenter: segment.New(segment.DefaultOptions()),
		},
		Pools: func() []ailink.PoolStatus {
			return []ailink.PoolStatus{{Name: ailink.PoolAnalysis, Size: 2, Quota: 15}}
		},
	}
}

func newTestRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Post("/paste", api.Paste)
	r.Post("/analyze_clause", api.AnalyzeClause)
	r.Post("/chat_doc", api.ChatDocument)
	r.Post("/chat_global", api.ChatGlobal)
	r.Post("/reset_chat", api.ResetChat)
	r.Get("/documents/{id}", api.Document)
	r.Get("/keys", api.Keys)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

func TestPasteCreatesDocument(t *testing.T) {
	h := newTestRouter(newTestAPI(t))

	rec := do(t, h, http.MethodPost, "/paste", PasteRequest{Text: agreement, Filename: "nda.txt"})
	require.Equal(t, http.StatusOK, rec.Code)

	var doc core.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	require.NotEmpty(t, doc.ID)
	require.Equal(t, "nda.txt", doc.Filename)
	require.Equal(t, "Two obligations.", doc.Summary)
	require.Len(t, doc.Clauses, 2)

	rec = do(t, h, http.MethodGet, "/documents/"+doc.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPasteRejectsEmptyAndImageOnly(t *testing.T) {
	h := newTestRouter(newTestAPI(t))

	rec := do(t, h, http.MethodPost, "/paste", PasteRequest{Text: "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, apperrors.CodeInvalidInput, errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/paste", PasteRequest{Image: "iVBORw0KGgo="})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/paste", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/paste", strings.NewReader(""))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasteRejectsOversizedBody(t *testing.T) {
	api := newTestAPI(t)
	api.MaxBodyBytes = 64
	h := newTestRouter(api)

	rec := do(t, h, http.MethodPost, "/paste", PasteRequest{Text: strings.Repeat("shall ", 50)})
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, apperrors.CodePayloadTooLarge, errorCode(t, rec))
}

func TestAnalyzeClauseUsesCacheOnSecondCall(t *testing.T) {
	h := newTestRouter(newTestAPI(t))
	body := AnalyzeRequest{DocumentID: "doc-1", ClauseID: "clause_1", Text: "This Agreement shall bind each party."}

	rec := do(t, h, http.MethodPost, "/analyze_clause", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "miss", rec.Header().Get("X-Cache"))

	var annotation core.ClauseAnnotation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&annotation))
	require.Equal(t, "Binds successors", annotation.Explanation.EN)
	require.Equal(t, "Low", annotation.Risk.EN)
	require.Equal(t, "Gemini (key 1/1, 1 calls)", annotation.ModelUsed)

	rec = do(t, h, http.MethodPost, "/analyze_clause", body)
	require.Equal(t, "hit", rec.Header().Get("X-Cache"))
}

func TestAnalyzeClauseWithoutDocumentIsNotCached(t *testing.T) {
	h := newTestRouter(newTestAPI(t))

	rec := do(t, h, http.MethodPost, "/analyze_clause", AnalyzeRequest{ClauseID: "clause_1", Text: "The tenant shall pay rent monthly."})
	require.Equal(t, "miss", rec.Header().Get("X-Cache"))

	rec = do(t, h, http.MethodPost, "/analyze_clause", AnalyzeRequest{ClauseID: "clause_1", Text: "The landlord shall repair the roof."})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "miss", rec.Header().Get("X-Cache"))

	var annotation core.ClauseAnnotation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&annotation))
	require.Equal(t, "The landlord shall repair the roof.", annotation.Original)
}

func TestChatEndpointsReply(t *testing.T) {
	h := newTestRouter(newTestAPI(t))

	rec := do(t, h, http.MethodPost, "/chat_doc", ChatRequest{Message: "What about fees?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var reply ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
	require.Equal(t, "It covers fees.", reply.Reply)

	rec = do(t, h, http.MethodPost, "/chat_global", ChatRequest{Message: "Hello?"})
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
	require.Equal(t, engine.NoReply, reply.Reply)

	rec = do(t, h, http.MethodPost, "/chat_global", ChatRequest{Message: " "})
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
	require.Equal(t, engine.NoQuestionReply, reply.Reply)
}

func TestResetChatDropsSession(t *testing.T) {
	h := newTestRouter(newTestAPI(t))

	rec := do(t, h, http.MethodPost, "/paste", PasteRequest{Text: agreement})
	var doc core.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))

	rec = do(t, h, http.MethodPost, "/reset_chat", ResetRequest{DocumentID: doc.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/documents/"+doc.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, apperrors.CodeNotFound, errorCode(t, rec))
}

func TestKeysReportsPools(t *testing.T) {
	h := newTestRouter(newTestAPI(t))

	rec := do(t, h, http.MethodGet, "/keys", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp KeysResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Pools, 1)
	require.Equal(t, ailink.PoolAnalysis, resp.Pools[0].Name)
	require.NotContains(t, rec.Body.String(), "api_key")
}

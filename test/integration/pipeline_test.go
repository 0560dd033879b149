package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/ailink/prompt"
	"github.com/clauselens/clauselens/internal/core"
	"github.com/clauselens/clauselens/internal/core/engine"
	"github.com/clauselens/clauselens/internal/core/segment"
	"github.com/clauselens/clauselens/internal/observability"
	"github.com/clauselens/clauselens/internal/server"
	"github.com/clauselens/clauselens/internal/server/handlers"
)

const lease = "1. The tenant shall pay rent on the first day of each month.\n" +
	"2. Either party may end this Agreement with thirty days written notice.\n" +
	"3. The landlord shall return the deposit within fifteen days of the term ending."

// fakeGemini answers generateContent calls by prompt wording. Keys listed in
// exhausted always get a 429.
type fakeGemini struct {
	mu        sync.Mutex
	exhausted map[string]bool
	keys      []string
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("x-goog-api-key")
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.exhausted[key] {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
		return
	}

	body, _ := io.ReadAll(r.Body)
	var reply string
	switch text := string(body); {
	case strings.Contains(text, "Explain this legal clause"):
		reply = `{"explanation":{"en":"Rent is due monthly","hi":"किराया मासिक","mr":"भाडे मासिक"}}`
	case strings.Contains(text, "List the risks"):
		reply = "```json\n{\"risk\":{\"en\":\"Late fees\",\"hi\":\"विलंब शुल्क\",\"mr\":\"विलंब शुल्क\"}}\n```"
	case strings.Contains(text, "Summarize this legal"):
		reply = "A residential lease with rent, notice and deposit terms."
	default:
		reply = "You can leave with thirty days notice."
	}
	payload, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"parts": []any{map[string]string{"text": reply}}},
			"finishReason": "STOP",
		}},
	})
	_, _ = w.Write(payload)
}

func (f *fakeGemini) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func newPipelineServer(t *testing.T, gemini *fakeGemini, analysisKeys []string) (string, *ailink.Registry) {
	t.Helper()
	observability.InitServerLogger("test", "error", "")

	upstream := newLoopbackServer(t, gemini)
	registry, err := ailink.NewRegistry(ailink.Config{
		BaseURL: upstream.URL,
		Model:   "gemini-test",
		Pools: map[string]ailink.PoolConfig{
			ailink.PoolAnalysis: {Quota: 50},
			ailink.PoolChat:     {Quota: 50},
		},
	},
		ailink.WithPoolKeys(ailink.PoolAnalysis, analysisKeys),
		ailink.WithPoolKeys(ailink.PoolChat, []string{"chat-key"}))
	require.NoError(t, err)

	analysis, err := registry.Dispatcher(ailink.PoolAnalysis)
	require.NoError(t, err)
	chat, err := registry.Dispatcher(ailink.PoolChat)
	require.NoError(t, err)
	prompts, err := prompt.DefaultRegistry()
	require.NoError(t, err)

	sessions := engine.NewMemoryStore()
	health := handlers.NewHealthManager("test")
	health.RegisterAdvisoryChecker("key_pools", registry)

	srv := server.New(server.Options{
		Host:   "127.0.0.1",
		Health: health,
		API: &handlers.API{
			Analyzer: &engine.Analyzer{
				Analysis:  analysis,
				Chat:      chat,
				Prompts:   prompts,
				Cache:     sessions,
				Sessions:  sessions,
				Segmenter: segment.New(segment.DefaultOptions()),
			},
			Pools: registry.Status,
		},
	})
	return newLoopbackServer(t, srv.Handler()).URL, registry
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestPipelinePasteAnalyzeChat(t *testing.T) {
	gemini := &fakeGemini{}
	base, _ := newPipelineServer(t, gemini, []string{"analysis-key"})

	var doc core.Document
	resp := postJSON(t, base+"/paste", handlers.PasteRequest{Text: lease, Filename: "lease.txt"}, &doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, doc.Clauses, 3)
	assert.Equal(t, "clause_1", doc.Clauses[0].ID)
	assert.Equal(t, "A residential lease with rent, notice and deposit terms.", doc.Summary)

	var annotation core.ClauseAnnotation
	resp = postJSON(t, base+"/analyze_clause", handlers.AnalyzeRequest{
		DocumentID: doc.ID,
		ClauseID:   doc.Clauses[0].ID,
		Text:       doc.Clauses[0].Original,
	}, &annotation)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "miss", resp.Header.Get("X-Cache"))
	assert.Equal(t, "Rent is due monthly", annotation.Explanation.EN)
	assert.Equal(t, "Late fees", annotation.Risk.EN)
	assert.Equal(t, "Gemini (key 1/1, 2 calls)", annotation.ModelUsed)

	var chat handlers.ChatResponse
	resp = postJSON(t, base+"/chat_doc", handlers.ChatRequest{DocumentID: doc.ID, Message: "Can I leave early?"}, &chat)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "You can leave with thirty days notice.", chat.Reply)

	keys := gemini.calls()
	assert.Equal(t, []string{"analysis-key", "analysis-key", "analysis-key", "chat-key"}, keys)
}

func TestPipelineRotatesPastExhaustedKey(t *testing.T) {
	gemini := &fakeGemini{exhausted: map[string]bool{"spent-key-0001": true}}
	base, registry := newPipelineServer(t, gemini, []string{"spent-key-0001", "fresh-key-0002"})

	var doc core.Document
	resp := postJSON(t, base+"/paste", handlers.PasteRequest{Text: lease}, &doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, engine.SummaryUnavailable, doc.Summary)
	assert.Equal(t, []string{"spent-key-0001", "fresh-key-0002"}, gemini.calls())

	var status handlers.KeysResponse
	keysResp, err := http.Get(base + "/keys")
	require.NoError(t, err)
	defer keysResp.Body.Close() //nolint:errcheck
	require.NoError(t, json.NewDecoder(keysResp.Body).Decode(&status))
	require.Len(t, status.Pools, len(registry.Names()))
	analysis := status.Pools[0]
	require.Equal(t, ailink.PoolAnalysis, analysis.Name)
	require.Len(t, analysis.Keys, 2)
	assert.Equal(t, "spen…0001", analysis.Keys[0].Hint)
	assert.Equal(t, "fres…0002", analysis.Keys[1].Hint)
	assert.True(t, analysis.Keys[1].Current)
}

func TestPipelineFallsBackWhenAllKeysExhausted(t *testing.T) {
	gemini := &fakeGemini{exhausted: map[string]bool{"k1": true, "k2": true}}
	base, _ := newPipelineServer(t, gemini, []string{"k1", "k2"})

	var annotation core.ClauseAnnotation
	resp := postJSON(t, base+"/analyze_clause", handlers.AnalyzeRequest{
		ClauseID: "clause_1",
		Text:     "The tenant shall pay rent on the first day of each month.",
	}, &annotation)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ailink.NoProviderLabel, annotation.ModelUsed)
	assert.Equal(t, core.NoResponseText, annotation.Explanation)
	assert.Equal(t, core.NoResponseText, annotation.Risk)
}

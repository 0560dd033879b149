package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/core/engine"
	apperrors "github.com/clauselens/clauselens/internal/errors"
)

// DefaultMaxBodyBytes caps request bodies when API.MaxBodyBytes is unset.
const DefaultMaxBodyBytes int64 = 10 << 20

// API serves the document endpoints.
type API struct {
	Analyzer *engine.Analyzer
	// Pools reports key pool status for /keys. Nil hides the endpoint data.
	Pools        func() []ailink.PoolStatus
	MaxBodyBytes int64
}

// PasteRequest is the body of POST /paste.
type PasteRequest struct {
	Text     string `json:"text"`
	Image    string `json:"image,omitempty"`
	Filename string `json:"filename,omitempty"`
	DocType  string `json:"doc_type,omitempty"`
}

// AnalyzeRequest is the body of POST /analyze_clause.
type AnalyzeRequest struct {
	DocumentID string `json:"document_id"`
	ClauseID   string `json:"clause_id"`
	Text       string `json:"text"`
}

// ChatRequest is the body of the chat endpoints.
type ChatRequest struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
	Clause     string `json:"clause,omitempty"`
}

// ChatResponse carries one chat reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// ResetRequest is the body of POST /reset_chat.
type ResetRequest struct {
	DocumentID string `json:"document_id"`
}

// KeysResponse lists key pool status without secrets.
type KeysResponse struct {
	Pools []ailink.PoolStatus `json:"pools"`
}

// Paste segments pasted text into a new document session.
func (a *API) Paste(w http.ResponseWriter, r *http.Request) {
	var req PasteRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		if strings.TrimSpace(req.Image) != "" {
			respondWithError(w, r, apperrors.NewInvalidInputError("image input is not supported; paste the text instead"))
			return
		}
		respondWithError(w, r, apperrors.NewInvalidInputError("no text or image provided"))
		return
	}

	doc, err := a.Analyzer.Ingest(r.Context(), engine.IngestInput{
		Filename: req.Filename,
		DocType:  req.DocType,
		Text:     req.Text,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// AnalyzeClause returns the explanation and risk for one clause.
func (a *API) AnalyzeClause(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !a.decode(w, r, &req) {
		return
	}
	annotation := a.Analyzer.AnalyzeClause(r.Context(), engine.AnalyzeInput{
		DocumentID: req.DocumentID,
		ClauseID:   req.ClauseID,
		Text:       req.Text,
	})
	if annotation.FromCache {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, annotation)
}

// ChatClause answers a question about the active clause.
func (a *API) ChatClause(w http.ResponseWriter, r *http.Request) {
	a.chat(w, r, a.Analyzer.ChatClause)
}

// ChatDocument answers a question about the whole document.
func (a *API) ChatDocument(w http.ResponseWriter, r *http.Request) {
	a.chat(w, r, a.Analyzer.ChatDocument)
}

// ChatGlobal answers a general question.
func (a *API) ChatGlobal(w http.ResponseWriter, r *http.Request) {
	a.chat(w, r, a.Analyzer.ChatGlobal)
}

// ResetChat drops a document session.
func (a *API) ResetChat(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DocumentID) != "" {
		if err := a.Analyzer.Reset(r.Context(), req.DocumentID); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Document returns a stored session.
func (a *API) Document(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := a.Analyzer.Document(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Keys reports key pool usage.
func (a *API) Keys(w http.ResponseWriter, r *http.Request) {
	resp := KeysResponse{Pools: []ailink.PoolStatus{}}
	if a.Pools != nil {
		resp.Pools = a.Pools()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) chat(w http.ResponseWriter, r *http.Request, answer func(context.Context, engine.ChatInput) string) {
	var req ChatRequest
	if !a.decode(w, r, &req) {
		return
	}
	reply := answer(r.Context(), engine.ChatInput{
		DocumentID: req.DocumentID,
		Message:    req.Message,
		Clause:     req.Clause,
	})
	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

// decode reads a JSON body into v. It writes the error response and returns
// false when the body is unusable.
func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	limit := a.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	defer body.Close() // nolint:errcheck // request body

	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondWithError(w, r, apperrors.NewPayloadTooLargeError("request body too large"))
		case errors.Is(err, io.EOF):
			respondWithError(w, r, apperrors.NewInvalidInputError("request body is empty"))
		default:
			respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid JSON body"))
		}
		return false
	}
	return true
}

// fail maps engine errors to HTTP error envelopes.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, engine.ErrEmptyText):
		respondWithError(w, r, apperrors.WrapInvalidInput(ctx, err, "no text provided"))
	case errors.Is(err, engine.ErrDocumentNotFound):
		respondWithError(w, r, apperrors.WrapNotFound(ctx, err, "document not found"))
	case errors.Is(err, ailink.ErrNoCredentials), errors.Is(err, ailink.ErrKeyPoolExhausted):
		respondWithError(w, r, apperrors.WrapServiceUnavailable(ctx, err, "no API key available"))
	default:
		respondWithError(w, r, apperrors.WrapDatabaseError(ctx, err, "session store failed"))
	}
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

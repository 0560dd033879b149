package driver

import (
	"context"
	"strings"
)

// Driver sends a single generation request to a provider.
type Driver interface {
	// Complete sends the request and returns the generated content.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "gemini").
	Name() string
}

// Role names used in Message.Role.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of a conversation.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic generation request.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	// JSONOutput asks the provider for an application/json response body.
	JSONOutput  bool
	Temperature *float64
	MaxTokens   *int
	PromptSlug  string
}

// Response is a provider-agnostic generation response.
type Response struct {
	Parts        []string
	FinishReason string
	Usage        *Usage
}

// Text joins the generated parts.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Parts, "")
}

// UserPrompt builds a single-turn request.
func UserPrompt(model, prompt string) *Request {
	return &Request{
		Model:    model,
		Messages: []Message{{Role: RoleUser, Text: prompt}},
	}
}

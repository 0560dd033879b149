package gemini

import (
	"fmt"
	"strings"

	"github.com/clauselens/clauselens/internal/ailink/driver"
)

type generateRequest struct {
	Contents          []contentPayload  `json:"contents"`
	SystemInstruction *contentPayload   `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type contentPayload struct {
	Role  string        `json:"role,omitempty"`
	Parts []partPayload `json:"parts"`
}

type partPayload struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

func buildRequest(req *driver.Request) (*generateRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	out := &generateRequest{}
	for _, msg := range req.Messages {
		role := msg.Role
		if role != driver.RoleModel {
			role = driver.RoleUser
		}
		out.Contents = append(out.Contents, contentPayload{
			Role:  role,
			Parts: []partPayload{{Text: msg.Text}},
		})
	}

	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		out.SystemInstruction = &contentPayload{Parts: []partPayload{{Text: system}}}
	}

	if req.Temperature != nil || req.MaxTokens != nil || req.JSONOutput {
		cfg := &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
		if req.JSONOutput {
			cfg.ResponseMimeType = "application/json"
		}
		out.GenerationConfig = cfg
	}
	return out, nil
}

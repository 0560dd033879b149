package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clauselens/clauselens/internal/ailink/driver"
)

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []partPayload `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

func toDriverResponse(resp *generateResponse) (*driver.Response, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty response")
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("response contained no candidates")
	}

	candidate := resp.Candidates[0]
	out := &driver.Response{FinishReason: candidate.FinishReason}
	for _, part := range candidate.Content.Parts {
		out.Parts = append(out.Parts, part.Text)
	}
	if resp.UsageMetadata != nil {
		out.Usage = &driver.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

// providerError builds a ProviderError from a non-2xx body. Bodies that are not
// Google error envelopes keep their raw text as the message.
func providerError(statusCode int, body []byte) *driver.ProviderError {
	perr := &driver.ProviderError{
		Provider:    providerName,
		StatusCode:  statusCode,
		Message:     strings.TrimSpace(string(body)),
		RawResponse: body,
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return perr
	}
	if msg := strings.TrimSpace(parsed.Error.Message); msg != "" {
		perr.Message = msg
	}
	perr.Status = parsed.Error.Status
	for _, detail := range parsed.Error.Details {
		if detail.Reason != "" {
			perr.Reason = detail.Reason
			break
		}
	}
	return perr
}

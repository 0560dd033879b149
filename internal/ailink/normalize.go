package ailink

import (
	"encoding/json"
	"strings"

	"github.com/clauselens/clauselens/internal/core"
)

// PayloadKind tags what a model response parsed into.
type PayloadKind int

const (
	// PayloadRaw is free text that did not parse as JSON.
	PayloadRaw PayloadKind = iota
	// PayloadObject is a JSON object.
	PayloadObject
	// PayloadText is an already-shaped multilingual value.
	PayloadText
)

// Payload is a parsed model response. Raw always holds the cleaned response
// text so any payload can fall back to replicated text.
type Payload struct {
	Kind   PayloadKind
	Object map[string]any
	Text   core.MultilingualText
	Raw    string
}

// PayloadFromText wraps a multilingual value as a payload.
func PayloadFromText(text core.MultilingualText) Payload {
	return Payload{Kind: PayloadText, Text: text, Raw: text.EN}
}

// MarshalJSON emits the object, the multilingual value or the raw string.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PayloadObject:
		return json.Marshal(p.Object)
	case PayloadText:
		return json.Marshal(p.Text)
	default:
		return json.Marshal(p.Raw)
	}
}

// ParseResponse strips Markdown code fences and an optional language tag from
// a model response, then tries a strict JSON parse. Anything other than a JSON
// object stays raw text.
func ParseResponse(text string) Payload {
	cleaned := stripFences(text)
	payload := Payload{Kind: PayloadRaw, Raw: cleaned}

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil && obj != nil {
		payload.Kind = PayloadObject
		payload.Object = obj
	}
	return payload
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")

	// Opening fence may carry a language tag: ```json
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		tag := strings.TrimSpace(s[:nl])
		if tag == "" || isLanguageTag(tag) {
			s = s[nl+1:]
		}
	} else if rest, ok := strings.CutPrefix(s, "json"); ok {
		s = rest
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// Extract returns the multilingual value stored under field. Every path yields
// a fully populated value:
//
//   - a multilingual payload is returned as is
//   - an object whose field holds an {en, hi, mr} object returns that object,
//     with missing languages filled from English
//   - an object that is itself {en, hi, mr} shaped returns itself
//   - a string field value is replicated to every language
//   - anything else replicates the raw response text
func Extract(payload Payload, field string) core.MultilingualText {
	switch payload.Kind {
	case PayloadText:
		return payload.Text
	case PayloadObject:
		if value, ok := payload.Object[field]; ok {
			switch v := value.(type) {
			case map[string]any:
				if text, ok := multilingualFrom(v); ok {
					return text
				}
			case string:
				return core.Replicate(v)
			}
		}
		if text, ok := multilingualFrom(payload.Object); ok {
			return text
		}
	}
	return core.Replicate(payload.Raw)
}

// Normalize parses a raw response and extracts field in one step.
func Normalize(raw, field string) core.MultilingualText {
	return Extract(ParseResponse(raw), field)
}

func multilingualFrom(m map[string]any) (core.MultilingualText, bool) {
	en, hasEN := m[core.LangEnglish].(string)
	hi, hasHI := m[core.LangHindi].(string)
	mr, hasMR := m[core.LangMarathi].(string)
	if !hasEN && !hasHI && !hasMR {
		return core.MultilingualText{}, false
	}
	if !hasEN {
		en = firstNonEmpty(hi, mr)
	}
	return core.MultilingualText{
		EN: en,
		HI: firstNonEmpty(hi, en),
		MR: firstNonEmpty(mr, en),
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

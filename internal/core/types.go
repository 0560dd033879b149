package core

import (
	"encoding/json"
	"time"
)

// Language codes carried by every annotation.
const (
	LangEnglish = "en"
	LangHindi   = "hi"
	LangMarathi = "mr"
)

// Languages lists the annotation languages in display order.
var Languages = []string{LangEnglish, LangHindi, LangMarathi}

// MultilingualText holds the same message in every supported language.
type MultilingualText struct {
	EN string `json:"en"`
	HI string `json:"hi"`
	MR string `json:"mr"`
}

// Replicate returns a MultilingualText with text copied into every slot.
func Replicate(text string) MultilingualText {
	return MultilingualText{EN: text, HI: text, MR: text}
}

// Get returns the text for a language code.
func (m MultilingualText) Get(lang string) string {
	switch lang {
	case LangHindi:
		return m.HI
	case LangMarathi:
		return m.MR
	default:
		return m.EN
	}
}

// Fixed texts used when no annotation could be produced.
var (
	NoResponseText = MultilingualText{
		EN: "⚠️ No response",
		HI: "⚠️ कोई उत्तर नहीं",
		MR: "⚠️ प्रतिसाद नाही",
	}
	EmptyClauseText = MultilingualText{
		EN: "⚠️ Empty clause",
		HI: "⚠️ खाली क्लॉज",
		MR: "⚠️ रिकामी क्लॉज",
	}
)

// Placeholder values stored on clause stubs before annotation.
const (
	ExplanationPending = "Explanation pending..."
	RiskPending        = "Risk pending..."
)

// AnnotationField is either a pending placeholder or a finished MultilingualText.
type AnnotationField struct {
	Pending string
	Text    *MultilingualText
}

// PendingField returns a field in the placeholder state.
func PendingField(placeholder string) AnnotationField {
	return AnnotationField{Pending: placeholder}
}

// ReadyField returns a field holding a finished annotation.
func ReadyField(text MultilingualText) AnnotationField {
	return AnnotationField{Text: &text}
}

// IsPending reports whether the field is still waiting for annotation.
func (f AnnotationField) IsPending() bool {
	return f.Text == nil
}

// MarshalJSON encodes a pending field as its placeholder string and a
// finished field as an {en, hi, mr} object.
func (f AnnotationField) MarshalJSON() ([]byte, error) {
	if f.Text != nil {
		return json.Marshal(f.Text)
	}
	return json.Marshal(f.Pending)
}

// UnmarshalJSON accepts either representation produced by MarshalJSON.
func (f *AnnotationField) UnmarshalJSON(data []byte) error {
	var placeholder string
	if err := json.Unmarshal(data, &placeholder); err == nil {
		*f = AnnotationField{Pending: placeholder}
		return nil
	}
	var text MultilingualText
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*f = AnnotationField{Text: &text}
	return nil
}

// ClauseRecord is a single segmented clause.
type ClauseRecord struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Original    string          `json:"original"`
	Explanation AnnotationField `json:"explanation"`
	Risk        AnnotationField `json:"risk"`
}

// ClauseAnnotation is the analysis result for one clause.
type ClauseAnnotation struct {
	ID          string           `json:"id"`
	Original    string           `json:"original"`
	Explanation MultilingualText `json:"explanation"`
	Risk        MultilingualText `json:"risk"`
	ModelUsed   string           `json:"model_used"`
	FromCache   bool             `json:"-"`
}

// Document is one analysis session: the segmented text plus its summary.
type Document struct {
	ID        string         `json:"document_id"`
	Filename  string         `json:"filename"`
	DocType   string         `json:"doc_type"`
	Clauses   []ClauseRecord `json:"clauses"`
	Summary   string         `json:"summary"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// FirstClause returns the first clause text, or "" when there are none.
func (d *Document) FirstClause() string {
	if d == nil || len(d.Clauses) == 0 {
		return ""
	}
	return d.Clauses[0].Original
}

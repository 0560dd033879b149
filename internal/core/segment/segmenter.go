// Package segment turns extracted document text into clause records.
package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clauselens/clauselens/internal/core"
)

// Length limits in characters (runes).
const (
	DefaultMaxClauseLength = 1000
	DefaultMinClauseLength = 40

	subClauseRepackAt = 500
	sentenceGroupCap  = 400
	paragraphMinLen   = 20
	paragraphWindow   = 400
	labelLength       = 80
)

// Keywords marks text that reads like a legal clause.
var Keywords = []string{"shall", "means", "agreement", "party", "term", "license"}

var (
	pageNumberLine = regexp.MustCompile(`(?m)^\s*\d+\s*$`)
	// A top-level clause starts at "<digits>." plus whitespace. The leading
	// group keeps "12." from also matching at "2.". The whitespace is checked
	// separately so it stays available as the next match's leading group.
	clauseStart  = regexp.MustCompile(`(^|\D)\d+\.`)
	definition   = regexp.MustCompile(`["“][^"”]+["”]\s+means`)
	sentenceStop = regexp.MustCompile(`[.;]\s+`)
)

// Options tunes the segmenter limits.
type Options struct {
	MaxClauseLength int `mapstructure:"max_clause_length"`
	MinClauseLength int `mapstructure:"min_clause_length"`
}

// DefaultOptions returns the stock limits.
func DefaultOptions() Options {
	return Options{
		MaxClauseLength: DefaultMaxClauseLength,
		MinClauseLength: DefaultMinClauseLength,
	}
}

// Result is the output of one segmentation run.
type Result struct {
	Clauses []core.ClauseRecord
	// Fallback is set when no clause validated and paragraphs were emitted.
	Fallback bool
}

// Segmenter splits text into clauses. The zero value uses DefaultOptions.
type Segmenter struct {
	opts Options
}

// New returns a segmenter; non-positive limits fall back to the defaults.
func New(opts Options) *Segmenter {
	if opts.MaxClauseLength <= 0 {
		opts.MaxClauseLength = DefaultMaxClauseLength
	}
	if opts.MinClauseLength <= 0 {
		opts.MinClauseLength = DefaultMinClauseLength
	}
	return &Segmenter{opts: opts}
}

// Segment splits text with the default limits.
func Segment(text string) []core.ClauseRecord {
	return New(DefaultOptions()).Segment(text).Clauses
}

// Segment splits cleaned text into clause records. Numbered clauses become
// clause_<n>; long definition blocks are split into clause_<n><letter>; when
// nothing validates the text is emitted as para_<n> windows. Only blank input
// yields no records.
func (s *Segmenter) Segment(text string) Result {
	if s == nil {
		s = New(DefaultOptions())
	}
	text = pageNumberLine.ReplaceAllString(text, "")

	var out []core.ClauseRecord
	counter := 1
	for _, chunk := range splitClauses(text) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		if runeLen(chunk) > s.opts.MaxClauseLength && strings.Contains(strings.ToLower(chunk), "means") {
			letter := 0
			for _, sub := range splitDefinitions(chunk) {
				if !s.valid(sub) {
					continue
				}
				out = append(out, newRecord(fmt.Sprintf("clause_%d%s", counter, letterSuffix(letter)), sub, sub))
				letter++
			}
		} else if s.valid(chunk) {
			label := chunk
			if nl := strings.IndexByte(chunk, '\n'); nl >= 0 {
				label = chunk[:nl]
			}
			out = append(out, newRecord(fmt.Sprintf("clause_%d", counter), label, chunk))
		}
		counter++
	}

	if len(out) > 0 {
		return Result{Clauses: out}
	}
	paras := paragraphs(text)
	return Result{Clauses: paras, Fallback: len(paras) > 0}
}

// splitClauses cuts text before every numbered clause start.
func splitClauses(text string) []string {
	var (
		chunks []string
		last   int
	)
	for _, m := range clauseStart.FindAllStringSubmatchIndex(text, -1) {
		if m[1] >= len(text) || !unicode.IsSpace(rune(text[m[1]])) {
			continue
		}
		// m[3] is the end of the leading group, i.e. where the number begins.
		start := m[3]
		if start > last {
			chunks = append(chunks, text[last:start])
		}
		last = start
	}
	return append(chunks, text[last:])
}

// splitDefinitions cuts a chunk before each quoted term followed by "means"
// and repacks long pieces into sentence groups.
func splitDefinitions(chunk string) []string {
	var pieces []string
	last := 0
	for _, m := range definition.FindAllStringIndex(chunk, -1) {
		if m[0] > last {
			pieces = append(pieces, chunk[last:m[0]])
		}
		last = m[0]
	}
	pieces = append(pieces, chunk[last:])

	var subs []string
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if runeLen(piece) > subClauseRepackAt {
			subs = append(subs, repackSentences(piece)...)
			continue
		}
		subs = append(subs, piece)
	}
	return subs
}

// repackSentences groups sentences while the running length stays under the
// cap. A single sentence longer than the cap is kept whole.
func repackSentences(text string) []string {
	var sentences []string
	last := 0
	for _, m := range sentenceStop.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[last:m[0]+1])
		last = m[1]
	}
	sentences = append(sentences, text[last:])

	var (
		groups []string
		buf    string
	)
	for _, sentence := range sentences {
		if runeLen(buf)+runeLen(sentence) < sentenceGroupCap {
			buf += " " + sentence
			continue
		}
		if b := strings.TrimSpace(buf); b != "" {
			groups = append(groups, b)
		}
		buf = sentence
	}
	if b := strings.TrimSpace(buf); b != "" {
		groups = append(groups, b)
	}
	return groups
}

// paragraphs is the fallback: every line longer than 20 characters, cut into
// 400-character windows. Text with no such line is emitted whole.
func paragraphs(text string) []core.ClauseRecord {
	var out []core.ClauseRecord
	n := 1
	emit := func(chunk string) {
		out = append(out, newRecord(fmt.Sprintf("para_%d", n), chunk, chunk))
		n++
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if runeLen(line) <= paragraphMinLen {
			continue
		}
		for _, window := range runeWindows(line, paragraphWindow) {
			emit(window)
		}
	}
	if len(out) == 0 {
		if whole := strings.TrimSpace(text); whole != "" {
			emit(whole)
		}
	}
	return out
}

func (s *Segmenter) valid(text string) bool {
	text = strings.TrimSpace(text)
	if runeLen(text) < s.opts.MinClauseLength {
		return false
	}
	if !strings.ContainsFunc(text, isWordRune) {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isWordRune reports runes other than digits that count as word characters.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsMark(r) || r == '_'
}

func newRecord(id, label, original string) core.ClauseRecord {
	return core.ClauseRecord{
		ID:          id,
		Label:       truncateRunes(label, labelLength),
		Original:    original,
		Explanation: core.PendingField(core.ExplanationPending),
		Risk:        core.PendingField(core.RiskPending),
	}
}

// letterSuffix maps 0, 1, ... 25, 26 to a, b, ... z, aa.
func letterSuffix(i int) string {
	suffix := ""
	for i >= 0 {
		suffix = string(rune('a'+i%26)) + suffix
		i = i/26 - 1
	}
	return suffix
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func truncateRunes(s string, max int) string {
	if runeLen(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func runeWindows(s string, size int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	var out []string
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		out = append(out, string(runes[i:end]))
	}
	return out
}

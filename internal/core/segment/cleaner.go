package segment

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// A word broken across a line ("agree-\nment") is joined back together.
	brokenWord = regexp.MustCompile(`(\p{L})-\s+(\p{Ll})`)
	watermark  = regexp.MustCompile(`(?i)Illustration.*LegalDesk.*`)

	tocLine       = regexp.MustCompile(`^\s*\d+(\.\d+)*\.?\s+[A-Z][A-Za-z\s]+\.{3,}\d+\s*$`)
	clauseHeading = regexp.MustCompile(`^\s*\d+(\.\d+)*\.?\s+[A-Z]`)
	contractStart = regexp.MustCompile(`(?i)\b(AGREEMENT|THIS AGREEMENT|PARTIES|WITNESSETH)\b`)
)

// Prepare turns raw document text into segmenter input: the contract body
// when one is found, otherwise the whole text, cleaned.
func Prepare(raw string) string {
	body := FindContractStart(raw)
	if strings.TrimSpace(body) == "" {
		body = raw
	}
	return CleanText(body)
}

// CleanText normalizes extracted document text before segmentation.
//
// Compatibility characters (ligatures such as "ﬁ" emitted by PDF extractors)
// are folded with NFKC, watermark lines are dropped, hyphenated line breaks are
// joined and every whitespace run collapses to a single space.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = watermark.ReplaceAllString(line, "")
	}
	text = strings.Join(lines, "\n")

	text = brokenWord.ReplaceAllString(text, "$1$2")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// FindContractStart drops the table of contents and any preamble that comes
// before the contract body. The body starts at the first line naming the
// agreement or its parties, or at the first numbered clause heading.
//
// It expects raw text with line breaks intact, so it runs before CleanText.
func FindContractStart(text string) string {
	var (
		kept    []string
		started bool
	)
	for _, line := range strings.Split(text, "\n") {
		clean := strings.TrimSpace(line)
		if clean == "" || tocLine.MatchString(clean) {
			continue
		}
		if !started && (contractStart.MatchString(clean) || clauseHeading.MatchString(clean)) {
			started = true
		}
		if started {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Package notes turns free-form incident notes into structured fields.
//
// The parser is an ordered set of regex rules, each a pure function over the
// input text:
//   - case numbers ("Case #: A-102", "Ref 55/B")
//   - dates (M/D/Y, YYYY-MM-DD, "Mar 4, 2024") and clock times
//   - people and witnesses (capitalized-word heuristic)
//   - quotes and requests ("Mark said: "...", "I asked HR to ...")
//   - a category from a fixed keyword table
//
// Nothing here fabricates values: every field is either empty or derived
// from a substring of the input. No function panics or errors on bad input;
// a field that cannot be found is left empty.
package notes

import (
	"regexp"
	"strings"

	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

// ParsedNotes is the structured result of one parse. Empty fields mean
// "not detected" and are omitted from JSON.
type ParsedNotes struct {
	Date       string   `json:"date,omitempty"` // YYYY-MM-DD
	Time       string   `json:"time,omitempty"` // HH:mm, 24-hour
	Where      string   `json:"where,omitempty"`
	People     []string `json:"people,omitempty"`
	Witnesses  []string `json:"witnesses,omitempty"`
	Quotes     []Quote  `json:"quotes,omitempty"`
	Requests   []string `json:"requests,omitempty"`
	Category   string   `json:"category,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	CaseNumber string   `json:"caseNumber,omitempty"`
}

// IsEmpty reports whether nothing was extracted.
func (p ParsedNotes) IsEmpty() bool {
	return p.Date == "" && p.Time == "" && p.Where == "" && len(p.People) == 0 &&
		len(p.Witnesses) == 0 && len(p.Quotes) == 0 && len(p.Requests) == 0 &&
		p.Category == "" && p.Summary == "" && p.CaseNumber == ""
}

// ParseNotesToStructured runs every extractor over text. Blank input returns
// an empty ParsedNotes without doing any work.
func ParseNotesToStructured(text string) ParsedNotes {
	if textutil.IsBlank(text) {
		return ParsedNotes{}
	}

	quotes := ExtractQuotes(text)
	people := append(ExtractPeople(text), Speakers(quotes)...)

	return ParsedNotes{
		Date:       ExtractDate(text),
		Time:       ExtractTime(text),
		Where:      ExtractWhere(text),
		People:     textutil.DedupePreserveOrder(people),
		Witnesses:  ExtractWitnesses(text),
		Quotes:     quotes,
		Requests:   ExtractRequests(text),
		Category:   InferCategory(text),
		Summary:    Summarize(text),
		CaseNumber: ExtractCaseNumberFlexible(text),
	}
}

// ScanResult is the reduced output of QuickScan.
type ScanResult struct {
	CaseNumber string `json:"caseNumber,omitempty"`
	Time       string `json:"time,omitempty"`
}

// QuickScan runs only the case-number and time extractors, for instant
// feedback while the user is still typing.
func QuickScan(text string) ScanResult {
	if textutil.IsBlank(text) {
		return ScanResult{}
	}
	return ScanResult{
		CaseNumber: ExtractCaseNumberFlexible(text),
		Time:       ExtractTime(text),
	}
}

// minSummaryLineLength is the length a line must exceed to be a summary.
const minSummaryLineLength = 10

// maxSummaryLength caps the summary.
const maxSummaryLength = 240

var (
	bulletPrefixRE = regexp.MustCompile(`^[-*•>\s]+`)
	leadingLabelRE = regexp.MustCompile(`^[A-Za-z][A-Za-z #/&'-]{0,30}:\s*`)
	speechVerbRE   = regexp.MustCompile(`(?i)\b(?:said|says|asked|asks|told|tells|stated|replied|yelled|shouted|wrote)\b`)
	sentenceEndRE  = regexp.MustCompile(`[.!?](?:\s|$)`)
)

// Summarize picks the first line longer than ten characters that is not a
// "Timeline" or "Requests/Responses" heading, strips any leading label and
// returns its first sentence in sentence case.
func Summarize(text string) string {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(bulletPrefixRE.ReplaceAllString(raw, ""))
		if len(line) <= minSummaryLineLength {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "timeline") || strings.HasPrefix(lower, "requests/responses") {
			continue
		}
		line = stripLeadingLabel(line)
		if line == "" {
			continue
		}
		return textutil.SentenceCase(textutil.Truncate(firstSentence(line), maxSummaryLength))
	}
	return ""
}

// stripLeadingLabel drops a "Label:" prefix. A prefix with a speech verb,
// as in `Mark said: "stop"`, introduces a quote and is kept.
func stripLeadingLabel(line string) string {
	label := leadingLabelRE.FindString(line)
	if label == "" || speechVerbRE.MatchString(label) {
		return line
	}
	return strings.TrimSpace(line[len(label):])
}

// firstSentence cuts s at the first sentence end that leaves more than
// minSummaryLineLength characters, so "A-102. Met with..." is not cut short.
func firstSentence(s string) string {
	for _, loc := range sentenceEndRE.FindAllStringIndex(s, -1) {
		end := loc[0] + 1
		if end > minSummaryLineLength {
			return strings.TrimSpace(s[:end])
		}
	}
	return s
}

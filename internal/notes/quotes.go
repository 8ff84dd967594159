package notes

import (
	"regexp"
	"strings"

	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

// maxRequestLength caps each extracted request sentence.
const maxRequestLength = 100

// Quote is a quoted span, optionally attributed to a speaker.
type Quote struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
}

var (
	saidQuoteRE = regexp.MustCompile(`([A-Z][a-z]+)\s+(?:said|asked|told)(?:\s+(?:me|us|him|her|them|everyone))?\s*:?\s*["“]([^"”]+)["”]`)
	bareQuoteRE = regexp.MustCompile(`["“]([^"”]+)["”]`)

	requestRE = regexp.MustCompile(`(?i)\b(?:I\s+(?:told|asked|requested|reported|emailed)|requested|asked)\b[^.!?\n]*[.!?]?`)
)

// ExtractQuotes returns attributed quotes ("Mark said: "...") first, in
// match order, followed by any other quoted span not already captured.
func ExtractQuotes(text string) []Quote {
	var quotes []Quote
	seen := make(map[string]bool)

	for _, m := range saidQuoteRE.FindAllStringSubmatch(text, -1) {
		q := strings.TrimSpace(m[2])
		if q == "" {
			continue
		}
		seen[q] = true
		quotes = append(quotes, Quote{Speaker: m[1], Text: q})
	}

	for _, m := range bareQuoteRE.FindAllStringSubmatch(text, -1) {
		q := strings.TrimSpace(m[1])
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		quotes = append(quotes, Quote{Text: q})
	}

	return quotes
}

// ExtractRequests returns sentences describing requests or reports the
// writer made, in match order, each capped at maxRequestLength runes.
// Duplicates are kept.
func ExtractRequests(text string) []string {
	var requests []string
	for _, m := range requestRE.FindAllString(text, -1) {
		r := textutil.Truncate(strings.TrimSpace(m), maxRequestLength)
		if r == "" {
			continue
		}
		requests = append(requests, r)
	}
	return requests
}

// Speakers returns the distinct named speakers of quotes, in order.
func Speakers(quotes []Quote) []string {
	var out []string
	for _, q := range quotes {
		if q.Speaker != "" {
			out = append(out, q.Speaker)
		}
	}
	return textutil.DedupePreserveOrder(out)
}

package prefill

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sbomarketplace/log-nexus-sub000/internal/notes"
	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

const (
	quotesHeading   = "Quotes:"
	requestsHeading = "Requests/Responses:"

	// augmentSeparator precedes the block and counts against its budget.
	augmentSeparator = "\n\n"
)

// augmentationHeadingRE finds the first appended section heading on its own line.
var augmentationHeadingRE = regexp.MustCompile(`(?m)^[ \t]*(?:Quotes|Requests/Responses):[ \t]*$`)

// StripAugmentation drops everything from the first appended Quotes or
// Requests/Responses heading onward.
func StripAugmentation(notesText string) string {
	loc := augmentationHeadingRE.FindStringIndex(notesText)
	if loc == nil {
		return notesText
	}
	return strings.TrimRight(notesText[:loc[0]], " \t\r\n")
}

func keepVoice(s string) string { return s }

// FormatQuote renders one quote as a notes bullet.
func FormatQuote(q notes.Quote) string {
	if q.Speaker == "" {
		return `- "` + q.Text + `"`
	}
	return "- " + q.Speaker + `: "` + q.Text + `"`
}

// buildAugmentation renders the Quotes and Requests/Responses sections,
// leaving out lines that existing already contains.
func buildAugmentation(existing string, quotes []notes.Quote, requests []string, voice func(string) string) string {
	var quoteLines []string
	for _, q := range quotes {
		quoteLines = append(quoteLines, FormatQuote(q))
	}
	var requestLines []string
	for _, r := range requests {
		requestLines = append(requestLines, "- "+voice(r))
	}

	quoteLines = newLines(existing, quoteLines)
	requestLines = newLines(existing, requestLines)

	var sections []string
	if len(quoteLines) > 0 {
		sections = append(sections, quotesHeading+"\n"+strings.Join(quoteLines, "\n"))
	}
	if len(requestLines) > 0 {
		sections = append(sections, requestsHeading+"\n"+strings.Join(requestLines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

func newLines(existing string, lines []string) []string {
	var out []string
	for _, line := range textutil.DedupePreserveOrder(lines) {
		if strings.Contains(existing, line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// appendAugmentation returns the new notes value. ok is false when there is
// nothing to add or either side is over budget.
func (e *Engine) appendAugmentation(existing, block string) (string, bool) {
	if block == "" {
		return "", false
	}
	if utf8.RuneCountInString(existing) >= e.maxExistingNotes {
		return "", false
	}
	if utf8.RuneCountInString(augmentSeparator+block) >= e.maxAugmentation {
		return "", false
	}
	if textutil.IsBlank(existing) {
		return block, true
	}
	return strings.TrimRight(existing, " \t\r\n") + augmentSeparator + block, true
}

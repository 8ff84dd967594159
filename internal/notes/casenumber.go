package notes

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

// maxCaseNumberLength caps the sanitized case number.
const maxCaseNumberLength = 50

// casePattern is one labelled case-number pattern. Group 1 holds the value.
type casePattern struct {
	regex *regexp2.Regexp
	name  string
}

// caseNumberPatterns are tried in order; the first pattern that matches wins,
// even when its value is later rejected for having no digit.
//
// regexp2 is used instead of regexp because the inline pattern needs a
// negative lookbehind to skip "in case".
var caseNumberPatterns = []*casePattern{
	{
		regex: mustCaseRE(`^[ \t]*(?:[-*•>]+[ \t]*)?case\b[ \t]*(?:#|no\.?|number|num|id)?[ \t]*[:#-]?[ \t]*([A-Za-z0-9][A-Za-z0-9/ -]{0,49})`),
		name:  "case_label",
	},
	{
		regex: mustCaseRE(`^[ \t]*(?:[-*•>]+[ \t]*)?(?:reference|ref)\b\.?[ \t]*(?:#|no\.?|number|num|id)?[ \t]*[:#-]?[ \t]*([A-Za-z0-9][A-Za-z0-9/ -]{0,49})`),
		name:  "ref_label",
	},
	{
		regex: mustCaseRE(`^[ \t]*(?:[-*•>]+[ \t]*)?(?:ticket|report)\b[ \t]*(?:#|no\.?|number|num|id)?[ \t]*[:#-]?[ \t]*([A-Za-z0-9][A-Za-z0-9/ -]{0,49})`),
		name:  "ticket_label",
	},
	{
		regex: mustCaseRE(`(?<!\bin\s+)\bcase\b[ \t]*(?:#|no\.?|number|num|id)?[ \t]*[:#-]?[ \t]*([A-Za-z0-9][A-Za-z0-9/-]{0,49})`),
		name:  "case_inline",
	},
}

func mustCaseRE(pattern string) *regexp2.Regexp {
	return regexp2.MustCompile(pattern, regexp2.IgnoreCase|regexp2.Multiline)
}

var (
	caseDisallowedRE = regexp.MustCompile(`[^A-Za-z0-9 /-]`)
	caseTrailingRE   = regexp.MustCompile(`[\s/-]+$`)
)

// ExtractCaseNumberFlexible finds a case, reference or ticket number in text.
// It returns "" when nothing matches or when the first match has no digit.
func ExtractCaseNumberFlexible(text string) string {
	if textutil.IsBlank(text) {
		return ""
	}

	for _, p := range caseNumberPatterns {
		// Each call starts a fresh match; regexp2 keeps no scan state between calls.
		m, err := p.regex.FindStringMatch(text)
		if err != nil || m == nil {
			continue
		}
		g := m.GroupByNumber(1)
		if g == nil {
			continue
		}
		return SanitizeCaseNumber(g.String())
	}
	return ""
}

// SanitizeCaseNumber cleans a case number from any source. It returns ""
// when nothing with a digit is left.
func SanitizeCaseNumber(raw string) string {
	value := sanitizeCaseNumber(raw)
	if !containsDigit(value) {
		return ""
	}
	return value
}

// sanitizeCaseNumber keeps letters, digits, space, dash and slash.
func sanitizeCaseNumber(raw string) string {
	s := caseDisallowedRE.ReplaceAllString(raw, "")
	s = textutil.CollapseSpaces(s)
	s = caseTrailingRE.ReplaceAllString(s, "")
	s = textutil.Truncate(s, maxCaseNumberLength)
	return strings.TrimSpace(s)
}

func containsDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// Package textutil holds the small string helpers shared by the note parser
// and the prefill engine.
package textutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var multiSpaceRE = regexp.MustCompile(`[ \t]+`)

var whitespaceRE = regexp.MustCompile(`\s+`)

// SafeString renders any value as a string without panicking.
// nil becomes "", strings and Stringers pass through.
func SafeString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	default:
		return fmt.Sprint(v)
	}
}

// ReplaceAll applies re to s, returning s unchanged when re is nil.
func ReplaceAll(s string, re *regexp.Regexp, repl string) string {
	if re == nil || s == "" {
		return s
	}
	return re.ReplaceAllString(s, repl)
}

// CollapseSpaces squeezes runs of spaces and tabs into one space and trims.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(multiSpaceRE.ReplaceAllString(s, " "))
}

// NormalizeWhitespace replaces every whitespace run (newlines included) with one space.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// IsBlank reports whether s has no non-space characters.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// SentenceCase upper-cases the first letter of s and leaves the rest alone.
func SentenceCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Truncate caps s at maxRunes runes. It never splits a multi-byte character.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DedupePreserveOrder drops repeated values, keeping the first occurrence.
func DedupePreserveOrder(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

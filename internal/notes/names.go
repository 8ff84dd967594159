package notes

import (
	"regexp"
	"strings"

	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

var (
	// nameSplitRE separates candidate fragments in a list of people.
	nameSplitRE = regexp.MustCompile(`\s*(?:[,;&]|\band\b)\s*`)

	// capitalizedRunRE is a run of 1-3 capitalized words.
	capitalizedRunRE = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2}`)

	witnessLabelRE = regexp.MustCompile(`(?i)(?:\bwitness(?:es)?[ \t]*:|\bwitnessed\s+by\b)[ \t]*([^\n.]+)`)

	peopleLabelRE = regexp.MustCompile(`(?im)^[ \t]*(?:[-*•][ \t]*)?(?:who|involved|people|present|parties|persons? involved)[ \t]*:[ \t]*([^\n]+)$`)

	withNameRE = regexp.MustCompile(`\b[Ww]ith\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})`)
)

// ExtractNames splits source on commas, semicolons, ampersands and the word
// "and", keeping the first capitalized run of each fragment. Fragments with
// no capitalized word are dropped. Lowercase or hyphenated names are missed.
func ExtractNames(source string) []string {
	if textutil.IsBlank(source) {
		return nil
	}
	var names []string
	for _, fragment := range nameSplitRE.Split(source, -1) {
		if name := capitalizedRunRE.FindString(fragment); name != "" {
			names = append(names, textutil.NormalizeWhitespace(name))
		}
	}
	return textutil.DedupePreserveOrder(names)
}

// ExtractWitnesses reads the names after a "Witnesses:" or "witnessed by"
// marker, up to the end of the sentence.
func ExtractWitnesses(text string) []string {
	m := witnessLabelRE.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return ExtractNames(m[1])
}

// ExtractPeople gathers names from "Who:" style labels and "with <Name>"
// phrases, in that order.
func ExtractPeople(text string) []string {
	var people []string
	for _, m := range peopleLabelRE.FindAllStringSubmatch(text, -1) {
		people = append(people, ExtractNames(m[1])...)
	}
	for _, m := range withNameRE.FindAllStringSubmatch(text, -1) {
		people = append(people, textutil.NormalizeWhitespace(m[1]))
	}
	return textutil.DedupePreserveOrder(people)
}

// JoinNames renders a name list the way record fields store it.
func JoinNames(names []string) string {
	return strings.Join(names, ", ")
}

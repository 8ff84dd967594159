package prefill

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sbomarketplace/log-nexus-sub000/internal/notes"
	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

// firstPersonRE lists longer forms before their prefixes so "I'm" wins over "I".
var firstPersonRE = regexp.MustCompile(
	`\b(?:I am|I was|I['’]m|I['’]ve|I['’]ll|I['’]d|I|[Mm]yself|[Mm]ine|[Mm]y|[Mm]e|[Ww]e['’]re|[Ww]e|[Oo]urs|[Oo]ur|[Uu]s)\b`)

// secondPerson is keyed by the lower-cased first-person form.
var secondPerson = map[string]string{
	"i am":   "you are",
	"i was":  "you were",
	"i'm":    "you're",
	"i’m":    "you’re",
	"i've":   "you've",
	"i’ve":   "you’ve",
	"i'll":   "you'll",
	"i’ll":   "you’ll",
	"i'd":    "you'd",
	"i’d":    "you’d",
	"i":      "you",
	"myself": "yourself",
	"mine":   "yours",
	"my":     "your",
	"me":     "you",
	"we're":  "you're",
	"we’re":  "you’re",
	"we":     "you",
	"ours":   "yours",
	"our":    "your",
	"us":     "you",
}

// NeutralizeVoice rewrites first-person pronouns into second person, so
// "My boss and I argued" becomes "Your boss and you argued".
func NeutralizeVoice(s string) string {
	locs := firstPersonRE.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(s[last:loc[0]])
		b.WriteString(toSecondPerson(s[loc[0]:loc[1]], atSentenceStart(s[:loc[0]])))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func toSecondPerson(word string, sentenceStart bool) string {
	key := strings.ToLower(word)
	repl, ok := secondPerson[key]
	if !ok {
		return word
	}
	first, _ := utf8.DecodeRuneInString(word)
	capital := unicode.IsUpper(first)
	// "I" is always capitalized, so only sentence position decides.
	if strings.HasPrefix(key, "i") {
		capital = sentenceStart
	}
	if capital {
		return textutil.SentenceCase(repl)
	}
	return repl
}

func atSentenceStart(prefix string) bool {
	trimmed := strings.TrimRight(prefix, " \t\"'“‘(")
	if trimmed == "" {
		return true
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', '\n', ':':
		return true
	}
	return false
}

var archetypes = map[string]string{
	notes.CategoryWorkInterference: "You reported that someone interfered with your ability to do your job.",
	notes.CategoryHarassment:       "You reported conduct you experienced as harassment.",
	notes.CategoryDiscrimination:   "You reported treatment you believe was discriminatory.",
	notes.CategoryRetaliation:      "You reported actions you believe were retaliation.",
	notes.CategorySafety:           "You reported a workplace safety concern.",
	notes.CategoryWageHour:         "You reported a problem with your pay or hours.",
	notes.CategoryScheduling:       "You reported a scheduling change or conflict.",
	notes.CategoryPolicy:           "You reported a possible policy violation.",
}

// ArchetypeSentence returns the fixed lead sentence for a known category,
// or "".
func ArchetypeSentence(category string) string {
	return archetypes[category]
}

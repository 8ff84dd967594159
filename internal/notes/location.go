package notes

import (
	"regexp"
	"strings"

	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

var (
	whereLabelRE = regexp.MustCompile(`(?im)^[ \t]*(?:[-*•][ \t]*)?(?:location|where|place)[ \t]*:[ \t]*([^\n]+)$`)

	// wherePrepRE catches "in the X", "at the X", "outside of the X".
	wherePrepRE = regexp.MustCompile(`(?i)\b(?:in|at|inside|near|outside(?:\s+of)?)\s+the\s+([a-z][^.,;:!?\n"“”]{1,40})`)

	// wherePlaceRE catches "in my office", "at Dock 4 loading bay" style places
	// ending in a recognised place noun.
	wherePlaceRE = regexp.MustCompile(`(?i)\b(?:in|at)\s+(?:(?:my|his|her|their|our|a|an|the)\s+)?((?:[a-z0-9'-]+\s+){0,2}(?:room|office|floor|desk|area|lot|hall|hallway|kitchen|lobby|warehouse|building|cafeteria|store|site|yard|dock|station|garage|bay|counter))\b`)

	// whereCutRE trims a captured place at the first connecting word.
	whereCutRE = regexp.MustCompile(`(?i)\s+(?:with|and|in|on|at|when|while|because|after|before|during|about|for|to|who|where|as|by|around)\b.*$`)
)

// whereStopWords are words that follow "in the"/"at the" without naming a place.
var whereStopWords = map[string]bool{
	"morning": true, "afternoon": true, "evening": true, "night": true,
	"day": true, "week": true, "month": true, "year": true, "past": true,
	"future": true, "end": true, "beginning": true, "middle": true,
	"meantime": true, "moment": true, "time": true, "way": true, "same": true,
	"first": true, "last": true, "next": true,
}

// ExtractWhere returns a short location snippet, or "".
// Precedence: explicit "Location:" label, "in the X" phrase, place noun phrase.
func ExtractWhere(text string) string {
	if m := whereLabelRE.FindStringSubmatch(text); m != nil {
		if w := cleanWhere(m[1]); w != "" {
			return w
		}
	}
	if w := findPrepositionPlace(text); w != "" {
		return w
	}
	if m := wherePlaceRE.FindStringSubmatch(text); m != nil {
		return cleanWhere(m[1])
	}
	return ""
}

// findPrepositionPlace scans "in the X" phrases. A rejected phrase resumes
// the scan at its capture start, so "in the morning he was in the lobby"
// still finds "lobby".
func findPrepositionPlace(text string) string {
	offset := 0
	for offset < len(text) {
		loc := wherePrepRE.FindStringSubmatchIndex(text[offset:])
		if loc == nil {
			return ""
		}
		start, end := offset+loc[2], offset+loc[3]
		w := cleanWhere(whereCutRE.ReplaceAllString(text[start:end], ""))
		if w != "" && !whereStopWords[strings.ToLower(strings.Fields(w)[0])] {
			return w
		}
		offset = start
	}
	return ""
}

func cleanWhere(raw string) string {
	w := textutil.CollapseSpaces(raw)
	w = strings.TrimRight(w, " .,;:!?")
	if strings.HasPrefix(strings.ToLower(w), "the ") {
		w = strings.TrimSpace(w[4:])
	}
	return w
}

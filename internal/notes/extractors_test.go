package notes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCaseNumberFlexible(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"case label", "Case #: A-102. Met with Mark.", "A-102"},
		{"case number word", "Case Number: 2024-0071", "2024-0071"},
		{"bullet case", "- case no. 55/B\nother text", "55/B"},
		{"reference", "Ref: HR 4471", "HR 4471"},
		{"reference long", "Reference # 99-A", "99-A"},
		{"ticket", "Ticket: INC0012345", "INC0012345"},
		{"report", "Report # R-7", "R-7"},
		{"inline", "They opened case 7781 yesterday.", "7781"},
		{"in case excluded", "in case something happens, call me", ""},
		{"In case excluded", "Just In case #12 matters", ""},
		{"no digit rejected", "Case: pending", ""},
		{"trims trailing separators", "Case: A-102 /", "A-102"},
		{"collapses spaces", "Case:   AB    12  ", "AB 12"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCaseNumberFlexible(tt.text))
		})
	}
}

func TestExtractCaseNumberFlexible_AlwaysHasDigit(t *testing.T) {
	inputs := []string{
		"Case: pending review",
		"Ticket: none yet",
		"Reference: see email",
		"case closed",
		"Case #: A-102",
		"ref 1",
		"the case ABC",
	}
	for _, in := range inputs {
		got := ExtractCaseNumberFlexible(in)
		if got != "" {
			assert.True(t, strings.ContainsAny(got, "0123456789"), "%q -> %q", in, got)
		}
	}
}

func TestExtractCaseNumberFlexible_CapsLength(t *testing.T) {
	got := ExtractCaseNumberFlexible("Case: 1" + strings.Repeat("A", 80))
	assert.LessOrEqual(t, len(got), maxCaseNumberLength)
	assert.True(t, strings.HasPrefix(got, "1A"))
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"3/4/2024", "2024-03-04"},
		{"2024-03-04", "2024-03-04"},
		{"Mar 4, 2024", "2024-03-04"},
		{"March 4th 2024", "2024-03-04"},
		{"sept. 9, 2023", "2023-09-09"},
		{"on 8/17/25", "2025-08-17"},
		{"on 8/17/85", "1985-08-17"},
		{"on 1/2/69", "2069-01-02"},
		{"on 1/2/70", "1970-01-02"},
		{"no date here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDate(tt.text))
		})
	}
}

func TestExtractDate_PatternPriorityBeatsPosition(t *testing.T) {
	// The ISO date comes first in the text but M/D/Y is tried first.
	assert.Equal(t, "2025-01-05", ExtractDate("Filed 2024-12-01, incident on 1/5/2025"))
}

func TestExtractDate_NoRangeCheck(t *testing.T) {
	assert.Equal(t, "2024-13-45", ExtractDate("13/45/2024"))
}

func TestNormalizeYear(t *testing.T) {
	assert.Equal(t, "2000", NormalizeYear("00"))
	assert.Equal(t, "2069", NormalizeYear("69"))
	assert.Equal(t, "1970", NormalizeYear("70"))
	assert.Equal(t, "1999", NormalizeYear("99"))
	assert.Equal(t, "0202", NormalizeYear("202"))
	assert.Equal(t, "2024", NormalizeYear("2024"))
}

func TestExtractTime(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"6:23 PM", "18:23"},
		{"6:23pm", "18:23"},
		{"at 6:23 p.m.", "18:23"},
		{"12:05 AM", "00:05"},
		{"12:05 PM", "12:05"},
		{"9:00 am", "09:00"},
		{"06:23", "06:23"},
		{"13:75", "13:59"},
		{"29:10", "23:10"},
		{"arrived 07:15, left at 5:30 PM", "17:30"},
		{"no time", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTime(tt.text))
		})
	}
}

func TestExtractNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"commas", "Dana, Troy", []string{"Dana", "Troy"}},
		{"and", "Dana and Troy Smith", []string{"Dana", "Troy Smith"}},
		{"semicolon ampersand", "Ann Lee; Bob & Cy", []string{"Ann Lee", "Bob", "Cy"}},
		{"max three words", "Mary Ann Lee Jones", []string{"Mary Ann Lee"}},
		{"drops lowercase", "dana, the supervisor, Troy", []string{"Troy"}},
		{"dedupes", "Dana, Dana", []string{"Dana"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractNames(tt.in))
		})
	}
}

func TestExtractWitnesses(t *testing.T) {
	assert.Equal(t, []string{"Dana", "Troy"}, ExtractWitnesses("Witnesses: Dana, Troy."))
	assert.Equal(t, []string{"Sam"}, ExtractWitnesses("It was witnessed by Sam and nobody else."))
	assert.Nil(t, ExtractWitnesses("nobody saw it"))
	assert.Nil(t, ExtractWitnesses("witnesses: none"))
	assert.Nil(t, ExtractWitnesses("There was no witness, Mark left early."))
	assert.Nil(t, ExtractWitnesses("No witnesses around when Dana arrived."))
	assert.Equal(t, []string{"Dana"}, ExtractWitnesses("Witness : Dana"))
}

func TestExtractPeople(t *testing.T) {
	text := "Who: Dana Smith, Troy\nMet with Mark in his office. Spoke with Dana Smith again."
	assert.Equal(t, []string{"Dana Smith", "Troy", "Mark"}, ExtractPeople(text))
}

func TestExtractQuotes_OrderSaidBeforeBare(t *testing.T) {
	text := `First "bare one" then Lee told me: "go home" and "bare one" again.`
	got := ExtractQuotes(text)
	assert.Equal(t, []Quote{
		{Speaker: "Lee", Text: "go home"},
		{Text: "bare one"},
	}, got)
}

func TestExtractQuotes_SmartQuotes(t *testing.T) {
	got := ExtractQuotes("Ann said “not today”.")
	assert.Equal(t, []Quote{{Speaker: "Ann", Text: "not today"}}, got)
}

func TestExtractRequests(t *testing.T) {
	text := "I emailed HR about the schedule. Nothing happened. I asked Mark for a copy! Later I asked Mark for a copy!"
	got := ExtractRequests(text)
	assert.Equal(t, []string{
		"I emailed HR about the schedule.",
		"I asked Mark for a copy!",
		"I asked Mark for a copy!",
	}, got)
}

func TestExtractRequests_Capped(t *testing.T) {
	got := ExtractRequests("I requested " + strings.Repeat("x", 300))
	assert.Len(t, got, 1)
	assert.Len(t, []rune(got[0]), maxRequestLength)
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"He kept harassing me at the desk", CategoryHarassment},
		{"Wet floor, I slipped and the area was unsafe", CategorySafety},
		{"I was written up after I filed a complaint", CategoryRetaliation},
		{"My overtime was unpaid again", CategoryWageHour},
		{"She keeps interfering with my work orders", CategoryWorkInterference},
		{"They changed my shift without notice", CategoryScheduling},
		{"He yelled and also changed my shift", CategoryHarassment},
		{"nothing notable", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, InferCategory(tt.text))
		})
	}
}

func TestCategoriesAreOrdered(t *testing.T) {
	cats := Categories()
	assert.Equal(t, CategoryHarassment, cats[0])
	assert.Len(t, cats, len(categoryRules))
}

func TestExtractWhere(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"label wins", "Location: Loading Dock 3\nwe were in the break room", "Loading Dock 3"},
		{"in the", "It happened in the break room.", "break room"},
		{"cut at connector", "We argued at the front desk with Mark present", "front desk"},
		{"skips time phrase", "In the morning he was in the warehouse office.", "warehouse office"},
		{"place noun", "He came into my office and at my desk area later", "desk area"},
		{"possessive place", "Meeting in his office today", "office"},
		{"none", "no location", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractWhere(tt.text))
		})
	}
}

func TestSanitizeCaseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"#A-102!!", "A-102"},
		{"N/A", ""},
		{"", ""},
		{"Claim  77 / 2 -", "Claim 77 / 2"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeCaseNumber(tt.raw))
		})
	}
}

package prefill

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
)

const breakRoomNote = "Case #: A-102. Met with Mark on 8/17/2025 at 6:00 PM in the break room. Witnesses: Dana, Troy."

func utcEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithLocation(time.UTC)}, opts...)...)
}

func ptr(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestPrefill_BreakRoomNote(t *testing.T) {
	p := utcEngine().Prefill(incident.Incident{Notes: breakRoomNote})

	assert.Equal(t, "2025-08-17T18:00:00.000Z", ptr(p.DateTime))
	assert.Equal(t, "", ptr(p.DatePart), "datePart explicitly cleared")
	assert.Equal(t, "", ptr(p.TimePart), "timePart explicitly cleared")
	assert.Equal(t, "break room", ptr(p.Where))
	assert.Equal(t, "Mark", ptr(p.Who))
	assert.Equal(t, "Dana, Troy", ptr(p.Witnesses))
	assert.Equal(t, "A-102", ptr(p.CaseNumber))
	assert.Nil(t, p.Notes, "nothing to append")
}

func TestPrefill_CombinesExistingDateWithParsedTime(t *testing.T) {
	inc := incident.Incident{DatePart: "2025-08-17", Notes: "Met at 6:00 PM"}

	p := utcEngine().Prefill(inc)
	require.NotNil(t, p.DateTime)
	assert.Equal(t, "2025-08-17T18:00:00.000Z", *p.DateTime)
	require.NotNil(t, p.DatePart)
	require.NotNil(t, p.TimePart)
	assert.Empty(t, *p.DatePart)
	assert.Empty(t, *p.TimePart)
}

func TestPrefill_CombineUsesLocation(t *testing.T) {
	edt := time.FixedZone("EDT", -4*60*60)
	inc := incident.Incident{DatePart: "2025-08-17", Notes: "Met at 6:00 PM"}

	p := NewEngine(WithLocation(edt)).Prefill(inc)
	assert.Equal(t, "2025-08-17T22:00:00.000Z", ptr(p.DateTime))
}

func TestPrefill_CombinesParsedDateWithExistingTime(t *testing.T) {
	inc := incident.Incident{TimePart: "09:30", Notes: "Happened on 2025-01-05 at 6:00 PM"}

	p := utcEngine().Prefill(inc)
	assert.Equal(t, "2025-01-05T09:30:00.000Z", ptr(p.DateTime), "existing time is kept")
	assert.Equal(t, "", ptr(p.DatePart))
	assert.Equal(t, "", ptr(p.TimePart))
}

func TestPrefill_InvalidDateFallsBackToParts(t *testing.T) {
	p := utcEngine().Prefill(incident.Incident{Notes: "On 13/45/2024 at 6:00 PM it started"})

	assert.Nil(t, p.DateTime)
	assert.Equal(t, "2024-13-45", ptr(p.DatePart))
	assert.Equal(t, "18:00", ptr(p.TimePart))
}

func TestPrefill_TimeOnly(t *testing.T) {
	p := utcEngine().Prefill(incident.Incident{Notes: "It started around 6:00 PM"})
	assert.Nil(t, p.DateTime)
	assert.Nil(t, p.DatePart)
	assert.Equal(t, "18:00", ptr(p.TimePart))
}

func TestPrefill_KeepsExistingWhere(t *testing.T) {
	inc := incident.Incident{Where: "Loading dock", Notes: breakRoomNote}
	p := utcEngine().Prefill(inc)
	assert.Nil(t, p.Where)
}

func TestPrefill_DateTimeRecordIsNotTouched(t *testing.T) {
	inc := incident.Incident{DateTime: "2024-01-01T10:00:00.000Z", Notes: breakRoomNote}
	p := utcEngine().Prefill(inc)
	assert.Nil(t, p.DateTime)
	assert.Nil(t, p.DatePart)
	assert.Nil(t, p.TimePart)
}

func TestPrefill_EmptySourceGivesEmptyPatch(t *testing.T) {
	p := utcEngine().Prefill(incident.Incident{Who: "Sam"})
	assert.True(t, p.IsEmpty())
}

func TestPrefill_NeverOverwritesPopulatedFields(t *testing.T) {
	full := incident.Incident{
		DateTime:        "2024-01-01T10:00:00.000Z",
		Who:             "Sam",
		What:            "Argument",
		Where:           "Lobby",
		Witnesses:       "Lee",
		CategoryOrIssue: "Other",
		CaseNumber:      "Z-1",
		Notes:           breakRoomNote + ` Mark said: "Sign it." I asked HR for a copy.`,
	}
	p := utcEngine().Prefill(full)
	assert.Equal(t, []string{"notes"}, p.Fields())
	assert.True(t, strings.HasPrefix(*p.Notes, full.Notes), "notes only grow")
}

func TestPrefill_AppendsQuotesAndRequests(t *testing.T) {
	original := `Mark said: "Sign it now." I asked HR for a copy.`
	p := utcEngine().Prefill(incident.Incident{Notes: original})

	want := original + "\n\n" +
		"Quotes:\n- Mark: \"Sign it now.\"\n\n" +
		"Requests/Responses:\n- I asked HR for a copy."
	assert.Equal(t, want, ptr(p.Notes))
	assert.Equal(t, "Mark", ptr(p.Who))
}

func TestPrefill_IsIdempotent(t *testing.T) {
	records := []incident.Incident{
		{Notes: breakRoomNote},
		{Notes: `Mark said: "Sign it now." I asked HR for a copy.`},
		{DatePart: "2025-08-17", Notes: "Met at 6:00 PM"},
		{Notes: "On 13/45/2024 at 6:00 PM it started"},
		{What: "Yelled at in the lobby on 3/4/2024. Lee said \"stop\"."},
	}
	e := utcEngine()
	for _, inc := range records {
		first := e.Prefill(inc)
		first.Apply(&inc)

		second := e.Prefill(inc)
		assert.True(t, second.IsEmpty(), "second pass touched %v for %+v", second.Fields(), inc)
	}
}

func TestPrefill_NeverSetsDateTimeAndParts(t *testing.T) {
	inputs := []incident.Incident{
		{Notes: breakRoomNote},
		{DatePart: "2025-08-17", Notes: "Met at 6:00 PM"},
		{TimePart: "09:30", Notes: "on 2025-01-05"},
		{Notes: "On 13/45/2024 at 6:00 PM it started"},
	}
	for _, inc := range inputs {
		p := utcEngine().Prefill(inc)
		if p.DateTime != nil && *p.DateTime != "" {
			assert.Equal(t, "", ptr(p.DatePart))
			assert.Equal(t, "", ptr(p.TimePart))
		}
	}
}

func TestPrefill_NotesBudget(t *testing.T) {
	long := `Mark said: "Sign it."` + strings.Repeat("x", DefaultMaxExistingNotes)
	p := utcEngine().Prefill(incident.Incident{Notes: long})
	assert.Nil(t, p.Notes, "existing notes over budget")

	p = utcEngine(WithNotesLimits(0, 10)).Prefill(incident.Incident{Notes: `Mark said: "Sign it now, please."`})
	assert.Nil(t, p.Notes, "block over budget")
}

func TestPrefillFromText(t *testing.T) {
	inc := incident.Incident{Where: "Lobby"}
	p := utcEngine().PrefillFromText(inc, breakRoomNote)
	assert.Nil(t, p.Where)
	assert.Equal(t, "A-102", ptr(p.CaseNumber))
}

func TestSourceText(t *testing.T) {
	assert.Equal(t, "abc notes", SourceText(incident.Incident{Notes: "abc notes\n\nQuotes:\n- \"hi\""}))
	assert.Equal(t, "the what", SourceText(incident.Incident{What: "the what", Notes: "Quotes:\n- \"hi\""}))
	assert.Equal(t, "the what", SourceText(incident.Incident{What: "the what"}))
}

func TestStripAugmentation(t *testing.T) {
	assert.Equal(t, "keep", StripAugmentation("keep\n\nRequests/Responses:\n- I asked"))
	assert.Equal(t, "Quotes: inline stays", StripAugmentation("Quotes: inline stays"))
	assert.Equal(t, "", StripAugmentation(""))
}

func TestCombineDateTime(t *testing.T) {
	got, ok := CombineDateTime("2025-08-17", "18:00", time.UTC)
	assert.True(t, ok)
	assert.Equal(t, "2025-08-17T18:00:00.000Z", got)

	_, ok = CombineDateTime("2024-02-30", "10:00", time.UTC)
	assert.False(t, ok)
	_, ok = CombineDateTime("2024-13-01", "10:00", time.UTC)
	assert.False(t, ok)
}

func TestPrefill_BlockBudgetCountsSeparator(t *testing.T) {
	existing := `Mark said: "Sign it now, please."`
	full := utcEngine().Prefill(incident.Incident{Notes: existing})
	require.NotNil(t, full.Notes)
	appended := strings.TrimPrefix(*full.Notes, existing)
	require.True(t, strings.HasPrefix(appended, "\n\n"))
	size := utf8.RuneCountInString(appended)

	p := utcEngine(WithNotesLimits(0, size)).Prefill(incident.Incident{Notes: existing})
	assert.Nil(t, p.Notes, "block with separator at the limit")

	p = utcEngine(WithNotesLimits(0, size-1)).Prefill(incident.Incident{Notes: existing})
	assert.Nil(t, p.Notes, "block fits only without its separator")

	p = utcEngine(WithNotesLimits(0, size+1)).Prefill(incident.Incident{Notes: existing})
	require.NotNil(t, p.Notes)
	assert.Equal(t, *full.Notes, *p.Notes)
}

package notes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const breakRoomNote = "Case #: A-102. Met with Mark on 8/17/2025 at 6:00 PM in the break room. Witnesses: Dana, Troy."

func TestParseNotesToStructured_BreakRoomScenario(t *testing.T) {
	got := ParseNotesToStructured(breakRoomNote)

	assert.Equal(t, "2025-08-17", got.Date)
	assert.Equal(t, "18:00", got.Time)
	assert.Contains(t, got.Where, "break room")
	assert.Equal(t, []string{"Dana", "Troy"}, got.Witnesses)
	assert.Equal(t, "A-102", got.CaseNumber)
	assert.Equal(t, []string{"Mark"}, got.People)
	assert.Equal(t, "A-102. Met with Mark on 8/17/2025 at 6:00 PM in the break room.", got.Summary)
}

func TestParseNotesToStructured_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t "} {
		got := ParseNotesToStructured(in)
		assert.True(t, got.IsEmpty(), "input %q", in)

		data, err := json.Marshal(got)
		require.NoError(t, err)
		assert.Equal(t, "{}", string(data))
	}
}

func TestParseNotesToStructured_NoMatchesIsEmptyNotError(t *testing.T) {
	got := ParseNotesToStructured("nothing useful here at all")
	assert.Empty(t, got.Date)
	assert.Empty(t, got.Time)
	assert.Empty(t, got.CaseNumber)
	assert.Empty(t, got.Witnesses)
	assert.Empty(t, got.Quotes)
}

func TestParseNotesToStructured_Quotes(t *testing.T) {
	text := `Mark said: "You need to stay late." Later someone shouted "Not my problem".`
	got := ParseNotesToStructured(text)

	require.Len(t, got.Quotes, 2)
	assert.Equal(t, Quote{Speaker: "Mark", Text: "You need to stay late."}, got.Quotes[0])
	assert.Equal(t, Quote{Text: "Not my problem"}, got.Quotes[1])
	assert.Contains(t, got.People, "Mark", "speakers count as people")
}

func TestParseNotesToStructured_IsDeterministic(t *testing.T) {
	first := ParseNotesToStructured(breakRoomNote)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ParseNotesToStructured(breakRoomNote))
	}
}

func TestParsedNotesJSONRoundTrip(t *testing.T) {
	in := ParseNotesToStructured(breakRoomNote + ` Mark said: "Sign it." I asked HR for a copy.`)
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out ParsedNotes
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestQuickScan(t *testing.T) {
	got := QuickScan(breakRoomNote)
	assert.Equal(t, ScanResult{CaseNumber: "A-102", Time: "18:00"}, got)
	assert.Equal(t, ScanResult{}, QuickScan("  "))
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"skips short lines", "Notes\nshort\nmet with the supervisor today", "Met with the supervisor today"},
		{"skips timeline heading", "Timeline of events below\n- spoke to manager about pay", "Spoke to manager about pay"},
		{"skips requests heading", "Requests/Responses: asked for a copy\nthe shift lead yelled at me", "The shift lead yelled at me"},
		{"strips label", "Summary: manager changed my schedule. Then left.", "Manager changed my schedule."},
		{"keeps speaker before quote", `Mark said: "stop filming me"`, `Mark said: "stop filming me"`},
		{"keeps asked prefix", "I asked HR: can you review the footage", "I asked HR: can you review the footage"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.text))
		})
	}
}

package incident

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasDateAndTime(t *testing.T) {
	assert.False(t, Incident{}.HasDate())
	assert.False(t, Incident{}.HasTime())
	assert.True(t, Incident{DateTime: "2025-08-17T18:00:00.000Z"}.HasDate())
	assert.True(t, Incident{DateTime: "2025-08-17T18:00:00.000Z"}.HasTime())
	assert.True(t, Incident{DatePart: "2025-08-17"}.HasDate())
	assert.False(t, Incident{DatePart: "2025-08-17"}.HasTime())
	assert.True(t, Incident{TimePart: "18:00"}.HasTime())
}

func TestPatchApply(t *testing.T) {
	inc := Incident{DatePart: "2025-08-17", Where: "lobby", Notes: "n"}
	p := Patch{
		DateTime: Str("2025-08-17T18:00:00.000Z"),
		DatePart: Cleared(),
		TimePart: Cleared(),
		Who:      Str("Mark"),
	}
	p.Apply(&inc)

	assert.Equal(t, "2025-08-17T18:00:00.000Z", inc.DateTime)
	assert.Empty(t, inc.DatePart)
	assert.Empty(t, inc.TimePart)
	assert.Equal(t, "Mark", inc.Who)
	assert.Equal(t, "lobby", inc.Where, "nil fields leave the record alone")
	assert.Equal(t, "n", inc.Notes)
}

func TestPatchFieldsAndEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())

	p := Patch{Where: Str("x"), DatePart: Cleared()}
	assert.False(t, p.IsEmpty())
	assert.Equal(t, []string{"datePart", "where"}, p.Fields())
}

func TestPatchMerge(t *testing.T) {
	base := Patch{Who: Str("Mark"), Where: Str("lobby")}
	over := Patch{Where: Str("break room"), What: Str("meeting")}

	got := base.Merge(over)
	assert.Equal(t, "Mark", *got.Who)
	assert.Equal(t, "break room", *got.Where)
	assert.Equal(t, "meeting", *got.What)
	assert.Equal(t, "lobby", *base.Where, "merge must not mutate the receiver")
}

func TestPatchJSONKeepsExplicitClears(t *testing.T) {
	p := Patch{DateTime: Str("2025-08-17T18:00:00.000Z"), DatePart: Cleared(), TimePart: Cleared()}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dateTime":"2025-08-17T18:00:00.000Z","datePart":"","timePart":""}`, string(data))

	var back Patch
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.DatePart)
	assert.Equal(t, "", *back.DatePart)
	assert.Nil(t, back.Who)
}

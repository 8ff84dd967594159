package aiorganize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
	"github.com/sbomarketplace/log-nexus-sub000/internal/llm"
	"github.com/sbomarketplace/log-nexus-sub000/internal/notes"
	"github.com/sbomarketplace/log-nexus-sub000/internal/prefill"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProvider struct {
	response string
	err      error
	prompt   string
	opts     llm.CompletionOpts
	calls    int
}

func (f *fakeProvider) Complete(ctx context.Context, prompt string, opts llm.CompletionOpts) (string, error) {
	f.calls++
	f.prompt = prompt
	f.opts = opts
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeProvider) Name() string { return "fake/model" }

const breakRoomNote = "My supervisor yelled at me in the break room. I asked HR to review it."

func TestOrganize_BlankText(t *testing.T) {
	provider := &fakeProvider{response: `{"incidents":[]}`}
	o := New(provider)

	got, source, err := o.Organize(context.Background(), "  \n\t ")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, SourceLocal, source)
	assert.Zero(t, provider.calls, "blank text must not reach the provider")
}

func TestOrganize_NilProviderUsesLocal(t *testing.T) {
	got, source, err := New(nil).Organize(context.Background(), breakRoomNote)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SourceLocal, source)
	assert.Equal(t, notes.CategoryHarassment, got[0].Category)
	assert.Equal(t, "break room", got[0].Where)
	assert.True(t, strings.HasPrefix(got[0].What, "You reported"), "what = %q", got[0].What)
}

func TestOrganize_AIResponse(t *testing.T) {
	provider := &fakeProvider{response: "```json\n" + `{"incidents":[
		{"date":"8/17/2025","time":"6:00 pm","who":"Mark","what":" Mark yelled at you. ","where":"break room",
		 "witnesses":"Dana, Troy","category":"harassment","caseNumber":" A-102 ",
		 "quotes":[{"speaker":"Mark","text":"  Get out  "},{"text":"   "}],"requests":["You asked HR for a copy.",""]},
		{"date":"","who":"  ","quotes":[]},
		{"who":"Dana","category":"bogus"}
	]}` + "\n```"}
	o := New(provider)

	got, source, err := o.Organize(context.Background(), breakRoomNote)
	require.NoError(t, err)
	assert.Equal(t, SourceAI, source)
	require.Len(t, got, 2, "the all-empty entry is dropped")

	first := got[0]
	assert.Equal(t, "2025-08-17", first.Date)
	assert.Equal(t, "18:00", first.Time)
	assert.Equal(t, "Mark yelled at you.", first.What)
	assert.Equal(t, notes.CategoryHarassment, first.Category)
	assert.Equal(t, "A-102", first.CaseNumber)
	assert.Equal(t, []notes.Quote{{Speaker: "Mark", Text: "Get out"}}, first.Quotes)
	assert.Equal(t, []string{"You asked HR for a copy."}, first.Requests)

	assert.Equal(t, "Dana", got[1].Who)
	assert.Empty(t, got[1].Category, "unknown categories are dropped")

	assert.Equal(t, "json", provider.opts.Format)
	assert.NotEmpty(t, provider.opts.System)
	assert.Contains(t, provider.prompt, breakRoomNote)
}

func TestOrganize_BareArrayResponse(t *testing.T) {
	provider := &fakeProvider{response: `Sure: [{"where":"loading dock","category":"Safety"}]`}

	got, source, err := New(provider).Organize(context.Background(), "notes")
	require.NoError(t, err)
	assert.Equal(t, SourceAI, source)
	require.Len(t, got, 1)
	assert.Equal(t, "loading dock", got[0].Where)
	assert.Equal(t, notes.CategorySafety, got[0].Category)
}

func TestOrganize_EmptyAIResultIsNotAnError(t *testing.T) {
	provider := &fakeProvider{response: `{"incidents":[]}`}

	got, source, err := New(provider).Organize(context.Background(), "nothing here")
	require.NoError(t, err)
	assert.Equal(t, SourceAI, source)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestOrganize_FallsBackToLocal(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
	}{
		{"provider error", &fakeProvider{err: errors.New("HTTP 500")}},
		{"invalid json", &fakeProvider{response: "I cannot help with that."}},
		{"missing incidents field", &fakeProvider{response: `{"records":[]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			o := New(tt.provider, WithLogger(zap.New(core)))

			got, source, err := o.Organize(context.Background(), breakRoomNote)
			require.NoError(t, err)
			assert.Equal(t, SourceLocal, source)
			require.Len(t, got, 1)
			assert.Equal(t, "break room", got[0].Where)
			assert.Equal(t, 1, logs.FilterMessage("AI organizer failed, using local parser").Len())
		})
	}
}

func TestOrganize_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{err: context.Canceled}
	got, _, err := New(provider).Organize(ctx, breakRoomNote)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)
}

func TestWithTimeout(t *testing.T) {
	o := New(nil, WithTimeout(time.Second))
	assert.Equal(t, time.Second, o.timeout)

	o = New(nil, WithTimeout(0))
	assert.Equal(t, organizeTimeout, o.timeout)
}

func TestParsed_SplitsNames(t *testing.T) {
	s := StructuredIncident{Who: "Mark, , Dana, Mark", Witnesses: "Troy"}
	p := s.Parsed()
	assert.Equal(t, []string{"Mark", "Dana"}, p.People)
	assert.Equal(t, []string{"Troy"}, p.Witnesses)
}

func TestPatchFor(t *testing.T) {
	engine := prefill.NewEngine(prefill.WithLocation(time.UTC))
	s := StructuredIncident{
		Date:  "2025-08-17",
		Time:  "18:00",
		Who:   "Mark",
		What:  "Mark yelled at you.",
		Where: "break room",
	}

	p := PatchFor(engine, incident.Incident{}, s)
	require.NotNil(t, p.DateTime)
	assert.Equal(t, "2025-08-17T18:00:00.000Z", *p.DateTime)
	require.NotNil(t, p.DatePart)
	assert.Empty(t, *p.DatePart)
	require.NotNil(t, p.What)
	assert.Equal(t, "Mark yelled at you.", *p.What)
	require.NotNil(t, p.Who)
	assert.Equal(t, "Mark", *p.Who)

	p = PatchFor(engine, incident.Incident{What: "Already written", Where: "office"}, s)
	assert.Nil(t, p.What)
	assert.Nil(t, p.Where)
}

func TestPlanFor(t *testing.T) {
	engine := prefill.NewEngine(prefill.WithLocation(time.UTC))
	inc := incident.Incident{Notes: breakRoomNote}

	provider := &fakeProvider{response: `{"incidents":[{"who":"Mark","what":"Mark yelled at you.","where":"break room"}]}`}
	o := New(provider)

	plan, err := o.PlanFor(context.Background(), inc, false)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, plan.Source)
	assert.Nil(t, plan.Incident)
	assert.Zero(t, provider.calls)

	local := plan.Patch(engine, inc)
	require.NotNil(t, local.CategoryOrIssue)
	assert.Equal(t, notes.CategoryHarassment, *local.CategoryOrIssue)

	plan, err = o.PlanFor(context.Background(), inc, true)
	require.NoError(t, err)
	assert.Equal(t, SourceAI, plan.Source)
	require.NotNil(t, plan.Incident)

	p := plan.Patch(engine, inc)
	require.NotNil(t, p.Who)
	assert.Equal(t, "Mark", *p.Who)
	require.NotNil(t, p.What)
	assert.Equal(t, "Mark yelled at you.", *p.What)
	assert.Nil(t, p.CategoryOrIssue, "the AI result had no category")
}

func TestPlanFor_EmptyAIResultOrganizesLocally(t *testing.T) {
	provider := &fakeProvider{response: `{"incidents":[]}`}
	plan, err := New(provider).PlanFor(context.Background(), incident.Incident{Notes: breakRoomNote}, true)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, plan.Source)
	assert.Nil(t, plan.Incident)
}

func TestParseResponse_SanitizesCaseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"A-102", "A-102"},
		{"#A-102!!", "A-102"},
		{"N/A", ""},
		{"none", ""},
		{"  INC 0042 / ", "INC 0042"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseResponse(`{"incidents":[{"what":"x","caseNumber":"` + tt.raw + `"}]}`)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].CaseNumber)
		})
	}
}

func TestPatchFor_SkipsCaseNumberWithoutDigit(t *testing.T) {
	found, err := parseResponse(`{"incidents":[{"what":"Was yelled at","caseNumber":"N/A"}]}`)
	require.NoError(t, err)
	require.Len(t, found, 1)

	p := PatchFor(prefill.NewEngine(prefill.WithLocation(time.UTC)), incident.Incident{}, found[0])
	assert.Nil(t, p.CaseNumber)
	require.NotNil(t, p.What)
	assert.Equal(t, "Was yelled at", *p.What)
}

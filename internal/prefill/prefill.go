// Package prefill merges parsed incident notes into an existing record.
//
// The merge only fills fields that are currently empty. The one exception
// is date/time: when a date and a time are both known they are collapsed
// into a single DateTime and the granular parts are cleared, which restates
// known information rather than discarding it. Notes may gain an appended
// Quotes / Requests block but are never rewritten.
//
// The engine is a pure function of (record snapshot, text) -> patch. Callers
// apply the patch to their store atomically.
package prefill

import (
	"time"

	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
	"github.com/sbomarketplace/log-nexus-sub000/internal/notes"
	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

const (
	// DefaultMaxExistingNotes is the notes length at or above which nothing is appended.
	DefaultMaxExistingNotes = 8000
	// DefaultMaxAugmentation is the block length at or above which the block is dropped.
	DefaultMaxAugmentation = 2000
)

// DateTimeLayout is the UTC instant format stored in Incident.DateTime.
const DateTimeLayout = "2006-01-02T15:04:05.000Z"

// Engine runs the prefill and organize merges.
type Engine struct {
	location         *time.Location
	maxExistingNotes int
	maxAugmentation  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the zone local wall-clock dates and times are read in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithNotesLimits overrides the notes augmentation budgets.
// Non-positive values keep the defaults.
func WithNotesLimits(maxExisting, maxBlock int) Option {
	return func(e *Engine) {
		if maxExisting > 0 {
			e.maxExistingNotes = maxExisting
		}
		if maxBlock > 0 {
			e.maxAugmentation = maxBlock
		}
	}
}

// NewEngine creates an Engine. The default location is time.Local.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		location:         time.Local,
		maxExistingNotes: DefaultMaxExistingNotes,
		maxAugmentation:  DefaultMaxAugmentation,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PrefillIncidentFromNotes parses the record's own notes (or, failing that,
// its What field) and returns the fill-empty patch, using local time.
func PrefillIncidentFromNotes(inc incident.Incident) incident.Patch {
	return NewEngine().Prefill(inc)
}

// Prefill parses SourceText(inc) and merges it into inc.
func (e *Engine) Prefill(inc incident.Incident) incident.Patch {
	return e.PrefillFromText(inc, SourceText(inc))
}

// PrefillFromText merges text that did not come from the record itself,
// such as a fresh paste.
func (e *Engine) PrefillFromText(inc incident.Incident, text string) incident.Patch {
	return e.merge(inc, notes.ParseNotesToStructured(text), keepVoice)
}

// MergeParsed applies the fill-empty policy to notes that were parsed
// elsewhere, such as by a remote organizer.
func (e *Engine) MergeParsed(inc incident.Incident, parsed notes.ParsedNotes) incident.Patch {
	return e.merge(inc, parsed, keepVoice)
}

// SourceText picks the text a record is parsed from: its notes with any
// previously appended Quotes/Requests sections removed, or What when that
// leaves nothing.
func SourceText(inc incident.Incident) string {
	if own := StripAugmentation(inc.Notes); !textutil.IsBlank(own) {
		return own
	}
	return inc.What
}

// merge applies the fill-empty policy field by field.
func (e *Engine) merge(inc incident.Incident, parsed notes.ParsedNotes, voice func(string) string) incident.Patch {
	var p incident.Patch
	if parsed.IsEmpty() {
		return p
	}

	e.mergeDateTime(inc, parsed, &p)

	if inc.Where == "" && parsed.Where != "" {
		p.Where = incident.Str(parsed.Where)
	}
	if inc.CategoryOrIssue == "" && parsed.Category != "" {
		p.CategoryOrIssue = incident.Str(parsed.Category)
	}
	if inc.Who == "" && len(parsed.People) > 0 {
		p.Who = incident.Str(notes.JoinNames(parsed.People))
	}
	if inc.Witnesses == "" && len(parsed.Witnesses) > 0 {
		p.Witnesses = incident.Str(notes.JoinNames(parsed.Witnesses))
	}
	if inc.CaseNumber == "" && parsed.CaseNumber != "" {
		p.CaseNumber = incident.Str(parsed.CaseNumber)
	}

	block := buildAugmentation(inc.Notes, parsed.Quotes, parsed.Requests, voice)
	if notes, ok := e.appendAugmentation(inc.Notes, block); ok {
		p.Notes = incident.Str(notes)
	}

	return p
}

// mergeDateTime fills the date and time and collapses them into DateTime
// once both are known. If the pair does not form a valid instant the
// granular parts are kept instead.
func (e *Engine) mergeDateTime(inc incident.Incident, parsed notes.ParsedNotes, p *incident.Patch) {
	hadDate, hadTime := inc.HasDate(), inc.HasTime()
	if hadDate && hadTime {
		return
	}

	date := inc.DatePart
	if !hadDate && parsed.Date != "" {
		date = parsed.Date
		p.DatePart = incident.Str(parsed.Date)
	}

	clock := inc.TimePart
	newTime := !hadTime && parsed.Time != ""
	if newTime {
		clock = parsed.Time
	}

	// Only collapse when one side is new; a record that already had both parts
	// returned above.
	if date == "" || clock == "" || (p.DatePart == nil && !newTime) {
		if newTime {
			p.TimePart = incident.Str(clock)
		}
		return
	}

	if dt, ok := CombineDateTime(date, clock, e.location); ok {
		p.DateTime = incident.Str(dt)
		p.DatePart = incident.Cleared()
		p.TimePart = incident.Cleared()
		return
	}
	if newTime {
		p.TimePart = incident.Str(clock)
	}
}

// CombineDateTime reads date (YYYY-MM-DD) and clock (HH:mm) as a wall-clock
// time in loc and returns the UTC instant. ok is false when the pair is not
// a real time, e.g. month 13.
func CombineDateTime(date, clock string, loc *time.Location) (string, bool) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(DateTimeLayout), true
}

// Package aiorganize splits free-form notes into structured incidents with
// a remote LLM, falling back to the local rule-based parser whenever the
// provider is missing, fails, or returns something unusable.
package aiorganize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
	"github.com/sbomarketplace/log-nexus-sub000/internal/llm"
	"github.com/sbomarketplace/log-nexus-sub000/internal/notes"
	"github.com/sbomarketplace/log-nexus-sub000/internal/prefill"
	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

const (
	// organizeTimeout bounds one provider call.
	organizeTimeout = 45 * time.Second

	// organizeMaxInput is the most input characters sent to the provider.
	organizeMaxInput = 12000

	// maxIncidents caps how many incidents one response may produce.
	maxIncidents = 20
)

// Source says which path produced a result.
type Source string

const (
	SourceAI    Source = "ai"
	SourceLocal Source = "local"
)

const organizeSystemPrompt = `You organize a worker's personal notes about workplace incidents into structured records.

RULES:
- Only use information present in the notes. Never invent names, dates, or case numbers.
- One record per distinct incident. Most notes describe exactly one.
- date is YYYY-MM-DD, time is HH:mm (24-hour). Leave empty when unknown.
- who and witnesses are comma-separated names.
- category is one of: Harassment, Discrimination, Retaliation, Safety, Wage/Hour, Work Interference, Scheduling, Policy Violation, or empty.
- what is a short neutral description written in the second person ("You reported ...").
- quotes are exact quoted speech with the speaker when known.
- requests are things the writer asked for or reported, in the second person.

Return ONLY a JSON object:
{
  "incidents": [
    {"date": "2025-08-17", "time": "18:00", "who": "Mark", "what": "...", "where": "break room",
     "witnesses": "Dana, Troy", "category": "Harassment", "caseNumber": "A-102",
     "quotes": [{"speaker": "Mark", "text": "..."}], "requests": ["You asked HR for a copy."]}
  ]
}`

// StructuredIncident is one incident pulled out of free text.
type StructuredIncident struct {
	Date       string        `json:"date,omitempty"`
	Time       string        `json:"time,omitempty"`
	Who        string        `json:"who,omitempty"`
	What       string        `json:"what,omitempty"`
	Where      string        `json:"where,omitempty"`
	Witnesses  string        `json:"witnesses,omitempty"`
	Category   string        `json:"category,omitempty"`
	CaseNumber string        `json:"caseNumber,omitempty"`
	Quotes     []notes.Quote `json:"quotes,omitempty"`
	Requests   []string      `json:"requests,omitempty"`
}

// IsEmpty reports whether nothing was extracted.
func (s StructuredIncident) IsEmpty() bool {
	return s.Date == "" && s.Time == "" && s.Who == "" && s.What == "" && s.Where == "" &&
		s.Witnesses == "" && s.Category == "" && s.CaseNumber == "" &&
		len(s.Quotes) == 0 && len(s.Requests) == 0
}

// Parsed converts s into the parser's shape so the prefill merge can apply it.
func (s StructuredIncident) Parsed() notes.ParsedNotes {
	return notes.ParsedNotes{
		Date:       s.Date,
		Time:       s.Time,
		Where:      s.Where,
		People:     splitNames(s.Who),
		Witnesses:  splitNames(s.Witnesses),
		Quotes:     s.Quotes,
		Requests:   s.Requests,
		Category:   s.Category,
		Summary:    s.What,
		CaseNumber: s.CaseNumber,
	}
}

// PatchFor merges s into inc with the fill-empty policy. What is only
// filled when the record has none.
func PatchFor(e *prefill.Engine, inc incident.Incident, s StructuredIncident) incident.Patch {
	p := e.MergeParsed(inc, s.Parsed())
	if inc.What == "" && s.What != "" {
		p = p.Merge(incident.Patch{What: incident.Str(s.What)})
	}
	return p
}

// FromParsed builds a StructuredIncident from the local parser's output.
func FromParsed(p notes.ParsedNotes) StructuredIncident {
	return StructuredIncident{
		Date:       p.Date,
		Time:       p.Time,
		Who:        notes.JoinNames(p.People),
		What:       prefill.ComposeWhat(p),
		Where:      p.Where,
		Witnesses:  notes.JoinNames(p.Witnesses),
		Category:   p.Category,
		CaseNumber: p.CaseNumber,
		Quotes:     p.Quotes,
		Requests:   p.Requests,
	}
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return textutil.DedupePreserveOrder(out)
}

// Organizer runs the AI path with local fallback.
type Organizer struct {
	provider llm.Provider
	logger   *zap.Logger
	timeout  time.Duration
}

// Option configures an Organizer.
type Option func(*Organizer)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *Organizer) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTimeout overrides the per-call provider timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Organizer) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// New creates an Organizer. A nil provider always uses the local parser.
func New(provider llm.Provider, opts ...Option) *Organizer {
	o := &Organizer{provider: provider, logger: zap.NewNop(), timeout: organizeTimeout}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Organize returns the incidents found in text and which path produced
// them. Provider failures are logged and answered locally; the only error
// returned is ctx ending. Text with nothing recognizable gives an empty
// slice.
func (o *Organizer) Organize(ctx context.Context, text string) ([]StructuredIncident, Source, error) {
	if textutil.IsBlank(text) {
		return []StructuredIncident{}, SourceLocal, nil
	}
	if o.provider == nil {
		return Local(text), SourceLocal, nil
	}

	incidents, err := o.remote(ctx, text)
	if err == nil {
		return incidents, SourceAI, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, "", ctxErr
	}
	o.logger.Warn("AI organizer failed, using local parser",
		zap.String("provider", o.provider.Name()),
		zap.Error(err))
	return Local(text), SourceLocal, nil
}

// Local runs the rule-based parser and returns at most one incident.
func Local(text string) []StructuredIncident {
	parsed := notes.ParseNotesToStructured(text)
	if parsed.IsEmpty() {
		return []StructuredIncident{}
	}
	return []StructuredIncident{FromParsed(parsed)}
}

type organizeResponse struct {
	Incidents []StructuredIncident `json:"incidents"`
}

func (o *Organizer) remote(ctx context.Context, text string) ([]StructuredIncident, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	response, err := o.provider.Complete(callCtx, buildPrompt(text), llm.CompletionOpts{
		Temperature: 0.1,
		MaxTokens:   2048,
		Format:      "json",
		System:      organizeSystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM organize call failed: %w", err)
	}

	incidents, err := parseResponse(response)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("AI organizer finished",
		zap.String("provider", o.provider.Name()),
		zap.Int("incidents", len(incidents)),
		zap.Duration("latency", time.Since(start)))
	return incidents, nil
}

func buildPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("NOTES:\n---\n")
	sb.WriteString(textutil.Truncate(strings.TrimSpace(text), organizeMaxInput))
	sb.WriteString("\n---\n")
	return sb.String()
}

// parseResponse accepts {"incidents":[...]} or a bare array, and
// normalizes each entry.
func parseResponse(response string) ([]StructuredIncident, error) {
	raw := llm.ExtractJSON(response)

	var wrapped organizeResponse
	var incidents []StructuredIncident
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &incidents); err != nil {
			return nil, fmt.Errorf("parsing organize response: %w", err)
		}
	} else {
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("parsing organize response: %w", err)
		}
		if wrapped.Incidents == nil {
			return nil, fmt.Errorf("organize response has no incidents field")
		}
		incidents = wrapped.Incidents
	}

	out := make([]StructuredIncident, 0, len(incidents))
	for _, inc := range incidents {
		inc = normalize(inc)
		if inc.IsEmpty() {
			continue
		}
		out = append(out, inc)
		if len(out) == maxIncidents {
			break
		}
	}
	return out, nil
}

// normalize trims every field and coerces date and time into the canonical
// formats, dropping values that cannot be read.
func normalize(s StructuredIncident) StructuredIncident {
	s.Date = notes.ExtractDate(s.Date)
	s.Time = notes.ExtractTime(s.Time)
	s.Who = strings.TrimSpace(s.Who)
	s.What = strings.TrimSpace(s.What)
	s.Where = strings.TrimSpace(s.Where)
	s.Witnesses = strings.TrimSpace(s.Witnesses)
	s.Category = canonicalCategory(s.Category)
	s.CaseNumber = notes.SanitizeCaseNumber(s.CaseNumber)

	var quotes []notes.Quote
	for _, q := range s.Quotes {
		q.Text = strings.TrimSpace(q.Text)
		q.Speaker = strings.TrimSpace(q.Speaker)
		if q.Text != "" {
			quotes = append(quotes, q)
		}
	}
	s.Quotes = quotes

	var requests []string
	for _, r := range s.Requests {
		if r = strings.TrimSpace(r); r != "" {
			requests = append(requests, r)
		}
	}
	s.Requests = requests
	return s
}

// canonicalCategory maps a case-insensitive label onto the fixed set.
// Unknown labels are dropped.
func canonicalCategory(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, c := range notes.Categories() {
		if strings.EqualFold(c, raw) {
			return c
		}
	}
	return ""
}

// Plan is the slow half of organizing a stored record, computed before any
// store transaction is opened.
type Plan struct {
	Source Source
	// Incident is the AI result to merge. Nil means organize locally.
	Incident *StructuredIncident
}

// PlanFor asks the provider about inc's notes when useAI is set. Only the
// first incident found is used for an existing record.
func (o *Organizer) PlanFor(ctx context.Context, inc incident.Incident, useAI bool) (Plan, error) {
	if !useAI || o.provider == nil {
		return Plan{Source: SourceLocal}, nil
	}
	found, source, err := o.Organize(ctx, prefill.SourceText(inc))
	if err != nil {
		return Plan{}, err
	}
	if source != SourceAI || len(found) == 0 {
		return Plan{Source: SourceLocal}, nil
	}
	return Plan{Source: SourceAI, Incident: &found[0]}, nil
}

// Patch computes the organize patch against current, which may be newer
// than the snapshot the plan was made from.
func (p Plan) Patch(e *prefill.Engine, current incident.Incident) incident.Patch {
	if p.Incident == nil {
		return e.OrganizeNotes(current)
	}
	return PatchFor(e, current, *p.Incident)
}

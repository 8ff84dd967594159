// Package incident defines the workplace incident record and the partial
// patch the prefill engine produces for it.
//
// A record carries either a combined DateTime or the granular DatePart and
// TimePart, never both. Patch.Apply preserves that as long as the patch
// itself was built by the prefill engine.
package incident

import (
	"sort"
	"time"
)

// Incident is one logged workplace incident.
type Incident struct {
	ID              string    `json:"id"`
	DateTime        string    `json:"dateTime,omitempty"` // UTC instant, 2006-01-02T15:04:05.000Z
	DatePart        string    `json:"datePart,omitempty"` // YYYY-MM-DD
	TimePart        string    `json:"timePart,omitempty"` // HH:mm, 24-hour
	Who             string    `json:"who,omitempty"`
	What            string    `json:"what,omitempty"`
	Where           string    `json:"where,omitempty"`
	Witnesses       string    `json:"witnesses,omitempty"`
	CategoryOrIssue string    `json:"categoryOrIssue,omitempty"`
	CaseNumber      string    `json:"caseNumber,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasDate reports whether the record already knows the incident date.
func (i Incident) HasDate() bool {
	return i.DateTime != "" || i.DatePart != ""
}

// HasTime reports whether the record already knows the incident time.
func (i Incident) HasTime() bool {
	return i.DateTime != "" || i.TimePart != ""
}

// Patch is a partial update. A nil field leaves the record untouched; a
// pointer to "" clears the field.
type Patch struct {
	DateTime        *string `json:"dateTime,omitempty"`
	DatePart        *string `json:"datePart,omitempty"`
	TimePart        *string `json:"timePart,omitempty"`
	Who             *string `json:"who,omitempty"`
	What            *string `json:"what,omitempty"`
	Where           *string `json:"where,omitempty"`
	Witnesses       *string `json:"witnesses,omitempty"`
	CategoryOrIssue *string `json:"categoryOrIssue,omitempty"`
	CaseNumber      *string `json:"caseNumber,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// Str returns a pointer to s, for building patches.
func Str(s string) *string {
	return &s
}

// Cleared is the value a patch uses to explicitly empty a field.
func Cleared() *string {
	return Str("")
}

func (p *Patch) fields() map[string]**string {
	return map[string]**string{
		"dateTime":        &p.DateTime,
		"datePart":        &p.DatePart,
		"timePart":        &p.TimePart,
		"who":             &p.Who,
		"what":            &p.What,
		"where":           &p.Where,
		"witnesses":       &p.Witnesses,
		"categoryOrIssue": &p.CategoryOrIssue,
		"caseNumber":      &p.CaseNumber,
		"notes":           &p.Notes,
	}
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields lists the JSON names of the fields the patch touches, sorted.
func (p Patch) Fields() []string {
	var out []string
	for name, f := range p.fields() {
		if *f != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Apply writes every non-nil patch field onto inc.
func (p Patch) Apply(inc *Incident) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&inc.DateTime, p.DateTime)
	set(&inc.DatePart, p.DatePart)
	set(&inc.TimePart, p.TimePart)
	set(&inc.Who, p.Who)
	set(&inc.What, p.What)
	set(&inc.Where, p.Where)
	set(&inc.Witnesses, p.Witnesses)
	set(&inc.CategoryOrIssue, p.CategoryOrIssue)
	set(&inc.CaseNumber, p.CaseNumber)
	set(&inc.Notes, p.Notes)
}

// Merge layers other on top of p; fields set in other win.
func (p Patch) Merge(other Patch) Patch {
	out := p
	dst := out.fields()
	for name, f := range other.fields() {
		if *f != nil {
			*dst[name] = *f
		}
	}
	return out
}

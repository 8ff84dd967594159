package prefill

import (
	"strings"

	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
	"github.com/sbomarketplace/log-nexus-sub000/internal/notes"
)

// OrganizeNotes runs the prefill merge and then a voice pass: requests are
// rewritten into second person and an empty What gets a lead sentence built
// from the category archetype and the summary.
func (e *Engine) OrganizeNotes(inc incident.Incident) incident.Patch {
	parsed := notes.ParseNotesToStructured(SourceText(inc))
	p := e.merge(inc, parsed, NeutralizeVoice)
	if inc.What == "" {
		if what := ComposeWhat(parsed); what != "" {
			p = p.Merge(incident.Patch{What: incident.Str(what)})
		}
	}
	return p
}

// OrganizeNotes is Engine.OrganizeNotes with default options.
func OrganizeNotes(inc incident.Incident) incident.Patch {
	return NewEngine().OrganizeNotes(inc)
}

// ComposeWhat builds a neutral description from parsed notes.
func ComposeWhat(parsed notes.ParsedNotes) string {
	var parts []string
	if s := ArchetypeSentence(parsed.Category); s != "" {
		parts = append(parts, s)
	}
	if parsed.Summary != "" {
		parts = append(parts, NeutralizeVoice(parsed.Summary))
	}
	return strings.Join(parts, " ")
}

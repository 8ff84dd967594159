package notes

import "strings"

// Category labels. The set is fixed; callers let the user edit the result.
const (
	CategoryHarassment       = "Harassment"
	CategoryDiscrimination   = "Discrimination"
	CategoryRetaliation      = "Retaliation"
	CategorySafety           = "Safety"
	CategoryWageHour         = "Wage/Hour"
	CategoryWorkInterference = "Work Interference"
	CategoryScheduling       = "Scheduling"
	CategoryPolicy           = "Policy Violation"
)

// categoryRule maps a label to lower-case keyword substrings.
type categoryRule struct {
	label    string
	keywords []string
}

// categoryRules is evaluated top to bottom; the first rule with any keyword
// present wins. There is no scoring.
var categoryRules = []categoryRule{
	{CategoryHarassment, []string{"harass", "hostile", "inappropriate", "sexual", "unwanted", "touched me", "bully", "bullied", "slur", "threaten", "intimidat", "yelled", "screamed"}},
	{CategoryDiscrimination, []string{"discriminat", "racist", "racial", "gender", "pregnan", "disabilit", "religio", "because of my age", "ethnic"}},
	{CategoryRetaliation, []string{"retaliat", "punish", "payback", "written up after", "demoted", "fired after", "after i reported", "after i complained"}},
	{CategorySafety, []string{"safety", "unsafe", "injur", "hazard", "accident", "osha", "ppe", "chemical", "fire exit", "slipped"}},
	{CategoryWageHour, []string{"overtime", "unpaid", "paycheck", "wage", "pay stub", "hours cut", "missed break", "meal break", "off the clock"}},
	{CategoryWorkInterference, []string{"interfer", "sabotag", "micromanag", "took credit", "excluded from", "blocked me from"}},
	{CategoryScheduling, []string{"schedule", "shift", "time off", "vacation request"}},
	{CategoryPolicy, []string{"policy", "handbook", "code of conduct", "violation"}},
}

// InferCategory returns the first matching category label, or "".
func InferCategory(text string) string {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return ""
	}
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label
			}
		}
	}
	return ""
}

// Categories lists every label in rule order.
func Categories() []string {
	out := make([]string, 0, len(categoryRules))
	for _, r := range categoryRules {
		out = append(out, r.label)
	}
	return out
}

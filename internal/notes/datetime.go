package notes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// datePattern turns one regex match into a canonical YYYY-MM-DD string.
type datePattern struct {
	regex *regexp.Regexp
	name  string
	build func(m []string) (string, bool)
}

// datePatterns are tried in priority order, not by position in the text:
// a M/D/Y date anywhere beats an ISO date earlier in the text.
var datePatterns = []*datePattern{
	{
		regex: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`),
		name:  "us_date",
		build: func(m []string) (string, bool) {
			return formatDate(NormalizeYear(m[3]), m[1], m[2])
		},
	},
	{
		regex: regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`),
		name:  "iso_date",
		build: func(m []string) (string, bool) {
			return formatDate(m[1], m[2], m[3])
		},
	},
	{
		regex: regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`),
		name:  "month_name_date",
		build: func(m []string) (string, bool) {
			month, ok := monthNumbers[strings.ToLower(m[1])[:3]]
			if !ok {
				return "", false
			}
			return formatDate(m[3], strconv.Itoa(month), m[2])
		},
	},
}

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var (
	time12RE = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*([ap])\.?m\b\.?`)
	time24RE = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
)

// ExtractDate returns the first date found, as YYYY-MM-DD, or "".
// Month and day are not range-checked here.
func ExtractDate(text string) string {
	for _, p := range datePatterns {
		m := p.regex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if date, ok := p.build(m); ok {
			return date
		}
	}
	return ""
}

// ExtractTime returns the first clock time found, as 24-hour HH:mm, or "".
// A 12-hour time anywhere wins over a bare 24-hour time. Out-of-range
// 24-hour values are clamped to 23:59 rather than rejected.
func ExtractTime(text string) string {
	if m := time12RE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		hour %= 12
		if strings.EqualFold(m[3], "p") {
			hour += 12
		}
		return formatClock(hour, minute)
	}
	if m := time24RE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return formatClock(hour, minute)
	}
	return ""
}

// NormalizeYear expands a 2-digit year with a fixed pivot: 00-69 map to
// 2000-2069 and 70-99 to 1900-1999. Longer years are zero-padded to 4 digits.
func NormalizeYear(year string) string {
	n, err := strconv.Atoi(year)
	if err != nil {
		return year
	}
	if len(year) == 2 {
		if n <= 69 {
			n += 2000
		} else {
			n += 1900
		}
	}
	return fmt.Sprintf("%04d", n)
}

func formatDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	mo, err := strconv.Atoi(month)
	if err != nil {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), true
}

func formatClock(hour, minute int) string {
	hour = clamp(hour, 0, 23)
	minute = clamp(minute, 0, 59)
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package news

import (
	"regexp"
	"strings"
	"time"
)

// SummaryMaxLen bounds every stored summary, ellipsis included.
const SummaryMaxLen = 100

const ellipsis = "..."

var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace runs into single spaces and trims the ends.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Truncate shortens s to at most max runes, ending in "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return string(r[:max])
	}
	return string(r[:max-len(ellipsis)]) + ellipsis
}

// monthName matches an English month name or abbreviation as a whole word.
const monthName = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`

var (
	datePrefixRe = regexp.MustCompile(`(?i)^(posted|published|updated)\s+`)
	isoDateRe    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?`)
	monthDayRe   = regexp.MustCompile(`(?i)\b` + monthName + `\.?\s+(\d{1,2}),?\s+(\d{4})`)
	dayMonthRe   = regexp.MustCompile(`(?i)\b(\d{1,2})\s+` + monthName + `\.?,?\s+(\d{4})`)
	slashDateRe  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
)

type datePattern struct {
	re      *regexp.Regexp
	rewrite func(m []string) string
	layouts []string
}

var datePatterns = []datePattern{
	{
		re:      isoDateRe,
		rewrite: func(m []string) string { return m[0] },
		layouts: []string{time.RFC3339Nano, "2006-01-02T15:04:05Z0700", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02"},
	},
	{
		re:      monthDayRe,
		rewrite: func(m []string) string { return shortMonth(m[1]) + " " + m[2] + ", " + m[3] },
		layouts: []string{"Jan 2, 2006"},
	},
	{
		re:      dayMonthRe,
		rewrite: func(m []string) string { return m[1] + " " + shortMonth(m[2]) + " " + m[3] },
		layouts: []string{"2 Jan 2006"},
	},
	{
		re:      slashDateRe,
		rewrite: func(m []string) string { return m[1] + "/" + m[2] + "/" + m[3] },
		layouts: []string{"1/2/2006"},
	},
}

// shortMonth reduces a matched month name to its three-letter form.
func shortMonth(name string) string {
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:3])
}

var genericLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006/01/02",
	"January 2006",
}

// ParseDate parses a scraped date string. It never fails: anything that
// cannot be understood resolves to now.
func ParseDate(raw string, now time.Time) time.Time {
	s := CleanText(raw)
	s = datePrefixRe.ReplaceAllString(s, "")
	if s == "" {
		return now
	}

	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		candidate := p.rewrite(m)
		for _, layout := range p.layouts {
			if t, err := time.Parse(layout, candidate); err == nil && validDate(t) {
				return t
			}
		}
	}

	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, s); err == nil && validDate(t) {
			return t
		}
	}
	return now
}

func validDate(t time.Time) bool {
	return !t.IsZero() && t.Year() >= 1990
}

// Normalize turns a raw article into a stored article. It reports false when
// the cleaned title or URL is empty.
func Normalize(raw RawArticle, category Category, now time.Time) (Article, bool) {
	title := CleanText(raw.Title)
	url := strings.TrimSpace(raw.URL)
	if title == "" || url == "" {
		return Article{}, false
	}

	published := now
	if raw.PublishedAt != nil && !raw.PublishedAt.IsZero() {
		published = *raw.PublishedAt
	} else if raw.PublishedAtRaw != "" {
		published = ParseDate(raw.PublishedAtRaw, now)
	}

	return Article{
		ID:          ArticleID(url),
		Title:       title,
		Summary:     Truncate(CleanText(raw.SummaryRaw), SummaryMaxLen),
		URL:         url,
		PublishedAt: published,
		Category:    category,
		Source:      raw.SourceName,
		CreatedAt:   now,
	}, true
}

package aitime

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const monthNames = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

// Patterns for date extraction, matched against lower-cased input.
var (
	isoPattern       = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`)
	usPattern        = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthDayPattern  = regexp.MustCompile(`\b(` + monthNames + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)
	dayMonthPattern  = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthNames + `)\b\.?(?:,?\s+(\d{4})\b)?`)
	agoPattern       = regexp.MustCompile(`\b(\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten)\s+(day|week)s?\s+ago\b`)
	lastWeekdayRegex = regexp.MustCompile(`\blast\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	relativeWordRe   = regexp.MustCompile(`\b(today|yesterday|tomorrow)\b`)
)

// relDateOffsets maps relative date keywords to day offsets.
var relDateOffsets = map[string]int{
	"today":     0,
	"yesterday": -1,
	"tomorrow":  1,
}

var wordNumbers = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Parser extracts English date expressions from text.
type Parser struct {
	timezone *time.Location
	now      func() time.Time
}

// NewParser creates a new date parser with the given timezone.
func NewParser(timezone *time.Location) *Parser {
	if timezone == nil {
		timezone = time.UTC
	}
	return &Parser{
		timezone: timezone,
		now:      time.Now,
	}
}

// WithNow returns a parser that uses now as its reference clock.
func (p *Parser) WithNow(now func() time.Time) *Parser {
	return &Parser{
		timezone: p.timezone,
		now:      now,
	}
}

// Extract returns the first date expression found in input, tried in order:
// absolute numeric dates, month-name dates, then relative expressions.
func (p *Parser) Extract(input string) (time.Time, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return time.Time{}, false
	}
	today := p.today()

	for _, try := range []func(string, time.Time) (time.Time, bool){
		p.tryISO,
		p.tryUS,
		p.tryMonthName,
		p.tryRelative,
	} {
		if t, ok := try(text, today); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func (p *Parser) today() time.Time {
	now := p.now().In(p.timezone)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.timezone)
}

func (p *Parser) tryISO(text string, _ time.Time) (time.Time, bool) {
	m := isoPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	return p.date(atoi(m[1]), atoi(m[2]), atoi(m[3]))
}

func (p *Parser) tryUS(text string, _ time.Time) (time.Time, bool) {
	m := usPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	return p.date(atoi(m[3]), atoi(m[1]), atoi(m[2]))
}

func (p *Parser) tryMonthName(text string, today time.Time) (time.Time, bool) {
	if m := monthDayPattern.FindStringSubmatch(text); m != nil {
		if t, ok := p.resolve(monthNumber(m[1]), atoi(m[2]), m[3], today); ok {
			return t, true
		}
	}
	if m := dayMonthPattern.FindStringSubmatch(text); m != nil {
		if t, ok := p.resolve(monthNumber(m[2]), atoi(m[1]), m[3], today); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// resolve builds a date from month and day. Without a year, the most recent
// occurrence on or before today is used.
func (p *Parser) resolve(month, day int, year string, today time.Time) (time.Time, bool) {
	if year != "" {
		return p.date(atoi(year), month, day)
	}
	// Feb 29 may need to look back up to a leap year.
	for y := today.Year(); y >= today.Year()-8; y-- {
		t, ok := p.date(y, month, day)
		if ok && !t.After(today) {
			return t, true
		}
	}
	return time.Time{}, false
}

func (p *Parser) tryRelative(text string, today time.Time) (time.Time, bool) {
	if m := agoPattern.FindStringSubmatch(text); m != nil {
		n, ok := wordNumbers[m[1]]
		if !ok {
			n = atoi(m[1])
		}
		if m[2] == "week" {
			n *= 7
		}
		return today.AddDate(0, 0, -n), true
	}
	if m := lastWeekdayRegex.FindStringSubmatch(text); m != nil {
		diff := int(today.Weekday() - weekdays[m[1]])
		if diff <= 0 {
			diff += 7
		}
		return today.AddDate(0, 0, -diff), true
	}
	if m := relativeWordRe.FindStringSubmatch(text); m != nil {
		return today.AddDate(0, 0, relDateOffsets[m[1]]), true
	}
	return time.Time{}, false
}

// date rejects values time.Date would normalize, such as February 30.
func (p *Parser) date(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.timezone)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func monthNumber(name string) int {
	switch name[:3] {
	case "jan":
		return 1
	case "feb":
		return 2
	case "mar":
		return 3
	case "apr":
		return 4
	case "may":
		return 5
	case "jun":
		return 6
	case "jul":
		return 7
	case "aug":
		return 8
	case "sep":
		return 9
	case "oct":
		return 10
	case "nov":
		return 11
	case "dec":
		return 12
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Package highlight builds short excerpts of item bodies around the words of a search query.
package highlight

import (
	"slices"
	"strings"
	"unicode"
)

const (
	defaultContextChars = 60
	maxContextChars     = 200
	maxBoundaryScan     = 10
	ellipsis            = "..."
)

// Span is a matched query token inside a snippet, in rune offsets.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Highlighter extracts a snippet centered on the first query match.
type Highlighter struct {
	contextChars int
	minTokenLen  int
}

// New returns a Highlighter that keeps contextChars runes on each side of the match.
// Zero selects the default.
func New(contextChars int) *Highlighter {
	if contextChars <= 0 {
		contextChars = defaultContextChars
	}
	if contextChars > maxContextChars {
		contextChars = maxContextChars
	}
	return &Highlighter{contextChars: contextChars, minTokenLen: 2}
}

// Snippet returns an excerpt of text around the first occurrence of any query token,
// with the positions of every token occurrence inside it. Without a match the
// excerpt is the start of text and spans is nil.
func (h *Highlighter) Snippet(text, query string) (string, []Span) {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return "", nil
	}

	matches := findMatches(runes, h.Tokenize(query))
	if len(matches) == 0 {
		end := adjustToBoundary(runes, h.contextChars*2, true)
		snippet := string(runes[:end])
		if end < len(runes) {
			snippet += ellipsis
		}
		return snippet, nil
	}

	start, end := window(matches[0].Start, len(runes), h.contextChars)
	start = adjustToBoundary(runes, start, false)
	end = adjustToBoundary(runes, end, true)

	var b strings.Builder
	prefix := 0
	if start > 0 {
		b.WriteString(ellipsis)
		prefix = len([]rune(ellipsis))
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString(ellipsis)
	}

	spans := make([]Span, 0, len(matches))
	for _, m := range matches {
		if m.Start >= start && m.End <= end {
			spans = append(spans, Span{
				Start: m.Start - start + prefix,
				End:   m.End - start + prefix,
				Text:  m.Text,
			})
		}
	}
	return b.String(), spans
}

// Tokenize splits a query into lower-cased, de-duplicated tokens. Han characters
// are single tokens; other words shorter than two runes are dropped.
func (h *Highlighter) Tokenize(query string) []string {
	var (
		tokens []string
		word   strings.Builder
		seen   = make(map[string]bool)
	)
	add := func(token string, minLen int) {
		if len([]rune(token)) >= minLen && !seen[token] {
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	flush := func() {
		if word.Len() > 0 {
			add(strings.ToLower(word.String()), h.minTokenLen)
			word.Reset()
		}
	}

	for _, r := range query {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			add(string(r), 1)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// findMatches returns non-overlapping token occurrences ordered by position.
func findMatches(runes []rune, tokens []string) []Span {
	var matches []Span
	for _, token := range tokens {
		tokenRunes := []rune(token)
		n := len(tokenRunes)
		for i := 0; i+n <= len(runes); i++ {
			window := string(runes[i : i+n])
			if strings.ToLower(window) == token {
				matches = append(matches, Span{Start: i, End: i + n, Text: window})
			}
		}
	}
	if len(matches) <= 1 {
		return matches
	}

	slices.SortFunc(matches, func(a, b Span) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return b.End - a.End
	})
	result := matches[:1]
	for _, m := range matches[1:] {
		if m.Start >= result[len(result)-1].End {
			result = append(result, m)
		}
	}
	return result
}

// window centers [start, end) on center, shifting it to stay inside [0, length).
func window(center, length, contextChars int) (int, int) {
	start, end := center-contextChars, center+contextChars
	if start < 0 {
		end -= start
		start = 0
	}
	if end > length {
		start -= end - length
		end = length
	}
	return max(start, 0), end
}

// adjustToBoundary moves pos to a nearby separator so words are not cut.
func adjustToBoundary(runes []rune, pos int, forward bool) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(runes) {
		return len(runes)
	}
	if forward {
		for i := pos; i < len(runes) && i < pos+maxBoundaryScan; i++ {
			if isSeparator(runes[i]) {
				return i
			}
		}
		return pos
	}
	for i := pos - 1; i >= 0 && i >= pos-maxBoundaryScan; i-- {
		if isSeparator(runes[i]) {
			return i + 1
		}
	}
	return pos
}

func isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '.', ',', '!', '?', ';', ':', '。', '，', '、', '；', '：', '！', '？', '…':
		return true
	}
	return false
}

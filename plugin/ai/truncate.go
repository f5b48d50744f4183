package ai

import "unicode/utf8"

// TruncateText cuts text to at most maxBytes bytes without splitting a UTF-8
// sequence. The result is never shorter than maxBytes-utf8.UTFMax bytes; within
// that slack the cut moves back to the last ASCII whitespace, if any.
// A non-positive budget returns text unchanged.
func TruncateText(text string, maxBytes int) string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}

	// Valid UTF-8 needs at most UTFMax-1 steps back; invalid input stops there too.
	cut := maxBytes
	lowest := max(maxBytes-utf8.UTFMax, 0)
	for cut > lowest && !utf8.RuneStart(text[cut]) {
		cut--
	}

	floor := max(maxBytes-utf8.UTFMax, 1)
	for i := cut; i >= floor; i-- {
		if isASCIISpace(text[i]) {
			return text[:i]
		}
	}
	return text[:cut]
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

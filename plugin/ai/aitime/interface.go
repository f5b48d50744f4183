// Package aitime extracts calendar dates from free-text queries.
package aitime

import (
	"context"
	"time"
)

// DateParser finds the calendar date a query refers to.
type DateParser interface {
	// ParseDate returns midnight of the referenced date in the parser's
	// time zone, or nil when the text mentions no date.
	ParseDate(ctx context.Context, text string) (*time.Time, error)
}

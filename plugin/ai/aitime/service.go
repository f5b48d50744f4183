package aitime

import (
	"context"
	"fmt"
	"time"
)

// Service implements DateParser with rule-based extraction.
type Service struct {
	timezone *time.Location
	now      func() time.Time
}

// NewService creates a date service for the named IANA zone. Unknown zones fall back to UTC.
func NewService(timezone string) *Service {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Service{
		timezone: loc,
		now:      time.Now,
	}
}

// WithClock returns a copy of the service that reads the time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	return &Service{timezone: s.timezone, now: now}
}

// Location returns the zone dates are resolved in.
func (s *Service) Location() *time.Location {
	return s.timezone
}

// ParseDate extracts a date from text. A panic inside the parser is returned as an error.
func (s *Service) ParseDate(ctx context.Context, text string) (result *time.Time, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("date parser panic: %v", r)
		}
	}()

	t, ok := NewParser(s.timezone).WithNow(s.now).Extract(text)
	if !ok {
		return nil, nil
	}
	return &t, nil
}

var _ DateParser = (*Service)(nil)

package aitime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday, 2024-06-12 15:30 UTC.
var fixedNow = time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)

func fixedParser() *Parser {
	return NewParser(time.UTC).WithNow(func() time.Time { return fixedNow })
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParser_Extract(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"notes from 2024-03-05", day(2024, 3, 5)},
		{"what happened on 2023/12/31?", day(2023, 12, 31)},
		{"meeting on 3/5/2024", day(2024, 3, 5)},
		{"What did I save on March 5th, 2024", day(2024, 3, 5)},
		{"Mar 5 2023 standup", day(2023, 3, 5)},
		{"on the 5th of March 2022", day(2022, 3, 5)},
		{"5 March", day(2024, 3, 5)},
		{"budget meeting march 5", day(2024, 3, 5)},
		{"sept. 14", day(2023, 9, 14)},
		{"december 25", day(2023, 12, 25)},
		{"june 12", day(2024, 6, 12)},
		{"what did I write today", day(2024, 6, 12)},
		{"Yesterday's notes", day(2024, 6, 11)},
		{"plans for tomorrow", day(2024, 6, 13)},
		{"3 days ago", day(2024, 6, 9)},
		{"a week ago", day(2024, 6, 5)},
		{"two weeks ago", day(2024, 5, 29)},
		{"last monday", day(2024, 6, 10)},
		{"last wednesday", day(2024, 6, 5)},
		{"last friday", day(2024, 6, 7)},
	}

	p := fixedParser()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := p.Extract(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParser_NoDate(t *testing.T) {
	p := fixedParser()
	for _, input := range []string{
		"",
		"budget meeting",
		"march madness",
		"2024 roadmap",
		"february 30",
		"2024-13-01",
		"room 12/40",
	} {
		_, ok := p.Extract(input)
		assert.False(t, ok, input)
	}
}

func TestParser_LeapDayWithoutYear(t *testing.T) {
	got, ok := fixedParser().Extract("feb 29")
	require.True(t, ok)
	assert.Equal(t, day(2024, 2, 29), got)

	p := NewParser(time.UTC).WithNow(func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) })
	got, ok = p.Extract("feb 29")
	require.True(t, ok)
	assert.Equal(t, day(2024, 2, 29), got)
}

func TestParser_UsesTimezoneForToday(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 15:30 UTC is already the 13th in Tokyo.
	got, ok := NewParser(tokyo).WithNow(func() time.Time { return fixedNow }).Extract("today")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 13, 0, 0, 0, 0, tokyo), got)
}

func TestService_ParseDate(t *testing.T) {
	svc := NewService("UTC").WithClock(func() time.Time { return fixedNow })
	ctx := context.Background()

	got, err := svc.ParseDate(ctx, "notes from March 5th")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, day(2024, 3, 5), *got)

	got, err = svc.ParseDate(ctx, "budget meeting")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, time.UTC, svc.Location())
}

func TestService_UnknownZoneFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, NewService("Mars/Olympus").Location())
}

func TestService_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService("UTC").ParseDate(ctx, "today")
	require.ErrorIs(t, err, context.Canceled)
}

func TestService_RecoversPanic(t *testing.T) {
	svc := NewService("UTC").WithClock(func() time.Time { panic("clock exploded") })

	got, err := svc.ParseDate(context.Background(), "today")
	require.Error(t, err)
	assert.Nil(t, got)
}

package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2026, time.January, d, 0, 0, 0, 0, time.UTC)
}

func mustRange(t *testing.T, start, end time.Time) DateRange {
	t.Helper()
	r, err := New(start, end)
	require.NoError(t, err)
	return r
}

func TestNewRejectsEmptyAndInvertedWindows(t *testing.T) {
	_, err := New(day(10), day(10))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = New(day(12), day(10))
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestNewNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	r, err := New(time.Date(2026, 1, 10, 12, 0, 0, 0, loc), time.Date(2026, 1, 11, 12, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, r.Start.Location())
	assert.Equal(t, time.UTC, r.End.Location())
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	a := mustRange(t, day(10), day(15))

	// back-to-back windows share an instant but not a day
	assert.False(t, a.Overlaps(mustRange(t, day(15), day(20))))
	assert.False(t, a.Overlaps(mustRange(t, day(5), day(10))))

	assert.True(t, a.Overlaps(mustRange(t, day(14), day(16))))
	assert.True(t, a.Overlaps(mustRange(t, day(11), day(12))))
	assert.True(t, a.Overlaps(mustRange(t, day(5), day(25))))
}

func TestContainsExcludesEnd(t *testing.T) {
	r := mustRange(t, day(10), day(15))
	assert.True(t, r.Contains(day(10)))
	assert.True(t, r.Contains(day(14)))
	assert.False(t, r.Contains(day(15)))
	assert.False(t, r.Contains(day(9)))
}

func TestDaysRoundsPartialDaysUp(t *testing.T) {
	assert.Equal(t, 5, mustRange(t, day(10), day(15)).Days())

	// 25 hours bills as two days
	r := mustRange(t, day(10), day(11).Add(time.Hour))
	assert.Equal(t, 2, r.Days())

	// anything shorter than a day still bills as one
	short := mustRange(t, day(10), day(10).Add(2*time.Hour))
	assert.Equal(t, 1, short.Days())
}

package daterange

import (
	"errors"
	"time"
)

var ErrInvalidWindow = errors.New("daterange: end must be strictly after start")

// DateRange is a half-open rental window [Start, End). A window ending at
// instant T and another starting at T do not overlap, which models a
// same-day turnaround between two bookings.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// New validates and normalizes a window to UTC.
func New(start, end time.Time) (DateRange, error) {
	start = start.UTC()
	end = end.UTC()
	if !end.After(start) {
		return DateRange{}, ErrInvalidWindow
	}
	return DateRange{Start: start, End: end}, nil
}

// Overlaps reports half-open interval intersection with other.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

// Contains reports whether the instant falls inside the window.
func (r DateRange) Contains(at time.Time) bool {
	at = at.UTC()
	return !at.Before(r.Start) && at.Before(r.End)
}

// Days returns the whole calendar-day span, rounding any partial day up
// and never returning less than one.
func (r DateRange) Days() int {
	span := r.End.Sub(r.Start)
	days := int(span / (24 * time.Hour))
	if span%(24*time.Hour) > 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// Duration returns the raw span of the window.
func (r DateRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/domain/shared/daterange"
)

func window(t *testing.T, start time.Time, d time.Duration) daterange.DateRange {
	t.Helper()
	w, err := daterange.New(start, start.Add(d))
	require.NoError(t, err)
	return w
}

func TestBillableUnits(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		span       time.Duration
		rentalType RentalType
		want       int
	}{
		{"one day hourly", 24 * time.Hour, Hourly, 24},
		{"25 hours hourly bills two full days", 25 * time.Hour, Hourly, 48},
		{"five days daily", 5 * 24 * time.Hour, Daily, 5},
		{"partial day rounds up", 5*24*time.Hour + time.Minute, Daily, 6},
		{"exactly one week", 7 * 24 * time.Hour, Weekly, 1},
		{"eight days bills two weeks", 8 * 24 * time.Hour, Weekly, 2},
		{"thirty days is one month", 30 * 24 * time.Hour, Monthly, 1},
		{"thirty one days bills two months", 31 * 24 * time.Hour, Monthly, 2},
		{"366 days bills two years", 366 * 24 * time.Hour, Yearly, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BillableUnits(window(t, start, tc.span), tc.rentalType)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBillableUnitsUnknownType(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := BillableUnits(window(t, start, 24*time.Hour), RentalType("FORTNIGHTLY"))
	assert.ErrorIs(t, err, ErrUnknownRentalType)
}

package renewal

import (
	"testing"

	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func footballCalendar(t *testing.T) Calendar {
	t.Helper()
	winter, err := ParseSeason("Winter", "09-01", "03-31")
	require.NoError(t, err)
	summer, err := ParseSeason("Summer", "04-15", "08-15")
	require.NoError(t, err)
	return NewCalendar(winter, summer)
}

func TestWindowFor(t *testing.T) {
	cal := footballCalendar(t)

	cases := []struct {
		name   string
		day    domain.Date
		season string
		start  domain.Date
		end    domain.Date
	}{
		{"start of wrapping season", domain.NewDate(2025, 9, 1), "Winter", domain.NewDate(2025, 9, 1), domain.NewDate(2026, 3, 31)},
		{"inside wrapping season after new year", domain.NewDate(2026, 2, 10), "Winter", domain.NewDate(2025, 9, 1), domain.NewDate(2026, 3, 31)},
		{"last day of season", domain.NewDate(2026, 8, 15), "Summer", domain.NewDate(2026, 4, 15), domain.NewDate(2026, 8, 15)},
		{"between seasons picks next", domain.NewDate(2026, 4, 1), "Summer", domain.NewDate(2026, 4, 15), domain.NewDate(2026, 8, 15)},
		{"gap before winter", domain.NewDate(2026, 8, 20), "Winter", domain.NewDate(2026, 9, 1), domain.NewDate(2027, 3, 31)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			window, season, err := cal.WindowFor(tc.day)
			require.NoError(t, err)
			assert.Equal(t, tc.season, season.Name)
			assert.Equal(t, tc.start, window.Start)
			assert.Equal(t, tc.end, window.End)
		})
	}
}

func TestWindowForWithoutSeasons(t *testing.T) {
	_, _, err := NewCalendar().WindowFor(domain.NewDate(2026, 1, 1))
	assert.ErrorIs(t, err, ErrNoSeason)
}

func TestParseMonthDay(t *testing.T) {
	md, err := ParseMonthDay("09-01")
	require.NoError(t, err)
	assert.Equal(t, "09-01", md.String())

	for _, raw := range []string{"", "9", "13-01", "02-29", "04-31", "aa-bb"} {
		_, err := ParseMonthDay(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, raw)
	}
}

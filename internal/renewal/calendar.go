package renewal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
)

var ErrNoSeason = errors.New("no season configured")

// MonthDay is a yearly recurring calendar day.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay reads "MM-DD".
func ParseMonthDay(raw string) (MonthDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return MonthDay{}, fmt.Errorf("%w: season day %q must be MM-DD", domain.ErrInvalidInput, raw)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil {
		return MonthDay{}, fmt.Errorf("%w: season day %q must be MM-DD", domain.ErrInvalidInput, raw)
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return MonthDay{}, fmt.Errorf("%w: season day %q must be MM-DD", domain.ErrInvalidInput, raw)
	}
	md := MonthDay{Month: time.Month(month), Day: day}
	if month < 1 || month > 12 || day < 1 || time.Date(2001, md.Month, day, 0, 0, 0, 0, time.UTC).Day() != day {
		return MonthDay{}, fmt.Errorf("%w: season day %q does not exist every year", domain.ErrInvalidInput, raw)
	}
	return md, nil
}

func (md MonthDay) before(other MonthDay) bool {
	if md.Month != other.Month {
		return md.Month < other.Month
	}
	return md.Day < other.Day
}

func (md MonthDay) in(year int) domain.Date {
	return domain.NewDate(year, md.Month, md.Day)
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// Season is a named yearly window. A window whose end falls before its start
// in the calendar wraps into the following year.
type Season struct {
	Name  string
	Start MonthDay
	End   MonthDay
}

// ParseSeason builds a Season from "MM-DD" bounds.
func ParseSeason(name, start, end string) (Season, error) {
	from, err := ParseMonthDay(start)
	if err != nil {
		return Season{}, fmt.Errorf("season %q start: %w", name, err)
	}
	to, err := ParseMonthDay(end)
	if err != nil {
		return Season{}, fmt.Errorf("season %q end: %w", name, err)
	}
	return Season{Name: name, Start: from, End: to}, nil
}

// window returns the occurrence of the season that starts in year.
func (s Season) window(year int) domain.Period {
	endYear := year
	if s.End.before(s.Start) {
		endYear++
	}
	return domain.Period{Start: s.Start.in(year), End: s.End.in(endYear)}
}

// Calendar resolves the season window for a seasonal renewal.
type Calendar struct {
	seasons []Season
}

// NewCalendar returns a calendar over seasons.
func NewCalendar(seasons ...Season) Calendar {
	return Calendar{seasons: append([]Season(nil), seasons...)}
}

// Seasons returns the configured seasons.
func (c Calendar) Seasons() []Season {
	return append([]Season(nil), c.seasons...)
}

// WindowFor returns the season window containing day or, when day falls
// between seasons, the next window to open after it.
func (c Calendar) WindowFor(day domain.Date) (domain.Period, Season, error) {
	if len(c.seasons) == 0 {
		return domain.Period{}, Season{}, ErrNoSeason
	}

	var (
		next       domain.Period
		nextSeason Season
		found      bool
	)
	for _, season := range c.seasons {
		for year := day.Year() - 1; year <= day.Year()+1; year++ {
			window := season.window(year)
			if window.Contains(day) {
				return window, season, nil
			}
			if window.Start.After(day.Time) && (!found || window.Start.Before(next.Start.Time)) {
				next, nextSeason, found = window, season, true
			}
		}
	}
	return next, nextSeason, nil
}

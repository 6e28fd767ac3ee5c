package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeAt(t *testing.T) {
	tests := []struct {
		name string
		dob  time.Time
		ref  time.Time
		want Age
	}{
		{"day before birthday", day(2010, 6, 15), day(2025, 6, 14), 14},
		{"on birthday", day(2010, 6, 15), day(2025, 6, 15), 15},
		{"day after birthday", day(2010, 6, 15), day(2025, 6, 16), 15},
		{"earlier month", day(2010, 6, 15), day(2025, 5, 30), 14},
		{"leap day before march", day(2008, 2, 29), day(2025, 2, 28), 16},
		{"leap day on march first", day(2008, 2, 29), day(2025, 3, 1), 17},
		{"born today", day(2025, 1, 1), day(2025, 1, 1), 0},
		{"future birth", day(2030, 1, 1), day(2025, 1, 1), UnknownAge},
		{"zero dob", time.Time{}, day(2025, 1, 1), UnknownAge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeAt(tt.dob, tt.ref))
		})
	}
}

func TestAgeFromString(t *testing.T) {
	ref := day(2025, 6, 14)

	assert.Equal(t, Age(14), AgeFromString("2010-06-15", ref))
	assert.Equal(t, Age(14), AgeFromString("2010-06-15T00:00:00Z", ref))
	assert.Equal(t, UnknownAge, AgeFromString("", ref))
	assert.Equal(t, UnknownAge, AgeFromString("15/06/2010", ref))
	assert.Equal(t, UnknownAge, AgeFromString("not a date", ref))
	assert.False(t, AgeFromString("", ref).Known())
}

// manualAge counts whole birthdays with calendar arithmetic instead of the
// month/day comparison.
func manualAge(dob, ref time.Time) Age {
	years := 0
	for !dob.AddDate(years+1, 0, 0).After(ref) {
		years++
	}
	return Age(years)
}

func TestAgeAtMatchesCalendarArithmetic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dob := day(1920, 1, 1).AddDate(0, 0, rapid.IntRange(0, 365*100).Draw(t, "dobOffset"))
		ref := dob.AddDate(0, 0, rapid.IntRange(0, 365*90).Draw(t, "refOffset"))

		got := AgeAt(dob, ref)
		want := manualAge(dob, ref)
		if got != want {
			t.Fatalf("AgeAt(%s, %s) = %d, want %d", dob.Format(DateLayout), ref.Format(DateLayout), got, want)
		}
	})
}

func TestAgeBoundsContains(t *testing.T) {
	junior := AgeBounds{Min: IntPtr(5), Max: IntPtr(17)}
	senior := AgeBounds{Min: IntPtr(18)}

	assert.True(t, junior.Contains(14))
	assert.True(t, junior.Contains(5))
	assert.True(t, junior.Contains(17))
	assert.False(t, junior.Contains(18))
	assert.False(t, senior.Contains(14))
	assert.True(t, senior.Contains(80))
	assert.False(t, junior.Contains(UnknownAge))
	assert.True(t, AgeBounds{}.Contains(UnknownAge))
}

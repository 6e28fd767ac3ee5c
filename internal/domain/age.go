package domain

import (
	"strings"
	"time"
)

// Age is a whole number of years. UnknownAge marks a missing or unusable date of birth.
type Age int

// UnknownAge is returned when the date of birth is missing, unparseable or in the future.
// It fails every bounded age check.
const UnknownAge Age = -1

var dateOfBirthLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
}

// Known reports whether the age was computed from a usable date of birth.
func (a Age) Known() bool {
	return a >= 0
}

// AgeAt computes the calendar age on ref: the year difference, minus one when
// (ref.month, ref.day) sorts before (dob.month, dob.day). A reference date equal
// to the birthday counts as the birthday having occurred.
func AgeAt(dob, ref time.Time) Age {
	if dob.IsZero() {
		return UnknownAge
	}
	dy, dm, dd := dob.Date()
	ry, rm, rd := ref.Date()

	years := ry - dy
	if rm < dm || (rm == dm && rd < dd) {
		years--
	}
	if years < 0 {
		return UnknownAge
	}
	return Age(years)
}

// AgeFromString parses a stored date of birth and computes the age on ref.
func AgeFromString(dob string, ref time.Time) Age {
	parsed, ok := ParseDateOfBirth(dob)
	if !ok {
		return UnknownAge
	}
	return AgeAt(parsed, ref)
}

// ParseDateOfBirth accepts YYYY-MM-DD and a few timestamp layouts.
func ParseDateOfBirth(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateOfBirthLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

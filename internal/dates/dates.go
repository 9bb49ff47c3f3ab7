// Package dates parses the flexible ДД.ММ[.ГГГГ] input format and enumerates
// class days. The rest day is Sunday: Monday through Saturday count.
package dates

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const CanonicalLayout = "02.01.2006"

var (
	ErrInvalidDateFormat   = errors.New("invalid date format")
	ErrInvalidCalendarDate = errors.New("invalid calendar date")
)

var dateShape = regexp.MustCompile(`^\d{1,2}\.\d{1,2}(\.\d{4})?$`)

// Parse converts ДД.ММ or ДД.ММ.ГГГГ into a date. A two-part input infers the
// year: the current one, or the next one if that date is already in the past
// relative to now.
func Parse(text string, now time.Time) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(text), ".")
	if len(parts) != 2 && len(parts) != 3 {
		return time.Time{}, ErrInvalidDateFormat
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, ErrInvalidDateFormat
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, ErrInvalidDateFormat
	}

	var year int
	if len(parts) == 3 {
		year, err = strconv.Atoi(parts[2])
		if err != nil {
			return time.Time{}, ErrInvalidDateFormat
		}
	} else {
		year = now.Year()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if d, err := makeDate(year, month, day); err != nil {
			return time.Time{}, err
		} else if d.Before(today) {
			year++
		}
	}

	return makeDate(year, month, day)
}

// makeDate builds a date and rejects inputs time.Date would silently
// normalize, e.g. 31.02 rolling over into March.
func makeDate(year, month, day int) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, ErrInvalidCalendarDate
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != time.Month(month) {
		return time.Time{}, ErrInvalidCalendarDate
	}
	return d, nil
}

// ValidateAndNormalize gates the input shape, parses it and returns the date
// together with its canonical ДД.ММ.ГГГГ text.
func ValidateAndNormalize(text string, now time.Time) (time.Time, string, error) {
	text = strings.TrimSpace(text)
	if !dateShape.MatchString(text) {
		return time.Time{}, "", ErrInvalidDateFormat
	}

	d, err := Parse(text, now)
	if err != nil {
		return time.Time{}, "", err
	}
	return d, Canonical(d), nil
}

// Canonical renders a date as zero-padded ДД.ММ.ГГГГ.
func Canonical(t time.Time) string {
	return t.Format(CanonicalLayout)
}

// ParseCanonical parses canonical ДД.ММ.ГГГГ text.
func ParseCanonical(s string) (time.Time, error) {
	t, err := time.Parse(CanonicalLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDateFormat
	}
	return t, nil
}

// ClassDays walks daysAhead calendar days forward from start and keeps the
// class days. The bound is calendar days scanned, not class days found.
func ClassDays(start time.Time, daysAhead int) []time.Time {
	var days []time.Time
	current := start
	for i := 0; i < daysAhead; i++ {
		if IsClassDay(current) {
			days = append(days, current)
		}
		current = current.AddDate(0, 0, 1)
	}
	return days
}

// ClassDaysInRange returns the class days in [start, end] inclusive.
func ClassDaysInRange(start, end time.Time) []time.Time {
	var days []time.Time
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		if IsClassDay(current) {
			days = append(days, current)
		}
	}
	return days
}

// IsClassDay reports whether t is not the weekly rest day.
func IsClassDay(t time.Time) bool {
	return t.Weekday() != time.Sunday
}

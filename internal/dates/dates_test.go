package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseFullDate(t *testing.T) {
	now := date(2025, time.March, 10)

	d, err := Parse("15.02.2026", now)
	require.NoError(t, err)
	assert.Equal(t, date(2026, time.February, 15), d)
}

func TestParseShortDateFuture(t *testing.T) {
	now := date(2025, time.March, 10)

	// Дата впереди — текущий год
	d, err := Parse("15.04", now)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.April, 15), d)
}

func TestParseShortDatePastRollsToNextYear(t *testing.T) {
	now := date(2025, time.March, 10)

	d, err := Parse("15.02", now)
	require.NoError(t, err)
	assert.Equal(t, date(2026, time.February, 15), d)
}

func TestParseShortDateTodayStaysCurrentYear(t *testing.T) {
	now := time.Date(2025, time.March, 10, 23, 45, 0, 0, time.UTC)

	d, err := Parse("10.03", now)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 10), d)
}

func TestParseUnpaddedInput(t *testing.T) {
	now := date(2025, time.March, 10)

	d, err := Parse("5.4", now)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.April, 5), d)
}

func TestParseRejectsBadShapes(t *testing.T) {
	now := date(2025, time.March, 10)

	for _, input := range []string{"", "завтра", "15/02", "15.02.26", "2026.02.15", "15.02.2026 ура"} {
		_, err := Parse(input, now)
		assert.ErrorIs(t, err, ErrInvalidDateFormat, "input %q", input)
	}
}

func TestParseRejectsImpossibleDates(t *testing.T) {
	now := date(2025, time.March, 10)

	for _, input := range []string{"31.02", "32.01", "15.13", "00.05", "29.02.2025"} {
		_, err := Parse(input, now)
		assert.ErrorIs(t, err, ErrInvalidCalendarDate, "input %q", input)
	}
}

func TestParseLeapDay(t *testing.T) {
	now := date(2025, time.March, 10)

	d, err := Parse("29.02.2024", now)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.February, 29), d)
}

func TestValidateAndNormalize(t *testing.T) {
	now := date(2025, time.March, 10)

	_, canonical, err := ValidateAndNormalize(" 5.4 ", now)
	require.NoError(t, err)
	assert.Equal(t, "05.04.2025", canonical)
}

func TestCanonicalRoundTrip(t *testing.T) {
	d := date(2026, time.February, 15)
	parsed, err := ParseCanonical(Canonical(d))
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestClassDaysSkipsSundays(t *testing.T) {
	// 2025-03-10 — понедельник
	start := date(2025, time.March, 10)

	days := ClassDays(start, 7)
	require.Len(t, days, 6)
	for _, d := range days {
		assert.NotEqual(t, time.Sunday, d.Weekday())
	}
	assert.Equal(t, start, days[0])
	assert.Equal(t, date(2025, time.March, 15), days[5])
}

func TestClassDaysBoundIsCalendarDays(t *testing.T) {
	// Окно в 14 календарных дней содержит ровно 12 учебных
	start := date(2025, time.March, 10)
	days := ClassDays(start, 14)
	assert.Len(t, days, 12)
}

func TestClassDaysInRangeInclusive(t *testing.T) {
	// Суббота..понедельник: воскресенье выпадает
	start := date(2025, time.March, 15)
	end := date(2025, time.March, 17)

	days := ClassDaysInRange(start, end)
	require.Len(t, days, 2)
	assert.Equal(t, start, days[0])
	assert.Equal(t, end, days[1])
}

func TestClassDaysInRangeSingleDay(t *testing.T) {
	d := date(2025, time.March, 12)
	days := ClassDaysInRange(d, d)
	require.Len(t, days, 1)
	assert.Equal(t, d, days[0])
}

func TestIsClassDay(t *testing.T) {
	assert.True(t, IsClassDay(date(2025, time.March, 15)))  // суббота
	assert.False(t, IsClassDay(date(2025, time.March, 16))) // воскресенье
}

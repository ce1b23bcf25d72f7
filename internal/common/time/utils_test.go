package time

import (
	"testing"
	stdtime "time"

	"github.com/stretchr/testify/assert"
)

func TestGetCurrentDate(t *testing.T) {
	t.Run("should_return_current_date_in_correct_format_when_called", func(t *testing.T) {
		result := GetCurrentDate()

		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, result)

		parsed, err := stdtime.Parse("2006-01-02", result)
		assert.NoError(t, err)
		assert.True(t, parsed.Year() >= 2020)
	})
}

func TestFormatDate(t *testing.T) {
	t.Run("should_format_date_when_given_time", func(t *testing.T) {
		date := stdtime.Date(2026, 3, 15, 14, 30, 0, 0, stdtime.UTC)
		assert.Equal(t, "2026-03-15", FormatDate(date))
	})
}

func TestParseDate(t *testing.T) {
	t.Run("should_parse_valid_date_string", func(t *testing.T) {
		parsed, err := ParseDate("2026-03-15")
		assert.NoError(t, err)
		assert.Equal(t, 2026, parsed.Year())
		assert.Equal(t, stdtime.March, parsed.Month())
		assert.Equal(t, 15, parsed.Day())
	})

	t.Run("should_return_error_for_invalid_date_string", func(t *testing.T) {
		_, err := ParseDate("15/03/2026")
		assert.Error(t, err)
	})
}

func TestIsSameDay(t *testing.T) {
	t.Run("should_return_true_for_same_day_different_times", func(t *testing.T) {
		t1 := stdtime.Date(2026, 3, 15, 1, 0, 0, 0, stdtime.UTC)
		t2 := stdtime.Date(2026, 3, 15, 23, 59, 0, 0, stdtime.UTC)
		assert.True(t, IsSameDay(t1, t2))
	})

	t.Run("should_return_false_for_different_days", func(t *testing.T) {
		t1 := stdtime.Date(2026, 3, 15, 23, 59, 0, 0, stdtime.UTC)
		t2 := stdtime.Date(2026, 3, 16, 0, 1, 0, 0, stdtime.UTC)
		assert.False(t, IsSameDay(t1, t2))
	})
}

func TestIsNewDay(t *testing.T) {
	t.Run("should_return_true_for_yesterday", func(t *testing.T) {
		yesterday := stdtime.Now().UTC().AddDate(0, 0, -1)
		assert.True(t, IsNewDay(yesterday))
	})

	t.Run("should_return_false_for_now", func(t *testing.T) {
		assert.False(t, IsNewDay(stdtime.Now().UTC()))
	})
}

func TestGetTomorrowStart(t *testing.T) {
	t.Run("should_return_start_of_tomorrow_at_midnight", func(t *testing.T) {
		result := GetTomorrowStart()
		now := stdtime.Now().UTC()

		assert.True(t, result.After(now))
		assert.Equal(t, 0, result.Hour())
		assert.Equal(t, 0, result.Minute())
		assert.True(t, result.Sub(now) <= 24*stdtime.Hour)
	})
}

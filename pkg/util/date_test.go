package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	cases := map[string]string{
		"rfc3339":      "2024-10-10T10:10:10Z",
		"offset":       "2024-10-10T12:10:10+02:00",
		"compact":      "20241010T101010",
		"unix seconds": strconv.FormatInt(want.Unix(), 10),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := ParseTime(in)
			assert.True(t, ok)
			assert.True(t, got.Equal(want), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	day, ok := ParseTime("2024-10-10")
	assert.True(t, ok)
	assert.Equal(t, "2024-10-10", DayKey(day))

	for _, bad := range []string{"", "yesterday", "-5"} {
		_, ok := ParseTime(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("garbage", def).Equal(def))
}

func TestDayOrToday(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "2024-03-02", DayOrToday("", now))
	assert.Equal(t, "2024-01-15", DayOrToday("2024-01-15", now))
}

package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	_, ok := ParseTime("next tuesday")
	assert.False(t, ok)
	_, ok = ParseTimeIn("", time.UTC)
	assert.False(t, ok)
}

func TestParseTimeInLocalizesNaiveValues(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got, ok := ParseTimeIn("2024-03-05 08:30", ny)
	require.True(t, ok)
	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, time.Date(2024, 3, 5, 13, 30, 0, 0, time.UTC), got.UTC())

	got, ok = ParseTimeIn("2024-03-05T13:30:00Z", ny)
	require.True(t, ok)
	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, ny, got.Location())

	_, ok = ParseTimeIn("not a time", ny)
	assert.False(t, ok)
	_, ok = ParseTimeIn("  ", ny)
	assert.False(t, ok)
}

func TestStartOfDayAndBucket(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 42, 31, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
	assert.Equal(t, Bucket(ts, time.Minute), Bucket(ts.Add(20*time.Second), time.Minute))
	assert.NotEqual(t, Bucket(ts, time.Minute), Bucket(ts.Add(40*time.Second), time.Minute))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("7", 1))
	assert.Equal(t, 1, ParseIntDefault("x", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))
}

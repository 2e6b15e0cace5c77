package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortOldestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ts := []Transcription{
		{ID: "c", CreatedAt: base.Add(time.Minute)},
		{ID: "b", CreatedAt: base},
		{ID: "a", CreatedAt: base},
	}

	SortOldestFirst(ts)

	assert.Equal(t, []string{"a", "b", "c"}, []string{ts[0].ID, ts[1].ID, ts[2].ID})
}

func TestSortNewestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ts := []Transcription{
		{ID: "a", CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(time.Hour)},
	}

	SortNewestFirst(ts)

	assert.Equal(t, "b", ts[0].ID)
}

func TestPreview(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Preview("short", 10))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "héé...", Preview("héééé", 3))
}

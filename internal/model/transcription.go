// Package model defines the core transcription data types.
package model

import (
	"sort"
	"time"
)

// Transcription represents one VoiceInk transcription entry.
type Transcription struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	EnhancedText  string    `json:"enhanced_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Duration      float64   `json:"duration_seconds"`
	PromptName    string    `json:"prompt_name,omitempty"`
	PowerModeName string    `json:"power_mode_name,omitempty"`
}

// SortOldestFirst orders transcriptions by creation time, ties broken by ID.
func SortOldestFirst(ts []Transcription) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
}

// SortNewestFirst orders transcriptions for display, most recent first.
func SortNewestFirst(ts []Transcription) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.After(ts[j].CreatedAt)
		}
		return ts[i].ID > ts[j].ID
	})
}

// Preview returns text shortened to n characters with a trailing ellipsis.
func Preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

package model

import "errors"

// Errors reported by transcription sources.
var (
	// ErrSourceUnavailable means the backing store could not be opened or queried.
	ErrSourceUnavailable = errors.New("transcription source unavailable")
	// ErrSourceCorrupt means a row was present but its required fields could not be decoded.
	ErrSourceCorrupt = errors.New("transcription source corrupt")
)

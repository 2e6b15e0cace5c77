package syncer

import (
	"errors"
	"fmt"

	"github.com/rcliao/voiceink-notion/internal/model"
	"github.com/rcliao/voiceink-notion/internal/notion"
)

// Kind classifies sync failures. Kinds are strings so they read well in logs.
type Kind string

const (
	// KindSourceUnavailable means the transcription database could not be read. Cycle-fatal.
	KindSourceUnavailable Kind = "SOURCE_UNAVAILABLE"
	// KindSourceCorrupt means a transcription row could not be decoded. Cycle-fatal.
	KindSourceCorrupt Kind = "SOURCE_CORRUPT"
	// KindUploadFailed means one record could not be uploaded. It is counted, not returned.
	KindUploadFailed Kind = "UPLOAD_FAILED"
	// KindStateCorrupt means the state file was unreadable. Load masks it with an empty state.
	KindStateCorrupt Kind = "STATE_CORRUPT"
	// KindStateWrite means progress could not be persisted. It stops the run loop.
	KindStateWrite Kind = "STATE_WRITE"
	// KindRemoteAuth means Notion rejected the API key.
	KindRemoteAuth Kind = "REMOTE_AUTH"
	// KindRemoteNotFound means the Notion database does not exist or is not shared.
	KindRemoteNotFound Kind = "REMOTE_NOT_FOUND"
	// KindUnknown is returned by KindOf for unclassified errors.
	KindUnknown Kind = "UNKNOWN"
)

// ErrStateWrite matches any error of kind KindStateWrite with errors.Is.
var ErrStateWrite = &Error{Kind: KindStateWrite}

// Error is a classified sync failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf classifies err. Adapter sentinels are recognised even when the error
// was never wrapped in an *Error.
func KindOf(err error) Kind {
	var se *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return se.Kind
	case errors.Is(err, model.ErrSourceCorrupt):
		return KindSourceCorrupt
	case errors.Is(err, model.ErrSourceUnavailable):
		return KindSourceUnavailable
	case errors.Is(err, notion.ErrUnauthorized):
		return KindRemoteAuth
	case errors.Is(err, notion.ErrNotFound):
		return KindRemoteNotFound
	}
	return KindUnknown
}

// sourceKind picks the kind for a failed source read.
func sourceKind(err error) Kind {
	if errors.Is(err, model.ErrSourceCorrupt) {
		return KindSourceCorrupt
	}
	return KindSourceUnavailable
}

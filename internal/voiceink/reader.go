// Package voiceink reads transcriptions from VoiceInk's SwiftData SQLite store.
package voiceink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/voiceink-notion/internal/model"
)

// coreDataEpoch is the reference date for Core Data timestamps.
var coreDataEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

const listQuery = `
	SELECT
		Z_PK,
		hex(ZID),
		ZTEXT,
		ZENHANCEDTEXT,
		ZTIMESTAMP,
		ZDURATION,
		ZPROMPTNAME,
		ZPOWERMODENAME
	FROM ZTRANSCRIPTION
	WHERE ZTEXT IS NOT NULL AND ZTEXT != ''
	ORDER BY ZTIMESTAMP, Z_PK`

// Reader lists transcriptions from a VoiceInk database file.
// The file is opened read-only on every call so the live app store is never
// written and each call sees the latest snapshot.
type Reader struct {
	path string
	now  func() time.Time
}

// NewReader returns a Reader for the store at path.
func NewReader(path string) *Reader {
	return &Reader{path: path, now: time.Now}
}

// ListRecords returns every transcription with non-empty text, oldest first.
func (r *Reader) ListRecords(ctx context.Context) ([]model.Transcription, error) {
	if _, err := os.Stat(r.path); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}

	db, err := sql.Open("sqlite", "file:"+r.path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %w", model.ErrSourceUnavailable, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: query transcriptions: %w", model.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var transcriptions []model.Transcription
	for rows.Next() {
		t, err := r.scanTranscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan transcription: %w", model.ErrSourceCorrupt, err)
		}
		transcriptions = append(transcriptions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read transcriptions: %w", model.ErrSourceUnavailable, err)
	}

	return transcriptions, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *Reader) scanTranscription(row scanner) (model.Transcription, error) {
	var t model.Transcription
	var pk int64
	var idHex string
	var enhanced, prompt, powerMode sql.NullString
	var timestamp, duration interface{}

	err := row.Scan(&pk, &idHex, &t.Text, &enhanced, &timestamp, &duration, &prompt, &powerMode)
	if err != nil {
		return t, err
	}

	t.ID = FormatID(idHex, pk)
	if secs, ok := toFloat(timestamp); ok {
		t.CreatedAt = DecodeTimestamp(secs)
	} else {
		t.CreatedAt = r.now().UTC()
	}
	if d, ok := toFloat(duration); ok && d > 0 {
		t.Duration = d
	}
	if enhanced.Valid {
		t.EnhancedText = enhanced.String
	}
	if prompt.Valid {
		t.PromptName = prompt.String
	}
	if powerMode.Valid {
		t.PowerModeName = powerMode.String
	}

	return t, nil
}

// toFloat decodes an optional numeric column. Values that are NULL or not
// numeric report false so the caller can apply its default.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// FormatID derives the stable transcription id. A 32-character hex UUID is
// rendered in 8-4-4-4-12 form with its case preserved; an empty one falls back
// to the row's primary key.
func FormatID(hexID string, pk int64) string {
	id := hexID
	if id == "" {
		id = strconv.FormatInt(pk, 10)
	}
	if len(id) == 32 {
		id = id[:8] + "-" + id[8:12] + "-" + id[12:16] + "-" + id[16:20] + "-" + id[20:]
	}
	return id
}

// DecodeTimestamp converts Core Data seconds since 2001-01-01 UTC to a time.
func DecodeTimestamp(seconds float64) time.Time {
	return coreDataEpoch.Add(time.Duration(seconds * float64(time.Second)))
}

// Package syncer reconciles local VoiceInk transcriptions with a Notion database.
package syncer

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks -source=engine.go Source,Sink,StateStore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/voiceink-notion/internal/model"
	"github.com/rcliao/voiceink-notion/internal/state"
)

// Source lists the local transcriptions.
type Source interface {
	ListRecords(ctx context.Context) ([]model.Transcription, error)
}

// Sink is the remote side of the sync.
type Sink interface {
	// ListExistingIDs returns the ids already present remotely. A partial
	// listing comes back with a non-nil error alongside the ids found.
	ListExistingIDs(ctx context.Context) ([]string, error)
	Upload(ctx context.Context, t model.Transcription) error
}

// StateStore persists sync progress.
type StateStore interface {
	Save(st *state.SyncState) error
}

// Result is the outcome of one upload attempt.
type Result struct {
	Record model.Transcription
	Err    error
}

// Observer is notified after every upload attempt.
type Observer func(Result)

// CycleObserver is notified by RunForever after every cycle.
type CycleObserver func(Report, error)

// Report summarizes one sync cycle.
type Report struct {
	CycleID      string
	Pending      int // unsynced records found in the snapshot
	Synced       int
	Failed       int
	Bootstrapped bool
	Duration     time.Duration
}

// Remaining returns how many pending records were not uploaded.
func (r Report) Remaining() int {
	return r.Pending - r.Synced
}

// Options configures an Engine. All fields are optional.
type Options struct {
	Logger   *slog.Logger
	Observer Observer
	OnCycle  CycleObserver
	Metrics  *Metrics
	// Trigger wakes RunForever before the interval elapses. A closed channel
	// is ignored from then on.
	Trigger <-chan struct{}
}

// Engine runs sync cycles. Calls are serialized.
type Engine struct {
	source   Source
	sink     Sink
	store    StateStore
	logger   *slog.Logger
	observer Observer
	onCycle  CycleObserver
	metrics  *Metrics
	trigger  <-chan struct{}

	mu sync.Mutex
}

// NewEngine creates an engine.
func NewEngine(source Source, sink Sink, store StateStore, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source:   source,
		sink:     sink,
		store:    store,
		logger:   logger,
		observer: opts.Observer,
		onCycle:  opts.OnCycle,
		metrics:  opts.Metrics,
		trigger:  opts.Trigger,
	}
}

// SyncOnce runs a single cycle: reconcile with the remote inventory if that
// has not happened yet, snapshot the source, then upload every unsynced record
// oldest first. State is saved after each successful upload, before the next
// one starts.
//
// Upload failures are counted and skipped. Source errors abort the cycle with
// nothing uploaded. A failed save aborts with an error matching ErrStateWrite.
func (e *Engine) SyncOnce(ctx context.Context, st *state.SyncState) (report Report, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	report.CycleID = ulid.Make().String()
	logger := e.logger.With("cycle", report.CycleID)

	defer func() {
		report.Duration = time.Since(start)
		e.metrics.recordCycle(report, err)
		e.metrics.recordStateSize(st.Len())
	}()

	if !st.NotionCachePopulated {
		report.Bootstrapped, err = e.bootstrap(ctx, st, logger)
		if err != nil {
			return report, err
		}
	}

	records, err := e.source.ListRecords(ctx)
	if err != nil {
		return report, newError(sourceKind(err), "list records", err)
	}

	pending := unsynced(records, st)
	report.Pending = len(pending)
	if len(pending) == 0 {
		logger.Debug("Nothing to sync", "records", len(records))
		return report, nil
	}
	logger.Info("Syncing transcriptions", "pending", len(pending))

	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if upErr := e.sink.Upload(ctx, rec); upErr != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			e.metrics.recordUpload(false)
			logger.Warn("Upload failed", "id", rec.ID, "error", upErr)
			e.notify(Result{Record: rec, Err: newError(KindUploadFailed, "upload "+rec.ID, upErr)})
			continue
		}

		report.Synced++
		e.metrics.recordUpload(true)
		st.MarkSynced(rec.ID)
		if err := e.store.Save(st); err != nil {
			return report, newError(KindStateWrite, "save state", err)
		}
		e.notify(Result{Record: rec})
	}

	logger.Info("Sync cycle complete",
		"synced", report.Synced,
		"failed", report.Failed,
		"pending", report.Pending,
		"duration", time.Since(start))
	return report, nil
}

// bootstrap merges the ids already in Notion into st so records uploaded by
// an earlier install are not uploaded again. It reports whether the remote
// listing was complete. An incomplete listing still contributes its ids, and
// the bootstrap runs again next cycle.
func (e *Engine) bootstrap(ctx context.Context, st *state.SyncState, logger *slog.Logger) (bool, error) {
	ids, listErr := e.sink.ListExistingIDs(ctx)
	if listErr != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		logger.Warn("Notion listing incomplete, will retry next cycle", "found", len(ids), "error", listErr)
		if len(ids) == 0 {
			return false, nil
		}
		st.AddIDs(ids)
	} else {
		st.MergeRemoteIDs(ids)
		logger.Info("Merged existing Notion pages into sync state", "count", len(ids))
	}

	if err := e.store.Save(st); err != nil {
		return false, newError(KindStateWrite, "save state", err)
	}
	return listErr == nil, nil
}

// RunForever runs cycles until ctx is cancelled, sleeping interval between
// them. The trigger channel, when set, starts the next cycle early. Cycle
// errors are logged and the loop continues, except for state write failures,
// which are returned. Cancellation returns nil.
func (e *Engine) RunForever(ctx context.Context, st *state.SyncState, interval time.Duration) error {
	e.logger.Info("Starting continuous sync", "interval", interval)

	timer := time.NewTimer(interval)
	defer timer.Stop()
	trigger := e.trigger

	for {
		report, err := e.SyncOnce(ctx, st)
		if ctx.Err() == nil && e.onCycle != nil {
			e.onCycle(report, err)
		}
		switch {
		case ctx.Err() != nil:
			e.logger.Info("Sync stopped")
			return nil
		case errors.Is(err, ErrStateWrite):
			e.logger.Error("Cannot persist sync state, stopping", "cycle", report.CycleID, "error", err)
			return err
		case err != nil:
			e.logger.Error("Sync cycle failed", "cycle", report.CycleID, "kind", KindOf(err), "error", err)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)

	wait:
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("Sync stopped")
				return nil
			case <-timer.C:
				break wait
			case _, ok := <-trigger:
				if !ok {
					e.logger.Debug("Change trigger closed, polling only")
					trigger = nil
					continue
				}
				e.logger.Debug("Sync triggered by change")
				break wait
			}
		}
	}
}

func (e *Engine) notify(r Result) {
	if e.observer != nil {
		e.observer(r)
	}
}

// unsynced returns the records not yet in st, oldest first.
func unsynced(records []model.Transcription, st *state.SyncState) []model.Transcription {
	var out []model.Transcription
	for _, r := range records {
		if !st.IsSynced(r.ID) {
			out = append(out, r)
		}
	}
	model.SortOldestFirst(out)
	return out
}

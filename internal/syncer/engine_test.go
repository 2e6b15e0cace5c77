package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rcliao/voiceink-notion/internal/model"
	"github.com/rcliao/voiceink-notion/internal/notion"
	"github.com/rcliao/voiceink-notion/internal/state"
	"github.com/rcliao/voiceink-notion/internal/syncer/mocks"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func rec(id string, offset time.Duration) model.Transcription {
	return model.Transcription{ID: id, Text: "text " + id, CreatedAt: base.Add(offset)}
}

type fixture struct {
	source *mocks.MockSource
	sink   *mocks.MockSink
	store  *mocks.MockStateStore
	engine *Engine
	seen   []Result
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		source: mocks.NewMockSource(ctrl),
		sink:   mocks.NewMockSink(ctrl),
		store:  mocks.NewMockStateStore(ctrl),
	}
	f.engine = NewEngine(f.source, f.sink, f.store, Options{
		Observer: func(r Result) { f.seen = append(f.seen, r) },
	})
	return f
}

// expectSaveHolding expects a Save whose state already records id.
func expectSaveHolding(t *testing.T, store *mocks.MockStateStore, id string) *gomock.Call {
	t.Helper()
	return store.EXPECT().Save(gomock.Any()).DoAndReturn(func(s *state.SyncState) error {
		assert.True(t, s.IsSynced(id), "saved state is missing %s", id)
		return nil
	})
}

func populated(ids ...string) *state.SyncState {
	st := state.New()
	st.MergeRemoteIDs(ids)
	return st
}

func TestSyncOnce_BootstrapWithNoLocalRecords(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := state.New()

	f.sink.EXPECT().ListExistingIDs(gomock.Any()).Return([]string{"a", "b"}, nil)
	f.store.EXPECT().Save(st).Return(nil)
	f.source.EXPECT().ListRecords(gomock.Any()).Return(nil, nil)

	report, err := f.engine.SyncOnce(context.Background(), st)
	require.NoError(t, err)

	assert.True(t, report.Bootstrapped)
	assert.Zero(t, report.Synced)
	assert.True(t, st.NotionCachePopulated)
	assert.True(t, st.IsSynced("a"))
	assert.True(t, st.IsSynced("b"))
	assert.NotEmpty(t, report.CycleID)
}

func TestSyncOnce_EmptyRemoteStillMarksPopulated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := state.New()

	f.sink.EXPECT().ListExistingIDs(gomock.Any()).Return(nil, nil)
	f.store.EXPECT().Save(st).Return(nil)
	f.source.EXPECT().ListRecords(gomock.Any()).Return(nil, nil)

	_, err := f.engine.SyncOnce(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, st.NotionCachePopulated)
}

func TestSyncOnce_BootstrapSkipsRemoteIDs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := state.New()

	f.sink.EXPECT().ListExistingIDs(gomock.Any()).Return([]string{"a"}, nil)
	f.source.EXPECT().ListRecords(gomock.Any()).Return([]model.Transcription{rec("a", 0), rec("b", time.Minute)}, nil)
	f.store.EXPECT().Save(st).Return(nil).Times(2)
	f.sink.EXPECT().Upload(gomock.Any(), rec("b", time.Minute)).Return(nil)

	report, err := f.engine.SyncOnce(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, report.Pending)
}

func TestSyncOnce_TruncatedBootstrapRetriesNextCycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := state.New()
	truncated := fmt.Errorf("%w: HTTP 502", notion.ErrListTruncated)

	gomock.InOrder(
		f.sink.EXPECT().ListExistingIDs(gomock.Any()).Return([]string{"a"}, truncated),
		f.store.EXPECT().Save(st).Return(nil),
		f.source.EXPECT().ListRecords(gomock.Any()).Return(nil, nil),
	)

	report, err := f.engine.SyncOnce(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, report.Bootstrapped)
	assert.False(t, st.NotionCachePopulated)
	assert.True(t, st.IsSynced("a"))

	gomock.InOrder(
		f.sink.EXPECT().ListExistingIDs(gomock.Any()).Return([]string{"a", "b"}, nil),
		f.store.EXPECT().Save(st).Return(nil),
		f.source.EXPECT().ListRecords(gomock.Any()).Return(nil, nil),
	)

	report, err = f.engine.SyncOnce(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, report.Bootstrapped)
	assert.True(t, st.NotionCachePopulated)
	assert.Equal(t, 2, st.Len())
}

func TestSyncOnce_FailedBootstrapWithNothingFoundDoesNotSave(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := state.New()

	f.sink.EXPECT().ListExistingIDs(gomock.Any()).Return(nil, errors.New("connection refused"))
	f.source.EXPECT().ListRecords(gomock.Any()).Return(nil, nil)

	_, err := f.engine.SyncOnce(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, st.NotionCachePopulated)
}

func TestSyncOnce_UploadsOldestFirstAndSavesAfterEach(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := populated()

	newest := rec("c", 2*time.Minute)
	oldest := rec("b", 0)
	tie := rec("a", 0)

	f.source.EXPECT().ListRecords(gomock.Any()).Return([]model.Transcription{newest, oldest, tie}, nil)
	gomock.InOrder(
		f.sink.EXPECT().Upload(gomock.Any(), tie).Return(nil),
		expectSaveHolding(t, f.store, "a"),
		f.sink.EXPECT().Upload(gomock.Any(), oldest).Return(nil),
		expectSaveHolding(t, f.store, "b"),
		f.sink.EXPECT().Upload(gomock.Any(), newest).Return(nil),
		expectSaveHolding(t, f.store, "c"),
	)

	report, err := f.engine.SyncOnce(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Synced)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Remaining())
	assert.NotNil(t, st.LastSyncTime)
}

func TestSyncOnce_StateOnDiskBeforeNextUpload(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	sink := mocks.NewMockSink(ctrl)
	store := state.NewStore(filepath.Join(t.TempDir(), "sync_state.json"), nil)
	engine := NewEngine(source, sink, store, Options{})
	r1, r2 := rec("1", 0), rec("2", time.Minute)

	source.EXPECT().ListRecords(gomock.Any()).Return([]model.Transcription{r2, r1}, nil)
	gomock.InOrder(
		sink.EXPECT().Upload(gomock.Any(), r1).Return(nil),
		sink.EXPECT().Upload(gomock.Any(), r2).DoAndReturn(func(context.Context, model.Transcription) error {
			onDisk := store.Load()
			assert.True(t, onDisk.IsSynced("1"))
			assert.False(t, onDisk.IsSynced("2"))
			return nil
		}),
	)

	report, err := engine.SyncOnce(context.Background(), populated())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Synced)
	assert.True(t, store.Load().IsSynced("2"))
}

func TestSyncOnce_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := populated()
	records := []model.Transcription{rec("a", 0), rec("b", time.Minute)}

	f.source.EXPECT().ListRecords(gomock.Any()).Return(records, nil).Times(2)
	f.sink.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	f.store.EXPECT().Save(st).Return(nil).Times(2)

	first, err := f.engine.SyncOnce(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Synced)

	second, err := f.engine.SyncOnce(context.Background(), st)
	require.NoError(t, err)
	assert.Zero(t, second.Synced)
	assert.Zero(t, second.Pending)
}

func TestSyncOnce_PartialFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := populated()
	r1, r2, r3 := rec("1", 0), rec("2", time.Minute), rec("3", 2*time.Minute)

	f.source.EXPECT().ListRecords(gomock.Any()).Return([]model.Transcription{r1, r2, r3}, nil)
	gomock.InOrder(
		f.sink.EXPECT().Upload(gomock.Any(), r1).Return(nil),
		expectSaveHolding(t, f.store, "1"),
		f.sink.EXPECT().Upload(gomock.Any(), r2).Return(errors.New("HTTP 400")),
		f.sink.EXPECT().Upload(gomock.Any(), r3).Return(nil),
		expectSaveHolding(t, f.store, "3"),
	)

	report, err := f.engine.SyncOnce(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Synced)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Remaining())
	assert.True(t, st.IsSynced("1"))
	assert.False(t, st.IsSynced("2"))
	assert.True(t, st.IsSynced("3"))

	require.Len(t, f.seen, 3)
	assert.NoError(t, f.seen[0].Err)
	assert.Equal(t, KindUploadFailed, KindOf(f.seen[1].Err))
	assert.Equal(t, "2", f.seen[1].Record.ID)
	assert.NoError(t, f.seen[2].Err)
}

func TestSyncOnce_SourceErrorAbortsCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"unavailable", fmt.Errorf("%w: no such file", model.ErrSourceUnavailable), KindSourceUnavailable},
		{"corrupt", fmt.Errorf("%w: bad row", model.ErrSourceCorrupt), KindSourceCorrupt},
		{"unclassified", errors.New("boom"), KindSourceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			f.source.EXPECT().ListRecords(gomock.Any()).Return(nil, tt.err)

			report, err := f.engine.SyncOnce(context.Background(), populated())
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Zero(t, report.Synced)
		})
	}
}

func TestSyncOnce_SaveFailureStopsCycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := populated()
	r1, r2 := rec("1", 0), rec("2", time.Minute)

	f.source.EXPECT().ListRecords(gomock.Any()).Return([]model.Transcription{r1, r2}, nil)
	f.sink.EXPECT().Upload(gomock.Any(), r1).Return(nil)
	f.store.EXPECT().Save(st).Return(errors.New("disk full"))

	report, err := f.engine.SyncOnce(context.Background(), st)
	require.ErrorIs(t, err, ErrStateWrite)
	assert.Equal(t, KindStateWrite, KindOf(err))
	assert.Equal(t, 1, report.Synced)
}

func TestSyncOnce_CancellationBetweenRecords(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := populated()
	r1, r2 := rec("1", 0), rec("2", time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.source.EXPECT().ListRecords(gomock.Any()).Return([]model.Transcription{r1, r2}, nil)
	f.sink.EXPECT().Upload(gomock.Any(), r1).DoAndReturn(func(context.Context, model.Transcription) error {
		cancel()
		return nil
	})
	f.store.EXPECT().Save(st).Return(nil)

	report, err := f.engine.SyncOnce(ctx, st)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Synced)
	assert.True(t, st.IsSynced("1"))
	assert.False(t, st.IsSynced("2"))
}

func TestSyncOnce_RecordsMetrics(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	sink := mocks.NewMockSink(ctrl)
	store := mocks.NewMockStateStore(ctrl)

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	engine := NewEngine(source, sink, store, Options{Metrics: metrics})

	source.EXPECT().ListRecords(gomock.Any()).Return([]model.Transcription{rec("1", 0), rec("2", time.Minute)}, nil)
	sink.EXPECT().Upload(gomock.Any(), rec("1", 0)).Return(nil)
	sink.EXPECT().Upload(gomock.Any(), rec("2", time.Minute)).Return(errors.New("HTTP 400"))
	store.EXPECT().Save(gomock.Any()).Return(nil)

	_, err = engine.SyncOnce(context.Background(), populated("x"))
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.uploads.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.uploads.WithLabelValues("failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.cycles.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.pending), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.syncedIDs), 0)
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()

	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestRunForever_StopsOnCancellation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.source.EXPECT().ListRecords(gomock.Any()).DoAndReturn(func(context.Context) ([]model.Transcription, error) {
		cancel()
		return nil, nil
	})

	err := f.engine.RunForever(ctx, populated(), time.Hour)
	assert.NoError(t, err)
}

func TestRunForever_ContinuesAfterCycleError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		f.source.EXPECT().ListRecords(gomock.Any()).Return(nil, model.ErrSourceUnavailable),
		f.source.EXPECT().ListRecords(gomock.Any()).DoAndReturn(func(context.Context) ([]model.Transcription, error) {
			cancel()
			return nil, nil
		}),
	)

	err := f.engine.RunForever(ctx, populated(), time.Millisecond)
	assert.NoError(t, err)
}

func TestRunForever_TriggerStartsCycleEarly(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	trigger := make(chan struct{}, 1)
	trigger <- struct{}{}

	engine := NewEngine(source, mocks.NewMockSink(ctrl), mocks.NewMockStateStore(ctrl), Options{Trigger: trigger})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		source.EXPECT().ListRecords(gomock.Any()).Return(nil, nil),
		source.EXPECT().ListRecords(gomock.Any()).DoAndReturn(func(context.Context) ([]model.Transcription, error) {
			cancel()
			return nil, nil
		}),
	)

	err := engine.RunForever(ctx, populated(), time.Hour)
	assert.NoError(t, err)
}

func TestRunForever_ClosedTriggerFallsBackToInterval(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	trigger := make(chan struct{})
	close(trigger)

	const interval = 20 * time.Millisecond
	engine := NewEngine(source, mocks.NewMockSink(ctrl), mocks.NewMockStateStore(ctrl), Options{Trigger: trigger})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := 0
	source.EXPECT().ListRecords(gomock.Any()).DoAndReturn(func(context.Context) ([]model.Transcription, error) {
		cycles++
		if cycles == 3 {
			cancel()
		}
		return nil, nil
	}).Times(3)

	start := time.Now()
	require.NoError(t, engine.RunForever(ctx, populated(), interval))
	assert.GreaterOrEqual(t, time.Since(start), 2*interval)
}

func TestRunForever_ReportsEachCycle(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	sink := mocks.NewMockSink(ctrl)
	store := mocks.NewMockStateStore(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type cycle struct {
		report Report
		err    error
	}
	var seen []cycle
	engine := NewEngine(source, sink, store, Options{
		OnCycle: func(r Report, err error) { seen = append(seen, cycle{r, err}) },
	})

	gomock.InOrder(
		source.EXPECT().ListRecords(gomock.Any()).Return([]model.Transcription{rec("1", 0)}, nil),
		source.EXPECT().ListRecords(gomock.Any()).Return(nil, model.ErrSourceUnavailable),
		source.EXPECT().ListRecords(gomock.Any()).DoAndReturn(func(context.Context) ([]model.Transcription, error) {
			cancel()
			return nil, nil
		}),
	)
	sink.EXPECT().Upload(gomock.Any(), rec("1", 0)).Return(nil)
	expectSaveHolding(t, store, "1")

	require.NoError(t, engine.RunForever(ctx, populated(), time.Millisecond))

	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[0].report.Synced)
	assert.NoError(t, seen[0].err)
	assert.Equal(t, KindSourceUnavailable, KindOf(seen[1].err))
}

func TestRunForever_ReturnsStateWriteError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.source.EXPECT().ListRecords(gomock.Any()).Return([]model.Transcription{rec("1", 0)}, nil)
	f.sink.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(nil)
	f.store.EXPECT().Save(gomock.Any()).Return(errors.New("read-only file system"))

	err := f.engine.RunForever(context.Background(), populated(), time.Hour)
	require.ErrorIs(t, err, ErrStateWrite)
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"wrapped engine error", fmt.Errorf("cycle: %w", newError(KindStateWrite, "save state", errors.New("x"))), KindStateWrite},
		{"source unavailable", model.ErrSourceUnavailable, KindSourceUnavailable},
		{"source corrupt", fmt.Errorf("%w: row 3", model.ErrSourceCorrupt), KindSourceCorrupt},
		{"notion unauthorized", &notion.HTTPError{StatusCode: 401}, KindRemoteAuth},
		{"notion not found", fmt.Errorf("retrieve database: %w", &notion.HTTPError{StatusCode: 404}), KindRemoteNotFound},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := newError(KindUploadFailed, "upload 42", errors.New("HTTP 400"))
	assert.Equal(t, "upload 42: UPLOAD_FAILED: HTTP 400", err.Error())
	assert.NotErrorIs(t, err, ErrStateWrite)
}

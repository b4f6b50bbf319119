package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetform/internal/core"
)

type fakeStore struct {
	mu       sync.Mutex
	rows     []core.Row
	sessions []string
	err      error
	closed   bool
}

func (f *fakeStore) InsertRow(_ context.Context, sessionID string, row core.Row) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.rows = append(f.rows, row)
	f.sessions = append(f.sessions, sessionID)
	return int64(len(f.rows)), nil
}

func (f *fakeStore) Close() error { f.closed = true; return nil }

type fakePublisher struct {
	ids    []int64
	err    error
	closed bool
}

func (f *fakePublisher) PublishRowSync(_ context.Context, id int64, _ string) error {
	f.ids = append(f.ids, id)
	return f.err
}

func (f *fakePublisher) Close() error { f.closed = true; return errors.New("already closed") }

func sampleRow() core.Row {
	return core.Row{2000, 100, 100, 600, 0, 600, 700, -100}
}

func TestRecordService_Record(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := NewRecordService(store, pub)

	ref, err := svc.Record(context.Background(), "sess-1", sampleRow())
	require.NoError(t, err)
	assert.Equal(t, "1", ref)
	assert.Equal(t, []int64{1}, pub.ids)
	assert.Equal(t, []string{"sess-1"}, store.sessions)
}

func TestRecordService_PublishFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{}
	svc := NewRecordService(store, &fakePublisher{err: errors.New("circuit breaker is open")})

	ref, err := svc.Record(context.Background(), "s", sampleRow())
	require.NoError(t, err)
	assert.Equal(t, "1", ref)
	assert.Len(t, store.rows, 1)
}

func TestRecordService_WithoutPublisher(t *testing.T) {
	svc := NewRecordService(&fakeStore{}, nil)
	ref, err := svc.Record(context.Background(), "s", sampleRow())
	require.NoError(t, err)
	assert.Equal(t, "1", ref)
}

func TestRecordService_StoreFailure(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewRecordService(&fakeStore{err: errors.New("disk full")}, pub)

	_, err := svc.Record(context.Background(), "s", sampleRow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, pub.ids, "nothing is published for an unsaved row")
}

func TestRecordService_RejectsMalformedRow(t *testing.T) {
	svc := NewRecordService(&fakeStore{}, nil)
	_, err := svc.Record(context.Background(), "s", core.Row{1, 2})
	assert.Error(t, err)
}

func TestRecordService_Close(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		assert.NoError(t, (&RecordService{}).Close())
	})

	t.Run("aggregates errors", func(t *testing.T) {
		store := &fakeStore{}
		pub := &fakePublisher{}
		err := NewRecordService(store, pub).Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "amqp: already closed")
		assert.True(t, store.closed)
		assert.True(t, pub.closed)
	})
}

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) ProcessPending(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestSyncProcessor_Lifecycle(t *testing.T) {
	syncer := &countingSyncer{}
	p := NewSyncProcessor(syncer, SyncProcessorConfig{PollInterval: 10 * time.Millisecond})
	assert.False(t, p.IsRunning())

	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx), "second start must fail")

	assert.Eventually(t, func() bool { return syncer.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(ctx))
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop(ctx), "stopping twice is a no-op")
}

func TestSyncProcessor_SweepErrorKeepsRunning(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("sheets down")}
	p := NewSyncProcessor(syncer, SyncProcessorConfig{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	assert.Eventually(t, func() bool { return syncer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, p.Stop(context.Background()))
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	assert.Equal(t, 30*time.Second, DefaultSyncProcessorConfig().PollInterval)
	p := NewSyncProcessor(&countingSyncer{}, SyncProcessorConfig{})
	assert.Equal(t, 30*time.Second, p.config.PollInterval)
}

func TestSyncProcessor_Stats(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("sheets down")}
	p := NewSyncProcessor(syncer, SyncProcessorConfig{PollInterval: 5 * time.Millisecond})

	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return p.Stats().Failed >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(context.Background()))

	stats := p.Stats()
	assert.GreaterOrEqual(t, stats.Sweeps, stats.Failed)
	assert.Equal(t, stats.Sweeps, stats.Synced, "countingSyncer reports one row per sweep")
}

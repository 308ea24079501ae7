package audit_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/pkg/audit"
)

func sampleRecords() []audit.Record {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []audit.Record{
		{ID: "1", Actor: "admin-1", TenantIDClaimed: "store-a", Action: "tenant.export", Result: audit.ResultSuccess, BypassUsed: true, CreatedAt: base},
		{ID: "2", Actor: "admin-2", TenantIDClaimed: "store-b", Action: "tenant.export", Result: audit.ResultFailure, BypassUsed: true, CreatedAt: base.Add(time.Hour)},
		{ID: "3", Actor: "admin-1", TenantIDClaimed: "store-a", Action: "tenant.view", Result: audit.ResultSuccess, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "4", Actor: "admin-1", Action: "tenant.export", Result: audit.ResultPanic, BypassUsed: true, RequestID: "req-9", CreatedAt: base.Add(3 * time.Hour)},
	}
}

func ids(records []audit.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestMemoryStorageQuery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := audit.NewMemoryStorage()
	require.NoError(t, storage.StoreBatch(ctx, sampleRecords()))
	base := sampleRecords()[0].CreatedAt

	tests := []struct {
		name     string
		criteria audit.Criteria
		want     []string
	}{
		{name: "all newest first", criteria: audit.Criteria{}, want: []string{"4", "3", "2", "1"}},
		{name: "actor", criteria: audit.Criteria{Actor: "admin-2"}, want: []string{"2"}},
		{name: "tenant", criteria: audit.Criteria{TenantID: "store-a"}, want: []string{"3", "1"}},
		{name: "bypass only", criteria: audit.Criteria{BypassOnly: true}, want: []string{"4", "2", "1"}},
		{name: "result", criteria: audit.Criteria{Result: audit.ResultPanic}, want: []string{"4"}},
		{name: "request id", criteria: audit.Criteria{RequestID: "req-9"}, want: []string{"4"}},
		{name: "action", criteria: audit.Criteria{Action: "tenant.view"}, want: []string{"3"}},
		{
			name:     "time range is half open",
			criteria: audit.Criteria{StartTime: base.Add(time.Hour), EndTime: base.Add(3 * time.Hour)},
			want:     []string{"3", "2"},
		},
		{name: "limit and offset", criteria: audit.Criteria{Limit: 2, Offset: 1}, want: []string{"3", "2"}},
		{name: "offset past end", criteria: audit.Criteria{Offset: 10}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := storage.Query(ctx, tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestMemoryStorageIsolatesCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := audit.NewMemoryStorage()
	md := map[string]any{"k": "v"}
	require.NoError(t, storage.Store(ctx, audit.Record{ID: "1", Metadata: md}))

	md["k"] = "changed"
	got, err := storage.Query(ctx, audit.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, "v", got[0].Metadata["k"])

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, storage.Store(cancelled, audit.Record{ID: "2"}), context.Canceled)
}

func TestReaderCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("uses storage counter", func(t *testing.T) {
		t.Parallel()

		storage := audit.NewMemoryStorage()
		require.NoError(t, storage.StoreBatch(ctx, sampleRecords()))

		n, err := audit.NewReader(storage).Count(ctx, audit.Criteria{BypassOnly: true, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("falls back to query without pagination", func(t *testing.T) {
		t.Parallel()

		storage := new(MockStorage)
		storage.On("Query", mock.Anything, audit.Criteria{Actor: "admin-1"}).
			Return(sampleRecords()[:3], nil).Once()

		n, err := audit.NewReader(storage).Count(ctx, audit.Criteria{Actor: "admin-1", Limit: 1, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		storage.AssertExpectations(t)
	})

	t.Run("find delegates", func(t *testing.T) {
		t.Parallel()

		storage := new(MockStorage)
		storage.On("Query", mock.Anything, audit.Criteria{}).Return(nil, audit.ErrQueryFailed).Once()

		_, err := audit.NewReader(storage).Find(ctx, audit.Criteria{})
		assert.ErrorIs(t, err, audit.ErrQueryFailed)
	})
}

// batchRecorder counts batches and can fail them.
type batchRecorder struct {
	*audit.MemoryStorage
	batches atomic.Int32
	fail    error
	delay   time.Duration
}

func (b *batchRecorder) StoreBatch(ctx context.Context, records []audit.Record) error {
	b.batches.Add(1)
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.fail != nil {
		return b.fail
	}
	return b.MemoryStorage.StoreBatch(ctx, records)
}

func TestAsyncWriter(t *testing.T) {
	t.Parallel()

	t.Run("batches concurrent records", func(t *testing.T) {
		t.Parallel()

		storage := &batchRecorder{MemoryStorage: audit.NewMemoryStorage()}
		w := audit.NewAsyncWriter(storage, audit.AsyncOptions{BatchSize: 50, BatchTimeout: 20 * time.Millisecond})

		var wg sync.WaitGroup
		for i := range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, w.Store(context.Background(), audit.Record{ID: fmt.Sprint(i)}))
			}()
		}
		wg.Wait()
		require.NoError(t, w.Close(context.Background()))

		assert.Len(t, storage.Records(), 100)
		assert.Less(t, int(storage.batches.Load()), 100)

		got, err := w.Query(context.Background(), audit.Criteria{})
		require.NoError(t, err)
		assert.Len(t, got, 100)
	})

	t.Run("reports storage failure to caller", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		storage := &batchRecorder{MemoryStorage: audit.NewMemoryStorage(), fail: boom}
		w := audit.NewAsyncWriter(storage, audit.AsyncOptions{BatchTimeout: 10 * time.Millisecond})
		defer w.Close(context.Background())

		err := w.Store(context.Background(), audit.Record{ID: "1"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("close flushes and rejects new records", func(t *testing.T) {
		t.Parallel()

		storage := &batchRecorder{MemoryStorage: audit.NewMemoryStorage()}
		w := audit.NewAsyncWriter(storage, audit.AsyncOptions{BatchSize: 1000, BatchTimeout: time.Hour})

		done := make(chan error, 1)
		go func() { done <- w.Store(context.Background(), audit.Record{ID: "1"}) }()

		// The batch neither fills nor times out; only Close can flush it.
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, w.Close(context.Background()))

		assert.NoError(t, <-done)
		assert.Len(t, storage.Records(), 1)
		assert.ErrorIs(t, w.Store(context.Background(), audit.Record{ID: "2"}), audit.ErrStorageNotAvailable)
	})

	t.Run("caller context bounds the wait", func(t *testing.T) {
		t.Parallel()

		storage := &batchRecorder{MemoryStorage: audit.NewMemoryStorage(), delay: 200 * time.Millisecond}
		w := audit.NewAsyncWriter(storage, audit.AsyncOptions{BatchTimeout: 5 * time.Millisecond})
		defer w.Close(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, w.Store(ctx, audit.Record{ID: "1"}), context.DeadlineExceeded)
	})
}

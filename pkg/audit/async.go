package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions tunes the batching of AsyncWriter.
type AsyncOptions struct {
	// BufferSize is the number of queued records before Store falls back to a
	// synchronous write.
	BufferSize int
	BatchSize  int
	// BatchTimeout bounds how long a partial batch waits.
	BatchTimeout   time.Duration
	StorageTimeout time.Duration
}

func (o AsyncOptions) withDefaults() AsyncOptions {
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = 5 * time.Second
	}
	return o
}

type pending struct {
	record Record
	result chan error
}

// AsyncWriter batches records into a BatchStorage. Store still waits for the
// batch holding its record to be written and returns the storage error, so
// callers never lose track of an audit failure.
type AsyncWriter struct {
	storage BatchStorage
	reader  Storage
	opts    AsyncOptions
	queue   chan pending
	done    chan struct{}
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncWriter starts the batching worker. If storage also implements
// Storage, Query is delegated to it.
func NewAsyncWriter(storage BatchStorage, opts AsyncOptions) *AsyncWriter {
	if storage == nil {
		panic("audit: batch storage cannot be nil")
	}
	opts = opts.withDefaults()
	w := &AsyncWriter{
		storage: storage,
		opts:    opts,
		queue:   make(chan pending, opts.BufferSize),
		done:    make(chan struct{}),
	}
	if s, ok := storage.(Storage); ok {
		w.reader = s
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *AsyncWriter) Store(ctx context.Context, record Record) error {
	p := pending{record: record, result: make(chan error, 1)}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrStorageNotAvailable
	}
	select {
	case w.queue <- p:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	default:
		w.mu.RUnlock()
		// Queue full: write through rather than drop the record.
		return w.storage.StoreBatch(ctx, []Record{record})
	}

	select {
	case err := <-p.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AsyncWriter) Query(ctx context.Context, criteria Criteria) ([]Record, error) {
	if w.reader == nil {
		return nil, ErrStorageNotAvailable
	}
	return w.reader.Query(ctx, criteria)
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()

	batch := make([]pending, 0, w.opts.BatchSize)
	ticker := time.NewTicker(w.opts.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Detached from callers so one cancelled request cannot fail the batch.
		ctx, cancel := context.WithTimeout(context.Background(), w.opts.StorageTimeout)
		defer cancel()

		records := make([]Record, len(batch))
		for i, p := range batch {
			records[i] = p.record
		}
		err := w.storage.StoreBatch(ctx, records)
		for _, p := range batch {
			p.result <- err
		}
		batch = batch[:0]
	}

	for {
		select {
		case p := <-w.queue:
			batch = append(batch, p)
			if len(batch) >= w.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			for {
				select {
				case p := <-w.queue:
					batch = append(batch, p)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting records and flushes the queue. ctx bounds the wait.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

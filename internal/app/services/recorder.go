// Package services hosts the application services surrounding a run,
// currently the asynchronous history recorder.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/flowengine/flowengine/internal/core/record"
	imetrics "github.com/flowengine/flowengine/internal/infrastructure/metrics"
)

// DefaultQueueSize bounds the pending write queue.
const DefaultQueueSize = 512

// Recorder persists run history off the hot path. Writes are enqueued and
// flushed by a single background worker with retries; when the queue is
// full the write is dropped and counted, never blocking a run.
type Recorder struct {
	store  record.Store
	logger *zap.Logger

	queue    chan func(ctx context.Context) error
	maxRetry time.Duration

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// RecorderOption tunes a Recorder.
type RecorderOption func(*Recorder)

// WithQueueSize overrides the pending queue capacity.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan func(ctx context.Context) error, n)
		}
	}
}

// WithMaxRetryInterval caps how long a failing write is retried.
func WithMaxRetryInterval(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.maxRetry = d
		}
	}
}

// NewRecorder starts the background writer. Close must be called to drain
// pending writes on shutdown.
func NewRecorder(store record.Store, logger *zap.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		store:    store,
		logger:   logger.Named("recorder"),
		queue:    make(chan func(ctx context.Context) error, DefaultQueueSize),
		maxRetry: 30 * time.Second,
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.loop()
	return r
}

// RecordRun enqueues a run record write.
func (r *Recorder) RecordRun(run *record.RunRecord) {
	if err := run.Validate(); err != nil {
		r.logger.Warn("dropping invalid run record", zap.Error(err))
		imetrics.IncRecordsDropped()
		return
	}
	r.enqueue(func(ctx context.Context) error {
		return r.store.SaveRun(ctx, run)
	})
}

// RecordVertexBuild enqueues a vertex build record write.
func (r *Recorder) RecordVertexBuild(build *record.VertexBuildRecord) {
	if err := build.Validate(); err != nil {
		r.logger.Warn("dropping invalid build record", zap.Error(err))
		imetrics.IncRecordsDropped()
		return
	}
	r.enqueue(func(ctx context.Context) error {
		return r.store.SaveVertexBuild(ctx, build)
	})
}

func (r *Recorder) enqueue(write func(ctx context.Context) error) {
	select {
	case <-r.closed:
		imetrics.IncRecordsDropped()
		return
	default:
	}
	select {
	case r.queue <- write:
	default:
		imetrics.IncRecordsDropped()
		r.logger.Warn("record queue full, dropping write")
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for {
		select {
		case write := <-r.queue:
			r.flush(write)
		case <-r.closed:
			// Drain whatever is still queued.
			for {
				select {
				case write := <-r.queue:
					r.flush(write)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) flush(write func(ctx context.Context) error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = r.maxRetry

	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return write(ctx)
	}
	if err := backoff.Retry(op, policy); err != nil {
		imetrics.IncRecordsDropped()
		r.logger.Error("record write failed after retries", zap.Error(err))
		return
	}
	imetrics.IncRecordsPersisted()
}

// Close stops accepting writes, drains the queue, and waits for the
// worker to finish.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() { close(r.closed) })
	<-r.done
}

package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	imetrics "github.com/flowengine/flowengine/internal/infrastructure/metrics"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 256

// Bus is the append-only event stream for one run. Emission is serialized,
// so every subscriber observes events in emission order. Fan-out is
// best-effort: a subscriber whose buffer is full is dropped (its channel
// closed) rather than allowing a slow consumer to stall the run.
type Bus struct {
	runID   string
	bufSize int
	logger  *zap.Logger

	mu     sync.Mutex
	seq    uint64
	nextID int
	subs   map[int]chan Event
	closed bool
}

// NewBus creates a bus for a run. bufSize <= 0 selects DefaultBufferSize;
// a nil logger defaults to no-op.
func NewBus(runID string, bufSize int, logger *zap.Logger) *Bus {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		runID:   runID,
		bufSize: bufSize,
		logger:  logger.Named("events").With(zap.String("run_id", runID)),
		subs:    make(map[int]chan Event),
	}
}

// Subscribe registers an observer. The returned channel is closed when the
// bus closes, when the observer falls too far behind, or when ctx is done.
// The cancel function unsubscribes early; it is safe to call repeatedly.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() { b.unsubscribe(id) }
	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Emit appends one event to the stream and fans it out. Callers on the run
// path never block here.
func (b *Bus) Emit(kind Kind, vertexID string, data map[string]interface{}, errText string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.seq++
	ev := Event{
		Seq:       b.seq,
		Kind:      kind,
		RunID:     b.runID,
		VertexID:  vertexID,
		Timestamp: time.Now(),
		Data:      data,
		Error:     errText,
	}
	imetrics.IncEventsEmitted()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Buffer full: the consumer is too slow, cut it loose.
			delete(b.subs, id)
			close(ch)
			imetrics.IncEventsDropped()
			imetrics.IncSubscribersDropped()
			b.logger.Warn("dropping slow event subscriber",
				zap.Int("subscriber", id), zap.Uint64("seq", ev.Seq))
		}
	}
}

// Seq returns the sequence number of the last emitted event.
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Close ends the stream and closes all subscriber channels. Emit becomes a
// no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan Event, n int, timeout time.Duration) []Event {
	out := make([]Event, 0, n)
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestBus_OrderedDelivery(t *testing.T) {
	b := NewBus("run-1", 16, nil)
	defer b.Close()

	ch, cancel := b.Subscribe(context.Background())
	defer cancel()

	b.Emit(KindRunStarted, "", nil, "")
	b.Emit(KindVertexStarted, "a", nil, "")
	b.Emit(KindVertexFinished, "a", map[string]interface{}{"elapsed_ms": 3}, "")
	b.Emit(KindRunFinished, "", nil, "")

	got := collect(ch, 4, time.Second)
	require.Len(t, got, 4)
	for i, ev := range got {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, "run-1", ev.RunID)
	}
	assert.Equal(t, KindRunStarted, got[0].Kind)
	assert.Equal(t, KindRunFinished, got[3].Kind)
}

func TestBus_MultipleSubscribersSeeSameOrder(t *testing.T) {
	b := NewBus("run-2", 16, nil)
	defer b.Close()

	ch1, cancel1 := b.Subscribe(context.Background())
	defer cancel1()
	ch2, cancel2 := b.Subscribe(context.Background())
	defer cancel2()

	for i := 0; i < 5; i++ {
		b.Emit(KindVertexLog, "v", nil, "")
	}

	got1 := collect(ch1, 5, time.Second)
	got2 := collect(ch2, 5, time.Second)
	require.Len(t, got1, 5)
	assert.Equal(t, got1, got2)
}

func TestBus_SlowSubscriberDropped(t *testing.T) {
	b := NewBus("run-3", 2, nil)
	defer b.Close()

	slow, cancel := b.Subscribe(context.Background())
	defer cancel()

	// Fill the buffer, then overflow it. The third emit drops the subscriber.
	b.Emit(KindVertexLog, "v", nil, "")
	b.Emit(KindVertexLog, "v", nil, "")
	b.Emit(KindVertexLog, "v", nil, "")

	got := collect(slow, 3, 200*time.Millisecond)
	assert.Len(t, got, 2, "buffered events are still readable after the drop")

	_, open := <-slow
	assert.False(t, open, "channel is closed after the drop")
}

func TestBus_SubscribeAfterClose(t *testing.T) {
	b := NewBus("run-4", 4, nil)
	b.Close()

	ch, cancel := b.Subscribe(context.Background())
	defer cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestBus_EmitAfterCloseIsNoop(t *testing.T) {
	b := NewBus("run-5", 4, nil)
	b.Close()
	b.Emit(KindRunFinished, "", nil, "")
	assert.Equal(t, uint64(0), b.Seq())
}

func TestBus_ContextCancelUnsubscribes(t *testing.T) {
	b := NewBus("run-6", 4, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, unsub := b.Subscribe(ctx)
	defer unsub()

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestBus_CancelIdempotent(t *testing.T) {
	b := NewBus("run-7", 4, nil)
	defer b.Close()

	_, cancel := b.Subscribe(context.Background())
	cancel()
	cancel()
}

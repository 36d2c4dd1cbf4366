package pubsub

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		require.FailNow(t, "timeout waiting for event")
	}
	return Event[T]{}
}

func TestBroker_DeliversToEverySubscriber(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	broker.now = func() time.Time { return fixed }

	ch1 := broker.Subscribe(context.Background())
	ch2 := broker.Subscribe(context.Background())
	require.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(ParsedEvent, 7)

	for _, ch := range []<-chan Event[int]{ch1, ch2} {
		ev := receive(t, ch)
		require.Equal(t, Event[int]{Type: ParsedEvent, Payload: 7, Timestamp: fixed}, ev)
	}
}

func TestBroker_ContextEndsSubscription(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	require.False(t, ok)
}

func TestBroker_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		broker.Publish(RegisteredEvent, 1)
		broker.Publish(RegisteredEvent, 2)
		broker.Publish(RegisteredEvent, 3)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "Publish blocked")
	}

	require.Equal(t, 1, receive(t, ch).Payload)
	require.Equal(t, uint64(2), broker.Dropped())
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()
	ch := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()

	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, broker.SubscriberCount())

	late := broker.Subscribe(context.Background())
	_, ok = <-late
	require.False(t, ok, "subscribing after Close yields a closed channel")

	broker.Publish(ReleasedEvent, "ignored")
}

func TestBroker_CancelAfterCloseIsSafe(t *testing.T) {
	broker := NewBroker[string]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)

	broker.Close()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
	require.Never(t, func() bool { return broker.SubscriberCount() != 0 }, 20*time.Millisecond, 5*time.Millisecond)
}

func TestBroker_CloseStopsSubscriptionGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()

	broker := NewBroker[int]()
	for i := 0; i < 50; i++ {
		broker.Subscribe(context.Background())
	}
	require.GreaterOrEqual(t, runtime.NumGoroutine(), before+50)

	broker.Close()
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 5*time.Millisecond)
}

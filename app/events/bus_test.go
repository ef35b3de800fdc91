package events

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDelivery(t *testing.T) {
	bus := NewBus(4, nil)
	defer bus.Close()

	t.Run("every open subscriber receives a publish", func(t *testing.T) {
		first := bus.Subscribe()
		second := bus.Subscribe()
		defer first.Cancel()
		defer second.Cancel()

		bus.Publish(Event{Type: PostUpdated, PostID: "p1"})

		for _, sub := range []*Subscription{first, second} {
			select {
			case event := <-sub.C:
				assert.Equal(t, PostUpdated, event.Type)
				assert.Equal(t, "p1", event.PostID)
				assert.False(t, event.Timestamp.IsZero())
			default:
				t.Fatal("expected a queued event")
			}
		}
	})

	t.Run("cancelled subscriber receives nothing and publish does not error", func(t *testing.T) {
		sub := bus.Subscribe()
		sub.Cancel()
		sub.Cancel() // repeat cancel is safe

		bus.Publish(Event{Type: PostDeleted, PostID: "p2"})

		select {
		case event := <-sub.C:
			t.Fatalf("unexpected delivery: %+v", event)
		default:
		}
	})

	t.Run("late subscriber sees no replay", func(t *testing.T) {
		bus.Publish(Event{Type: PostCreated, PostID: "p3"})
		sub := bus.Subscribe()
		defer sub.Cancel()

		select {
		case event := <-sub.C:
			t.Fatalf("unexpected replay: %+v", event)
		default:
		}
	})
}

func TestBusDropOldest(t *testing.T) {
	bus := NewBus(2, nil)
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Cancel()

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: PostUpdated, PostID: fmt.Sprintf("p%d", i)})
	}

	// The queue holds the two newest events; older ones were shed.
	first := <-sub.C
	second := <-sub.C
	assert.Equal(t, "p3", first.PostID)
	assert.Equal(t, "p4", second.PostID)

	select {
	case event := <-sub.C:
		t.Fatalf("queue should be empty, got %+v", event)
	default:
	}
}

func TestBusConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus(64, nil)
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(Event{Type: PostUpdated, PostID: "p"})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Subscribe().Cancel()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBusClose(t *testing.T) {
	bus := NewBus(4, nil)
	sub := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Close()
	assert.Equal(t, 0, bus.SubscriberCount())

	// Publishing after close is a no-op.
	bus.Publish(Event{Type: PostUpdated, PostID: "p1"})
	select {
	case event, ok := <-sub.C:
		if ok {
			t.Fatalf("unexpected delivery: %+v", event)
		}
	default:
	}

	// Subscriptions handed out after close never deliver anything,
	// not even a closed-channel zero value.
	late := bus.Subscribe()
	bus.Publish(Event{Type: PostUpdated, PostID: "p2"})
	select {
	case event, ok := <-late.C:
		t.Fatalf("unexpected receive: %+v (ok=%v)", event, ok)
	default:
	}
	late.Cancel()
}

package events

import (
	"testing"
	"time"
)

func recvOne(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events:
		if !ok {
			t.Fatal("subscription channel closed")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBusDeliversToMatchingSubscriber(t *testing.T) {
	bus := NewBus(Config{})
	defer bus.Close()

	sub := bus.Subscribe(TopicTokenRefreshed)
	defer sub.Close()

	bus.Publish(New(TopicTokenRefreshed, "pair"))
	bus.Publish(New(TopicAuthError, nil))

	event := recvOne(t, sub)
	if event.Topic != TopicTokenRefreshed {
		t.Fatalf("expected token-refreshed, got %s", event.Topic)
	}
	if event.ID == "" || event.At.IsZero() {
		t.Fatalf("expected populated envelope, got %+v", event)
	}

	select {
	case extra := <-sub.Events:
		t.Fatalf("unexpected extra event: %+v", extra)
	default:
	}
}

func TestBusEmptyTopicSetReceivesEverything(t *testing.T) {
	bus := NewBus(Config{})
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(New(TopicTokenRefreshed, nil))
	bus.Publish(New(TopicAuthError, nil))

	first := recvOne(t, sub)
	second := recvOne(t, sub)
	if first.Topic != TopicTokenRefreshed || second.Topic != TopicAuthError {
		t.Fatalf("unexpected order: %s then %s", first.Topic, second.Topic)
	}
}

func TestBusDuplicateIDSuppressed(t *testing.T) {
	bus := NewBus(Config{})
	defer bus.Close()

	sub := bus.Subscribe(TopicAuthError)
	defer sub.Close()

	event := New(TopicAuthError, nil)
	bus.Publish(event)
	bus.Publish(event)

	recvOne(t, sub)
	select {
	case extra := <-sub.Events:
		t.Fatalf("duplicate delivered: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusBacklogReplayToLateSubscriber(t *testing.T) {
	bus := NewBus(Config{BacklogLimit: 8})
	defer bus.Close()

	bus.Publish(New(TopicTokenRefreshed, 1))
	bus.Publish(New(TopicTokenRefreshed, 2))

	sub := bus.Subscribe(TopicTokenRefreshed)
	defer sub.Close()

	first := recvOne(t, sub)
	second := recvOne(t, sub)
	if first.Payload != 1 || second.Payload != 2 {
		t.Fatalf("expected replay in order, got %v then %v", first.Payload, second.Payload)
	}
}

func TestBusBacklogBounded(t *testing.T) {
	bus := NewBus(Config{BacklogLimit: 2})
	defer bus.Close()

	bus.Publish(New(TopicTimeoutWarning, 1))
	bus.Publish(New(TopicTimeoutWarning, 2))
	bus.Publish(New(TopicTimeoutWarning, 3))

	sub := bus.Subscribe(TopicTimeoutWarning)
	defer sub.Close()

	first := recvOne(t, sub)
	second := recvOne(t, sub)
	if first.Payload != 2 || second.Payload != 3 {
		t.Fatalf("expected oldest dropped from backlog, got %v then %v", first.Payload, second.Payload)
	}
}

func TestBusOverflowDropsOldestAndCounts(t *testing.T) {
	bus := NewBus(Config{SubscriberBuffer: 2})
	defer bus.Close()

	sub := bus.Subscribe(TopicTimeoutWarning)
	defer sub.Close()

	bus.Publish(New(TopicTimeoutWarning, 1))
	bus.Publish(New(TopicTimeoutWarning, 2))
	bus.Publish(New(TopicTimeoutWarning, 3))

	if got := bus.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped, got %d", got)
	}

	first := recvOne(t, sub)
	second := recvOne(t, sub)
	if first.Payload != 2 || second.Payload != 3 {
		t.Fatalf("expected oldest dropped, got %v then %v", first.Payload, second.Payload)
	}
}

func TestBusOverflowKeepsTerminalOverWarning(t *testing.T) {
	bus := NewBus(Config{SubscriberBuffer: 1})
	defer bus.Close()

	sub := bus.Subscribe(TopicTimeoutWarning, TopicAuthError)
	defer sub.Close()

	bus.Publish(New(TopicAuthError, nil))
	bus.Publish(New(TopicTimeoutWarning, nil))

	event := recvOne(t, sub)
	if event.Topic != TopicAuthError {
		t.Fatalf("terminal event was sacrificed for a warning: got %s", event.Topic)
	}
	if got := bus.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped, got %d", got)
	}
}

func TestBusSubscriptionCloseStopsDelivery(t *testing.T) {
	bus := NewBus(Config{})
	defer bus.Close()

	sub := bus.Subscribe(TopicSessionExpired)
	sub.Close()

	bus.Publish(New(TopicSessionExpired, nil))

	if _, ok := <-sub.Events; ok {
		t.Fatal("expected closed channel after subscription close")
	}
}

func TestBusCloseIdempotentAndRejectsPublish(t *testing.T) {
	bus := NewBus(Config{})
	sub := bus.Subscribe(TopicAuthError)

	bus.Close()
	bus.Close()
	bus.Publish(New(TopicAuthError, nil))

	if _, ok := <-sub.Events; ok {
		t.Fatal("expected closed subscriber channel after bus close")
	}
}

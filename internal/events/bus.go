package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Topic names a notification stream on the bus.
type Topic string

const (
	// TopicTokenRefreshed announces that a new token pair was persisted to storage.
	TopicTokenRefreshed Topic = "token-refreshed"
	// TopicAuthError announces a terminal authentication failure.
	TopicAuthError Topic = "auth-error"
	// TopicSessionExpired announces that the coordinator reached expiry on its own timer.
	TopicSessionExpired Topic = "session-expired"
	// TopicTimeoutWarning announces an impending expiry.
	TopicTimeoutWarning Topic = "timeout-warning"
	// TopicSnapshotSaved announces that a pending form snapshot was persisted.
	TopicSnapshotSaved Topic = "form-snapshot-saved"
)

const (
	defaultSubscriberBuffer = 16
	defaultBacklogLimit     = 32
	defaultDedupeWindow     = 256
)

// Event is a single notification delivered through the bus.
type Event struct {
	ID      string
	Topic   Topic
	At      time.Time
	Payload any
}

// New builds an event with a fresh ID and timestamp.
func New(topic Topic, payload any) Event {
	return Event{
		ID:      uuid.NewString(),
		Topic:   topic,
		At:      time.Now().UTC(),
		Payload: payload,
	}
}

// Logger receives best-effort diagnostics about dropped events.
type Logger interface {
	Printf(format string, args ...any)
}

// Config controls bus buffering behavior.
type Config struct {
	SubscriberBuffer int
	BacklogLimit     int
	DedupeWindow     int
	Logger           Logger
}

// Bus fans notifications out to subscribers with bounded buffers, a short
// pre-subscription backlog per topic, and duplicate suppression by event ID.
type Bus struct {
	mu          sync.Mutex
	cfg         Config
	subs        map[*subscriber]struct{}
	backlog     map[Topic][]Event
	recentIDs   map[string]struct{}
	recentOrder []string
	dropped     atomic.Uint64
	closed      bool
}

// Subscription is a live attachment to the bus. Events arrives in publish
// order; Close detaches and closes the channel.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func NewBus(cfg Config) *Bus {
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}
	if cfg.BacklogLimit <= 0 {
		cfg.BacklogLimit = defaultBacklogLimit
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = defaultDedupeWindow
	}
	return &Bus{
		cfg:         cfg,
		subs:        map[*subscriber]struct{}{},
		backlog:     map[Topic][]Event{},
		recentIDs:   map[string]struct{}{},
		recentOrder: make([]string, 0, cfg.DedupeWindow),
	}
}

// Subscribe attaches a bounded subscriber for the given topics. Backlogged
// events for those topics are replayed into the new channel first.
func (b *Bus) Subscribe(topics ...Topic) Subscription {
	sub := newSubscriber(b.cfg.SubscriberBuffer, topics, &b.dropped, b.cfg.Logger)

	var replay []Event
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return Subscription{Events: sub.ch, cancel: func() {}}
	}
	b.subs[sub] = struct{}{}
	for _, topic := range topics {
		if pending := b.backlog[topic]; len(pending) > 0 {
			replay = append(replay, pending...)
			delete(b.backlog, topic)
		}
	}
	b.mu.Unlock()

	for _, event := range replay {
		sub.deliver(event)
	}

	return Subscription{
		Events: sub.ch,
		cancel: func() { b.remove(sub) },
	}
}

// Publish delivers the event to every matching subscriber, or buffers it when
// no subscriber for the topic exists yet. Duplicate IDs inside the dedupe
// window are suppressed.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if event.ID != "" && b.isDuplicateLocked(event.ID) {
		b.mu.Unlock()
		return
	}
	targets := make([]*subscriber, 0, len(b.subs))
	for sub := range b.subs {
		if sub.wants(event.Topic) {
			targets = append(targets, sub)
		}
	}
	if len(targets) == 0 {
		b.bufferLocked(event)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(event)
	}
}

// Dropped reports how many events were discarded by saturated subscriber
// buffers since the bus was created.
func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

// Close detaches every subscriber and rejects further publishes.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = map[*subscriber]struct{}{}
	b.backlog = map[Topic][]Event{}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (b *Bus) remove(sub *subscriber) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.close()
}

func (b *Bus) bufferLocked(event Event) {
	queue := b.backlog[event.Topic]
	if len(queue) >= b.cfg.BacklogLimit {
		queue = queue[1:]
		if b.cfg.Logger != nil {
			b.cfg.Logger.Printf("events: backlog drop for %s (limit %d)", event.Topic, b.cfg.BacklogLimit)
		}
	}
	b.backlog[event.Topic] = append(queue, event)
}

func (b *Bus) isDuplicateLocked(eventID string) bool {
	if _, ok := b.recentIDs[eventID]; ok {
		return true
	}
	b.recentIDs[eventID] = struct{}{}
	b.recentOrder = append(b.recentOrder, eventID)
	if len(b.recentOrder) > b.cfg.DedupeWindow {
		oldest := b.recentOrder[0]
		b.recentOrder = b.recentOrder[1:]
		delete(b.recentIDs, oldest)
	}
	return false
}

type subscriber struct {
	ch      chan Event
	topics  map[Topic]struct{}
	dropped *atomic.Uint64
	logger  Logger
	closed  bool
	closeMu sync.Mutex
}

func newSubscriber(capacity int, topics []Topic, dropped *atomic.Uint64, logger Logger) *subscriber {
	set := make(map[Topic]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return &subscriber{
		ch:      make(chan Event, capacity),
		topics:  set,
		dropped: dropped,
		logger:  logger,
	}
}

// wants reports whether the subscriber asked for the topic. An empty topic
// set means every topic.
func (s *subscriber) wants(topic Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

func (s *subscriber) deliver(event Event) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- event:
		return
	default:
	}

	// Buffer full: sacrifice whichever of the oldest buffered event and the
	// incoming one matters less. Terminal notifications always survive.
	select {
	case oldest := <-s.ch:
		if dropOldest(oldest.Topic, event.Topic) {
			s.countDrop(oldest)
			s.ch <- event
		} else {
			s.ch <- oldest
			s.countDrop(event)
		}
	default:
		// Consumer drained the buffer between the two selects.
		s.ch <- event
	}
}

func (s *subscriber) countDrop(event Event) {
	if s.dropped != nil {
		s.dropped.Add(1)
	}
	if s.logger != nil {
		s.logger.Printf("events: dropped %s (queue overflow)", event.Topic)
	}
}

func (s *subscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func dropOldest(oldest, incoming Topic) bool {
	oldestTerminal := isTerminalTopic(oldest)
	incomingTerminal := isTerminalTopic(incoming)
	switch {
	case oldestTerminal && !incomingTerminal:
		return false
	case !oldestTerminal && incomingTerminal:
		return true
	}
	if oldest == TopicTimeoutWarning && incoming != TopicTimeoutWarning {
		return true
	}
	if oldest != TopicTimeoutWarning && incoming == TopicTimeoutWarning {
		return false
	}
	return true
}

func isTerminalTopic(topic Topic) bool {
	return topic == TopicAuthError || topic == TopicSessionExpired
}

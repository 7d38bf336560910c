package store

import (
	"sync"
)

// Store is the published snapshot of the consumer.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	snapshot    Snapshot
	subscribers map[chan Update]struct{}
}

// New creates a new Store instance.
func New() *Store {
	return &Store{
		snapshot:    Snapshot{Sessions: []TrackedSession{}, Registered: []string{}},
		subscribers: make(map[chan Update]struct{}),
	}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snapshot)
}

// Publish replaces the snapshot and notifies subscribers.
func (s *Store) Publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = copySnapshot(snap)
	u := Update{Type: UpdateSnapshot, Source: "lifecycle", Payload: copySnapshot(snap)}
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the consumer
		}
	}
}

// Subscribe creates a new subscription channel for snapshot updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100) // Buffered
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

func copySnapshot(in Snapshot) Snapshot {
	out := in
	out.Sessions = append([]TrackedSession{}, in.Sessions...)
	out.Registered = append([]string{}, in.Registered...)
	return out
}

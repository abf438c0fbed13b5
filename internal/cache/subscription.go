package cache

import (
	"context"
	"sync"

	"brainsync-client/internal/apperr"
)

// Snapshot is a consistent copy of an entry at one instant.
type Snapshot[R any] struct {
	Key         Key
	Status      Status
	Value       R
	HasValue    bool
	Err         error
	Subscribers int
	Tags        []Tag
}

// Subscription keeps its entry alive until Unsubscribe.
type Subscription[R any] struct {
	engine  *Engine
	entry   *entry
	id      int
	updates chan struct{}
	once    sync.Once
}

func (s *Subscription[R]) Key() Key {
	return s.entry.key
}

func (s *Subscription[R]) Snapshot() Snapshot[R] {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Subscription[R]) snapshotLocked() Snapshot[R] {
	en := s.entry
	snap := Snapshot[R]{
		Key:         en.key,
		Status:      en.status,
		Err:         en.err,
		Subscribers: len(en.subscribers),
		Tags:        append([]Tag(nil), en.tags...),
	}
	if v, ok := en.value.(R); ok {
		snap.Value = v
		snap.HasValue = true
	}
	return snap
}

// Updates signals every state change of the entry. Signals coalesce: a slow reader sees
// at least one signal after the latest change, not one per change.
func (s *Subscription[R]) Updates() <-chan struct{} {
	return s.updates
}

// Wait blocks until the entry is settled and returns its value or error.
func (s *Subscription[R]) Wait(ctx context.Context) (R, error) {
	for {
		s.engine.mu.Lock()
		en := s.entry
		if en.removed {
			s.engine.mu.Unlock()
			var zero R
			return zero, ErrUnsubscribed
		}
		if en.status.Settled() && !en.inFlight {
			snap := s.snapshotLocked()
			s.engine.mu.Unlock()
			return snap.Value, snap.Err
		}
		settled := en.settled
		s.engine.mu.Unlock()

		if settled == nil {
			// Not started yet; the subscribe path always starts a fetch, so this is transient.
			select {
			case <-s.updates:
			case <-ctx.Done():
				var zero R
				return zero, ctx.Err()
			}
			continue
		}

		select {
		case <-settled:
		case <-ctx.Done():
			var zero R
			return zero, ctx.Err()
		}
	}
}

// Refetch forces a new fetch unless one is already in flight.
func (s *Subscription[R]) Refetch() {
	s.engine.refetch(s.entry)
}

func (s *Subscription[R]) Unsubscribe() {
	s.once.Do(func() {
		s.engine.unsubscribe(s.entry, s.id)
	})
}

func isNotFound(err error) bool {
	return apperr.IsNotFound(err)
}

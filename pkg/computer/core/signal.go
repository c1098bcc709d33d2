// Package core holds the primitives shared by the rest of the computer
// packages.
package core

import "fmt"

// Observer is notified when the state guarded by a Signal changes. It carries
// no payload: observers must re-read whatever they care about.
type Observer func() error

// SubscriptionID identifies an attached observer.
type SubscriptionID string

// subscription holds an observer and whether it is still attached
type subscription struct {
	id       SubscriptionID
	observer Observer
	attached bool
}

// Signal is a payload-free broadcast flag with any number of observers.
//
// Observers run synchronously in attachment order. Calling Signal from inside
// an observer does not recurse: the call is recorded and one further pass runs
// once the current pass completes, so every observer attached before a Signal
// call sees at least one notification after it.
//
// A Signal is not safe for concurrent use.
type Signal struct {
	subscriptions []*subscription
	nextID        int
	firing        bool
	pending       bool
}

// NewSignal creates a signal with no observers.
func NewSignal() *Signal {
	return &Signal{nextID: 1}
}

// Attach registers an observer and returns its subscription ID.
func (s *Signal) Attach(observer Observer) SubscriptionID {
	if s.nextID == 0 {
		s.nextID = 1
	}
	id := SubscriptionID(fmt.Sprintf("sub_%d", s.nextID))
	s.nextID++

	s.subscriptions = append(s.subscriptions, &subscription{id: id, observer: observer, attached: true})
	return id
}

// Detach removes an observer. Unknown IDs are ignored. An observer detached
// while a pass is running is skipped for the rest of that pass.
func (s *Signal) Detach(id SubscriptionID) {
	for i, sub := range s.subscriptions {
		if sub.id != id {
			continue
		}

		sub.attached = false
		// Copy rather than shift in place: a running pass holds the old slice.
		remaining := make([]*subscription, 0, len(s.subscriptions)-1)
		remaining = append(remaining, s.subscriptions[:i]...)
		remaining = append(remaining, s.subscriptions[i+1:]...)
		s.subscriptions = remaining
		return
	}
}

// Len returns the number of attached observers.
func (s *Signal) Len() int {
	return len(s.subscriptions)
}

// Signal notifies every attached observer. The first observer error aborts
// the pass and is returned; any queued re-entrant pass is dropped with it.
func (s *Signal) Signal() (err error) {
	if s.firing {
		s.pending = true
		return nil
	}

	s.firing = true
	defer func() {
		s.firing = false
		s.pending = false
	}()

	for {
		s.pending = false
		for _, sub := range s.subscriptions {
			if !sub.attached {
				continue
			}
			if err := sub.observer(); err != nil {
				return fmt.Errorf("observer %s: %w", sub.id, err)
			}
		}

		if !s.pending {
			return nil
		}
	}
}

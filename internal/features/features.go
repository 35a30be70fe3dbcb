// Package features holds runtime switches the user can flip while the
// program runs, with change notification.
package features

import "sync"

type subscriber struct {
	id int
	fn func(bool)
}

// Set is safe for concurrent use.
type Set struct {
	mu           sync.Mutex
	richPresence bool
	subs         []subscriber
	nextID       int
}

// New returns a Set with rich presence initially enabled or disabled.
func New(richPresenceEnabled bool) *Set {
	return &Set{richPresence: richPresenceEnabled}
}

// RichPresenceEnabled reports whether presence updates are published.
func (s *Set) RichPresenceEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.richPresence
}

// SetRichPresenceEnabled stores v and notifies subscribers when the value
// changed. It reports whether it did.
func (s *Set) SetRichPresenceEnabled(v bool) bool {
	s.mu.Lock()
	if s.richPresence == v {
		s.mu.Unlock()
		return false
	}
	s.richPresence = v
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
	return true
}

// ToggleRichPresence flips the switch and returns the new value.
func (s *Set) ToggleRichPresence() bool {
	s.mu.Lock()
	next := !s.richPresence
	s.mu.Unlock()
	s.SetRichPresenceEnabled(next)
	return next
}

// OnRichPresenceChanged registers fn for changes. Callbacks run in
// registration order on the goroutine that made the change.
func (s *Set) OnRichPresenceChanged(fn func(bool)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/playpresence/internal/logtail"
	"github.com/five82/playpresence/internal/session"
)

// Presence describes what is currently published.
type Presence struct {
	Enabled       bool
	Active        bool
	Title         string
	ApplicationID string
	Official      bool
	Connected     bool
	Since         time.Time
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Session       session.Record
	HasSession    bool
	SessionSource string
	Presence      Presence
	Readers       []logtail.Status
	LastUpdated   time.Time
	LastError     error
	// ConsecutiveFailures counts polls in a row that reported a transport error.
	ConsecutiveFailures int
}

// IsOffline returns true when the presence transport has failed for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// SetSession records the most recent session transition.
func (s *Store) SetSession(rec session.Record, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Session = rec
	s.snapshot.HasSession = true
	s.snapshot.SessionSource = source
	s.snapshot.LastUpdated = time.Now()
}

// SetPresence replaces the published presence description. Connected is
// owned by Update and is preserved.
func (s *Store) SetPresence(p Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Connected = s.snapshot.Presence.Connected
	s.snapshot.Presence = p
	s.snapshot.LastUpdated = time.Now()
}

// Update records a poll of the reader statuses and the transport. When err is
// non-nil and readers is empty the previous reader data is kept; the error is
// recorded for visibility either way.
func (s *Store) Update(readers []logtail.Status, connected bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Presence.Connected = connected
	s.snapshot.LastUpdated = time.Now()
	if len(readers) > 0 || err == nil {
		s.snapshot.Readers = cloneReaders(readers)
	}
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Readers = cloneReaders(s.snapshot.Readers)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneReaders(items []logtail.Status) []logtail.Status {
	if len(items) == 0 {
		return nil
	}
	dup := make([]logtail.Status, len(items))
	copy(dup, items)
	return dup
}

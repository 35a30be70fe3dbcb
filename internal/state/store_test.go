package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/playpresence/internal/logtail"
	"github.com/five82/playpresence/internal/session"
)

func TestStore_UpdateAndSnapshotClone(t *testing.T) {
	var s Store

	readers := []logtail.Status{
		{Name: "release", Phase: logtail.PhaseWatching, Offset: 42},
		{Name: "developer", Phase: logtail.PhaseIdle},
	}

	before := time.Now()
	s.Update(readers, true, nil)

	snap := s.Snapshot()
	if len(snap.Readers) != 2 || snap.Readers[0].Offset != 42 {
		t.Fatalf("snapshot readers = %#v, want 2 statuses", snap.Readers)
	}
	if !snap.Presence.Connected {
		t.Fatal("Presence.Connected = false, want true")
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}
	if snap.LastError != nil {
		t.Fatalf("LastError = %v, want nil", snap.LastError)
	}

	// Returned snapshot should be independent of the stored one.
	snap.Readers[0].Offset = 999
	snap2 := s.Snapshot()
	if snap2.Readers[0].Offset != 42 {
		t.Fatalf("Snapshot should clone readers; got offset %d want 42", snap2.Readers[0].Offset)
	}
}

func TestStore_UpdateErrorKeepsPreviousData(t *testing.T) {
	var s Store

	s.Update([]logtail.Status{{Name: "release", Offset: 1}}, true, nil)
	prev := s.Snapshot()

	before := time.Now()
	origErr := errors.New("boom")
	s.Update(nil, false, origErr)

	snap := s.Snapshot()
	if len(snap.Readers) != 1 || snap.Readers[0].Offset != prev.Readers[0].Offset {
		t.Fatalf("readers changed on error: got %#v want %#v", snap.Readers, prev.Readers)
	}
	if snap.Presence.Connected {
		t.Fatal("Presence.Connected = true after failed poll")
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	snap := s.Snapshot()
	if snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("initial snapshot = %d failures, offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.Update(nil, false, errors.New("fail 1"))
	if snap = s.Snapshot(); snap.ConsecutiveFailures != 1 || snap.IsOffline() {
		t.Fatalf("after 1 failure: %d failures, offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.Update(nil, false, errors.New("fail 2"))
	if snap = s.Snapshot(); snap.ConsecutiveFailures != 2 || !snap.IsOffline() {
		t.Fatalf("after 2 failures: %d failures, offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.Update(nil, true, nil)
	if snap = s.Snapshot(); snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("after success: %d failures, offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}
}

func TestStore_SessionAndPresence(t *testing.T) {
	var s Store

	rec := session.Record{PackageName: "com.YoStarEN.Arknights", Title: "Arknights", State: session.StateRunning}
	s.SetSession(rec, "release")
	s.Update(nil, true, nil)
	s.SetPresence(Presence{Enabled: true, Active: true, Title: "Arknights", ApplicationID: "1"})

	snap := s.Snapshot()
	if !snap.HasSession || !snap.Session.Same(rec) || snap.SessionSource != "release" {
		t.Fatalf("session = %#v from %q", snap.Session, snap.SessionSource)
	}
	if !snap.Presence.Active || snap.Presence.Title != "Arknights" {
		t.Fatalf("presence = %#v", snap.Presence)
	}
	if !snap.Presence.Connected {
		t.Fatal("SetPresence should preserve Connected from the last poll")
	}
}

func TestStore_UpdateErrorWithReadersReplacesThem(t *testing.T) {
	var s Store

	s.Update([]logtail.Status{{Name: "release", Offset: 1}}, true, nil)
	s.Update([]logtail.Status{{Name: "release", Offset: 9}}, false, errors.New("dial discord ipc: no ipc endpoints"))

	snap := s.Snapshot()
	if len(snap.Readers) != 1 || snap.Readers[0].Offset != 9 {
		t.Fatalf("readers = %#v, want the polled offset 9", snap.Readers)
	}
	if snap.ConsecutiveFailures != 1 || snap.LastError == nil {
		t.Fatalf("failures = %d err = %v", snap.ConsecutiveFailures, snap.LastError)
	}
}

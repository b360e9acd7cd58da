package v16

import (
	"testing"
)

func TestStationRegistry_AttachReturnsPrior(t *testing.T) {
	// Arrange
	log := newTestLogger()
	reg := NewStationRegistry(log)
	first := NewSession("CP_1", nil, nil, SessionConfig{}, log)
	second := NewSession("CP_1", nil, nil, SessionConfig{}, log)

	// Act
	priorOfFirst := reg.Attach(first)
	priorOfSecond := reg.Attach(second)

	// Assert
	if priorOfFirst != nil {
		t.Error("first attach must not report a prior session")
	}
	if priorOfSecond != first {
		t.Error("second attach must hand back the superseded session")
	}
	current, ok := reg.Get("CP_1")
	if !ok || current != second {
		t.Error("the newer session must be the current one")
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 registered station, got %d", reg.Len())
	}
}

func TestStationRegistry_DetachOnlyRemovesCurrent(t *testing.T) {
	// Arrange: old session got superseded, then its teardown hook fires.
	log := newTestLogger()
	reg := NewStationRegistry(log)
	old := NewSession("CP_1", nil, nil, SessionConfig{}, log)
	replacement := NewSession("CP_1", nil, nil, SessionConfig{}, log)
	reg.Attach(old)
	reg.Attach(replacement)

	// Act
	removed := reg.Detach(old)

	// Assert: the evicted session must not tear down its replacement.
	if removed {
		t.Error("detaching a superseded session must be a no-op")
	}
	current, ok := reg.Get("CP_1")
	if !ok || current != replacement {
		t.Error("the replacement session must survive the old one's teardown")
	}

	if !reg.Detach(replacement) {
		t.Error("detaching the current session must succeed")
	}
	if reg.Len() != 0 {
		t.Errorf("expected an empty registry, got %d", reg.Len())
	}
}

func TestStationRegistry_IDsAndSnapshot(t *testing.T) {
	log := newTestLogger()
	reg := NewStationRegistry(log)
	reg.Attach(NewSession("CP_1", nil, nil, SessionConfig{}, log))
	reg.Attach(NewSession("CP_2", nil, nil, SessionConfig{}, log))

	ids := reg.IDs()
	sessions := reg.Snapshot()

	if len(ids) != 2 {
		t.Errorf("expected 2 ids, got %d", len(ids))
	}
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(sessions))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["CP_1"] || !seen["CP_2"] {
		t.Errorf("unexpected id set %v", ids)
	}
}

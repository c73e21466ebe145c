package session

import "testing"

func TestSwitchStartsNewGeneration(t *testing.T) {
	s := New("")
	if s.ActiveStoreID() != "" {
		t.Fatalf("expected no active store")
	}
	if s.IsCurrent(s.Token()) {
		t.Fatalf("token without store must never be current")
	}

	first := s.Switch("store_a")
	if !s.IsCurrent(first) {
		t.Fatalf("fresh token should be current")
	}

	second := s.Switch("store_b")
	if s.IsCurrent(first) {
		t.Fatalf("token of previous store should be stale")
	}
	if !s.IsCurrent(second) || second.Generation <= first.Generation {
		t.Fatalf("unexpected second token %+v after %+v", second, first)
	}

	back := s.Switch("store_a")
	if s.IsCurrent(first) {
		t.Fatalf("switching back must not revive an old generation")
	}
	if !s.IsCurrent(back) {
		t.Fatalf("expected token for store_a to be current")
	}
}

func TestSwitchToSameStoreIsNoop(t *testing.T) {
	s := New("store_a")
	before := s.Token()
	after := s.Switch("store_a")
	if before != after {
		t.Fatalf("expected same token, got %+v then %+v", before, after)
	}
}

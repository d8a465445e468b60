package ui

import "testing"

func TestComputeKey(t *testing.T) {
	if ComputeKey("test", 123, 0.456, true) != ComputeKey("test", 123, 0.456, true) {
		t.Errorf("expected same hash for same inputs")
	}
	if ComputeKey("prefix", 1.0) == ComputeKey("prefix", 2.0) {
		t.Errorf("hash collision for different floats")
	}
	if ComputeKey(int64(7)) == ComputeKey(int64(8)) {
		t.Errorf("hash collision for different int64s")
	}
	// String boundaries are part of the key.
	if ComputeKey("ab", "c") == ComputeKey("a", "bc") {
		t.Errorf("hash collision across string boundaries")
	}
}

func TestRenderCache_GetOrCompute(t *testing.T) {
	rc := NewRenderCache(2)
	calls := 0
	render := func() string {
		calls++
		return "rendered"
	}

	key := ComputeKey("a")
	if got := rc.GetOrCompute(key, render); got != "rendered" {
		t.Fatalf("got %q", got)
	}
	rc.GetOrCompute(key, render)
	if calls != 1 {
		t.Fatalf("expected one compute, got %d", calls)
	}
}

func TestRenderCache_EvictsLeastRecentlyUsed(t *testing.T) {
	rc := NewRenderCache(2)
	rc.Set(1, "one")
	rc.Set(2, "two")
	rc.Get(1)
	rc.Set(3, "three")

	if _, ok := rc.Get(2); ok {
		t.Errorf("expected key 2 to be evicted")
	}
	if v, ok := rc.Get(1); !ok || v != "one" {
		t.Errorf("expected key 1 to survive, got %q %v", v, ok)
	}
	if rc.Len() != 2 {
		t.Errorf("len = %d", rc.Len())
	}

	rc.Clear()
	if rc.Len() != 0 {
		t.Errorf("expected empty cache after Clear")
	}
}

func TestNewRenderCache_DefaultSize(t *testing.T) {
	rc := NewRenderCache(0)
	for i := 0; i < 200; i++ {
		rc.Set(uint64(i), "x")
	}
	if rc.Len() != 128 {
		t.Errorf("len = %d, want 128", rc.Len())
	}
}

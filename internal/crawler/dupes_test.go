package crawler

import "testing"

func TestDupeCounterReachesThreshold(t *testing.T) {
	t.Parallel()

	c := newDupeCounter(3)
	if c.Duplicate() {
		t.Fatal("first hit must not reach the threshold")
	}
	if c.Duplicate() {
		t.Fatal("second hit must not reach the threshold")
	}
	if !c.Duplicate() {
		t.Fatal("third hit must reach the threshold")
	}
	if got := c.Count(); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
}

func TestDupeCounterReset(t *testing.T) {
	t.Parallel()

	c := newDupeCounter(2)
	c.Duplicate()
	c.Reset()
	if c.Duplicate() {
		t.Fatal("streak must restart from zero after a reset")
	}
	if !c.Duplicate() {
		t.Fatal("streak must build up again after a reset")
	}
}

func TestDupeCounterDefaultThreshold(t *testing.T) {
	t.Parallel()

	c := newDupeCounter(0)
	for i := 0; i < defaultDuplicateThreshold-1; i++ {
		if c.Duplicate() {
			t.Fatalf("hit %d must not reach the default threshold", i+1)
		}
	}
	if !c.Duplicate() {
		t.Fatal("default threshold never fired")
	}
}

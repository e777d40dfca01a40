package clock_test

import (
	"testing"

	"github.com/df-mc/gdk/clock"
)

func TestReadAdvances(t *testing.T) {
	c := clock.New()
	if got := c.Read(); got != 0 {
		t.Fatalf("first read = %d, want 0", got)
	}
	if got := c.Read(); got != 1 {
		t.Fatalf("second read = %d, want 1", got)
	}
	if got := c.Peek(); got != 2 {
		t.Fatalf("peek = %d, want 2", got)
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	c := clock.New()
	c.Read()
	before := c.Peek()
	after := c.Peek()
	if before != after {
		t.Fatalf("peek should not advance the clock")
	}
}

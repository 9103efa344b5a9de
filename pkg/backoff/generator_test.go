package backoff

import (
	"testing"
	"time"
)

func TestExponentialFactoryGrowsAndCaps(t *testing.T) {
	factory := NewExponentialFactory(100*time.Millisecond, 1*time.Second, 2, 0)
	seq := factory()

	var prev time.Duration
	for i := 0; i < 10; i++ {
		d := seq.Next()
		if d < prev {
			t.Fatalf("delay decreased: %v then %v", prev, d)
		}
		if d > 1*time.Second {
			t.Fatalf("delay exceeded cap: %v", d)
		}
		prev = d
	}
}

func TestFactoryIsRestartable(t *testing.T) {
	factory := NewExponentialFactory(100*time.Millisecond, 1*time.Second, 2, 0)

	seqA := factory()
	for i := 0; i < 5; i++ {
		seqA.Next()
	}

	seqB := factory()
	first := seqB.Next()
	if first != 100*time.Millisecond {
		t.Fatalf("fresh sequence did not restart at initial interval: got %v", first)
	}
}

func TestDefaultPageSplitDelay(t *testing.T) {
	got := DefaultPageSplitDelay(10)
	want := 10*75*time.Millisecond + 2500*time.Millisecond
	if got != want {
		t.Fatalf("DefaultPageSplitDelay(10) = %v, want %v", got, want)
	}
}

func TestDefaultGenerators(t *testing.T) {
	for _, factory := range []Factory{DefaultRetryDelayLow(), DefaultRetryDelayHigh(), DefaultReconnectDelay()} {
		seq := factory()
		if d := seq.Next(); d <= 0 {
			t.Fatalf("expected positive delay, got %v", d)
		}
	}
}

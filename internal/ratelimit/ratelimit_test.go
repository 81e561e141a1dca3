package ratelimit

import (
	"errors"
	"testing"
)

func TestUnlimitedByDefault(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 100; i++ {
		if err := l.Allow("bash", 0); err != nil {
			t.Fatalf("unlimited shell denied request %d: %v", i, err)
		}
	}
}

func TestBudgetExhaustion(t *testing.T) {
	l := NewLimiter()

	for i := 0; i < 3; i++ {
		if err := l.Allow("bash", 3); err != nil {
			t.Fatalf("request %d denied within budget: %v", i, err)
		}
	}
	if err := l.Allow("bash", 3); !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestBucketsAreIndependent(t *testing.T) {
	l := NewLimiter()

	if err := l.Allow("bash", 1); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow("bash", 1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("bash bucket should be empty: %v", err)
	}
	// A different shell has its own bucket and its own budget.
	if err := l.Allow("wsl", 5); err != nil {
		t.Errorf("wsl denied by bash's exhaustion: %v", err)
	}
	// And an unlimited shell is never throttled.
	if err := l.Allow("cmd", 0); err != nil {
		t.Errorf("unlimited shell throttled: %v", err)
	}
}

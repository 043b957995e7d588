package auth

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestIssueTakeRoundTrip(t *testing.T) {
	s := newStateStore(time.Now)

	token, err := s.Issue(42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	userID, ok := s.Take(token)
	if !ok || userID != 42 {
		t.Fatalf("Take = (%d, %v), want (42, true)", userID, ok)
	}
}

func TestTakeIsSingleUse(t *testing.T) {
	s := newStateStore(time.Now)
	token, _ := s.Issue(42)

	if _, ok := s.Take(token); !ok {
		t.Fatal("first Take failed")
	}
	if _, ok := s.Take(token); ok {
		t.Fatal("second Take of the same token succeeded")
	}
}

func TestTakeUnknownToken(t *testing.T) {
	s := newStateStore(time.Now)
	if _, ok := s.Take("never-issued"); ok {
		t.Fatal("Take of unknown token succeeded")
	}
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	s := newStateStore(time.Now)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := s.Issue(1)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if seen[token] {
			t.Fatal("duplicate token issued")
		}
		seen[token] = true
	}
}

func TestTakeExpiredToken(t *testing.T) {
	now := time.Now()
	clock := &now
	s := newStateStore(func() time.Time { return *clock })

	token, _ := s.Issue(42)

	later := now.Add(stateTTL + time.Second)
	clock = &later

	if _, ok := s.Take(token); ok {
		t.Fatal("Take of expired token succeeded")
	}
}

func TestIssuePrunesExpiredEntries(t *testing.T) {
	now := time.Now()
	clock := &now
	s := newStateStore(func() time.Time { return *clock })

	stale, _ := s.Issue(1)

	later := now.Add(stateTTL + time.Second)
	clock = &later
	if _, err := s.Issue(2); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	s.mu.Lock()
	_, stillThere := s.entries[stale]
	s.mu.Unlock()
	if stillThere {
		t.Fatal("expired entry survived pruning")
	}
}

func TestTakeConcurrentSingleWinner(t *testing.T) {
	s := newStateStore(time.Now)
	token, _ := s.Issue(42)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Take(token); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("want exactly 1 successful Take, got %d", got)
	}
}

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// stateTTL bounds how long an issued authorization link stays usable.
const stateTTL = 10 * time.Minute

type stateEntry struct {
	userID  int64
	created time.Time
}

// stateStore maps single-use state tokens to user ids. Take removes the
// entry atomically, so a token is consumable exactly once even under
// concurrent callback delivery.
type stateStore struct {
	mu      sync.Mutex
	entries map[string]stateEntry
	now     func() time.Time
}

func newStateStore(now func() time.Time) *stateStore {
	return &stateStore{
		entries: make(map[string]stateEntry),
		now:     now,
	}
}

// Issue generates a cryptographically random token and records the
// token -> userID mapping. Expired entries are pruned on the way.
func (s *stateStore) Issue(userID int64) (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.entries[token] = stateEntry{userID: userID, created: s.now()}
	return token, nil
}

// Take removes and returns the mapping for token. The second return is
// false when the token is unknown, already consumed, or expired.
func (s *stateStore) Take(token string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok {
		return 0, false
	}
	delete(s.entries, token)
	if s.now().Sub(entry.created) > stateTTL {
		return 0, false
	}
	return entry.userID, true
}

// prune drops expired entries. Caller holds the lock.
func (s *stateStore) prune() {
	cutoff := s.now().Add(-stateTTL)
	for token, entry := range s.entries {
		if entry.created.Before(cutoff) {
			delete(s.entries, token)
		}
	}
}

package core

import (
	"context"
	"crypto/rand"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"
)

var (
	ErrVerifierNotFound = errors.New("core: oauth state not found")
	ErrVerifierExpired  = errors.New("core: oauth state expired")

	errVerifierStoreMissing = errors.New("core: verifier store is not configured")
	errStateRequired        = errors.New("core: oauth state is required")
)

// VerifierRecord is a pending authorization waiting for its callback.
type VerifierRecord struct {
	Platform     Platform
	State        string
	CodeVerifier string
	RedirectURI  string
	Owner        *OwnerRef
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the record is past its deadline at now. A zero
// deadline never expires.
func (r VerifierRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

func (r VerifierRecord) clone() VerifierRecord {
	if r.Owner != nil {
		owner := *r.Owner
		r.Owner = &owner
	}
	return r
}

type pendingKey struct {
	platform Platform
	state    string
}

// MemoryVerifierStore keeps pending authorizations in process memory. Expired
// records are swept whenever a new one is saved.
type MemoryVerifierStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[pendingKey]VerifierRecord
}

func NewMemoryVerifierStore(ttl time.Duration) *MemoryVerifierStore {
	if ttl <= 0 {
		ttl = defaultVerifierTTLSeconds * time.Second
	}
	return &MemoryVerifierStore{
		ttl:     ttl,
		now:     time.Now,
		pending: map[pendingKey]VerifierRecord{},
	}
}

func (s *MemoryVerifierStore) Save(_ context.Context, record VerifierRecord) error {
	if s == nil {
		return errVerifierStoreMissing
	}
	if record.State = strings.TrimSpace(record.State); record.State == "" {
		return errStateRequired
	}
	now := s.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	maps.DeleteFunc(s.pending, func(_ pendingKey, r VerifierRecord) bool { return r.Expired(now) })
	s.pending[pendingKey{record.Platform, record.State}] = record.clone()
	return nil
}

// Consume returns and removes the record. A second call for the same key
// reports ErrVerifierNotFound.
func (s *MemoryVerifierStore) Consume(_ context.Context, platform Platform, state string) (VerifierRecord, error) {
	if s == nil {
		return VerifierRecord{}, errVerifierStoreMissing
	}
	if state = strings.TrimSpace(state); state == "" {
		return VerifierRecord{}, errStateRequired
	}
	key := pendingKey{platform, state}

	s.mu.Lock()
	record, ok := s.pending[key]
	delete(s.pending, key)
	s.mu.Unlock()

	switch {
	case !ok:
		return VerifierRecord{}, ErrVerifierNotFound
	case record.Expired(s.now().UTC()):
		return VerifierRecord{}, ErrVerifierExpired
	}
	return record.clone(), nil
}

func (s *MemoryVerifierStore) Discard(_ context.Context, platform Platform, state string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	delete(s.pending, pendingKey{platform, strings.TrimSpace(state)})
	s.mu.Unlock()
	return nil
}

func (s *MemoryVerifierStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// generateOAuthState returns 128 bits of randomness as base32 text.
func generateOAuthState() (string, error) {
	return rand.Text(), nil
}

func copyAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return maps.Clone(in)
}

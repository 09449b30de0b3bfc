package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryConnectionStore keeps connections in process memory.
type MemoryConnectionStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	records map[string]Connection
}

func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{
		now:     time.Now,
		records: map[string]Connection{},
	}
}

func (s *MemoryConnectionStore) Upsert(_ context.Context, in UpsertConnectionInput) (Connection, error) {
	if s == nil {
		return Connection{}, fmt.Errorf("core: connection store is not configured")
	}
	if err := in.Owner.Validate(); err != nil {
		return Connection{}, err
	}
	connectionType := NormalizeConnectionType(in.ConnectionType)
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.records {
		if existing.Owner != in.Owner ||
			existing.Platform != in.Platform ||
			existing.ConnectionType != connectionType ||
			existing.PlatformUserID != in.PlatformUserID {
			continue
		}
		existing.PlatformUsername = in.PlatformUsername
		existing.AccessToken = in.AccessToken
		existing.RefreshToken = in.RefreshToken
		existing.TokenSecret = in.TokenSecret
		existing.ExpiresAt = cloneTime(in.ExpiresAt)
		existing.Metadata = copyAnyMap(in.Metadata)
		existing.IsActive = true
		existing.UpdatedAt = now
		s.records[id] = existing
		return cloneConnection(existing), nil
	}

	record := Connection{
		ID:               uuid.NewString(),
		Owner:            in.Owner,
		Platform:         in.Platform,
		ConnectionType:   connectionType,
		PlatformUserID:   in.PlatformUserID,
		PlatformUsername: in.PlatformUsername,
		AccessToken:      in.AccessToken,
		RefreshToken:     in.RefreshToken,
		TokenSecret:      in.TokenSecret,
		ExpiresAt:        cloneTime(in.ExpiresAt),
		Metadata:         copyAnyMap(in.Metadata),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.records[record.ID] = record
	return cloneConnection(record), nil
}

func (s *MemoryConnectionStore) FindActive(
	_ context.Context,
	owner OwnerRef,
	platform Platform,
	connectionType string,
) (Connection, error) {
	if s == nil {
		return Connection{}, fmt.Errorf("core: connection store is not configured")
	}
	connectionType = strings.ToLower(strings.TrimSpace(connectionType))

	s.mu.RLock()
	candidates := make([]Connection, 0, 1)
	for _, record := range s.records {
		if !record.IsActive || record.Owner != owner || record.Platform != platform {
			continue
		}
		if connectionType != "" && record.ConnectionType != connectionType {
			continue
		}
		candidates = append(candidates, record)
	}
	s.mu.RUnlock()

	if len(candidates) == 0 {
		return Connection{}, ErrConnectionNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
	})
	return cloneConnection(candidates[0]), nil
}

func (s *MemoryConnectionStore) Get(_ context.Context, id string) (Connection, error) {
	if s == nil {
		return Connection{}, fmt.Errorf("core: connection store is not configured")
	}
	s.mu.RLock()
	record, ok := s.records[strings.TrimSpace(id)]
	s.mu.RUnlock()
	if !ok {
		return Connection{}, ErrConnectionNotFound
	}
	return cloneConnection(record), nil
}

func (s *MemoryConnectionStore) ListByOwner(_ context.Context, owner OwnerRef) ([]Connection, error) {
	if s == nil {
		return nil, fmt.Errorf("core: connection store is not configured")
	}
	s.mu.RLock()
	out := make([]Connection, 0)
	for _, record := range s.records {
		if record.Owner == owner {
			out = append(out, cloneConnection(record))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform == out[j].Platform {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Platform < out[j].Platform
	})
	return out, nil
}

func (s *MemoryConnectionStore) UpdateTokens(_ context.Context, id string, update TokenUpdate) (Connection, error) {
	if s == nil {
		return Connection{}, fmt.Errorf("core: connection store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(id)]
	if !ok {
		return Connection{}, ErrConnectionNotFound
	}
	record.AccessToken = update.AccessToken
	if !update.RefreshToken.IsZero() {
		record.RefreshToken = update.RefreshToken
	}
	record.ExpiresAt = cloneTime(update.ExpiresAt)
	record.UpdatedAt = s.now().UTC()
	s.records[record.ID] = record
	return cloneConnection(record), nil
}

func (s *MemoryConnectionStore) SetActive(_ context.Context, id string, active bool) error {
	if s == nil {
		return fmt.Errorf("core: connection store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(id)]
	if !ok {
		return ErrConnectionNotFound
	}
	record.IsActive = active
	record.UpdatedAt = s.now().UTC()
	s.records[record.ID] = record
	return nil
}

func (s *MemoryConnectionStore) Delete(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("core: connection store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[strings.TrimSpace(id)]; !ok {
		return ErrConnectionNotFound
	}
	delete(s.records, strings.TrimSpace(id))
	return nil
}

func cloneConnection(in Connection) Connection {
	out := in
	out.ExpiresAt = cloneTime(in.ExpiresAt)
	out.Metadata = copyAnyMap(in.Metadata)
	return out
}

func cloneTime(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	out := in.UTC()
	return &out
}

package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-social/core"
)

const connectionCacheKeyPrefix = "go-social::connection::v1"

// CachedConnectionStore reads FindActive and Get through a cache and drops
// the affected keys on every write.
type CachedConnectionStore struct {
	base  core.ConnectionStore
	cache repositorycache.CacheService
}

func NewCachedConnectionStore(
	base core.ConnectionStore,
	cacheService repositorycache.CacheService,
) (*CachedConnectionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base connection store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: connection cache service is required")
	}
	return &CachedConnectionStore{base: base, cache: cacheService}, nil
}

// ActiveConnectionCacheKey is
// go-social::connection::v1::active::<owner_type>::<owner_id>::<platform>::<connection_type>
// with each segment URL-path escaped. An empty connection type is kept as "*".
func ActiveConnectionCacheKey(owner core.OwnerRef, platform core.Platform, connectionType string) string {
	connectionType = strings.ToLower(strings.TrimSpace(connectionType))
	if connectionType == "" {
		connectionType = "*"
	}
	segments := []string{
		strings.TrimSpace(owner.Type),
		strings.TrimSpace(owner.ID),
		strings.ToLower(strings.TrimSpace(string(platform))),
		connectionType,
	}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{connectionCacheKeyPrefix, "active"}, segments...), "::")
}

func connectionIDCacheKey(id string) string {
	return connectionCacheKeyPrefix + "::id::" + url.PathEscape(strings.TrimSpace(id))
}

func (s *CachedConnectionStore) Upsert(ctx context.Context, in core.UpsertConnectionInput) (core.Connection, error) {
	if err := s.ready(); err != nil {
		return core.Connection{}, err
	}
	connection, err := s.base.Upsert(ctx, in)
	if err != nil {
		return core.Connection{}, err
	}
	return connection, s.invalidate(ctx, connection)
}

func (s *CachedConnectionStore) FindActive(
	ctx context.Context,
	owner core.OwnerRef,
	platform core.Platform,
	connectionType string,
) (core.Connection, error) {
	if err := s.ready(); err != nil {
		return core.Connection{}, err
	}
	key := ActiveConnectionCacheKey(owner, platform, connectionType)
	return repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.Connection, error) {
		return s.base.FindActive(ctx, owner, platform, connectionType)
	})
}

func (s *CachedConnectionStore) Get(ctx context.Context, id string) (core.Connection, error) {
	if err := s.ready(); err != nil {
		return core.Connection{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, connectionIDCacheKey(id), func(ctx context.Context) (core.Connection, error) {
		return s.base.Get(ctx, id)
	})
}

func (s *CachedConnectionStore) ListByOwner(ctx context.Context, owner core.OwnerRef) ([]core.Connection, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.base.ListByOwner(ctx, owner)
}

func (s *CachedConnectionStore) UpdateTokens(ctx context.Context, id string, update core.TokenUpdate) (core.Connection, error) {
	if err := s.ready(); err != nil {
		return core.Connection{}, err
	}
	connection, err := s.base.UpdateTokens(ctx, id, update)
	if err != nil {
		return core.Connection{}, err
	}
	return connection, s.invalidate(ctx, connection)
}

func (s *CachedConnectionStore) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	current, lookupErr := s.base.Get(ctx, id)
	if err := s.base.SetActive(ctx, id, active); err != nil {
		return err
	}
	if lookupErr != nil {
		return s.cache.Delete(ctx, connectionIDCacheKey(id))
	}
	return s.invalidate(ctx, current)
}

func (s *CachedConnectionStore) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	current, lookupErr := s.base.Get(ctx, id)
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	if lookupErr != nil {
		return s.cache.Delete(ctx, connectionIDCacheKey(id))
	}
	return s.invalidate(ctx, current)
}

func (s *CachedConnectionStore) invalidate(ctx context.Context, connection core.Connection) error {
	keys := []string{
		connectionIDCacheKey(connection.ID),
		ActiveConnectionCacheKey(connection.Owner, connection.Platform, ""),
		ActiveConnectionCacheKey(connection.Owner, connection.Platform, connection.ConnectionType),
	}
	var errs []error
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *CachedConnectionStore) ready() error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	return nil
}

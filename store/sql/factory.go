package sqlstore

import (
	"errors"
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-social/core"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithCacheService puts a read-through cache in front of the connection store.
func WithCacheService(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) { f.cache = cacheService }
}

// WithDB binds the factory to db, ignoring whatever persistence client the
// service is configured with.
func WithDB(db *bun.DB) FactoryOption {
	return func(f *RepositoryFactory) { f.db = db }
}

// RepositoryFactory builds the connection store from a bun database or a
// go-persistence-bun client. The service calls BuildStores once during
// construction.
type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	plain  *ConnectionStore
	served core.ConnectionStore
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	f := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	return buildFactory(client, opts)
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	return buildFactory(db, opts)
}

func buildFactory(source any, opts []FactoryOption) (*RepositoryFactory, error) {
	f := NewRepositoryFactory(opts...)
	if _, err := f.BuildStores(source); err != nil {
		return nil, err
	}
	return f, nil
}

// BuildStores is idempotent; later calls return the stores built first.
func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, errors.New("sqlstore: repository factory is nil")
	}
	if f.served != nil {
		return f, nil
	}
	if f.db == nil {
		db, err := bunFrom(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}

	plain, err := NewConnectionStore(f.db)
	if err != nil {
		return nil, err
	}
	var served core.ConnectionStore = plain
	if f.cache != nil {
		if served, err = NewCachedConnectionStore(plain, f.cache); err != nil {
			return nil, err
		}
	}
	f.plain, f.served = plain, served
	return f, nil
}

// ConnectionStore returns the cached store when a cache service was
// configured, otherwise the plain SQL store.
func (f *RepositoryFactory) ConnectionStore() core.ConnectionStore {
	if f == nil {
		return nil
	}
	return f.served
}

func (f *RepositoryFactory) SQLConnectionStore() *ConnectionStore {
	if f == nil {
		return nil
	}
	return f.plain
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// bunFrom accepts a *bun.DB or anything exposing one, which covers
// *persistence.Client.
func bunFrom(source any) (*bun.DB, error) {
	if source == nil {
		return nil, errors.New("sqlstore: persistence client is required")
	}
	var db *bun.DB
	switch typed := source.(type) {
	case *bun.DB:
		db = typed
	case interface{ DB() *bun.DB }:
		db = typed.DB()
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", source)
	}
	if db == nil {
		return nil, fmt.Errorf("sqlstore: %T has no bun database", source)
	}
	return db, nil
}

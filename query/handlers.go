package query

import (
	"context"

	"github.com/goliatone/go-social/core"
)

type ConnectionReader interface {
	FindConnection(ctx context.Context, owner core.OwnerRef, platform core.Platform, connectionType string) (core.Connection, error)
	ListConnections(ctx context.Context, owner core.OwnerRef) ([]core.Connection, error)
}

type RegistryReader interface {
	Registry() core.AdapterRegistry
}

// PlatformInfo describes a registered adapter.
type PlatformInfo struct {
	Platform              core.Platform
	DefaultConnectionType string
	OAuth                 bool
	Standalone            bool
}

type FindConnectionQuery struct {
	reader ConnectionReader
}

func NewFindConnectionQuery(reader ConnectionReader) *FindConnectionQuery {
	return &FindConnectionQuery{reader: reader}
}

func (q *FindConnectionQuery) Query(ctx context.Context, msg FindConnectionMessage) (core.Connection, error) {
	if q == nil || q.reader == nil {
		return core.Connection{}, core.MissingDependencyError("query: connection reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Connection{}, err
	}
	platform, _ := core.ParsePlatform(string(msg.Platform))
	return q.reader.FindConnection(ctx, msg.Owner, platform, msg.ConnectionType)
}

type ListConnectionsQuery struct {
	reader ConnectionReader
}

func NewListConnectionsQuery(reader ConnectionReader) *ListConnectionsQuery {
	return &ListConnectionsQuery{reader: reader}
}

func (q *ListConnectionsQuery) Query(ctx context.Context, msg ListConnectionsMessage) ([]core.Connection, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependencyError("query: connection reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListConnections(ctx, msg.Owner)
}

type ListPlatformsQuery struct {
	reader RegistryReader
}

func NewListPlatformsQuery(reader RegistryReader) *ListPlatformsQuery {
	return &ListPlatformsQuery{reader: reader}
}

func (q *ListPlatformsQuery) Query(_ context.Context, _ ListPlatformsMessage) ([]PlatformInfo, error) {
	if q == nil || q.reader == nil || q.reader.Registry() == nil {
		return nil, core.MissingDependencyError("query: adapter registry is required")
	}
	adapters := q.reader.Registry().List()
	out := make([]PlatformInfo, 0, len(adapters))
	for _, adapter := range adapters {
		_, oauth := adapter.(core.OAuthFlow)
		_, standalone := adapter.(core.StandaloneAdapter)
		out = append(out, PlatformInfo{
			Platform:              adapter.Platform(),
			DefaultConnectionType: adapter.DefaultConnectionType(),
			OAuth:                 oauth,
			Standalone:            standalone,
		})
	}
	return out, nil
}

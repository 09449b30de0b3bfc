package query

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social/core"
)

type stubConnectionReader struct {
	connections []core.Connection
}

func (s stubConnectionReader) FindConnection(_ context.Context, owner core.OwnerRef, platform core.Platform, _ string) (core.Connection, error) {
	for _, connection := range s.connections {
		if connection.Owner == owner && connection.Platform == platform {
			return connection, nil
		}
	}
	return core.Connection{}, core.ConnectionNotFoundError(owner, platform)
}

func (s stubConnectionReader) ListConnections(_ context.Context, owner core.OwnerRef) ([]core.Connection, error) {
	out := []core.Connection{}
	for _, connection := range s.connections {
		if connection.Owner == owner {
			out = append(out, connection)
		}
	}
	return out, nil
}

type stubPublishAdapter struct{ platform core.Platform }

func (a stubPublishAdapter) Platform() core.Platform       { return a.platform }
func (a stubPublishAdapter) DefaultConnectionType() string { return core.ConnectionTypeBot }
func (a stubPublishAdapter) ForConnection(context.Context, core.ConnectionCredentials) (core.Publisher, error) {
	return nil, nil
}
func (a stubPublishAdapter) Standalone(context.Context) (core.Publisher, error) { return nil, nil }

type stubRegistryReader struct{ registry core.AdapterRegistry }

func (s stubRegistryReader) Registry() core.AdapterRegistry { return s.registry }

func TestConnectionQueries(t *testing.T) {
	owner := core.OwnerRef{Type: "user", ID: "u1"}
	reader := stubConnectionReader{connections: []core.Connection{
		{ID: "c1", Owner: owner, Platform: core.PlatformTwitter},
		{ID: "c2", Owner: owner, Platform: core.PlatformLinkedIn},
		{ID: "c3", Owner: core.OwnerRef{Type: "user", ID: "u2"}, Platform: core.PlatformTwitter},
	}}

	found, err := NewFindConnectionQuery(reader).Query(context.Background(), FindConnectionMessage{Owner: owner, Platform: "X"})
	if err != nil || found.ID != "c1" {
		t.Fatalf("expected alias to resolve to twitter, got %#v %v", found, err)
	}
	found, err = NewFindConnectionQuery(reader).Query(context.Background(), FindConnectionMessage{Owner: owner, Platform: core.PlatformLinkedIn})
	if err != nil || found.ID != "c2" {
		t.Fatalf("unexpected find result %#v %v", found, err)
	}

	listed, err := NewListConnectionsQuery(reader).Query(context.Background(), ListConnectionsMessage{Owner: owner})
	if err != nil || len(listed) != 2 {
		t.Fatalf("unexpected list result %#v %v", listed, err)
	}
}

func TestListPlatformsQuery(t *testing.T) {
	registry, err := core.NewPlatformRegistry(stubPublishAdapter{platform: core.PlatformTelegram})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	platforms, err := NewListPlatformsQuery(stubRegistryReader{registry: registry}).Query(context.Background(), ListPlatformsMessage{})
	if err != nil {
		t.Fatalf("list platforms: %v", err)
	}
	if len(platforms) != 1 || !platforms[0].Standalone || platforms[0].OAuth {
		t.Fatalf("unexpected platforms %#v", platforms)
	}
}

func TestQueries_ValidationAndDependencyErrors(t *testing.T) {
	if _, err := NewFindConnectionQuery(stubConnectionReader{}).Query(context.Background(), FindConnectionMessage{Owner: core.OwnerRef{Type: "user", ID: "u1"}, Platform: "myspace"}); err == nil {
		t.Fatalf("expected unknown platform to fail validation")
	}
	_, err := NewListConnectionsQuery(stubConnectionReader{}).Query(context.Background(), ListConnectionsMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected bad input error, got %v", err)
	}

	var q *FindConnectionQuery
	_, err = q.Query(context.Background(), FindConnectionMessage{})
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

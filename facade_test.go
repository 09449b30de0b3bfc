package social

import (
	"context"
	"testing"

	socialcommand "github.com/goliatone/go-social/command"
	"github.com/goliatone/go-social/core"
	socialquery "github.com/goliatone/go-social/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.BeginAuthorization == nil || commands.Share == nil || commands.EnqueueTokenRefresh == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.FindConnection == nil || queries.ListConnections == nil || queries.ListPlatforms == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if facade.Service() == nil {
		t.Fatalf("expected service accessor")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().Disconnect.Execute(context.Background(), socialcommand.DisconnectMessage{
		ConnectionID: "conn_1",
		Delete:       true,
	}); err != nil {
		t.Fatalf("execute disconnect command: %v", err)
	}
	if svc.lastDisconnect.ConnectionID != "conn_1" || !svc.lastDisconnect.Delete {
		t.Fatalf("unexpected disconnect delegation %#v", svc.lastDisconnect)
	}

	connection, err := facade.Queries().FindConnection.Query(context.Background(), socialquery.FindConnectionMessage{
		Owner:    core.OwnerRef{Type: "user", ID: "u1"},
		Platform: core.PlatformTwitter,
	})
	if err != nil {
		t.Fatalf("query find connection: %v", err)
	}
	if connection.ID != "conn_1" || connection.Platform != core.PlatformTwitter {
		t.Fatalf("unexpected connection %#v", connection)
	}

	platforms, err := facade.Queries().ListPlatforms.Query(context.Background(), socialquery.ListPlatformsMessage{})
	if err != nil {
		t.Fatalf("query list platforms: %v", err)
	}
	if len(platforms) != 0 {
		t.Fatalf("expected empty registry listing, got %#v", platforms)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
	var empty *Facade
	if empty.Commands().Share != nil || empty.Service() != nil {
		t.Fatalf("expected zero values from nil facade")
	}
}

type stubFacadeService struct {
	lastDisconnect core.DisconnectRequest
}

func (s *stubFacadeService) BeginAuthorization(context.Context, core.BeginAuthorizationRequest) (core.BeginAuthorizationResponse, error) {
	return core.BeginAuthorizationResponse{URL: "https://example.com/auth", State: "state"}, nil
}

func (s *stubFacadeService) CompleteCallback(_ context.Context, in core.CallbackInput) (core.CallbackOutcome, error) {
	return core.CallbackOutcome{Platform: in.Platform, State: core.CallbackConnectionPersisted}, nil
}

func (s *stubFacadeService) Share(_ context.Context, req core.ShareRequest) (core.AggregateReport, error) {
	return core.AggregateReport{Operation: req.Operation}, nil
}

func (s *stubFacadeService) RefreshConnection(_ context.Context, req core.RefreshConnectionRequest) (core.Connection, error) {
	return core.Connection{ID: req.ConnectionID}, nil
}

func (s *stubFacadeService) Disconnect(_ context.Context, req core.DisconnectRequest) (core.DisconnectResult, error) {
	s.lastDisconnect = req
	return core.DisconnectResult{Connection: core.Connection{ID: req.ConnectionID}}, nil
}

func (s *stubFacadeService) EnqueueTokenRefresh(context.Context, string) error {
	return nil
}

func (s *stubFacadeService) FindConnection(_ context.Context, owner core.OwnerRef, platform core.Platform, _ string) (core.Connection, error) {
	return core.Connection{ID: "conn_1", Owner: owner, Platform: platform}, nil
}

func (s *stubFacadeService) ListConnections(context.Context, core.OwnerRef) ([]core.Connection, error) {
	return nil, nil
}

func (s *stubFacadeService) Registry() core.AdapterRegistry {
	registry, _ := core.NewPlatformRegistry()
	return registry
}

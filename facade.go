package social

import (
	"fmt"

	socialcommand "github.com/goliatone/go-social/command"
	socialquery "github.com/goliatone/go-social/query"
)

// CommandQueryService is everything the facade needs; *Service satisfies it.
type CommandQueryService interface {
	socialcommand.MutatingService
	socialquery.ConnectionReader
	socialquery.RegistryReader
}

type Commands struct {
	BeginAuthorization  *socialcommand.BeginAuthorizationCommand
	CompleteCallback    *socialcommand.CompleteCallbackCommand
	Share               *socialcommand.ShareCommand
	RefreshConnection   *socialcommand.RefreshConnectionCommand
	Disconnect          *socialcommand.DisconnectCommand
	EnqueueTokenRefresh *socialcommand.EnqueueTokenRefreshCommand
}

type Queries struct {
	FindConnection  *socialquery.FindConnectionQuery
	ListConnections *socialquery.ListConnectionsQuery
	ListPlatforms   *socialquery.ListPlatformsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("social: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			BeginAuthorization:  socialcommand.NewBeginAuthorizationCommand(service),
			CompleteCallback:    socialcommand.NewCompleteCallbackCommand(service),
			Share:               socialcommand.NewShareCommand(service),
			RefreshConnection:   socialcommand.NewRefreshConnectionCommand(service),
			Disconnect:          socialcommand.NewDisconnectCommand(service),
			EnqueueTokenRefresh: socialcommand.NewEnqueueTokenRefreshCommand(service),
		},
		queries: Queries{
			FindConnection:  socialquery.NewFindConnectionQuery(service),
			ListConnections: socialquery.NewListConnectionsQuery(service),
			ListPlatforms:   socialquery.NewListPlatformsQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

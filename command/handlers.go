package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social/core"
)

type MutatingService interface {
	BeginAuthorization(ctx context.Context, req core.BeginAuthorizationRequest) (core.BeginAuthorizationResponse, error)
	CompleteCallback(ctx context.Context, in core.CallbackInput) (core.CallbackOutcome, error)
	Share(ctx context.Context, req core.ShareRequest) (core.AggregateReport, error)
	RefreshConnection(ctx context.Context, req core.RefreshConnectionRequest) (core.Connection, error)
	Disconnect(ctx context.Context, req core.DisconnectRequest) (core.DisconnectResult, error)
	EnqueueTokenRefresh(ctx context.Context, connectionID string) error
}

type validator interface {
	Validate() error
}

// execute validates msg, runs call against svc and stores the result in the
// go-command result collector when one is attached to ctx. With keepOnError
// the result is stored even when call fails.
func execute[T any](
	ctx context.Context,
	svc MutatingService,
	name string,
	msg validator,
	keepOnError bool,
	call func(MutatingService) (T, error),
) error {
	if svc == nil {
		return core.MissingDependencyError("command: " + name + " service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := call(svc)
	if err == nil || keepOnError {
		if collector := gocmd.ResultFromContext[T](ctx); collector != nil {
			collector.Store(out)
		}
	}
	return err
}

type BeginAuthorizationCommand fields

func NewBeginAuthorizationCommand(service MutatingService) *BeginAuthorizationCommand {
	return &BeginAuthorizationCommand{service: service}
}

func (c *BeginAuthorizationCommand) Execute(ctx context.Context, msg BeginAuthorizationMessage) error {
	return execute(ctx, serviceOf((*fields)(c)), "authorization", msg, false,
		func(svc MutatingService) (core.BeginAuthorizationResponse, error) {
			return svc.BeginAuthorization(ctx, msg.Request)
		})
}

type CompleteCallbackCommand fields

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

// Execute stores the outcome even when the callback errored, so callers can
// read the terminal state alongside the error.
func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	return execute(ctx, serviceOf((*fields)(c)), "callback", msg, true,
		func(svc MutatingService) (core.CallbackOutcome, error) {
			return svc.CompleteCallback(ctx, msg.Input)
		})
}

type ShareCommand fields

func NewShareCommand(service MutatingService) *ShareCommand {
	return &ShareCommand{service: service}
}

func (c *ShareCommand) Execute(ctx context.Context, msg ShareMessage) error {
	return execute(ctx, serviceOf((*fields)(c)), "share", msg, false,
		func(svc MutatingService) (core.AggregateReport, error) {
			return svc.Share(ctx, msg.Request)
		})
}

type RefreshConnectionCommand fields

func NewRefreshConnectionCommand(service MutatingService) *RefreshConnectionCommand {
	return &RefreshConnectionCommand{service: service}
}

func (c *RefreshConnectionCommand) Execute(ctx context.Context, msg RefreshConnectionMessage) error {
	return execute(ctx, serviceOf((*fields)(c)), "refresh", msg, false,
		func(svc MutatingService) (core.Connection, error) {
			return svc.RefreshConnection(ctx, core.RefreshConnectionRequest{ConnectionID: msg.ConnectionID})
		})
}

type DisconnectCommand fields

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	return execute(ctx, serviceOf((*fields)(c)), "disconnect", msg, false,
		func(svc MutatingService) (core.DisconnectResult, error) {
			return svc.Disconnect(ctx, core.DisconnectRequest{ConnectionID: msg.ConnectionID, Delete: msg.Delete})
		})
}

type EnqueueTokenRefreshCommand fields

func NewEnqueueTokenRefreshCommand(service MutatingService) *EnqueueTokenRefreshCommand {
	return &EnqueueTokenRefreshCommand{service: service}
}

func (c *EnqueueTokenRefreshCommand) Execute(ctx context.Context, msg EnqueueTokenRefreshMessage) error {
	return execute(ctx, serviceOf((*fields)(c)), "refresh job", msg, false,
		func(svc MutatingService) (struct{}, error) {
			return struct{}{}, svc.EnqueueTokenRefresh(ctx, msg.ConnectionID)
		})
}

// fields is the shared layout of every command handler; handlers convert
// their receiver to it so a nil handler reads as a missing service.
type fields = struct{ service MutatingService }

func serviceOf(f *fields) MutatingService {
	if f == nil {
		return nil
	}
	return f.service
}

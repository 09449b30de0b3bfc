package gocommand

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	socialcommand "github.com/goliatone/go-social/command"
	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/query"
)

var errNoRegistry = errors.New("gocommand: registry is not configured")

// ValidateMessageContract requires a non-empty Type() and runs Validate()
// when the message has one.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	typed, ok := msg.(command.Message)
	switch {
	case !ok:
		return errors.New("gocommand: message must implement Type() string")
	case strings.TrimSpace(typed.Type()) == "":
		return errors.New("gocommand: message type is required")
	}
	return nil
}

// RegistryAdapter wraps a go-command registry. Commands and queries share the
// same registry so resolvers see both.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) target() (*command.Registry, error) {
	if a == nil || a.registry == nil {
		return nil, errNoRegistry
	}
	return a.registry, nil
}

func (a *RegistryAdapter) Registry() *command.Registry {
	registry, _ := a.target()
	return registry
}

func (a *RegistryAdapter) RegisterCommand(handler any) error {
	registry, err := a.target()
	if err != nil {
		return err
	}
	return registry.RegisterCommand(handler)
}

func (a *RegistryAdapter) RegisterQuery(handler any) error {
	return a.RegisterCommand(handler)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	registry, err := a.target()
	if err != nil {
		return err
	}
	return registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry
// so they can be scheduled as jobs.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return errors.New("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	registry, err := a.target()
	return err == nil && registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	registry, err := a.target()
	if err != nil {
		return err
	}
	return registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe subscribes cmd on the global dispatcher and records it
// in the registry. The subscription is dropped if registration fails.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, errors.New("gocommand: command is required")
	}
	return subscribeThenRegister(adapter, cmd, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	})
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, errors.New("gocommand: query is required")
	}
	return subscribeThenRegister(adapter, qry, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	})
}

func subscribeThenRegister(
	adapter *RegistryAdapter,
	handler any,
	subscribe func() commanddispatcher.Subscription,
) (commanddispatcher.Subscription, error) {
	if _, err := adapter.target(); err != nil {
		return nil, err
	}
	sub := subscribe()
	if err := adapter.RegisterCommand(handler); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil, err
	}
	return sub, nil
}

// Service is everything the social command and query handlers need.
// *core.Service satisfies it.
type Service interface {
	socialcommand.MutatingService
	query.ConnectionReader
	query.RegistryReader
}

// Subscriptions groups the dispatcher subscriptions created by RegisterService.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

type binding func(*RegistryAdapter, []runner.Option) (commanddispatcher.Subscription, error)

func bindCommand[T any](cmd command.Commander[T]) binding {
	return func(a *RegistryAdapter, opts []runner.Option) (commanddispatcher.Subscription, error) {
		return RegisterAndSubscribe(a, cmd, opts...)
	}
}

func bindQuery[T any, R any](qry command.Querier[T, R]) binding {
	return func(a *RegistryAdapter, opts []runner.Option) (commanddispatcher.Subscription, error) {
		return RegisterAndSubscribeQuery(a, qry, opts...)
	}
}

// RegisterService registers and subscribes every social command and query
// against svc. On failure the subscriptions made so far are removed.
func RegisterService(adapter *RegistryAdapter, svc Service, runnerOpts ...runner.Option) (Subscriptions, error) {
	if svc == nil {
		return nil, errors.New("gocommand: social service is required")
	}
	bindings := []binding{
		bindCommand[socialcommand.BeginAuthorizationMessage](socialcommand.NewBeginAuthorizationCommand(svc)),
		bindCommand[socialcommand.CompleteCallbackMessage](socialcommand.NewCompleteCallbackCommand(svc)),
		bindCommand[socialcommand.ShareMessage](socialcommand.NewShareCommand(svc)),
		bindCommand[socialcommand.RefreshConnectionMessage](socialcommand.NewRefreshConnectionCommand(svc)),
		bindCommand[socialcommand.DisconnectMessage](socialcommand.NewDisconnectCommand(svc)),
		bindCommand[socialcommand.EnqueueTokenRefreshMessage](socialcommand.NewEnqueueTokenRefreshCommand(svc)),
		bindQuery[query.FindConnectionMessage, core.Connection](query.NewFindConnectionQuery(svc)),
		bindQuery[query.ListConnectionsMessage, []core.Connection](query.NewListConnectionsQuery(svc)),
		bindQuery[query.ListPlatformsMessage, []query.PlatformInfo](query.NewListPlatformsQuery(svc)),
	}
	subs := make(Subscriptions, 0, len(bindings))
	for _, bind := range bindings {
		sub, err := bind(adapter, runnerOpts)
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

package social

import "github.com/goliatone/go-social/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type VerifierStore = core.VerifierStore
type OwnerResolver = core.OwnerResolver
type ConnectionStore = core.ConnectionStore
type SecretProvider = core.SecretProvider
type JobEnqueuer = core.JobEnqueuer
type AdapterRegistry = core.AdapterRegistry
type AdapterRegistryFactory = core.AdapterRegistryFactory

type Platform = core.Platform
type OwnerRef = core.OwnerRef
type Connection = core.Connection
type AggregateReport = core.AggregateReport

type BeginAuthorizationRequest = core.BeginAuthorizationRequest
type CallbackInput = core.CallbackInput
type RefreshConnectionRequest = core.RefreshConnectionRequest
type DisconnectRequest = core.DisconnectRequest

var (
	WithLogger                 = core.WithLogger
	WithLoggerProvider         = core.WithLoggerProvider
	WithMetricsRecorder        = core.WithMetricsRecorder
	WithErrorFactory           = core.WithErrorFactory
	WithErrorMapper            = core.WithErrorMapper
	WithSecretProvider         = core.WithSecretProvider
	WithPersistenceClient      = core.WithPersistenceClient
	WithRepositoryFactory      = core.WithRepositoryFactory
	WithConfigProvider         = core.WithConfigProvider
	WithOptionsResolver        = core.WithOptionsResolver
	WithVerifierStore          = core.WithVerifierStore
	WithOwnerResolver          = core.WithOwnerResolver
	WithAdapterRegistry        = core.WithAdapterRegistry
	WithAdapterRegistryFactory = core.WithAdapterRegistryFactory
	WithConnectionStore        = core.WithConnectionStore
	WithJobEnqueuer            = core.WithJobEnqueuer
	WithClock                  = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds the service with adapters for every configured platform.
// Pass WithAdapterRegistry or WithAdapterRegistryFactory to replace them.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	all := make([]Option, 0, len(opts)+1)
	all = append(all, core.WithAdapterRegistryFactory(DefaultAdapterRegistry))
	all = append(all, opts...)
	return core.NewService(cfg, all...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

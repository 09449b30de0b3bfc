package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StoreProvider exposes persistence built by a repository factory.
type StoreProvider interface {
	ConnectionStore() ConnectionStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// AdapterRegistryFactory builds the adapter registry once configuration has
// been resolved.
type AdapterRegistryFactory func(cfg Config, logger Logger) (AdapterRegistry, error)

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	secretProvider    SecretProvider
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	verifierStore     VerifierStore
	ownerResolver     OwnerResolver
	registry          AdapterRegistry
	registryFactory   AdapterRegistryFactory
	connectionStore   ConnectionStore
	jobEnqueuer       JobEnqueuer
	clock             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) { b.logger = logger }
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) { b.loggerProvider = provider }
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) { b.metricsRecorder = recorder }
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) { b.errorFactory = factory }
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) { b.errorMapper = mapper }
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) { b.secretProvider = provider }
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) { b.persistenceClient = client }
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) { b.repositoryFactory = factory }
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) { b.configProvider = provider }
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) { b.optionsResolver = resolver }
}

func WithVerifierStore(store VerifierStore) Option {
	return func(b *serviceBuilder) { b.verifierStore = store }
}

func WithOwnerResolver(resolver OwnerResolver) Option {
	return func(b *serviceBuilder) { b.ownerResolver = resolver }
}

func WithAdapterRegistry(registry AdapterRegistry) Option {
	return func(b *serviceBuilder) { b.registry = registry }
}

func WithAdapterRegistryFactory(factory AdapterRegistryFactory) Option {
	return func(b *serviceBuilder) { b.registryFactory = factory }
}

func WithConnectionStore(store ConnectionStore) Option {
	return func(b *serviceBuilder) { b.connectionStore = store }
}

func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) { b.jobEnqueuer = enqueuer }
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) { b.clock = now }
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve(defaultServiceName, nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           time.Now,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return socialErrorMapper(err)
}

package core

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	verifierStore     VerifierStore
	ownerResolver     OwnerResolver
	registry          AdapterRegistry
	connections       *Connections
	jobEnqueuer       JobEnqueuer
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	VerifierStore     VerifierStore
	OwnerResolver     OwnerResolver
	Registry          AdapterRegistry
	ConnectionStore   ConnectionStore
	JobEnqueuer       JobEnqueuer
}

// NewService resolves configuration, persistence and the adapter registry
// from opts. Anything left unset falls back to in-memory stores, a nop
// metrics recorder and an empty registry.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	b := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}
	b.fillDefaults()

	provider, logger := b.resolveLogger()
	resolved, err := b.resolveConfig(context.Background())
	if err != nil {
		return nil, mapBuildError(b.errorMapper, err)
	}
	if !resolved.LoggingEnabled() {
		logger = glog.Nop()
	}
	if err := b.resolveStores(resolved); err != nil {
		return nil, mapBuildError(b.errorMapper, err)
	}
	if err := b.resolveRegistry(resolved, logger); err != nil {
		return nil, mapBuildError(b.errorMapper, err)
	}

	connections := NewConnections(b.connectionStore, b.secretProvider)
	connections.now = b.clock
	return &Service{
		config:            resolved,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   b.metricsRecorder,
		errorFactory:      b.errorFactory,
		errorMapper:       b.errorMapper,
		persistenceClient: b.persistenceClient,
		repositoryFactory: b.repositoryFactory,
		configProvider:    b.configProvider,
		optionsResolver:   b.optionsResolver,
		verifierStore:     b.verifierStore,
		ownerResolver:     b.ownerResolver,
		registry:          b.registry,
		connections:       connections,
		jobEnqueuer:       b.jobEnqueuer,
		now:               b.clock,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

// fillDefaults restores defaults that an option explicitly cleared.
func (b *serviceBuilder) fillDefaults() {
	base := defaultServiceBuilder(b.runtimeConfig)
	if b.errorFactory == nil {
		b.errorFactory = base.errorFactory
	}
	if b.errorMapper == nil {
		b.errorMapper = base.errorMapper
	}
	if b.clock == nil {
		b.clock = base.clock
	}
	b.metricsRecorder = cmp.Or(b.metricsRecorder, base.metricsRecorder)
	b.configProvider = cmp.Or(b.configProvider, base.configProvider)
	b.optionsResolver = cmp.Or(b.optionsResolver, base.optionsResolver)
}

// resolveLogger prefers the logger the provider hands out under the service
// name.
func (b *serviceBuilder) resolveLogger() (LoggerProvider, Logger) {
	provider, logger := glog.Resolve(defaultServiceName, b.loggerProvider, b.logger)
	if provider != nil {
		if named := provider.GetLogger(defaultServiceName); named != nil {
			logger = named
		}
	}
	return provider, glog.Ensure(logger)
}

func (b *serviceBuilder) resolveConfig(ctx context.Context) (Config, error) {
	defaults := DefaultConfig()
	loaded, err := b.configProvider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return b.optionsResolver.Resolve(defaults, loaded, b.runtimeConfig)
}

// resolveStores asks the repository factory for a connection store unless one
// was given directly.
func (b *serviceBuilder) resolveStores(cfg Config) error {
	if b.connectionStore == nil {
		switch factory := b.repositoryFactory.(type) {
		case RepositoryStoreFactory:
			stores, err := factory.BuildStores(b.persistenceClient)
			if err != nil {
				return err
			}
			if stores != nil {
				b.connectionStore = stores.ConnectionStore()
			}
		case StoreProvider:
			b.connectionStore = factory.ConnectionStore()
		}
	}
	if b.connectionStore == nil {
		b.connectionStore = NewMemoryConnectionStore()
	}
	if b.verifierStore == nil {
		b.verifierStore = NewMemoryVerifierStore(cfg.VerifierTTL())
	}
	return nil
}

func (b *serviceBuilder) resolveRegistry(cfg Config, logger Logger) error {
	if b.registry == nil && b.registryFactory != nil {
		registry, err := b.registryFactory(cfg, logger)
		if err != nil {
			return err
		}
		b.registry = registry
	}
	if b.registry == nil {
		b.registry, _ = NewPlatformRegistry()
	}
	return nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil || mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Connections() *Connections {
	if s == nil {
		return nil
	}
	return s.connections
}

func (s *Service) Registry() AdapterRegistry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		VerifierStore:     s.verifierStore,
		OwnerResolver:     s.ownerResolver,
		Registry:          s.registry,
		ConnectionStore:   s.connections.Store(),
		JobEnqueuer:       s.jobEnqueuer,
	}
}

// FindConnection looks up the active connection of owner on platform.
func (s *Service) FindConnection(
	ctx context.Context,
	owner OwnerRef,
	platform Platform,
	connectionType string,
) (Connection, error) {
	connection, err := s.connections.FindActive(ctx, owner, platform, connectionType)
	if err != nil {
		if IsConnectionNotFound(err) {
			return Connection{}, ConnectionNotFoundError(owner, platform)
		}
		return Connection{}, s.mapError(err)
	}
	return connection, nil
}

func (s *Service) ListConnections(ctx context.Context, owner OwnerRef) ([]Connection, error) {
	connections, err := s.connections.ListByOwner(ctx, owner)
	if err != nil {
		return nil, s.mapError(err)
	}
	return connections, nil
}

func (s *Service) resolveAdapter(platform Platform) (Adapter, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: adapter registry is required"))
	}
	adapter, ok := s.registry.Get(platform)
	if !ok || adapter == nil {
		return nil, UnknownPlatformError(string(platform))
	}
	return adapter, nil
}

func (s *Service) currentTime() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func normalizePlatformInput(raw Platform) (Platform, error) {
	platform, err := ParsePlatform(string(raw))
	if err != nil {
		return Platform(strings.TrimSpace(string(raw))), UnknownPlatformError(string(raw))
	}
	return platform, nil
}

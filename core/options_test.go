package core

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type failingConfigProvider struct{}

func (failingConfigProvider) Load(context.Context, Config) (Config, error) {
	return Config{}, errors.New("config source unavailable")
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil || deps.LoggerProvider == nil {
		t.Fatalf("expected default logger and provider")
	}
	if deps.ErrorFactory == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected default error factory and mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	if deps.ConnectionStore == nil || deps.VerifierStore == nil || deps.Registry == nil {
		t.Fatalf("expected default stores and registry")
	}
	cfg := svc.Config()
	if cfg.ServiceName != "social" {
		t.Fatalf("expected default service_name=social, got %q", cfg.ServiceName)
	}
	if cfg.HTTP.TimeoutSeconds != 30 || cfg.HTTP.RetryAttempts != 3 {
		t.Fatalf("expected http defaults 30s/3, got %#v", cfg.HTTP)
	}
	if cfg.Platforms.Twitter.UsePKCE == nil || !*cfg.Platforms.Twitter.UsePKCE {
		t.Fatalf("expected twitter pkce on by default")
	}
	if cfg.Platforms.LinkedIn.UsePKCE == nil || *cfg.Platforms.LinkedIn.UsePKCE {
		t.Fatalf("expected linkedin pkce off by default")
	}
}

func TestNewService_LayersLoadedAndRuntimeConfig(t *testing.T) {
	runtime := Config{
		HTTP: HTTPConfig{RetryAttempts: 5},
		Platforms: PlatformsConfig{
			Twitter: PlatformConfig{ClientSecret: "runtime-secret"},
		},
	}
	svc, err := NewService(runtime, WithConfigProvider(NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "social-test",
		"http": map[string]any{
			"timeout_seconds": 10,
			"retry_attempts":  2,
		},
		"platforms": map[string]any{
			"twitter": map[string]any{
				"client_id":     "loaded-id",
				"client_secret": "loaded-secret",
			},
			"telegram": map[string]any{
				"bot_token": "123:abc",
				"chat_id":   "@channel",
			},
		},
	}})))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "social-test" {
		t.Fatalf("expected loaded service name, got %q", cfg.ServiceName)
	}
	if cfg.HTTP.TimeoutSeconds != 10 {
		t.Fatalf("expected loaded timeout, got %d", cfg.HTTP.TimeoutSeconds)
	}
	if cfg.HTTP.RetryAttempts != 5 {
		t.Fatalf("expected runtime retry attempts to win, got %d", cfg.HTTP.RetryAttempts)
	}
	if cfg.Platforms.Twitter.ClientID != "loaded-id" || cfg.Platforms.Twitter.ClientSecret != "runtime-secret" {
		t.Fatalf("unexpected twitter config %#v", cfg.Platforms.Twitter)
	}
	if !cfg.Platforms.Telegram.Configured() {
		t.Fatalf("expected telegram to be configured")
	}
}

func TestNewService_LoggingToggleUsesNopLogger(t *testing.T) {
	disabled := false
	logger := newCaptureLogger()
	svc, err := NewService(Config{Logging: LoggingConfig{Enabled: &disabled}},
		WithLogger(logger),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Config().LoggingEnabled() {
		t.Fatalf("expected logging to be disabled")
	}
	_, _ = svc.ShareText(context.Background(), OwnerRef{Type: "user", ID: "1"}, []Platform{PlatformTwitter}, "hi")
	if len(logger.snapshot()) != 0 {
		t.Fatalf("expected no logs when logging is disabled")
	}
}

func TestNewService_MapsConfigErrors(t *testing.T) {
	_, err := NewService(Config{}, WithConfigProvider(failingConfigProvider{}))
	if err == nil {
		t.Fatalf("expected config error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected mapped error, got %T", err)
	}

	_, err = NewService(Config{}, WithConfigProvider(&fixedConfigProvider{cfg: Config{HTTP: HTTPConfig{RetryAttempts: -1}}}))
	if err == nil {
		t.Fatalf("expected validation error for negative retry attempts")
	}
}

func TestNewService_RegistryFactoryReceivesResolvedConfig(t *testing.T) {
	var seen Config
	svc, err := NewService(Config{HTTP: HTTPConfig{TimeoutSeconds: 7}},
		WithAdapterRegistryFactory(func(cfg Config, logger Logger) (AdapterRegistry, error) {
			seen = cfg
			if logger == nil {
				t.Fatalf("expected logger")
			}
			return NewPlatformRegistry(newStubAdapter(PlatformTwitter))
		}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if seen.HTTP.TimeoutSeconds != 7 {
		t.Fatalf("expected resolved config, got %#v", seen.HTTP)
	}
	if _, ok := svc.Registry().Get(PlatformTwitter); !ok {
		t.Fatalf("expected factory registry to be used")
	}
}

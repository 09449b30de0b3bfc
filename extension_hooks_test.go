package social

import (
	"context"
	"testing"

	"github.com/goliatone/go-social/core"
)

type extensionAdapter struct {
	platform core.Platform
	tag      string
}

func (a extensionAdapter) Platform() core.Platform { return a.platform }

func (a extensionAdapter) DefaultConnectionType() string { return core.ConnectionTypeProfile }

func (a extensionAdapter) ForConnection(context.Context, core.ConnectionCredentials) (core.Publisher, error) {
	return nil, core.UnsupportedOperationError(a.platform, "publish")
}

func TestExtensionHooks_RegisterAndApplyAdapterPacks(t *testing.T) {
	hooks := NewExtensionHooks()
	pack := AdapterPack{
		Name:     "downstream-pack",
		Adapters: []core.Adapter{extensionAdapter{platform: core.PlatformPinterest, tag: "custom"}},
	}
	if err := hooks.RegisterAdapterPack(pack); err != nil {
		t.Fatalf("register adapter pack: %v", err)
	}
	if err := hooks.RegisterAdapterPack(pack); err == nil {
		t.Fatalf("expected duplicate adapter pack registration error")
	}
	if err := hooks.RegisterAdapterPack(AdapterPack{Name: "empty"}); err == nil {
		t.Fatalf("expected empty pack error")
	}

	registry, err := core.NewPlatformRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := hooks.ApplyAdapterPacks(registry); err != nil {
		t.Fatalf("apply adapter packs: %v", err)
	}
	if _, ok := registry.Get(core.PlatformPinterest); !ok {
		t.Fatalf("expected pack adapter in registry")
	}
}

func TestExtensionHooks_RegistryFactoryPrefersPackAdapters(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterAdapterPack(AdapterPack{
		Name:     "telegram-override",
		Adapters: []core.Adapter{extensionAdapter{platform: core.PlatformTelegram, tag: "override"}},
	}); err != nil {
		t.Fatalf("register adapter pack: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Platforms.Telegram = core.TelegramConfig{BotToken: "123:abc", ChatID: "-100"}
	cfg.Platforms.Pinterest = core.PlatformConfig{ClientID: "id", ClientSecret: "secret"}

	svc, err := NewService(cfg, WithAdapterRegistryFactory(hooks.RegistryFactory(nil)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	adapter, ok := svc.Registry().Get(core.PlatformTelegram)
	if !ok {
		t.Fatalf("expected telegram adapter")
	}
	if custom, ok := adapter.(extensionAdapter); !ok || custom.tag != "override" {
		t.Fatalf("expected pack adapter to win, got %T", adapter)
	}
	if _, ok := svc.Registry().Get(core.PlatformPinterest); !ok {
		t.Fatalf("expected default pinterest adapter to remain")
	}
}

func TestExtensionHooks_CommandQueryBundles(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterCommandQueryBundle("b_bundle", func(service CommandQueryService) (any, error) {
		return "b", nil
	}); err != nil {
		t.Fatalf("register bundle b: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("a_bundle", func(service CommandQueryService) (any, error) {
		return NewFacade(service)
	}); err != nil {
		t.Fatalf("register bundle a: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("a_bundle", nil); err == nil {
		t.Fatalf("expected nil factory error")
	}

	names := hooks.BundleNames()
	if len(names) != 2 || names[0] != "a_bundle" {
		t.Fatalf("unexpected bundle names %v", names)
	}
	if _, err := hooks.BuildCommandQueryBundles(nil); err == nil {
		t.Fatalf("expected nil service error")
	}

	bundles, err := hooks.BuildCommandQueryBundles(&stubFacadeService{})
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	if _, ok := bundles["a_bundle"].(*Facade); !ok {
		t.Fatalf("expected facade bundle, got %T", bundles["a_bundle"])
	}
	if bundles["b_bundle"] != "b" {
		t.Fatalf("unexpected b bundle %v", bundles["b_bundle"])
	}
}

func TestExtensionHooks_NilReceiver(t *testing.T) {
	var hooks *ExtensionHooks
	if err := hooks.RegisterAdapterPack(AdapterPack{Name: "x"}); err == nil {
		t.Fatalf("expected nil hooks error")
	}
	if err := hooks.ApplyAdapterPacks(nil); err != nil {
		t.Fatalf("nil hooks apply should be a no-op: %v", err)
	}
	if hooks.AdapterPacks() != nil || hooks.BundleNames() != nil {
		t.Fatalf("expected nil listings")
	}
}

package social

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-social/core"
)

var errNilHooks = errors.New("social: extension hooks are nil")

// AdapterPack groups adapters contributed by a downstream module, for
// example a replacement publisher for one platform.
type AdapterPack struct {
	Name     string
	Adapters []core.Adapter
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks collects adapter packs and command/query bundles from
// downstream modules before the service is built. Both are keyed by name and
// applied in name order.
type ExtensionHooks struct {
	mu      sync.RWMutex
	packs   map[string][]core.Adapter
	bundles map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		packs:   map[string][]core.Adapter{},
		bundles: map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterAdapterPack(pack AdapterPack) error {
	if h == nil {
		return errNilHooks
	}
	name := strings.TrimSpace(pack.Name)
	switch {
	case name == "":
		return errors.New("social: adapter pack name is required")
	case len(pack.Adapters) == 0:
		return fmt.Errorf("social: adapter pack %q has no adapters", name)
	case slices.Contains(pack.Adapters, nil):
		return fmt.Errorf("social: adapter pack %q contains nil adapter", name)
	}
	return claim(&h.mu, h.packs, name, slices.Clone(pack.Adapters), "adapter pack")
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(name string, factory CommandQueryBundleFactory) error {
	if h == nil {
		return errNilHooks
	}
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return errors.New("social: command/query bundle name is required")
	case factory == nil:
		return fmt.Errorf("social: command/query bundle %q factory is required", name)
	}
	return claim(&h.mu, h.bundles, name, factory, "command/query bundle")
}

// claim stores value under name unless the name is already taken.
func claim[V any](mu *sync.RWMutex, into map[string]V, name string, value V, kind string) error {
	mu.Lock()
	defer mu.Unlock()
	if _, taken := into[name]; taken {
		return fmt.Errorf("social: %s %q already registered", kind, name)
	}
	into[name] = value
	return nil
}

// AdapterPacks returns the registered packs sorted by name.
func (h *ExtensionHooks) AdapterPacks() []AdapterPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]AdapterPack, 0, len(h.packs))
	for _, name := range slices.Sorted(maps.Keys(h.packs)) {
		out = append(out, AdapterPack{Name: name, Adapters: slices.Clone(h.packs[name])})
	}
	return out
}

func (h *ExtensionHooks) ApplyAdapterPacks(registry core.AdapterRegistry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return errors.New("social: adapter registry is required")
	}
	for _, pack := range h.AdapterPacks() {
		for _, adapter := range pack.Adapters {
			if err := registry.Register(adapter); err != nil {
				return fmt.Errorf("social: adapter pack %q: %w", pack.Name, err)
			}
		}
	}
	return nil
}

// RegistryFactory wraps base so pack adapters take precedence over the
// adapters base builds for the same platform. A nil base means
// DefaultAdapterRegistry.
func (h *ExtensionHooks) RegistryFactory(base core.AdapterRegistryFactory) core.AdapterRegistryFactory {
	if base == nil {
		base = DefaultAdapterRegistry
	}
	return func(cfg core.Config, logger core.Logger) (core.AdapterRegistry, error) {
		registry, err := core.NewPlatformRegistry()
		if err != nil {
			return nil, err
		}
		if err := h.ApplyAdapterPacks(registry); err != nil {
			return nil, err
		}
		fallback, err := base(cfg, logger)
		if err != nil {
			return nil, err
		}
		if fallback == nil {
			return registry, nil
		}
		for _, adapter := range fallback.List() {
			if _, overridden := registry.Get(adapter.Platform()); overridden {
				continue
			}
			if err := registry.Register(adapter); err != nil {
				return nil, err
			}
		}
		return registry, nil
	}
}

// BuildCommandQueryBundles runs every bundle factory against service. The
// first failing factory aborts the build.
func (h *ExtensionHooks) BuildCommandQueryBundles(service CommandQueryService) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, errors.New("social: command/query service is required")
	}
	h.mu.RLock()
	factories := maps.Clone(h.bundles)
	h.mu.RUnlock()

	built := make(map[string]any, len(factories))
	for _, name := range slices.Sorted(maps.Keys(factories)) {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, fmt.Errorf("social: command/query bundle %q: %w", name, err)
		}
		built[name] = bundle
	}
	return built, nil
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Sorted(maps.Keys(h.bundles))
}

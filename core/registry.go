package core

import (
	"fmt"
	"sort"
	"sync"
)

// PlatformRegistry maps platform identifiers to adapters.
type PlatformRegistry struct {
	mu       sync.RWMutex
	adapters map[Platform]Adapter
}

func NewPlatformRegistry(adapters ...Adapter) (*PlatformRegistry, error) {
	registry := &PlatformRegistry{adapters: make(map[Platform]Adapter)}
	for _, adapter := range adapters {
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *PlatformRegistry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("core: adapter is nil")
	}
	platform := adapter.Platform()
	if !platform.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[platform]; exists {
		return fmt.Errorf("core: adapter already registered: %s", platform)
	}
	r.adapters[platform] = adapter
	return nil
}

func (r *PlatformRegistry) Get(platform Platform) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	adapter, ok := r.adapters[platform]
	r.mu.RUnlock()
	return adapter, ok
}

func (r *PlatformRegistry) List() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.adapters))
	for platform := range r.adapters {
		keys = append(keys, string(platform))
	}
	sort.Strings(keys)
	adapters := make([]Adapter, 0, len(keys))
	for _, key := range keys {
		adapters = append(adapters, r.adapters[Platform(key)])
	}
	return adapters
}

// OAuthFlowFor returns the OAuth capability of the registered adapter.
func OAuthFlowFor(registry AdapterRegistry, platform Platform) (OAuthFlow, error) {
	if registry == nil {
		return nil, fmt.Errorf("core: adapter registry is required")
	}
	adapter, ok := registry.Get(platform)
	if !ok {
		return nil, UnknownPlatformError(string(platform))
	}
	flow, ok := adapter.(OAuthFlow)
	if !ok {
		return nil, UnsupportedOperationError(platform, "oauth")
	}
	return flow, nil
}

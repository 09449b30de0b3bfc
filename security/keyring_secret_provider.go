package security

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-social/core"
)

// KeyRotationWindow is the period in which a key may seal. A zero bound is
// open ended.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	at = at.UTC()
	afterStart := w.NotBefore.IsZero() || !at.Before(w.NotBefore.UTC())
	beforeEnd := w.NotAfter.IsZero() || !at.After(w.NotAfter.UTC())
	return afterStart && beforeEnd
}

type KeyringOption func(*KeyringSecretProvider)

// KeyringSecretProvider seals with the active key and opens with whichever
// registered key the envelope names.
type KeyringSecretProvider struct {
	mu      sync.RWMutex
	keys    map[string]*AppKeySecretProvider
	windows map[string]KeyRotationWindow
	active  string
	now     func() time.Time
}

func WithKeyringClock(now func() time.Time) KeyringOption {
	return func(k *KeyringSecretProvider) {
		if now != nil {
			k.now = now
		}
	}
}

// WithKeyWindow restricts when keyID may seal new values.
func WithKeyWindow(keyID string, window KeyRotationWindow) KeyringOption {
	return func(k *KeyringSecretProvider) {
		k.windows[strings.TrimSpace(keyID)] = window
	}
}

func NewKeyringSecretProvider(active *AppKeySecretProvider, opts ...KeyringOption) (*KeyringSecretProvider, error) {
	if active == nil {
		return nil, fmt.Errorf("security: active key is required")
	}
	keyring := &KeyringSecretProvider{
		keys:    map[string]*AppKeySecretProvider{active.KeyID(): active},
		windows: map[string]KeyRotationWindow{},
		active:  active.KeyID(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(keyring)
	}
	return keyring, nil
}

// Add registers a key that can open values without becoming active.
func (k *KeyringSecretProvider) Add(key *AppKeySecretProvider) error {
	if key == nil {
		return fmt.Errorf("security: key is required")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.keys[key.KeyID()]; exists {
		return fmt.Errorf("security: key already registered: %s", key.KeyID())
	}
	k.keys[key.KeyID()] = key
	return nil
}

// Activate switches sealing to a registered key.
func (k *KeyringSecretProvider) Activate(keyID string) error {
	keyID = strings.TrimSpace(keyID)
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.keys[keyID]; !ok {
		return fmt.Errorf("security: unknown key id %q", keyID)
	}
	k.active = keyID
	return nil
}

func (k *KeyringSecretProvider) ActiveKeyID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active
}

func (k *KeyringSecretProvider) KeyIDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (k *KeyringSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	k.mu.RLock()
	key := k.keys[k.active]
	window, bounded := k.windows[k.active]
	k.mu.RUnlock()
	if key == nil {
		return nil, fmt.Errorf("security: no active key")
	}
	if bounded && !window.Allows(k.now()) {
		return nil, fmt.Errorf("security: key %q is outside its rotation window", key.KeyID())
	}
	return key.Encrypt(ctx, plaintext)
}

func (k *KeyringSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	parsed, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	k.mu.RLock()
	key := k.keys[parsed.KeyID]
	k.mu.RUnlock()
	if key == nil {
		return nil, fmt.Errorf("security: unknown key id %q", parsed.KeyID)
	}
	return key.open(parsed)
}

// Reseal re-encrypts ciphertext under the active key. It reports false when
// the value was already sealed by the active key.
func (k *KeyringSecretProvider) Reseal(ctx context.Context, ciphertext []byte) ([]byte, bool, error) {
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, false, err
	}
	if meta.KeyID == k.ActiveKeyID() {
		return ciphertext, false, nil
	}
	plaintext, err := k.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, false, err
	}
	resealed, err := k.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, false, err
	}
	return resealed, true, nil
}

var _ core.SecretProvider = (*KeyringSecretProvider)(nil)

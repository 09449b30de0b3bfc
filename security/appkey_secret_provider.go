package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/goliatone/go-social/core"
)

const (
	defaultKeyID = "app-key"
	keySize      = 32
	hkdfInfo     = "go-social connection secrets"
)

var errNilProvider = errors.New("security: secret provider is nil")

type Option func(*AppKeySecretProvider)

// AppKeySecretProvider seals connection tokens with AES-256-GCM under one
// application key. The key id and version are bound to every ciphertext as
// additional data.
type AppKeySecretProvider struct {
	gcm     cipher.AEAD
	keyID   string
	version int
	nonces  io.Reader
}

func WithKeyID(id string) Option {
	return func(p *AppKeySecretProvider) {
		if id = strings.TrimSpace(id); id != "" {
			p.keyID = id
		}
	}
}

func WithVersion(version int) Option {
	return func(p *AppKeySecretProvider) {
		if version > 0 {
			p.version = version
		}
	}
}

// WithRandom replaces the nonce source.
func WithRandom(reader io.Reader) Option {
	return func(p *AppKeySecretProvider) {
		if reader != nil {
			p.nonces = reader
		}
	}
}

// NewAppKeySecretProvider uses 32 bytes of key material directly and
// stretches anything else through HKDF-SHA256.
func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	material := bytes.TrimSpace(keyMaterial)
	if len(material) == 0 {
		return nil, errors.New("security: key material is required")
	}
	key, err := deriveKey(material)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}

	p := &AppKeySecretProvider{gcm: gcm, keyID: defaultKeyID, version: 1, nonces: rand.Reader}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil || p.gcm == nil {
		return nil, errNilProvider
	}
	if len(plaintext) == 0 {
		return nil, errors.New("security: plaintext is required")
	}
	nonce := make([]byte, p.gcm.NonceSize())
	if _, err := io.ReadFull(p.nonces, nonce); err != nil {
		return nil, fmt.Errorf("security: read nonce: %w", err)
	}
	return encodeEnvelope(envelope{
		KeyID:      p.keyID,
		Version:    p.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      encodePayload(nonce),
		Ciphertext: encodePayload(p.gcm.Seal(nil, nonce, plaintext, p.binding())),
	})
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil || p.gcm == nil {
		return nil, errNilProvider
	}
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	return p.open(env)
}

// open checks that env was sealed by this key before decrypting it. Empty
// key ids and zero versions are accepted for values written without them.
func (p *AppKeySecretProvider) open(env envelope) ([]byte, error) {
	switch {
	case env.KeyID != "" && env.KeyID != p.keyID:
		return nil, fmt.Errorf("security: sealed with key %q, this key is %q", env.KeyID, p.keyID)
	case env.Version > 0 && env.Version != p.version:
		return nil, fmt.Errorf("security: sealed with version %d, this key is version %d", env.Version, p.version)
	}
	nonce, err := decodePayload("nonce", env.Nonce)
	if err != nil {
		return nil, err
	}
	if len(nonce) != p.gcm.NonceSize() {
		return nil, fmt.Errorf("security: invalid nonce length %d", len(nonce))
	}
	sealed, err := decodePayload("ciphertext", env.Ciphertext)
	if err != nil {
		return nil, err
	}
	plaintext, err := p.gcm.Open(nil, nonce, sealed, p.binding())
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) binding() []byte {
	return []byte(p.keyID + ":" + strconv.Itoa(p.version))
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *AppKeySecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.version
}

func deriveKey(material []byte) ([]byte, error) {
	key := make([]byte, keySize)
	if len(material) == keySize {
		copy(key, material)
		return key, nil
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("security: derive key: %w", err)
	}
	return key, nil
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)

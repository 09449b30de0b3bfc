package core

import (
	"context"
	"fmt"
	"strings"
)

// SecretBox seals and opens EncryptedSecret values with a SecretProvider.
type SecretBox struct {
	provider SecretProvider
}

func NewSecretBox(provider SecretProvider) SecretBox {
	return SecretBox{provider: provider}
}

func (b SecretBox) Configured() bool {
	return b.provider != nil
}

// Seal encrypts plaintext. An empty plaintext seals to an empty secret.
func (b SecretBox) Seal(ctx context.Context, plaintext string) (EncryptedSecret, error) {
	if plaintext == "" {
		return "", nil
	}
	if b.provider == nil {
		return "", CryptoError(fmt.Errorf("core: secret provider is required"))
	}
	sealed, err := b.provider.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", CryptoError(err)
	}
	if string(sealed) == plaintext {
		return "", CryptoError(fmt.Errorf("core: secret provider returned plaintext"))
	}
	return EncryptedSecret(sealed), nil
}

// Open decrypts a sealed value. Malformed or foreign values fail with a
// CryptoError.
func (b SecretBox) Open(ctx context.Context, secret EncryptedSecret) (string, error) {
	if secret.IsZero() {
		return "", nil
	}
	if b.provider == nil {
		return "", CryptoError(fmt.Errorf("core: secret provider is required"))
	}
	plaintext, err := b.provider.Decrypt(ctx, []byte(strings.TrimSpace(string(secret))))
	if err != nil {
		return "", CryptoError(err)
	}
	return string(plaintext), nil
}

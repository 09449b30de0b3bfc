package core

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const codeVerifierBytes = 32

// GenerateCodeVerifier returns 32 random bytes, hex encoded.
func GenerateCodeVerifier() (string, error) {
	raw := make([]byte, codeVerifierBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate code verifier: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// CodeChallengeS256 derives the S256 challenge: unpadded base64url of the
// SHA-256 of the verifier string.
func CodeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ResolvePKCE decides whether PKCE applies and returns the verifier to use.
func ResolvePKCE(req AuthorizationRequest, platformDefault bool) (bool, string, error) {
	use := platformDefault
	if req.UsePKCE != nil {
		use = *req.UsePKCE
	}
	if !use {
		return false, "", nil
	}
	if req.CodeVerifier != "" {
		return true, req.CodeVerifier, nil
	}
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return false, "", err
	}
	return true, verifier, nil
}

func GenerateState() (string, error) {
	return generateOAuthState()
}

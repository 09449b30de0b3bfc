package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	envelopePrefix    = "social.secret.v1:"
	envelopeAlgorithm = "aes-256-gcm"
)

// envelope is a sealed value. It is stored as the prefix followed by a
// form-encoded body: kid, ver, alg, nonce and ct.
type envelope struct {
	KeyID      string
	Version    int
	Algorithm  string
	Nonce      string
	Ciphertext string
}

// EnvelopeMetadata describes a sealed value without opening it.
type EnvelopeMetadata struct {
	KeyID     string
	Version   int
	Algorithm string
}

func ParseEnvelopeMetadata(ciphertext []byte) (EnvelopeMetadata, error) {
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return EnvelopeMetadata{}, err
	}
	return EnvelopeMetadata{KeyID: env.KeyID, Version: env.Version, Algorithm: env.Algorithm}, nil
}

// IsSealed reports whether value carries the envelope prefix.
func IsSealed(value []byte) bool {
	return strings.HasPrefix(string(value), envelopePrefix)
}

func encodeEnvelope(env envelope) ([]byte, error) {
	body := url.Values{}
	body.Set("kid", strings.TrimSpace(env.KeyID))
	body.Set("ver", strconv.Itoa(env.Version))
	body.Set("alg", strings.ToLower(strings.TrimSpace(env.Algorithm)))
	body.Set("nonce", env.Nonce)
	body.Set("ct", env.Ciphertext)
	return []byte(envelopePrefix + body.Encode()), nil
}

func decodeEnvelope(ciphertext []byte) (envelope, error) {
	if len(ciphertext) == 0 {
		return envelope{}, errors.New("security: ciphertext is required")
	}
	raw, ok := strings.CutPrefix(string(ciphertext), envelopePrefix)
	if !ok {
		return envelope{}, errors.New("security: value is not a sealed envelope")
	}
	body, err := url.ParseQuery(raw)
	if err != nil {
		return envelope{}, fmt.Errorf("security: decode envelope: %w", err)
	}

	env := envelope{
		KeyID:      strings.TrimSpace(body.Get("kid")),
		Algorithm:  strings.ToLower(strings.TrimSpace(body.Get("alg"))),
		Nonce:      body.Get("nonce"),
		Ciphertext: body.Get("ct"),
	}
	if ver := body.Get("ver"); ver != "" {
		if env.Version, err = strconv.Atoi(ver); err != nil {
			return envelope{}, fmt.Errorf("security: decode envelope version: %w", err)
		}
	}
	if env.Algorithm == "" {
		env.Algorithm = envelopeAlgorithm
	}
	switch {
	case env.Algorithm != envelopeAlgorithm:
		return envelope{}, fmt.Errorf("security: unsupported envelope algorithm %q", env.Algorithm)
	case strings.TrimSpace(env.Ciphertext) == "":
		return envelope{}, errors.New("security: envelope ciphertext is required")
	}
	return env, nil
}

func encodePayload(value []byte) string {
	return base64.RawURLEncoding.EncodeToString(value)
}

func decodePayload(field string, value string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("security: decode %s: %w", field, err)
	}
	return decoded, nil
}

package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrUnknownPlatform    = errors.New("core: unknown platform")
	ErrInvalidOwner       = errors.New("core: invalid owner")
	ErrConnectionNotFound = errors.New("core: connection not found")
)

type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformPinterest Platform = "pinterest"
	PlatformTelegram  Platform = "telegram"
)

var supportedPlatforms = []Platform{
	PlatformFacebook,
	PlatformTwitter,
	PlatformLinkedIn,
	PlatformInstagram,
	PlatformTikTok,
	PlatformYouTube,
	PlatformPinterest,
	PlatformTelegram,
}

// SupportedPlatforms returns every platform identifier in a stable order.
func SupportedPlatforms() []Platform {
	out := append([]Platform(nil), supportedPlatforms...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ParsePlatform(raw string) (Platform, error) {
	platform := Platform(strings.ToLower(strings.TrimSpace(raw)))
	if platform == "x" {
		platform = PlatformTwitter
	}
	if !platform.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, raw)
	}
	return platform, nil
}

func (p Platform) Valid() bool {
	for _, candidate := range supportedPlatforms {
		if p == candidate {
			return true
		}
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

const (
	ConnectionTypeProfile  = "profile"
	ConnectionTypePage     = "page"
	ConnectionTypeBusiness = "business"
	ConnectionTypeCompany  = "company"
	ConnectionTypeChannel  = "channel"
	ConnectionTypeBot      = "bot"
)

// NormalizeConnectionType trims the value and falls back to "profile".
func NormalizeConnectionType(connectionType string) string {
	connectionType = strings.ToLower(strings.TrimSpace(connectionType))
	if connectionType == "" {
		return ConnectionTypeProfile
	}
	return connectionType
}

// OwnerRef identifies the entity that owns a connection. The host application
// decides what the type tag means.
type OwnerRef struct {
	Type string
	ID   string
}

func (o OwnerRef) Validate() error {
	if strings.TrimSpace(o.Type) == "" {
		return fmt.Errorf("%w: empty type", ErrInvalidOwner)
	}
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidOwner)
	}
	return nil
}

func (o OwnerRef) String() string {
	return strings.TrimSpace(o.Type) + ":" + strings.TrimSpace(o.ID)
}

// EncryptedSecret is sealed secret material as stored at rest. It is never
// decrypted implicitly; use SecretBox.Open.
type EncryptedSecret string

func (s EncryptedSecret) IsZero() bool {
	return strings.TrimSpace(string(s)) == ""
}

// String hides the sealed value from formatted output.
func (s EncryptedSecret) String() string {
	if s.IsZero() {
		return ""
	}
	return RedactedValue
}

type Connection struct {
	ID               string
	Owner            OwnerRef
	Platform         Platform
	ConnectionType   string
	PlatformUserID   string
	PlatformUsername string
	AccessToken      EncryptedSecret `json:"-"`
	RefreshToken     EncryptedSecret `json:"-"`
	TokenSecret      EncryptedSecret `json:"-"`
	ExpiresAt        *time.Time
	Metadata         map[string]any
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsExpired reports whether ExpiresAt is set and before now. A nil ExpiresAt
// means the token does not expire.
func (c Connection) IsExpired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Before(now)
}

func (c Connection) MetadataString(key string) string {
	return readMetadataString(c.Metadata, key)
}

// ConnectionFields carries plaintext values for an upsert. Token fields are
// sealed before they reach a ConnectionStore.
type ConnectionFields struct {
	PlatformUserID   string
	PlatformUsername string
	AccessToken      string
	RefreshToken     string
	TokenSecret      string
	ExpiresAt        *time.Time
	Metadata         map[string]any
}

// UpsertConnectionInput is the sealed record handed to a ConnectionStore.
type UpsertConnectionInput struct {
	Owner            OwnerRef
	Platform         Platform
	ConnectionType   string
	PlatformUserID   string
	PlatformUsername string
	AccessToken      EncryptedSecret
	RefreshToken     EncryptedSecret
	TokenSecret      EncryptedSecret
	ExpiresAt        *time.Time
	Metadata         map[string]any
}

// TokenUpdate replaces token material after a refresh. An empty RefreshToken
// keeps the stored value.
type TokenUpdate struct {
	AccessToken  EncryptedSecret
	RefreshToken EncryptedSecret
	ExpiresAt    *time.Time
}

type ConnectionQuery struct {
	Owner          OwnerRef
	Platform       Platform
	ConnectionType string
	ActiveOnly     bool
}

// ConnectionCredentials is the decrypted view of a connection handed to an
// adapter. It only lives for the duration of a request.
type ConnectionCredentials struct {
	ConnectionID     string
	Platform         Platform
	ConnectionType   string
	PlatformUserID   string
	PlatformUsername string
	AccessToken      string
	RefreshToken     string
	TokenSecret      string
	ExpiresAt        *time.Time
	Metadata         map[string]any
}

func (c ConnectionCredentials) MetadataString(key string) string {
	return readMetadataString(c.Metadata, key)
}

type AuthorizationRequest struct {
	RedirectURI  string
	Scopes       []string
	State        string
	UsePKCE      *bool
	CodeVerifier string
}

// AuthorizationURL is the authorize redirect target. CodeVerifier is empty
// when PKCE was not used.
type AuthorizationURL struct {
	URL          string
	State        string
	CodeVerifier string
}

func (a AuthorizationURL) UsesPKCE() bool {
	return strings.TrimSpace(a.CodeVerifier) != ""
}

type CallbackRequest struct {
	Code         string
	State        string
	RedirectURI  string
	CodeVerifier string
}

type TokenResult struct {
	AccessToken      string
	RefreshToken     string
	TokenSecret      string
	TokenType        string
	ExpiresAt        *time.Time
	Scopes           []string
	PlatformUserID   string
	PlatformUsername string
	ConnectionType   string
	Metadata         map[string]any
	Raw              map[string]any
}

type PostResult struct {
	Platform Platform
	ID       string
	URL      string
	Raw      map[string]any
}

func ExpiresIn(now time.Time, seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	expiresAt := now.UTC().Add(time.Duration(seconds) * time.Second)
	return &expiresAt
}

func readMetadataString(metadata map[string]any, key string) string {
	if len(metadata) == 0 {
		return ""
	}
	value, ok := metadata[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

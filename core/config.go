package core

import (
	"fmt"
	"strings"
	"time"
)

type LoggingConfig struct {
	Enabled *bool `koanf:"enabled" mapstructure:"enabled"`
}

type HTTPConfig struct {
	TimeoutSeconds    int     `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	RetryAttempts     int     `koanf:"retry_attempts" mapstructure:"retry_attempts"`
	RequestsPerSecond float64 `koanf:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `koanf:"burst" mapstructure:"burst"`
}

type DispatchConfig struct {
	Parallel       bool `koanf:"parallel" mapstructure:"parallel"`
	MaxConcurrency int  `koanf:"max_concurrency" mapstructure:"max_concurrency"`
}

type OAuthConfig struct {
	RequireState       bool `koanf:"require_state" mapstructure:"require_state"`
	VerifierTTLSeconds int  `koanf:"verifier_ttl_seconds" mapstructure:"verifier_ttl_seconds"`
}

type PlatformConfig struct {
	ClientID     string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string   `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string   `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	Scopes       []string `koanf:"scopes" mapstructure:"scopes"`
	UsePKCE      *bool    `koanf:"use_pkce" mapstructure:"use_pkce"`
}

func (c PlatformConfig) Configured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

type TelegramConfig struct {
	BotToken  string `koanf:"bot_token" mapstructure:"bot_token"`
	ChatID    string `koanf:"chat_id" mapstructure:"chat_id"`
	ParseMode string `koanf:"parse_mode" mapstructure:"parse_mode"`
}

func (c TelegramConfig) Configured() bool {
	return strings.TrimSpace(c.BotToken) != "" && strings.TrimSpace(c.ChatID) != ""
}

type PlatformsConfig struct {
	Facebook  PlatformConfig `koanf:"facebook" mapstructure:"facebook"`
	Twitter   PlatformConfig `koanf:"twitter" mapstructure:"twitter"`
	LinkedIn  PlatformConfig `koanf:"linkedin" mapstructure:"linkedin"`
	Instagram PlatformConfig `koanf:"instagram" mapstructure:"instagram"`
	TikTok    PlatformConfig `koanf:"tiktok" mapstructure:"tiktok"`
	YouTube   PlatformConfig `koanf:"youtube" mapstructure:"youtube"`
	Pinterest PlatformConfig `koanf:"pinterest" mapstructure:"pinterest"`
	Telegram  TelegramConfig `koanf:"telegram" mapstructure:"telegram"`
}

// OAuth returns the client configuration for an OAuth platform.
func (c PlatformsConfig) OAuth(platform Platform) (PlatformConfig, bool) {
	switch platform {
	case PlatformFacebook:
		return c.Facebook, true
	case PlatformTwitter:
		return c.Twitter, true
	case PlatformLinkedIn:
		return c.LinkedIn, true
	case PlatformInstagram:
		return c.Instagram, true
	case PlatformTikTok:
		return c.TikTok, true
	case PlatformYouTube:
		return c.YouTube, true
	case PlatformPinterest:
		return c.Pinterest, true
	default:
		return PlatformConfig{}, false
	}
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Logging     LoggingConfig   `koanf:"logging" mapstructure:"logging"`
	HTTP        HTTPConfig      `koanf:"http" mapstructure:"http"`
	Dispatch    DispatchConfig  `koanf:"dispatch" mapstructure:"dispatch"`
	OAuth       OAuthConfig     `koanf:"oauth" mapstructure:"oauth"`
	Platforms   PlatformsConfig `koanf:"platforms" mapstructure:"platforms"`
}

const (
	defaultHTTPTimeoutSeconds    = 30
	defaultHTTPRetryAttempts     = 3
	defaultDispatchConcurrency   = 4
	defaultVerifierTTLSeconds    = 600
	defaultServiceName           = "social"
	defaultTwitterUsesPKCE       = true
	defaultLinkedInUsesPKCE      = false
	defaultConnectionRefreshSkew = 5 * time.Minute
)

func DefaultConfig() Config {
	enabled := true
	twitterPKCE := defaultTwitterUsesPKCE
	linkedInPKCE := defaultLinkedInUsesPKCE
	return Config{
		ServiceName: defaultServiceName,
		Logging:     LoggingConfig{Enabled: &enabled},
		HTTP: HTTPConfig{
			TimeoutSeconds: defaultHTTPTimeoutSeconds,
			RetryAttempts:  defaultHTTPRetryAttempts,
		},
		Dispatch: DispatchConfig{
			MaxConcurrency: defaultDispatchConcurrency,
		},
		OAuth: OAuthConfig{
			VerifierTTLSeconds: defaultVerifierTTLSeconds,
		},
		Platforms: PlatformsConfig{
			Twitter:  PlatformConfig{UsePKCE: &twitterPKCE},
			LinkedIn: PlatformConfig{UsePKCE: &linkedInPKCE},
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("core: http.timeout_seconds must not be negative")
	}
	if c.HTTP.RetryAttempts < 0 {
		return fmt.Errorf("core: http.retry_attempts must not be negative")
	}
	if c.HTTP.RequestsPerSecond < 0 || c.HTTP.Burst < 0 {
		return fmt.Errorf("core: http rate limit must not be negative")
	}
	if c.Dispatch.MaxConcurrency < 0 {
		return fmt.Errorf("core: dispatch.max_concurrency must not be negative")
	}
	if c.OAuth.VerifierTTLSeconds < 0 {
		return fmt.Errorf("core: oauth.verifier_ttl_seconds must not be negative")
	}
	return nil
}

func (c Config) LoggingEnabled() bool {
	if c.Logging.Enabled == nil {
		return true
	}
	return *c.Logging.Enabled
}

func (c Config) HTTPTimeout() time.Duration {
	if c.HTTP.TimeoutSeconds <= 0 {
		return defaultHTTPTimeoutSeconds * time.Second
	}
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func (c Config) RetryAttempts() int {
	if c.HTTP.RetryAttempts <= 0 {
		return defaultHTTPRetryAttempts
	}
	return c.HTTP.RetryAttempts
}

func (c Config) VerifierTTL() time.Duration {
	if c.OAuth.VerifierTTLSeconds <= 0 {
		return defaultVerifierTTLSeconds * time.Second
	}
	return time.Duration(c.OAuth.VerifierTTLSeconds) * time.Second
}

func (c Config) DispatchConcurrency() int {
	if c.Dispatch.MaxConcurrency <= 0 {
		return defaultDispatchConcurrency
	}
	return c.Dispatch.MaxConcurrency
}

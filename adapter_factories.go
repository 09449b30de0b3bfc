package social

import (
	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/providers/google/youtube"
	"github.com/goliatone/go-social/providers/linkedin"
	meta "github.com/goliatone/go-social/providers/meta/common"
	"github.com/goliatone/go-social/providers/meta/facebook"
	"github.com/goliatone/go-social/providers/meta/instagram"
	"github.com/goliatone/go-social/providers/pinterest"
	"github.com/goliatone/go-social/providers/telegram"
	"github.com/goliatone/go-social/providers/tiktok"
	"github.com/goliatone/go-social/providers/twitter"
)

// AdapterBuilder creates the adapter for one platform from the service
// configuration.
type AdapterBuilder func(cfg core.Config, runtime providers.Runtime) (core.Adapter, error)

// AdapterBuilders maps each platform to its default builder.
func AdapterBuilders() map[core.Platform]AdapterBuilder {
	return map[core.Platform]AdapterBuilder{
		core.PlatformFacebook:  FacebookAdapter,
		core.PlatformTwitter:   TwitterAdapter,
		core.PlatformLinkedIn:  LinkedInAdapter,
		core.PlatformInstagram: InstagramAdapter,
		core.PlatformTikTok:    TikTokAdapter,
		core.PlatformYouTube:   YouTubeAdapter,
		core.PlatformPinterest: PinterestAdapter,
		core.PlatformTelegram:  TelegramAdapter,
	}
}

// DefaultAdapterRegistry registers an adapter for each platform that has
// credentials. Unconfigured platforms are skipped so lookups fail with a
// configuration error instead.
func DefaultAdapterRegistry(cfg core.Config, logger core.Logger) (core.AdapterRegistry, error) {
	registry, err := core.NewPlatformRegistry()
	if err != nil {
		return nil, err
	}
	runtime := providers.RuntimeFromConfig(cfg, logger)
	builders := AdapterBuilders()
	for _, platform := range core.SupportedPlatforms() {
		if !platformConfigured(cfg, platform) {
			continue
		}
		adapter, err := builders[platform](cfg, runtime)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func platformConfigured(cfg core.Config, platform core.Platform) bool {
	if platform == core.PlatformTelegram {
		return cfg.Platforms.Telegram.Configured()
	}
	oauth, ok := cfg.Platforms.OAuth(platform)
	return ok && oauth.Configured()
}

func metaAuth(oauth core.PlatformConfig) meta.AuthConfig {
	return meta.AuthConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURI:  oauth.RedirectURI,
		Scopes:       oauth.Scopes,
		UsePKCE:      oauth.UsePKCE,
	}
}

func FacebookAdapter(cfg core.Config, runtime providers.Runtime) (core.Adapter, error) {
	return facebook.New(facebook.Config{
		AuthConfig: metaAuth(cfg.Platforms.Facebook),
		Runtime:    runtime,
	})
}

func InstagramAdapter(cfg core.Config, runtime providers.Runtime) (core.Adapter, error) {
	return instagram.New(instagram.Config{
		AuthConfig: metaAuth(cfg.Platforms.Instagram),
		Runtime:    runtime,
	})
}

func TwitterAdapter(cfg core.Config, runtime providers.Runtime) (core.Adapter, error) {
	oauth := cfg.Platforms.Twitter
	return twitter.New(twitter.Config{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURI:  oauth.RedirectURI,
		Scopes:       oauth.Scopes,
		UsePKCE:      oauth.UsePKCE,
		Runtime:      runtime,
	})
}

func LinkedInAdapter(cfg core.Config, runtime providers.Runtime) (core.Adapter, error) {
	oauth := cfg.Platforms.LinkedIn
	return linkedin.New(linkedin.Config{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURI:  oauth.RedirectURI,
		Scopes:       oauth.Scopes,
		UsePKCE:      oauth.UsePKCE,
		Runtime:      runtime,
	})
}

func TikTokAdapter(cfg core.Config, runtime providers.Runtime) (core.Adapter, error) {
	oauth := cfg.Platforms.TikTok
	return tiktok.New(tiktok.Config{
		ClientKey:    oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURI:  oauth.RedirectURI,
		Scopes:       oauth.Scopes,
		UsePKCE:      oauth.UsePKCE,
		Runtime:      runtime,
	})
}

func YouTubeAdapter(cfg core.Config, runtime providers.Runtime) (core.Adapter, error) {
	oauth := cfg.Platforms.YouTube
	return youtube.New(youtube.Config{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURI:  oauth.RedirectURI,
		Scopes:       oauth.Scopes,
		UsePKCE:      oauth.UsePKCE,
		Runtime:      runtime,
	})
}

func PinterestAdapter(cfg core.Config, runtime providers.Runtime) (core.Adapter, error) {
	oauth := cfg.Platforms.Pinterest
	return pinterest.New(pinterest.Config{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURI:  oauth.RedirectURI,
		Scopes:       oauth.Scopes,
		UsePKCE:      oauth.UsePKCE,
		Runtime:      runtime,
	})
}

func TelegramAdapter(cfg core.Config, runtime providers.Runtime) (core.Adapter, error) {
	return telegram.New(telegram.ConfigFrom(cfg.Platforms.Telegram, runtime)), nil
}

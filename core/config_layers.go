package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type staticRawConfigLoader map[string]any

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := maps.Clone(map[string]any(l))
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw configuration map.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader(values)
}

// CfgxConfigProvider decodes a raw map from Loader into Config with cfgx,
// starting from the defaults it is given.
type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	var raw map[string]any
	if p.Loader != nil {
		var err error
		if raw, err = p.Loader.LoadRaw(ctx); err != nil {
			return Config{}, err
		}
	}
	return buildConfig(raw, defaults)
}

func buildConfig(raw map[string]any, defaults Config) (Config, error) {
	if raw == nil {
		raw = map[string]any{}
	}
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// GoOptionsResolver merges defaults, loaded and runtime configuration as
// go-options layers. Later layers win; unset runtime fields never mask a
// loaded value.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(opts.NewScope("defaults", 0), configLayer(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults")),
		opts.NewLayer(opts.NewScope("config", 10), configLayer(loaded, false),
			opts.WithSnapshotID[map[string]any]("config")),
		opts.NewLayer(opts.NewScope("runtime", 20), configLayer(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime")),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: build options stack: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: merge options: %w", err)
	}
	return buildConfig(merged.Value, defaults)
}

// layer collects the fields of one configuration source. With full set every
// field is written, otherwise only fields that were set.
type layer struct {
	values map[string]any
	full   bool
}

func newLayer(full bool) *layer { return &layer{values: map[string]any{}, full: full} }

func (l *layer) put(key string, value any, set bool) {
	if set || l.full {
		l.values[key] = value
	}
}

func (l *layer) putString(key, value string) {
	l.put(key, value, strings.TrimSpace(value) != "")
}

func (l *layer) child(key string, fill func(*layer)) {
	c := newLayer(l.full)
	fill(c)
	if len(c.values) > 0 {
		l.values[key] = c.values
	}
}

func configLayer(cfg Config, full bool) map[string]any {
	root := newLayer(full)
	root.putString("service_name", cfg.ServiceName)
	if cfg.Logging.Enabled != nil {
		root.values["logging"] = map[string]any{"enabled": *cfg.Logging.Enabled}
	}
	root.child("http", func(l *layer) {
		l.put("timeout_seconds", cfg.HTTP.TimeoutSeconds, cfg.HTTP.TimeoutSeconds > 0)
		l.put("retry_attempts", cfg.HTTP.RetryAttempts, cfg.HTTP.RetryAttempts > 0)
		l.put("requests_per_second", cfg.HTTP.RequestsPerSecond, cfg.HTTP.RequestsPerSecond > 0)
		l.put("burst", cfg.HTTP.Burst, cfg.HTTP.Burst > 0)
	})
	root.child("dispatch", func(l *layer) {
		l.put("parallel", cfg.Dispatch.Parallel, cfg.Dispatch.Parallel)
		l.put("max_concurrency", cfg.Dispatch.MaxConcurrency, cfg.Dispatch.MaxConcurrency > 0)
	})
	root.child("oauth", func(l *layer) {
		l.put("require_state", cfg.OAuth.RequireState, cfg.OAuth.RequireState)
		l.put("verifier_ttl_seconds", cfg.OAuth.VerifierTTLSeconds, cfg.OAuth.VerifierTTLSeconds > 0)
	})
	root.child("platforms", func(l *layer) {
		for _, p := range oauthPlatformKeys {
			pc, _ := cfg.Platforms.OAuth(p)
			l.child(string(p), func(pl *layer) {
				pl.putString("client_id", pc.ClientID)
				pl.putString("client_secret", pc.ClientSecret)
				pl.putString("redirect_uri", pc.RedirectURI)
				pl.put("scopes", slices.Clone(pc.Scopes), len(pc.Scopes) > 0)
				if pc.UsePKCE != nil {
					pl.values["use_pkce"] = *pc.UsePKCE
				}
			})
		}
		l.child("telegram", func(tl *layer) {
			tl.putString("bot_token", cfg.Platforms.Telegram.BotToken)
			tl.putString("chat_id", cfg.Platforms.Telegram.ChatID)
			tl.putString("parse_mode", cfg.Platforms.Telegram.ParseMode)
		})
	})
	return root.values
}

var oauthPlatformKeys = []Platform{
	PlatformFacebook, PlatformTwitter, PlatformLinkedIn, PlatformInstagram,
	PlatformTikTok, PlatformYouTube, PlatformPinterest,
}

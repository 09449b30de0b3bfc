package tiktok

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/transport"
	"golang.org/x/oauth2"
)

const (
	AuthURL    = "https://www.tiktok.com/v2/auth/authorize/"
	TokenURL   = "https://open.tiktokapis.com/v2/oauth/token/"
	RevokeURL  = "https://open.tiktokapis.com/v2/oauth/revoke/"
	APIBaseURL = "https://open.tiktokapis.com/v2"
)

const (
	ScopeUserInfoBasic = "user.info.basic"
	ScopeVideoPublish  = "video.publish"
	ScopeVideoUpload   = "video.upload"
)

const (
	PrivacyPublic   = "PUBLIC_TO_EVERYONE"
	PrivacyFriends  = "MUTUAL_FOLLOW_FRIENDS"
	PrivacySelfOnly = "SELF_ONLY"
)

const MetadataOpenID = "open_id"

const photoTitleLimit = 90

type Config struct {
	ClientKey    string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	UsePKCE      *bool
	AuthURL      string
	TokenURL     string
	RevokeURL    string
	APIBaseURL   string
	// PrivacyLevel applies to every post. Unaudited apps can only post
	// SELF_ONLY.
	PrivacyLevel string
	Runtime      providers.Runtime
}

func DefaultConfig() Config {
	return Config{
		AuthURL:      AuthURL,
		TokenURL:     TokenURL,
		RevokeURL:    RevokeURL,
		APIBaseURL:   APIBaseURL,
		Scopes:       []string{ScopeUserInfoBasic, ScopeVideoPublish},
		PrivacyLevel: PrivacySelfOnly,
	}
}

type Adapter struct {
	cfg     Config
	flow    *providers.OAuth2Flow
	runtime providers.Runtime
}

func New(cfg Config) (*Adapter, error) {
	cfg.Runtime = cfg.Runtime.Shared()
	defaults := DefaultConfig()
	cfg.AuthURL = providers.FirstNonEmpty(cfg.AuthURL, defaults.AuthURL)
	cfg.TokenURL = providers.FirstNonEmpty(cfg.TokenURL, defaults.TokenURL)
	cfg.RevokeURL = providers.FirstNonEmpty(cfg.RevokeURL, defaults.RevokeURL)
	cfg.APIBaseURL = strings.TrimRight(providers.FirstNonEmpty(cfg.APIBaseURL, defaults.APIBaseURL), "/")
	cfg.PrivacyLevel = providers.FirstNonEmpty(cfg.PrivacyLevel, defaults.PrivacyLevel)
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	usePKCE := false
	if cfg.UsePKCE != nil {
		usePKCE = *cfg.UsePKCE
	}
	flow, err := providers.NewOAuth2Flow(providers.OAuth2Config{
		Platform:       core.PlatformTikTok,
		ClientID:       cfg.ClientKey,
		ClientSecret:   cfg.ClientSecret,
		RedirectURI:    cfg.RedirectURI,
		AuthURL:        cfg.AuthURL,
		TokenURL:       cfg.TokenURL,
		AuthStyle:      oauth2.AuthStyleInParams,
		DefaultScopes:  cfg.Scopes,
		ScopeSeparator: ",",
		UsePKCE:        usePKCE,
		ClientIDParam:  "client_key",
	}, cfg.Runtime)
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, flow: flow, runtime: cfg.Runtime}, nil
}

func (a *Adapter) Platform() core.Platform {
	return core.PlatformTikTok
}

func (a *Adapter) DefaultConnectionType() string {
	return core.ConnectionTypeProfile
}

func (a *Adapter) AuthorizationURL(ctx context.Context, req core.AuthorizationRequest) (core.AuthorizationURL, error) {
	return a.flow.AuthorizationURL(ctx, req)
}

func (a *Adapter) HandleCallback(ctx context.Context, req core.CallbackRequest) (core.TokenResult, error) {
	token, err := a.flow.Exchange(ctx, req)
	if err != nil {
		return core.TokenResult{}, err
	}
	result := a.flow.TokenResult(token)
	openID, _ := token.Extra("open_id").(string)
	result.PlatformUserID = strings.TrimSpace(openID)
	result.ConnectionType = core.ConnectionTypeProfile

	info := transport.WithBearer(transport.NewRequest(http.MethodGet, a.cfg.APIBaseURL+"/user/info/"), token.AccessToken)
	info = transport.WithQuery(info, "fields", "open_id,union_id,display_name,avatar_url")
	raw, err := a.call(ctx, info)
	if err != nil {
		return core.TokenResult{}, err
	}
	if result.PlatformUserID == "" {
		result.PlatformUserID = providers.String(raw, "data", "user", "open_id")
	}
	if result.PlatformUserID == "" {
		return core.TokenResult{}, core.ProviderError(core.PlatformTikTok, 0, "token response did not include an open_id", nil)
	}
	result.PlatformUsername = providers.String(raw, "data", "user", "display_name")
	result.Metadata[MetadataOpenID] = result.PlatformUserID
	return result, nil
}

// RefreshAccessToken posts the refresh grant by hand because the token
// endpoint expects client_key instead of client_id.
func (a *Adapter) RefreshAccessToken(ctx context.Context, refreshToken string) (core.TokenResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.TokenResult{}, core.CredentialsMissingError(core.PlatformTikTok, "refresh_token")
	}
	req := transport.FormRequest(http.MethodPost, a.cfg.TokenURL, url.Values{
		"client_key":    {a.cfg.ClientKey},
		"client_secret": {a.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	var payload struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		ExpiresIn        int64  `json:"expires_in"`
		RefreshExpiresIn int64  `json:"refresh_expires_in"`
		OpenID           string `json:"open_id"`
		Scope            string `json:"scope"`
		TokenType        string `json:"token_type"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if _, err := a.runtime.Client(core.PlatformTikTok).DoJSON(ctx, req, &payload); err != nil {
		return core.TokenResult{}, err
	}
	if payload.Error != "" || strings.TrimSpace(payload.AccessToken) == "" {
		message := providers.FirstNonEmpty(payload.ErrorDescription, payload.Error, "token refresh failed")
		return core.TokenResult{}, core.ProviderError(core.PlatformTikTok, 0, message, nil)
	}
	now := a.runtime.CurrentTime()
	return core.TokenResult{
		AccessToken:    payload.AccessToken,
		RefreshToken:   payload.RefreshToken,
		TokenType:      strings.ToLower(payload.TokenType),
		ExpiresAt:      core.ExpiresIn(now, payload.ExpiresIn),
		Scopes:         strings.Split(payload.Scope, ","),
		PlatformUserID: payload.OpenID,
		Metadata:       map[string]any{},
		Raw:            map[string]any{"refresh_expires_in": payload.RefreshExpiresIn},
	}, nil
}

func (a *Adapter) Disconnect(ctx context.Context, accessToken string) bool {
	return a.flow.Revoke(ctx, a.cfg.RevokeURL, map[string]string{
		"client_key":    a.cfg.ClientKey,
		"client_secret": a.cfg.ClientSecret,
		"token":         accessToken,
	})
}

func (a *Adapter) ForConnection(_ context.Context, creds core.ConnectionCredentials) (core.Publisher, error) {
	if err := core.CheckCredentials(core.PlatformTikTok, creds); err != nil {
		return nil, err
	}
	return &Publisher{adapter: a, token: creds.AccessToken}, nil
}

// call sends req and fails on the error envelope TikTok returns even with
// a 200 status.
func (a *Adapter) call(ctx context.Context, req core.TransportRequest) (map[string]any, error) {
	res, err := a.runtime.Client(core.PlatformTikTok).Do(ctx, req)
	if err != nil {
		return nil, err
	}
	raw := providers.DecodeRaw(res)
	code := providers.String(raw, "error", "code")
	if code != "" && code != "ok" {
		message := providers.FirstNonEmpty(providers.String(raw, "error", "message"), code)
		return nil, core.ProviderError(core.PlatformTikTok, res.StatusCode, message, nil)
	}
	return raw, nil
}

type Publisher struct {
	adapter *Adapter
	token   string
}

func (p *Publisher) Platform() core.Platform {
	return core.PlatformTikTok
}

func (p *Publisher) ShareText(context.Context, string) (core.PostResult, error) {
	return core.PostResult{}, core.UnsupportedOperationError(core.PlatformTikTok, "share_text")
}

func (p *Publisher) ShareURL(context.Context, string, string) (core.PostResult, error) {
	return core.PostResult{}, core.UnsupportedOperationError(core.PlatformTikTok, "share_url")
}

// ShareImage posts a photo that TikTok pulls from the URL.
func (p *Publisher) ShareImage(ctx context.Context, caption string, imageURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.TikTokMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	imageURL, err = core.ValidateURL("image_url", imageURL)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.publish(ctx, "/post/publish/content/init/", map[string]any{
		"post_info": map[string]any{
			"title":         core.TruncateRunes(caption, photoTitleLimit),
			"description":   caption,
			"privacy_level": p.adapter.cfg.PrivacyLevel,
		},
		"source_info": map[string]any{
			"source":            "PULL_FROM_URL",
			"photo_cover_index": 0,
			"photo_images":      []string{imageURL},
		},
		"post_mode":  "DIRECT_POST",
		"media_type": "PHOTO",
	})
}

// ShareVideo posts a video that TikTok pulls from the URL.
func (p *Publisher) ShareVideo(ctx context.Context, caption string, videoURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.TikTokMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	videoURL, err = core.ValidateURL("video_url", videoURL)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.publish(ctx, "/post/publish/video/init/", map[string]any{
		"post_info": map[string]any{
			"title":         caption,
			"privacy_level": p.adapter.cfg.PrivacyLevel,
		},
		"source_info": map[string]any{
			"source":    "PULL_FROM_URL",
			"video_url": videoURL,
		},
	})
}

func (p *Publisher) publish(ctx context.Context, path string, payload map[string]any) (core.PostResult, error) {
	req, err := transport.JSONRequest(http.MethodPost, p.adapter.cfg.APIBaseURL+path, payload)
	if err != nil {
		return core.PostResult{}, err
	}
	raw, err := p.adapter.call(ctx, transport.WithBearer(req, p.token))
	if err != nil {
		return core.PostResult{}, err
	}
	id, err := providers.RequireID(core.PlatformTikTok, providers.String(raw, "data", "publish_id"))
	if err != nil {
		return core.PostResult{}, err
	}
	return providers.PostResult(core.PlatformTikTok, id, raw), nil
}

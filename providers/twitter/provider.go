package twitter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/transport"
	"golang.org/x/oauth2"
)

const (
	AuthURL       = "https://twitter.com/i/oauth2/authorize"
	TokenURL      = "https://api.twitter.com/2/oauth2/token"
	RevokeURL     = "https://api.twitter.com/2/oauth2/revoke"
	APIBaseURL    = "https://api.twitter.com/2"
	UploadBaseURL = "https://upload.twitter.com/1.1"
)

const (
	ScopeTweetRead     = "tweet.read"
	ScopeTweetWrite    = "tweet.write"
	ScopeUsersRead     = "users.read"
	ScopeOfflineAccess = "offline.access"
	ScopeMediaWrite    = "media.write"
)

// ChunkSize is the APPEND segment size for chunked video uploads.
const ChunkSize = 4 << 20

type Config struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	Scopes        []string
	UsePKCE       *bool
	AuthURL       string
	TokenURL      string
	RevokeURL     string
	APIBaseURL    string
	UploadBaseURL string
	Runtime       providers.Runtime
}

func DefaultConfig() Config {
	return Config{
		AuthURL:       AuthURL,
		TokenURL:      TokenURL,
		RevokeURL:     RevokeURL,
		APIBaseURL:    APIBaseURL,
		UploadBaseURL: UploadBaseURL,
		Scopes: []string{
			ScopeTweetRead,
			ScopeTweetWrite,
			ScopeUsersRead,
			ScopeOfflineAccess,
			ScopeMediaWrite,
		},
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
	cfg.UploadBaseURL = strings.TrimRight(providers.FirstNonEmpty(cfg.UploadBaseURL, defaults.UploadBaseURL), "/")
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	usePKCE := true
	if cfg.UsePKCE != nil {
		usePKCE = *cfg.UsePKCE
	}
	flow, err := providers.NewOAuth2Flow(providers.OAuth2Config{
		Platform:      core.PlatformTwitter,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		RedirectURI:   cfg.RedirectURI,
		AuthURL:       cfg.AuthURL,
		TokenURL:      cfg.TokenURL,
		AuthStyle:     oauth2.AuthStyleInHeader,
		DefaultScopes: cfg.Scopes,
		UsePKCE:       usePKCE,
	}, cfg.Runtime)
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, flow: flow, runtime: cfg.Runtime}, nil
}

func (a *Adapter) Platform() core.Platform {
	return core.PlatformTwitter
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

	me := transport.WithBearer(transport.NewRequest(http.MethodGet, a.cfg.APIBaseURL+"/users/me"), token.AccessToken)
	me = transport.WithQuery(me, "user.fields", "id,name,username")
	var payload struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if _, err := a.runtime.Client(core.PlatformTwitter).DoJSON(ctx, me, &payload); err != nil {
		return core.TokenResult{}, err
	}
	result.PlatformUserID = payload.Data.ID
	result.PlatformUsername = payload.Data.Username
	result.ConnectionType = core.ConnectionTypeProfile
	result.Metadata["name"] = payload.Data.Name
	return result, nil
}

func (a *Adapter) RefreshAccessToken(ctx context.Context, refreshToken string) (core.TokenResult, error) {
	token, err := a.flow.Refresh(ctx, refreshToken)
	if err != nil {
		return core.TokenResult{}, err
	}
	return a.flow.TokenResult(token), nil
}

func (a *Adapter) Disconnect(ctx context.Context, accessToken string) bool {
	return a.flow.Revoke(ctx, a.cfg.RevokeURL, map[string]string{
		"token":           accessToken,
		"token_type_hint": "access_token",
		"client_id":       a.cfg.ClientID,
	})
}

func (a *Adapter) ForConnection(_ context.Context, creds core.ConnectionCredentials) (core.Publisher, error) {
	if err := core.CheckCredentials(core.PlatformTwitter, creds); err != nil {
		return nil, err
	}
	return &Publisher{
		adapter: a,
		client:  a.runtime.Client(core.PlatformTwitter),
		token:   creds.AccessToken,
	}, nil
}

type Publisher struct {
	adapter *Adapter
	client  *transport.Client
	token   string
}

func (p *Publisher) Platform() core.Platform {
	return core.PlatformTwitter
}

// ShareText posts a text only tweet without touching the media endpoints.
func (p *Publisher) ShareText(ctx context.Context, caption string) (core.PostResult, error) {
	text, err := tweetText(caption, "")
	if err != nil {
		return core.PostResult{}, err
	}
	return p.tweet(ctx, text, "")
}

func (p *Publisher) ShareURL(ctx context.Context, caption string, link string) (core.PostResult, error) {
	link, err := core.ValidateURL("url", link)
	if err != nil {
		return core.PostResult{}, err
	}
	text, err := tweetText(caption, link)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.tweet(ctx, text, "")
}

// ShareImage uploads the image in one call and attaches the media id.
func (p *Publisher) ShareImage(ctx context.Context, caption string, imageURL string) (core.PostResult, error) {
	text, err := tweetText(caption, "")
	if err != nil {
		return core.PostResult{}, err
	}
	imageURL, err = core.ValidateURL("image_url", imageURL)
	if err != nil {
		return core.PostResult{}, err
	}
	media, err := p.client.Download(ctx, imageURL)
	if err != nil {
		return core.PostResult{}, err
	}
	req, err := transport.MultipartRequest(http.MethodPost, p.uploadURL(), map[string]string{
		"media_category": "tweet_image",
	}, transport.MultipartFile{
		Field:       "media",
		FileName:    media.FileName,
		ContentType: media.ContentType,
		Data:        media.Data,
	})
	if err != nil {
		return core.PostResult{}, err
	}
	raw, err := p.upload(ctx, req)
	if err != nil {
		return core.PostResult{}, err
	}
	mediaID, err := providers.RequireID(core.PlatformTwitter, providers.String(raw, "media_id_string"))
	if err != nil {
		return core.PostResult{}, err
	}
	return p.tweet(ctx, text, mediaID)
}

// ShareVideo runs the INIT, APPEND, FINALIZE sequence and waits for
// processing before tweeting.
func (p *Publisher) ShareVideo(ctx context.Context, caption string, videoURL string) (core.PostResult, error) {
	text, err := tweetText(caption, "")
	if err != nil {
		return core.PostResult{}, err
	}
	videoURL, err = core.ValidateURL("video_url", videoURL)
	if err != nil {
		return core.PostResult{}, err
	}
	media, err := p.client.Download(ctx, videoURL)
	if err != nil {
		return core.PostResult{}, err
	}
	if len(media.Data) == 0 {
		return core.PostResult{}, core.ValidationError("video_url", "video is empty")
	}
	contentType := media.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "video/mp4"
	}

	initRaw, err := p.upload(ctx, transport.FormRequest(http.MethodPost, p.uploadURL(), url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.Itoa(len(media.Data))},
		"media_type":     {contentType},
		"media_category": {"tweet_video"},
	}))
	if err != nil {
		return core.PostResult{}, err
	}
	mediaID, err := providers.RequireID(core.PlatformTwitter, providers.String(initRaw, "media_id_string"))
	if err != nil {
		return core.PostResult{}, err
	}

	for segment, offset := 0, 0; offset < len(media.Data); segment, offset = segment+1, offset+ChunkSize {
		end := offset + ChunkSize
		if end > len(media.Data) {
			end = len(media.Data)
		}
		req, err := transport.MultipartRequest(http.MethodPost, p.uploadURL(), map[string]string{
			"command":       "APPEND",
			"media_id":      mediaID,
			"segment_index": strconv.Itoa(segment),
		}, transport.MultipartFile{
			Field:       "media",
			FileName:    media.FileName,
			ContentType: "application/octet-stream",
			Data:        media.Data[offset:end],
		})
		if err != nil {
			return core.PostResult{}, err
		}
		if _, err := p.upload(ctx, req); err != nil {
			return core.PostResult{}, err
		}
	}

	finalRaw, err := p.upload(ctx, transport.FormRequest(http.MethodPost, p.uploadURL(), url.Values{
		"command":  {"FINALIZE"},
		"media_id": {mediaID},
	}))
	if err != nil {
		return core.PostResult{}, err
	}
	if err := p.awaitProcessing(ctx, mediaID, finalRaw); err != nil {
		return core.PostResult{}, err
	}
	return p.tweet(ctx, text, mediaID)
}

func (p *Publisher) awaitProcessing(ctx context.Context, mediaID string, raw map[string]any) error {
	state := providers.String(raw, "processing_info", "state")
	if state == "" || state == "succeeded" {
		return nil
	}
	if state == "failed" {
		return processingError(raw)
	}
	return p.adapter.runtime.Poll(ctx, func(ctx context.Context) (bool, error) {
		req := transport.WithBearer(transport.NewRequest(http.MethodGet, p.uploadURL()), p.token)
		req = transport.WithQuery(req, "command", "STATUS")
		req = transport.WithQuery(req, "media_id", mediaID)
		res, err := p.client.Do(ctx, req)
		if err != nil {
			return false, err
		}
		status := providers.DecodeRaw(res)
		switch providers.String(status, "processing_info", "state") {
		case "", "succeeded":
			return true, nil
		case "failed":
			return false, processingError(status)
		default:
			return false, nil
		}
	})
}

func (p *Publisher) tweet(ctx context.Context, text string, mediaID string) (core.PostResult, error) {
	payload := map[string]any{"text": text}
	if mediaID != "" {
		payload["media"] = map[string]any{"media_ids": []string{mediaID}}
	}
	req, err := transport.JSONRequest(http.MethodPost, p.adapter.cfg.APIBaseURL+"/tweets", payload)
	if err != nil {
		return core.PostResult{}, err
	}
	res, err := p.client.Do(ctx, transport.WithBearer(req, p.token))
	if err != nil {
		return core.PostResult{}, err
	}
	raw := providers.DecodeRaw(res)
	id, err := providers.RequireID(core.PlatformTwitter, providers.String(raw, "data", "id"))
	if err != nil {
		return core.PostResult{}, err
	}
	if mediaID != "" {
		raw["media_id"] = mediaID
	}
	return providers.PostResult(core.PlatformTwitter, id, raw), nil
}

func (p *Publisher) upload(ctx context.Context, req core.TransportRequest) (map[string]any, error) {
	res, err := p.client.Do(ctx, transport.WithBearer(req, p.token))
	if err != nil {
		return nil, err
	}
	return providers.DecodeRaw(res), nil
}

func (p *Publisher) uploadURL() string {
	return p.adapter.cfg.UploadBaseURL + "/media/upload.json"
}

// tweetText trims the caption, appends the link and enforces the weighted
// character limit.
func tweetText(caption string, link string) (string, error) {
	caption, err := core.ValidateCaption(caption, 0)
	if err != nil {
		return "", err
	}
	text := caption
	if link != "" {
		text = caption + " " + link
	}
	if core.TweetLength(text) > core.TwitterMaxLength {
		return "", core.ValidationError("caption", "tweet exceeds 280 characters")
	}
	return text, nil
}

func processingError(raw map[string]any) error {
	message := providers.String(raw, "processing_info", "error", "message")
	if message == "" {
		message = "media processing failed"
	}
	return core.ProviderError(core.PlatformTwitter, 0, message, nil)
}

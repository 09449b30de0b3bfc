package pinterest

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/transport"
	"golang.org/x/oauth2"
)

const (
	AuthURL    = "https://www.pinterest.com/oauth/"
	TokenURL   = "https://api.pinterest.com/v5/oauth/token"
	APIBaseURL = "https://api.pinterest.com/v5"
)

const (
	ScopeBoardsRead       = "boards:read"
	ScopePinsRead         = "pins:read"
	ScopePinsWrite        = "pins:write"
	ScopeUserAccountsRead = "user_accounts:read"
)

const MetadataBoardID = "board_id"

const pinTitleLimit = 100

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	UsePKCE      *bool
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	Runtime      providers.Runtime
}

func DefaultConfig() Config {
	return Config{
		AuthURL:    AuthURL,
		TokenURL:   TokenURL,
		APIBaseURL: APIBaseURL,
		Scopes:     []string{ScopeBoardsRead, ScopePinsRead, ScopePinsWrite, ScopeUserAccountsRead},
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
	cfg.APIBaseURL = strings.TrimRight(providers.FirstNonEmpty(cfg.APIBaseURL, defaults.APIBaseURL), "/")
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	usePKCE := false
	if cfg.UsePKCE != nil {
		usePKCE = *cfg.UsePKCE
	}
	flow, err := providers.NewOAuth2Flow(providers.OAuth2Config{
		Platform:       core.PlatformPinterest,
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		RedirectURI:    cfg.RedirectURI,
		AuthURL:        cfg.AuthURL,
		TokenURL:       cfg.TokenURL,
		AuthStyle:      oauth2.AuthStyleInHeader,
		DefaultScopes:  cfg.Scopes,
		ScopeSeparator: ",",
		UsePKCE:        usePKCE,
	}, cfg.Runtime)
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, flow: flow, runtime: cfg.Runtime}, nil
}

func (a *Adapter) Platform() core.Platform {
	return core.PlatformPinterest
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

	account := transport.WithBearer(transport.NewRequest(http.MethodGet, a.cfg.APIBaseURL+"/user_account"), token.AccessToken)
	var profile struct {
		ID          string `json:"id"`
		Username    string `json:"username"`
		AccountType string `json:"account_type"`
	}
	if _, err := a.runtime.Client(core.PlatformPinterest).DoJSON(ctx, account, &profile); err != nil {
		return core.TokenResult{}, err
	}
	result.PlatformUserID = providers.FirstNonEmpty(profile.ID, profile.Username)
	result.PlatformUsername = profile.Username
	result.ConnectionType = core.ConnectionTypeProfile
	if profile.AccountType != "" {
		result.Metadata["account_type"] = profile.AccountType
	}
	return result, nil
}

func (a *Adapter) RefreshAccessToken(ctx context.Context, refreshToken string) (core.TokenResult, error) {
	token, err := a.flow.Refresh(ctx, refreshToken)
	if err != nil {
		return core.TokenResult{}, err
	}
	return a.flow.TokenResult(token), nil
}

// Disconnect reports false: Pinterest exposes no token revocation endpoint,
// so access ends when the user removes the app.
func (a *Adapter) Disconnect(context.Context, string) bool {
	a.runtime.Log().Info("token revoke not supported", "platform", string(core.PlatformPinterest))
	return false
}

func (a *Adapter) ForConnection(_ context.Context, creds core.ConnectionCredentials) (core.Publisher, error) {
	if err := core.CheckCredentials(core.PlatformPinterest, creds); err != nil {
		return nil, err
	}
	return &Publisher{
		adapter: a,
		client:  a.runtime.Client(core.PlatformPinterest),
		token:   creds.AccessToken,
		boardID: creds.MetadataString(MetadataBoardID),
	}, nil
}

type Publisher struct {
	adapter *Adapter
	client  *transport.Client
	token   string
	boardID string
}

func (p *Publisher) Platform() core.Platform {
	return core.PlatformPinterest
}

func (p *Publisher) ShareText(context.Context, string) (core.PostResult, error) {
	return core.PostResult{}, core.UnsupportedOperationError(core.PlatformPinterest, "share_text")
}

func (p *Publisher) ShareURL(context.Context, string, string) (core.PostResult, error) {
	return core.PostResult{}, core.UnsupportedOperationError(core.PlatformPinterest, "share_url")
}

func (p *Publisher) ShareImage(ctx context.Context, caption string, imageURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.PinterestMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	imageURL, err = core.ValidateURL("image_url", imageURL)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.pin(ctx, caption, map[string]any{
		"source_type": "image_url",
		"url":         imageURL,
	})
}

// ShareVideo registers a media upload, sends the bytes, waits for
// processing and pins the video.
func (p *Publisher) ShareVideo(ctx context.Context, caption string, videoURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.PinterestMaxLength)
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

	register, err := transport.JSONRequest(http.MethodPost, p.adapter.cfg.APIBaseURL+"/media", map[string]any{"media_type": "video"})
	if err != nil {
		return core.PostResult{}, err
	}
	var upload struct {
		MediaID          string            `json:"media_id"`
		UploadURL        string            `json:"upload_url"`
		UploadParameters map[string]string `json:"upload_parameters"`
	}
	if _, err := p.client.DoJSON(ctx, transport.WithBearer(register, p.token), &upload); err != nil {
		return core.PostResult{}, err
	}
	if strings.TrimSpace(upload.MediaID) == "" || strings.TrimSpace(upload.UploadURL) == "" {
		return core.PostResult{}, core.ProviderError(core.PlatformPinterest, 0, "media register returned no upload url", nil)
	}

	// The upload URL is pre-signed storage; it takes the returned fields
	// and no bearer token.
	form, err := transport.MultipartRequest(http.MethodPost, upload.UploadURL, upload.UploadParameters, transport.MultipartFile{
		Field:       "file",
		FileName:    media.FileName,
		ContentType: media.ContentType,
		Data:        media.Data,
	})
	if err != nil {
		return core.PostResult{}, err
	}
	if _, err := p.client.Do(ctx, form); err != nil {
		return core.PostResult{}, err
	}

	err = p.adapter.runtime.Poll(ctx, func(ctx context.Context) (bool, error) {
		status := transport.WithBearer(transport.NewRequest(http.MethodGet, p.adapter.cfg.APIBaseURL+"/media/"+upload.MediaID), p.token)
		res, err := p.client.Do(ctx, status)
		if err != nil {
			return false, err
		}
		switch providers.String(providers.DecodeRaw(res), "status") {
		case "succeeded":
			return true, nil
		case "failed":
			return false, core.ProviderError(core.PlatformPinterest, 0, "video processing failed", nil)
		default:
			return false, nil
		}
	})
	if err != nil {
		if !core.IsProviderError(err) {
			err = core.ProviderError(core.PlatformPinterest, 0, "video processing did not finish", err)
		}
		return core.PostResult{}, err
	}

	return p.pin(ctx, caption, map[string]any{
		"source_type":                "video_id",
		"media_id":                   upload.MediaID,
		"cover_image_key_frame_time": 0,
	})
}

// Board resolves the target board: connection metadata first, then the
// first board of the account.
func (p *Publisher) Board(ctx context.Context) (string, error) {
	if p.boardID != "" {
		return p.boardID, nil
	}
	req := transport.WithBearer(transport.NewRequest(http.MethodGet, p.adapter.cfg.APIBaseURL+"/boards"), p.token)
	req = transport.WithQuery(req, "page_size", "1")
	var payload struct {
		Items []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	if _, err := p.client.DoJSON(ctx, req, &payload); err != nil {
		return "", err
	}
	if len(payload.Items) == 0 || strings.TrimSpace(payload.Items[0].ID) == "" {
		return "", core.ProviderError(core.PlatformPinterest, 0, "No Pinterest board found", nil)
	}
	p.boardID = payload.Items[0].ID
	return p.boardID, nil
}

func (p *Publisher) pin(ctx context.Context, caption string, source map[string]any) (core.PostResult, error) {
	boardID, err := p.Board(ctx)
	if err != nil {
		return core.PostResult{}, err
	}
	req, err := transport.JSONRequest(http.MethodPost, p.adapter.cfg.APIBaseURL+"/pins", map[string]any{
		"board_id":     boardID,
		"title":        core.TruncateRunes(caption, pinTitleLimit),
		"description":  caption,
		"media_source": source,
	})
	if err != nil {
		return core.PostResult{}, err
	}
	res, err := p.client.Do(ctx, transport.WithBearer(req, p.token))
	if err != nil {
		return core.PostResult{}, err
	}
	raw := providers.DecodeRaw(res)
	id, err := providers.RequireID(core.PlatformPinterest, providers.String(raw, "id"))
	if err != nil {
		return core.PostResult{}, err
	}
	return providers.PostResult(core.PlatformPinterest, id, raw), nil
}

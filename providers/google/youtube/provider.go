package youtube

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	google "github.com/goliatone/go-social/providers/google/common"
	"github.com/goliatone/go-social/transport"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const APIBaseURL = "https://youtube.googleapis.com/"

const (
	ScopeUpload   = "https://www.googleapis.com/auth/youtube.upload"
	ScopeReadOnly = "https://www.googleapis.com/auth/youtube.readonly"
	ScopeManage   = "https://www.googleapis.com/auth/youtube"
)

const (
	MetadataChannelID = "channel_id"
	MetadataCustomURL = "custom_url"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	UsePKCE      *bool
	AuthURL      string
	TokenURL     string
	RevokeURL    string
	APIBaseURL   string
	// PrivacyStatus is applied to uploaded videos.
	PrivacyStatus string
	CategoryID    string
	Runtime       providers.Runtime
}

func DefaultConfig() Config {
	return Config{
		AuthURL:       google.AuthURL,
		TokenURL:      google.TokenURL,
		RevokeURL:     google.RevokeURL,
		APIBaseURL:    APIBaseURL,
		Scopes:        []string{ScopeUpload, ScopeReadOnly, ScopeManage},
		PrivacyStatus: "public",
		CategoryID:    "22",
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
	cfg.APIBaseURL = strings.TrimRight(providers.FirstNonEmpty(cfg.APIBaseURL, defaults.APIBaseURL), "/") + "/"
	cfg.PrivacyStatus = providers.FirstNonEmpty(cfg.PrivacyStatus, defaults.PrivacyStatus)
	cfg.CategoryID = providers.FirstNonEmpty(cfg.CategoryID, defaults.CategoryID)
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	usePKCE := false
	if cfg.UsePKCE != nil {
		usePKCE = *cfg.UsePKCE
	}
	flow, err := providers.NewOAuth2Flow(providers.OAuth2Config{
		Platform:      core.PlatformYouTube,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		RedirectURI:   cfg.RedirectURI,
		AuthURL:       cfg.AuthURL,
		TokenURL:      cfg.TokenURL,
		AuthStyle:     oauth2.AuthStyleInParams,
		DefaultScopes: google.WithIdentityScopes(cfg.Scopes, false),
		UsePKCE:       usePKCE,
		AuthParams:    google.OfflineAuthParams(),
	}, cfg.Runtime)
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, flow: flow, runtime: cfg.Runtime}, nil
}

func (a *Adapter) Platform() core.Platform {
	return core.PlatformYouTube
}

func (a *Adapter) DefaultConnectionType() string {
	return core.ConnectionTypeChannel
}

func (a *Adapter) AuthorizationURL(ctx context.Context, req core.AuthorizationRequest) (core.AuthorizationURL, error) {
	return a.flow.AuthorizationURL(ctx, req)
}

// HandleCallback exchanges the code and binds the connection to the
// authenticated user's channel.
func (a *Adapter) HandleCallback(ctx context.Context, req core.CallbackRequest) (core.TokenResult, error) {
	token, err := a.flow.Exchange(ctx, req)
	if err != nil {
		return core.TokenResult{}, err
	}
	result := a.flow.TokenResult(token)

	svc, err := a.service(ctx, token.AccessToken)
	if err != nil {
		return core.TokenResult{}, err
	}
	channels, err := svc.Channels.List([]string{"id", "snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return core.TokenResult{}, mapError(err)
	}
	if len(channels.Items) == 0 || channels.Items[0] == nil {
		return core.TokenResult{}, core.ProviderError(core.PlatformYouTube, 0, "No YouTube channel found", nil)
	}
	channel := channels.Items[0]
	result.PlatformUserID = channel.Id
	result.ConnectionType = core.ConnectionTypeChannel
	result.Metadata[MetadataChannelID] = channel.Id
	if channel.Snippet != nil {
		result.PlatformUsername = channel.Snippet.Title
		if channel.Snippet.CustomUrl != "" {
			result.Metadata[MetadataCustomURL] = channel.Snippet.CustomUrl
		}
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

func (a *Adapter) Disconnect(ctx context.Context, accessToken string) bool {
	return a.flow.Revoke(ctx, a.cfg.RevokeURL, map[string]string{"token": accessToken})
}

func (a *Adapter) ForConnection(ctx context.Context, creds core.ConnectionCredentials) (core.Publisher, error) {
	if err := core.CheckCredentials(core.PlatformYouTube, creds); err != nil {
		return nil, err
	}
	channelID := providers.FirstNonEmpty(creds.MetadataString(MetadataChannelID), creds.PlatformUserID)
	if channelID == "" {
		return nil, core.CredentialsMissingError(core.PlatformYouTube, MetadataChannelID)
	}
	svc, err := a.service(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		adapter:   a,
		service:   svc,
		client:    a.runtime.Client(core.PlatformYouTube),
		token:     creds.AccessToken,
		channelID: channelID,
	}, nil
}

// service builds a Data API client that authenticates with a fixed token.
func (a *Adapter) service(ctx context.Context, accessToken string) (*yt.Service, error) {
	base := context.WithValue(context.Background(), oauth2.HTTPClient, a.runtime.HTTP())
	httpClient := oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	svc, err := yt.NewService(ctx, option.WithHTTPClient(httpClient), option.WithEndpoint(a.cfg.APIBaseURL))
	if err != nil {
		return nil, core.ConfigurationError(core.PlatformYouTube, "youtube client: "+err.Error())
	}
	return svc, nil
}

type Publisher struct {
	adapter   *Adapter
	service   *yt.Service
	client    *transport.Client
	token     string
	channelID string
}

func (p *Publisher) Platform() core.Platform {
	return core.PlatformYouTube
}

// ShareText publishes a channel bulletin.
func (p *Publisher) ShareText(ctx context.Context, caption string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.YouTubeDescriptionLimit)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.bulletin(ctx, caption)
}

func (p *Publisher) ShareURL(ctx context.Context, caption string, link string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.YouTubeDescriptionLimit)
	if err != nil {
		return core.PostResult{}, err
	}
	link, err = core.ValidateURL("url", link)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.bulletin(ctx, caption+"\n"+link)
}

// ShareImage publishes a bulletin referencing the image; the Data API takes
// no image attachments on community posts.
func (p *Publisher) ShareImage(ctx context.Context, caption string, imageURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.YouTubeDescriptionLimit)
	if err != nil {
		return core.PostResult{}, err
	}
	imageURL, err = core.ValidateURL("image_url", imageURL)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.bulletin(ctx, caption+"\n"+imageURL)
}

// ShareVideo uploads the video through Videos.Insert. The first caption line
// is the title.
func (p *Publisher) ShareVideo(ctx context.Context, caption string, videoURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.YouTubeDescriptionLimit)
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
	contentType := media.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "video/mp4"
	}

	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       VideoTitle(caption),
			Description: caption,
			CategoryId:  p.adapter.cfg.CategoryID,
			ChannelId:   p.channelID,
		},
		Status: &yt.VideoStatus{PrivacyStatus: p.adapter.cfg.PrivacyStatus},
	}
	uploaded, err := p.service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(bytes.NewReader(media.Data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return core.PostResult{}, mapError(err)
	}
	id, err := providers.RequireID(core.PlatformYouTube, uploaded.Id)
	if err != nil {
		return core.PostResult{}, err
	}
	raw := map[string]any{"id": uploaded.Id, "channel_id": p.channelID}
	if uploaded.Status != nil {
		raw["upload_status"] = uploaded.Status.UploadStatus
		raw["privacy_status"] = uploaded.Status.PrivacyStatus
	}
	return core.PostResult{
		Platform: core.PlatformYouTube,
		ID:       id,
		URL:      "https://www.youtube.com/watch?v=" + id,
		Raw:      raw,
	}, nil
}

func (p *Publisher) bulletin(ctx context.Context, text string) (core.PostResult, error) {
	req, err := transport.JSONRequest(http.MethodPost, p.adapter.cfg.APIBaseURL+"youtube/v3/activities", map[string]any{
		"snippet": map[string]any{
			"description": text,
		},
		"contentDetails": map[string]any{
			"bulletin": map[string]any{
				"resourceId": map[string]any{"kind": "youtube#channel", "channelId": p.channelID},
			},
		},
	})
	if err != nil {
		return core.PostResult{}, err
	}
	req = transport.WithQuery(req, "part", "snippet,contentDetails")
	res, err := p.client.Do(ctx, transport.WithBearer(req, p.token))
	if err != nil {
		return core.PostResult{}, err
	}
	raw := providers.DecodeRaw(res)
	id, err := providers.RequireID(core.PlatformYouTube, providers.String(raw, "id"))
	if err != nil {
		return core.PostResult{}, err
	}
	raw["approximation"] = "bulletin"
	return providers.PostResult(core.PlatformYouTube, id, raw), nil
}

// VideoTitle takes the first caption line, capped at the title limit.
func VideoTitle(caption string) string {
	title := strings.TrimSpace(caption)
	if line, _, found := strings.Cut(title, "\n"); found {
		title = strings.TrimSpace(line)
	}
	return core.TruncateRunes(title, core.YouTubeTitleMaxLength)
}

func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := strings.TrimSpace(apiErr.Message)
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		return core.ProviderError(core.PlatformYouTube, apiErr.Code, message, err)
	}
	return core.ProviderError(core.PlatformYouTube, 0, "youtube request failed", err)
}

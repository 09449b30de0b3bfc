package linkedin

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
	AuthURL    = "https://www.linkedin.com/oauth/v2/authorization"
	TokenURL   = "https://www.linkedin.com/oauth/v2/accessToken"
	RevokeURL  = "https://www.linkedin.com/oauth/v2/revoke"
	APIBaseURL = "https://api.linkedin.com/v2"
)

const (
	ScopeOpenID          = "openid"
	ScopeProfile         = "profile"
	ScopeEmail           = "email"
	ScopeMemberSocial    = "w_member_social"
	ScopeOrganizationPub = "w_organization_social"
)

const (
	MetadataPersonURN       = "person_urn"
	MetadataOrganizationURN = "organization_urn"
	MetadataOrganizationID  = "organization_id"
)

const (
	recipeImage = "urn:li:digitalmediaRecipe:feedshare-image"
	recipeVideo = "urn:li:digitalmediaRecipe:feedshare-video"
	uploadKey   = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"
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
	Runtime      providers.Runtime
}

func DefaultConfig() Config {
	return Config{
		AuthURL:    AuthURL,
		TokenURL:   TokenURL,
		RevokeURL:  RevokeURL,
		APIBaseURL: APIBaseURL,
		Scopes:     []string{ScopeOpenID, ScopeProfile, ScopeEmail, ScopeMemberSocial},
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
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	usePKCE := false
	if cfg.UsePKCE != nil {
		usePKCE = *cfg.UsePKCE
	}
	flow, err := providers.NewOAuth2Flow(providers.OAuth2Config{
		Platform:      core.PlatformLinkedIn,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		RedirectURI:   cfg.RedirectURI,
		AuthURL:       cfg.AuthURL,
		TokenURL:      cfg.TokenURL,
		AuthStyle:     oauth2.AuthStyleInParams,
		DefaultScopes: cfg.Scopes,
		UsePKCE:       usePKCE,
	}, cfg.Runtime)
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, flow: flow, runtime: cfg.Runtime}, nil
}

func (a *Adapter) Platform() core.Platform {
	return core.PlatformLinkedIn
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

	userinfo := transport.WithBearer(transport.NewRequest(http.MethodGet, a.cfg.APIBaseURL+"/userinfo"), token.AccessToken)
	var profile struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if _, err := a.runtime.Client(core.PlatformLinkedIn).DoJSON(ctx, userinfo, &profile); err != nil {
		return core.TokenResult{}, err
	}
	if strings.TrimSpace(profile.Sub) == "" {
		return core.TokenResult{}, core.ProviderError(core.PlatformLinkedIn, 0, "userinfo returned no member id", nil)
	}
	result.PlatformUserID = profile.Sub
	result.PlatformUsername = profile.Name
	result.ConnectionType = core.ConnectionTypeProfile
	result.Metadata[MetadataPersonURN] = "urn:li:person:" + profile.Sub
	if profile.Email != "" {
		result.Metadata["email"] = profile.Email
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
	return a.flow.Revoke(ctx, a.cfg.RevokeURL, map[string]string{
		"client_id":     a.cfg.ClientID,
		"client_secret": a.cfg.ClientSecret,
		"token":         accessToken,
	})
}

func (a *Adapter) ForConnection(_ context.Context, creds core.ConnectionCredentials) (core.Publisher, error) {
	if err := core.CheckCredentials(core.PlatformLinkedIn, creds); err != nil {
		return nil, err
	}
	personURN := creds.MetadataString(MetadataPersonURN)
	if personURN == "" && strings.TrimSpace(creds.PlatformUserID) != "" && creds.ConnectionType != core.ConnectionTypeCompany {
		personURN = "urn:li:person:" + strings.TrimSpace(creds.PlatformUserID)
	}
	orgURN := creds.MetadataString(MetadataOrganizationURN)
	if orgURN == "" {
		if orgID := creds.MetadataString(MetadataOrganizationID); orgID != "" {
			orgURN = "urn:li:organization:" + orgID
		}
	}
	if personURN == "" && orgURN == "" {
		return nil, core.CredentialsMissingError(core.PlatformLinkedIn, MetadataPersonURN)
	}
	return &Publisher{
		adapter:   a,
		client:    a.runtime.ClientWithHeaders(core.PlatformLinkedIn, map[string]string{"X-Restli-Protocol-Version": "2.0.0"}),
		token:     creds.AccessToken,
		personURN: personURN,
		orgURN:    orgURN,
		company:   creds.ConnectionType == core.ConnectionTypeCompany,
	}, nil
}

type Publisher struct {
	adapter   *Adapter
	client    *transport.Client
	token     string
	personURN string
	orgURN    string
	company   bool
}

func (p *Publisher) Platform() core.Platform {
	return core.PlatformLinkedIn
}

// Author is the organization for company connections and the member
// otherwise.
func (p *Publisher) Author() string {
	if (p.company || p.personURN == "") && p.orgURN != "" {
		return p.orgURN
	}
	return p.personURN
}

func (p *Publisher) ShareText(ctx context.Context, caption string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.LinkedInMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.post(ctx, p.Author(), caption, "NONE", nil)
}

func (p *Publisher) ShareURL(ctx context.Context, caption string, link string) (core.PostResult, error) {
	return p.shareArticle(ctx, p.Author(), caption, link)
}

func (p *Publisher) ShareImage(ctx context.Context, caption string, imageURL string) (core.PostResult, error) {
	return p.shareMedia(ctx, caption, imageURL, "IMAGE", recipeImage)
}

func (p *Publisher) ShareVideo(ctx context.Context, caption string, videoURL string) (core.PostResult, error) {
	return p.shareMedia(ctx, caption, videoURL, "VIDEO", recipeVideo)
}

// ShareToCompanyPage posts as the organization regardless of the
// connection type. The link is optional.
func (p *Publisher) ShareToCompanyPage(ctx context.Context, caption string, link string) (core.PostResult, error) {
	if p.orgURN == "" {
		return core.PostResult{}, core.CredentialsMissingError(core.PlatformLinkedIn, MetadataOrganizationURN)
	}
	if strings.TrimSpace(link) != "" {
		return p.shareArticle(ctx, p.orgURN, caption, link)
	}
	caption, err := core.ValidateCaption(caption, core.LinkedInMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.post(ctx, p.orgURN, caption, "NONE", nil)
}

func (p *Publisher) shareArticle(ctx context.Context, author string, caption string, link string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.LinkedInMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	link, err = core.ValidateURL("url", link)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.post(ctx, author, caption, "ARTICLE", map[string]any{
		"status":      "READY",
		"originalUrl": link,
		"title":       map[string]any{"text": ArticleTitle(link)},
	})
}

func (p *Publisher) shareMedia(ctx context.Context, caption string, mediaURL string, category string, recipe string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.LinkedInMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	field := strings.ToLower(category) + "_url"
	mediaURL, err = core.ValidateURL(field, mediaURL)
	if err != nil {
		return core.PostResult{}, err
	}
	author := p.Author()
	asset, err := p.uploadAsset(ctx, author, mediaURL, recipe)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.post(ctx, author, caption, category, map[string]any{
		"status": "READY",
		"media":  asset,
		"title":  map[string]any{"text": ArticleTitle(mediaURL)},
	})
}

// uploadAsset registers an upload, then PUTs the bytes to the returned URL.
func (p *Publisher) uploadAsset(ctx context.Context, owner string, mediaURL string, recipe string) (string, error) {
	media, err := p.client.Download(ctx, mediaURL)
	if err != nil {
		return "", err
	}
	register, err := transport.JSONRequest(http.MethodPost, p.adapter.cfg.APIBaseURL+"/assets", map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{recipe},
			"owner":   owner,
			"serviceRelationships": []map[string]any{{
				"relationshipType": "OWNER",
				"identifier":       "urn:li:userGeneratedContent",
			}},
		},
	})
	if err != nil {
		return "", err
	}
	register = transport.WithQuery(register, "action", "registerUpload")
	var payload struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism map[string]struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	if _, err := p.client.DoJSON(ctx, transport.WithBearer(register, p.token), &payload); err != nil {
		return "", err
	}
	uploadURL := payload.Value.UploadMechanism[uploadKey].UploadURL
	if strings.TrimSpace(uploadURL) == "" || strings.TrimSpace(payload.Value.Asset) == "" {
		return "", core.ProviderError(core.PlatformLinkedIn, 0, "register upload returned no upload url", nil)
	}
	contentType := media.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	put := transport.RawRequest(http.MethodPut, uploadURL, contentType, media.Data)
	if _, err := p.client.Do(ctx, transport.WithBearer(put, p.token)); err != nil {
		return "", err
	}
	return payload.Value.Asset, nil
}

func (p *Publisher) post(ctx context.Context, author string, caption string, category string, media map[string]any) (core.PostResult, error) {
	if strings.TrimSpace(author) == "" {
		return core.PostResult{}, core.CredentialsMissingError(core.PlatformLinkedIn, MetadataPersonURN)
	}
	content := map[string]any{
		"shareCommentary":    map[string]any{"text": caption},
		"shareMediaCategory": category,
	}
	if media != nil {
		content["media"] = []map[string]any{media}
	}
	req, err := transport.JSONRequest(http.MethodPost, p.adapter.cfg.APIBaseURL+"/ugcPosts", map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": content,
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	})
	if err != nil {
		return core.PostResult{}, err
	}
	res, err := p.client.Do(ctx, transport.WithBearer(req, p.token))
	if err != nil {
		return core.PostResult{}, err
	}
	raw := providers.DecodeRaw(res)
	id := providers.String(raw, "id")
	if id == "" {
		id = headerValue(res.Headers, "X-Restli-Id")
	}
	if id, err = providers.RequireID(core.PlatformLinkedIn, id); err != nil {
		return core.PostResult{}, err
	}
	raw["author"] = author
	return providers.PostResult(core.PlatformLinkedIn, id, raw), nil
}

// ArticleTitle derives a title from the link host.
func ArticleTitle(link string) string {
	parsed, err := url.Parse(link)
	if err != nil || parsed.Hostname() == "" {
		return link
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}

func headerValue(headers map[string]string, key string) string {
	for name, value := range headers {
		if strings.EqualFold(name, key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

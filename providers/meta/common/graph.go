package common

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

const GraphVersion = "v23.0"

const (
	OAuthAuthURL      = "https://www.facebook.com/" + GraphVersion + "/dialog/oauth"
	OAuthTokenURL     = "https://graph.facebook.com/" + GraphVersion + "/oauth/access_token"
	GraphBaseURL      = "https://graph.facebook.com/" + GraphVersion
	GraphVideoBaseURL = "https://graph-video.facebook.com/" + GraphVersion
)

// AuthConfig is the Meta app configuration shared by Facebook and Instagram.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	UsePKCE      *bool
	AuthURL      string
	TokenURL     string
	GraphURL     string
}

// Resolve fills Meta endpoint defaults.
func (c AuthConfig) Resolve(defaultScopes []string) AuthConfig {
	if strings.TrimSpace(c.AuthURL) == "" {
		c.AuthURL = OAuthAuthURL
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		c.TokenURL = OAuthTokenURL
	}
	if strings.TrimSpace(c.GraphURL) == "" {
		c.GraphURL = GraphBaseURL
	}
	c.GraphURL = strings.TrimRight(c.GraphURL, "/")
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), defaultScopes...)
	}
	return c
}

// NewFlow builds the authorization code flow for a Meta platform. Meta
// accepts client credentials in the form body and joins scopes with commas.
func NewFlow(platform core.Platform, cfg AuthConfig, runtime providers.Runtime) (*providers.OAuth2Flow, error) {
	usePKCE := false
	if cfg.UsePKCE != nil {
		usePKCE = *cfg.UsePKCE
	}
	return providers.NewOAuth2Flow(providers.OAuth2Config{
		Platform:       platform,
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		RedirectURI:    cfg.RedirectURI,
		AuthURL:        cfg.AuthURL,
		TokenURL:       cfg.TokenURL,
		AuthStyle:      oauth2.AuthStyleInParams,
		DefaultScopes:  cfg.Scopes,
		ScopeSeparator: ",",
		UsePKCE:        usePKCE,
	}, runtime)
}

type InstagramAccount struct {
	ID       string
	Username string
}

// Page is a Facebook Page the user manages.
type Page struct {
	ID               string
	Name             string
	AccessToken      string `json:"-"`
	InstagramAccount *InstagramAccount
}

type Profile struct {
	ID   string
	Name string
}

// Graph is a thin Graph API client bound to one platform's transport.
type Graph struct {
	platform core.Platform
	baseURL  string
	client   *transport.Client
}

func NewGraph(platform core.Platform, baseURL string, client *transport.Client) *Graph {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = GraphBaseURL
	}
	return &Graph{platform: platform, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (g *Graph) URL(path string) string {
	return g.baseURL + "/" + strings.TrimLeft(path, "/")
}

// ExchangeLongLived trades a short lived user token for a long lived one
// through the fb_exchange_token grant.
func (g *Graph) ExchangeLongLived(ctx context.Context, clientID string, clientSecret string, token string) (core.TokenResult, int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.TokenResult{}, 0, core.CredentialsMissingError(g.platform, "access_token")
	}
	req := transport.NewRequest(http.MethodGet, g.URL("oauth/access_token"))
	req = transport.WithQuery(req, "grant_type", "fb_exchange_token")
	req = transport.WithQuery(req, "client_id", clientID)
	req = transport.WithQuery(req, "client_secret", clientSecret)
	req = transport.WithQuery(req, "fb_exchange_token", token)

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if _, err := g.client.DoJSON(ctx, req, &payload); err != nil {
		return core.TokenResult{}, 0, err
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.TokenResult{}, 0, core.ProviderError(g.platform, 0, "token extension returned no access token", nil)
	}
	return core.TokenResult{
		AccessToken: payload.AccessToken,
		TokenType:   strings.ToLower(payload.TokenType),
		Metadata:    map[string]any{},
		Raw:         map[string]any{"token_type": payload.TokenType, "expires_in": payload.ExpiresIn},
	}, payload.ExpiresIn, nil
}

func (g *Graph) Me(ctx context.Context, token string) (Profile, error) {
	req := transport.WithBearer(transport.NewRequest(http.MethodGet, g.URL("me")), token)
	req = transport.WithQuery(req, "fields", "id,name")
	var payload struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if _, err := g.client.DoJSON(ctx, req, &payload); err != nil {
		return Profile{}, err
	}
	return Profile{ID: payload.ID, Name: payload.Name}, nil
}

// Pages lists the pages the user manages with their page tokens and any
// linked Instagram business account.
func (g *Graph) Pages(ctx context.Context, token string) ([]Page, error) {
	req := transport.WithBearer(transport.NewRequest(http.MethodGet, g.URL("me/accounts")), token)
	req = transport.WithQuery(req, "fields", "id,name,access_token,instagram_business_account{id,username}")
	req = transport.WithQuery(req, "limit", "100")
	var payload struct {
		Data []struct {
			ID                       string `json:"id"`
			Name                     string `json:"name"`
			AccessToken              string `json:"access_token"`
			InstagramBusinessAccount *struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"instagram_business_account"`
		} `json:"data"`
	}
	if _, err := g.client.DoJSON(ctx, req, &payload); err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(payload.Data))
	for _, item := range payload.Data {
		page := Page{ID: item.ID, Name: item.Name, AccessToken: item.AccessToken}
		if item.InstagramBusinessAccount != nil && strings.TrimSpace(item.InstagramBusinessAccount.ID) != "" {
			page.InstagramAccount = &InstagramAccount{
				ID:       item.InstagramBusinessAccount.ID,
				Username: item.InstagramBusinessAccount.Username,
			}
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// RevokePermissions deauthorizes the app for the token's user.
func (g *Graph) RevokePermissions(ctx context.Context, token string) bool {
	req := transport.WithBearer(transport.NewRequest(http.MethodDelete, g.URL("me/permissions")), token)
	var payload struct {
		Success bool `json:"success"`
	}
	if _, err := g.client.DoJSON(ctx, req, &payload); err != nil {
		return false
	}
	return payload.Success
}

// PostForm sends a form encoded Graph call and decodes the object reply.
func (g *Graph) PostForm(ctx context.Context, path string, token string, values url.Values) (map[string]any, error) {
	req := transport.WithBearer(transport.FormRequest(http.MethodPost, g.URL(path), values), token)
	res, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return providers.DecodeRaw(res), nil
}

// Get reads a Graph object with the given fields.
func (g *Graph) Get(ctx context.Context, path string, token string, fields string) (map[string]any, error) {
	req := transport.WithBearer(transport.NewRequest(http.MethodGet, g.URL(path)), token)
	if fields != "" {
		req = transport.WithQuery(req, "fields", fields)
	}
	res, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return providers.DecodeRaw(res), nil
}

// ParseOffset reads the string offsets returned by resumable uploads.
func ParseOffset(raw map[string]any, key string) (int64, error) {
	value := providers.String(raw, key)
	if value == "" {
		return 0, core.ProviderError(core.PlatformFacebook, 0, "upload response is missing "+key, nil)
	}
	offset, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, core.ProviderError(core.PlatformFacebook, 0, "upload response has an invalid "+key, err)
	}
	return offset, nil
}

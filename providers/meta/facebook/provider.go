package facebook

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	meta "github.com/goliatone/go-social/providers/meta/common"
	"github.com/goliatone/go-social/transport"
)

const (
	ScopePublicProfile       = "public_profile"
	ScopePagesShowList       = "pages_show_list"
	ScopePagesReadEngagement = "pages_read_engagement"
	ScopePagesManagePosts    = "pages_manage_posts"
)

const (
	MetadataPageID   = "page_id"
	MetadataPageName = "page_name"
	MetadataUserID   = "user_id"
	MetadataUserName = "user_name"
)

type Config struct {
	meta.AuthConfig
	// VideoURL is the resumable upload host.
	VideoURL string
	Runtime  providers.Runtime
}

func DefaultConfig() Config {
	return Config{
		AuthConfig: meta.AuthConfig{
			AuthURL:  meta.OAuthAuthURL,
			TokenURL: meta.OAuthTokenURL,
			GraphURL: meta.GraphBaseURL,
			Scopes: []string{
				ScopePublicProfile,
				ScopePagesShowList,
				ScopePagesReadEngagement,
				ScopePagesManagePosts,
			},
		},
		VideoURL: meta.GraphVideoBaseURL,
	}
}

// Adapter publishes to a Facebook Page.
type Adapter struct {
	cfg     Config
	flow    *providers.OAuth2Flow
	graph   *meta.Graph
	runtime providers.Runtime
}

func New(cfg Config) (*Adapter, error) {
	cfg.Runtime = cfg.Runtime.Shared()
	defaults := DefaultConfig()
	cfg.AuthConfig = cfg.AuthConfig.Resolve(defaults.Scopes)
	if strings.TrimSpace(cfg.VideoURL) == "" {
		cfg.VideoURL = defaults.VideoURL
	}
	cfg.VideoURL = strings.TrimRight(cfg.VideoURL, "/")

	flow, err := meta.NewFlow(core.PlatformFacebook, cfg.AuthConfig, cfg.Runtime)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:     cfg,
		flow:    flow,
		graph:   meta.NewGraph(core.PlatformFacebook, cfg.GraphURL, cfg.Runtime.Client(core.PlatformFacebook)),
		runtime: cfg.Runtime,
	}, nil
}

func (a *Adapter) Platform() core.Platform {
	return core.PlatformFacebook
}

func (a *Adapter) DefaultConnectionType() string {
	return core.ConnectionTypePage
}

func (a *Adapter) AuthorizationURL(ctx context.Context, req core.AuthorizationRequest) (core.AuthorizationURL, error) {
	return a.flow.AuthorizationURL(ctx, req)
}

// HandleCallback exchanges the code, extends the user token and binds the
// connection to the first managed page. The stored token is the page token.
func (a *Adapter) HandleCallback(ctx context.Context, req core.CallbackRequest) (core.TokenResult, error) {
	token, err := a.flow.Exchange(ctx, req)
	if err != nil {
		return core.TokenResult{}, err
	}
	initial := a.flow.TokenResult(token)
	userToken, err := a.ExtendAccessToken(ctx, token.AccessToken)
	if err != nil {
		return core.TokenResult{}, err
	}
	profile, err := a.graph.Me(ctx, userToken.AccessToken)
	if err != nil {
		return core.TokenResult{}, err
	}
	pages, err := a.graph.Pages(ctx, userToken.AccessToken)
	if err != nil {
		return core.TokenResult{}, err
	}
	if len(pages) == 0 {
		return core.TokenResult{}, core.ProviderError(core.PlatformFacebook, 0, "No Facebook Page found", nil)
	}
	page := pages[0]
	accessToken := page.AccessToken
	result := core.TokenResult{
		AccessToken:      accessToken,
		TokenType:        userToken.TokenType,
		Scopes:           initial.Scopes,
		PlatformUserID:   page.ID,
		PlatformUsername: page.Name,
		ConnectionType:   core.ConnectionTypePage,
		Metadata: map[string]any{
			MetadataPageID:   page.ID,
			MetadataPageName: page.Name,
			MetadataUserID:   profile.ID,
			MetadataUserName: profile.Name,
		},
		Raw: map[string]any{"pages": len(pages)},
	}
	if strings.TrimSpace(accessToken) == "" {
		// Without a page token the long lived user token still publishes for
		// admins, and it keeps its expiry.
		result.AccessToken = userToken.AccessToken
		result.ExpiresAt = userToken.ExpiresAt
	}
	return result, nil
}

// RefreshAccessToken aliases ExtendAccessToken; Meta issues no refresh tokens.
func (a *Adapter) RefreshAccessToken(ctx context.Context, token string) (core.TokenResult, error) {
	return a.ExtendAccessToken(ctx, token)
}

func (a *Adapter) ExtendAccessToken(ctx context.Context, shortLivedToken string) (core.TokenResult, error) {
	cfg := a.flow.Config()
	result, expiresIn, err := a.graph.ExchangeLongLived(ctx, cfg.ClientID, cfg.ClientSecret, shortLivedToken)
	if err != nil {
		return core.TokenResult{}, err
	}
	result.ExpiresAt = core.ExpiresIn(a.runtime.CurrentTime(), expiresIn)
	if result.ExpiresAt == nil {
		// Long lived tokens without expires_in last about sixty days.
		result.ExpiresAt = core.ExpiresIn(a.runtime.CurrentTime(), 60*24*60*60)
	}
	return result, nil
}

func (a *Adapter) Disconnect(ctx context.Context, accessToken string) bool {
	return a.graph.RevokePermissions(ctx, accessToken)
}

// Pages lists the pages reachable with a user token.
func (a *Adapter) Pages(ctx context.Context, userAccessToken string) ([]meta.Page, error) {
	return a.graph.Pages(ctx, userAccessToken)
}

func (a *Adapter) ForConnection(_ context.Context, creds core.ConnectionCredentials) (core.Publisher, error) {
	if err := core.CheckCredentials(core.PlatformFacebook, creds); err != nil {
		return nil, err
	}
	pageID := creds.MetadataString(MetadataPageID)
	if pageID == "" {
		pageID = strings.TrimSpace(creds.PlatformUserID)
	}
	if pageID == "" {
		return nil, core.CredentialsMissingError(core.PlatformFacebook, MetadataPageID)
	}
	return &Publisher{
		adapter: a,
		pageID:  pageID,
		token:   creds.AccessToken,
	}, nil
}

type Publisher struct {
	adapter *Adapter
	pageID  string
	token   string
}

func (p *Publisher) Platform() core.Platform {
	return core.PlatformFacebook
}

func (p *Publisher) PageID() string {
	return p.pageID
}

func (p *Publisher) ShareText(ctx context.Context, caption string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.FacebookMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.feed(ctx, url.Values{"message": {caption}})
}

func (p *Publisher) ShareURL(ctx context.Context, caption string, link string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.FacebookMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	link, err = core.ValidateURL("url", link)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.feed(ctx, url.Values{"message": {caption}, "link": {link}})
}

func (p *Publisher) ShareImage(ctx context.Context, caption string, imageURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.FacebookMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	imageURL, err = core.ValidateURL("image_url", imageURL)
	if err != nil {
		return core.PostResult{}, err
	}
	raw, err := p.adapter.graph.PostForm(ctx, p.pageID+"/photos", p.token, url.Values{
		"url":     {imageURL},
		"caption": {caption},
	})
	if err != nil {
		return core.PostResult{}, err
	}
	id := providers.String(raw, "post_id")
	if id == "" {
		id = providers.String(raw, "id")
	}
	if id, err = providers.RequireID(core.PlatformFacebook, id); err != nil {
		return core.PostResult{}, err
	}
	return providers.PostResult(core.PlatformFacebook, id, raw), nil
}

// ShareVideo runs the resumable upload: start, transfer chunks over the
// offset windows the server returns, then finish.
func (p *Publisher) ShareVideo(ctx context.Context, caption string, videoURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.FacebookMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	videoURL, err = core.ValidateURL("video_url", videoURL)
	if err != nil {
		return core.PostResult{}, err
	}
	client := p.adapter.runtime.Client(core.PlatformFacebook)
	media, err := client.Download(ctx, videoURL)
	if err != nil {
		return core.PostResult{}, err
	}
	size := int64(len(media.Data))
	if size == 0 {
		return core.PostResult{}, core.ValidationError("video_url", "video is empty")
	}

	endpoint := p.adapter.cfg.VideoURL + "/" + p.pageID + "/videos"
	start, err := p.videoPhase(ctx, client, transport.FormRequest(http.MethodPost, endpoint, url.Values{
		"upload_phase": {"start"},
		"file_size":    {strconv.FormatInt(size, 10)},
	}))
	if err != nil {
		return core.PostResult{}, err
	}
	sessionID := providers.String(start, "upload_session_id")
	videoID := providers.String(start, "video_id")
	if sessionID == "" {
		return core.PostResult{}, core.ProviderError(core.PlatformFacebook, 0, "upload start returned no session", nil)
	}

	window := start
	chunks := 0
	for {
		startOffset, err := meta.ParseOffset(window, "start_offset")
		if err != nil {
			return core.PostResult{}, err
		}
		endOffset, err := meta.ParseOffset(window, "end_offset")
		if err != nil {
			return core.PostResult{}, err
		}
		if startOffset >= endOffset || startOffset >= size {
			break
		}
		if endOffset > size {
			endOffset = size
		}
		req, err := transport.MultipartRequest(http.MethodPost, endpoint, map[string]string{
			"upload_phase":      "transfer",
			"upload_session_id": sessionID,
			"start_offset":      strconv.FormatInt(startOffset, 10),
		}, transport.MultipartFile{
			Field:       "video_file_chunk",
			FileName:    media.FileName,
			ContentType: "application/octet-stream",
			Data:        media.Data[startOffset:endOffset],
		})
		if err != nil {
			return core.PostResult{}, err
		}
		next, err := p.videoPhase(ctx, client, req)
		if err != nil {
			return core.PostResult{}, err
		}
		nextStart, err := meta.ParseOffset(next, "start_offset")
		if err != nil {
			return core.PostResult{}, err
		}
		if nextStart <= startOffset {
			return core.PostResult{}, core.ProviderError(core.PlatformFacebook, 0, "upload offset did not advance", nil)
		}
		window = next
		chunks++
	}

	finish, err := p.videoPhase(ctx, client, transport.FormRequest(http.MethodPost, endpoint, url.Values{
		"upload_phase":      {"finish"},
		"upload_session_id": {sessionID},
		"description":       {caption},
	}))
	if err != nil {
		return core.PostResult{}, err
	}
	if success, ok := finish["success"].(bool); ok && !success {
		return core.PostResult{}, core.ProviderError(core.PlatformFacebook, 0, "video upload did not finish", nil)
	}
	if videoID, err = providers.RequireID(core.PlatformFacebook, videoID); err != nil {
		return core.PostResult{}, err
	}
	finish["video_id"] = videoID
	finish["chunks"] = chunks
	return providers.PostResult(core.PlatformFacebook, videoID, finish), nil
}

func (p *Publisher) feed(ctx context.Context, values url.Values) (core.PostResult, error) {
	raw, err := p.adapter.graph.PostForm(ctx, p.pageID+"/feed", p.token, values)
	if err != nil {
		return core.PostResult{}, err
	}
	id, err := providers.RequireID(core.PlatformFacebook, providers.String(raw, "id"))
	if err != nil {
		return core.PostResult{}, err
	}
	return providers.PostResult(core.PlatformFacebook, id, raw), nil
}

func (p *Publisher) videoPhase(ctx context.Context, client *transport.Client, req core.TransportRequest) (map[string]any, error) {
	res, err := client.Do(ctx, transport.WithBearer(req, p.token))
	if err != nil {
		return nil, err
	}
	return providers.DecodeRaw(res), nil
}

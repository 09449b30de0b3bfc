package instagram

import (
	"context"
	"net/url"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	meta "github.com/goliatone/go-social/providers/meta/common"
)

const (
	ScopeBasic              = "instagram_basic"
	ScopeContentPublish     = "instagram_content_publish"
	ScopePagesShowList      = "pages_show_list"
	ScopeBusinessManagement = "business_management"
)

const (
	MetadataAccountID = "instagram_business_account_id"
	MetadataPageID    = "page_id"
	MetadataPageName  = "page_name"
)

const (
	MinCarouselItems = 2
	MaxCarouselItems = 10
)

// DefaultPlaceholderImageURL renders text on a story sized image.
const DefaultPlaceholderImageURL = "https://placehold.co/1080x1920/png"

type Config struct {
	meta.AuthConfig
	// PlaceholderImageURL receives the text as its "text" query parameter
	// when text or links are shared as a story.
	PlaceholderImageURL string
	Runtime             providers.Runtime
}

func DefaultConfig() Config {
	return Config{
		AuthConfig: meta.AuthConfig{
			AuthURL:  meta.OAuthAuthURL,
			TokenURL: meta.OAuthTokenURL,
			GraphURL: meta.GraphBaseURL,
			Scopes: []string{
				ScopeBasic,
				ScopeContentPublish,
				ScopePagesShowList,
				ScopeBusinessManagement,
			},
		},
		PlaceholderImageURL: DefaultPlaceholderImageURL,
	}
}

// Adapter publishes to an Instagram business account linked to a page.
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
	if strings.TrimSpace(cfg.PlaceholderImageURL) == "" {
		cfg.PlaceholderImageURL = defaults.PlaceholderImageURL
	}
	flow, err := meta.NewFlow(core.PlatformInstagram, cfg.AuthConfig, cfg.Runtime)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:     cfg,
		flow:    flow,
		graph:   meta.NewGraph(core.PlatformInstagram, cfg.GraphURL, cfg.Runtime.Client(core.PlatformInstagram)),
		runtime: cfg.Runtime,
	}, nil
}

func (a *Adapter) Platform() core.Platform {
	return core.PlatformInstagram
}

func (a *Adapter) DefaultConnectionType() string {
	return core.ConnectionTypeBusiness
}

func (a *Adapter) AuthorizationURL(ctx context.Context, req core.AuthorizationRequest) (core.AuthorizationURL, error) {
	return a.flow.AuthorizationURL(ctx, req)
}

// HandleCallback exchanges the code, extends the token and resolves the
// business account through the user's pages.
func (a *Adapter) HandleCallback(ctx context.Context, req core.CallbackRequest) (core.TokenResult, error) {
	token, err := a.flow.Exchange(ctx, req)
	if err != nil {
		return core.TokenResult{}, err
	}
	initial := a.flow.TokenResult(token)
	result, err := a.ExtendAccessToken(ctx, token.AccessToken)
	if err != nil {
		return core.TokenResult{}, err
	}
	pages, err := a.graph.Pages(ctx, result.AccessToken)
	if err != nil {
		return core.TokenResult{}, err
	}
	for _, page := range pages {
		if page.InstagramAccount == nil {
			continue
		}
		result.Scopes = initial.Scopes
		result.PlatformUserID = page.InstagramAccount.ID
		result.PlatformUsername = page.InstagramAccount.Username
		result.ConnectionType = core.ConnectionTypeBusiness
		result.Metadata = map[string]any{
			MetadataAccountID: page.InstagramAccount.ID,
			MetadataPageID:    page.ID,
			MetadataPageName:  page.Name,
		}
		return result, nil
	}
	return core.TokenResult{}, core.ProviderError(core.PlatformInstagram, 0, "No Instagram Business Account found", nil)
}

// RefreshAccessToken aliases ExtendAccessToken.
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
	return result, nil
}

func (a *Adapter) Disconnect(ctx context.Context, accessToken string) bool {
	return a.graph.RevokePermissions(ctx, accessToken)
}

func (a *Adapter) ForConnection(_ context.Context, creds core.ConnectionCredentials) (core.Publisher, error) {
	if err := core.CheckCredentials(core.PlatformInstagram, creds); err != nil {
		return nil, err
	}
	accountID := creds.MetadataString(MetadataAccountID)
	if accountID == "" {
		accountID = strings.TrimSpace(creds.PlatformUserID)
	}
	if accountID == "" {
		return nil, core.CredentialsMissingError(core.PlatformInstagram, MetadataAccountID)
	}
	return &Publisher{adapter: a, accountID: accountID, token: creds.AccessToken}, nil
}

// CarouselItem is one child of a carousel post.
type CarouselItem struct {
	URL   string
	Video bool
}

type Publisher struct {
	adapter   *Adapter
	accountID string
	token     string
}

func (p *Publisher) Platform() core.Platform {
	return core.PlatformInstagram
}

// ShareText has no feed equivalent and is published as a story with a
// placeholder image rendering the caption.
func (p *Publisher) ShareText(ctx context.Context, caption string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.InstagramMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.textStory(ctx, caption)
}

func (p *Publisher) ShareURL(ctx context.Context, caption string, link string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.InstagramMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	link, err = core.ValidateURL("url", link)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.textStory(ctx, caption+"\n"+link)
}

func (p *Publisher) ShareImage(ctx context.Context, caption string, imageURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.InstagramMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	imageURL, err = core.ValidateURL("image_url", imageURL)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.publish(ctx, url.Values{"image_url": {imageURL}, "caption": {caption}}, false)
}

// ShareVideo publishes a reel once the container finishes processing.
func (p *Publisher) ShareVideo(ctx context.Context, caption string, videoURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.InstagramMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	videoURL, err = core.ValidateURL("video_url", videoURL)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.publish(ctx, url.Values{
		"media_type": {"REELS"},
		"video_url":  {videoURL},
		"caption":    {caption},
	}, true)
}

// ShareCarousel creates one container per item, wraps them in a carousel
// container and publishes it.
func (p *Publisher) ShareCarousel(ctx context.Context, caption string, items []CarouselItem) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.InstagramMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	if len(items) < MinCarouselItems || len(items) > MaxCarouselItems {
		return core.PostResult{}, core.ValidationError("items", "carousel needs between 2 and 10 items")
	}
	for i, item := range items {
		if items[i].URL, err = core.ValidateURL("items", item.URL); err != nil {
			return core.PostResult{}, err
		}
	}

	children := make([]string, 0, len(items))
	hasVideo := false
	for _, item := range items {
		values := url.Values{"is_carousel_item": {"true"}}
		if item.Video {
			hasVideo = true
			values.Set("media_type", "VIDEO")
			values.Set("video_url", item.URL)
		} else {
			values.Set("image_url", item.URL)
		}
		childID, err := p.container(ctx, values, item.Video)
		if err != nil {
			return core.PostResult{}, err
		}
		children = append(children, childID)
	}
	return p.publish(ctx, url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"caption":    {caption},
	}, hasVideo)
}

// ShareStory publishes an image or video story.
func (p *Publisher) ShareStory(ctx context.Context, mediaURL string, video bool) (core.PostResult, error) {
	mediaURL, err := core.ValidateURL("media_url", mediaURL)
	if err != nil {
		return core.PostResult{}, err
	}
	values := url.Values{"media_type": {"STORIES"}}
	if video {
		values.Set("video_url", mediaURL)
	} else {
		values.Set("image_url", mediaURL)
	}
	return p.publish(ctx, values, video)
}

// PlaceholderImageURL is the story image used for text.
func (p *Publisher) PlaceholderImageURL(text string) string {
	base := p.adapter.cfg.PlaceholderImageURL
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return base + separator + url.Values{"text": {core.TruncateRunes(text, 200)}}.Encode()
}

func (p *Publisher) textStory(ctx context.Context, text string) (core.PostResult, error) {
	result, err := p.ShareStory(ctx, p.PlaceholderImageURL(text), false)
	if err != nil {
		return core.PostResult{}, err
	}
	result.Raw["approximation"] = "story"
	return result, nil
}

func (p *Publisher) publish(ctx context.Context, values url.Values, wait bool) (core.PostResult, error) {
	creationID, err := p.container(ctx, values, wait)
	if err != nil {
		return core.PostResult{}, err
	}
	raw, err := p.adapter.graph.PostForm(ctx, p.accountID+"/media_publish", p.token, url.Values{
		"creation_id": {creationID},
	})
	if err != nil {
		return core.PostResult{}, err
	}
	id, err := providers.RequireID(core.PlatformInstagram, providers.String(raw, "id"))
	if err != nil {
		return core.PostResult{}, err
	}
	raw["creation_id"] = creationID
	return providers.PostResult(core.PlatformInstagram, id, raw), nil
}

func (p *Publisher) container(ctx context.Context, values url.Values, wait bool) (string, error) {
	raw, err := p.adapter.graph.PostForm(ctx, p.accountID+"/media", p.token, values)
	if err != nil {
		return "", err
	}
	id, err := providers.RequireID(core.PlatformInstagram, providers.String(raw, "id"))
	if err != nil {
		return "", err
	}
	if wait {
		if err := p.awaitContainer(ctx, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

// awaitContainer polls a video container until it reports FINISHED.
func (p *Publisher) awaitContainer(ctx context.Context, containerID string) error {
	err := p.adapter.runtime.Poll(ctx, func(ctx context.Context) (bool, error) {
		raw, err := p.adapter.graph.Get(ctx, containerID, p.token, "status_code")
		if err != nil {
			return false, err
		}
		switch providers.String(raw, "status_code") {
		case "FINISHED":
			return true, nil
		case "ERROR", "EXPIRED":
			return false, core.ProviderError(core.PlatformInstagram, 0, "media container "+containerID+" failed processing", nil)
		default:
			return false, nil
		}
	})
	if err != nil && !core.IsProviderError(err) {
		return core.ProviderError(core.PlatformInstagram, 0, "media container "+containerID+" did not finish processing", err)
	}
	return err
}

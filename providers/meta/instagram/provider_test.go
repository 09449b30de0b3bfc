package instagram

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/providers/devkit"
)

func newTestAdapter(t *testing.T, fake *devkit.FakePlatform) *Adapter {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ClientID = "app"
	cfg.ClientSecret = "app-secret"
	cfg.RedirectURI = "https://app.example.com/social/instagram/callback"
	cfg.TokenURL = fake.URL + "/oauth/access_token"
	cfg.GraphURL = fake.URL
	cfg.PlaceholderImageURL = "https://img.example.com/story.png"
	cfg.Runtime = providers.Runtime{
		RetryAttempts: 1,
		BaseDelay:     time.Millisecond,
		PollInterval:  time.Millisecond,
		PollAttempts:  3,
	}
	adapter, err := New(cfg)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func newTestPublisher(t *testing.T, adapter *Adapter) *Publisher {
	t.Helper()
	publisher, err := adapter.ForConnection(context.Background(), devkit.Credentials(core.PlatformInstagram, map[string]any{MetadataAccountID: "ig_1"}))
	if err != nil {
		t.Fatalf("for connection: %v", err)
	}
	return publisher.(*Publisher)
}

func TestAdapter_Conformance(t *testing.T) {
	adapter := newTestAdapter(t, devkit.NewFakePlatform(t))
	creds := devkit.Credentials(core.PlatformInstagram, map[string]any{MetadataAccountID: "ig_1"})
	if err := devkit.ValidateAdapterConformance(context.Background(), adapter, creds); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func TestAdapter_HandleCallbackResolvesBusinessAccount(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.JSON(http.MethodPost, "/oauth/access_token", map[string]any{"access_token": "short", "token_type": "bearer"})
	fake.JSON(http.MethodGet, "/oauth/access_token", map[string]any{"access_token": "long", "token_type": "bearer", "expires_in": 5184000})
	fake.JSON(http.MethodGet, "/me/accounts", map[string]any{"data": []any{
		map[string]any{"id": "page_1", "name": "No IG", "access_token": "p1"},
		map[string]any{"id": "page_2", "name": "Shop", "access_token": "p2",
			"instagram_business_account": map[string]any{"id": "ig_7", "username": "shop"}},
	}})
	adapter := newTestAdapter(t, fake)

	result, err := adapter.HandleCallback(context.Background(), core.CallbackRequest{Code: "code"})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if result.PlatformUserID != "ig_7" || result.PlatformUsername != "shop" || result.AccessToken != "long" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.ConnectionType != core.ConnectionTypeBusiness || result.Metadata[MetadataPageID] != "page_2" {
		t.Fatalf("unexpected metadata %+v", result)
	}
	if result.ExpiresAt == nil {
		t.Fatalf("expected expiry from extension")
	}
}

func TestAdapter_HandleCallbackWithoutBusinessAccount(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.JSON(http.MethodPost, "/oauth/access_token", map[string]any{"access_token": "short", "token_type": "bearer"})
	fake.JSON(http.MethodGet, "/oauth/access_token", map[string]any{"access_token": "long", "token_type": "bearer"})
	fake.JSON(http.MethodGet, "/me/accounts", map[string]any{"data": []any{
		map[string]any{"id": "page_1", "name": "No IG", "access_token": "p1"},
	}})
	adapter := newTestAdapter(t, fake)

	_, err := adapter.HandleCallback(context.Background(), core.CallbackRequest{Code: "code"})
	if core.ErrorMessage(err) != "No Instagram Business Account found" {
		t.Fatalf("expected missing business account, got %v", err)
	}
}

func TestPublisher_ShareImageIsTwoPhase(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.JSON(http.MethodPost, "/ig_1/media", map[string]any{"id": "container_1"})
	fake.JSON(http.MethodPost, "/ig_1/media_publish", map[string]any{"id": "media_1"})
	publisher := newTestPublisher(t, newTestAdapter(t, fake))

	result, err := publisher.ShareImage(context.Background(), "Hello", "https://cdn.example.com/a.jpg")
	if err != nil {
		t.Fatalf("share image: %v", err)
	}
	if result.ID != "media_1" || result.Raw["creation_id"] != "container_1" {
		t.Fatalf("unexpected result %+v", result)
	}
	publish, _ := fake.Last(http.MethodPost, "/ig_1/media_publish")
	if publish.Form()["creation_id"] != "container_1" {
		t.Fatalf("unexpected publish form %v", publish.Form())
	}
}

func TestPublisher_ShareVideoPollsContainer(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.JSON(http.MethodPost, "/ig_1/media", map[string]any{"id": "container_2"})
	fake.On(http.MethodGet, "/container_2",
		devkit.Reply{Body: map[string]any{"status_code": "IN_PROGRESS"}},
		devkit.Reply{Body: map[string]any{"status_code": "FINISHED"}},
	)
	fake.JSON(http.MethodPost, "/ig_1/media_publish", map[string]any{"id": "media_2"})
	publisher := newTestPublisher(t, newTestAdapter(t, fake))

	result, err := publisher.ShareVideo(context.Background(), "Reel", "https://cdn.example.com/a.mp4")
	if err != nil {
		t.Fatalf("share video: %v", err)
	}
	if result.ID != "media_2" {
		t.Fatalf("unexpected id %q", result.ID)
	}
	if polls := len(fake.RequestsTo(http.MethodGet, "/container_2")); polls != 2 {
		t.Fatalf("expected 2 status polls, got %d", polls)
	}
	container, _ := fake.Last(http.MethodPost, "/ig_1/media")
	if container.Form()["media_type"] != "REELS" {
		t.Fatalf("unexpected container form %v", container.Form())
	}
}

func TestPublisher_ShareVideoFailsOnContainerError(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.JSON(http.MethodPost, "/ig_1/media", map[string]any{"id": "container_3"})
	fake.JSON(http.MethodGet, "/container_3", map[string]any{"status_code": "ERROR"})
	publisher := newTestPublisher(t, newTestAdapter(t, fake))

	if _, err := publisher.ShareVideo(context.Background(), "Reel", "https://cdn.example.com/a.mp4"); !core.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(fake.RequestsTo(http.MethodPost, "/ig_1/media_publish")) != 0 {
		t.Fatalf("failed container must not be published")
	}
}

func TestPublisher_ShareCarousel(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.On(http.MethodPost, "/ig_1/media",
		devkit.Reply{Body: map[string]any{"id": "child_1"}},
		devkit.Reply{Body: map[string]any{"id": "child_2"}},
		devkit.Reply{Body: map[string]any{"id": "carousel_1"}},
	)
	fake.JSON(http.MethodPost, "/ig_1/media_publish", map[string]any{"id": "media_3"})
	publisher := newTestPublisher(t, newTestAdapter(t, fake))

	result, err := publisher.ShareCarousel(context.Background(), "Album", []CarouselItem{
		{URL: "https://cdn.example.com/1.jpg"},
		{URL: "https://cdn.example.com/2.jpg"},
	})
	if err != nil {
		t.Fatalf("share carousel: %v", err)
	}
	if result.ID != "media_3" {
		t.Fatalf("unexpected id %q", result.ID)
	}
	calls := fake.RequestsTo(http.MethodPost, "/ig_1/media")
	if calls[0].Form()["is_carousel_item"] != "true" {
		t.Fatalf("expected carousel item flag, got %v", calls[0].Form())
	}
	if calls[2].Form()["children"] != "child_1,child_2" || calls[2].Form()["media_type"] != "CAROUSEL" {
		t.Fatalf("unexpected carousel container %v", calls[2].Form())
	}

	if _, err := publisher.ShareCarousel(context.Background(), "Album", []CarouselItem{{URL: "https://cdn.example.com/1.jpg"}}); !core.IsValidationError(err) {
		t.Fatalf("expected validation error for a single item, got %v", err)
	}
}

func TestPublisher_ShareTextBecomesStory(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.JSON(http.MethodPost, "/ig_1/media", map[string]any{"id": "story_container"})
	fake.JSON(http.MethodPost, "/ig_1/media_publish", map[string]any{"id": "story_1"})
	publisher := newTestPublisher(t, newTestAdapter(t, fake))

	result, err := publisher.ShareText(context.Background(), "Big news")
	if err != nil {
		t.Fatalf("share text: %v", err)
	}
	if result.Raw["approximation"] != "story" {
		t.Fatalf("expected story approximation marker, got %+v", result.Raw)
	}
	container, _ := fake.Last(http.MethodPost, "/ig_1/media")
	form := container.Form()
	if form["media_type"] != "STORIES" || !strings.HasPrefix(form["image_url"], "https://img.example.com/story.png?text=Big") {
		t.Fatalf("unexpected story container %v", form)
	}
}

package linkedin

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
	cfg.ClientID = "client"
	cfg.ClientSecret = "secret"
	cfg.RedirectURI = "https://app.example.com/social/linkedin/callback"
	cfg.TokenURL = fake.URL + "/oauth/v2/accessToken"
	cfg.RevokeURL = fake.URL + "/oauth/v2/revoke"
	cfg.APIBaseURL = fake.URL + "/v2"
	cfg.Runtime = providers.Runtime{RetryAttempts: 1, BaseDelay: time.Millisecond}
	adapter, err := New(cfg)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func publisherFor(t *testing.T, adapter *Adapter, creds core.ConnectionCredentials) *Publisher {
	t.Helper()
	publisher, err := adapter.ForConnection(context.Background(), creds)
	if err != nil {
		t.Fatalf("for connection: %v", err)
	}
	return publisher.(*Publisher)
}

func TestAdapter_Conformance(t *testing.T) {
	adapter := newTestAdapter(t, devkit.NewFakePlatform(t))
	if err := devkit.ValidateAdapterConformance(context.Background(), adapter, devkit.Credentials(core.PlatformLinkedIn, nil)); err != nil {
		t.Fatalf("conformance: %v", err)
	}
	if err := devkit.ValidateOAuthFlowConformance(context.Background(), adapter, "https://app.example.com/cb"); err != nil {
		t.Fatalf("oauth conformance: %v", err)
	}
}

func TestAdapter_PKCEIsOptIn(t *testing.T) {
	adapter := newTestAdapter(t, devkit.NewFakePlatform(t))
	out, err := adapter.AuthorizationURL(context.Background(), core.AuthorizationRequest{})
	if err != nil {
		t.Fatalf("authorization url: %v", err)
	}
	if out.UsesPKCE() {
		t.Fatalf("expected pkce off by default")
	}
	out, err = adapter.AuthorizationURL(context.Background(), core.AuthorizationRequest{UsePKCE: devkit.Bool(true)})
	if err != nil || !out.UsesPKCE() {
		t.Fatalf("expected pkce when requested, got %+v %v", out, err)
	}
}

func TestAdapter_HandleCallbackUsesUserinfo(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.JSON(http.MethodPost, "/oauth/v2/accessToken", map[string]any{"access_token": "access", "refresh_token": "refresh", "expires_in": 5184000})
	fake.JSON(http.MethodGet, "/v2/userinfo", map[string]any{"sub": "abc123", "name": "Ada Lovelace", "email": "ada@example.com"})
	adapter := newTestAdapter(t, fake)

	result, err := adapter.HandleCallback(context.Background(), core.CallbackRequest{Code: "code"})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if result.PlatformUserID != "abc123" || result.Metadata[MetadataPersonURN] != "urn:li:person:abc123" {
		t.Fatalf("unexpected result %+v", result)
	}
	token, _ := fake.Last(http.MethodPost, "/oauth/v2/accessToken")
	if token.Form()["client_secret"] != "secret" {
		t.Fatalf("expected client credentials in the body, got %v", token.Form())
	}
}

func TestPublisher_ShareTextAsPerson(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.JSON(http.MethodPost, "/v2/ugcPosts", map[string]any{"id": "urn:li:share:1"})
	publisher := publisherFor(t, newTestAdapter(t, fake), devkit.Credentials(core.PlatformLinkedIn, nil))

	result, err := publisher.ShareText(context.Background(), "Hello network")
	if err != nil {
		t.Fatalf("share text: %v", err)
	}
	if result.ID != "urn:li:share:1" {
		t.Fatalf("unexpected id %q", result.ID)
	}
	post, _ := fake.Last(http.MethodPost, "/v2/ugcPosts")
	body := post.JSON()
	if body["author"] != "urn:li:person:user_1" {
		t.Fatalf("unexpected author %v", body["author"])
	}
	content := body["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
	if content["shareMediaCategory"] != "NONE" {
		t.Fatalf("unexpected category %v", content["shareMediaCategory"])
	}
	if post.Headers.Get("X-Restli-Protocol-Version") != "2.0.0" {
		t.Fatalf("expected restli header")
	}
}

func TestPublisher_ShareURLBuildsArticle(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.On(http.MethodPost, "/v2/ugcPosts", devkit.Reply{
		Status:  http.StatusCreated,
		Headers: map[string]string{"X-RestLi-Id": "urn:li:share:2"},
	})
	publisher := publisherFor(t, newTestAdapter(t, fake), devkit.Credentials(core.PlatformLinkedIn, nil))

	result, err := publisher.ShareURL(context.Background(), "Read this", "https://www.example.com/post")
	if err != nil {
		t.Fatalf("share url: %v", err)
	}
	if result.ID != "urn:li:share:2" {
		t.Fatalf("expected id from header, got %q", result.ID)
	}
	post, _ := fake.Last(http.MethodPost, "/v2/ugcPosts")
	content := post.JSON()["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
	media := content["media"].([]any)[0].(map[string]any)
	if content["shareMediaCategory"] != "ARTICLE" || media["title"].(map[string]any)["text"] != "example.com" {
		t.Fatalf("unexpected article %v", content)
	}
}

func TestPublisher_ShareImageRegistersAndUploads(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.On(http.MethodGet, "/files/a.jpg", devkit.Reply{Headers: map[string]string{"Content-Type": "image/jpeg"}, Body: []byte("jpeg")})
	fake.JSON(http.MethodPost, "/v2/assets", map[string]any{"value": map[string]any{
		"asset": "urn:li:digitalmediaAsset:9",
		"uploadMechanism": map[string]any{
			uploadKey: map[string]any{"uploadUrl": fake.URL + "/upload/9"},
		},
	}})
	fake.On(http.MethodPut, "/upload/9", devkit.Reply{Status: http.StatusCreated})
	fake.JSON(http.MethodPost, "/v2/ugcPosts", map[string]any{"id": "urn:li:share:3"})
	publisher := publisherFor(t, newTestAdapter(t, fake), devkit.Credentials(core.PlatformLinkedIn, nil))

	if _, err := publisher.ShareImage(context.Background(), "Photo", fake.URL+"/files/a.jpg"); err != nil {
		t.Fatalf("share image: %v", err)
	}
	register, _ := fake.Last(http.MethodPost, "/v2/assets")
	if register.Query["action"] != "registerUpload" || !strings.Contains(string(register.Body), recipeImage) {
		t.Fatalf("unexpected register call %+v", register)
	}
	put, ok := fake.Last(http.MethodPut, "/upload/9")
	if !ok || string(put.Body) != "jpeg" {
		t.Fatalf("expected bytes to be uploaded")
	}
	post, _ := fake.Last(http.MethodPost, "/v2/ugcPosts")
	if !strings.Contains(string(post.Body), "urn:li:digitalmediaAsset:9") {
		t.Fatalf("expected asset in post body")
	}
}

func TestPublisher_CompanyConnectionPostsAsOrganization(t *testing.T) {
	fake := devkit.NewFakePlatform(t)
	fake.JSON(http.MethodPost, "/v2/ugcPosts", map[string]any{"id": "urn:li:share:4"})
	adapter := newTestAdapter(t, fake)

	creds := devkit.Credentials(core.PlatformLinkedIn, map[string]any{MetadataOrganizationID: "555"})
	creds.ConnectionType = core.ConnectionTypeCompany
	company := publisherFor(t, adapter, creds)
	if company.Author() != "urn:li:organization:555" {
		t.Fatalf("expected org author, got %q", company.Author())
	}

	person := publisherFor(t, adapter, devkit.Credentials(core.PlatformLinkedIn, map[string]any{MetadataOrganizationURN: "urn:li:organization:777"}))
	if person.Author() != "urn:li:person:user_1" {
		t.Fatalf("expected person author by default, got %q", person.Author())
	}
	if _, err := person.ShareToCompanyPage(context.Background(), "Company news", ""); err != nil {
		t.Fatalf("share to company page: %v", err)
	}
	post, _ := fake.Last(http.MethodPost, "/v2/ugcPosts")
	if post.JSON()["author"] != "urn:li:organization:777" {
		t.Fatalf("expected company page to force org author, got %v", post.JSON()["author"])
	}

	plain := publisherFor(t, adapter, devkit.Credentials(core.PlatformLinkedIn, nil))
	if _, err := plain.ShareToCompanyPage(context.Background(), "x", ""); !core.HasErrorCode(err, core.ErrorCredentialsMissing) {
		t.Fatalf("expected missing organization, got %v", err)
	}
}

func TestArticleTitle(t *testing.T) {
	if ArticleTitle("https://www.example.com/a?b=c") != "example.com" {
		t.Fatalf("unexpected title")
	}
	if ArticleTitle("https://blog.example.org") != "blog.example.org" {
		t.Fatalf("unexpected subdomain title")
	}
}

package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-social/core"
)

type stubService struct {
	beginReq    core.BeginAuthorizationRequest
	callbackIn  core.CallbackInput
	beginErr    error
	outcome     core.CallbackOutcome
	callbackErr error
	panicValue  any
	sawExchange bool
}

func (s *stubService) BeginAuthorization(ctx context.Context, req core.BeginAuthorizationRequest) (core.BeginAuthorizationResponse, error) {
	s.beginReq = req
	_, s.sawExchange = httpExchange(ctx)
	if s.beginErr != nil {
		return core.BeginAuthorizationResponse{}, s.beginErr
	}
	return core.BeginAuthorizationResponse{
		Platform: req.Platform,
		URL:      "https://provider.example/authorize?state=abc",
		State:    "abc",
	}, nil
}

func (s *stubService) CompleteCallback(ctx context.Context, in core.CallbackInput) (core.CallbackOutcome, error) {
	s.callbackIn = in
	_, s.sawExchange = httpExchange(ctx)
	if s.panicValue != nil {
		panic(s.panicValue)
	}
	return s.outcome, s.callbackErr
}

func newTestHandler(t *testing.T, svc Service, opts ...HandlerOption) http.Handler {
	t.Helper()
	handler, err := NewHandler(svc, opts...)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler.Routes("/oauth")
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) CallbackResponse {
	t.Helper()
	var doc CallbackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return doc
}

func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestAuthorizeRedirectsToProvider(t *testing.T) {
	svc := &stubService{}
	routes := newTestHandler(t, svc,
		WithOwnerFunc(func(*http.Request) (*core.OwnerRef, error) {
			return &core.OwnerRef{Type: "user", ID: "u1"}, nil
		}),
		WithRedirectURI(func(_ *http.Request, platform core.Platform) string {
			return "https://app.example/oauth/" + string(platform) + "/callback"
		}),
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/X/authorize?scopes=tweet.read,tweet.write", nil)
	routes.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "https://provider.example/authorize?state=abc" {
		t.Fatalf("unexpected location %q", got)
	}
	if svc.beginReq.Platform != core.PlatformTwitter {
		t.Fatalf("expected twitter platform, got %q", svc.beginReq.Platform)
	}
	if len(svc.beginReq.Scopes) != 2 || svc.beginReq.Scopes[1] != "tweet.write" {
		t.Fatalf("unexpected scopes %#v", svc.beginReq.Scopes)
	}
	if svc.beginReq.Owner == nil || svc.beginReq.Owner.ID != "u1" {
		t.Fatalf("expected owner to be forwarded, got %#v", svc.beginReq.Owner)
	}
	if svc.beginReq.RedirectURI != "https://app.example/oauth/twitter/callback" {
		t.Fatalf("unexpected redirect uri %q", svc.beginReq.RedirectURI)
	}
	if !svc.sawExchange {
		t.Fatalf("expected http exchange in context")
	}
}

func TestAuthorizeRejectsUnknownPlatform(t *testing.T) {
	routes := newTestHandler(t, &stubService{})

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/myspace/authorize", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	doc := decodeResponse(t, rec)
	if doc.ErrorCode != core.ErrorBadInput {
		t.Fatalf("expected bad input code, got %q", doc.ErrorCode)
	}
}

func TestCallbackWritesConnectedDocument(t *testing.T) {
	svc := &stubService{outcome: core.CallbackOutcome{
		Platform:   core.PlatformLinkedIn,
		State:      core.CallbackConnectionPersisted,
		Connection: core.Connection{ID: "conn_1"},
	}}
	routes := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/linkedin/callback?code=c1&state=s1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	doc := decodeResponse(t, rec)
	if doc.ConnectionID != "conn_1" || doc.State != string(core.CallbackConnectionPersisted) {
		t.Fatalf("unexpected document %#v", doc)
	}
	if svc.callbackIn.Code != "c1" || svc.callbackIn.State != "s1" {
		t.Fatalf("unexpected callback input %#v", svc.callbackIn)
	}
}

func TestCallbackMapsServiceErrorToStatus(t *testing.T) {
	failure := core.ValidationError("code", "authorization code is required")
	svc := &stubService{
		outcome:     core.CallbackOutcome{Platform: core.PlatformFacebook, State: core.CallbackErrored, Err: failure},
		callbackErr: failure,
	}
	routes := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/facebook/callback?state=s1&error=access_denied&error_description=nope", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	doc := decodeResponse(t, rec)
	if doc.ErrorCode != core.ErrorValidation || doc.State != string(core.CallbackErrored) {
		t.Fatalf("unexpected document %#v", doc)
	}
	if doc.Message != "authorization code is required" {
		t.Fatalf("unexpected message %q", doc.Message)
	}
	if svc.callbackIn.Error != "access_denied" || svc.callbackIn.ErrorDescription != "nope" {
		t.Fatalf("provider error not forwarded: %#v", svc.callbackIn)
	}
}

func TestCallbackRecoversPanics(t *testing.T) {
	routes := newTestHandler(t, &stubService{panicValue: "boom"})

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/tiktok/callback?code=c", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	doc := decodeResponse(t, rec)
	if doc.ErrorCode != core.ErrorInternal {
		t.Fatalf("expected internal code, got %q", doc.ErrorCode)
	}
}

func TestCallbackCompletionRedirects(t *testing.T) {
	svc := &stubService{outcome: core.CallbackOutcome{
		Platform:   core.PlatformPinterest,
		State:      core.CallbackConnectionPersisted,
		Connection: core.Connection{ID: "conn_2"},
	}}
	routes := newTestHandler(t, svc, WithCompletionRedirects("https://app.example/done?tab=social", "https://app.example/failed"))

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/pinterest/callback?code=c&state=s", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if location.Path != "/done" || location.Query().Get("tab") != "social" {
		t.Fatalf("unexpected success location %q", location.String())
	}
	if location.Query().Get("platform") != "pinterest" {
		t.Fatalf("expected platform query, got %q", location.RawQuery)
	}

	svc.outcome = core.CallbackOutcome{State: core.CallbackErrored, Err: core.ValidationError("code", "missing")}
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/pinterest/callback", nil))
	if got := rec.Header().Get("Location"); !strings.HasPrefix(got, "https://app.example/failed?") || !strings.Contains(got, "error_code="+core.ErrorValidation) {
		t.Fatalf("unexpected failure location %q", got)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, b c,,")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("unexpected list %#v", got)
	}
	if splitList("  ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}

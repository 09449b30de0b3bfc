package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social/core"
)

func newFlakyServer(t *testing.T, failures int32, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n <= failures {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
		_, _ = w.Write([]byte(`{"id":"post_1"}`))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestClient(server *httptest.Server, attempts int) *Client {
	return NewClient(Config{
		Platform:      core.PlatformLinkedIn,
		HTTPClient:    server.Client(),
		RetryAttempts: attempts,
		BaseDelay:     time.Millisecond,
	})
}

func TestClient_SucceedsAfterTransientFailures(t *testing.T) {
	server, calls := newFlakyServer(t, 2, http.StatusServiceUnavailable, `{"message":"try later"}`)
	client := newTestClient(server, 3)

	var out struct {
		ID string `json:"id"`
	}
	res, err := client.DoJSON(context.Background(), NewRequest(http.MethodPost, server.URL), &out)
	if err != nil {
		t.Fatalf("expected success on the third attempt, got %v", err)
	}
	if res.StatusCode != http.StatusOK || out.ID != "post_1" {
		t.Fatalf("unexpected response %d %#v", res.StatusCode, out)
	}
	if got := atomic.LoadInt32(calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestClient_ExhaustedRetriesReturnProviderMessage(t *testing.T) {
	server, calls := newFlakyServer(t, 3, http.StatusUnauthorized, `{"error":{"message":"Invalid access token","code":190}}`)
	client := newTestClient(server, 3)

	_, err := client.Do(context.Background(), NewRequest(http.MethodGet, server.URL))
	if err == nil {
		t.Fatalf("expected failure after exhausting attempts")
	}
	if got := atomic.LoadInt32(calls); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
	if !core.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if got := core.ErrorMessage(err); got != "Invalid access token" {
		t.Fatalf("expected extracted message, got %q", got)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Metadata["status_code"] != http.StatusUnauthorized {
		t.Fatalf("expected status metadata, got %#v", rich)
	}
}

func TestClient_FallsBackToStatusText(t *testing.T) {
	server, _ := newFlakyServer(t, 1, http.StatusBadGateway, `<html>bad gateway</html>`)
	client := newTestClient(server, 1)

	_, err := client.Do(context.Background(), NewRequest(http.MethodGet, server.URL))
	if got := core.ErrorMessage(err); got != "linkedin returned 502 Bad Gateway" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestClient_DoesNotRetryBadInput(t *testing.T) {
	client := NewClient(Config{Platform: core.PlatformTwitter, BaseDelay: time.Millisecond})
	_, err := client.Do(context.Background(), NewRequest(http.MethodGet, "not a url"))
	if err == nil || !core.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestClient_StopsWhenContextIsCancelled(t *testing.T) {
	server, calls := newFlakyServer(t, 10, http.StatusInternalServerError, `{}`)
	client := NewClient(Config{
		Platform:      core.PlatformTwitter,
		HTTPClient:    server.Client(),
		RetryAttempts: 10,
		BaseDelay:     time.Hour,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Do(ctx, NewRequest(http.MethodGet, server.URL)); err == nil {
		t.Fatalf("expected error")
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", got)
	}
}

func TestClient_RateLimitedClientStillCompletes(t *testing.T) {
	server, calls := newFlakyServer(t, 0, http.StatusOK, "")
	client := NewClient(Config{
		Platform:          core.PlatformPinterest,
		HTTPClient:        server.Client(),
		RequestsPerSecond: 1000,
		Burst:             2,
	})
	for i := 0; i < 3; i++ {
		if _, err := client.Do(context.Background(), NewRequest(http.MethodGet, server.URL)); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

type testSecretProvider struct{}

func (testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("test secret provider: plaintext is required")
	}
	encoded := base64.StdEncoding.EncodeToString(plaintext)
	return []byte("enc:" + encoded), nil
}

func (testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	value := strings.TrimSpace(string(ciphertext))
	if value == "" || !strings.HasPrefix(value, "enc:") {
		return nil, fmt.Errorf("test secret provider: invalid ciphertext")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "enc:"))
	if err != nil {
		return nil, fmt.Errorf("test secret provider: decode ciphertext: %w", err)
	}
	return decoded, nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return copyAnyMap(l.values), nil
}

// stubPublisher records every publish call.
type stubPublisher struct {
	platform Platform
	creds    ConnectionCredentials
	err      error
	mu       *sync.Mutex
	calls    *[]string
}

func (p stubPublisher) Platform() Platform { return p.platform }

func (p stubPublisher) record(op string) (PostResult, error) {
	if p.mu != nil {
		p.mu.Lock()
		*p.calls = append(*p.calls, string(p.platform)+":"+op)
		p.mu.Unlock()
	}
	if p.err != nil {
		return PostResult{}, p.err
	}
	return PostResult{Platform: p.platform, ID: string(p.platform) + "_post_1"}, nil
}

func (p stubPublisher) ShareText(_ context.Context, caption string) (PostResult, error) {
	if _, err := ValidateCaption(caption, 0); err != nil {
		return PostResult{}, err
	}
	return p.record("text")
}

func (p stubPublisher) ShareURL(context.Context, string, string) (PostResult, error) {
	return p.record("url")
}

func (p stubPublisher) ShareImage(context.Context, string, string) (PostResult, error) {
	return p.record("image")
}

func (p stubPublisher) ShareVideo(context.Context, string, string) (PostResult, error) {
	return p.record("video")
}

// stubAdapter implements Adapter and OAuthFlow with scripted results.
type stubAdapter struct {
	platform       Platform
	connectionType string
	publishErr     error
	callbackResult TokenResult
	callbackErr    error
	callbackPanic  bool
	refreshResult  TokenResult
	revokeResult   bool

	mu        *sync.Mutex
	calls     *[]string
	callbacks *[]CallbackRequest
	refreshes *[]string
}

func newStubAdapter(platform Platform) *stubAdapter {
	calls := []string{}
	callbacks := []CallbackRequest{}
	refreshes := []string{}
	return &stubAdapter{
		platform:       platform,
		connectionType: ConnectionTypeProfile,
		mu:             &sync.Mutex{},
		calls:          &calls,
		callbacks:      &callbacks,
		refreshes:      &refreshes,
		revokeResult:   true,
	}
}

func (a *stubAdapter) Platform() Platform { return a.platform }

func (a *stubAdapter) DefaultConnectionType() string { return a.connectionType }

func (a *stubAdapter) ForConnection(_ context.Context, creds ConnectionCredentials) (Publisher, error) {
	if err := CheckCredentials(a.platform, creds); err != nil {
		return nil, err
	}
	return stubPublisher{platform: a.platform, creds: creds, err: a.publishErr, mu: a.mu, calls: a.calls}, nil
}

func (a *stubAdapter) AuthorizationURL(_ context.Context, req AuthorizationRequest) (AuthorizationURL, error) {
	usePKCE, verifier, err := ResolvePKCE(req, false)
	if err != nil {
		return AuthorizationURL{}, err
	}
	out := AuthorizationURL{
		URL:   "https://auth.example/" + string(a.platform) + "?state=" + req.State,
		State: req.State,
	}
	if usePKCE {
		out.URL += "&code_challenge=" + CodeChallengeS256(verifier)
		out.CodeVerifier = verifier
	}
	return out, nil
}

func (a *stubAdapter) HandleCallback(_ context.Context, req CallbackRequest) (TokenResult, error) {
	a.mu.Lock()
	*a.callbacks = append(*a.callbacks, req)
	a.mu.Unlock()
	if a.callbackPanic {
		panic("adapter exploded")
	}
	if a.callbackErr != nil {
		return TokenResult{}, a.callbackErr
	}
	return a.callbackResult, nil
}

func (a *stubAdapter) RefreshAccessToken(_ context.Context, refreshToken string) (TokenResult, error) {
	a.mu.Lock()
	*a.refreshes = append(*a.refreshes, refreshToken)
	a.mu.Unlock()
	return a.refreshResult, nil
}

func (a *stubAdapter) Disconnect(context.Context, string) bool {
	return a.revokeResult
}

func (a *stubAdapter) snapshotCalls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), (*a.calls)...)
}

func (a *stubAdapter) snapshotCallbacks() []CallbackRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]CallbackRequest(nil), (*a.callbacks)...)
}

// stubExtenderAdapter exchanges the access token instead of refreshing.
type stubExtenderAdapter struct {
	*stubAdapter
	extended *[]string
}

func (a stubExtenderAdapter) ExtendAccessToken(_ context.Context, token string) (TokenResult, error) {
	*a.extended = append(*a.extended, token)
	return a.refreshResult, nil
}

// stubStandaloneAdapter publishes without a stored connection.
type stubStandaloneAdapter struct {
	*stubAdapter
}

func (a stubStandaloneAdapter) Standalone(context.Context) (Publisher, error) {
	return stubPublisher{platform: a.platform, mu: a.mu, calls: a.calls}, nil
}

func newTestService(t interface{ Fatalf(string, ...any) }, cfg Config, adapters ...Adapter) *Service {
	registry, err := NewPlatformRegistry(adapters...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc, err := NewService(cfg,
		WithAdapterRegistry(registry),
		WithSecretProvider(testSecretProvider{}),
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedConnection(t interface{ Fatalf(string, ...any) }, svc *Service, owner OwnerRef, platform Platform, connectionType string) Connection {
	connection, err := svc.Connections().Upsert(context.Background(), owner, platform, connectionType, ConnectionFields{
		PlatformUserID: "remote_" + string(platform),
		AccessToken:    "access_" + string(platform),
		RefreshToken:   "refresh_" + string(platform),
	})
	if err != nil {
		t.Fatalf("seed %s connection: %v", platform, err)
	}
	return connection
}

func futureTime(d time.Duration) *time.Time {
	value := time.Now().UTC().Add(d)
	return &value
}

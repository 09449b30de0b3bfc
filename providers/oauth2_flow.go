package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/transport"
	"golang.org/x/oauth2"
)

// OAuth2Config describes a platform's authorization code endpoints.
type OAuth2Config struct {
	Platform      core.Platform
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	AuthURL       string
	TokenURL      string
	AuthStyle     oauth2.AuthStyle
	DefaultScopes []string
	// ScopeSeparator joins scopes in the authorize URL. Defaults to a space.
	ScopeSeparator string
	UsePKCE        bool
	// ClientIDParam renames client_id on the authorize URL and token requests
	// for platforms that use another name.
	ClientIDParam string
	AuthParams    map[string]string
}

// OAuth2Flow runs the authorization code grant through x/oauth2.
type OAuth2Flow struct {
	cfg     OAuth2Config
	runtime Runtime
}

func NewOAuth2Flow(cfg OAuth2Config, runtime Runtime) (*OAuth2Flow, error) {
	if !cfg.Platform.Valid() {
		return nil, fmt.Errorf("providers: unknown platform %q", cfg.Platform)
	}
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, core.ConfigurationError(cfg.Platform, "client id and secret are required")
	}
	if strings.TrimSpace(cfg.AuthURL) == "" || strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, core.ConfigurationError(cfg.Platform, "auth and token urls are required")
	}
	if cfg.ScopeSeparator == "" {
		cfg.ScopeSeparator = " "
	}
	return &OAuth2Flow{cfg: cfg, runtime: runtime}, nil
}

func (f *OAuth2Flow) Platform() core.Platform {
	return f.cfg.Platform
}

func (f *OAuth2Flow) Config() OAuth2Config {
	return f.cfg
}

func (f *OAuth2Flow) Runtime() Runtime {
	return f.runtime
}

func (f *OAuth2Flow) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.cfg.AuthURL,
			TokenURL:  f.cfg.TokenURL,
			AuthStyle: f.cfg.AuthStyle,
		},
	}
}

func (f *OAuth2Flow) redirectURI(requested string) (string, error) {
	redirect := strings.TrimSpace(requested)
	if redirect == "" {
		redirect = strings.TrimSpace(f.cfg.RedirectURI)
	}
	if redirect == "" {
		return "", core.ValidationError("redirect_uri", "redirect uri is required")
	}
	return core.ValidateURL("redirect_uri", redirect)
}

// AuthorizationURL builds the authorize redirect. With PKCE the challenge is
// derived from the returned verifier.
func (f *OAuth2Flow) AuthorizationURL(_ context.Context, req core.AuthorizationRequest) (core.AuthorizationURL, error) {
	redirect, err := f.redirectURI(req.RedirectURI)
	if err != nil {
		return core.AuthorizationURL{}, err
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		if state, err = core.GenerateState(); err != nil {
			return core.AuthorizationURL{}, err
		}
	}
	usePKCE, verifier, err := core.ResolvePKCE(req, f.cfg.UsePKCE)
	if err != nil {
		return core.AuthorizationURL{}, err
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = f.cfg.DefaultScopes
	}
	opts := []oauth2.AuthCodeOption{}
	if len(scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", strings.Join(scopes, f.cfg.ScopeSeparator)))
	}
	for key, value := range f.cfg.AuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(key, value))
	}
	if usePKCE {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	authURL := f.oauthConfig(redirect).AuthCodeURL(state, opts...)
	if f.cfg.ClientIDParam != "" {
		authURL = strings.Replace(authURL, "client_id=", f.cfg.ClientIDParam+"=", 1)
	}

	f.runtime.Log().Info("authorization url issued",
		"platform", string(f.cfg.Platform),
		"pkce", usePKCE,
	)
	out := core.AuthorizationURL{URL: authURL, State: state}
	if usePKCE {
		out.CodeVerifier = verifier
	}
	return out, nil
}

// Exchange trades the authorization code for a token, forwarding the PKCE
// verifier when one was stashed.
func (f *OAuth2Flow) Exchange(ctx context.Context, req core.CallbackRequest) (*oauth2.Token, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, core.ValidationError("code", "authorization code is required")
	}
	redirect, err := f.redirectURI(req.RedirectURI)
	if err != nil {
		return nil, err
	}
	opts := []oauth2.AuthCodeOption{}
	if verifier := strings.TrimSpace(req.CodeVerifier); verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	if f.cfg.ClientIDParam != "" {
		opts = append(opts, oauth2.SetAuthURLParam(f.cfg.ClientIDParam, f.cfg.ClientID))
	}
	token, err := f.oauthConfig(redirect).Exchange(f.httpContext(ctx), code, opts...)
	if err != nil {
		return nil, f.mapError("token exchange failed", err)
	}
	f.runtime.Log().Info("token exchanged", "platform", string(f.cfg.Platform))
	return token, nil
}

// Refresh runs the refresh_token grant.
func (f *OAuth2Flow) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, core.CredentialsMissingError(f.cfg.Platform, "refresh_token")
	}
	source := f.oauthConfig(f.cfg.RedirectURI).TokenSource(f.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, f.mapError("token refresh failed", err)
	}
	return token, nil
}

// Revoke posts token to endpoint and reports success without failing.
func (f *OAuth2Flow) Revoke(ctx context.Context, endpoint string, form map[string]string) bool {
	values := make(map[string][]string, len(form))
	for key, value := range form {
		values[key] = []string{value}
	}
	req := transport.FormRequest(http.MethodPost, endpoint, values)
	if f.cfg.AuthStyle == oauth2.AuthStyleInHeader {
		req = transport.WithHeader(req, "Authorization", basicAuth(f.cfg.ClientID, f.cfg.ClientSecret))
	}
	client := f.runtime.Client(f.cfg.Platform)
	if _, err := client.Do(ctx, req); err != nil {
		f.runtime.Log().Warn("token revoke failed",
			"platform", string(f.cfg.Platform),
			"error", core.ErrorMessage(err),
		)
		return false
	}
	return true
}

// TokenResult converts an x/oauth2 token. Refresh tokens that the platform
// did not rotate come back empty.
func (f *OAuth2Flow) TokenResult(token *oauth2.Token) core.TokenResult {
	if token == nil {
		return core.TokenResult{}
	}
	result := core.TokenResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    strings.ToLower(token.Type()),
		Metadata:     map[string]any{},
		Raw:          map[string]any{},
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		result.ExpiresAt = &expiry
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		result.Scopes = strings.FieldsFunc(scope, func(r rune) bool { return r == ' ' || r == ',' })
	}
	return result
}

func (f *OAuth2Flow) httpContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, oauth2.HTTPClient, f.runtime.HTTP())
}

func (f *OAuth2Flow) mapError(message string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		detail := strings.TrimSpace(retrieveErr.ErrorDescription)
		if detail == "" {
			detail = strings.TrimSpace(retrieveErr.ErrorCode)
		}
		if detail == "" {
			detail = transport.ExtractProviderMessage(retrieveErr.Body)
		}
		if detail != "" {
			message = message + ": " + detail
		}
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return core.ProviderError(f.cfg.Platform, status, message, err)
	}
	return core.ProviderError(f.cfg.Platform, 0, message, err)
}

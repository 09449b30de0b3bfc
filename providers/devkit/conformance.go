package devkit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-social/core"
)

// ValidateAdapterConformance checks the construction contract every adapter
// shares. None of the checks reach the network.
func ValidateAdapterConformance(ctx context.Context, adapter core.Adapter, creds core.ConnectionCredentials) error {
	if adapter == nil {
		return fmt.Errorf("devkit: adapter is required")
	}
	platform := adapter.Platform()
	if !platform.Valid() {
		return fmt.Errorf("devkit: adapter platform %q is not supported", platform)
	}
	if strings.TrimSpace(adapter.DefaultConnectionType()) == "" {
		return fmt.Errorf("devkit: default connection type is required")
	}

	mismatched := creds
	mismatched.Platform = otherPlatform(platform)
	if _, err := adapter.ForConnection(ctx, mismatched); !core.HasErrorCode(err, core.ErrorPlatformMismatch) {
		return fmt.Errorf("devkit: expected platform mismatch error, got %v", err)
	}

	if _, standalone := adapter.(core.StandaloneAdapter); !standalone {
		missing := creds
		missing.AccessToken = ""
		if _, err := adapter.ForConnection(ctx, missing); !core.HasErrorCode(err, core.ErrorCredentialsMissing) {
			return fmt.Errorf("devkit: expected missing credentials error, got %v", err)
		}
	}

	publisher, err := adapter.ForConnection(ctx, creds)
	if err != nil {
		return fmt.Errorf("devkit: for connection: %w", err)
	}
	if publisher == nil || publisher.Platform() != platform {
		return fmt.Errorf("devkit: publisher platform mismatch")
	}
	return nil
}

// ValidateOAuthFlowConformance checks the authorize URL shape, including
// the verifier contract with and without PKCE.
func ValidateOAuthFlowConformance(ctx context.Context, flow core.OAuthFlow, redirectURI string) error {
	if flow == nil {
		return fmt.Errorf("devkit: oauth flow is required")
	}
	on, off := true, false

	withPKCE, err := flow.AuthorizationURL(ctx, core.AuthorizationRequest{RedirectURI: redirectURI, State: "devkit-state", UsePKCE: &on})
	if err != nil {
		return fmt.Errorf("devkit: authorization url: %w", err)
	}
	if withPKCE.State != "devkit-state" {
		return fmt.Errorf("devkit: state not preserved, got %q", withPKCE.State)
	}
	if len(withPKCE.CodeVerifier) != 64 {
		return fmt.Errorf("devkit: expected a 64 char verifier, got %d", len(withPKCE.CodeVerifier))
	}
	parsed, err := url.Parse(withPKCE.URL)
	if err != nil {
		return fmt.Errorf("devkit: parse authorization url: %w", err)
	}
	query := parsed.Query()
	if query.Get("code_challenge") != core.CodeChallengeS256(withPKCE.CodeVerifier) || query.Get("code_challenge_method") != "S256" {
		return fmt.Errorf("devkit: challenge does not match verifier")
	}
	if query.Get("state") != "devkit-state" {
		return fmt.Errorf("devkit: state missing from url")
	}
	if query.Get("redirect_uri") != redirectURI {
		return fmt.Errorf("devkit: redirect uri missing from url")
	}

	withoutPKCE, err := flow.AuthorizationURL(ctx, core.AuthorizationRequest{RedirectURI: redirectURI, UsePKCE: &off})
	if err != nil {
		return fmt.Errorf("devkit: authorization url without pkce: %w", err)
	}
	if withoutPKCE.CodeVerifier != "" || strings.Contains(withoutPKCE.URL, "code_challenge") {
		return fmt.Errorf("devkit: expected no verifier without pkce")
	}
	return nil
}

func otherPlatform(platform core.Platform) core.Platform {
	if platform == core.PlatformTelegram {
		return core.PlatformTwitter
	}
	return core.PlatformTelegram
}

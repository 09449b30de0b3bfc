package core

import (
	stderrors "errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestSocialErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := socialErrorMapper(fmt.Errorf("lookup: %w", ErrConnectionNotFound))
	if mapped.TextCode != ErrorConnectionNotFound {
		t.Fatalf("expected connection not found text code, got %q", mapped.TextCode)
	}
	if mapped.Code != 404 {
		t.Fatalf("expected 404, got %d", mapped.Code)
	}

	mapped = socialErrorMapper(ErrVerifierExpired)
	if mapped.TextCode != ErrorOAuthStateInvalid {
		t.Fatalf("expected oauth state text code, got %q", mapped.TextCode)
	}
	if mapped.Category != goerrors.CategoryAuth {
		t.Fatalf("expected auth category, got %q", mapped.Category)
	}

	mapped = socialErrorMapper(stderrors.New("core: owner id is required"))
	if mapped.TextCode != ErrorBadInput {
		t.Fatalf("expected bad input code, got %q", mapped.TextCode)
	}
}

func TestSocialErrorMapper_KeepsRichErrors(t *testing.T) {
	original := ProviderError(PlatformTwitter, 403, "You are not permitted", nil)
	mapped := socialErrorMapper(original)
	if mapped != original {
		t.Fatalf("expected rich error to pass through")
	}
	if mapped.Code != 502 {
		t.Fatalf("expected 502 for provider errors, got %d", mapped.Code)
	}
	if mapped.Metadata["status_code"] != 403 {
		t.Fatalf("expected provider status in metadata, got %#v", mapped.Metadata)
	}
}

func TestErrorPredicates(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"provider", ProviderError(PlatformFacebook, 500, "boom", nil), IsProviderError},
		{"mismatch", PlatformMismatchError(PlatformFacebook, PlatformTwitter), IsProviderError},
		{"missing", CredentialsMissingError(PlatformFacebook, "access_token"), IsProviderError},
		{"validation", ValidationError("caption", "caption is required"), IsValidationError},
		{"crypto", CryptoError(stderrors.New("bad envelope")), IsCryptoError},
		{"configuration", ConfigurationError(PlatformTelegram, "bot token is required"), IsConfigurationError},
		{"auth", NotAuthenticatedError(), IsNotAuthenticated},
	}
	for _, tc := range cases {
		if !tc.check(tc.err) {
			t.Fatalf("%s: predicate did not match %v", tc.name, tc.err)
		}
		if !tc.check(fmt.Errorf("wrapped: %w", tc.err)) {
			t.Fatalf("%s: predicate did not match wrapped error", tc.name)
		}
	}
	if IsProviderError(stderrors.New("plain")) {
		t.Fatalf("plain errors are not provider errors")
	}
}

func TestErrorMessage_UsesEnvelopeMessage(t *testing.T) {
	err := ConnectionNotFoundError(OwnerRef{Type: "user", ID: "1"}, PlatformInstagram)
	if got := ErrorMessage(err); got != "no active connection for instagram" {
		t.Fatalf("unexpected message %q", got)
	}
	if ErrorMessage(nil) != "" {
		t.Fatalf("expected empty message for nil")
	}
}

package core

import (
	"strings"
	"testing"
)

func TestValidateCaption(t *testing.T) {
	got, err := ValidateCaption("  hello world  ", 20)
	if err != nil || got != "hello world" {
		t.Fatalf("expected trimmed caption, got %q err=%v", got, err)
	}
	if _, err := ValidateCaption("   ", 0); !IsValidationError(err) {
		t.Fatalf("expected validation error for blank caption, got %v", err)
	}
	if _, err := ValidateCaption(strings.Repeat("é", 11), 10); !IsValidationError(err) {
		t.Fatalf("expected rune cap to be enforced, got %v", err)
	}
	if _, err := ValidateCaption(strings.Repeat("é", 10), 10); err != nil {
		t.Fatalf("expected caption at the cap to pass, got %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	cases := []struct {
		raw string
		ok  bool
	}{
		{"https://example.com/a.png", true},
		{" http://example.com ", true},
		{"", false},
		{"example.com/a.png", false},
		{"ftp://example.com/a.png", false},
		{"https://", false},
	}
	for _, tc := range cases {
		_, err := ValidateURL("image_url", tc.raw)
		if tc.ok && err != nil {
			t.Fatalf("expected %q to pass, got %v", tc.raw, err)
		}
		if !tc.ok && !IsValidationError(err) {
			t.Fatalf("expected %q to fail validation, got %v", tc.raw, err)
		}
	}
}

func TestTweetLength_WeighsLinks(t *testing.T) {
	link := "https://example.com/" + strings.Repeat("a", 100)
	text := "read this " + link
	if got, want := TweetLength(text), len("read this ")+TwitterURLWeight; got != want {
		t.Fatalf("expected weighted length %d, got %d", want, got)
	}
	if got := TweetLength("plain"); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestCheckCredentials(t *testing.T) {
	creds := ConnectionCredentials{Platform: PlatformTwitter, AccessToken: "token"}
	if err := CheckCredentials(PlatformTwitter, creds); err != nil {
		t.Fatalf("expected valid credentials, got %v", err)
	}
	if err := CheckCredentials(PlatformLinkedIn, creds); !HasErrorCode(err, ErrorPlatformMismatch) {
		t.Fatalf("expected platform mismatch, got %v", err)
	}
	creds.AccessToken = " "
	if err := CheckCredentials(PlatformTwitter, creds); !HasErrorCode(err, ErrorCredentialsMissing) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
	if _, err := RequireMetadata(PlatformFacebook, ConnectionCredentials{Platform: PlatformFacebook}, "page_id"); !HasErrorCode(err, ErrorCredentialsMissing) {
		t.Fatalf("expected missing page_id, got %v", err)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("héllo", 2); got != "hé" {
		t.Fatalf("expected hé, got %q", got)
	}
	if got := TruncateRunes("hi", 10); got != "hi" {
		t.Fatalf("expected untouched input, got %q", got)
	}
}

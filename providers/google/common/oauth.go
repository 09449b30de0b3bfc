// Package common holds the Google OAuth settings shared by Google platforms.
package common

import (
	"slices"
	"strings"

	googleoauth "golang.org/x/oauth2/google"
)

// Endpoints come from x/oauth2/google so they track Google's published values.
var (
	AuthURL  = googleoauth.Endpoint.AuthURL
	TokenURL = googleoauth.Endpoint.TokenURL
)

const RevokeURL = "https://oauth2.googleapis.com/revoke"

var identityScopes = []string{"openid", "profile", "email"}

// OfflineAuthParams asks Google for a refresh token on every consent.
func OfflineAuthParams() map[string]string {
	return map[string]string{
		"access_type":            "offline",
		"prompt":                 "consent",
		"include_granted_scopes": "true",
	}
}

// WithIdentityScopes trims and dedupes scopes, appending the OpenID identity
// scopes when include is set. Order of first appearance is kept.
func WithIdentityScopes(scopes []string, include bool) []string {
	if include {
		scopes = slices.Concat(scopes, identityScopes)
	}
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if scope = strings.TrimSpace(scope); scope != "" && !slices.Contains(out, scope) {
			out = append(out, scope)
		}
	}
	return out
}

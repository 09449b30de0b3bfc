package devkit

import "github.com/goliatone/go-social/core"

// Credentials returns a decrypted credential set for platform.
func Credentials(platform core.Platform, metadata map[string]any) core.ConnectionCredentials {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return core.ConnectionCredentials{
		ConnectionID:   "conn_" + string(platform),
		Platform:       platform,
		ConnectionType: core.ConnectionTypeProfile,
		PlatformUserID: "user_1",
		AccessToken:    "access-token",
		RefreshToken:   "refresh-token",
		Metadata:       metadata,
	}
}

// Pointer helper for optional booleans.
func Bool(value bool) *bool {
	return &value
}

package core

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	TwitterMaxLength        = 280
	TwitterURLWeight        = 23
	LinkedInMaxLength       = 3000
	InstagramMaxLength      = 2200
	FacebookMaxLength       = 63206
	TelegramMaxLength       = 4096
	TelegramCaptionLength   = 1024
	PinterestMaxLength      = 800
	TikTokMaxLength         = 2200
	YouTubeTitleMaxLength   = 100
	YouTubeDescriptionLimit = 5000
)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// ValidateCaption trims the caption, rejects empty input and enforces a rune
// cap when maxRunes is positive.
func ValidateCaption(caption string, maxRunes int) (string, error) {
	trimmed := strings.TrimSpace(caption)
	if trimmed == "" {
		return "", ValidationError("caption", "caption is required")
	}
	if maxRunes > 0 && utf8.RuneCountInString(trimmed) > maxRunes {
		return "", ValidationError("caption", fmt.Sprintf("caption exceeds %d characters", maxRunes))
	}
	return trimmed, nil
}

// ValidateURL requires an absolute http or https URL.
func ValidateURL(field string, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ValidationError(field, field+" is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", ValidationError(field, field+" must be an absolute URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ValidationError(field, field+" must use http or https")
	}
	return trimmed, nil
}

// TweetLength weighs every URL as a shortened link.
func TweetLength(text string) int {
	total := utf8.RuneCountInString(text)
	for _, match := range urlPattern.FindAllString(text, -1) {
		total = total - utf8.RuneCountInString(match) + TwitterURLWeight
	}
	return total
}

// CheckCredentials verifies that creds belong to platform and carry an access
// token. It never performs network calls.
func CheckCredentials(platform Platform, creds ConnectionCredentials) error {
	if creds.Platform != platform {
		return PlatformMismatchError(platform, creds.Platform)
	}
	if strings.TrimSpace(creds.AccessToken) == "" {
		return CredentialsMissingError(platform, "access_token")
	}
	return nil
}

// RequireMetadata returns a metadata value or a missing credential error.
func RequireMetadata(platform Platform, creds ConnectionCredentials, key string) (string, error) {
	value := creds.MetadataString(key)
	if value == "" {
		return "", CredentialsMissingError(platform, key)
	}
	return value, nil
}

// TruncateRunes shortens s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

package providers

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/transport"
)

// PostResult builds a result from a decoded platform response.
func PostResult(platform core.Platform, id string, raw map[string]any) core.PostResult {
	if raw == nil {
		raw = map[string]any{}
	}
	return core.PostResult{Platform: platform, ID: strings.TrimSpace(id), Raw: raw}
}

// DecodeRaw decodes a JSON object body, returning an empty map for empty or
// non object bodies.
func DecodeRaw(res core.TransportResponse) map[string]any {
	out := map[string]any{}
	if len(res.Body) == 0 {
		return out
	}
	if err := transport.DecodeJSON(res, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// String reads a nested string from a decoded payload.
func String(raw map[string]any, path ...string) string {
	var current any = raw
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = node[key]
	}
	switch typed := current.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return fmt.Sprintf("%.0f", typed)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func basicAuth(user string, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// RequireID fails when a publish response carries no identifier.
func RequireID(platform core.Platform, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", core.ProviderError(platform, 0, "response did not include an id", nil)
	}
	return id, nil
}

// FirstNonEmpty returns the first value that is not blank, trimmed.
func FirstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

package core

import "strings"

const RedactedValue = "[REDACTED]"

// sensitiveFragments mark a key as secret when they appear anywhere in it.
var sensitiveFragments = []string{
	"token",
	"secret",
	"password",
	"authorization",
	"api_key",
	"apikey",
	"access_key",
	"refresh",
	"credential",
	"signature",
	"verifier",
}

// traceKeys stay visible even when they contain a sensitive fragment.
var traceKeys = map[string]struct{}{
	"platform":         {},
	"owner_type":       {},
	"owner_id":         {},
	"connection_id":    {},
	"post_id":          {},
	"platform_user_id": {},
	"token_type":       {},
	"idempotency_key":  {},
	"request_id":       {},
}

// RedactSensitiveMap returns a deep copy of metadata with secret-looking
// keys replaced by RedactedValue. The result is never nil.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if isSensitiveKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case map[string]string:
		out := make(map[string]string, len(typed))
		for key, item := range typed {
			if isSensitiveKey(key) {
				item = RedactedValue
			}
			out[key] = item
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, redactValue(item))
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, RedactSensitiveMap(item))
		}
		return out
	}
	return value
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, visible := traceKeys[key]; visible {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

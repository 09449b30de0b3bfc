package transport

import (
	"encoding/json"
	"strings"
)

// ExtractProviderMessage pulls a human readable message out of a platform
// error body. Shapes are tried in the order platforms most commonly use
// them; plain text bodies are returned trimmed.
func ExtractProviderMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		if strings.HasPrefix(trimmed, "<") {
			return ""
		}
		return truncateMessage(trimmed)
	}

	if nested, ok := payload["error"].(map[string]any); ok {
		if message := stringField(nested, "message"); message != "" {
			return message
		}
		if message := stringField(nested, "error_user_msg"); message != "" {
			return message
		}
	}
	for _, key := range []string{"message", "error", "error_description", "description", "detail"} {
		if message := stringField(payload, key); message != "" {
			return message
		}
	}
	if items, ok := payload["errors"].([]any); ok && len(items) > 0 {
		if first, ok := items[0].(map[string]any); ok {
			if message := stringField(first, "message"); message != "" {
				return message
			}
		}
	}
	return stringField(payload, "title")
}

func stringField(payload map[string]any, key string) string {
	value, ok := payload[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func truncateMessage(value string) string {
	const limit = 500
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"platform":      "twitter",
		"connection_id": "conn_1",
		"access_token":  "secret-token",
		"code_verifier": "verifier",
		"authorization": "Bearer secret-token",
		"nested":        map[string]any{"refresh_token": "refresh", "platform_user_id": "u_1"},
		"events":        []any{map[string]any{"client_secret": "s_1"}},
	})

	if redacted["platform"] != "twitter" {
		t.Fatalf("expected platform to remain visible, got %#v", redacted["platform"])
	}
	if redacted["access_token"] != RedactedValue {
		t.Fatalf("expected access_token to be redacted, got %#v", redacted["access_token"])
	}
	if redacted["code_verifier"] != RedactedValue {
		t.Fatalf("expected code_verifier to be redacted, got %#v", redacted["code_verifier"])
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["refresh_token"] != RedactedValue {
		t.Fatalf("expected nested refresh_token to be redacted, got %#v", nested["refresh_token"])
	}
	if nested["platform_user_id"] != "u_1" {
		t.Fatalf("expected nested platform_user_id to remain visible, got %#v", nested["platform_user_id"])
	}
	events := redacted["events"].([]any)
	if events[0].(map[string]any)["client_secret"] != RedactedValue {
		t.Fatalf("expected client_secret in slice to be redacted")
	}
}

func TestRedactSensitiveMapHandlesTypedCollections(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"headers": map[string]string{"Authorization": "Bearer x", "Accept": "application/json"},
		"items":   []map[string]any{{"bot_token": "123:abc", "chat_id": "-100"}},
	})

	headers := redacted["headers"].(map[string]string)
	if headers["Authorization"] != RedactedValue || headers["Accept"] != "application/json" {
		t.Fatalf("unexpected headers %#v", headers)
	}
	items := redacted["items"].([]map[string]any)
	if items[0]["bot_token"] != RedactedValue || items[0]["chat_id"] != "-100" {
		t.Fatalf("unexpected items %#v", items)
	}
	if RedactSensitiveMap(nil) == nil {
		t.Fatalf("expected non-nil map for nil input")
	}
}

package transport

import "testing"

func TestExtractProviderMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"graph error", `{"error":{"message":"(#200) Permissions error","type":"OAuthException"}}`, "(#200) Permissions error"},
		{"top level message", `{"message":"Rate limit exceeded","status":429}`, "Rate limit exceeded"},
		{"oauth error string", `{"error":"invalid_grant","error_description":"Code expired"}`, "invalid_grant"},
		{"description", `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`, "Bad Request: chat not found"},
		{"detail", `{"title":"Unauthorized","detail":"Unauthorized","type":"about:blank"}`, "Unauthorized"},
		{"errors array", `{"errors":[{"message":"Duplicate content"}]}`, "Duplicate content"},
		{"title only", `{"title":"Forbidden"}`, "Forbidden"},
		{"plain text", "  upstream timeout  ", "upstream timeout"},
		{"html", "<html><body>502</body></html>", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		if got := ExtractProviderMessage([]byte(tc.body)); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

package devkit

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Reply is one scripted response of a fake platform route.
type Reply struct {
	Status  int
	Headers map[string]string
	Body    any
}

// RecordedRequest captures what an adapter sent.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers http.Header
	Body    []byte
}

// Form parses an urlencoded body.
func (r RecordedRequest) Form() map[string]string {
	req, err := http.NewRequest(http.MethodPost, "/", strings.NewReader(string(r.Body)))
	if err != nil {
		return map[string]string{}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := req.ParseForm(); err != nil {
		return map[string]string{}
	}
	out := map[string]string{}
	for key := range req.PostForm {
		out[key] = req.PostForm.Get(key)
	}
	return out
}

// JSON decodes the body into a generic map.
func (r RecordedRequest) JSON() map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal(r.Body, &out)
	return out
}

// FakePlatform is an httptest server that replays scripted replies per
// "METHOD /path" route and records every request.
type FakePlatform struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string][]Reply
	served   map[string]int
	requests []RecordedRequest
}

func NewFakePlatform(t testing.TB) *FakePlatform {
	t.Helper()
	fake := &FakePlatform{
		routes: map[string][]Reply{},
		served: map[string]int{},
	}
	fake.Server = httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(fake.Close)
	return fake
}

// On scripts replies for a route. The last reply repeats once the script
// runs out.
func (f *FakePlatform) On(method string, path string, replies ...Reply) *FakePlatform {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := routeKey(method, path)
	f.routes[key] = append(f.routes[key], replies...)
	return f
}

// JSON scripts a single 200 JSON reply.
func (f *FakePlatform) JSON(method string, path string, body any) *FakePlatform {
	return f.On(method, path, Reply{Status: http.StatusOK, Body: body})
}

func (f *FakePlatform) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// RequestsTo filters recorded requests by route.
func (f *FakePlatform) RequestsTo(method string, path string) []RecordedRequest {
	out := []RecordedRequest{}
	for _, req := range f.Requests() {
		if routeKey(req.Method, req.Path) == routeKey(method, path) {
			out = append(out, req)
		}
	}
	return out
}

// Last returns the last request sent to a route.
func (f *FakePlatform) Last(method string, path string) (RecordedRequest, bool) {
	requests := f.RequestsTo(method, path)
	if len(requests) == 0 {
		return RecordedRequest{}, false
	}
	return requests[len(requests)-1], true
}

func (f *FakePlatform) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	query := map[string]string{}
	for key := range r.URL.Query() {
		query[key] = r.URL.Query().Get(key)
	}

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   query,
		Headers: r.Header.Clone(),
		Body:    body,
	})
	key := routeKey(r.Method, r.URL.Path)
	replies := f.routes[key]
	index := f.served[key]
	f.served[key] = index + 1
	f.mu.Unlock()

	if len(replies) == 0 {
		writeReply(w, Reply{
			Status: http.StatusNotFound,
			Body:   map[string]any{"error": map[string]any{"message": "no route for " + key}},
		})
		return
	}
	if index >= len(replies) {
		index = len(replies) - 1
	}
	writeReply(w, replies[index])
}

func writeReply(w http.ResponseWriter, reply Reply) {
	for key, value := range reply.Headers {
		w.Header().Set(key, value)
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	switch body := reply.Body.(type) {
	case nil:
		w.WriteHeader(status)
	case []byte:
		w.WriteHeader(status)
		_, _ = w.Write(body)
	case string:
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func routeKey(method string, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimRight(strings.TrimSpace(path), "/")
}

package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-social/core"
)

// Service is the OAuth surface the handlers drive.
type Service interface {
	BeginAuthorization(ctx context.Context, req core.BeginAuthorizationRequest) (core.BeginAuthorizationResponse, error)
	CompleteCallback(ctx context.Context, in core.CallbackInput) (core.CallbackOutcome, error)
}

// OwnerFunc resolves the local owner for a request. A nil owner defers to the
// service owner resolver.
type OwnerFunc func(r *http.Request) (*core.OwnerRef, error)

type Handler struct {
	service     Service
	owner       OwnerFunc
	redirectURI func(r *http.Request, platform core.Platform) string
	successURL  string
	failureURL  string
}

type HandlerOption func(*Handler)

func WithOwnerFunc(fn OwnerFunc) HandlerOption {
	return func(h *Handler) { h.owner = fn }
}

// WithRedirectURI sets the callback URI sent to providers. When unset the
// platform configuration value is used.
func WithRedirectURI(fn func(r *http.Request, platform core.Platform) string) HandlerOption {
	return func(h *Handler) { h.redirectURI = fn }
}

// WithCompletionRedirects sends the browser to successURL or failureURL after
// the callback instead of writing a JSON document. Query parameters
// platform, state and error_code are appended.
func WithCompletionRedirects(successURL, failureURL string) HandlerOption {
	return func(h *Handler) {
		h.successURL = strings.TrimSpace(successURL)
		h.failureURL = strings.TrimSpace(failureURL)
	}
}

func NewHandler(service Service, opts ...HandlerOption) (*Handler, error) {
	if service == nil {
		return nil, badRequest("inbound: service is required", nil)
	}
	h := &Handler{service: service}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes mounts GET {prefix}/{platform}/authorize and
// GET {prefix}/{platform}/callback.
func (h *Handler) Routes(prefix string) http.Handler {
	prefix = "/" + strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "/" {
		prefix = ""
	}
	mux := http.NewServeMux()
	mux.Handle("GET "+prefix+"/{platform}/authorize", http.HandlerFunc(h.Authorize))
	mux.Handle("GET "+prefix+"/{platform}/callback", http.HandlerFunc(h.Callback))
	return mux
}

// CallbackResponse is the JSON document written by Callback.
type CallbackResponse struct {
	Platform     string `json:"platform,omitempty"`
	State        string `json:"state"`
	ConnectionID string `json:"connection_id,omitempty"`
	Message      string `json:"message"`
	ErrorCode    string `json:"error_code,omitempty"`
}

func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	defer h.recoverJSON(w)

	platform, err := requestPlatform(r)
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := h.resolveOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}
	query := r.URL.Query()
	req := core.BeginAuthorizationRequest{
		Platform: platform,
		Owner:    owner,
		Scopes:   splitList(query.Get("scopes")),
		State:    query.Get("state"),
	}
	if h.redirectURI != nil {
		req.RedirectURI = h.redirectURI(r, platform)
	}

	ctx := WithHTTPExchange(r.Context(), w, r)
	response, err := h.service.BeginAuthorization(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, response.URL, http.StatusFound)
}

func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	defer h.recoverJSON(w)

	query := r.URL.Query()
	platform, err := requestPlatform(r)
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := h.resolveOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in := core.CallbackInput{
		Platform:         platform,
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
		Owner:            owner,
	}
	if h.redirectURI != nil {
		in.RedirectURI = h.redirectURI(r, platform)
	}

	ctx := WithHTTPExchange(r.Context(), w, r)
	outcome, err := h.service.CompleteCallback(ctx, in)
	if err == nil {
		err = outcome.Err
	}
	doc := CallbackResponse{
		Platform: string(outcome.Platform),
		State:    string(outcome.State),
		Message:  outcome.Message,
	}
	if doc.Platform == "" {
		doc.Platform = string(platform)
	}

	if err == nil && outcome.Succeeded() {
		doc.ConnectionID = outcome.Connection.ID
		if doc.Message == "" {
			doc.Message = "connected"
		}
		if h.successURL != "" {
			http.Redirect(w, r, completionURL(h.successURL, doc), http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return
	}

	if err == nil {
		err = serverFault("inbound: callback did not complete")
	}
	status, textCode := statusFor(err)
	doc.ErrorCode = textCode
	if doc.State == "" {
		doc.State = string(core.CallbackErrored)
	}
	if doc.Message == "" {
		doc.Message = core.ErrorMessage(err)
	}
	if h.failureURL != "" {
		http.Redirect(w, r, completionURL(h.failureURL, doc), http.StatusFound)
		return
	}
	writeJSON(w, status, doc)
}

func (h *Handler) resolveOwner(r *http.Request) (*core.OwnerRef, error) {
	if h.owner == nil {
		return nil, nil
	}
	owner, err := h.owner(r)
	if err != nil {
		return nil, err
	}
	if owner != nil {
		if err := owner.Validate(); err != nil {
			return nil, err
		}
	}
	return owner, nil
}

func (h *Handler) recoverJSON(w http.ResponseWriter) {
	recovered := recover()
	if recovered == nil {
		return
	}
	err := serverFault(fmt.Sprintf("inbound: handler panic: %v", recovered))
	writeJSON(w, http.StatusInternalServerError, CallbackResponse{
		State:     string(core.CallbackErrored),
		Message:   err.Message,
		ErrorCode: err.TextCode,
	})
}

func requestPlatform(r *http.Request) (core.Platform, error) {
	raw := strings.TrimSpace(r.PathValue("platform"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("platform"))
	}
	if raw == "" {
		return "", badRequest("inbound: platform is required", nil)
	}
	platform, err := core.ParsePlatform(raw)
	if err != nil {
		return "", badRequest("inbound: unknown platform", map[string]any{"platform": raw})
	}
	return platform, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func completionURL(base string, doc CallbackResponse) string {
	target, err := url.Parse(base)
	if err != nil {
		return base
	}
	values := target.Query()
	if doc.Platform != "" {
		values.Set("platform", doc.Platform)
	}
	values.Set("state", doc.State)
	if doc.ErrorCode != "" {
		values.Set("error_code", doc.ErrorCode)
	}
	target.RawQuery = values.Encode()
	return target.String()
}

func writeError(w http.ResponseWriter, err error) {
	status, textCode := statusFor(err)
	writeJSON(w, status, CallbackResponse{
		State:     string(core.CallbackErrored),
		Message:   core.ErrorMessage(err),
		ErrorCode: textCode,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package inbound

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/gorilla/sessions"
)

const (
	DefaultSessionName = "social-oauth"
	sessionKeyPrefix   = "oauth_verifier:"
)

type exchangeKey struct{}

type exchange struct {
	w http.ResponseWriter
	r *http.Request
}

// WithHTTPExchange attaches the current request and response writer so
// cookie-backed stores can read and write the session.
func WithHTTPExchange(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context {
	return context.WithValue(ctx, exchangeKey{}, exchange{w: w, r: r})
}

func httpExchange(ctx context.Context) (exchange, bool) {
	value, ok := ctx.Value(exchangeKey{}).(exchange)
	if !ok || value.r == nil || value.w == nil {
		return exchange{}, false
	}
	return value, true
}

// NewCookieStore builds a signed cookie store for the OAuth redirect round
// trip. The secret is hashed into a 32 byte key. SameSite is Lax so the
// cookie is sent on the provider's redirect back.
func NewCookieStore(secret string, secure bool, ttl time.Duration) *sessions.CookieStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	key := sha256.Sum256([]byte(secret))
	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// SessionVerifierStore keeps pending authorizations in a gorilla session.
// It implements core.VerifierStore and needs WithHTTPExchange on the context;
// Handler does that for every request.
type SessionVerifierStore struct {
	store sessions.Store
	name  string
	ttl   time.Duration
	now   func() time.Time
}

type SessionOption func(*SessionVerifierStore)

func WithSessionName(name string) SessionOption {
	return func(s *SessionVerifierStore) {
		if name = strings.TrimSpace(name); name != "" {
			s.name = name
		}
	}
}

func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionVerifierStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewSessionVerifierStore(store sessions.Store, opts ...SessionOption) *SessionVerifierStore {
	s := &SessionVerifierStore{
		store: store,
		name:  DefaultSessionName,
		ttl:   10 * time.Minute,
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type sessionRecord struct {
	CodeVerifier string `json:"code_verifier,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	OwnerType    string `json:"owner_type,omitempty"`
	OwnerID      string `json:"owner_id,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	ExpiresAt    int64  `json:"expires_at"`
}

func (s *SessionVerifierStore) Save(ctx context.Context, record core.VerifierRecord) error {
	session, ex, err := s.session(ctx)
	if err != nil {
		return err
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("inbound: oauth state is required")
	}
	now := s.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}
	stored := sessionRecord{
		CodeVerifier: record.CodeVerifier,
		RedirectURI:  record.RedirectURI,
		CreatedAt:    record.CreatedAt.Unix(),
		ExpiresAt:    record.ExpiresAt.Unix(),
	}
	if record.Owner != nil {
		stored.OwnerType = record.Owner.Type
		stored.OwnerID = record.Owner.ID
	}
	encoded, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("inbound: encode oauth state: %w", err)
	}
	session.Values[sessionKey(record.Platform, state)] = string(encoded)
	return session.Save(ex.r, ex.w)
}

// Consume returns the pending record and clears it from the session.
func (s *SessionVerifierStore) Consume(ctx context.Context, platform core.Platform, state string) (core.VerifierRecord, error) {
	session, ex, err := s.session(ctx)
	if err != nil {
		return core.VerifierRecord{}, err
	}
	state = strings.TrimSpace(state)
	key := sessionKey(platform, state)
	raw, ok := session.Values[key].(string)
	if !ok || state == "" {
		return core.VerifierRecord{}, core.ErrVerifierNotFound
	}
	delete(session.Values, key)
	if err := session.Save(ex.r, ex.w); err != nil {
		return core.VerifierRecord{}, err
	}

	var stored sessionRecord
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return core.VerifierRecord{}, core.ErrVerifierNotFound
	}
	record := core.VerifierRecord{
		Platform:     platform,
		State:        state,
		CodeVerifier: stored.CodeVerifier,
		RedirectURI:  stored.RedirectURI,
		CreatedAt:    time.Unix(stored.CreatedAt, 0).UTC(),
		ExpiresAt:    time.Unix(stored.ExpiresAt, 0).UTC(),
	}
	if stored.OwnerType != "" || stored.OwnerID != "" {
		record.Owner = &core.OwnerRef{Type: stored.OwnerType, ID: stored.OwnerID}
	}
	if stored.ExpiresAt > 0 && s.now().UTC().After(record.ExpiresAt) {
		return core.VerifierRecord{}, core.ErrVerifierExpired
	}
	return record, nil
}

func (s *SessionVerifierStore) Discard(ctx context.Context, platform core.Platform, state string) error {
	session, ex, err := s.session(ctx)
	if err != nil {
		return err
	}
	delete(session.Values, sessionKey(platform, strings.TrimSpace(state)))
	return session.Save(ex.r, ex.w)
}

func (s *SessionVerifierStore) session(ctx context.Context) (*sessions.Session, exchange, error) {
	if s == nil || s.store == nil {
		return nil, exchange{}, fmt.Errorf("inbound: session store is not configured")
	}
	ex, ok := httpExchange(ctx)
	if !ok {
		return nil, exchange{}, fmt.Errorf("inbound: session verifier store needs an http exchange in context")
	}
	// A tampered or expired cookie yields a fresh session and an error;
	// the fresh session is still usable.
	session, err := s.store.Get(ex.r, s.name)
	if session == nil {
		return nil, exchange{}, fmt.Errorf("inbound: load session: %w", err)
	}
	return session, ex, nil
}

func sessionKey(platform core.Platform, state string) string {
	return sessionKeyPrefix + string(platform) + ":" + state
}

var _ core.VerifierStore = (*SessionVerifierStore)(nil)

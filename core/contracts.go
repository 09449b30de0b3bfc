package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// ConnectionStore persists sealed connection records. Implementations never
// see plaintext token material.
type ConnectionStore interface {
	Upsert(ctx context.Context, in UpsertConnectionInput) (Connection, error)
	FindActive(ctx context.Context, owner OwnerRef, platform Platform, connectionType string) (Connection, error)
	Get(ctx context.Context, id string) (Connection, error)
	ListByOwner(ctx context.Context, owner OwnerRef) ([]Connection, error)
	UpdateTokens(ctx context.Context, id string, update TokenUpdate) (Connection, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// OAuthFlow is the stateless authorization capability of a platform. It only
// needs client configuration.
type OAuthFlow interface {
	Platform() Platform
	AuthorizationURL(ctx context.Context, req AuthorizationRequest) (AuthorizationURL, error)
	HandleCallback(ctx context.Context, req CallbackRequest) (TokenResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (TokenResult, error)
	// Disconnect revokes the token at the platform. It reports false on any
	// failure and never returns an error.
	Disconnect(ctx context.Context, accessToken string) bool
}

// TokenExtender is implemented by platforms that trade short lived tokens for
// long lived ones instead of issuing refresh tokens.
type TokenExtender interface {
	ExtendAccessToken(ctx context.Context, shortLivedToken string) (TokenResult, error)
}

// Publisher is the stateful publish capability bound to one credential set.
type Publisher interface {
	Platform() Platform
	ShareText(ctx context.Context, caption string) (PostResult, error)
	ShareURL(ctx context.Context, caption string, link string) (PostResult, error)
	ShareImage(ctx context.Context, caption string, imageURL string) (PostResult, error)
	ShareVideo(ctx context.Context, caption string, videoURL string) (PostResult, error)
}

type Adapter interface {
	Platform() Platform
	DefaultConnectionType() string
	ForConnection(ctx context.Context, creds ConnectionCredentials) (Publisher, error)
}

// StandaloneAdapter builds a publisher from static configuration, without a
// stored connection.
type StandaloneAdapter interface {
	Adapter
	Standalone(ctx context.Context) (Publisher, error)
}

type AdapterRegistry interface {
	Register(adapter Adapter) error
	Get(platform Platform) (Adapter, bool)
	List() []Adapter
}

// VerifierStore holds PKCE verifiers between the authorize redirect and the
// callback. Entries are single use.
type VerifierStore interface {
	Save(ctx context.Context, record VerifierRecord) error
	Consume(ctx context.Context, platform Platform, state string) (VerifierRecord, error)
	Discard(ctx context.Context, platform Platform, state string) error
}

// OwnerResolver resolves the authenticated owner for the current request.
// It reports false when nobody is authenticated.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context) (OwnerRef, bool, error)
}

type OwnerResolverFunc func(ctx context.Context) (OwnerRef, bool, error)

func (f OwnerResolverFunc) ResolveOwner(ctx context.Context) (OwnerRef, bool, error) {
	return f(ctx)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

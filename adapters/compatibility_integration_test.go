package adapters_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-social/adapters/gocommand"
	"github.com/goliatone/go-social/adapters/gojob"
	"github.com/goliatone/go-social/adapters/gologger"
	socialcommand "github.com/goliatone/go-social/command"
	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/providers/devkit"
	"github.com/goliatone/go-social/providers/twitter"
	"github.com/goliatone/go-social/security"
)

func TestRuntimeCompatibility_RefreshJobThroughCommandQueueAndWorker(t *testing.T) {
	ctx := context.Background()

	fake := devkit.NewFakePlatform(t)
	fake.JSON(http.MethodPost, "/oauth2/token", map[string]any{
		"access_token":  "access-2",
		"refresh_token": "refresh-2",
		"token_type":    "bearer",
		"expires_in":    7200,
	})
	twitterCfg := twitter.DefaultConfig()
	twitterCfg.ClientID = "client"
	twitterCfg.ClientSecret = "secret"
	twitterCfg.TokenURL = fake.URL + "/oauth2/token"
	twitterCfg.Runtime = providers.Runtime{RetryAttempts: 1, BaseDelay: time.Millisecond}
	adapter, err := twitter.New(twitterCfg)
	if err != nil {
		t.Fatalf("twitter adapter: %v", err)
	}
	registry, err := core.NewPlatformRegistry(adapter)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	secrets, err := security.NewAppKeySecretProviderFromString("compat-app-key")
	if err != nil {
		t.Fatalf("secret provider: %v", err)
	}

	jobs := &memoryQueue{}
	provider := &compatProvider{logger: compatLogger{}}
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithAdapterRegistry(registry),
		core.WithSecretProvider(secrets),
		core.WithJobEnqueuer(gojob.NewEnqueuerAdapter(jobs)),
		core.WithLoggerProvider(provider),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	expired := time.Now().UTC().Add(-time.Minute)
	connection, err := svc.Connections().Upsert(ctx, core.OwnerRef{Type: "user", ID: "u1"}, core.PlatformTwitter, core.ConnectionTypeProfile, core.ConnectionFields{
		PlatformUserID: "42",
		AccessToken:    "access-1",
		RefreshToken:   "refresh-1",
		ExpiresAt:      &expired,
	})
	if err != nil {
		t.Fatalf("seed connection: %v", err)
	}

	commands := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := gocommand.RegisterService(commands, svc)
	if err != nil {
		t.Fatalf("register service: %v", err)
	}
	defer subs.Unsubscribe()
	if err := commands.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}

	if err := gocommand.Dispatch(ctx, socialcommand.EnqueueTokenRefreshMessage{ConnectionID: connection.ID}); err != nil {
		t.Fatalf("dispatch enqueue refresh: %v", err)
	}
	if jobs.len() != 1 {
		t.Fatalf("expected one queued job, got %d", jobs.len())
	}

	logging := gologger.ForService("", svc.Dependencies())
	if logging.JobProvider == nil || logging.JobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	worker := gojob.NewRefreshWorker(jobs, svc, gojob.WithHook(logging.RefreshHook()))
	processed, err := worker.RunOnce(ctx)
	if err != nil || !processed {
		t.Fatalf("expected processed refresh job, got processed=%v err=%v", processed, err)
	}
	if jobs.acked != 1 {
		t.Fatalf("expected refresh job to be acked, got %d", jobs.acked)
	}

	refreshed, err := svc.Connections().Get(ctx, connection.ID)
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	token, err := svc.Connections().AccessToken(ctx, refreshed)
	if err != nil {
		t.Fatalf("open access token: %v", err)
	}
	if token != "access-2" {
		t.Fatalf("expected refreshed token, got %q", token)
	}
	if string(refreshed.AccessToken) == "access-2" {
		t.Fatalf("expected token sealed at rest")
	}
	if refreshForm, ok := fake.Last(http.MethodPost, "/oauth2/token"); !ok || refreshForm.Form()["refresh_token"] != "refresh-1" {
		t.Fatalf("expected refresh grant with the stored refresh token")
	}
}

type memoryQueue struct {
	mu       sync.Mutex
	messages []*job.ExecutionMessage
	acked    int
}

func (q *memoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

func (q *memoryQueue) Dequeue(context.Context) (queue.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil, nil
	}
	next := q.messages[0]
	q.messages = q.messages[1:]
	return &memoryDelivery{queue: q, msg: next}, nil
}

func (q *memoryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

type memoryDelivery struct {
	queue *memoryQueue
	msg   *job.ExecutionMessage
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	d.queue.acked++
	d.queue.mu.Unlock()
	return nil
}

func (d *memoryDelivery) Nack(ctx context.Context, opts queue.NackOptions) error {
	if opts.Requeue {
		return d.queue.Enqueue(ctx, d.msg)
	}
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }

package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-social/core"

	"github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"
)

// RefreshHandler runs one delivered token refresh job. *core.Service
// implements it.
type RefreshHandler interface {
	HandleRefreshJob(ctx context.Context, delivery core.JobDelivery, attempt int) error
}

// RefreshWorker pulls token refresh jobs from a go-job queue and hands them
// to the service. Attempts are counted per idempotency key for the life of
// the worker.
type RefreshWorker struct {
	dequeuer queue.Dequeuer
	handler  RefreshHandler
	policy   RetryPolicy
	hook     core.JobWorkerHook
	idle     time.Duration

	mu       sync.Mutex
	attempts map[string]int
}

type WorkerOption func(*RefreshWorker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *RefreshWorker) { w.policy = policy }
}

func WithHook(hook core.JobWorkerHook) WorkerOption {
	return func(w *RefreshWorker) { w.hook = hook }
}

// WithIdleDelay sets the pause after an empty or failed dequeue.
func WithIdleDelay(delay time.Duration) WorkerOption {
	return func(w *RefreshWorker) { w.idle = delay }
}

func NewRefreshWorker(dequeuer queue.Dequeuer, handler RefreshHandler, opts ...WorkerOption) *RefreshWorker {
	w := &RefreshWorker{
		dequeuer: dequeuer,
		handler:  handler,
		policy:   DefaultRetryPolicy(),
		idle:     time.Second,
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// RunOnce processes a single delivery. It reports false when the queue had
// nothing to deliver.
func (w *RefreshWorker) RunOnce(ctx context.Context) (bool, error) {
	if w == nil || w.dequeuer == nil || w.handler == nil {
		return false, fmt.Errorf("gojob: refresh worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}

	message := FromExecutionMessage(delivery.Message())
	key := attemptKey(message)
	attempt := w.nextAttempt(key)
	event := core.JobWorkerEvent{Message: message, Attempt: attempt, StartedAt: time.Now().UTC()}
	w.emit(ctx, "start", event)

	err = w.handler.HandleRefreshJob(ctx, NewDeliveryAdapter(delivery, w.policy, attempt), attempt)
	event.Duration = time.Since(event.StartedAt)
	event.Err = err
	if err == nil {
		w.forget(key)
		w.emit(ctx, "success", event)
		return true, nil
	}
	if w.policy.MaxAttempts > 0 && attempt >= w.policy.MaxAttempts {
		w.forget(key)
		w.emit(ctx, "failure", event)
	} else {
		w.emit(ctx, "retry", event)
	}
	return true, err
}

// Run processes deliveries until ctx is cancelled. Job failures are reported
// through the hook and do not stop the loop.
func (w *RefreshWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed, err := w.RunOnce(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.idle):
		}
	}
}

func (w *RefreshWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *RefreshWorker) forget(key string) {
	w.mu.Lock()
	delete(w.attempts, key)
	w.mu.Unlock()
}

func (w *RefreshWorker) emit(ctx context.Context, phase string, event core.JobWorkerEvent) {
	if w.hook == nil {
		return
	}
	switch phase {
	case "start":
		w.hook.OnStart(ctx, event)
	case "success":
		w.hook.OnSuccess(ctx, event)
	case "retry":
		w.hook.OnRetry(ctx, event)
	default:
		w.hook.OnFailure(ctx, event)
	}
}

func attemptKey(message *core.JobExecutionMessage) string {
	if message == nil {
		return ""
	}
	if key := strings.TrimSpace(message.IdempotencyKey); key != "" {
		return key
	}
	return message.JobID + ":" + fmt.Sprint(message.Parameters["connection_id"])
}

// LoggingHook writes refresh job lifecycle events to a glog logger.
type LoggingHook struct {
	Logger glog.Logger
}

func (h LoggingHook) OnStart(_ context.Context, event core.JobWorkerEvent) {
	glog.Ensure(h.Logger).Debug("refresh job started", eventFields(event)...)
}

func (h LoggingHook) OnSuccess(_ context.Context, event core.JobWorkerEvent) {
	glog.Ensure(h.Logger).Info("refresh job succeeded", eventFields(event)...)
}

func (h LoggingHook) OnFailure(_ context.Context, event core.JobWorkerEvent) {
	glog.Ensure(h.Logger).Error("refresh job failed", eventFields(event)...)
}

func (h LoggingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	glog.Ensure(h.Logger).Warn("refresh job will retry", eventFields(event)...)
}

func eventFields(event core.JobWorkerEvent) []any {
	fields := []any{"attempt", event.Attempt}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID, "connection_id", fmt.Sprint(event.Message.Parameters["connection_id"]))
	}
	if event.Duration > 0 {
		fields = append(fields, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", core.ErrorMessage(event.Err))
	}
	return fields
}

var (
	_ RefreshHandler     = (*core.Service)(nil)
	_ core.JobWorkerHook = LoggingHook{}
)

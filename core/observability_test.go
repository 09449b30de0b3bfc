package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type metricPoint struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

type memoryMetrics struct {
	mu     sync.Mutex
	points []metricPoint
}

func (m *memoryMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.add(metricPoint{kind: "counter", name: name, value: float64(value), tags: maps.Clone(tags)})
}

func (m *memoryMetrics) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.add(metricPoint{kind: "histogram", name: name, value: value, tags: maps.Clone(tags)})
}

func (m *memoryMetrics) add(p metricPoint) {
	m.mu.Lock()
	m.points = append(m.points, p)
	m.mu.Unlock()
}

// find returns the first point of kind and name with the given status tag.
func (m *memoryMetrics) find(kind, name, status string) (metricPoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.points, func(p metricPoint) bool {
		return p.kind == kind && p.name == name && p.tags["status"] == status
	})
	if i < 0 {
		return metricPoint{}, false
	}
	return m.points[i], true
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]any
}

type logSink struct {
	mu      sync.Mutex
	entries []logEntry
}

// recordingLogger writes into a shared sink; WithFields derives a child with
// extra default fields.
type recordingLogger struct {
	sink   *logSink
	fields map[string]any
}

func newCaptureLogger() *recordingLogger {
	return &recordingLogger{sink: &logSink{}, fields: map[string]any{}}
}

func (l *recordingLogger) WithFields(fields map[string]any) Logger {
	merged := maps.Clone(l.fields)
	maps.Copy(merged, fields)
	return &recordingLogger{sink: l.sink, fields: merged}
}

func (l *recordingLogger) WithContext(context.Context) Logger { return l }

func (l *recordingLogger) Trace(msg string, args ...any) { l.write("trace", msg, args) }
func (l *recordingLogger) Debug(msg string, args ...any) { l.write("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.write("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.write("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.write("error", msg, args) }
func (l *recordingLogger) Fatal(msg string, args ...any) { l.write("fatal", msg, args) }

func (l *recordingLogger) write(level, msg string, args []any) {
	fields := maps.Clone(l.fields)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	l.sink.mu.Lock()
	l.sink.entries = append(l.sink.entries, logEntry{level: level, msg: msg, fields: fields})
	l.sink.mu.Unlock()
}

func (l *recordingLogger) snapshot() []logEntry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return slices.Clone(l.sink.entries)
}

func (l *recordingLogger) logged(level, msg, eventType string) bool {
	return slices.ContainsFunc(l.snapshot(), func(e logEntry) bool {
		return e.level == level && e.msg == msg && e.fields["event_type"] == eventType
	})
}

func newObservedService(t *testing.T, opts ...Option) (*Service, *memoryMetrics, *recordingLogger) {
	t.Helper()
	metrics := &memoryMetrics{}
	logger := newCaptureLogger()
	opts = append(opts,
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	svc, err := NewService(DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, metrics, logger
}

func TestObservedAuthorizeRecordsSuccess(t *testing.T) {
	registry, err := NewPlatformRegistry(newStubAdapter(PlatformTwitter))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc, metrics, logger := newObservedService(t, WithAdapterRegistry(registry))

	if _, err := svc.BeginAuthorization(context.Background(), BeginAuthorizationRequest{
		Platform:    PlatformTwitter,
		RedirectURI: "https://app.example/callback",
	}); err != nil {
		t.Fatalf("begin authorization: %v", err)
	}

	counter, ok := metrics.find("counter", "social.authorize.total", "success")
	if !ok {
		t.Fatalf("expected social.authorize.total success counter")
	}
	if counter.tags["platform"] != "twitter" {
		t.Fatalf("expected platform tag, got %#v", counter.tags)
	}
	if _, ok := metrics.find("histogram", "social.authorize.duration_ms", "success"); !ok {
		t.Fatalf("expected social.authorize.duration_ms histogram")
	}
	if !logger.logged("info", "authorize succeeded", "authorize") {
		t.Fatalf("expected authorize succeeded log, got %#v", logger.snapshot())
	}
}

func TestObservedShareRecordsDispatchFailure(t *testing.T) {
	svc, metrics, logger := newObservedService(t)

	_, err := svc.Share(context.Background(), ShareRequest{
		Owner:     OwnerRef{Type: "user", ID: "usr_1"},
		Operation: ShareOperation("share_poll"),
		Platforms: []Platform{PlatformTwitter},
	})
	if err == nil {
		t.Fatalf("expected unknown operation to fail")
	}
	if _, ok := metrics.find("counter", "social.dispatch.total", "failure"); !ok {
		t.Fatalf("expected dispatch failure counter")
	}
	if !logger.logged("error", "dispatch failed", "dispatch") {
		t.Fatalf("expected dispatch failure log")
	}
}

func TestObservedFailureLiftsErrorDetails(t *testing.T) {
	svc, metrics, logger := newObservedService(t)

	failure := goerrors.New("Invalid access token", goerrors.CategoryExternal).
		WithCode(502).
		WithTextCode(ErrorProvider).
		WithMetadata(map[string]any{
			"platform":      "linkedin",
			"request_id":    "req_123",
			"refresh_token": "secret_refresh_token",
		})
	svc.observeOperation(context.Background(), time.Now().Add(-100*time.Millisecond), "refresh", failure,
		map[string]any{"connection_id": "conn_1"})

	entries := logger.snapshot()
	if len(entries) == 0 {
		t.Fatalf("expected a log entry")
	}
	last := entries[len(entries)-1].fields
	if last["error_category"] != fmt.Sprint(goerrors.CategoryExternal) {
		t.Fatalf("unexpected error_category %#v", last["error_category"])
	}
	if last["error_text_code"] != ErrorProvider {
		t.Fatalf("unexpected error_text_code %#v", last["error_text_code"])
	}
	if last["platform"] != "linkedin" {
		t.Fatalf("expected platform lifted from error metadata, got %#v", last["platform"])
	}
	metadata, ok := last["error_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected error_metadata map, got %#v", last["error_metadata"])
	}
	if metadata["refresh_token"] != RedactedValue || metadata["request_id"] != "req_123" {
		t.Fatalf("unexpected redaction result %#v", metadata)
	}
	if _, ok := metrics.find("counter", "social.refresh.total", "failure"); !ok {
		t.Fatalf("expected refresh failure counter")
	}
}

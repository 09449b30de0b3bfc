package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-social/core"
)

type line struct {
	level string
	msg   string
	args  []any
}

// tapeLogger records every call. name identifies which logger was picked.
type tapeLogger struct {
	name  string
	lines []line
}

func (l *tapeLogger) add(level, msg string, args []any) {
	l.lines = append(l.lines, line{level: level, msg: msg, args: append([]any(nil), args...)})
}

func (l *tapeLogger) Trace(msg string, args ...any)           { l.add("trace", msg, args) }
func (l *tapeLogger) Debug(msg string, args ...any)           { l.add("debug", msg, args) }
func (l *tapeLogger) Info(msg string, args ...any)            { l.add("info", msg, args) }
func (l *tapeLogger) Warn(msg string, args ...any)            { l.add("warn", msg, args) }
func (l *tapeLogger) Error(msg string, args ...any)           { l.add("error", msg, args) }
func (l *tapeLogger) Fatal(msg string, args ...any)           { l.add("fatal", msg, args) }
func (l *tapeLogger) WithContext(context.Context) glog.Logger { return l }

func (l *tapeLogger) last() line {
	if len(l.lines) == 0 {
		return line{}
	}
	return l.lines[len(l.lines)-1]
}

type namedProvider struct {
	logger    *tapeLogger
	requested []string
}

func (p *namedProvider) GetLogger(name string) glog.Logger {
	p.requested = append(p.requested, name)
	return p.logger
}

func TestResolvePrecedence(t *testing.T) {
	direct := &tapeLogger{name: "direct"}
	provider := &namedProvider{logger: &tapeLogger{name: "provider"}}

	if _, got := Resolve("social", provider, direct); got.(*tapeLogger).name != "provider" {
		t.Fatalf("provider should win over a direct logger")
	}
	wrapped, got := Resolve("social", nil, direct)
	if got.(*tapeLogger).name != "direct" || wrapped == nil {
		t.Fatalf("expected direct logger and a provider wrapping it")
	}
	if _, got := Resolve("social", nil, nil); got == nil {
		t.Fatalf("expected nop fallback")
	}
}

func TestResolveForJobBridgesToGoJob(t *testing.T) {
	sink := &tapeLogger{name: "provider"}
	provider := &namedProvider{logger: sink}

	logging := ResolveForJob("  ", provider, nil)
	if logging.JobProvider == nil || logging.JobLogger == nil {
		t.Fatalf("expected go-job bridges, got %#v", logging)
	}
	if len(provider.requested) == 0 || provider.requested[0] != DefaultJobLoggerName {
		t.Fatalf("blank name should resolve %q, requested %v", DefaultJobLoggerName, provider.requested)
	}

	logging.JobProvider.GetLogger("social.refresh").Info("token refreshed", "connection_id", "conn_3")
	got := sink.last()
	if got.msg != "token refreshed" || len(got.args) != 2 || got.args[1] != "conn_3" {
		t.Fatalf("expected bridged call, got %#v", got)
	}
}

func TestForServiceFollowsServiceLogger(t *testing.T) {
	serviceLogger := &tapeLogger{name: "service"}
	logging := ForService("social.refresh", core.ServiceDependencies{Logger: serviceLogger})

	logging.JobLogger.Info("refreshed", "connection_id", "conn_1")
	if serviceLogger.last().msg != "refreshed" {
		t.Fatalf("expected go-job logger to write to the service logger")
	}

	hook := logging.RefreshHook()
	hook.OnSuccess(context.Background(), core.JobWorkerEvent{Attempt: 1, Message: core.RefreshJobMessage("conn_7")})
	if got := serviceLogger.last(); got.level != "info" || got.msg != "refresh job succeeded" {
		t.Fatalf("expected refresh success logged, got %#v", got)
	}
}

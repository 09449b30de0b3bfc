package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-social/adapters/gojob"
	"github.com/goliatone/go-social/core"
)

// DefaultJobLoggerName names the logger used by background refresh workers.
const DefaultJobLoggerName = "social.jobs"

// JobLogging is a resolved glog setup together with its go-job bridges.
type JobLogging struct {
	Provider    glog.LoggerProvider
	Logger      glog.Logger
	JobProvider job.LoggerProvider
	JobLogger   job.Logger
}

// Resolve picks provider over logger over nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ResolveForJob resolves name against provider and logger. An empty name
// falls back to DefaultJobLoggerName.
func ResolveForJob(name string, provider glog.LoggerProvider, logger glog.Logger) JobLogging {
	if name = strings.TrimSpace(name); name == "" {
		name = DefaultJobLoggerName
	}
	var out JobLogging
	out.Provider, out.Logger = Resolve(name, provider, logger)
	if out.Provider != nil {
		out.JobProvider = job.GoLoggerProvider(out.Provider)
	}
	if out.Logger != nil {
		out.JobLogger = job.GoLogger(out.Logger)
	}
	return out
}

// ForService hands a go-job worker the same logging setup the social
// service was built with.
func ForService(name string, deps core.ServiceDependencies) JobLogging {
	return ResolveForJob(name, deps.LoggerProvider, deps.Logger)
}

// RefreshHook is a refresh worker hook that logs through the resolved logger.
func (l JobLogging) RefreshHook() gojob.LoggingHook {
	return gojob.LoggingHook{Logger: l.Logger}
}

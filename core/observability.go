package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// NopMetricsRecorder discards every measurement.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// metricTagKeys are the log fields promoted to metric tags when present.
var metricTagKeys = []string{"platform", "owner_type", "connection_id"}

// observeOperation emits one structured log line, a counter and a duration
// histogram for a service operation. Fields are redacted before logging.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	elapsed := time.Since(startedAt).Milliseconds()

	entry := RedactSensitiveMap(fields)
	entry["event_type"] = operation
	entry["status"] = status
	entry["duration_ms"] = elapsed
	if err != nil {
		entry["error"] = err.Error()
		addErrorDetails(entry, err)
	}

	tags := map[string]string{"operation": operation, "status": status}
	for _, key := range metricTagKeys {
		raw, ok := entry[key]
		if !ok || raw == nil {
			continue
		}
		if value := strings.TrimSpace(fmt.Sprint(raw)); value != "" {
			tags[key] = value
		}
	}

	if s.metricsRecorder != nil {
		prefix := "social." + operation
		s.metricsRecorder.IncCounter(ctx, prefix+".total", 1, maps.Clone(tags))
		s.metricsRecorder.ObserveHistogram(ctx, prefix+".duration_ms", float64(elapsed), maps.Clone(tags))
	}

	if err != nil {
		s.logError(ctx, operation+" failed", entry)
		return
	}
	s.logInfo(ctx, operation+" succeeded", entry)
}

// addErrorDetails copies the category, text code and redacted metadata of a
// rich error. A platform named in the metadata fills a missing platform field.
func addErrorDetails(entry map[string]any, err error) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return
	}
	entry["error_category"] = fmt.Sprint(rich.Category)
	if rich.TextCode != "" {
		entry["error_text_code"] = rich.TextCode
	}
	if len(rich.Metadata) == 0 {
		return
	}
	entry["error_metadata"] = RedactSensitiveMap(rich.Metadata)
	if platform, ok := rich.Metadata["platform"]; ok {
		if _, set := entry["platform"]; !set {
			entry["platform"] = platform
		}
	}
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	if logger := s.contextLogger(ctx, fields); logger != nil {
		logger.Info(message, keyValues(fields)...)
	}
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	if logger := s.contextLogger(ctx, fields); logger != nil {
		logger.Error(message, keyValues(fields)...)
	}
}

func (s *Service) contextLogger(ctx context.Context, fields map[string]any) Logger {
	if s == nil || s.logger == nil {
		return nil
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if withFields, ok := logger.(FieldsLogger); ok {
		copied := maps.Clone(fields)
		if copied == nil {
			copied = map[string]any{}
		}
		logger = withFields.WithFields(copied)
	}
	return logger
}

// keyValues flattens fields into sorted key/value pairs.
func keyValues(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(operation)))
}

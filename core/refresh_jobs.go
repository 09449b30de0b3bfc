package core

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	RefreshJobID         = "social.token.refresh"
	refreshJobScriptPath = "social/token_refresh"
	refreshJobDedup      = "drop"
	refreshJobMaxDelay   = 15 * time.Minute
)

// EnqueueTokenRefresh schedules a background refresh of one connection.
func (s *Service) EnqueueTokenRefresh(ctx context.Context, connectionID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"connection_id": connectionID}
	defer func() {
		s.observeOperation(ctx, startedAt, "enqueue_refresh", err, fields)
	}()

	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		err = ValidationError("connection_id", "connection id is required")
		return err
	}
	if s == nil || s.jobEnqueuer == nil {
		err = ConfigurationError("", "job enqueuer is required for token refresh jobs")
		return err
	}
	err = s.jobEnqueuer.Enqueue(ctx, RefreshJobMessage(connectionID))
	if err != nil {
		err = s.mapError(err)
	}
	return err
}

// EnqueueExpiringRefreshes schedules refreshes for the owner's active
// connections that expire within the window. It returns how many jobs were
// enqueued.
func (s *Service) EnqueueExpiringRefreshes(ctx context.Context, owner OwnerRef, within time.Duration) (int, error) {
	if within <= 0 {
		within = defaultConnectionRefreshSkew
	}
	connections, err := s.ListConnections(ctx, owner)
	if err != nil {
		return 0, err
	}
	deadline := s.currentTime().Add(within)
	enqueued := 0
	for _, connection := range connections {
		if !connection.IsActive || connection.ExpiresAt == nil || connection.ExpiresAt.After(deadline) {
			continue
		}
		if err := s.EnqueueTokenRefresh(ctx, connection.ID); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

func RefreshJobMessage(connectionID string) *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID:          RefreshJobID,
		ScriptPath:     refreshJobScriptPath,
		Parameters:     map[string]any{"connection_id": connectionID},
		IdempotencyKey: RefreshJobID + ":" + connectionID,
		DedupPolicy:    refreshJobDedup,
	}
}

// HandleRefreshJob runs a delivered refresh job, acking on success and
// nacking with exponential delay on failure.
func (s *Service) HandleRefreshJob(ctx context.Context, delivery JobDelivery, attempt int) error {
	if delivery == nil {
		return fmt.Errorf("core: job delivery is required")
	}
	msg := delivery.Message()
	if msg == nil || msg.JobID != RefreshJobID {
		reason := "unexpected job message"
		if nackErr := delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: reason}); nackErr != nil {
			return nackErr
		}
		return fmt.Errorf("core: %s", reason)
	}
	connectionID := strings.TrimSpace(fmt.Sprint(msg.Parameters["connection_id"]))
	if connectionID == "" || connectionID == "<nil>" {
		if nackErr := delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: "connection_id missing"}); nackErr != nil {
			return nackErr
		}
		return ValidationError("connection_id", "connection id is required")
	}

	if _, err := s.RefreshConnection(ctx, RefreshConnectionRequest{ConnectionID: connectionID}); err != nil {
		nackErr := delivery.Nack(ctx, JobNackOptions{
			Delay:   refreshRetryDelay(attempt),
			Requeue: !IsConnectionNotFound(err) && !IsCryptoError(err),
			Reason:  ErrorMessage(err),
		})
		if nackErr != nil {
			return nackErr
		}
		return err
	}
	return delivery.Ack(ctx)
}

func refreshRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	if delay > refreshJobMaxDelay {
		return refreshJobMaxDelay
	}
	return delay
}

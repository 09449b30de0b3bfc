package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type ShareOperation string

const (
	OperationShareText  ShareOperation = "share_text"
	OperationShareURL   ShareOperation = "share_url"
	OperationShareImage ShareOperation = "share_image"
	OperationShareVideo ShareOperation = "share_video"
)

func (o ShareOperation) Valid() bool {
	switch o {
	case OperationShareText, OperationShareURL, OperationShareImage, OperationShareVideo:
		return true
	default:
		return false
	}
}

// ShareRequest fans one publish operation out to several platforms. URL is
// the link, image or video URL depending on the operation.
type ShareRequest struct {
	Owner          OwnerRef
	Platforms      []Platform
	Operation      ShareOperation
	Caption        string
	URL            string
	ConnectionType string
}

// AggregateReport holds the per platform outcome of a dispatch. Every
// requested platform appears in exactly one of Results or Errors.
type AggregateReport struct {
	Operation      ShareOperation
	Results        map[Platform]PostResult
	Errors         map[Platform]string
	Failures       map[Platform]error `json:"-"`
	SuccessCount   int
	ErrorCount     int
	TotalPlatforms int
}

func newAggregateReport(operation ShareOperation) AggregateReport {
	return AggregateReport{
		Operation: operation,
		Results:   map[Platform]PostResult{},
		Errors:    map[Platform]string{},
		Failures:  map[Platform]error{},
	}
}

func (r *AggregateReport) recordSuccess(platform Platform, result PostResult) {
	r.Results[platform] = result
	r.SuccessCount++
}

func (r *AggregateReport) recordFailure(platform Platform, err error) {
	r.Errors[platform] = ErrorMessage(err)
	r.Failures[platform] = err
	r.ErrorCount++
}

func (r AggregateReport) AllSucceeded() bool {
	return r.TotalPlatforms > 0 && r.SuccessCount == r.TotalPlatforms
}

func (r AggregateReport) PartiallySucceeded() bool {
	return r.SuccessCount > 0 && r.ErrorCount > 0
}

func (r AggregateReport) FullyFailed() bool {
	return r.TotalPlatforms > 0 && r.SuccessCount == 0
}

func (s *Service) ShareText(ctx context.Context, owner OwnerRef, platforms []Platform, caption string) (AggregateReport, error) {
	return s.Share(ctx, ShareRequest{Owner: owner, Platforms: platforms, Operation: OperationShareText, Caption: caption})
}

func (s *Service) ShareURL(ctx context.Context, owner OwnerRef, platforms []Platform, caption string, link string) (AggregateReport, error) {
	return s.Share(ctx, ShareRequest{Owner: owner, Platforms: platforms, Operation: OperationShareURL, Caption: caption, URL: link})
}

func (s *Service) ShareImage(ctx context.Context, owner OwnerRef, platforms []Platform, caption string, imageURL string) (AggregateReport, error) {
	return s.Share(ctx, ShareRequest{Owner: owner, Platforms: platforms, Operation: OperationShareImage, Caption: caption, URL: imageURL})
}

func (s *Service) ShareVideo(ctx context.Context, owner OwnerRef, platforms []Platform, caption string, videoURL string) (AggregateReport, error) {
	return s.Share(ctx, ShareRequest{Owner: owner, Platforms: platforms, Operation: OperationShareVideo, Caption: caption, URL: videoURL})
}

// Share runs the operation on each distinct platform. Per platform failures
// are recorded in the report; the returned error only reports a malformed
// request.
func (s *Service) Share(ctx context.Context, req ShareRequest) (report AggregateReport, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"operation":  string(req.Operation),
		"owner_type": req.Owner.Type,
		"owner_id":   req.Owner.ID,
	}
	defer func() {
		fields["success_count"] = report.SuccessCount
		fields["error_count"] = report.ErrorCount
		fields["total_platforms"] = report.TotalPlatforms
		s.observeOperation(ctx, startedAt, "dispatch", err, fields)
	}()

	report = newAggregateReport(req.Operation)
	if !req.Operation.Valid() {
		err = ValidationError("operation", fmt.Sprintf("unsupported share operation %q", req.Operation))
		return report, err
	}
	if err = req.Owner.Validate(); err != nil {
		err = s.mapError(err)
		return report, err
	}

	targets := dedupePlatforms(req.Platforms)
	if len(targets) == 0 {
		err = ValidationError("platforms", "at least one platform is required")
		return report, err
	}
	report.TotalPlatforms = len(targets)

	if !s.config.Dispatch.Parallel || len(targets) == 1 {
		for _, target := range targets {
			result, shareErr := s.shareOne(ctx, req, target)
			if shareErr != nil {
				report.recordFailure(target.platform, shareErr)
				continue
			}
			report.recordSuccess(target.platform, result)
		}
		return report, nil
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.config.DispatchConcurrency())
	for _, target := range targets {
		group.Go(func() error {
			result, shareErr := s.shareOne(groupCtx, req, target)
			mu.Lock()
			defer mu.Unlock()
			if shareErr != nil {
				report.recordFailure(target.platform, shareErr)
				return nil
			}
			report.recordSuccess(target.platform, result)
			return nil
		})
	}
	_ = group.Wait()
	return report, nil
}

type dispatchTarget struct {
	platform Platform
	err      error
}

func dedupePlatforms(platforms []Platform) []dispatchTarget {
	seen := map[Platform]struct{}{}
	out := make([]dispatchTarget, 0, len(platforms))
	for _, raw := range platforms {
		platform, err := normalizePlatformInput(raw)
		if _, ok := seen[platform]; ok {
			continue
		}
		seen[platform] = struct{}{}
		out = append(out, dispatchTarget{platform: platform, err: err})
	}
	return out
}

func (s *Service) shareOne(ctx context.Context, req ShareRequest, target dispatchTarget) (result PostResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = ProviderError(target.platform, 0, fmt.Sprintf("%s publish panicked: %v", target.platform, recovered), nil)
		}
		fields := map[string]any{
			"platform":  string(target.platform),
			"operation": string(req.Operation),
		}
		if result.ID != "" {
			fields["post_id"] = result.ID
		}
		if err != nil {
			fields["error"] = ErrorMessage(err)
			s.logError(ctx, "publish failed", fields)
			return
		}
		s.logInfo(ctx, "publish succeeded", fields)
	}()

	if target.err != nil {
		return PostResult{}, target.err
	}
	owner := req.Owner
	publisher, err := s.Platform(ctx, target.platform, &owner, req.ConnectionType)
	if err != nil {
		return PostResult{}, err
	}
	s.logInfo(ctx, "publish attempted", map[string]any{
		"platform":  string(target.platform),
		"operation": string(req.Operation),
	})

	switch req.Operation {
	case OperationShareText:
		result, err = publisher.ShareText(ctx, req.Caption)
	case OperationShareURL:
		result, err = publisher.ShareURL(ctx, req.Caption, req.URL)
	case OperationShareImage:
		result, err = publisher.ShareImage(ctx, req.Caption, req.URL)
	case OperationShareVideo:
		result, err = publisher.ShareVideo(ctx, req.Caption, req.URL)
	}
	if err != nil {
		return PostResult{}, err
	}
	if result.Platform == "" {
		result.Platform = target.platform
	}
	return result, nil
}

// Platform returns a publisher for direct, platform specific calls. With a
// nil owner only standalone platforms resolve; OAuth platforms fail with
// "OAuth connection required". An empty connectionType uses the adapter
// default.
func (s *Service) Platform(ctx context.Context, platform Platform, owner *OwnerRef, connectionType string) (Publisher, error) {
	platform, err := normalizePlatformInput(platform)
	if err != nil {
		return nil, err
	}
	adapter, err := s.resolveAdapter(platform)
	if err != nil {
		return nil, err
	}
	standalone, isStandalone := adapter.(StandaloneAdapter)

	if owner == nil {
		if isStandalone {
			return standalone.Standalone(ctx)
		}
		return nil, ConnectionRequiredError(platform)
	}
	if err := owner.Validate(); err != nil {
		return nil, s.mapError(err)
	}

	connectionType = strings.TrimSpace(connectionType)
	if connectionType == "" {
		connectionType = adapter.DefaultConnectionType()
	}
	connection, err := s.connections.FindActive(ctx, *owner, platform, connectionType)
	if err != nil {
		if IsConnectionNotFound(err) {
			if isStandalone {
				return standalone.Standalone(ctx)
			}
			return nil, ConnectionNotFoundError(*owner, platform)
		}
		return nil, s.mapError(err)
	}

	if s.connections.IsExpired(connection) {
		refreshed, refreshErr := s.RefreshConnection(ctx, RefreshConnectionRequest{ConnectionID: connection.ID})
		if refreshErr == nil {
			connection = refreshed
		} else {
			s.logError(ctx, "expired connection refresh failed", map[string]any{
				"platform":      string(platform),
				"connection_id": connection.ID,
				"error":         ErrorMessage(refreshErr),
			})
		}
	}

	creds, err := s.connections.Credentials(ctx, connection)
	if err != nil {
		return nil, err
	}
	return adapter.ForConnection(ctx, creds)
}

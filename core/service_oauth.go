package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type BeginAuthorizationRequest struct {
	Platform    Platform
	Owner       *OwnerRef
	RedirectURI string
	Scopes      []string
	State       string
	UsePKCE     *bool
}

type BeginAuthorizationResponse struct {
	Platform     Platform
	URL          string
	State        string
	CodeVerifier string
}

type CallbackState string

const (
	CallbackAwaitingRedirect    CallbackState = "awaiting_redirect"
	CallbackCodeReceived        CallbackState = "code_received"
	CallbackTokenExchanged      CallbackState = "token_exchanged"
	CallbackConnectionPersisted CallbackState = "connection_persisted"
	CallbackErrored             CallbackState = "errored"
)

// CallbackInput carries the provider redirect parameters.
type CallbackInput struct {
	Platform         Platform
	Code             string
	Error            string
	ErrorDescription string
	State            string
	RedirectURI      string
	CodeVerifier     string
	Owner            *OwnerRef
}

type CallbackOutcome struct {
	Platform    Platform
	State       CallbackState
	Transitions []CallbackState
	Connection  Connection
	Message     string
	Err         error
}

func (o CallbackOutcome) Succeeded() bool {
	return o.State == CallbackConnectionPersisted
}

type RefreshConnectionRequest struct {
	ConnectionID string
}

type DisconnectRequest struct {
	ConnectionID string
	// Delete removes the record instead of deactivating it.
	Delete bool
}

type DisconnectResult struct {
	Connection Connection
	Revoked    bool
	Deleted    bool
}

// BeginAuthorization builds the platform authorize URL and stashes the
// pending attempt, including any PKCE verifier, under (platform, state).
func (s *Service) BeginAuthorization(
	ctx context.Context,
	req BeginAuthorizationRequest,
) (response BeginAuthorizationResponse, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"platform": string(req.Platform)}
	defer func() {
		fields["pkce"] = response.CodeVerifier != ""
		s.observeOperation(ctx, startedAt, "authorize", err, fields)
	}()

	platform, err := normalizePlatformInput(req.Platform)
	if err != nil {
		return BeginAuthorizationResponse{}, err
	}
	fields["platform"] = string(platform)
	if req.Owner != nil {
		if err = req.Owner.Validate(); err != nil {
			err = s.mapError(err)
			return BeginAuthorizationResponse{}, err
		}
	}
	flow, err := OAuthFlowFor(s.registry, platform)
	if err != nil {
		return BeginAuthorizationResponse{}, err
	}

	state := strings.TrimSpace(req.State)
	if state == "" {
		state, err = generateOAuthState()
		if err != nil {
			err = s.mapError(err)
			return BeginAuthorizationResponse{}, err
		}
	}

	authURL, err := flow.AuthorizationURL(ctx, AuthorizationRequest{
		RedirectURI: req.RedirectURI,
		Scopes:      append([]string(nil), req.Scopes...),
		State:       state,
		UsePKCE:     req.UsePKCE,
	})
	if err != nil {
		err = s.mapError(err)
		return BeginAuthorizationResponse{}, err
	}
	if strings.TrimSpace(authURL.State) != "" {
		state = authURL.State
	}

	if s.verifierStore != nil {
		var owner *OwnerRef
		if req.Owner != nil {
			copied := *req.Owner
			owner = &copied
		}
		if err = s.verifierStore.Save(ctx, VerifierRecord{
			Platform:     platform,
			State:        state,
			CodeVerifier: authURL.CodeVerifier,
			RedirectURI:  req.RedirectURI,
			Owner:        owner,
			CreatedAt:    s.currentTime(),
		}); err != nil {
			err = s.mapError(err)
			return BeginAuthorizationResponse{}, err
		}
	}

	return BeginAuthorizationResponse{
		Platform:     platform,
		URL:          authURL.URL,
		State:        state,
		CodeVerifier: authURL.CodeVerifier,
	}, nil
}

// CompleteCallback drives the callback state machine to either
// connection_persisted or errored. Every failure, including panics raised by
// adapters, ends in the errored state; the returned error mirrors
// outcome.Err.
func (s *Service) CompleteCallback(ctx context.Context, in CallbackInput) (outcome CallbackOutcome, err error) {
	startedAt := time.Now().UTC()
	machine := newCallbackMachine(in.Platform)
	fields := map[string]any{"platform": string(in.Platform)}
	defer func() {
		if recovered := recover(); recovered != nil {
			machine.fail(s.mapError(fmt.Errorf("core: oauth callback panic: %v", recovered)))
		}
		outcome = machine.outcome()
		err = outcome.Err
		fields["callback_state"] = string(outcome.State)
		if outcome.Connection.ID != "" {
			fields["connection_id"] = outcome.Connection.ID
		}
		s.observeOperation(ctx, startedAt, "complete_callback", err, fields)
	}()

	platform, platformErr := normalizePlatformInput(in.Platform)
	machine.platform = platform
	fields["platform"] = string(platform)

	state := strings.TrimSpace(in.State)
	var pending VerifierRecord
	var pendingErr error = ErrVerifierNotFound
	if state != "" && s.verifierStore != nil {
		pending, pendingErr = s.verifierStore.Consume(ctx, platform, state)
	}

	if platformErr != nil {
		machine.fail(platformErr)
		return
	}
	if providerError := strings.TrimSpace(in.Error); providerError != "" {
		message := "authorization failed: " + providerError
		if description := strings.TrimSpace(in.ErrorDescription); description != "" {
			message += " (" + description + ")"
		}
		machine.fail(ProviderError(platform, 0, message, nil))
		return
	}
	if s.config.OAuth.RequireState && pendingErr != nil {
		machine.fail(s.mapError(fmt.Errorf("core: oauth state invalid: %w", pendingErr)))
		return
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		machine.fail(ValidationError("code", "authorization code is required"))
		return
	}
	machine.advance(CallbackCodeReceived)

	owner, ownerErr := s.callbackOwner(ctx, in, pending)
	if ownerErr != nil {
		machine.fail(ownerErr)
		return
	}

	adapter, adapterErr := s.resolveAdapter(platform)
	if adapterErr != nil {
		machine.fail(adapterErr)
		return
	}
	flow, flowErr := OAuthFlowFor(s.registry, platform)
	if flowErr != nil {
		machine.fail(flowErr)
		return
	}

	verifier := strings.TrimSpace(in.CodeVerifier)
	if verifier == "" {
		verifier = pending.CodeVerifier
	}
	redirectURI := strings.TrimSpace(in.RedirectURI)
	if redirectURI == "" {
		redirectURI = pending.RedirectURI
	}

	result, exchangeErr := flow.HandleCallback(ctx, CallbackRequest{
		Code:         code,
		State:        state,
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
	})
	if exchangeErr != nil {
		machine.fail(s.mapError(exchangeErr))
		return
	}
	machine.advance(CallbackTokenExchanged)

	connectionType := strings.TrimSpace(result.ConnectionType)
	if connectionType == "" {
		connectionType = adapter.DefaultConnectionType()
	}
	connection, persistErr := s.connections.Upsert(ctx, owner, platform, connectionType, ConnectionFields{
		PlatformUserID:   result.PlatformUserID,
		PlatformUsername: result.PlatformUsername,
		AccessToken:      result.AccessToken,
		RefreshToken:     result.RefreshToken,
		TokenSecret:      result.TokenSecret,
		ExpiresAt:        result.ExpiresAt,
		Metadata:         result.Metadata,
	})
	if persistErr != nil {
		machine.fail(s.mapError(persistErr))
		return
	}
	machine.connection = connection
	machine.advance(CallbackConnectionPersisted)
	return
}

// callbackOwner takes the owner from the callback input or the owner
// resolver. The owner stored with the pending authorization never stands in
// for an authenticated caller; it only rejects a callback completed by a
// different owner than the one that started it.
func (s *Service) callbackOwner(ctx context.Context, in CallbackInput, pending VerifierRecord) (OwnerRef, error) {
	var owner OwnerRef
	switch {
	case in.Owner != nil:
		if err := in.Owner.Validate(); err != nil {
			return OwnerRef{}, NotAuthenticatedError()
		}
		owner = *in.Owner
	case s.ownerResolver != nil:
		resolved, ok, err := s.ownerResolver.ResolveOwner(ctx)
		if err != nil {
			return OwnerRef{}, s.mapError(err)
		}
		if !ok || resolved.Validate() != nil {
			return OwnerRef{}, NotAuthenticatedError()
		}
		owner = resolved
	default:
		return OwnerRef{}, NotAuthenticatedError()
	}
	if pending.Owner != nil && !sameOwner(*pending.Owner, owner) {
		return OwnerRef{}, NotAuthenticatedError()
	}
	return owner, nil
}

func sameOwner(a, b OwnerRef) bool {
	return strings.TrimSpace(a.Type) == strings.TrimSpace(b.Type) &&
		strings.TrimSpace(a.ID) == strings.TrimSpace(b.ID)
}

// RefreshConnection renews the stored token: refresh grant where the platform
// issues refresh tokens, token extension otherwise.
func (s *Service) RefreshConnection(ctx context.Context, req RefreshConnectionRequest) (connection Connection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"connection_id": req.ConnectionID}
	defer func() {
		if connection.Platform != "" {
			fields["platform"] = string(connection.Platform)
		}
		s.observeOperation(ctx, startedAt, "refresh", err, fields)
	}()

	connectionID := strings.TrimSpace(req.ConnectionID)
	if connectionID == "" {
		err = ValidationError("connection_id", "connection id is required")
		return Connection{}, err
	}
	current, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	fields["platform"] = string(current.Platform)

	flow, err := OAuthFlowFor(s.registry, current.Platform)
	if err != nil {
		return Connection{}, err
	}

	var result TokenResult
	if extender, ok := flow.(TokenExtender); ok {
		accessToken, openErr := s.connections.AccessToken(ctx, current)
		if openErr != nil {
			err = openErr
			return Connection{}, err
		}
		result, err = extender.ExtendAccessToken(ctx, accessToken)
	} else {
		refreshToken, openErr := s.connections.RefreshToken(ctx, current)
		if openErr != nil {
			err = openErr
			return Connection{}, err
		}
		if strings.TrimSpace(refreshToken) == "" {
			err = CredentialsMissingError(current.Platform, "refresh_token")
			return Connection{}, err
		}
		result, err = flow.RefreshAccessToken(ctx, refreshToken)
	}
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}

	connection, err = s.connections.UpdateTokens(ctx, current.ID, result)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	return connection, nil
}

// Disconnect revokes the token at the platform on a best effort basis, then
// deactivates or deletes the local record regardless of the revoke outcome.
func (s *Service) Disconnect(ctx context.Context, req DisconnectRequest) (result DisconnectResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"connection_id": req.ConnectionID, "delete": req.Delete}
	defer func() {
		fields["revoked"] = result.Revoked
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()

	connectionID := strings.TrimSpace(req.ConnectionID)
	if connectionID == "" {
		err = ValidationError("connection_id", "connection id is required")
		return DisconnectResult{}, err
	}
	connection, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		err = s.mapError(err)
		return DisconnectResult{}, err
	}
	fields["platform"] = string(connection.Platform)
	result.Connection = connection

	if flow, flowErr := OAuthFlowFor(s.registry, connection.Platform); flowErr == nil {
		if accessToken, openErr := s.connections.AccessToken(ctx, connection); openErr == nil && accessToken != "" {
			result.Revoked = flow.Disconnect(ctx, accessToken)
		}
	}

	if req.Delete {
		if err = s.connections.Delete(ctx, connectionID); err != nil {
			err = s.mapError(err)
			return result, err
		}
		result.Deleted = true
		return result, nil
	}
	if err = s.connections.Deactivate(ctx, connectionID); err != nil {
		err = s.mapError(err)
		return result, err
	}
	result.Connection.IsActive = false
	return result, nil
}

type callbackMachine struct {
	platform    Platform
	state       CallbackState
	transitions []CallbackState
	connection  Connection
	err         error
}

func newCallbackMachine(platform Platform) *callbackMachine {
	return &callbackMachine{
		platform:    platform,
		state:       CallbackAwaitingRedirect,
		transitions: []CallbackState{CallbackAwaitingRedirect},
	}
}

func (m *callbackMachine) advance(next CallbackState) {
	if m.state == CallbackErrored || m.state == CallbackConnectionPersisted {
		return
	}
	m.state = next
	m.transitions = append(m.transitions, next)
}

func (m *callbackMachine) fail(err error) {
	if m.state == CallbackErrored || m.state == CallbackConnectionPersisted {
		return
	}
	if err == nil {
		err = fmt.Errorf("core: oauth callback failed")
	}
	m.err = err
	m.state = CallbackErrored
	m.transitions = append(m.transitions, CallbackErrored)
}

func (m *callbackMachine) outcome() CallbackOutcome {
	out := CallbackOutcome{
		Platform:    m.platform,
		State:       m.state,
		Transitions: append([]CallbackState(nil), m.transitions...),
		Connection:  m.connection,
		Err:         m.err,
	}
	if m.err != nil {
		out.Message = ErrorMessage(m.err)
	} else if m.state == CallbackConnectionPersisted {
		out.Message = fmt.Sprintf("%s connected", m.platform)
	}
	return out
}

package command

import (
	"strings"

	"github.com/goliatone/go-social/core"
)

const (
	TypeBeginAuthorization  = "social.command.authorization.begin"
	TypeCompleteCallback    = "social.command.callback.complete"
	TypeShare               = "social.command.share"
	TypeRefreshConnection   = "social.command.connection.refresh"
	TypeDisconnect          = "social.command.connection.disconnect"
	TypeEnqueueTokenRefresh = "social.command.connection.enqueue_refresh"
)

type BeginAuthorizationMessage struct {
	Request core.BeginAuthorizationRequest
}

func (BeginAuthorizationMessage) Type() string { return TypeBeginAuthorization }

func (m BeginAuthorizationMessage) Validate() error {
	if err := validatePlatform(m.Request.Platform); err != nil {
		return err
	}
	if m.Request.Owner != nil {
		if err := m.Request.Owner.Validate(); err != nil {
			return core.InvalidMessageError("owner", "", err)
		}
	}
	return nil
}

// CompleteCallbackMessage only checks the platform; provider errors and
// missing codes are terminal callback states, not invalid messages.
type CompleteCallbackMessage struct {
	Input core.CallbackInput
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	return validatePlatform(m.Input.Platform)
}

type ShareMessage struct {
	Request core.ShareRequest
}

func (ShareMessage) Type() string { return TypeShare }

func (m ShareMessage) Validate() error {
	if err := m.Request.Owner.Validate(); err != nil {
		return core.InvalidMessageError("owner", "", err)
	}
	if !m.Request.Operation.Valid() {
		return core.InvalidMessageError("operation", "unsupported share operation", nil)
	}
	if len(m.Request.Platforms) == 0 {
		return core.InvalidMessageError("platforms", "at least one platform is required", nil)
	}
	if m.Request.Operation != core.OperationShareText && strings.TrimSpace(m.Request.URL) == "" {
		return core.InvalidMessageError("url", "url is required", nil)
	}
	return nil
}

type RefreshConnectionMessage struct {
	ConnectionID string
}

func (RefreshConnectionMessage) Type() string { return TypeRefreshConnection }

func (m RefreshConnectionMessage) Validate() error {
	return validateConnectionID(m.ConnectionID)
}

type DisconnectMessage struct {
	ConnectionID string
	Delete       bool
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	return validateConnectionID(m.ConnectionID)
}

type EnqueueTokenRefreshMessage struct {
	ConnectionID string
}

func (EnqueueTokenRefreshMessage) Type() string { return TypeEnqueueTokenRefresh }

func (m EnqueueTokenRefreshMessage) Validate() error {
	return validateConnectionID(m.ConnectionID)
}

func validatePlatform(platform core.Platform) error {
	if _, err := core.ParsePlatform(string(platform)); err != nil {
		return core.InvalidMessageError("platform", "unsupported platform", nil)
	}
	return nil
}

func validateConnectionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return core.InvalidMessageError("connection_id", "connection id is required", nil)
	}
	return nil
}

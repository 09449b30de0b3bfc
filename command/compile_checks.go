package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social/core"
)

var (
	_ gocmd.Commander[BeginAuthorizationMessage]  = (*BeginAuthorizationCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage]    = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[ShareMessage]               = (*ShareCommand)(nil)
	_ gocmd.Commander[RefreshConnectionMessage]   = (*RefreshConnectionCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]          = (*DisconnectCommand)(nil)
	_ gocmd.Commander[EnqueueTokenRefreshMessage] = (*EnqueueTokenRefreshCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
)

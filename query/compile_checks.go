package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social/core"
)

var (
	_ gocmd.Querier[FindConnectionMessage, core.Connection]    = (*FindConnectionQuery)(nil)
	_ gocmd.Querier[ListConnectionsMessage, []core.Connection] = (*ListConnectionsQuery)(nil)
	_ gocmd.Querier[ListPlatformsMessage, []PlatformInfo]      = (*ListPlatformsQuery)(nil)

	_ ConnectionReader = (*core.Service)(nil)
	_ RegistryReader   = (*core.Service)(nil)
)

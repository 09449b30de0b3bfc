package query

import (
	"github.com/goliatone/go-social/core"
)

const (
	TypeFindConnection  = "social.query.connection.find"
	TypeListConnections = "social.query.connection.list"
	TypeListPlatforms   = "social.query.platform.list"
)

type FindConnectionMessage struct {
	Owner          core.OwnerRef
	Platform       core.Platform
	ConnectionType string
}

func (FindConnectionMessage) Type() string { return TypeFindConnection }

func (m FindConnectionMessage) Validate() error {
	if err := m.Owner.Validate(); err != nil {
		return core.InvalidMessageError("owner", "", err)
	}
	if _, err := core.ParsePlatform(string(m.Platform)); err != nil {
		return core.InvalidMessageError("platform", "unsupported platform", nil)
	}
	return nil
}

type ListConnectionsMessage struct {
	Owner core.OwnerRef
}

func (ListConnectionsMessage) Type() string { return TypeListConnections }

func (m ListConnectionsMessage) Validate() error {
	if err := m.Owner.Validate(); err != nil {
		return core.InvalidMessageError("owner", "", err)
	}
	return nil
}

type ListPlatformsMessage struct{}

func (ListPlatformsMessage) Type() string { return TypeListPlatforms }

func (ListPlatformsMessage) Validate() error { return nil }

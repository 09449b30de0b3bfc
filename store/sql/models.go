package sqlstore

import (
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// connectionRecord is one row of social_connections. Token columns hold
// sealed values only.
type connectionRecord struct {
	bun.BaseModel `bun:"table:social_connections,alias:sc"`

	ID               string         `bun:"id,pk"`
	OwnerType        string         `bun:"owner_type,notnull"`
	OwnerID          string         `bun:"owner_id,notnull"`
	Platform         string         `bun:"platform,notnull"`
	ConnectionType   string         `bun:"connection_type,notnull"`
	PlatformUserID   string         `bun:"platform_user_id,notnull"`
	PlatformUsername string         `bun:"platform_username,notnull"`
	AccessToken      string         `bun:"access_token,notnull"`
	RefreshToken     string         `bun:"refresh_token,notnull"`
	TokenSecret      string         `bun:"token_secret,notnull"`
	ExpiresAt        *time.Time     `bun:"expires_at,nullzero"`
	Metadata         map[string]any `bun:"metadata,type:jsonb,notnull"`
	IsActive         bool           `bun:"is_active,notnull"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *connectionRecord) uuid() uuid.UUID {
	if r == nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(strings.TrimSpace(r.ID))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func connectionModelHandlers() repository.ModelHandlers[*connectionRecord] {
	return repository.ModelHandlers[*connectionRecord]{
		NewRecord: func() *connectionRecord { return new(connectionRecord) },
		GetID:     func(r *connectionRecord) uuid.UUID { return r.uuid() },
		SetID: func(r *connectionRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id.String()
			}
		},
		GetIdentifier: func() string { return "id" },
		GetIdentifierValue: func(r *connectionRecord) string {
			if r == nil {
				return ""
			}
			return r.ID
		},
	}
}

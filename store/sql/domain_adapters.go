package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
)

func newConnectionRecord(in core.UpsertConnectionInput, now time.Time) *connectionRecord {
	return &connectionRecord{
		OwnerType:        strings.TrimSpace(in.Owner.Type),
		OwnerID:          strings.TrimSpace(in.Owner.ID),
		Platform:         string(in.Platform),
		ConnectionType:   core.NormalizeConnectionType(in.ConnectionType),
		PlatformUserID:   strings.TrimSpace(in.PlatformUserID),
		PlatformUsername: strings.TrimSpace(in.PlatformUsername),
		AccessToken:      string(in.AccessToken),
		RefreshToken:     string(in.RefreshToken),
		TokenSecret:      string(in.TokenSecret),
		ExpiresAt:        cloneTimePointer(in.ExpiresAt),
		Metadata:         copyAnyMap(in.Metadata),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// apply overwrites the mutable columns of an existing row with a fresh upsert.
func (r *connectionRecord) apply(in core.UpsertConnectionInput, now time.Time) {
	r.PlatformUsername = strings.TrimSpace(in.PlatformUsername)
	r.AccessToken = string(in.AccessToken)
	r.RefreshToken = string(in.RefreshToken)
	r.TokenSecret = string(in.TokenSecret)
	r.ExpiresAt = cloneTimePointer(in.ExpiresAt)
	r.Metadata = copyAnyMap(in.Metadata)
	r.IsActive = true
	r.UpdatedAt = now
}

func (r *connectionRecord) toDomain() core.Connection {
	if r == nil {
		return core.Connection{}
	}
	return core.Connection{
		ID:               r.ID,
		Owner:            core.OwnerRef{Type: r.OwnerType, ID: r.OwnerID},
		Platform:         core.Platform(r.Platform),
		ConnectionType:   r.ConnectionType,
		PlatformUserID:   r.PlatformUserID,
		PlatformUsername: r.PlatformUsername,
		AccessToken:      core.EncryptedSecret(r.AccessToken),
		RefreshToken:     core.EncryptedSecret(r.RefreshToken),
		TokenSecret:      core.EncryptedSecret(r.TokenSecret),
		ExpiresAt:        cloneTimePointer(r.ExpiresAt),
		Metadata:         copyAnyMap(r.Metadata),
		IsActive:         r.IsActive,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

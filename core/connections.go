package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Connections is the encrypted connection store: it seals token material on
// write and only opens it through the explicit accessors.
type Connections struct {
	store ConnectionStore
	box   SecretBox
	now   func() time.Time
}

func NewConnections(store ConnectionStore, secrets SecretProvider) *Connections {
	return &Connections{
		store: store,
		box:   NewSecretBox(secrets),
		now:   time.Now,
	}
}

func (c *Connections) Store() ConnectionStore {
	if c == nil {
		return nil
	}
	return c.store
}

func (c *Connections) Upsert(
	ctx context.Context,
	owner OwnerRef,
	platform Platform,
	connectionType string,
	fields ConnectionFields,
) (Connection, error) {
	if err := c.ready(); err != nil {
		return Connection{}, err
	}
	if err := owner.Validate(); err != nil {
		return Connection{}, err
	}
	if !platform.Valid() {
		return Connection{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	if strings.TrimSpace(fields.AccessToken) == "" {
		return Connection{}, CredentialsMissingError(platform, "access_token")
	}

	accessToken, err := c.box.Seal(ctx, fields.AccessToken)
	if err != nil {
		return Connection{}, err
	}
	refreshToken, err := c.box.Seal(ctx, fields.RefreshToken)
	if err != nil {
		return Connection{}, err
	}
	tokenSecret, err := c.box.Seal(ctx, fields.TokenSecret)
	if err != nil {
		return Connection{}, err
	}

	return c.store.Upsert(ctx, UpsertConnectionInput{
		Owner:            owner,
		Platform:         platform,
		ConnectionType:   NormalizeConnectionType(connectionType),
		PlatformUserID:   strings.TrimSpace(fields.PlatformUserID),
		PlatformUsername: strings.TrimSpace(fields.PlatformUsername),
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenSecret:      tokenSecret,
		ExpiresAt:        fields.ExpiresAt,
		Metadata:         copyAnyMap(fields.Metadata),
	})
}

// FindActive returns the active connection, or ErrConnectionNotFound. An
// empty connectionType matches any type.
func (c *Connections) FindActive(
	ctx context.Context,
	owner OwnerRef,
	platform Platform,
	connectionType string,
) (Connection, error) {
	if err := c.ready(); err != nil {
		return Connection{}, err
	}
	if err := owner.Validate(); err != nil {
		return Connection{}, err
	}
	return c.store.FindActive(ctx, owner, platform, strings.ToLower(strings.TrimSpace(connectionType)))
}

func (c *Connections) Get(ctx context.Context, id string) (Connection, error) {
	if err := c.ready(); err != nil {
		return Connection{}, err
	}
	return c.store.Get(ctx, strings.TrimSpace(id))
}

func (c *Connections) ListByOwner(ctx context.Context, owner OwnerRef) ([]Connection, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return c.store.ListByOwner(ctx, owner)
}

func (c *Connections) IsExpired(connection Connection) bool {
	now := time.Now
	if c != nil && c.now != nil {
		now = c.now
	}
	return connection.IsExpired(now().UTC())
}

func (c *Connections) AccessToken(ctx context.Context, connection Connection) (string, error) {
	return c.box.Open(ctx, connection.AccessToken)
}

func (c *Connections) RefreshToken(ctx context.Context, connection Connection) (string, error) {
	return c.box.Open(ctx, connection.RefreshToken)
}

func (c *Connections) TokenSecret(ctx context.Context, connection Connection) (string, error) {
	return c.box.Open(ctx, connection.TokenSecret)
}

// Credentials opens every secret of the connection for an adapter.
func (c *Connections) Credentials(ctx context.Context, connection Connection) (ConnectionCredentials, error) {
	accessToken, err := c.AccessToken(ctx, connection)
	if err != nil {
		return ConnectionCredentials{}, err
	}
	refreshToken, err := c.RefreshToken(ctx, connection)
	if err != nil {
		return ConnectionCredentials{}, err
	}
	tokenSecret, err := c.TokenSecret(ctx, connection)
	if err != nil {
		return ConnectionCredentials{}, err
	}
	return ConnectionCredentials{
		ConnectionID:     connection.ID,
		Platform:         connection.Platform,
		ConnectionType:   connection.ConnectionType,
		PlatformUserID:   connection.PlatformUserID,
		PlatformUsername: connection.PlatformUsername,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenSecret:      tokenSecret,
		ExpiresAt:        connection.ExpiresAt,
		Metadata:         copyAnyMap(connection.Metadata),
	}, nil
}

// UpdateTokens seals and stores refreshed token material. An empty refresh
// token keeps the stored one.
func (c *Connections) UpdateTokens(ctx context.Context, id string, result TokenResult) (Connection, error) {
	if err := c.ready(); err != nil {
		return Connection{}, err
	}
	if strings.TrimSpace(result.AccessToken) == "" {
		return Connection{}, fmt.Errorf("core: access token is required for token update")
	}
	accessToken, err := c.box.Seal(ctx, result.AccessToken)
	if err != nil {
		return Connection{}, err
	}
	refreshToken, err := c.box.Seal(ctx, result.RefreshToken)
	if err != nil {
		return Connection{}, err
	}
	return c.store.UpdateTokens(ctx, strings.TrimSpace(id), TokenUpdate{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    result.ExpiresAt,
	})
}

func (c *Connections) Deactivate(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.SetActive(ctx, strings.TrimSpace(id), false)
}

func (c *Connections) Activate(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.SetActive(ctx, strings.TrimSpace(id), true)
}

func (c *Connections) Delete(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Delete(ctx, strings.TrimSpace(id))
}

func (c *Connections) ready() error {
	if c == nil || c.store == nil {
		return fmt.Errorf("core: connection store is required")
	}
	if !c.box.Configured() {
		return ConfigurationError("", "secret provider is required for the connection store")
	}
	return nil
}

func IsConnectionNotFound(err error) bool {
	return errors.Is(err, ErrConnectionNotFound) || HasErrorCode(err, ErrorConnectionNotFound)
}

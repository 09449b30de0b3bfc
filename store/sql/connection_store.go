package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-social/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConnectionStore persists connections in the social_connections table.
// Token columns hold sealed values only.
type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
	now  func() time.Time
}

func NewConnectionStore(db *bun.DB) (*ConnectionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*connectionRecord](db, connectionModelHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}
	return &ConnectionStore{db: db, repo: repo, now: time.Now}, nil
}

// Upsert inserts a connection or updates the row sharing its owner,
// platform, connection type and platform user id.
func (s *ConnectionStore) Upsert(ctx context.Context, in core.UpsertConnectionInput) (core.Connection, error) {
	if s == nil || s.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if err := in.Owner.Validate(); err != nil {
		return core.Connection{}, err
	}
	if strings.TrimSpace(string(in.Platform)) == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: platform is required")
	}
	now := s.now().UTC()
	candidate := newConnectionRecord(in, now)

	var out core.Connection
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &connectionRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.owner_type = ?", candidate.OwnerType).
			Where("?TableAlias.owner_id = ?", candidate.OwnerID).
			Where("?TableAlias.platform = ?", candidate.Platform).
			Where("?TableAlias.connection_type = ?", candidate.ConnectionType).
			Where("?TableAlias.platform_user_id = ?", candidate.PlatformUserID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			candidate.ID = uuid.NewString()
			if _, insertErr := tx.NewInsert().Model(candidate).Exec(ctx); insertErr != nil {
				return insertErr
			}
			out = candidate.toDomain()
			return nil
		}
		if err != nil {
			return err
		}

		existing.apply(in, now)
		if _, updateErr := tx.NewUpdate().
			Model(existing).
			Where("id = ?", existing.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.Connection{}, err
	}
	return out, nil
}

// FindActive returns the most recently updated active connection. An empty
// connection type matches any type.
func (s *ConnectionStore) FindActive(
	ctx context.Context,
	owner core.OwnerRef,
	platform core.Platform,
	connectionType string,
) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	criteria := []repository.SelectCriteria{
		repository.SelectBy("owner_type", "=", strings.TrimSpace(owner.Type)),
		repository.SelectBy("owner_id", "=", strings.TrimSpace(owner.ID)),
		repository.SelectBy("platform", "=", string(platform)),
		repository.SelectBy("is_active", "=", true),
	}
	if connectionType = strings.ToLower(strings.TrimSpace(connectionType)); connectionType != "" {
		criteria = append(criteria, repository.SelectBy("connection_type", "=", connectionType))
	}
	criteria = append(criteria,
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return core.Connection{}, err
	}
	if len(records) == 0 {
		return core.Connection{}, core.ErrConnectionNotFound
	}
	return records[0].toDomain(), nil
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (core.Connection, error) {
	if s == nil || s.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	record, err := s.load(ctx, s.db, id)
	if err != nil {
		return core.Connection{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectionStore) ListByOwner(ctx context.Context, owner core.OwnerRef) ([]core.Connection, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("owner_type", "=", strings.TrimSpace(owner.Type)),
		repository.SelectBy("owner_id", "=", strings.TrimSpace(owner.ID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.platform ASC, ?TableAlias.created_at ASC")
		}),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Connection, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// UpdateTokens swaps token material after a refresh. An empty refresh token
// keeps the stored one.
func (s *ConnectionStore) UpdateTokens(ctx context.Context, id string, update core.TokenUpdate) (core.Connection, error) {
	if s == nil || s.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	var out core.Connection
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		record.AccessToken = string(update.AccessToken)
		if !update.RefreshToken.IsZero() {
			record.RefreshToken = string(update.RefreshToken)
		}
		record.ExpiresAt = cloneTimePointer(update.ExpiresAt)
		record.UpdatedAt = s.now().UTC()
		if _, err := tx.NewUpdate().
			Model(record).
			Column("access_token", "refresh_token", "expires_at", "updated_at").
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Connection{}, err
	}
	return out, nil
}

func (s *ConnectionStore) SetActive(ctx context.Context, id string, active bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*connectionRecord)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *ConnectionStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*connectionRecord)(nil)).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *ConnectionStore) load(ctx context.Context, db bun.IDB, id string) (*connectionRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, core.ErrConnectionNotFound
	}
	record := &connectionRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrConnectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrConnectionNotFound
	}
	return nil
}

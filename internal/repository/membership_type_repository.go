package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/clubhouse/internal/db"
	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

// membershipTypeRepository implements MembershipTypeRepository on Postgres.
// The full definition lives in a JSONB column; scope, owner, active and usage
// are duplicated into columns so filters and the usage guard stay in SQL.
type membershipTypeRepository struct {
	conn *db.Connection
}

// NewMembershipTypeRepository creates a new membership type repository
func NewMembershipTypeRepository(conn *db.Connection) MembershipTypeRepository {
	return &membershipTypeRepository{conn: conn}
}

const membershipTypeColumns = `definition, active, usage_count, created_at, updated_at`

func (r *membershipTypeRepository) Find(ctx context.Context, filter MembershipTypeFilter) (_ []domain.MembershipTypeDefinition, err error) {
	ctx, span := startSpan(ctx, "membership_types.find", attribute.Bool("filter.active_only", filter.ActiveOnly))
	defer func() { finishSpan(span, err) }()

	var scope *string
	if filter.Scope != nil {
		s := string(*filter.Scope)
		scope = &s
	}

	rows, err := r.conn.Querier(ctx).Query(ctx, `
		SELECT `+membershipTypeColumns+`
		FROM membership_types
		WHERE ($1::text IS NULL OR scope = $1)
		  AND ($2::uuid[] IS NULL OR scope_owner_id = ANY($2))
		  AND ($3::uuid[] IS NULL OR id = ANY($3))
		  AND (NOT $4 OR active)`,
		scope, uuidStrings(filter.OwnerIDs), uuidStrings(filter.IDs), filter.ActiveOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query membership types: %w", err)
	}
	defer rows.Close()

	defs := []domain.MembershipTypeDefinition{}
	for rows.Next() {
		def, err := scanMembershipType(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate membership types: %w", err)
	}
	sortDefinitions(defs)
	span.SetAttributes(attribute.Int("membership_types.found", len(defs)))
	return defs, nil
}

func (r *membershipTypeRepository) GetByID(ctx context.Context, id uuid.UUID) (_ domain.MembershipTypeDefinition, err error) {
	ctx, span := startSpan(ctx, "membership_types.get", attribute.String("membership_type.id", id.String()))
	defer func() { finishSpan(span, err) }()

	row := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT `+membershipTypeColumns+` FROM membership_types WHERE id = $1`, id)
	def, err := scanMembershipType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("membership type %s: %w", id, domain.ErrNotFound)
	}
	return def, err
}

func (r *membershipTypeRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.MembershipTypeDefinition, error) {
	if len(ids) == 0 {
		return []domain.MembershipTypeDefinition{}, nil
	}
	return r.Find(ctx, MembershipTypeFilter{IDs: ids})
}

func (r *membershipTypeRepository) Create(ctx context.Context, def domain.MembershipTypeDefinition) (_ domain.MembershipTypeDefinition, err error) {
	ctx, span := startSpan(ctx, "membership_types.create", attribute.String("membership_type.scope", string(def.Scope)))
	defer func() { finishSpan(span, err) }()

	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	document, err := json.Marshal(def)
	if err != nil {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("failed to encode membership type: %w", err)
	}

	row := r.conn.Querier(ctx).QueryRow(ctx, `
		INSERT INTO membership_types (id, scope, scope_owner_id, active, usage_count, definition)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING `+membershipTypeColumns,
		def.ID, string(def.Scope), def.ScopeOwnerID, def.Active, document,
	)
	created, err := scanMembershipType(row)
	if err != nil {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("failed to create membership type: %w", err)
	}
	return created, nil
}

func (r *membershipTypeRepository) Update(ctx context.Context, def domain.MembershipTypeDefinition) (_ domain.MembershipTypeDefinition, err error) {
	ctx, span := startSpan(ctx, "membership_types.update", attribute.String("membership_type.id", def.ID.String()))
	defer func() { finishSpan(span, err) }()

	document, err := json.Marshal(def)
	if err != nil {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("failed to encode membership type: %w", err)
	}

	row := r.conn.Querier(ctx).QueryRow(ctx, `
		UPDATE membership_types
		SET scope = $2, scope_owner_id = $3, active = $4, definition = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+membershipTypeColumns,
		def.ID, string(def.Scope), def.ScopeOwnerID, def.Active, document,
	)
	updated, err := scanMembershipType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("membership type %s: %w", def.ID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("failed to update membership type: %w", err)
	}
	return updated, nil
}

func (r *membershipTypeRepository) IncrementUsage(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := startSpan(ctx, "membership_types.increment_usage", attribute.String("membership_type.id", id.String()))
	defer func() { finishSpan(span, err) }()

	tag, err := r.conn.Querier(ctx).Exec(ctx,
		`UPDATE membership_types SET usage_count = usage_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("membership type %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *membershipTypeRepository) Delete(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := startSpan(ctx, "membership_types.delete", attribute.String("membership_type.id", id.String()))
	defer func() { finishSpan(span, err) }()

	return r.conn.WithinTransaction(ctx, func(ctx context.Context) error {
		var usage int64
		err := r.conn.Querier(ctx).QueryRow(ctx,
			`SELECT usage_count FROM membership_types WHERE id = $1 FOR UPDATE`, id).Scan(&usage)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("membership type %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load membership type usage: %w", err)
		}
		if usage > 0 {
			return fmt.Errorf("membership type %s used %d times: %w", id, usage, domain.ErrTypeInUse)
		}
		if _, err := r.conn.Querier(ctx).Exec(ctx, `DELETE FROM membership_types WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete membership type: %w", err)
		}
		return nil
	})
}

func scanMembershipType(row pgx.Row) (domain.MembershipTypeDefinition, error) {
	var (
		document   []byte
		active     bool
		usageCount int64
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&document, &active, &usageCount, &createdAt, &updatedAt); err != nil {
		return domain.MembershipTypeDefinition{}, err
	}

	var def domain.MembershipTypeDefinition
	if err := json.Unmarshal(document, &def); err != nil {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("failed to decode membership type: %w", err)
	}
	def.Active = active
	def.UsageCount = usageCount
	def.CreatedAt = createdAt
	def.UpdatedAt = updatedAt
	return def, nil
}

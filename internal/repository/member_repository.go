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

// memberRepository implements MemberRepository interface
type memberRepository struct {
	conn *db.Connection
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(conn *db.Connection) MemberRepository {
	return &memberRepository{conn: conn}
}

func (r *memberRepository) CreateMember(ctx context.Context, member domain.MemberProfile) (_ domain.MemberProfile, err error) {
	ctx, span := startSpan(ctx, "members.create")
	defer func() { finishSpan(span, err) }()

	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	document, err := json.Marshal(member)
	if err != nil {
		return domain.MemberProfile{}, fmt.Errorf("failed to encode member: %w", err)
	}

	row := r.conn.Querier(ctx).QueryRow(ctx, `
		INSERT INTO members (id, version, document)
		VALUES ($1, 1, $2)
		RETURNING document, version, created_at, updated_at`,
		member.ID, document,
	)
	created, err := scanMember(row)
	if err != nil {
		return domain.MemberProfile{}, fmt.Errorf("failed to create member: %w", err)
	}
	return created, nil
}

func (r *memberRepository) FindMember(ctx context.Context, id uuid.UUID) (_ domain.MemberProfile, err error) {
	ctx, span := startSpan(ctx, "members.find", attribute.String("member.id", id.String()))
	defer func() { finishSpan(span, err) }()

	query := `SELECT document, version, created_at, updated_at FROM members WHERE id = $1`
	if db.InTransaction(ctx) {
		query += ` FOR UPDATE`
	}
	member, err := scanMember(r.conn.Querier(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MemberProfile{}, fmt.Errorf("member %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.MemberProfile{}, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

func (r *memberRepository) ReplaceMember(ctx context.Context, member domain.MemberProfile) (_ domain.MemberProfile, err error) {
	ctx, span := startSpan(ctx, "members.replace", attribute.String("member.id", member.ID.String()))
	defer func() { finishSpan(span, err) }()

	document, err := json.Marshal(member)
	if err != nil {
		return domain.MemberProfile{}, fmt.Errorf("failed to encode member: %w", err)
	}

	row := r.conn.Querier(ctx).QueryRow(ctx, `
		UPDATE members
		SET document = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND ($3::bigint = 0 OR version = $3::bigint)
		RETURNING document, version, created_at, updated_at`,
		member.ID, document, member.Version,
	)
	replaced, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MemberProfile{}, r.missingOrStale(ctx, member)
	}
	if err != nil {
		return domain.MemberProfile{}, fmt.Errorf("failed to replace member: %w", err)
	}
	span.SetAttributes(attribute.Int64("member.version", replaced.Version))
	return replaced, nil
}

// missingOrStale tells a deleted member apart from one whose version moved on.
func (r *memberRepository) missingOrStale(ctx context.Context, member domain.MemberProfile) error {
	var version int64
	err := r.conn.Querier(ctx).QueryRow(ctx, `SELECT version FROM members WHERE id = $1`, member.ID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("member %s: %w", member.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to replace member: %w", err)
	}
	return fmt.Errorf("%w: member %s is at version %d, write was based on %d",
		domain.ErrStaleWrite, member.ID, version, member.Version)
}

func scanMember(row pgx.Row) (domain.MemberProfile, error) {
	var (
		document  []byte
		version   int64
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&document, &version, &createdAt, &updatedAt); err != nil {
		return domain.MemberProfile{}, err
	}

	var member domain.MemberProfile
	if err := json.Unmarshal(document, &member); err != nil {
		return domain.MemberProfile{}, fmt.Errorf("failed to decode member: %w", err)
	}
	if member.Record == nil {
		member.Record = map[string]any{}
	}
	member.Version = version
	member.CreatedAt = createdAt
	member.UpdatedAt = updatedAt
	return member, nil
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/clubhouse/internal/db"
	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
)

// changeRecordRepository is backed by an append-only table; a trigger rejects
// UPDATE and DELETE.
type changeRecordRepository struct {
	conn *db.Connection
}

// NewChangeRecordRepository creates a new change record repository
func NewChangeRecordRepository(conn *db.Connection) ChangeRecordRepository {
	return &changeRecordRepository{conn: conn}
}

func (r *changeRecordRepository) AppendChangeRecord(ctx context.Context, record domain.ChangeRecord) (err error) {
	ctx, span := startSpan(ctx, "change_records.append",
		attribute.String("member.id", record.MemberID.String()),
		attribute.String("change.section", record.Section),
		attribute.Int("change.fields", len(record.Changes)),
	)
	defer func() { finishSpan(span, err) }()

	if record.Changes.Empty() {
		return domain.ErrEmptyDiff
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	changes, err := record.ChangesAsJSON()
	if err != nil {
		return fmt.Errorf("failed to encode changes: %w", err)
	}

	_, err = r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO change_records (id, member_id, section, changes, updated_by, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		record.ID, record.MemberID, record.Section, changes, record.UpdatedBy, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append change record: %w", err)
	}
	return nil
}

func (r *changeRecordRepository) ListChangeRecords(ctx context.Context, memberID uuid.UUID) (_ []domain.ChangeRecord, err error) {
	ctx, span := startSpan(ctx, "change_records.list", attribute.String("member.id", memberID.String()))
	defer func() { finishSpan(span, err) }()

	rows, err := r.conn.Querier(ctx).Query(ctx, `
		SELECT id, member_id, section, changes, updated_by, created_at
		FROM change_records
		WHERE member_id = $1
		ORDER BY seq ASC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list change records: %w", err)
	}
	defer rows.Close()

	records := []domain.ChangeRecord{}
	for rows.Next() {
		var (
			record    domain.ChangeRecord
			changes   []byte
			updatedBy pgtype.Text
		)
		if err := rows.Scan(&record.ID, &record.MemberID, &record.Section, &changes, &updatedBy, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan change record: %w", err)
		}
		if err := json.Unmarshal(changes, &record.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode changes: %w", err)
		}
		record.UpdatedBy = updatedBy.String
		record.Timestamp = record.Timestamp.UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate change records: %w", err)
	}
	span.SetAttributes(attribute.Int("change_records.loaded", len(records)))
	return records, nil
}

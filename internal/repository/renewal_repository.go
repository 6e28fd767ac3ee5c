package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/clubhouse/internal/db"
	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
)

// renewalRepository implements RenewalRepository interface
type renewalRepository struct {
	conn *db.Connection
}

// NewRenewalRepository creates a new renewal repository
func NewRenewalRepository(conn *db.Connection) RenewalRepository {
	return &renewalRepository{conn: conn}
}

func (r *renewalRepository) AppendRenewalRecord(ctx context.Context, record domain.RenewalRecord) (err error) {
	ctx, span := startSpan(ctx, "renewal_records.append",
		attribute.String("member.id", record.MemberID.String()),
		attribute.String("membership_type.id", record.MembershipTypeID.String()),
	)
	defer func() { finishSpan(span, err) }()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	_, err = r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO renewal_records
			(id, member_id, membership_type_id, period_start, period_end, fee_cents, currency, notes, renewal_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)`,
		record.ID, record.MemberID, record.MembershipTypeID,
		record.PeriodStart.Time, record.PeriodEnd.Time,
		int64(record.Fee), record.Currency, record.Notes, record.RenewalDate,
	)
	if err != nil {
		return fmt.Errorf("failed to append renewal record: %w", err)
	}
	return nil
}

func (r *renewalRepository) ListRenewalRecords(ctx context.Context, memberID uuid.UUID) (_ []domain.RenewalRecord, err error) {
	ctx, span := startSpan(ctx, "renewal_records.list", attribute.String("member.id", memberID.String()))
	defer func() { finishSpan(span, err) }()

	rows, err := r.conn.Querier(ctx).Query(ctx, `
		SELECT id, member_id, membership_type_id, period_start, period_end, fee_cents, currency, notes, renewal_date
		FROM renewal_records
		WHERE member_id = $1
		ORDER BY seq ASC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list renewal records: %w", err)
	}
	defer rows.Close()

	records := []domain.RenewalRecord{}
	for rows.Next() {
		var (
			record     domain.RenewalRecord
			start, end time.Time
			feeCents   int64
			notes      pgtype.Text
		)
		if err := rows.Scan(&record.ID, &record.MemberID, &record.MembershipTypeID, &start, &end,
			&feeCents, &record.Currency, &notes, &record.RenewalDate); err != nil {
			return nil, fmt.Errorf("failed to scan renewal record: %w", err)
		}
		record.PeriodStart = domain.DateOf(start)
		record.PeriodEnd = domain.DateOf(end)
		record.Fee = domain.Cents(feeCents)
		record.Notes = notes.String
		record.RenewalDate = record.RenewalDate.UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate renewal records: %w", err)
	}
	return records, nil
}

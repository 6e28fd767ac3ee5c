package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/metrics"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/google/uuid"
)

// Trail is the append-only history of member record changes.
type Trail struct {
	repo    repository.ChangeRecordRepository
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Trail)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		t.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trail) {
		t.metrics = m
	}
}

// WithClock overrides the timestamp source used by Record.
func WithClock(now func() time.Time) Option {
	return func(t *Trail) {
		if now != nil {
			t.now = now
		}
	}
}

func New(repo repository.ChangeRecordRepository, opts ...Option) *Trail {
	t := &Trail{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Append stores rec. A record without changes is rejected with
// domain.ErrEmptyDiff and nothing is written. Store failures are wrapped in
// domain.ErrPersistence and not retried.
func (t *Trail) Append(ctx context.Context, rec domain.ChangeRecord) error {
	if rec.Changes.Empty() {
		return domain.ErrEmptyDiff
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := t.repo.AppendChangeRecord(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrEmptyDiff) {
			return err
		}
		return fmt.Errorf("%w: append change record for member %s: %w", domain.ErrPersistence, rec.MemberID, err)
	}
	t.metrics.IncrementChangeRecords()
	t.logger.InfoContext(ctx, "change record appended",
		"member_id", rec.MemberID, "section", rec.Section, "fields", len(rec.Changes), "updated_by", rec.UpdatedBy)
	return nil
}

// Record diffs before against after and appends the result. It returns
// domain.ErrEmptyDiff, writing nothing, when no leaf changed.
func (t *Trail) Record(ctx context.Context, memberID uuid.UUID, section string, before, after map[string]any, updatedBy string) (domain.ChangeRecord, error) {
	rec, err := domain.NewChangeRecord(memberID, section, domain.DiffRecords(before, after), updatedBy, t.now())
	if err != nil {
		return domain.ChangeRecord{}, err
	}
	if err := t.Append(ctx, rec); err != nil {
		return domain.ChangeRecord{}, err
	}
	return rec, nil
}

// ListFor returns the member's history newest first.
func (t *Trail) ListFor(ctx context.Context, memberID uuid.UUID) ([]domain.ChangeRecord, error) {
	records, err := t.repo.ListChangeRecords(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%w: list change records for member %s: %w", domain.ErrPersistence, memberID, err)
	}
	// storage order is insertion order; reverse it, breaking timestamp ties by
	// keeping later inserts first
	out := make([]domain.ChangeRecord, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

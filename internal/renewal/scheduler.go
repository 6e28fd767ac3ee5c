package renewal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/fees"
	"github.com/rpattn/clubhouse/internal/metrics"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/google/uuid"
)

var ErrNotRenewable = errors.New("membership type is not renewable")

// Eligibility validates one membership type choice for a member on a date.
type Eligibility interface {
	CheckOne(ctx context.Context, member domain.MemberProfile, id uuid.UUID, ref time.Time) (domain.MembershipTypeDefinition, error)
}

// UsageRecorder counts renewals against a membership type.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, def domain.MembershipTypeDefinition) error
}

// Choice is what the member picked at renewal time. A nil Fee charges the
// quoted amount for the type's frequency plus the opted-in optional fees.
type Choice struct {
	TypeID uuid.UUID
	Fee    *domain.Amount
	Notes  string
	OptIns []string
}

// Scheduler proposes and commits back-to-back coverage periods.
type Scheduler struct {
	members     repository.MemberRepository
	renewals    repository.RenewalRepository
	tx          repository.Transactor
	eligibility Eligibility
	usage       UsageRecorder
	aggregator  *fees.Aggregator
	calendar    Calendar
	now         func() time.Time
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func WithCalendar(calendar Calendar) Option {
	return func(s *Scheduler) {
		s.calendar = calendar
	}
}

func WithAggregator(aggregator *fees.Aggregator) Option {
	return func(s *Scheduler) {
		if aggregator != nil {
			s.aggregator = aggregator
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Scheduler.
func New(
	members repository.MemberRepository,
	renewals repository.RenewalRepository,
	tx repository.Transactor,
	eligibility Eligibility,
	usage UsageRecorder,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		members:     members,
		renewals:    renewals,
		tx:          tx,
		eligibility: eligibility,
		usage:       usage,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.aggregator == nil {
		s.aggregator = fees.New(fees.WithLogger(s.logger), fees.WithMetrics(s.metrics))
	}
	return s
}

// NextStart is the first day of the next period: the day after the current
// period ends, or today for a member without coverage.
func (s *Scheduler) NextStart(member domain.MemberProfile) domain.Date {
	if member.CurrentPeriod == nil {
		return domain.DateOf(s.now())
	}
	return member.CurrentPeriod.End.AddDays(1)
}

// PeriodFrom computes the inclusive period beginning on start for def.
func (s *Scheduler) PeriodFrom(def domain.MembershipTypeDefinition, start domain.Date) (domain.Period, error) {
	switch def.Fee.Frequency {
	case domain.FrequencyAnnual:
		return domain.Period{Start: start, End: start.AddYears(1).AddDays(-1)}, nil
	case domain.FrequencySeasonal:
		window, _, err := s.calendar.WindowFor(start)
		if err != nil {
			return domain.Period{}, fmt.Errorf("membership type %s: %w", def.ID, err)
		}
		return domain.Period{Start: start, End: window.End}, nil
	default:
		return domain.Period{}, fmt.Errorf("%w: %s is billed %s", ErrNotRenewable, def.Name, def.Fee.Frequency)
	}
}

// Preview proposes the next period for memberID on typeID without writing.
func (s *Scheduler) Preview(ctx context.Context, memberID, typeID uuid.UUID) (domain.RenewalPreview, error) {
	member, err := s.members.FindMember(ctx, memberID)
	if err != nil {
		return domain.RenewalPreview{}, err
	}
	preview, _, err := s.plan(ctx, member, typeID)
	return preview, err
}

func (s *Scheduler) plan(ctx context.Context, member domain.MemberProfile, typeID uuid.UUID) (domain.RenewalPreview, domain.MembershipTypeDefinition, error) {
	start := s.NextStart(member)
	def, err := s.eligibility.CheckOne(ctx, member, typeID, start.Time)
	if err != nil {
		return domain.RenewalPreview{}, domain.MembershipTypeDefinition{}, err
	}
	period, err := s.PeriodFrom(def, start)
	if err != nil {
		return domain.RenewalPreview{}, domain.MembershipTypeDefinition{}, err
	}
	quote, err := s.aggregator.Quote([]domain.MembershipTypeDefinition{def})
	if err != nil {
		return domain.RenewalPreview{}, domain.MembershipTypeDefinition{}, err
	}

	var current *domain.Period
	if member.CurrentPeriod != nil {
		p := *member.CurrentPeriod
		current = &p
	}
	return domain.RenewalPreview{
		MemberID:         member.ID,
		MembershipTypeID: def.ID,
		CurrentPeriod:    current,
		ProposedPeriod:   period,
		AgeAtStart:       member.AgeOn(start.Time),
		Quote:            quote,
	}, def, nil
}

// Commit appends a renewal record for the proposed period, advances the
// member's coverage and counts the usage of the type. All three writes share
// one transaction. Earlier records are never touched.
func (s *Scheduler) Commit(ctx context.Context, memberID uuid.UUID, choice Choice) (domain.RenewalRecord, error) {
	if choice.Fee != nil && *choice.Fee < 0 {
		return domain.RenewalRecord{}, fmt.Errorf("%w: renewal fee cannot be negative", domain.ErrInvalidInput)
	}

	var record domain.RenewalRecord
	var frequency domain.Frequency
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		member, err := s.members.FindMember(ctx, memberID)
		if err != nil {
			return err
		}
		preview, def, err := s.plan(ctx, member, choice.TypeID)
		if err != nil {
			return err
		}

		fee := preview.Quote.Payable(def.Fee.Frequency, choice.OptIns)
		if choice.Fee != nil {
			fee = *choice.Fee
		}
		record = domain.RenewalRecord{
			ID:               uuid.New(),
			MemberID:         member.ID,
			PeriodStart:      preview.ProposedPeriod.Start,
			PeriodEnd:        preview.ProposedPeriod.End,
			MembershipTypeID: def.ID,
			Fee:              fee,
			Currency:         preview.Quote.Currency,
			Notes:            strings.TrimSpace(choice.Notes),
			RenewalDate:      s.now().UTC(),
		}
		frequency = def.Fee.Frequency

		if err := s.renewals.AppendRenewalRecord(ctx, record); err != nil {
			return fmt.Errorf("%w: append renewal for member %s: %w", domain.ErrPersistence, member.ID, err)
		}
		if _, err := s.members.ReplaceMember(ctx, member.WithPeriod(preview.ProposedPeriod)); err != nil {
			return fmt.Errorf("%w: advance period for member %s: %w", domain.ErrPersistence, member.ID, err)
		}
		if err := s.usage.RecordUsage(ctx, def); err != nil {
			return fmt.Errorf("%w: record usage of %s: %w", domain.ErrPersistence, def.ID, err)
		}
		return nil
	})
	if err != nil {
		return domain.RenewalRecord{}, err
	}

	s.metrics.IncrementRenewal(string(frequency))
	s.logger.InfoContext(ctx, "membership renewed",
		"member_id", memberID, "membership_type_id", record.MembershipTypeID,
		"period_start", record.PeriodStart, "period_end", record.PeriodEnd, "fee", record.Fee)
	return record, nil
}

// History returns the member's renewals newest first.
func (s *Scheduler) History(ctx context.Context, memberID uuid.UUID) ([]domain.RenewalRecord, error) {
	records, err := s.renewals.ListRenewalRecords(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%w: list renewals for member %s: %w", domain.ErrPersistence, memberID, err)
	}
	out := make([]domain.RenewalRecord, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	return out, nil
}

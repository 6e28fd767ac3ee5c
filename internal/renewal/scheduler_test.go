package renewal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rpattn/clubhouse/internal/catalog"
	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/eligibility"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	store     *repository.MemoryStore
	scheduler *Scheduler
	club      uuid.UUID
}

func newFixture(t *testing.T, cal Calendar) fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	cat := catalog.New(store, catalog.WithLogger(discard))
	resolver := eligibility.New(cat, eligibility.WithLogger(discard))
	scheduler := New(store, store, store, resolver, cat,
		WithLogger(discard),
		WithCalendar(cal),
		WithClock(func() time.Time { return time.Date(2025, time.December, 20, 10, 0, 0, 0, time.UTC) }),
	)
	return fixture{store: store, scheduler: scheduler, club: uuid.New()}
}

func (f fixture) addType(t *testing.T, name string, frequency domain.Frequency, base string, bounds domain.AgeBounds) domain.MembershipTypeDefinition {
	t.Helper()
	club := f.club
	def := domain.NewMembershipTypeDefinition(name, domain.ScopeClub, &club, bounds, domain.Fee{
		BaseAmount: domain.MustParseAmount(base),
		Currency:   "GBP",
		Frequency:  frequency,
		AdditionalFees: []domain.AdditionalFee{
			{Name: "Insurance", Amount: domain.MustParseAmount("10.00"), Required: true},
			{Name: "Kit", Amount: domain.MustParseAmount("25.00")},
		},
	})
	created, err := f.store.Create(context.Background(), def)
	require.NoError(t, err)
	return created
}

func (f fixture) addMember(t *testing.T, dob string, period *domain.Period) domain.MemberProfile {
	t.Helper()
	member, err := f.store.CreateMember(context.Background(), domain.MemberProfile{
		DateOfBirth:   dob,
		ClubID:        f.club,
		CurrentPeriod: period,
		Record:        map[string]any{"dateOfBirth": dob},
	})
	require.NoError(t, err)
	return member
}

func TestPreviewAnnualIsBackToBack(t *testing.T) {
	f := newFixture(t, NewCalendar())
	senior := f.addType(t, "Senior", domain.FrequencyAnnual, "150.00", domain.AgeBounds{Min: domain.IntPtr(18)})
	member := f.addMember(t, "1990-04-02", &domain.Period{Start: domain.NewDate(2025, 1, 1), End: domain.NewDate(2025, 12, 31)})

	preview, err := f.scheduler.Preview(context.Background(), member.ID, senior.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.NewDate(2026, 1, 1), preview.ProposedPeriod.Start)
	assert.Equal(t, domain.NewDate(2026, 12, 31), preview.ProposedPeriod.End)
	require.NotNil(t, preview.CurrentPeriod)
	assert.Equal(t, domain.NewDate(2025, 12, 31), preview.CurrentPeriod.End)
	assert.Equal(t, domain.Age(35), preview.AgeAtStart)
	assert.Equal(t, domain.MustParseAmount("160.00"), preview.Quote.PerFrequency[domain.FrequencyAnnual].Required)
}

func TestPreviewSeasonalUsesConfiguredWindow(t *testing.T) {
	winter, err := ParseSeason("Winter", "09-01", "03-31")
	require.NoError(t, err)
	f := newFixture(t, NewCalendar(winter))
	league := f.addType(t, "Winter League", domain.FrequencySeasonal, "60.00", domain.AgeBounds{})
	member := f.addMember(t, "1990-04-02", &domain.Period{Start: domain.NewDate(2025, 4, 1), End: domain.NewDate(2025, 8, 31)})

	preview, err := f.scheduler.Preview(context.Background(), member.ID, league.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2025, 9, 1), preview.ProposedPeriod.Start)
	assert.Equal(t, domain.NewDate(2026, 3, 31), preview.ProposedPeriod.End)
}

func TestPreviewSeasonalWithoutSeasons(t *testing.T) {
	f := newFixture(t, NewCalendar())
	league := f.addType(t, "Winter League", domain.FrequencySeasonal, "60.00", domain.AgeBounds{})
	member := f.addMember(t, "1990-04-02", nil)

	_, err := f.scheduler.Preview(context.Background(), member.ID, league.ID)
	assert.ErrorIs(t, err, ErrNoSeason)
}

func TestPreviewOneTimeIsNotRenewable(t *testing.T) {
	f := newFixture(t, NewCalendar())
	joining := f.addType(t, "Joining Fee", domain.FrequencyOneTime, "20.00", domain.AgeBounds{})
	member := f.addMember(t, "1990-04-02", nil)

	_, err := f.scheduler.Preview(context.Background(), member.ID, joining.ID)
	assert.ErrorIs(t, err, ErrNotRenewable)
}

func TestPreviewWithoutCoverageStartsToday(t *testing.T) {
	f := newFixture(t, NewCalendar())
	senior := f.addType(t, "Senior", domain.FrequencyAnnual, "150.00", domain.AgeBounds{})
	member := f.addMember(t, "1990-04-02", nil)

	preview, err := f.scheduler.Preview(context.Background(), member.ID, senior.ID)
	require.NoError(t, err)
	assert.Nil(t, preview.CurrentPeriod)
	assert.Equal(t, domain.NewDate(2025, 12, 20), preview.ProposedPeriod.Start)
	assert.Equal(t, domain.NewDate(2026, 12, 19), preview.ProposedPeriod.End)
}

func TestPreviewChecksAgeOnNewStart(t *testing.T) {
	f := newFixture(t, NewCalendar())
	junior := f.addType(t, "Junior", domain.FrequencyAnnual, "75.00", domain.AgeBounds{Max: domain.IntPtr(17)})
	// turns 18 on the first day of the next period
	member := f.addMember(t, "2008-01-01", &domain.Period{Start: domain.NewDate(2025, 1, 1), End: domain.NewDate(2025, 12, 31)})

	_, err := f.scheduler.Preview(context.Background(), member.ID, junior.ID)
	var ineligible *domain.IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, domain.RuleAge, ineligible.Rule)
}

func TestCommitAppendsAndAdvances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, NewCalendar())
	senior := f.addType(t, "Senior", domain.FrequencyAnnual, "150.00", domain.AgeBounds{})
	member := f.addMember(t, "1990-04-02", &domain.Period{Start: domain.NewDate(2025, 1, 1), End: domain.NewDate(2025, 12, 31)})

	first, err := f.scheduler.Commit(ctx, member.ID, Choice{TypeID: senior.ID, OptIns: []string{"Kit"}, Notes: " paid online "})
	require.NoError(t, err)
	assert.Equal(t, domain.MustParseAmount("185.00"), first.Fee)
	assert.Equal(t, "GBP", first.Currency)
	assert.Equal(t, "paid online", first.Notes)

	override := domain.MustParseAmount("100.00")
	second, err := f.scheduler.Commit(ctx, member.ID, Choice{TypeID: senior.ID, Fee: &override})
	require.NoError(t, err)
	assert.Equal(t, override, second.Fee)
	assert.Equal(t, domain.NewDate(2027, 1, 1), second.PeriodStart)
	assert.Equal(t, domain.NewDate(2027, 12, 31), second.PeriodEnd)

	records, err := f.store.ListRenewalRecords(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0], "earlier renewals are never rewritten")

	stored, err := f.store.FindMember(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentPeriod)
	assert.Equal(t, second.Period(), *stored.CurrentPeriod)

	def, err := f.store.GetByID(ctx, senior.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), def.UsageCount)

	history, err := f.scheduler.History(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, history[0].ID)
}

func TestCommitFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, NewCalendar())
	joining := f.addType(t, "Joining Fee", domain.FrequencyOneTime, "20.00", domain.AgeBounds{})
	member := f.addMember(t, "1990-04-02", nil)

	_, err := f.scheduler.Commit(ctx, member.ID, Choice{TypeID: joining.ID})
	require.ErrorIs(t, err, ErrNotRenewable)

	records, err := f.store.ListRenewalRecords(ctx, member.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	negative := domain.Amount(-1)
	_, err = f.scheduler.Commit(ctx, member.ID, Choice{TypeID: joining.ID, Fee: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type cancelledUsage struct{}

func (cancelledUsage) RecordUsage(context.Context, domain.MembershipTypeDefinition) error {
	return context.Canceled
}

func TestCommitPersistenceErrorKeepsCause(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, NewCalendar())
	senior := f.addType(t, "Senior", domain.FrequencyAnnual, "150.00", domain.AgeBounds{Min: domain.IntPtr(18)})
	period := domain.Period{Start: domain.NewDate(2025, time.January, 1), End: domain.NewDate(2025, time.December, 31)}
	member := f.addMember(t, "1990-04-02", &period)

	cat := catalog.New(f.store, catalog.WithLogger(discard))
	scheduler := New(f.store, f.store, f.store, eligibility.New(cat, eligibility.WithLogger(discard)), cancelledUsage{},
		WithLogger(discard),
		WithClock(func() time.Time { return time.Date(2025, time.December, 20, 10, 0, 0, 0, time.UTC) }),
	)

	_, err := scheduler.Commit(ctx, member.ID, Choice{TypeID: senior.ID})
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, context.Canceled)

	records, err := f.store.ListRenewalRecords(ctx, member.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
	stored, err := f.store.FindMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, period, *stored.CurrentPeriod)
}

package graphql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpattn/clubhouse/internal/audit"
	"github.com/rpattn/clubhouse/internal/auth"
	"github.com/rpattn/clubhouse/internal/catalog"
	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/editsession"
	"github.com/rpattn/clubhouse/internal/eligibility"
	"github.com/rpattn/clubhouse/internal/fees"
	"github.com/rpattn/clubhouse/internal/middleware"
	"github.com/rpattn/clubhouse/internal/renewal"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/google/uuid"
)

// Services are the collaborators the resolvers call.
type Services struct {
	Catalog    *catalog.Catalog
	Resolver   *eligibility.Resolver
	Aggregator *fees.Aggregator
	Formatter  *fees.Formatter
	Members    repository.MemberRepository
	Sessions   *editsession.Registry
	Trail      *audit.Trail
	Renewals   *renewal.Scheduler
}

// Resolver handles GraphQL queries and mutations
type Resolver struct {
	svc    Services
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates a new GraphQL resolver
func NewResolver(svc Services, opts ...Option) *Resolver {
	r := &Resolver{svc: svc, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.svc.Formatter == nil {
		r.svc.Formatter = fees.NewFormatter("en-GB")
	}
	return r
}

// fieldResolver resolves one root field from its coerced arguments.
type fieldResolver func(ctx context.Context, args arguments) (any, error)

func (r *Resolver) queryFields() map[string]fieldResolver {
	return map[string]fieldResolver{
		"member":          r.member,
		"eligibility":     r.eligibility,
		"quote":           r.quote,
		"memberQuote":     r.memberQuote,
		"changes":         r.changes,
		"membershipTypes": r.membershipTypes,
		"membershipType":  r.membershipType,
		"renewalPreview":  r.renewalPreview,
		"renewals":        r.renewals,
	}
}

func (r *Resolver) mutationFields() map[string]fieldResolver {
	return map[string]fieldResolver{
		"startEdit":                r.startEdit,
		"saveEdit":                 r.saveEdit,
		"cancelEdit":               r.cancelEdit,
		"commitRenewal":            r.commitRenewal,
		"deactivateMembershipType": r.deactivateMembershipType,
	}
}

// Query resolvers

func (r *Resolver) loadMember(ctx context.Context, args arguments, name string) (domain.MemberProfile, error) {
	id, err := args.id(name)
	if err != nil {
		return domain.MemberProfile{}, err
	}
	return r.svc.Members.FindMember(ctx, id)
}

func (r *Resolver) referenceDate(args arguments) (time.Time, error) {
	day, ok, err := args.date("on")
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return domain.DateOf(r.now()).Time, nil
	}
	return day.Time, nil
}

// member returns a member profile with its age today.
func (r *Resolver) member(ctx context.Context, args arguments) (any, error) {
	member, err := r.loadMember(ctx, args, "id")
	if err != nil {
		return nil, err
	}
	return memberView{MemberProfile: member, Age: knownAge(member.AgeOn(r.now()))}, nil
}

// eligibility lists eligible and excluded types on a reference date.
func (r *Resolver) eligibility(ctx context.Context, args arguments) (any, error) {
	member, err := r.loadMember(ctx, args, "memberId")
	if err != nil {
		return nil, err
	}
	ref, err := r.referenceDate(args)
	if err != nil {
		return nil, err
	}
	resolution, err := r.svc.Resolver.Resolve(ctx, member, ref)
	if err != nil {
		return nil, err
	}
	return resolutionView{
		Age:      knownAge(resolution.Age),
		On:       resolution.On,
		Eligible: resolution.Eligible,
		Excluded: resolution.Excluded,
	}, nil
}

// quote prices an arbitrary selection without an eligibility check.
func (r *Resolver) quote(ctx context.Context, args arguments) (any, error) {
	ids, err := args.ids("membershipTypeIds")
	if err != nil {
		return nil, err
	}
	defs, err := r.svc.Catalog.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]bool, len(defs))
	for _, def := range defs {
		found[def.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, &domain.IneligibleError{TypeID: id, Rule: domain.RuleUnknownType}
		}
	}
	return r.priced(defs)
}

// memberQuote prices the member's elected set after validating it.
func (r *Resolver) memberQuote(ctx context.Context, args arguments) (any, error) {
	member, err := r.loadMember(ctx, args, "memberId")
	if err != nil {
		return nil, err
	}
	ref, err := r.referenceDate(args)
	if err != nil {
		return nil, err
	}
	elected, err := r.svc.Resolver.Elect(ctx, member, ref)
	if err != nil {
		return nil, err
	}
	return r.priced(elected)
}

func (r *Resolver) priced(defs []domain.MembershipTypeDefinition) (any, error) {
	quote, err := r.svc.Aggregator.Quote(defs)
	if err != nil {
		return nil, err
	}
	return newQuoteView(quote, r.svc.Formatter), nil
}

// changes returns the member's audit trail newest first.
func (r *Resolver) changes(ctx context.Context, args arguments) (any, error) {
	id, err := args.id("memberId")
	if err != nil {
		return nil, err
	}
	records, err := r.svc.Trail.ListFor(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]changeView, len(records))
	for i, rec := range records {
		out[i] = newChangeView(rec)
	}
	return out, nil
}

// membershipTypes lists catalog definitions matching the filter arguments.
func (r *Resolver) membershipTypes(ctx context.Context, args arguments) (any, error) {
	filter := repository.MembershipTypeFilter{ActiveOnly: args.boolean("activeOnly")}
	if raw, ok := args.str("scope"); ok {
		scope, err := domain.ParseScope(raw)
		if err != nil {
			return nil, err
		}
		filter.Scope = &scope
	}
	if _, ok := args["ownerIds"]; ok {
		owners, err := args.ids("ownerIds")
		if err != nil {
			return nil, err
		}
		filter.OwnerIDs = owners
	}
	defs, err := r.svc.Catalog.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list membership types: %w", err)
	}
	return defs, nil
}

// membershipType returns one definition.
func (r *Resolver) membershipType(ctx context.Context, args arguments) (any, error) {
	id, err := args.id("id")
	if err != nil {
		return nil, err
	}
	return r.svc.Catalog.Get(ctx, id)
}

// renewalPreview proposes the next coverage period and its price.
func (r *Resolver) renewalPreview(ctx context.Context, args arguments) (any, error) {
	memberID, err := args.id("memberId")
	if err != nil {
		return nil, err
	}
	typeID, err := args.id("membershipTypeId")
	if err != nil {
		return nil, err
	}
	preview, err := r.svc.Renewals.Preview(ctx, memberID, typeID)
	if err != nil {
		return nil, err
	}
	return previewView{
		MemberID:         preview.MemberID,
		MembershipTypeID: preview.MembershipTypeID,
		CurrentPeriod:    preview.CurrentPeriod,
		ProposedPeriod:   preview.ProposedPeriod,
		AgeAtStart:       knownAge(preview.AgeAtStart),
		Quote:            newQuoteView(preview.Quote, r.svc.Formatter),
	}, nil
}

// renewals returns the member's renewal history with type names batched
// through the request's loader.
func (r *Resolver) renewals(ctx context.Context, args arguments) (any, error) {
	memberID, err := args.id("memberId")
	if err != nil {
		return nil, err
	}
	records, err := r.svc.Renewals.History(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return r.withTypeNames(ctx, records)
}

func (r *Resolver) withTypeNames(ctx context.Context, records []domain.RenewalRecord) ([]renewalView, error) {
	ids := make([]uuid.UUID, len(records))
	for i, rec := range records {
		ids[i] = rec.MembershipTypeID
	}
	names := map[uuid.UUID]string{}
	if loader := middleware.TypeLoaderFromContext(ctx); loader != nil {
		var err error
		if names, err = loader.Names(ctx, ids); err != nil {
			return nil, err
		}
	}
	out := make([]renewalView, len(records))
	for i, rec := range records {
		out[i] = renewalView{RenewalRecord: rec, MembershipTypeName: names[rec.MembershipTypeID]}
	}
	return out, nil
}

// Mutation resolvers

func actor(ctx context.Context) string {
	name, _ := auth.ActorFromContext(ctx)
	return name
}

// startEdit opens a section for the calling actor.
func (r *Resolver) startEdit(ctx context.Context, args arguments) (any, error) {
	memberID, err := args.id("memberId")
	if err != nil {
		return nil, err
	}
	section, _ := args.str("section")
	return r.svc.Sessions.StartEdit(ctx, memberID, actor(ctx), section)
}

// saveEdit saves the open draft. Failures carry reason "error".
func (r *Resolver) saveEdit(ctx context.Context, args arguments) (any, error) {
	memberID, err := args.id("memberId")
	if err != nil {
		return nil, saveFailed(err)
	}
	values, err := args.object("values")
	if err != nil {
		return nil, saveFailed(err)
	}
	section, _ := args.str("section")
	result, err := r.svc.Sessions.SaveEdit(ctx, memberID, actor(ctx), section, values)
	if err != nil {
		return nil, saveFailed(err)
	}
	out := saveResultView{Reason: result.Reason}
	if result.Saved != nil {
		saved := newChangeView(*result.Saved)
		out.Saved = &saved
	}
	return out, nil
}

// cancelEdit discards the calling actor's draft.
func (r *Resolver) cancelEdit(ctx context.Context, args arguments) (any, error) {
	memberID, err := args.id("memberId")
	if err != nil {
		return nil, err
	}
	if err := r.svc.Sessions.CancelEdit(ctx, memberID, actor(ctx)); err != nil {
		return nil, err
	}
	return true, nil
}

// commitRenewal appends a renewal and advances the member's coverage.
func (r *Resolver) commitRenewal(ctx context.Context, args arguments) (any, error) {
	input, err := args.object("input")
	if err != nil {
		return nil, err
	}
	in := arguments(input)
	memberID, err := in.id("memberId")
	if err != nil {
		return nil, err
	}
	typeID, err := in.id("membershipTypeId")
	if err != nil {
		return nil, err
	}
	choice := renewal.Choice{TypeID: typeID, OptIns: in.strings("optIns")}
	choice.Notes, _ = in.str("notes")
	if raw, ok := in.str("fee"); ok {
		fee, err := domain.ParseAmount(raw)
		if err != nil {
			return nil, err
		}
		choice.Fee = &fee
	}

	record, err := r.svc.Renewals.Commit(ctx, memberID, choice)
	if err != nil {
		return nil, err
	}
	named, err := r.withTypeNames(ctx, []domain.RenewalRecord{record})
	if err != nil {
		return nil, err
	}
	return named[0], nil
}

// deactivateMembershipType hides a type from new elections.
func (r *Resolver) deactivateMembershipType(ctx context.Context, args arguments) (any, error) {
	id, err := args.id("id")
	if err != nil {
		return nil, err
	}
	return r.svc.Catalog.Deactivate(ctx, id)
}

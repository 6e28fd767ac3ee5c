package eligibility

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/metrics"

	"github.com/google/uuid"
)

// Catalog is the slice of the scope catalog the resolver reads.
type Catalog interface {
	Candidates(ctx context.Context, member domain.MemberProfile) ([]domain.MembershipTypeDefinition, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.MembershipTypeDefinition, error)
}

// Exclusion is a scope-matched candidate that failed the age check.
type Exclusion struct {
	Definition domain.MembershipTypeDefinition `json:"definition"`
	Rule       domain.EligibilityRule          `json:"rule"`
}

// Resolution is the outcome of one eligibility pass for a member on a date.
type Resolution struct {
	Age      domain.Age                        `json:"age"`
	On       domain.Date                       `json:"on"`
	Eligible []domain.MembershipTypeDefinition `json:"eligible"`
	Excluded []Exclusion                       `json:"excluded"`
}

// IsEligible reports whether id is among the eligible definitions.
func (r Resolution) IsEligible(id uuid.UUID) bool {
	for _, def := range r.Eligible {
		if def.ID == id {
			return true
		}
	}
	return false
}

// Resolver combines scope candidates with age bounds.
type Resolver struct {
	catalog Catalog
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// New constructs a Resolver.
func New(catalog Catalog, opts ...Option) *Resolver {
	r := &Resolver{catalog: catalog}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve splits the member's scope candidates into eligible and excluded by
// age on ref. An unknown age excludes every bounded type with rule
// unknown-age; unbounded types stay eligible.
func (r *Resolver) Resolve(ctx context.Context, member domain.MemberProfile, ref time.Time) (Resolution, error) {
	defer r.metrics.ObserveResolve(time.Now())

	candidates, err := r.catalog.Candidates(ctx, member)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve eligibility for member %s: %w", member.ID, err)
	}

	age := member.AgeOn(ref)
	res := Resolution{
		Age:      age,
		On:       domain.DateOf(ref),
		Eligible: []domain.MembershipTypeDefinition{},
		Excluded: []Exclusion{},
	}
	for _, def := range candidates {
		if rule, ok := ageRule(def, age); !ok {
			res.Excluded = append(res.Excluded, Exclusion{Definition: def, Rule: rule})
			continue
		}
		res.Eligible = append(res.Eligible, def)
	}

	if !age.Known() && len(res.Excluded) > 0 {
		r.logger.WarnContext(ctx, "member age unknown; age-bounded membership types excluded",
			"member_id", member.ID, "excluded", len(res.Excluded))
	}
	return res, nil
}

func ageRule(def domain.MembershipTypeDefinition, age domain.Age) (domain.EligibilityRule, bool) {
	if def.AgeBounds.Contains(age) {
		return "", true
	}
	if !age.Known() {
		return domain.RuleUnknownAge, false
	}
	return domain.RuleAge, false
}

// Check validates a selection of membership types for member on ref. Each id
// must name an active type whose scope applies to the member and whose age
// bounds contain the member's age. At most one type may be chosen per scope
// owner. Definitions are returned in selection order.
func (r *Resolver) Check(ctx context.Context, member domain.MemberProfile, ids []uuid.UUID, ref time.Time) ([]domain.MembershipTypeDefinition, error) {
	defs, err := r.catalog.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load elected membership types: %w", err)
	}
	byID := make(map[uuid.UUID]domain.MembershipTypeDefinition, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}

	age := member.AgeOn(ref)
	elected := make([]domain.MembershipTypeDefinition, 0, len(ids))
	scopes := make(map[string]uuid.UUID, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		def, ok := byID[id]
		if !ok {
			return nil, &domain.IneligibleError{TypeID: id, Rule: domain.RuleUnknownType}
		}
		if !def.Active {
			return nil, &domain.IneligibleError{TypeID: id, Rule: domain.RuleInactive}
		}
		if !def.AppliesTo(member) {
			return nil, &domain.IneligibleError{TypeID: id, Rule: domain.RuleScope}
		}
		if rule, ok := ageRule(def, age); !ok {
			return nil, &domain.IneligibleError{TypeID: id, Rule: rule}
		}
		if other, taken := scopes[def.ScopeKey()]; taken {
			return nil, fmt.Errorf("%w: %s and %s both elected for %s", domain.ErrDuplicateScope, other, id, def.ScopeKey())
		}
		scopes[def.ScopeKey()] = id
		elected = append(elected, def)
	}
	return elected, nil
}

// Elect validates the member's own elected set on ref.
func (r *Resolver) Elect(ctx context.Context, member domain.MemberProfile, ref time.Time) ([]domain.MembershipTypeDefinition, error) {
	return r.Check(ctx, member, member.MembershipTypeIDs, ref)
}

// CheckOne validates a single membership type choice.
func (r *Resolver) CheckOne(ctx context.Context, member domain.MemberProfile, id uuid.UUID, ref time.Time) (domain.MembershipTypeDefinition, error) {
	defs, err := r.Check(ctx, member, []uuid.UUID{id}, ref)
	if err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	return defs[0], nil
}

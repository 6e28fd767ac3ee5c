package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ScopeReader loads every definition, active or not, owned by one scope owner.
// owner is nil for the global scope.
type ScopeReader interface {
	ForScope(ctx context.Context, scope domain.Scope, owner *uuid.UUID) ([]domain.MembershipTypeDefinition, error)
}

// Invalidator drops cached reads for one scope owner after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, scope domain.Scope, owner *uuid.UUID) error
}

// Catalog is the read path over configured membership types plus the admin
// operations that change them.
type Catalog struct {
	repo        repository.MembershipTypeRepository
	reader      ScopeReader
	invalidator Invalidator
	logger      *slog.Logger
}

type Option func(*Catalog)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithCache routes scope reads through cache and invalidates it on writes.
func WithCache(cache *Cache) Option {
	return func(c *Catalog) {
		c.reader = cache
		c.invalidator = cache
	}
}

// New constructs a Catalog over repo.
func New(repo repository.MembershipTypeRepository, opts ...Option) *Catalog {
	c := &Catalog{repo: repo}
	c.reader = RepositoryReader{Repo: repo}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// RepositoryReader adapts a repository to ScopeReader.
type RepositoryReader struct {
	Repo repository.MembershipTypeRepository
}

func (r RepositoryReader) ForScope(ctx context.Context, scope domain.Scope, owner *uuid.UUID) ([]domain.MembershipTypeDefinition, error) {
	filter := repository.MembershipTypeFilter{Scope: &scope}
	if owner != nil {
		filter.OwnerIDs = []uuid.UUID{*owner}
	}
	return r.Repo.Find(ctx, filter)
}

type scopeQuery struct {
	scope domain.Scope
	owner *uuid.UUID
}

func memberQueries(member domain.MemberProfile) []scopeQuery {
	queries := []scopeQuery{{scope: domain.ScopeGlobal}}
	if member.AssociationID != uuid.Nil {
		id := member.AssociationID
		queries = append(queries, scopeQuery{scope: domain.ScopeAssociation, owner: &id})
	}
	if member.ClubID != uuid.Nil {
		id := member.ClubID
		queries = append(queries, scopeQuery{scope: domain.ScopeClub, owner: &id})
	}
	seen := map[uuid.UUID]bool{}
	for _, teamID := range member.TeamIDs {
		if teamID == uuid.Nil || seen[teamID] {
			continue
		}
		seen[teamID] = true
		id := teamID
		queries = append(queries, scopeQuery{scope: domain.ScopeTeam, owner: &id})
	}
	return queries
}

// Candidates returns the active definitions whose scope matches member:
// global always, association, club and team by owner id. Results are ordered
// global, association, club, then teams in the member's order.
func (c *Catalog) Candidates(ctx context.Context, member domain.MemberProfile) ([]domain.MembershipTypeDefinition, error) {
	queries := memberQueries(member)
	results := make([][]domain.MembershipTypeDefinition, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			defs, err := c.reader.ForScope(gctx, q.scope, q.owner)
			if err != nil {
				return fmt.Errorf("load %s membership types: %w", q.scope, err)
			}
			results[i] = defs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []domain.MembershipTypeDefinition{}
	seen := map[uuid.UUID]bool{}
	for i, defs := range results {
		for _, def := range defs {
			if !def.Active || seen[def.ID] || !ownedBy(def, queries[i]) {
				continue
			}
			seen[def.ID] = true
			out = append(out, def)
		}
	}
	return out, nil
}

func ownedBy(def domain.MembershipTypeDefinition, q scopeQuery) bool {
	if def.Scope != q.scope {
		return false
	}
	if q.owner == nil {
		return def.ScopeOwnerID == nil
	}
	return def.ScopeOwnerID != nil && *def.ScopeOwnerID == *q.owner
}

// List returns definitions matching filter straight from the store.
func (c *Catalog) List(ctx context.Context, filter repository.MembershipTypeFilter) ([]domain.MembershipTypeDefinition, error) {
	return c.repo.Find(ctx, filter)
}

func (c *Catalog) Get(ctx context.Context, id uuid.UUID) (domain.MembershipTypeDefinition, error) {
	return c.repo.GetByID(ctx, id)
}

// GetMany returns the definitions for ids, skipping unknown ids.
func (c *Catalog) GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.MembershipTypeDefinition, error) {
	return c.repo.GetByIDs(ctx, ids)
}

// Create validates and stores a new definition.
func (c *Catalog) Create(ctx context.Context, def domain.MembershipTypeDefinition) (domain.MembershipTypeDefinition, error) {
	if err := def.Validate(); err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	created, err := c.repo.Create(ctx, def)
	if err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	c.invalidate(ctx, created.Scope, created.ScopeOwnerID)
	c.logger.InfoContext(ctx, "membership type created",
		"membership_type_id", created.ID, "scope", created.ScopeKey(), "name", created.Name)
	return created, nil
}

// Update replaces a definition. Scope and owner may change; both the old and
// new scope owners are invalidated.
func (c *Catalog) Update(ctx context.Context, def domain.MembershipTypeDefinition) (domain.MembershipTypeDefinition, error) {
	if err := def.Validate(); err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	current, err := c.repo.GetByID(ctx, def.ID)
	if err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	updated, err := c.repo.Update(ctx, def)
	if err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	c.invalidate(ctx, current.Scope, current.ScopeOwnerID)
	c.invalidate(ctx, updated.Scope, updated.ScopeOwnerID)
	return updated, nil
}

// Deactivate hides a definition from candidates while keeping its history.
func (c *Catalog) Deactivate(ctx context.Context, id uuid.UUID) (domain.MembershipTypeDefinition, error) {
	current, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	if !current.Active {
		return current, nil
	}
	return c.Update(ctx, current.WithActive(false))
}

// Delete removes a definition that has never been used. Used definitions
// fail with domain.ErrTypeInUse and should be deactivated instead.
func (c *Catalog) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrTypeInUse) {
			c.logger.WarnContext(ctx, "refused to delete membership type in use",
				"membership_type_id", id, "usage_count", current.UsageCount)
		}
		return err
	}
	c.invalidate(ctx, current.Scope, current.ScopeOwnerID)
	return nil
}

// RecordUsage bumps the usage count that guards deletion.
func (c *Catalog) RecordUsage(ctx context.Context, def domain.MembershipTypeDefinition) error {
	if err := c.repo.IncrementUsage(ctx, def.ID); err != nil {
		return err
	}
	c.invalidate(ctx, def.Scope, def.ScopeOwnerID)
	return nil
}

func (c *Catalog) invalidate(ctx context.Context, scope domain.Scope, owner *uuid.UUID) {
	if c.invalidator == nil {
		return
	}
	if err := c.invalidator.Invalidate(ctx, scope, owner); err != nil {
		c.logger.WarnContext(ctx, "catalog cache invalidation failed", "scope", scope, "error", err)
	}
}

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var annualGBP = domain.Fee{Currency: "GBP", Frequency: domain.FrequencyAnnual}

type hierarchy struct {
	association uuid.UUID
	club        uuid.UUID
	otherClub   uuid.UUID
	team        uuid.UUID
}

func newHierarchy() hierarchy {
	return hierarchy{association: uuid.New(), club: uuid.New(), otherClub: uuid.New(), team: uuid.New()}
}

func mustCreate(t *testing.T, c *Catalog, name string, scope domain.Scope, owner *uuid.UUID) domain.MembershipTypeDefinition {
	t.Helper()
	def, err := c.Create(context.Background(), domain.NewMembershipTypeDefinition(name, scope, owner, domain.AgeBounds{}, annualGBP))
	require.NoError(t, err)
	return def
}

func TestCandidatesMatchesScopeHierarchy(t *testing.T) {
	ctx := context.Background()
	h := newHierarchy()
	c := New(repository.NewMemoryStore())

	global := mustCreate(t, c, "National Registration", domain.ScopeGlobal, nil)
	assoc := mustCreate(t, c, "County Affiliation", domain.ScopeAssociation, &h.association)
	club := mustCreate(t, c, "Senior", domain.ScopeClub, &h.club)
	team := mustCreate(t, c, "U16 Squad", domain.ScopeTeam, &h.team)
	mustCreate(t, c, "Other Club Senior", domain.ScopeClub, &h.otherClub)
	retired := mustCreate(t, c, "Retired", domain.ScopeClub, &h.club)
	_, err := c.Deactivate(ctx, retired.ID)
	require.NoError(t, err)

	member := domain.MemberProfile{AssociationID: h.association, ClubID: h.club, TeamIDs: []uuid.UUID{h.team}}
	candidates, err := c.Candidates(ctx, member)
	require.NoError(t, err)

	ids := make([]uuid.UUID, len(candidates))
	for i, def := range candidates {
		ids[i] = def.ID
	}
	assert.Equal(t, []uuid.UUID{global.ID, assoc.ID, club.ID, team.ID}, ids)
}

func TestCandidatesWithoutAffiliationsReturnsGlobalOnly(t *testing.T) {
	c := New(repository.NewMemoryStore())
	h := newHierarchy()
	global := mustCreate(t, c, "National Registration", domain.ScopeGlobal, nil)
	mustCreate(t, c, "Senior", domain.ScopeClub, &h.club)

	candidates, err := c.Candidates(context.Background(), domain.MemberProfile{})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, global.ID, candidates[0].ID)
}

type failingReader struct{ err error }

func (f failingReader) ForScope(context.Context, domain.Scope, *uuid.UUID) ([]domain.MembershipTypeDefinition, error) {
	return nil, f.err
}

func TestCandidatesPropagatesStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	c := New(repository.NewMemoryStore())
	c.reader = failingReader{err: boom}

	_, err := c.Candidates(context.Background(), domain.MemberProfile{ClubID: uuid.New()})
	assert.ErrorIs(t, err, boom)
}

func TestCreateRejectsInvalidDefinition(t *testing.T) {
	c := New(repository.NewMemoryStore())
	_, err := c.Create(context.Background(), domain.NewMembershipTypeDefinition("Senior", domain.ScopeClub, nil, domain.AgeBounds{}, annualGBP))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeleteRefusesUsedType(t *testing.T) {
	ctx := context.Background()
	c := New(repository.NewMemoryStore())
	def := mustCreate(t, c, "National Registration", domain.ScopeGlobal, nil)

	require.NoError(t, c.RecordUsage(ctx, def))
	assert.ErrorIs(t, c.Delete(ctx, def.ID), domain.ErrTypeInUse)

	deactivated, err := c.Deactivate(ctx, def.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
	assert.Equal(t, int64(1), deactivated.UsageCount)
}

func TestUpdateMovesTypeBetweenScopes(t *testing.T) {
	ctx := context.Background()
	h := newHierarchy()
	c := New(repository.NewMemoryStore())
	def := mustCreate(t, c, "Senior", domain.ScopeClub, &h.club)

	def.ScopeOwnerID = &h.otherClub
	_, err := c.Update(ctx, def)
	require.NoError(t, err)

	candidates, err := c.Candidates(ctx, domain.MemberProfile{ClubID: h.club})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

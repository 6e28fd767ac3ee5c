//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/testutil/containers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepositories(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	types := NewMembershipTypeRepository(pg.Conn)
	members := NewMemberRepository(pg.Conn)
	changes := NewChangeRecordRepository(pg.Conn)
	renewals := NewRenewalRepository(pg.Conn)

	club := uuid.New()
	def, err := types.Create(ctx, domain.NewMembershipTypeDefinition("Senior", domain.ScopeClub, &club,
		domain.AgeBounds{Min: domain.IntPtr(18)},
		domain.Fee{BaseAmount: domain.MustParseAmount("150.00"), Currency: "GBP", Frequency: domain.FrequencyAnnual},
	))
	require.NoError(t, err)

	scope := domain.ScopeClub
	found, err := types.Find(ctx, MembershipTypeFilter{Scope: &scope, OwnerIDs: []uuid.UUID{club}, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, domain.MustParseAmount("150.00"), found[0].Fee.BaseAmount)

	member, err := members.CreateMember(ctx, domain.MemberProfile{
		DateOfBirth: "1990-04-02",
		ClubID:      club,
		Record:      map[string]any{"email": "ana@old.example"},
	})
	require.NoError(t, err)

	t.Run("replace bumps version", func(t *testing.T) {
		replaced, err := members.ReplaceMember(ctx, member.WithRecord(map[string]any{"email": "ana@new.example"}))
		require.NoError(t, err)
		assert.Equal(t, member.Version+1, replaced.Version)

		_, err = members.ReplaceMember(ctx, member.WithRecord(map[string]any{"email": "ana@stale.example"}))
		require.ErrorIs(t, err, domain.ErrStaleWrite)
	})

	t.Run("change records are append-only", func(t *testing.T) {
		record, err := domain.NewChangeRecord(member.ID, "Contact Information",
			domain.Changes{"email": {Old: "ana@old.example", New: "ana@new.example"}, "mobile": {New: "0700", OldAbsent: true}},
			"registrar", time.Now())
		require.NoError(t, err)
		require.NoError(t, changes.AppendChangeRecord(ctx, record))

		listed, err := changes.ListChangeRecords(ctx, member.ID)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, record.Changes, listed[0].Changes)

		_, err = pg.Conn.Pool.Exec(ctx, `DELETE FROM change_records WHERE id = $1`, record.ID)
		assert.Error(t, err)
	})

	t.Run("usage guard blocks delete", func(t *testing.T) {
		require.NoError(t, renewals.AppendRenewalRecord(ctx, domain.RenewalRecord{
			MemberID:         member.ID,
			MembershipTypeID: def.ID,
			PeriodStart:      domain.NewDate(2026, time.January, 1),
			PeriodEnd:        domain.NewDate(2026, time.December, 31),
			Fee:              domain.MustParseAmount("150.00"),
			Currency:         "GBP",
			RenewalDate:      time.Now().UTC(),
		}))
		require.NoError(t, types.IncrementUsage(ctx, def.ID))

		err := types.Delete(ctx, def.ID)
		assert.True(t, errors.Is(err, domain.ErrTypeInUse), "got %v", err)

		listed, err := renewals.ListRenewalRecords(ctx, member.ID)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, "2026-12-31", listed[0].PeriodEnd.String())
	})

	t.Run("transaction rolls back both writes", func(t *testing.T) {
		boom := errors.New("boom")
		err := pg.Conn.WithinTransaction(ctx, func(ctx context.Context) error {
			current, err := members.FindMember(ctx, member.ID)
			if err != nil {
				return err
			}
			if _, err := members.ReplaceMember(ctx, current.WithRecord(map[string]any{"email": "rolled@back.example"})); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		stored, err := members.FindMember(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, "ana@new.example", stored.Record["email"])
	})

	t.Run("read inside a transaction locks the row", func(t *testing.T) {
		err := pg.Conn.WithinTransaction(ctx, func(txCtx context.Context) error {
			if _, err := members.FindMember(txCtx, member.ID); err != nil {
				return err
			}

			waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
			defer cancel()
			blocked := pg.Conn.WithinTransaction(waitCtx, func(otherCtx context.Context) error {
				_, err := members.FindMember(otherCtx, member.ID)
				return err
			})
			assert.Error(t, blocked, "a second locking read must wait for the first transaction")
			return nil
		})
		require.NoError(t, err)
	})
}

package repository

import (
	"context"

	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/google/uuid"
)

// MembershipTypeFilter narrows a catalog query. Empty fields do not filter.
type MembershipTypeFilter struct {
	Scope      *domain.Scope
	OwnerIDs   []uuid.UUID
	IDs        []uuid.UUID
	ActiveOnly bool
}

// Matches applies the filter to a single definition.
func (f MembershipTypeFilter) Matches(def domain.MembershipTypeDefinition) bool {
	if f.ActiveOnly && !def.Active {
		return false
	}
	if f.Scope != nil && def.Scope != *f.Scope {
		return false
	}
	if len(f.OwnerIDs) > 0 {
		if def.ScopeOwnerID == nil || !containsID(f.OwnerIDs, *def.ScopeOwnerID) {
			return false
		}
	}
	if len(f.IDs) > 0 && !containsID(f.IDs, def.ID) {
		return false
	}
	return true
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// MembershipTypeRepository is the configuration store behind the scope catalog.
type MembershipTypeRepository interface {
	Find(ctx context.Context, filter MembershipTypeFilter) ([]domain.MembershipTypeDefinition, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.MembershipTypeDefinition, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.MembershipTypeDefinition, error)
	Create(ctx context.Context, def domain.MembershipTypeDefinition) (domain.MembershipTypeDefinition, error)
	Update(ctx context.Context, def domain.MembershipTypeDefinition) (domain.MembershipTypeDefinition, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	// Delete fails with domain.ErrTypeInUse while the usage count is positive.
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemberRepository stores whole member documents.
type MemberRepository interface {
	CreateMember(ctx context.Context, member domain.MemberProfile) (domain.MemberProfile, error)
	// FindMember locks the row until commit when ctx carries a transaction.
	FindMember(ctx context.Context, id uuid.UUID) (domain.MemberProfile, error)
	// ReplaceMember overwrites the whole document and bumps its version. A
	// non-zero member.Version must match the stored one or the call fails with
	// domain.ErrStaleWrite.
	ReplaceMember(ctx context.Context, member domain.MemberProfile) (domain.MemberProfile, error)
}

// ChangeRecordRepository is append-only: there is no update or delete.
type ChangeRecordRepository interface {
	AppendChangeRecord(ctx context.Context, record domain.ChangeRecord) error
	// ListChangeRecords returns records in insertion order.
	ListChangeRecords(ctx context.Context, memberID uuid.UUID) ([]domain.ChangeRecord, error)
}

// RenewalRepository is append-only: there is no update or delete.
type RenewalRepository interface {
	AppendRenewalRecord(ctx context.Context, record domain.RenewalRecord) error
	// ListRenewalRecords returns records in insertion order.
	ListRenewalRecords(ctx context.Context, memberID uuid.UUID) ([]domain.RenewalRecord, error)
}

// Transactor groups several repository writes into one atomic unit.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore implements every repository in process. It backs the dev server
// and the service tests.
type MemoryStore struct {
	mu       sync.RWMutex
	types    map[uuid.UUID]domain.MembershipTypeDefinition
	members  map[uuid.UUID]domain.MemberProfile
	changes  map[uuid.UUID][]domain.ChangeRecord
	renewals map[uuid.UUID][]domain.RenewalRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		types:    map[uuid.UUID]domain.MembershipTypeDefinition{},
		members:  map[uuid.UUID]domain.MemberProfile{},
		changes:  map[uuid.UUID][]domain.ChangeRecord{},
		renewals: map[uuid.UUID][]domain.RenewalRecord{},
	}
}

var (
	_ MembershipTypeRepository = (*MemoryStore)(nil)
	_ MemberRepository         = (*MemoryStore)(nil)
	_ ChangeRecordRepository   = (*MemoryStore)(nil)
	_ RenewalRepository        = (*MemoryStore)(nil)
	_ Transactor               = (*MemoryStore)(nil)
)

type memTxKey struct{}

// memTx collects undo steps for the writes made inside one transaction.
type memTx struct {
	undo []func()
}

// WithinTransaction runs fn and, if it fails, reverts only the writes fn made.
// Writes committed concurrently by other callers are left alone. Nested calls
// join the outer transaction.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}
	tx := &memTx{}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// onRollback registers undo for the transaction carried by ctx. Callers hold mu.
func onRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

// Find returns definitions matching filter ordered by scope then name.
func (s *MemoryStore) Find(_ context.Context, filter MembershipTypeFilter) ([]domain.MembershipTypeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.MembershipTypeDefinition{}
	for _, def := range s.types {
		if filter.Matches(def) {
			out = append(out, def)
		}
	}
	sortDefinitions(out)
	return out, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (domain.MembershipTypeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.types[id]
	if !ok {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("membership type %s: %w", id, domain.ErrNotFound)
	}
	return def, nil
}

func (s *MemoryStore) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.MembershipTypeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MembershipTypeDefinition, 0, len(ids))
	for _, id := range ids {
		if def, ok := s.types[id]; ok {
			out = append(out, def)
		}
	}
	return out, nil
}

func (s *MemoryStore) Create(ctx context.Context, def domain.MembershipTypeDefinition) (domain.MembershipTypeDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	if _, exists := s.types[def.ID]; exists {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("%w: membership type %s already exists", domain.ErrInvalidInput, def.ID)
	}
	now := time.Now().UTC()
	def.CreatedAt, def.UpdatedAt = now, now
	s.types[def.ID] = def
	onRollback(ctx, func() { delete(s.types, def.ID) })
	return def, nil
}

func (s *MemoryStore) Update(ctx context.Context, def domain.MembershipTypeDefinition) (domain.MembershipTypeDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.types[def.ID]
	if !ok {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("membership type %s: %w", def.ID, domain.ErrNotFound)
	}
	def.CreatedAt = current.CreatedAt
	def.UsageCount = current.UsageCount
	def.UpdatedAt = time.Now().UTC()
	s.types[def.ID] = def
	onRollback(ctx, func() {
		if latest, ok := s.types[current.ID]; ok {
			current.UsageCount = latest.UsageCount
			s.types[current.ID] = current
		}
	})
	return def, nil
}

func (s *MemoryStore) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.types[id]
	if !ok {
		return fmt.Errorf("membership type %s: %w", id, domain.ErrNotFound)
	}
	def.UsageCount++
	s.types[id] = def
	onRollback(ctx, func() {
		if latest, ok := s.types[id]; ok && latest.UsageCount > 0 {
			latest.UsageCount--
			s.types[id] = latest
		}
	})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.types[id]
	if !ok {
		return fmt.Errorf("membership type %s: %w", id, domain.ErrNotFound)
	}
	if def.UsageCount > 0 {
		return fmt.Errorf("membership type %s used %d times: %w", id, def.UsageCount, domain.ErrTypeInUse)
	}
	delete(s.types, id)
	onRollback(ctx, func() { s.types[id] = def })
	return nil
}

func (s *MemoryStore) CreateMember(ctx context.Context, member domain.MemberProfile) (domain.MemberProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	if _, exists := s.members[member.ID]; exists {
		return domain.MemberProfile{}, fmt.Errorf("%w: member %s already exists", domain.ErrInvalidInput, member.ID)
	}
	now := time.Now().UTC()
	member.CreatedAt, member.UpdatedAt = now, now
	member.Version = 1
	s.members[member.ID] = member.Clone()
	onRollback(ctx, func() { delete(s.members, member.ID) })
	return member.Clone(), nil
}

func (s *MemoryStore) FindMember(_ context.Context, id uuid.UUID) (domain.MemberProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, ok := s.members[id]
	if !ok {
		return domain.MemberProfile{}, fmt.Errorf("member %s: %w", id, domain.ErrNotFound)
	}
	return member.Clone(), nil
}

func (s *MemoryStore) ReplaceMember(ctx context.Context, member domain.MemberProfile) (domain.MemberProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.members[member.ID]
	if !ok {
		return domain.MemberProfile{}, fmt.Errorf("member %s: %w", member.ID, domain.ErrNotFound)
	}
	if member.Version != 0 && member.Version != current.Version {
		return domain.MemberProfile{}, fmt.Errorf("%w: member %s is at version %d, write was based on %d",
			domain.ErrStaleWrite, member.ID, current.Version, member.Version)
	}
	member.CreatedAt = current.CreatedAt
	member.Version = current.Version + 1
	member.UpdatedAt = time.Now().UTC()
	s.members[member.ID] = member.Clone()
	written := member.Version
	onRollback(ctx, func() {
		if latest, ok := s.members[current.ID]; ok && latest.Version == written {
			s.members[current.ID] = current
		}
	})
	return member.Clone(), nil
}

func (s *MemoryStore) AppendChangeRecord(ctx context.Context, record domain.ChangeRecord) error {
	if record.Changes.Empty() {
		return domain.ErrEmptyDiff
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.changes[record.MemberID] = append(s.changes[record.MemberID], record)
	onRollback(ctx, func() {
		s.changes[record.MemberID] = removeFirst(s.changes[record.MemberID], func(r domain.ChangeRecord) bool { return r.ID == record.ID })
	})
	return nil
}

func (s *MemoryStore) ListChangeRecords(_ context.Context, memberID uuid.UUID) ([]domain.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.ChangeRecord{}, s.changes[memberID]...), nil
}

func (s *MemoryStore) AppendRenewalRecord(ctx context.Context, record domain.RenewalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.renewals[record.MemberID] = append(s.renewals[record.MemberID], record)
	onRollback(ctx, func() {
		s.renewals[record.MemberID] = removeFirst(s.renewals[record.MemberID], func(r domain.RenewalRecord) bool { return r.ID == record.ID })
	})
	return nil
}

func (s *MemoryStore) ListRenewalRecords(_ context.Context, memberID uuid.UUID) ([]domain.RenewalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.RenewalRecord{}, s.renewals[memberID]...), nil
}

func removeFirst[T any](items []T, match func(T) bool) []T {
	for i, item := range items {
		if match(item) {
			return append(items[:i:i], items[i+1:]...)
		}
	}
	return items
}

var scopeOrder = map[domain.Scope]int{
	domain.ScopeGlobal:      0,
	domain.ScopeAssociation: 1,
	domain.ScopeClub:        2,
	domain.ScopeTeam:        3,
}

func sortDefinitions(defs []domain.MembershipTypeDefinition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if scopeOrder[defs[i].Scope] != scopeOrder[defs[j].Scope] {
			return scopeOrder[defs[i].Scope] < scopeOrder[defs[j].Scope]
		}
		return defs[i].Name < defs[j].Name
	})
}

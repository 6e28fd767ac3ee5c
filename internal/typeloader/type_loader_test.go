package typeloader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/google/uuid"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls int
	defs  map[uuid.UUID]domain.MembershipTypeDefinition
	err   error
}

func (f *countingFetcher) GetMany(_ context.Context, ids []uuid.UUID) ([]domain.MembershipTypeDefinition, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.MembershipTypeDefinition
	for _, id := range ids {
		if def, ok := f.defs[id]; ok {
			out = append(out, def)
		}
	}
	return out, nil
}

func TestNamesBatchesLookups(t *testing.T) {
	senior := domain.NewMembershipTypeDefinition("Senior", domain.ScopeGlobal, nil, domain.AgeBounds{}, domain.Fee{})
	junior := domain.NewMembershipTypeDefinition("Junior", domain.ScopeGlobal, nil, domain.AgeBounds{}, domain.Fee{})
	fetcher := &countingFetcher{defs: map[uuid.UUID]domain.MembershipTypeDefinition{senior.ID: senior, junior.ID: junior}}
	loader := NewTypeLoader(fetcher)

	missing := uuid.New()
	names, err := loader.Names(context.Background(), []uuid.UUID{senior.ID, junior.ID, senior.ID, missing})
	if err != nil {
		t.Fatalf("names returned error: %v", err)
	}
	if names[senior.ID] != "Senior" || names[junior.ID] != "Junior" {
		t.Fatalf("unexpected names: %v", names)
	}
	if _, ok := names[missing]; ok {
		t.Fatalf("expected unknown id to be absent")
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected one batched fetch, got %d", fetcher.calls)
	}
}

func TestLoadReportsUnknownAndErrors(t *testing.T) {
	loader := NewTypeLoader(&countingFetcher{})
	_, ok, err := loader.Load(context.Background(), uuid.New())
	if err != nil || ok {
		t.Fatalf("expected unknown id to load as absent, got ok=%v err=%v", ok, err)
	}

	boom := errors.New("store down")
	failing := NewTypeLoader(&countingFetcher{err: boom})
	if _, _, err := failing.Load(context.Background(), uuid.New()); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

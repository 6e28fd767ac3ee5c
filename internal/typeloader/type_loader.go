package typeloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// Fetcher loads membership types by id, skipping unknown ids.
type Fetcher interface {
	GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.MembershipTypeDefinition, error)
}

// TypeLoader batches membership type lookups made while serving one request.
type TypeLoader struct {
	Loader *dataloader.Loader
}

func NewTypeLoader(fetcher Fetcher) *TypeLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				for j := range results {
					results[j] = &dataloader.Result{Error: fmt.Errorf("%w: invalid membership type id %q", domain.ErrInvalidInput, k.String())}
				}
				return results
			}
			ids[i] = id
		}

		defs, err := fetcher.GetMany(ctx, ids)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		byID := make(map[uuid.UUID]domain.MembershipTypeDefinition, len(defs))
		for _, def := range defs {
			byID[def.ID] = def
		}

		// results follow key order; unknown ids resolve to nil data
		for i, id := range ids {
			if def, ok := byID[id]; ok {
				results[i] = &dataloader.Result{Data: def}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(2*time.Millisecond))
	return &TypeLoader{Loader: loader}
}

// Load resolves one id. ok is false for an unknown id.
func (l *TypeLoader) Load(ctx context.Context, id uuid.UUID) (domain.MembershipTypeDefinition, bool, error) {
	return fromResult(l.Loader.Load(ctx, dataloader.StringKey(id.String()))())
}

// Names resolves the display name of every id in ids. Unknown ids are absent
// from the returned map.
func (l *TypeLoader) Names(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	thunks := make([]dataloader.Thunk, len(ids))
	for i, id := range ids {
		thunks[i] = l.Loader.Load(ctx, dataloader.StringKey(id.String()))
	}

	names := make(map[uuid.UUID]string, len(ids))
	for i, thunk := range thunks {
		def, ok, err := fromResult(thunk())
		if err != nil {
			return nil, err
		}
		if ok {
			names[ids[i]] = def.Name
		}
	}
	return names, nil
}

func fromResult(data any, err error) (domain.MembershipTypeDefinition, bool, error) {
	if err != nil {
		return domain.MembershipTypeDefinition{}, false, err
	}
	def, ok := data.(domain.MembershipTypeDefinition)
	return def, ok, nil
}

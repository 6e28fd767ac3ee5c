package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/google/uuid"
)

type membershipTypeInput struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Scope        domain.Scope     `json:"scope"`
	ScopeOwnerID *uuid.UUID       `json:"scopeOwnerId"`
	AgeBounds    domain.AgeBounds `json:"ageBounds"`
	Fee          domain.Fee       `json:"fee"`
	Requirements map[string]bool  `json:"requirements"`
	Active       *bool            `json:"active"`
}

func (in membershipTypeInput) apply(def domain.MembershipTypeDefinition) domain.MembershipTypeDefinition {
	def.Name = strings.TrimSpace(in.Name)
	def.Description = in.Description
	def.Scope = in.Scope
	def.ScopeOwnerID = in.ScopeOwnerID
	def.AgeBounds = in.AgeBounds
	def.Fee = in.Fee
	def.Requirements = in.Requirements
	if in.Active != nil {
		def.Active = *in.Active
	}
	return def
}

func typeFilter(r *http.Request) (repository.MembershipTypeFilter, error) {
	q := r.URL.Query()
	var filter repository.MembershipTypeFilter
	if raw := q.Get("scope"); raw != "" {
		scope, err := domain.ParseScope(raw)
		if err != nil {
			return filter, err
		}
		filter.Scope = &scope
	}
	for _, raw := range q["owner"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: owner %q is not a uuid", domain.ErrInvalidInput, raw)
		}
		filter.OwnerIDs = append(filter.OwnerIDs, id)
	}
	if raw := q.Get("activeOnly"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: activeOnly %q", domain.ErrInvalidInput, raw)
		}
		filter.ActiveOnly = active
	}
	return filter, nil
}

func (a *API) listTypes(w http.ResponseWriter, r *http.Request) {
	filter, err := typeFilter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defs, err := a.svc.Catalog.List(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if defs == nil {
		defs = []domain.MembershipTypeDefinition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

func (a *API) createType(w http.ResponseWriter, r *http.Request) {
	var in membershipTypeInput
	if err := decodeJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	def := in.apply(domain.NewMembershipTypeDefinition("", "", nil, domain.AgeBounds{}, domain.Fee{}))
	created, err := a.svc.Catalog.Create(r.Context(), def)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) getType(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "typeID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	def, err := a.svc.Catalog.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (a *API) updateType(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "typeID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var in membershipTypeInput
	if err := decodeJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	current, err := a.svc.Catalog.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	def := in.apply(current)
	def.UpdatedAt = a.now().UTC().Truncate(time.Millisecond)
	updated, err := a.svc.Catalog.Update(r.Context(), def)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deactivateType(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "typeID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	def, err := a.svc.Catalog.Deactivate(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// deleteType answers 409 for a type that has been used; deactivate it instead.
func (a *API) deleteType(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "typeID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.svc.Catalog.Delete(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

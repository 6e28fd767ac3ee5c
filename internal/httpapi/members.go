package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/clubhouse/internal/auth"
	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/export"
	"github.com/rpattn/clubhouse/internal/fees"
	"github.com/rpattn/clubhouse/internal/middleware"
	"github.com/rpattn/clubhouse/internal/renewal"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (a *API) loadMember(r *http.Request) (domain.MemberProfile, error) {
	id, err := uuidParam(r, "memberID")
	if err != nil {
		return domain.MemberProfile{}, err
	}
	return a.svc.Members.FindMember(r.Context(), id)
}

func (a *API) getMember(w http.ResponseWriter, r *http.Request) {
	member, err := a.loadMember(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (a *API) eligibility(w http.ResponseWriter, r *http.Request) {
	member, err := a.loadMember(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ref, err := a.referenceDate(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resolution, err := a.svc.Resolver.Resolve(r.Context(), member, ref)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

type quoteRequest struct {
	MembershipTypeIDs []uuid.UUID `json:"membershipTypeIds"`
}

type quoteResponse struct {
	Quote        domain.FeeQuote          `json:"quote"`
	Illustrative domain.IllustrativeTotal `json:"illustrativeTotal"`
	Display      []fees.DisplayLine       `json:"display"`
}

func (a *API) respondQuote(w http.ResponseWriter, r *http.Request, defs []domain.MembershipTypeDefinition) {
	quote, err := a.svc.Aggregator.Quote(defs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Quote:        quote,
		Illustrative: quote.IllustrativeTotal(),
		Display:      a.svc.Formatter.Display(quote),
	})
}

// quoteTypes prices an arbitrary selection without an eligibility check.
func (a *API) quoteTypes(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	defs, err := a.svc.Catalog.GetMany(r.Context(), req.MembershipTypeIDs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	found := make(map[uuid.UUID]bool, len(defs))
	for _, def := range defs {
		found[def.ID] = true
	}
	for _, id := range req.MembershipTypeIDs {
		if !found[id] {
			a.writeError(w, r, &domain.IneligibleError{TypeID: id, Rule: domain.RuleUnknownType})
			return
		}
	}
	a.respondQuote(w, r, defs)
}

// memberQuote prices the member's elected set after validating it.
func (a *API) memberQuote(w http.ResponseWriter, r *http.Request) {
	member, err := a.loadMember(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ref, err := a.referenceDate(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	elected, err := a.svc.Resolver.Elect(r.Context(), member, ref)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.respondQuote(w, r, elected)
}

func sectionParam(r *http.Request) string {
	return chi.URLParam(r, "section")
}

func actor(r *http.Request) string {
	name, _ := auth.ActorFromContext(r.Context())
	return name
}

func (a *API) startEdit(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuidParam(r, "memberID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	draft, err := a.svc.Sessions.StartEdit(r.Context(), memberID, actor(r), sectionParam(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *API) saveEdit(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuidParam(r, "memberID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var payload map[string]any
	if err := decodeJSON(r, &payload); err != nil {
		a.writeSaveError(w, r, err)
		return
	}
	result, err := a.svc.Sessions.SaveEdit(r.Context(), memberID, actor(r), sectionParam(r), payload)
	if err != nil {
		a.writeSaveError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) cancelEdit(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuidParam(r, "memberID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.svc.Sessions.CancelEdit(r.Context(), memberID, actor(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changeEntry struct {
	domain.ChangeRecord
	Summary string `json:"summary"`
}

// changes lists the audit trail newest first, or exports it with ?format=csv|xlsx.
func (a *API) changes(w http.ResponseWriter, r *http.Request) {
	member, err := a.loadMember(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	records, err := a.svc.Trail.ListFor(r.Context(), member.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	raw := r.URL.Query().Get("format")
	if raw == "" || strings.EqualFold(raw, "json") {
		entries := make([]changeEntry, len(records))
		for i, rec := range records {
			entries[i] = changeEntry{ChangeRecord: rec, Summary: rec.Summary()}
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	format, err := export.ParseFormat(raw)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, records); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(memberLabel(member), format, a.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func memberLabel(member domain.MemberProfile) string {
	first, _ := member.Record["firstName"].(string)
	last, _ := member.Record["lastName"].(string)
	if label := strings.TrimSpace(first + " " + last); label != "" {
		return label
	}
	return member.ID.String()
}

type renewalRequest struct {
	MembershipTypeID uuid.UUID      `json:"membershipTypeId"`
	Fee              *domain.Amount `json:"fee"`
	Notes            string         `json:"notes"`
	OptIns           []string       `json:"optIns"`
}

func (a *API) renewalPreview(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuidParam(r, "memberID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	raw := r.URL.Query().Get("membershipTypeId")
	typeID, err := uuid.Parse(raw)
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: membershipTypeId %q is not a uuid", domain.ErrInvalidInput, raw))
		return
	}
	preview, err := a.svc.Renewals.Preview(r.Context(), memberID, typeID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (a *API) commitRenewal(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuidParam(r, "memberID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req renewalRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	record, err := a.svc.Renewals.Commit(r.Context(), memberID, renewal.Choice{
		TypeID: req.MembershipTypeID,
		Fee:    req.Fee,
		Notes:  req.Notes,
		OptIns: req.OptIns,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

type renewalEntry struct {
	domain.RenewalRecord
	MembershipTypeName string `json:"membershipTypeName,omitempty"`
}

func (a *API) renewalHistory(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuidParam(r, "memberID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	records, err := a.svc.Renewals.History(r.Context(), memberID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	ids := make([]uuid.UUID, len(records))
	for i, rec := range records {
		ids[i] = rec.MembershipTypeID
	}
	names := map[uuid.UUID]string{}
	if loader := middleware.TypeLoaderFromContext(r.Context()); loader != nil {
		if names, err = loader.Names(r.Context(), ids); err != nil {
			a.writeError(w, r, err)
			return
		}
	}

	entries := make([]renewalEntry, len(records))
	for i, rec := range records {
		entries[i] = renewalEntry{RenewalRecord: rec, MembershipTypeName: names[rec.MembershipTypeID]}
	}
	writeJSON(w, http.StatusOK, entries)
}

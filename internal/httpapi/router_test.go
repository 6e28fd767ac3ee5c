package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/clubhouse/internal/audit"
	"github.com/rpattn/clubhouse/internal/auth"
	"github.com/rpattn/clubhouse/internal/catalog"
	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/editsession"
	"github.com/rpattn/clubhouse/internal/eligibility"
	"github.com/rpattn/clubhouse/internal/fees"
	"github.com/rpattn/clubhouse/internal/ingestion"
	"github.com/rpattn/clubhouse/internal/metrics"
	"github.com/rpattn/clubhouse/internal/renewal"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type server struct {
	store  *repository.MemoryStore
	club   uuid.UUID
	senior domain.MembershipTypeDefinition
	reg    domain.MembershipTypeDefinition
	member domain.MemberProfile
	http   *httptest.Server
}

func newServer(t *testing.T, opts ...Option) *server {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2025, time.June, 14, 9, 30, 0, 0, time.UTC) }

	store := repository.NewMemoryStore()
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	cat := catalog.New(store, catalog.WithLogger(discard))
	resolver := eligibility.New(cat, eligibility.WithLogger(discard), eligibility.WithMetrics(m))
	trail := audit.New(store, audit.WithLogger(discard), audit.WithMetrics(m))
	editor := editsession.NewEditor(store, trail, store,
		editsession.WithLogger(discard), editsession.WithMetrics(m), editsession.WithClock(clock))
	scheduler := renewal.New(store, store, store, resolver, cat,
		renewal.WithLogger(discard), renewal.WithMetrics(m), renewal.WithClock(clock))

	s := &server{store: store, club: uuid.New()}
	club := s.club
	var err error
	s.senior, err = cat.Create(ctx, domain.NewMembershipTypeDefinition("Senior", domain.ScopeClub, &club,
		domain.AgeBounds{Min: domain.IntPtr(18)},
		domain.Fee{BaseAmount: domain.MustParseAmount("150.00"), Currency: "GBP", Frequency: domain.FrequencyAnnual}))
	require.NoError(t, err)
	s.reg, err = cat.Create(ctx, domain.NewMembershipTypeDefinition("Registration", domain.ScopeGlobal, nil,
		domain.AgeBounds{},
		domain.Fee{BaseAmount: domain.MustParseAmount("20.00"), Currency: "GBP", Frequency: domain.FrequencyOneTime}))
	require.NoError(t, err)

	s.member, err = store.CreateMember(ctx, domain.MemberProfile{
		DateOfBirth:       "1990-04-02",
		ClubID:            club,
		MembershipTypeIDs: []uuid.UUID{s.senior.ID, s.reg.ID},
		CurrentPeriod:     &domain.Period{Start: domain.NewDate(2025, 1, 1), End: domain.NewDate(2025, 12, 31)},
		Record: map[string]any{
			"firstName":   "Ana",
			"lastName":    "Silva",
			"dateOfBirth": "1990-04-02",
			"email":       "ana@old.example",
		},
	})
	require.NoError(t, err)

	api := New(Services{
		Catalog:    cat,
		Resolver:   resolver,
		Aggregator: fees.New(fees.WithLogger(discard), fees.WithMetrics(m)),
		Members:    store,
		Sessions:   editsession.NewRegistry(editor),
		Trail:      trail,
		Renewals:   scheduler,
		Importer:   ingestion.NewService(cat, ingestion.WithLogger(discard)),
	}, append([]Option{
		WithLogger(discard),
		WithClock(clock),
		WithMetricsHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
	}, opts...)...)

	s.http = httptest.NewServer(api.Router())
	t.Cleanup(s.http.Close)
	return s
}

func (s *server) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.http.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set(auth.ActorHeader, "registrar")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *server) memberPath(suffix string) string {
	return "/members/" + s.member.ID.String() + suffix
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthCheckFailureIsUnavailable(t *testing.T) {
	s := newServer(t, WithHealthCheck(func(context.Context) error { return errors.New("db down") }))

	resp := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestQuoteKeepsFrequenciesApart(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodPost, "/fees/quote", quoteRequest{MembershipTypeIDs: []uuid.UUID{s.senior.ID, s.reg.ID}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[quoteResponse](t, resp)
	assert.Equal(t, "GBP", body.Quote.Currency)
	assert.Equal(t, domain.MustParseAmount("150.00"), body.Quote.PerFrequency[domain.FrequencyAnnual].Required)
	assert.Equal(t, domain.MustParseAmount("20.00"), body.Quote.PerFrequency[domain.FrequencyOneTime].Required)
	assert.NotEmpty(t, body.Display)
}

func TestQuoteUnknownTypeIsUnprocessable(t *testing.T) {
	s := newServer(t)
	missing := uuid.New()

	resp := s.do(t, http.MethodPost, "/fees/quote", quoteRequest{MembershipTypeIDs: []uuid.UUID{missing}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decode[errorResponse](t, resp)
	assert.Equal(t, domain.RuleUnknownType, body.Rule)
	require.NotNil(t, body.TypeID)
	assert.Equal(t, missing, *body.TypeID)
}

func TestUnknownBodyFieldIsBadRequest(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodPost, "/fees/quote", map[string]any{"typeIds": []string{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMemberLookupErrors(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodGet, "/members/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/members/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEligibilityOnDate(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodGet, s.memberPath("/eligibility?on=2025-04-01"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[eligibility.Resolution](t, resp)
	assert.Equal(t, domain.Age(34), body.Age)
	assert.True(t, body.IsEligible(s.senior.ID))
	assert.True(t, body.IsEligible(s.reg.ID))

	resp = s.do(t, http.MethodGet, s.memberPath("/eligibility?on=April"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMemberQuoteUsesElectedTypes(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodGet, s.memberPath("/quote"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[quoteResponse](t, resp)
	assert.Len(t, body.Quote.PerFrequency, 2)
}

func TestSectionEditFlow(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodPost, s.memberPath("/sections/contact-information/edit"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	draft := decode[editsession.Draft](t, resp)
	assert.Equal(t, "Contact Information", draft.Section)
	assert.Equal(t, "ana@old.example", draft.Values["email"])

	resp = s.do(t, http.MethodPost, s.memberPath("/sections/address/edit"), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodPut, s.memberPath("/sections/contact-information"), map[string]any{"email": "ana@new.example"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[editsession.SaveResult](t, resp)
	require.NotNil(t, result.Saved)
	assert.Equal(t, "registrar", result.Saved.UpdatedBy)

	resp = s.do(t, http.MethodGet, s.memberPath("/changes"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]changeEntry](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"email"}, entries[0].Changes.Paths())
	assert.Contains(t, entries[0].Summary, "email")

	resp = s.do(t, http.MethodGet, s.memberPath("/changes?format=csv"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".csv")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ana@new.example")

	resp = s.do(t, http.MethodGet, s.memberPath("/changes?format=pdf"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveWithoutEditIsConflict(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodPut, s.memberPath("/sections/contact-information"), map[string]any{"email": "x@example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, s.memberPath("/sections/contact-information/edit"), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodPost, s.memberPath("/sections/contact-information/edit"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.do(t, http.MethodDelete, s.memberPath("/sections/contact-information/edit"), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestFailedSaveKeepsResultShape(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodPut, s.memberPath("/sections/contact-information"), map[string]any{"email": "x@example.com"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, editsession.ReasonError, body["reason"])
	saved, present := body["saved"]
	assert.True(t, present, "saved must be present as null")
	assert.Nil(t, saved)
	assert.NotEmpty(t, body["error"])

	resp = s.do(t, http.MethodPost, s.memberPath("/sections/personal-details/edit"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.do(t, http.MethodPut, s.memberPath("/sections/personal-details"), map[string]any{"firstName": "", "lastName": "Silva"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decode[map[string]any](t, resp)
	assert.Equal(t, editsession.ReasonError, body["reason"])
	assert.Nil(t, body["saved"])
}

func TestRenewalPreviewCommitAndHistory(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodGet, s.memberPath("/renewal/preview?membershipTypeId="+s.senior.ID.String()), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	preview := decode[domain.RenewalPreview](t, resp)
	assert.Equal(t, domain.NewDate(2026, 1, 1), preview.ProposedPeriod.Start)
	assert.Equal(t, domain.NewDate(2026, 12, 31), preview.ProposedPeriod.End)

	resp = s.do(t, http.MethodGet, s.memberPath("/renewal/preview?membershipTypeId=senior"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, s.memberPath("/renewals"), renewalRequest{MembershipTypeID: s.reg.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = s.do(t, http.MethodPost, s.memberPath("/renewals"), renewalRequest{MembershipTypeID: s.senior.ID, Notes: "paid by card"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	record := decode[domain.RenewalRecord](t, resp)
	assert.Equal(t, domain.MustParseAmount("150.00"), record.Fee)

	resp = s.do(t, http.MethodGet, s.memberPath("/renewals"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[[]renewalEntry](t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, "Senior", history[0].MembershipTypeName)
	assert.Equal(t, "paid by card", history[0].Notes)
}

func TestMembershipTypeLifecycle(t *testing.T) {
	s := newServer(t)
	club := s.club

	resp := s.do(t, http.MethodPost, "/membership-types", membershipTypeInput{
		Name:         "Junior",
		Scope:        domain.ScopeClub,
		ScopeOwnerID: &club,
		AgeBounds:    domain.AgeBounds{Max: domain.IntPtr(17)},
		Fee:          domain.Fee{BaseAmount: domain.MustParseAmount("60.00"), Currency: "GBP", Frequency: domain.FrequencySeasonal},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	junior := decode[domain.MembershipTypeDefinition](t, resp)
	assert.True(t, junior.Active)

	resp = s.do(t, http.MethodGet, "/membership-types?scope=club&owner="+club.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.MembershipTypeDefinition](t, resp), 2)

	resp = s.do(t, http.MethodGet, "/membership-types?scope=galaxy", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/membership-types/"+junior.ID.String()+"/deactivate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[domain.MembershipTypeDefinition](t, resp).Active)

	resp = s.do(t, http.MethodGet, "/membership-types?activeOnly=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.MembershipTypeDefinition](t, resp), 2)

	resp = s.do(t, http.MethodDelete, "/membership-types/"+junior.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/membership-types/"+junior.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteUsedTypeIsConflict(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodPost, s.memberPath("/renewals"), renewalRequest{MembershipTypeID: s.senior.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/membership-types/"+s.senior.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUpdateTypeRejectsInvalidDefinition(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodPut, "/membership-types/"+s.reg.ID.String(), membershipTypeInput{
		Name:  "  ",
		Scope: domain.ScopeGlobal,
		Fee:   s.reg.Fee,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/membership-types/"+s.reg.ID.String(), membershipTypeInput{
		Name:  "Registration 2026",
		Scope: domain.ScopeGlobal,
		Fee:   s.reg.Fee,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Registration 2026", decode[domain.MembershipTypeDefinition](t, resp).Name)
}

func TestImportRoute(t *testing.T) {
	s := newServer(t)

	csv := "Name,Scope,Base Amount,Currency,Frequency\nVeteran,global,45.00,GBP,annual\n"
	var body bytes.Buffer
	body.WriteString("--b\r\nContent-Disposition: form-data; name=\"file\"; filename=\"types.csv\"\r\nContent-Type: text/csv\r\n\r\n")
	body.WriteString(csv)
	body.WriteString("\r\n--b--\r\n")

	req, err := http.NewRequest(http.MethodPost, s.http.URL+"/membership-types/import", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	resp, err := s.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	list := s.do(t, http.MethodGet, "/membership-types?scope=global", nil)
	names := []string{}
	for _, def := range decode[[]domain.MembershipTypeDefinition](t, list) {
		names = append(names, def.Name)
	}
	assert.Contains(t, strings.Join(names, ","), "Veteran")
}

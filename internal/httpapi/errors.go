package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/editsession"
	"github.com/rpattn/clubhouse/internal/fees"
	"github.com/rpattn/clubhouse/internal/renewal"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type errorResponse struct {
	Error  string                 `json:"error"`
	Rule   domain.EligibilityRule `json:"rule,omitempty"`
	TypeID *uuid.UUID             `json:"membershipTypeId,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTypeInUse),
		errors.Is(err, domain.ErrStaleWrite),
		errors.Is(err, editsession.ErrSectionBusy),
		errors.Is(err, editsession.ErrNotEditing):
		return http.StatusConflict
	case errors.Is(err, domain.ErrIneligibleMembershipType),
		errors.Is(err, domain.ErrDuplicateScope),
		errors.Is(err, fees.ErrMixedCurrency),
		errors.Is(err, renewal.ErrNotRenewable),
		errors.Is(err, renewal.ErrNoSeason):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// saveErrorResponse keeps the save result shape on failed saves.
type saveErrorResponse struct {
	errorResponse
	Saved  *domain.ChangeRecord `json:"saved"`
	Reason string               `json:"reason"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := a.errorBody(r, err)
	writeJSON(w, status, body)
}

func (a *API) writeSaveError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := a.errorBody(r, err)
	writeJSON(w, status, saveErrorResponse{errorResponse: body, Reason: editsession.ReasonError})
}

func (a *API) errorBody(r *http.Request, err error) (int, errorResponse) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var ineligible *domain.IneligibleError
	if errors.As(err, &ineligible) {
		body.Rule = ineligible.Rule
		id := ineligible.TypeID
		body.TypeID = &id
	}
	if status == http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		body.Error = "internal error"
	}
	return status, body
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: request body: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q is not a uuid", domain.ErrInvalidInput, name, raw)
	}
	return id, nil
}

// referenceDate reads ?on=YYYY-MM-DD, defaulting to today.
func (a *API) referenceDate(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("on"))
	if raw == "" {
		return domain.DateOf(a.now()).Time, nil
	}
	day, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	return day.Time, nil
}

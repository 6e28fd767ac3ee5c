package graphql

import (
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/eligibility"
	"github.com/rpattn/clubhouse/internal/fees"

	"github.com/google/uuid"
)

// The view types shape domain values to the schema. Field names follow the
// JSON tags, which the executor projects by selection.

type memberView struct {
	domain.MemberProfile
	Age *int `json:"age"`
}

type resolutionView struct {
	Age      *int                              `json:"age"`
	On       domain.Date                       `json:"on"`
	Eligible []domain.MembershipTypeDefinition `json:"eligible"`
	Excluded []eligibility.Exclusion           `json:"excluded"`
}

type frequencyView struct {
	Frequency domain.Frequency     `json:"frequency"`
	Required  domain.Amount        `json:"required"`
	Display   string               `json:"display"`
	Optional  []domain.OptionalFee `json:"optional"`
}

type quoteView struct {
	Currency          string                   `json:"currency"`
	Frequencies       []frequencyView          `json:"frequencies"`
	IllustrativeTotal domain.IllustrativeTotal `json:"illustrativeTotal"`
}

// newQuoteView lists frequency groups in their stable order instead of a map.
func newQuoteView(quote domain.FeeQuote, formatter *fees.Formatter) quoteView {
	out := quoteView{
		Currency:          quote.Currency,
		Frequencies:       make([]frequencyView, 0, len(quote.PerFrequency)),
		IllustrativeTotal: quote.IllustrativeTotal(),
	}
	for _, freq := range quote.Frequencies() {
		group := quote.PerFrequency[freq]
		out.Frequencies = append(out.Frequencies, frequencyView{
			Frequency: freq,
			Required:  group.Required,
			Display:   formatter.Format(group.Required, quote.Currency),
			Optional:  group.Optional,
		})
	}
	return out
}

type fieldChangeView struct {
	Path      string `json:"path"`
	Old       any    `json:"old"`
	New       any    `json:"new"`
	OldAbsent bool   `json:"oldAbsent"`
}

type changeView struct {
	ID        uuid.UUID         `json:"id"`
	MemberID  uuid.UUID         `json:"memberId"`
	Section   string            `json:"section"`
	Changes   []fieldChangeView `json:"changes"`
	Timestamp time.Time         `json:"timestamp"`
	UpdatedBy string            `json:"updatedBy"`
	Summary   string            `json:"summary"`
}

func newChangeView(rec domain.ChangeRecord) changeView {
	out := changeView{
		ID:        rec.ID,
		MemberID:  rec.MemberID,
		Section:   rec.Section,
		Changes:   make([]fieldChangeView, 0, len(rec.Changes)),
		Timestamp: rec.Timestamp,
		UpdatedBy: rec.UpdatedBy,
		Summary:   rec.Summary(),
	}
	for _, path := range rec.Changes.Paths() {
		change := rec.Changes[path]
		out.Changes = append(out.Changes, fieldChangeView{
			Path:      path,
			Old:       change.Old,
			New:       change.New,
			OldAbsent: change.OldAbsent,
		})
	}
	return out
}

type saveResultView struct {
	Saved  *changeView `json:"saved"`
	Reason string      `json:"reason"`
}

type previewView struct {
	MemberID         uuid.UUID      `json:"memberId"`
	MembershipTypeID uuid.UUID      `json:"membershipTypeId"`
	CurrentPeriod    *domain.Period `json:"currentPeriod"`
	ProposedPeriod   domain.Period  `json:"proposedNewPeriod"`
	AgeAtStart       *int           `json:"ageAtStart"`
	Quote            quoteView      `json:"quote"`
}

type renewalView struct {
	domain.RenewalRecord
	MembershipTypeName string `json:"membershipTypeName,omitempty"`
}

// knownAge maps UnknownAge to null.
func knownAge(age domain.Age) *int {
	if !age.Known() {
		return nil
	}
	years := int(age)
	return &years
}

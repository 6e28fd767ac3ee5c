package domain

import (
	"time"

	"github.com/google/uuid"
)

// RenewalRecord is one entry of a member's renewal history. Append-only.
type RenewalRecord struct {
	ID               uuid.UUID `json:"id"`
	MemberID         uuid.UUID `json:"memberId"`
	PeriodStart      Date      `json:"periodStart"`
	PeriodEnd        Date      `json:"periodEnd"`
	MembershipTypeID uuid.UUID `json:"membershipTypeId"`
	Fee              Amount    `json:"fee"`
	Currency         string    `json:"currency"`
	Notes            string    `json:"notes,omitempty"`
	RenewalDate      time.Time `json:"renewalDate"`
}

// Period returns the coverage window of the renewal.
func (r RenewalRecord) Period() Period {
	return Period{Start: r.PeriodStart, End: r.PeriodEnd}
}

// RenewalPreview pairs the current coverage with the proposed next one and
// the fee that would be charged for it.
type RenewalPreview struct {
	MemberID         uuid.UUID `json:"memberId"`
	MembershipTypeID uuid.UUID `json:"membershipTypeId"`
	CurrentPeriod    *Period   `json:"currentPeriod"`
	ProposedPeriod   Period    `json:"proposedNewPeriod"`
	AgeAtStart       Age       `json:"ageAtStart"`
	Quote            FeeQuote  `json:"quote"`
}

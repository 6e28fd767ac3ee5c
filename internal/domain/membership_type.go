package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

// Scope is the organizational level a membership type is bound to.
type Scope string

const (
	ScopeGlobal      Scope = "global"
	ScopeAssociation Scope = "association"
	ScopeClub        Scope = "club"
	ScopeTeam        Scope = "team"
)

// Scopes lists every scope from widest to narrowest.
var Scopes = []Scope{ScopeGlobal, ScopeAssociation, ScopeClub, ScopeTeam}

// ParseScope normalises user input into a Scope.
func ParseScope(raw string) (Scope, error) {
	scope := Scope(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Scopes {
		if scope == known {
			return scope, nil
		}
	}
	return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, raw)
}

// Frequency is the billing cycle of a fee.
type Frequency string

const (
	FrequencyOneTime  Frequency = "one-time"
	FrequencyAnnual   Frequency = "annual"
	FrequencySeasonal Frequency = "seasonal"
)

// ParseFrequency normalises user input into a Frequency.
func ParseFrequency(raw string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(raw))); f {
	case FrequencyOneTime, FrequencyAnnual, FrequencySeasonal:
		return f, nil
	case "onetime", "one_time", "once":
		return FrequencyOneTime, nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, raw)
	}
}

// AgeBounds is an inclusive age range; a nil side is unbounded.
type AgeBounds struct {
	Min *int `json:"min"`
	Max *int `json:"max"`
}

// Bounded reports whether either side constrains age.
func (b AgeBounds) Bounded() bool {
	return b.Min != nil || b.Max != nil
}

// Contains checks min <= age <= max. An unknown age fails every bounded check.
func (b AgeBounds) Contains(age Age) bool {
	if !b.Bounded() {
		return true
	}
	if !age.Known() {
		return false
	}
	if b.Min != nil && int(age) < *b.Min {
		return false
	}
	if b.Max != nil && int(age) > *b.Max {
		return false
	}
	return true
}

// AdditionalFee is a named charge on top of the base amount.
type AdditionalFee struct {
	Name        string `json:"name"`
	Amount      Amount `json:"amount"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Fee describes what a membership type costs and how often.
type Fee struct {
	BaseAmount     Amount          `json:"baseAmount"`
	Currency       string          `json:"currency"`
	Frequency      Frequency       `json:"frequency"`
	AdditionalFees []AdditionalFee `json:"additionalFees"`
}

// MembershipTypeDefinition is a fee and eligibility rule bound to a scope.
type MembershipTypeDefinition struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Scope        Scope           `json:"scope"`
	ScopeOwnerID *uuid.UUID      `json:"scopeOwnerId"`
	AgeBounds    AgeBounds       `json:"ageBounds"`
	Fee          Fee             `json:"fee"`
	Requirements map[string]bool `json:"requirements,omitempty"`
	Active       bool            `json:"active"`
	UsageCount   int64           `json:"usageCount"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// NewMembershipTypeDefinition creates an active definition with a fresh id.
func NewMembershipTypeDefinition(name string, scope Scope, owner *uuid.UUID, bounds AgeBounds, fee Fee) MembershipTypeDefinition {
	now := time.Now().UTC()
	return MembershipTypeDefinition{
		ID:           uuid.New(),
		Name:         name,
		Scope:        scope,
		ScopeOwnerID: owner,
		AgeBounds:    bounds,
		Fee:          fee,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks the structural invariants of a definition.
func (d MembershipTypeDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: membership type name is required", ErrInvalidInput)
	}
	if _, err := ParseScope(string(d.Scope)); err != nil {
		return err
	}
	if d.Scope == ScopeGlobal && d.ScopeOwnerID != nil {
		return fmt.Errorf("%w: global membership types cannot have a scope owner", ErrInvalidInput)
	}
	if d.Scope != ScopeGlobal && (d.ScopeOwnerID == nil || *d.ScopeOwnerID == uuid.Nil) {
		return fmt.Errorf("%w: %s membership types require a scope owner", ErrInvalidInput, d.Scope)
	}
	if d.AgeBounds.Min != nil && d.AgeBounds.Max != nil && *d.AgeBounds.Min > *d.AgeBounds.Max {
		return fmt.Errorf("%w: age bounds min %d exceeds max %d", ErrInvalidInput, *d.AgeBounds.Min, *d.AgeBounds.Max)
	}
	if _, err := ParseFrequency(string(d.Fee.Frequency)); err != nil {
		return err
	}
	if _, err := ParseCurrency(d.Fee.Currency); err != nil {
		return err
	}
	if d.Fee.BaseAmount < 0 {
		return fmt.Errorf("%w: base amount cannot be negative", ErrInvalidInput)
	}
	for _, extra := range d.Fee.AdditionalFees {
		if strings.TrimSpace(extra.Name) == "" {
			return fmt.Errorf("%w: additional fee name is required", ErrInvalidInput)
		}
		if extra.Amount < 0 {
			return fmt.Errorf("%w: additional fee %q cannot be negative", ErrInvalidInput, extra.Name)
		}
	}
	return nil
}

// ParseCurrency normalises an ISO 4217 code such as "gbp" to "GBP".
func ParseCurrency(raw string) (string, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(raw))
	if err != nil || unit == (currency.Unit{}) {
		return "", fmt.Errorf("%w: currency %q is not an ISO 4217 code", ErrInvalidInput, raw)
	}
	return unit.String(), nil
}

// ScopeKey identifies the (scope, owner) pair a definition is bound to.
func (d MembershipTypeDefinition) ScopeKey() string {
	if d.ScopeOwnerID == nil {
		return string(d.Scope)
	}
	return string(d.Scope) + ":" + d.ScopeOwnerID.String()
}

// WithActive returns a copy with the active flag changed.
func (d MembershipTypeDefinition) WithActive(active bool) MembershipTypeDefinition {
	out := d
	out.Active = active
	out.UpdatedAt = time.Now().UTC()
	return out
}

// IntPtr is a convenience for building AgeBounds literals.
func IntPtr(v int) *int {
	return &v
}

// AppliesTo reports whether the definition's scope owner matches the member's
// association, club or one of their teams. Global definitions apply to everyone.
func (d MembershipTypeDefinition) AppliesTo(m MemberProfile) bool {
	switch d.Scope {
	case ScopeGlobal:
		return d.ScopeOwnerID == nil
	case ScopeAssociation:
		return d.ScopeOwnerID != nil && *d.ScopeOwnerID == m.AssociationID && m.AssociationID != uuid.Nil
	case ScopeClub:
		return d.ScopeOwnerID != nil && *d.ScopeOwnerID == m.ClubID && m.ClubID != uuid.Nil
	case ScopeTeam:
		return d.ScopeOwnerID != nil && m.InTeam(*d.ScopeOwnerID)
	default:
		return false
	}
}

package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Stores return ErrNotFound (optionally wrapped); services translate the rest into
// the taxonomy below so callers can branch with errors.Is / errors.As.
var (
	ErrNotFound                 = errors.New("not found")
	ErrInvalidInput             = errors.New("invalid input")
	ErrUnknownAge               = errors.New("unknown age: date of birth missing or unparseable")
	ErrIneligibleMembershipType = errors.New("ineligible membership type")
	ErrDuplicateScope           = errors.New("more than one membership type elected for the same scope")
	ErrEmptyDiff                = errors.New("no fields changed")
	ErrStaleWrite               = errors.New("record changed since it was loaded")
	ErrPersistence              = errors.New("persistence failure")
	ErrTypeInUse                = errors.New("membership type is referenced by renewal history")
)

// EligibilityRule names the check a membership type failed.
type EligibilityRule string

const (
	RuleUnknownType EligibilityRule = "unknown-type"
	RuleInactive    EligibilityRule = "inactive"
	RuleScope       EligibilityRule = "scope"
	RuleAge         EligibilityRule = "age"
	RuleUnknownAge  EligibilityRule = "unknown-age"
)

// IneligibleError reports an elected type that failed a scope or age match.
type IneligibleError struct {
	TypeID uuid.UUID
	Rule   EligibilityRule
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("membership type %s is ineligible: %s", e.TypeID, e.Rule)
}

// Is lets errors.Is match both the generic sentinel and ErrUnknownAge for age-unknown failures.
func (e *IneligibleError) Is(target error) bool {
	if target == ErrIneligibleMembershipType {
		return true
	}
	return e.Rule == RuleUnknownAge && target == ErrUnknownAge
}

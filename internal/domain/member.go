package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MemberProfile is the subject of eligibility, fee and renewal decisions.
// Record holds the editable, sectioned member document.
type MemberProfile struct {
	ID                uuid.UUID      `json:"id"`
	DateOfBirth       string         `json:"dateOfBirth"`
	AssociationID     uuid.UUID      `json:"associationId"`
	ClubID            uuid.UUID      `json:"clubId"`
	TeamIDs           []uuid.UUID    `json:"teamIds"`
	MembershipTypeIDs []uuid.UUID    `json:"membershipTypeIds"`
	CurrentPeriod     *Period        `json:"currentPeriod,omitempty"`
	Record            map[string]any `json:"record"`
	Version           int64          `json:"version"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// AgeOn computes the member's age on ref using the shared AgeClock rule.
func (m MemberProfile) AgeOn(ref time.Time) Age {
	return AgeFromString(m.DateOfBirth, ref)
}

// InTeam reports whether the member belongs to team id.
func (m MemberProfile) InTeam(id uuid.UUID) bool {
	for _, teamID := range m.TeamIDs {
		if teamID == id {
			return true
		}
	}
	return false
}

// Elected reports whether the member chose membership type id.
func (m MemberProfile) Elected(id uuid.UUID) bool {
	for _, typeID := range m.MembershipTypeIDs {
		if typeID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate the record freely.
func (m MemberProfile) Clone() MemberProfile {
	out := m
	out.TeamIDs = append([]uuid.UUID(nil), m.TeamIDs...)
	out.MembershipTypeIDs = append([]uuid.UUID(nil), m.MembershipTypeIDs...)
	if m.CurrentPeriod != nil {
		period := *m.CurrentPeriod
		out.CurrentPeriod = &period
	}
	out.Record = CloneRecord(m.Record)
	return out
}

// WithRecord returns a copy carrying record and a bumped timestamp. The
// dateOfBirth field of the record is authoritative for the profile: a null or
// non-string value clears it, and a record without the key keeps the current
// one.
func (m MemberProfile) WithRecord(record map[string]any) MemberProfile {
	out := m.Clone()
	out.Record = CloneRecord(record)
	if raw, present := record["dateOfBirth"]; present {
		dob, _ := raw.(string)
		out.DateOfBirth = dob
	}
	out.UpdatedAt = time.Now().UTC()
	return out
}

// WithPeriod returns a copy covering period.
func (m MemberProfile) WithPeriod(period Period) MemberProfile {
	out := m.Clone()
	out.CurrentPeriod = &period
	out.UpdatedAt = time.Now().UTC()
	return out
}

// RecordAsJSON serialises the record document for JSONB storage.
func (m MemberProfile) RecordAsJSON() ([]byte, error) {
	if m.Record == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.Record)
}

// CloneRecord deep-copies a JSON-shaped document. Objects and lists are copied,
// scalars are shared.
func CloneRecord(record map[string]any) map[string]any {
	if record == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(record))
	for key, value := range record {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneRecord(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return typed
	}
}

// NormalizeRecord round-trips a value through JSON so every record compared or
// stored uses the same closed set of shapes (objects, lists, strings, numbers, bools, null).
func NormalizeRecord(value any) (map[string]any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}

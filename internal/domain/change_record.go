package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChangeRecord is one audited section save. It is written once and never mutated.
type ChangeRecord struct {
	ID        uuid.UUID `json:"id"`
	MemberID  uuid.UUID `json:"memberId"`
	Section   string    `json:"section"`
	Changes   Changes   `json:"changes"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// NewChangeRecord stamps a record for a non-empty diff.
func NewChangeRecord(memberID uuid.UUID, section string, changes Changes, updatedBy string, at time.Time) (ChangeRecord, error) {
	if changes.Empty() {
		return ChangeRecord{}, ErrEmptyDiff
	}
	return ChangeRecord{
		ID:        uuid.New(),
		MemberID:  memberID,
		Section:   section,
		Changes:   changes,
		Timestamp: at.UTC(),
		UpdatedBy: strings.TrimSpace(updatedBy),
	}, nil
}

// ChangesAsJSON serialises the change map for JSONB storage.
func (r ChangeRecord) ChangesAsJSON() ([]byte, error) {
	return json.Marshal(r.Changes)
}

// Summary renders the record as readable lines, one per changed path.
func (r ChangeRecord) Summary() string {
	actor := r.UpdatedBy
	if actor == "" {
		actor = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s updated by %s at %s\n", r.Section, actor, r.Timestamp.UTC().Format(time.RFC3339))
	for _, path := range r.Changes.Paths() {
		change := r.Changes[path]
		if change.OldAbsent {
			fmt.Fprintf(&b, "  %s: (unset) -> %s\n", path, DisplayValue(change.New))
			continue
		}
		fmt.Fprintf(&b, "  %s: %s -> %s\n", path, DisplayValue(change.Old), DisplayValue(change.New))
	}
	return b.String()
}

// DisplayValue renders a leaf value the way it appears in summaries and exports.
func DisplayValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", typed)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}
		return string(encoded)
	}
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FieldChange is the before/after pair for one leaf path. OldAbsent marks a
// field that did not exist in the earlier version (old is undefined, not null).
type FieldChange struct {
	Old       any
	New       any
	OldAbsent bool
}

// MarshalJSON omits "old" entirely for absent fields so null and undefined stay distinct.
func (c FieldChange) MarshalJSON() ([]byte, error) {
	if c.OldAbsent {
		return json.Marshal(struct {
			New any `json:"new"`
		}{New: c.New})
	}
	return json.Marshal(struct {
		Old any `json:"old"`
		New any `json:"new"`
	}{Old: c.Old, New: c.New})
}

func (c *FieldChange) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = FieldChange{}
	if newRaw, ok := raw["new"]; ok {
		if err := json.Unmarshal(newRaw, &c.New); err != nil {
			return err
		}
	}
	oldRaw, ok := raw["old"]
	if !ok {
		c.OldAbsent = true
		return nil
	}
	return json.Unmarshal(oldRaw, &c.Old)
}

// Changes maps dot-paths to their leaf changes.
type Changes map[string]FieldChange

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c) == 0
}

// Paths returns the changed paths in sorted order.
func (c Changes) Paths() []string {
	paths := make([]string, 0, len(c))
	for path := range c {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// DiffRecords walks after depth-first and reports every leaf whose value differs
// from before at the same path. Non-empty objects recurse; lists, scalars, null
// and empty objects are atomic leaves compared by canonical JSON value. Fields
// only present in before are not reported.
func DiffRecords(before, after map[string]any) Changes {
	changes := Changes{}
	diffObject("", before, true, after, changes)
	return changes
}

func diffObject(prefix string, before map[string]any, beforeIsObject bool, after map[string]any, acc Changes) {
	keys := make([]string, 0, len(after))
	for key := range after {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path := joinPath(prefix, key)
		newValue := after[key]

		var oldValue any
		oldPresent := false
		if beforeIsObject {
			oldValue, oldPresent = before[key]
		}

		if nested, ok := newValue.(map[string]any); ok && len(nested) > 0 {
			oldNested, oldIsObject := oldValue.(map[string]any)
			// a scalar replaced by an object reports the object's leaves as new fields
			diffObject(path, oldNested, oldPresent && oldIsObject, nested, acc)
			continue
		}

		if !oldPresent {
			acc[path] = FieldChange{New: newValue, OldAbsent: true}
			continue
		}
		if !LeafEqual(oldValue, newValue) {
			acc[path] = FieldChange{Old: oldValue, New: newValue}
		}
	}
}

// LeafEqual compares two leaf values by their canonical JSON encoding, which
// makes 5 and 5.0 equal and compares lists element-wise as one atomic value.
func LeafEqual(a, b any) bool {
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
	}
	return bytes.Equal(left, right)
}

// ApplyTo writes every New value onto a copy of before at its dot-path,
// creating intermediate objects as needed.
func (c Changes) ApplyTo(before map[string]any) map[string]any {
	out := CloneRecord(before)
	for _, path := range c.Paths() {
		setPath(out, strings.Split(path, "."), cloneValue(c[path].New))
	}
	return out
}

func setPath(target map[string]any, parts []string, value any) {
	if len(parts) == 1 {
		target[parts[0]] = value
		return
	}
	next, ok := target[parts[0]].(map[string]any)
	if !ok {
		next = map[string]any{}
		target[parts[0]] = next
	}
	setPath(next, parts[1:], value)
}

// LookupPath reads the value at a dot-path.
func LookupPath(record map[string]any, path string) (any, bool) {
	var current any = record
	for _, part := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = object[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

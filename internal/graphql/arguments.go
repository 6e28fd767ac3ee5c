package graphql

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/google/uuid"
)

// arguments are field arguments after variable coercion. Variables arrive as
// decoded JSON, literals as gqlparser values, so both shapes are accepted.
type arguments map[string]any

func (a arguments) str(name string) (string, bool) {
	raw, ok := a[name].(string)
	return raw, ok
}

func (a arguments) boolean(name string) bool {
	v, _ := a[name].(bool)
	return v
}

func (a arguments) id(name string) (uuid.UUID, error) {
	raw, _ := a.str(name)
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q is not a uuid", domain.ErrInvalidInput, name, raw)
	}
	return id, nil
}

func (a arguments) ids(name string) ([]uuid.UUID, error) {
	items, _ := a[name].([]any)
	out := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		raw, _ := item.(string)
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %s entry %q is not a uuid", domain.ErrInvalidInput, name, raw)
		}
		out = append(out, id)
	}
	return out, nil
}

func (a arguments) strings(name string) []string {
	items, _ := a[name].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// date reads an optional YYYY-MM-DD argument.
func (a arguments) date(name string) (domain.Date, bool, error) {
	raw, ok := a.str(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return domain.Date{}, false, nil
	}
	day, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, false, err
	}
	return day, true, nil
}

// object reads an input object. Values are re-decoded so numbers arrive as
// float64, the same shape a JSON request body produces.
func (a arguments) object(name string) (map[string]any, error) {
	obj, ok := a[name].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an object", domain.ErrInvalidInput, name)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, name, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, name, err)
	}
	return out, nil
}

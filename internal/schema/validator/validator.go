package validator

import (
	"fmt"
	"strings"

	"github.com/rpattn/clubhouse/internal/domain"
	pathutil "github.com/rpattn/clubhouse/pkg/validator"
)

var knownFieldTypes = map[domain.FieldType]struct{}{
	domain.FieldTypeString:  {},
	domain.FieldTypeDate:    {},
	domain.FieldTypeNumber:  {},
	domain.FieldTypeBoolean: {},
	domain.FieldTypeObject:  {},
	domain.FieldTypeList:    {},
}

// ValidateLayout ensures a configured section layout can drive edit sessions:
// section names and slugs are unique, every field has a known type and a
// dot-free key, and no record key is owned by two sections.
func ValidateLayout(layout domain.SectionLayout) error {
	if len(layout) == 0 {
		return fmt.Errorf("%w: section layout is empty", domain.ErrInvalidInput)
	}

	paths := pathutil.NewPathManager()
	owners := make(map[string]string)
	slugs := make(map[string]string)

	for _, section := range layout {
		name := strings.TrimSpace(section.Name)
		if name == "" {
			return fmt.Errorf("%w: section name cannot be empty", domain.ErrInvalidInput)
		}
		slug := domain.Slug(name)
		if other, taken := slugs[slug]; taken {
			return fmt.Errorf("%w: sections %q and %q share the slug %q", domain.ErrInvalidInput, other, name, slug)
		}
		slugs[slug] = name

		if len(section.Fields) == 0 {
			return fmt.Errorf("%w: section %q has no fields", domain.ErrInvalidInput, name)
		}
		for _, field := range section.Fields {
			if err := paths.ValidateKey(field.Key); err != nil {
				return fmt.Errorf("%w: section %q: %w", domain.ErrInvalidInput, name, err)
			}
			if _, ok := knownFieldTypes[field.Type]; !ok {
				return fmt.Errorf("%w: section %q field %s has unknown type %q", domain.ErrInvalidInput, name, field.Key, field.Type)
			}
			if owner, taken := owners[field.Key]; taken {
				return fmt.Errorf("%w: field %s is owned by both %q and %q", domain.ErrInvalidInput, field.Key, owner, name)
			}
			owners[field.Key] = name
		}
	}
	return nil
}

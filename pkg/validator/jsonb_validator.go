package validator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rpattn/clubhouse/internal/domain"
)

// JSONBValidator handles validation of member record payloads against the
// field definitions of a section.
type JSONBValidator struct {
	paths *PathManager
}

// NewJSONBValidator creates a new JSONB validator
func NewJSONBValidator() *JSONBValidator {
	return &JSONBValidator{paths: NewPathManager()}
}

// FieldDefinition represents a field definition for validation
type FieldDefinition struct {
	Type       domain.FieldType `json:"type"`
	Required   bool             `json:"required"`
	Validation map[string]any   `json:"validation,omitempty"`
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// Err folds the errors into one domain.ErrInvalidInput, or nil when valid.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	messages := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		messages[i] = e.Message
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(messages, "; "))
}

// SectionDefinitions converts a section's fields into validator definitions.
func SectionDefinitions(section domain.Section) map[string]FieldDefinition {
	defs := make(map[string]FieldDefinition, len(section.Fields))
	for _, field := range section.Fields {
		defs[field.Key] = FieldDefinition{Type: field.Type, Required: field.Required}
	}
	return defs
}

// ValidateSection validates a section edit payload.
func (jv *JSONBValidator) ValidateSection(section domain.Section, payload map[string]any) ValidationResult {
	return jv.ValidateProperties(payload, SectionDefinitions(section))
}

// ValidateProperties validates record properties against field definitions.
// Errors are ordered by field name.
func (jv *JSONBValidator) ValidateProperties(properties map[string]any, fieldDefinitions map[string]FieldDefinition) ValidationResult {
	result := ValidationResult{
		IsValid:  true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	for fieldName, fieldDef := range fieldDefinitions {
		value, exists := properties[fieldName]

		// Required field missing
		if fieldDef.Required && (!exists || value == nil || value == "") {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("required field '%s' is missing", fieldName),
			})
			continue
		}

		// Null clears an optional field
		if !exists || value == nil {
			continue
		}

		if err := jv.validateFieldType(fieldName, value, fieldDef.Type); err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   fieldName,
				Message: err.Error(),
				Value:   value,
			})
			continue
		}

		if err := jv.paths.ValidateKeys(fieldName, value); err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   fieldName,
				Message: err.Error(),
			})
			continue
		}

		if fieldDef.Validation != nil {
			if err := jv.validateCustomRules(fieldName, value, fieldDef.Validation); err != nil {
				result.Warnings = append(result.Warnings, ValidationError{
					Field:   fieldName,
					Message: err.Error(),
					Value:   value,
				})
			}
		}
	}

	// Check for extra properties not defined in the section
	for propertyName := range properties {
		if _, exists := fieldDefinitions[propertyName]; !exists {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   propertyName,
				Message: fmt.Sprintf("property '%s' does not belong to this section", propertyName),
				Value:   properties[propertyName],
			})
		}
	}

	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Field < result.Errors[j].Field })
	return result
}

// validateFieldType validates the type of a field value
func (jv *JSONBValidator) validateFieldType(fieldName string, value any, expectedType domain.FieldType) error {
	switch expectedType {
	case domain.FieldTypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s' must be a string, got %T", fieldName, value)
		}
	case domain.FieldTypeDate:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("field '%s' must be a date string, got %T", fieldName, value)
		}
		if _, ok := domain.ParseDateOfBirth(str); !ok {
			return fmt.Errorf("field '%s' must be a valid date (YYYY-MM-DD), got %q", fieldName, str)
		}
	case domain.FieldTypeNumber:
		if !jv.isFloat(value) {
			return fmt.Errorf("field '%s' must be a number, got %T", fieldName, value)
		}
	case domain.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' must be a boolean, got %T", fieldName, value)
		}
	case domain.FieldTypeObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("field '%s' must be an object, got %T", fieldName, value)
		}
	case domain.FieldTypeList:
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("field '%s' must be a list, got %T", fieldName, value)
		}
	default:
		return fmt.Errorf("unknown field type: %s", expectedType)
	}

	return nil
}

// validateCustomRules validates optional field rules
func (jv *JSONBValidator) validateCustomRules(fieldName string, value any, rules map[string]any) error {
	if minVal, exists := rules["min"]; exists {
		if !jv.isGreaterThanOrEqual(value, minVal) {
			return fmt.Errorf("field '%s' value %v is less than minimum %v", fieldName, value, minVal)
		}
	}

	if maxVal, exists := rules["max"]; exists {
		if !jv.isLessThanOrEqual(value, maxVal) {
			return fmt.Errorf("field '%s' value %v is greater than maximum %v", fieldName, value, maxVal)
		}
	}

	if minLen, exists := rules["min_length"]; exists {
		if strVal, ok := value.(string); ok {
			if limit, ok := minLen.(float64); ok && len(strVal) < int(limit) {
				return fmt.Errorf("field '%s' length %d is less than minimum %v", fieldName, len(strVal), minLen)
			}
		}
	}

	if maxLen, exists := rules["max_length"]; exists {
		if strVal, ok := value.(string); ok {
			if limit, ok := maxLen.(float64); ok && len(strVal) > int(limit) {
				return fmt.Errorf("field '%s' length %d is greater than maximum %v", fieldName, len(strVal), maxLen)
			}
		}
	}

	return nil
}

func (jv *JSONBValidator) isFloat(value any) bool {
	switch v := value.(type) {
	case float32, float64:
		return true
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case string:
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	default:
		return false
	}
}

func (jv *JSONBValidator) isGreaterThanOrEqual(value, min any) bool {
	v, ok := value.(float64)
	if !ok {
		return false
	}
	minFloat, ok := min.(float64)
	return ok && v >= minFloat
}

func (jv *JSONBValidator) isLessThanOrEqual(value, max any) bool {
	v, ok := value.(float64)
	if !ok {
		return false
	}
	maxFloat, ok := max.(float64)
	return ok && v <= maxFloat
}

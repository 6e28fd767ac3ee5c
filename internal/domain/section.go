package domain

import (
	"fmt"
	"strings"
)

// FieldType is the value shape a section field accepts.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeDate    FieldType = "date"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeObject  FieldType = "object"
	FieldTypeList    FieldType = "list"
)

// SectionField is one top-level record key owned by a section.
type SectionField struct {
	Key      string    `json:"key" mapstructure:"key"`
	Type     FieldType `json:"type" mapstructure:"type"`
	Required bool      `json:"required" mapstructure:"required"`
}

// Section is an independently edited grouping of a member record.
type Section struct {
	Name   string         `json:"name" mapstructure:"name"`
	Fields []SectionField `json:"fields" mapstructure:"fields"`
}

// Keys returns the record keys the section owns.
func (s Section) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Owns reports whether key belongs to the section.
func (s Section) Owns(key string) bool {
	for _, f := range s.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

// Extract copies the section's fields out of a full record.
func (s Section) Extract(record map[string]any) map[string]any {
	out := map[string]any{}
	for _, key := range s.Keys() {
		if value, ok := record[key]; ok {
			out[key] = cloneValue(value)
		}
	}
	return out
}

// Merge overlays the section fields of payload onto a copy of record.
// Keys outside the section are never touched.
func (s Section) Merge(record, payload map[string]any) map[string]any {
	out := CloneRecord(record)
	for _, key := range s.Keys() {
		if value, ok := payload[key]; ok {
			out[key] = cloneValue(value)
		}
	}
	return out
}

// SectionLayout is the configured set of sections, looked up by name case-insensitively.
type SectionLayout []Section

// Find returns the section named name.
func (l SectionLayout) Find(name string) (Section, error) {
	wanted := strings.TrimSpace(name)
	for _, section := range l {
		if strings.EqualFold(section.Name, wanted) || strings.EqualFold(Slug(section.Name), wanted) {
			return section, nil
		}
	}
	return Section{}, fmt.Errorf("%w: section %q", ErrNotFound, name)
}

// Slug turns "Contact Information" into "contact-information" for URLs.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// DefaultSectionLayout mirrors the member screens of the club application.
func DefaultSectionLayout() SectionLayout {
	return SectionLayout{
		{Name: "Personal Details", Fields: []SectionField{
			{Key: "firstName", Type: FieldTypeString, Required: true},
			{Key: "lastName", Type: FieldTypeString, Required: true},
			{Key: "dateOfBirth", Type: FieldTypeDate},
			{Key: "gender", Type: FieldTypeString},
		}},
		{Name: "Contact Information", Fields: []SectionField{
			{Key: "email", Type: FieldTypeString},
			{Key: "phone", Type: FieldTypeString},
			{Key: "mobile", Type: FieldTypeString},
		}},
		{Name: "Address", Fields: []SectionField{
			{Key: "address", Type: FieldTypeObject},
		}},
		{Name: "Emergency Contact", Fields: []SectionField{
			{Key: "emergencyContact", Type: FieldTypeObject},
		}},
		{Name: "Medical Information", Fields: []SectionField{
			{Key: "medical", Type: FieldTypeObject},
		}},
		{Name: "Roles", Fields: []SectionField{
			{Key: "roles", Type: FieldTypeList},
		}},
	}
}

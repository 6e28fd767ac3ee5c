package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document loaded by the seed command.
type SeedFile struct {
	MembershipTypes []SeedMembershipType `yaml:"membershipTypes"`
	Members         []SeedMember         `yaml:"members"`
}

type SeedMembershipType struct {
	ID           string          `yaml:"id"`
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description"`
	Scope        string          `yaml:"scope"`
	Owner        string          `yaml:"owner"`
	MinAge       *int            `yaml:"minAge"`
	MaxAge       *int            `yaml:"maxAge"`
	Fee          SeedFee         `yaml:"fee"`
	Requirements map[string]bool `yaml:"requirements"`
	Inactive     bool            `yaml:"inactive"`
}

type SeedFee struct {
	BaseAmount     string         `yaml:"baseAmount"`
	Currency       string         `yaml:"currency"`
	Frequency      string         `yaml:"frequency"`
	AdditionalFees []SeedExtraFee `yaml:"additionalFees"`
}

type SeedExtraFee struct {
	Name        string `yaml:"name"`
	Amount      string `yaml:"amount"`
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

type SeedMember struct {
	ID                string         `yaml:"id"`
	DateOfBirth       string         `yaml:"dateOfBirth"`
	AssociationID     string         `yaml:"associationId"`
	ClubID            string         `yaml:"clubId"`
	TeamIDs           []string       `yaml:"teamIds"`
	MembershipTypeIDs []string       `yaml:"membershipTypeIds"`
	PeriodStart       string         `yaml:"periodStart"`
	PeriodEnd         string         `yaml:"periodEnd"`
	Record            map[string]any `yaml:"record"`
}

// ParseSeed decodes a seed document.
func ParseSeed(r io.Reader) (SeedFile, error) {
	var file SeedFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && err != io.EOF {
		return SeedFile{}, fmt.Errorf("%w: seed file: %w", domain.ErrInvalidInput, err)
	}
	return file, nil
}

// Definition converts the seed entry into a validated definition.
func (s SeedMembershipType) Definition() (domain.MembershipTypeDefinition, error) {
	scope, err := domain.ParseScope(s.Scope)
	if err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	owner, err := optionalUUID(s.Owner)
	if err != nil {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("membership type %q owner: %w", s.Name, err)
	}
	frequency, err := domain.ParseFrequency(s.Fee.Frequency)
	if err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	base, err := domain.ParseAmount(s.Fee.BaseAmount)
	if err != nil {
		return domain.MembershipTypeDefinition{}, fmt.Errorf("membership type %q base amount: %w", s.Name, err)
	}

	fee := domain.Fee{BaseAmount: base, Currency: strings.ToUpper(s.Fee.Currency), Frequency: frequency}
	for _, extra := range s.Fee.AdditionalFees {
		amount, err := domain.ParseAmount(extra.Amount)
		if err != nil {
			return domain.MembershipTypeDefinition{}, fmt.Errorf("membership type %q fee %q: %w", s.Name, extra.Name, err)
		}
		fee.AdditionalFees = append(fee.AdditionalFees, domain.AdditionalFee{
			Name: extra.Name, Amount: amount, Required: extra.Required, Description: extra.Description,
		})
	}

	def := domain.NewMembershipTypeDefinition(s.Name, scope, owner, domain.AgeBounds{Min: s.MinAge, Max: s.MaxAge}, fee)
	def.Description = s.Description
	def.Requirements = s.Requirements
	def.Active = !s.Inactive
	if s.ID != "" {
		id, err := uuid.Parse(s.ID)
		if err != nil {
			return domain.MembershipTypeDefinition{}, fmt.Errorf("%w: membership type id %q", domain.ErrInvalidInput, s.ID)
		}
		def.ID = id
	}
	return def, def.Validate()
}

// Profile converts the seed entry into a member profile.
func (s SeedMember) Profile() (domain.MemberProfile, error) {
	var member domain.MemberProfile
	var err error
	if s.ID != "" {
		if member.ID, err = uuid.Parse(s.ID); err != nil {
			return member, fmt.Errorf("%w: member id %q", domain.ErrInvalidInput, s.ID)
		}
	}
	if member.AssociationID, err = uuidOrNil(s.AssociationID); err != nil {
		return member, err
	}
	if member.ClubID, err = uuidOrNil(s.ClubID); err != nil {
		return member, err
	}
	for _, raw := range s.TeamIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return member, fmt.Errorf("%w: team id %q", domain.ErrInvalidInput, raw)
		}
		member.TeamIDs = append(member.TeamIDs, id)
	}
	for _, raw := range s.MembershipTypeIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return member, fmt.Errorf("%w: membership type id %q", domain.ErrInvalidInput, raw)
		}
		member.MembershipTypeIDs = append(member.MembershipTypeIDs, id)
	}
	if s.PeriodStart != "" || s.PeriodEnd != "" {
		start, err := domain.ParseDate(s.PeriodStart)
		if err != nil {
			return member, err
		}
		end, err := domain.ParseDate(s.PeriodEnd)
		if err != nil {
			return member, err
		}
		member.CurrentPeriod = &domain.Period{Start: start, End: end}
	}

	record, err := domain.NormalizeRecord(yamlDates(s.Record))
	if err != nil {
		return member, fmt.Errorf("%w: member record: %w", domain.ErrInvalidInput, err)
	}
	if s.DateOfBirth != "" {
		record["dateOfBirth"] = s.DateOfBirth
	}
	return member.WithRecord(record), nil
}

// SeedResult counts what a seed run wrote.
type SeedResult struct {
	MembershipTypes int `json:"membershipTypes"`
	Members         int `json:"members"`
}

// Seed writes every entry of file. It stops at the first failure.
func Seed(ctx context.Context, c *Catalog, members repository.MemberRepository, file SeedFile) (SeedResult, error) {
	var result SeedResult
	for _, entry := range file.MembershipTypes {
		def, err := entry.Definition()
		if err != nil {
			return result, err
		}
		if _, err := c.Create(ctx, def); err != nil {
			return result, fmt.Errorf("seed membership type %q: %w", entry.Name, err)
		}
		result.MembershipTypes++
	}
	for i, entry := range file.Members {
		member, err := entry.Profile()
		if err != nil {
			return result, fmt.Errorf("seed member %d: %w", i+1, err)
		}
		if _, err := members.CreateMember(ctx, member); err != nil {
			return result, fmt.Errorf("seed member %d: %w", i+1, err)
		}
		result.Members++
	}
	c.logger.InfoContext(ctx, "seed applied", "membership_types", result.MembershipTypes, "members", result.Members)
	return result, nil
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a uuid", domain.ErrInvalidInput, raw)
	}
	return &id, nil
}

func uuidOrNil(raw string) (uuid.UUID, error) {
	id, err := optionalUUID(raw)
	if err != nil || id == nil {
		return uuid.Nil, err
	}
	return *id, nil
}

// yamlDates rewrites YAML timestamps into the record's string date form.
func yamlDates(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = yamlDates(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = yamlDates(item)
		}
		return out
	case time.Time:
		if typed.Equal(typed.Truncate(24 * time.Hour)) {
			return typed.Format(domain.DateLayout)
		}
		return typed.Format(time.RFC3339)
	default:
		return typed
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/counselgrid/firm-directory/domains/firms/be/repo"
	"github.com/counselgrid/firm-directory/platform/go/persistence"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError captures input validation problems surfaced by the service.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain-level error sentinel values.
var (
	ErrNotFound    = errors.New("law firm not found")
	ErrConflict    = errors.New("law firm conflict")
	ErrUnavailable = errors.New("law firm storage unavailable")
)

const (
	maxNameLength    = 255
	maxWebsiteLength = 2048

	defaultPageSize = 10

	// Number of times a create retries with a freshly generated slug after
	// losing a uniqueness race to a concurrent insert.
	slugConflictRetries = 3
)

// Firm represents a law firm managed by the directory service.
type Firm struct {
	ID            uuid.UUID
	Name          string
	Slug          string
	Website       string
	IsActive      bool
	Metadata      string
	LastScrapedAt *time.Time
	ScrapeStatus  *string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// CreateInput defines the payload required to register a law firm.
type CreateInput struct {
	Name     string
	Website  string
	IsActive *bool
	Metadata string
}

// UpdateInput defines the fields that can be modified for an existing law firm.
type UpdateInput struct {
	Name     *string
	Website  *string
	IsActive *bool
	Metadata *string
}

// UpsertInput defines the payload for the slug-keyed idempotent upsert.
type UpsertInput struct {
	Slug          string
	Name          string
	Website       string
	IsActive      bool
	Metadata      string
	LastScrapedAt *time.Time
	ScrapeStatus  *string
}

// Page is the offset-paginated listing envelope.
type Page struct {
	Items      []Firm
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// Service exposes the law firm directory domain operations.
type Service interface {
	List(ctx context.Context, page, pageSize int) (Page, error)
	Create(ctx context.Context, input CreateInput) (Firm, error)
	GetBySlug(ctx context.Context, slug string) (Firm, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Firm, error)
	ToggleActive(ctx context.Context, id uuid.UUID) (Firm, error)
	UpsertBySlug(ctx context.Context, input UpsertInput) (Firm, error)
}

type service struct {
	repo domainrepo.Repository
}

// New builds a law firm directory Service backed by the provided repository.
func New(repo domainrepo.Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	offset := (page - 1) * pageSize

	records, total, err := s.repo.List(ctx, pageSize, offset)
	if err != nil {
		return Page{}, mapStorageError(err)
	}

	firms := make([]Firm, 0, len(records))
	for _, record := range records {
		firms = append(firms, mapFirm(record))
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return Page{
		Items:      firms,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Firm, error) {
	normalized, validationErr := s.validateCreateInput(input)
	if validationErr != nil {
		return Firm{}, validationErr
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	slug, err := s.generateSlug(ctx, normalized.name)
	if err != nil {
		return Firm{}, err
	}

	for attempt := 0; ; attempt++ {
		record, err := s.repo.Create(ctx, persistence.CreateLawFirmParams{
			ID:       uuid.New(),
			Name:     normalized.name,
			Slug:     slug,
			Website:  normalized.website,
			IsActive: active,
			Metadata: normalized.metadata,
		})
		if err == nil {
			return mapFirm(record), nil
		}
		if !errors.Is(err, persistence.ErrLawFirmConflict) {
			return Firm{}, mapStorageError(err)
		}
		if attempt >= slugConflictRetries {
			return Firm{}, ErrConflict
		}

		// Lost the race to a concurrent insert with the same slug: the
		// uniqueness oracle is consulted again so the next candidate skips it.
		slug, err = s.generateSlug(ctx, normalized.name)
		if err != nil {
			return Firm{}, err
		}
	}
}

func (s *service) GetBySlug(ctx context.Context, slug string) (Firm, error) {
	normalized, err := persistence.NormalizeSlug(slug)
	if err != nil {
		return Firm{}, ErrNotFound
	}

	record, err := s.repo.GetBySlug(ctx, normalized)
	if err != nil {
		if errors.Is(err, persistence.ErrLawFirmNotFound) {
			return Firm{}, ErrNotFound
		}
		return Firm{}, mapStorageError(err)
	}

	return mapFirm(record), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Firm, error) {
	if id == uuid.Nil {
		return Firm{}, &ValidationError{Fields: FieldErrors{
			"id": []string{"id is required"},
		}}
	}

	normalized, validationErr := s.validateUpdateInput(input)
	if validationErr != nil {
		return Firm{}, validationErr
	}

	params := persistence.UpdateLawFirmParams{
		Name:     normalized.name,
		Website:  normalized.website,
		IsActive: input.IsActive,
		Metadata: normalized.metadata,
	}

	// Renaming a firm regenerates its slug, unless the new name slugifies
	// to the slug it already holds.
	if normalized.name != nil {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrLawFirmNotFound) {
				return Firm{}, ErrNotFound
			}
			return Firm{}, mapStorageError(err)
		}

		if persistence.Slugify(*normalized.name) != current.Slug {
			slug, err := s.generateSlug(ctx, *normalized.name)
			if err != nil {
				return Firm{}, err
			}
			params.Slug = &slug
		}
	}

	record, err := s.repo.Update(ctx, id, params)
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrLawFirmNotFound):
			return Firm{}, ErrNotFound
		case errors.Is(err, persistence.ErrLawFirmConflict):
			return Firm{}, ErrConflict
		default:
			return Firm{}, mapStorageError(err)
		}
	}

	return mapFirm(record), nil
}

func (s *service) ToggleActive(ctx context.Context, id uuid.UUID) (Firm, error) {
	if id == uuid.Nil {
		return Firm{}, ErrNotFound
	}

	record, err := s.repo.ToggleActive(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrLawFirmNotFound) {
			return Firm{}, ErrNotFound
		}
		return Firm{}, mapStorageError(err)
	}

	return mapFirm(record), nil
}

func (s *service) UpsertBySlug(ctx context.Context, input UpsertInput) (Firm, error) {
	normalized, validationErr := s.validateUpsertInput(input)
	if validationErr != nil {
		return Firm{}, validationErr
	}

	create := persistence.CreateLawFirmParams{
		ID:            uuid.New(),
		Name:          normalized.name,
		Slug:          normalized.slug,
		Website:       normalized.website,
		IsActive:      input.IsActive,
		Metadata:      normalized.metadata,
		LastScrapedAt: input.LastScrapedAt,
		ScrapeStatus:  input.ScrapeStatus,
	}

	active := input.IsActive
	update := persistence.UpdateLawFirmParams{
		Name:          &create.Name,
		Website:       &create.Website,
		IsActive:      &active,
		Metadata:      &create.Metadata,
		LastScrapedAt: input.LastScrapedAt,
		ScrapeStatus:  input.ScrapeStatus,
	}

	record, err := s.repo.UpsertBySlug(ctx, normalized.slug, create, update)
	if err != nil {
		return Firm{}, mapStorageError(err)
	}

	return mapFirm(record), nil
}

func (s *service) generateSlug(ctx context.Context, name string) (string, error) {
	slug, err := persistence.UniqueSlug(ctx, name, s.repo.SlugExists)
	if err != nil {
		if errors.Is(err, persistence.ErrEmptySlug) {
			return "", &ValidationError{Fields: FieldErrors{
				"name": []string{"name must contain at least one letter or digit"},
			}}
		}
		return "", mapStorageError(err)
	}
	return slug, nil
}

type normalizedCreateInput struct {
	name     string
	website  string
	metadata string
}

type normalizedUpdateInput struct {
	name     *string
	website  *string
	metadata *string
}

type normalizedUpsertInput struct {
	slug     string
	name     string
	website  string
	metadata string
}

func (s *service) validateCreateInput(input CreateInput) (normalizedCreateInput, error) {
	errs := FieldErrors{}

	name := validateName(input.Name, errs)
	website := validateWebsite(input.Website, errs)
	metadata := validateMetadata(input.Metadata, errs)

	if len(errs) > 0 {
		return normalizedCreateInput{}, &ValidationError{Fields: errs}
	}

	return normalizedCreateInput{name: name, website: website, metadata: metadata}, nil
}

func (s *service) validateUpdateInput(input UpdateInput) (normalizedUpdateInput, error) {
	errs := FieldErrors{}
	var normalized normalizedUpdateInput

	if input.Name != nil {
		name := validateName(*input.Name, errs)
		if len(errs["name"]) == 0 {
			normalized.name = &name
		}
	}

	if input.Website != nil {
		website := validateWebsite(*input.Website, errs)
		if len(errs["website"]) == 0 {
			normalized.website = &website
		}
	}

	if input.Metadata != nil {
		metadata := validateMetadata(*input.Metadata, errs)
		if len(errs["metadata"]) == 0 {
			normalized.metadata = &metadata
		}
	}

	if input.Name == nil && input.Website == nil && input.IsActive == nil && input.Metadata == nil {
		errs.add("body", "at least one field must be provided")
	}

	if len(errs) > 0 {
		return normalizedUpdateInput{}, &ValidationError{Fields: errs}
	}

	return normalized, nil
}

func (s *service) validateUpsertInput(input UpsertInput) (normalizedUpsertInput, error) {
	errs := FieldErrors{}

	slug, err := persistence.NormalizeSlug(input.Slug)
	if err != nil {
		errs.add("slug", err.Error())
	}

	name := validateName(input.Name, errs)
	website := validateWebsite(input.Website, errs)
	metadata := validateMetadata(input.Metadata, errs)

	if len(errs) > 0 {
		return normalizedUpsertInput{}, &ValidationError{Fields: errs}
	}

	return normalizedUpsertInput{slug: slug, name: name, website: website, metadata: metadata}, nil
}

func validateName(name string, errs FieldErrors) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		errs.add("name", "name is required")
		return ""
	}
	if len(trimmed) > maxNameLength {
		errs.add("name", fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	return trimmed
}

func validateWebsite(website string, errs FieldErrors) string {
	trimmed := strings.TrimSpace(website)
	if trimmed == "" {
		errs.add("website", "website is required")
		return ""
	}
	if len(trimmed) > maxWebsiteLength {
		errs.add("website", fmt.Sprintf("website must be at most %d characters", maxWebsiteLength))
		return trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		errs.add("website", "website must be an absolute http or https URL")
	}

	return trimmed
}

func validateMetadata(metadata string, errs FieldErrors) string {
	if metadata == "" {
		return "{}"
	}
	if !json.Valid([]byte(metadata)) {
		errs.add("metadata", "metadata must be a valid JSON document")
		return metadata
	}
	return metadata
}

func mapStorageError(err error) error {
	if errors.Is(err, persistence.ErrStorageUnavailable) {
		return ErrUnavailable
	}
	return err
}

func mapFirm(record persistence.LawFirm) Firm {
	return Firm{
		ID:            record.ID,
		Name:          record.Name,
		Slug:          record.Slug,
		Website:       record.Website,
		IsActive:      record.IsActive,
		Metadata:      record.Metadata,
		LastScrapedAt: record.LastScrapedAt,
		ScrapeStatus:  record.ScrapeStatus,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	if _, ok := f[field]; !ok {
		f[field] = []string{message}
		return
	}
	f[field] = append(f[field], message)
}

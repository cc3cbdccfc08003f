package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/counselgrid/firm-directory/platform/go/persistence"
)

type mockRepository struct {
	listFn       func(ctx context.Context, limit, offset int) ([]persistence.LawFirm, int64, error)
	createFn     func(ctx context.Context, params persistence.CreateLawFirmParams) (persistence.LawFirm, error)
	getFn        func(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error)
	getBySlugFn  func(ctx context.Context, slug string) (persistence.LawFirm, error)
	updateFn     func(ctx context.Context, id uuid.UUID, params persistence.UpdateLawFirmParams) (persistence.LawFirm, error)
	toggleFn     func(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error)
	upsertFn     func(ctx context.Context, slug string, create persistence.CreateLawFirmParams, update persistence.UpdateLawFirmParams) (persistence.LawFirm, error)
	slugExistsFn func(ctx context.Context, slug string) (bool, error)
}

func (m *mockRepository) List(ctx context.Context, limit, offset int) ([]persistence.LawFirm, int64, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, limit, offset)
}

func (m *mockRepository) Create(ctx context.Context, params persistence.CreateLawFirmParams) (persistence.LawFirm, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, params)
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockRepository) GetBySlug(ctx context.Context, slug string) (persistence.LawFirm, error) {
	if m.getBySlugFn == nil {
		panic("getBySlugFn not configured")
	}
	return m.getBySlugFn(ctx, slug)
}

func (m *mockRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateLawFirmParams) (persistence.LawFirm, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, id, params)
}

func (m *mockRepository) ToggleActive(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error) {
	if m.toggleFn == nil {
		panic("toggleFn not configured")
	}
	return m.toggleFn(ctx, id)
}

func (m *mockRepository) UpsertBySlug(ctx context.Context, slug string, create persistence.CreateLawFirmParams, update persistence.UpdateLawFirmParams) (persistence.LawFirm, error) {
	if m.upsertFn == nil {
		panic("upsertFn not configured")
	}
	return m.upsertFn(ctx, slug, create, update)
}

func (m *mockRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	if m.slugExistsFn == nil {
		panic("slugExistsFn not configured")
	}
	return m.slugExistsFn(ctx, slug)
}

func noSlugTaken(ctx context.Context, slug string) (bool, error) {
	return false, nil
}

func TestServiceCreateSuccess(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

	repo.slugExistsFn = noSlugTaken
	repo.createFn = func(ctx context.Context, params persistence.CreateLawFirmParams) (persistence.LawFirm, error) {
		require.Equal(t, "Smith & Associates", params.Name)
		require.Equal(t, "smith-associates", params.Slug)
		require.Equal(t, "https://smith.example.com", params.Website)
		require.True(t, params.IsActive)
		require.Equal(t, "{}", params.Metadata)
		require.NotEqual(t, uuid.Nil, params.ID)

		return persistence.LawFirm{
			ID:        params.ID,
			Name:      params.Name,
			Slug:      params.Slug,
			Website:   params.Website,
			IsActive:  params.IsActive,
			Metadata:  params.Metadata,
			CreatedAt: now,
		}, nil
	}

	svc := New(repo)

	result, err := svc.Create(context.Background(), CreateInput{
		Name:    "  Smith & Associates ",
		Website: "https://smith.example.com",
	})

	require.NoError(t, err)
	require.Equal(t, "Smith & Associates", result.Name)
	require.Equal(t, "smith-associates", result.Slug)
	require.Equal(t, now, result.CreatedAt)
}

func TestServiceCreateSuffixesTakenSlug(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	taken := map[string]bool{"smith-associates": true, "smith-associates-1": true}
	repo.slugExistsFn = func(ctx context.Context, slug string) (bool, error) {
		return taken[slug], nil
	}
	repo.createFn = func(ctx context.Context, params persistence.CreateLawFirmParams) (persistence.LawFirm, error) {
		require.Equal(t, "smith-associates-2", params.Slug)
		return persistence.LawFirm{ID: params.ID, Name: params.Name, Slug: params.Slug}, nil
	}

	svc := New(repo)

	result, err := svc.Create(context.Background(), CreateInput{
		Name:    "Smith & Associates",
		Website: "https://smith.example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "smith-associates-2", result.Slug)
}

func TestServiceCreateValidationError(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	svc := New(repo)

	_, err := svc.Create(context.Background(), CreateInput{Metadata: "{broken"})
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Contains(t, validationErr.Fields, "name")
	require.Contains(t, validationErr.Fields, "website")
	require.Contains(t, validationErr.Fields, "metadata")
}

func TestServiceCreateRejectsUnslugifiableName(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	svc := New(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Name:    "!!!",
		Website: "https://example.com",
	})
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Contains(t, validationErr.Fields, "name")
}

func TestServiceCreateRejectsRelativeWebsite(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	svc := New(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Name:    "Smith & Associates",
		Website: "smith.example.com/contact",
	})
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Contains(t, validationErr.Fields, "website")
}

func TestServiceCreateRejectsOverlongName(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	svc := New(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Name:    strings.Repeat("a", 256),
		Website: "https://example.com",
	})
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Contains(t, validationErr.Fields, "name")
}

func TestServiceCreateRetriesSlugRaceThenConflicts(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	oracleCalls := 0
	repo.slugExistsFn = func(ctx context.Context, slug string) (bool, error) {
		oracleCalls++
		return false, nil
	}
	createAttempts := 0
	repo.createFn = func(ctx context.Context, params persistence.CreateLawFirmParams) (persistence.LawFirm, error) {
		createAttempts++
		return persistence.LawFirm{}, persistence.ErrLawFirmConflict
	}

	svc := New(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Name:    "Harvey Legal Group",
		Website: "https://harvey.example.com",
	})
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, slugConflictRetries+1, createAttempts)
	// One oracle pass per generated candidate: initial plus one per retry.
	require.Equal(t, slugConflictRetries+1, oracleCalls)
}

func TestServiceCreateRetryRecovers(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	// The first candidate loses an insert race; afterwards the oracle
	// reports it taken, so the retry lands on the suffixed slug.
	raceLost := false
	repo.slugExistsFn = func(ctx context.Context, slug string) (bool, error) {
		return raceLost && slug == "harvey-legal-group", nil
	}
	repo.createFn = func(ctx context.Context, params persistence.CreateLawFirmParams) (persistence.LawFirm, error) {
		if !raceLost {
			raceLost = true
			return persistence.LawFirm{}, persistence.ErrLawFirmConflict
		}
		require.Equal(t, "harvey-legal-group-1", params.Slug)
		return persistence.LawFirm{ID: params.ID, Slug: params.Slug, Name: params.Name}, nil
	}

	svc := New(repo)

	result, err := svc.Create(context.Background(), CreateInput{
		Name:    "Harvey Legal Group",
		Website: "https://harvey.example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "harvey-legal-group-1", result.Slug)
}

func TestServiceGetBySlug(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	repo.getBySlugFn = func(ctx context.Context, slug string) (persistence.LawFirm, error) {
		require.Equal(t, "smith-associates", slug)
		return persistence.LawFirm{Name: "Smith & Associates", Slug: slug}, nil
	}

	svc := New(repo)

	firm, err := svc.GetBySlug(context.Background(), "smith-associates")
	require.NoError(t, err)
	require.Equal(t, "Smith & Associates", firm.Name)
}

func TestServiceGetBySlugNotFound(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	repo.getBySlugFn = func(ctx context.Context, slug string) (persistence.LawFirm, error) {
		return persistence.LawFirm{}, persistence.ErrLawFirmNotFound
	}

	svc := New(repo)

	_, err := svc.GetBySlug(context.Background(), "missing-firm")
	require.ErrorIs(t, err, ErrNotFound)

	// Malformed slugs never reach the repository.
	_, err = svc.GetBySlug(context.Background(), "Not A Slug")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceUpdateRegeneratesSlugOnRename(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	firmID := uuid.New()

	repo.getFn = func(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error) {
		require.Equal(t, firmID, id)
		return persistence.LawFirm{ID: id, Name: "Old Name", Slug: "old-name"}, nil
	}
	repo.slugExistsFn = noSlugTaken
	repo.updateFn = func(ctx context.Context, id uuid.UUID, params persistence.UpdateLawFirmParams) (persistence.LawFirm, error) {
		require.NotNil(t, params.Slug)
		require.Equal(t, "pearson-hardman", *params.Slug)
		require.Equal(t, "Pearson Hardman", *params.Name)
		return persistence.LawFirm{ID: id, Name: *params.Name, Slug: *params.Slug}, nil
	}

	svc := New(repo)

	updated, err := svc.Update(context.Background(), firmID, UpdateInput{Name: stringPtr("Pearson Hardman")})
	require.NoError(t, err)
	require.Equal(t, "pearson-hardman", updated.Slug)
}

func TestServiceUpdateKeepsSlugWhenNameSlugifiesSame(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	firmID := uuid.New()

	repo.getFn = func(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error) {
		return persistence.LawFirm{ID: id, Name: "Pearson Hardman", Slug: "pearson-hardman"}, nil
	}
	repo.updateFn = func(ctx context.Context, id uuid.UUID, params persistence.UpdateLawFirmParams) (persistence.LawFirm, error) {
		require.Nil(t, params.Slug)
		return persistence.LawFirm{ID: id, Name: *params.Name, Slug: "pearson-hardman"}, nil
	}

	svc := New(repo)

	updated, err := svc.Update(context.Background(), firmID, UpdateInput{Name: stringPtr("PEARSON hardman")})
	require.NoError(t, err)
	require.Equal(t, "pearson-hardman", updated.Slug)
}

func TestServiceUpdateWithoutRenameSkipsSlug(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	firmID := uuid.New()

	repo.updateFn = func(ctx context.Context, id uuid.UUID, params persistence.UpdateLawFirmParams) (persistence.LawFirm, error) {
		require.Nil(t, params.Name)
		require.Nil(t, params.Slug)
		require.NotNil(t, params.Website)
		return persistence.LawFirm{ID: id, Name: "Old Name", Slug: "old-name", Website: *params.Website}, nil
	}

	svc := New(repo)

	updated, err := svc.Update(context.Background(), firmID, UpdateInput{Website: stringPtr("https://new.example.com")})
	require.NoError(t, err)
	require.Equal(t, "https://new.example.com", updated.Website)
}

func TestServiceUpdateValidation(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	svc := New(repo)

	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{})
	require.Error(t, err)
	_, ok := err.(*ValidationError)
	require.True(t, ok)
}

func TestServiceUpdateNotFound(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	repo.updateFn = func(ctx context.Context, id uuid.UUID, params persistence.UpdateLawFirmParams) (persistence.LawFirm, error) {
		return persistence.LawFirm{}, persistence.ErrLawFirmNotFound
	}

	svc := New(repo)

	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{Website: stringPtr("https://example.com")})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceUpdateRequiresID(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	svc := New(repo)

	_, err := svc.Update(context.Background(), uuid.Nil, UpdateInput{Website: stringPtr("https://example.com")})
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Contains(t, validationErr.Fields, "id")
}

func TestServiceToggleActive(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	firmID := uuid.New()
	active := true
	repo.toggleFn = func(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error) {
		require.Equal(t, firmID, id)
		active = !active
		return persistence.LawFirm{ID: id, IsActive: active}, nil
	}

	svc := New(repo)

	firm, err := svc.ToggleActive(context.Background(), firmID)
	require.NoError(t, err)
	require.False(t, firm.IsActive)

	// Toggling twice restores the original state.
	firm, err = svc.ToggleActive(context.Background(), firmID)
	require.NoError(t, err)
	require.True(t, firm.IsActive)
}

func TestServiceToggleActiveNotFound(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	repo.toggleFn = func(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error) {
		return persistence.LawFirm{}, persistence.ErrLawFirmNotFound
	}

	svc := New(repo)

	_, err := svc.ToggleActive(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceListEnvelope(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	repo.listFn = func(ctx context.Context, limit, offset int) ([]persistence.LawFirm, int64, error) {
		require.Equal(t, 10, limit)
		require.Equal(t, 20, offset)

		firms := make([]persistence.LawFirm, 0, 5)
		for i := 0; i < 5; i++ {
			firms = append(firms, persistence.LawFirm{
				ID:   uuid.New(),
				Name: fmt.Sprintf("Firm %d", i),
				Slug: fmt.Sprintf("firm-%d", i),
			})
		}
		return firms, 25, nil
	}

	svc := New(repo)

	page, err := svc.List(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	require.EqualValues(t, 25, page.Total)
	require.Equal(t, 3, page.Page)
	require.Equal(t, 10, page.PageSize)
	require.Equal(t, 3, page.TotalPages)
}

func TestServiceListBeyondRange(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	repo.listFn = func(ctx context.Context, limit, offset int) ([]persistence.LawFirm, int64, error) {
		require.Equal(t, 30, offset)
		return nil, 25, nil
	}

	svc := New(repo)

	page, err := svc.List(context.Background(), 4, 10)
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.EqualValues(t, 25, page.Total)
	require.Equal(t, 3, page.TotalPages)
}

func TestServiceListClampsPagination(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	repo.listFn = func(ctx context.Context, limit, offset int) ([]persistence.LawFirm, int64, error) {
		require.Equal(t, 10, limit)
		require.Equal(t, 0, offset)
		return nil, 0, nil
	}

	svc := New(repo)

	page, err := svc.List(context.Background(), -3, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 10, page.PageSize)
	require.Equal(t, 0, page.TotalPages)
}

func TestServiceUpsertBySlug(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	repo.upsertFn = func(ctx context.Context, slug string, create persistence.CreateLawFirmParams, update persistence.UpdateLawFirmParams) (persistence.LawFirm, error) {
		require.Equal(t, "smith-associates", slug)
		require.Equal(t, slug, create.Slug)
		require.Equal(t, "Smith & Associates", create.Name)
		require.NotNil(t, update.Name)
		require.Equal(t, create.Name, *update.Name)
		require.NotNil(t, update.IsActive)
		return persistence.LawFirm{ID: create.ID, Name: create.Name, Slug: slug}, nil
	}

	svc := New(repo)

	firm, err := svc.UpsertBySlug(context.Background(), UpsertInput{
		Slug:     "smith-associates",
		Name:     "Smith & Associates",
		Website:  "https://smith.example.com",
		IsActive: true,
	})
	require.NoError(t, err)
	require.Equal(t, "smith-associates", firm.Slug)
}

func TestServiceUpsertBySlugValidation(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	svc := New(repo)

	_, err := svc.UpsertBySlug(context.Background(), UpsertInput{
		Slug:    "Not A Slug",
		Name:    "Smith & Associates",
		Website: "https://smith.example.com",
	})
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Contains(t, validationErr.Fields, "slug")
}

func TestServiceStorageUnavailable(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{}
	repo.listFn = func(ctx context.Context, limit, offset int) ([]persistence.LawFirm, int64, error) {
		return nil, 0, fmt.Errorf("list law firms: %w", persistence.ErrStorageUnavailable)
	}

	svc := New(repo)

	_, err := svc.List(context.Background(), 1, 10)
	require.ErrorIs(t, err, ErrUnavailable)
}

func stringPtr(value string) *string {
	return &value
}

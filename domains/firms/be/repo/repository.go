package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/counselgrid/firm-directory/platform/go/persistence"
)

// Repository exposes the persistence operations required by the law firm directory service.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]persistence.LawFirm, int64, error)
	Create(ctx context.Context, params persistence.CreateLawFirmParams) (persistence.LawFirm, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error)
	GetBySlug(ctx context.Context, slug string) (persistence.LawFirm, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.UpdateLawFirmParams) (persistence.LawFirm, error)
	ToggleActive(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error)
	UpsertBySlug(ctx context.Context, slug string, create persistence.CreateLawFirmParams, update persistence.UpdateLawFirmParams) (persistence.LawFirm, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type postgresRepository struct {
	store *persistence.LawFirmStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.LawFirmStore) Repository {
	if store == nil {
		panic("law firm store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]persistence.LawFirm, int64, error) {
	return r.store.ListLawFirms(ctx, limit, offset)
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateLawFirmParams) (persistence.LawFirm, error) {
	return r.store.CreateLawFirm(ctx, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error) {
	return r.store.GetLawFirm(ctx, id)
}

func (r *postgresRepository) GetBySlug(ctx context.Context, slug string) (persistence.LawFirm, error) {
	return r.store.GetLawFirmBySlug(ctx, slug)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateLawFirmParams) (persistence.LawFirm, error) {
	return r.store.UpdateLawFirm(ctx, id, params)
}

func (r *postgresRepository) ToggleActive(ctx context.Context, id uuid.UUID) (persistence.LawFirm, error) {
	return r.store.ToggleLawFirmActive(ctx, id)
}

func (r *postgresRepository) UpsertBySlug(ctx context.Context, slug string, create persistence.CreateLawFirmParams, update persistence.UpdateLawFirmParams) (persistence.LawFirm, error) {
	return r.store.UpsertLawFirmBySlug(ctx, slug, create, update)
}

func (r *postgresRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	return r.store.LawFirmSlugExists(ctx, slug)
}

package persistence

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const LawFirmsTable = "law_firms"

// LawFirm is the persisted directory record. Metadata is an opaque serialized
// JSON document; the store only guarantees it round-trips.
type LawFirm struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Slug          string     `db:"slug" json:"slug"`
	Website       string     `db:"website" json:"website"`
	IsActive      bool       `db:"is_active" json:"isActive"`
	Metadata      string     `db:"metadata" json:"metadata"`
	LastScrapedAt *time.Time `db:"last_scraped_at" json:"lastScrapedAt,omitempty"`
	ScrapeStatus  *string    `db:"scrape_status" json:"scrapeStatus,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
}

var (
	// ErrLawFirmNotFound indicates the referenced id or slug does not exist.
	ErrLawFirmNotFound = errors.New("law firm not found")
	// ErrLawFirmConflict indicates a slug uniqueness violation at commit time.
	ErrLawFirmConflict = errors.New("law firm slug conflict")
	// ErrStorageUnavailable indicates the underlying database is unreachable.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// LawFirmStore owns all reads and writes against the law_firms table. Slug
// uniqueness is ultimately enforced by the table's unique index; callers that
// generate slugs must be prepared for ErrLawFirmConflict under races.
type LawFirmStore struct {
	pool *pgxpool.Pool
}

func NewLawFirmStore(pool *pgxpool.Pool) (*LawFirmStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &LawFirmStore{pool: pool}, nil
}

const lawFirmColumns = "id, name, slug, website, is_active, metadata, last_scraped_at, scrape_status, created_at, updated_at"

type CreateLawFirmParams struct {
	ID            uuid.UUID
	Name          string
	Slug          string
	Website       string
	IsActive      bool
	Metadata      string
	LastScrapedAt *time.Time
	ScrapeStatus  *string
}

func (s *LawFirmStore) CreateLawFirm(ctx context.Context, params CreateLawFirmParams) (LawFirm, error) {
	if params.ID == uuid.Nil {
		return LawFirm{}, errors.New("law firm id is required")
	}
	if strings.TrimSpace(params.Name) == "" {
		return LawFirm{}, errors.New("law firm name is required")
	}

	slug, err := NormalizeSlug(params.Slug)
	if err != nil {
		return LawFirm{}, err
	}

	metadata := params.Metadata
	if metadata == "" {
		metadata = "{}"
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO law_firms (
			id, name, slug, website, is_active, metadata, last_scraped_at, scrape_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NULL
		)
		RETURNING `+lawFirmColumns,
		params.ID, params.Name, slug, params.Website, params.IsActive, metadata, params.LastScrapedAt, params.ScrapeStatus)

	firm, err := scanLawFirm(row)
	if err != nil {
		if isUniqueViolation(err) {
			return LawFirm{}, ErrLawFirmConflict
		}
		return LawFirm{}, storageErr("insert law firm", err)
	}

	return firm, nil
}

func (s *LawFirmStore) GetLawFirm(ctx context.Context, id uuid.UUID) (LawFirm, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+lawFirmColumns+`
		FROM law_firms
		WHERE id = $1
	`, id)

	firm, err := scanLawFirm(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LawFirm{}, ErrLawFirmNotFound
		}
		return LawFirm{}, storageErr("get law firm", err)
	}

	return firm, nil
}

func (s *LawFirmStore) GetLawFirmBySlug(ctx context.Context, slug string) (LawFirm, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+lawFirmColumns+`
		FROM law_firms
		WHERE slug = $1
	`, slug)

	firm, err := scanLawFirm(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LawFirm{}, ErrLawFirmNotFound
		}
		return LawFirm{}, storageErr("get law firm by slug", err)
	}

	return firm, nil
}

// LawFirmSlugExists is the uniqueness oracle consumed by UniqueSlug.
func (s *LawFirmStore) LawFirmSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM law_firms WHERE slug = $1)
	`, slug).Scan(&exists); err != nil {
		return false, storageErr("check law firm slug", err)
	}
	return exists, nil
}

// ListLawFirms returns one page of firms ordered by name ascending with id as
// the deterministic tiebreaker, plus the total record count.
func (s *LawFirmStore) ListLawFirms(ctx context.Context, limit, offset int) ([]LawFirm, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM law_firms`).Scan(&total); err != nil {
		return nil, 0, storageErr("count law firms", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+lawFirmColumns+`
		FROM law_firms
		ORDER BY name ASC, id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, storageErr("list law firms", err)
	}
	defer rows.Close()

	firms := make([]LawFirm, 0, limit)
	for rows.Next() {
		firm, scanErr := scanLawFirm(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		firms = append(firms, firm)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, storageErr("iterate law firms", err)
	}

	return firms, total, nil
}

// ToggleLawFirmActive flips is_active in a single statement so two concurrent
// toggles on the same id serialize at the row and never observe the same
// prior state.
func (s *LawFirmStore) ToggleLawFirmActive(ctx context.Context, id uuid.UUID) (LawFirm, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE law_firms
		SET is_active = NOT is_active,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+lawFirmColumns, id)

	firm, err := scanLawFirm(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LawFirm{}, ErrLawFirmNotFound
		}
		return LawFirm{}, storageErr("toggle law firm", err)
	}

	return firm, nil
}

type UpdateLawFirmParams struct {
	Name          *string
	Slug          *string
	Website       *string
	IsActive      *bool
	Metadata      *string
	LastScrapedAt *time.Time
	ScrapeStatus  *string
}

func (s *LawFirmStore) UpdateLawFirm(ctx context.Context, id uuid.UUID, params UpdateLawFirmParams) (LawFirm, error) {
	if id == uuid.Nil {
		return LawFirm{}, errors.New("law firm id is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return LawFirm{}, storageErr("begin update law firm tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+lawFirmColumns+`
		FROM law_firms
		WHERE id = $1
		FOR UPDATE
	`, id)

	current, err := scanLawFirm(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LawFirm{}, ErrLawFirmNotFound
		}
		return LawFirm{}, storageErr("load law firm", err)
	}

	name := current.Name
	if params.Name != nil {
		trimmed := strings.TrimSpace(*params.Name)
		if trimmed == "" {
			return LawFirm{}, errors.New("law firm name is required")
		}
		name = trimmed
	}

	slug := current.Slug
	if params.Slug != nil {
		normalized, err := NormalizeSlug(*params.Slug)
		if err != nil {
			return LawFirm{}, err
		}
		slug = normalized
	}

	website := current.Website
	if params.Website != nil {
		website = *params.Website
	}

	isActive := current.IsActive
	if params.IsActive != nil {
		isActive = *params.IsActive
	}

	metadata := current.Metadata
	if params.Metadata != nil {
		metadata = *params.Metadata
	}

	lastScrapedAt := current.LastScrapedAt
	if params.LastScrapedAt != nil {
		lastScrapedAt = params.LastScrapedAt
	}

	scrapeStatus := current.ScrapeStatus
	if params.ScrapeStatus != nil {
		scrapeStatus = params.ScrapeStatus
	}

	row = tx.QueryRow(ctx, `
		UPDATE law_firms
		SET name = $2,
		    slug = $3,
		    website = $4,
		    is_active = $5,
		    metadata = $6,
		    last_scraped_at = $7,
		    scrape_status = $8,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+lawFirmColumns,
		id, name, slug, website, isActive, metadata, lastScrapedAt, scrapeStatus)

	firm, err := scanLawFirm(row)
	if err != nil {
		if isUniqueViolation(err) {
			return LawFirm{}, ErrLawFirmConflict
		}
		return LawFirm{}, storageErr("update law firm", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return LawFirm{}, storageErr("commit update law firm tx", err)
	}

	return firm, nil
}

// UpsertLawFirmBySlug inserts a new record keyed by slug or applies the
// partial update fields when the slug already exists. The slug is taken as
// given (callers guarantee uniqueness against their own oracle); the statement
// is a single INSERT ... ON CONFLICT so repeated calls with identical
// arguments converge on the same row.
func (s *LawFirmStore) UpsertLawFirmBySlug(ctx context.Context, slug string, create CreateLawFirmParams, update UpdateLawFirmParams) (LawFirm, error) {
	normalized, err := NormalizeSlug(slug)
	if err != nil {
		return LawFirm{}, err
	}
	if create.ID == uuid.Nil {
		return LawFirm{}, errors.New("law firm id is required")
	}
	if strings.TrimSpace(create.Name) == "" {
		return LawFirm{}, errors.New("law firm name is required")
	}

	metadata := create.Metadata
	if metadata == "" {
		metadata = "{}"
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO law_firms (
			id, name, slug, website, is_active, metadata, last_scraped_at, scrape_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NULL
		)
		ON CONFLICT (slug) DO UPDATE SET
			name = COALESCE($9::varchar, law_firms.name),
			website = COALESCE($10::varchar, law_firms.website),
			is_active = COALESCE($11::boolean, law_firms.is_active),
			metadata = COALESCE($12::text, law_firms.metadata),
			last_scraped_at = COALESCE($13::timestamptz, law_firms.last_scraped_at),
			scrape_status = COALESCE($14::text, law_firms.scrape_status),
			updated_at = NOW()
		RETURNING `+lawFirmColumns,
		create.ID, create.Name, normalized, create.Website, create.IsActive, metadata,
		create.LastScrapedAt, create.ScrapeStatus,
		update.Name, update.Website, update.IsActive, update.Metadata,
		update.LastScrapedAt, update.ScrapeStatus)

	firm, err := scanLawFirm(row)
	if err != nil {
		return LawFirm{}, storageErr("upsert law firm", err)
	}

	return firm, nil
}

func (s *LawFirmStore) CountLawFirms(ctx context.Context) (int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM law_firms`).Scan(&total); err != nil {
		return 0, storageErr("count law firms", err)
	}
	return total, nil
}

// DeleteAllLawFirms clears the table. Only the seed CLI calls this; the
// public service contract never hard-deletes.
func (s *LawFirmStore) DeleteAllLawFirms(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM law_firms`); err != nil {
		return storageErr("delete all law firms", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLawFirm(scanner rowScanner) (LawFirm, error) {
	var (
		id            uuid.UUID
		name          string
		slug          string
		website       string
		isActive      bool
		metadata      string
		lastScrapedAt pgtype.Timestamptz
		scrapeStatus  pgtype.Text
		createdAt     time.Time
		updatedAt     pgtype.Timestamptz
	)

	if err := scanner.Scan(&id, &name, &slug, &website, &isActive, &metadata, &lastScrapedAt, &scrapeStatus, &createdAt, &updatedAt); err != nil {
		return LawFirm{}, err
	}

	var lastScrapedPtr *time.Time
	if lastScrapedAt.Valid {
		ts := lastScrapedAt.Time
		lastScrapedPtr = &ts
	}

	var scrapeStatusPtr *string
	if scrapeStatus.Valid {
		status := scrapeStatus.String
		scrapeStatusPtr = &status
	}

	var updatedPtr *time.Time
	if updatedAt.Valid {
		ts := updatedAt.Time
		updatedPtr = &ts
	}

	return LawFirm{
		ID:            id,
		Name:          name,
		Slug:          slug,
		Website:       website,
		IsActive:      isActive,
		Metadata:      metadata,
		LastScrapedAt: lastScrapedPtr,
		ScrapeStatus:  scrapeStatusPtr,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedPtr,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// storageErr wraps database failures, folding connection-class errors into
// ErrStorageUnavailable so callers can distinguish "unreachable" from
// "unexpected".
func storageErr(op string, err error) error {
	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

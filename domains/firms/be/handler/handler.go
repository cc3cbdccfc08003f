package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/counselgrid/firm-directory/domains/firms/be/service"
	platformlogging "github.com/counselgrid/firm-directory/platform/go/logging"
	"github.com/counselgrid/firm-directory/platform/go/persistence"
)

const (
	problemTypeValidation  = "https://counselgrid.dev/problems/validation-error"
	problemTypeNotFound    = "https://counselgrid.dev/problems/not-found"
	problemTypeConflict    = "https://counselgrid.dev/problems/conflict"
	problemTypeUnavailable = "https://counselgrid.dev/problems/storage-unavailable"
	problemTypeInternal    = "https://counselgrid.dev/problems/internal-error"
	lawFirmsBasePath       = "/api/v1/lawfirms"

	defaultPage     = 1
	defaultPageSize = 10
)

type operation string

const (
	listOperation   operation = "listLawFirms"
	createOperation operation = "createLawFirm"
	getOperation    operation = "getLawFirm"
	updateOperation operation = "updateLawFirm"
	toggleOperation operation = "toggleLawFirm"
)

// ProblemDetails is the RFC 7807 error body returned by every failing request.
type ProblemDetails struct {
	Type   string               `json:"type,omitempty"`
	Title  string               `json:"title"`
	Status int                  `json:"status"`
	Detail string               `json:"detail,omitempty"`
	Errors *map[string][]string `json:"errors,omitempty"`
}

// LawFirm is the wire representation of a directory record.
type LawFirm struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Website       string          `json:"website"`
	IsActive      bool            `json:"isActive"`
	Metadata      json.RawMessage `json:"metadata"`
	LastScrapedAt *time.Time      `json:"lastScrapedAt,omitempty"`
	ScrapeStatus  *string         `json:"scrapeStatus,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
}

// LawFirmList is the offset-paginated listing envelope.
type LawFirmList struct {
	Items      []LawFirm `json:"items"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

type createLawFirmRequest struct {
	Name     string          `json:"name"`
	Website  string          `json:"website"`
	IsActive *bool           `json:"isActive"`
	Metadata json.RawMessage `json:"metadata"`
}

type updateLawFirmRequest struct {
	ID       uuid.UUID       `json:"id"`
	Name     *string         `json:"name"`
	Website  *string         `json:"website"`
	IsActive *bool           `json:"isActive"`
	Metadata json.RawMessage `json:"metadata"`
}

// Handler wires the law firm directory service to its HTTP contract.
type Handler struct {
	svc      service.Service
	logger   *zap.Logger
	metadata *persistence.MetadataValidator
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("law firms service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	validator, err := persistence.NewMetadataValidator()
	if err != nil {
		panic(fmt.Sprintf("firm metadata schema failed to compile: %v", err))
	}

	return &Handler{svc: svc, logger: logger, metadata: validator}
}

// Register mounts the law firm routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/lawfirms", h.ListLawFirms)
	r.Post("/lawfirms", h.CreateLawFirm)
	r.Put("/lawfirms", h.UpdateLawFirm)
	r.Get("/lawfirms/{slug}", h.GetLawFirm)
	r.Patch("/lawfirms/{id}/toggle", h.ToggleLawFirm)
}

// ListLawFirms serves GET /lawfirms. Absent or malformed pagination
// parameters fall back to the defaults rather than failing the request.
func (h *Handler) ListLawFirms(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", defaultPage)
	pageSize := queryInt(r, "pageSize", defaultPageSize)

	result, err := h.svc.List(r.Context(), page, pageSize)
	if err != nil {
		h.writeProblem(w, r, err, listOperation)
		return
	}

	items := make([]LawFirm, 0, len(result.Items))
	for _, firm := range result.Items {
		items = append(items, toAPILawFirm(firm))
	}

	h.writeJSON(w, r, http.StatusOK, LawFirmList{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	})
}

// CreateLawFirm serves POST /lawfirms.
func (h *Handler) CreateLawFirm(w http.ResponseWriter, r *http.Request) {
	var body createLawFirmRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeBodyProblem(w, r, createOperation)
		return
	}

	if err := h.metadata.Validate(body.Metadata); err != nil {
		h.writeProblem(w, r, metadataValidationError(err), createOperation)
		return
	}

	firm, err := h.svc.Create(r.Context(), service.CreateInput{
		Name:     body.Name,
		Website:  body.Website,
		IsActive: body.IsActive,
		Metadata: string(body.Metadata),
	})
	if err != nil {
		h.writeProblem(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", lawFirmsBasePath, firm.Slug))
	h.writeJSON(w, r, http.StatusCreated, toAPILawFirm(firm))
}

// GetLawFirm serves GET /lawfirms/{slug}.
func (h *Handler) GetLawFirm(w http.ResponseWriter, r *http.Request) {
	firm, err := h.svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeProblem(w, r, err, getOperation)
		return
	}

	h.writeJSON(w, r, http.StatusOK, toAPILawFirm(firm))
}

// UpdateLawFirm serves PUT /lawfirms. The record identifier travels in the
// request body alongside the fields to change.
func (h *Handler) UpdateLawFirm(w http.ResponseWriter, r *http.Request) {
	var body updateLawFirmRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeBodyProblem(w, r, updateOperation)
		return
	}

	if err := h.metadata.Validate(body.Metadata); err != nil {
		h.writeProblem(w, r, metadataValidationError(err), updateOperation)
		return
	}

	input := service.UpdateInput{
		Name:     body.Name,
		Website:  body.Website,
		IsActive: body.IsActive,
	}
	if body.Metadata != nil {
		metadata := string(body.Metadata)
		input.Metadata = &metadata
	}

	firm, err := h.svc.Update(r.Context(), body.ID, input)
	if err != nil {
		h.writeProblem(w, r, err, updateOperation)
		return
	}

	h.writeJSON(w, r, http.StatusOK, toAPILawFirm(firm))
}

// ToggleLawFirm serves PATCH /lawfirms/{id}/toggle.
func (h *Handler) ToggleLawFirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeProblem(w, r, &service.ValidationError{Fields: service.FieldErrors{
			"id": []string{"id must be a valid UUID"},
		}}, toggleOperation)
		return
	}

	firm, err := h.svc.ToggleActive(r.Context(), id)
	if err != nil {
		h.writeProblem(w, r, err, toggleOperation)
		return
	}

	h.writeJSON(w, r, http.StatusOK, toAPILawFirm(firm))
}

func toAPILawFirm(firm service.Firm) LawFirm {
	metadata := json.RawMessage(firm.Metadata)
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	return LawFirm{
		ID:            firm.ID,
		Name:          firm.Name,
		Slug:          firm.Slug,
		Website:       firm.Website,
		IsActive:      firm.IsActive,
		Metadata:      metadata,
		LastScrapedAt: firm.LastScrapedAt,
		ScrapeStatus:  firm.ScrapeStatus,
		CreatedAt:     firm.CreatedAt,
		UpdatedAt:     firm.UpdatedAt,
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func metadataValidationError(err error) error {
	return &service.ValidationError{Fields: service.FieldErrors{
		"metadata": []string{err.Error()},
	}}
}

func (h *Handler) writeBodyProblem(w http.ResponseWriter, r *http.Request, op operation) {
	h.writeProblem(w, r, &service.ValidationError{Fields: service.FieldErrors{
		"body": []string{"request body must be a valid JSON document"},
	}}, op)
}

func (h *Handler) writeProblem(w http.ResponseWriter, r *http.Request, err error, op operation) {
	status, problem := h.problemForError(r.Context(), err, op)

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(problem); encodeErr != nil {
		h.loggerFrom(r.Context()).Error("write problem response", zap.Error(encodeErr))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFrom(r.Context()).Error("write response", zap.Error(err))
	}
}

func (h *Handler) problemForError(ctx context.Context, err error, op operation) (int, ProblemDetails) {
	status, title, detail, problemType, fieldErrors := h.classifyError(err)

	logger := h.loggerFrom(ctx)
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("law firms operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("law firms resource not found", append(fields, zap.Error(err))...)
	default:
		logger.Warn("law firms request rejected", append(fields, zap.Error(err))...)
	}

	return status, h.buildProblem(title, detail, problemType, status, fieldErrors)
}

func (h *Handler) classifyError(err error) (status int, title, detail, problemType string, fieldErrors service.FieldErrors) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more fields are invalid",
			problemTypeValidation,
			validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"law firm not found",
			problemTypeNotFound,
			nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			"Conflict",
			"law firm already exists",
			problemTypeConflict,
			nil
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable,
			"Storage unavailable",
			"the directory store cannot be reached",
			problemTypeUnavailable,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal server error",
			"an unexpected error occurred",
			problemTypeInternal,
			nil
	}
}

func (h *Handler) buildProblem(title, detail, problemType string, status int, fieldErrors service.FieldErrors) ProblemDetails {
	problem := ProblemDetails{
		Title:  title,
		Status: status,
		Detail: detail,
		Type:   problemType,
	}

	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			copied[field] = append([]string(nil), messages...)
		}
		problem.Errors = &copied
	}

	return problem
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}

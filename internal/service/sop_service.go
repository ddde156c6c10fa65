package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/models"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
)

type sopStore interface {
	Create(ctx context.Context, sop *models.SOP) error
	GetByID(ctx context.Context, id string) (*models.SOP, error)
	List(ctx context.Context, filter models.SOPFilter) ([]models.SOP, int, error)
	Update(ctx context.Context, sop *models.SOP) error
	Deactivate(ctx context.Context, id string) error
}

// SOPService manages the procedure library.
type SOPService struct {
	repo      sopStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSOPService constructs the service.
func NewSOPService(repo sopStore, validate *validator.Validate, logger *zap.Logger) *SOPService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SOPService{repo: repo, validator: validate, logger: logger}
}

// List returns library entries with pagination metadata.
func (s *SOPService) List(ctx context.Context, filter models.SOPFilter) ([]models.SOP, *models.Pagination, error) {
	sops, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sops")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return sops, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one library entry.
func (s *SOPService) Get(ctx context.Context, id string) (*models.SOP, error) {
	sop, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sop not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sop")
	}
	return sop, nil
}

// Create adds a new library entry.
func (s *SOPService) Create(ctx context.Context, req dto.UpsertSOPRequest) (*models.SOP, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sop payload")
	}
	sop := &models.SOP{
		Code:        req.Code,
		Title:       req.Title,
		Category:    req.Category,
		Keywords:    req.Keywords,
		DocumentURL: req.DocumentURL,
		Active:      true,
	}
	if req.Active != nil {
		sop.Active = *req.Active
	}
	if err := s.repo.Create(ctx, sop); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sop")
	}
	return sop, nil
}

// Update replaces mutable fields of a library entry.
func (s *SOPService) Update(ctx context.Context, id string, req dto.UpsertSOPRequest) (*models.SOP, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sop payload")
	}
	sop, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sop.Code = req.Code
	sop.Title = req.Title
	sop.Category = req.Category
	sop.Keywords = req.Keywords
	sop.DocumentURL = req.DocumentURL
	if req.Active != nil {
		sop.Active = *req.Active
	}
	if err := s.repo.Update(ctx, sop); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sop not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update sop")
	}
	return sop, nil
}

// Deactivate hides an entry from the library.
func (s *SOPService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate sop")
	}
	return nil
}

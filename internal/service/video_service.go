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

type videoStore interface {
	Create(ctx context.Context, video *models.Video) error
	GetByID(ctx context.Context, id string) (*models.Video, error)
	List(ctx context.Context, filter models.VideoFilter) ([]models.Video, int, error)
	Update(ctx context.Context, video *models.Video) error
	Deactivate(ctx context.Context, id string) error
}

// VideoService manages the training video gallery.
type VideoService struct {
	repo      videoStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVideoService constructs the service.
func NewVideoService(repo videoStore, validate *validator.Validate, logger *zap.Logger) *VideoService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoService{repo: repo, validator: validate, logger: logger}
}

// List returns gallery entries with pagination metadata.
func (s *VideoService) List(ctx context.Context, filter models.VideoFilter) ([]models.Video, *models.Pagination, error) {
	videos, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list videos")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return videos, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one gallery entry.
func (s *VideoService) Get(ctx context.Context, id string) (*models.Video, error) {
	video, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}
	return video, nil
}

// Create adds a new gallery entry.
func (s *VideoService) Create(ctx context.Context, req dto.UpsertVideoRequest) (*models.Video, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid video payload")
	}
	video := &models.Video{
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		Topic:       req.Topic,
		DurationSec: req.DurationSec,
		Active:      true,
	}
	if req.Active != nil {
		video.Active = *req.Active
	}
	if err := s.repo.Create(ctx, video); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create video")
	}
	return video, nil
}

// Update replaces mutable fields of a gallery entry.
func (s *VideoService) Update(ctx context.Context, id string, req dto.UpsertVideoRequest) (*models.Video, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid video payload")
	}
	video, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	video.Title = req.Title
	video.Description = req.Description
	video.URL = req.URL
	video.Topic = req.Topic
	video.DurationSec = req.DurationSec
	if req.Active != nil {
		video.Active = *req.Active
	}
	if err := s.repo.Update(ctx, video); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update video")
	}
	return video, nil
}

// Deactivate hides an entry from the gallery.
func (s *VideoService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate video")
	}
	return nil
}

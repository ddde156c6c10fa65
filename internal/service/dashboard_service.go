package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/workflow"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
)

type summaryRecordSource interface {
	Latest(ctx context.Context, studentID, formTypeID string) (*models.AssessmentRecord, error)
}

type dashboardUserLister interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL        time.Duration
	MaxRosterSize   int
	RosterPageLimit int
}

// DashboardService composes training overview payloads. A form type that
// fails to resolve degrades to a default cell; one bad form never blanks the
// whole dashboard.
type DashboardService struct {
	engine  *workflow.Engine
	records summaryRecordSource
	users   dashboardUserLister
	cache   *CacheService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Engine  *workflow.Engine
	Records summaryRecordSource
	Users   dashboardUserLister
	Cache   *CacheService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.MaxRosterSize <= 0 {
		cfg.MaxRosterSize = 500
	}
	if cfg.RosterPageLimit <= 0 {
		cfg.RosterPageLimit = 100
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		engine:  params.Engine,
		records: params.Records,
		users:   params.Users,
		cache:   params.Cache,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
	}
}

// Student returns the per-student overview and indicates cache utilisation.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error) {
	if studentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	cacheKey := fmt.Sprintf("dash:student:%s", studentID)
	if s.cache != nil {
		var cached dto.StudentDashboardResponse
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	summary := &dto.StudentDashboardResponse{
		StudentID:   studentID,
		Forms:       s.composeForms(ctx, studentID),
		GeneratedAt: s.now().UTC(),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return summary, false, nil
}

// Admin returns the department-wide roster overview. It is composed per
// student from the same cells the student dashboard uses.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	if s.users == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "user directory unavailable")
	}
	role := models.RoleStudent
	active := true
	var rows []dto.StudentProgressRow
	page := 1
	for len(rows) < s.cfg.MaxRosterSize {
		students, total, err := s.users.List(ctx, models.UserFilter{
			Role:     &role,
			Active:   &active,
			Page:     page,
			PageSize: s.cfg.RosterPageLimit,
			SortBy:   "full_name",
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
		}
		for _, student := range students {
			rows = append(rows, dto.StudentProgressRow{
				StudentID:   student.ID,
				StudentName: student.FullName,
				Email:       student.Email,
				Forms:       s.composeForms(ctx, student.ID),
			})
		}
		if len(rows) >= total || len(students) == 0 {
			break
		}
		page++
	}
	return &dto.AdminDashboardResponse{Students: rows, GeneratedAt: s.now().UTC()}, nil
}

// composeForms builds one summary cell per registered form type. Failures
// and missing attempts yield an unknown cell for that form only.
func (s *DashboardService) composeForms(ctx context.Context, studentID string) []models.FormSummary {
	formTypeIDs := s.engine.FormTypeIDs()
	sort.Strings(formTypeIDs)

	forms := make([]models.FormSummary, 0, len(formTypeIDs))
	for _, formTypeID := range formTypeIDs {
		forms = append(forms, s.summarize(ctx, studentID, formTypeID))
	}
	return forms
}

func (s *DashboardService) summarize(ctx context.Context, studentID, formTypeID string) models.FormSummary {
	record, err := s.records.Latest(ctx, studentID, formTypeID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("dashboard cell lookup failed",
				zap.String("studentId", studentID),
				zap.String("formTypeId", formTypeID),
				zap.Error(err))
		}
		return models.FormSummary{FormTypeID: formTypeID, Status: models.StatusDraft}
	}

	summary := models.FormSummary{
		FormTypeID:      formTypeID,
		Status:          record.Status,
		RemediationTier: s.engine.RemediationTier(record),
		Known:           true,
	}
	if score, ok := s.engine.Score(record); ok {
		summary.LastScore = &score
	}
	updatedAt := record.UpdatedAt
	if !updatedAt.IsZero() {
		summary.LastUpdatedAt = &updatedAt
	}
	return summary
}

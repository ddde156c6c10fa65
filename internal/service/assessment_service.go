package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/workflow"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
)

type assessmentRecordRepository interface {
	Create(ctx context.Context, record *models.AssessmentRecord) error
	GetByID(ctx context.Context, id string) (*models.AssessmentRecord, error)
	List(ctx context.Context, filter models.AssessmentFilter) ([]models.AssessmentRecord, error)
	Update(ctx context.Context, record *models.AssessmentRecord, expectedStatus models.AssessmentStatus) error
}

type assessmentUserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type assessmentAuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AssessmentService orchestrates record persistence around the workflow
// engine. The engine decides what is legal; this layer loads, applies and
// stores, and keeps the audit trail.
type AssessmentService struct {
	engine    *workflow.Engine
	repo      assessmentRecordRepository
	users     assessmentUserDirectory
	audit     assessmentAuditRecorder
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// AssessmentServiceParams groups constructor dependencies.
type AssessmentServiceParams struct {
	Engine    *workflow.Engine
	Repo      assessmentRecordRepository
	Users     assessmentUserDirectory
	Audit     assessmentAuditRecorder
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewAssessmentService constructs the service.
func NewAssessmentService(params AssessmentServiceParams) *AssessmentService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &AssessmentService{
		engine:    params.Engine,
		repo:      params.Repo,
		users:     params.Users,
		audit:     params.Audit,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create opens a new draft record for a student and form type.
func (s *AssessmentService) Create(ctx context.Context, actor workflow.Actor, req dto.CreateAssessmentRequest) (*models.AssessmentRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	if actor.Role != models.RoleTeacher && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrRoleNotPermitted, "only staff may open assessment records")
	}
	if _, ok := s.engine.Form(req.FormTypeID); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown form type %q", req.FormTypeID))
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assessment target must be a student account")
	}

	now := s.now().UTC()
	evaluationDate := req.EvaluationDate
	if evaluationDate == "" {
		evaluationDate = now.Format("2006-01-02")
	}
	record := &models.AssessmentRecord{
		StudentID:      student.ID,
		StudentEmail:   student.Email,
		StudentName:    student.FullName,
		FormTypeID:     req.FormTypeID,
		Status:         models.StatusDraft,
		FieldValues:    models.FieldValues{},
		EvaluationDate: evaluationDate,
		Signatures:     models.SignatureList{},
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assessment record")
	}

	s.recordAudit(ctx, actor, models.AuditActionAssessmentCreate, record.ID, nil, record)
	s.invalidateDashboards(ctx, record.StudentID)
	return record, nil
}

// Get returns one record decorated with the actor's view-state.
func (s *AssessmentService) Get(ctx context.Context, actor workflow.Actor, id string) (*dto.AssessmentDetailResponse, error) {
	record, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.detail(record, actor), nil
}

// List returns records visible to the actor. Students are always constrained
// to their own records regardless of the requested filter.
func (s *AssessmentService) List(ctx context.Context, actor workflow.Actor, query dto.AssessmentQuery) ([]models.AssessmentRecord, error) {
	filter := models.AssessmentFilter{
		StudentID:  query.StudentID,
		FormTypeID: query.FormTypeID,
		Status:     query.Status,
		Limit:      query.Limit,
		Offset:     query.Offset,
	}
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.ID
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessment records")
	}
	return records, nil
}

// SaveDraft applies field edits without a status change. Every touched field
// must be editable by the actor in the record's current status.
func (s *AssessmentService) SaveDraft(ctx context.Context, actor workflow.Actor, id string, req dto.SaveDraftRequest) (*dto.AssessmentDetailResponse, error) {
	record, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if record.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrRecordTerminal,
			fmt.Sprintf("record is terminal in status %s", record.Status))
	}
	for fieldID := range req.FieldValues {
		if !s.engine.Editability(record, actor, fieldID) {
			return nil, appErrors.Clone(appErrors.ErrRoleNotPermitted,
				fmt.Sprintf("field %q is not editable by role %s in status %s", fieldID, actor.Role, record.Status))
		}
	}
	if req.EvaluationDate != "" && !s.engine.CanEditEvaluationDate(record, actor) {
		return nil, appErrors.Clone(appErrors.ErrRoleNotPermitted,
			fmt.Sprintf("evaluation date is not editable by role %s in status %s", actor.Role, record.Status))
	}

	next := record.Clone()
	for key, value := range req.FieldValues {
		next.FieldValues[key] = value
	}
	if req.EvaluationDate != "" {
		next.EvaluationDate = req.EvaluationDate
	}
	next.UpdatedAt = s.now().UTC()

	if err := s.persist(ctx, next, record.Status); err != nil {
		return nil, err
	}
	s.invalidateDashboards(ctx, next.StudentID)
	return s.detail(next, actor), nil
}

// Transition requests a status change through the workflow engine and
// persists the result.
func (s *AssessmentService) Transition(ctx context.Context, actor workflow.Actor, id string, req dto.TransitionRequest) (*dto.AssessmentDetailResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	record, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	next, err := s.engine.Transition(record, actor, req.Intent, req.FieldValues, req.EvaluationDate, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, next, record.Status); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(next.FormTypeID, next.Status)
	}
	s.recordAudit(ctx, actor, models.AuditActionAssessmentTransition, next.ID, record, next)
	s.invalidateDashboards(ctx, next.StudentID)
	return s.detail(next, actor), nil
}

// FollowUp spawns a fresh draft attempt from a failed record.
func (s *AssessmentService) FollowUp(ctx context.Context, actor workflow.Actor, id string) (*models.AssessmentRecord, error) {
	record, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	followUp, err := s.engine.FollowUpAttempt(record, actor, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, followUp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create follow-up record")
	}

	s.recordAudit(ctx, actor, models.AuditActionAssessmentFollowUp, followUp.ID, record, followUp)
	s.invalidateDashboards(ctx, followUp.StudentID)
	return followUp, nil
}

// Schema returns the registered form definition for one form type.
func (s *AssessmentService) Schema(formTypeID string) (*dto.FormSchemaResponse, error) {
	form, ok := s.engine.Form(formTypeID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown form type %q", formTypeID))
	}
	return &dto.FormSchemaResponse{Schema: form.Schema, RetrievedAt: s.now().UTC()}, nil
}

// FormTypeIDs lists every registered form type.
func (s *AssessmentService) FormTypeIDs() []string {
	return s.engine.FormTypeIDs()
}

func (s *AssessmentService) load(ctx context.Context, actor workflow.Actor, id string) (*models.AssessmentRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment record")
	}
	if actor.Role == models.RoleStudent && record.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "record belongs to another student")
	}
	return record, nil
}

func (s *AssessmentService) persist(ctx context.Context, record *models.AssessmentRecord, expectedStatus models.AssessmentStatus) error {
	if err := s.repo.Update(ctx, record, expectedStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "record was modified concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assessment record")
	}
	return nil
}

func (s *AssessmentService) detail(record *models.AssessmentRecord, actor workflow.Actor) *dto.AssessmentDetailResponse {
	return &dto.AssessmentDetailResponse{
		Record:            record,
		Editable:          s.engine.EditabilityMap(record, actor),
		CanEditDate:       s.engine.CanEditEvaluationDate(record, actor),
		AllowedIntents:    s.engine.AllowedIntents(record, actor),
		CanCreateFollowUp: s.engine.CanCreateFollowUp(record, actor),
		RemediationTier:   s.engine.RemediationTier(record),
	}
}

func (s *AssessmentService) recordAudit(ctx context.Context, actor workflow.Actor, action, recordID string, before, after *models.AssessmentRecord) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		Resource:   "assessment",
		ResourceID: &recordID,
	}
	if before != nil {
		if data, err := json.Marshal(map[string]interface{}{"status": before.Status}); err == nil {
			log.OldValues = data
		}
	}
	if after != nil {
		if data, err := json.Marshal(map[string]interface{}{"status": after.Status}); err == nil {
			log.NewValues = data
		}
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record assessment audit log", zap.Error(err))
	}
}

func (s *AssessmentService) invalidateDashboards(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("dash:student:%s*", studentID)); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.String("studentId", studentID), zap.Error(err))
	}
}

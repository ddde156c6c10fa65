package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/repository"
	"github.com/pharmedu/training-api/internal/workflow"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
	"github.com/pharmedu/training-api/pkg/export"
	"github.com/pharmedu/training-api/pkg/jobs"
	"github.com/pharmedu/training-api/pkg/storage"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListByCreator(ctx context.Context, createdBy string, limit int) ([]models.ReportJob, error)
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
}

type reportRecordSource interface {
	List(ctx context.Context, filter models.AssessmentFilter) ([]models.AssessmentRecord, error)
}

// ReportService queues and executes training record exports.
type ReportService struct {
	repo      reportJobStore
	records   reportRecordSource
	engine    *workflow.Engine
	queue     *jobs.Queue
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// ReportServiceParams groups constructor dependencies.
type ReportServiceParams struct {
	Repo      reportJobStore
	Records   reportRecordSource
	Engine    *workflow.Engine
	Storage   *storage.LocalStorage
	Signer    *storage.SignedURLSigner
	Queue     jobs.QueueConfig
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewReportService constructs the service and its worker queue. Call Start
// before enqueueing.
func NewReportService(params ReportServiceParams) *ReportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	s := &ReportService{
		repo:      params.Repo,
		records:   params.Records,
		engine:    params.Engine,
		storage:   params.Storage,
		signer:    params.Signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
	cfg := params.Queue
	cfg.Logger = logger
	s.queue = jobs.NewQueue("reports", s.process, cfg)
	return s
}

// Start launches the worker pool and requeues jobs left over from a restart.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued report jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warn("failed to requeue report job", zap.String("jobId", job.ID), zap.Error(err))
		}
	}
}

// Stop drains the worker pool.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Enqueue persists a job row and schedules it for processing.
func (s *ReportService) Enqueue(ctx context.Context, actor workflow.Actor, req dto.CreateReportRequest) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	if actor.Role == models.RoleStudent && req.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only export their own records")
	}

	job := &models.ReportJob{
		Type:      req.Type,
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.ID,
		Params: models.ReportJobParams{
			StudentID: req.StudentID,
			FormTypes: req.FormTypes,
			Format:    req.Format,
		},
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule report job")
	}
	return job, nil
}

// Get returns job state with a signed download link for finished jobs.
func (s *ReportService) Get(ctx context.Context, actor workflow.Actor, id string) (*dto.ReportJobResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if actor.Role == models.RoleStudent && job.CreatedBy != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}

	resp := &dto.ReportJobResponse{Job: job}
	if job.Status == models.ReportStatusFinished && job.ResultPath != nil && s.signer != nil {
		token, _, err := s.signer.Generate(job.ID, *job.ResultPath)
		if err != nil {
			s.logger.Warn("failed to sign report download", zap.String("jobId", job.ID), zap.Error(err))
		} else {
			resp.DownloadURL = fmt.Sprintf("/api/v1/reports/%s/download?token=%s", job.ID, token)
		}
	}
	return resp, nil
}

// List returns the actor's jobs, newest first.
func (s *ReportService) List(ctx context.Context, actor workflow.Actor, limit int) ([]models.ReportJob, error) {
	list, err := s.repo.ListByCreator(ctx, actor.ID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return list, nil
}

// Resolve validates a download token and returns the stored file path.
func (s *ReportService) Resolve(jobID, token string) (string, error) {
	if s.signer == nil || s.storage == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "report downloads are disabled")
	}
	signedJobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil || signedJobID != jobID {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	return s.storage.Path(relPath), nil
}

func (s *ReportService) process(ctx context.Context, job jobs.Job) error {
	processing := models.ReportStatusProcessing
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &processing}); err != nil {
		return fmt.Errorf("mark report processing: %w", err)
	}

	stored, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job: %w", err)
	}

	relPath, err := s.render(ctx, stored)
	finishedAt := s.now().UTC()
	if err != nil {
		failed := models.ReportStatusFailed
		message := err.Error()
		if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &failed,
			ErrorMessage: &message,
			FinishedAt:   &finishedAt,
		}); updateErr != nil {
			s.logger.Warn("failed to mark report failed", zap.String("jobId", job.ID), zap.Error(updateErr))
		}
		return err
	}

	finished := models.ReportStatusFinished
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:     &finished,
		ResultPath: &relPath,
		FinishedAt: &finishedAt,
	}); err != nil {
		return fmt.Errorf("mark report finished: %w", err)
	}
	return nil
}

func (s *ReportService) render(ctx context.Context, job *models.ReportJob) (string, error) {
	filter := models.AssessmentFilter{StudentID: job.Params.StudentID, Limit: 200}
	records, err := s.records.List(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("load records for export: %w", err)
	}
	if len(job.Params.FormTypes) > 0 {
		allowed := make(map[string]bool, len(job.Params.FormTypes))
		for _, formTypeID := range job.Params.FormTypes {
			allowed[formTypeID] = true
		}
		kept := records[:0]
		for _, record := range records {
			if allowed[record.FormTypeID] {
				kept = append(kept, record)
			}
		}
		records = kept
	}

	dataset := s.dataset(records)
	var payload []byte
	var ext string
	switch job.Params.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Training Record")
		ext = "pdf"
	default:
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	}
	if err != nil {
		return "", fmt.Errorf("render export: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.%s", job.ID, s.now().UTC().Format("20060102150405"), ext)
	if _, err := s.storage.Save(filename, payload); err != nil {
		return "", fmt.Errorf("store export: %w", err)
	}
	return filename, nil
}

func (s *ReportService) dataset(records []models.AssessmentRecord) export.Dataset {
	headers := []string{"Form", "Status", "Score", "Remediation", "Evaluation Date", "Updated At"}
	rows := make([]map[string]string, 0, len(records))
	for i := range records {
		record := &records[i]
		row := map[string]string{
			"Form":            record.FormTypeID,
			"Status":          string(record.Status),
			"Evaluation Date": record.EvaluationDate,
			"Updated At":      record.UpdatedAt.Format(time.RFC3339),
		}
		if score, ok := s.engine.Score(record); ok {
			row["Score"] = strconv.FormatFloat(score, 'f', -1, 64)
		}
		if tier := s.engine.RemediationTier(record); tier != models.RemediationNone {
			row["Remediation"] = string(tier)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

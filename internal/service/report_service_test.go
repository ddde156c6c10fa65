package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/repository"
	"github.com/pharmedu/training-api/internal/workflow"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
	"github.com/pharmedu/training-api/pkg/jobs"
	"github.com/pharmedu/training-api/pkg/storage"
)

type stubReportStore struct {
	mu   sync.Mutex
	jobs map[string]*models.ReportJob
	seq  int
}

func newStubReportStore() *stubReportStore {
	return &stubReportStore{jobs: map[string]*models.ReportJob{}}
}

func (s *stubReportStore) Create(_ context.Context, job *models.ReportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		s.seq++
		job.ID = fmt.Sprintf("job-%d", s.seq)
	}
	job.CreatedAt = time.Now().UTC()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *stubReportStore) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (s *stubReportStore) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultPath != nil {
		job.ResultPath = params.ResultPath
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *stubReportStore) ListByCreator(_ context.Context, createdBy string, _ int) ([]models.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReportJob
	for _, job := range s.jobs {
		if job.CreatedBy == createdBy {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *stubReportStore) ListQueued(_ context.Context, _ int) ([]models.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReportJob
	for _, job := range s.jobs {
		if job.Status == models.ReportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

type stubReportRecords struct {
	records []models.AssessmentRecord
	err     error
}

func (s *stubReportRecords) List(_ context.Context, _ models.AssessmentFilter) ([]models.AssessmentRecord, error) {
	return s.records, s.err
}

func newTestReportService(t *testing.T, store *stubReportStore, records *stubReportRecords) *ReportService {
	t.Helper()
	localStore, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewReportService(ReportServiceParams{
		Repo:    store,
		Records: records,
		Engine:  workflow.DefaultEngine(),
		Storage: localStore,
		Signer:  storage.NewSignedURLSigner("test-secret", time.Hour),
	})
}

func TestReportServiceEnqueueStudentCannotExportOthers(t *testing.T) {
	svc := newTestReportService(t, newStubReportStore(), &stubReportRecords{})

	student := workflow.Actor{ID: "user-s1", Role: models.RoleStudent}
	_, err := svc.Enqueue(context.Background(), student, dto.CreateReportRequest{
		Type:      models.ReportTypeTrainingRecord,
		StudentID: "user-s2",
		Format:    models.ReportFormatCSV,
	})
	require.Error(t, err)
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}

func TestReportServiceEnqueueValidatesPayload(t *testing.T) {
	svc := newTestReportService(t, newStubReportStore(), &stubReportRecords{})

	teacher := workflow.Actor{ID: "user-t1", Role: models.RoleTeacher}
	_, err := svc.Enqueue(context.Background(), teacher, dto.CreateReportRequest{
		Type:      models.ReportTypeTrainingRecord,
		StudentID: "user-s1",
		Format:    "docx",
	})
	require.Error(t, err)
	assertErrCode(t, err, appErrors.ErrValidation.Code)
}

func TestReportServiceProcessRendersCSV(t *testing.T) {
	store := newStubReportStore()
	records := &stubReportRecords{records: []models.AssessmentRecord{
		{
			ID:             "rec-1",
			StudentID:      "user-s1",
			FormTypeID:     "dops_op_dispensing",
			Status:         models.StatusCompleted,
			FieldValues:    models.FieldValues{"overall_score": 9},
			EvaluationDate: "2025-03-14",
			UpdatedAt:      time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
		},
	}}
	svc := newTestReportService(t, store, records)

	job := &models.ReportJob{
		Type:      models.ReportTypeTrainingRecord,
		Status:    models.ReportStatusQueued,
		CreatedBy: "user-s1",
		Params: models.ReportJobParams{
			StudentID: "user-s1",
			Format:    models.ReportFormatCSV,
		},
	}
	require.NoError(t, store.Create(context.Background(), job))

	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID}))

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	require.NotNil(t, stored.ResultPath)
	require.NotNil(t, stored.FinishedAt)

	payload, err := os.ReadFile(svc.storage.Path(*stored.ResultPath))
	require.NoError(t, err)
	content := string(payload)
	assert.True(t, strings.Contains(content, "dops_op_dispensing"))
	assert.True(t, strings.Contains(content, "9"))
}

func TestReportServiceProcessMarksFailed(t *testing.T) {
	store := newStubReportStore()
	svc := newTestReportService(t, store, &stubReportRecords{err: errors.New("relation missing")})

	job := &models.ReportJob{
		Type:      models.ReportTypeTrainingRecord,
		Status:    models.ReportStatusQueued,
		CreatedBy: "user-t1",
		Params:    models.ReportJobParams{StudentID: "user-s1", Format: models.ReportFormatCSV},
	}
	require.NoError(t, store.Create(context.Background(), job))

	require.Error(t, svc.process(context.Background(), jobs.Job{ID: job.ID}))

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
}

func TestReportServiceResolveRejectsForeignToken(t *testing.T) {
	svc := newTestReportService(t, newStubReportStore(), &stubReportRecords{})

	token, _, err := svc.signer.Generate("job-1", "job-1.csv")
	require.NoError(t, err)

	_, err = svc.Resolve("job-2", token)
	require.Error(t, err)
	assertErrCode(t, err, appErrors.ErrUnauthorized.Code)

	path, err := svc.Resolve("job-1", token)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "job-1.csv"))
}

func TestReportServiceGetSignsFinishedJobs(t *testing.T) {
	store := newStubReportStore()
	svc := newTestReportService(t, store, &stubReportRecords{})

	resultPath := "job-1-20250314.csv"
	finishedAt := time.Now().UTC()
	job := &models.ReportJob{
		Type:       models.ReportTypeTrainingRecord,
		Status:     models.ReportStatusFinished,
		CreatedBy:  "user-s1",
		ResultPath: &resultPath,
		FinishedAt: &finishedAt,
		Params:     models.ReportJobParams{StudentID: "user-s1", Format: models.ReportFormatCSV},
	}
	require.NoError(t, store.Create(context.Background(), job))

	resp, err := svc.Get(context.Background(), workflow.Actor{ID: "user-s1", Role: models.RoleStudent}, job.ID)
	require.NoError(t, err)
	assert.True(t, strings.Contains(resp.DownloadURL, job.ID))
	assert.True(t, strings.Contains(resp.DownloadURL, "token="))

	// another student's job stays hidden
	_, err = svc.Get(context.Background(), workflow.Actor{ID: "user-s2", Role: models.RoleStudent}, job.ID)
	require.Error(t, err)
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/workflow"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
)

type stubAssessmentRepo struct {
	records map[string]*models.AssessmentRecord
}

func newStubAssessmentRepo() *stubAssessmentRepo {
	return &stubAssessmentRepo{records: map[string]*models.AssessmentRecord{}}
}

func (r *stubAssessmentRepo) Create(_ context.Context, record *models.AssessmentRecord) error {
	if record.ID == "" {
		record.ID = "rec-" + record.FormTypeID
	}
	r.records[record.ID] = record.Clone()
	return nil
}

func (r *stubAssessmentRepo) GetByID(_ context.Context, id string) (*models.AssessmentRecord, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record.Clone(), nil
}

func (r *stubAssessmentRepo) List(_ context.Context, filter models.AssessmentFilter) ([]models.AssessmentRecord, error) {
	var out []models.AssessmentRecord
	for _, record := range r.records {
		if filter.StudentID != "" && record.StudentID != filter.StudentID {
			continue
		}
		if filter.FormTypeID != "" && record.FormTypeID != filter.FormTypeID {
			continue
		}
		out = append(out, *record.Clone())
	}
	return out, nil
}

func (r *stubAssessmentRepo) Update(_ context.Context, record *models.AssessmentRecord, expectedStatus models.AssessmentStatus) error {
	stored, ok := r.records[record.ID]
	if !ok || stored.Status != expectedStatus {
		return sql.ErrNoRows
	}
	r.records[record.ID] = record.Clone()
	return nil
}

type stubUserDirectory struct {
	users map[string]*models.User
}

func (d *stubUserDirectory) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type stubAudit struct {
	logs []*models.AuditLog
}

func (a *stubAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestAssessmentService(repo *stubAssessmentRepo, audit *stubAudit) *AssessmentService {
	return NewAssessmentService(AssessmentServiceParams{
		Engine: workflow.DefaultEngine(),
		Repo:   repo,
		Users: &stubUserDirectory{users: map[string]*models.User{
			"user-s1": {ID: "user-s1", Email: "trainee@hospital.test", FullName: "Trainee One", Role: models.RoleStudent, Active: true},
			"user-t1": {ID: "user-t1", Email: "preceptor@hospital.test", FullName: "Dr. Preceptor", Role: models.RoleTeacher, Active: true},
		}},
		Audit: audit,
	})
}

func serviceTeacher() workflow.Actor {
	return workflow.Actor{ID: "user-t1", Email: "preceptor@hospital.test", FullName: "Dr. Preceptor", Role: models.RoleTeacher}
}

func serviceStudent() workflow.Actor {
	return workflow.Actor{ID: "user-s1", Email: "trainee@hospital.test", FullName: "Trainee One", Role: models.RoleStudent}
}

func assertErrCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, code, appErr.Code)
}

func TestAssessmentServiceCreate(t *testing.T) {
	repo := newStubAssessmentRepo()
	audit := &stubAudit{}
	svc := newTestAssessmentService(repo, audit)

	record, err := svc.Create(context.Background(), serviceTeacher(), dto.CreateAssessmentRequest{
		StudentID:  "user-s1",
		FormTypeID: "dops_op_dispensing",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, record.Status)
	assert.Equal(t, "Trainee One", record.StudentName)
	assert.NotEmpty(t, record.EvaluationDate)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionAssessmentCreate, audit.logs[0].Action)
}

func TestAssessmentServiceCreateRejectsStudentActor(t *testing.T) {
	svc := newTestAssessmentService(newStubAssessmentRepo(), &stubAudit{})

	_, err := svc.Create(context.Background(), serviceStudent(), dto.CreateAssessmentRequest{
		StudentID:  "user-s1",
		FormTypeID: "dops_op_dispensing",
	})
	require.Error(t, err)
	assertErrCode(t, err, appErrors.ErrRoleNotPermitted.Code)
}

func TestAssessmentServiceCreateUnknownFormType(t *testing.T) {
	svc := newTestAssessmentService(newStubAssessmentRepo(), &stubAudit{})

	_, err := svc.Create(context.Background(), serviceTeacher(), dto.CreateAssessmentRequest{
		StudentID:  "user-s1",
		FormTypeID: "no_such_form",
	})
	require.Error(t, err)
	assertErrCode(t, err, appErrors.ErrValidation.Code)
}

func TestAssessmentServiceTransitionPersistsAndAudits(t *testing.T) {
	repo := newStubAssessmentRepo()
	audit := &stubAudit{}
	svc := newTestAssessmentService(repo, audit)

	record, err := svc.Create(context.Background(), serviceTeacher(), dto.CreateAssessmentRequest{
		StudentID:  "user-s1",
		FormTypeID: "dops_op_dispensing",
	})
	require.NoError(t, err)

	detail, err := svc.Transition(context.Background(), serviceTeacher(), record.ID, dto.TransitionRequest{
		Intent:      models.StatusTeacherGraded,
		FieldValues: models.FieldValues{"overall_score": 9},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusTeacherGraded, detail.Record.Status)

	stored, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTeacherGraded, stored.Status)
	require.Len(t, stored.Signatures, 1)

	require.Len(t, audit.logs, 2)
	assert.Equal(t, models.AuditActionAssessmentTransition, audit.logs[1].Action)
}

func TestAssessmentServiceTransitionFailureLeavesStoredRecord(t *testing.T) {
	repo := newStubAssessmentRepo()
	svc := newTestAssessmentService(repo, &stubAudit{})

	record, err := svc.Create(context.Background(), serviceTeacher(), dto.CreateAssessmentRequest{
		StudentID:  "user-s1",
		FormTypeID: "dops_op_dispensing",
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), serviceStudent(), record.ID, dto.TransitionRequest{
		Intent:      models.StatusTeacherGraded,
		FieldValues: models.FieldValues{"overall_score": 9},
	})
	require.Error(t, err)
	assertErrCode(t, err, appErrors.ErrRoleNotPermitted.Code)

	stored, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, stored.Status)
	assert.Empty(t, stored.FieldValues)
}

func TestAssessmentServiceStudentCannotSeeOthersRecords(t *testing.T) {
	repo := newStubAssessmentRepo()
	svc := newTestAssessmentService(repo, &stubAudit{})

	record, err := svc.Create(context.Background(), serviceTeacher(), dto.CreateAssessmentRequest{
		StudentID:  "user-s1",
		FormTypeID: "pretraining",
	})
	require.NoError(t, err)

	other := workflow.Actor{ID: "user-s2", Role: models.RoleStudent}
	_, err = svc.Get(context.Background(), other, record.ID)
	require.Error(t, err)
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}

func TestAssessmentServiceSaveDraftChecksFieldOwnership(t *testing.T) {
	repo := newStubAssessmentRepo()
	svc := newTestAssessmentService(repo, &stubAudit{})

	record, err := svc.Create(context.Background(), serviceTeacher(), dto.CreateAssessmentRequest{
		StudentID:  "user-s1",
		FormTypeID: "dops_op_dispensing",
	})
	require.NoError(t, err)

	// evaluator field in draft: fine for the teacher
	detail, err := svc.SaveDraft(context.Background(), serviceTeacher(), record.ID, dto.SaveDraftRequest{
		FieldValues: models.FieldValues{"overall_score": 8},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, detail.Record.FieldValues["overall_score"])

	// self-report field in draft: rejected even for staff
	_, err = svc.SaveDraft(context.Background(), serviceTeacher(), record.ID, dto.SaveDraftRequest{
		FieldValues: models.FieldValues{"reflection": "early"},
	})
	require.Error(t, err)
	assertErrCode(t, err, appErrors.ErrRoleNotPermitted.Code)
}

func TestAssessmentServiceFollowUpCreatesFreshDraft(t *testing.T) {
	repo := newStubAssessmentRepo()
	svc := newTestAssessmentService(repo, &stubAudit{})

	seed := &models.AssessmentRecord{
		ID:          "rec-failed",
		StudentID:   "user-s1",
		FormTypeID:  "dops_op_dispensing",
		Status:      models.StatusNeedsImprovement,
		FieldValues: models.FieldValues{"overall_score": 5},
		Signatures:  models.SignatureList{},
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), seed))

	followUp, err := svc.FollowUp(context.Background(), serviceTeacher(), "rec-failed")
	require.NoError(t, err)
	assert.NotEqual(t, "rec-failed", followUp.ID)
	assert.Equal(t, models.StatusDraft, followUp.Status)
	assert.Empty(t, followUp.FieldValues)
}

func TestAssessmentServiceSchema(t *testing.T) {
	svc := newTestAssessmentService(newStubAssessmentRepo(), &stubAudit{})

	resp, err := svc.Schema("epa_medication_review")
	require.NoError(t, err)
	assert.Equal(t, "epa_medication_review", resp.Schema.FormTypeID)

	_, err = svc.Schema("missing")
	require.Error(t, err)
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

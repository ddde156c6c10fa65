package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/middleware"
	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/workflow"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
)

type fakeAssessmentSrv struct {
	createResp     *models.AssessmentRecord
	createErr      error
	detailResp     *dto.AssessmentDetailResponse
	detailErr      error
	listResp       []models.AssessmentRecord
	lastQuery      dto.AssessmentQuery
	lastActor      workflow.Actor
	lastTransition dto.TransitionRequest
}

func (f *fakeAssessmentSrv) Create(_ context.Context, actor workflow.Actor, _ dto.CreateAssessmentRequest) (*models.AssessmentRecord, error) {
	f.lastActor = actor
	return f.createResp, f.createErr
}

func (f *fakeAssessmentSrv) Get(_ context.Context, actor workflow.Actor, _ string) (*dto.AssessmentDetailResponse, error) {
	f.lastActor = actor
	return f.detailResp, f.detailErr
}

func (f *fakeAssessmentSrv) List(_ context.Context, actor workflow.Actor, query dto.AssessmentQuery) ([]models.AssessmentRecord, error) {
	f.lastActor = actor
	f.lastQuery = query
	return f.listResp, nil
}

func (f *fakeAssessmentSrv) SaveDraft(_ context.Context, actor workflow.Actor, _ string, _ dto.SaveDraftRequest) (*dto.AssessmentDetailResponse, error) {
	f.lastActor = actor
	return f.detailResp, f.detailErr
}

func (f *fakeAssessmentSrv) Transition(_ context.Context, actor workflow.Actor, _ string, req dto.TransitionRequest) (*dto.AssessmentDetailResponse, error) {
	f.lastActor = actor
	f.lastTransition = req
	return f.detailResp, f.detailErr
}

func (f *fakeAssessmentSrv) FollowUp(_ context.Context, actor workflow.Actor, _ string) (*models.AssessmentRecord, error) {
	f.lastActor = actor
	return f.createResp, f.createErr
}

func (f *fakeAssessmentSrv) Schema(formTypeID string) (*dto.FormSchemaResponse, error) {
	if formTypeID == "missing" {
		return nil, appErrors.ErrNotFound
	}
	return &dto.FormSchemaResponse{}, nil
}

func (f *fakeAssessmentSrv) FormTypeIDs() []string {
	return []string{"pretraining", "dops_op_dispensing"}
}

func teacherClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-t1", Email: "preceptor@hospital.test", Role: models.RoleTeacher}
}

func TestAssessmentHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAssessmentHandler(&fakeAssessmentSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/assessments", bytes.NewBufferString(`{}`))

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAssessmentHandlerCreateSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeAssessmentSrv{
		createResp: &models.AssessmentRecord{ID: "rec-1", Status: models.StatusDraft},
	}
	handler := NewAssessmentHandler(service)

	body := bytes.NewBufferString(`{"studentId":"user-s1","formTypeId":"dops_op_dispensing"}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/assessments", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, teacherClaims())

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-t1", service.lastActor.ID)
	assert.Equal(t, models.RoleTeacher, service.lastActor.Role)
}

func TestAssessmentHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAssessmentHandler(&fakeAssessmentSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/assessments", bytes.NewBufferString(`not-json`))
	c.Set(middleware.ContextUserKey, teacherClaims())

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssessmentHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeAssessmentSrv{}
	handler := NewAssessmentHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet,
		"/assessments?studentId=user-s1&formTypeId=pretraining&status=draft,submitted&limit=10&offset=5", nil)
	c.Set(middleware.ContextUserKey, teacherClaims())

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-s1", service.lastQuery.StudentID)
	assert.Equal(t, "pretraining", service.lastQuery.FormTypeID)
	assert.Equal(t, []models.AssessmentStatus{models.StatusDraft, models.StatusSubmitted}, service.lastQuery.Status)
	assert.Equal(t, 10, service.lastQuery.Limit)
	assert.Equal(t, 5, service.lastQuery.Offset)
}

func TestAssessmentHandlerTransitionForwardsIntent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeAssessmentSrv{
		detailResp: &dto.AssessmentDetailResponse{
			Record: &models.AssessmentRecord{ID: "rec-1", Status: models.StatusTeacherGraded},
		},
	}
	handler := NewAssessmentHandler(service)

	body := bytes.NewBufferString(`{"intent":"TEACHER_GRADED","fieldValues":{"overall_score":9}}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/assessments/rec-1/transition", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "rec-1"}}
	c.Set(middleware.ContextUserKey, teacherClaims())

	handler.Transition(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusTeacherGraded, service.lastTransition.Intent)
}

func TestAssessmentHandlerSchemaNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAssessmentHandler(&fakeAssessmentSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/assessments/schemas/missing", nil)
	c.Params = gin.Params{{Key: "formTypeId", Value: "missing"}}

	handler.Schema(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

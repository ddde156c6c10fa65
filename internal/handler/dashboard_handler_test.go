package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/middleware"
	"github.com/pharmedu/training-api/internal/models"
)

type fakeDashboardSrv struct {
	studentResp *dto.StudentDashboardResponse
	studentErr  error
	studentHit  bool
	adminResp   *dto.AdminDashboardResponse
	adminErr    error
	lastStudent string
}

func (f *fakeDashboardSrv) Student(_ context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error) {
	f.lastStudent = studentID
	return f.studentResp, f.studentHit, f.studentErr
}

func (f *fakeDashboardSrv) Admin(context.Context) (*dto.AdminDashboardResponse, error) {
	return f.adminResp, f.adminErr
}

func TestDashboardHandlerStudentRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/students/user-s1", nil)
	c.Params = gin.Params{{Key: "id", Value: "user-s1"}}

	handler.Student(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerStudentCannotReadOthers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{}
	handler := NewDashboardHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/students/user-s2", nil)
	c.Params = gin.Params{{Key: "id", Value: "user-s2"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-s1", Role: models.RoleStudent})

	handler.Student(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, service.lastStudent)
}

func TestDashboardHandlerStudentSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{
		studentResp: &dto.StudentDashboardResponse{
			StudentID:   "user-s1",
			GeneratedAt: time.Now().UTC(),
		},
		studentHit: true,
	}
	handler := NewDashboardHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/students/user-s1", nil)
	c.Params = gin.Params{{Key: "id", Value: "user-s1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-s1", Role: models.RoleStudent})

	handler.Student(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-s1", service.lastStudent)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, "user-s1", envelope.Data["studentId"])
}

func TestDashboardHandlerTeacherReadsAnyStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{
		studentResp: &dto.StudentDashboardResponse{StudentID: "user-s2"},
	}
	handler := NewDashboardHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/students/user-s2", nil)
	c.Params = gin.Params{{Key: "id", Value: "user-s2"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-t1", Role: models.RoleTeacher})

	handler.Student(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-s2", service.lastStudent)
}

func TestDashboardHandlerOverviewSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		adminResp: &dto.AdminDashboardResponse{
			Students: []dto.StudentProgressRow{{StudentID: "user-s1"}},
		},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/overview", nil)

	handler.Overview(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/workflow"
)

type stubSummarySource struct {
	latest map[string]*models.AssessmentRecord
	errs   map[string]error
}

func (s *stubSummarySource) Latest(_ context.Context, studentID, formTypeID string) (*models.AssessmentRecord, error) {
	key := studentID + "/" + formTypeID
	if err, ok := s.errs[key]; ok {
		return nil, err
	}
	record, ok := s.latest[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

type stubRoster struct {
	students []models.User
}

func (s *stubRoster) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return s.students, len(s.students), nil
}

func newTestDashboardService(source *stubSummarySource, roster *stubRoster) *DashboardService {
	return NewDashboardService(DashboardServiceParams{
		Engine:  workflow.DefaultEngine(),
		Records: source,
		Users:   roster,
	})
}

func TestDashboardStudentSummary(t *testing.T) {
	updatedAt := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	source := &stubSummarySource{
		latest: map[string]*models.AssessmentRecord{
			"user-s1/dops_op_dispensing": {
				ID:          "rec-1",
				StudentID:   "user-s1",
				FormTypeID:  "dops_op_dispensing",
				Status:      models.StatusNeedsImprovement,
				FieldValues: models.FieldValues{"overall_score": 7},
				UpdatedAt:   updatedAt,
			},
			"user-s1/pretraining": {
				ID:         "rec-2",
				StudentID:  "user-s1",
				FormTypeID: "pretraining",
				Status:     models.StatusApproved,
				UpdatedAt:  updatedAt,
			},
		},
	}
	svc := newTestDashboardService(source, &stubRoster{})

	summary, cached, err := svc.Student(context.Background(), "user-s1")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, summary.Forms, 4)

	byForm := map[string]models.FormSummary{}
	for _, form := range summary.Forms {
		byForm[form.FormTypeID] = form
	}

	dops := byForm["dops_op_dispensing"]
	assert.True(t, dops.Known)
	assert.Equal(t, models.StatusNeedsImprovement, dops.Status)
	require.NotNil(t, dops.LastScore)
	assert.Equal(t, 7.0, *dops.LastScore)
	assert.Equal(t, models.RemediationOneWeek, dops.RemediationTier)
	require.NotNil(t, dops.LastUpdatedAt)
	assert.Equal(t, updatedAt, *dops.LastUpdatedAt)

	pre := byForm["pretraining"]
	assert.True(t, pre.Known)
	assert.Equal(t, models.StatusApproved, pre.Status)
	assert.Nil(t, pre.LastScore)
	assert.Equal(t, models.RemediationNone, pre.RemediationTier)

	// never attempted: default cell
	epa := byForm["epa_medication_review"]
	assert.False(t, epa.Known)
	assert.Equal(t, models.StatusDraft, epa.Status)
	assert.Nil(t, epa.LastScore)
}

func TestDashboardOneBadFormNeverBlanksOthers(t *testing.T) {
	source := &stubSummarySource{
		latest: map[string]*models.AssessmentRecord{
			"user-s1/pretraining": {
				ID:         "rec-2",
				StudentID:  "user-s1",
				FormTypeID: "pretraining",
				Status:     models.StatusSubmitted,
				UpdatedAt:  time.Now().UTC(),
			},
		},
		errs: map[string]error{
			"user-s1/dops_op_dispensing": errors.New("relation missing"),
		},
	}
	svc := newTestDashboardService(source, &stubRoster{})

	summary, _, err := svc.Student(context.Background(), "user-s1")
	require.NoError(t, err)
	require.Len(t, summary.Forms, 4)

	byForm := map[string]models.FormSummary{}
	for _, form := range summary.Forms {
		byForm[form.FormTypeID] = form
	}
	assert.False(t, byForm["dops_op_dispensing"].Known)
	assert.Equal(t, models.StatusDraft, byForm["dops_op_dispensing"].Status)
	assert.True(t, byForm["pretraining"].Known)
	assert.Equal(t, models.StatusSubmitted, byForm["pretraining"].Status)
}

func TestDashboardStudentRequiresID(t *testing.T) {
	svc := newTestDashboardService(&stubSummarySource{}, &stubRoster{})
	_, _, err := svc.Student(context.Background(), "")
	require.Error(t, err)
}

func TestDashboardAdminComposesRoster(t *testing.T) {
	source := &stubSummarySource{
		latest: map[string]*models.AssessmentRecord{
			"user-s1/pretraining": {
				ID:         "rec-1",
				StudentID:  "user-s1",
				FormTypeID: "pretraining",
				Status:     models.StatusApproved,
				UpdatedAt:  time.Now().UTC(),
			},
		},
	}
	roster := &stubRoster{students: []models.User{
		{ID: "user-s1", Email: "trainee@hospital.test", FullName: "Trainee One", Role: models.RoleStudent, Active: true},
		{ID: "user-s2", Email: "trainee2@hospital.test", FullName: "Trainee Two", Role: models.RoleStudent, Active: true},
	}}
	svc := newTestDashboardService(source, roster)

	overview, err := svc.Admin(context.Background())
	require.NoError(t, err)
	require.Len(t, overview.Students, 2)
	assert.Equal(t, "Trainee One", overview.Students[0].StudentName)
	require.Len(t, overview.Students[0].Forms, 4)
}

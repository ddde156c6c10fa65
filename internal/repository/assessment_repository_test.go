package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/pharmedu/training-api/internal/models"
)

func newAssessmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var assessmentTestColumns = []string{
	"id", "student_id", "student_email", "student_name", "form_type_id", "status",
	"field_values", "evaluation_date", "signatures", "created_by", "created_at", "updated_at",
}

func TestAssessmentRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()

	repo := NewAssessmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessment_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.AssessmentRecord{
		StudentID:      "user-s1",
		StudentEmail:   "trainee@hospital.test",
		StudentName:    "Trainee One",
		FormTypeID:     "dops_op_dispensing",
		Status:         models.StatusDraft,
		FieldValues:    models.FieldValues{},
		EvaluationDate: "2025-03-10",
		Signatures:     models.SignatureList{},
		CreatedBy:      "user-t1",
	}
	require.NoError(t, repo.Create(context.Background(), record))
	require.NotEmpty(t, record.ID)
	require.False(t, record.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryGetByIDRoundTripsJSONB(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()

	repo := NewAssessmentRepository(db)
	rows := sqlmock.NewRows(assessmentTestColumns).
		AddRow("rec-1", "user-s1", "trainee@hospital.test", "Trainee One", "dops_op_dispensing", "TEACHER_GRADED",
			[]byte(`{"overall_score":9,"legacy_v1_field":"kept"}`), "2025-03-10",
			[]byte(`[{"role":"TEACHER","name":"Dr. Preceptor","signed_at":"2025-03-10"}]`),
			"user-t1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, student_email")).
		WithArgs("rec-1").
		WillReturnRows(rows)

	record, err := repo.GetByID(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusTeacherGraded, record.Status)
	require.Equal(t, float64(9), record.FieldValues["overall_score"])
	require.Equal(t, "kept", record.FieldValues["legacy_v1_field"])
	require.Len(t, record.Signatures, 1)
	require.Equal(t, models.RoleTeacher, record.Signatures[0].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()

	repo := NewAssessmentRepository(db)
	rows := sqlmock.NewRows(assessmentTestColumns).
		AddRow("rec-2", "user-s1", "trainee@hospital.test", "Trainee One", "pretraining", "SUBMITTED",
			[]byte(`{}`), "2025-03-11", []byte(`[]`), "user-t1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, student_email")).
		WithArgs("user-s1", "SUBMITTED").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.AssessmentFilter{
		StudentID: "user-s1",
		Status:    []models.AssessmentStatus{models.StatusSubmitted},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "rec-2", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryLatestNoRows(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()

	repo := NewAssessmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, student_email")).
		WithArgs("user-s1", "epa_medication_review").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Latest(context.Background(), "user-s1", "epa_medication_review")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newAssessmentRepoMock(t)
	defer cleanup()

	repo := NewAssessmentRepository(db)
	record := &models.AssessmentRecord{
		ID:             "rec-1",
		Status:         models.StatusTeacherGraded,
		FieldValues:    models.FieldValues{"overall_score": 9},
		EvaluationDate: "2025-03-10",
		Signatures:     models.SignatureList{{Role: models.RoleTeacher, Name: "Dr. Preceptor", SignedAt: "2025-03-10"}},
		UpdatedAt:      time.Now().UTC(),
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assessment_records")).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), record, models.StatusDraft))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assessment_records")).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), record, models.StatusDraft)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

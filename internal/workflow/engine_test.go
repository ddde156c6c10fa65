package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmedu/training-api/internal/models"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func teacherActor() Actor {
	return Actor{ID: "user-t1", Email: "preceptor@hospital.test", FullName: "Dr. Preceptor", Role: models.RoleTeacher}
}

func studentActor() Actor {
	return Actor{ID: "user-s1", Email: "trainee@hospital.test", FullName: "Trainee One", Role: models.RoleStudent}
}

func adminActor() Actor {
	return Actor{ID: "user-a1", Email: "chief@hospital.test", FullName: "Chief Pharmacist", Role: models.RoleAdmin}
}

func dopsDraft() *models.AssessmentRecord {
	return &models.AssessmentRecord{
		ID:             "rec-1",
		StudentID:      "user-s1",
		StudentEmail:   "trainee@hospital.test",
		StudentName:    "Trainee One",
		FormTypeID:     FormDOPSDispensing,
		Status:         models.StatusDraft,
		FieldValues:    models.FieldValues{},
		EvaluationDate: "2025-03-10",
		Signatures:     models.SignatureList{},
	}
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	return appErr.Code
}

func TestTransitionDraftToTeacherGraded(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()

	values := models.FieldValues{
		"rx_screening":    5,
		"label_accuracy":  4,
		FieldOverallScore: 9,
	}
	updated, err := engine.Transition(record, teacherActor(), models.StatusTeacherGraded, values, "2025-03-14", testNow)
	require.NoError(t, err)

	assert.Equal(t, models.StatusTeacherGraded, updated.Status)
	assert.Equal(t, "2025-03-14", updated.EvaluationDate)
	require.Len(t, updated.Signatures, 1)
	assert.Equal(t, models.RoleTeacher, updated.Signatures[0].Role)
	assert.Equal(t, "Dr. Preceptor", updated.Signatures[0].Name)
	assert.Equal(t, "2025-03-14", updated.Signatures[0].SignedAt)

	// the input record must be untouched
	assert.Equal(t, models.StatusDraft, record.Status)
	assert.Empty(t, record.FieldValues)
	assert.Empty(t, record.Signatures)
}

func TestTransitionRoleNotPermitted(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	before := record.Clone()

	_, err := engine.Transition(record, studentActor(), models.StatusTeacherGraded, models.FieldValues{FieldOverallScore: 9}, "", testNow)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoleNotPermitted.Code, errCode(t, err))
	assert.Equal(t, before, record)
}

func TestTransitionMissingScoreFailsValidation(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()

	_, err := engine.Transition(record, teacherActor(), models.StatusTeacherGraded, models.FieldValues{}, "", testNow)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
	assert.Contains(t, err.Error(), FieldOverallScore)
}

func TestCompletionBranchesOnScore(t *testing.T) {
	engine := DefaultEngine()

	cases := []struct {
		name       string
		score      float64
		wantStatus models.AssessmentStatus
		wantTier   models.RemediationTier
	}{
		{"score 10 passes", 10, models.StatusCompleted, models.RemediationNone},
		{"score 9 passes", 9, models.StatusCompleted, models.RemediationNone},
		{"score 8 passes", 8, models.StatusCompleted, models.RemediationNone},
		{"score 7 retrains in a week", 7, models.StatusNeedsImprovement, models.RemediationOneWeek},
		{"score 6 retrains in a month", 6, models.StatusNeedsImprovement, models.RemediationOneMonth},
		{"score 0 retrains in a month", 0, models.StatusNeedsImprovement, models.RemediationOneMonth},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := dopsDraft()
			record.Status = models.StatusTeacherGraded
			record.FieldValues = models.FieldValues{FieldOverallScore: tc.score}

			updated, err := engine.Transition(record, studentActor(), models.StatusCompleted,
				models.FieldValues{FieldReflection: "I will double-check interactions."}, "", testNow)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, updated.Status)
			assert.Equal(t, tc.wantTier, engine.RemediationTier(updated))
			require.Len(t, updated.Signatures, 1)
			assert.Equal(t, models.RoleStudent, updated.Signatures[0].Role)
		})
	}
}

func TestCompletionWithoutReflectionFails(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.Status = models.StatusTeacherGraded
	record.FieldValues = models.FieldValues{FieldOverallScore: 9}

	_, err := engine.Transition(record, studentActor(), models.StatusCompleted, models.FieldValues{FieldReflection: "   "}, "", testNow)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
	assert.Contains(t, err.Error(), FieldReflection)
}

func TestCompletionMissingScoreNeverDefaults(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.Status = models.StatusTeacherGraded

	_, err := engine.Transition(record, studentActor(), models.StatusCompleted,
		models.FieldValues{FieldReflection: "done"}, "", testNow)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestCompletionRejectsStudentGradeOverride(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.Status = models.StatusTeacherGraded
	record.FieldValues = models.FieldValues{FieldOverallScore: 6}
	before := record.Clone()

	_, err := engine.Transition(record, studentActor(), models.StatusCompleted,
		models.FieldValues{
			FieldOverallScore: 10,
			FieldReflection:   "I will double-check interactions.",
		}, "", testNow)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoleNotPermitted.Code, errCode(t, err))
	assert.Contains(t, err.Error(), FieldOverallScore)

	// the stored grade still drives the branch on a legitimate retry
	assert.Equal(t, before, record)
	updated, err := engine.Transition(record, studentActor(), models.StatusCompleted,
		models.FieldValues{FieldReflection: "I will double-check interactions."}, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsImprovement, updated.Status)
	assert.Equal(t, 6, updated.FieldValues[FieldOverallScore])
}

func TestCompletionRejectsEvaluationDateFromStudent(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.Status = models.StatusTeacherGraded
	record.FieldValues = models.FieldValues{FieldOverallScore: 9}

	_, err := engine.Transition(record, studentActor(), models.StatusCompleted,
		models.FieldValues{FieldReflection: "done"}, "2025-03-20", testNow)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoleNotPermitted.Code, errCode(t, err))
	assert.Empty(t, record.EvaluationDate)
}

func TestTerminalRecordsRejectRepeatedTransitions(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.Status = models.StatusCompleted
	record.FieldValues = models.FieldValues{FieldOverallScore: 9}

	for i := 0; i < 2; i++ {
		_, err := engine.Transition(record, studentActor(), models.StatusCompleted,
			models.FieldValues{FieldReflection: "again"}, "", testNow)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, errCode(t, err))
	}
	assert.Empty(t, record.Signatures)
}

func TestUnknownIntentIsInvalidTransition(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()

	_, err := engine.Transition(record, teacherActor(), models.StatusApproved, models.FieldValues{FieldOverallScore: 9}, "", testNow)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, errCode(t, err))
}

func TestEPAFoldsWeekTierIntoMonth(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.FormTypeID = FormEPAMedicationRev
	record.Status = models.StatusTeacherGraded
	record.FieldValues = models.FieldValues{FieldOverallScore: 7}

	updated, err := engine.Transition(record, studentActor(), models.StatusCompleted,
		models.FieldValues{FieldReflection: "will improve"}, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsImprovement, updated.Status)
	assert.Equal(t, models.RemediationOneMonth, engine.RemediationTier(updated))
}

func TestPreTrainingApprovalAndRejection(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.FormTypeID = FormPreTraining
	record.FieldValues = models.FieldValues{FieldOverallResult: "ready"}

	submitted, err := engine.Transition(record, teacherActor(), models.StatusSubmitted, nil, "", testNow)
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, submitted.Status)
	require.Len(t, submitted.Signatures, 1)

	// rejection reverts to draft without a signature
	rejected, err := engine.Transition(submitted, adminActor(), models.StatusDraft, nil, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, rejected.Status)
	assert.Len(t, rejected.Signatures, 1)
	assert.True(t, engine.Editability(rejected, teacherActor(), FieldOverallResult))

	// approval is terminal and signed by the admin
	approved, err := engine.Transition(submitted, adminActor(), models.StatusApproved, nil, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	require.Len(t, approved.Signatures, 2)
	assert.Equal(t, models.RoleAdmin, approved.Signatures[1].Role)
}

func TestPreTrainingStudentMayNotSubmit(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.FormTypeID = FormPreTraining
	record.FieldValues = models.FieldValues{FieldOverallResult: "ready"}

	_, err := engine.Transition(record, studentActor(), models.StatusSubmitted, nil, "", testNow)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoleNotPermitted.Code, errCode(t, err))
}

func TestEditabilityMatrix(t *testing.T) {
	engine := DefaultEngine()

	t.Run("draft is evaluator-writable", func(t *testing.T) {
		record := dopsDraft()
		assert.True(t, engine.Editability(record, teacherActor(), FieldOverallScore))
		assert.True(t, engine.Editability(record, adminActor(), FieldOverallScore))
		assert.False(t, engine.Editability(record, studentActor(), FieldOverallScore))
		assert.False(t, engine.Editability(record, teacherActor(), FieldReflection))
	})

	t.Run("teacher_graded opens self-report fields to the student only", func(t *testing.T) {
		record := dopsDraft()
		record.Status = models.StatusTeacherGraded
		assert.True(t, engine.Editability(record, studentActor(), FieldReflection))
		assert.False(t, engine.Editability(record, teacherActor(), FieldReflection))
		assert.False(t, engine.Editability(record, teacherActor(), FieldOverallScore))
		assert.False(t, engine.Editability(record, studentActor(), FieldOverallScore))
	})

	t.Run("submitted is admin-only", func(t *testing.T) {
		record := dopsDraft()
		record.FormTypeID = FormPreTraining
		record.Status = models.StatusSubmitted
		assert.True(t, engine.Editability(record, adminActor(), FieldOverallResult))
		assert.False(t, engine.Editability(record, teacherActor(), FieldOverallResult))
	})

	t.Run("terminal states are read-only for everyone", func(t *testing.T) {
		for _, status := range []models.AssessmentStatus{models.StatusApproved, models.StatusCompleted, models.StatusNeedsImprovement} {
			record := dopsDraft()
			record.Status = status
			for _, actor := range []Actor{teacherActor(), studentActor(), adminActor()} {
				for id, editable := range engine.EditabilityMap(record, actor) {
					assert.False(t, editable, "field %s must be read-only in %s", id, status)
				}
			}
		}
	})
}

func TestFollowUpAttempt(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.Status = models.StatusNeedsImprovement
	record.FieldValues = models.FieldValues{FieldOverallScore: 6, FieldReflection: "missed checks"}

	followUp, err := engine.FollowUpAttempt(record, teacherActor(), testNow)
	require.NoError(t, err)

	assert.NotEqual(t, record.ID, followUp.ID)
	assert.NotEmpty(t, followUp.ID)
	assert.Equal(t, models.StatusDraft, followUp.Status)
	assert.Equal(t, record.StudentID, followUp.StudentID)
	assert.Equal(t, record.FormTypeID, followUp.FormTypeID)
	assert.Empty(t, followUp.FieldValues)
	assert.Empty(t, followUp.Signatures)
	assert.Equal(t, "2025-03-14", followUp.EvaluationDate)
}

func TestFollowUpAttemptGuards(t *testing.T) {
	engine := DefaultEngine()

	record := dopsDraft()
	record.Status = models.StatusNeedsImprovement
	_, err := engine.FollowUpAttempt(record, studentActor(), testNow)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoleNotPermitted.Code, errCode(t, err))

	record.Status = models.StatusCompleted
	_, err = engine.FollowUpAttempt(record, teacherActor(), testNow)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, errCode(t, err))
}

func TestAllowedIntents(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()

	assert.Equal(t, []models.AssessmentStatus{models.StatusTeacherGraded}, engine.AllowedIntents(record, teacherActor()))
	assert.Empty(t, engine.AllowedIntents(record, studentActor()))

	record.Status = models.StatusTeacherGraded
	assert.Equal(t, []models.AssessmentStatus{models.StatusCompleted}, engine.AllowedIntents(record, studentActor()))
	assert.Empty(t, engine.AllowedIntents(record, teacherActor()))
}

func TestUnknownFieldValuesSurviveTransitions(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.FieldValues = models.FieldValues{"legacy_v1_field": "kept"}

	updated, err := engine.Transition(record, teacherActor(), models.StatusTeacherGraded,
		models.FieldValues{FieldOverallScore: 9}, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, "kept", updated.FieldValues["legacy_v1_field"])
}

func TestScoreParsesStringValues(t *testing.T) {
	engine := DefaultEngine()
	record := dopsDraft()
	record.FieldValues = models.FieldValues{FieldOverallScore: "7"}

	score, ok := engine.Score(record)
	require.True(t, ok)
	assert.Equal(t, 7.0, score)
}

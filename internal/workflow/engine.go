package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmedu/training-api/internal/models"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
)

// Engine owns the status vocabulary, the legal transition set, field
// editability rules, and score-driven branching. It is synchronous and
// side-effect-free: time and actor identity are supplied by the caller and
// persistence belongs to the record store adapter.
type Engine struct {
	forms map[string]Form
}

// NewEngine builds an engine over the provided form registry.
func NewEngine(forms ...Form) *Engine {
	e := &Engine{forms: make(map[string]Form, len(forms))}
	for _, form := range forms {
		e.forms[form.Policy.FormTypeID] = form
	}
	return e
}

// Form returns the registered form definition for a form type.
func (e *Engine) Form(formTypeID string) (Form, bool) {
	form, ok := e.forms[formTypeID]
	return form, ok
}

// FormTypeIDs lists every registered form type.
func (e *Engine) FormTypeIDs() []string {
	ids := make([]string, 0, len(e.forms))
	for id := range e.forms {
		ids = append(ids, id)
	}
	return ids
}

// Editability reports whether the actor may edit the given schema field in
// the record's current status. Terminal records are read-only for everyone.
func (e *Engine) Editability(record *models.AssessmentRecord, actor Actor, fieldID string) bool {
	if record.Status.IsTerminal() {
		return false
	}
	form, ok := e.forms[record.FormTypeID]
	if !ok {
		return false
	}
	field, ok := form.Schema.Field(fieldID)
	if !ok {
		return false
	}
	switch field.Ownership {
	case models.OwnerSelfReport:
		return record.Status == models.StatusTeacherGraded && actor.Role == models.RoleStudent
	default:
		return e.evaluatorWritable(record.Status, actor.Role)
	}
}

// EditabilityMap resolves editability for every field of the record's schema.
func (e *Engine) EditabilityMap(record *models.AssessmentRecord, actor Actor) map[string]bool {
	out := make(map[string]bool)
	form, ok := e.forms[record.FormTypeID]
	if !ok {
		return out
	}
	for _, field := range form.Schema.Fields() {
		out[field.ID] = e.Editability(record, actor, field.ID)
	}
	return out
}

// CanEditEvaluationDate mirrors evaluator-field editability: the evaluation
// date is caller-editable only while the record sits in an evaluator-writable
// status.
func (e *Engine) CanEditEvaluationDate(record *models.AssessmentRecord, actor Actor) bool {
	if record.Status.IsTerminal() {
		return false
	}
	return e.evaluatorWritable(record.Status, actor.Role)
}

// AllowedIntents lists the transition intents the actor may request from the
// record's current status.
func (e *Engine) AllowedIntents(record *models.AssessmentRecord, actor Actor) []models.AssessmentStatus {
	form, ok := e.forms[record.FormTypeID]
	if !ok {
		return nil
	}
	var intents []models.AssessmentStatus
	for _, rule := range form.Policy.rulesFrom(record.Status) {
		if rule.permits(actor.Role) {
			intents = append(intents, rule.Intent)
		}
	}
	return intents
}

// CanCreateFollowUp reports whether the actor may spawn a retest attempt
// from this record.
func (e *Engine) CanCreateFollowUp(record *models.AssessmentRecord, actor Actor) bool {
	if record.Status != models.StatusNeedsImprovement {
		return false
	}
	return actor.Role == models.RoleTeacher || actor.Role == models.RoleAdmin
}

// Transition validates and applies a status change, returning an updated
// copy of the record. The input record is never mutated: a failed call
// leaves no partial update behind.
//
// Validation order: role permission, field ownership over the submitted
// values, required-field completeness for the target, then score-derived
// branching on completion transitions.
func (e *Engine) Transition(record *models.AssessmentRecord, actor Actor, intent models.AssessmentStatus, values models.FieldValues, evaluationDate string, now time.Time) (*models.AssessmentRecord, error) {
	form, ok := e.forms[record.FormTypeID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown form type %q", record.FormTypeID))
	}
	if record.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("record is terminal in status %s", record.Status))
	}
	rule, ok := form.Policy.rule(record.Status, intent)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("no transition from %s to %s", record.Status, intent))
	}
	if !rule.permits(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrRoleNotPermitted,
			fmt.Sprintf("role %s may not move %s records from %s to %s", actor.Role, record.FormTypeID, rule.From, rule.Intent))
	}

	for key := range values {
		if !e.Editability(record, actor, key) {
			return nil, appErrors.Clone(appErrors.ErrRoleNotPermitted,
				fmt.Sprintf("field %q is not editable by role %s in status %s", key, actor.Role, record.Status))
		}
	}
	if evaluationDate != "" && !e.CanEditEvaluationDate(record, actor) {
		return nil, appErrors.Clone(appErrors.ErrRoleNotPermitted,
			fmt.Sprintf("evaluation date is not editable by role %s in status %s", actor.Role, record.Status))
	}

	next := record.Clone()
	for key, value := range values {
		next.FieldValues[key] = value
	}
	if evaluationDate != "" {
		next.EvaluationDate = evaluationDate
	}

	for _, fieldID := range rule.RequiredFields {
		if !hasValue(next.FieldValues[fieldID]) {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("required field %q is missing", fieldID))
		}
	}

	target := rule.Intent
	if rule.ScoreBranched {
		if form.Policy.Score == nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("form %s has no score policy", record.FormTypeID))
		}
		score, ok := numericValue(next.FieldValues[form.Policy.Score.ScoreFieldID])
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("required field %q is missing", form.Policy.Score.ScoreFieldID))
		}
		target, _ = form.Policy.Score.Branch(score)
	}

	if rule.Sign {
		next.Signatures = append(next.Signatures, models.Signature{
			Role:     actor.Role,
			Name:     actor.FullName,
			SignedAt: now.Format("2006-01-02"),
		})
	}
	next.Status = target
	next.UpdatedAt = now.UTC()
	return next, nil
}

// FollowUpAttempt produces a brand-new draft record for the same student and
// form type after a failed terminal attempt. Prior field values are not
// copied; only the evaluation date is pre-populated.
func (e *Engine) FollowUpAttempt(record *models.AssessmentRecord, actor Actor, now time.Time) (*models.AssessmentRecord, error) {
	if actor.Role != models.RoleTeacher && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrRoleNotPermitted,
			fmt.Sprintf("role %s may not create follow-up attempts", actor.Role))
	}
	if record.Status != models.StatusNeedsImprovement {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("follow-up attempts require status %s, got %s", models.StatusNeedsImprovement, record.Status))
	}
	return &models.AssessmentRecord{
		ID:             uuid.NewString(),
		StudentID:      record.StudentID,
		StudentEmail:   record.StudentEmail,
		StudentName:    record.StudentName,
		FormTypeID:     record.FormTypeID,
		Status:         models.StatusDraft,
		FieldValues:    models.FieldValues{},
		EvaluationDate: now.Format("2006-01-02"),
		Signatures:     models.SignatureList{},
		CreatedBy:      actor.ID,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}, nil
}

// RemediationTier recomputes the score-derived retraining urgency for a
// failed record. It is derived at read time so every reader classifies the
// same record identically; it is never persisted.
func (e *Engine) RemediationTier(record *models.AssessmentRecord) models.RemediationTier {
	if record.Status != models.StatusNeedsImprovement {
		return models.RemediationNone
	}
	form, ok := e.forms[record.FormTypeID]
	if !ok || form.Policy.Score == nil {
		return models.RemediationNone
	}
	score, ok := numericValue(record.FieldValues[form.Policy.Score.ScoreFieldID])
	if !ok {
		return models.RemediationOneMonth
	}
	_, tier := form.Policy.Score.Branch(score)
	return tier
}

// Score extracts the overall numeric score for a record, when its form
// family defines one.
func (e *Engine) Score(record *models.AssessmentRecord) (float64, bool) {
	form, ok := e.forms[record.FormTypeID]
	if !ok || form.Policy.Score == nil {
		return 0, false
	}
	return numericValue(record.FieldValues[form.Policy.Score.ScoreFieldID])
}

func (e *Engine) evaluatorWritable(status models.AssessmentStatus, role models.UserRole) bool {
	switch status {
	case models.StatusDraft:
		return role == models.RoleTeacher || role == models.RoleAdmin
	case models.StatusSubmitted:
		return role == models.RoleAdmin
	}
	return false
}

func hasValue(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(value) != ""
	case []interface{}:
		return len(value) > 0
	case []string:
		return len(value) > 0
	case map[string]interface{}:
		return len(value) > 0
	default:
		return true
	}
}

func numericValue(v interface{}) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

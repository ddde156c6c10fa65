package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AssessmentStatus captures the lifecycle state of an assessment record.
type AssessmentStatus string

const (
	// StatusDraft means the evaluator (teacher/admin) is still authoring.
	StatusDraft AssessmentStatus = "DRAFT"
	// StatusSubmitted means the record awaits admin approval (pre-training family).
	StatusSubmitted AssessmentStatus = "SUBMITTED"
	// StatusTeacherGraded means the record awaits the student's reflection (DOPS/EPA).
	StatusTeacherGraded AssessmentStatus = "TEACHER_GRADED"
	// StatusApproved is the terminal admin-approved state (pre-training family).
	StatusApproved AssessmentStatus = "APPROVED"
	// StatusCompleted is the terminal passing state.
	StatusCompleted AssessmentStatus = "COMPLETED"
	// StatusNeedsImprovement is the terminal failing state; a follow-up
	// attempt may be created from it.
	StatusNeedsImprovement AssessmentStatus = "NEEDS_IMPROVEMENT"
)

// IsTerminal reports whether no further field edits are possible without
// creating a new record.
func (s AssessmentStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusCompleted, StatusNeedsImprovement:
		return true
	}
	return false
}

// RemediationTier classifies how urgently a failed assessment must be
// retested. It is derived from the stored score at read time and never
// persisted.
type RemediationTier string

const (
	RemediationNone     RemediationTier = ""
	RemediationOneWeek  RemediationTier = "RETRAIN_1_WEEK"
	RemediationOneMonth RemediationTier = "RETRAIN_1_MONTH"
)

// Signature records who signed a workflow handoff and when.
type Signature struct {
	Role     UserRole `json:"role"`
	Name     string   `json:"name"`
	SignedAt string   `json:"signed_at"`
}

// FieldValues maps schema field ids to scalar or array values. It is stored
// as JSONB so keys not recognised by the current schema version survive a
// round-trip unchanged.
type FieldValues map[string]interface{}

// Value marshals field values for persistence.
func (v FieldValues) Value() (driver.Value, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal field values: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the map.
func (v *FieldValues) Scan(value interface{}) error {
	if value == nil {
		*v = FieldValues{}
		return nil
	}
	data, err := jsonbBytes(value, "FieldValues")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*v = FieldValues{}
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal field values: %w", err)
	}
	return nil
}

// SignatureList is the ordered set of signatures stamped on a record.
type SignatureList []Signature

// Value marshals signatures for persistence.
func (l SignatureList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal signatures: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the list.
func (l *SignatureList) Scan(value interface{}) error {
	if value == nil {
		*l = SignatureList{}
		return nil
	}
	data, err := jsonbBytes(value, "SignatureList")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*l = SignatureList{}
		return nil
	}
	if err := json.Unmarshal(data, l); err != nil {
		return fmt.Errorf("unmarshal signatures: %w", err)
	}
	return nil
}

// AssessmentRecord is one filled-in form instance for one student, one form
// type, and (for repeatable forms) one attempt.
type AssessmentRecord struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	StudentEmail   string           `db:"student_email" json:"student_email"`
	StudentName    string           `db:"student_name" json:"student_name"`
	FormTypeID     string           `db:"form_type_id" json:"form_type_id"`
	Status         AssessmentStatus `db:"status" json:"status"`
	FieldValues    FieldValues      `db:"field_values" json:"field_values"`
	EvaluationDate string           `db:"evaluation_date" json:"evaluation_date"`
	Signatures     SignatureList    `db:"signatures" json:"signatures"`
	CreatedBy      string           `db:"created_by" json:"created_by"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy so transition failures never leak partial
// mutation into the caller's record.
func (r *AssessmentRecord) Clone() *AssessmentRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.FieldValues = make(FieldValues, len(r.FieldValues))
	for k, val := range r.FieldValues {
		clone.FieldValues[k] = val
	}
	clone.Signatures = make(SignatureList, len(r.Signatures))
	copy(clone.Signatures, r.Signatures)
	return &clone
}

// AssessmentFilter constrains record listing queries.
type AssessmentFilter struct {
	StudentID  string
	FormTypeID string
	Status     []AssessmentStatus
	Limit      int
	Offset     int
}

// FormSummary is the per-form-type dashboard projection.
type FormSummary struct {
	FormTypeID      string           `json:"form_type_id"`
	Status          AssessmentStatus `json:"status"`
	LastScore       *float64         `json:"last_score,omitempty"`
	LastUpdatedAt   *time.Time       `json:"last_updated_at,omitempty"`
	RemediationTier RemediationTier  `json:"remediation_tier,omitempty"`
	Known           bool             `json:"known"`
}

func jsonbBytes(value interface{}, target string) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for %s", value, target)
	}
}

package workflow

import "github.com/pharmedu/training-api/internal/models"

// Form type identifiers. Each DOPS operation is its own repeatable form
// type sharing one family policy; the pre-training readiness form and the
// EPA entrustment form each have their own shape.
const (
	FormPreTraining      = "pretraining"
	FormDOPSDispensing   = "dops_op_dispensing"
	FormDOPSCompounding  = "dops_op_compounding"
	FormEPAMedicationRev = "epa_medication_review"
)

// Field ids shared across the form families.
const (
	FieldOverallScore  = "overall_score"
	FieldOverallResult = "overall_result"
	FieldReflection    = "reflection"
)

// DefaultEngine builds the engine over the department's registered forms.
func DefaultEngine() *Engine {
	return NewEngine(
		preTrainingForm(),
		dopsForm(FormDOPSDispensing, "DOPS: Outpatient Dispensing", dispensingItems()),
		dopsForm(FormDOPSCompounding, "DOPS: Sterile Compounding", compoundingItems()),
		epaForm(),
	)
}

// preTrainingForm never branches on score: the admin explicitly approves or
// rejects, and rejection is the model's only backward edge.
func preTrainingForm() Form {
	policy := &FormPolicy{
		FormTypeID: FormPreTraining,
		Transitions: []TransitionRule{
			{
				From:           models.StatusDraft,
				Intent:         models.StatusSubmitted,
				Roles:          []models.UserRole{models.RoleTeacher, models.RoleAdmin},
				RequiredFields: []string{FieldOverallResult},
				Sign:           true,
			},
			{
				From:   models.StatusSubmitted,
				Intent: models.StatusApproved,
				Roles:  []models.UserRole{models.RoleAdmin},
				Sign:   true,
			},
			{
				// Rejection: back to draft, no signature.
				From:   models.StatusSubmitted,
				Intent: models.StatusDraft,
				Roles:  []models.UserRole{models.RoleAdmin},
			},
		},
	}
	schema := &models.FormSchema{
		FormTypeID: FormPreTraining,
		Title:      "Pre-Training Readiness Assessment",
		Version:    2,
		Sections: []models.FormSection{
			{
				ID:    "orientation",
				Title: "Orientation Checklist",
				Fields: []models.FormField{
					{ID: "dept_tour_done", Label: "Department tour completed", Type: models.FieldYesNo, Ownership: models.OwnerEvaluator, Required: true},
					{ID: "sop_access", Label: "SOP library access granted", Type: models.FieldYesNo, Ownership: models.OwnerEvaluator, Required: true},
					{ID: "his_account", Label: "Hospital information system account issued", Type: models.FieldYesNo, Ownership: models.OwnerEvaluator},
				},
			},
			{
				ID:    "baseline",
				Title: "Baseline Knowledge",
				Fields: []models.FormField{
					{ID: "drug_law_quiz", Label: "Pharmaceutical regulation quiz", Type: models.FieldScore10, Ownership: models.OwnerEvaluator},
					{ID: "calc_quiz", Label: "Dose calculation quiz", Type: models.FieldScore10, Ownership: models.OwnerEvaluator},
					{ID: "baseline_notes", Label: "Evaluator notes", Type: models.FieldTextarea, Ownership: models.OwnerEvaluator},
				},
			},
			{
				ID:    "outcome",
				Title: "Outcome",
				Fields: []models.FormField{
					{ID: FieldOverallResult, Label: "Ready to begin rotation", Type: models.FieldRadio, Ownership: models.OwnerEvaluator, Required: true, Options: []string{"ready", "not_ready"}},
				},
			},
		},
	}
	return Form{Policy: policy, Schema: schema}
}

// dopsForm applies the full threshold table: pass at 8, one-week retrain at
// exactly 7, one-month retrain at 6 and below.
func dopsForm(formTypeID, title string, items []models.FormField) Form {
	policy := &FormPolicy{
		FormTypeID: formTypeID,
		Transitions: []TransitionRule{
			{
				From:           models.StatusDraft,
				Intent:         models.StatusTeacherGraded,
				Roles:          []models.UserRole{models.RoleTeacher, models.RoleAdmin},
				RequiredFields: []string{FieldOverallScore},
				Sign:           true,
			},
			{
				From:           models.StatusTeacherGraded,
				Intent:         models.StatusCompleted,
				Roles:          []models.UserRole{models.RoleStudent},
				RequiredFields: []string{FieldReflection},
				Sign:           true,
				ScoreBranched:  true,
			},
		},
		Score: &ScorePolicy{
			ScoreFieldID:  FieldOverallScore,
			PassThreshold: 8,
			WeekThreshold: 7,
		},
	}
	schema := &models.FormSchema{
		FormTypeID: formTypeID,
		Title:      title,
		Version:    3,
		Sections: []models.FormSection{
			{
				ID:     "procedure_items",
				Title:  "Observed Procedure Items",
				Fields: []models.FormField{{ID: "items", Label: "Item scores", Type: models.FieldGroup, Ownership: models.OwnerEvaluator, SubFields: items}},
			},
			{
				ID:    "grading",
				Title: "Overall Grading",
				Fields: []models.FormField{
					{ID: FieldOverallScore, Label: "Overall score (1-10)", Type: models.FieldScore10, Ownership: models.OwnerEvaluator, Required: true},
					{ID: "evaluator_feedback", Label: "Evaluator feedback", Type: models.FieldTextarea, Ownership: models.OwnerEvaluator},
				},
			},
			{
				ID:    "self_report",
				Title: "Trainee Reflection",
				Fields: []models.FormField{
					{ID: FieldReflection, Label: "What would you do differently?", Type: models.FieldTextarea, Ownership: models.OwnerSelfReport, Required: true},
					{ID: "follow_up_goals", Label: "Learning goals", Type: models.FieldDynamicListItem, Ownership: models.OwnerSelfReport},
				},
			},
		},
	}
	return Form{Policy: policy, Schema: schema}
}

// epaForm keeps the DOPS shape but folds every failing score into the
// one-month bucket: entrustment decisions have no one-week tier.
func epaForm() Form {
	policy := &FormPolicy{
		FormTypeID: FormEPAMedicationRev,
		Transitions: []TransitionRule{
			{
				From:           models.StatusDraft,
				Intent:         models.StatusTeacherGraded,
				Roles:          []models.UserRole{models.RoleTeacher, models.RoleAdmin},
				RequiredFields: []string{FieldOverallScore, "supervision_level"},
				Sign:           true,
			},
			{
				From:           models.StatusTeacherGraded,
				Intent:         models.StatusCompleted,
				Roles:          []models.UserRole{models.RoleStudent},
				RequiredFields: []string{FieldReflection},
				Sign:           true,
				ScoreBranched:  true,
			},
		},
		Score: &ScorePolicy{
			ScoreFieldID:  FieldOverallScore,
			PassThreshold: 8,
		},
	}
	schema := &models.FormSchema{
		FormTypeID: FormEPAMedicationRev,
		Title:      "EPA: Medication Review",
		Version:    1,
		Sections: []models.FormSection{
			{
				ID:    "entrustment",
				Title: "Entrustment Decision",
				Fields: []models.FormField{
					{ID: "supervision_level", Label: "Required supervision level", Type: models.FieldRadio, Ownership: models.OwnerEvaluator, Required: true, Options: []string{"observe_only", "direct_supervision", "indirect_supervision", "unsupervised"}},
					{ID: FieldOverallScore, Label: "Overall entrustment score (1-10)", Type: models.FieldScore10, Ownership: models.OwnerEvaluator, Required: true},
					{ID: "critical_incidents", Label: "Critical incidents observed", Type: models.FieldCheckbox, Ownership: models.OwnerEvaluator, Options: []string{"interaction_missed", "dose_error", "allergy_missed", "none"}},
				},
			},
			{
				ID:    "self_report",
				Title: "Trainee Reflection",
				Fields: []models.FormField{
					{ID: FieldReflection, Label: "Reflection on the review", Type: models.FieldTextarea, Ownership: models.OwnerSelfReport, Required: true},
				},
			},
		},
	}
	return Form{Policy: policy, Schema: schema}
}

func dispensingItems() []models.FormField {
	return []models.FormField{
		{ID: "rx_screening", Label: "Prescription screening", Type: models.FieldScore5, Ownership: models.OwnerEvaluator},
		{ID: "label_accuracy", Label: "Label accuracy", Type: models.FieldScore5, Ownership: models.OwnerEvaluator},
		{ID: "counselling", Label: "Patient counselling", Type: models.FieldScore5, Ownership: models.OwnerEvaluator},
		{ID: "double_check", Label: "Independent double check", Type: models.FieldScore5, Ownership: models.OwnerEvaluator},
	}
}

func compoundingItems() []models.FormField {
	return []models.FormField{
		{ID: "aseptic_technique", Label: "Aseptic technique", Type: models.FieldScore5, Ownership: models.OwnerEvaluator},
		{ID: "calculation_check", Label: "Calculation verification", Type: models.FieldScore5, Ownership: models.OwnerEvaluator},
		{ID: "garbing", Label: "Garbing and gloving", Type: models.FieldScore5, Ownership: models.OwnerEvaluator},
		{ID: "waste_handling", Label: "Cytotoxic waste handling", Type: models.FieldScore5, Ownership: models.OwnerEvaluator},
	}
}

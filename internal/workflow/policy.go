package workflow

import (
	"github.com/pharmedu/training-api/internal/models"
)

// Actor identifies the caller of a workflow operation. Role is resolved once
// per session from the user profile store and injected here, never read from
// mutable globals.
type Actor struct {
	ID       string
	Email    string
	FullName string
	Role     models.UserRole
}

// TransitionRule declares one legal edge of a form family's state machine.
type TransitionRule struct {
	From   models.AssessmentStatus
	Intent models.AssessmentStatus
	Roles  []models.UserRole
	// RequiredFields must hold non-empty values before the transition fires.
	RequiredFields []string
	// Sign appends a signature entry for the acting role on success.
	Sign bool
	// ScoreBranched derives the resulting status from the score policy
	// instead of taking the intent verbatim.
	ScoreBranched bool
}

func (r TransitionRule) permits(role models.UserRole) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// ScorePolicy is the per-form-type threshold table driving terminal
// branching and remediation tiers.
type ScorePolicy struct {
	ScoreFieldID  string
	PassThreshold float64
	// WeekThreshold marks the score that earns the shorter retrain window.
	// Zero disables the tier so every failing score folds into the one-month
	// bucket (EPA and pre-training behave this way).
	WeekThreshold float64
}

// Branch returns the terminal status and remediation tier for a score.
func (p ScorePolicy) Branch(score float64) (models.AssessmentStatus, models.RemediationTier) {
	if score >= p.PassThreshold {
		return models.StatusCompleted, models.RemediationNone
	}
	if p.WeekThreshold > 0 && score >= p.WeekThreshold {
		return models.StatusNeedsImprovement, models.RemediationOneWeek
	}
	return models.StatusNeedsImprovement, models.RemediationOneMonth
}

// FormPolicy binds a form type to its transition table and score policy.
type FormPolicy struct {
	FormTypeID  string
	Transitions []TransitionRule
	// Score is nil for forms that never branch (pre-training): their
	// terminal state is whatever the permitted role explicitly chooses.
	Score *ScorePolicy
}

func (p *FormPolicy) rule(from, intent models.AssessmentStatus) (*TransitionRule, bool) {
	for i := range p.Transitions {
		if p.Transitions[i].From == from && p.Transitions[i].Intent == intent {
			return &p.Transitions[i], true
		}
	}
	return nil, false
}

// rulesFrom lists the edges leaving the given status.
func (p *FormPolicy) rulesFrom(from models.AssessmentStatus) []TransitionRule {
	var out []TransitionRule
	for _, rule := range p.Transitions {
		if rule.From == from {
			out = append(out, rule)
		}
	}
	return out
}

// Form pairs a policy with its field schema.
type Form struct {
	Policy *FormPolicy
	Schema *models.FormSchema
}

package models

import "time"

// ModuleOutcome records a learner's result for one module quiz, or for the
// final exam when FinalExam is set. Rows are created empty on first entry,
// filled by a successful submission and reset only by a retry.
type ModuleOutcome struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	LearnerID  string `json:"learner_id" gorm:"not null;size:255;uniqueIndex:idx_outcome_scope"`
	TrainingID string `json:"training_id" gorm:"not null;size:255;uniqueIndex:idx_outcome_scope"`
	ModuleID   string `json:"module_id" gorm:"size:255;uniqueIndex:idx_outcome_scope"`
	FinalExam  bool   `json:"final_exam" gorm:"not null;default:false;uniqueIndex:idx_outcome_scope"`

	Attempted   bool       `json:"attempted" gorm:"not null;default:false"`
	Passed      bool       `json:"passed" gorm:"not null;default:false"`
	Score       int        `json:"score" gorm:"not null;default:0"`
	AttemptID   *string    `json:"attempt_id,omitempty" gorm:"size:36"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ModuleOutcome) TableName() string {
	return "module_outcomes"
}

// Cleared reports whether the outcome counts toward progression.
func (o *ModuleOutcome) Cleared() bool {
	return o != nil && o.Attempted && o.Passed
}

// Reset returns the outcome to its freshly-entered state.
func (o *ModuleOutcome) Reset() {
	o.Attempted = false
	o.Passed = false
	o.Score = 0
	o.AttemptID = nil
	o.CompletedAt = nil
}

package models

import "time"

// Certificate is derived on every read from module and final exam outcomes.
// It is never stored.
type Certificate struct {
	LearnerName      string    `json:"learner_name"`
	TrainingID       string    `json:"training_id"`
	TrainingTitle    string    `json:"training_title"`
	CompletedModules int       `json:"completed_modules"`
	TotalModules     int       `json:"total_modules"`
	TotalSections    int       `json:"total_sections"`
	FinalScore       *int      `json:"final_score,omitempty"`
	CompletedAt      time.Time `json:"completed_at"`
}

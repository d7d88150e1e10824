package progression

import (
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

type CertificationInput struct {
	LearnerName   string
	TrainingID    string
	TrainingTitle string
	TotalSections int
	Modules       []GatedModule
	Outcomes      []models.ModuleOutcome

	HasFinalExam     bool
	FinalExamOutcome *models.ModuleOutcome
}

type CertificationEngine struct {
	policy QuizlessPolicy
}

func NewCertificationEngine(policy QuizlessPolicy) *CertificationEngine {
	if policy == "" {
		policy = QuizlessBlock
	}
	return &CertificationEngine{policy: policy}
}

// Evaluate returns a certificate when every module passed and, if a final
// exam is configured, the final exam passed too. Otherwise it returns nil.
func (e *CertificationEngine) Evaluate(in CertificationInput) *models.Certificate {
	if len(in.Modules) == 0 && !in.HasFinalExam {
		return nil
	}

	byModule := indexOutcomes(in.Outcomes)
	var completedAt time.Time
	completed := 0

	for _, m := range in.Modules {
		if !m.HasQuiz {
			if e.policy == QuizlessPassThrough {
				completed++
				continue
			}
			return nil
		}
		o, ok := byModule[m.ID]
		if !ok || !m.clearedBy(o) {
			return nil
		}
		completed++
		completedAt = latest(completedAt, o)
	}

	cert := &models.Certificate{
		LearnerName:      in.LearnerName,
		TrainingID:       in.TrainingID,
		TrainingTitle:    in.TrainingTitle,
		CompletedModules: completed,
		TotalModules:     len(in.Modules),
		TotalSections:    in.TotalSections,
	}

	if !in.HasFinalExam {
		// no final exam configured: module outcomes alone decide
		cert.CompletedAt = completedAt
		return cert
	}

	exam := in.FinalExamOutcome
	if !exam.Cleared() {
		return nil
	}
	score := exam.Score
	cert.FinalScore = &score
	cert.CompletedAt = latest(completedAt, *exam)
	return cert
}

func latest(current time.Time, o models.ModuleOutcome) time.Time {
	at := o.UpdatedAt
	if o.CompletedAt != nil {
		at = *o.CompletedAt
	}
	if at.After(current) {
		return at
	}
	return current
}

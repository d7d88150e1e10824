package attempt

import (
	"math"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// ScoreAnswers counts exact matches against the answer key. Unanswered
// questions count as incorrect; the percentage is rounded half away from zero.
func ScoreAnswers(questions []models.Question, answers map[string]models.Answer) Score {
	s := Score{Total: len(questions)}
	for _, q := range questions {
		given, ok := answers[q.ID]
		if ok && IsCorrect(q, given) {
			s.Correct++
		}
	}
	if s.Total > 0 {
		s.Percent = int(math.Round(100 * float64(s.Correct) / float64(s.Total)))
	}
	return s
}

func IsCorrect(q models.Question, given models.Answer) bool {
	if given.IsZero() || !given.Fits(q.Kind) {
		return false
	}
	return given.Equal(q.CorrectAnswer)
}

func Passed(score, passingScore int) bool {
	return score >= passingScore
}

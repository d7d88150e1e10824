package attempt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

func TestQuestionClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	var c QuestionClock
	c.Start(start)
	assert.Equal(t, 7*time.Second, c.Elapsed(start.Add(7*time.Second)))

	ms := c.Stop(start.Add(1500*time.Millisecond), false)
	assert.Equal(t, int64(1500), ms)
	assert.True(t, c.Suspicious())

	// only the first stop counts
	assert.Equal(t, int64(1500), c.Stop(start.Add(time.Hour), false))
	assert.Equal(t, 1500*time.Millisecond, c.Elapsed(start.Add(time.Hour)))

	var forced QuestionClock
	forced.Start(start)
	assert.Zero(t, forced.Stop(start.Add(10*time.Second), true))
	assert.False(t, forced.Suspicious())
}

func TestIsSuspiciousLatency(t *testing.T) {
	assert.True(t, IsSuspiciousLatency(1999))
	assert.False(t, IsSuspiciousLatency(2000))
	assert.False(t, IsSuspiciousLatency(300000))
	assert.True(t, IsSuspiciousLatency(300001))
}

func TestScoreAnswers(t *testing.T) {
	questions := []models.Question{
		{ID: "mc", Kind: models.KindMultipleChoice, Options: []string{"a", "b"}, CorrectAnswer: models.IndexAnswer(1)},
		{ID: "tf", Kind: models.KindTrueFalse, Options: models.TrueFalseOptions, CorrectAnswer: models.BoolAnswer(false)},
		{ID: "sa", Kind: models.KindShortAnswer, CorrectAnswer: models.TextAnswer("Lockout")},
	}

	tests := []struct {
		name    string
		answers map[string]models.Answer
		correct int
		percent int
	}{
		{"nothing answered", map[string]models.Answer{}, 0, 0},
		{"all correct", map[string]models.Answer{
			"mc": models.IndexAnswer(1), "tf": models.BoolAnswer(false), "sa": models.TextAnswer(" lockout "),
		}, 3, 100},
		{"two of three rounds up", map[string]models.Answer{
			"mc": models.IndexAnswer(1), "tf": models.BoolAnswer(false),
		}, 2, 67},
		{"wrong shape never matches", map[string]models.Answer{
			"mc": models.BoolAnswer(true), "tf": models.IndexAnswer(0),
		}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := ScoreAnswers(questions, tt.answers)
			assert.Equal(t, tt.correct, score.Correct)
			assert.Equal(t, 3, score.Total)
			assert.Equal(t, tt.percent, score.Percent)
		})
	}

	assert.True(t, Passed(70, 70))
	assert.False(t, Passed(69, 70))
}

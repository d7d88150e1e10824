package models

import "time"

type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple_choice"
	KindTrueFalse      QuestionKind = "true_false"
	KindShortAnswer    QuestionKind = "short_answer"
)

const (
	DefaultModulePassingScore    = 70
	DefaultFinalExamPassingScore = 80
)

// TrueFalseOptions are the canonical options of every true/false question.
var TrueFalseOptions = []string{"True", "False"}

type Question struct {
	ID            string       `json:"id" validate:"required,max=255"`
	Prompt        string       `json:"prompt" validate:"required"`
	Kind          QuestionKind `json:"kind" validate:"required,question_kind"`
	Options       []string     `json:"options"`
	CorrectAnswer Answer       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	Points        int          `json:"points" validate:"min=1"`
}

// Quiz is a quiz definition as served by the content layer. It is treated as
// immutable once an attempt has started.
type Quiz struct {
	ID               string     `json:"id" validate:"required,max=255"`
	TrainingID       string     `json:"training_id" validate:"required,max=255"`
	ModuleID         string     `json:"module_id,omitempty" validate:"max=255"` // empty for the final exam
	Title            string     `json:"title"`
	Questions        []Question `json:"questions" validate:"dive"`
	PassingScore     *int       `json:"passing_score,omitempty" validate:"omitempty,min=0,max=100"`
	TimeLimitMinutes *int       `json:"time_limit_minutes,omitempty" validate:"omitempty,min=1"`
	MaxAttempts      int        `json:"max_attempts" validate:"min=0"` // 0 means unlimited
}

func (q *Quiz) IsFinalExam() bool {
	return q.ModuleID == ""
}

// EffectivePassingScore falls back to 70 for module quizzes and 80 for the
// final exam when the definition leaves it unspecified.
func (q *Quiz) EffectivePassingScore() int {
	if q.PassingScore != nil {
		return *q.PassingScore
	}
	if q.IsFinalExam() {
		return DefaultFinalExamPassingScore
	}
	return DefaultModulePassingScore
}

func (q *Quiz) TimeLimit() time.Duration {
	if q.TimeLimitMinutes == nil || *q.TimeLimitMinutes <= 0 {
		return 0
	}
	return time.Duration(*q.TimeLimitMinutes) * time.Minute
}

func (q *Quiz) QuestionCount() int {
	return len(q.Questions)
}

// QuestionView is a question stripped of its answer key, safe to hand to a learner.
type QuestionView struct {
	ID      string       `json:"id"`
	Index   int          `json:"index"`
	Prompt  string       `json:"prompt"`
	Kind    QuestionKind `json:"kind"`
	Options []string     `json:"options,omitempty"`
	Points  int          `json:"points"`
}

func (q Question) View(index int) QuestionView {
	return QuestionView{
		ID:      q.ID,
		Index:   index,
		Prompt:  q.Prompt,
		Kind:    q.Kind,
		Options: q.Options,
		Points:  q.Points,
	}
}

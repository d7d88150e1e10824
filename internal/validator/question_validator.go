package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/SAP-F-2025/training-assessment-service/internal/errors"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

const maxOptions = 10

// QuizValidator checks quiz definitions received from the content layer
// before a session is allowed to run them.
type QuizValidator struct {
	structValidator *validator.Validate
}

func NewQuizValidator(structValidator *validator.Validate) *QuizValidator {
	return &QuizValidator{structValidator: structValidator}
}

// ValidateQuiz validates struct tags first, then the per-kind rules of every
// question. All question problems are reported together.
func (v *QuizValidator) ValidateQuiz(quiz *models.Quiz) error {
	if quiz == nil {
		return apperrors.ValidationErrors{apperrors.NewValidationError("quiz", "is required", "required")}
	}
	if err := v.structValidator.Struct(quiz); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}

	var errs apperrors.ValidationErrors
	if len(quiz.Questions) == 0 {
		errs = append(errs, apperrors.NewValidationError("questions", "must not be empty", "min"))
	}

	seen := make(map[string]bool, len(quiz.Questions))
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if seen[q.ID] {
			errs = append(errs, apperrors.QuestionError(i, "id", "is duplicated", "unique"))
		}
		seen[q.ID] = true
		errs = append(errs, v.ValidateQuestion(i, q)...)
	}

	return errs.OrNil()
}

// ValidateQuestion applies the rules for the question's kind.
func (v *QuizValidator) ValidateQuestion(index int, q *models.Question) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors

	if q.CorrectAnswer.IsZero() {
		return append(errs, apperrors.QuestionError(index, "correct_answer", "is required", "required"))
	}
	if !q.CorrectAnswer.Fits(q.Kind) {
		return append(errs, apperrors.QuestionError(index, "correct_answer", fmt.Sprintf("does not fit a %s question", q.Kind), "answer_kind"))
	}

	switch q.Kind {
	case models.KindMultipleChoice:
		if len(q.Options) < 2 {
			errs = append(errs, apperrors.QuestionError(index, "options", "must have at least 2 options", "min"))
		}
		if len(q.Options) > maxOptions {
			errs = append(errs, apperrors.QuestionError(index, "options", fmt.Sprintf("cannot have more than %d options", maxOptions), "max"))
		}
		for j, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				errs = append(errs, apperrors.QuestionError(index, fmt.Sprintf("options[%d]", j), "must not be empty", "required"))
			}
		}
		if idx, _ := q.CorrectAnswer.Index(); idx < 0 || idx >= len(q.Options) {
			errs = append(errs, apperrors.QuestionError(index, "correct_answer", "must reference an existing option", "option_range"))
		}

	case models.KindTrueFalse:
		if !sameOptions(q.Options, models.TrueFalseOptions) {
			errs = append(errs, apperrors.QuestionError(index, "options", "must be exactly True and False", "true_false"))
		}

	case models.KindShortAnswer:
		if text, _ := q.CorrectAnswer.Text(); strings.TrimSpace(text) == "" {
			errs = append(errs, apperrors.QuestionError(index, "correct_answer", "must not be blank", "required"))
		}
	}

	return errs
}

func sameOptions(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

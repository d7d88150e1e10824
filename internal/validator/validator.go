package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/SAP-F-2025/training-assessment-service/internal/errors"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
)

// Validator combines struct tag validation with quiz definition checks
type Validator struct {
	structValidator *validator.Validate
	quizValidator   *QuizValidator
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
		quizValidator:   NewQuizValidator(structValidator),
	}
}

// ValidateStruct validates struct tags and returns ValidationErrors keyed by
// json field names.
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Quiz returns the quiz definition validator
func (v *Validator) Quiz() *QuizValidator {
	return v.quizValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_kind", validateQuestionKind)
	validate.RegisterValidation("violation_kind", validateViolationKind)
	validate.RegisterValidation("signal_type", validateSignalType)

	// json names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionKind(fl validator.FieldLevel) bool {
	switch models.QuestionKind(fl.Field().String()) {
	case models.KindMultipleChoice, models.KindTrueFalse, models.KindShortAnswer:
		return true
	}
	return false
}

func validateViolationKind(fl validator.FieldLevel) bool {
	return models.ViolationKind(fl.Field().String()).Valid()
}

func validateSignalType(fl validator.FieldLevel) bool {
	switch proctoring.SignalType(fl.Field().String()) {
	case proctoring.SignalVisibilityHidden, proctoring.SignalWindowBlur, proctoring.SignalContextMenu,
		proctoring.SignalCopy, proctoring.SignalCut, proctoring.SignalPaste, proctoring.SignalKeyDown:
		return true
	}
	return false
}

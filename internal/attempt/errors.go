package attempt

import "errors"

var (
	ErrNoQuizAvailable      = errors.New("no quiz available")
	ErrAttemptNotStarted    = errors.New("attempt not started")
	ErrAttemptAlreadyActive = errors.New("attempt already started")
	ErrAttemptNotActive     = errors.New("attempt is not in progress")
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrSessionClosed        = errors.New("session closed")

	ErrQuestionLocked     = errors.New("question locked")
	ErrInvalidQuestion    = errors.New("invalid question index")
	ErrNotCurrentQuestion = errors.New("question is not the current question")
	ErrForwardNavigation  = errors.New("forward navigation must use next")
	ErrQuestionUnanswered = errors.New("current question has not been answered")
	ErrInvalidAnswer      = errors.New("answer does not fit the question")

	ErrSubmissionPending   = errors.New("submission pending, resubmit to continue")
	ErrSubmissionTransport = errors.New("submission failed to reach the grading server")
	ErrSecurityRejected    = errors.New("attempt rejected by the integrity check")
	ErrRetryNotAllowed     = errors.New("retry not allowed")
)

// RejectionError carries the grading server's security message.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return ErrSecurityRejected.Error()
	}
	return ErrSecurityRejected.Error() + ": " + e.Message
}

func (e *RejectionError) Unwrap() error {
	return ErrSecurityRejected
}

// IsNavigation reports whether err is a rejected navigation or edit that left
// the attempt untouched.
func IsNavigation(err error) bool {
	return errors.Is(err, ErrQuestionLocked) ||
		errors.Is(err, ErrNotCurrentQuestion) ||
		errors.Is(err, ErrForwardNavigation) ||
		errors.Is(err, ErrQuestionUnanswered) ||
		errors.Is(err, ErrInvalidQuestion)
}

package models

import "time"

// SubmissionPayload is the body sent to the grading server. Field names
// follow the grading server's wire contract.
type SubmissionPayload struct {
	Answers  map[string]Answer  `json:"answers"`
	Metadata SubmissionMetadata `json:"metadata"`
}

type SubmissionMetadata struct {
	StartTime                 time.Time                  `json:"startTime"`
	EndTime                   time.Time                  `json:"endTime"`
	ViolationCount            int                        `json:"violationCount"`
	QuestionResponseTimes     map[string]int64           `json:"questionResponseTimes"`
	ViolationTypes            []ViolationKind            `json:"violationTypes"`
	ViolationsByQuestion      map[string][]ViolationKind `json:"violationsByQuestion"`
	UserAgent                 string                     `json:"userAgent"`
	SessionToken              string                     `json:"sessionToken"`
	LockedQuestions           []string                   `json:"lockedQuestions"`
	TabSwitchCount            int                        `json:"tabSwitchCount"`
	KeyboardShortcutAttempted bool                       `json:"keyboardShortcutAttempted"`
	CopyPasteAttempted        bool                       `json:"copyPasteAttempted"`
	RightClickAttempted       bool                       `json:"rightClickAttempted"`
	SuspiciousQuestions       []string                   `json:"suspiciousQuestions,omitempty"`
}

// SubmissionVerdict is the grading server's authoritative response.
type SubmissionVerdict struct {
	Score             int     `json:"score"`
	Passed            *bool   `json:"passed,omitempty"`
	SecurityViolation bool    `json:"securityViolation,omitempty"`
	SecurityMessage   string  `json:"securityMessage,omitempty"`
	PenaltyApplied    bool    `json:"penaltyApplied,omitempty"`
	PenaltyPercentage float64 `json:"penaltyPercentage,omitempty"`
}

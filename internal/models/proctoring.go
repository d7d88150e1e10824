package models

import "time"

// ViolationKind classifies an integrity signal observed during an attempt.
type ViolationKind string

const (
	ViolationTabSwitch        ViolationKind = "tab_switch"
	ViolationRightClick       ViolationKind = "right_click"
	ViolationCopyAttempt      ViolationKind = "copy_attempt"
	ViolationCutAttempt       ViolationKind = "cut_attempt"
	ViolationPasteAttempt     ViolationKind = "paste_attempt"
	ViolationKeyboardBlocked  ViolationKind = "keyboard_blocked"
	ViolationKeyboardShortcut ViolationKind = "keyboard_shortcut"
)

func (k ViolationKind) IsClipboard() bool {
	return k == ViolationCopyAttempt || k == ViolationCutAttempt || k == ViolationPasteAttempt
}

func (k ViolationKind) IsKeyboard() bool {
	return k == ViolationKeyboardBlocked || k == ViolationKeyboardShortcut
}

func (k ViolationKind) Valid() bool {
	switch k {
	case ViolationTabSwitch, ViolationRightClick, ViolationCopyAttempt, ViolationCutAttempt,
		ViolationPasteAttempt, ViolationKeyboardBlocked, ViolationKeyboardShortcut:
		return true
	}
	return false
}

// ProctoringEvent is the persisted audit row for one observed signal.
// Effective is false when the signal was suppressed because its question
// already carried a violation.
type ProctoringEvent struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	AttemptID     string        `json:"attempt_id" gorm:"not null;size:36;index"`
	QuestionID    string        `json:"question_id" gorm:"size:255;index"`
	QuestionIndex int           `json:"question_index" gorm:"not null"`
	Kind          ViolationKind `json:"kind" gorm:"not null;size:32;index"`
	Effective     bool          `json:"effective" gorm:"not null;default:false"`

	// Context
	Signal string `json:"signal" gorm:"size:32"`
	Key    string `json:"key,omitempty" gorm:"size:32"`

	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ProctoringEvent) TableName() string {
	return "proctoring_events"
}

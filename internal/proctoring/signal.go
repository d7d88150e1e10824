package proctoring

import (
	"unicode/utf8"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

// SignalType is a raw environment signal reported by the attempt player.
type SignalType string

const (
	SignalVisibilityHidden SignalType = "visibility_hidden"
	SignalWindowBlur       SignalType = "window_blur"
	SignalContextMenu      SignalType = "context_menu"
	SignalCopy             SignalType = "copy"
	SignalCut              SignalType = "cut"
	SignalPaste            SignalType = "paste"
	SignalKeyDown          SignalType = "keydown"
)

type Signal struct {
	Type          SignalType `json:"type" validate:"required,signal_type"`
	Key           string     `json:"key,omitempty" validate:"max=32"`
	Ctrl          bool       `json:"ctrl,omitempty"`
	Alt           bool       `json:"alt,omitempty"`
	Meta          bool       `json:"meta,omitempty"`
	Shift         bool       `json:"shift,omitempty"`
	InAnswerField bool       `json:"in_answer_field,omitempty"`
}

var defaultAllowedKeys = []string{
	"Tab", "Shift", "Enter", "Escape", " ",
	"ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight",
	"Home", "End", "PageUp", "PageDown",
}

var modifierKeys = map[string]struct{}{
	"Control": {}, "Alt": {}, "AltGraph": {}, "Meta": {}, "OS": {}, "Shift": {},
}

// KeyPolicy decides which key presses are violations.
type KeyPolicy struct {
	allowed map[string]struct{}

	// AllowTypingInAnswerField lets printable keys, Backspace and Delete
	// through when they are typed into a short-answer field.
	AllowTypingInAnswerField bool
}

func DefaultKeyPolicy() KeyPolicy {
	return NewKeyPolicy(defaultAllowedKeys, true)
}

func NewKeyPolicy(allowed []string, allowTyping bool) KeyPolicy {
	p := KeyPolicy{
		allowed:                  make(map[string]struct{}, len(allowed)),
		AllowTypingInAnswerField: allowTyping,
	}
	for _, k := range allowed {
		p.allowed[k] = struct{}{}
	}
	return p
}

// Classify maps a signal to exactly one violation kind. ok is false when the
// signal is not a violation at all, such as an allow-listed key.
func (p KeyPolicy) Classify(sig Signal) (kind models.ViolationKind, ok bool) {
	switch sig.Type {
	case SignalVisibilityHidden, SignalWindowBlur:
		return models.ViolationTabSwitch, true
	case SignalContextMenu:
		return models.ViolationRightClick, true
	case SignalCopy:
		return models.ViolationCopyAttempt, true
	case SignalCut:
		return models.ViolationCutAttempt, true
	case SignalPaste:
		return models.ViolationPasteAttempt, true
	case SignalKeyDown:
		return p.classifyKey(sig)
	}
	return "", false
}

func (p KeyPolicy) classifyKey(sig Signal) (models.ViolationKind, bool) {
	// a lone modifier press is not yet a combination
	if _, isModifier := modifierKeys[sig.Key]; isModifier {
		return "", false
	}
	if sig.Ctrl || sig.Alt || sig.Meta {
		return models.ViolationKeyboardShortcut, true
	}
	if _, ok := p.allowed[sig.Key]; ok {
		return "", false
	}
	if p.AllowTypingInAnswerField && sig.InAnswerField && isTypingKey(sig.Key) {
		return "", false
	}
	return models.ViolationKeyboardBlocked, true
}

func isTypingKey(key string) bool {
	if key == "Backspace" || key == "Delete" {
		return true
	}
	return utf8.RuneCountInString(key) == 1
}

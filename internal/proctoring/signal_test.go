package proctoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

func TestKeyPolicyClassify(t *testing.T) {
	policy := DefaultKeyPolicy()

	tests := []struct {
		name   string
		signal Signal
		kind   models.ViolationKind
		ok     bool
	}{
		{"hidden tab", Signal{Type: SignalVisibilityHidden}, models.ViolationTabSwitch, true},
		{"window blur", Signal{Type: SignalWindowBlur}, models.ViolationTabSwitch, true},
		{"context menu", Signal{Type: SignalContextMenu}, models.ViolationRightClick, true},
		{"copy", Signal{Type: SignalCopy}, models.ViolationCopyAttempt, true},
		{"cut", Signal{Type: SignalCut}, models.ViolationCutAttempt, true},
		{"paste", Signal{Type: SignalPaste}, models.ViolationPasteAttempt, true},
		{"arrow key allowed", Signal{Type: SignalKeyDown, Key: "ArrowDown"}, "", false},
		{"tab allowed", Signal{Type: SignalKeyDown, Key: "Tab"}, "", false},
		{"letter outside answer field", Signal{Type: SignalKeyDown, Key: "a"}, models.ViolationKeyboardBlocked, true},
		{"function key", Signal{Type: SignalKeyDown, Key: "F12"}, models.ViolationKeyboardBlocked, true},
		{"typing into answer field", Signal{Type: SignalKeyDown, Key: "a", InAnswerField: true}, "", false},
		{"backspace in answer field", Signal{Type: SignalKeyDown, Key: "Backspace", InAnswerField: true}, "", false},
		{"ctrl+c", Signal{Type: SignalKeyDown, Key: "c", Ctrl: true}, models.ViolationKeyboardShortcut, true},
		{"combo wins over allow-list", Signal{Type: SignalKeyDown, Key: "Tab", Alt: true}, models.ViolationKeyboardShortcut, true},
		{"combo inside answer field", Signal{Type: SignalKeyDown, Key: "v", Meta: true, InAnswerField: true}, models.ViolationKeyboardShortcut, true},
		{"lone modifier", Signal{Type: SignalKeyDown, Key: "Control", Ctrl: true}, "", false},
		{"shift letter is typing", Signal{Type: SignalKeyDown, Key: "A", Shift: true, InAnswerField: true}, "", false},
		{"unknown signal", Signal{Type: "mouse_move"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := policy.Classify(tt.signal)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestKeyPolicyWithoutTyping(t *testing.T) {
	policy := NewKeyPolicy([]string{"Enter"}, false)

	kind, ok := policy.Classify(Signal{Type: SignalKeyDown, Key: "a", InAnswerField: true})
	assert.True(t, ok)
	assert.Equal(t, models.ViolationKeyboardBlocked, kind)

	_, ok = policy.Classify(Signal{Type: SignalKeyDown, Key: "Enter"})
	assert.False(t, ok)
}

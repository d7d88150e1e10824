package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type answerKind uint8

const (
	answerNone answerKind = iota
	answerIndex
	answerBool
	answerText
)

// Answer holds one answer value: an option index for multiple choice, a
// boolean for true/false or free text for short answer. It encodes to the
// bare JSON scalar so payloads read {"q1": 2, "q2": true, "q3": "text"}.
type Answer struct {
	kind  answerKind
	index int
	flag  bool
	text  string
}

func IndexAnswer(i int) Answer {
	return Answer{kind: answerIndex, index: i}
}

func BoolAnswer(b bool) Answer {
	return Answer{kind: answerBool, flag: b}
}

func TextAnswer(s string) Answer {
	return Answer{kind: answerText, text: s}
}

func (a Answer) IsZero() bool {
	return a.kind == answerNone
}

func (a Answer) Index() (int, bool) {
	return a.index, a.kind == answerIndex
}

func (a Answer) Bool() (bool, bool) {
	return a.flag, a.kind == answerBool
}

func (a Answer) Text() (string, bool) {
	return a.text, a.kind == answerText
}

// Fits reports whether the value shape matches what the question kind expects.
func (a Answer) Fits(kind QuestionKind) bool {
	switch kind {
	case KindMultipleChoice:
		return a.kind == answerIndex
	case KindTrueFalse:
		return a.kind == answerBool
	case KindShortAnswer:
		return a.kind == answerText
	}
	return false
}

// Equal applies exact-match semantics: index equality, boolean equality, or
// text equality after trimming and case folding.
func (a Answer) Equal(other Answer) bool {
	if a.kind != other.kind {
		return false
	}
	switch a.kind {
	case answerIndex:
		return a.index == other.index
	case answerBool:
		return a.flag == other.flag
	case answerText:
		return strings.EqualFold(strings.TrimSpace(a.text), strings.TrimSpace(other.text))
	}
	return true
}

func (a Answer) String() string {
	switch a.kind {
	case answerIndex:
		return fmt.Sprintf("%d", a.index)
	case answerBool:
		return fmt.Sprintf("%t", a.flag)
	case answerText:
		return a.text
	}
	return ""
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case answerIndex:
		return json.Marshal(a.index)
	case answerBool:
		return json.Marshal(a.flag)
	case answerText:
		return json.Marshal(a.text)
	}
	return []byte("null"), nil
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case nil:
		*a = Answer{}
	case bool:
		*a = BoolAnswer(v)
	case string:
		*a = TextAnswer(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return fmt.Errorf("answer index must be an integer, got %s", v)
		}
		*a = IndexAnswer(int(i))
	default:
		return fmt.Errorf("unsupported answer value: %s", string(data))
	}
	return nil
}

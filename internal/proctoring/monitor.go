// Package proctoring watches integrity signals during an armed attempt and
// turns them into at most one effective violation per question.
package proctoring

import (
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/clock"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

// Observation is one classified signal. Every observation is kept for audit;
// only the first per question index is Effective.
type Observation struct {
	QuestionIndex int                  `json:"question_index"`
	Kind          models.ViolationKind `json:"kind"`
	Signal        SignalType           `json:"signal,omitempty"`
	Key           string               `json:"key,omitempty"`
	Effective     bool                 `json:"effective"`
	At            time.Time            `json:"at"`

	// Epoch identifies the arming the observation belongs to and Seq its
	// position within that arming.
	Epoch uint64 `json:"-"`
	Seq   uint64 `json:"-"`
}

// Tally summarises the full signal audit for submission metadata.
type Tally struct {
	TabSwitches       int
	ShortcutAttempted bool
	ClipboardAttempt  bool
	RightClicked      bool
}

// Monitor never mutates attempt state. It only reports observations to its
// subscribers; the owning session decides what an effective violation does.
type Monitor struct {
	mu      sync.Mutex
	clock   clock.Clock
	policy  KeyPolicy
	logger  *slog.Logger
	armed   bool
	epoch   uint64
	current int
	flagged map[int]bool
	audit   []Observation
	seq     uint64

	subscribers map[int]func(Observation)
	nextSubID   int
}

func NewMonitor(clk clock.Clock, policy KeyPolicy, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		clock:       clk,
		policy:      policy,
		logger:      logger,
		flagged:     make(map[int]bool),
		subscribers: make(map[int]func(Observation)),
	}
}

// Arm starts watching a fresh attempt positioned at startIndex and returns
// the new epoch. Per-attempt state from a previous arming is discarded.
func (m *Monitor) Arm(startIndex int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.armed = true
	m.current = startIndex
	m.flagged = make(map[int]bool)
	m.audit = nil
	m.seq = 0
	return m.epoch
}

// Disarm stops producing violations immediately.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armed = false
}

func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// Focus tells the monitor which question index is current.
func (m *Monitor) Focus(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = index
}

// RecordSignal classifies a raw signal and records it. It returns the
// observation and whether it became the effective violation for the current
// question.
func (m *Monitor) RecordSignal(sig Signal) (Observation, bool) {
	kind, ok := m.policy.Classify(sig)
	if !ok {
		return Observation{}, false
	}
	return m.record(kind, sig.Type, sig.Key)
}

// Record registers an already classified violation kind.
func (m *Monitor) Record(kind models.ViolationKind) (Observation, bool) {
	if !kind.Valid() {
		return Observation{}, false
	}
	return m.record(kind, "", "")
}

func (m *Monitor) record(kind models.ViolationKind, signal SignalType, key string) (Observation, bool) {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return Observation{}, false
	}

	obs := Observation{
		QuestionIndex: m.current,
		Kind:          kind,
		Signal:        signal,
		Key:           key,
		Effective:     !m.flagged[m.current],
		At:            m.clock.Now(),
		Epoch:         m.epoch,
		Seq:           m.seq,
	}
	m.seq++
	if obs.Effective {
		m.flagged[m.current] = true
	}
	m.audit = append(m.audit, obs)
	subs := make([]func(Observation), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if obs.Effective {
		m.logger.Warn("Integrity violation detected",
			"question_index", obs.QuestionIndex,
			"kind", obs.Kind)
	} else {
		m.logger.Debug("Integrity signal suppressed, question already flagged",
			"question_index", obs.QuestionIndex,
			"kind", obs.Kind)
	}

	// subscribers run outside the lock so they may call back into the monitor
	for _, fn := range subs {
		fn(obs)
	}
	// a subscriber may have demoted it
	obs.Effective = m.stillEffective(obs)
	return obs, obs.Effective
}

// Demote marks a recorded observation as not effective. The owning session
// calls it when an effective observation arrives after its question was
// left, so the audit never claims a violation that was not applied.
func (m *Monitor) Demote(epoch, seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch || seq >= uint64(len(m.audit)) || !m.audit[seq].Effective {
		return false
	}
	m.audit[seq].Effective = false
	m.logger.Debug("Integrity violation demoted, question no longer active",
		"question_index", m.audit[seq].QuestionIndex,
		"kind", m.audit[seq].Kind)
	return true
}

func (m *Monitor) stillEffective(obs Observation) bool {
	if !obs.Effective {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if obs.Epoch != m.epoch || obs.Seq >= uint64(len(m.audit)) {
		return obs.Effective
	}
	return m.audit[obs.Seq].Effective
}

// Subscribe registers fn for every observation and returns a function that
// removes it.
func (m *Monitor) Subscribe(fn func(Observation)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Observations returns a copy of the audit trail since the last Arm.
func (m *Monitor) Observations() []Observation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Observation, len(m.audit))
	copy(out, m.audit)
	return out
}

func (m *Monitor) Tally() Tally {
	m.mu.Lock()
	defer m.mu.Unlock()

	var t Tally
	for _, obs := range m.audit {
		switch {
		case obs.Kind == models.ViolationTabSwitch:
			t.TabSwitches++
		case obs.Kind == models.ViolationRightClick:
			t.RightClicked = true
		case obs.Kind.IsClipboard():
			t.ClipboardAttempt = true
		case obs.Kind.IsKeyboard():
			t.ShortcutAttempted = true
		}
	}
	return t
}

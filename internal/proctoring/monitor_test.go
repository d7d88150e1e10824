package proctoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/training-assessment-service/internal/clock"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

func newTestMonitor() (*Monitor, *clock.Fake) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewMonitor(clk, DefaultKeyPolicy(), nil), clk
}

func TestMonitorIgnoresSignalsWhileDisarmed(t *testing.T) {
	m, _ := newTestMonitor()

	_, applied := m.RecordSignal(Signal{Type: SignalCopy})
	assert.False(t, applied)
	assert.Empty(t, m.Observations())

	m.Arm(0)
	m.Disarm()
	_, applied = m.Record(models.ViolationTabSwitch)
	assert.False(t, applied)
	assert.Empty(t, m.Observations())
}

func TestMonitorOneEffectiveViolationPerQuestion(t *testing.T) {
	m, _ := newTestMonitor()
	var seen []Observation
	m.Subscribe(func(o Observation) { seen = append(seen, o) })
	m.Arm(0)

	first, applied := m.RecordSignal(Signal{Type: SignalVisibilityHidden})
	require.True(t, applied)
	assert.Equal(t, models.ViolationTabSwitch, first.Kind)
	assert.Equal(t, 0, first.QuestionIndex)

	second, applied := m.RecordSignal(Signal{Type: SignalPaste})
	assert.False(t, applied)
	assert.False(t, second.Effective)

	m.Focus(1)
	third, applied := m.Record(models.ViolationRightClick)
	assert.True(t, applied)
	assert.Equal(t, 1, third.QuestionIndex)

	audit := m.Observations()
	assert.Len(t, audit, 3)
	assert.Len(t, seen, 3)

	effective := 0
	for _, o := range seen {
		if o.Effective {
			effective++
		}
	}
	assert.Equal(t, 2, effective)
}

func TestMonitorAllowListedKeysAreNotAudited(t *testing.T) {
	m, _ := newTestMonitor()
	m.Arm(0)

	_, applied := m.RecordSignal(Signal{Type: SignalKeyDown, Key: "ArrowUp"})
	assert.False(t, applied)
	assert.Empty(t, m.Observations())
}

func TestMonitorArmResetsAttemptState(t *testing.T) {
	m, _ := newTestMonitor()
	m.Arm(0)
	m.Record(models.ViolationCopyAttempt)

	m.Arm(0)
	assert.Empty(t, m.Observations())
	_, applied := m.Record(models.ViolationCopyAttempt)
	assert.True(t, applied)
}

func TestMonitorUnsubscribe(t *testing.T) {
	m, _ := newTestMonitor()
	calls := 0
	unsubscribe := m.Subscribe(func(Observation) { calls++ })
	m.Arm(0)

	m.Record(models.ViolationTabSwitch)
	unsubscribe()
	m.Focus(1)
	m.Record(models.ViolationTabSwitch)

	assert.Equal(t, 1, calls)
}

func TestMonitorTally(t *testing.T) {
	m, _ := newTestMonitor()
	m.Arm(0)

	m.Record(models.ViolationTabSwitch)
	m.Record(models.ViolationTabSwitch)
	m.Focus(1)
	m.RecordSignal(Signal{Type: SignalKeyDown, Key: "s", Ctrl: true})
	m.RecordSignal(Signal{Type: SignalCut})

	tally := m.Tally()
	assert.Equal(t, 2, tally.TabSwitches)
	assert.True(t, tally.ShortcutAttempted)
	assert.True(t, tally.ClipboardAttempt)
	assert.False(t, tally.RightClicked)
}

func TestMonitorDemoteClearsEffectiveFlag(t *testing.T) {
	m, _ := newTestMonitor()
	epoch := m.Arm(0)

	obs, applied := m.Record(models.ViolationCopyAttempt)
	require.True(t, applied)

	assert.True(t, m.Demote(epoch, obs.Seq))
	assert.False(t, m.Observations()[0].Effective)
	assert.False(t, m.Demote(epoch, obs.Seq))
	assert.False(t, m.Demote(epoch, 5))

	m.Arm(0)
	assert.False(t, m.Demote(epoch, obs.Seq))
}

func TestMonitorReportsDemotionBySubscriber(t *testing.T) {
	m, _ := newTestMonitor()
	m.Subscribe(func(o Observation) { m.Demote(o.Epoch, o.Seq) })
	m.Arm(0)

	obs, applied := m.Record(models.ViolationTabSwitch)
	assert.False(t, applied)
	assert.False(t, obs.Effective)
	assert.False(t, m.Observations()[0].Effective)
}

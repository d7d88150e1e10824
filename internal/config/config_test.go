package config

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/training-assessment-service/internal/events"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"ALLOWED_ORIGINS", "PROCTORING_ALLOWED_KEYS", "VIOLATION_ADVANCE_DELAY", "EVENTS_PUBLISHER", "GRADING_API_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.AdvanceDelay)
	assert.Equal(t, "block", cfg.QuizlessPolicy)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Empty(t, cfg.AllowedKeys)
	assert.True(t, cfg.AllowTyping)
	assert.Empty(t, cfg.GradingAPIURL)
	assert.Equal(t, "kafka", cfg.Events.Publisher)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ALLOWED_ORIGINS", " https://learn.example.com, ,https://admin.example.com ")
	t.Setenv("PROCTORING_ALLOWED_KEYS", "Tab,Enter")
	t.Setenv("PROCTORING_ALLOW_TYPING", "false")
	t.Setenv("VIOLATION_ADVANCE_DELAY", "500ms")
	t.Setenv("SUBMIT_TIMEOUT", "-3s")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://learn.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"Tab", "Enter"}, cfg.AllowedKeys)
	assert.False(t, cfg.AllowTyping)
	assert.Equal(t, 500*time.Millisecond, cfg.AdvanceDelay)
	assert.Equal(t, 15*time.Second, cfg.SubmitTimeout, "non-positive durations fall back")
	assert.True(t, cfg.IsProduction())
}

func TestKafkaBrokers(t *testing.T) {
	c := EventConfig{KafkaBrokers: "k1:9092, k2:9092"}
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.GetKafkaBrokers())
}

func TestCreateEventPublisherFallsBackToMock(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, c := range []EventConfig{
		{Enabled: false, Publisher: "kafka"},
		{Enabled: true, Publisher: "mock"},
		{Enabled: true, Publisher: "carrier-pigeon"},
	} {
		publisher, err := c.CreateEventPublisher(logger)
		require.NoError(t, err)
		assert.IsType(t, &events.MockEventPublisher{}, publisher)
	}
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

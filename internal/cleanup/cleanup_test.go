package cleanup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualPolicyNeverCleansUp(t *testing.T) {
	m, err := NewManager("")
	require.NoError(t, err)
	assert.False(t, m.ShouldCleanupNow(PolicyManual, time.Now().Add(-48*time.Hour)))
}

func TestAutoOnCompleteAlwaysCleansUp(t *testing.T) {
	m, err := NewManager("")
	require.NoError(t, err)
	assert.True(t, m.ShouldCleanupNow(PolicyAutoOnComplete, time.Now()))
}

func TestAutoAfterHoursRespectsThreshold(t *testing.T) {
	m, err := NewManager("")
	require.NoError(t, err)
	assert.False(t, m.ShouldCleanupNow(PolicyAutoAfterHours, time.Now().Add(-1*time.Hour)))
	assert.True(t, m.ShouldCleanupNow(PolicyAutoAfterHours, time.Now().Add(-25*time.Hour)))
}

func TestRetainAllNeverCleansUp(t *testing.T) {
	m, err := NewManager("")
	require.NoError(t, err)
	assert.False(t, m.ShouldCleanupNow(PolicyRetainAll, time.Now().Add(-365*24*time.Hour)))
	rules := m.RulesFor(PolicyRetainAll)
	assert.False(t, rules.AudioFiles)
	assert.False(t, rules.Transcripts)
	assert.False(t, rules.LLMOutputs)
}

func TestUpdatePersistsWithoutConfigPath(t *testing.T) {
	m, err := NewManager("")
	require.NoError(t, err)
	cfg, err := m.Update(func(c *Config) { c.DefaultPolicy = PolicyAutoOnComplete })
	require.NoError(t, err)
	assert.Equal(t, PolicyAutoOnComplete, cfg.DefaultPolicy)
	assert.Equal(t, PolicyAutoOnComplete, m.Config().DefaultPolicy)
}

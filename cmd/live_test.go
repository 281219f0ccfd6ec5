package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLiveMessage_DefaultTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	msg, err := buildLiveMessage("spk-1", "Alice", "Hello", "", true, 0.92, func() time.Time { return now })
	require.NoError(t, err)

	assert.Equal(t, "spk-1", msg.SpeakerID)
	assert.Equal(t, "Alice", msg.SpeakerName)
	assert.Equal(t, "Hello", msg.Text)
	assert.Equal(t, now, msg.Timestamp)
	assert.True(t, msg.IsFinal)
	assert.InDelta(t, 0.92, msg.Confidence, 1e-9)
}

func TestBuildLiveMessage_ExplicitTimestamp(t *testing.T) {
	msg, err := buildLiveMessage("spk-1", "", "Hi", "2026-03-14T10:05:00Z", false, 0, time.Now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC), msg.Timestamp.UTC())
	assert.False(t, msg.IsFinal)
}

func TestBuildLiveMessage_InvalidTimestamp(t *testing.T) {
	_, err := buildLiveMessage("spk-1", "", "Hi", "yesterday", false, 0, time.Now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --at timestamp")
}

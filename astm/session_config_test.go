package astm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labgate/go-astm/logger"
)

func TestNewSessionConfigDefaults(t *testing.T) {
	cfg, err := NewSessionConfig("cobas")
	require.NoError(t, err)

	assert.Equal(t, "cobas", cfg.MachineName())
	assert.False(t, cfg.NetworkAck())
	assert.Equal(t, DefaultAckTimeout, cfg.AckTimeout())
	assert.Equal(t, DefaultNoProgressTimeout, cfg.NoProgressTimeout())
	assert.NotNil(t, cfg.GetLogger())
}

func TestNewSessionConfigEmptyMachineName(t *testing.T) {
	_, err := NewSessionConfig("")
	assert.Error(t, err)
}

func TestSessionConfigOptions(t *testing.T) {
	l := logger.GetLogger()

	cfg, err := NewSessionConfig("architect",
		WithNetworkAck(true),
		WithAckTimeout(5*time.Second),
		WithNoProgressTimeout(time.Minute),
		WithPollTimeout(20*time.Millisecond),
		WithSendQueueSize(4),
		WithLogger(l),
	)
	require.NoError(t, err)

	assert.True(t, cfg.NetworkAck())
	assert.Equal(t, 5*time.Second, cfg.AckTimeout())
	assert.Equal(t, time.Minute, cfg.NoProgressTimeout())
	assert.Equal(t, 20*time.Millisecond, cfg.pollTimeout)
	assert.Equal(t, 4, cfg.sendQueueSize)
	assert.Equal(t, l, cfg.GetLogger())
}

func TestSessionConfigOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  SessionOption
	}{
		{"ack timeout too small", WithAckTimeout(time.Millisecond)},
		{"ack timeout too large", WithAckTimeout(time.Hour)},
		{"no-progress timeout too small", WithNoProgressTimeout(time.Millisecond)},
		{"no-progress timeout too large", WithNoProgressTimeout(time.Hour)},
		{"non-positive poll timeout", WithPollTimeout(0)},
		{"zero queue size", WithSendQueueSize(0)},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSessionConfig("m", tt.opt)
			assert.Error(t, err)
		})
	}
}

package pl2303

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/serialio/go-pl2303/logger"
)

func TestNewConfigDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig()
	require.NoError(err)

	require.Equal(0, cfg.Port())
	require.Equal(9600, cfg.BaudRate())
	require.Equal(16, cfg.SendQueueSize())
	require.Equal(16, cfg.EventQueueSize())
	require.Equal(3*time.Second, cfg.CloseTimeout())
	require.NotNil(cfg.Logger())
}

func TestNewConfigOptions(t *testing.T) {
	require := require.New(t)

	log := logger.NewSlog(logger.ErrorLevel, false)
	cfg, err := NewConfig(
		WithPort(2),
		WithBaudRate(38400),
		WithSendQueueSize(4),
		WithEventQueueSize(8),
		WithCloseTimeout(5*time.Second),
		WithLogger(log),
	)
	require.NoError(err)

	require.Equal(2, cfg.Port())
	require.Equal(38400, cfg.BaudRate())
	require.Equal(4, cfg.SendQueueSize())
	require.Equal(8, cfg.EventQueueSize())
	require.Equal(5*time.Second, cfg.CloseTimeout())
	require.Equal(log, cfg.Logger())
}

func TestNewConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"negative port", WithPort(-1)},
		{"zero baud rate", WithBaudRate(0)},
		{"negative baud rate", WithBaudRate(-1)},
		{"baud rate above limit", WithBaudRate(MaxRequestBaudRate + 1)},
		{"zero send queue", WithSendQueueSize(0)},
		{"zero event queue", WithEventQueueSize(0)},
		{"close timeout too short", WithCloseTimeout(time.Millisecond)},
		{"close timeout too long", WithCloseTimeout(time.Minute)},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opt)
			require.Error(t, err)
		})
	}
}

func TestWithBaudRateLimit(t *testing.T) {
	require := require.New(t)

	// the limit itself is accepted
	cfg, err := NewConfig(WithBaudRate(MaxRequestBaudRate))
	require.NoError(err)
	require.Equal(MaxRequestBaudRate, cfg.BaudRate())

	// rates above it fail at construction, never clamped
	_, err = NewConfig(WithBaudRate(230400))
	require.ErrorIs(err, ErrBaudRateTooHigh)
}

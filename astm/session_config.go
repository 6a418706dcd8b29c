package astm

import (
	"errors"
	"fmt"
	"time"

	"github.com/labgate/go-astm/logger"
)

// Default timeout values for the link layer.
const (
	// DefaultAckTimeout bounds each wait for an inbound ACK during an
	// outbound transfer.
	DefaultAckTimeout = 15 * time.Second

	// DefaultNoProgressTimeout bounds the gap between inbound bytes while
	// a receive transfer is open.
	DefaultNoProgressTimeout = 30 * time.Second

	// DefaultPollTimeout is the idle read timeout of the protocol loop. It
	// trades off between CPU usage and latency for outgoing messages.
	DefaultPollTimeout = 50 * time.Millisecond

	// DefaultSendQueueSize is the capacity of the outbound message queue.
	DefaultSendQueueSize = 10
)

// Timeout range limits.
const (
	MinAckTimeout = 10 * time.Millisecond
	MaxAckTimeout = 2 * time.Minute

	MinNoProgressTimeout = 10 * time.Millisecond
	MaxNoProgressTimeout = 5 * time.Minute
)

// SessionConfig holds all configuration for an ASTM session.
type SessionConfig struct {
	// machineName identifies the analyzer. It is embedded in outbound
	// headers and qualifies the parameter names of persisted readings.
	machineName string

	// networkAck enables the dialect in which the peer acknowledges the
	// standalone STX and ETX control bytes around an outbound transfer.
	networkAck bool

	ackTimeout        time.Duration
	noProgressTimeout time.Duration
	pollTimeout       time.Duration

	sendQueueSize int

	logger logger.Logger
}

// NewSessionConfig creates a session configuration for the named analyzer.
//
// opts are functional options applied in order; see With* functions.
func NewSessionConfig(machineName string, opts ...SessionOption) (*SessionConfig, error) {
	if machineName == "" {
		return nil, errors.New("astm: machine name must not be empty")
	}

	cfg := &SessionConfig{
		machineName:       machineName,
		ackTimeout:        DefaultAckTimeout,
		noProgressTimeout: DefaultNoProgressTimeout,
		pollTimeout:       DefaultPollTimeout,
		sendQueueSize:     DefaultSendQueueSize,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// MachineName returns the configured analyzer identifier.
func (cfg *SessionConfig) MachineName() string { return cfg.machineName }

// NetworkAck returns whether the standalone-STX/ETX dialect is enabled.
func (cfg *SessionConfig) NetworkAck() bool { return cfg.networkAck }

// AckTimeout returns the per-wait ACK timeout for outbound transfers.
func (cfg *SessionConfig) AckTimeout() time.Duration { return cfg.ackTimeout }

// NoProgressTimeout returns the inbound inactivity timeout while receiving.
func (cfg *SessionConfig) NoProgressTimeout() time.Duration { return cfg.noProgressTimeout }

// GetLogger returns the configured logger.
func (cfg *SessionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- SessionOption ---

// SessionOption is a functional option for configuring a SessionConfig.
type SessionOption interface {
	apply(*SessionConfig) error
}

type sessionOptFunc func(*SessionConfig) error

func (f sessionOptFunc) apply(cfg *SessionConfig) error { return f(cfg) }

// WithNetworkAck enables or disables the standalone-STX/ETX dialect.
// Disabled by default (serial profile).
func WithNetworkAck(enabled bool) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		cfg.networkAck = enabled

		return nil
	})
}

// WithAckTimeout sets the per-wait ACK timeout for outbound transfers.
func WithAckTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinAckTimeout || d > MaxAckTimeout {
			return fmt.Errorf("astm: ack timeout %v out of range [%v, %v]", d, MinAckTimeout, MaxAckTimeout)
		}
		cfg.ackTimeout = d

		return nil
	})
}

// WithNoProgressTimeout sets the inbound inactivity timeout while a
// receive transfer is open.
func WithNoProgressTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinNoProgressTimeout || d > MaxNoProgressTimeout {
			return fmt.Errorf("astm: no-progress timeout %v out of range [%v, %v]", d, MinNoProgressTimeout, MaxNoProgressTimeout)
		}
		cfg.noProgressTimeout = d

		return nil
	})
}

// WithPollTimeout sets the idle read timeout of the protocol loop.
func WithPollTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d <= 0 {
			return errors.New("astm: poll timeout must be positive")
		}
		cfg.pollTimeout = d

		return nil
	})
}

// WithSendQueueSize sets the capacity of the outbound message queue.
func WithSendQueueSize(size int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if size < 1 {
			return errors.New("astm: send queue size must be >= 1")
		}
		cfg.sendQueueSize = size

		return nil
	})
}

// WithLogger sets the logger for the session.
func WithLogger(l logger.Logger) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if l == nil {
			return errors.New("astm: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

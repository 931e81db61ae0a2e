package pl2303

import (
	"errors"
	"sync"
	"time"

	"github.com/serialio/go-pl2303/logger"
)

// Config represents the configuration parameters for a serial session.
type Config struct {
	mu sync.RWMutex

	// port selects the Nth device matching the PL2303 vendor/product ID
	// among enumerated devices.
	// Defaults to 0.
	port int

	// baudRate is the requested baud rate. It is quantized to the nearest
	// chip-supported rate during bring-up.
	// Defaults to 9600.
	baudRate int

	// sendQueueSize defines the size of the sender queue, which buffers
	// outbound buffers before the bulk-out transfer task picks them up.
	//
	// This option allows you to control the backpressure level for unsent data.
	// A larger queue size can accommodate bursts but might consume more memory.
	//
	// Defaults to 16.
	sendQueueSize int

	// eventQueueSize defines the size of the notification queue, which
	// buffers events before the dispatch task invokes registered handlers.
	//
	// Defaults to 16.
	eventQueueSize int

	// closeTimeout defines the timeout for tearing down the whole session.
	// It should be between 1 and 30 seconds.
	// Defaults to 3 seconds.
	closeTimeout time.Duration

	// logger provides a logger instance for logging session events and errors.
	logger logger.Logger
}

// NewConfig creates a new session configuration with optional functional options.
//
// It initializes a Config struct with default values and then applies the
// provided options to customize the configuration.
//
// The opts parameter is a variadic argument that accepts a list of Option
// functions. See the documentation for Option and the various WithXXX
// functions for available configuration options.
//
// Returns a pointer to the initialized Config and an error if any occurred
// during the configuration process.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		port:           0,
		baudRate:       9600,
		sendQueueSize:  16,
		eventQueueSize: 16,
		closeTimeout:   3 * time.Second,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Port returns the configured port index.
func (cfg *Config) Port() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.port
}

// BaudRate returns the configured baud rate.
func (cfg *Config) BaudRate() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.baudRate
}

// SendQueueSize returns the configured sender queue size.
func (cfg *Config) SendQueueSize() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.sendQueueSize
}

// EventQueueSize returns the configured notification queue size.
func (cfg *Config) EventQueueSize() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.eventQueueSize
}

// CloseTimeout returns the configured close timeout.
func (cfg *Config) CloseTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.closeTimeout
}

// Logger returns the configured logger.
func (cfg *Config) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// Option represents a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error { return o.applyFunc(cfg) }

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithPort selects the Nth device matching the PL2303 vendor/product ID
// among enumerated devices.
// An error is returned if the index is negative or if the configuration is nil.
//
// The default port index is 0.
func WithPort(port int) Option {
	return newOptFunc("WithPort", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if port < 0 {
			return errors.New("pl2303: port index must not be negative")
		}
		cfg.port = port

		return nil
	})
}

// WithBaudRate sets the requested baud rate. The rate is quantized to the
// nearest chip-supported rate during bring-up; rates above
// MaxRequestBaudRate are rejected here rather than clamped.
// An error is returned if the rate is invalid or if the configuration is nil.
//
// The default baud rate is 9600.
func WithBaudRate(rate int) Option {
	return newOptFunc("WithBaudRate", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if rate <= 0 {
			return ErrInvalidBaudRate
		}
		if rate > MaxRequestBaudRate {
			return ErrBaudRateTooHigh
		}
		cfg.baudRate = rate

		return nil
	})
}

// WithSendQueueSize sets the size of the sender queue.
// An error is returned if the size is not positive or if the configuration is nil.
//
// The default size is 16.
func WithSendQueueSize(size int) Option {
	return newOptFunc("WithSendQueueSize", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if size <= 0 {
			return errors.New("pl2303: send queue size must be positive")
		}
		cfg.sendQueueSize = size

		return nil
	})
}

// WithEventQueueSize sets the size of the notification queue.
// An error is returned if the size is not positive or if the configuration is nil.
//
// The default size is 16.
func WithEventQueueSize(size int) Option {
	return newOptFunc("WithEventQueueSize", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if size <= 0 {
			return errors.New("pl2303: event queue size must be positive")
		}
		cfg.eventQueueSize = size

		return nil
	})
}

// WithCloseTimeout sets the timeout for tearing down the session.
// An error is returned if the timeout is out of the valid range [1s, 30s]
// or if the configuration is nil.
//
// The default timeout is 3 seconds.
func WithCloseTimeout(timeout time.Duration) Option {
	return newOptFunc("WithCloseTimeout", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if timeout < time.Second || timeout > 30*time.Second {
			return errors.New("pl2303: close timeout is out of range [1s, 30s]")
		}
		cfg.closeTimeout = timeout

		return nil
	})
}

// WithLogger sets the logger instance for the session.
// An error is returned if the logger is nil or if the configuration is nil.
//
// The default logger is the package-level default of the logger package.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if l == nil {
			return errors.New("pl2303: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithLogLevel sets the log level of the configured logger.
// An error is returned if the configuration is nil.
func WithLogLevel(level logger.Level) Option {
	return newOptFunc("WithLogLevel", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		cfg.logger.SetLevel(level)

		return nil
	})
}

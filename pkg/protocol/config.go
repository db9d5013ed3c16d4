package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/gobeyondidentity/ipclink/pkg/pm"
	"github.com/gobeyondidentity/ipclink/pkg/transport"
)

const (
	// DefaultRunTimeout bounds a blocking request while the CP is in the RUN stage.
	DefaultRunTimeout = 500 * time.Millisecond

	// DefaultBootTimeout bounds a blocking request in every other stage.
	DefaultBootTimeout = 500 * time.Millisecond
)

// Config holds protocol tuning.
type Config struct {
	// RunTimeout is the blocking send deadline while the CP runs.
	RunTimeout time.Duration

	// BootTimeout is the blocking send deadline before the CP reaches RUN.
	BootTimeout time.Duration

	// DeviceActiveTimeout bounds the wait for the device to wake during suspend.
	DeviceActiveTimeout time.Duration

	// MsgVector is the interrupt vector the CP raises after acknowledging messages.
	MsgVector uint8

	// DeviceVector is the interrupt vector the CP raises after updating device info.
	DeviceVector uint8

	// RingFullRetry paces a blocking send waiting for a ring slot. The
	// overall wait is still capped by the send deadline.
	RingFullRetry transport.RetryConfig
}

// DefaultConfig returns a configuration with the device defaults.
func DefaultConfig() Config {
	return Config{
		RunTimeout:          DefaultRunTimeout,
		BootTimeout:         DefaultBootTimeout,
		DeviceActiveTimeout: pm.DefaultActiveTimeout,
		RingFullRetry:       transport.DefaultRetryConfig(),
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error
	if c.RunTimeout <= 0 {
		errs = append(errs, fmt.Errorf("run timeout must be positive, got %v", c.RunTimeout))
	}
	if c.BootTimeout <= 0 {
		errs = append(errs, fmt.Errorf("boot timeout must be positive, got %v", c.BootTimeout))
	}
	if c.DeviceActiveTimeout < 0 {
		errs = append(errs, fmt.Errorf("device active timeout must not be negative, got %v", c.DeviceActiveTimeout))
	}
	if c.RingFullRetry.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("ring full retry attempts must not be negative, got %d", c.RingFullRetry.MaxAttempts))
	}
	return errors.Join(errs...)
}

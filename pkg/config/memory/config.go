package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/code-payments/composability-codec/pkg/config"
)

// ErrInduced is returned by Get after InduceErrors.
var ErrInduced = errors.New("memory config: induced error")

// Config holds a single value in memory. Tests and programmatic overrides use
// it in place of environment or file backed configs.
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	err      error
	shutdown bool
}

// NewConfig returns a config holding value. A nil value behaves as unset.
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

// NewUnsetConfig returns a config that yields config.ErrNoValue until
// SetValue is called.
func NewUnsetConfig() *Config {
	return &Config{}
}

// Get implements config.Config.Get
func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.err != nil:
		return nil, c.err
	case c.value == nil:
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

// Shutdown implements config.Config.Shutdown
func (c *Config) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
}

// SetValue replaces the value returned by subsequent Get calls.
func (c *Config) SetValue(value interface{}) {
	c.mu.Lock()
	c.value = value
	c.mu.Unlock()
}

// ClearValue makes subsequent Get calls return config.ErrNoValue.
func (c *Config) ClearValue() {
	c.SetValue(nil)
}

// InduceErrors makes subsequent Get calls fail with ErrInduced.
func (c *Config) InduceErrors() {
	c.SetError(ErrInduced)
}

// SetError makes subsequent Get calls fail with err. A nil err restores
// normal behaviour.
func (c *Config) SetError(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// StopInducingErrors restores normal behaviour after InduceErrors or SetError.
func (c *Config) StopInducingErrors() {
	c.SetError(nil)
}

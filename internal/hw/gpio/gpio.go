// Package gpio abstracts pin access so the daemon runs the same on a real
// board and on a development machine.
package gpio

import (
	"os"
	"sync"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver is the minimal pin interface the daemon needs. The real
// implementation maps /dev/gpiomem; the mock keeps state in memory.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// Available reports whether the memory-mapped GPIO device exists, which is
// how the daemon decides between the real driver and the mock.
func Available() bool {
	_, err := os.Stat("/dev/gpiomem")
	return err == nil
}

// NewDriver returns a MockDriver when mock is true, otherwise the go-rpio
// implementation.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		return NewMockDriver(), nil
	}
	return NewRPiDriver()
}

// MockDriver records pin state in memory. Used off-board and in tests.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
	modes  map[int]PinMode
	writes int
}

func NewMockDriver() *MockDriver {
	return &MockDriver{
		levels: make(map[int]Level),
		modes:  make(map[int]PinMode),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = mode
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
	m.writes++
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) Close() error { return nil }

// Level reports the last level written to pin.
func (m *MockDriver) Level(pin int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

// Writes reports how many times any pin was written.
func (m *MockDriver) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

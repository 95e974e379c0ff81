// Package led drives the optional status LED: lit while any capture is in
// flight, plus a short blink burst when the daemon rebuilds its schedule.
package led

import (
	"sync"
	"time"

	"github.com/borevitzlab/go-eyepi/internal/hw/gpio"
)

// StatusLED drives one output pin. Every running capture holds the LED on;
// it only goes dark when the last one finishes. All methods are safe on a
// nil receiver so callers need no guard when the LED is not configured.
type StatusLED struct {
	mu     sync.Mutex
	gpio   gpio.Driver
	pin    int
	active int
}

func New(g gpio.Driver, pin int) *StatusLED {
	_ = g.SetupPin(pin, gpio.Output)
	_ = g.WritePin(pin, gpio.Low)
	return &StatusLED{gpio: g, pin: pin}
}

// CaptureStarted turns the LED on.
func (l *StatusLED) CaptureStarted() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active++
	if l.active == 1 {
		_ = l.gpio.WritePin(l.pin, gpio.High)
	}
}

// CaptureDone releases one hold on the LED.
func (l *StatusLED) CaptureDone() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active > 0 {
		l.active--
	}
	if l.active == 0 {
		_ = l.gpio.WritePin(l.pin, gpio.Low)
	}
}

// Blink flashes the LED n times and then restores whatever state the
// running captures demand. Blocks for 2*n*period.
func (l *StatusLED) Blink(n int, period time.Duration) {
	if l == nil {
		return
	}
	for i := 0; i < n; i++ {
		l.write(gpio.High)
		time.Sleep(period)
		l.write(gpio.Low)
		time.Sleep(period)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active > 0 {
		_ = l.gpio.WritePin(l.pin, gpio.High)
	}
}

// Close turns the LED off.
func (l *StatusLED) Close() {
	if l == nil {
		return
	}
	l.write(gpio.Low)
}

func (l *StatusLED) write(level gpio.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.gpio.WritePin(l.pin, level)
}

// Package sensor acquires distance and ambient light readings on the edge node.
//
// Hardware access goes through small seams (DigitalOut, DigitalIn, ADC, Clock)
// so the pulse timing state machine can be driven by fakes in tests.
package sensor

import (
	"fmt"
	"time"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
)

// ErrSensorTimeout is returned when the echo line never changes state within the budget.
var ErrSensorTimeout = errors.NewStd("sensor timeout")

const (
	triggerSettle = 2 * time.Microsecond
	triggerWidth  = 10 * time.Microsecond

	// DefaultEchoTimeout covers the round trip of the sensor's ~4 m range with margin
	DefaultEchoTimeout = 30 * time.Millisecond
)

// DigitalOut drives a GPIO line
type DigitalOut interface {
	High() error
	Low() error
}

// DigitalIn samples a GPIO line, returning 0 or 1
type DigitalIn interface {
	Value() (int, error)
}

// ADC returns one raw analog sample
type ADC interface {
	Read() (int, error)
}

// Clock is a monotonic microsecond tick source
type Clock interface {
	Now() time.Duration
	Sleep(d time.Duration)
}

// RawPulseReading holds the echo rise and fall ticks of one measurement
type RawPulseReading struct {
	EchoStart time.Duration
	EchoEnd   time.Duration
}

// Sample is one set of readings taken during a detection cycle
type Sample struct {
	DistanceCM float64
	LightLevel int
}

// DistanceFromPulse converts the echo width to centimetres: half the round trip at the speed of sound.
func DistanceFromPulse(r RawPulseReading) float64 {
	width := r.EchoEnd - r.EchoStart
	if width <= 0 {
		return 0
	}
	us := float64(width) / float64(time.Microsecond)
	return us * conf.SpeedOfSoundCMPerUS / 2
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a Clock backed by the runtime monotonic clock
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() time.Duration { return time.Since(c.start) }

// Sleep spins for sub-millisecond waits, time.Sleep is far too coarse for the trigger pulse.
func (c *monotonicClock) Sleep(d time.Duration) {
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	end := c.Now() + d
	for c.Now() < end { //nolint:revive // busy wait
	}
}

// PulseReader measures distance with an ultrasonic trigger/echo sensor
type PulseReader struct {
	trigger DigitalOut
	echo    DigitalIn
	clock   Clock
	timeout time.Duration
}

// NewPulseReader creates a reader. A zero timeout uses DefaultEchoTimeout.
func NewPulseReader(trigger DigitalOut, echo DigitalIn, clock Clock, timeout time.Duration) *PulseReader {
	if timeout <= 0 {
		timeout = DefaultEchoTimeout
	}
	if clock == nil {
		clock = NewClock()
	}
	return &PulseReader{trigger: trigger, echo: echo, clock: clock, timeout: timeout}
}

// Measure fires one trigger pulse and returns the distance in centimetres.
// Each busy-wait is bounded; a stuck echo line yields ErrSensorTimeout. No retries.
func (p *PulseReader) Measure() (float64, error) {
	r, err := p.MeasureRaw()
	if err != nil {
		return 0, err
	}
	return DistanceFromPulse(r), nil
}

// MeasureRaw returns the echo ticks without converting them
func (p *PulseReader) MeasureRaw() (RawPulseReading, error) {
	if err := p.pulse(); err != nil {
		return RawPulseReading{}, err
	}

	start, err := p.waitFor(1, "rise")
	if err != nil {
		return RawPulseReading{}, err
	}
	end, err := p.waitFor(0, "fall")
	if err != nil {
		return RawPulseReading{}, err
	}
	return RawPulseReading{EchoStart: start, EchoEnd: end}, nil
}

func (p *PulseReader) pulse() error {
	if err := p.trigger.Low(); err != nil {
		return gpioError(err, "trigger-low")
	}
	p.clock.Sleep(triggerSettle)
	if err := p.trigger.High(); err != nil {
		return gpioError(err, "trigger-high")
	}
	p.clock.Sleep(triggerWidth)
	if err := p.trigger.Low(); err != nil {
		return gpioError(err, "trigger-low")
	}
	return nil
}

// waitFor spins until the echo line reads want and returns the tick it changed
func (p *PulseReader) waitFor(want int, phase string) (time.Duration, error) {
	deadline := p.clock.Now() + p.timeout
	for {
		v, err := p.echo.Value()
		if err != nil {
			return 0, gpioError(err, "echo-read")
		}
		now := p.clock.Now()
		if v == want {
			return now, nil
		}
		if now >= deadline {
			return 0, errors.New(fmt.Errorf("%w: echo did not %s within %s", ErrSensorTimeout, phase, p.timeout)).
				Component("sensor").
				Category(errors.CategorySensor).
				Priority(errors.PriorityLow).
				Context("phase", phase).
				Context("timeout_us", p.timeout.Microseconds()).
				Build()
		}
	}
}

func gpioError(err error, op string) error {
	return errors.New(err).
		Component("sensor").
		Category(errors.CategorySensor).
		Context("operation", op).
		Build()
}

// LightReader reads the ambient light sensor on the inverted scale
type LightReader struct {
	adc ADC
}

// NewLightReader wraps a raw ADC
func NewLightReader(adc ADC) *LightReader {
	return &LightReader{adc: adc}
}

// Read returns the light level in [0, MaxLight] with 0 brightest. The raw
// hardware polarity is the reverse, so the sample is inverted here.
func (l *LightReader) Read() (int, error) {
	raw, err := l.adc.Read()
	if err != nil {
		return 0, errors.New(err).
			Component("sensor").
			Category(errors.CategorySensor).
			Context("operation", "adc-read").
			Build()
	}
	return InvertLight(raw), nil
}

// InvertLight clamps raw to the ADC range and flips its polarity
func InvertLight(raw int) int {
	raw = max(0, min(raw, conf.MaxLight))
	return conf.MaxLight - raw
}

package sensor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
)

// fakeClock advances by step on every Now so spin loops make progress
type fakeClock struct {
	t    time.Duration
	step time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.t += c.step
	return c.t
}

func (c *fakeClock) Sleep(d time.Duration) { c.t += d }

// scriptedEcho is high between riseAt and fallAt on the fake clock
type scriptedEcho struct {
	clock  *fakeClock
	riseAt time.Duration
	fallAt time.Duration
}

func (e *scriptedEcho) Value() (int, error) {
	if e.clock.t >= e.riseAt && e.clock.t < e.fallAt {
		return 1, nil
	}
	return 0, nil
}

type recordingPin struct {
	levels []int
}

func (p *recordingPin) High() error { p.levels = append(p.levels, 1); return nil }
func (p *recordingPin) Low() error  { p.levels = append(p.levels, 0); return nil }

type fixedADC struct {
	raw int
	err error
}

func (a fixedADC) Read() (int, error) { return a.raw, a.err }

func TestDistanceFromPulse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   RawPulseReading
		want float64
	}{
		{"one millisecond echo", RawPulseReading{EchoStart: 0, EchoEnd: time.Millisecond}, 17.15},
		{"offset start", RawPulseReading{EchoStart: 500 * time.Microsecond, EchoEnd: 3500 * time.Microsecond}, 51.45},
		{"zero width", RawPulseReading{EchoStart: time.Second, EchoEnd: time.Second}, 0},
		{"inverted", RawPulseReading{EchoStart: 2 * time.Second, EchoEnd: time.Second}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, DistanceFromPulse(tt.in), 1e-9)
		})
	}
}

func TestPulseReaderMeasure(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{step: time.Microsecond}
	trigger := &recordingPin{}
	echo := &scriptedEcho{clock: clk, riseAt: 200 * time.Microsecond, fallAt: 200*time.Microsecond + 5830*time.Microsecond}

	r := NewPulseReader(trigger, echo, clk, 30*time.Millisecond)
	d, err := r.Measure()
	require.NoError(t, err)

	// 5830 µs round trip is ~100 cm
	assert.InDelta(t, 100.0, d, 0.1)
	assert.Equal(t, []int{0, 1, 0}, trigger.levels, "trigger must be driven low, high, low")
}

func TestPulseReaderTimeouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		riseAt time.Duration
		fallAt time.Duration
		phase  string
	}{
		{"echo never rises", time.Hour, 2 * time.Hour, "rise"},
		{"echo never falls", 100 * time.Microsecond, time.Hour, "fall"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clk := &fakeClock{step: 10 * time.Microsecond}
			echo := &scriptedEcho{clock: clk, riseAt: tt.riseAt, fallAt: tt.fallAt}
			r := NewPulseReader(&recordingPin{}, echo, clk, time.Millisecond)

			_, err := r.Measure()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSensorTimeout)
			assert.True(t, errors.IsCategory(err, errors.CategorySensor))

			var ee *errors.EnhancedError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.phase, ee.GetContext()["phase"])

			// the spin stopped shortly after the budget ran out
			assert.Less(t, clk.t, 10*time.Millisecond)
		})
	}
}

func TestPulseReaderDefaultTimeout(t *testing.T) {
	t.Parallel()

	r := NewPulseReader(&recordingPin{}, &scriptedEcho{clock: &fakeClock{}}, &fakeClock{}, 0)
	assert.Equal(t, DefaultEchoTimeout, r.timeout)
}

func TestLightReader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  int
		want int
	}{
		{0, conf.MaxLight},
		{conf.MaxLight, 0},
		{1095, 3000},
		{-20, conf.MaxLight},
		{9999, 0},
	}
	for _, tt := range tests {
		got, err := NewLightReader(fixedADC{raw: tt.raw}).Read()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "raw %d", tt.raw)
	}

	_, err := NewLightReader(fixedADC{err: os.ErrNotExist}).Read()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategorySensor))
}

// seqRand replays fixed values
type seqRand struct {
	floats []float64
	ints   []int
}

func (r *seqRand) Float64() float64 {
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *seqRand) IntN(n int) int {
	v := r.ints[0] % n
	r.ints = r.ints[1:]
	return v
}

func TestSimulatedSource(t *testing.T) {
	t.Parallel()

	s := conf.DefaultSettings()
	rnd := &seqRand{
		floats: []float64{0.1, 0.9, 0.5, 0.95},
		ints:   []int{0, 1, 4095},
	}
	src := NewSimulatedSource(&s.Edge, &s.Classifier, rnd)

	motion, err := src.MotionDetected()
	require.NoError(t, err)
	assert.True(t, motion, "0.1 < motion probability 0.3")

	motion, _ = src.MotionDetected()
	assert.False(t, motion)

	d, err := src.Distance()
	require.NoError(t, err)
	assert.InDelta(t, s.Classifier.MinIdentify, d, 0, "in-band animal at the low edge")

	d, _ = src.Distance()
	assert.InDelta(t, 550.0, d, 0, "noise reading")

	light, _ := src.Light()
	assert.Equal(t, conf.MaxLight, light)
}

func TestSimulatedSourceStaysInRange(t *testing.T) {
	t.Parallel()

	s := conf.DefaultSettings()
	src := NewSimulatedSource(&s.Edge, &s.Classifier, nil)

	for range 500 {
		d, err := src.Distance()
		require.NoError(t, err)
		inBand := d >= s.Classifier.MinIdentify && d <= s.Classifier.MaxIdentify
		assert.True(t, inBand || d == 0.5 || d == 550, "unexpected distance %g", d)

		l, _ := src.Light()
		assert.GreaterOrEqual(t, l, 0)
		assert.LessOrEqual(t, l, conf.MaxLight)
	}
}

func TestSysfsGPIOAndADC(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	pinDir := filepath.Join(root, "gpio24")
	require.NoError(t, os.MkdirAll(pinDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pinDir, "direction"), []byte("in"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pinDir, "value"), []byte("1\n"), 0o644))

	pin, err := OpenGPIO(root, 24, "out")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pin.Close() })

	v, err := pin.Value()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, pin.Low())
	v, _ = pin.Value()
	assert.Equal(t, 0, v)

	dir, err := os.ReadFile(filepath.Join(pinDir, "direction")) //nolint:gosec // test temp dir
	require.NoError(t, err)
	assert.Equal(t, "out", string(dir))

	adcPath := filepath.Join(root, "in_voltage0_raw")
	require.NoError(t, os.WriteFile(adcPath, []byte("1234\n"), 0o644))
	raw, err := NewIIOADC(adcPath).Read()
	require.NoError(t, err)
	assert.Equal(t, 1234, raw)

	require.NoError(t, os.WriteFile(adcPath, []byte("garbage"), 0o644))
	_, err = NewIIOADC(adcPath).Read()
	require.Error(t, err)
}

func TestOpenGPIOMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := OpenGPIO(filepath.Join(t.TempDir(), "nope"), 5, "in")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategorySensor))
}

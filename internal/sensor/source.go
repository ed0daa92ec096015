package sensor

import (
	"math/rand/v2"

	"github.com/tphakala/wildlife-go/internal/conf"
)

// Source is everything one detection cycle needs from the sensors
type Source interface {
	// MotionDetected samples the PIR line
	MotionDetected() (bool, error)
	// Distance measures the distance to the moving object in cm
	Distance() (float64, error)
	// Light returns the ambient light on the inverted scale
	Light() (int, error)
}

// HardwareSource combines PIR, ultrasonic and light sensors
type HardwareSource struct {
	pir   DigitalIn
	pulse *PulseReader
	light *LightReader
}

// NewHardwareSource wires the physical sensors
func NewHardwareSource(pir DigitalIn, pulse *PulseReader, light *LightReader) *HardwareSource {
	return &HardwareSource{pir: pir, pulse: pulse, light: light}
}

func (h *HardwareSource) MotionDetected() (bool, error) {
	v, err := h.pir.Value()
	if err != nil {
		return false, gpioError(err, "pir-read")
	}
	return v == 1, nil
}

func (h *HardwareSource) Distance() (float64, error) { return h.pulse.Measure() }

func (h *HardwareSource) Light() (int, error) { return h.light.Read() }

// Rand is the random source used by the simulator
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Out-of-band distances the simulator emits to exercise false positive filtering
var simulatedNoise = []float64{0.5, 550}

// SimulatedSource produces plausible readings when no sensors are attached.
// A fraction AnimalProbability of distances fall inside the identification
// band, the rest are noise just outside the plausible band.
type SimulatedSource struct {
	rnd               Rand
	motionProbability float64
	animalProbability float64
	minDistance       int
	maxDistance       int
}

// NewSimulatedSource builds a simulator from edge and classifier settings.
// A nil rnd uses math/rand/v2.
func NewSimulatedSource(edge *conf.EdgeSettings, classifier *conf.ClassifierSettings, rnd Rand) *SimulatedSource {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // simulation only
	}
	return &SimulatedSource{
		rnd:               rnd,
		motionProbability: edge.MotionProbability,
		animalProbability: edge.SimulationProbability,
		minDistance:       int(classifier.MinIdentify),
		maxDistance:       int(classifier.MaxIdentify),
	}
}

func (s *SimulatedSource) MotionDetected() (bool, error) {
	return s.rnd.Float64() < s.motionProbability, nil
}

func (s *SimulatedSource) Distance() (float64, error) {
	if s.rnd.Float64() < s.animalProbability {
		span := s.maxDistance - s.minDistance + 1
		return float64(s.minDistance + s.rnd.IntN(span)), nil
	}
	return simulatedNoise[s.rnd.IntN(len(simulatedNoise))], nil
}

func (s *SimulatedSource) Light() (int, error) {
	return s.rnd.IntN(conf.MaxLight + 1), nil
}

var (
	_ Source = (*HardwareSource)(nil)
	_ Source = (*SimulatedSource)(nil)
)

package sensor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
)

const gpioFilePermissions = 0o644

// GPIOPin is a Linux sysfs GPIO line. The value file stays open so the echo
// busy-wait costs one pread per sample.
type GPIOPin struct {
	number int
	value  *os.File
}

// OpenGPIO exports pin under root if needed and sets its direction ("in" or "out").
func OpenGPIO(root string, pin int, direction string) (*GPIOPin, error) {
	dir := filepath.Join(root, fmt.Sprintf("gpio%d", pin))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := writeSysfs(filepath.Join(root, "export"), strconv.Itoa(pin)); err != nil {
			return nil, sysfsError(err, "gpio-export", pin)
		}
		// udev needs a moment to fix permissions on the new node
		time.Sleep(50 * time.Millisecond)
	}

	if err := writeSysfs(filepath.Join(dir, "direction"), direction); err != nil {
		return nil, sysfsError(err, "gpio-direction", pin)
	}

	flag := os.O_RDONLY
	if direction == "out" {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(filepath.Join(dir, "value"), flag, gpioFilePermissions) //nolint:gosec // sysfs path from config
	if err != nil {
		return nil, sysfsError(err, "gpio-open", pin)
	}
	return &GPIOPin{number: pin, value: f}, nil
}

// Value reads the current line level
func (g *GPIOPin) Value() (int, error) {
	buf := make([]byte, 1)
	if _, err := g.value.ReadAt(buf, 0); err != nil {
		return 0, err
	}
	if buf[0] == '1' {
		return 1, nil
	}
	return 0, nil
}

func (g *GPIOPin) High() error { return g.write('1') }

func (g *GPIOPin) Low() error { return g.write('0') }

func (g *GPIOPin) write(b byte) error {
	_, err := g.value.WriteAt([]byte{b}, 0)
	return err
}

// Close releases the value file. The pin stays exported.
func (g *GPIOPin) Close() error {
	return g.value.Close()
}

// IIOADC reads a raw channel from the Linux industrial I/O subsystem
type IIOADC struct {
	path string
}

// NewIIOADC returns an ADC reading path, e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw
func NewIIOADC(path string) *IIOADC {
	return &IIOADC{path: path}
}

func (a *IIOADC) Read() (int, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil {
		return 0, fmt.Errorf("parse adc sample %q: %w", bytes.TrimSpace(data), err)
	}
	return v, nil
}

// OpenHardware opens the sensors described by settings. Pins opened before a
// failure are closed again. The returned closer releases all pins.
func OpenHardware(hw *conf.HardwareSettings, echoTimeout time.Duration) (*HardwareSource, func() error, error) {
	var opened []*GPIOPin
	closeAll := func() error {
		var errs []error
		for _, p := range opened {
			errs = append(errs, p.Close())
		}
		return errors.Join(errs...)
	}

	open := func(pin int, direction string) (*GPIOPin, error) {
		p, err := OpenGPIO(hw.GPIOPath, pin, direction)
		if err != nil {
			_ = closeAll()
			return nil, err
		}
		opened = append(opened, p)
		return p, nil
	}

	trigger, err := open(hw.TriggerPin, "out")
	if err != nil {
		return nil, nil, err
	}
	echo, err := open(hw.EchoPin, "in")
	if err != nil {
		return nil, nil, err
	}
	pir, err := open(hw.PIRPin, "in")
	if err != nil {
		return nil, nil, err
	}

	src := NewHardwareSource(
		pir,
		NewPulseReader(trigger, echo, NewClock(), echoTimeout),
		NewLightReader(NewIIOADC(hw.ADCPath)),
	)
	return src, closeAll, nil
}

func writeSysfs(path, value string) error {
	return os.WriteFile(path, []byte(value), gpioFilePermissions)
}

func sysfsError(err error, op string, pin int) error {
	return errors.New(err).
		Component("sensor").
		Category(errors.CategorySensor).
		Context("operation", op).
		Context("pin", pin).
		Build()
}

// Package device finds ESP32 boards among the serial ports of the host and talks to
// them just enough to reset, probe and monitor.
package device

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.bug.st/serial/enumerator"

	"glowlight/tools/setup/internal/glowerr"
)

// ID is a USB vendor/product pair.
type ID struct {
	VID uint16
	PID uint16
}

func (id ID) String() string {
	return fmt.Sprintf("%04X:%04X", id.VID, id.PID)
}

// KnownIDs are USB-serial bridges and debug units found on ESP32 boards.
var KnownIDs = map[ID]string{
	{0x10C4, 0xEA60}: "Silicon Labs CP210x",
	{0x10C4, 0xEA71}: "Silicon Labs CP2108",
	{0x1A86, 0x7523}: "QinHeng CH340",
	{0x1A86, 0x55D4}: "QinHeng CH9102",
	{0x0403, 0x6001}: "FTDI FT232",
	{0x0403, 0x6014}: "FTDI FT232H",
	{0x0403, 0x6015}: "FTDI FT231X",
	{0x239A, 0x8014}: "Adafruit ESP32 board",
	{0x239A, 0x80C2}: "Adafruit ESP32 board",
	{0x303A, 0x1001}: "Espressif USB JTAG/serial debug unit",
	{0x303A, 0x0002}: "Espressif ESP32-S2",
	{0x303A, 0x8001}: "Espressif ESP32-S3",
}

// keywords mark a description as belonging to an ESP32 board.
var keywords = []string{"esp32", "jtag", "debug unit", "cp210", "ch340", "ftdi"}

// usbSerialPaths are path fragments of generic USB-serial adapters.
var usbSerialPaths = []string{"/dev/ttyUSB", "/dev/ttyACM"}

// Descriptor is what a scan knows about one serial port. It is never cached.
type Descriptor struct {
	Port         string
	Description  string
	SerialNumber string
	VID          uint16
	PID          uint16
	IsUSB        bool
	IsTarget     bool
}

// ID returns the vendor/product pair of the port.
func (d Descriptor) ID() ID {
	return ID{VID: d.VID, PID: d.PID}
}

// VIDPID formats the vendor/product pair, or "Unknown" for non-USB ports.
func (d Descriptor) VIDPID() string {
	if d.VID == 0 && d.PID == 0 {
		return "Unknown"
	}
	return d.ID().String()
}

// Chip guesses the ESP32 family from the description.
func (d Descriptor) Chip() string {
	desc := strings.ToLower(d.Description)
	for _, chip := range []string{"esp32-c3", "esp32-s3", "esp32-s2"} {
		if strings.Contains(desc, chip) {
			return strings.ToUpper(chip)
		}
	}
	if strings.Contains(desc, "esp32") {
		return "ESP32"
	}
	return "ESP32 (Generic)"
}

// Classify reports whether d looks like a target board. A known vendor/product pair
// wins, then description keywords, then a generic USB-serial device path.
func Classify(d Descriptor) bool {
	if d.VID != 0 || d.PID != 0 {
		if _, ok := KnownIDs[d.ID()]; ok {
			return true
		}
	}

	desc := strings.ToLower(d.Description)
	for _, kw := range keywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}

	for _, p := range usbSerialPaths {
		if strings.Contains(d.Port, p) {
			return true
		}
	}
	return false
}

// Lister returns the host's serial ports.
type Lister func() ([]*enumerator.PortDetails, error)

// Enumerator scans serial ports.
type Enumerator struct {
	list Lister
	log  zerolog.Logger
}

// NewEnumerator creates an enumerator backed by the operating system.
func NewEnumerator(log zerolog.Logger) *Enumerator {
	return NewEnumeratorWithLister(enumerator.GetDetailedPortsList, log)
}

// NewEnumeratorWithLister creates an enumerator with a custom port lister (for testing).
func NewEnumeratorWithLister(list Lister, log zerolog.Logger) *Enumerator {
	return &Enumerator{
		list: list,
		log:  log.With().Str("component", "device").Logger(),
	}
}

// Scan returns every port except the virtual /dev/ttyS* consoles, sorted by path.
func (e *Enumerator) Scan() ([]Descriptor, error) {
	ports, err := e.list()
	if err != nil {
		return nil, glowerr.New(glowerr.KindDeviceNotFound, fmt.Errorf("list serial ports: %w", err))
	}

	out := make([]Descriptor, 0, len(ports))
	for _, p := range ports {
		if p == nil || strings.HasPrefix(p.Name, "/dev/ttyS") {
			continue
		}
		d := describe(p)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })

	e.log.Debug().Int("ports", len(ports)).Int("kept", len(out)).Msg("serial scan")
	return out, nil
}

// Targets returns the scanned ports classified as ESP32 boards.
func (e *Enumerator) Targets() ([]Descriptor, error) {
	all, err := e.Scan()
	if err != nil {
		return nil, err
	}
	var targets []Descriptor
	for _, d := range all {
		if d.IsTarget {
			targets = append(targets, d)
		}
	}
	return targets, nil
}

// Info returns the descriptor of a single port.
func (e *Enumerator) Info(port string) (Descriptor, error) {
	all, err := e.Scan()
	if err != nil {
		return Descriptor{}, err
	}
	for _, d := range all {
		if d.Port == port {
			return d, nil
		}
	}
	return Descriptor{}, glowerr.Errorf(glowerr.KindDeviceNotFound, "serial port %s not found", port)
}

func describe(p *enumerator.PortDetails) Descriptor {
	d := Descriptor{
		Port:         p.Name,
		Description:  p.Product,
		SerialNumber: p.SerialNumber,
		IsUSB:        p.IsUSB,
		VID:          parseHexID(p.VID),
		PID:          parseHexID(p.PID),
	}
	if d.Description == "" {
		d.Description = "n/a"
	}
	d.IsTarget = Classify(d)
	return d
}

func parseHexID(s string) uint16 {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}

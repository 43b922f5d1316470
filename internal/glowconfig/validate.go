package glowconfig

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"glowlight/tools/setup/internal/glowerr"
)

// ESP32-C3 GPIO limits.
const (
	MinPin = 0
	MaxPin = 21

	MinMeshNameLen     = 1
	MaxMeshNameLen     = 32
	MinMeshPasswordLen = 8
)

// ReservedPins are strapping and flash pins that work but can break boot or flashing.
var ReservedPins = []int{2, 8, 9}

// PortPrefixes are the device path prefixes accepted for a manually entered port.
var PortPrefixes = []string{"/dev/ttyUSB", "/dev/ttyACM", "/dev/cu.", "COM"}

// PinInRange reports whether pin is a GPIO the ESP32-C3 exposes.
func PinInRange(pin int) bool {
	return pin >= MinPin && pin <= MaxPin
}

// PinIsReserved reports whether pin is one of ReservedPins.
func PinIsReserved(pin int) bool {
	for _, r := range ReservedPins {
		if pin == r {
			return true
		}
	}
	return false
}

// ValidatePinSet checks a complete assignment. Out-of-range pins always fail; reserved
// pins pass only when allowReserved approves them (a nil callback approves nothing).
func ValidatePinSet(a PinAssignment, allowReserved func(name string, pin int) bool) error {
	pins := a.Map()

	for _, p := range pins {
		if !PinInRange(p.Value) {
			return glowerr.Errorf(glowerr.KindValidation,
				"invalid pin for %s: %d (must be %d-%d)", p.Name, p.Value, MinPin, MaxPin)
		}
	}

	for _, p := range pins {
		if PinIsReserved(p.Value) && (allowReserved == nil || !allowReserved(p.Name, p.Value)) {
			return glowerr.Errorf(glowerr.KindValidation,
				"pin %d for %s is reserved for system use", p.Value, p.Name)
		}
	}

	if a.SDA == a.SCL {
		return glowerr.Errorf(glowerr.KindValidation,
			"SDA and SCL pins must be different (both %d)", a.SDA)
	}

	users := make(map[int][]string)
	for _, p := range pins {
		users[p.Value] = append(users[p.Value], p.Name)
	}
	var conflicts []int
	for pin, names := range users {
		if len(names) > 1 {
			conflicts = append(conflicts, pin)
		}
	}
	if len(conflicts) > 0 {
		sort.Ints(conflicts)
		parts := make([]string, len(conflicts))
		for i, pin := range conflicts {
			parts[i] = fmt.Sprintf("pin %d used by %s", pin, strings.Join(users[pin], ", "))
		}
		return glowerr.Errorf(glowerr.KindValidation, "pin conflict: %s", strings.Join(parts, "; "))
	}

	return nil
}

// PinSetValid is the boolean form of ValidatePinSet.
func PinSetValid(a PinAssignment, allowReserved func(name string, pin int) bool) bool {
	return ValidatePinSet(a, allowReserved) == nil
}

// ValidateMesh checks name and password bounds of an enabled mesh.
func ValidateMesh(m MeshSettings) error {
	if !m.Enabled {
		return nil
	}
	if n := utf8.RuneCountInString(m.Name); n < MinMeshNameLen || n > MaxMeshNameLen {
		return glowerr.Errorf(glowerr.KindValidation,
			"mesh name must be %d-%d characters", MinMeshNameLen, MaxMeshNameLen)
	}
	if utf8.RuneCountInString(m.Password) < MinMeshPasswordLen {
		return glowerr.Errorf(glowerr.KindValidation,
			"mesh password must be at least %d characters", MinMeshPasswordLen)
	}
	return nil
}

// MeshValid is the boolean form of ValidateMesh.
func MeshValid(m MeshSettings) bool {
	return ValidateMesh(m) == nil
}

// I2CRecommended reports whether both I2C pins sit in the range wired on the reference board.
func I2CRecommended(sda, scl int) bool {
	return sda >= 4 && sda <= 10 && scl >= 4 && scl <= 10
}

// ValidatePortPath reports whether path exists and looks like a serial device.
func ValidatePortPath(path string) bool {
	if path == "" {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	for _, prefix := range PortPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

package device_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"go.bug.st/serial/enumerator"

	"glowlight/tools/setup/internal/device"
	"glowlight/tools/setup/internal/glowerr"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    device.Descriptor
		want bool
	}{
		{
			name: "known vid pid wins over unrelated description",
			d:    device.Descriptor{Port: "/dev/cu.usbserial-1", Description: "Bluetooth modem", VID: 0x10C4, PID: 0xEA60},
			want: true,
		},
		{
			name: "espressif jtag",
			d:    device.Descriptor{Port: "COM7", VID: 0x303A, PID: 0x1001},
			want: true,
		},
		{
			name: "description keyword case insensitive",
			d:    device.Descriptor{Port: "COM3", Description: "USB JTAG/serial debug unit"},
			want: true,
		},
		{
			name: "ch340 keyword",
			d:    device.Descriptor{Port: "COM4", Description: "USB-SERIAL CH340"},
			want: true,
		},
		{
			name: "generic ttyACM fallback",
			d:    device.Descriptor{Port: "/dev/ttyACM0", Description: "n/a", VID: 0x1234, PID: 0x5678},
			want: true,
		},
		{
			name: "unrelated port",
			d:    device.Descriptor{Port: "/dev/cu.Bluetooth-Incoming-Port", Description: "n/a"},
			want: false,
		},
		{
			name: "unknown vid pid on COM port",
			d:    device.Descriptor{Port: "COM1", Description: "Communications Port", VID: 0x8086, PID: 0x1234},
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := device.Classify(tt.d); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_AllKnownIDs(t *testing.T) {
	t.Parallel()

	for id := range device.KnownIDs {
		d := device.Descriptor{Port: "COM9", Description: "nothing useful", VID: id.VID, PID: id.PID}
		if !device.Classify(d) {
			t.Errorf("Classify(%s) = false", id)
		}
	}
}

func TestDescriptor_Chip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc string
		want string
	}{
		{"ESP32-C3 USB JTAG", "ESP32-C3"},
		{"esp32-s3 dev", "ESP32-S3"},
		{"ESP32 Dev Module", "ESP32"},
		{"CP2102 USB to UART", "ESP32 (Generic)"},
	}

	for _, tt := range tests {
		tt := tt
		if got := (device.Descriptor{Description: tt.desc}).Chip(); got != tt.want {
			t.Errorf("Chip(%q) = %q, want %q", tt.desc, got, tt.want)
		}
	}
}

func fakePorts() []*enumerator.PortDetails {
	return []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10c4", PID: "ea60", Product: "CP2102 USB to UART Bridge Controller", SerialNumber: "0001"},
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyACM1", IsUSB: true, VID: "303a", PID: "1001", Product: "USB JTAG/serial debug unit"},
		{Name: "/dev/ttyAMA0"},
	}
}

func TestEnumerator_Scan(t *testing.T) {
	t.Parallel()

	e := device.NewEnumeratorWithLister(func() ([]*enumerator.PortDetails, error) {
		return fakePorts(), nil
	}, zerolog.Nop())

	all, err := e.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Scan() returned %d ports, want 3 (ttyS filtered): %+v", len(all), all)
	}
	if all[0].Port != "/dev/ttyACM1" || all[0].VIDPID() != "303A:1001" {
		t.Errorf("first = %+v", all[0])
	}
	if all[1].Description != "n/a" || all[1].IsTarget {
		t.Errorf("ttyAMA0 = %+v, want non-target with n/a description", all[1])
	}

	targets, err := e.Targets()
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 2 {
		t.Errorf("Targets() returned %d, want 2", len(targets))
	}
}

func TestEnumerator_Info(t *testing.T) {
	t.Parallel()

	e := device.NewEnumeratorWithLister(func() ([]*enumerator.PortDetails, error) {
		return fakePorts(), nil
	}, zerolog.Nop())

	d, err := e.Info("/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if d.SerialNumber != "0001" || !d.IsUSB || !d.IsTarget {
		t.Errorf("Info() = %+v", d)
	}

	_, err = e.Info("/dev/ttyUSB9")
	if !glowerr.Is(err, glowerr.KindDeviceNotFound) {
		t.Errorf("Info() error = %v, want device not found", err)
	}
}

func TestEnumerator_ListerError(t *testing.T) {
	t.Parallel()

	e := device.NewEnumeratorWithLister(func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no permission")
	}, zerolog.Nop())

	if _, err := e.Targets(); !glowerr.Is(err, glowerr.KindDeviceNotFound) {
		t.Errorf("Targets() error = %v, want device not found", err)
	}
}

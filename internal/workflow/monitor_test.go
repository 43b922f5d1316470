package workflow_test

import (
	"context"
	"os"
	"reflect"
	"strings"
	"testing"

	"glowlight/tools/setup/internal/workflow"
)

func TestMonitor_PlatformIO(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")

	if err := h.app.Monitor(context.Background(), "", 0, false); err != nil {
		t.Fatalf("Monitor() error = %v", err)
	}
	want := []string{"monitor esp32c3 /dev/ttyUSB0 115200"}
	if calls := h.tc.Calls(); !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestMonitor_FallsBackToDefaultEnvironment(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "", func(d *workflow.Deps) {
		d.Settings.Environment = "esp32s3"
	})

	if err := h.app.Monitor(context.Background(), "/dev/ttyACM0", 0, false); err != nil {
		t.Fatalf("Monitor() error = %v", err)
	}
	want := []string{"monitor esp32c3 /dev/ttyACM0 115200"}
	if calls := h.tc.Calls(); !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestMonitor_NativeCapturesLog(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.serial.output = "GlowLight booting\nmesh: joined GlowMesh\n"

	if err := h.app.Monitor(context.Background(), "", 9600, true); err != nil {
		t.Fatalf("Monitor() error = %v", err)
	}

	if !reflect.DeepEqual(h.serial.calls, []string{"monitor /dev/ttyUSB0 9600"}) {
		t.Errorf("serial calls = %v", h.serial.calls)
	}
	if !strings.Contains(h.out.String(), "mesh: joined GlowMesh") {
		t.Errorf("output not echoed:\n%s", h.out.String())
	}

	files, err := h.logs.List()
	if err != nil || len(files) != 1 {
		t.Fatalf("List() = %v, %v, want one log", files, err)
	}
	data, err := os.ReadFile(files[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Device: /dev/ttyUSB0 (CP2102 USB to UART)", "mesh: joined GlowMesh"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log missing %q:\n%s", want, data)
		}
	}
}

func TestRun_MonitorMenu(t *testing.T) {
	t.Parallel()

	// Serial Monitor -> native with custom baud 74880 -> view first log -> clear (yes) -> back -> Exit
	h := newHarness(t, lines("4", "2", "4", "74880", "3", "1", "4", "y", "5", "5"))
	h.serial.output = "rst:0x1 (POWERON)\n"

	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !reflect.DeepEqual(h.serial.calls, []string{"monitor /dev/ttyUSB0 74880"}) {
		t.Errorf("serial calls = %v", h.serial.calls)
	}
	out := h.out.String()
	for _, want := range []string{"GlowLight Serial Monitor Log", "Deleted 1 log file(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if files, _ := h.logs.List(); len(files) != 0 {
		t.Errorf("logs left after clear: %v", files)
	}
}

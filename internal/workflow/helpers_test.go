package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"glowlight/tools/setup/internal/backup"
	"glowlight/tools/setup/internal/device"
	"glowlight/tools/setup/internal/git"
	"glowlight/tools/setup/internal/glowconfig"
	"glowlight/tools/setup/internal/glowerr"
	"glowlight/tools/setup/internal/monitorlog"
	"glowlight/tools/setup/internal/project"
	"glowlight/tools/setup/internal/prompt"
	"glowlight/tools/setup/internal/settings"
	"glowlight/tools/setup/internal/toolchain"
	"glowlight/tools/setup/internal/workflow"
)

const template = `#ifndef GLOW_CONFIG_H
#define GLOW_CONFIG_H

#define LED_DATA_PIN 3
#define LED_NUM_LEDS 24
#define BUTTON_PIN 4
#define DISTANCE_SENSOR_SDA 6
#define DISTANCE_SENSOR_SCL 7

#define MESH_ON false
#define MESH_PREFIX "GlowMesh"
#define MESH_PASSWORD "changeme123"

#endif
`

const platformioIni = `[platformio]
default_envs = esp32c3

[env:esp32c3]
platform = espressif32
board = esp32-c3-devkitm-1

[env:esp32c3-debug]
board = esp32-c3-devkitm-1
build_type = debug
`

var (
	cp2102 = device.Descriptor{Port: "/dev/ttyUSB0", Description: "CP2102 USB to UART", VID: 0x10C4, PID: 0xEA60, IsUSB: true, IsTarget: true}
	jtag   = device.Descriptor{Port: "/dev/ttyACM0", Description: "USB JTAG/serial debug unit", VID: 0x303A, PID: 0x1001, IsUSB: true, IsTarget: true}
	uart   = device.Descriptor{Port: "/dev/ttyAMA0", Description: "n/a"}
)

// fakeToolchain records PlatformIO invocations.
type fakeToolchain struct {
	mu        sync.Mutex
	calls     []string
	installed bool
	firmware  bool
	buildErr  error
	flashErr  error
	block     bool // Build waits for cancellation
}

func (f *fakeToolchain) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeToolchain) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeToolchain) IsInstalled(context.Context) bool { return f.installed }

func (f *fakeToolchain) Install(context.Context) error {
	f.record("install")
	f.installed = true
	return nil
}

func (f *fakeToolchain) Version(context.Context) (string, error) {
	return "PlatformIO Core, version 6.1.15", nil
}

func (f *fakeToolchain) Build(ctx context.Context, env string) (toolchain.Result, error) {
	f.record("build %s", env)
	if f.block {
		<-ctx.Done()
		return toolchain.Result{}, ctx.Err()
	}
	if f.buildErr != nil {
		return toolchain.Result{}, f.buildErr
	}
	f.firmware = true
	return toolchain.Result{Duration: 1500 * time.Millisecond}, nil
}

func (f *fakeToolchain) Flash(_ context.Context, env, port string) (toolchain.Result, error) {
	f.record("flash %s %s", env, port)
	return toolchain.Result{}, f.flashErr
}

func (f *fakeToolchain) Clean(_ context.Context, env string) (toolchain.Result, error) {
	f.record("clean %s", env)
	return toolchain.Result{}, nil
}

func (f *fakeToolchain) Monitor(_ context.Context, env, port string, baud int) error {
	f.record("monitor %s %s %d", env, port, baud)
	return nil
}

func (f *fakeToolchain) FirmwareExists(string) bool { return f.firmware }

// fakeDevices serves a fixed port list.
type fakeDevices struct {
	ports []device.Descriptor
}

func (f *fakeDevices) Scan() ([]device.Descriptor, error) { return f.ports, nil }

func (f *fakeDevices) Targets() ([]device.Descriptor, error) {
	var out []device.Descriptor
	for _, d := range f.ports {
		if d.IsTarget {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDevices) Info(port string) (device.Descriptor, error) {
	for _, d := range f.ports {
		if d.Port == port {
			return d, nil
		}
	}
	return device.Descriptor{}, glowerr.Errorf(glowerr.KindDeviceNotFound, "port %s not found", port)
}

// fakeSerial records port operations and replays output in Monitor.
type fakeSerial struct {
	calls  []string
	output string
	err    error
}

func (f *fakeSerial) Reset(port string) error {
	f.calls = append(f.calls, "reset "+port)
	return f.err
}

func (f *fakeSerial) TestConnection(port string) error {
	f.calls = append(f.calls, "test "+port)
	return f.err
}

func (f *fakeSerial) Monitor(_ context.Context, port string, baud int, out, capture io.Writer) error {
	f.calls = append(f.calls, fmt.Sprintf("monitor %s %d", port, baud))
	io.WriteString(out, f.output)
	if capture != nil {
		io.WriteString(capture, f.output)
	}
	return f.err
}

// fakeIgnore reports a repository whose .gitignore lacks every section.
type fakeIgnore struct {
	updated bool
	tracked []string
}

func (f *fakeIgnore) IsRepo() bool                     { return true }
func (f *fakeIgnore) NeedsIgnoreUpdate() (bool, error) { return !f.updated, nil }

func (f *fakeIgnore) IsTracked(path string) bool {
	for _, p := range f.tracked {
		if p == path {
			return true
		}
	}
	return false
}

func (f *fakeIgnore) UpdateIgnore() ([]git.Section, error) {
	f.updated = true
	return git.DefaultSections, nil
}

// fakeSecrets returns a fixed secret.
type fakeSecrets struct {
	value string
	err   error
	names []string
}

func (f *fakeSecrets) Access(_ context.Context, name string) (string, error) {
	f.names = append(f.names, name)
	return f.value, f.err
}

type harness struct {
	app     *workflow.App
	out     *bytes.Buffer
	root    string
	tc      *fakeToolchain
	devices *fakeDevices
	serial  *fakeSerial
	config  *glowconfig.Store
	backups *backup.Store
	logs    *monitorlog.Dir
}

// newHarness builds an App over a temporary project whose prompts read input.
// configure adjusts the dependencies before the App is created.
func newHarness(t *testing.T, input string, configure ...func(*workflow.Deps)) *harness {
	t.Helper()
	return newHarnessReader(t, strings.NewReader(input), configure...)
}

func newHarnessReader(t *testing.T, input io.Reader, configure ...func(*workflow.Deps)) *harness {
	t.Helper()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "platformio.ini"), platformioIni)
	writeFile(t, filepath.Join(root, "include", "GlowConfig.h-template"), template)

	proj := &project.Project{Root: root}
	s := settings.Default()

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	log := zerolog.Nop()
	configPath := proj.Path(s.ConfigFile)
	backups := backup.NewStoreWithClock(proj.Path(s.BackupDir), s.BackupPrefix, configPath, now, log)

	h := &harness{
		out:     &bytes.Buffer{},
		root:    root,
		tc:      &fakeToolchain{installed: true, firmware: true},
		devices: &fakeDevices{ports: []device.Descriptor{cp2102, uart}},
		serial:  &fakeSerial{},
		config:  glowconfig.NewStore(configPath, proj.Path(s.TemplateFile), backups, log),
		backups: backups,
		logs:    monitorlog.NewWithClock(proj.Path(s.Monitor.LogDir), now, log),
	}

	d := workflow.Deps{
		Prompter:  prompt.New(input, h.out),
		Project:   proj,
		Settings:  s,
		Config:    h.config,
		Backups:   h.backups,
		Logs:      h.logs,
		Toolchain: h.tc,
		Devices:   h.devices,
		Serial:    h.serial,
		PhaseStep: time.Millisecond,
		Log:       log,
	}
	for _, fn := range configure {
		fn(&d)
	}
	h.app = workflow.New(d)
	return h
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// readConfig returns the live configuration.
func (h *harness) readConfig(t *testing.T) glowconfig.Document {
	t.Helper()
	doc, err := h.config.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	return doc
}

func (h *harness) createConfig(t *testing.T) {
	t.Helper()
	if _, err := h.config.Create(false); err != nil {
		t.Fatal(err)
	}
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func mustLookup(t *testing.T, doc glowconfig.Document, key string) string {
	t.Helper()
	v, ok := glowconfig.Lookup(doc, key)
	if !ok {
		t.Fatalf("%s missing from configuration", key)
	}
	return v
}

var errBuild = errors.New("compilation terminated: LED_DATA_PIN was not declared in this scope")

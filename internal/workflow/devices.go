package workflow

import (
	"context"
	"errors"
	"fmt"

	"glowlight/tools/setup/internal/device"
	"glowlight/tools/setup/internal/glowconfig"
	"glowlight/tools/setup/internal/glowerr"
	"glowlight/tools/setup/internal/progress"
	"glowlight/tools/setup/internal/prompt"
)

var devicesChoices = []prompt.Choice{
	{ID: "scan", Display: "Scan for ESP32 Devices"},
	{ID: "info", Display: "Device Information"},
	{ID: "test", Display: "Test Connection"},
	{ID: "reset", Display: "Reset Device"},
	{ID: "all", Display: "List All Serial Ports"},
	{ID: "back", Display: "Return to Main Menu"},
}

const (
	choiceAllPorts = ":all"
	choiceManual   = ":manual"
)

func (a *App) devicesMenu(ctx context.Context) error {
	for {
		choice, err := a.p.Menu("Devices", devicesChoices)
		if err != nil {
			return back(err)
		}

		switch choice {
		case "scan":
			err = a.ListDevices(false)
		case "all":
			err = a.ListDevices(true)
		case "info":
			err = a.deviceInfo()
		case "test":
			err = a.TestDevice(ctx, "")
		case "reset":
			err = a.ResetDevice(ctx, "")
		case "back":
			return nil
		}

		if err := a.settle(err); err != nil {
			return err
		}
	}
}

// ListDevices prints the detected boards, or every serial port when all is set.
func (a *App) ListDevices(all bool) error {
	list := a.d.Devices.Targets
	title := "ESP32 Devices"
	if all {
		list = a.d.Devices.Scan
		title = "Serial Ports"
	}

	ds, err := list()
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		if all {
			return glowerr.New(glowerr.KindDeviceNotFound, errors.New("no serial ports found"))
		}
		return glowerr.New(glowerr.KindDeviceNotFound, errors.New("no ESP32 devices detected"))
	}

	a.p.Section(fmt.Sprintf("%s (%d)", title, len(ds)))
	for _, d := range ds {
		a.printDescriptor(d)
	}
	return nil
}

func (a *App) printDescriptor(d device.Descriptor) {
	mark := " "
	if d.IsTarget {
		mark = "*"
	}
	a.p.Print("  %s %s\n", mark, d.Port)
	a.p.Print("      Description: %s\n", d.Description)
	a.p.Print("      VID:PID:     %s\n", d.VIDPID())
	if d.IsTarget {
		a.p.Print("      Chip:        %s\n", d.Chip())
	}
	if d.SerialNumber != "" {
		a.p.Print("      Serial:      %s\n", d.SerialNumber)
	}
}

func (a *App) deviceInfo() error {
	port, err := a.SelectPort()
	if err != nil {
		return err
	}
	d, err := a.d.Devices.Info(port)
	if err != nil {
		return err
	}
	a.p.Section("Device Information")
	a.printDescriptor(d)
	a.p.Print("      USB:         %t\n", d.IsUSB)
	return nil
}

// TestDevice opens port (chosen interactively when empty) and drains pending output.
func (a *App) TestDevice(ctx context.Context, port string) error {
	return a.onPort(ctx, port, "Testing connection to %s", a.d.Serial.TestConnection)
}

// ResetDevice toggles DTR/RTS on port (chosen interactively when empty).
func (a *App) ResetDevice(ctx context.Context, port string) error {
	return a.onPort(ctx, port, "Resetting %s", a.d.Serial.Reset)
}

func (a *App) onPort(ctx context.Context, port, msg string, fn func(string) error) error {
	if port == "" {
		var err error
		if port, err = a.SelectPort(); err != nil {
			return err
		}
	}
	return a.withInterrupt(ctx, func(context.Context) error {
		return progress.Spin(a.p.Writer(), fmt.Sprintf(msg, port), func() error {
			return fn(port)
		})
	})
}

// SelectPort picks the board to talk to: the only detected board is used directly,
// several are offered as a choice, and with none the full port list is shown.
func (a *App) SelectPort() (string, error) {
	targets, err := a.d.Devices.Targets()
	if err != nil {
		return "", err
	}

	switch len(targets) {
	case 1:
		a.p.Print("  ✓ Using %s (%s)\n", targets[0].Port, targets[0].Description)
		return targets[0].Port, nil
	case 0:
		a.p.Println("  No ESP32 devices detected")
		return a.choosePort(nil, true)
	default:
		return a.choosePort(targets, false)
	}
}

// choosePort offers ds plus the manual entry. all means ds should be every port and is
// loaded here when nil.
func (a *App) choosePort(ds []device.Descriptor, all bool) (string, error) {
	title := "Detected ESP32 Devices"
	if all {
		title = "All Serial Ports"
		if ds == nil {
			var err error
			if ds, err = a.d.Devices.Scan(); err != nil {
				return "", err
			}
		}
	}

	choices := make([]prompt.Choice, 0, len(ds)+2)
	for _, d := range ds {
		choices = append(choices, prompt.Choice{
			ID:      d.Port,
			Display: fmt.Sprintf("%s - %s [%s]", d.Port, d.Description, d.VIDPID()),
		})
	}
	if !all {
		choices = append(choices, prompt.Choice{ID: choiceAllPorts, Display: "Show all serial ports"})
	}
	choices = append(choices, prompt.Choice{ID: choiceManual, Display: "Enter port manually"})

	id, err := a.p.Menu(title, choices)
	if err != nil {
		return "", err
	}

	switch id {
	case choiceAllPorts:
		return a.choosePort(nil, true)
	case choiceManual:
		port, err := a.p.Ask("Serial port (e.g. /dev/ttyUSB0)", "")
		if err != nil {
			return "", err
		}
		if !glowconfig.ValidatePortPath(port) {
			return "", glowerr.WithHints(
				glowerr.Errorf(glowerr.KindValidation, "invalid serial port %q", port),
				"Use a path like /dev/ttyUSB0, /dev/ttyACM0, /dev/cu.* or COM3",
			)
		}
		return port, nil
	}
	return id, nil
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"glowlight/tools/setup/internal/glowerr"
	"glowlight/tools/setup/internal/prompt"
)

var (
	monitorChoices = []prompt.Choice{
		{ID: "pio", Display: "PlatformIO Monitor"},
		{ID: "native", Display: "Monitor with Log Capture"},
		{ID: "logs", Display: "View Log Files"},
		{ID: "clear", Display: "Clear Log Files"},
		{ID: "back", Display: "Return to Main Menu"},
	}

	baudChoices = []prompt.Choice{
		{ID: "115200", Display: "115200 (default)"},
		{ID: "9600", Display: "9600"},
		{ID: "57600", Display: "57600"},
		{ID: "custom", Display: "Custom"},
	}
)

func (a *App) monitorMenu(ctx context.Context) error {
	for {
		choice, err := a.p.Menu("Serial Monitor", monitorChoices)
		if err != nil {
			return back(err)
		}

		switch choice {
		case "pio", "native":
			var baud int
			if baud, err = a.askBaud(); err == nil {
				err = a.Monitor(ctx, "", baud, choice == "native")
			}
		case "logs":
			err = a.viewLogs()
		case "clear":
			err = a.clearLogs()
		case "back":
			return nil
		}

		if err := a.settle(err); err != nil {
			return err
		}
	}
}

func (a *App) askBaud() (int, error) {
	def := 0
	for i, c := range baudChoices {
		if c.ID == strconv.Itoa(a.d.Settings.MonitorBaud) {
			def = i
		}
	}

	a.p.Section("Baud Rate")
	id, err := a.p.Select("Select baud rate", baudChoices, def)
	if err != nil {
		return 0, err
	}
	if id != "custom" {
		return strconv.Atoi(id)
	}

	for {
		baud, err := a.p.AskInt("Baud rate", a.d.Settings.MonitorBaud)
		if err != nil {
			return 0, err
		}
		if baud > 0 {
			return baud, nil
		}
		a.p.Println("  ✗ Baud rate must be positive")
	}
}

// Monitor streams the board's serial output until interrupted. native reads the port
// directly and captures the session into the log directory; otherwise PlatformIO's
// monitor is attached to the terminal. An empty port is chosen interactively.
func (a *App) Monitor(ctx context.Context, port string, baud int, native bool) error {
	env, err := a.ResolveEnvironment("")
	if err != nil {
		return err
	}
	if port == "" {
		if port, err = a.SelectPort(); err != nil {
			return err
		}
	}
	if baud <= 0 {
		baud = a.d.Settings.MonitorBaud
	}

	if !native {
		return a.monitorEnv(ctx, env, port, baud)
	}

	desc := "n/a"
	if d, err := a.d.Devices.Info(port); err == nil {
		desc = d.Description
	}
	f, err := a.d.Logs.Create(port, desc)
	if err != nil {
		return err
	}
	defer f.Close()

	a.p.Print("Monitoring %s at %d baud (Ctrl+C to stop)\n", port, baud)
	a.p.Print("Logging to %s\n\n", f.Name())
	err = a.withInterrupt(ctx, func(ctx context.Context) error {
		return a.d.Serial.Monitor(ctx, port, baud, a.p.Writer(), f)
	})
	if err != nil && !errors.Is(err, prompt.ErrInterrupted) {
		return err
	}
	a.p.Print("\n  ✓ Session saved to %s\n", f.Name())
	return nil
}

// monitorEnv attaches PlatformIO's monitor until it exits or is interrupted.
func (a *App) monitorEnv(ctx context.Context, env, port string, baud int) error {
	a.p.Print("Starting PlatformIO monitor on %s at %d baud (Ctrl+C to exit)\n", port, baud)
	err := a.withInterrupt(ctx, func(ctx context.Context) error {
		return a.d.Toolchain.Monitor(ctx, env, port, baud)
	})
	if errors.Is(err, prompt.ErrInterrupted) {
		return nil
	}
	return err
}

func (a *App) viewLogs() error {
	files, err := a.d.Logs.List()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		a.p.Print("  No log files in %s\n", a.d.Logs.Path())
		return nil
	}

	choices := make([]prompt.Choice, 0, len(files)+1)
	for _, f := range files {
		choices = append(choices, prompt.Choice{
			ID:      f.Name,
			Display: fmt.Sprintf("%s (%d bytes, %s)", f.Name, f.Size, f.ModTime.Format("2006-01-02 15:04")),
		})
	}
	choices = append(choices, prompt.Choice{ID: "", Display: "Back"})

	name, err := a.p.Menu(fmt.Sprintf("Log Files (%d)", len(files)), choices)
	if err != nil || name == "" {
		return back(err)
	}

	data, err := a.d.Logs.Read(name)
	if err != nil {
		return err
	}
	a.p.Section(name)
	a.p.Print("%s\n", data)
	return nil
}

func (a *App) clearLogs() error {
	files, err := a.d.Logs.List()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		a.p.Println("  No log files to clear")
		return nil
	}

	ok, err := a.p.Confirm(fmt.Sprintf("Delete %d log file(s)?", len(files)), false)
	if err != nil {
		return err
	}
	if !ok {
		return glowerr.New(glowerr.KindCancelled, errors.New("log files kept"))
	}

	n, err := a.d.Logs.Clear()
	if err != nil {
		return err
	}
	a.p.Print("  ✓ Deleted %d log file(s)\n", n)
	return nil
}

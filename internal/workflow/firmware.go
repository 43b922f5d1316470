package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"glowlight/tools/setup/internal/glowerr"
	"glowlight/tools/setup/internal/pioini"
	"glowlight/tools/setup/internal/progress"
	"glowlight/tools/setup/internal/prompt"
)

var firmwareChoices = []prompt.Choice{
	{ID: "build", Display: "Build Firmware"},
	{ID: "flash", Display: "Flash Firmware"},
	{ID: "build_flash", Display: "Build & Flash"},
	{ID: "build_flash_monitor", Display: "Build, Flash & Monitor"},
	{ID: "clean", Display: "Clean Build Files"},
	{ID: "env", Display: "Select Environment"},
	{ID: "back", Display: "Return to Main Menu"},
}

func (a *App) firmwareMenu(ctx context.Context) error {
	for {
		choice, err := a.p.Menu(fmt.Sprintf("Build & Flash (env: %s)", a.env), firmwareChoices)
		if err != nil {
			return back(err)
		}

		switch choice {
		case "build":
			err = a.Build(ctx, "")
		case "flash":
			err = a.Flash(ctx, "", "")
		case "build_flash":
			if err = a.Build(ctx, ""); err == nil {
				err = a.Flash(ctx, "", "")
			}
		case "build_flash_monitor":
			err = a.BuildFlashMonitor(ctx, "", "")
		case "clean":
			err = a.Clean(ctx, "")
		case "env":
			err = a.chooseEnvironment()
		case "back":
			return nil
		}

		if err := a.settle(err); err != nil {
			return err
		}
	}
}

// environments parses platformio.ini.
func (a *App) environments() (*pioini.File, error) {
	if a.d.Project == nil {
		return nil, fmt.Errorf("no project")
	}
	return pioini.ParseFile(a.d.Project.PlatformIOIni())
}

// ResolveEnvironment returns env, or the current environment when env is empty, after
// checking it against platformio.ini. A current environment missing from the file
// falls back to its default_envs. An unreadable platformio.ini skips the check.
func (a *App) ResolveEnvironment(env string) (string, error) {
	explicit := env != ""
	if !explicit {
		env = a.env
	}
	f, err := a.environments()
	if err != nil {
		a.log.Debug().Err(err).Msg("platformio.ini not parsed, environment unchecked")
		return env, nil
	}
	if _, err := f.Find(env); err != nil {
		if !explicit {
			if def, derr := f.Default(); derr == nil {
				a.log.Debug().Str("configured", env).Str("env", def.Name).Msg("using default environment")
				return def.Name, nil
			}
		}
		return "", glowerr.WithHints(err,
			"Available environments: "+strings.Join(f.Names(), ", "))
	}
	return env, nil
}

// SetEnvironment makes env the current environment.
func (a *App) SetEnvironment(env string) error {
	env, err := a.ResolveEnvironment(env)
	if err != nil {
		return err
	}
	a.env = env
	return nil
}

func (a *App) chooseEnvironment() error {
	f, err := a.environments()
	if err != nil {
		return err
	}

	envs := f.Environments()
	if len(envs) == 0 {
		return fmt.Errorf("no [env:...] sections in %s", a.d.Project.PlatformIOIni())
	}
	choices := make([]prompt.Choice, len(envs))
	def := 0
	for i, e := range envs {
		display := e.Name
		if board := e.Option("board"); board != "" {
			display = fmt.Sprintf("%s (%s)", e.Name, board)
		}
		choices[i] = prompt.Choice{ID: e.Name, Display: display}
		if e.Name == a.env {
			def = i
		}
	}

	a.p.Section("Environments")
	env, err := a.p.Select("Select environment", choices, def)
	if err != nil {
		return back(err)
	}
	a.env = env
	a.p.Print("  ✓ Environment: %s\n", env)
	return nil
}

// Build compiles the firmware for env (the current environment when empty).
func (a *App) Build(ctx context.Context, env string) error {
	env, err := a.ResolveEnvironment(env)
	if err != nil {
		return err
	}

	a.p.Print("Building firmware (%s)\n", env)
	return a.withInterrupt(ctx, func(ctx context.Context) error {
		var took time.Duration
		err := progress.Phases(a.p.Writer(), progress.BuildPhases, a.d.PhaseStep, func() error {
			res, err := a.d.Toolchain.Build(ctx, env)
			took = res.Duration
			return err
		})
		if err != nil {
			return err
		}
		a.p.Print("  ✓ Build finished in %s\n", took.Round(100*time.Millisecond))
		return nil
	})
}

// Flash uploads the firmware for env to port, building first when no firmware image
// exists. An empty port is chosen from the connected devices.
func (a *App) Flash(ctx context.Context, env, port string) error {
	env, err := a.ResolveEnvironment(env)
	if err != nil {
		return err
	}

	if !a.d.Toolchain.FirmwareExists(env) {
		a.p.Println("  Firmware not found, building first")
		if err := a.Build(ctx, env); err != nil {
			return err
		}
	}

	if port == "" {
		if port, err = a.SelectPort(); err != nil {
			return err
		}
	}

	a.p.Print("Flashing %s to %s\n", env, port)
	return a.withInterrupt(ctx, func(ctx context.Context) error {
		err := progress.Phases(a.p.Writer(), progress.FlashPhases, a.d.PhaseStep, func() error {
			_, err := a.d.Toolchain.Flash(ctx, env, port)
			return err
		})
		if err != nil {
			return err
		}
		a.p.Print("  ✓ Firmware flashed to %s\n", port)
		return nil
	})
}

// BuildFlashMonitor builds and flashes env, then opens the PlatformIO monitor on the
// flashed port.
func (a *App) BuildFlashMonitor(ctx context.Context, env, port string) error {
	env, err := a.ResolveEnvironment(env)
	if err != nil {
		return err
	}
	if port == "" {
		if port, err = a.SelectPort(); err != nil {
			return err
		}
	}

	if err := a.Build(ctx, env); err != nil {
		return err
	}
	if err := a.Flash(ctx, env, port); err != nil {
		return err
	}
	return a.monitorEnv(ctx, env, port, a.d.Settings.MonitorBaud)
}

// Clean removes the build output for env.
func (a *App) Clean(ctx context.Context, env string) error {
	env, err := a.ResolveEnvironment(env)
	if err != nil {
		return err
	}
	return a.withInterrupt(ctx, func(ctx context.Context) error {
		return progress.Spin(a.p.Writer(), fmt.Sprintf("Cleaning build files (%s)", env), func() error {
			_, err := a.d.Toolchain.Clean(ctx, env)
			return err
		})
	})
}

// Install installs PlatformIO unless it is already available.
func (a *App) Install(ctx context.Context) error {
	return a.withInterrupt(ctx, func(ctx context.Context) error {
		return progress.Spin(a.p.Writer(), "Installing PlatformIO (this can take several minutes)", func() error {
			return a.d.Toolchain.Install(ctx)
		})
	})
}

// Package workflow runs the interactive setup menus: configuration, build and flash,
// device management and the serial monitor. Every operation reports failures through
// the prompter and returns to the enclosing menu.
package workflow

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync/atomic"
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
	"glowlight/tools/setup/internal/secrets"
	"glowlight/tools/setup/internal/settings"
	"glowlight/tools/setup/internal/toolchain"
)

// DefaultPhaseStep paces the simulated flash progress bar.
const DefaultPhaseStep = 2 * time.Second

// Toolchain drives PlatformIO.
type Toolchain interface {
	IsInstalled(ctx context.Context) bool
	Install(ctx context.Context) error
	Version(ctx context.Context) (string, error)
	Build(ctx context.Context, env string) (toolchain.Result, error)
	Flash(ctx context.Context, env, port string) (toolchain.Result, error)
	Clean(ctx context.Context, env string) (toolchain.Result, error)
	Monitor(ctx context.Context, env, port string, baud int) error
	FirmwareExists(env string) bool
}

// Devices enumerates serial ports.
type Devices interface {
	Scan() ([]device.Descriptor, error)
	Targets() ([]device.Descriptor, error)
	Info(port string) (device.Descriptor, error)
}

// SerialPort talks to a board directly.
type SerialPort interface {
	Reset(port string) error
	TestConnection(port string) error
	Monitor(ctx context.Context, port string, baud int, out, capture io.Writer) error
}

// Ignore maintains the repository's .gitignore.
type Ignore interface {
	IsRepo() bool
	IsTracked(path string) bool
	NeedsIgnoreUpdate() (bool, error)
	UpdateIgnore() ([]git.Section, error)
}

// Deps wires the App. Git and Secrets are optional.
type Deps struct {
	Prompter  *prompt.Prompter
	Project   *project.Project
	Settings  *settings.Settings
	Config    *glowconfig.Store
	Backups   *backup.Store
	Logs      *monitorlog.Dir
	Toolchain Toolchain
	Devices   Devices
	Serial    SerialPort
	Git       Ignore
	Secrets   secrets.Source

	// Interrupts cancels the running operation. Prompts observe the same channel.
	Interrupts <-chan os.Signal
	PhaseStep  time.Duration
	Log        zerolog.Logger
}

// App is the interactive setup wizard.
type App struct {
	d   Deps
	p   *prompt.Prompter
	env string
	log zerolog.Logger
}

// New creates the wizard.
func New(d Deps) *App {
	if d.Settings == nil {
		d.Settings = settings.Default()
	}
	if d.PhaseStep <= 0 {
		d.PhaseStep = DefaultPhaseStep
	}
	return &App{
		d:   d,
		p:   d.Prompter,
		env: d.Settings.Environment,
		log: d.Log.With().Str("component", "workflow").Logger(),
	}
}

// Environment returns the PlatformIO environment used for build, flash and monitor.
func (a *App) Environment() string {
	return a.env
}

var mainChoices = []prompt.Choice{
	{ID: "config", Display: "Configuration"},
	{ID: "firmware", Display: "Build & Flash"},
	{ID: "devices", Display: "Devices"},
	{ID: "monitor", Display: "Serial Monitor"},
	{ID: "exit", Display: "Exit"},
}

// Run shows the banner, performs the startup checks and loops over the main menu
// until the user exits or input ends.
func (a *App) Run(ctx context.Context) error {
	a.banner()

	if err := a.settle(a.Startup(ctx)); err != nil {
		return a.finish(err)
	}

	for {
		choice, err := a.p.Menu("Main Menu", mainChoices)
		if errors.Is(err, prompt.ErrInterrupted) {
			quit, cerr := a.p.Confirm("Exit GlowLight setup?", false)
			if cerr != nil || quit {
				return a.finish(nil)
			}
			continue
		}
		if err != nil {
			return a.finish(err)
		}

		switch choice {
		case "config":
			err = a.configMenu(ctx)
		case "firmware":
			err = a.firmwareMenu(ctx)
		case "devices":
			err = a.devicesMenu(ctx)
		case "monitor":
			err = a.monitorMenu(ctx)
		case "exit":
			return a.finish(nil)
		}

		if err := a.settle(err); err != nil {
			return a.finish(err)
		}
	}
}

func (a *App) finish(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		a.p.Println("\nGoodbye!")
		return nil
	}
	return err
}

func (a *App) banner() {
	a.p.Println("╔══════════════════════════════════════════════════════════╗")
	a.p.Println("║              GlowLight - Setup Wizard                    ║")
	a.p.Println("╚══════════════════════════════════════════════════════════╝")
	if a.d.Project != nil {
		a.p.Print("Project root: %s\n", a.d.Project.Root)
	}
}

// Startup keeps .gitignore complete, offers to install PlatformIO and warns about
// missing project files.
func (a *App) Startup(ctx context.Context) error {
	a.p.Println("\n─── Checking environment ───")

	if a.d.Git != nil && a.d.Git.IsRepo() {
		needs, err := a.d.Git.NeedsIgnoreUpdate()
		if err != nil {
			return err
		}
		if needs {
			added, err := a.d.Git.UpdateIgnore()
			if err != nil {
				return err
			}
			for _, s := range added {
				a.p.Print("  ✓ Added %s entries to .gitignore\n", strings.TrimPrefix(s.Header, "# "))
			}
		} else {
			a.p.Println("  ✓ .gitignore up to date")
		}
		if cfg := a.d.Settings.ConfigFile; a.d.Git.IsTracked(cfg) {
			a.p.Print("  ⚠ %s is committed, so .gitignore does not hide it\n", cfg)
			a.p.Print("    Run: git rm --cached %s\n", cfg)
		}
	}

	if a.d.Project != nil {
		for _, part := range a.d.Project.MissingParts() {
			a.p.Print("  ⚠ Missing %s\n", part)
		}
	}

	if a.d.Toolchain.IsInstalled(ctx) {
		if v, err := a.d.Toolchain.Version(ctx); err == nil {
			a.p.Print("  ✓ %s\n", v)
		}
		return nil
	}

	install, err := a.p.Confirm("PlatformIO is not installed. Install it now?", true)
	if err != nil {
		return err
	}
	if !install {
		a.p.Println("  ⚠ Build, flash and monitor need PlatformIO")
		return nil
	}
	return a.Install(ctx)
}

// settle reports err and swallows it so the enclosing menu keeps running. Only the
// end of input is passed on.
func (a *App) settle(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return err
	case errors.Is(err, prompt.ErrInterrupted):
		a.p.Println("  Cancelled")
		return nil
	case glowerr.Is(err, glowerr.KindCancelled):
		a.p.Print("  %v\n", err)
		return nil
	}

	a.log.Debug().Err(err).Str("kind", string(glowerr.KindOf(err))).Msg("operation failed")
	a.p.Println(glowerr.Box(err))
	return nil
}

// back turns an interrupt at a menu prompt into a plain return to the parent menu.
func back(err error) error {
	if errors.Is(err, prompt.ErrInterrupted) {
		return nil
	}
	return err
}

// withInterrupt runs fn with a context that is cancelled by the next interrupt. An
// interrupted failure is reported as prompt.ErrInterrupted.
func (a *App) withInterrupt(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var interrupted atomic.Bool
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-a.d.Interrupts:
			interrupted.Store(true)
			cancel()
		case <-done:
		}
	}()

	err := fn(ctx)
	if err != nil && interrupted.Load() {
		return prompt.ErrInterrupted
	}
	return err
}

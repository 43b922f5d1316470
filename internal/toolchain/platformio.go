// Package toolchain drives the PlatformIO command line: installation, build, flash,
// clean and monitor.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"glowlight/tools/setup/internal/glowerr"
)

const (
	// FallbackExecutable is used when no PlatformIO virtualenv is found.
	FallbackExecutable = "pio"

	versionTimeout        = 5 * time.Second
	DefaultInstallTimeout = 10 * time.Minute
)

// Options configures a PlatformIO instance.
type Options struct {
	ProjectDir     string
	Executable     string // empty means auto-detect
	Home           string // user home holding .platformio
	InstallerURL   string
	InstallTimeout time.Duration
	Python         string
}

// Fetcher downloads the installer script and returns its local path.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Result is the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Combined returns stdout followed by stderr.
func (r Result) Combined() string {
	return r.Stdout + r.Stderr
}

// PlatformIO runs pio commands for one project.
type PlatformIO struct {
	opts    Options
	runner  CommandRunner
	fetcher Fetcher
	log     zerolog.Logger
}

// New creates a PlatformIO driver using os/exec and the official installer URL.
func New(opts Options, log zerolog.Logger) *PlatformIO {
	url := opts.InstallerURL
	if url == "" {
		url = DefaultInstallerURL
	}
	return NewWithRunner(opts, &ExecRunner{}, NewDownloader(url), log)
}

// NewWithRunner creates a driver with a custom command runner and fetcher (for testing).
func NewWithRunner(opts Options, runner CommandRunner, fetcher Fetcher, log zerolog.Logger) *PlatformIO {
	if opts.InstallTimeout <= 0 {
		opts.InstallTimeout = DefaultInstallTimeout
	}
	if opts.Python == "" {
		opts.Python = "python3"
	}
	return &PlatformIO{
		opts:    opts,
		runner:  runner,
		fetcher: fetcher,
		log:     log.With().Str("component", "toolchain").Logger(),
	}
}

// VirtualenvExecutable is where the official installer puts the platformio binary.
func (p *PlatformIO) VirtualenvExecutable() string {
	return filepath.Join(p.opts.Home, ".platformio", "penv", "bin", "platformio")
}

// Executable returns the PlatformIO command to invoke.
func (p *PlatformIO) Executable() string {
	if p.opts.Executable != "" {
		return p.opts.Executable
	}
	if p.opts.Home != "" && fileExists(p.VirtualenvExecutable()) {
		return p.VirtualenvExecutable()
	}
	return FallbackExecutable
}

// IsInstalled reports whether PlatformIO can be run.
func (p *PlatformIO) IsInstalled(ctx context.Context) bool {
	if p.opts.Executable == "" && p.opts.Home != "" && fileExists(p.VirtualenvExecutable()) {
		return true
	}
	_, err := p.Version(ctx)
	return err == nil
}

// Version returns the output of "pio --version".
func (p *PlatformIO) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	res, err := p.run(ctx, nil, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Install downloads and runs the official installer unless PlatformIO is already there.
func (p *PlatformIO) Install(ctx context.Context) error {
	if p.IsInstalled(ctx) {
		p.log.Debug().Msg("platformio already installed")
		return nil
	}

	script, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return glowerr.WithHints(
			glowerr.New(glowerr.KindToolMissing, fmt.Errorf("fetch platformio installer: %w", err)),
			"Verify internet connection for package downloads",
		)
	}
	defer os.Remove(script)

	ctx, cancel := context.WithTimeout(ctx, p.opts.InstallTimeout)
	defer cancel()

	start := time.Now()
	_, stderr, err := p.runner.Output(ctx, p.opts.ProjectDir, p.opts.Python, script)
	p.log.Debug().Str("python", p.opts.Python).Dur("duration", time.Since(start)).Err(err).Msg("platformio installer finished")
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return glowerr.WithHints(
			glowerr.Errorf(glowerr.KindToolMissing, "%s not found", p.opts.Python),
			"Install Python 3 and re-run the setup",
		)
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return glowerr.Errorf(glowerr.KindToolFailed, "platformio installation timed out after %s", p.opts.InstallTimeout)
	case err != nil:
		return glowerr.New(glowerr.KindToolFailed, fmt.Errorf("platformio installer: %w%s", err, tail(string(stderr))))
	}

	if !p.IsInstalled(context.WithoutCancel(ctx)) {
		return glowerr.WithHints(
			glowerr.Errorf(glowerr.KindToolMissing, "platformio installation completed but verification failed"),
			"You may need to restart your terminal or add PlatformIO to your PATH",
		)
	}
	return nil
}

// Build compiles the firmware. An empty env builds every environment.
func (p *PlatformIO) Build(ctx context.Context, env string) (Result, error) {
	args := []string{"run"}
	if env != "" {
		args = append(args, "--environment", env)
	}
	return p.run(ctx, BuildHints, args...)
}

// Flash uploads the firmware. An empty port lets PlatformIO pick one.
func (p *PlatformIO) Flash(ctx context.Context, env, port string) (Result, error) {
	args := []string{"run", "--target", "upload"}
	if env != "" {
		args = append(args, "--environment", env)
	}
	if port != "" {
		args = append(args, "--upload-port", port)
	}
	return p.run(ctx, FlashHints, args...)
}

// Clean removes build artifacts.
func (p *PlatformIO) Clean(ctx context.Context, env string) (Result, error) {
	args := []string{"run", "--target", "clean"}
	if env != "" {
		args = append(args, "--environment", env)
	}
	return p.run(ctx, nil, args...)
}

// MonitorArgs returns the arguments of a "pio device monitor" invocation.
func MonitorArgs(env, port string, baud int) []string {
	args := []string{"device", "monitor"}
	if env != "" {
		args = append(args, "--environment", env)
	}
	args = append(args, "--baud", strconv.Itoa(baud))
	if port != "" {
		args = append(args, "--port", port)
	}
	return args
}

// Monitor runs PlatformIO's serial monitor attached to the terminal until it exits
// or ctx is cancelled.
func (p *PlatformIO) Monitor(ctx context.Context, env, port string, baud int) error {
	args := MonitorArgs(env, port, baud)
	p.log.Debug().Strs("args", args).Msg("attach platformio monitor")

	err := p.runner.Attach(ctx, p.opts.ProjectDir, p.Executable(), args...)
	switch {
	case err == nil, ctx.Err() != nil:
		return nil
	case errors.Is(err, exec.ErrNotFound):
		return notInstalled(p.Executable())
	default:
		return glowerr.New(glowerr.KindToolFailed, fmt.Errorf("pio device monitor: %w", err))
	}
}

// FirmwarePath returns where a build of env leaves its image.
func (p *PlatformIO) FirmwarePath(env string) string {
	return filepath.Join(p.opts.ProjectDir, ".pio", "build", env, "firmware.bin")
}

// FirmwareExists reports whether env has been built.
func (p *PlatformIO) FirmwareExists(env string) bool {
	return fileExists(p.FirmwarePath(env))
}

func (p *PlatformIO) run(ctx context.Context, hints func(string) []string, args ...string) (Result, error) {
	exe := p.Executable()
	start := time.Now()
	stdout, stderr, err := p.runner.Output(ctx, p.opts.ProjectDir, exe, args...)
	res := Result{Stdout: string(stdout), Stderr: string(stderr), Duration: time.Since(start)}

	p.log.Debug().
		Str("exe", exe).
		Strs("args", args).
		Dur("duration", res.Duration).
		Err(err).
		Msg("platformio command finished")

	if err == nil {
		return res, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return res, notInstalled(exe)
	}

	failure := glowerr.New(glowerr.KindToolFailed,
		fmt.Errorf("pio %s: %w%s", strings.Join(args, " "), err, tail(res.Stderr)))
	if hints != nil {
		return res, glowerr.WithHints(failure, hints(res.Combined())...)
	}
	return res, failure
}

func notInstalled(exe string) error {
	return glowerr.WithHints(
		glowerr.Errorf(glowerr.KindToolMissing, "%s not found", exe),
		"Install PlatformIO from the main menu or run: glowsetup install",
	)
}

// tail returns the last non-empty line of s, prefixed for appending to an error.
func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return ""
	}
	return ": " + last
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

package workflow_test

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"glowlight/tools/setup/internal/prompt"
	"glowlight/tools/setup/internal/workflow"
)

func TestRun_Exit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"exit entry", "5\n"},
		{"end of input", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, tt.input)
			if err := h.app.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			out := h.out.String()
			for _, want := range []string{"GlowLight - Setup Wizard", "PlatformIO Core, version 6.1.15", "[Main Menu]", "Goodbye!"} {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestRun_StartupInstallsPlatformIO(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lines("y", "5"))
	h.tc.installed = false

	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if calls := h.tc.Calls(); len(calls) != 1 || calls[0] != "install" {
		t.Errorf("toolchain calls = %v, want [install]", calls)
	}
	if !strings.Contains(h.out.String(), "✓ Installing PlatformIO") {
		t.Errorf("output missing install confirmation:\n%s", h.out.String())
	}
}

func TestRun_StartupDeclinesInstall(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lines("n", "5"))
	h.tc.installed = false

	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if calls := h.tc.Calls(); len(calls) != 0 {
		t.Errorf("toolchain calls = %v, want none", calls)
	}
	if !strings.Contains(h.out.String(), "need PlatformIO") {
		t.Errorf("output missing warning:\n%s", h.out.String())
	}
}

func TestRun_StartupUpdatesGitignore(t *testing.T) {
	t.Parallel()

	ignore := &fakeIgnore{}
	h := newHarness(t, "5\n", func(d *workflow.Deps) { d.Git = ignore })

	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !ignore.updated {
		t.Error("UpdateIgnore() not called")
	}
	out := h.out.String()
	for _, want := range []string{"Added PlatformIO entries", "Added GlowLight Configuration entries"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_StartupWarnsAboutTrackedConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tracked []string
		warn    bool
	}{
		{name: "committed configuration", tracked: []string{"include/GlowConfig.h"}, warn: true},
		{name: "untracked configuration", tracked: []string{"platformio.ini"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ignore := &fakeIgnore{updated: true, tracked: tt.tracked}
			h := newHarness(t, "5\n", func(d *workflow.Deps) { d.Git = ignore })

			if err := h.app.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			out := h.out.String()
			if got := strings.Contains(out, "git rm --cached include/GlowConfig.h"); got != tt.warn {
				t.Errorf("warning shown = %v, want %v:\n%s", got, tt.warn, out)
			}
		})
	}
}

func TestRun_StartupWarnsAboutMissingParts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "5\n")
	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(h.out.String(), "⚠ Missing src/main.cpp") {
		t.Errorf("output missing warning:\n%s", h.out.String())
	}
}

func TestRun_FailureReturnsToMenu(t *testing.T) {
	t.Parallel()

	// Build & Flash -> Build (fails) -> back -> Exit
	h := newHarness(t, lines("2", "1", "7", "5"))
	h.tc.buildErr = errBuild

	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := h.out.String()
	for _, want := range []string{"ERROR", "compilation terminated", "Check your GlowConfig.h configuration", "Goodbye!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "[Main Menu]"); n != 2 {
		t.Errorf("main menu shown %d times, want 2", n)
	}
}

func TestRun_InterruptAtMainMenuAsksBeforeExit(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()

	sigs := make(chan os.Signal, 1)
	sigs <- syscall.SIGINT

	h := newHarnessReader(t, pr, func(d *workflow.Deps) {
		d.Prompter.SetInterrupts(sigs)
		d.Interrupts = sigs
	})

	go func() {
		time.Sleep(50 * time.Millisecond)
		io.WriteString(pw, "y\n")
	}()

	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := h.out.String()
	if !strings.Contains(out, "Exit GlowLight setup?") || !strings.Contains(out, "Goodbye!") {
		t.Errorf("output missing exit confirmation:\n%s", out)
	}
}

func TestBuild_Interrupted(t *testing.T) {
	t.Parallel()

	sigs := make(chan os.Signal, 1)
	h := newHarness(t, "", func(d *workflow.Deps) { d.Interrupts = sigs })
	h.tc.block = true

	sigs <- syscall.SIGINT
	err := h.app.Build(context.Background(), "")
	if !errors.Is(err, prompt.ErrInterrupted) {
		t.Errorf("Build() error = %v, want ErrInterrupted", err)
	}
}

// Package main provides the GlowLight setup tool. Without a subcommand it runs
// the interactive wizard; the subcommands expose each step for scripting.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"glowlight/tools/setup/internal/backup"
	"glowlight/tools/setup/internal/device"
	"glowlight/tools/setup/internal/git"
	"glowlight/tools/setup/internal/glowconfig"
	"glowlight/tools/setup/internal/glowerr"
	"glowlight/tools/setup/internal/logging"
	"glowlight/tools/setup/internal/monitorlog"
	"glowlight/tools/setup/internal/project"
	"glowlight/tools/setup/internal/prompt"
	"glowlight/tools/setup/internal/secrets"
	"glowlight/tools/setup/internal/settings"
	"glowlight/tools/setup/internal/toolchain"
	"glowlight/tools/setup/internal/workflow"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	projectFlag string
	verboseFlag bool
	envFlag     string
	secretFlag  string
)

var rootCmd = &cobra.Command{
	Use:           "glowsetup",
	Short:         "Configure, build and flash GlowLight firmware",
	Long:          "Interactive setup for GlowLight on ESP32-C3: configuration, PlatformIO builds, flashing and serial monitoring.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *workflow.App) error {
			return a.Run(ctx)
		})
	},
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "C", "", "Directory inside the GlowLight project (default: working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Write debug logs to stderr")
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "", "PlatformIO environment (default from settings)")
	rootCmd.PersistentFlags().StringVar(&secretFlag, "mesh-password-secret", "", "Secret Manager resource holding the mesh password")
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\nUnexpected error: %v\n\n%s\n", r, debug.Stack())
			fmt.Fprintf(os.Stderr, "Please report this at: %s\n", glowerr.IssuesURL)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, glowerr.Box(err))
		os.Exit(1)
	}
}

// withApp wires the wizard for the project around the working directory and
// runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *workflow.App) error) error {
	proj, err := findProject()
	if err != nil {
		return glowerr.WithHints(glowerr.New(glowerr.KindNotFound, err),
			"Run glowsetup from inside the GlowLight repository",
			"Or point to it with --project <dir>")
	}

	s, err := settings.Load(proj.Root)
	if err != nil {
		return glowerr.New(glowerr.KindValidation, err)
	}
	if secretFlag != "" {
		s.Mesh.PasswordSecret = secretFlag
	}

	opts := logging.Options{Level: s.Log.Level, Format: s.Log.Format}
	if verboseFlag {
		opts.Level = zerolog.LevelDebugValue
	}
	log := logging.New(opts)
	log.Debug().Str("root", proj.Root).Str("version", version).Msg("project found")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	ui := prompt.New(os.Stdin, cmd.OutOrStdout())
	ui.SetInterrupts(sigs)
	ui.SetTerminal(int(os.Stdin.Fd()))

	configPath := proj.Path(s.ConfigFile)
	backups := backup.NewStore(proj.Path(s.BackupDir), s.BackupPrefix, configPath, log)

	home, _ := os.UserHomeDir()
	pio := toolchain.New(toolchain.Options{
		ProjectDir:     proj.Root,
		Executable:     s.PlatformIO.Executable,
		Home:           home,
		InstallerURL:   s.PlatformIO.InstallerURL,
		InstallTimeout: s.InstallTimeout(),
	}, log)

	d := workflow.Deps{
		Prompter:   ui,
		Project:    proj,
		Settings:   s,
		Config:     glowconfig.NewStore(configPath, proj.Path(s.TemplateFile), backups, log),
		Backups:    backups,
		Logs:       monitorlog.New(proj.Path(s.Monitor.LogDir), log),
		Toolchain:  pio,
		Devices:    device.NewEnumerator(log),
		Serial:     device.NewSerial(log),
		Git:        git.NewRepository(proj.Root, git.DefaultSections, log),
		Interrupts: sigs,
		Log:        log,
	}
	if s.Mesh.PasswordSecret != "" {
		sm := secrets.NewSecretManager()
		defer sm.Close()
		d.Secrets = sm
	}

	app := workflow.New(d)
	if envFlag != "" {
		if err := app.SetEnvironment(envFlag); err != nil {
			return err
		}
	}

	return fn(cmd.Context(), app)
}

func findProject() (*project.Project, error) {
	if projectFlag == "" {
		return project.Find()
	}
	return project.FindFrom(projectFlag)
}

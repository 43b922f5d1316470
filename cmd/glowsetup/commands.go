package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"glowlight/tools/setup/internal/glowconfig"
	"glowlight/tools/setup/internal/glowerr"
	"glowlight/tools/setup/internal/workflow"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Create, change or show GlowConfig.h",
	}

	configCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Create the configuration interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *workflow.App) error {
				return a.CreateConfig(ctx)
			})
		},
	}

	configApplyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Set pins or mesh values without prompting",
		Example: "  glowsetup config apply --led 3 --button 4\n" +
			"  glowsetup config apply --mesh on --mesh-name Garden --mesh-password s3cretpass",
		Args: cobra.NoArgs,
		RunE: runConfigApply,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			full, _ := cmd.Flags().GetBool("full")
			return withApp(cmd, func(_ context.Context, a *workflow.App) error {
				_, err := a.ShowConfig(full)
				return err
			})
		},
	}

	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Manage configuration backups",
	}

	backupCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Back up the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *workflow.App) error {
				_, err := a.CreateBackup()
				return err
			})
		},
	}

	backupListCmd = &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, func(_ context.Context, a *workflow.App) error {
				return a.ListBackups(limit)
			})
		},
	}

	backupRestoreCmd = &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a backup over the current configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ context.Context, a *workflow.App) error {
				return a.RestoreBackup(args[0])
			})
		},
	}

	devicesCmd = &cobra.Command{
		Use:   "devices",
		Short: "List connected ESP32 boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return withApp(cmd, func(_ context.Context, a *workflow.App) error {
				return a.ListDevices(all)
			})
		},
	}

	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Install PlatformIO Core",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *workflow.App) error {
				return a.Install(ctx)
			})
		},
	}

	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Compile the firmware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *workflow.App) error {
				return a.Build(ctx, "")
			})
		},
	}

	flashCmd = &cobra.Command{
		Use:   "flash",
		Short: "Upload the firmware, building it first when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			port, _ := cmd.Flags().GetString("port")
			return withApp(cmd, func(ctx context.Context, a *workflow.App) error {
				return a.Flash(ctx, "", port)
			})
		},
	}

	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove build artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *workflow.App) error {
				return a.Clean(ctx, "")
			})
		},
	}

	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Open the serial monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			port, _ := cmd.Flags().GetString("port")
			baud, _ := cmd.Flags().GetInt("baud")
			native, _ := cmd.Flags().GetBool("native")
			return withApp(cmd, func(ctx context.Context, a *workflow.App) error {
				return a.Monitor(ctx, port, baud, native)
			})
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Reset the board over DTR/RTS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			port, _ := cmd.Flags().GetString("port")
			return withApp(cmd, func(ctx context.Context, a *workflow.App) error {
				return a.ResetDevice(ctx, port)
			})
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the tool version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "glowsetup %s\n", version)
		},
	}
)

func init() {
	configApplyCmd.Flags().Int("led", 0, "LED data GPIO")
	configApplyCmd.Flags().Int("button", 0, "Button GPIO")
	configApplyCmd.Flags().Int("sda", 0, "Distance sensor SDA GPIO")
	configApplyCmd.Flags().Int("scl", 0, "Distance sensor SCL GPIO")
	configApplyCmd.Flags().Bool("allow-reserved", false, "Accept GPIOs reserved for boot and flash")
	configApplyCmd.Flags().String("mesh", "", "Mesh networking: on or off")
	configApplyCmd.Flags().String("mesh-name", "", "Mesh network name")
	configApplyCmd.Flags().String("mesh-password", "", "Mesh password (at least 8 characters)")
	configShowCmd.Flags().Bool("full", false, "Print the whole file")
	configCmd.AddCommand(configCreateCmd, configApplyCmd, configShowCmd)

	backupListCmd.Flags().Int("limit", 0, "Show at most this many backups (0 for all)")
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)

	devicesCmd.Flags().Bool("all", false, "List every serial port")

	for _, c := range []*cobra.Command{flashCmd, monitorCmd, resetCmd} {
		c.Flags().StringP("port", "p", "", "Serial port (default: detected board)")
	}
	monitorCmd.Flags().IntP("baud", "b", 0, "Baud rate (default from settings)")
	monitorCmd.Flags().Bool("native", false, "Use the built-in monitor and save a session log")

	rootCmd.AddCommand(configCmd, backupCmd, devicesCmd, installCmd, buildCmd,
		flashCmd, cleanCmd, monitorCmd, resetCmd, versionCmd)
}

// runConfigApply patches only the values whose flags were given.
func runConfigApply(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	allowReserved, _ := flags.GetBool("allow-reserved")

	return withApp(cmd, func(ctx context.Context, a *workflow.App) error {
		var (
			pins *glowconfig.PinAssignment
			mesh *glowconfig.MeshSettings
		)

		if flags.Changed("led") || flags.Changed("button") || flags.Changed("sda") || flags.Changed("scl") {
			p, err := a.CurrentPins()
			if err != nil {
				return err
			}
			for name, dst := range map[string]*int{"led": &p.LEDData, "button": &p.Button, "sda": &p.SDA, "scl": &p.SCL} {
				if flags.Changed(name) {
					*dst, _ = flags.GetInt(name)
				}
			}
			pins = &p
		}

		if flags.Changed("mesh") || flags.Changed("mesh-name") || flags.Changed("mesh-password") {
			m, err := a.CurrentMesh()
			if err != nil {
				return err
			}
			if flags.Changed("mesh") {
				v, _ := flags.GetString("mesh")
				on, err := parseSwitch(v)
				if err != nil {
					return err
				}
				m.Enabled = on
			}
			if flags.Changed("mesh-name") {
				m.Name, _ = flags.GetString("mesh-name")
			}
			if flags.Changed("mesh-password") {
				m.Password, _ = flags.GetString("mesh-password")
			}
			mesh = &m
		}

		if pins == nil && mesh == nil {
			return glowerr.Errorf(glowerr.KindValidation, "nothing to apply: pass pin or mesh flags")
		}
		return a.ApplyValues(ctx, mesh, pins, allowReserved)
	})
}

func parseSwitch(v string) (bool, error) {
	switch v {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, glowerr.Errorf(glowerr.KindValidation, "--mesh must be on or off, got %q", v)
	}
	return on, nil
}

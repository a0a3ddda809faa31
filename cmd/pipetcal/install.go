package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	daemonutils "github.com/volumetria/pipetcal/pkg/utils/daemon"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "install",
		Short:   "Install the pipetcal daemon as a systemd service",
		GroupID: gAdvanced,
		Long: `Install the pipetcal daemon as a systemd service.

This makes pipetcal run in the background and start on boot, reading the file
given by --config. Reload it with 'systemctl reload pipetcal' after editing the
config. You must run this command as root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Fail early on a config the daemon would reject.
			if _, _, err := localEngine(); err != nil {
				return err
			}

			if err := daemonutils.NewInstaller().Install(configPath); err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %w", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()
			cmd.Printf("systemd will use the current binary (%s), so do not move it. If it is moved or deleted, run `pipetcal install' again.\n", exePath)
			return nil
		},
	}
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Remove the pipetcal systemd service",
		GroupID: gAdvanced,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := daemonutils.NewInstaller().Uninstall(); err != nil {
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %w", err)
			}

			cmd.Printf("Successfully uninstalled. Your config is kept in %s.\n", configPath)
			return nil
		},
	}
}

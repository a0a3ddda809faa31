// Package daemon installs the pipetcal daemon as a systemd service.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	ServiceName     = "pipetcal.service"
	DefaultUnitPath = "/etc/systemd/system/" + ServiceName
)

const unitTemplate = `[Unit]
Description=pipetcal gravimetric calibration service
After=network.target

[Service]
ExecStart=/path/to/pipetcal daemon --config /path/to/config
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure

[Install]
WantedBy=multi-user.target
`

// Unit renders the systemd unit running exePath with configPath.
func Unit(exePath, configPath string) string {
	return strings.NewReplacer(
		"/path/to/pipetcal", exePath,
		"/path/to/config", configPath,
	).Replace(unitTemplate)
}

// Installer writes the unit file and drives systemctl.
type Installer struct {
	UnitPath string
	// Systemctl runs systemctl with args.
	Systemctl func(args ...string) error
}

func NewInstaller() *Installer {
	return &Installer{
		UnitPath: DefaultUnitPath,
		Systemctl: func(args ...string) error {
			out, err := exec.Command("systemctl", args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("systemctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
			}
			return nil
		},
	}
}

// Install writes the unit for the current executable and starts it.
func (i *Installer) Install(configPath string) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}
	configPath, err = filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the config: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)
	logrus.Infof("writing systemd unit to %s", i.UnitPath)

	// mkdir -p
	err = os.MkdirAll(filepath.Dir(i.UnitPath), 0755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(i.UnitPath), err)
	}

	// warn if the file already exists
	_, err = os.Stat(i.UnitPath)
	if err == nil {
		logrus.Warnf("%s already exists, overwriting", i.UnitPath)
	}

	err = os.WriteFile(i.UnitPath, []byte(Unit(exePath, configPath)), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", i.UnitPath, err)
	}

	logrus.Infof("starting pipetcal")

	if err := i.Systemctl("daemon-reload"); err != nil {
		return err
	}
	return i.Systemctl("enable", "--now", ServiceName)
}

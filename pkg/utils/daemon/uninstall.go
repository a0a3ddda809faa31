package daemon

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Uninstall stops the service and removes its unit. A missing unit is not
// an error.
func (i *Installer) Uninstall() error {
	// if the file doesn't exist, there is nothing to stop
	_, err := os.Stat(i.UnitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", i.UnitPath, err)
	}

	logrus.Infof("stopping pipetcal")

	if err := i.Systemctl("disable", "--now", ServiceName); err != nil {
		return fmt.Errorf("failed to stop %s: %w. Are you root?", ServiceName, err)
	}

	logrus.Infof("removing systemd unit")

	err = os.Remove(i.UnitPath)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w. Are you root?", i.UnitPath, err)
	}

	return i.Systemctl("daemon-reload")
}

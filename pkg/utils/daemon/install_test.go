package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeInstaller(t *testing.T) (*Installer, *[]string) {
	t.Helper()
	var calls []string
	return &Installer{
		UnitPath: filepath.Join(t.TempDir(), "systemd", ServiceName),
		Systemctl: func(args ...string) error {
			calls = append(calls, strings.Join(args, " "))
			return nil
		},
	}, &calls
}

func TestUnit(t *testing.T) {
	u := Unit("/usr/local/bin/pipetcal", "/etc/pipetcal.json")
	assert.Contains(t, u, "ExecStart=/usr/local/bin/pipetcal daemon --config /etc/pipetcal.json\n")
	assert.Contains(t, u, "ExecReload=/bin/kill -HUP $MAINPID")
}

func TestInstallUninstall(t *testing.T) {
	i, calls := fakeInstaller(t)

	require.NoError(t, i.Install("pipetcal.json"))
	b, err := os.ReadFile(i.UnitPath)
	require.NoError(t, err)
	exe, err := os.Executable()
	require.NoError(t, err)
	assert.Contains(t, string(b), "ExecStart="+exe)
	assert.Equal(t, []string{"daemon-reload", "enable --now pipetcal.service"}, *calls)

	*calls = nil
	require.NoError(t, i.Uninstall())
	assert.NoFileExists(t, i.UnitPath)
	assert.Equal(t, []string{"disable --now pipetcal.service", "daemon-reload"}, *calls)

	*calls = nil
	require.NoError(t, i.Uninstall())
	assert.Empty(t, *calls)
}

func TestUninstallSystemctlFailure(t *testing.T) {
	i, _ := fakeInstaller(t)
	require.NoError(t, i.Install("pipetcal.json"))

	i.Systemctl = func(...string) error { return errors.New("access denied") }
	err := i.Uninstall()
	assert.ErrorContains(t, err, "access denied")
	assert.FileExists(t, i.UnitPath)
}

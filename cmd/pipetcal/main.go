package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/volumetria/pipetcal/pkg/client"
)

const envPrefix = "PIPETCAL"

var (
	logLevel   = "info"
	configPath = "/etc/pipetcal.json"
	daemonAddr = "127.0.0.1:5000"
	remote     = false
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

func setupLogger(w io.Writer) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(w)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

// bindEnv fills every flag the user did not pass from its PIPETCAL_*
// environment variable, e.g. --log-level from PIPETCAL_LOG_LEVEL.
func bindEnv(flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := flags.Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s_%s: %v", envPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
		}
	})
	return errors.Join(errs...)
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: pipetcal daemon is not running")
		fmt.Fprintf(os.Stderr, "Is the daemon listening on %s? Start it with 'pipetcal daemon'.\n", daemonAddr)
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Check the permissions of the daemon socket")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipetcal",
		Short: "pipetcal computes gravimetric calibrations of piston pipettes",
		Long: `pipetcal computes gravimetric calibrations of piston pipettes.

It converts weighed water masses into volumes at 20 °C, builds the
measurement uncertainty budget and checks every tested volume against the
maximum permissible error tables. Calculations run locally or on a pipetcal
daemon (--remote).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindEnv(cmd.Flags()); err != nil {
				return err
			}
			return setupLogger(cmd.ErrOrStderr())
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&daemonAddr, "addr", daemonAddr, "daemon address: host:port, http(s) URL or unix:/path/to/socket")
	globalFlags.BoolVar(&remote, "remote", false, "run against the daemon instead of the local config")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewCalculateCommand(),
		NewConstantsCommand(),
		NewEMTCommand(),
		NewEventsCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}

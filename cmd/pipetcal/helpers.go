package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/volumetria/pipetcal/pkg/api"
	"github.com/volumetria/pipetcal/pkg/client"
	"github.com/volumetria/pipetcal/pkg/config"
	"github.com/volumetria/pipetcal/pkg/gravimetric"
)

func newClient() *client.Client {
	return client.NewClient(daemonAddr)
}

// localConfig loads the config file the daemon would use.
func localConfig() (*config.File, error) {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return conf, nil
}

func localEngine() (*gravimetric.Engine, *config.File, error) {
	conf, err := localConfig()
	if err != nil {
		return nil, nil, err
	}
	settings, err := config.Settings(conf)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid settings in %s: %w", configPath, err)
	}
	e, err := gravimetric.NewEngine(settings)
	if err != nil {
		return nil, nil, err
	}
	return e, conf, nil
}

// openInput opens the file named by args, or stdin when it is "-" or absent.
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

func readRequest(cmd *cobra.Command, args []string) (*api.Request, error) {
	r, err := openInput(cmd, args)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return api.Decode(r)
}

func readJSON(cmd *cobra.Command, args []string, v any) error {
	r, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode input: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/volumetria/pipetcal/pkg/daemon"
	"github.com/volumetria/pipetcal/pkg/version"
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run the pipetcal HTTP service in the foreground",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("pipetcal daemon starting")
			return daemon.Run(configPath, listen)
		},
	}

	f := cmd.Flags()

	f.StringVar(&listen, "listen", "",
		"Address to listen on, overriding the config file. Use unix:/path for a socket.")

	return cmd
}

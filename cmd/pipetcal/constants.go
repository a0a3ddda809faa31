package main

import (
	"github.com/spf13/cobra"

	"github.com/volumetria/pipetcal/pkg/config"
)

func NewConstantsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "constants",
		Aliases: []string{"constantes"},
		GroupID: gBasic,
		Short:   "Print the physical constants in effect",
		Long: `Print the physical constants in effect: water and air density
coefficients, weight density, expansion coefficients, sensor corrections and
validated environmental ranges.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if remote {
				consts, err := newClient().GetConstants(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), consts)
			}

			conf, err := localConfig()
			if err != nil {
				return err
			}
			settings, err := config.Settings(conf)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), settings.Constants)
		},
	}
}

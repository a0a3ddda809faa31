package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "events",
		GroupID: gAdvanced,
		Short:   "Follow the daemon's event stream",
		Long: `Follow the daemon's event stream and print one JSON line per event:
calculations, config reloads and tolerance table updates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ch, err := newClient().SubscribeEvents(cmd.Context())
			if err != nil {
				return err
			}
			for ev := range ch {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", bold("%s", ev.Name), ev.Data)
			}
			return nil
		},
	}
}

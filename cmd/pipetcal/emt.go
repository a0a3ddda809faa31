package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/volumetria/pipetcal/pkg/gravimetric"
)

func NewEMTCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "emt [class]",
		GroupID: gBasic,
		Short:   "Show maximum permissible error tables",
		Long: `Show the maximum permissible error tables, or only the table of one
instrument class.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := emtTables(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				class := strings.ToLower(strings.TrimSpace(args[0]))
				rows, ok := tables[class]
				if !ok {
					return fmt.Errorf("unknown instrument class %q, known classes: %s",
						args[0], strings.Join(tables.Classes(), ", "))
				}
				tables = gravimetric.EMTTables{class: rows}
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), tables)
			}
			printEMT(cmd.OutOrStdout(), tables)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(newEMTSetCommand())

	return cmd
}

func newEMTSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <class> [file]",
		Short: "Replace the table of an instrument class",
		Long: `Replace the table of an instrument class with the JSON rows read from
file, or from stdin when file is "-" or omitted:

  [{"alcance_ul": 20, "emt_ul": 0.2, "cv_pct": 0.3}, ...]

With --remote the daemon stores the table and applies it immediately.
Otherwise the local config file is updated.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []gravimetric.EMTEntry
			if err := readJSON(cmd, args[1:], &rows); err != nil {
				return err
			}
			class := args[0]

			if remote {
				if err := newClient().SetEMT(cmd.Context(), class, rows); err != nil {
					return fmt.Errorf("failed to set table %s: %w", class, err)
				}
			} else {
				conf, err := localConfig()
				if err != nil {
					return err
				}
				if err := conf.SaveEMTTable(class, rows); err != nil {
					return err
				}
			}

			logrus.Infof("successfully set tolerance table %s (%d rows)", class, len(rows))
			return nil
		},
	}
}

func emtTables(cmd *cobra.Command) (gravimetric.EMTTables, error) {
	if remote {
		return newClient().GetEMT(cmd.Context())
	}
	conf, err := localConfig()
	if err != nil {
		return nil, err
	}
	return conf.EMTTables(), nil
}

func printEMT(w io.Writer, tables gravimetric.EMTTables) {
	for _, class := range tables.Classes() {
		rows := append([]gravimetric.EMTEntry(nil), tables[class]...)
		sort.Slice(rows, func(i, j int) bool { return rows[i].Volume < rows[j].Volume })

		fmt.Fprintln(w, bold("%s:", class))
		for _, r := range rows {
			line := fmt.Sprintf("  %8g µL  ±%g µL", r.Volume, r.EMT)
			if r.CV > 0 {
				line += fmt.Sprintf("  CV ≤ %g %%", r.CV)
			}
			fmt.Fprintln(w, line)
		}
	}
}

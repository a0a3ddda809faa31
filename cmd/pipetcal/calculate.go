package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/volumetria/pipetcal/pkg/api"
)

func NewCalculateCommand() *cobra.Command {
	var (
		asJSON bool
		debug  bool
	)

	cmd := &cobra.Command{
		Use:     "calculate [file]",
		Aliases: []string{"calcular"},
		GroupID: gBasic,
		Short:   "Compute a calibration from a /calcular request body",
		Long: `Compute a calibration from a /calcular request body read from file, or
from stdin when file is "-" or omitted.

The result is printed as a summary table, or as the daemon's JSON response
with --json.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(cmd, args)
			if err != nil {
				return err
			}
			if debug && req.EntradasGenerales != nil {
				req.EntradasGenerales.DebugMode = true
			}

			resp, err := calculate(cmd, req)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printResult(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&asJSON, "json", false, "print the JSON response")
	f.BoolVar(&debug, "debug", false, "include intermediate factors (same as debug_mode)")

	return cmd
}

func calculate(cmd *cobra.Command, req *api.Request) (*api.Response, error) {
	if remote {
		return newClient().Calculate(cmd.Context(), req)
	}

	e, conf, err := localEngine()
	if err != nil {
		return nil, err
	}
	res, err := req.Calculate(e, conf.AllowRequestOverrides())
	if err != nil {
		return nil, err
	}
	logrus.WithField("cumple", res.Conforms).Debug("calibration computed locally")
	resp := api.NewResponse(res, req.Debug())
	return &resp, nil
}

func printResult(w io.Writer, resp *api.Response) {
	for i, a := range resp.Aforos {
		fmt.Fprintln(w, bold("Aforo %d: %g µL", i+1, a.ValorNominal))
		fmt.Fprintf(w, "  Mean volume: %s\n", bold("%.4f µL", a.PromedioVolumenUL))
		fmt.Fprintf(w, "  Error: %s%s\n", bold("%+.4f µL", a.ErrorMedidaUL), optionalPercent(a.ErrorMedidaPorcentaje))
		fmt.Fprintf(w, "  Standard deviation: %s%s\n", bold("%.4f µL", a.DesviacionEstandarUL), optionalPercent(a.CoeficienteVariacion))
		fmt.Fprintf(w, "  Expanded uncertainty: %s (k = %.2f)\n", bold("%.4f µL", a.IncertidumbreExpandida), a.FactorCobertura)
		fmt.Fprintf(w, "  Maximum permissible error: %s (%s rule, %.0f%% used)\n",
			bold("%.4f µL", a.EMT), a.ReglaDecision, a.Utilizacion*100)
		fmt.Fprintf(w, "  Within tolerance: %s\n", bool2Text(a.Cumple))
		if a.DesviacionMaximaUL > 0 {
			fmt.Fprintf(w, "  Repeatability (SD ≤ %.4f µL): %s\n", a.DesviacionMaximaUL, bool2Text(a.CumpleRepetibilidad))
		}
		if d := a.Depuracion; d != nil {
			fmt.Fprintf(w, "  Factors: ρw %.5f  ρa %.5f  Z %.6f  thermal %.7f\n",
				d.DensidadAgua, d.DensidadAire, d.FactorZ, d.FactorTermico)
		}
		fmt.Fprintln(w)
	}

	c := resp.CondicionesFinales
	fmt.Fprintln(w, bold("Mean conditions:"))
	fmt.Fprintf(w, "  Water %.2f °C, ambient %.2f °C, %.2f hPa, %.1f %%RH\n",
		c.TempLiquido, c.TempAmbiente, c.Presion, c.Humedad)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %s\n", bold("Instrument conforms:"), bool2Text(resp.Cumple))
}

func optionalPercent(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf(" (%.2f %%)", *p)
}

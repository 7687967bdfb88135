package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/engine"
)

var printStateCmd = &cobra.Command{
	Use:   "print-state",
	Short: "Print the current snapshot and appliance states and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		eng := newEngine(cfg, zap.NewNop())
		defer eng.Dispose()
		return printState(cmd.OutOrStdout(), eng)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(printStateCmd, configCmd)
}

func printState(w io.Writer, eng *engine.Engine) error {
	rt := eng.Snapshot()
	sum := eng.Summary()
	fmt.Fprintf(w, "Power: %.0f W (%.1f kW), Active: %d/%d, Daily cost: $%.2f, Efficiency: %d%%\n",
		rt.TotalPower, sum.TotalPowerKW, rt.ActiveAppliances, sum.Total, rt.EstimatedDailyCost, rt.CurrentEfficiency)
	for _, a := range eng.Appliances() {
		fmt.Fprintf(w, "%3d  %-24s %-14s %6.0f W  %s\n", a.ID, a.Name, a.Type, a.PowerRating, statusString(a.Status))
	}
	fmt.Fprint(w, "Breakdown:")
	for _, tp := range eng.Breakdown() {
		fmt.Fprintf(w, " %s=%.0f", tp.Type, tp.Watts)
	}
	_, err := fmt.Fprintln(w)
	return err
}

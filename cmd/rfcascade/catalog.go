package main

import (
	"fmt"
	"os"

	"github.com/signalsfoundry/rfcascade/core"
	"github.com/signalsfoundry/rfcascade/internal/chainfile"
	"github.com/signalsfoundry/rfcascade/internal/report"
	"github.com/signalsfoundry/rfcascade/model"
	"github.com/spf13/cobra"
)

func newMetricsCmd() *cobra.Command {
	var direction, power string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "List the metrics the engine computes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := model.ParseDirection(direction)
			if err != nil {
				return err
			}
			unit, err := report.ParsePowerUnit(power)
			if err != nil {
				return err
			}
			return report.WriteCatalog(cmd.OutOrStdout(), core.DefaultRegistry(), dir, unit)
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "rx", "show metrics visible for rx or tx chains")
	cmd.Flags().StringVar(&power, "power", "dBm", "display unit for powers: dBm, dBW or W")
	return cmd
}

func newInitCmd() *cobra.Command {
	var direction string
	var force bool
	cmd := &cobra.Command{
		Use:   "init <chain-file>",
		Short: "Write a starter chain file",
		Long:  "Write a small receive or transmit chain in the format implied by the file extension.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := model.ParseDirection(direction)
			if err != nil {
				return err
			}
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := chainfile.Save(path, starterChain(dir)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "rx", "starter chain direction: rx or tx")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// starterChain is an eight element phased array: antenna elements combined
// into an LNA for receive, or a PA driving a divider for transmit.
func starterChain(dir model.Direction) model.ChainSpec {
	spec := model.ChainSpec{Globals: model.DefaultGlobals()}
	spec.Globals.Direction = dir

	ant := model.DefaultStageSpec(model.KindAntenna)
	ant.GainDB = 5
	cable := model.DefaultStageSpec(model.KindPassive)
	cable.PartNumber = "Cable"
	cable.GainDB = -0.5
	amp := model.DefaultStageSpec(model.KindAmplifier)

	if dir.IsTX() {
		spec.Name = "tx-array"
		spec.Globals.InputPowerW = model.DBmToWatts(0)
		amp.PartNumber = "PA"
		amp.GainDB = 20
		amp.NoiseFigureDB = 6
		amp.P1dBDBm = model.Float(30)
		amp.IP3DBm = model.Float(40)
		div := model.DefaultStageSpec(model.KindCorporateDivider)
		div.Legs = 8
		spec.Stages = []model.StageSpec{amp, cable, div, ant}
		return spec
	}

	spec.Name = "rx-array"
	spec.Globals.InputPowerW = model.DBmToWatts(-90)
	amp.PartNumber = "LNA"
	amp.GainDB = 18
	amp.NoiseFigureDB = 1
	comb := model.DefaultStageSpec(model.KindCorporateCombiner)
	comb.Legs = 8
	spec.Stages = []model.StageSpec{ant, comb, cable, amp}
	return spec
}

package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leptonweighter/leptonweighter/lw/generation"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <description.yaml>",
	Short: "Validate a generation description and list its generators",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspect(args[0], cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("Invalid generation description: %v", err)
		}
	},
}

// runInspect prints one line per generator, with angular and kinematics defaults filled.
func runInspect(path string, out io.Writer) error {
	desc, err := generation.LoadDescription(path)
	if err != nil {
		return err
	}
	if err := desc.Validate(); err != nil {
		return err
	}
	for i := range desc.Generators {
		spec := &desc.Generators[i]
		d := spec.Details()
		fmt.Fprintf(out, "%-3d %-20s %-7s events=%-10d %s+%s E=[%g, %g] index=%g zenith=[%.4f, %.4f] azimuth=[%.4f, %.4f] kinematics=%s",
			i, d.Name, spec.Geometry, d.NumberOfEvents, d.FinalState0, d.FinalState1,
			d.EnergyMin, d.EnergyMax, d.SpectralIndex,
			d.ZenithMin, d.ZenithMax, d.AzimuthMin, d.AzimuthMax, d.Kinematics)
		switch spec.Geometry {
		case generation.GeometryRanged:
			fmt.Fprintf(out, " radius=%g endcap=%g\n", spec.Ranged.InjectionRadius, spec.Ranged.EndcapLength)
		case generation.GeometryVolume:
			fmt.Fprintf(out, " radius=%g height=%g\n", spec.Volume.CylinderRadius, spec.Volume.CylinderHeight)
		default:
			fmt.Fprintln(out)
		}
	}
	return nil
}

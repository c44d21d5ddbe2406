package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/asmgen/generator"
	"github.com/sarchlab/asmgen/traversal"
)

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the resolved geometry and unroll counts of every level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := opts.build(cmd)
			if err != nil {
				return err
			}

			report, err := g.Plan()
			if report.Fatal == nil {
				printPlan(cmd.OutOrStdout(), report)
			}

			return err
		},
	}
}

func printPlan(w io.Writer, report *generator.RunReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "LEVEL\tSETS\tWAYS\tLINES\tSIZE\tPROBE\tPRIME\tFILE")

	for _, res := range report.Results {
		if !res.OK() {
			fmt.Fprintf(tw, "%s\terror: %v\n", res.Level, res.Err)
			continue
		}

		geo := res.Geometry
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			geo.Level,
			geo.Sets,
			geo.Associativity,
			geo.Lines(),
			geo.TotalSize(),
			unroll(geo.Level, traversal.Probe, res.ProbeUnroll),
			unroll(geo.Level, traversal.Prime, res.PrimeUnroll),
			res.FileName,
		)
	}
}

func unroll(level string, kind traversal.Kind, n int) string {
	return fmt.Sprintf("%s x%d", traversal.RoutineName(level, kind), n)
}

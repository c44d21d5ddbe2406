package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/asmgen/geometry"
	"github.com/sarchlab/asmgen/hostcheck"
)

var detectHost = hostcheck.Detect

// errHostMismatch is returned by hostcheck --strict.
var errHostMismatch = errors.New("configured caches differ from the host")

func newHostCheckCmd(opts *options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "hostcheck",
		Short: "Compare the configured cache geometry with the running CPU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := opts.build(cmd)
			if err != nil {
				return err
			}

			report, err := g.Plan()
			if report.Fatal != nil {
				return err
			}

			var geos []geometry.Geometry
			for _, res := range report.Results {
				if res.OK() {
					geos = append(geos, res.Geometry)
				}
			}

			host := detectHost()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "host: %s\n", host.Brand)

			findings := hostcheck.Compare(geos, host)
			for _, f := range findings {
				fmt.Fprintln(out, f)
			}

			if len(findings) == 0 {
				fmt.Fprintln(out, "no differences")
			} else if strict {
				return errHostMismatch
			}

			return err
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false,
		"fail when the host differs from the configuration")

	return cmd
}

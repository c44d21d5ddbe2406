package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/asmgen/generator"
	"github.com/sarchlab/asmgen/record"
)

func newGenerateCmd(opts *options) *cobra.Command {
	var (
		check   bool
		ledger  string
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write <level>_asm.h for every configured cache level",
		Long: `Generate reads the device configuration and cache types headers and writes ` +
			`one header per cache level. A level that cannot be generated is reported ` +
			`and skipped; the other levels are still written. With --check nothing is ` +
			`written and out-of-date headers are reported instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			g, cfg, err := opts.build(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("record") {
				cfg.Record = ledger
			}

			if cfg.Record != "" {
				r, rerr := record.New(cfg.Record)
				if rerr != nil {
					return rerr
				}
				defer func() {
					err = errors.Join(err, r.Close())
				}()

				g.AcceptHook(r)
			}

			run := g.Run
			if check {
				run = g.Check
			}

			report, err := run()
			if summary {
				printSummary(cmd.OutOrStdout(), report)
			}

			return err
		},
	}

	cmd.Flags().BoolVar(&check, "check", false,
		"report out-of-date headers without writing")
	cmd.Flags().StringVar(&ledger, "record", "",
		"record the run in the SQLite ledger <path>.sqlite3")
	cmd.Flags().BoolVar(&summary, "summary", true,
		"print one line per cache level when done")

	return cmd
}

func printSummary(w io.Writer, report *generator.RunReport) {
	if report == nil || report.Fatal != nil {
		return
	}

	for _, res := range report.Results {
		fmt.Fprintf(w, "%-4s %-12s %s\n", res.Level, fileName(res), status(report.Mode, res))
	}
}

func fileName(res generator.LevelResult) string {
	if res.FileName == "" {
		return "-"
	}

	return res.FileName
}

func status(mode generator.Mode, res generator.LevelResult) string {
	switch {
	case res.Stale:
		return "stale"
	case !res.OK():
		return "failed"
	case mode == generator.ModeWrite:
		return "written"
	case mode == generator.ModeCheck:
		return "current"
	default:
		return "ok"
	}
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/Protocol-Intelligence/internal/application/collection"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
)

// NewCollectCmd creates the collect command.
func NewCollectCmd() *cobra.Command {
	var (
		maxProtocols int
		concurrency  int
		skipFiles    bool
		requireDoc   bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Harvest the reference corpus from ClinicalTrials.gov",
		Long: "Run a systematic pass over the registry followed by condition, phase and\n" +
			"study-type sweeps until the configured targets are met, then write the\n" +
			"benchmark dataset and a summary report to the configured storage.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			c := cliCtx.Config.Collector
			if maxProtocols > 0 {
				c.MaxProtocols = maxProtocols
			}
			if concurrency > 0 {
				c.Concurrency = concurrency
			}
			if cmd.Flags().Changed("skip-protocol-files") {
				c.SkipProtocolFiles = skipFiles
			}
			if cmd.Flags().Changed("require-protocol-doc") {
				c.RequireProtocolDoc = requireDoc
			}
			cliCtx.Config.Collector = c

			ctx, cancel := cliCtx.commandContext(cmd.Context())
			defer cancel()
			deps, err := openDeps(cliCtx, true)
			if err != nil {
				return err
			}
			defer deps.Close()

			rep, err := deps.collector(cliCtx).Run(ctx)
			if err != nil {
				if rep != nil {
					cliCtx.Logger.Error("collection failed",
						logging.String("run_id", rep.RunID),
						logging.Int("protocols", rep.TotalProtocols),
						logging.Err(err))
				}
				return err
			}
			return PrintResult(cmd, runView{RunReport: rep})
		},
	}

	f := cmd.Flags()
	f.IntVar(&maxProtocols, "max-protocols", 0, "override collector.max_protocols")
	f.IntVar(&concurrency, "concurrency", 0, "override collector.concurrency")
	f.BoolVar(&skipFiles, "skip-protocol-files", false, "do not write one artifact per protocol")
	f.BoolVar(&requireDoc, "require-protocol-doc", false, "keep only studies that link a protocol document")
	return cmd
}

type runView struct {
	*collection.RunReport
}

func (v runView) TableHeaders() []string {
	return []string{"STAGE", "RAN", "SLICES", "FAILED", "PAGES", "ADDED"}
}

func (v runView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Stages))
	for _, st := range v.Stages {
		ran := "no"
		if st.Ran {
			ran = "yes"
		}
		rows = append(rows, []string{
			st.Stage, ran,
			fmt.Sprint(st.Slices), fmt.Sprint(st.FailedSlices),
			fmt.Sprint(st.Pages), fmt.Sprint(st.Added),
		})
	}
	return rows
}

func (v runView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s collected %d protocols in %.1fs (%d requests)\n",
		v.RunID, v.TotalProtocols, v.DurationSeconds, v.Requests)
	sb.WriteString(FormatTable(v.TableHeaders(), v.TableRows()))
	fmt.Fprintf(&sb, "Dataset: %s/%s", v.Location, v.DatasetKey)
	return sb.String()
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/Protocol-Intelligence/internal/application/analysis"
	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
)

// NewCorpusCmd creates the corpus command group.
func NewCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect the reference corpus",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Show the loaded dataset's cohorts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.commandContext(cmd.Context())
			defer cancel()
			deps, err := openDeps(cliCtx, false)
			if err != nil {
				return err
			}
			defer deps.Close()

			corpus := analysis.NewCorpusProvider(deps.store, cliCtx.Config.Benchmark, analysis.WithCorpusLogger(cliCtx.Logger))
			if err := corpus.Load(ctx); err != nil {
				return err
			}
			sum, err := corpus.Summary()
			if err != nil {
				return err
			}
			return PrintResult(cmd, summaryView{CorpusSummary: sum})
		},
	})
	return cmd
}

type summaryView struct {
	*analysis.CorpusSummary
}

func (v summaryView) TableHeaders() []string {
	return []string{"PHASE", "PROTOCOLS", "MEDIAN_SAMPLE", "MEDIAN_COMPLEXITY"}
}

func (v summaryView) TableRows() [][]string {
	var rows [][]string
	for _, p := range protocol.AllPhases {
		stats, ok := v.Phases[p]
		if !ok {
			continue
		}
		sample, complexity := "-", "-"
		if stats.Benchmarkable {
			sample = fmt.Sprintf("%.1f", stats.Metrics[protocol.MetricSampleSize].Median)
			complexity = fmt.Sprintf("%.1f", stats.Metrics[protocol.MetricComplexityScore].Median)
		}
		rows = append(rows, []string{p.Label(), fmt.Sprint(stats.Count), sample, complexity})
	}
	return rows
}

func (v summaryView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dataset %s (run %s): %d protocols, minimum cohort %d\n",
		v.Version, v.RunID, v.TotalProtocols, v.MinCohortSize)
	sb.WriteString(FormatTable(v.TableHeaders(), v.TableRows()))
	return strings.TrimRight(sb.String(), "\n")
}

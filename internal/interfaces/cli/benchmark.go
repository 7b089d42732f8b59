package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/Protocol-Intelligence/internal/application/analysis"
	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// NewBenchmarkCmd creates the benchmark command.
func NewBenchmarkCmd() *cobra.Command {
	var (
		phase   string
		area    string
		metrics protocol.ProtocolMetrics
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Compare protocol metrics with the reference corpus",
		Long: "Position a protocol's sample size, complexity score, criteria count and endpoint\n" +
			"count against the matching phase (and therapeutic area) cohort of the corpus.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			p := protocol.NormalizePhase(phase)
			if p == protocol.PhaseNA {
				return errors.New(errors.ErrCodeValidation, "a recognised --phase is required").WithDetail(phase)
			}
			var a protocol.TherapeuticArea
			if area != "" {
				a = protocol.ParseArea(area)
			}

			ctx, cancel := cliCtx.commandContext(cmd.Context())
			defer cancel()
			deps, err := openDeps(cliCtx, false)
			if err != nil {
				return err
			}
			defer deps.Close()

			svc := analysis.NewService(analysis.WithCorpus(deps.corpus(ctx, cliCtx)), analysis.WithLogger(cliCtx.Logger))
			b, err := svc.Benchmark(ctx, metrics, p, a)
			if err != nil {
				return err
			}
			return PrintResult(cmd, benchmarkView{Benchmark: b})
		},
	}

	f := cmd.Flags()
	f.StringVar(&phase, "phase", "", "trial phase, e.g. \"Phase 2\" or PHASE2 (required)")
	f.StringVar(&area, "area", "", "therapeutic area; falls back to the phase cohort when too small")
	f.Float64Var(&metrics.SampleSize, "sample-size", 0, "planned enrollment")
	f.Float64Var(&metrics.ComplexityScore, "complexity", 0, "complexity score (0-100)")
	f.Float64Var(&metrics.CriteriaCount, "criteria", 0, "inclusion plus exclusion criteria")
	f.Float64Var(&metrics.EndpointCount, "endpoints", 0, "primary endpoints")
	_ = cmd.MarkFlagRequired("phase")
	return cmd
}

type benchmarkView struct {
	*protocol.Benchmark
}

func (v benchmarkView) TableHeaders() []string {
	return []string{"METRIC", "VALUE", "MEDIAN", "PERCENTILE", "CATEGORY"}
}

func (v benchmarkView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Metrics))
	for _, m := range v.Metrics {
		rows = append(rows, []string{
			m.Name,
			fmt.Sprintf("%.1f", m.ProtocolValue),
			fmt.Sprintf("%.1f", m.IndustryMedian),
			fmt.Sprintf("%.1f", m.Percentile),
			string(m.Category),
		})
	}
	return rows
}

func (v benchmarkView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Cohort: %s (%d protocols)\n", v.Cohort, v.CohortSize)
	sb.WriteString(FormatTable(v.TableHeaders(), v.TableRows()))
	for _, o := range v.Outliers {
		fmt.Fprintf(&sb, "Outlier %s at P%.1f [%s]: %s\n", o.Metric, o.Percentile, o.Severity, o.Recommendation)
	}
	return strings.TrimRight(sb.String(), "\n")
}

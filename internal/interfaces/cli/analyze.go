package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/Protocol-Intelligence/internal/application/analysis"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/document"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	var (
		phase   string
		area    string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Score one or more protocol documents",
		Long: "Extract features from protocol documents (plain text, markdown or HTML; \"-\" reads\n" +
			"stdin) and report complexity, enrollment feasibility, visit burden, a corpus\n" +
			"benchmark and prioritised recommendations.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.commandContext(cmd.Context())
			defer cancel()

			reqs := make([]analysis.Request, 0, len(args))
			for _, path := range args {
				text, err := readDocument(cmd, path)
				if err != nil {
					return err
				}
				reqs = append(reqs, analysis.Request{Text: text, Phase: phase, TherapeuticArea: area})
			}

			opts := []analysis.Option{
				analysis.WithLogger(cliCtx.Logger),
				analysis.WithBatchConfig(cliCtx.Config.Analysis),
			}
			if !offline {
				deps, err := openDeps(cliCtx, false)
				if err != nil {
					return err
				}
				defer deps.Close()
				opts = append(opts, analysis.WithCorpus(deps.corpus(ctx, cliCtx)))
			}
			svc := analysis.NewService(opts...)

			if len(reqs) == 1 {
				report, err := svc.Analyze(ctx, reqs[0])
				if err != nil {
					return err
				}
				return PrintResult(cmd, reportView{Report: report, Source: args[0]})
			}
			batch, err := svc.AnalyzeBatch(ctx, reqs)
			if err != nil {
				return err
			}
			return PrintResult(cmd, batchView{BatchReport: batch, Sources: args})
		},
	}

	cmd.Flags().StringVar(&phase, "phase", "", "override the detected trial phase (e.g. \"Phase 2\", PHASE3)")
	cmd.Flags().StringVar(&area, "area", "", "override the detected therapeutic area (e.g. oncology)")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip loading the reference corpus")
	return cmd
}

func readDocument(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		return document.Load(cmd.Context(), cmd.InOrStdin(), document.FormatText)
	}
	return document.LoadFile(cmd.Context(), path)
}

// reportView renders one analysis for the text and table formats and
// marshals as the bare report.
type reportView struct {
	*analysis.Report
	Source string `json:"-"`
}

func (v reportView) String() string {
	r := v.Report
	var sb strings.Builder
	fmt.Fprintf(&sb, "Protocol:     %s\n", v.Source)
	fmt.Fprintf(&sb, "Phase:        %s\n", r.Features.Phase.Label())
	fmt.Fprintf(&sb, "Area:         %s\n", r.Features.TherapeuticArea)
	fmt.Fprintf(&sb, "Sample size:  %d\n", r.Features.SampleSize)
	fmt.Fprintf(&sb, "Complexity:   %.1f (%s)\n", r.Complexity.Score, r.Complexity.Category)
	fmt.Fprintf(&sb, "Enrollment:   %.1f months, %s, %d sites\n",
		r.Enrollment.EstimatedMonths, r.Enrollment.Difficulty, r.Enrollment.RecommendedSites)
	fmt.Fprintf(&sb, "Visit burden: %.1f (%s), %d visits\n",
		r.VisitBurden.BurdenScore, r.VisitBurden.BurdenLevel, r.VisitBurden.TotalVisits)
	if r.Benchmark != nil {
		fmt.Fprintf(&sb, "Benchmark:    %s cohort of %d\n", r.Benchmark.Cohort, r.Benchmark.CohortSize)
		for _, m := range r.Benchmark.Metrics {
			fmt.Fprintf(&sb, "  %-18s %8.1f  median %8.1f  P%-5.1f %s\n",
				m.Name, m.ProtocolValue, m.IndustryMedian, m.Percentile, m.Category)
		}
	} else if r.BenchmarkNote != "" {
		fmt.Fprintf(&sb, "Benchmark:    %s\n", r.BenchmarkNote)
	}
	if len(r.Recommendations) > 0 {
		sb.WriteString("Recommendations:\n")
		for i, rec := range r.Recommendations {
			fmt.Fprintf(&sb, "  %d. [%s] %s: %s\n", i+1, rec.Priority, rec.Title, rec.Action)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (v reportView) TableHeaders() []string {
	return []string{"PROTOCOL", "PHASE", "AREA", "COMPLEXITY", "ENROLL_MONTHS", "BURDEN", "RECS"}
}

func (v reportView) TableRows() [][]string {
	return [][]string{reportRow(v.Source, v.Report)}
}

func reportRow(source string, r *analysis.Report) []string {
	return []string{
		source,
		string(r.Features.Phase),
		string(r.Features.TherapeuticArea),
		fmt.Sprintf("%.1f %s", r.Complexity.Score, r.Complexity.Category),
		fmt.Sprintf("%.1f", r.Enrollment.EstimatedMonths),
		fmt.Sprintf("%.1f %s", r.VisitBurden.BurdenScore, r.VisitBurden.BurdenLevel),
		fmt.Sprintf("%d", len(r.Recommendations)),
	}
}

// batchView renders a batch as one row per document.
type batchView struct {
	*analysis.BatchReport
	Sources []string `json:"-"`
}

func (v batchView) TableHeaders() []string { return reportView{}.TableHeaders() }

func (v batchView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Items))
	for _, item := range v.Items {
		source := ""
		if item.Index < len(v.Sources) {
			source = v.Sources[item.Index]
		}
		if item.Report == nil {
			rows = append(rows, []string{source, "error: " + item.Error})
			continue
		}
		rows = append(rows, reportRow(source, item.Report))
	}
	return rows
}

func (v batchView) String() string {
	out := FormatTable(v.TableHeaders(), v.TableRows())
	return out + fmt.Sprintf("%d analysed, %d failed in %.0f ms", v.SuccessCount, v.FailureCount, v.DurationMs)
}

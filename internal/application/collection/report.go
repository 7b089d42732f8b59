package collection

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// RenderSummary writes the human-readable corpus summary in GitHub
// flavoured markdown.
func RenderSummary(ds *protocol.Dataset, rep *RunReport) string {
	var b strings.Builder
	b.WriteString("# Reference Corpus Summary\n\n")
	fmt.Fprintf(&b, "- **Run:** `%s`\n", rep.RunID)
	fmt.Fprintf(&b, "- **Generated:** %s\n", ds.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Protocols:** %d\n", ds.TotalProtocols)
	fmt.Fprintf(&b, "- **Minimum cohort size:** %d\n", ds.MinCohortSize)
	fmt.Fprintf(&b, "- **Registry requests:** %d\n", rep.Requests)
	fmt.Fprintf(&b, "- **Duplicates dropped:** %d\n", rep.Duplicates)
	if rep.Undecodable > 0 {
		fmt.Fprintf(&b, "- **Undecodable studies skipped:** %d\n", rep.Undecodable)
	}
	if rep.WithoutDocument > 0 {
		fmt.Fprintf(&b, "- **Dropped without protocol document:** %d\n", rep.WithoutDocument)
	}

	b.WriteString("\n## Stages\n\n")
	b.WriteString("| Stage | Ran | Slices | Failed | Pages | Added |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|\n")
	for _, st := range rep.Stages {
		ran := "no"
		if st.Ran {
			ran = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d |\n", st.Stage, ran, st.Slices, st.FailedSlices, st.Pages, st.Added)
	}

	counts := make(map[protocol.Phase]int)
	areas := make(map[protocol.TherapeuticArea]int)
	withDoc := 0
	for _, r := range ds.Records {
		counts[r.Phase]++
		areas[r.TherapeuticArea]++
		if r.HasProtocolDocument {
			withDoc++
		}
	}

	b.WriteString("\n## Phase Cohorts\n\n")
	b.WriteString("| Phase | Protocols | Median sample size | Median complexity | Median criteria | Median endpoints |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, phase := range protocol.AllPhases {
		n := counts[phase]
		if n == 0 {
			continue
		}
		stats, ok := ds.Phases[phase]
		if !ok {
			fmt.Fprintf(&b, "| %s | %d | below minimum | | | |\n", phase.Label(), n)
			continue
		}
		fmt.Fprintf(&b, "| %s | %d | %.0f | %.1f | %.0f | %.0f |\n", phase.Label(), n,
			stats.Metrics[protocol.MetricSampleSize].Median,
			stats.Metrics[protocol.MetricComplexityScore].Median,
			stats.Metrics[protocol.MetricCriteriaCount].Median,
			stats.Metrics[protocol.MetricEndpointCount].Median)
	}

	type areaCount struct {
		area protocol.TherapeuticArea
		n    int
	}
	sorted := make([]areaCount, 0, len(areas))
	for a, n := range areas {
		sorted = append(sorted, areaCount{a, n})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].n != sorted[j].n {
			return sorted[i].n > sorted[j].n
		}
		return sorted[i].area < sorted[j].area
	})
	b.WriteString("\n## Therapeutic Areas\n\n")
	b.WriteString("| Area | Protocols |\n|---|---:|\n")
	for _, ac := range sorted {
		fmt.Fprintf(&b, "| %s | %d |\n", ac.area, ac.n)
	}

	b.WriteString("\n## Protocol Documents\n\n")
	fmt.Fprintf(&b, "%d of %d studies link a protocol document.\n", withDoc, ds.TotalProtocols)
	return b.String()
}

// RenderHTML converts the markdown summary into a standalone page.
func RenderHTML(markdown string) ([]byte, error) {
	var content bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "summary render failed")
	}
	var page bytes.Buffer
	page.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>")
	page.WriteString(html.EscapeString("Reference Corpus Summary"))
	page.WriteString("</title><style>")
	page.WriteString("body{font-family:system-ui,sans-serif;max-width:60rem;margin:2rem auto;color:#1f2937} ")
	page.WriteString("table{border-collapse:collapse;width:100%;font-size:0.9rem} ")
	page.WriteString("th,td{border:1px solid #d1d5db;padding:0.3rem 0.5rem} thead th{background:#f3f4f6}")
	page.WriteString("</style></head><body>")
	page.Write(content.Bytes())
	page.WriteString("</body></html>")
	return page.Bytes(), nil
}

package visit_burden

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/feature_extractor"
)

// Procedure is a schedulable assessment with its added visit time.
type Procedure struct {
	Name     string
	Minutes  int
	Invasive bool
	pattern  *regexp.Regexp
}

// Procedures is the recognised procedure catalogue, in report order.
var Procedures = []Procedure{
	{"blood draw", 15, false, regexp.MustCompile(`(?i)\b(?:blood\s+(?:draws?|samples?|sampling|tests?|collection)|venipunctures?|phlebotomy|laboratory\s+tests?|labs?\b|haematology|hematology\s+panel|chemistry\s+panel|pk\s+samples?)`)},
	{"physical exam", 30, false, regexp.MustCompile(`(?i)\bphysical\s+exam(?:ination)?s?\b`)},
	{"imaging", 45, false, regexp.MustCompile(`(?i)\b(?:imaging|mri|ct\s+scans?|pet(?:[- ]ct)?\s+scans?|x-rays?|ultrasound|dexa|echocardiogra\w*|radiograph\w*)\b`)},
	{"ECG", 20, false, regexp.MustCompile(`(?i)\b(?:ecgs?|ekgs?|electrocardiogra\w*)\b`)},
	{"vital signs", 10, false, regexp.MustCompile(`(?i)\b(?:vital\s+signs|vitals|blood\s+pressure)\b`)},
	{"questionnaire", 20, false, regexp.MustCompile(`(?i)\b(?:questionnaires?|surveys?|diar(?:y|ies)|patient[- ]reported\s+outcomes?|pros?\b|quality[- ]of[- ]life\s+(?:scale|instrument|assessment)s?)`)},
	{"urine sample", 10, false, regexp.MustCompile(`(?i)\b(?:urine\s+(?:samples?|tests?|collection)|urinalysis|pregnancy\s+tests?)\b`)},
	{"cognitive assessment", 30, false, regexp.MustCompile(`(?i)\b(?:cognitive\s+(?:assessments?|tests?|testing)|mmse|moca|adas-cog|neuropsychological)\b`)},
	{"spirometry", 30, false, regexp.MustCompile(`(?i)\b(?:spirometry|pulmonary\s+function\s+tests?|fev1)\b`)},
	{"infusion", 120, false, regexp.MustCompile(`(?i)\b(?:infusions?|intravenous\s+administration|iv\s+dosing)\b`)},
	{"biopsy", 60, true, regexp.MustCompile(`(?i)\b(?:tumou?r\s+|skin\s+|liver\s+|core\s+needle\s+)?biops(?:y|ies)\b`)},
	{"lumbar puncture", 60, true, regexp.MustCompile(`(?i)\b(?:lumbar\s+punctures?|csf\s+collection|spinal\s+tap)\b`)},
	{"bone marrow", 60, true, regexp.MustCompile(`(?i)\bbone\s+marrow\s+(?:aspirat\w*|biops\w*|examination)\b`)},
	{"endoscopy", 90, true, regexp.MustCompile(`(?i)\b(?:endoscop\w*|colonoscop\w*|bronchoscop\w*|gastroscop\w*)\b`)},
}

var procedureByName = func() map[string]Procedure {
	m := make(map[string]Procedure, len(Procedures))
	for _, p := range Procedures {
		m[p.Name] = p
	}
	return m
}()

// DetectProcedures returns the distinct procedures mentioned in text, in
// catalogue order.
func DetectProcedures(text string) []string {
	out := make([]string, 0, 4)
	for _, p := range Procedures {
		if p.pattern.MatchString(text) {
			out = append(out, p.Name)
		}
	}
	return out
}

// ProcedureMinutes sums the added minutes of the named procedures.
func ProcedureMinutes(names []string) int {
	total := 0
	for _, n := range names {
		total += procedureByName[n].Minutes
	}
	return total
}

func invasiveCount(names []string) int {
	n := 0
	for _, name := range names {
		if procedureByName[name].Invasive {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Visit detection
// ---------------------------------------------------------------------------

const maxVisits = 365

var (
	visitLine   = regexp.MustCompile(`(?im)^[ \t]*(?:[-*•]\s*)?(visit\s+\d+|day\s+-?\d+|week\s+\d+|month\s+\d+|screening(?:\s+visit)?|baseline(?:\s+visit)?|follow[- ]up(?:\s+visit)?|end[- ]of[- ](?:study|treatment)(?:\s+visit)?)[ \t]*(?:[:(|\x{2013}-]|$)(.*)$`)
	visitCount  = regexp.MustCompile(`(?i)\b(\d{1,3})\s+(?:scheduled\s+|study\s+|clinic\s+|on-?site\s+|planned\s+)?visits\b`)
	visitsTotal = regexp.MustCompile(`(?i)\btotal\s+of\s+(\d{1,3})\s+(?:\w+\s+)?visits\b`)
)

// visitBlocks splits text into one block per schedule line.  A schedule
// line starts with a visit label followed by a separator or line end; its
// block runs until the next schedule line or a blank line.
func visitBlocks(text string) []protocol.VisitDetail {
	lines := strings.Split(text, "\n")
	var visits []protocol.VisitDetail
	var current *protocol.VisitDetail
	var body strings.Builder
	flush := func() {
		if current == nil {
			return
		}
		current.Procedures = DetectProcedures(body.String())
		visits = append(visits, *current)
		current = nil
		body.Reset()
	}
	for _, line := range lines {
		if m := visitLine.FindStringSubmatch(line); m != nil {
			flush()
			current = &protocol.VisitDetail{Number: len(visits) + 1, Label: visitLabel(m[1])}
			body.WriteString(m[2])
			body.WriteByte('\n')
			continue
		}
		if current == nil {
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()
	if len(visits) > maxVisits {
		visits = visits[:maxVisits]
	}
	return visits
}

func visitLabel(head string) string {
	head = strings.Join(strings.Fields(head), " ")
	if head == "" {
		return head
	}
	return strings.ToUpper(head[:1]) + head[1:]
}

// statedVisitCount reads an explicit "N visits" statement.
func statedVisitCount(text string) (int, bool) {
	for _, re := range []*regexp.Regexp{visitsTotal, visitCount} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= maxVisits {
				return n, true
			}
		}
	}
	return 0, false
}

// EstimateVisitCount derives a visit count from cadence and duration plus
// screening and end-of-study visits, capped at 365.
func EstimateVisitCount(freq protocol.VisitFrequency, months int) int {
	n := int(math.Round(freq.VisitsPerMonth()*float64(max(1, months)))) + 2
	return min(n, maxVisits)
}

// ExtractVisitFactors reads the visit schedule from protocol text.  Explicit
// schedule lines ("Visit 3", "Week 12", "Screening") each become a visit with
// their own procedures; otherwise the count is taken from an "N visits"
// statement or estimated from cadence and duration, and every visit carries
// the procedures mentioned anywhere in the text.
func ExtractVisitFactors(text string) protocol.VisitFactors {
	text = feature_extractor.Normalize(text)
	return FactorsFromFeatures(text, feature_extractor.ExtractFeatures(text))
}

// FactorsFromFeatures reads the visit schedule from text, taking cadence,
// duration and inpatient stays from features already extracted from it.
func FactorsFromFeatures(text string, f protocol.ProtocolFeatures) protocol.VisitFactors {
	text = feature_extractor.Normalize(text)
	all := DetectProcedures(text)

	vf := protocol.VisitFactors{
		Frequency:      f.VisitFrequency,
		DurationMonths: f.StudyDurationMonths,
		Procedures:     all,
		InvasiveCount:  invasiveCount(all),
		Inpatient:      f.InpatientStays,
	}

	if visits := visitBlocks(text); len(visits) > 0 {
		vf.Visits = visits
		vf.TotalVisits = len(visits)
		return vf
	}
	if n, ok := statedVisitCount(text); ok {
		vf.TotalVisits = n
	} else {
		vf.TotalVisits = EstimateVisitCount(vf.Frequency, vf.DurationMonths)
	}
	vf.Visits = synthesize(vf.TotalVisits, all)
	return vf
}

func synthesize(n int, procedures []string) []protocol.VisitDetail {
	visits := make([]protocol.VisitDetail, n)
	for i := range visits {
		visits[i] = protocol.VisitDetail{
			Number:     i + 1,
			Label:      fmt.Sprintf("Visit %d", i+1),
			Procedures: procedures,
		}
	}
	return visits
}

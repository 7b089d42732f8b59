package protocol

// ComplexityCategory is the banded label for a complexity score.
type ComplexityCategory string

const (
	ComplexitySimple        ComplexityCategory = "Simple"
	ComplexityModerate      ComplexityCategory = "Moderate"
	ComplexityComplex       ComplexityCategory = "Complex"
	ComplexityHighlyComplex ComplexityCategory = "Highly Complex"
)

// ComplexityScore is the composite design-burden score of one protocol.
type ComplexityScore struct {
	Score      float64            `json:"score"`
	Category   ComplexityCategory `json:"category"`
	Breakdown  map[string]float64 `json:"breakdown"`
	Percentile float64            `json:"percentile"`
	Confidence float64            `json:"confidence"`
}

// DifficultyTier is the banded enrollment difficulty.
type DifficultyTier string

const (
	DifficultyEasy        DifficultyTier = "Easy"
	DifficultyModerate    DifficultyTier = "Moderate"
	DifficultyChallenging DifficultyTier = "Challenging"
	DifficultyDifficult   DifficultyTier = "Difficult"
)

// Impact grades a risk factor or recommendation.
type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

// Rank orders impacts High < Medium < Low for sorting.
func (i Impact) Rank() int {
	switch i {
	case ImpactHigh:
		return 0
	case ImpactMedium:
		return 1
	default:
		return 2
	}
}

// RiskFactor is one enrollment obstacle with a suggested mitigation.
type RiskFactor struct {
	Factor      string `json:"factor"`
	Impact      Impact `json:"impact"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
}

// AppliedMultiplier records one difficulty factor that fired.
type AppliedMultiplier struct {
	Factor     string  `json:"factor"`
	Multiplier float64 `json:"multiplier"`
}

// EnrollmentFeasibility is the enrollment forecast for one protocol.
type EnrollmentFeasibility struct {
	EstimatedMonths      float64             `json:"estimated_months"`
	BaselineMonths       float64             `json:"baseline_months"`
	DifficultyMultiplier float64             `json:"difficulty_multiplier"`
	AppliedFactors       []AppliedMultiplier `json:"applied_factors"`
	ScreenFailureRate    float64             `json:"screen_failure_rate"`
	RecommendedSites     int                 `json:"recommended_sites"`
	Difficulty           DifficultyTier      `json:"difficulty"`
	RiskFactors          []RiskFactor        `json:"risk_factors"`
	Recommendations      []string            `json:"recommendations"`
	Confidence           float64             `json:"confidence"`
}

// BurdenLevel bands a patient burden score.
type BurdenLevel string

const (
	BurdenLow      BurdenLevel = "Low"
	BurdenModerate BurdenLevel = "Moderate"
	BurdenHigh     BurdenLevel = "High"
	BurdenVeryHigh BurdenLevel = "Very High"
)

// VisitFactors are the schedule facts extracted from protocol text.
type VisitFactors struct {
	TotalVisits    int            `json:"total_visits"`
	Frequency      VisitFrequency `json:"frequency"`
	DurationMonths int            `json:"duration_months"`
	Procedures     []string       `json:"procedures"`
	InvasiveCount  int            `json:"invasive_count"`
	Inpatient      bool           `json:"inpatient"`
	Visits         []VisitDetail  `json:"visits,omitempty"`
}

// VisitDetail is one scheduled visit with its estimated duration.
type VisitDetail struct {
	Number           int      `json:"number"`
	Label            string   `json:"label"`
	Procedures       []string `json:"procedures"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// VisitBurdenAnalysis is the patient-time and dropout forecast.
type VisitBurdenAnalysis struct {
	TotalVisits         int                `json:"total_visits"`
	AverageVisitMinutes int                `json:"average_visit_minutes"`
	TotalStudyHours     float64            `json:"total_study_hours"`
	BurdenScore         float64            `json:"burden_score"`
	BurdenLevel         BurdenLevel        `json:"burden_level"`
	DropoutRisk         float64            `json:"dropout_risk"`
	ScoreBreakdown      map[string]float64 `json:"score_breakdown"`
	Visits              []VisitDetail      `json:"visits"`
	Recommendations     []string           `json:"recommendations"`
}

// MetricCategory is the qualitative grade of a benchmark metric.
type MetricCategory string

const (
	CategoryExcellent    MetricCategory = "Excellent"
	CategoryGood         MetricCategory = "Good"
	CategoryAverage      MetricCategory = "Average"
	CategoryBelowAverage MetricCategory = "Below Average"
	CategoryPoor         MetricCategory = "Poor"
)

// Severity grades a benchmark outlier.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityWarning  Severity = "Warning"
	SeverityInfo     Severity = "Info"
)

// ProtocolMetrics is the comparable metric set of one protocol.
type ProtocolMetrics struct {
	SampleSize      float64 `json:"sample_size"`
	ComplexityScore float64 `json:"complexity_score"`
	CriteriaCount   float64 `json:"criteria_count"`
	EndpointCount   float64 `json:"endpoint_count"`
}

// Benchmark metric names.
const (
	MetricSampleSize      = "sample_size"
	MetricComplexityScore = "complexity_score"
	MetricCriteriaCount   = "criteria_count"
	MetricEndpointCount   = "endpoint_count"
)

// MetricNames lists the benchmarked metrics in report order.
var MetricNames = []string{MetricSampleSize, MetricComplexityScore, MetricCriteriaCount, MetricEndpointCount}

// Value returns the named metric.
func (m ProtocolMetrics) Value(name string) (float64, bool) {
	switch name {
	case MetricSampleSize:
		return m.SampleSize, true
	case MetricComplexityScore:
		return m.ComplexityScore, true
	case MetricCriteriaCount:
		return m.CriteriaCount, true
	case MetricEndpointCount:
		return m.EndpointCount, true
	}
	return 0, false
}

// BenchmarkMetric positions one protocol metric in its cohort.
type BenchmarkMetric struct {
	Name           string         `json:"name"`
	ProtocolValue  float64        `json:"protocol_value"`
	IndustryMedian float64        `json:"industry_median"`
	Percentile     float64        `json:"percentile"`
	Category       MetricCategory `json:"category"`
	Insight        string         `json:"insight"`
}

// Outlier is a metric in an extreme percentile band.
type Outlier struct {
	Metric         string   `json:"metric"`
	Value          float64  `json:"value"`
	Percentile     float64  `json:"percentile"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
}

// Benchmark is the cohort comparison of one protocol.
type Benchmark struct {
	Phase           Phase             `json:"phase"`
	TherapeuticArea TherapeuticArea   `json:"therapeutic_area"`
	Cohort          string            `json:"cohort"`
	CohortSize      int               `json:"cohort_size"`
	Metrics         []BenchmarkMetric `json:"metrics"`
	Outliers        []Outlier         `json:"outliers"`
	IndustryContext []string          `json:"industry_context"`
}

// Recommendation is one prioritised action for the protocol author.
type Recommendation struct {
	Priority       Impact  `json:"priority"`
	Category       string  `json:"category"`
	Title          string  `json:"title"`
	Action         string  `json:"action"`
	ExpectedImpact string  `json:"expected_impact"`
	ImpactScore    float64 `json:"impact_score"`
	Source         string  `json:"source"`
}

package feature_extractor

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
)

// ---------------------------------------------------------------------------
// Ordered pattern chains
// ---------------------------------------------------------------------------

// numericPattern is one candidate in an ordered extraction chain.  convert
// turns the submatches into a value; ok=false discards the match.
type numericPattern struct {
	re      *regexp.Regexp
	convert func(m []string) (int, bool)
}

// firstInBounds walks the chain in order and returns the first converted
// match accepted by inBounds.  Out-of-bounds matches fall through to the next
// match and then to the next pattern.
func firstInBounds(text string, chain []numericPattern, inBounds func(int) bool) (int, bool) {
	for _, p := range chain {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			v, ok := p.convert(m)
			if ok && inBounds(v) {
				return v, true
			}
		}
	}
	return 0, false
}

// parseCount parses "1,250" style integers.
func parseCount(s string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	return n, err == nil
}

func group(i int) func(m []string) (int, bool) {
	return func(m []string) (int, bool) { return parseCount(m[i]) }
}

// ---------------------------------------------------------------------------
// Sample size
// ---------------------------------------------------------------------------

var sampleSizeChain = []numericPattern{
	{regexp.MustCompile(`(?i)\b(?:sample\s+size|target(?:ed)?\s+enrol(?:l)?ment|planned\s+enrol(?:l)?ment|enrol(?:l)?ment\s+target)\s*(?:of|:|is|=|will\s+be)?\s*(?:approximately\s+|about\s+|up\s+to\s+)?(\d[\d,]*)\b`), group(1)},
	{regexp.MustCompile(`(?i)\b(?:enrol{1,2}|recruit)(?:ed|s|ing|ment\s+of)?\s+(?:a\s+total\s+of\s+|approximately\s+|about\s+|up\s+to\s+)?(\d[\d,]*)\b`), group(1)},
	{regexp.MustCompile(`(?i)\b(\d[\d,]*)\s+(?:evaluable\s+|eligible\s+|adult\s+|healthy\s+)?(?:patients|participants|subjects|volunteers|individuals|adults|children)\b`), group(1)},
	{regexp.MustCompile(`(?i)\bn\s*=\s*(\d[\d,]*)\b`), group(1)},
}

type regexSampleSize struct{}

func (regexSampleSize) SampleSize(text string) (int, bool) {
	return firstInBounds(text, sampleSizeChain, func(n int) bool { return n > 0 && n < protocol.MaxSampleSize })
}

// ---------------------------------------------------------------------------
// Age range
// ---------------------------------------------------------------------------

var (
	ageBetween = regexp.MustCompile(`(?i)\b(?:aged?|ages?)\s*(?:between\s*|from\s*|of\s*)?(\d{1,3})\s*(?:-|–|to|and)\s*(\d{1,3})\b`)
	ageSpan    = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:-|–|to)\s*(\d{1,3})\s*(?:years?|yrs?)\b`)
	ageAtLeast = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:aged?|ages?)\s*(?:>=|>|at\s+least|over|older\s+than)\s*(\d{1,3})\b`),
		regexp.MustCompile(`(?i)(?:>=|\bat\s+least)\s*(\d{1,3})\s*(?:years?|yrs?)\s*(?:of\s+age|old)\b`),
		regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:years?|yrs?)\s*(?:of\s+age\s*)?(?:or|and)\s*(?:older|above|over)\b`),
	}
)

type regexAgeRange struct{}

func validAge(lo, hi int) bool { return lo >= 0 && lo < hi && hi <= protocol.MaxAge }

func (regexAgeRange) AgeRange(text string) *protocol.AgeRange {
	for _, re := range []*regexp.Regexp{ageBetween, ageSpan} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			lo, _ := strconv.Atoi(m[1])
			hi, _ := strconv.Atoi(m[2])
			if validAge(lo, hi) {
				return &protocol.AgeRange{Min: lo, Max: hi}
			}
		}
	}
	for _, re := range ageAtLeast {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			lo, _ := strconv.Atoi(m[1])
			if validAge(lo, protocol.MaxAge) {
				return &protocol.AgeRange{Min: lo, Max: protocol.MaxAge}
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Durations
// ---------------------------------------------------------------------------

// toDays converts an amount in the given unit to days.
func toDays(n int, unit string) int {
	u := strings.ToLower(unit)
	switch {
	case strings.HasPrefix(u, "week"):
		return n * 7
	case strings.HasPrefix(u, "month"):
		return n * 30
	case strings.HasPrefix(u, "year"):
		return n * 365
	}
	return n
}

// toMonths converts an amount in the given unit to whole months, rounding to
// the nearest month and never below one.
func toMonths(n int, unit string) int {
	u := strings.ToLower(unit)
	var months float64
	switch {
	case strings.HasPrefix(u, "day"):
		months = float64(n) / 30
	case strings.HasPrefix(u, "week"):
		months = float64(n) / 4.345
	case strings.HasPrefix(u, "year"):
		months = float64(n) * 12
	default:
		months = float64(n)
	}
	return max(1, int(math.Round(months)))
}

func inDays(m []string) (int, bool) {
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return toDays(n, m[2]), true
}

func inMonths(m []string) (int, bool) {
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return toMonths(n, m[2]), true
}

var washoutChain = []numericPattern{
	{regexp.MustCompile(`(?i)\bwash[- ]?out\s+(?:period\s+)?(?:of\s+)?(?:at\s+least\s+|>=\s*|a\s+minimum\s+of\s+)?(\d{1,3})\s*(days?|weeks?|months?)\b`), inDays},
	{regexp.MustCompile(`(?i)\b(\d{1,3})[- ](days?|weeks?|months?)\s+wash[- ]?out\b`), inDays},
	{regexp.MustCompile(`(?i)\bwash[- ]?out\b[^.\n]{0,60}?\b(\d{1,3})\s*(days?|weeks?|months?)\b`), inDays},
}

type regexWashout struct{}

// WashoutDays returns the required washout in days, capped at a year.
func (regexWashout) WashoutDays(text string) (int, bool) {
	d, ok := firstInBounds(text, washoutChain, func(n int) bool { return n > 0 })
	if !ok {
		return 0, false
	}
	return min(d, protocol.MaxWashoutDays), true
}

var durationChain = []numericPattern{
	{regexp.MustCompile(`(?i)\b(?:study|trial|treatment|participation|follow[- ]?up)\s+(?:duration|period)\s*(?:of|:|is|will\s+be)?\s*(?:approximately\s+|up\s+to\s+|about\s+)?(\d{1,3})\s*(days?|weeks?|months?|years?)\b`), inMonths},
	{regexp.MustCompile(`(?i)\bduration(?:\s+of\s+(?:the\s+)?(?:study|trial|participation))?\s*(?::|is|will\s+be|of)\s*(?:approximately\s+|up\s+to\s+|about\s+)?(\d{1,3})\s*(days?|weeks?|months?|years?)\b`), inMonths},
	{regexp.MustCompile(`(?i)\b(\d{1,3})[- ](weeks?|months?|years?)\s+(?:study|trial|(?:double[- ]blind\s+)?treatment(?:\s+period)?|follow[- ]?up|extension)\b`), inMonths},
	{regexp.MustCompile(`(?i)\b(?:followed|treated|participate)\s+for\s+(?:up\s+to\s+|approximately\s+)?(\d{1,3})\s*(weeks?|months?|years?)\b`), inMonths},
}

// DurationMonths returns the overall study duration in months.
func (regexSchedule) DurationMonths(text string) (int, bool) {
	return firstInBounds(text, durationChain, func(n int) bool { return n >= 1 && n <= protocol.MaxDurationMonths })
}

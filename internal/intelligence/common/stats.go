package common

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0–100) of an ascending sample
// using linear interpolation between closest ranks: rank = p/100 × (n-1),
// interpolated between floor(rank) and ceil(rank).  This is the inclusive
// definition (Excel PERCENTILE.INC, numpy "linear").  An empty sample
// yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if upper >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// PercentileRank positions v within an ascending sample as
// (below + ½·equal) / n × 100.  An empty sample yields 50.
func PercentileRank(sorted []float64, v float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 50
	}
	below := sort.SearchFloat64s(sorted, v)
	through := sort.Search(n, func(i int) bool { return sorted[i] > v })
	equal := through - below
	return (float64(below) + 0.5*float64(equal)) / float64(n) * 100
}

// Sorted returns an ascending copy of values.
func Sorted(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

// Mean returns the arithmetic mean, 0 for an empty sample.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 { return math.Round(v*10) / 10 }

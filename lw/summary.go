package lw

import "math"

// BatchSummary aggregates statistics over a weighted batch.
type BatchSummary struct {
	Total        int
	Weighted     int
	Failed       int
	FailedByKind map[string]int // ErrorKind label → count

	SumWeights        float64
	SumSquaredWeights float64
	MinWeight         float64
	MaxWeight         float64
}

// EffectiveSampleSize is (Σw)²/Σw², the number of equal-weight events carrying the same
// statistical power. Zero when nothing was weighted.
func (s *BatchSummary) EffectiveSampleSize() float64 {
	if s.SumSquaredWeights == 0 {
		return 0
	}
	return s.SumWeights * s.SumWeights / s.SumSquaredWeights
}

// Summarize computes aggregate statistics from batch results.
// Safe for nil or empty input (returns zero-value fields).
func Summarize(results []Result) *BatchSummary {
	summary := &BatchSummary{
		FailedByKind: make(map[string]int),
	}
	summary.Total = len(results)
	first := true
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
			summary.FailedByKind[ErrorKind(r.Err)]++
			continue
		}
		summary.Weighted++
		summary.SumWeights += r.Weight
		summary.SumSquaredWeights += r.Weight * r.Weight
		if first {
			summary.MinWeight, summary.MaxWeight = r.Weight, r.Weight
			first = false
			continue
		}
		summary.MinWeight = math.Min(summary.MinWeight, r.Weight)
		summary.MaxWeight = math.Max(summary.MaxWeight, r.Weight)
	}
	return summary
}

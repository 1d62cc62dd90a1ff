package eval

import "github.com/connexus-ai/legalrag-backend/internal/model"

// defaultKValues are the cutoffs hit_rate@k is reported for when the caller
// doesn't specify its own, matching the original evaluator's default.
var defaultKValues = []int{1, 3, 5, 10}

func hitRate(results []model.EvaluationResult) float64 {
	if len(results) == 0 {
		return 0
	}
	hits := 0
	for _, r := range results {
		if r.Hit {
			hits++
		}
	}
	return float64(hits) / float64(len(results))
}

func hitRateAtK(results []model.EvaluationResult, k int) float64 {
	if len(results) == 0 {
		return 0
	}
	hits := 0
	for _, r := range results {
		if r.Hit && r.Rank != nil && *r.Rank <= k {
			hits++
		}
	}
	return float64(hits) / float64(len(results))
}

func meanReciprocalRank(results []model.EvaluationResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		if r.Hit && r.Rank != nil && *r.Rank > 0 {
			sum += 1.0 / float64(*r.Rank)
		}
	}
	return sum / float64(len(results))
}

// calculateAllMetrics mirrors the original calculate_all_metrics: hit rate,
// MRR, hit_rate@k for each of k in {1,3,5,10}, and totals.
func calculateAllMetrics(results []model.EvaluationResult) model.EvaluationMetrics {
	hits := 0
	for _, r := range results {
		if r.Hit {
			hits++
		}
	}

	atK := make(map[int]float64, len(defaultKValues))
	for _, k := range defaultKValues {
		atK[k] = hitRateAtK(results, k)
	}

	return model.EvaluationMetrics{
		HitRate:        hitRate(results),
		HitRateAtK:     atK,
		MRR:            meanReciprocalRank(results),
		TotalQuestions: len(results),
		TotalHits:      hits,
	}
}

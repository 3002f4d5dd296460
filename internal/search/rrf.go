// Package search implements the hybrid retrieval engine: semantic
// (cosine) and lexical (BM25) ranking fused by Reciprocal Rank Fusion.
package search

import "sort"

// DefaultRRFK is the rank-damping constant used when none is supplied.
const DefaultRRFK = 60

// RankedItem is one entry of a ranked input list: an identifier and
// its raw score in that list (semantic similarity or BM25 score),
// carried through to FusedResult.Semantic/Lexical — RRF itself only
// consumes rank order.
type RankedItem struct {
	ID    int64
	Score float64
}

// FusedResult is one item of a fused ranking: its RRF score and the
// raw per-list scores it came from, where present.
type FusedResult struct {
	ID          int64
	RRFScore    float64
	Semantic    *float64
	Lexical     *float64
}

// ReciprocalRankFusion fuses any number of ranked lists into one
// ranking. Every item at 0-based rank r in list i contributes
// 1/(k+r+1) to its fused score; items are summed across every list
// they appear in and sorted by total score descending.
func ReciprocalRankFusion(k int, lists ...[]RankedItem) []FusedResult {
	return WeightedRRF(k, equalWeights(len(lists)), lists...)
}

// WeightedRRF is ReciprocalRankFusion with a per-list weight applied
// to each list's contribution: weight_i / (k + r + 1).
// Callers always pass the semantic list first and the lexical list
// second (or omit one mode entirely); WeightedRRF relies on that
// ordering to populate FusedResult.Semantic/Lexical for diagnostics.
func WeightedRRF(k int, weights []float64, lists ...[]RankedItem) []FusedResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	type accum struct {
		score    float64
		semantic *float64
		lexical  *float64
	}
	scores := make(map[int64]*accum)
	order := make([]int64, 0)

	for listIdx, list := range lists {
		weight := 1.0
		if listIdx < len(weights) {
			weight = weights[listIdx]
		}
		for rank, item := range list {
			a, exists := scores[item.ID]
			if !exists {
				a = &accum{}
				scores[item.ID] = a
				order = append(order, item.ID)
			}
			a.score += weight / float64(k+rank+1)
			score := item.Score
			if listIdx == 0 {
				a.semantic = &score
			} else {
				a.lexical = &score
			}
		}
	}

	results := make([]FusedResult, 0, len(order))
	for _, id := range order {
		a := scores[id]
		results = append(results, FusedResult{ID: id, RRFScore: a.score, Semantic: a.semantic, Lexical: a.lexical})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RRFScore > results[j].RRFScore
	})

	return results
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0
	}
	return w
}

package store

import "sort"

// rrfConstant is the k in 1/(k+rank).
const rrfConstant = 60

// FuseRRF combines two ranked id lists by Reciprocal Rank Fusion and returns
// the fused ids in descending score order, truncated to k. Ties break
// deterministically by ascending id. Unlike the scheme some hybrid-search
// implementations use, scores are left as raw 1/(k+rank) sums — small
// numbers in the ~0.01-0.03 range — never rescaled to [0,1], so callers can
// compare them against the raw per-modality thresholds.
func FuseRRF(a, b []uint64, k int) []uint64 {
	combined := make(map[uint64]float64)

	addRanks := func(list []uint64) {
		for rank, id := range list {
			combined[id] += 1.0 / float64(rrfConstant+rank+1)
		}
	}
	addRanks(a)
	addRanks(b)

	ids := make([]uint64, 0, len(combined))
	for id := range combined {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		si, sj := combined[ids[i]], combined[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})

	if k >= 0 && len(ids) > k {
		ids = ids[:k]
	}
	return ids
}

// FuseRRFScores behaves like FuseRRF but also returns the fused score for
// every returned id, for callers that must report the combined score
// alongside the per-modality raw scores.
func FuseRRFScores(a, b []uint64, k int) ([]uint64, map[uint64]float64) {
	combined := make(map[uint64]float64)

	addRanks := func(list []uint64) {
		for rank, id := range list {
			combined[id] += 1.0 / float64(rrfConstant+rank+1)
		}
	}
	addRanks(a)
	addRanks(b)

	ids := make([]uint64, 0, len(combined))
	for id := range combined {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		si, sj := combined[ids[i]], combined[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})

	if k >= 0 && len(ids) > k {
		ids = ids[:k]
	}
	return ids, combined
}

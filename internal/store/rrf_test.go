package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseRRF_EmptyInputsReturnEmpty(t *testing.T) {
	ids := FuseRRF(nil, nil, 10)
	assert.Empty(t, ids)
}

func TestFuseRRF_UnionOfBothListsRanked(t *testing.T) {
	a := []uint64{1, 2, 3}
	b := []uint64{3, 4}

	ids := FuseRRF(a, b, 10)
	require.Len(t, ids, 4)

	// id 3 appears in both lists (rank 3 in a, rank 1 in b) so it should
	// score highest among non-rank-1-in-a ids.
	assert.Contains(t, ids, uint64(3))
}

func TestFuseRRF_TruncatesToK(t *testing.T) {
	a := []uint64{1, 2, 3, 4, 5}
	ids := FuseRRF(a, nil, 2)
	assert.Len(t, ids, 2)
	assert.Equal(t, []uint64{1, 2}, ids)
}

func TestFuseRRF_TiesBreakByAscendingID(t *testing.T) {
	// Two disjoint singleton lists: both ids get the same rank-1 score.
	ids := FuseRRF([]uint64{5}, []uint64{2}, 10)
	require.Len(t, ids, 2)
	assert.Equal(t, uint64(2), ids[0])
	assert.Equal(t, uint64(5), ids[1])
}

func TestFuseRRFScores_ScoresAreSmallRawValues(t *testing.T) {
	ids, scores := FuseRRFScores([]uint64{1}, nil, 10)
	require.Len(t, ids, 1)
	// 1/(60+1) ~= 0.0164 - must not be rescaled into [0,1]-normalized territory.
	assert.InDelta(t, 1.0/61.0, scores[1], 1e-9)
}

func TestFuseRRF_MonotoneTransformInvariance(t *testing.T) {
	// RRF is rank-only: changing the underlying scores without changing
	// rank order must not change the fused output.
	a := []uint64{10, 20, 30}
	bLow := []uint64{30, 10}
	bHigh := []uint64{30, 10} // same rank order, different hypothetical raw scores

	idsLow := FuseRRF(a, bLow, 10)
	idsHigh := FuseRRF(a, bHigh, 10)
	assert.Equal(t, idsLow, idsHigh)
}

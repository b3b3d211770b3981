package positions

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeIndexToIndexSet(t *testing.T) {
	tests := []struct {
		index int
		want  int64
	}{
		{index: 0, want: 1},
		{index: 1, want: 2},
		{index: 2, want: 4},
		{index: 7, want: 128},
	}

	for _, tt := range tests {
		assert.Equal(t, big.NewInt(tt.want), OutcomeIndexToIndexSet(tt.index))
	}
}

func TestOutcomeIndicesToIndexSet(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
		want    int64
	}{
		{name: "empty", indices: nil, want: 0},
		{name: "single", indices: []int{0}, want: 1},
		{name: "pair", indices: []int{0, 2}, want: 5},
		{name: "all of three", indices: []int{0, 1, 2}, want: 7},
		{name: "order independent", indices: []int{2, 0}, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, big.NewInt(tt.want), OutcomeIndicesToIndexSet(tt.indices))
		})
	}
}

func TestIndexSetRoundTrip(t *testing.T) {
	for _, indices := range [][]int{{0}, {1}, {0, 1}, {0, 3, 5}, {2, 4, 6, 8}} {
		set := OutcomeIndicesToIndexSet(indices)
		assert.Equal(t, indices, IndexSetToOutcomeIndices(set))
	}
}

func TestIndexSetToOutcomeIndicesEmpty(t *testing.T) {
	assert.Nil(t, IndexSetToOutcomeIndices(new(big.Int)))
}

func TestCollectionCount(t *testing.T) {
	assert.Equal(t, 4, CollectionCount(2))
	assert.Equal(t, 8, CollectionCount(3))
	assert.Equal(t, 1024, CollectionCount(10))
}

package pricing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleOutcomeVector(t *testing.T) {
	vector := SingleOutcomeVector(4, 2, big.NewInt(7))

	assert.Len(t, vector, 4)
	for i, delta := range vector {
		if i == 2 {
			assert.Equal(t, big.NewInt(7), delta)
		} else {
			assert.Equal(t, 0, delta.Sign())
		}
	}
}

func TestSingleOutcomeVectorNegativeAmount(t *testing.T) {
	vector := SingleOutcomeVector(2, 0, big.NewInt(-3))
	assert.Equal(t, big.NewInt(-3), vector[0])
	assert.Equal(t, 0, vector[1].Sign())
}

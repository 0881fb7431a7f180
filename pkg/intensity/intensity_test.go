package intensity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"nodulesynth/internal/models"
	"nodulesynth/pkg/logger"
)

func TestNormalizeRange(t *testing.T) {
	inputs := [][]float64{
		{-1024, 0, 400, 3071},
		{0.2, 0.3},
		{5, -5, 2.5, 7, 7, -5},
	}

	for _, in := range inputs {
		out := Normalize(in, nil)
		require.Len(t, out, len(in))
		assert.Equal(t, 0.0, floats.Min(out))
		assert.InDelta(t, 1.0, floats.Max(out), 1e-12)
	}
}

func TestNormalizePreservesOrder(t *testing.T) {
	out := Normalize([]float64{10, 20, 15}, nil)
	assert.InDeltaSlice(t, []float64{0, 1, 0.5}, out, 1e-12)
}

func TestNormalizeConstantPassesThrough(t *testing.T) {
	log := &logger.MemoryLogger{}
	in := []float64{3, 3, 3, 3}

	out := Normalize(in, log)

	require.Equal(t, in, out)
	assert.True(t, log.Contains("constant array"))
}

func TestNormalizeDoesNotModifyInput(t *testing.T) {
	in := []float64{1, 2, 3}
	Normalize(in, nil)
	assert.Equal(t, []float64{1, 2, 3}, in)
}

func TestNormalizePlane(t *testing.T) {
	p := &models.Plane{Data: []float64{2, 4, 6, 8}, Rows: 2, Cols: 2}
	n := NormalizePlane(p, nil)
	assert.Equal(t, 2, n.Rows)
	assert.Equal(t, 2, n.Cols)
	assert.InDeltaSlice(t, []float64{0, 1.0 / 3, 2.0 / 3, 1}, n.Data, 1e-12)
}

func TestContrastFactorFloorOnEqualMeans(t *testing.T) {
	// nodule foreground mean 0.5, host mean 0.5 -> ln(1) = 0 -> floor
	nodule := []float64{0, 0, 0.5, 0.5}
	host := []float64{0.25, 0.75, 0.5, 0.5}

	assert.Equal(t, 0.4, ContrastFactor(nodule, host, DefaultContrastFloor))
}

func TestContrastFactorUnitForERatio(t *testing.T) {
	hostMean := 0.3
	nodule := []float64{0, math.E * hostMean, math.E * hostMean}
	host := []float64{hostMean, hostMean, hostMean}

	assert.InDelta(t, 1.0, ContrastFactor(nodule, host, DefaultContrastFloor), 1e-12)
}

func TestContrastFactorIgnoresBackground(t *testing.T) {
	// the zeros are background and must not pull the nodule mean down
	nodule := []float64{0, 0, 0, 0, 0, 0, 0.9, 0.9}
	host := []float64{0.1}
	assert.InDelta(t, math.Log(9), ContrastFactor(nodule, host, DefaultContrastFloor), 1e-12)
}

func TestContrastFactorNonFiniteFallsBackToFloor(t *testing.T) {
	assert.Equal(t, 0.4, ContrastFactor([]float64{1, 1}, []float64{0.5}, 0.4), "no foreground")
	assert.Equal(t, 0.4, ContrastFactor([]float64{0, 1}, []float64{0, 0}, 0.4), "black host")
	assert.Equal(t, 0.4, ContrastFactor(nil, []float64{0.5}, 0.4), "empty nodule")
}

func TestScale(t *testing.T) {
	p := &models.Plane{Data: []float64{0, 0.5, 1}, Rows: 1, Cols: 3}
	s := Scale(p, 2)
	assert.Equal(t, []float64{0, 1, 2}, s.Data)
	assert.Equal(t, []float64{0, 0.5, 1}, p.Data)
}

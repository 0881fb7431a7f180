package nodule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodulesynth/internal/models"
)

// fillBox sets mask voxels in [z0,z1) x [y0,y1) x [x0,x1)
func fillBox(m *models.Volume, z0, z1, y0, y1, x0, x1 int) {
	for z := z0; z < z1; z++ {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				m.Set(z, y, x, 1)
			}
		}
	}
}

func TestDiameterOfRectangle(t *testing.T) {
	tests := []struct {
		name   string
		h, w   int
		depthY int
		want   int
	}{
		{"square", 5, 5, 3, 5},
		{"tall", 9, 4, 2, 9},
		{"wide", 3, 11, 6, 11},
		{"single voxel", 1, 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := models.NewVolume(20, 10, 20, models.KindUint8)
			fillBox(m, 2, 2+tt.h, 1, 1+tt.depthY, 4, 4+tt.w)

			d, err := Diameter(m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestDiameterSpansDisjointFragments(t *testing.T) {
	m := models.NewVolume(20, 3, 20, models.KindUint8)
	// a 10x10 nodule and a 2x2 fragment further along in raster order
	fillBox(m, 0, 10, 0, 1, 0, 10)
	fillBox(m, 15, 17, 1, 2, 15, 17)

	d, err := Diameter(m)
	require.NoError(t, err)
	assert.Equal(t, 17, d)
}

func TestDiameterEmptyMask(t *testing.T) {
	_, err := Diameter(models.NewVolume(3, 3, 3, models.KindUint8))
	assert.True(t, errors.Is(err, ErrEmptyMask))
}

func TestExtent(t *testing.T) {
	fg := []bool{
		false, false, true, true,
		false, false, false, false,
		true, false, false, false,
		true, true, false, false,
	}
	r, ok := Extent(fg, 4, 4)
	require.True(t, ok)
	assert.Equal(t, Region{MinRow: 0, MinCol: 0, MaxRow: 4, MaxCol: 4, Area: 5}, r)
	assert.Equal(t, 4, r.Span())

	_, ok = Extent(make([]bool, 4), 2, 2)
	assert.False(t, ok)
}

func TestProjectMaskAnyVoxelCounts(t *testing.T) {
	m := models.NewVolume(2, 5, 2, models.KindUint8)
	m.Set(1, 4, 0, 1)
	fg, rows, cols := ProjectMask(m)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, []bool{false, false, true, false}, fg)
}

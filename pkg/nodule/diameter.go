// Package nodule measures segmented nodules
package nodule

import (
	"errors"
	"fmt"

	"nodulesynth/internal/models"
)

// ErrEmptyMask is returned when a segmentation mask has no foreground voxels
var ErrEmptyMask = errors.New("segmentation mask has no foreground")

// Region is the bounding box of all foreground pixels of a projected mask,
// measured as one label however many pieces it falls into. The bounds are
// half-open: rows [MinRow, MaxRow) and columns [MinCol, MaxCol).
type Region struct {
	MinRow int
	MinCol int
	MaxRow int
	MaxCol int
	Area   int
}

// Span is the largest bounding extent of the region
func (r Region) Span() int {
	return max(r.MaxRow-r.MinRow, r.MaxCol-r.MinCol)
}

// ProjectMask mean-projects a mask along axis 1 and thresholds it, returning a
// Depth x Width foreground map
func ProjectMask(mask *models.Volume) ([]bool, int, int) {
	rows, cols := mask.Depth, mask.Width
	fg := make([]bool, rows*cols)
	for z := 0; z < mask.Depth; z++ {
		for x := 0; x < mask.Width; x++ {
			sum := 0.0
			for y := 0; y < mask.Height; y++ {
				sum += mask.At(z, y, x)
			}
			fg[z*cols+x] = sum/float64(mask.Height) != 0
		}
	}
	return fg, rows, cols
}

// Extent returns the region covering every foreground pixel of a projected
// mask. ok is false when there is none.
func Extent(fg []bool, rows, cols int) (Region, bool) {
	r := Region{MinRow: rows, MinCol: cols}
	for i, on := range fg {
		if !on {
			continue
		}
		row, col := i/cols, i%cols
		r.Area++
		r.MinRow = min(r.MinRow, row)
		r.MinCol = min(r.MinCol, col)
		r.MaxRow = max(r.MaxRow, row+1)
		r.MaxCol = max(r.MaxCol, col+1)
	}
	return r, r.Area > 0
}

// Diameter estimates the nodule diameter in voxels from its segmentation mask.
//
// The mask is projected along axis 1 and the bounding span of its foreground is
// measured. Disconnected fragments are part of the same nodule label, so they
// widen the span rather than replace it.
func Diameter(mask *models.Volume) (int, error) {
	if err := mask.Validate(); err != nil {
		return 0, fmt.Errorf("invalid mask: %w", err)
	}

	fg, rows, cols := ProjectMask(mask)
	region, ok := Extent(fg, rows, cols)
	if !ok {
		return 0, ErrEmptyMask
	}
	return region.Span(), nil
}

package intensity

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"nodulesynth/internal/models"
)

// DefaultContrastFloor keeps low-contrast nodules visible
const DefaultContrastFloor = 0.4

// ContrastFactor returns the multiplicative gain that relates the nodule's mean
// intensity to the surrounding tissue (Litjens et al.):
//
//	c = max(floor, ln(noduleMean / hostMean))
//
// The nodule mean only covers pixels above the nodule's minimum (its background).
// A ratio whose log is not finite, e.g. an all-background nodule or a black host
// crop, yields the floor.
func ContrastFactor(nodule, host []float64, floor float64) float64 {
	if len(nodule) == 0 || len(host) == 0 {
		return floor
	}

	background := floats.Min(nodule)
	foreground := make([]float64, 0, len(nodule))
	for _, v := range nodule {
		if v != background {
			foreground = append(foreground, v)
		}
	}
	if len(foreground) == 0 {
		return floor
	}

	it := stat.Mean(foreground, nil)
	ib := stat.Mean(host, nil)

	c := math.Log(it / ib)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return floor
	}
	return math.Max(floor, c)
}

// Scale returns a copy of p with every sample multiplied by c
func Scale(p *models.Plane, c float64) *models.Plane {
	out := p.Clone()
	floats.Scale(c, out.Data)
	return out
}

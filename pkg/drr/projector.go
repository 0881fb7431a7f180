// Package drr generates digitally reconstructed radiographs: simulated 2D chest
// X-ray projections of a CT volume.
package drr

import (
	"fmt"
	"math"

	"nodulesynth/internal/models"
)

const (
	// DefaultBeta controls the boosting of X-ray absorption as tissue density
	// increases. 0.85 was chosen by visual comparison with real chest X-rays.
	DefaultBeta = 0.85

	DefaultWindowMin = -500.0
	DefaultWindowMax = 400.0

	// huOffset shifts the window so air sits near zero attenuation
	huOffset = 1024.0
	huScale  = 1000.0
)

// Projector turns a CT volume into a 2D projection that approximates cumulative
// absorption along one axis
type Projector struct {
	// Beta is the absorption boosting factor
	Beta float64

	// WindowMin and WindowMax bound the physiological HU window
	WindowMin float64
	WindowMax float64

	// Axis is the volume axis (0, 1 or 2) averaged away
	Axis int
}

// NewProjector returns a projector with the calibrated defaults, projecting
// along axis 1
func NewProjector() *Projector {
	return &Projector{
		Beta:      DefaultBeta,
		WindowMin: DefaultWindowMin,
		WindowMax: DefaultWindowMax,
		Axis:      1,
	}
}

// attenuation maps one HU value to its exponentiated absorption term
func (p *Projector) attenuation(hu float64) float64 {
	v := math.Min(math.Max(hu, p.WindowMin), p.WindowMax)
	v = (v + huOffset) / huScale * p.Beta
	if v > 1 {
		v = 1
	}
	return math.Exp(v)
}

// Project computes the projection. Along axis 1 of a (z, y, x) volume the result
// has Depth rows and Width columns; along axis 0 Height x Width; along axis 2
// Depth x Height. The output is not normalized.
func (p *Projector) Project(v *models.Volume) (*models.Plane, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	var out *models.Plane
	var n int
	switch p.Axis {
	case 0:
		out, n = models.NewPlane(v.Height, v.Width), v.Depth
	case 1:
		out, n = models.NewPlane(v.Depth, v.Width), v.Height
	case 2:
		out, n = models.NewPlane(v.Depth, v.Height), v.Width
	default:
		return nil, fmt.Errorf("invalid projection axis %d (must be 0, 1 or 2)", p.Axis)
	}

	for z := 0; z < v.Depth; z++ {
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				a := p.attenuation(v.At(z, y, x))
				switch p.Axis {
				case 0:
					out.Data[y*out.Cols+x] += a
				case 1:
					out.Data[z*out.Cols+x] += a
				case 2:
					out.Data[z*out.Cols+y] += a
				}
			}
		}
	}

	for i := range out.Data {
		out.Data[i] /= float64(n)
	}
	return out, nil
}

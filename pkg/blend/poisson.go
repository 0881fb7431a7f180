package blend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"nodulesynth/internal/models"
)

const (
	DefaultOmega         = 1.9
	DefaultMaxIterations = 5000
	DefaultTolerance     = 1e-3
)

// PoissonCloner is a pure Go mixed seamless clone.
//
// Inside the placement rectangle it solves laplace(f) = div(v) where, per pixel
// pair, the guidance v is whichever of the source or destination gradients is
// stronger. The rectangle's outer ring keeps the destination values and acts as
// the Dirichlet boundary. The system is solved with successive over-relaxation.
type PoissonCloner struct {
	Omega         float64
	MaxIterations int
	Tolerance     float64
}

// NewPoissonCloner returns a cloner with the default solver settings
func NewPoissonCloner() *PoissonCloner {
	return &PoissonCloner{
		Omega:         DefaultOmega,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

var neighbours = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

func mixedGradient(gs, gd float64) float64 {
	if math.Abs(gs) > math.Abs(gd) {
		return gs
	}
	return gd
}

// Clone implements Cloner
func (pc *PoissonCloner) Clone(src, dst *models.Plane, c Center) (*models.Plane, error) {
	r0, c0, err := Placement(src, dst, c)
	if err != nil {
		return nil, err
	}
	if src.Rows < 3 || src.Cols < 3 {
		return nil, fmt.Errorf("patch %dx%d is too small to have an interior", src.Rows, src.Cols)
	}
	if pc.Omega <= 0 || pc.Omega >= 2 {
		return nil, fmt.Errorf("SOR relaxation factor must be in (0,2), got %f", pc.Omega)
	}

	rows, cols := src.Rows, src.Cols
	region := dst.Crop(r0, c0, r0+rows, c0+cols)

	// divergence of the guidance field for every interior pixel
	div := make([]float64, rows*cols)
	for r := 1; r < rows-1; r++ {
		for col := 1; col < cols-1; col++ {
			i := r*cols + col
			sum := 0.0
			for _, n := range neighbours {
				j := (r+n[0])*cols + col + n[1]
				sum += mixedGradient(src.Data[i]-src.Data[j], region.Data[i]-region.Data[j])
			}
			div[i] = sum
		}
	}

	f := region.Data
	prev := make([]float64, len(f))
	for iter := 0; iter < pc.MaxIterations; iter++ {
		copy(prev, f)
		for r := 1; r < rows-1; r++ {
			for col := 1; col < cols-1; col++ {
				i := r*cols + col
				gs := (f[i-cols] + f[i+cols] + f[i-1] + f[i+1] + div[i]) / 4
				f[i] += pc.Omega * (gs - f[i])
			}
		}
		if floats.Distance(prev, f, math.Inf(1)) < pc.Tolerance {
			break
		}
	}

	out := dst.Clone()
	out.Paste(Quantize(region, 1), r0, c0)
	return out, nil
}

// Package interpolation rescales volumes to a new voxel spacing or shape.
package interpolation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"nodulesynth/internal/models"
	"nodulesynth/pkg/logger"
)

// Order selects the interpolation used when resampling
type Order int

const (
	// OrderNearest copies the closest sample. Fast, and keeps mask labels intact.
	OrderNearest Order = 0

	// OrderLinear is separable linear interpolation
	OrderLinear Order = 1

	// OrderCubic is separable natural cubic spline interpolation. Smooth, meant
	// for intensity data.
	OrderCubic Order = 3
)

func (o Order) String() string {
	switch o {
	case OrderNearest:
		return "nearest"
	case OrderLinear:
		return "linear"
	case OrderCubic:
		return "cubic"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// ParseOrder accepts the names returned by Order.String and the numeric orders
func ParseOrder(s string) (Order, error) {
	switch s {
	case "nearest", "0":
		return OrderNearest, nil
	case "linear", "1":
		return OrderLinear, nil
	case "cubic", "3":
		return OrderCubic, nil
	}
	return OrderLinear, fmt.Errorf("unknown interpolation order %q", s)
}

// ErrNoTarget is returned when neither a target spacing nor a target shape is given
var ErrNoTarget = errors.New("resample: a target spacing or a target shape is required")

// Target describes what the volume is resampled to. When both fields are set,
// Shape takes priority.
type Target struct {
	Spacing *[3]float64
	Shape   *[3]int
}

// ToSpacing targets a voxel spacing
func ToSpacing(s [3]float64) Target { return Target{Spacing: &s} }

// ToShape targets an output shape in (z, y, x) order
func ToShape(s [3]int) Target { return Target{Shape: &s} }

// IsotropicSpacing targets the same spacing on all three axes
func IsotropicSpacing(s float64) Target { return ToSpacing([3]float64{s, s, s}) }

// Resample interpolates v to the target spacing or shape. It returns a new volume
// whose Spacing is the spacing actually reached after rounding the shape.
// Integer kinds are rounded back to whole values.
func Resample(v *models.Volume, target Target, order Order, log logger.ILogger) (*models.Volume, error) {
	if target.Spacing == nil && target.Shape == nil {
		return nil, ErrNoTarget
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if order != OrderNearest && order != OrderLinear && order != OrderCubic {
		return nil, fmt.Errorf("unsupported interpolation order %d", int(order))
	}
	checkOrder(v, order, logger.OrNull(log))

	oldShape := v.Shape()
	var newShape [3]int
	if target.Shape != nil {
		newShape = *target.Shape
		for i, s := range newShape {
			if s <= 0 {
				return nil, fmt.Errorf("target shape on axis %d must be positive, got %d", i, s)
			}
		}
	} else {
		for i := range newShape {
			ns := target.Spacing[i]
			if ns <= 0 || math.IsNaN(ns) || math.IsInf(ns, 0) {
				return nil, fmt.Errorf("target spacing on axis %d must be positive, got %f", i, ns)
			}
			sizeMM := float64(oldShape[i]) * v.Spacing[i]
			newShape[i] = max(int(math.Round(sizeMM/ns)), 1)
		}
	}

	var newSpacing [3]float64
	for i := range newSpacing {
		factor := float64(newShape[i]) / float64(oldShape[i])
		newSpacing[i] = v.Spacing[i] / factor
	}

	data := v.Data
	shape := oldShape
	var err error
	for axis := 0; axis < 3; axis++ {
		if shape[axis] == newShape[axis] {
			continue
		}
		data, shape, err = resampleAxis(data, shape, axis, newShape[axis], order)
		if err != nil {
			return nil, fmt.Errorf("resampling axis %d: %w", axis, err)
		}
	}

	out := &models.Volume{
		Data:    data,
		Depth:   shape[0],
		Height:  shape[1],
		Width:   shape[2],
		Spacing: newSpacing,
		Kind:    v.Kind,
	}
	if len(data) > 0 && &data[0] == &v.Data[0] {
		// no axis changed size
		out.Data = make([]float64, len(data))
		copy(out.Data, data)
	}
	if v.Kind.IsInteger() {
		for i, val := range out.Data {
			out.Data[i] = math.Round(val)
		}
	}
	return out, nil
}

// checkOrder warns when the interpolation order looks wrong for the data: low
// order on something that looks like a scan, or cubic on something that looks
// like a reference mask. It never fails.
func checkOrder(v *models.Volume, order Order, log logger.ILogger) {
	lo := floats.Min(v.Data)
	hi := floats.Max(v.Data)

	if v.Kind == models.KindInt16 && lo < 0 && hi > 50 && order <= OrderLinear {
		log.Warnf("order %s selected for image that looks as a scan, try using cubic", order)
	}
	if v.Kind.IsInteger() && lo == 0 && hi <= 50 && order == OrderCubic {
		log.Warnf("order %s selected for image that looks as a reference mask, try using nearest or linear", order)
	}
}

// sourceCoords maps each output index to a position on the input grid so that
// the first and last samples line up (ndimage zoom without grid mode)
func sourceCoords(n, m int) []float64 {
	coords := make([]float64, m)
	if m == 1 {
		return coords
	}
	step := float64(n-1) / float64(m-1)
	for i := range coords {
		coords[i] = float64(i) * step
	}
	return coords
}

// lineInterpolator fits one 1D line and predicts at arbitrary positions
type lineInterpolator interface {
	Fit(xs, ys []float64) error
	Predict(x float64) float64
}

type nearest struct {
	ys []float64
}

func (n *nearest) Fit(_, ys []float64) error {
	n.ys = ys
	return nil
}

func (n *nearest) Predict(x float64) float64 {
	i := int(math.Round(x))
	i = min(max(i, 0), len(n.ys)-1)
	return n.ys[i]
}

func newLineInterpolator(order Order) lineInterpolator {
	switch order {
	case OrderNearest:
		return &nearest{}
	case OrderCubic:
		return &interp.NaturalCubic{}
	default:
		return &interp.PiecewiseLinear{}
	}
}

// resampleAxis changes the length of one axis of a (z, y, x) array to m
func resampleAxis(data []float64, shape [3]int, axis, m int, order Order) ([]float64, [3]int, error) {
	n := shape[axis]
	newShape := shape
	newShape[axis] = m
	out := make([]float64, newShape[0]*newShape[1]*newShape[2])

	strides := [3]int{shape[1] * shape[2], shape[2], 1}
	newStrides := [3]int{newShape[1] * newShape[2], newShape[2], 1}

	// the two axes that are walked over for every line
	var others []int
	for a := 0; a < 3; a++ {
		if a != axis {
			others = append(others, a)
		}
	}

	coords := sourceCoords(n, m)
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	ys := make([]float64, n)
	fitter := newLineInterpolator(order)

	for i := 0; i < shape[others[0]]; i++ {
		for j := 0; j < shape[others[1]]; j++ {
			base := i*strides[others[0]] + j*strides[others[1]]
			newBase := i*newStrides[others[0]] + j*newStrides[others[1]]

			for k := 0; k < n; k++ {
				ys[k] = data[base+k*strides[axis]]
			}

			if n == 1 {
				for k := 0; k < m; k++ {
					out[newBase+k*newStrides[axis]] = ys[0]
				}
				continue
			}

			if err := fitter.Fit(xs, ys); err != nil {
				return nil, shape, err
			}
			for k, c := range coords {
				out[newBase+k*newStrides[axis]] = fitter.Predict(c)
			}
		}
	}
	return out, newShape, nil
}

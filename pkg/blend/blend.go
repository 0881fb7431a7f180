// Package blend composites a contrast-adjusted nodule projection into a host
// radiograph with gradient-domain (Poisson) cloning.
package blend

import (
	"errors"
	"fmt"
	"math"

	"nodulesynth/internal/models"
	"nodulesynth/pkg/logger"
)

// ErrBlendFailure marks a nodule that could not be composited. The host image is
// left untouched when it is returned.
var ErrBlendFailure = errors.New("seamless blend failed")

// Center is a placement position in plane coordinates
type Center struct {
	Row int
	Col int
}

// Cloner performs the seamless clone of an 8-bit source patch into an 8-bit
// destination, centred at c, with the whole source as the clone mask. It returns
// a new destination-sized plane.
type Cloner interface {
	Clone(src, dst *models.Plane, c Center) (*models.Plane, error)
}

// Result is the outcome of one Blend call. When Failure is set, Image is the
// unmodified host.
type Result struct {
	Image   *models.Plane
	Failure error
}

// Blended reports whether the nodule made it into the image
func (r Result) Blended() bool {
	return r.Failure == nil
}

// Blender places nodules into host slices
type Blender struct {
	cloner Cloner
	log    logger.ILogger
}

// NewBlender creates a blender around a cloning backend
func NewBlender(cloner Cloner, log logger.ILogger) *Blender {
	return &Blender{
		cloner: cloner,
		log:    logger.OrNull(log),
	}
}

func failed(host *models.Plane, format string, a ...interface{}) Result {
	return Result{
		Image:   host,
		Failure: fmt.Errorf("%w: %s", ErrBlendFailure, fmt.Sprintf(format, a...)),
	}
}

// Blend composites nodule (contrast-adjusted, background 0) into host (values in
// [0,1]) at box. The returned image is on the 0-255 scale: the cloned slice,
// with the box region averaged against the pre-blend host crop to soften seams.
func (b *Blender) Blend(nodule, host *models.Plane, box models.BoundingBox) Result {
	res := b.blend(nodule, host, box)
	if !res.Blended() {
		b.log.Errorf("there is a problem with the poisson blending op: %v", res.Failure)
	}
	return res
}

func (b *Blender) blend(nodule, host *models.Plane, box models.BoundingBox) Result {
	clipped, ok := box.Clip(host.Rows, host.Cols)
	if !ok {
		return failed(host, "box %v lies outside the %dx%d host", box, host.Rows, host.Cols)
	}

	obj, ok := CropNonZero(nodule)
	if !ok {
		return failed(host, "nodule has no non-zero pixels")
	}

	// the centre follows the annotation as given; only the averaging below
	// is limited to the host
	center := Center{
		Row: int(math.RoundToEven(float64(box.XMin+box.XMax) / 2)),
		Col: int(math.RoundToEven(float64(box.YMin+box.YMax) / 2)),
	}
	if _, _, err := Placement(obj, host, center); err != nil {
		return failed(host, "%v", err)
	}

	cloned, err := b.cloner.Clone(Quantize(obj, 255), Quantize(host, 255), center)
	if err != nil {
		return failed(host, "%v", err)
	}
	if cloned.Rows != host.Rows || cloned.Cols != host.Cols {
		return failed(host, "cloner returned %dx%d for a %dx%d host", cloned.Rows, cloned.Cols, host.Rows, host.Cols)
	}

	for r := clipped.XMin; r < clipped.XMax; r++ {
		for c := clipped.YMin; c < clipped.YMax; c++ {
			i := r*host.Cols + c
			cloned.Data[i] = (host.Data[i]*255 + cloned.Data[i]) / 2
		}
	}
	return Result{Image: cloned}
}

// CropNonZero crops p to the tightest box around its non-zero samples
func CropNonZero(p *models.Plane) (*models.Plane, bool) {
	r0, c0, r1, c1 := p.Rows, p.Cols, -1, -1
	for r := 0; r < p.Rows; r++ {
		for c := 0; c < p.Cols; c++ {
			if p.At(r, c) != 0 {
				r0, c0 = min(r0, r), min(c0, c)
				r1, c1 = max(r1, r), max(c1, c)
			}
		}
	}
	if r1 < 0 {
		return nil, false
	}
	return p.Crop(r0, c0, r1+1, c1+1), true
}

// Quantize scales p and saturates it to 8-bit integer values
func Quantize(p *models.Plane, scale float64) *models.Plane {
	out := models.NewPlane(p.Rows, p.Cols)
	for i, v := range p.Data {
		out.Data[i] = math.Min(255, math.Max(0, math.Round(v*scale)))
	}
	return out
}

// Placement returns the top-left corner src takes in dst when centred at c, or
// an error when it does not fit
func Placement(src, dst *models.Plane, c Center) (int, int, error) {
	r0 := c.Row - src.Rows/2
	c0 := c.Col - src.Cols/2
	if r0 < 0 || c0 < 0 || r0+src.Rows > dst.Rows || c0+src.Cols > dst.Cols {
		return r0, c0, fmt.Errorf("%dx%d patch centred at (%d,%d) does not fit the %dx%d image",
			src.Rows, src.Cols, c.Row, c.Col, dst.Rows, dst.Cols)
	}
	return r0, c0, nil
}

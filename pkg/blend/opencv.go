//go:build gocv
// +build gocv

package blend

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"nodulesynth/internal/models"
)

// OpenCVAvailable reports whether this build links OpenCV
const OpenCVAvailable = true

// OpenCVCloner runs OpenCV's seamlessClone in MIXED_CLONE mode on in-memory Mats
type OpenCVCloner struct{}

// NewOpenCVCloner creates the OpenCV backed cloner
func NewOpenCVCloner() (*OpenCVCloner, error) {
	return &OpenCVCloner{}, nil
}

// Clone implements Cloner
func (c *OpenCVCloner) Clone(src, dst *models.Plane, center Center) (*models.Plane, error) {
	if _, _, err := Placement(src, dst, center); err != nil {
		return nil, err
	}

	srcMat, err := planeToBGR(src)
	if err != nil {
		return nil, err
	}
	defer srcMat.Close()

	dstMat, err := planeToBGR(dst)
	if err != nil {
		return nil, err
	}
	defer dstMat.Close()

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), src.Rows, src.Cols, gocv.MatTypeCV8UC3)
	defer mask.Close()

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.SeamlessClone(srcMat, dstMat, mask, image.Pt(center.Col, center.Row), &blended, gocv.MixedClone)
	if blended.Empty() {
		return nil, errors.New("seamlessClone produced an empty image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(blended, &gray, gocv.ColorBGRToGray)

	return matToPlane(gray)
}

// planeToBGR converts an 8-bit valued plane into a 3 channel Mat
func planeToBGR(p *models.Plane) (gocv.Mat, error) {
	buf := make([]byte, len(p.Data))
	for i, v := range p.Data {
		buf[i] = uint8(v)
	}

	gray, err := gocv.NewMatFromBytes(p.Rows, p.Cols, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build Mat: %w", err)
	}
	defer gray.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)
	return bgr, nil
}

func matToPlane(m gocv.Mat) (*models.Plane, error) {
	if m.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("expected an 8-bit single channel Mat, got type %v", m.Type())
	}
	p := models.NewPlane(m.Rows(), m.Cols())
	for i, b := range m.ToBytes() {
		p.Data[i] = float64(b)
	}
	return p, nil
}

package models

import (
	"fmt"
)

// BoundingBox is a nodule placement in image pixel space. X runs along the first
// (row) axis of a Plane and Y along the second (column) axis, which is how the
// annotation corners address the slice array.
type BoundingBox struct {
	XMin, YMin int
	XMax, YMax int
}

// NewBoundingBox resolves two opposite corners into an ordered box
func NewBoundingBox(x0, y0, x1, y1 int) (BoundingBox, error) {
	b := BoundingBox{
		XMin: min(x0, x1),
		YMin: min(y0, y1),
		XMax: max(x0, x1),
		YMax: max(y0, y1),
	}
	if b.XMin == b.XMax || b.YMin == b.YMax {
		return b, fmt.Errorf("empty bounding box (%d,%d)-(%d,%d)", x0, y0, x1, y1)
	}
	return b, nil
}

func (b BoundingBox) Width() int  { return b.XMax - b.XMin }
func (b BoundingBox) Height() int { return b.YMax - b.YMin }

// Size is the required on-image nodule diameter: max(width, height)
func (b BoundingBox) Size() int {
	return max(b.Width(), b.Height())
}

// Clip restricts the box to a rows x cols plane. ok is false when nothing of the
// box is left.
func (b BoundingBox) Clip(rows, cols int) (BoundingBox, bool) {
	c := BoundingBox{
		XMin: max(b.XMin, 0),
		YMin: max(b.YMin, 0),
		XMax: min(b.XMax, rows),
		YMax: min(b.YMax, cols),
	}
	return c, c.XMin < c.XMax && c.YMin < c.YMax
}

// Contains reports whether pixel (x, y) lies inside the box
func (b BoundingBox) Contains(x, y int) bool {
	return x >= b.XMin && x < b.XMax && y >= b.YMin && y < b.YMax
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d]", b.XMin, b.XMax, b.YMin, b.YMax)
}

// NoduleAnnotation is one requested nodule on one slice of the input stack
type NoduleAnnotation struct {
	Box   BoundingBox
	Slice int
}

// PatchCatalogEntry describes an available CT nodule sample
type PatchCatalogEntry struct {
	// ImageName is the CT patch filename inside the patch directory
	ImageName string

	// Diameter is the native nodule diameter of the patch in voxels
	Diameter float64
}

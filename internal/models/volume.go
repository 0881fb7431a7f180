package models

import (
	"fmt"
)

// Kind describes the sample type a volume was stored with. The resampler uses it
// to decide whether a volume looks like a scan or like a reference mask.
type Kind int

const (
	KindFloat Kind = iota
	KindInt16
	KindUint8
)

// String returns the MetaImage-like name of the kind
func (k Kind) String() string {
	switch k {
	case KindInt16:
		return "int16"
	case KindUint8:
		return "uint8"
	default:
		return "float"
	}
}

// IsInteger reports whether samples of this kind are stored as integers
func (k Kind) IsInteger() bool {
	return k == KindInt16 || k == KindUint8
}

// Volume represents a 3D array of intensities (CT Hounsfield-like units, mask
// labels, or a stack of radiograph slices)
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major (z, y, x) order
	Data []float64

	// Width is the size of axis 2 (x) in voxels
	Width int

	// Height is the size of axis 1 (y) in voxels
	Height int

	// Depth is the size of axis 0 (z) in voxels
	Depth int

	// Spacing is the physical size of each voxel along axes 0, 1 and 2
	Spacing [3]float64

	// Kind is the sample type the data came from
	Kind Kind
}

// NewVolume allocates a zeroed volume with unit spacing
func NewVolume(depth, height, width int, kind Kind) *Volume {
	return &Volume{
		Data:    make([]float64, depth*height*width),
		Width:   width,
		Height:  height,
		Depth:   depth,
		Spacing: [3]float64{1, 1, 1},
		Kind:    kind,
	}
}

// Shape returns the axis sizes in (z, y, x) order
func (v *Volume) Shape() [3]int {
	return [3]int{v.Depth, v.Height, v.Width}
}

// Index returns the offset of voxel (z, y, x) in Data
func (v *Volume) Index(z, y, x int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

func (v *Volume) At(z, y, x int) float64       { return v.Data[v.Index(z, y, x)] }
func (v *Volume) Set(z, y, x int, val float64) { v.Data[v.Index(z, y, x)] = val }

// Validate checks the rank/size and spacing invariants
func (v *Volume) Validate() error {
	if v.Depth <= 0 || v.Height <= 0 || v.Width <= 0 {
		return fmt.Errorf("invalid volume shape %v", v.Shape())
	}
	if len(v.Data) != v.Depth*v.Height*v.Width {
		return fmt.Errorf("volume data length %d does not match shape %v", len(v.Data), v.Shape())
	}
	for i, s := range v.Spacing {
		if s <= 0 {
			return fmt.Errorf("spacing on axis %d must be positive, got %f", i, s)
		}
	}
	return nil
}

// SameShape reports whether two volumes are aligned voxel for voxel
func (v *Volume) SameShape(o *Volume) bool {
	return v.Shape() == o.Shape()
}

// Clone returns a deep copy
func (v *Volume) Clone() *Volume {
	c := *v
	c.Data = make([]float64, len(v.Data))
	copy(c.Data, v.Data)
	return &c
}

// Slice copies axis-0 slice z out as a plane of Height rows and Width columns
func (v *Volume) Slice(z int) *Plane {
	p := NewPlane(v.Height, v.Width)
	size := v.Width * v.Height
	copy(p.Data, v.Data[z*size:(z+1)*size])
	return p
}

// SetSlice writes a plane back into axis-0 slice z
func (v *Volume) SetSlice(z int, p *Plane) error {
	if p.Rows != v.Height || p.Cols != v.Width {
		return fmt.Errorf("plane %dx%d does not fit slice %dx%d", p.Rows, p.Cols, v.Height, v.Width)
	}
	size := v.Width * v.Height
	copy(v.Data[z*size:(z+1)*size], p.Data)
	return nil
}

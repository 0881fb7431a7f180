package models

// Plane is a 2D array of intensities: a projection, a host radiograph slice or a
// crop of one. Data is row-major.
type Plane struct {
	Data []float64
	Rows int
	Cols int
}

// NewPlane allocates a zeroed plane
func NewPlane(rows, cols int) *Plane {
	return &Plane{
		Data: make([]float64, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

func (p *Plane) At(r, c int) float64     { return p.Data[r*p.Cols+c] }
func (p *Plane) Set(r, c int, v float64) { p.Data[r*p.Cols+c] = v }

// Clone returns a deep copy
func (p *Plane) Clone() *Plane {
	c := NewPlane(p.Rows, p.Cols)
	copy(c.Data, p.Data)
	return c
}

// Crop copies rows [r0,r1) and columns [c0,c1). The caller is responsible for
// keeping the window inside the plane.
func (p *Plane) Crop(r0, c0, r1, c1 int) *Plane {
	out := NewPlane(r1-r0, c1-c0)
	for r := r0; r < r1; r++ {
		copy(out.Data[(r-r0)*out.Cols:(r-r0+1)*out.Cols], p.Data[r*p.Cols+c0:r*p.Cols+c1])
	}
	return out
}

// Paste writes src into the plane with its top-left corner at (r0, c0)
func (p *Plane) Paste(src *Plane, r0, c0 int) {
	for r := 0; r < src.Rows; r++ {
		copy(p.Data[(r0+r)*p.Cols+c0:(r0+r)*p.Cols+c0+src.Cols], src.Data[r*src.Cols:(r+1)*src.Cols])
	}
}

// CropBox copies the region covered by a bounding box
func (p *Plane) CropBox(b BoundingBox) *Plane {
	return p.Crop(b.XMin, b.YMin, b.XMax, b.YMax)
}

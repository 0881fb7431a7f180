// Package visualization renders slices of a radiograph stack and previews of
// the synthesized nodules.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"

	"nodulesynth/internal/models"
)

// Viewer extracts and saves 2D views of a volume
type Viewer struct {
	volume *models.Volume
}

// NewViewer creates a viewer over v. The volume is not copied.
func NewViewer(v *models.Volume) *Viewer {
	return &Viewer{volume: v}
}

// window maps data linearly onto 8-bit gray levels, min to black and max to
// white. A constant input renders black.
func window(data []float64, rows, cols int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	if len(data) == 0 {
		return img
	}

	lo, hi := floats.Min(data), floats.Max(data)
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := math.Round((data[r*cols+c] - lo) * scale)
			img.SetGray(c, r, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis,
// windowed to its own intensity range. Axis z gives the stored radiograph
// slices.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	vol := v.volume

	switch axis {
	case "x", "X":
		if position >= vol.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, vol.Width)
		}
		data := make([]float64, vol.Height*vol.Depth)
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				data[y*vol.Depth+z] = vol.At(z, y, position)
			}
		}
		return window(data, vol.Height, vol.Depth), nil

	case "y", "Y":
		if position >= vol.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, vol.Height)
		}
		data := make([]float64, vol.Depth*vol.Width)
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				data[z*vol.Width+x] = vol.At(z, position, x)
			}
		}
		return window(data, vol.Depth, vol.Width), nil

	case "z", "Z":
		if position >= vol.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, vol.Depth)
		}
		p := vol.Slice(position)
		return window(p.Data, p.Rows, p.Cols), nil
	}

	return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// SaveSlice saves an extracted slice; the format follows the file extension
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return imaging.Save(img, filename)
}

// SaveSliceSequence extracts and saves every slice along the specified axis as
// slice_<axis>_NNN.png
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.volume.Width
	case "y", "Y":
		maxPos = v.volume.Height
	case "z", "Z":
		maxPos = v.volume.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

var boxColour = color.NRGBA{R: 255, G: 64, B: 0, A: 255}

// Preview renders slice z with the given boxes outlined, enlarged by an
// integer zoom factor
func (v *Viewer) Preview(z int, boxes []models.BoundingBox, zoom int) (image.Image, error) {
	if zoom < 1 {
		return nil, fmt.Errorf("zoom must be at least 1, got %d", zoom)
	}
	gray, err := v.ExtractSlice("z", z)
	if err != nil {
		return nil, err
	}

	b := gray.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx()*zoom, b.Dy()*zoom))
	draw.ApproxBiLinear.Scale(out, out.Rect, gray, b, draw.Src, nil)

	for _, box := range boxes {
		drawBox(out, box, zoom)
	}
	return out, nil
}

// drawBox outlines a box given in plane coordinates (X = row, Y = column)
func drawBox(img *image.NRGBA, box models.BoundingBox, zoom int) {
	b := img.Bounds()
	r0, r1 := box.XMin*zoom, box.XMax*zoom-1
	c0, c1 := box.YMin*zoom, box.YMax*zoom-1

	set := func(c, r int) {
		if image.Pt(c, r).In(b) {
			img.SetNRGBA(c, r, boxColour)
		}
	}
	for c := c0; c <= c1; c++ {
		set(c, r0)
		set(c, r1)
	}
	for r := r0; r <= r1; r++ {
		set(c0, r)
		set(c1, r)
	}
}

// SavePreview writes the preview of slice z to filename
func (v *Viewer) SavePreview(z int, boxes []models.BoundingBox, zoom int, filename string) error {
	img, err := v.Preview(z, boxes, zoom)
	if err != nil {
		return err
	}
	return imaging.Save(imaging.Clone(img), filename)
}

package imageio

import (
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"nodulesynth/internal/models"
)

// IsMetaImage reports whether path names a single-file MetaImage. Detached
// .mhd headers are not read.
func IsMetaImage(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mha")
}

// ImageToPlane converts any decoded image to a plane of 8-bit gray levels. Image
// rows become plane rows.
func ImageToPlane(img image.Image) *models.Plane {
	b := img.Bounds()
	p := models.NewPlane(b.Dy(), b.Dx())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			p.Set(y-b.Min.Y, x-b.Min.X, float64(g.Y))
		}
	}
	return p
}

// PlaneToImage renders p*scale as an 8-bit gray image, saturating out of range
// values
func PlaneToImage(p *models.Plane, scale float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, p.Cols, p.Rows))
	for r := 0; r < p.Rows; r++ {
		for c := 0; c < p.Cols; c++ {
			v := math.Round(p.At(r, c) * scale)
			img.SetGray(c, r, color.Gray{Y: uint8(math.Max(0, math.Min(255, v)))})
		}
	}
	return img
}

// LoadPlane opens a PNG, JPEG, TIFF, BMP or GIF radiograph as gray levels
func LoadPlane(path string) (*models.Plane, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image %s", path)
	}
	return ImageToPlane(img), nil
}

// SavePlane writes p*scale to an image file; the format follows the extension
func SavePlane(path string, p *models.Plane, scale float64) error {
	if err := imaging.Save(PlaneToImage(p, scale), path); err != nil {
		return errors.Wrapf(err, "failed to save image %s", path)
	}
	return nil
}

// ReadVolume loads a slice stack. MetaImage files keep their depth; plain images
// become a single-slice 8-bit stack.
func ReadVolume(path string) (*models.Volume, error) {
	if IsMetaImage(path) {
		return ReadMetaImage(path)
	}

	p, err := LoadPlane(path)
	if err != nil {
		return nil, err
	}
	v := models.NewVolume(1, p.Rows, p.Cols, models.KindUint8)
	if err := v.SetSlice(0, p); err != nil {
		return nil, err
	}
	return v, nil
}

// WriteVolume saves a slice stack. Plain image formats only hold one slice.
func WriteVolume(path string, v *models.Volume, compress bool) error {
	if IsMetaImage(path) {
		return WriteMetaImage(path, v, compress)
	}
	if v.Depth != 1 {
		return errors.Errorf("%s holds a single image but the stack has %d slices", path, v.Depth)
	}
	return SavePlane(path, v.Slice(0), 1)
}

package visualization

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodulesynth/internal/models"
)

// testVolume fills each z slice with the value z, except for a ramp along x
func testVolume(width, height, depth int) *models.Volume {
	v := models.NewVolume(depth, height, width, models.KindFloat)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v.Set(z, y, x, float64(z*100+x))
			}
		}
	}
	return v
}

// TestExtractSlice verifies that slices are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	viewer := NewViewer(testVolume(10, 8, 5))

	img, err := viewer.ExtractSlice("z", 2)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
	assert.Equal(t, uint8(0), img.GrayAt(0, 3).Y)
	assert.Equal(t, uint8(255), img.GrayAt(9, 3).Y)

	img, err = viewer.ExtractSlice("y", 4)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 5, img.Bounds().Dy())
	assert.Equal(t, uint8(0), img.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), img.GrayAt(9, 4).Y)

	img, err = viewer.ExtractSlice("X", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
	assert.Less(t, img.GrayAt(1, 0).Y, img.GrayAt(2, 0).Y)
}

func TestExtractSliceErrors(t *testing.T) {
	viewer := NewViewer(testVolume(4, 4, 2))

	tests := []struct {
		axis     string
		position int
	}{
		{"z", -1},
		{"z", 2},
		{"x", 4},
		{"y", 9},
		{"w", 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s%d", tt.axis, tt.position), func(t *testing.T) {
			_, err := viewer.ExtractSlice(tt.axis, tt.position)
			assert.Error(t, err)
		})
	}
}

func TestConstantSliceRendersBlack(t *testing.T) {
	viewer := NewViewer(models.NewVolume(1, 3, 3, models.KindUint8))
	img, err := viewer.ExtractSlice("z", 0)
	require.NoError(t, err)
	for _, px := range img.Pix {
		assert.Zero(t, px)
	}
}

func TestPreviewDrawsBoxes(t *testing.T) {
	viewer := NewViewer(testVolume(16, 16, 1))
	box := models.BoundingBox{XMin: 4, YMin: 2, XMax: 8, YMax: 10}

	img, err := viewer.Preview(0, []models.BoundingBox{box}, 2)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())

	// top-left corner of the outline: row XMin, column YMin
	assert.Equal(t, color.NRGBAModel.Convert(boxColour), color.NRGBAModel.Convert(img.At(4, 8)))
	assert.Equal(t, color.NRGBAModel.Convert(boxColour), color.NRGBAModel.Convert(img.At(19, 15)))
	assert.NotEqual(t, color.NRGBAModel.Convert(boxColour), color.NRGBAModel.Convert(img.At(10, 12)))

	_, err = viewer.Preview(0, nil, 0)
	assert.Error(t, err)
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	// Skip this test in short mode
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	dir := t.TempDir()
	viewer := NewViewer(testVolume(6, 6, 3))
	require.NoError(t, viewer.SaveSliceSequence("z", dir))

	for z := 0; z < 3; z++ {
		_, err := os.Stat(filepath.Join(dir, fmt.Sprintf("slice_z_%03d.png", z)))
		assert.NoError(t, err)
	}
	assert.Error(t, viewer.SaveSliceSequence("q", dir))
}

func TestSavePreview(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	path := filepath.Join(t.TempDir(), "preview.png")
	viewer := NewViewer(testVolume(8, 8, 2))
	require.NoError(t, viewer.SavePreview(1, []models.BoundingBox{{XMin: 1, YMin: 1, XMax: 4, YMax: 4}}, 3, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

package imageio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodulesynth/internal/models"
)

func rampVolume(depth, height, width int, kind models.Kind) *models.Volume {
	v := models.NewVolume(depth, height, width, kind)
	for i := range v.Data {
		v.Data[i] = float64(i%200) - 50
	}
	return v
}

func TestMetaImageRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		for _, kind := range []models.Kind{models.KindInt16, models.KindFloat} {
			v := rampVolume(3, 4, 5, kind)
			v.Spacing = [3]float64{2.5, 0.7, 0.7}
			if kind == models.KindFloat {
				v.Data[7] = 0.125
			}

			var buf bytes.Buffer
			require.NoError(t, EncodeMetaImage(&buf, v, compress))
			got, err := DecodeMetaImage(&buf)
			require.NoError(t, err)

			assert.Equal(t, v.Shape(), got.Shape())
			assert.Equal(t, v.Spacing, got.Spacing)
			assert.Equal(t, kind, got.Kind)
			assert.Equal(t, v.Data, got.Data)
		}
	}
}

func TestMetaImageUCharSaturates(t *testing.T) {
	v := models.NewVolume(1, 1, 4, models.KindUint8)
	copy(v.Data, []float64{-3, 12.4, 254.6, 300})

	var buf bytes.Buffer
	require.NoError(t, EncodeMetaImage(&buf, v, false))
	got, err := DecodeMetaImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 12, 255, 255}, got.Data)
}

func TestDecodeMetaImage2DBigEndian(t *testing.T) {
	header := strings.Join([]string{
		"ObjectType = Image",
		"NDims = 2",
		"BinaryData = True",
		"BinaryDataByteOrderMSB = True",
		"ElementSpacing = 0.5 0.25",
		"DimSize = 3 2",
		"ElementType = MET_SHORT",
		"ElementDataFile = LOCAL",
	}, "\n") + "\n"

	var buf bytes.Buffer
	buf.WriteString(header)
	for _, s := range []int16{-1000, 0, 1, 2, 3, 400} {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, s))
	}

	v, err := DecodeMetaImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 2, 3}, v.Shape())
	assert.Equal(t, [3]float64{1, 0.25, 0.5}, v.Spacing)
	assert.Equal(t, []float64{-1000, 0, 1, 2, 3, 400}, v.Data)
	assert.Equal(t, models.KindInt16, v.Kind)
}

func TestDecodeMetaImageCompressedFloat(t *testing.T) {
	var raw bytes.Buffer
	for _, f := range []float32{0.5, -2, 8} {
		require.NoError(t, binary.Write(&raw, binary.LittleEndian, f))
	}
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, err := zw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var buf bytes.Buffer
	buf.WriteString("NDims = 3\nDimSize = 3 1 1\nElementType = MET_FLOAT\nCompressedData = True\nElementDataFile = LOCAL\n")
	buf.Write(z.Bytes())

	v, err := DecodeMetaImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -2, 8}, v.Data)
	assert.Equal(t, models.KindFloat, v.Kind)
}

func TestDecodeMetaImageErrors(t *testing.T) {
	tests := map[string]string{
		"truncated header": "NDims = 3\nDimSize = 1 1 1\n",
		"element type":     "NDims = 3\nDimSize = 1 1 1\nElementType = MET_LONG\nElementDataFile = LOCAL\n",
		"detached data":    "NDims = 3\nDimSize = 1 1 1\nElementType = MET_UCHAR\nElementDataFile = data.raw\n",
		"short data":       "NDims = 3\nDimSize = 2 2 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\nab",
		"dims":             "NDims = 4\nDimSize = 1 1 1 1\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeMetaImage(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestPatchStoreLoad(t *testing.T) {
	dir := t.TempDir()
	ct := rampVolume(4, 4, 4, models.KindInt16)
	mask := models.NewVolume(4, 4, 4, models.KindUint8)
	mask.Set(1, 1, 1, 1)
	require.NoError(t, WriteMetaImage(filepath.Join(dir, "n001_dcm.mha"), ct, false))
	require.NoError(t, WriteMetaImage(filepath.Join(dir, "n001_seg.mha"), mask, true))

	store := NewPatchStore(dir, "dcm", "seg")
	assert.Equal(t, "n001_seg.mha", store.MaskName("n001_dcm.mha"))

	gotCT, gotMask, err := store.Load("n001_dcm.mha")
	require.NoError(t, err)
	assert.Equal(t, ct.Data, gotCT.Data)
	assert.Equal(t, 1.0, gotMask.At(1, 1, 1))

	_, _, err = store.Load("n002_dcm.mha")
	assert.Error(t, err)
	_, _, err = store.Load("n001.mha")
	assert.Error(t, err)
}

func TestIsMetaImage(t *testing.T) {
	assert.True(t, IsMetaImage("a.mha"))
	assert.True(t, IsMetaImage("dir/A.MHA"))
	assert.False(t, IsMetaImage("a.mhd"))
	assert.False(t, IsMetaImage("a.png"))
	assert.False(t, IsMetaImage("mha"))
}

func TestPatchStoreRejectsDetachedHeader(t *testing.T) {
	_, _, err := NewPatchStore(t.TempDir(), "dcm", "seg").Load("n001_dcm.mhd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported patch format")
}

func TestPatchStoreShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteMetaImage(filepath.Join(dir, "a_dcm.mha"), rampVolume(2, 2, 2, models.KindInt16), false))
	require.NoError(t, WriteMetaImage(filepath.Join(dir, "a_seg.mha"), rampVolume(2, 2, 3, models.KindUint8), false))

	_, _, err := NewPatchStore(dir, "dcm", "seg").Load("a_dcm.mha")
	assert.Error(t, err)
}

func TestPlaneImageRoundTrip(t *testing.T) {
	p := models.NewPlane(3, 5)
	for i := range p.Data {
		p.Data[i] = float64(i) / 14
	}
	path := filepath.Join(t.TempDir(), "plane.png")
	require.NoError(t, SavePlane(path, p, 255))

	got, err := LoadPlane(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Rows)
	assert.Equal(t, 5, got.Cols)
	for i := range p.Data {
		assert.InDelta(t, p.Data[i]*255, got.Data[i], 0.5)
	}
}

func TestReadWriteVolume(t *testing.T) {
	dir := t.TempDir()

	v := models.NewVolume(1, 4, 6, models.KindUint8)
	for i := range v.Data {
		v.Data[i] = float64(i * 10)
	}
	png := filepath.Join(dir, "slice.png")
	require.NoError(t, WriteVolume(png, v, false))
	got, err := ReadVolume(png)
	require.NoError(t, err)
	assert.Equal(t, v.Data, got.Data)

	stack := rampVolume(2, 4, 6, models.KindInt16)
	assert.Error(t, WriteVolume(filepath.Join(dir, "stack.png"), stack, false))

	mha := filepath.Join(dir, "stack.mha")
	require.NoError(t, WriteVolume(mha, stack, true))
	got, err = ReadVolume(mha)
	require.NoError(t, err)
	assert.Equal(t, stack.Data, got.Data)

	_, err = os.Stat(filepath.Join(dir, "stack.png"))
	assert.True(t, os.IsNotExist(err))
}

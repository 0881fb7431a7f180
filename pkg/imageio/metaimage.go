// Package imageio reads and writes the volumes, patches and radiographs the
// synthesis pipeline works on.
package imageio

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"nodulesynth/internal/models"
)

// MetaImage element types
const (
	metShort  = "MET_SHORT"
	metUChar  = "MET_UCHAR"
	metFloat  = "MET_FLOAT"
	metDouble = "MET_DOUBLE"
)

// metaHeader holds the parsed key/value header of a .mha file
type metaHeader struct {
	dims        []int
	spacing     []float64
	elementType string
	msb         bool
	compressed  bool
}

func elementSize(elementType string) int {
	switch elementType {
	case metShort:
		return 2
	case metUChar:
		return 1
	case metFloat:
		return 4
	case metDouble:
		return 8
	}
	return 0
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Fields(s) {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Fields(s) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func readMetaHeader(r *bufio.Reader) (*metaHeader, error) {
	h := &metaHeader{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, errors.Wrap(err, "header ended before ElementDataFile")
		}
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "NDims":
			n, err := strconv.Atoi(value)
			if err != nil || n < 2 || n > 3 {
				return nil, errors.Errorf("unsupported NDims %q", value)
			}
		case "DimSize":
			if h.dims, err = parseInts(value); err != nil {
				return nil, errors.Wrap(err, "bad DimSize")
			}
		case "ElementSpacing", "ElementSize":
			if h.spacing, err = parseFloats(value); err != nil {
				return nil, errors.Wrap(err, "bad ElementSpacing")
			}
		case "ElementType":
			h.elementType = value
		case "BinaryDataByteOrderMSB", "ElementByteOrderMSB":
			h.msb = strings.EqualFold(value, "true")
		case "CompressedData":
			h.compressed = strings.EqualFold(value, "true")
		case "ElementNumberOfChannels":
			if value != "1" {
				return nil, errors.Errorf("only single channel images are supported, got %s channels", value)
			}
		case "ElementDataFile":
			if value != "LOCAL" {
				return nil, errors.Errorf("detached data file %q is not supported", value)
			}
			return h, nil
		}
	}
}

// DecodeMetaImage reads a 2D or 3D MetaImage with inline (LOCAL) data
func DecodeMetaImage(r io.Reader) (*models.Volume, error) {
	br := bufio.NewReader(r)
	h, err := readMetaHeader(br)
	if err != nil {
		return nil, err
	}

	size := elementSize(h.elementType)
	if size == 0 {
		return nil, errors.Errorf("unsupported ElementType %q", h.elementType)
	}
	if len(h.dims) < 2 || len(h.dims) > 3 {
		return nil, errors.Errorf("DimSize must have 2 or 3 values, got %v", h.dims)
	}

	// MetaImage lists sizes and spacing fastest axis first
	width, height, depth := h.dims[0], h.dims[1], 1
	if len(h.dims) == 3 {
		depth = h.dims[2]
	}
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, errors.Errorf("invalid DimSize %v", h.dims)
	}

	var kind models.Kind
	switch h.elementType {
	case metShort:
		kind = models.KindInt16
	case metUChar:
		kind = models.KindUint8
	default:
		kind = models.KindFloat
	}
	v := models.NewVolume(depth, height, width, kind)
	for i, s := range h.spacing {
		if i < 3 {
			v.Spacing[2-i] = s
		}
	}

	var data io.Reader = br
	if h.compressed {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open compressed data")
		}
		defer zr.Close()
		data = zr
	}

	raw := make([]byte, len(v.Data)*size)
	if _, err := io.ReadFull(data, raw); err != nil {
		return nil, errors.Wrapf(err, "expected %d bytes of pixel data", len(raw))
	}

	var order binary.ByteOrder = binary.LittleEndian
	if h.msb {
		order = binary.BigEndian
	}
	for i := range v.Data {
		b := raw[i*size : (i+1)*size]
		switch h.elementType {
		case metShort:
			v.Data[i] = float64(int16(order.Uint16(b)))
		case metUChar:
			v.Data[i] = float64(b[0])
		case metFloat:
			v.Data[i] = float64(math.Float32frombits(order.Uint32(b)))
		case metDouble:
			v.Data[i] = math.Float64frombits(order.Uint64(b))
		}
	}

	return v, v.Validate()
}

// ReadMetaImage loads a .mha file
func ReadMetaImage(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open MetaImage")
	}
	defer f.Close()

	v, err := DecodeMetaImage(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return v, nil
}

func elementTypeFor(k models.Kind) string {
	switch k {
	case models.KindInt16:
		return metShort
	case models.KindUint8:
		return metUChar
	}
	return metDouble
}

// EncodeMetaImage writes v as a little-endian 3D MetaImage. Integer kinds are
// rounded and saturated to their sample type.
func EncodeMetaImage(w io.Writer, v *models.Volume, compress bool) error {
	if err := v.Validate(); err != nil {
		return err
	}
	elementType := elementTypeFor(v.Kind)
	size := elementSize(elementType)

	raw := make([]byte, len(v.Data)*size)
	for i, val := range v.Data {
		b := raw[i*size : (i+1)*size]
		switch elementType {
		case metShort:
			s := int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(val))))
			binary.LittleEndian.PutUint16(b, uint16(s))
		case metUChar:
			b[0] = uint8(math.Max(0, math.Min(255, math.Round(val))))
		default:
			binary.LittleEndian.PutUint64(b, math.Float64bits(val))
		}
	}

	if compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return errors.Wrap(err, "failed to compress pixel data")
		}
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, "failed to compress pixel data")
		}
		raw = buf.Bytes()
	}

	header := &strings.Builder{}
	fmt.Fprintf(header, "ObjectType = Image\n")
	fmt.Fprintf(header, "NDims = 3\n")
	fmt.Fprintf(header, "BinaryData = True\n")
	fmt.Fprintf(header, "BinaryDataByteOrderMSB = False\n")
	if compress {
		fmt.Fprintf(header, "CompressedData = True\n")
		fmt.Fprintf(header, "CompressedDataSize = %d\n", len(raw))
	} else {
		fmt.Fprintf(header, "CompressedData = False\n")
	}
	fmt.Fprintf(header, "TransformMatrix = 1 0 0 0 1 0 0 0 1\n")
	fmt.Fprintf(header, "Offset = 0 0 0\n")
	fmt.Fprintf(header, "ElementSpacing = %s %s %s\n",
		formatFloat(v.Spacing[2]), formatFloat(v.Spacing[1]), formatFloat(v.Spacing[0]))
	fmt.Fprintf(header, "DimSize = %d %d %d\n", v.Width, v.Height, v.Depth)
	fmt.Fprintf(header, "ElementType = %s\n", elementType)
	fmt.Fprintf(header, "ElementDataFile = LOCAL\n")

	if _, err := io.WriteString(w, header.String()); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	if _, err := w.Write(raw); err != nil {
		return errors.Wrap(err, "failed to write pixel data")
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteMetaImage saves v to a .mha file
func WriteMetaImage(path string, v *models.Volume, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create MetaImage")
	}
	if err := EncodeMetaImage(f, v, compress); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return f.Close()
}

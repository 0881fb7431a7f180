// Package annotations reads nodule placement requests from a nodules.json file
//
// The file lists boxes by their corners, each corner being [x, y, slice]:
//
//	{"type": "Multiple 2D bounding boxes",
//	 "boxes": [{"corners": [[x1, y1, z], [x0, y1, z], [x0, y0, z], [x1, y0, z]]}]}
//
// The box spans corners[2] to corners[0], and corners[0] carries the slice index.
package annotations

import (
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"nodulesynth/internal/models"
)

// Box is one entry of the boxes list
type Box struct {
	Corners [][]float64 `json:"corners"`
	Name    string      `json:"name,omitempty"`
}

// File is the nodules.json document
type File struct {
	Type  string `json:"type,omitempty"`
	Boxes []Box  `json:"boxes"`
}

// Annotation resolves a box into a bounding box and slice index. Coordinates are
// truncated to whole pixels.
func (b Box) Annotation() (models.NoduleAnnotation, error) {
	if len(b.Corners) < 3 {
		return models.NoduleAnnotation{}, errors.Errorf("box needs at least 3 corners, got %d", len(b.Corners))
	}
	for i, c := range b.Corners {
		if len(c) < 3 {
			return models.NoduleAnnotation{}, errors.Errorf("corner %d has %d coordinates, want [x, y, slice]", i, len(c))
		}
	}

	hi, lo := b.Corners[0], b.Corners[2]
	box, err := models.NewBoundingBox(int(lo[0]), int(lo[1]), int(hi[0]), int(hi[1]))
	if err != nil {
		return models.NoduleAnnotation{}, err
	}
	slice := int(hi[2])
	if slice < 0 {
		return models.NoduleAnnotation{}, errors.Errorf("negative slice index %d", slice)
	}
	return models.NoduleAnnotation{Box: box, Slice: slice}, nil
}

// Decode parses a nodules.json document
func Decode(r io.Reader) ([]models.NoduleAnnotation, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "failed to decode nodule annotations")
	}

	out := make([]models.NoduleAnnotation, 0, len(f.Boxes))
	for i, b := range f.Boxes {
		a, err := b.Annotation()
		if err != nil {
			return nil, errors.Wrapf(err, "box %d", i)
		}
		out = append(out, a)
	}
	return out, nil
}

// Load reads a nodules.json file
func Load(path string) ([]models.NoduleAnnotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open annotations")
	}
	defer f.Close()

	anns, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return anns, nil
}

// BySlice groups annotations by slice index, keeping file order within a slice
func BySlice(anns []models.NoduleAnnotation) map[int][]models.NoduleAnnotation {
	out := map[int][]models.NoduleAnnotation{}
	for _, a := range anns {
		out[a.Slice] = append(out[a.Slice], a)
	}
	return out
}

// Slices returns the annotated slice indices in ascending order
func Slices(anns []models.NoduleAnnotation) []int {
	var idx []int
	for s := range BySlice(anns) {
		idx = append(idx, s)
	}
	sort.Ints(idx)
	return idx
}

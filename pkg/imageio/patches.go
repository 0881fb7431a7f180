package imageio

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"nodulesynth/internal/models"
)

// PatchStore reads CT nodule patches and their segmentation masks from a
// directory. The mask file name is the CT name with MaskFrom replaced by MaskTo.
type PatchStore struct {
	Dir      string
	MaskFrom string
	MaskTo   string
}

// NewPatchStore creates a store rooted at dir
func NewPatchStore(dir, maskFrom, maskTo string) *PatchStore {
	return &PatchStore{
		Dir:      dir,
		MaskFrom: maskFrom,
		MaskTo:   maskTo,
	}
}

// MaskName maps a CT patch name to its mask name
func (s *PatchStore) MaskName(ctName string) string {
	return strings.ReplaceAll(ctName, s.MaskFrom, s.MaskTo)
}

func (s *PatchStore) read(name string) (*models.Volume, error) {
	path := filepath.Join(s.Dir, name)
	if !IsMetaImage(path) {
		return nil, errors.Errorf("unsupported patch format %q, expected .mha", filepath.Ext(name))
	}
	return ReadMetaImage(path)
}

// Load returns the CT patch and its aligned mask
func (s *PatchStore) Load(ctName string) (*models.Volume, *models.Volume, error) {
	maskName := s.MaskName(ctName)
	if maskName == ctName {
		return nil, nil, errors.Errorf("patch %q does not contain %q, cannot derive its mask", ctName, s.MaskFrom)
	}

	ct, err := s.read(ctName)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load CT patch")
	}
	mask, err := s.read(maskName)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load patch mask")
	}
	if !ct.SameShape(mask) {
		return nil, nil, errors.Errorf("mask %s shape %v does not match CT %s shape %v",
			maskName, mask.Shape(), ctName, ct.Shape())
	}
	return ct, mask, nil
}

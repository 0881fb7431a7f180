//go:build !gocv
// +build !gocv

package blend

import (
	"errors"

	"nodulesynth/internal/models"
)

// OpenCVAvailable reports whether this build links OpenCV
const OpenCVAvailable = false

// OpenCVCloner is a placeholder when building without OpenCV
type OpenCVCloner struct{}

// NewOpenCVCloner fails unless built with the gocv tag
func NewOpenCVCloner() (*OpenCVCloner, error) {
	return nil, errors.New("gocv build tag is not enabled")
}

// Clone returns an error when building without the gocv tag
func (*OpenCVCloner) Clone(_, _ *models.Plane, _ Center) (*models.Plane, error) {
	return nil, errors.New("gocv build tag is not enabled")
}

// Package intensity holds the per-sample intensity operations of the synthesis
// pipeline: min/max normalization and radiographic contrast matching.
package intensity

import (
	"gonum.org/v1/gonum/floats"

	"nodulesynth/internal/models"
	"nodulesynth/pkg/logger"
)

// Normalize linearly rescales data so its minimum maps to 0 and its maximum to 1.
// A constant array cannot be rescaled; it is returned unchanged and a diagnostic
// is logged.
func Normalize(data []float64, log logger.ILogger) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	if len(data) == 0 {
		return out
	}

	lo := floats.Min(data)
	hi := floats.Max(data)
	if hi == lo {
		logger.OrNull(log).Warnf("invalid value encountered: cannot normalize constant array (value %g, %d samples)", lo, len(data))
		return out
	}

	floats.AddConst(-lo, out)
	floats.Scale(1/(hi-lo), out)
	return out
}

// NormalizePlane is Normalize over a plane, returning a new plane
func NormalizePlane(p *models.Plane, log logger.ILogger) *models.Plane {
	return &models.Plane{
		Data: Normalize(p.Data, log),
		Rows: p.Rows,
		Cols: p.Cols,
	}
}

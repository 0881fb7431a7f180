package synthesis

import (
	"time"

	"nodulesynth/internal/models"
)

// NoduleRecord describes what happened to one annotation
type NoduleRecord struct {
	Slice int
	Box   models.BoundingBox

	// Patch is the catalog image the nodule was taken from
	Patch string

	RequiredDiameter int
	NativeDiameter   int
	Contrast         float64

	Blended bool

	// Failure holds the blend failure reason for skipped nodules
	Failure string
}

// Report summarises a Process run
type Report struct {
	Nodules  []NoduleRecord
	Slices   int
	Duration time.Duration
}

// Blended counts the nodules that made it into the output
func (r *Report) Blended() int {
	n := 0
	for _, rec := range r.Nodules {
		if rec.Blended {
			n++
		}
	}
	return n
}

// Skipped counts the nodules dropped after a blend failure
func (r *Report) Skipped() int {
	return len(r.Nodules) - r.Blended()
}

// Package synthesis inserts simulated lung nodules into chest radiographs.
//
// For every annotated box a CT nodule patch is picked from a catalog, rescaled to
// the box size, projected to a 2D radiograph-like image, contrast matched to the
// surrounding tissue and seamlessly blended into the slice.
package synthesis

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/floats"

	"nodulesynth/internal/models"
	"nodulesynth/pkg/annotations"
	"nodulesynth/pkg/blend"
	"nodulesynth/pkg/catalog"
	"nodulesynth/pkg/drr"
	"nodulesynth/pkg/imageio"
	"nodulesynth/pkg/intensity"
	"nodulesynth/pkg/interpolation"
	"nodulesynth/pkg/logger"
	"nodulesynth/pkg/nodule"
)

// PatchSource provides a CT nodule patch and its aligned segmentation mask by
// catalog image name
type PatchSource interface {
	Load(name string) (ct *models.Volume, mask *models.Volume, err error)
}

// Params holds the synthesis configuration
type Params struct {
	// Selector picks catalog patches by required diameter
	Selector *catalog.Selector

	// Patches loads the selected CT patch and mask
	Patches PatchSource

	// Projector renders the rescaled patch. Defaults to drr.NewProjector().
	Projector *drr.Projector

	// Cloner performs the seamless clone. Defaults to the pure Go Poisson cloner.
	Cloner blend.Cloner

	// Order is the interpolation order used to rescale patches and masks.
	// Defaults to linear when nil.
	Order *interpolation.Order

	// ContrastFloor is the lower bound of the contrast factor. Zero or less
	// selects intensity.DefaultContrastFloor.
	ContrastFloor float64

	// Rand drives the patch choice. Defaults to a PCG seeded with 1.
	Rand *rand.Rand

	// SaveIntermediaryResults writes the projection, the contrast-adjusted nodule
	// and the blended slice of each nodule under IntermediaryDir
	SaveIntermediaryResults bool
	IntermediaryDir         string

	Log logger.ILogger
}

// Synthesizer runs the per-slice nodule insertion loop. It is not safe for
// concurrent use: all slices share one random generator.
type Synthesizer struct {
	params  *Params
	log     logger.ILogger
	blender *blend.Blender
	rng     *rand.Rand
}

// NewSynthesizer creates a synthesizer, filling unset optional parameters with
// their defaults
func NewSynthesizer(params *Params) *Synthesizer {
	log := logger.OrNull(params.Log)

	if params.Projector == nil {
		params.Projector = drr.NewProjector()
	}
	if params.Cloner == nil {
		params.Cloner = blend.NewPoissonCloner()
	}
	if params.Order == nil {
		order := interpolation.OrderLinear
		params.Order = &order
	}
	if params.ContrastFloor <= 0 {
		params.ContrastFloor = intensity.DefaultContrastFloor
	}
	rng := params.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 1))
	}

	return &Synthesizer{
		params:  params,
		log:     log,
		blender: blend.NewBlender(params.Cloner, log),
		rng:     rng,
	}
}

func (s *Synthesizer) enter(slice int, from, to State) State {
	s.log.Debugf("slice %d: %v -> %v", slice, from, to)
	return to
}

// Process inserts a nodule for every annotation and returns the edited stack,
// which has the input's shape. Slices without annotations are copied unchanged;
// an edited slice is on the 0-255 scale.
//
// Failing to find or read a patch aborts the run. A failed blend only skips its
// nodule; it is logged and recorded in the report.
func (s *Synthesizer) Process(v *models.Volume, anns []models.NoduleAnnotation) (*models.Volume, *Report, error) {
	if err := v.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid input stack: %w", err)
	}
	if s.params.Selector == nil || s.params.Patches == nil {
		return nil, nil, fmt.Errorf("a patch selector and a patch source are required")
	}
	if s.params.SaveIntermediaryResults {
		if err := os.MkdirAll(s.params.IntermediaryDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create intermediary directory: %w", err)
		}
	}

	start := time.Now()
	out := v.Clone()
	out.Kind = models.KindFloat
	report := &Report{Slices: v.Depth}

	bySlice := annotations.BySlice(anns)
	for slice := range bySlice {
		if slice >= v.Depth {
			s.log.Warnf("ignoring %d annotations for slice %d, the stack has %d slices",
				len(bySlice[slice]), slice, v.Depth)
		}
	}

	for j := 0; j < v.Depth; j++ {
		t := time.Now()
		state := SliceStart
		working := v.Slice(j)
		pending := bySlice[j]

		for {
			state = s.enter(j, state, AnnotationLoop)
			if len(pending) == 0 {
				break
			}
			ann := pending[0]
			pending = pending[1:]

			rec, result, err := s.processNodule(j, len(report.Nodules), working, ann)
			if err != nil {
				return nil, nil, fmt.Errorf("slice %d, box %v: %w", j, ann.Box, err)
			}
			if result != nil {
				working = result
			}
			report.Nodules = append(report.Nodules, rec)
			state = NoduleComposite
		}

		s.enter(j, state, SliceDone)
		if err := out.SetSlice(j, working); err != nil {
			return nil, nil, err
		}
		if len(bySlice[j]) > 0 {
			s.log.Infof("slice %d: %d nodules processed in %v", j, len(bySlice[j]), time.Since(t))
		}
	}

	report.Duration = time.Since(start)
	s.log.Infof("total time took %v: %d nodules blended, %d skipped", report.Duration, report.Blended(), report.Skipped())
	return out, report, nil
}

// processNodule runs one annotation through select, resample, project and
// composite. The returned plane is nil when the blend failed and the working
// slice must be kept.
func (s *Synthesizer) processNodule(slice, index int, working *models.Plane, ann models.NoduleAnnotation) (NoduleRecord, *models.Plane, error) {
	rec := NoduleRecord{Slice: slice, Box: ann.Box}

	s.enter(slice, AnnotationLoop, NoduleSelect)
	host := intensity.NormalizePlane(working, s.log)
	required := ann.Box.Size()
	rec.RequiredDiameter = required

	entry, err := s.params.Selector.Select(float64(required), s.rng)
	if err != nil {
		return rec, nil, err
	}
	rec.Patch = entry.ImageName

	s.enter(slice, NoduleSelect, NoduleResample)
	ct, mask, err := s.params.Patches.Load(entry.ImageName)
	if err != nil {
		return rec, nil, fmt.Errorf("failed to load patch %s: %w", entry.ImageName, err)
	}
	if !ct.SameShape(mask) {
		return rec, nil, fmt.Errorf("patch %s: mask shape %v does not match CT shape %v", entry.ImageName, mask.Shape(), ct.Shape())
	}
	native, err := nodule.Diameter(mask)
	if err != nil {
		return rec, nil, fmt.Errorf("patch %s: %w", entry.ImageName, err)
	}
	rec.NativeDiameter = native

	ct, mask, err = s.rescale(ct, mask, float64(native)/float64(required))
	if err != nil {
		return rec, nil, fmt.Errorf("patch %s: %w", entry.ImageName, err)
	}

	s.enter(slice, NoduleResample, NoduleProject)
	background := floats.Min(mask.Data)
	air := floats.Min(ct.Data)
	for i, m := range mask.Data {
		if m <= background {
			ct.Data[i] = air
		}
	}
	projection, err := s.params.Projector.Project(ct)
	if err != nil {
		return rec, nil, fmt.Errorf("patch %s: %w", entry.ImageName, err)
	}

	s.enter(slice, NoduleProject, NoduleComposite)
	nod := intensity.NormalizePlane(projection, s.log)

	var crop []float64
	if box, ok := ann.Box.Clip(host.Rows, host.Cols); ok {
		crop = host.CropBox(box).Data
	}
	rec.Contrast = intensity.ContrastFactor(nod.Data, crop, s.params.ContrastFloor)
	contrasted := intensity.Scale(nod, rec.Contrast)

	res := s.blender.Blend(contrasted, host, ann.Box)

	s.saveIntermediaryResult("projection", nod, 255, slice, index)
	s.saveIntermediaryResult("nodule", contrasted, 255, slice, index)

	if !res.Blended() {
		rec.Failure = res.Failure.Error()
		s.log.Warnf("slice %d: skipping nodule at %v: %v", slice, ann.Box, res.Failure)
		return rec, nil, nil
	}
	rec.Blended = true
	s.saveIntermediaryResult("blended", res.Image, 1, slice, index)
	return rec, res.Image, nil
}

// rescale resamples the patch and its mask by factor in voxel units
func (s *Synthesizer) rescale(ct, mask *models.Volume, factor float64) (*models.Volume, *models.Volume, error) {
	ct = ct.Clone()
	mask = mask.Clone()
	ct.Spacing = [3]float64{1, 1, 1}
	mask.Spacing = [3]float64{1, 1, 1}

	target := interpolation.IsotropicSpacing(factor)
	ctR, err := interpolation.Resample(ct, target, *s.params.Order, s.log)
	if err != nil {
		return nil, nil, err
	}
	maskR, err := interpolation.Resample(mask, target, *s.params.Order, s.log)
	if err != nil {
		return nil, nil, err
	}
	s.log.Debugf("rescaled patch %v -> %v (factor %.3f)", ct.Shape(), ctR.Shape(), factor)
	return ctR, maskR, nil
}

// saveIntermediaryResult writes p*scale as stage/SSS_NN.png when enabled
func (s *Synthesizer) saveIntermediaryResult(stage string, p *models.Plane, scale float64, slice, index int) {
	if !s.params.SaveIntermediaryResults {
		return
	}

	stageDir := filepath.Join(s.params.IntermediaryDir, stage)
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		s.log.Warnf("Failed to create intermediary directory: %v", err)
		return
	}

	filename := filepath.Join(stageDir, fmt.Sprintf("%03d_%02d.png", slice, index))
	if err := imageio.SavePlane(filename, p, scale); err != nil {
		s.log.Warnf("Failed to save %s result for slice %d: %v", stage, slice, err)
	}
}

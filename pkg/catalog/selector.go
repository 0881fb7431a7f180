package catalog

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"nodulesynth/internal/models"
)

const (
	DefaultPrimaryDivisor  = 5.0
	DefaultFallbackDivisor = 10.0
)

// ErrCandidateExhaustion is returned when no catalog entry passes even the
// relaxed size filter
var ErrCandidateExhaustion = errors.New("no catalog patch is large enough for the requested diameter")

// Selector picks CT patches for a required on-image diameter. A patch qualifies
// when its native diameter exceeds required/PrimaryDivisor; only when none does,
// the relaxed required/FallbackDivisor filter is used instead.
type Selector struct {
	entries []models.PatchCatalogEntry

	PrimaryDivisor  float64
	FallbackDivisor float64
}

// NewSelector creates a selector over a read-only catalog with the default
// divisors
func NewSelector(entries []models.PatchCatalogEntry) *Selector {
	return &Selector{
		entries:         entries,
		PrimaryDivisor:  DefaultPrimaryDivisor,
		FallbackDivisor: DefaultFallbackDivisor,
	}
}

// Len returns the catalog size
func (s *Selector) Len() int {
	return len(s.entries)
}

func (s *Selector) filter(threshold float64) []models.PatchCatalogEntry {
	var out []models.PatchCatalogEntry
	for _, e := range s.entries {
		if e.Diameter > threshold {
			out = append(out, e)
		}
	}
	return out
}

// Candidates returns the entries eligible for a required diameter and whether
// the relaxed filter had to be used
func (s *Selector) Candidates(required float64) ([]models.PatchCatalogEntry, bool) {
	if c := s.filter(required / s.PrimaryDivisor); len(c) > 0 {
		return c, false
	}
	return s.filter(required / s.FallbackDivisor), true
}

// Select draws one eligible entry uniformly with rng
func (s *Selector) Select(required float64, rng *rand.Rand) (models.PatchCatalogEntry, error) {
	candidates, _ := s.Candidates(required)
	if len(candidates) == 0 {
		return models.PatchCatalogEntry{}, fmt.Errorf("required diameter %.1f (%d catalog entries): %w", required, len(s.entries), ErrCandidateExhaustion)
	}
	return candidates[rng.IntN(len(candidates))], nil
}

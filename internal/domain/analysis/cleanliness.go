package analysis

import (
	"math"
	"strings"

	"car-inspect/internal/domain/entity"
)

// Reconcile сводит ответ классификатора к паре pClean/pDirty.
// Берётся первая метка, содержащая "clean", и первая, содержащая "dirty".
func Reconcile(cls []entity.Classification) entity.CleanlinessEstimate {
	var clean, dirty *entity.Classification
	for i := range cls {
		label := strings.ToLower(cls[i].Label)
		if clean == nil && strings.Contains(label, "clean") {
			clean = &cls[i]
			continue
		}
		if dirty == nil && strings.Contains(label, "dirty") {
			dirty = &cls[i]
		}
	}

	switch {
	case clean != nil && dirty != nil:
		c, d := clamp01(clean.Confidence), clamp01(dirty.Confidence)
		sum := math.Max(1e-6, c+d)
		return entity.NewCleanlinessEstimate(c / sum)
	case clean != nil:
		return entity.NewCleanlinessEstimate(clamp01(clean.Confidence))
	case dirty != nil:
		return entity.NewCleanlinessEstimate(1 - clamp01(dirty.Confidence))
	default:
		return entity.FallbackCleanliness()
	}
}

package analysis

import (
	"math"
	"sort"
	"strings"

	"car-inspect/internal/domain/entity"
)

// DefaultIoUThreshold порог IoU, начиная с которого рамки одной метки считаются дублями.
const DefaultIoUThreshold = 0.5

// Suppress выполняет non-maximum suppression отдельно для каждой метки
// (метки сравниваются без учёта регистра). Из группы дублей остаётся
// детекция с наибольшей уверенностью. Результат не зависит от порядка входа.
func Suppress(dets []entity.Detection, iouThreshold float64) []entity.Detection {
	if len(dets) == 0 {
		return []entity.Detection{}
	}

	sorted := make([]entity.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return detectionLess(sorted[i], sorted[j])
	})

	kept := make([]entity.Detection, 0, len(sorted))
	keptByLabel := make(map[string][]entity.Rect)
	for _, d := range sorted {
		key := strings.ToLower(d.Label)
		duplicate := false
		for _, box := range keptByLabel[key] {
			if box.IoU(d.Box) >= iouThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		keptByLabel[key] = append(keptByLabel[key], d.Box)
		kept = append(kept, d)
	}
	return kept
}

// detectionLess задаёт полный порядок: уверенность по убыванию (NaN в конце),
// затем метка и координаты.
func detectionLess(a, b entity.Detection) bool {
	aNaN, bNaN := math.IsNaN(a.Confidence), math.IsNaN(b.Confidence)
	if aNaN != bNaN {
		return bNaN
	}
	if !aNaN && a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	la, lb := strings.ToLower(a.Label), strings.ToLower(b.Label)
	if la != lb {
		return la < lb
	}
	if a.Box.X != b.Box.X {
		return a.Box.X < b.Box.X
	}
	if a.Box.Y != b.Box.Y {
		return a.Box.Y < b.Box.Y
	}
	if a.Box.Width != b.Box.Width {
		return a.Box.Width < b.Box.Width
	}
	return a.Box.Height < b.Box.Height
}

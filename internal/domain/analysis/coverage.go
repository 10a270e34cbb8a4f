package analysis

import (
	"sort"
	"strings"

	"car-inspect/internal/domain/entity"
)

// DefaultCoverageSamples сторона сетки выборки (200×200 = 40 000 точек).
const DefaultCoverageSamples = 200

// Coverage оценивает долю кадра, покрытую объединением прямоугольников.
// Точки сетки стоят в центрах ячеек ((i+0.5)/S, (j+0.5)/S); результат
// детерминирован для одинакового набора и S.
func Coverage(rects []entity.Rect, samples int) float64 {
	if samples <= 0 || len(rects) == 0 {
		return 0
	}

	step := 1.0 / float64(samples)
	covered := 0
	for yi := 0; yi < samples; yi++ {
		y := (float64(yi) + 0.5) * step
		for xi := 0; xi < samples; xi++ {
			x := (float64(xi) + 0.5) * step
			for _, r := range rects {
				if r.Contains(x, y) {
					covered++
					break
				}
			}
		}
	}
	return float64(covered) / float64(samples*samples)
}

// TotalCoverage считает покрытие всеми рамками независимо от метки.
func TotalCoverage(dets []entity.Detection, samples int) float64 {
	rects := make([]entity.Rect, 0, len(dets))
	for _, d := range dets {
		rects = append(rects, d.Box)
	}
	return Coverage(rects, samples)
}

// CoverageByClass считает покрытие для каждого класса из classes и для
// каждой другой встреченной метки. Ключи в нижнем регистре.
func CoverageByClass(dets []entity.Detection, classes []string, samples int) map[string]float64 {
	groups := make(map[string][]entity.Rect)
	for _, cls := range classes {
		groups[strings.ToLower(cls)] = nil
	}
	for _, d := range dets {
		key := strings.ToLower(d.Label)
		groups[key] = append(groups[key], d.Box)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		out[k] = Coverage(groups[k], samples)
	}
	return out
}

// Package analysis содержит чистые алгоритмы обработки детекций:
// фильтрацию, подавление дублей, оценку покрытия, скоринг повреждений и чистоты.
package analysis

import (
	"math"

	"car-inspect/internal/domain/entity"
)

// DefaultMinArea минимальная площадь рамки, 1% кадра.
const DefaultMinArea = 0.01

// Postprocessor фильтрует или изменяет список сырых детекций.
type Postprocessor func([]entity.RawDetection) []entity.RawDetection

// NewAreaFilter отбрасывает рамки с площадью меньше minArea.
// Уверенность не учитывается.
func NewAreaFilter(minArea float64) Postprocessor {
	return func(in []entity.RawDetection) []entity.RawDetection {
		out := make([]entity.RawDetection, 0, len(in))
		for _, d := range in {
			if d.Box.Area() >= minArea {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewFiniteFilter отбрасывает детекции с нечисловой уверенностью или рамкой (NaN, ±Inf).
func NewFiniteFilter() Postprocessor {
	return func(in []entity.RawDetection) []entity.RawDetection {
		out := make([]entity.RawDetection, 0, len(in))
		for _, d := range in {
			if finite(d.Confidence, d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height) {
				out = append(out, d)
			}
		}
		return out
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Chain применяет постпроцессоры по порядку.
func Chain(steps ...Postprocessor) Postprocessor {
	return func(in []entity.RawDetection) []entity.RawDetection {
		for _, step := range steps {
			if step == nil {
				continue
			}
			in = step(in)
		}
		return in
	}
}

package analysis

import (
	"math"
	"strings"

	"car-inspect/internal/domain/entity"
)

// DefaultDamageClasses классы повреждений по умолчанию.
var DefaultDamageClasses = []string{"scratch", "dent", "rust"}

// DamageScore среднее по классам от максимальной уверенности в классе
// (0, если детекций класса нет), ограниченное [0,1].
func DamageScore(dets []entity.Detection, classes []string) float64 {
	if len(classes) == 0 {
		return 0
	}

	maxima := ClassMaxima(dets, classes)
	sum := 0.0
	for _, cls := range classes {
		sum += maxima[strings.ToLower(cls)]
	}
	return clamp01(sum / float64(len(classes)))
}

// ClassMaxima возвращает максимальную уверенность по каждому классу из classes.
func ClassMaxima(dets []entity.Detection, classes []string) map[string]float64 {
	out := make(map[string]float64, len(classes))
	for _, cls := range classes {
		out[strings.ToLower(cls)] = 0
	}
	for _, d := range dets {
		key := strings.ToLower(d.Label)
		best, ok := out[key]
		if !ok {
			continue
		}
		if d.Confidence > best {
			out[key] = d.Confidence
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

package vision

import (
	"errors"
	"fmt"
	"math"

	"car-inspect/internal/domain/entity"
)

// ErrUnavailable бэкенд модели не собран или не загружен.
var ErrUnavailable = errors.New("oracle backend unavailable")

const (
	// DefaultInputSize сторона квадратного входа YOLO-модели.
	DefaultInputSize = 640
	// DefaultScoreFloor порог, ниже которого строки выходного тензора не декодируются.
	DefaultScoreFloor = 0.05
)

// decodeYOLO разбирает выход YOLOv8 формы [1, 4+nc, n]: по столбцам cx, cy, w, h
// в пикселях входа size×size, затем оценки классов.
func decodeYOLO(data []float32, shape []int, labels []string, size int, floor float64) ([]entity.RawDetection, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	rows, n := shape[1], shape[2]
	if rows < 5 || len(data) < rows*n {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	classes := rows - 4
	s := float64(size)

	var out []entity.RawDetection
	for i := 0; i < n; i++ {
		best, bestScore := -1, floor
		for c := 0; c < classes; c++ {
			score := float64(data[(4+c)*n+i])
			if score >= bestScore {
				best, bestScore = c, score
			}
		}
		if best < 0 {
			continue
		}

		cx := float64(data[0*n+i]) / s
		cy := float64(data[1*n+i]) / s
		w := float64(data[2*n+i]) / s
		h := float64(data[3*n+i]) / s

		out = append(out, entity.RawDetection{
			Label:      labelAt(labels, best),
			Confidence: math.Min(1, bestScore),
			Box:        normalizedBox(cx-w/2, cy-h/2, w, h),
		})
	}
	return out, nil
}

// normalizedBox переводит рамку с началом сверху слева в систему с началом снизу слева,
// обрезая её по границам кадра.
func normalizedBox(left, top, w, h float64) entity.Rect {
	x0 := clampUnit(left)
	x1 := clampUnit(left + w)
	y0 := clampUnit(top)
	y1 := clampUnit(top + h)
	return entity.Rect{
		X:      x0,
		Y:      1 - y1,
		Width:  x1 - x0,
		Height: y1 - y0,
	}
}

// classScores превращает выход классификатора в метки с вероятностями.
// Логиты нормализуются softmax, готовое распределение оставляется как есть.
func classScores(data []float32, labels []string) []entity.Classification {
	if len(data) == 0 {
		return nil
	}
	probs := make([]float64, len(data))
	sum, isDist := 0.0, true
	for i, v := range data {
		probs[i] = float64(v)
		sum += probs[i]
		if probs[i] < 0 || probs[i] > 1 {
			isDist = false
		}
	}
	if !isDist || math.Abs(sum-1) > 1e-3 {
		softmax(probs)
	}

	out := make([]entity.Classification, len(probs))
	for i, p := range probs {
		out[i] = entity.Classification{Label: labelAt(labels, i), Confidence: p}
	}
	return out
}

func softmax(v []float64) {
	maxV := math.Inf(-1)
	for _, x := range v {
		maxV = math.Max(maxV, x)
	}
	sum := 0.0
	for i, x := range v {
		v[i] = math.Exp(x - maxV)
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}

func labelAt(labels []string, i int) string {
	if i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("class_%d", i)
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

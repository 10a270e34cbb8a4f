package entity

import (
	"image"
	"math"

	"github.com/google/uuid"
)

// Rect прямоугольник в нормализованных координатах изображения.
// Начало координат в левом нижнем углу, ось Y направлена вверх.
type Rect struct {
	X      float64 `json:"x"`      // левая граница, 0..1
	Y      float64 `json:"y"`      // нижняя граница, 0..1
	Width  float64 `json:"width"`  // ширина, 0..1
	Height float64 `json:"height"` // высота, 0..1
}

// MaxX возвращает правую границу.
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY возвращает верхнюю границу.
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Area возвращает площадь как долю площади кадра.
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Center возвращает координаты центра прямоугольника.
func (r Rect) Center() (x, y float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Contains проверяет попадание точки; левая и нижняя границы включены, правая и верхняя нет.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.MaxX() && y >= r.Y && y < r.MaxY()
}

// Intersect возвращает пересечение двух прямоугольников (пустой Rect, если пересечения нет).
func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.MaxX(), o.MaxX())
	y1 := math.Min(r.MaxY(), o.MaxY())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// IoU считает отношение площади пересечения к площади объединения.
func (r Rect) IoU(o Rect) float64 {
	inter := r.Intersect(o).Area()
	if inter == 0 {
		return 0
	}
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// PixelRect переводит прямоугольник в пиксельные координаты кадра w×h
// с началом в левом верхнем углу (как в image.Image).
func (r Rect) PixelRect(w, h int) image.Rectangle {
	x0 := r.X * float64(w)
	y0 := (1 - r.Y - r.Height) * float64(h)
	return image.Rect(
		int(math.Round(x0)),
		int(math.Round(y0)),
		int(math.Round(x0+r.Width*float64(w))),
		int(math.Round(y0+r.Height*float64(h))),
	)
}

// RectFromPixels обратное преобразование для адаптеров, которые отдают
// пиксельные рамки с началом в левом верхнем углу.
func RectFromPixels(x, y, width, height, imageWidth, imageHeight int) Rect {
	if imageWidth <= 0 || imageHeight <= 0 {
		return Rect{}
	}
	w := float64(imageWidth)
	h := float64(imageHeight)
	return Rect{
		X:      float64(x) / w,
		Y:      1 - float64(y+height)/h,
		Width:  float64(width) / w,
		Height: float64(height) / h,
	}
}

// RawDetection то, что возвращает модель до фильтрации и слияния.
type RawDetection struct {
	Label      string
	Confidence float64
	Box        Rect
}

// Detection распознанная область после фильтрации.
type Detection struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	Confidence   float64 `json:"confidence"`
	Box          Rect    `json:"bounding_box"`
	AreaFraction float64 `json:"area_fraction"` // площадь собственной рамки, не покрытие
}

// NewDetection создаёт детекцию из сырого результата модели.
func NewDetection(raw RawDetection) Detection {
	return Detection{
		ID:           uuid.NewString(),
		Label:        raw.Label,
		Confidence:   raw.Confidence,
		Box:          raw.Box,
		AreaFraction: raw.Box.Area(),
	}
}

// Classification одна метка классификатора с уверенностью.
type Classification struct {
	Label      string
	Confidence float64
}

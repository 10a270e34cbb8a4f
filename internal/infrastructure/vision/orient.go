package vision

import (
	"image"

	"github.com/disintegration/imaging"

	"car-inspect/internal/domain/entity"
)

// Upright поворачивает кадр сенсора так, чтобы он стоял вертикально,
// до интерпретации координат моделью.
func Upright(img image.Image, o entity.Orientation) image.Image {
	switch o {
	case entity.OrientationRight:
		return imaging.Rotate270(img) // 90° по часовой
	case entity.OrientationDown:
		return imaging.Rotate180(img)
	case entity.OrientationLeft:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

package entity

import (
	"image"
	"time"
)

// Orientation описывает, как кадр сенсора повёрнут относительно вертикали.
type Orientation uint8

const (
	OrientationUp    Orientation = iota // кадр уже вертикален
	OrientationRight                    // верх кадра смотрит вправо (задняя камера, портрет)
	OrientationDown
	OrientationLeft
)

func (o Orientation) String() string {
	switch o {
	case OrientationUp:
		return "up"
	case OrientationRight:
		return "right"
	case OrientationDown:
		return "down"
	case OrientationLeft:
		return "left"
	default:
		return "unknown"
	}
}

// ParseOrientation разбирает строковое представление, по умолчанию right.
func ParseOrientation(s string) Orientation {
	switch s {
	case "up":
		return OrientationUp
	case "down":
		return OrientationDown
	case "left":
		return OrientationLeft
	default:
		return OrientationRight
	}
}

// Frame кадр видеопотока.
type Frame struct {
	Pixels      image.Image
	Orientation Orientation
	Timestamp   time.Time
}

// Size возвращает размер буфера в пикселях (до поворота).
func (f Frame) Size() (width, height int) {
	if f.Pixels == nil {
		return 0, 0
	}
	b := f.Pixels.Bounds()
	return b.Dx(), b.Dy()
}

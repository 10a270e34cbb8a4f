package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"car-inspect/internal/domain/port"
)

// DefaultMaxPixels предел числа пикселей декодируемого изображения (около 40 Мп).
const DefaultMaxPixels = 40_000_000

// ErrTooManyPixels возвращается для изображения, заявленный размер которого больше предела.
var ErrTooManyPixels = errors.New("image dimensions exceed limit")

// Decoder декодирует JPEG/PNG/GIF/BMP/TIFF/WebP, поворачивая фото по EXIF.
// Размер проверяется по заголовку до выделения памяти под пиксели.
type Decoder struct {
	AutoOrient bool
	MaxPixels  int
}

// NewDecoder создаёт декодер с автоповоротом по EXIF.
func NewDecoder() Decoder {
	return Decoder{AutoOrient: true, MaxPixels: DefaultMaxPixels}
}

// Decode превращает байты файла в изображение.
func (d Decoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	limit := d.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("empty image")
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(d.AutoOrient))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("empty image")
	}
	return img, nil
}

var _ port.ImageDecoder = Decoder{}

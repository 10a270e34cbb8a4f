package port

import "image"

// ImageDecoder превращает байты файла в изображение.
type ImageDecoder interface {
	Decode(data []byte) (image.Image, error)
}

package vision

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"car-inspect/internal/domain/entity"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecoder_Decode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 20))
	data := encodePNG(t, img)

	out, err := NewDecoder().Decode(data)
	require.NoError(t, err)
	require.Equal(t, 30, out.Bounds().Dx())
	require.Equal(t, 20, out.Bounds().Dy())

	var jpg bytes.Buffer
	require.NoError(t, imaging.Encode(&jpg, img, imaging.JPEG))
	out, err = NewDecoder().Decode(jpg.Bytes())
	require.NoError(t, err)
	require.Equal(t, 30, out.Bounds().Dx())
}

func TestDecoder_Garbage(t *testing.T) {
	_, err := NewDecoder().Decode([]byte("definitely not an image"))
	require.Error(t, err)

	_, err = NewDecoder().Decode(nil)
	require.Error(t, err)
}

// pngHeader собирает PNG из одного заголовка IHDR с заданным размером.
func pngHeader(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // бит на канал
	ihdr[9] = 2 // RGB

	chunk := append([]byte("IHDR"), ihdr...)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecoder_RejectsHugeDimensions(t *testing.T) {
	_, err := NewDecoder().Decode(pngHeader(100_000, 100_000))
	require.ErrorIs(t, err, ErrTooManyPixels)
}

func TestDecoder_MaxPixels(t *testing.T) {
	data := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 30, 20)))

	_, err := Decoder{MaxPixels: 599}.Decode(data)
	require.ErrorIs(t, err, ErrTooManyPixels)

	img, err := Decoder{MaxPixels: 600}.Decode(data)
	require.NoError(t, err)
	require.Equal(t, 30, img.Bounds().Dx())
}

func TestUpright(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, red)

	right := Upright(img, entity.OrientationRight)
	require.Equal(t, image.Rect(0, 0, 2, 4), right.Bounds())
	require.Equal(t, red, color.NRGBAModel.Convert(right.At(1, 0)))

	left := Upright(img, entity.OrientationLeft)
	require.Equal(t, red, color.NRGBAModel.Convert(left.At(0, 3)))

	down := Upright(img, entity.OrientationDown)
	require.Equal(t, red, color.NRGBAModel.Convert(down.At(3, 1)))

	require.Same(t, img, Upright(img, entity.OrientationUp))
}

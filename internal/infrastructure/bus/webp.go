//go:build cgo

package bus

import (
	"bytes"
	"image"

	"github.com/chai2010/webp"
)

const webpAvailable = true

// WebPEncoder сжимает кадры просмотра в WebP
type WebPEncoder struct {
	Quality int
}

// Encode кодирует изображение с потерями
func (e WebPEncoder) Encode(img image.Image) ([]byte, string, error) {
	q := e.Quality
	if q <= 0 || q > 100 {
		q = 80
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(q)}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/webp", nil
}

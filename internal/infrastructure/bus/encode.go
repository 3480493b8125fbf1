package bus

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"

	"vision-inspector/internal/domain/port"
)

// JPEGEncoder сжимает кадры просмотра в JPEG
type JPEGEncoder struct {
	Quality int
}

// Encode кодирует изображение
func (e JPEGEncoder) Encode(img image.Image) ([]byte, string, error) {
	q := e.Quality
	if q <= 0 || q > 100 {
		q = 80
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/jpeg", nil
}

// NewEncoder выбирает кодировщик по имени формата: "webp" или "jpeg".
// WebP доступен только в сборках с cgo, иначе используется JPEG.
func NewEncoder(format string, quality int) port.PreviewEncoder {
	if format == "webp" && webpAvailable {
		return WebPEncoder{Quality: quality}
	}
	return JPEGEncoder{Quality: quality}
}

var _ port.PreviewEncoder = JPEGEncoder{}

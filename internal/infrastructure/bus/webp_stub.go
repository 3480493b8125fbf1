//go:build !cgo

package bus

import (
	"errors"
	"image"
)

const webpAvailable = false

// WebPEncoder недоступен без cgo
type WebPEncoder struct {
	Quality int
}

// Encode возвращает ошибку в сборке без cgo
func (e WebPEncoder) Encode(img image.Image) ([]byte, string, error) {
	return nil, "", errors.New("webp encoding requires cgo")
}

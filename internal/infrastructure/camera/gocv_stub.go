//go:build !gocv
// +build !gocv

package camera

import (
	"context"
	"fmt"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

// GoCVCamera заглушка камеры для сборки без OpenCV
type GoCVCamera struct {
	device string
}

// NewGoCVCamera возвращает ошибку, если сборка без тега gocv.
func NewGoCVCamera(device string, width, height int) (*GoCVCamera, error) {
	_ = width
	_ = height
	return nil, fmt.Errorf("%w: camera %s: gocv build tag is not enabled", entity.ErrCapture, device)
}

// Capture возвращает ошибку, если сборка без тега gocv.
func (c *GoCVCamera) Capture(ctx context.Context, hints entity.CaptureHints) (*entity.Frame, error) {
	_ = ctx
	_ = hints
	return nil, fmt.Errorf("%w: gocv build tag is not enabled", entity.ErrCapture)
}

// Close ничего не делает
func (c *GoCVCamera) Close() error {
	return nil
}

var _ port.Camera = (*GoCVCamera)(nil)

//go:build gocv
// +build gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

// GoCVCamera камера через OpenCV VideoCapture
type GoCVCamera struct {
	mu      sync.Mutex
	device  string
	capture *gocv.VideoCapture
	width   int
	height  int
	hints   entity.CaptureHints
	applied bool
	seq     uint64
}

// NewGoCVCamera открывает устройство (индекс или URL потока).
func NewGoCVCamera(device string, width, height int) (*GoCVCamera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", entity.ErrCapture, device, err)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &GoCVCamera{device: device, capture: vc, width: width, height: height}, nil
}

// Capture снимает кадр. Отмена ctx прерывает ожидание, чтение дочитывается в фоне.
func (c *GoCVCamera) Capture(ctx context.Context, hints entity.CaptureHints) (*entity.Frame, error) {
	type shot struct {
		frame *entity.Frame
		err   error
	}
	done := make(chan shot, 1)
	go func() {
		f, err := c.read(hints)
		done <- shot{f, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", entity.ErrCapture, ctx.Err())
	case s := <-done:
		return s.frame, s.err
	}
}

func (c *GoCVCamera) read(hints entity.CaptureHints) (*entity.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, fmt.Errorf("%w: camera closed", entity.ErrCapture)
	}
	if !c.applied || hints != c.hints {
		c.apply(hints)
	}

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		return nil, fmt.Errorf("%w: read from %s failed", entity.ErrCapture, c.device)
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGB)

	pix, err := rgb.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrCapture, err)
	}
	frame := &entity.Frame{
		Width:     rgb.Cols(),
		Height:    rgb.Rows(),
		Pix:       make([]uint8, len(pix)),
		Timestamp: time.Now(),
	}
	copy(frame.Pix, pix)
	c.seq++
	frame.Seq = c.seq
	if frame.Empty() {
		return nil, errors.Join(entity.ErrCapture, errors.New("unexpected frame layout"))
	}
	return frame, nil
}

// apply переводит режим яркости и фокус программы в свойства устройства
func (c *GoCVCamera) apply(hints entity.CaptureHints) {
	switch hints.Brightness {
	case entity.BrightnessHDR:
		c.capture.Set(gocv.VideoCaptureAutoExposure, 3)
		c.capture.Set(gocv.VideoCaptureGain, 0)
	case entity.BrightnessHighGain:
		c.capture.Set(gocv.VideoCaptureAutoExposure, 1)
		c.capture.Set(gocv.VideoCaptureGain, 100)
	default:
		c.capture.Set(gocv.VideoCaptureAutoExposure, 1)
		c.capture.Set(gocv.VideoCaptureGain, 0)
	}
	if hints.Focus > 0 {
		c.capture.Set(gocv.VideoCaptureAutoFocus, 0)
		c.capture.Set(gocv.VideoCaptureFocus, float64(hints.Focus))
	} else {
		c.capture.Set(gocv.VideoCaptureAutoFocus, 1)
	}
	c.hints = hints
	c.applied = true
}

// Close освобождает устройство
func (c *GoCVCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

var _ port.Camera = (*GoCVCamera)(nil)

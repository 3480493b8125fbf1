package entity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Frame кадр камеры в формате RGB, 3 байта на пиксель, строки без выравнивания
type Frame struct {
	Width     int
	Height    int
	Pix       []uint8
	Seq       uint64
	Timestamp time.Time
}

// NewFrame создаёт чёрный кадр заданного размера.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:     width,
		Height:    height,
		Pix:       make([]uint8, width*height*3),
		Timestamp: time.Now(),
	}
}

// Empty сообщает, что кадр пустой или повреждён
func (f *Frame) Empty() bool {
	return f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height*3
}

// RGB возвращает цвет пикселя (x, y)
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// SetRGB записывает цвет пикселя (x, y)
func (f *Frame) SetRGB(x, y int, r, g, b uint8) {
	i := (y*f.Width + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// Fill заливает область одним цветом, область обрезается по кадру.
func (f *Frame) Fill(roi ROI, r, g, b uint8) {
	c := roi.Clamp(f.Width, f.Height)
	for y := c.Y; y < c.Y+c.H; y++ {
		for x := c.X; x < c.X+c.W; x++ {
			f.SetRGB(x, y, r, g, b)
		}
	}
}

// Clone возвращает независимую копию кадра
func (f *Frame) Clone() *Frame {
	pix := make([]uint8, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix, Seq: f.Seq, Timestamp: f.Timestamp}
}

// Checksum считает sha256 по размеру и пикселям кадра.
func (f *Frame) Checksum() string {
	h := sha256.New()
	var dims [16]byte
	binary.BigEndian.PutUint64(dims[:8], uint64(f.Width))
	binary.BigEndian.PutUint64(dims[8:], uint64(f.Height))
	h.Write(dims[:])
	h.Write(f.Pix)
	return hex.EncodeToString(h.Sum(nil))
}

// CaptureHints подсказки камере для съёмки кадра
type CaptureHints struct {
	Brightness BrightnessMode
	Focus      int
}

// PreviewFrame закодированный кадр живого просмотра
type PreviewFrame struct {
	ProgramID   string
	Seq         uint64
	Width       int
	Height      int
	ContentType string
	Data        []byte
	Timestamp   time.Time
}

package vision

import (
	"fmt"

	"vision-inspector/internal/domain/entity"
)

// Gray одноканальное 8-битное изображение
type Gray struct {
	W   int
	H   int
	Pix []uint8
}

// NewGray создаёт пустое изображение
func NewGray(w, h int) *Gray {
	return &Gray{W: w, H: h, Pix: make([]uint8, w*h)}
}

// At возвращает яркость пикселя (x, y)
func (g *Gray) At(x, y int) uint8 {
	return g.Pix[y*g.W+x]
}

// Sub копирует прямоугольник, лежащий внутри изображения.
func (g *Gray) Sub(r entity.ROI) (*Gray, error) {
	if !r.Inside(g.W, g.H) {
		return nil, fmt.Errorf("%w: %s outside %dx%d", entity.ErrRoiOutOfBounds, r, g.W, g.H)
	}
	out := NewGray(r.W, r.H)
	for y := 0; y < r.H; y++ {
		copy(out.Pix[y*r.W:(y+1)*r.W], g.Pix[(r.Y+y)*g.W+r.X:(r.Y+y)*g.W+r.X+r.W])
	}
	return out, nil
}

// Luma переводит RGB в яркость (BT.601) в целых числах, результат детерминирован.
func Luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

// GrayROI вырезает область кадра и переводит её в оттенки серого
func GrayROI(f *entity.Frame, roi entity.ROI) (*Gray, error) {
	if f.Empty() {
		return nil, fmt.Errorf("%w: empty frame", entity.ErrCapture)
	}
	if !roi.Inside(f.Width, f.Height) {
		return nil, fmt.Errorf("%w: %s outside %dx%d", entity.ErrRoiOutOfBounds, roi, f.Width, f.Height)
	}
	out := NewGray(roi.W, roi.H)
	for y := 0; y < roi.H; y++ {
		for x := 0; x < roi.W; x++ {
			r, g, b := f.RGB(roi.X+x, roi.Y+y)
			out.Pix[y*roi.W+x] = Luma(r, g, b)
		}
	}
	return out, nil
}

// GrayFrame переводит весь кадр в оттенки серого
func GrayFrame(f *entity.Frame) (*Gray, error) {
	return GrayROI(f, entity.ROI{W: f.Width, H: f.Height})
}

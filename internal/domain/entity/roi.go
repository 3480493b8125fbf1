package entity

import "fmt"

// ROI прямоугольная область интереса в координатах эталонного изображения
type ROI struct {
	X int `yaml:"x" json:"x"` // координата X левого верхнего угла
	Y int `yaml:"y" json:"y"` // координата Y левого верхнего угла
	W int `yaml:"w" json:"w"` // ширина области в пикселях
	H int `yaml:"h" json:"h"` // высота области в пикселях
}

// Area возвращает площадь области в пикселях
func (r ROI) Area() int {
	return r.W * r.H
}

// Shift сдвигает область на смещение
func (r ROI) Shift(o Offset) ROI {
	return ROI{X: r.X + o.DX, Y: r.Y + o.DY, W: r.W, H: r.H}
}

// Expand расширяет область на margin пикселей во все стороны
func (r ROI) Expand(margin int) ROI {
	return ROI{X: r.X - margin, Y: r.Y - margin, W: r.W + 2*margin, H: r.H + 2*margin}
}

// Clamp обрезает область по границам кадра width x height.
func (r ROI) Clamp(width, height int) ROI {
	x0, y0 := maxInt(r.X, 0), maxInt(r.Y, 0)
	x1, y1 := minInt(r.X+r.W, width), minInt(r.Y+r.H, height)
	if x1 <= x0 || y1 <= y0 {
		return ROI{X: x0, Y: y0}
	}
	return ROI{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Inside сообщает, лежит ли область целиком внутри кадра
func (r ROI) Inside(width, height int) bool {
	return r.W > 0 && r.H > 0 && r.X >= 0 && r.Y >= 0 && r.X+r.W <= width && r.Y+r.H <= height
}

func (r ROI) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// Point точка в координатах эталонного изображения
type Point struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Offset смещение детали относительно эталона, найденное компенсатором
type Offset struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// IsZero сообщает, что смещения нет
func (o Offset) IsZero() bool {
	return o.DX == 0 && o.DY == 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

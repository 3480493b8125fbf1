package vision

import "math"

// sobelPure модуль градиента Собеля 3x3 без OpenCV, граница BORDER_REPLICATE
func sobelPure(g *Gray) []float64 {
	out := make([]float64, g.W*g.H)
	px := func(x, y int) float64 {
		x = clamp(x, 0, g.W-1)
		y = clamp(y, 0, g.H-1)
		return float64(g.Pix[y*g.W+x])
	}
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			gx := px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x-1, y) - px(x-1, y+1)
			gy := px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1)
			out[y*g.W+x] = math.Hypot(gx, gy)
		}
	}
	return out
}

// Laplacian считает дискретный лапласиан 3x3 (ядро 0 1 0 / 1 -4 1 / 0 1 0)
func Laplacian(g *Gray) []float64 {
	out := make([]float64, g.W*g.H)
	px := func(x, y int) float64 {
		return float64(g.Pix[clamp(y, 0, g.H-1)*g.W+clamp(x, 0, g.W-1)])
	}
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			out[y*g.W+x] = px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1) - 4*px(x, y)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

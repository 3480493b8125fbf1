package vision

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// otsuPure метод Оцу без OpenCV.
// При равенстве межклассовой дисперсии выигрывает меньший порог.
func otsuPure(pix []uint8) uint8 {
	var hist [256]float64
	for _, p := range pix {
		hist[p]++
	}
	total := float64(len(pix))
	sumAll := 0.0
	for i, n := range hist {
		sumAll += float64(i) * n
	}

	var wB, sumB, best float64
	t := 0
	for i := 0; i < 256; i++ {
		wB += hist[i]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * hist[i]
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			t = i
		}
	}
	return uint8(t)
}

// Binarize строит маску пикселей ярче порога и возвращает их число
func Binarize(g *Gray, t uint8) ([]bool, int) {
	mask := make([]bool, len(g.Pix))
	n := 0
	for i, p := range g.Pix {
		if p > t {
			mask[i] = true
			n++
		}
	}
	return mask, n
}

// Foreground бинаризует изображение по Оцу или по ручному порогу
func Foreground(g *Gray, manual *int) ([]bool, int) {
	if manual != nil {
		return Binarize(g, uint8(*manual))
	}
	return Binarize(g, Otsu(g.Pix))
}

// Percentile возвращает эмпирический p-квантиль значений (0 <= p < 1).
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// CountAbove считает значения строго больше порога
func CountAbove(values []float64, t float64) int {
	n := 0
	for _, v := range values {
		if v > t {
			n++
		}
	}
	return n
}

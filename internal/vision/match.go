package vision

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrFlatTemplate шаблон без текстуры нельзя сопоставить корреляцией
var ErrFlatTemplate = errors.New("template has no texture")

// Match лучшая позиция шаблона в области поиска
type Match struct {
	X     int     // координата X левого верхнего угла в области поиска
	Y     int     // координата Y левого верхнего угла в области поиска
	Score float64 // нормированная корреляция -1..1
}

// ErrTemplateTooLarge шаблон не помещается в область поиска
var ErrTemplateTooLarge = errors.New("template larger than search window")

// matchTemplatePure перебор позиций в растровом порядке, первый максимум побеждает
func matchTemplatePure(search, tmpl *Gray) (Match, error) {
	if tmpl.W > search.W || tmpl.H > search.H {
		return Match{}, ErrTemplateTooLarge
	}
	tc := centered(tmpl.Pix)
	tNorm := floats.Dot(tc, tc)
	if tNorm == 0 {
		return Match{}, ErrFlatTemplate
	}

	best := Match{Score: math.Inf(-1)}
	window := make([]float64, len(tc))
	for y := 0; y+tmpl.H <= search.H; y++ {
		for x := 0; x+tmpl.W <= search.W; x++ {
			for ty := 0; ty < tmpl.H; ty++ {
				row := search.Pix[(y+ty)*search.W+x : (y+ty)*search.W+x+tmpl.W]
				for tx, p := range row {
					window[ty*tmpl.W+tx] = float64(p)
				}
			}
			mean := floats.Sum(window) / float64(len(window))
			floats.AddConst(-mean, window)
			wNorm := floats.Dot(window, window)

			score := 0.0
			if wNorm > 0 {
				score = floats.Dot(tc, window) / math.Sqrt(tNorm*wNorm)
			}
			if score > best.Score {
				best = Match{X: x, Y: y, Score: score}
			}
		}
	}
	return best, nil
}

// IsFlat сообщает, что у изображения нулевая дисперсия
func IsFlat(g *Gray) bool {
	c := centered(g.Pix)
	return floats.Dot(c, c) == 0
}

func centered(pix []uint8) []float64 {
	out := make([]float64, len(pix))
	for i, p := range pix {
		out[i] = float64(p)
	}
	mean := floats.Sum(out) / float64(len(out))
	floats.AddConst(-mean, out)
	return out
}

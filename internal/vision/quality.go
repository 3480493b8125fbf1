package vision

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Quality показатели качества кадра
type Quality struct {
	Brightness float64 // средняя яркость 0..255
	Sharpness  float64 // дисперсия лапласиана
	Clipped    float64 // доля пересвеченных и провальных пикселей 0..1
	Score      float64 // интегральная оценка 0..100
}

// MeasureQuality оценивает яркость, резкость и экспозицию изображения.
func MeasureQuality(g *Gray) Quality {
	if len(g.Pix) == 0 {
		return Quality{}
	}
	values := make([]float64, len(g.Pix))
	clipped := 0
	for i, p := range g.Pix {
		values[i] = float64(p)
		if p > 250 || p < 5 {
			clipped++
		}
	}
	q := Quality{
		Brightness: stat.Mean(values, nil),
		Sharpness:  stat.PopVariance(Laplacian(g), nil),
		Clipped:    float64(clipped) / float64(len(g.Pix)),
	}

	brightnessScore := math.Max(0, math.Min(100, 100*(1-math.Abs(q.Brightness-125)/125)))
	sharpnessScore := math.Min(100, q.Sharpness/5)
	exposureScore := 100 * (1 - q.Clipped)
	q.Score = 0.3*brightnessScore + 0.5*sharpnessScore + 0.2*exposureScore
	return q
}

// Consistency сравнивает текущий кадр с эталоном и возвращает список расхождений.
// Пустой список означает, что условия съёмки совпадают.
func Consistency(reference, current Quality) []string {
	var issues []string
	if d := math.Abs(reference.Brightness - current.Brightness); d > 30 {
		issues = append(issues, fmt.Sprintf("brightness differs by %.1f", d))
	}
	if reference.Sharpness > 0 && current.Sharpness < reference.Sharpness*0.5 {
		issues = append(issues, fmt.Sprintf("sharpness dropped to %.0f%% of reference", 100*current.Sharpness/reference.Sharpness))
	}
	if current.Clipped > reference.Clipped+0.1 {
		issues = append(issues, fmt.Sprintf("clipped pixels %.1f%% (reference %.1f%%)", 100*current.Clipped, 100*reference.Clipped))
	}
	return issues
}

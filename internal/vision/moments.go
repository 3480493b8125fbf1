package vision

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// HuEpsilon инварианты по модулю меньше этого значения не участвуют в сравнении
const HuEpsilon = 1e-5

func huMomentsPure(c Component) [7]float64 {
	n := float64(c.Size())
	if n == 0 {
		return [7]float64{}
	}
	xs := make([]float64, c.Size())
	ys := make([]float64, c.Size())
	for i := range c.Xs {
		xs[i] = float64(c.Xs[i])
		ys[i] = float64(c.Ys[i])
	}
	xc := floats.Sum(xs) / n
	yc := floats.Sum(ys) / n

	var mu20, mu02, mu11, mu30, mu03, mu21, mu12 float64
	for i := range xs {
		dx, dy := xs[i]-xc, ys[i]-yc
		mu20 += dx * dx
		mu02 += dy * dy
		mu11 += dx * dy
		mu30 += dx * dx * dx
		mu03 += dy * dy * dy
		mu21 += dx * dx * dy
		mu12 += dx * dy * dy
	}

	s2 := n * n
	s3 := math.Pow(n, 2.5)
	return huInvariants(normalized{
		n20: mu20 / s2, n02: mu02 / s2, n11: mu11 / s2,
		n30: mu30 / s3, n03: mu03 / s3, n21: mu21 / s3, n12: mu12 / s3,
	})
}

// normalized нормированные центральные моменты второго и третьего порядка
type normalized struct {
	n20, n02, n11      float64
	n30, n03, n21, n12 float64
}

func huInvariants(m normalized) [7]float64 {
	var hu [7]float64
	n20, n02, n11 := m.n20, m.n02, m.n11
	n30, n03, n21, n12 := m.n30, m.n03, m.n21, m.n12

	a := n30 + n12
	b := n21 + n03
	hu[0] = n20 + n02
	hu[1] = (n20-n02)*(n20-n02) + 4*n11*n11
	hu[2] = (n30-3*n12)*(n30-3*n12) + (3*n21-n03)*(3*n21-n03)
	hu[3] = a*a + b*b
	hu[4] = (n30-3*n12)*a*(a*a-3*b*b) + (3*n21-n03)*b*(3*a*a-b*b)
	hu[5] = (n20-n02)*(a*a-b*b) + 4*n11*a*b
	hu[6] = (3*n21-n03)*a*(a*a-3*b*b) - (n30-3*n12)*b*(3*a*a-b*b)
	return hu
}

// ShapeDistance сравнивает векторы Ху в логарифмической шкале (как CONTOURS_MATCH_I1):
// сумма |1/mA - 1/mB|, где m = sign(h)*log10|h|.
func ShapeDistance(a, b [7]float64) float64 {
	d := 0.0
	for i := 0; i < 7; i++ {
		aa, ab := math.Abs(a[i]), math.Abs(b[i])
		if aa <= HuEpsilon || ab <= HuEpsilon {
			continue
		}
		ma := sign(a[i]) * math.Log10(aa)
		mb := sign(b[i]) * math.Log10(ab)
		if ma == 0 || mb == 0 {
			continue
		}
		d += math.Abs(1/ma - 1/mb)
	}
	return d
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

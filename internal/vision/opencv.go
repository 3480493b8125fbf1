//go:build gocv
// +build gocv

package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"vision-inspector/internal/domain/entity"
)

// Backend имя реализации алгоритмов зрения в этой сборке
const Backend = "opencv"

// индекс столбца площади в статистике connectedComponentsWithStats
const statArea = 4

// Otsu подбирает глобальный порог бинаризации по методу Оцу.
// Пиксели строго ярче порога считаются передним планом (как THRESH_BINARY).
func Otsu(pix []uint8) uint8 {
	if len(pix) == 0 {
		return 0
	}
	src, err := gocv.NewMatFromBytes(1, len(pix), gocv.MatTypeCV8U, pix)
	if err != nil {
		return otsuPure(pix)
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	t := gocv.Threshold(src, &dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return uint8(t)
}

// SobelMagnitude считает модуль градиента оператором Собеля 3x3.
// На границе значения пикселей повторяются (BORDER_REPLICATE).
func SobelMagnitude(g *Gray) []float64 {
	src, err := grayMat(g)
	if err != nil {
		return sobelPure(g)
	}
	defer src.Close()

	dx := gocv.NewMat()
	defer dx.Close()
	dy := gocv.NewMat()
	defer dy.Close()
	mag := gocv.NewMat()
	defer mag.Close()

	gocv.Sobel(src, &dx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderReplicate)
	gocv.Sobel(src, &dy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderReplicate)
	gocv.Magnitude(dx, dy, &mag)

	data, err := mag.DataPtrFloat32()
	if err != nil {
		return sobelPure(g)
	}
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out
}

// LargestComponent находит наибольшую 8-связную область маски.
// При равных размерах остаётся область, раньше встреченная в растровом порядке.
func LargestComponent(mask []bool, w, h int) Component {
	if w == 0 || h == 0 {
		return Component{}
	}
	pix := make([]uint8, len(mask))
	for i, on := range mask {
		if on {
			pix[i] = 255
		}
	}
	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, pix)
	if err != nil {
		return largestComponentPure(mask, w, h)
	}
	defer src.Close()

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(src, &labels, &stats, &centroids)
	if n < 2 {
		return Component{}
	}

	// нумерация меток зависит от алгоритма, порядок задаём первым пикселем
	best, bestArea := 0, int32(0)
	seen := make([]bool, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := int(labels.GetIntAt(y, x))
			if l == 0 || seen[l] {
				continue
			}
			seen[l] = true
			if area := stats.GetIntAt(l, statArea); area > bestArea {
				best, bestArea = l, area
			}
		}
	}

	c := Component{Xs: make([]int, 0, bestArea), Ys: make([]int, 0, bestArea)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if int(labels.GetIntAt(y, x)) == best {
				c.Xs = append(c.Xs, x)
				c.Ys = append(c.Ys, y)
			}
		}
	}
	return c
}

// HuMoments считает 7 инвариантных моментов Ху для набора пикселей области.
func HuMoments(c Component) [7]float64 {
	if c.Size() == 0 {
		return [7]float64{}
	}
	x0, y0, x1, y1 := c.Xs[0], c.Ys[0], c.Xs[0], c.Ys[0]
	for i := range c.Xs {
		x0, x1 = min(x0, c.Xs[i]), max(x1, c.Xs[i])
		y0, y1 = min(y0, c.Ys[i]), max(y1, c.Ys[i])
	}
	w, h := x1-x0+1, y1-y0+1
	pix := make([]uint8, w*h)
	for i := range c.Xs {
		pix[(c.Ys[i]-y0)*w+c.Xs[i]-x0] = 255
	}
	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, pix)
	if err != nil {
		return huMomentsPure(c)
	}
	defer src.Close()

	m := gocv.Moments(src, true)
	return huInvariants(normalized{
		n20: m["nu20"], n02: m["nu02"], n11: m["nu11"],
		n30: m["nu30"], n03: m["nu03"], n21: m["nu21"], n12: m["nu12"],
	})
}

// MatchTemplate ищет шаблон нормированной взаимной корреляцией (TM_CCOEFF_NORMED).
func MatchTemplate(search, tmpl *Gray) (Match, error) {
	if tmpl.W > search.W || tmpl.H > search.H {
		return Match{}, ErrTemplateTooLarge
	}
	if IsFlat(tmpl) {
		return Match{}, ErrFlatTemplate
	}
	s, err := grayMat(search)
	if err != nil {
		return Match{}, err
	}
	defer s.Close()
	t, err := grayMat(tmpl)
	if err != nil {
		return Match{}, err
	}
	defer t.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(s, t, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	return Match{X: maxLoc.X, Y: maxLoc.Y, Score: float64(maxVal)}, nil
}

// HSVROI переводит область кадра в HSV
func HSVROI(f *entity.Frame, roi entity.ROI) ([]HSV, error) {
	if err := checkROI(f, roi); err != nil {
		return nil, err
	}
	pix := make([]uint8, 0, roi.Area()*3)
	for y := roi.Y; y < roi.Y+roi.H; y++ {
		i := (y*f.Width + roi.X) * 3
		pix = append(pix, f.Pix[i:i+roi.W*3]...)
	}
	src, err := gocv.NewMatFromBytes(roi.H, roi.W, gocv.MatTypeCV8UC3, pix)
	if err != nil {
		return hsvROIPure(f, roi)
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	gocv.CvtColor(src, &dst, gocv.ColorRGBToHSV)
	data := dst.ToBytes()
	out := make([]HSV, roi.Area())
	for i := range out {
		out[i] = HSV{H: data[3*i], S: data[3*i+1], V: data[3*i+2]}
	}
	return out, nil
}

// grayMat оборачивает пиксели без копирования, g должен жить дольше Mat
func grayMat(g *Gray) (gocv.Mat, error) {
	if len(g.Pix) != g.W*g.H || g.W == 0 || g.H == 0 {
		return gocv.Mat{}, fmt.Errorf("gray %dx%d has %d pixels", g.W, g.H, len(g.Pix))
	}
	return gocv.NewMatFromBytes(g.H, g.W, gocv.MatTypeCV8U, g.Pix)
}

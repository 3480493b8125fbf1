//go:build !gocv
// +build !gocv

package vision

import "vision-inspector/internal/domain/entity"

// Backend имя реализации алгоритмов зрения в этой сборке
const Backend = "pure-go"

// Otsu подбирает глобальный порог бинаризации по методу Оцу.
// Пиксели строго ярче порога считаются передним планом (как THRESH_BINARY).
func Otsu(pix []uint8) uint8 {
	return otsuPure(pix)
}

// SobelMagnitude считает модуль градиента оператором Собеля 3x3.
// На границе значения пикселей повторяются (BORDER_REPLICATE).
func SobelMagnitude(g *Gray) []float64 {
	return sobelPure(g)
}

// LargestComponent находит наибольшую 8-связную область маски.
// При равных размерах остаётся область, раньше встреченная в растровом порядке.
func LargestComponent(mask []bool, w, h int) Component {
	return largestComponentPure(mask, w, h)
}

// HuMoments считает 7 инвариантных моментов Ху для набора пикселей области.
func HuMoments(c Component) [7]float64 {
	return huMomentsPure(c)
}

// MatchTemplate ищет шаблон нормированной взаимной корреляцией (TM_CCOEFF_NORMED).
func MatchTemplate(search, tmpl *Gray) (Match, error) {
	return matchTemplatePure(search, tmpl)
}

// HSVROI переводит область кадра в HSV
func HSVROI(f *entity.Frame, roi entity.ROI) ([]HSV, error) {
	return hsvROIPure(f, roi)
}

package inspection

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/vision"
)

// Features эталонные признаки одного инструмента. Заполняются поля, относящиеся к его типу.
type Features struct {
	Kind entity.ToolKind

	// outline
	Hu         [7]float64
	Foreground int

	// area, color_area: доля пикселей на эталоне, 0..100
	Ratio float64

	// color_area
	Band vision.HSVBand

	// edge_detection
	EdgeThreshold float64
	EdgeDensity   float64

	// position_adjust
	Template *vision.Gray
	Anchor   entity.ROI
}

// extractFeatures считает эталонные признаки инструмента по эталонному кадру.
func extractFeatures(ref *entity.Frame, t entity.ToolConfig) (Features, error) {
	if !t.ROI.Inside(ref.Width, ref.Height) {
		return Features{}, fmt.Errorf("%w: tool %s: roi %s outside %dx%d",
			entity.ErrInvalidReference, t.ID, t.ROI, ref.Width, ref.Height)
	}
	params := t.Params.WithDefaults()
	feat := Features{Kind: t.Kind}

	switch t.Kind {
	case entity.ToolOutline:
		gray, err := vision.GrayROI(ref, t.ROI)
		if err != nil {
			return Features{}, err
		}
		mask, _ := vision.Foreground(gray, params.ManualThreshold)
		comp := vision.LargestComponent(mask, gray.W, gray.H)
		if comp.Size() == 0 {
			return Features{}, fmt.Errorf("%w: tool %s: no foreground in master roi", entity.ErrInvalidReference, t.ID)
		}
		feat.Hu = vision.HuMoments(comp)
		feat.Foreground = comp.Size()

	case entity.ToolArea:
		gray, err := vision.GrayROI(ref, t.ROI)
		if err != nil {
			return Features{}, err
		}
		_, fg := vision.Foreground(gray, params.ManualThreshold)
		feat.Ratio = 100 * float64(fg) / float64(t.ROI.Area())

	case entity.ToolColorArea:
		hsv, err := vision.HSVROI(ref, t.ROI)
		if err != nil {
			return Features{}, err
		}
		feat.Band = vision.HSVBand{
			Center: colorCenter(ref, t.ROI, hsv, params.ColorSamples),
			DH:     params.ColorTolerance,
			DS:     params.SaturationTolerance,
			DV:     params.ValueTolerance,
		}
		feat.Ratio = 100 * float64(countInBand(hsv, feat.Band)) / float64(len(hsv))

	case entity.ToolEdgeDetection:
		gray, err := vision.GrayROI(ref, t.ROI)
		if err != nil {
			return Features{}, err
		}
		mag := vision.SobelMagnitude(gray)
		feat.EdgeThreshold = vision.Percentile(mag, params.EdgePercentile)
		feat.EdgeDensity = float64(vision.CountAbove(mag, feat.EdgeThreshold)) / float64(len(mag))
		if feat.EdgeDensity == 0 {
			return Features{}, fmt.Errorf("%w: tool %s: master roi has no edges", entity.ErrInvalidReference, t.ID)
		}

	case entity.ToolPositionAdjust:
		gray, err := vision.GrayROI(ref, t.ROI)
		if err != nil {
			return Features{}, err
		}
		if vision.IsFlat(gray) {
			return Features{}, fmt.Errorf("%w: tool %s: %v", entity.ErrInvalidReference, t.ID, vision.ErrFlatTemplate)
		}
		feat.Template = gray
		feat.Anchor = t.ROI

	default:
		return Features{}, fmt.Errorf("%w: tool %s: unknown kind %q", entity.ErrInvalidReference, t.ID, t.Kind)
	}
	return feat, nil
}

// colorCenter берёт средний цвет точек-образцов внутри ROI (тон по кругу), иначе медиану каждого канала.
func colorCenter(ref *entity.Frame, roi entity.ROI, hsv []vision.HSV, samples []entity.Point) vision.HSV {
	var hs, ss, vs []float64
	for _, p := range samples {
		if p.X < roi.X || p.Y < roi.Y || p.X >= roi.X+roi.W || p.Y >= roi.Y+roi.H {
			continue
		}
		c := vision.ToHSV(ref.RGB(p.X, p.Y))
		hs = append(hs, float64(c.H))
		ss = append(ss, float64(c.S))
		vs = append(vs, float64(c.V))
	}
	if len(hs) > 0 {
		return vision.HSV{
			H: vision.MeanHue(hs),
			S: uint8(math.Round(stat.Mean(ss, nil))),
			V: uint8(math.Round(stat.Mean(vs, nil))),
		}
	}

	hs = make([]float64, len(hsv))
	ss = make([]float64, len(hsv))
	vs = make([]float64, len(hsv))
	for i, c := range hsv {
		hs[i], ss[i], vs[i] = float64(c.H), float64(c.S), float64(c.V)
	}
	return vision.HSV{
		H: uint8(vision.Percentile(hs, 0.5)),
		S: uint8(vision.Percentile(ss, 0.5)),
		V: uint8(vision.Percentile(vs, 0.5)),
	}
}

func countInBand(hsv []vision.HSV, band vision.HSVBand) int {
	n := 0
	for _, c := range hsv {
		if band.Contains(c) {
			n++
		}
	}
	return n
}

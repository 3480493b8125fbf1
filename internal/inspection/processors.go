package inspection

import (
	"fmt"
	"math"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/vision"
)

// measurement сырые показатели инструмента до вынесения решения
type measurement struct {
	rate       float64
	confidence float64
	forceNG    bool // решение NG независимо от порогов
}

// Process выполняет один инструмент над кадром в заданной (возможно сдвинутой) ROI.
// Паника или ошибка алгоритма превращается в NG-результат этого инструмента.
func Process(frame *entity.Frame, roi entity.ROI, t entity.ToolConfig, master Features) (res entity.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			res = entity.FailedTool(t, fmt.Errorf("tool panicked: %v", r))
		}
	}()

	if !roi.Inside(frame.Width, frame.Height) {
		return entity.FailedTool(t, fmt.Errorf("%w: %s outside %dx%d", entity.ErrRoiOutOfBounds, roi, frame.Width, frame.Height))
	}

	var (
		m   measurement
		err error
	)
	switch t.Kind {
	case entity.ToolOutline:
		m, err = processOutline(frame, roi, t, master)
	case entity.ToolArea:
		m, err = processArea(frame, roi, t, master)
	case entity.ToolColorArea:
		m, err = processColorArea(frame, roi, master)
	case entity.ToolEdgeDetection:
		m, err = processEdges(frame, roi, master)
	case entity.ToolPositionAdjust:
		var lock Lock
		lock, err = Locate(frame, t, master)
		if err == nil {
			return lockResult(t, lock)
		}
	default:
		err = fmt.Errorf("unknown tool kind %q", t.Kind)
	}
	if err != nil {
		return entity.FailedTool(t, err)
	}
	return judge(t, m)
}

func judge(t entity.ToolConfig, m measurement) entity.ToolResult {
	res := entity.ToolResult{
		ToolID:       t.ID,
		Name:         t.Label(),
		Kind:         t.Kind,
		MatchingRate: clampRate(m.rate),
		Confidence:   clampRate(m.confidence),
	}
	if m.forceNG {
		res.Status = entity.StatusNG
	} else {
		res.Status = t.Judge(res.MatchingRate)
	}
	return res
}

// processOutline сравнивает форму крупнейшего контура с эталоном по моментам Ху.
func processOutline(frame *entity.Frame, roi entity.ROI, t entity.ToolConfig, master Features) (measurement, error) {
	gray, err := vision.GrayROI(frame, roi)
	if err != nil {
		return measurement{}, err
	}
	params := t.Params.WithDefaults()
	mask, _ := vision.Foreground(gray, params.ManualThreshold)
	comp := vision.LargestComponent(mask, gray.W, gray.H)
	if comp.Size() == 0 {
		return measurement{forceNG: true}, nil
	}
	d := vision.ShapeDistance(master.Hu, vision.HuMoments(comp))
	conf := 0.0
	if master.Foreground > 0 {
		conf = math.Min(100, 100*float64(comp.Size())/float64(master.Foreground))
	}
	return measurement{
		rate:       math.Max(0, 100-100*d/params.DistanceScale),
		confidence: conf,
	}, nil
}

// processArea считает долю пикселей переднего плана в ROI.
func processArea(frame *entity.Frame, roi entity.ROI, t entity.ToolConfig, master Features) (measurement, error) {
	gray, err := vision.GrayROI(frame, roi)
	if err != nil {
		return measurement{}, err
	}
	_, fg := vision.Foreground(gray, t.Params.ManualThreshold)
	rate := 100 * float64(fg) / float64(roi.Area())
	return measurement{rate: rate, confidence: 100 - math.Abs(rate-master.Ratio)}, nil
}

// processColorArea считает долю пикселей, попавших в эталонную HSV-полосу.
func processColorArea(frame *entity.Frame, roi entity.ROI, master Features) (measurement, error) {
	hsv, err := vision.HSVROI(frame, roi)
	if err != nil {
		return measurement{}, err
	}
	rate := 100 * float64(countInBand(hsv, master.Band)) / float64(len(hsv))
	return measurement{rate: rate, confidence: 100 - math.Abs(rate-master.Ratio)}, nil
}

// processEdges сравнивает плотность контуров с эталонной при эталонном пороге градиента.
func processEdges(frame *entity.Frame, roi entity.ROI, master Features) (measurement, error) {
	if master.EdgeDensity <= 0 {
		return measurement{}, fmt.Errorf("%w: edge baseline is zero", entity.ErrInvalidReference)
	}
	gray, err := vision.GrayROI(frame, roi)
	if err != nil {
		return measurement{}, err
	}
	mag := vision.SobelMagnitude(gray)
	density := float64(vision.CountAbove(mag, master.EdgeThreshold)) / float64(len(mag))
	rate := 100 - 100*math.Abs(density-master.EdgeDensity)/master.EdgeDensity
	return measurement{rate: rate, confidence: rate}, nil
}

func clampRate(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

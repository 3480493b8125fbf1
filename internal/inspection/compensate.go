package inspection

import (
	"fmt"
	"math"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/vision"
)

// LockFloor минимальная корреляция, при которой смещение считается найденным
const LockFloor = 0.5

// Lock результат поиска эталонного фрагмента на кадре
type Lock struct {
	Offset entity.Offset
	Score  float64 // нормированная корреляция -1..1
	Locked bool
}

// Confidence уверенность захвата, 0..100
func (l Lock) Confidence() float64 {
	return 100 * math.Max(0, l.Score)
}

// Locate ищет эталонный фрагмент в окне вокруг его эталонного положения.
func Locate(frame *entity.Frame, t entity.ToolConfig, master Features) (Lock, error) {
	if master.Template == nil {
		return Lock{}, fmt.Errorf("%w: position template missing", entity.ErrInvalidReference)
	}
	margin := t.Params.WithDefaults().SearchMargin
	window := master.Anchor.Expand(margin).Clamp(frame.Width, frame.Height)
	if window.W < master.Template.W || window.H < master.Template.H {
		return Lock{}, fmt.Errorf("%w: search window %s smaller than template", entity.ErrRoiOutOfBounds, window)
	}
	search, err := vision.GrayROI(frame, window)
	if err != nil {
		return Lock{}, err
	}
	m, err := vision.MatchTemplate(search, master.Template)
	if err != nil {
		return Lock{}, err
	}
	return Lock{
		Offset: entity.Offset{
			DX: window.X + m.X - master.Anchor.X,
			DY: window.Y + m.Y - master.Anchor.Y,
		},
		Score:  m.Score,
		Locked: m.Score >= LockFloor,
	}, nil
}

func lockResult(t entity.ToolConfig, lock Lock) entity.ToolResult {
	if !lock.Locked {
		res := entity.FailedTool(t, entity.ErrPositionLock)
		res.MatchingRate = lock.Confidence()
		res.Confidence = lock.Confidence()
		return res
	}
	return judge(t, measurement{rate: lock.Confidence(), confidence: lock.Confidence()})
}

// Compensate выполняет инструмент позиционирования и возвращает его результат
// вместе со смещением. Смещение nil, если захват не удался.
func Compensate(frame *entity.Frame, t entity.ToolConfig, master Features) (res entity.ToolResult, offset *entity.Offset) {
	defer func() {
		if r := recover(); r != nil {
			res, offset = entity.FailedTool(t, fmt.Errorf("tool panicked: %v", r)), nil
		}
	}()

	lock, err := Locate(frame, t, master)
	if err != nil {
		return entity.FailedTool(t, err), nil
	}
	res = lockResult(t, lock)
	if !lock.Locked {
		return res, nil
	}
	o := lock.Offset
	return res, &o
}

// ShiftROI сдвигает ROI инструмента на найденное смещение.
// Сдвинутая ROI должна целиком лежать в кадре.
func ShiftROI(roi entity.ROI, offset *entity.Offset, width, height int) (entity.ROI, error) {
	shifted := roi
	if offset != nil {
		shifted = roi.Shift(*offset)
	}
	if !shifted.Inside(width, height) {
		return shifted, fmt.Errorf("%w: %s shifted to %s outside %dx%d",
			entity.ErrRoiOutOfBounds, roi, shifted, width, height)
	}
	return shifted, nil
}

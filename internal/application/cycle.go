package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
	"vision-inspector/internal/inspection"
	"vision-inspector/internal/vision"
)

// Stage этап цикла инспекции
type Stage string

const (
	StageStart      Stage = "start"
	StageCapture    Stage = "capture"
	StageCompensate Stage = "compensate"
	StageTools      Stage = "tools"
	StageAggregate  Stage = "aggregate"
	StageDone       Stage = "done"
)

// CycleRunner выполняет один цикл инспекции: съёмка, компенсация, инструменты, итог.
type CycleRunner struct {
	camera  port.Camera
	outputs *OutputController
	stats   *StatisticsAggregator
	frames  *FrameHolder // nil, если кадры никому не нужны
	logger  *slog.Logger

	checkQuality atomic.Bool // первый кадр прогона сравнивается с эталоном
}

// NewCycleRunner создаёт исполнитель циклов
func NewCycleRunner(camera port.Camera, outputs *OutputController, stats *StatisticsAggregator, logger *slog.Logger) *CycleRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &CycleRunner{camera: camera, outputs: outputs, stats: stats, logger: logger}
}

// ShareFrames публикует каждый снятый кадр в h
func (r *CycleRunner) ShareFrames(h *FrameHolder) {
	r.frames = h
}

// ArmQualityCheck включает проверку условий съёмки на следующем кадре
func (r *CycleRunner) ArmQualityCheck() {
	r.checkQuality.Store(true)
}

// Run выполняет цикл. Ошибка съёмки прерывает цикл до инструментов: цикл считается пропущенным,
// Busy всё равно снимается. Ошибки инструментов в результат попадают как NG, а не как ошибка Run.
func (r *CycleRunner) Run(ctx context.Context, prog *entity.Program, snap *inspection.Snapshot, seq uint64) (*entity.InspectionResult, error) {
	start := time.Now()
	log := r.logger.With(slog.String("program_id", prog.ID), slog.Uint64("seq", seq))
	log.Debug("cycle stage", slog.String("stage", string(StageStart)))

	if snap == nil {
		return nil, fmt.Errorf("%w: master features are not registered", entity.ErrInvalidReference)
	}

	r.outputs.BusyOn()
	defer r.outputs.BusyOff()

	log.Debug("cycle stage", slog.String("stage", string(StageCapture)))
	frame, err := r.camera.Capture(ctx, prog.Hints())
	if err == nil && frame.Empty() {
		err = errors.New("camera returned empty frame")
	}
	if err != nil {
		r.stats.RecordSkipped()
		if !errors.Is(err, entity.ErrCapture) {
			err = fmt.Errorf("%w: %v", entity.ErrCapture, err)
		}
		log.Warn("cycle skipped", slog.Any("error", err))
		return nil, err
	}
	r.frames.Publish(frame)
	if err := ctx.Err(); err != nil {
		r.stats.RecordSkipped()
		return nil, err
	}

	if r.checkQuality.CompareAndSwap(true, false) {
		r.checkFrame(log, frame, snap)
	}

	var (
		results = make([]entity.ToolResult, 0, len(prog.Tools))
		offset  *entity.Offset
	)

	if pt, ok := prog.PositionTool(); ok {
		log.Debug("cycle stage", slog.String("stage", string(StageCompensate)))
		master, found := snap.Get(pt.ID)
		if !found {
			results = append(results, entity.FailedTool(pt, fmt.Errorf("%w: no master features", entity.ErrInvalidReference)))
		} else {
			var res entity.ToolResult
			res, offset = inspection.Compensate(frame, pt, master)
			results = append(results, res)
			if offset == nil {
				log.Warn("position compensation unavailable", slog.String("tool_id", pt.ID), slog.String("error", res.Error))
			}
		}
	}

	log.Debug("cycle stage", slog.String("stage", string(StageTools)))
	for _, t := range prog.OrderedTools() {
		if t.Kind == entity.ToolPositionAdjust {
			continue
		}
		results = append(results, r.runTool(frame, t, snap, offset))
	}

	log.Debug("cycle stage", slog.String("stage", string(StageAggregate)))
	status, confidence := entity.Aggregate(results)
	result := &entity.InspectionResult{
		ID:         uuid.NewString(),
		ProgramID:  prog.ID,
		Sequence:   seq,
		Status:     status,
		Tools:      results,
		Confidence: confidence,
		Offset:     offset,
		Timestamp:  frame.Timestamp,
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = start
	}
	result.Duration = time.Since(start)

	r.outputs.Publish(status)
	r.stats.Record(result)

	log.Info("cycle done",
		slog.String("stage", string(StageDone)),
		slog.String("status", string(status)),
		slog.Float64("confidence", confidence),
		slog.Duration("duration", result.Duration))
	return result, nil
}

func (r *CycleRunner) runTool(frame *entity.Frame, t entity.ToolConfig, snap *inspection.Snapshot, offset *entity.Offset) entity.ToolResult {
	master, ok := snap.Get(t.ID)
	if !ok {
		return entity.FailedTool(t, fmt.Errorf("%w: no master features", entity.ErrInvalidReference))
	}
	roi, err := inspection.ShiftROI(t.ROI, offset, frame.Width, frame.Height)
	if err != nil {
		return entity.FailedTool(t, err)
	}
	return inspection.Process(frame, roi, t, master)
}

// checkFrame сравнивает условия съёмки с эталоном; расхождения только логируются.
func (r *CycleRunner) checkFrame(log *slog.Logger, frame *entity.Frame, snap *inspection.Snapshot) {
	gray, err := vision.GrayFrame(frame)
	if err != nil {
		return
	}
	q := vision.MeasureQuality(gray)
	issues := vision.Consistency(snap.Reference, q)
	if len(issues) == 0 {
		log.Info("capture conditions match reference", slog.Float64("quality_score", q.Score))
		return
	}
	log.Warn("capture conditions differ from reference",
		slog.Any("issues", issues),
		slog.Float64("quality_score", q.Score))
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
	"vision-inspector/internal/inspection"
)

const (
	dispatchQueueSize = 64
	sinkTimeout       = 5 * time.Second
)

// Deps зависимости движка. Обязательны Camera, Loader и Outputs.
type Deps struct {
	Camera    port.Camera
	Loader    port.ReferenceLoader
	Outputs   port.OutputDriver
	Triggers  port.TriggerSource
	Sink      port.ResultSink
	Transport port.LiveTransport
	Preview   *PreviewProducer
	Alerts    *AlertMonitor
	Logger    *slog.Logger
	Pulse     time.Duration
}

// Engine конечный автомат прогона: idle → running ⇄ paused → idle; stopped после Close.
// Запуски сходятся в один обработчик; запуск во время цикла отбрасывается, а не ставится в очередь.
type Engine struct {
	deps     Deps
	logger   *slog.Logger
	store    *inspection.FeatureStore
	outputs  *OutputController
	stats    *StatisticsAggregator
	cycle    *CycleRunner

	transition sync.Mutex // сериализует Start/Stop/Pause/Resume/Close
	state      atomic.Value
	program    atomic.Pointer[entity.Program]

	inFlight atomic.Bool
	triggers chan struct{}
	seq      atomic.Uint64

	cancel     context.CancelFunc
	workers    sync.WaitGroup
	dispatcher sync.WaitGroup
	results    chan *entity.InspectionResult

	subsMu sync.Mutex
	subs   map[int]chan *entity.InspectionResult
	nextID int
}

// NewEngine собирает движок
func NewEngine(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	outputs := NewOutputController(deps.Outputs, logger, deps.Pulse)
	stats := NewStatisticsAggregator()
	e := &Engine{
		deps:     deps,
		logger:   logger,
		store:    inspection.NewFeatureStore(logger),
		outputs:  outputs,
		stats:    stats,
		cycle:    NewCycleRunner(deps.Camera, outputs, stats, logger),
		triggers: make(chan struct{}, 1),
		subs:     make(map[int]chan *entity.InspectionResult),
	}
	if deps.Preview != nil {
		e.cycle.ShareFrames(deps.Preview.Frames())
	}
	e.state.Store(entity.StateIdle)
	return e
}

// State возвращает текущее состояние
func (e *Engine) State() entity.RunState {
	return e.state.Load().(entity.RunState)
}

// Program возвращает программу текущего прогона или nil
func (e *Engine) Program() *entity.Program {
	return e.program.Load()
}

// Statistics возвращает снимок статистики
func (e *Engine) Statistics() entity.Statistics {
	return e.stats.Snapshot()
}

// Features возвращает хранилище эталонных признаков
func (e *Engine) Features() *inspection.FeatureStore {
	return e.store
}

// Start проверяет программу, регистрирует эталон и запускает прогон.
// Некорректная программа возвращает *entity.ConfigError, движок остаётся в idle.
func (e *Engine) Start(ctx context.Context, prog *entity.Program) error {
	if prog == nil {
		return &entity.ConfigError{Field: "program", Reason: "is required"}
	}
	if err := prog.Validate(); err != nil {
		return err
	}

	e.transition.Lock()
	defer e.transition.Unlock()

	if st := e.State(); st != entity.StateIdle {
		return fmt.Errorf("%w: start from %s", entity.ErrInvalidTransition, st)
	}

	ref, err := e.deps.Loader.LoadReference(ctx, prog.Reference)
	if err != nil {
		return fmt.Errorf("load reference %q: %w", prog.Reference, err)
	}
	snap, err := e.store.Register(prog.ID, ref, prog.Tools)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	var edges <-chan time.Time
	if prog.Trigger.Mode == entity.TriggerExternal {
		if e.deps.Triggers == nil {
			cancel()
			return errors.New("external trigger source is not configured")
		}
		edges, err = e.deps.Triggers.Edges(runCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("open trigger source: %w", err)
		}
	}

	e.outputs.Load(prog.Outputs)
	e.stats.Reset(prog.ID)
	if e.deps.Alerts != nil {
		e.deps.Alerts.Reset()
	}
	e.cycle.ArmQualityCheck()
	e.program.Store(prog)
	e.inFlight.Store(false)
	e.drainTriggers()
	e.cancel = cancel
	e.results = make(chan *entity.InspectionResult, dispatchQueueSize)

	e.dispatcher.Add(1)
	go e.dispatch(e.results)

	e.workers.Add(1)
	go e.consume(runCtx, prog, snap)

	e.workers.Add(1)
	if prog.Trigger.Mode == entity.TriggerExternal {
		go e.watchEdges(runCtx, edges, time.Duration(prog.Trigger.DelayMS)*time.Millisecond)
	} else {
		go e.tick(runCtx, time.Duration(prog.Trigger.IntervalMS)*time.Millisecond)
	}

	if e.deps.Preview.Enabled() {
		e.workers.Add(1)
		go func() {
			defer e.workers.Done()
			e.deps.Preview.Run(runCtx, prog)
		}()
	}

	e.state.Store(entity.StateRunning)
	e.logger.Info("run started",
		slog.String("program_id", prog.ID),
		slog.String("trigger", string(prog.Trigger.Mode)),
		slog.Int("tools", len(prog.Tools)),
		slog.Uint64("features_version", snap.Version))
	return nil
}

// Pause приостанавливает прогон: запуски отбрасываются без учёта.
func (e *Engine) Pause() error {
	e.transition.Lock()
	defer e.transition.Unlock()
	if st := e.State(); st != entity.StateRunning {
		return fmt.Errorf("%w: pause from %s", entity.ErrInvalidTransition, st)
	}
	e.state.Store(entity.StatePaused)
	e.logger.Info("run paused")
	return nil
}

// Resume возобновляет приостановленный прогон
func (e *Engine) Resume() error {
	e.transition.Lock()
	defer e.transition.Unlock()
	if st := e.State(); st != entity.StatePaused {
		return fmt.Errorf("%w: resume from %s", entity.ErrInvalidTransition, st)
	}
	e.state.Store(entity.StateRunning)
	e.logger.Info("run resumed")
	return nil
}

// Stop останавливает прогон: отменяет текущую съёмку, дожидается горутин,
// отменяет импульсы и снимает Busy. После возврата движок в idle.
func (e *Engine) Stop() error {
	e.transition.Lock()
	defer e.transition.Unlock()
	return e.stopLocked()
}

func (e *Engine) stopLocked() error {
	st := e.State()
	if st != entity.StateRunning && st != entity.StatePaused {
		return fmt.Errorf("%w: state %s", entity.ErrNotRunning, st)
	}

	e.cancel()
	e.workers.Wait()
	close(e.results)
	e.dispatcher.Wait()
	e.outputs.Stop()

	stats := e.stats.Snapshot()
	if e.deps.Sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := e.deps.Sink.SaveStatistics(ctx, stats); err != nil {
			e.logger.Warn("save statistics failed", slog.Any("error", err))
		}
		cancel()
	}

	e.state.Store(entity.StateIdle)
	e.logger.Info("run stopped",
		slog.String("program_id", stats.ProgramID),
		slog.Uint64("total", stats.Total),
		slog.Uint64("ok", stats.OK),
		slog.Uint64("ng", stats.NG),
		slog.Uint64("skipped", stats.Skipped),
		slog.Uint64("missed_triggers", stats.MissedTriggers))
	return nil
}

// Close останавливает прогон, если он идёт, и переводит движок в stopped.
func (e *Engine) Close() error {
	e.transition.Lock()
	defer e.transition.Unlock()
	switch e.State() {
	case entity.StateStopped:
		return nil
	case entity.StateRunning, entity.StatePaused:
		if err := e.stopLocked(); err != nil {
			return err
		}
	}
	e.state.Store(entity.StateStopped)

	e.subsMu.Lock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.subsMu.Unlock()
	return nil
}

// TriggerOnce запускает цикл вручную. Во время цикла возвращает entity.ErrTriggerDropped.
func (e *Engine) TriggerOnce() error {
	return e.fire("manual")
}

// SelfTest проверяет выходы импульсами. Только в idle.
func (e *Engine) SelfTest(ctx context.Context) error {
	e.transition.Lock()
	defer e.transition.Unlock()
	if st := e.State(); st != entity.StateIdle {
		return fmt.Errorf("%w: self test from %s", entity.ErrInvalidTransition, st)
	}
	return e.outputs.SelfTest(ctx)
}

// Subscribe подписывает на результаты. Медленный подписчик теряет новые результаты.
func (e *Engine) Subscribe(buffer int) (<-chan *entity.InspectionResult, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan *entity.InspectionResult, buffer)

	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	if e.State() == entity.StateStopped {
		close(ch)
		return ch, func() {}
	}
	id := e.nextID
	e.nextID++
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subsMu.Lock()
			defer e.subsMu.Unlock()
			if c, ok := e.subs[id]; ok {
				close(c)
				delete(e.subs, id)
			}
		})
	}
}

func (e *Engine) fire(source string) error {
	switch e.State() {
	case entity.StateRunning:
	case entity.StatePaused:
		if source == "manual" {
			return fmt.Errorf("%w: engine is paused", entity.ErrNotRunning)
		}
		return nil
	default:
		return entity.ErrNotRunning
	}

	if !e.inFlight.CompareAndSwap(false, true) {
		e.stats.RecordMissedTrigger()
		e.logger.Warn("trigger dropped", slog.String("source", source))
		return entity.ErrTriggerDropped
	}
	select {
	case e.triggers <- struct{}{}:
		return nil
	default:
		e.inFlight.Store(false)
		e.stats.RecordMissedTrigger()
		e.logger.Warn("trigger dropped", slog.String("source", source))
		return entity.ErrTriggerDropped
	}
}

func (e *Engine) drainTriggers() {
	for {
		select {
		case <-e.triggers:
		default:
			return
		}
	}
}

// consume единственный исполнитель циклов прогона
func (e *Engine) consume(ctx context.Context, prog *entity.Program, snap *inspection.Snapshot) {
	defer e.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.triggers:
		}
		result, err := e.cycle.Run(ctx, prog, snap, e.seq.Add(1))
		e.inFlight.Store(false)
		if err != nil {
			continue
		}
		e.publish(result)
	}
}

func (e *Engine) tick(ctx context.Context, interval time.Duration) {
	defer e.workers.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = e.fire("timer")
		}
	}
}

func (e *Engine) watchEdges(ctx context.Context, edges <-chan time.Time, delay time.Duration) {
	defer e.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-edges:
			if !ok {
				return
			}
			if delay <= 0 {
				_ = e.fire("external")
				continue
			}
			e.workers.Add(1)
			go func() {
				defer e.workers.Done()
				t := time.NewTimer(delay)
				defer t.Stop()
				select {
				case <-ctx.Done():
				case <-t.C:
					_ = e.fire("external")
				}
			}()
		}
	}
}

// publish отдаёт результат подписчикам и в очередь записи, не блокируя цикл
func (e *Engine) publish(r *entity.InspectionResult) {
	e.subsMu.Lock()
	for _, ch := range e.subs {
		select {
		case ch <- r:
		default:
		}
	}
	e.subsMu.Unlock()

	select {
	case e.results <- r:
	default:
		e.logger.Warn("result dispatch queue full, result dropped", slog.String("result_id", r.ID))
	}
}

// dispatch пишет результаты в хранилище и транспорт и проверяет оповещения
func (e *Engine) dispatch(results <-chan *entity.InspectionResult) {
	defer e.dispatcher.Done()
	for r := range results {
		if e.deps.Sink != nil {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if err := e.deps.Sink.SaveResult(ctx, r); err != nil {
				e.logger.Warn("save result failed", slog.String("result_id", r.ID), slog.Any("error", err))
			}
			cancel()
		}
		if e.deps.Transport != nil {
			if err := e.deps.Transport.PublishResult(r); err != nil {
				e.logger.Debug("publish result failed", slog.String("result_id", r.ID), slog.Any("error", err))
			}
		}
		if e.deps.Alerts != nil {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			e.deps.Alerts.Observe(ctx, r, e.stats.Snapshot())
			cancel()
		}
	}
}

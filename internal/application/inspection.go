package app

import (
	"context"
	"errors"
	"fmt"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

// InspectionService команды управления инспекцией для API и бота
type InspectionService struct {
	engine   *Engine
	programs port.ProgramRepository
	results  port.ResultReader
}

// Status состояние движка для операторов
type Status struct {
	State     entity.RunState   `json:"state"`
	ProgramID string            `json:"program_id,omitempty"`
	Program   string            `json:"program,omitempty"`
	Stats     entity.Statistics `json:"statistics"`
}

// NewInspectionService создаёт сервис поверх движка и хранилища программ.
func NewInspectionService(engine *Engine, programs port.ProgramRepository, results port.ResultReader) *InspectionService {
	return &InspectionService{engine: engine, programs: programs, results: results}
}

// StartProgram загружает программу по ID и запускает прогон.
func (s *InspectionService) StartProgram(ctx context.Context, id string) (*entity.Program, error) {
	prog, err := s.programs.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Start(ctx, prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// Stop останавливает прогон
func (s *InspectionService) Stop() error {
	return s.engine.Stop()
}

// Pause приостанавливает прогон
func (s *InspectionService) Pause() error {
	return s.engine.Pause()
}

// Resume возобновляет прогон
func (s *InspectionService) Resume() error {
	return s.engine.Resume()
}

// Trigger запускает цикл вручную
func (s *InspectionService) Trigger() error {
	return s.engine.TriggerOnce()
}

// SelfTest проверяет выходы
func (s *InspectionService) SelfTest(ctx context.Context) error {
	return s.engine.SelfTest(ctx)
}

// Status возвращает состояние и статистику
func (s *InspectionService) Status() Status {
	st := Status{State: s.engine.State(), Stats: s.engine.Statistics()}
	if p := s.engine.Program(); p != nil && st.State != entity.StateIdle {
		st.ProgramID = p.ID
		st.Program = p.Name
	}
	return st
}

// Programs возвращает список программ
func (s *InspectionService) Programs(ctx context.Context) ([]*entity.Program, error) {
	return s.programs.ListPrograms(ctx)
}

// Program возвращает программу по ID
func (s *InspectionService) Program(ctx context.Context, id string) (*entity.Program, error) {
	return s.programs.GetProgram(ctx, id)
}

// SaveProgram сохраняет программу. Программу текущего прогона менять нельзя.
func (s *InspectionService) SaveProgram(ctx context.Context, p *entity.Program) error {
	if s.isActive(p.ID) {
		return fmt.Errorf("%w: program %s is running", entity.ErrInvalidTransition, p.ID)
	}
	return s.programs.SaveProgram(ctx, p)
}

// DeleteProgram удаляет программу, если она не запущена
func (s *InspectionService) DeleteProgram(ctx context.Context, id string) error {
	if s.isActive(id) {
		return fmt.Errorf("%w: program %s is running", entity.ErrInvalidTransition, id)
	}
	return s.programs.DeleteProgram(ctx, id)
}

// Results возвращает последние результаты программы из журнала
func (s *InspectionService) Results(ctx context.Context, programID string, limit int) ([]*entity.InspectionResult, error) {
	if s.results == nil {
		return nil, errors.New("result log is not configured")
	}
	return s.results.ListResults(ctx, programID, limit)
}

// Subscribe подписывает на результаты движка
func (s *InspectionService) Subscribe(buffer int) (<-chan *entity.InspectionResult, func()) {
	return s.engine.Subscribe(buffer)
}

func (s *InspectionService) isActive(id string) bool {
	st := s.engine.State()
	if st != entity.StateRunning && st != entity.StatePaused {
		return false
	}
	p := s.engine.Program()
	return p != nil && p.ID == id
}

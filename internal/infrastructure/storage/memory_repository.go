package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

// DefaultResultLimit сколько результатов на программу хранит in-memory журнал
const DefaultResultLimit = 1000

// MemoryRepository in-memory хранилище программ, результатов и статистики
type MemoryRepository struct {
	mu       sync.RWMutex
	programs map[string]*entity.Program
	results  map[string][]*entity.InspectionResult
	stats    map[string]entity.Statistics
	limit    int
}

// NewMemoryRepository создаёт новое in-memory хранилище
func NewMemoryRepository(limit int) *MemoryRepository {
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	return &MemoryRepository{
		programs: make(map[string]*entity.Program),
		results:  make(map[string][]*entity.InspectionResult),
		stats:    make(map[string]entity.Statistics),
		limit:    limit,
	}
}

// GetProgram возвращает программу по ID
func (r *MemoryRepository) GetProgram(ctx context.Context, id string) (*entity.Program, error) {
	r.mu.RLock()
	p, exists := r.programs[id]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("program %s: %w", id, entity.ErrNotFound)
	}
	return p, nil
}

// SaveProgram проверяет и сохраняет программу
func (r *MemoryRepository) SaveProgram(ctx context.Context, p *entity.Program) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.programs[p.ID] = p
	r.mu.Unlock()

	return nil
}

// ListPrograms возвращает программы, отсортированные по ID
func (r *MemoryRepository) ListPrograms(ctx context.Context) ([]*entity.Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Program, 0, len(r.programs))
	for _, p := range r.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteProgram удаляет программу
func (r *MemoryRepository) DeleteProgram(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.programs[id]; !exists {
		return fmt.Errorf("program %s: %w", id, entity.ErrNotFound)
	}
	delete(r.programs, id)
	return nil
}

// SaveResult добавляет результат в журнал, старые записи вытесняются
func (r *MemoryRepository) SaveResult(ctx context.Context, result *entity.InspectionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := append(r.results[result.ProgramID], result)
	if len(list) > r.limit {
		list = append([]*entity.InspectionResult(nil), list[len(list)-r.limit:]...)
	}
	r.results[result.ProgramID] = list
	return nil
}

// SaveStatistics сохраняет итоговую статистику прогона
func (r *MemoryRepository) SaveStatistics(ctx context.Context, stats entity.Statistics) error {
	r.mu.Lock()
	r.stats[stats.ProgramID] = stats
	r.mu.Unlock()

	return nil
}

// ListResults возвращает последние результаты программы, новые первыми
func (r *MemoryRepository) ListResults(ctx context.Context, programID string, limit int) ([]*entity.InspectionResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.results[programID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]*entity.InspectionResult, 0, limit)
	for i := len(list) - 1; i >= len(list)-limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// LastStatistics возвращает статистику последнего прогона программы
func (r *MemoryRepository) LastStatistics(programID string) (entity.Statistics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[programID]
	return s, ok
}

// Проверка реализации интерфейсов
var (
	_ port.ProgramRepository = (*MemoryRepository)(nil)
	_ port.ResultSink        = (*MemoryRepository)(nil)
	_ port.ResultReader      = (*MemoryRepository)(nil)
)

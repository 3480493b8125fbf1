package app

import (
	"sync"
	"time"

	"vision-inspector/internal/domain/entity"
)

// RecentResults размер кольцевого буфера последних результатов
const RecentResults = 20

// StatisticsAggregator накапливает статистику прогона.
// Все методы потокобезопасны, Snapshot возвращает согласованную копию.
type StatisticsAggregator struct {
	mu    sync.Mutex
	stats entity.Statistics
	ring  [RecentResults]entity.ResultSummary
	head  int // индекс самой старой записи
	size  int
}

// NewStatisticsAggregator создаёт пустой агрегатор
func NewStatisticsAggregator() *StatisticsAggregator {
	return &StatisticsAggregator{}
}

// Reset обнуляет статистику перед новым прогоном
func (a *StatisticsAggregator) Reset(programID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = entity.Statistics{ProgramID: programID, StartedAt: time.Now()}
	a.head, a.size = 0, 0
}

// Record учитывает завершённый цикл
func (a *StatisticsAggregator) Record(r *entity.InspectionResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &a.stats
	s.Total++
	if r.Status == entity.StatusOK {
		s.OK++
	} else {
		s.NG++
	}
	n := float64(s.Total)
	s.AvgProcessingMS += (float64(r.Duration)/float64(time.Millisecond) - s.AvgProcessingMS) / n
	s.AvgConfidence += (r.Confidence - s.AvgConfidence) / n
	s.PassRate = 100 * float64(s.OK) / n

	if a.size < RecentResults {
		a.ring[(a.head+a.size)%RecentResults] = r.Summary()
		a.size++
		return
	}
	a.ring[a.head] = r.Summary()
	a.head = (a.head + 1) % RecentResults
}

// RecordSkipped учитывает цикл, прерванный до запуска инструментов
func (a *StatisticsAggregator) RecordSkipped() {
	a.mu.Lock()
	a.stats.Skipped++
	a.mu.Unlock()
}

// RecordMissedTrigger учитывает отброшенный запуск
func (a *StatisticsAggregator) RecordMissedTrigger() {
	a.mu.Lock()
	a.stats.MissedTriggers++
	a.mu.Unlock()
}

// Snapshot возвращает копию статистики; Recent упорядочен от старых к новым.
func (a *StatisticsAggregator) Snapshot() entity.Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.stats
	out.Recent = make([]entity.ResultSummary, a.size)
	for i := 0; i < a.size; i++ {
		out.Recent[i] = a.ring[(a.head+i)%RecentResults]
	}
	return out
}

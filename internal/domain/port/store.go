package port

import (
	"context"

	"vision-inspector/internal/domain/entity"
)

// ProgramStore хранилище программ инспекции
type ProgramStore interface {
	// GetProgram возвращает программу по ID или entity.ErrNotFound
	GetProgram(ctx context.Context, id string) (*entity.Program, error)
}

// ResultSink приёмник результатов. Для движка это журнал только на запись.
type ResultSink interface {
	SaveResult(ctx context.Context, result *entity.InspectionResult) error
	SaveStatistics(ctx context.Context, stats entity.Statistics) error
}

// ProgramRepository хранилище программ с записью, для API управления
type ProgramRepository interface {
	ProgramStore
	SaveProgram(ctx context.Context, p *entity.Program) error
	ListPrograms(ctx context.Context) ([]*entity.Program, error)
	DeleteProgram(ctx context.Context, id string) error
}

// ResultReader чтение журнала результатов
type ResultReader interface {
	ListResults(ctx context.Context, programID string, limit int) ([]*entity.InspectionResult, error)
}

package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store пул соединений с PostgreSQL
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore открывает пул и проверяет соединение
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

// Close закрывает пул
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// Migrate применяет встроенные миграции по порядку имён
func (s *Store) Migrate(ctx context.Context) error {
	files, err := MigrationFiles()
	if err != nil {
		return err
	}
	for _, name := range files {
		content, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.Pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// MigrationFiles возвращает имена встроенных миграций в порядке применения
func MigrationFiles() ([]string, error) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Repository программы, результаты и статистика в PostgreSQL
type Repository struct {
	Store *Store
}

// NewRepository создаёт репозиторий поверх пула
func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

type scanner interface {
	Scan(dest ...any) error
}

// GetProgram читает программу по ID
func (r *Repository) GetProgram(ctx context.Context, id string) (*entity.Program, error) {
	row := r.Store.Pool.QueryRow(ctx, `SELECT definition FROM programs WHERE id=$1`, id)
	p, err := scanProgram(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("program %s: %w", id, entity.ErrNotFound)
	}
	return p, err
}

// SaveProgram проверяет программу и сохраняет её (insert или update)
func (r *Repository) SaveProgram(ctx context.Context, p *entity.Program) error {
	if err := p.Validate(); err != nil {
		return err
	}
	definition, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode program: %w", err)
	}
	_, err = r.Store.Pool.Exec(ctx, `
		INSERT INTO programs (id, name, definition, created_at, updated_at)
		VALUES ($1,$2,$3,now(),now())
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, definition=EXCLUDED.definition, updated_at=now()`,
		p.ID, p.Name, definition,
	)
	return err
}

// ListPrograms возвращает все программы по ID
func (r *Repository) ListPrograms(ctx context.Context) ([]*entity.Program, error) {
	rows, err := r.Store.Pool.Query(ctx, `SELECT definition FROM programs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []*entity.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// DeleteProgram удаляет программу
func (r *Repository) DeleteProgram(ctx context.Context, id string) error {
	tag, err := r.Store.Pool.Exec(ctx, `DELETE FROM programs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("program %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

// SaveResult пишет результат цикла
func (r *Repository) SaveResult(ctx context.Context, result *entity.InspectionResult) error {
	row, err := newResultRow(result)
	if err != nil {
		return err
	}
	_, err = r.Store.Pool.Exec(ctx, `
		INSERT INTO inspection_results (id, program_id, sequence, status, confidence, duration_ms, offset_dx, offset_dy, tools, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		row.ID, row.ProgramID, row.Sequence, row.Status, row.Confidence, row.DurationMS,
		row.OffsetDX, row.OffsetDY, row.Tools, row.CreatedAt,
	)
	return err
}

// SaveStatistics сохраняет статистику прогона; повторная запись обновляет строку
func (r *Repository) SaveStatistics(ctx context.Context, s entity.Statistics) error {
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO run_statistics (program_id, started_at, total, ok, ng, skipped, missed_triggers, pass_rate, avg_processing_ms, avg_confidence, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
		ON CONFLICT (program_id, started_at) DO UPDATE SET
			total=EXCLUDED.total, ok=EXCLUDED.ok, ng=EXCLUDED.ng, skipped=EXCLUDED.skipped,
			missed_triggers=EXCLUDED.missed_triggers, pass_rate=EXCLUDED.pass_rate,
			avg_processing_ms=EXCLUDED.avg_processing_ms, avg_confidence=EXCLUDED.avg_confidence, updated_at=now()`,
		s.ProgramID, s.StartedAt, int64(s.Total), int64(s.OK), int64(s.NG), int64(s.Skipped), int64(s.MissedTriggers),
		s.PassRate, s.AvgProcessingMS, s.AvgConfidence,
	)
	return err
}

// ListResults возвращает последние результаты программы, новые первыми
func (r *Repository) ListResults(ctx context.Context, programID string, limit int) ([]*entity.InspectionResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT id::text, program_id, sequence, status, confidence, duration_ms, offset_dx, offset_dy, tools, created_at
		FROM inspection_results WHERE program_id=$1
		ORDER BY created_at DESC LIMIT $2`, programID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []*entity.InspectionResult{}
	for rows.Next() {
		var row resultRow
		if err := row.scan(rows); err != nil {
			return nil, err
		}
		res, err := row.result()
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func scanProgram(row scanner) (*entity.Program, error) {
	var definition []byte
	if err := row.Scan(&definition); err != nil {
		return nil, err
	}
	var p entity.Program
	if err := json.Unmarshal(definition, &p); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return &p, nil
}

// resultRow строка таблицы inspection_results
type resultRow struct {
	ID         string
	ProgramID  string
	Sequence   int64
	Status     string
	Confidence float64
	DurationMS float64
	OffsetDX   *int32
	OffsetDY   *int32
	Tools      []byte
	CreatedAt  time.Time
}

func newResultRow(r *entity.InspectionResult) (resultRow, error) {
	tools, err := json.Marshal(r.Tools)
	if err != nil {
		return resultRow{}, fmt.Errorf("encode tool results: %w", err)
	}
	row := resultRow{
		ID:         r.ID,
		ProgramID:  r.ProgramID,
		Sequence:   int64(r.Sequence),
		Status:     string(r.Status),
		Confidence: r.Confidence,
		DurationMS: float64(r.Duration) / float64(time.Millisecond),
		Tools:      tools,
		CreatedAt:  r.Timestamp,
	}
	if r.Offset != nil {
		dx, dy := int32(r.Offset.DX), int32(r.Offset.DY)
		row.OffsetDX, row.OffsetDY = &dx, &dy
	}
	return row, nil
}

func (row *resultRow) scan(s scanner) error {
	return s.Scan(&row.ID, &row.ProgramID, &row.Sequence, &row.Status, &row.Confidence, &row.DurationMS,
		&row.OffsetDX, &row.OffsetDY, &row.Tools, &row.CreatedAt)
}

func (row resultRow) result() (*entity.InspectionResult, error) {
	r := &entity.InspectionResult{
		ID:         row.ID,
		ProgramID:  row.ProgramID,
		Sequence:   uint64(row.Sequence),
		Status:     entity.Status(row.Status),
		Confidence: row.Confidence,
		Duration:   time.Duration(row.DurationMS * float64(time.Millisecond)),
		Timestamp:  row.CreatedAt,
	}
	if err := json.Unmarshal(row.Tools, &r.Tools); err != nil {
		return nil, fmt.Errorf("decode tool results: %w", err)
	}
	if row.OffsetDX != nil && row.OffsetDY != nil {
		r.Offset = &entity.Offset{DX: int(*row.OffsetDX), DY: int(*row.OffsetDY)}
	}
	return r, nil
}

var (
	_ port.ProgramRepository = (*Repository)(nil)
	_ port.ResultSink        = (*Repository)(nil)
	_ port.ResultReader      = (*Repository)(nil)
)

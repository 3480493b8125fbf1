package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

var programID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// YAMLProgramStore хранит программы в каталоге, по файлу <id>.yaml на программу
type YAMLProgramStore struct {
	mu  sync.Mutex
	dir string
}

// NewYAMLProgramStore создаёт каталог при необходимости
func NewYAMLProgramStore(dir string) (*YAMLProgramStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create program dir: %w", err)
	}
	return &YAMLProgramStore{dir: dir}, nil
}

// GetProgram читает программу из <id>.yaml или <id>.yml
func (s *YAMLProgramStore) GetProgram(ctx context.Context, id string) (*entity.Program, error) {
	if !programID.MatchString(id) {
		return nil, fmt.Errorf("program %q: %w", id, entity.ErrNotFound)
	}
	for _, ext := range []string{".yaml", ".yml"} {
		p, err := readProgram(filepath.Join(s.dir, id+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.ID == "" {
			p.ID = id
		}
		return p, nil
	}
	return nil, fmt.Errorf("program %s: %w", id, entity.ErrNotFound)
}

// SaveProgram проверяет программу и атомарно перезаписывает файл
func (s *YAMLProgramStore) SaveProgram(ctx context.Context, p *entity.Program) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !programID.MatchString(p.ID) {
		return &entity.ConfigError{Field: "id", Reason: "must match [A-Za-z0-9_-]+"}
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode program: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(s.dir, p.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("save program: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save program: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save program: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, p.ID+".yaml"))
}

// ListPrograms читает все программы каталога. Файлы с ошибками пропускаются.
func (s *YAMLProgramStore) ListPrograms(ctx context.Context) ([]*entity.Program, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	var out []*entity.Program
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		p, err := s.GetProgram(ctx, strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteProgram удаляет файл программы
func (s *YAMLProgramStore) DeleteProgram(ctx context.Context, id string) error {
	if !programID.MatchString(id) {
		return fmt.Errorf("program %q: %w", id, entity.ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := false
	for _, ext := range []string{".yaml", ".yml"} {
		err := os.Remove(filepath.Join(s.dir, id+ext))
		if err == nil {
			removed = true
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete program: %w", err)
		}
	}
	if !removed {
		return fmt.Errorf("program %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

// LoadProgramFile читает программу из произвольного YAML-файла
func LoadProgramFile(path string) (*entity.Program, error) {
	return readProgram(path)
}

func readProgram(path string) (*entity.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p entity.Program
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

var _ port.ProgramRepository = (*YAMLProgramStore)(nil)

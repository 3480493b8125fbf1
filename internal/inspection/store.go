package inspection

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/vision"
)

// Key идентифицирует набор эталонных признаков. Смена эталона или любой ROI меняет ключ.
type Key struct {
	ProgramID   string
	Checksum    string
	ToolsDigest string
}

// Snapshot неизменяемый набор эталонных признаков программы.
// Цикл, получивший указатель на снимок, работает с ним до конца, даже если снимок уже заменён.
type Snapshot struct {
	Key       Key
	Version   uint64
	CreatedAt time.Time
	Reference vision.Quality
	features  map[string]Features
}

// Get возвращает признаки инструмента
func (s *Snapshot) Get(toolID string) (Features, bool) {
	f, ok := s.features[toolID]
	return f, ok
}

// Len возвращает число инструментов в снимке
func (s *Snapshot) Len() int {
	return len(s.features)
}

// FeatureStore хранит текущий снимок эталонных признаков.
// Чтение без блокировок, регистрация атомарно подменяет снимок.
type FeatureStore struct {
	mu      sync.Mutex // сериализует регистрации
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	logger  *slog.Logger
}

// NewFeatureStore создаёт пустое хранилище
func NewFeatureStore(logger *slog.Logger) *FeatureStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeatureStore{logger: logger}
}

// Register считает признаки всех инструментов по эталонному кадру и подменяет снимок.
// Если ключ совпадает с текущим снимком, пересчёта нет.
func (s *FeatureStore) Register(programID string, ref *entity.Frame, tools []entity.ToolConfig) (*Snapshot, error) {
	if ref.Empty() {
		return nil, fmt.Errorf("%w: reference frame is missing", entity.ErrInvalidReference)
	}
	key, err := makeKey(programID, ref, tools)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur := s.current.Load(); cur != nil && cur.Key == key {
		s.logger.Debug("master features reused", slog.String("program_id", programID), slog.Uint64("version", cur.Version))
		return cur, nil
	}

	features := make(map[string]Features, len(tools))
	for _, t := range tools {
		f, err := extractFeatures(ref, t)
		if err != nil {
			return nil, err
		}
		features[t.ID] = f
	}

	refGray, err := vision.GrayFrame(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidReference, err)
	}

	snap := &Snapshot{
		Key:       key,
		Version:   s.version.Add(1),
		CreatedAt: time.Now(),
		Reference: vision.MeasureQuality(refGray),
		features:  features,
	}
	s.current.Store(snap)
	s.logger.Info("master features registered",
		slog.String("program_id", programID),
		slog.Uint64("version", snap.Version),
		slog.Int("tools", len(features)))
	return snap, nil
}

// Current возвращает текущий снимок или nil
func (s *FeatureStore) Current() *Snapshot {
	return s.current.Load()
}

// Get читает признаки инструмента из текущего снимка
func (s *FeatureStore) Get(toolID string) (Features, bool) {
	snap := s.current.Load()
	if snap == nil {
		return Features{}, false
	}
	return snap.Get(toolID)
}

// Fresh сообщает, соответствует ли текущий снимок программе и эталону
func (s *FeatureStore) Fresh(programID string, ref *entity.Frame, tools []entity.ToolConfig) bool {
	snap := s.current.Load()
	if snap == nil || ref.Empty() {
		return false
	}
	key, err := makeKey(programID, ref, tools)
	return err == nil && snap.Key == key
}

// Invalidate сбрасывает снимок; следующая регистрация пересчитает признаки
func (s *FeatureStore) Invalidate() {
	s.mu.Lock()
	s.current.Store(nil)
	s.mu.Unlock()
}

func makeKey(programID string, ref *entity.Frame, tools []entity.ToolConfig) (Key, error) {
	data, err := json.Marshal(tools)
	if err != nil {
		return Key{}, fmt.Errorf("digest tools: %w", err)
	}
	sum := sha256.Sum256(data)
	return Key{
		ProgramID:   programID,
		Checksum:    ref.Checksum(),
		ToolsDigest: hex.EncodeToString(sum[:]),
	}, nil
}

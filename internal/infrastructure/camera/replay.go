package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
	"vision-inspector/internal/infrastructure/imagefile"
)

// ReplayCamera отдаёт изображения каталога по кругу. Нужна для наладки без камеры.
type ReplayCamera struct {
	mu     sync.Mutex
	files  []string
	frames map[string]*entity.Frame
	next   int
	seq    uint64
}

// NewReplayCamera читает список изображений каталога в лексикографическом порядке
func NewReplayCamera(dir string) (*ReplayCamera, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replay dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !imagefile.Supported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("replay dir %s: no images", dir)
	}
	sort.Strings(files)
	return &ReplayCamera{files: files, frames: make(map[string]*entity.Frame)}, nil
}

// Capture возвращает следующий кадр. Подсказки съёмки не влияют на записанные изображения.
func (c *ReplayCamera) Capture(ctx context.Context, _ entity.CaptureHints) (*entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrCapture, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.files[c.next]
	c.next = (c.next + 1) % len(c.files)

	frame, ok := c.frames[path]
	if !ok {
		var err error
		frame, err = imagefile.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrCapture, err)
		}
		c.frames[path] = frame
	}

	out := frame.Clone()
	c.seq++
	out.Seq = c.seq
	out.Timestamp = time.Now()
	return out, nil
}

// Len возвращает число изображений
func (c *ReplayCamera) Len() int {
	return len(c.files)
}

var _ port.Camera = (*ReplayCamera)(nil)

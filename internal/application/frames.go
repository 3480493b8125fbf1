package app

import (
	"sync"

	"vision-inspector/internal/domain/entity"
)

// FrameHolder хранит последний кадр, снятый циклом инспекции.
// Читатели видят кадры без повторной съёмки и не сдвигают позицию камеры.
type FrameHolder struct {
	mu      sync.Mutex
	frame   *entity.Frame
	version uint64
}

// NewFrameHolder создаёт пустое хранилище кадра
func NewFrameHolder() *FrameHolder {
	return &FrameHolder{}
}

// Publish заменяет последний кадр. Кадр после публикации не изменяется.
func (h *FrameHolder) Publish(f *entity.Frame) {
	if h == nil || f == nil {
		return
	}
	h.mu.Lock()
	h.frame = f
	h.version++
	h.mu.Unlock()
}

// Latest возвращает последний кадр и номер его публикации (0, если кадров не было)
func (h *FrameHolder) Latest() (*entity.Frame, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame, h.version
}

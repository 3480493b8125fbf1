package port

import (
	"context"

	"vision-inspector/internal/domain/entity"
)

// Camera интерфейс камеры
type Camera interface {
	// Capture снимает кадр. Ошибка оборачивает entity.ErrCapture (таймаут или недоступность).
	Capture(ctx context.Context, hints entity.CaptureHints) (*entity.Frame, error)
}

// ReferenceLoader загружает эталонное изображение по ссылке из программы
type ReferenceLoader interface {
	LoadReference(ctx context.Context, handle string) (*entity.Frame, error)
}

package port

import (
	"context"
	"image"

	"vision-inspector/internal/domain/entity"
)

// LiveTransport доставка результатов и кадров просмотра внешним наблюдателям.
// Для движка доставка "выстрелил и забыл".
type LiveTransport interface {
	PublishResult(result *entity.InspectionResult) error
	PublishFrame(frame *entity.PreviewFrame) error
}

// Notifier отправляет оповещения оператору
type Notifier interface {
	Notify(ctx context.Context, alert entity.Alert) error
}

// PreviewEncoder сжимает кадр живого просмотра (JPEG, WebP)
type PreviewEncoder interface {
	Encode(img image.Image) (data []byte, contentType string, err error)
}

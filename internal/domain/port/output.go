package port

import (
	"context"
	"time"
)

// OutputDriver драйвер дискретных выходов (каналы 1..8)
type OutputDriver interface {
	// Write выставляет уровень канала. Не блокирует; ошибки не фатальны для цикла.
	Write(channel int, active bool) error
}

// TriggerSource источник внешних фронтов запуска
type TriggerSource interface {
	// Edges возвращает канал фронтов, который закрывается при отмене ctx
	Edges(ctx context.Context) (<-chan time.Time, error)
}

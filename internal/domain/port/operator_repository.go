package port

import (
	"context"

	"vision-inspector/internal/domain/entity"
)

// OperatorRepository интерфейс хранилища операторов
type OperatorRepository interface {
	// Get возвращает оператора по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.Operator, error)

	// Save сохраняет оператора
	Save(ctx context.Context, operator *entity.Operator) error

	// Subscribers возвращает операторов, подписанных на оповещения
	Subscribers(ctx context.Context) ([]*entity.Operator, error)
}

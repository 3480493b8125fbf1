package entity

// OperatorState состояние оператора в диалоге с ботом
type OperatorState string

const (
	StateMainMenu        OperatorState = "main_menu"        // В главном меню
	StateAwaitingProgram OperatorState = "awaiting_program" // Ожидание ID программы для запуска
)

// Operator представляет оператора линии в Telegram
type Operator struct {
	ID         int64         // Telegram User ID
	ChatID     int64         // Telegram Chat ID
	State      OperatorState // Текущее состояние диалога
	Subscribed bool          // Получает оповещения
}

// NewOperator создаёт нового оператора с начальным состоянием
func NewOperator(userID, chatID int64) *Operator {
	return &Operator{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние оператора
func (o *Operator) SetState(state OperatorState) {
	o.State = state
}

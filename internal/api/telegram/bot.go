package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "vision-inspector/internal/application"
	"vision-inspector/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я бот управления инспекцией на линии.

📋 Команды:
/programs — список программ
/run <id> — запустить программу
/status — состояние и статистика
/help — справка`

	msgHelp = `ℹ️ Управление инспекцией:

/programs — список программ
/run <id> — запустить программу
/trigger — запустить цикл вручную
/pause — приостановить
/resume — продолжить
/stop — остановить прогон
/status — состояние
/stats — статистика и последние результаты
/subscribe — получать оповещения
/unsubscribe — отключить оповещения
/cancel — отменить текущую операцию`

	msgAwaitingProgram = "🔢 Отправьте ID программы для запуска."
	msgCancelled       = "❌ Операция отменена."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgUnknownText     = "💬 Используйте команды. /help — справка."
	msgNoPrograms      = "📭 Программ нет."
	msgStopped         = "⏹ Прогон остановлен."
	msgPaused          = "⏸ Прогон приостановлен."
	msgResumed         = "▶️ Прогон продолжен."
	msgTriggered       = "📸 Цикл запущен."
	msgSubscribed      = "🔔 Оповещения включены."
	msgUnsubscribed    = "🔕 Оповещения выключены."
	msgFailed          = "⚠️ Внутренняя ошибка. Попробуйте позже."
)

// API методы Telegram, нужные боту (tgbotapi.BotAPI)
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot представляет Telegram-бота оператора
type Bot struct {
	api        API
	operators  *app.OperatorService
	inspection *app.InspectionService
	logger     *slog.Logger
}

// NewAPI подключается к Telegram по токену
func NewAPI(token string, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Info("authorized on telegram", slog.String("account", api.Self.UserName))
	return api, nil
}

// NewBot создаёт нового бота
func NewBot(api API, operators *app.OperatorService, inspection *app.InspectionService, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:        api,
		operators:  operators,
		inspection: inspection,
		logger:     logger.With(slog.String("component", "telegram")),
	}
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.HandleMessage(ctx, update.Message)
		}
	}
}

// HandleMessage обрабатывает входящее сообщение
func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	op, err := b.operators.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.logger.Error("get operator", slog.Any("error", err))
		b.sendMessage(msg.Chat.ID, msgFailed)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, op)
		return
	}

	// Ожидаем ID программы после /run без аргумента
	if op.State == entity.StateAwaitingProgram {
		b.runProgram(ctx, msg, strings.TrimSpace(msg.Text))
		return
	}

	b.sendMessage(msg.Chat.ID, msgUnknownText)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, op *entity.Operator) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.setState(ctx, msg, entity.StateMainMenu)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "status":
		b.sendMessage(chatID, formatStatus(b.inspection.Status()))

	case "stats":
		b.sendMessage(chatID, formatStats(b.inspection.Status().Stats))

	case "programs":
		b.listPrograms(ctx, chatID)

	case "run":
		id := strings.TrimSpace(msg.CommandArguments())
		if id == "" {
			b.setState(ctx, msg, entity.StateAwaitingProgram)
			b.sendMessage(chatID, msgAwaitingProgram)
			return
		}
		b.runProgram(ctx, msg, id)

	case "trigger":
		b.reply(chatID, b.inspection.Trigger(), msgTriggered)

	case "pause":
		b.reply(chatID, b.inspection.Pause(), msgPaused)

	case "resume":
		b.reply(chatID, b.inspection.Resume(), msgResumed)

	case "stop":
		b.reply(chatID, b.inspection.Stop(), msgStopped)

	case "subscribe":
		_, err := b.operators.SetSubscribed(ctx, msg.From.ID, chatID, true)
		b.reply(chatID, err, msgSubscribed)

	case "unsubscribe":
		_, err := b.operators.SetSubscribed(ctx, msg.From.ID, chatID, false)
		b.reply(chatID, err, msgUnsubscribed)

	case "cancel":
		b.setState(ctx, msg, entity.StateMainMenu)
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

func (b *Bot) runProgram(ctx context.Context, msg *tgbotapi.Message, id string) {
	b.setState(ctx, msg, entity.StateMainMenu)
	prog, err := b.inspection.StartProgram(ctx, id)
	if err != nil {
		b.sendMessage(msg.Chat.ID, describeError(err))
		return
	}
	b.logger.Info("program started by operator",
		slog.Int64("user_id", msg.From.ID), slog.String("program_id", prog.ID))
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("▶️ Программа %s запущена (%s).", prog.ID, prog.Trigger.Mode))
}

func (b *Bot) listPrograms(ctx context.Context, chatID int64) {
	progs, err := b.inspection.Programs(ctx)
	if err != nil {
		b.logger.Error("list programs", slog.Any("error", err))
		b.sendMessage(chatID, msgFailed)
		return
	}
	if len(progs) == 0 {
		b.sendMessage(chatID, msgNoPrograms)
		return
	}
	var sb strings.Builder
	sb.WriteString("📋 Программы:\n")
	for _, p := range progs {
		fmt.Fprintf(&sb, "• %s", p.ID)
		if p.Name != "" {
			fmt.Fprintf(&sb, " — %s", p.Name)
		}
		fmt.Fprintf(&sb, " (%d инстр.)\n", len(p.Tools))
	}
	b.sendMessage(chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) setState(ctx context.Context, msg *tgbotapi.Message, state entity.OperatorState) {
	if _, err := b.operators.SetState(ctx, msg.From.ID, msg.Chat.ID, state); err != nil {
		b.logger.Error("save operator state", slog.Any("error", err))
	}
}

// reply отправляет ok при успехе или описание ошибки
func (b *Bot) reply(chatID int64, err error, ok string) {
	if err != nil {
		b.sendMessage(chatID, describeError(err))
		return
	}
	b.sendMessage(chatID, ok)
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func describeError(err error) string {
	var cfgErr *entity.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("⚠️ Программа некорректна: %s: %s", cfgErr.Field, cfgErr.Reason)
	case errors.Is(err, entity.ErrNotFound):
		return "🔍 Программа не найдена."
	case errors.Is(err, entity.ErrNotRunning):
		return "⏹ Инспекция не запущена."
	case errors.Is(err, entity.ErrTriggerDropped):
		return "⏳ Цикл уже выполняется, запуск пропущен."
	case errors.Is(err, entity.ErrInvalidTransition):
		return "🚫 Команда недоступна в текущем состоянии."
	case errors.Is(err, entity.ErrInvalidReference):
		return "🖼 Эталонное изображение не подходит для программы."
	default:
		return "⚠️ Ошибка: " + err.Error()
	}
}

func formatStatus(st app.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📟 Состояние: %s", st.State)
	if st.ProgramID != "" {
		fmt.Fprintf(&sb, "\nПрограмма: %s", st.ProgramID)
		if st.Program != "" {
			fmt.Fprintf(&sb, " (%s)", st.Program)
		}
	}
	s := st.Stats
	if s.Total > 0 {
		fmt.Fprintf(&sb, "\nЦиклов: %d, OK: %d, NG: %d, годных %.1f%%", s.Total, s.OK, s.NG, s.PassRate)
	}
	return sb.String()
}

func formatStats(s entity.Statistics) string {
	if s.Total == 0 && s.Skipped == 0 && s.MissedTriggers == 0 {
		return "📊 Статистики пока нет."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Статистика %s\n", s.ProgramID)
	fmt.Fprintf(&sb, "Всего: %d\nOK: %d\nNG: %d\nПропущено: %d\nПотеряно запусков: %d\n",
		s.Total, s.OK, s.NG, s.Skipped, s.MissedTriggers)
	fmt.Fprintf(&sb, "Годных: %.1f%%\nСреднее время: %.1f мс\nСредняя уверенность: %.1f",
		s.PassRate, s.AvgProcessingMS, s.AvgConfidence)
	if n := len(s.Recent); n > 0 {
		sb.WriteString("\n\nПоследние:")
		from := n - 5
		if from < 0 {
			from = 0
		}
		for i := n - 1; i >= from; i-- {
			r := s.Recent[i]
			fmt.Fprintf(&sb, "\n#%d %s %.1f (%.0f мс)", r.Sequence, r.Status, r.Confidence, r.DurationMS)
		}
	}
	return sb.String()
}

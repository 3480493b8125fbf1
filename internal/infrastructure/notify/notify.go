package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

// LogNotifier пишет оповещения в лог
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier создаёт notifier поверх slog
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify пишет оповещение с уровнем по его важности
func (n *LogNotifier) Notify(ctx context.Context, a entity.Alert) error {
	level := slog.LevelInfo
	switch a.Level {
	case entity.AlertWarning:
		level = slog.LevelWarn
	case entity.AlertCritical:
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, a.Title,
		slog.String("alert_id", a.ID),
		slog.String("rule", a.Rule),
		slog.String("program_id", a.ProgramID),
		slog.String("message", a.Message))
	return nil
}

// Sender отправка сообщений Telegram (tgbotapi.BotAPI)
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier рассылает оповещения подписанным операторам и в заданные чаты
type TelegramNotifier struct {
	sender    Sender
	operators port.OperatorRepository
	chats     []int64
}

// NewTelegramNotifier создаёт рассылку. operators может быть nil.
func NewTelegramNotifier(sender Sender, operators port.OperatorRepository, chats []int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, operators: operators, chats: chats}
}

// Notify отправляет оповещение во все чаты; возвращает объединённую ошибку отправки
func (n *TelegramNotifier) Notify(ctx context.Context, a entity.Alert) error {
	chats := make(map[int64]struct{}, len(n.chats))
	for _, id := range n.chats {
		chats[id] = struct{}{}
	}
	if n.operators != nil {
		subs, err := n.operators.Subscribers(ctx)
		if err != nil {
			return fmt.Errorf("load subscribers: %w", err)
		}
		for _, op := range subs {
			chats[op.ChatID] = struct{}{}
		}
	}

	text := FormatAlert(a)
	var errs []error
	for id := range chats {
		if _, err := n.sender.Send(tgbotapi.NewMessage(id, text)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// FormatAlert текст оповещения для оператора
func FormatAlert(a entity.Alert) string {
	icon := "ℹ️"
	switch a.Level {
	case entity.AlertWarning:
		icon = "⚠️"
	case entity.AlertCritical:
		icon = "🚨"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", icon, a.Title)
	if a.ProgramID != "" {
		fmt.Fprintf(&b, "Программа: %s\n", a.ProgramID)
	}
	b.WriteString(a.Message)
	return b.String()
}

// Multi рассылает оповещение всем получателям
type Multi []port.Notifier

// Notify вызывает всех получателей и объединяет ошибки
func (m Multi) Notify(ctx context.Context, a entity.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ port.Notifier = (*LogNotifier)(nil)
	_ port.Notifier = (*TelegramNotifier)(nil)
	_ port.Notifier = Multi(nil)
)

package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

const (
	RuleNGStreak     = "ng_streak"
	RulePassRate     = "pass_rate"
	RulePositionLock = "position_lock"
)

// AlertRules пороги оповещений. Нулевой порог отключает правило.
type AlertRules struct {
	NGStreak    int
	MinPassRate float64
	MinSamples  uint64
	Cooldown    time.Duration
}

// DefaultAlertRules значения по умолчанию
func DefaultAlertRules() AlertRules {
	return AlertRules{NGStreak: 5, MinPassRate: 90, MinSamples: 20, Cooldown: 300 * time.Second}
}

// AlertMonitor проверяет правила после каждого результата и шлёт оповещения с паузой между повторами.
type AlertMonitor struct {
	notifier port.Notifier
	rules    AlertRules
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	streak int
	last   map[string]time.Time
}

// NewAlertMonitor создаёт монитор оповещений
func NewAlertMonitor(notifier port.Notifier, rules AlertRules, logger *slog.Logger) *AlertMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertMonitor{
		notifier: notifier,
		rules:    rules,
		logger:   logger,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Reset сбрасывает серию NG и паузы правил перед новым прогоном
func (m *AlertMonitor) Reset() {
	m.mu.Lock()
	m.streak = 0
	m.last = make(map[string]time.Time)
	m.mu.Unlock()
}

// Observe проверяет правила по результату и текущей статистике
func (m *AlertMonitor) Observe(ctx context.Context, r *entity.InspectionResult, stats entity.Statistics) {
	if m == nil || m.notifier == nil {
		return
	}
	for _, a := range m.evaluate(r, stats) {
		if err := m.notifier.Notify(ctx, a); err != nil {
			m.logger.Warn("alert delivery failed", slog.String("rule", a.Rule), slog.Any("error", err))
		}
	}
}

func (m *AlertMonitor) evaluate(r *entity.InspectionResult, stats entity.Statistics) []entity.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.Status == entity.StatusNG {
		m.streak++
	} else {
		m.streak = 0
	}

	var out []entity.Alert
	if m.rules.NGStreak > 0 && m.streak >= m.rules.NGStreak {
		out = m.fire(out, r.ProgramID, RuleNGStreak, entity.AlertCritical,
			"NG streak",
			fmt.Sprintf("%d consecutive NG results", m.streak))
	}
	if m.rules.MinPassRate > 0 && stats.Total >= m.rules.MinSamples && stats.PassRate < m.rules.MinPassRate {
		out = m.fire(out, r.ProgramID, RulePassRate, entity.AlertWarning,
			"Pass rate low",
			fmt.Sprintf("pass rate %.1f%% below %.1f%% over %d results", stats.PassRate, m.rules.MinPassRate, stats.Total))
	}
	for _, t := range r.Tools {
		if t.Kind == entity.ToolPositionAdjust && t.Error != "" {
			out = m.fire(out, r.ProgramID, RulePositionLock, entity.AlertWarning,
				"Position lock failed",
				fmt.Sprintf("tool %s: %s", t.Name, t.Error))
		}
	}
	return out
}

// fire вызывается под m.mu
func (m *AlertMonitor) fire(out []entity.Alert, programID, rule string, level entity.AlertLevel, title, msg string) []entity.Alert {
	now := m.now()
	if last, ok := m.last[rule]; ok && now.Sub(last) < m.rules.Cooldown {
		return out
	}
	m.last[rule] = now
	return append(out, entity.Alert{
		ID:        uuid.NewString(),
		Rule:      rule,
		Level:     level,
		ProgramID: programID,
		Title:     title,
		Message:   msg,
		Timestamp: now,
	})
}

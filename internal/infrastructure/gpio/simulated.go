package gpio

import (
	"fmt"
	"log/slog"
	"sync"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

// SimulatedDriver держит уровни выходов в памяти. Используется без оборудования.
type SimulatedDriver struct {
	mu     sync.RWMutex
	levels [entity.OutputChannels + 1]bool
	logger *slog.Logger
}

// NewSimulatedDriver создаёт драйвер-имитатор
func NewSimulatedDriver(logger *slog.Logger) *SimulatedDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedDriver{logger: logger}
}

// Write запоминает уровень канала
func (d *SimulatedDriver) Write(channel int, active bool) error {
	if channel < 1 || channel > entity.OutputChannels {
		return fmt.Errorf("%w: channel %d out of range", entity.ErrOutputWrite, channel)
	}
	d.mu.Lock()
	changed := d.levels[channel] != active
	d.levels[channel] = active
	d.mu.Unlock()
	if changed {
		d.logger.Debug("output changed", slog.Int("channel", channel), slog.Bool("active", active))
	}
	return nil
}

// Level возвращает текущий уровень канала
func (d *SimulatedDriver) Level(channel int) bool {
	if channel < 1 || channel > entity.OutputChannels {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.levels[channel]
}

// Levels возвращает уровни каналов 1..8
func (d *SimulatedDriver) Levels() map[int]bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[int]bool, entity.OutputChannels)
	for ch := 1; ch <= entity.OutputChannels; ch++ {
		out[ch] = d.levels[ch]
	}
	return out
}

var _ port.OutputDriver = (*SimulatedDriver)(nil)

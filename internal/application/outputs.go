package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

// PulseWidth длительность импульсов OK/NG
const PulseWidth = 300 * time.Millisecond

// OutputController управляет дискретными выходами: Busy, импульсы OK/NG и пользовательские каналы.
// Таймеры импульсов принадлежат контроллеру и отменяются вместе в Stop.
type OutputController struct {
	driver port.OutputDriver
	logger *slog.Logger
	pulse  time.Duration

	mu      sync.Mutex
	timers  map[int]*time.Timer
	gen     map[int]uint64
	outputs entity.OutputMap
	busy    bool
}

// NewOutputController создаёт контроллер. pulse <= 0 означает PulseWidth.
func NewOutputController(driver port.OutputDriver, logger *slog.Logger, pulse time.Duration) *OutputController {
	if logger == nil {
		logger = slog.Default()
	}
	if pulse <= 0 {
		pulse = PulseWidth
	}
	return &OutputController{
		driver: driver,
		logger: logger,
		pulse:  pulse,
		timers: make(map[int]*time.Timer),
		gen:    make(map[int]uint64),
	}
}

// Load применяет карту выходов программы. Статические каналы выставляются один раз здесь.
func (c *OutputController) Load(outputs entity.OutputMap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs = outputs
	for ch := entity.FirstUserChannel; ch <= entity.OutputChannels; ch++ {
		switch outputs.Condition(ch) {
		case entity.OutputAlwaysOn:
			c.write(ch, true)
		default:
			c.write(ch, false)
		}
	}
}

// BusyOn включает Busy в начале съёмки
func (c *OutputController) BusyOn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = true
	c.write(entity.ChannelBusy, true)
}

// BusyOff выключает Busy. Повторный вызов ничего не пишет в драйвер.
func (c *OutputController) BusyOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.busy {
		return
	}
	c.busy = false
	c.write(entity.ChannelBusy, false)
}

// Publish выдаёт импульс по итогу цикла и пересчитывает каналы on_ok/on_ng.
func (c *OutputController) Publish(status entity.Status) {
	if status == entity.StatusOK {
		c.Pulse(entity.ChannelOkPulse)
	} else {
		c.Pulse(entity.ChannelNgPulse)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := entity.FirstUserChannel; ch <= entity.OutputChannels; ch++ {
		switch c.outputs.Condition(ch) {
		case entity.OutputOnOK:
			c.write(ch, status == entity.StatusOK)
		case entity.OutputOnNG:
			c.write(ch, status == entity.StatusNG)
		}
	}
}

// Pulse включает канал на время импульса. Повторный импульс перезапускает окно.
func (c *OutputController) Pulse(channel int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[channel]; ok {
		t.Stop()
	}
	c.gen[channel]++
	gen := c.gen[channel]
	c.write(channel, true)
	c.timers[channel] = time.AfterFunc(c.pulse, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen[channel] != gen {
			return
		}
		delete(c.timers, channel)
		c.write(channel, false)
	})
}

// Stop отменяет все импульсы, гасит их каналы и принудительно выключает Busy.
func (c *OutputController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch, t := range c.timers {
		t.Stop()
		c.gen[ch]++
		delete(c.timers, ch)
		c.write(ch, false)
	}
	// занятость гасится всегда, даже если локально уже снята
	c.busy = false
	c.write(entity.ChannelBusy, false)
}

// SelfTest по очереди выдаёт импульс на каждый канал.
func (c *OutputController) SelfTest(ctx context.Context) error {
	for ch := 1; ch <= entity.OutputChannels; ch++ {
		c.Pulse(ch)
		select {
		case <-ctx.Done():
			c.Stop()
			return ctx.Err()
		case <-time.After(c.pulse + c.pulse/2):
		}
	}
	return nil
}

// write вызывается под c.mu
func (c *OutputController) write(channel int, active bool) {
	if c.driver == nil {
		return
	}
	if err := c.driver.Write(channel, active); err != nil {
		c.logger.Error("output write failed",
			slog.Int("channel", channel),
			slog.Bool("active", active),
			slog.Any("error", fmt.Errorf("%w: %v", entity.ErrOutputWrite, err)))
	}
}

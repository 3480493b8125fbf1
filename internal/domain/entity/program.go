package entity

import (
	"fmt"
	"sort"
)

const (
	MaxTools         = 16
	OutputChannels   = 8
	ChannelBusy      = 1
	ChannelOkPulse   = 2
	ChannelNgPulse   = 3
	FirstUserChannel = 4
)

// TriggerMode источник запуска циклов инспекции
type TriggerMode string

const (
	TriggerInternal TriggerMode = "internal" // по внутреннему таймеру
	TriggerExternal TriggerMode = "external" // по фронту внешнего сигнала
)

// BrightnessMode режим экспозиции камеры
type BrightnessMode string

const (
	BrightnessNormal   BrightnessMode = "normal"
	BrightnessHDR      BrightnessMode = "hdr"
	BrightnessHighGain BrightnessMode = "highgain"
)

// Trigger настройки запуска
type Trigger struct {
	Mode       TriggerMode `yaml:"mode" json:"mode"`
	IntervalMS int         `yaml:"interval_ms" json:"interval_ms"` // 1..10000, только для internal
	DelayMS    int         `yaml:"delay_ms" json:"delay_ms"`       // 0..1000, только для external
}

// CaptureSettings подсказки съёмки, которые программа передаёт камере
type CaptureSettings struct {
	Brightness BrightnessMode `yaml:"brightness" json:"brightness"`
	Focus      int            `yaml:"focus" json:"focus"`
}

// OutputCondition условие включения пользовательского выхода
type OutputCondition string

const (
	OutputAlwaysOn  OutputCondition = "always_on"
	OutputAlwaysOff OutputCondition = "always_off"
	OutputOnOK      OutputCondition = "on_ok"
	OutputOnNG      OutputCondition = "on_ng"
	OutputUnused    OutputCondition = "unused"
)

// OutputMap назначает условия каналам 4..8. Каналы 1..3 зарезервированы.
type OutputMap map[int]OutputCondition

// Condition возвращает условие канала, по умолчанию unused
func (m OutputMap) Condition(channel int) OutputCondition {
	if c, ok := m[channel]; ok {
		return c
	}
	return OutputUnused
}

// Program конфигурация инспекции, неизменная на время прогона
type Program struct {
	ID        string          `yaml:"id" json:"id"`
	Name      string          `yaml:"name" json:"name"`
	Trigger   Trigger         `yaml:"trigger" json:"trigger"`
	Capture   CaptureSettings `yaml:"capture" json:"capture"`
	Reference string          `yaml:"reference" json:"reference"` // ссылка на эталонное изображение
	Tools     []ToolConfig    `yaml:"tools" json:"tools"`
	Outputs   OutputMap       `yaml:"outputs" json:"outputs"`
}

// Hints возвращает подсказки съёмки для камеры
func (p *Program) Hints() CaptureHints {
	return CaptureHints{Brightness: p.Capture.Brightness, Focus: p.Capture.Focus}
}

// OrderedTools возвращает инструменты в порядке обработки (стабильная сортировка по Order).
func (p *Program) OrderedTools() []ToolConfig {
	tools := make([]ToolConfig, len(p.Tools))
	copy(tools, p.Tools)
	sort.SliceStable(tools, func(i, j int) bool { return tools[i].Order < tools[j].Order })
	return tools
}

// PositionTool возвращает инструмент компенсации положения, если он есть
func (p *Program) PositionTool() (ToolConfig, bool) {
	for _, t := range p.Tools {
		if t.Kind == ToolPositionAdjust {
			return t, true
		}
	}
	return ToolConfig{}, false
}

// Validate проверяет программу до запуска. Ошибка всегда *ConfigError.
func (p *Program) Validate() error {
	if p.ID == "" {
		return configErr("id", "is required")
	}

	switch p.Trigger.Mode {
	case TriggerInternal:
		if p.Trigger.IntervalMS < 1 || p.Trigger.IntervalMS > 10000 {
			return configErr("trigger.interval_ms", "must be 1-10000, got %d", p.Trigger.IntervalMS)
		}
	case TriggerExternal:
		if p.Trigger.DelayMS < 0 || p.Trigger.DelayMS > 1000 {
			return configErr("trigger.delay_ms", "must be 0-1000, got %d", p.Trigger.DelayMS)
		}
	default:
		return configErr("trigger.mode", "unknown mode %q", p.Trigger.Mode)
	}

	switch p.Capture.Brightness {
	case "", BrightnessNormal, BrightnessHDR, BrightnessHighGain:
	default:
		return configErr("capture.brightness", "unknown mode %q", p.Capture.Brightness)
	}
	if p.Capture.Focus < 0 || p.Capture.Focus > 100 {
		return configErr("capture.focus", "must be 0-100, got %d", p.Capture.Focus)
	}

	if p.Reference == "" {
		return configErr("reference", "is required")
	}

	if len(p.Tools) > MaxTools {
		return configErr("tools", "at most %d tools allowed, got %d", MaxTools, len(p.Tools))
	}
	ids := make(map[string]struct{}, len(p.Tools))
	positionTools := 0
	for i, t := range p.Tools {
		if err := t.Validate(); err != nil {
			err.Field = fmt.Sprintf("tools[%d].%s", i, err.Field)
			return err
		}
		if _, dup := ids[t.ID]; dup {
			return configErr(fmt.Sprintf("tools[%d].id", i), "duplicate id %q", t.ID)
		}
		ids[t.ID] = struct{}{}
		if t.Kind == ToolPositionAdjust {
			positionTools++
		}
	}
	if positionTools > 1 {
		return configErr("tools", "at most one position_adjust tool allowed, got %d", positionTools)
	}

	for ch, cond := range p.Outputs {
		if ch < 1 || ch > OutputChannels {
			return configErr("outputs", "channel %d out of range 1-%d", ch, OutputChannels)
		}
		if ch < FirstUserChannel {
			return configErr("outputs", "channel %d is reserved", ch)
		}
		switch cond {
		case OutputAlwaysOn, OutputAlwaysOff, OutputOnOK, OutputOnNG, OutputUnused:
		default:
			return configErr("outputs", "channel %d: unknown condition %q", ch, cond)
		}
	}
	return nil
}

package entity

import "fmt"

// ToolKind тип инструмента. Набор закрыт: новые типы не подключаются извне.
type ToolKind string

const (
	ToolOutline        ToolKind = "outline"
	ToolArea           ToolKind = "area"
	ToolColorArea      ToolKind = "color_area"
	ToolEdgeDetection  ToolKind = "edge_detection"
	ToolPositionAdjust ToolKind = "position_adjust"
)

// Значения параметров по умолчанию
const (
	DefaultColorTolerance      = 15
	DefaultSaturationTolerance = 40
	DefaultValueTolerance      = 40
	DefaultEdgePercentile      = 0.90
	DefaultDistanceScale       = 1.0
	DefaultSearchMargin        = 50
)

// ToolParams параметры, специфичные для типа инструмента
type ToolParams struct {
	ColorTolerance      int     `yaml:"color_tolerance,omitempty" json:"color_tolerance,omitempty"`
	SaturationTolerance int     `yaml:"saturation_tolerance,omitempty" json:"saturation_tolerance,omitempty"`
	ValueTolerance      int     `yaml:"value_tolerance,omitempty" json:"value_tolerance,omitempty"`
	ColorSamples        []Point `yaml:"color_samples,omitempty" json:"color_samples,omitempty"`
	ManualThreshold     *int    `yaml:"manual_threshold,omitempty" json:"manual_threshold,omitempty"`
	EdgePercentile      float64 `yaml:"edge_percentile,omitempty" json:"edge_percentile,omitempty"`
	DistanceScale       float64 `yaml:"distance_scale,omitempty" json:"distance_scale,omitempty"`
	SearchMargin        int     `yaml:"search_margin,omitempty" json:"search_margin,omitempty"`
}

// WithDefaults подставляет значения по умолчанию вместо нулевых
func (p ToolParams) WithDefaults() ToolParams {
	if p.ColorTolerance == 0 {
		p.ColorTolerance = DefaultColorTolerance
	}
	if p.SaturationTolerance == 0 {
		p.SaturationTolerance = DefaultSaturationTolerance
	}
	if p.ValueTolerance == 0 {
		p.ValueTolerance = DefaultValueTolerance
	}
	if p.EdgePercentile == 0 {
		p.EdgePercentile = DefaultEdgePercentile
	}
	if p.DistanceScale == 0 {
		p.DistanceScale = DefaultDistanceScale
	}
	if p.SearchMargin == 0 {
		p.SearchMargin = DefaultSearchMargin
	}
	return p
}

// ToolConfig настройка одного инструмента программы
type ToolConfig struct {
	ID         string     `yaml:"id" json:"id"`
	Name       string     `yaml:"name" json:"name"`
	Kind       ToolKind   `yaml:"kind" json:"kind"`
	ROI        ROI        `yaml:"roi" json:"roi"`
	Threshold  float64    `yaml:"threshold" json:"threshold"`                     // 0..100
	UpperLimit *float64   `yaml:"upper_limit,omitempty" json:"upper_limit,omitempty"` // 0..200
	Order      int        `yaml:"order" json:"order"`
	Params     ToolParams `yaml:"params,omitempty" json:"params,omitempty"`
}

// Judge выносит решение по степени совпадения: нижний порог включительно,
// верхний предел, если задан, тоже включительно.
func (t ToolConfig) Judge(rate float64) Status {
	if rate < t.Threshold {
		return StatusNG
	}
	if t.UpperLimit != nil && rate > *t.UpperLimit {
		return StatusNG
	}
	return StatusOK
}

// Validate проверяет настройку инструмента
func (t ToolConfig) Validate() *ConfigError {
	if t.ID == "" {
		return configErr("id", "is required")
	}
	switch t.Kind {
	case ToolOutline, ToolArea, ToolColorArea, ToolEdgeDetection, ToolPositionAdjust:
	default:
		return configErr("kind", "unknown tool kind %q", t.Kind)
	}
	if t.ROI.W <= 0 || t.ROI.H <= 0 {
		return configErr("roi", "width and height must be positive, got %dx%d", t.ROI.W, t.ROI.H)
	}
	if t.ROI.X < 0 || t.ROI.Y < 0 {
		return configErr("roi", "origin must be non-negative, got %d,%d", t.ROI.X, t.ROI.Y)
	}
	if t.Threshold < 0 || t.Threshold > 100 {
		return configErr("threshold", "must be 0-100, got %v", t.Threshold)
	}
	if t.UpperLimit != nil {
		if *t.UpperLimit < 0 || *t.UpperLimit > 200 {
			return configErr("upper_limit", "must be 0-200, got %v", *t.UpperLimit)
		}
		if *t.UpperLimit < t.Threshold {
			return configErr("upper_limit", "must be >= threshold")
		}
	}
	if mt := t.Params.ManualThreshold; mt != nil && (*mt < 0 || *mt > 255) {
		return configErr("params.manual_threshold", "must be 0-255, got %d", *mt)
	}
	if p := t.Params.EdgePercentile; p < 0 || p >= 1 {
		return configErr("params.edge_percentile", "must be in [0,1), got %v", p)
	}
	if t.Params.DistanceScale < 0 {
		return configErr("params.distance_scale", "must be positive")
	}
	if t.Params.SearchMargin < 0 {
		return configErr("params.search_margin", "must be non-negative")
	}
	return nil
}

// Label возвращает имя для логов и сообщений
func (t ToolConfig) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%s/%s", t.Kind, t.ID)
}

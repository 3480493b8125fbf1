package entity

import "time"

// Status итог проверки
type Status string

const (
	StatusOK Status = "OK"
	StatusNG Status = "NG"
)

// ToolResult результат одного инструмента за цикл
type ToolResult struct {
	ToolID       string   `json:"tool_id"`
	Name         string   `json:"name"`
	Kind         ToolKind `json:"kind"`
	MatchingRate float64  `json:"matching_rate"` // 0..100
	Confidence   float64  `json:"confidence"`    // 0..100
	Status       Status   `json:"status"`
	Error        string   `json:"error,omitempty"`
}

// FailedTool строит NG-результат с сообщением об ошибке
func FailedTool(t ToolConfig, err error) ToolResult {
	return ToolResult{
		ToolID: t.ID,
		Name:   t.Label(),
		Kind:   t.Kind,
		Status: StatusNG,
		Error:  err.Error(),
	}
}

// InspectionResult итог цикла инспекции. После создания не меняется.
type InspectionResult struct {
	ID         string        `json:"id"`
	ProgramID  string        `json:"program_id"`
	Sequence   uint64        `json:"sequence"`
	Status     Status        `json:"status"`
	Tools      []ToolResult  `json:"tools"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration_ns"`
	Offset     *Offset       `json:"offset,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Aggregate сводит результаты инструментов: OK только если все OK,
// уверенность: среднее арифметическое уверенностей инструментов.
func Aggregate(tools []ToolResult) (Status, float64) {
	status := StatusOK
	sum := 0.0
	for _, t := range tools {
		if t.Status != StatusOK {
			status = StatusNG
		}
		sum += t.Confidence
	}
	if len(tools) == 0 {
		return status, 0
	}
	return status, sum / float64(len(tools))
}

// Summary краткая запись результата для кольцевого буфера статистики
func (r *InspectionResult) Summary() ResultSummary {
	return ResultSummary{
		ID:         r.ID,
		Sequence:   r.Sequence,
		Status:     r.Status,
		Confidence: r.Confidence,
		DurationMS: float64(r.Duration) / float64(time.Millisecond),
		Timestamp:  r.Timestamp,
	}
}

// ResultSummary краткая запись результата
type ResultSummary struct {
	ID         string    `json:"id"`
	Sequence   uint64    `json:"sequence"`
	Status     Status    `json:"status"`
	Confidence float64   `json:"confidence"`
	DurationMS float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Statistics снимок накопленной статистики программы
type Statistics struct {
	ProgramID       string          `json:"program_id"`
	Total           uint64          `json:"total"`
	OK              uint64          `json:"ok"`
	NG              uint64          `json:"ng"`
	Skipped         uint64          `json:"skipped"`
	MissedTriggers  uint64          `json:"missed_triggers"`
	PassRate        float64         `json:"pass_rate"`
	AvgProcessingMS float64         `json:"avg_processing_ms"`
	AvgConfidence   float64         `json:"avg_confidence"`
	Recent          []ResultSummary `json:"recent"`
	StartedAt       time.Time       `json:"started_at"`
}

// RunState состояние прогона
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StatePaused  RunState = "paused"
	StateStopped RunState = "stopped" // движок закрыт, дальнейшие запуски невозможны
)

// AlertLevel уровень оповещения
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert оповещение оператора
type Alert struct {
	ID        string     `json:"id"`
	Rule      string     `json:"rule"`
	Level     AlertLevel `json:"level"`
	ProgramID string     `json:"program_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
)

// Subjects темы NATS
type Subjects struct {
	Results string // префикс, к нему добавляется ID программы
	Preview string // префикс, к нему добавляется ID программы
	Trigger string
}

// DefaultSubjects темы по умолчанию
func DefaultSubjects() Subjects {
	return Subjects{
		Results: "inspection.results",
		Preview: "inspection.preview",
		Trigger: "inspection.trigger",
	}
}

// ResultSubject тема результатов программы
func (s Subjects) ResultSubject(programID string) string {
	return s.Results + "." + programID
}

// PreviewSubject тема кадров просмотра программы
func (s Subjects) PreviewSubject(programID string) string {
	return s.Preview + "." + programID
}

// Publisher публикует результаты и кадры просмотра в NATS
type Publisher struct {
	Conn     *nats.Conn
	subjects Subjects
}

// NewPublisher подключается к NATS
func NewPublisher(url string, subjects Subjects) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("vision-inspector"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	return &Publisher{Conn: conn, subjects: subjects}, nil
}

// Close дожидается отправки буфера и закрывает соединение
func (p *Publisher) Close() {
	if p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

// PublishResult публикует результат в JSON
func (p *Publisher) PublishResult(result *entity.InspectionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return p.Conn.Publish(p.subjects.ResultSubject(result.ProgramID), data)
}

// PublishFrame публикует сжатый кадр; метаданные передаются в заголовках
func (p *Publisher) PublishFrame(frame *entity.PreviewFrame) error {
	return p.Conn.PublishMsg(FrameMsg(p.subjects.PreviewSubject(frame.ProgramID), frame))
}

// FrameMsg собирает сообщение NATS с кадром просмотра
func FrameMsg(subject string, frame *entity.PreviewFrame) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = frame.Data
	msg.Header.Set("Content-Type", frame.ContentType)
	msg.Header.Set("Seq", strconv.FormatUint(frame.Seq, 10))
	msg.Header.Set("Width", strconv.Itoa(frame.Width))
	msg.Header.Set("Height", strconv.Itoa(frame.Height))
	msg.Header.Set("Timestamp", frame.Timestamp.UTC().Format(time.RFC3339Nano))
	return msg
}

// TriggerEvent внешний запуск цикла через NATS
type TriggerEvent struct {
	ProgramID string `json:"program_id,omitempty"`
}

// Subscriber принимает запуски циклов из NATS
type Subscriber struct {
	Conn      *nats.Conn
	subject   string
	programID func() string
}

// NewSubscriber подключается к NATS. programID возвращает программу текущего прогона;
// события для другой программы отбрасываются.
func NewSubscriber(url, subject string, programID func() string) (*Subscriber, error) {
	conn, err := nats.Connect(url, nats.Name("vision-inspector-trigger"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	return &Subscriber{Conn: conn, subject: subject, programID: programID}, nil
}

// Close закрывает соединение
func (s *Subscriber) Close() {
	if s.Conn != nil {
		s.Conn.Drain()
		s.Conn.Close()
	}
}

// Edges подписывается на тему запуска; подписка снимается при отмене ctx
func (s *Subscriber) Edges(ctx context.Context) (<-chan time.Time, error) {
	out := make(chan time.Time, 1)
	sub, err := s.Conn.Subscribe(s.subject, func(msg *nats.Msg) {
		if !s.accept(msg.Data) {
			return
		}
		select {
		case out <- time.Now():
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return out, nil
}

// accept проверяет, что событие адресовано текущей программе. Пустое тело принимается.
func (s *Subscriber) accept(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	var evt TriggerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return false
	}
	if evt.ProgramID == "" || s.programID == nil {
		return true
	}
	return evt.ProgramID == s.programID()
}

var (
	_ port.LiveTransport = (*Publisher)(nil)
	_ port.TriggerSource = (*Subscriber)(nil)
)

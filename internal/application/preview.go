package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
	"vision-inspector/internal/vision"
)

// PreviewConfig параметры живого просмотра
type PreviewConfig struct {
	FPS     int
	MaxSide int
}

// PreviewProducer отправляет уменьшенные копии кадров, снятых циклами инспекции.
// Камеру он не трогает: кадры берутся из FrameHolder с частотой не выше FPS.
// Между чтением и отправкой стоит ящик на один кадр: медленный транспорт теряет старые кадры, а не копит их.
type PreviewProducer struct {
	frames    *FrameHolder
	encoder   port.PreviewEncoder
	transport port.LiveTransport
	cfg       PreviewConfig
	logger    *slog.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewPreviewProducer создаёт производитель кадров просмотра
func NewPreviewProducer(encoder port.PreviewEncoder, transport port.LiveTransport, cfg PreviewConfig, logger *slog.Logger) *PreviewProducer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSide <= 0 {
		cfg.MaxSide = 640
	}
	return &PreviewProducer{frames: NewFrameHolder(), encoder: encoder, transport: transport, cfg: cfg, logger: logger}
}

// Enabled сообщает, настроен ли просмотр
func (p *PreviewProducer) Enabled() bool {
	return p != nil && p.cfg.FPS > 0 && p.encoder != nil && p.transport != nil
}

// Frames возвращает хранилище, в которое цикл инспекции публикует кадры
func (p *PreviewProducer) Frames() *FrameHolder {
	return p.frames
}

// Dropped возвращает число кадров, вытесненных более новыми
func (p *PreviewProducer) Dropped() uint64 {
	return p.dropped.Load()
}

// Published возвращает число отправленных кадров
func (p *PreviewProducer) Published() uint64 {
	return p.published.Load()
}

// Run отправляет новые кадры прогона до отмены ctx
func (p *PreviewProducer) Run(ctx context.Context, prog *entity.Program) {
	box := newMailbox()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.send(box)
	}()

	ticker := time.NewTicker(time.Second / time.Duration(p.cfg.FPS))
	defer func() {
		ticker.Stop()
		box.close()
		wg.Wait()
	}()

	// кадры прошлого прогона не показываются
	_, last := p.frames.Latest()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, version := p.frames.Latest()
		if frame == nil || version == last {
			continue
		}
		last = version
		preview, err := p.encode(prog.ID, version, frame)
		if err != nil {
			p.logger.Warn("preview encode failed", slog.Any("error", err))
			continue
		}
		if box.put(preview) {
			p.dropped.Add(1)
		}
	}
}

func (p *PreviewProducer) encode(programID string, seq uint64, frame *entity.Frame) (*entity.PreviewFrame, error) {
	img := imaging.Fit(vision.FrameToImage(frame), p.cfg.MaxSide, p.cfg.MaxSide, imaging.Box)
	data, contentType, err := p.encoder.Encode(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &entity.PreviewFrame{
		ProgramID:   programID,
		Seq:         seq,
		Width:       b.Dx(),
		Height:      b.Dy(),
		ContentType: contentType,
		Data:        data,
		Timestamp:   frame.Timestamp,
	}, nil
}

func (p *PreviewProducer) send(box *mailbox) {
	for {
		frame := box.take()
		if frame == nil {
			return
		}
		if err := p.transport.PublishFrame(frame); err != nil {
			p.logger.Debug("preview publish failed", slog.Any("error", err))
			continue
		}
		p.published.Add(1)
	}
}

// mailbox ящик на один кадр: новый кадр заменяет непрочитанный
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *entity.PreviewFrame
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// put кладёт кадр и сообщает, был ли вытеснен непрочитанный
func (m *mailbox) put(f *entity.PreviewFrame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	replaced := m.frame != nil
	m.frame = f
	m.cond.Signal()
	return replaced
}

// take блокируется до появления кадра; nil после закрытия
func (m *mailbox) take() *entity.PreviewFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.frame == nil && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return nil
	}
	f := m.frame
	m.frame = nil
	return f
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}
